package diff

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ruteri/omnichain-configurator/graph"
	"github.com/ruteri/omnichain-configurator/interfaces"
)

// Mode selects which records Compare emits.
type Mode int

const (
	// DiffOnly emits mismatches and errors only.
	DiffOnly Mode = iota
	// Full emits a record for every desired node and edge.
	Full
)

func (m Mode) String() string {
	if m == Full {
		return "full"
	}
	return "diff"
}

// ParseMode parses "diff" or "full". The empty string selects DiffOnly.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "diff":
		return DiffOnly, nil
	case "full":
		return Full, nil
	}
	return DiffOnly, fmt.Errorf("unknown report mode %q", s)
}

// Record describes the comparison of one desired node or edge with its live
// counterpart.
type Record struct {
	Point    interfaces.Point   `json:"point"`
	Vector   *interfaces.Vector `json:"vector,omitempty"`
	Chain    string             `json:"chain"`
	Contract string             `json:"contract"`

	// Config and State are JSON serializations of the desired config and the
	// normalized live config.
	Config string `json:"config"`
	State  string `json:"state,omitempty"`
	Diff   string `json:"diff,omitempty"`
	Err    error  `json:"-"`
}

// Mismatch reports whether the record shows a difference or an error.
func (r Record) Mismatch() bool {
	return r.Err != nil || r.Diff != ""
}

// MarshalJSON includes the error message.
func (r Record) MarshalJSON() ([]byte, error) {
	type plain Record
	out := struct {
		plain
		Error string `json:"error,omitempty"`
	}{plain: plain(r)}
	if r.Err != nil {
		out.Error = r.Err.Error()
	}
	return json.Marshal(out)
}

// UnmarshalJSON restores the error message into Err, so that archived records
// keep reporting their mismatch. Missing live state errors still match
// interfaces.ErrMissingLiveState.
func (r *Record) UnmarshalJSON(data []byte) error {
	type plain Record
	var in struct {
		plain
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*r = Record(in.plain)
	r.Err = restoreError(in.Error)
	return nil
}

func restoreError(msg string) error {
	if msg == "" {
		return nil
	}
	missing := interfaces.ErrMissingLiveState.Error()
	if prefix, ok := strings.CutSuffix(msg, ": "+missing); ok {
		return fmt.Errorf("%s: %w", prefix, interfaces.ErrMissingLiveState)
	}
	if msg == missing {
		return interfaces.ErrMissingLiveState
	}
	return errors.New(msg)
}

// Labeler names the chain and contract a point refers to.
type Labeler func(point interfaces.Point) (chain, contract string)

// DefaultLabeler labels points with their endpoint id and address.
func DefaultLabeler(point interfaces.Point) (string, string) {
	return point.EID.String(), point.Address.Hex()
}

func serialize(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%+v", v)
	}
	return string(data)
}

// Compare matches every desired node and edge against live and returns one
// record per entry that mode selects. Desired entries without a live
// counterpart are reported with interfaces.ErrMissingLiveState in both modes.
// Records follow the desired graph's order, nodes first.
func Compare[N, E any](desired, live *graph.Graph[N, E], mode Mode, labeler Labeler) []Record {
	if labeler == nil {
		labeler = DefaultLabeler
	}

	var records []Record
	emit := func(r Record) {
		if mode == Full || r.Mismatch() {
			records = append(records, r)
		}
	}

	for _, node := range desired.Nodes() {
		chain, contract := labeler(node.Point)
		r := Record{
			Point:    node.Point,
			Chain:    chain,
			Contract: contract,
			Config:   serialize(node.Config),
		}
		liveNode, ok := live.Node(node.Point)
		if !ok {
			r.Err = fmt.Errorf("node %s: %w", node.Point, interfaces.ErrMissingLiveState)
		} else {
			r.State = serialize(Normalize(node.Config, liveNode.Config))
			r.Diff = Diff(node.Config, liveNode.Config)
		}
		emit(r)
	}

	for _, edge := range desired.Edges() {
		vector := edge.Vector
		fromChain, contract := labeler(vector.From)
		toChain, _ := labeler(vector.To)
		r := Record{
			Point:    vector.From,
			Vector:   &vector,
			Chain:    fromChain + " -> " + toChain,
			Contract: contract,
			Config:   serialize(edge.Config),
		}
		liveEdge, ok := live.Edge(vector)
		if !ok {
			r.Err = fmt.Errorf("edge %s: %w", vector, interfaces.ErrMissingLiveState)
		} else {
			r.State = serialize(Normalize(edge.Config, liveEdge.Config))
			r.Diff = Diff(edge.Config, liveEdge.Config)
		}
		emit(r)
	}

	return records
}

// Mismatched returns the records showing a difference or an error.
func Mismatched(records []Record) []Record {
	var out []Record
	for _, r := range records {
		if r.Mismatch() {
			out = append(out, r)
		}
	}
	return out
}

// Prune returns the subgraph of desired whose live state differs from it.
// Entries missing from live are dropped; Compare reports them as errors.
func Prune[N, E any](desired, live *graph.Graph[N, E]) *graph.Graph[N, E] {
	return desired.Filter(
		func(n graph.Node[N]) bool {
			l, ok := live.Node(n.Point)
			return ok && !Equal(n.Config, l.Config)
		},
		func(e graph.Edge[E]) bool {
			l, ok := live.Edge(e.Vector)
			return ok && !Equal(e.Config, l.Config)
		},
	)
}
