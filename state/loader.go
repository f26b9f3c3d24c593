package state

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ruteri/omnichain-configurator/graph"
	"github.com/ruteri/omnichain-configurator/handles"
	"github.com/ruteri/omnichain-configurator/interfaces"
	"github.com/ruteri/omnichain-configurator/metrics"
	"github.com/ruteri/omnichain-configurator/parallel"
)

// NodeReader reads the live counterpart of a desired node. Only attributes
// present in the desired config need to be read.
type NodeReader[N, H any] func(ctx context.Context, handle H, desired graph.Node[N]) (N, error)

// EdgeReader reads the live counterpart of a desired edge from the handle of
// the edge's source point.
type EdgeReader[E, H any] func(ctx context.Context, handle H, desired graph.Edge[E]) (E, error)

// ErrNoEdgeReader is returned when a desired graph has edges but the loader
// has no EdgeReader.
var ErrNoEdgeReader = errors.New("desired graph has edges but no edge reader is configured")

// Loader builds live state graphs mirroring desired ones.
type Loader[N, E, H any] struct {
	Factory  handles.Factory[H]
	ReadNode NodeReader[N, H]
	ReadEdge EdgeReader[E, H]
	Options  parallel.Options

	// Domain labels logs and metrics.
	Domain  string
	Log     *slog.Logger
	Metrics *metrics.Registry
}

type loadItem[N, E any] struct {
	node *graph.Node[N]
	edge *graph.Edge[E]
}

func (it loadItem[N, E]) String() string {
	if it.node != nil {
		return it.node.Point.String()
	}
	return it.edge.Vector.String()
}

type loaded[N, E any] struct {
	node graph.Node[N]
	edge graph.Edge[E]
}

// LoadState reads the live state of every node and edge of desired. All reads
// fan out together under the loader's options.
//
// Under parallel.FailFast the first failure aborts the load. Under
// parallel.Collect the returned graph omits the entries that failed and the
// error is a *parallel.PartialFailure describing them.
func (l *Loader[N, E, H]) LoadState(ctx context.Context, desired *graph.Graph[N, E]) (*graph.Graph[N, E], error) {
	nodes, edges := desired.Nodes(), desired.Edges()
	if len(edges) > 0 && l.ReadEdge == nil {
		return nil, ErrNoEdgeReader
	}

	log := l.log()
	start := time.Now()
	defer func() { l.Metrics.ObserveLoad(l.Domain, time.Since(start)) }()

	items := make([]loadItem[N, E], 0, len(nodes)+len(edges))
	for i := range nodes {
		items = append(items, loadItem[N, E]{node: &nodes[i]})
	}
	for i := range edges {
		items = append(items, loadItem[N, E]{edge: &edges[i]})
	}

	results, err := parallel.Map(ctx, items, l.Options, func(ctx context.Context, it loadItem[N, E]) (loaded[N, E], error) {
		var out loaded[N, E]
		if it.node != nil {
			handle, err := l.Factory.Resolve(ctx, it.node.Point)
			l.Metrics.RecordResolution(err)
			if err != nil {
				return out, err
			}
			cfg, err := l.ReadNode(ctx, handle, *it.node)
			if err != nil {
				return out, fmt.Errorf("reading node %s: %w", it.node.Point, err)
			}
			out.node = graph.Node[N]{Point: it.node.Point, Config: cfg}
			return out, nil
		}

		handle, err := l.Factory.Resolve(ctx, it.edge.Vector.From)
		l.Metrics.RecordResolution(err)
		if err != nil {
			return out, err
		}
		cfg, err := l.ReadEdge(ctx, handle, *it.edge)
		if err != nil {
			return out, fmt.Errorf("reading edge %s: %w", it.edge.Vector, err)
		}
		out.edge = graph.Edge[E]{Vector: it.edge.Vector, Config: cfg}
		return out, nil
	})

	var partial *parallel.PartialFailure
	if err != nil && !errors.As(err, &partial) {
		log.Error("Failed to load live state", "err", err)
		return nil, err
	}

	liveNodes := make([]graph.Node[N], 0, len(nodes))
	liveEdges := make([]graph.Edge[E], 0, len(edges))
	for i, r := range results {
		if r.Err != nil {
			log.Warn("Omitting entry from live state", slog.String("entry", items[i].String()), "err", r.Err)
			continue
		}
		if items[i].node != nil {
			liveNodes = append(liveNodes, r.Value.node)
		} else {
			liveEdges = append(liveEdges, r.Value.edge)
		}
	}

	live, buildErr := graph.Build(liveNodes, liveEdges)
	if buildErr != nil {
		return nil, buildErr
	}

	log.Debug("Loaded live state",
		slog.Int("nodes", len(liveNodes)),
		slog.Int("edges", len(liveEdges)),
		slog.Duration("took", time.Since(start)))

	if partial != nil {
		return live, partial
	}
	return live, nil
}

func (l *Loader[N, E, H]) log() *slog.Logger {
	log := l.Log
	if log == nil {
		log = slog.Default()
	}
	if l.Domain != "" {
		log = log.With(slog.String("domain", l.Domain))
	}
	return log
}

// FailedPoints returns the points whose reads failed in err, when err carries
// *interfaces.EndpointUnavailableError values.
func FailedPoints(err error) []interfaces.Point {
	var points []interfaces.Point
	var collect func(error)
	collect = func(err error) {
		switch e := err.(type) {
		case *interfaces.EndpointUnavailableError:
			points = append(points, e.Point)
		case interface{ Unwrap() []error }:
			for _, inner := range e.Unwrap() {
				collect(inner)
			}
		case interface{ Unwrap() error }:
			collect(e.Unwrap())
		}
	}
	if err != nil {
		collect(err)
	}
	return points
}
