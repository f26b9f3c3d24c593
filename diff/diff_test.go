package diff

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/ruteri/omnichain-configurator/graph"
	"github.com/ruteri/omnichain-configurator/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nodeConfig struct {
	Owner    *common.Address                `json:"owner,omitempty"`
	Delegate *common.Address                `json:"delegate,omitempty"`
	Limits   map[string]*big.Int            `json:"limits,omitempty"`
	Nested   map[string]map[string]*big.Int `json:"nested,omitempty"`
}

func addr(b byte) *common.Address {
	a := common.BytesToAddress([]byte{b})
	return &a
}

func point(eid interfaces.EndpointID, b byte) interfaces.Point {
	return interfaces.Point{EID: eid, Address: common.BytesToAddress([]byte{b})}
}

func TestNormalizeMasksAbsentAttributes(t *testing.T) {
	desired := nodeConfig{
		Owner:  addr(1),
		Limits: map[string]*big.Int{"a": big.NewInt(1)},
	}
	live := nodeConfig{
		Owner:    addr(1),
		Delegate: addr(2),
		Limits:   map[string]*big.Int{"a": big.NewInt(1), "b": big.NewInt(2)},
		Nested:   map[string]map[string]*big.Int{"x": {"y": big.NewInt(3)}},
	}

	got := Normalize(desired, live)
	assert.Nil(t, got.Delegate)
	assert.Nil(t, got.Nested)
	assert.Len(t, got.Limits, 1)
	assert.True(t, Equal(desired, live))

	assert.NotNil(t, live.Delegate, "live is not modified")
	assert.Len(t, live.Limits, 2)
}

func TestNormalizeNestedMaps(t *testing.T) {
	desired := nodeConfig{Nested: map[string]map[string]*big.Int{"x": {"y": big.NewInt(3)}}}
	live := nodeConfig{Nested: map[string]map[string]*big.Int{
		"x": {"y": big.NewInt(3), "z": big.NewInt(4)},
		"w": {"y": big.NewInt(5)},
	}}

	assert.True(t, Equal(desired, live))

	live.Nested["x"]["y"] = big.NewInt(30)
	assert.False(t, Equal(desired, live))
	assert.Contains(t, Diff(desired, live), "30")
}

func TestEqualComparesBigIntsByValue(t *testing.T) {
	desired := nodeConfig{Limits: map[string]*big.Int{"a": big.NewInt(100)}}
	live := nodeConfig{Limits: map[string]*big.Int{"a": new(big.Int).SetUint64(100)}}
	assert.True(t, Equal(desired, live))
	assert.Empty(t, Diff(desired, live))

	live.Limits["a"] = big.NewInt(40)
	assert.False(t, Equal(desired, live))
}

func TestEqualMissingKeyIsMismatch(t *testing.T) {
	desired := nodeConfig{Limits: map[string]*big.Int{"a": big.NewInt(1)}}
	live := nodeConfig{Limits: map[string]*big.Int{}}
	assert.False(t, Equal(desired, live))
}

func TestEqualNilDesiredValueMatchesMissingKey(t *testing.T) {
	desired := nodeConfig{Limits: map[string]*big.Int{"a": nil, "b": big.NewInt(2)}}
	live := nodeConfig{Limits: map[string]*big.Int{"b": big.NewInt(2)}}
	assert.True(t, Equal(desired, live))
	assert.Empty(t, Diff(desired, live))

	live.Limits["a"] = big.NewInt(9)
	assert.True(t, Equal(desired, live))

	delete(live.Limits, "b")
	assert.False(t, Equal(desired, live))
}

func testGraphs(t *testing.T) (*graph.Graph[nodeConfig, nodeConfig], *graph.Graph[nodeConfig, nodeConfig]) {
	a, b, c := point(1, 1), point(2, 2), point(3, 3)
	ab := interfaces.Vector{From: a, To: b}

	desired, err := graph.Build(
		[]graph.Node[nodeConfig]{
			{Point: a, Config: nodeConfig{Owner: addr(1)}},
			{Point: b, Config: nodeConfig{Owner: addr(1)}},
			{Point: c, Config: nodeConfig{Owner: addr(1)}},
		},
		[]graph.Edge[nodeConfig]{{Vector: ab, Config: nodeConfig{Delegate: addr(7)}}},
	)
	require.NoError(t, err)

	live, err := graph.Build(
		[]graph.Node[nodeConfig]{
			{Point: a, Config: nodeConfig{Owner: addr(1), Delegate: addr(9)}},
			{Point: b, Config: nodeConfig{Owner: addr(2)}},
		},
		[]graph.Edge[nodeConfig]{{Vector: ab, Config: nodeConfig{Delegate: addr(7)}}},
	)
	require.NoError(t, err)
	return desired, live
}

func TestCompare(t *testing.T) {
	desired, live := testGraphs(t)

	full := Compare(desired, live, Full, nil)
	require.Len(t, full, 4)
	assert.False(t, full[0].Mismatch())
	assert.True(t, full[1].Mismatch())
	assert.ErrorIs(t, full[2].Err, interfaces.ErrMissingLiveState)
	require.NotNil(t, full[3].Vector)
	assert.Equal(t, "1 -> 2", full[3].Chain)
	assert.NotContains(t, full[0].State, "delegate", "state is normalized")

	diffOnly := Compare(desired, live, DiffOnly, nil)
	require.Len(t, diffOnly, 2)
	assert.Equal(t, point(2, 2), diffOnly[0].Point)
	assert.Equal(t, point(3, 3), diffOnly[1].Point)
	assert.Equal(t, diffOnly, Mismatched(full))
}

func TestPrune(t *testing.T) {
	desired, live := testGraphs(t)

	pruned := Prune(desired, live)
	assert.Equal(t, 1, pruned.Len())
	_, ok := pruned.Node(point(2, 2))
	assert.True(t, ok)
}

func TestRecordJSONIncludesError(t *testing.T) {
	desired, live := testGraphs(t)
	records := Compare(desired, live, DiffOnly, nil)

	data, err := json.Marshal(records)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"error":"node [3, `)
	assert.Contains(t, string(data), `"chain":"2"`)
}

func TestRecordJSONRoundTripKeepsError(t *testing.T) {
	desired, live := testGraphs(t)
	records := Compare(desired, live, Full, nil)

	data, err := json.Marshal(records)
	require.NoError(t, err)

	var decoded []Record
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded, len(records))

	for i := range records {
		assert.Equal(t, records[i].Mismatch(), decoded[i].Mismatch(), "record %d", i)
		assert.Equal(t, records[i].Point, decoded[i].Point)
	}
	require.Error(t, decoded[2].Err)
	assert.ErrorIs(t, decoded[2].Err, interfaces.ErrMissingLiveState)
	assert.Equal(t, records[2].Err.Error(), decoded[2].Err.Error())
	assert.NoError(t, decoded[0].Err)
	assert.Len(t, Mismatched(decoded), len(Mismatched(records)))
}

func TestRender(t *testing.T) {
	desired, live := testGraphs(t)

	out := Render(Compare(desired, live, Full, func(p interfaces.Point) (string, string) {
		return "chain-" + p.EID.String(), "oapp"
	}))
	assert.Contains(t, out, "chain-2")
	assert.Contains(t, out, "mismatch")
	assert.Contains(t, out, "2 of 4 entries differ")

	assert.Equal(t, "No differences\n", Render(nil))
}

func TestParseMode(t *testing.T) {
	for input, want := range map[string]Mode{"": DiffOnly, "diff": DiffOnly, "full": Full} {
		got, err := ParseMode(input)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseMode("partial")
	assert.Error(t, err)
}

func TestCompareSelfHasNoMismatches(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("a graph compared with itself has no mismatches", prop.ForAll(
		func(owners []uint8, limits []int64) bool {
			nodes := make([]graph.Node[nodeConfig], 0, len(owners))
			for i, o := range owners {
				cfg := nodeConfig{Owner: addr(o)}
				if i < len(limits) {
					cfg.Limits = map[string]*big.Int{"gas": big.NewInt(limits[i])}
				}
				nodes = append(nodes, graph.Node[nodeConfig]{Point: point(interfaces.EndpointID(i+1), o), Config: cfg})
			}
			g, err := graph.Build[nodeConfig, nodeConfig](nodes, nil)
			if err != nil {
				return false
			}
			return len(Compare(g, g, DiffOnly, nil)) == 0 && len(Compare(g, g, Full, nil)) == len(owners)
		},
		gen.SliceOf(gen.UInt8()),
		gen.SliceOf(gen.Int64()),
	))

	properties.TestingRun(t)
}
