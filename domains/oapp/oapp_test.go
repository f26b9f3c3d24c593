package oapp_test

import (
	"context"
	"io"
	"log/slog"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ruteri/omnichain-configurator/configurator"
	"github.com/ruteri/omnichain-configurator/diff"
	"github.com/ruteri/omnichain-configurator/domains/oapp"
	"github.com/ruteri/omnichain-configurator/evm"
	"github.com/ruteri/omnichain-configurator/graph"
	"github.com/ruteri/omnichain-configurator/handles"
	"github.com/ruteri/omnichain-configurator/interfaces"
	"github.com/ruteri/omnichain-configurator/memory"
	"github.com/ruteri/omnichain-configurator/parallel"
	"github.com/ruteri/omnichain-configurator/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	deployer = common.HexToAddress("0x00000000000000000000000000000000000000d0")
	multisig = common.HexToAddress("0x00000000000000000000000000000000000000d1")
	delegate = common.HexToAddress("0x00000000000000000000000000000000000000d2")
	appAddr  = common.HexToAddress("0x000000000000000000000000000000000000a440")
)

var log = slog.New(slog.NewTextHandler(io.Discard, nil))

func ptr[T any](v T) *T { return &v }

type fixture struct {
	network *memory.Network
	a, b    interfaces.Point
}

func newFixture() *fixture {
	chainA, chainB := memory.NewChain(30101), memory.NewChain(30102)
	return &fixture{
		network: memory.NewNetwork(chainA, chainB),
		a:       chainA.Deploy(appAddr, memory.NewContract(deployer)),
		b:       chainB.Deploy(appAddr, memory.NewContract(deployer)),
	}
}

// plan runs one reconciliation pass with a fresh session and cache.
func (f *fixture) plan(t *testing.T, desired *oapp.Graph) ([]interfaces.Action, []diff.Record) {
	t.Helper()
	ctx := context.Background()

	session := evm.NewSession(f.network.Dial, log)
	defer session.Close()
	endpoints := handles.Memoize[interfaces.Endpoint](handles.ResolverFunc[interfaces.Endpoint](session.Resolve))
	factory := handles.Narrow[interfaces.Endpoint, interfaces.OApp](endpoints)
	cache := state.NewCache(nil)

	live, err := oapp.NewLoader(factory, cache, parallel.Options{}, log, nil).LoadState(ctx, desired)
	require.NoError(t, err)

	records := diff.Compare(desired, live, diff.DiffOnly, nil)
	actions, err := oapp.Configure(cache, configurator.WithLogger(log))(ctx, diff.Prune(desired, live), factory)
	require.NoError(t, err)
	return actions, records
}

func descriptions(actions []interfaces.Action) []string {
	out := make([]string, 0, len(actions))
	for _, a := range actions {
		out = append(out, a.Description)
	}
	return out
}

func TestConfigureConvergesAndIsIdempotent(t *testing.T) {
	f := newFixture()
	ab := interfaces.Vector{From: f.a, To: f.b}
	ba := interfaces.Vector{From: f.b, To: f.a}

	desired, err := graph.Build(
		[]graph.Node[oapp.NodeConfig]{
			{Point: f.a, Config: oapp.NodeConfig{Owner: &multisig, Delegate: &delegate}},
			{Point: f.b, Config: oapp.NodeConfig{Delegate: &delegate}},
		},
		[]graph.Edge[oapp.EdgeConfig]{
			{Vector: ab, Config: oapp.EdgeConfig{Peer: oapp.PeerOf(f.b), EnforcedGasLimit: big.NewInt(200000)}},
			{Vector: ba, Config: oapp.EdgeConfig{Peer: oapp.PeerOf(f.a)}},
		},
	)
	require.NoError(t, err)

	actions, records := f.plan(t, desired)
	assert.Len(t, records, 4)
	require.Len(t, actions, 6)

	assert.Equal(t, []interfaces.Point{f.a, f.b, f.a, f.b, f.a, f.a}, []interfaces.Point{
		actions[0].Point, actions[1].Point, actions[2].Point, actions[3].Point, actions[4].Point, actions[5].Point,
	})
	assert.Contains(t, actions[0].Description, "Set delegate")
	assert.Contains(t, actions[2].Description, "Set peer for eid 30102")
	assert.Contains(t, actions[4].Description, "Set enforced gas limit for eid 30102 to 200000")
	assert.Contains(t, actions[5].Description, "Transfer ownership", "ownership is transferred last")

	require.NoError(t, f.network.Execute(context.Background(), actions))

	actions, records = f.plan(t, desired)
	assert.Empty(t, actions, "second pass must be a no-op, got %v", descriptions(actions))
	assert.Empty(t, records)
}

func TestAbsentOptionalFieldsProduceNoActions(t *testing.T) {
	f := newFixture()
	chainA, _ := f.network.Chain(f.a.EID)
	contract, _ := chainA.Contract(f.a.Address)
	contract.Delegate = common.HexToAddress("0xdead")
	contract.EnforcedGasLimit[uint32(f.b.EID)] = big.NewInt(1)

	desired, err := graph.Build(
		[]graph.Node[oapp.NodeConfig]{{Point: f.a, Config: oapp.NodeConfig{Owner: &deployer}}},
		[]graph.Edge[oapp.EdgeConfig]{{Vector: interfaces.Vector{From: f.a, To: f.b}, Config: oapp.EdgeConfig{Peer: nil}}},
	)
	require.NoError(t, err)

	actions, records := f.plan(t, desired)
	assert.Empty(t, actions)
	assert.Empty(t, records)
}

func TestRevokeDelegate(t *testing.T) {
	f := newFixture()
	chainA, _ := f.network.Chain(f.a.EID)
	contract, _ := chainA.Contract(f.a.Address)
	contract.Delegate = delegate

	desired, err := graph.Build[oapp.NodeConfig, oapp.EdgeConfig](
		[]graph.Node[oapp.NodeConfig]{{Point: f.a, Config: oapp.NodeConfig{Delegate: ptr(common.Address{}), Owner: &multisig}}},
		nil,
	)
	require.NoError(t, err)

	actions, _ := f.plan(t, desired)
	require.Equal(t, []string{"Revoke delegate", "Transfer ownership to " + multisig.Hex()}, descriptions(actions))
}

func TestUnreachableEndpointIsolation(t *testing.T) {
	f := newFixture()
	f.network.SetUnreachable(f.b.EID, true)
	ctx := context.Background()

	desired, err := graph.Build[oapp.NodeConfig, oapp.EdgeConfig](
		[]graph.Node[oapp.NodeConfig]{
			{Point: f.a, Config: oapp.NodeConfig{Delegate: &delegate}},
			{Point: f.b, Config: oapp.NodeConfig{Delegate: &delegate}},
		},
		nil,
	)
	require.NoError(t, err)

	session := evm.NewSession(f.network.Dial, log)
	defer session.Close()
	factory := handles.Narrow[interfaces.Endpoint, interfaces.OApp](handles.Memoize[interfaces.Endpoint](handles.ResolverFunc[interfaces.Endpoint](session.Resolve)))
	cache := state.NewCache(nil)

	_, err = oapp.NewLoader(factory, cache, parallel.Options{}, log, nil).LoadState(ctx, desired)
	var unavailable *interfaces.EndpointUnavailableError
	require.ErrorAs(t, err, &unavailable)

	live, err := oapp.NewLoader(factory, cache, parallel.Options{Policy: parallel.Collect}, log, nil).LoadState(ctx, desired)
	var partial *parallel.PartialFailure
	require.ErrorAs(t, err, &partial)

	records := diff.Compare(desired, live, diff.DiffOnly, nil)
	require.Len(t, records, 2)
	assert.ErrorIs(t, records[1].Err, interfaces.ErrMissingLiveState)

	actions, err := oapp.Configure(cache, configurator.WithLogger(log))(ctx, diff.Prune(desired, live), factory)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, f.a, actions[0].Point)
}
