package erc20_test

import (
	"context"
	"io"
	"log/slog"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ruteri/omnichain-configurator/configurator"
	"github.com/ruteri/omnichain-configurator/diff"
	"github.com/ruteri/omnichain-configurator/domains/erc20"
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
	tokenAddr = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	ownerX    = common.HexToAddress("0x0000000000000000000000000000000000000011")
	ownerW    = common.HexToAddress("0x0000000000000000000000000000000000000010")
	spenderY  = common.HexToAddress("0x0000000000000000000000000000000000000022")
	spenderZ  = common.HexToAddress("0x0000000000000000000000000000000000000023")
)

var log = slog.New(slog.NewTextHandler(io.Discard, nil))

func plan(t *testing.T, network *memory.Network, desired *erc20.Graph) []interfaces.Action {
	t.Helper()
	ctx := context.Background()

	session := evm.NewSession(network.Dial, log)
	defer session.Close()
	factory := handles.Narrow[interfaces.Endpoint, interfaces.ERC20](handles.Memoize[interfaces.Endpoint](handles.ResolverFunc[interfaces.Endpoint](session.Resolve)))
	cache := state.NewCache(nil)

	live, err := erc20.NewLoader(factory, cache, parallel.Options{Limit: 2}, log, nil).LoadState(ctx, desired)
	require.NoError(t, err)

	actions, err := erc20.Configure(cache, configurator.WithLogger(log))(ctx, diff.Prune(desired, live), factory)
	require.NoError(t, err)
	return actions
}

func TestAllowanceScenario(t *testing.T) {
	chain := memory.NewChain(1)
	contract := memory.NewContract(ownerX)
	contract.Allowances[ownerX] = map[common.Address]*big.Int{spenderY: big.NewInt(40)}
	point := chain.Deploy(tokenAddr, contract)
	network := memory.NewNetwork(chain)

	desired, err := graph.Build[erc20.NodeConfig, erc20.EdgeConfig]([]graph.Node[erc20.NodeConfig]{{
		Point:  point,
		Config: erc20.NodeConfig{Allowance: erc20.Allowances{ownerX: {spenderY: big.NewInt(100)}}},
	}}, nil)
	require.NoError(t, err)

	actions := plan(t, network, desired)
	require.Len(t, actions, 1)
	assert.Equal(t, point, actions[0].Point)
	require.NotNil(t, actions[0].Signer)
	assert.Equal(t, ownerX, *actions[0].Signer)
	assert.Contains(t, actions[0].Description, "to 100")

	require.NoError(t, network.Execute(context.Background(), actions))
	assert.Empty(t, plan(t, network, desired))
}

func TestApprovalsAreOrderedByAddress(t *testing.T) {
	chain := memory.NewChain(1)
	point := chain.Deploy(tokenAddr, memory.NewContract(ownerX))
	network := memory.NewNetwork(chain)

	desired, err := graph.Build[erc20.NodeConfig, erc20.EdgeConfig]([]graph.Node[erc20.NodeConfig]{{
		Point: point,
		Config: erc20.NodeConfig{Allowance: erc20.Allowances{
			ownerX: {spenderZ: big.NewInt(2), spenderY: big.NewInt(1)},
			ownerW: {spenderY: big.NewInt(3)},
		}},
	}}, nil)
	require.NoError(t, err)

	actions := plan(t, network, desired)
	require.Len(t, actions, 3)
	signers := []common.Address{*actions[0].Signer, *actions[1].Signer, *actions[2].Signer}
	assert.Equal(t, []common.Address{ownerW, ownerX, ownerX}, signers)
	assert.Contains(t, actions[1].Description, spenderY.Hex())
	assert.Contains(t, actions[2].Description, spenderZ.Hex())
}

func TestAbsentAllowanceIsNotRead(t *testing.T) {
	chain := memory.NewChain(1)
	contract := memory.NewContract(ownerX)
	contract.Allowances[ownerX] = map[common.Address]*big.Int{spenderY: big.NewInt(40)}
	point := chain.Deploy(tokenAddr, contract)
	network := memory.NewNetwork(chain)

	desired, err := graph.Build[erc20.NodeConfig, erc20.EdgeConfig]([]graph.Node[erc20.NodeConfig]{{Point: point}}, nil)
	require.NoError(t, err)

	assert.Empty(t, plan(t, network, desired))
	assert.Zero(t, chain.Reads())
}
