// Package erc20 reconciles token allowances.
package erc20

import (
	"bytes"
	"context"
	"log/slog"
	"math/big"
	"slices"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ruteri/omnichain-configurator/configurator"
	"github.com/ruteri/omnichain-configurator/graph"
	"github.com/ruteri/omnichain-configurator/handles"
	"github.com/ruteri/omnichain-configurator/interfaces"
	"github.com/ruteri/omnichain-configurator/metrics"
	"github.com/ruteri/omnichain-configurator/parallel"
	"github.com/ruteri/omnichain-configurator/state"
)

// Domain names the token domain in logs and metrics.
const Domain = "erc20"

// Allowances maps owner to spender to amount.
type Allowances map[common.Address]map[common.Address]*big.Int

// NodeConfig is the configuration of one token contract.
type NodeConfig struct {
	Allowance Allowances `json:"allowance,omitempty"`
}

// EdgeConfig is unused; token topologies have no edges.
type EdgeConfig struct{}

// Graph is a token topology.
type Graph = graph.Graph[NodeConfig, EdgeConfig]

// Configurator configures tokens.
type Configurator = configurator.Configurator[NodeConfig, EdgeConfig, interfaces.ERC20]

func compareAddresses(a, b common.Address) int {
	return bytes.Compare(a[:], b[:])
}

// SortedAddresses returns the keys of m in ascending order.
func SortedAddresses[V any](m map[common.Address]V) []common.Address {
	keys := make([]common.Address, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareAddresses)
	return keys
}

func readAllowance(ctx context.Context, cache *state.Cache, handle interfaces.ERC20, point interfaces.Point, owner, spender common.Address) (*big.Int, error) {
	return state.Read(ctx, cache, state.Kind("allowance", owner.Hex(), spender.Hex()), point, func(ctx context.Context) (*big.Int, error) {
		return handle.Allowance(ctx, owner, spender)
	})
}

// ReadNode returns a reader loading the configured allowances.
func ReadNode(cache *state.Cache) state.NodeReader[NodeConfig, interfaces.ERC20] {
	return func(ctx context.Context, handle interfaces.ERC20, desired graph.Node[NodeConfig]) (NodeConfig, error) {
		var live NodeConfig
		if desired.Config.Allowance == nil {
			return live, nil
		}
		live.Allowance = make(Allowances, len(desired.Config.Allowance))
		for _, owner := range SortedAddresses(desired.Config.Allowance) {
			spenders := desired.Config.Allowance[owner]
			live.Allowance[owner] = make(map[common.Address]*big.Int, len(spenders))
			for _, spender := range SortedAddresses(spenders) {
				amount, err := readAllowance(ctx, cache, handle, desired.Point, owner, spender)
				if err != nil {
					return live, err
				}
				live.Allowance[owner][spender] = amount
			}
		}
		return live, nil
	}
}

// NewLoader creates a state loader for token topologies.
func NewLoader(factory handles.Factory[interfaces.ERC20], cache *state.Cache, opts parallel.Options, log *slog.Logger, m *metrics.Registry) *state.Loader[NodeConfig, EdgeConfig, interfaces.ERC20] {
	return &state.Loader[NodeConfig, EdgeConfig, interfaces.ERC20]{
		Factory:  factory,
		ReadNode: ReadNode(cache),
		Options:  opts,
		Domain:   Domain,
		Log:      log,
		Metrics:  m,
	}
}

// Configure approves every (owner, spender) pair whose live allowance differs
// from the desired amount. Each approval is signed by its owner.
func Configure(cache *state.Cache, opts ...configurator.Option) Configurator {
	opts = append([]configurator.Option{configurator.WithName("allowance")}, opts...)
	return configurator.ConfigureNodes(func(ctx context.Context, node graph.Node[NodeConfig], _ *Graph, handle interfaces.ERC20) ([]interfaces.Action, error) {
		var actions []interfaces.Action
		for _, owner := range SortedAddresses(node.Config.Allowance) {
			spenders := node.Config.Allowance[owner]
			for _, spender := range SortedAddresses(spenders) {
				desired := spenders[spender]
				if desired == nil {
					continue
				}
				current, err := readAllowance(ctx, cache, handle, node.Point, owner, spender)
				if err != nil {
					return nil, err
				}
				if current.Cmp(desired) == 0 {
					continue
				}
				action, err := handle.Approve(owner, spender, desired)
				if err != nil {
					return nil, err
				}
				actions = append(actions, action)
			}
		}
		return actions, nil
	}, opts...)
}
