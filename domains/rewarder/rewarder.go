// Package rewarder reconciles the emission allocations of reward distributors.
//
// Allocations of one reward token are always written together: whenever any
// staking token's allocation differs, a single action rewrites the whole map
// of that reward token.
package rewarder

import (
	"context"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ruteri/omnichain-configurator/configurator"
	"github.com/ruteri/omnichain-configurator/domains/erc20"
	"github.com/ruteri/omnichain-configurator/domains/ownable"
	"github.com/ruteri/omnichain-configurator/graph"
	"github.com/ruteri/omnichain-configurator/handles"
	"github.com/ruteri/omnichain-configurator/interfaces"
	"github.com/ruteri/omnichain-configurator/metrics"
	"github.com/ruteri/omnichain-configurator/parallel"
	"github.com/ruteri/omnichain-configurator/state"
)

// Domain names the rewarder domain in logs and metrics.
const Domain = "rewarder"

// Allocations maps reward token to staking token to allocation points.
type Allocations map[common.Address]map[common.Address]*big.Int

// NodeConfig is the configuration of one reward distributor.
type NodeConfig struct {
	Owner       *common.Address `json:"owner,omitempty"`
	Allocations Allocations     `json:"allocations,omitempty"`
}

// EdgeConfig is unused; rewarder topologies have no edges.
type EdgeConfig struct{}

// Graph is a rewarder topology.
type Graph = graph.Graph[NodeConfig, EdgeConfig]

// Handle is the capability set required to configure a rewarder.
type Handle interface {
	interfaces.Ownable
	interfaces.Rewarder
}

// Configurator configures reward distributors.
type Configurator = configurator.Configurator[NodeConfig, EdgeConfig, Handle]

func readAllocPoints(ctx context.Context, cache *state.Cache, handle interfaces.Rewarder, point interfaces.Point, rewardToken, stakingToken common.Address) (*big.Int, error) {
	return state.Read(ctx, cache, state.Kind("allocPoints", rewardToken.Hex(), stakingToken.Hex()), point, func(ctx context.Context) (*big.Int, error) {
		return handle.AllocPoints(ctx, rewardToken, stakingToken)
	})
}

// ReadNode returns a reader loading the configured owner and allocations.
func ReadNode(cache *state.Cache) state.NodeReader[NodeConfig, Handle] {
	return func(ctx context.Context, handle Handle, desired graph.Node[NodeConfig]) (NodeConfig, error) {
		var live NodeConfig
		if desired.Config.Owner != nil {
			owner, err := ownable.ReadOwner(ctx, cache, handle, desired.Point)
			if err != nil {
				return live, err
			}
			live.Owner = &owner
		}
		if desired.Config.Allocations == nil {
			return live, nil
		}
		live.Allocations = make(Allocations, len(desired.Config.Allocations))
		for _, token := range erc20.SortedAddresses(desired.Config.Allocations) {
			stakes := desired.Config.Allocations[token]
			live.Allocations[token] = make(map[common.Address]*big.Int, len(stakes))
			for _, stake := range erc20.SortedAddresses(stakes) {
				points, err := readAllocPoints(ctx, cache, handle, desired.Point, token, stake)
				if err != nil {
					return live, err
				}
				live.Allocations[token][stake] = points
			}
		}
		return live, nil
	}
}

// NewLoader creates a state loader for rewarder topologies.
func NewLoader(factory handles.Factory[Handle], cache *state.Cache, opts parallel.Options, log *slog.Logger, m *metrics.Registry) *state.Loader[NodeConfig, EdgeConfig, Handle] {
	return &state.Loader[NodeConfig, EdgeConfig, Handle]{
		Factory:  factory,
		ReadNode: ReadNode(cache),
		Options:  opts,
		Domain:   Domain,
		Log:      log,
		Metrics:  m,
	}
}

// ConfigureAllocations produces one setAllocPoints action for every reward
// token with at least one differing allocation. The action carries every
// desired allocation of that token.
func ConfigureAllocations(cache *state.Cache, opts ...configurator.Option) Configurator {
	opts = append([]configurator.Option{configurator.WithName("allocations")}, opts...)
	return configurator.ConfigureNodes(func(ctx context.Context, node graph.Node[NodeConfig], _ *Graph, handle Handle) ([]interfaces.Action, error) {
		var actions []interfaces.Action
		for _, token := range erc20.SortedAddresses(node.Config.Allocations) {
			stakes := node.Config.Allocations[token]

			var ordered []common.Address
			var points []*big.Int
			differs := false
			for _, stake := range erc20.SortedAddresses(stakes) {
				desired := stakes[stake]
				if desired == nil {
					continue
				}
				current, err := readAllocPoints(ctx, cache, handle, node.Point, token, stake)
				if err != nil {
					return nil, err
				}
				if current.Cmp(desired) != 0 {
					differs = true
				}
				ordered = append(ordered, stake)
				points = append(points, desired)
			}
			if !differs {
				continue
			}

			action, err := handle.SetAllocPoints(token, ordered, points)
			if err != nil {
				return nil, err
			}
			actions = append(actions, action)
		}
		return actions, nil
	}, opts...)
}

// Configure rewrites differing allocations and then transfers ownership.
func Configure(cache *state.Cache, opts ...configurator.Option) Configurator {
	return configurator.ConfigureMultiple(
		ConfigureAllocations(cache, opts...),
		ownable.ConfigureOwner[NodeConfig, EdgeConfig, Handle](cache, func(c NodeConfig) *common.Address { return c.Owner }, opts...),
	)
}
