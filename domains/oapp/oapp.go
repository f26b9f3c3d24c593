// Package oapp reconciles cross-chain messaging applications: their owner and
// delegate, and for every pathway the peer and the enforced gas limit.
package oapp

import (
	"context"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ruteri/omnichain-configurator/configurator"
	"github.com/ruteri/omnichain-configurator/domains/ownable"
	"github.com/ruteri/omnichain-configurator/graph"
	"github.com/ruteri/omnichain-configurator/handles"
	"github.com/ruteri/omnichain-configurator/interfaces"
	"github.com/ruteri/omnichain-configurator/metrics"
	"github.com/ruteri/omnichain-configurator/parallel"
	"github.com/ruteri/omnichain-configurator/state"
)

// Domain names the messaging domain in logs and metrics.
const Domain = "oapp"

// NodeConfig is the configuration of one messaging application. Nil fields
// are not configured.
type NodeConfig struct {
	Owner    *common.Address `json:"owner,omitempty"`
	Delegate *common.Address `json:"delegate,omitempty"`
}

// EdgeConfig is the configuration of the pathway from one application to its
// peer on another endpoint.
type EdgeConfig struct {
	Peer             *common.Hash `json:"peer,omitempty"`
	EnforcedGasLimit *big.Int     `json:"enforcedGasLimit,omitempty"`
}

// Graph is a messaging topology.
type Graph = graph.Graph[NodeConfig, EdgeConfig]

// Configurator configures messaging applications.
type Configurator = configurator.Configurator[NodeConfig, EdgeConfig, interfaces.OApp]

// PeerOf returns the peer value identifying point.
func PeerOf(point interfaces.Point) *common.Hash {
	peer := interfaces.AddressToBytes32(point.Address)
	return &peer
}

func readDelegate(ctx context.Context, cache *state.Cache, handle interfaces.OApp, point interfaces.Point) (common.Address, error) {
	return state.Read(ctx, cache, "delegate", point, handle.Delegate)
}

func readPeer(ctx context.Context, cache *state.Cache, handle interfaces.OApp, point interfaces.Point, eid interfaces.EndpointID) (common.Hash, error) {
	return state.Read(ctx, cache, state.Kind("peer", eid), point, func(ctx context.Context) (common.Hash, error) {
		return handle.Peer(ctx, eid)
	})
}

func readEnforcedGasLimit(ctx context.Context, cache *state.Cache, handle interfaces.OApp, point interfaces.Point, eid interfaces.EndpointID) (*big.Int, error) {
	return state.Read(ctx, cache, state.Kind("enforcedGasLimit", eid), point, func(ctx context.Context) (*big.Int, error) {
		return handle.EnforcedGasLimit(ctx, eid)
	})
}

// ReadNode returns a reader loading the configured node attributes.
func ReadNode(cache *state.Cache) state.NodeReader[NodeConfig, interfaces.OApp] {
	return func(ctx context.Context, handle interfaces.OApp, desired graph.Node[NodeConfig]) (NodeConfig, error) {
		var live NodeConfig
		if desired.Config.Owner != nil {
			owner, err := ownable.ReadOwner(ctx, cache, handle, desired.Point)
			if err != nil {
				return live, err
			}
			live.Owner = &owner
		}
		if desired.Config.Delegate != nil {
			delegate, err := readDelegate(ctx, cache, handle, desired.Point)
			if err != nil {
				return live, err
			}
			live.Delegate = &delegate
		}
		return live, nil
	}
}

// ReadEdge returns a reader loading the configured pathway attributes from
// the source application.
func ReadEdge(cache *state.Cache) state.EdgeReader[EdgeConfig, interfaces.OApp] {
	return func(ctx context.Context, handle interfaces.OApp, desired graph.Edge[EdgeConfig]) (EdgeConfig, error) {
		var live EdgeConfig
		from, eid := desired.Vector.From, desired.Vector.To.EID
		if desired.Config.Peer != nil {
			peer, err := readPeer(ctx, cache, handle, from, eid)
			if err != nil {
				return live, err
			}
			live.Peer = &peer
		}
		if desired.Config.EnforcedGasLimit != nil {
			gas, err := readEnforcedGasLimit(ctx, cache, handle, from, eid)
			if err != nil {
				return live, err
			}
			live.EnforcedGasLimit = gas
		}
		return live, nil
	}
}

// NewLoader creates a state loader for messaging topologies.
func NewLoader(factory handles.Factory[interfaces.OApp], cache *state.Cache, opts parallel.Options, log *slog.Logger, m *metrics.Registry) *state.Loader[NodeConfig, EdgeConfig, interfaces.OApp] {
	return &state.Loader[NodeConfig, EdgeConfig, interfaces.OApp]{
		Factory:  factory,
		ReadNode: ReadNode(cache),
		ReadEdge: ReadEdge(cache),
		Options:  opts,
		Domain:   Domain,
		Log:      log,
		Metrics:  m,
	}
}

// ConfigureDelegate sets the delegate of every application whose live
// delegate differs from the desired one.
func ConfigureDelegate(cache *state.Cache, opts ...configurator.Option) Configurator {
	opts = append([]configurator.Option{configurator.WithName("delegate")}, opts...)
	return configurator.ConfigureNodes(func(ctx context.Context, node graph.Node[NodeConfig], _ *Graph, handle interfaces.OApp) ([]interfaces.Action, error) {
		desired := node.Config.Delegate
		if desired == nil {
			return nil, nil
		}
		current, err := readDelegate(ctx, cache, handle, node.Point)
		if err != nil {
			return nil, err
		}
		if current == *desired {
			return nil, nil
		}
		action, err := handle.SetDelegate(*desired)
		if err != nil {
			return nil, err
		}
		return []interfaces.Action{action}, nil
	}, opts...)
}

// ConfigurePeers sets the peer of every pathway whose live peer differs from
// the desired one.
func ConfigurePeers(cache *state.Cache, opts ...configurator.Option) Configurator {
	opts = append([]configurator.Option{configurator.WithName("peers")}, opts...)
	return configurator.ConfigureEdges(func(ctx context.Context, edge graph.Edge[EdgeConfig], _ *Graph, handle interfaces.OApp) ([]interfaces.Action, error) {
		desired := edge.Config.Peer
		if desired == nil {
			return nil, nil
		}
		eid := edge.Vector.To.EID
		current, err := readPeer(ctx, cache, handle, edge.Vector.From, eid)
		if err != nil {
			return nil, err
		}
		if current == *desired {
			return nil, nil
		}
		action, err := handle.SetPeer(eid, *desired)
		if err != nil {
			return nil, err
		}
		return []interfaces.Action{action}, nil
	}, opts...)
}

// ConfigureEnforcedGasLimits sets the enforced gas limit of every pathway
// whose live limit differs from the desired one.
func ConfigureEnforcedGasLimits(cache *state.Cache, opts ...configurator.Option) Configurator {
	opts = append([]configurator.Option{configurator.WithName("enforcedGasLimit")}, opts...)
	return configurator.ConfigureEdges(func(ctx context.Context, edge graph.Edge[EdgeConfig], _ *Graph, handle interfaces.OApp) ([]interfaces.Action, error) {
		desired := edge.Config.EnforcedGasLimit
		if desired == nil {
			return nil, nil
		}
		eid := edge.Vector.To.EID
		current, err := readEnforcedGasLimit(ctx, cache, handle, edge.Vector.From, eid)
		if err != nil {
			return nil, err
		}
		if current.Cmp(desired) == 0 {
			return nil, nil
		}
		action, err := handle.SetEnforcedGasLimit(eid, desired)
		if err != nil {
			return nil, err
		}
		return []interfaces.Action{action}, nil
	}, opts...)
}

// Configure configures delegates, peers and enforced gas limits, and then
// transfers ownership. Ownership goes last since every other setter requires
// the current owner.
func Configure(cache *state.Cache, opts ...configurator.Option) Configurator {
	return configurator.ConfigureMultiple(
		ConfigureDelegate(cache, opts...),
		ConfigurePeers(cache, opts...),
		ConfigureEnforcedGasLimits(cache, opts...),
		ownable.ConfigureOwner[NodeConfig, EdgeConfig, interfaces.OApp](cache, func(c NodeConfig) *common.Address { return c.Owner }, opts...),
	)
}
