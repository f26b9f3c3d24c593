// Package ownable reconciles the owner of single-owner contracts. It is shared
// by every domain whose contracts are ownable.
package ownable

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ruteri/omnichain-configurator/configurator"
	"github.com/ruteri/omnichain-configurator/graph"
	"github.com/ruteri/omnichain-configurator/interfaces"
	"github.com/ruteri/omnichain-configurator/state"
)

// ReadKind is the cache kind of owner reads.
const ReadKind = "owner"

// OwnerOf returns the desired owner stored in a node config. Nil means the
// owner is not configured.
type OwnerOf[N any] func(config N) *common.Address

// ReadOwner reads the owner of the contract at point through cache.
func ReadOwner(ctx context.Context, cache *state.Cache, handle interfaces.Ownable, point interfaces.Point) (common.Address, error) {
	return state.Read(ctx, cache, ReadKind, point, handle.Owner)
}

// ConfigureOwner builds a configurator transferring ownership of every node
// whose live owner differs from the desired one.
func ConfigureOwner[N, E any, H interfaces.Ownable](cache *state.Cache, ownerOf OwnerOf[N], opts ...configurator.Option) configurator.Configurator[N, E, H] {
	opts = append([]configurator.Option{configurator.WithName("owner")}, opts...)
	return configurator.ConfigureNodes(func(ctx context.Context, node graph.Node[N], _ *graph.Graph[N, E], handle H) ([]interfaces.Action, error) {
		desired := ownerOf(node.Config)
		if desired == nil {
			return nil, nil
		}
		current, err := ReadOwner(ctx, cache, handle, node.Point)
		if err != nil {
			return nil, err
		}
		if current == *desired {
			return nil, nil
		}
		action, err := handle.TransferOwnership(*desired)
		if err != nil {
			return nil, err
		}
		return []interfaces.Action{action}, nil
	}, opts...)
}
