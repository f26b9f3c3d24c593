package interfaces

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Ownable is implemented by handles of contracts with a single owner.
type Ownable interface {
	// Owner reads the current owner.
	Owner(ctx context.Context) (common.Address, error)

	// TransferOwnership produces an action handing ownership to newOwner.
	TransferOwnership(newOwner common.Address) (Action, error)
}

// Delegatable is implemented by messaging contracts that allow a delegate to
// manage their messaging configuration.
type Delegatable interface {
	// Delegate reads the current delegate.
	Delegate(ctx context.Context) (common.Address, error)

	// SetDelegate produces an action setting the delegate. The zero address
	// revokes the delegate.
	SetDelegate(delegate common.Address) (Action, error)
}

// Peerable is implemented by messaging contracts wired to peers on other endpoints.
type Peerable interface {
	// Peer reads the peer configured for eid.
	Peer(ctx context.Context, eid EndpointID) (common.Hash, error)

	// SetPeer produces an action setting the peer for eid.
	SetPeer(eid EndpointID, peer common.Hash) (Action, error)

	// EnforcedGasLimit reads the gas limit enforced on messages sent to eid.
	EnforcedGasLimit(ctx context.Context, eid EndpointID) (*big.Int, error)

	// SetEnforcedGasLimit produces an action setting the gas limit enforced for eid.
	SetEnforcedGasLimit(eid EndpointID, gas *big.Int) (Action, error)
}

// OApp combines the capabilities of a cross-chain messaging application.
type OApp interface {
	Ownable
	Delegatable
	Peerable
}

// ERC20 is implemented by handles of fungible token contracts.
type ERC20 interface {
	// Allowance reads how much spender may transfer on behalf of owner.
	Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error)

	// Approve produces an action, signed by owner, setting the allowance of spender.
	Approve(owner, spender common.Address, amount *big.Int) (Action, error)
}

// Rewarder is implemented by reward distributor contracts.
type Rewarder interface {
	// AllocPoints reads the allocation of rewardToken emissions to stakingToken.
	AllocPoints(ctx context.Context, rewardToken, stakingToken common.Address) (*big.Int, error)

	// SetAllocPoints produces an action replacing every allocation of rewardToken.
	SetAllocPoints(rewardToken common.Address, stakingTokens []common.Address, points []*big.Int) (Action, error)
}

// Endpoint is a handle implementing every capability known to the engine.
// Concrete handles are narrowed to the capability a configurator needs.
type Endpoint interface {
	Point() Point
	OApp
	ERC20
	Rewarder
}
