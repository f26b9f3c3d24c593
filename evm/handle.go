// Package evm provides endpoint handles for contracts deployed on EVM chains.
//
// Handles read live attributes with eth_call and express mutations as
// interfaces.Action values carrying ABI calldata. They never sign or send
// transactions.
package evm

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ruteri/omnichain-configurator/contracts"
	"github.com/ruteri/omnichain-configurator/interfaces"
)

// ErrNoCode is returned when a call returns nothing because no contract is
// deployed at the target address.
var ErrNoCode = errors.New("no contract code at given address")

// Caller executes read-only contract calls. *ethclient.Client satisfies it.
type Caller interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Handle implements interfaces.Endpoint for one contract on one EVM chain.
type Handle struct {
	point  interfaces.Point
	caller Caller
}

var _ interfaces.Endpoint = (*Handle)(nil)

// NewHandle binds a handle to the contract at point using caller for reads.
func NewHandle(point interfaces.Point, caller Caller) *Handle {
	return &Handle{point: point, caller: caller}
}

// Point returns the contract the handle is bound to.
func (h *Handle) Point() interfaces.Point {
	return h.point
}

func call[T any](ctx context.Context, h *Handle, method string, args ...any) (T, error) {
	var zero T
	data, err := contracts.Pack(method, args...)
	if err != nil {
		return zero, err
	}

	to := h.point.Address
	out, err := h.caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return zero, fmt.Errorf("%s on %s: %w", method, h.point, err)
	}
	if len(out) == 0 {
		return zero, fmt.Errorf("%s on %s: %w", method, h.point, ErrNoCode)
	}
	return contracts.UnpackOutput[T](method, out)
}

func (h *Handle) action(description string, signer *common.Address, method string, args ...any) (interfaces.Action, error) {
	data, err := contracts.Pack(method, args...)
	if err != nil {
		return interfaces.Action{}, err
	}
	return interfaces.Action{
		Point:       h.point,
		Data:        data,
		Description: description,
		Signer:      signer,
	}, nil
}

// Owner reads owner().
func (h *Handle) Owner(ctx context.Context) (common.Address, error) {
	return call[common.Address](ctx, h, "owner")
}

// TransferOwnership encodes transferOwnership(newOwner).
func (h *Handle) TransferOwnership(newOwner common.Address) (interfaces.Action, error) {
	return h.action(fmt.Sprintf("Transfer ownership to %s", newOwner.Hex()), nil, "transferOwnership", newOwner)
}

// Delegate reads delegate().
func (h *Handle) Delegate(ctx context.Context) (common.Address, error) {
	return call[common.Address](ctx, h, "delegate")
}

// SetDelegate encodes setDelegate(delegate).
func (h *Handle) SetDelegate(delegate common.Address) (interfaces.Action, error) {
	description := fmt.Sprintf("Set delegate to %s", delegate.Hex())
	if delegate == (common.Address{}) {
		description = "Revoke delegate"
	}
	return h.action(description, nil, "setDelegate", delegate)
}

// Peer reads peers(eid).
func (h *Handle) Peer(ctx context.Context, eid interfaces.EndpointID) (common.Hash, error) {
	return call[common.Hash](ctx, h, "peers", uint32(eid))
}

// SetPeer encodes setPeer(eid, peer).
func (h *Handle) SetPeer(eid interfaces.EndpointID, peer common.Hash) (interfaces.Action, error) {
	return h.action(fmt.Sprintf("Set peer for eid %d to %s", eid, peer.Hex()), nil, "setPeer", uint32(eid), [32]byte(peer))
}

// EnforcedGasLimit reads enforcedGasLimit(eid).
func (h *Handle) EnforcedGasLimit(ctx context.Context, eid interfaces.EndpointID) (*big.Int, error) {
	return call[*big.Int](ctx, h, "enforcedGasLimit", uint32(eid))
}

// SetEnforcedGasLimit encodes setEnforcedGasLimit(eid, gas).
func (h *Handle) SetEnforcedGasLimit(eid interfaces.EndpointID, gas *big.Int) (interfaces.Action, error) {
	return h.action(fmt.Sprintf("Set enforced gas limit for eid %d to %s", eid, gas), nil, "setEnforcedGasLimit", uint32(eid), gas)
}

// Allowance reads allowance(owner, spender).
func (h *Handle) Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error) {
	return call[*big.Int](ctx, h, "allowance", owner, spender)
}

// Approve encodes approve(spender, amount), to be signed by owner.
func (h *Handle) Approve(owner, spender common.Address, amount *big.Int) (interfaces.Action, error) {
	return h.action(fmt.Sprintf("Set allowance of %s for spender %s to %s", owner.Hex(), spender.Hex(), amount), &owner, "approve", spender, amount)
}

// AllocPoints reads allocPoints(rewardToken, stakingToken).
func (h *Handle) AllocPoints(ctx context.Context, rewardToken, stakingToken common.Address) (*big.Int, error) {
	return call[*big.Int](ctx, h, "allocPoints", rewardToken, stakingToken)
}

// SetAllocPoints encodes setAllocPoints(rewardToken, stakingTokens, points).
func (h *Handle) SetAllocPoints(rewardToken common.Address, stakingTokens []common.Address, points []*big.Int) (interfaces.Action, error) {
	if len(stakingTokens) != len(points) {
		return interfaces.Action{}, fmt.Errorf("setAllocPoints: %d staking tokens but %d allocations", len(stakingTokens), len(points))
	}
	return h.action(fmt.Sprintf("Set %d allocations for reward token %s", len(points), rewardToken.Hex()), nil, "setAllocPoints", rewardToken, stakingTokens, points)
}
