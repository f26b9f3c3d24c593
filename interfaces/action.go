package interfaces

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Action describes one state-changing call that would bring an endpoint in line
// with its desired configuration. Actions are produced by configurators and are
// never executed by the core.
type Action struct {
	// Point is the contract the action targets.
	Point Point `json:"point"`

	// Data is the opaque payload, ABI calldata for EVM endpoints.
	Data hexutil.Bytes `json:"data"`

	// Description is a human readable summary of the change.
	Description string `json:"description"`

	// Signer is the account that has to send the action. Nil means whoever
	// administers the target endpoint.
	Signer *common.Address `json:"signer,omitempty"`
}

// Executor signs and submits actions. It is an external collaborator of the
// reconciliation engine.
type Executor interface {
	Execute(ctx context.Context, actions []Action) error
}
