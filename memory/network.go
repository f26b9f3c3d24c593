package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ruteri/omnichain-configurator/evm"
	"github.com/ruteri/omnichain-configurator/interfaces"
)

// ErrUnreachable is returned when dialing a chain marked unreachable.
var ErrUnreachable = errors.New("endpoint unreachable")

// Network is a set of in-memory chains. It dials chains for evm sessions and
// executes actions, standing in for both the RPC layer and the executor.
type Network struct {
	mutex       sync.RWMutex
	chains      map[interfaces.EndpointID]*Chain
	unreachable map[interfaces.EndpointID]bool
	dials       int
}

var _ interfaces.Executor = (*Network)(nil)

// NewNetwork creates a network containing chains.
func NewNetwork(chains ...*Chain) *Network {
	n := &Network{
		chains:      make(map[interfaces.EndpointID]*Chain),
		unreachable: make(map[interfaces.EndpointID]bool),
	}
	for _, c := range chains {
		n.chains[c.EID()] = c
	}
	return n
}

// Chain returns the chain for eid.
func (n *Network) Chain(eid interfaces.EndpointID) (*Chain, bool) {
	n.mutex.RLock()
	defer n.mutex.RUnlock()

	c, ok := n.chains[eid]
	return c, ok
}

// SetUnreachable makes dialing eid fail.
func (n *Network) SetUnreachable(eid interfaces.EndpointID, unreachable bool) {
	n.mutex.Lock()
	defer n.mutex.Unlock()

	n.unreachable[eid] = unreachable
}

// Dials returns how many times a chain was dialed.
func (n *Network) Dials() int {
	n.mutex.RLock()
	defer n.mutex.RUnlock()
	return n.dials
}

// Dial implements evm.DialFunc.
func (n *Network) Dial(ctx context.Context, eid interfaces.EndpointID) (evm.Provider, error) {
	n.mutex.Lock()
	defer n.mutex.Unlock()

	n.dials++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if n.unreachable[eid] {
		return nil, fmt.Errorf("eid %d: %w", eid, ErrUnreachable)
	}
	c, ok := n.chains[eid]
	if !ok {
		return nil, fmt.Errorf("eid %d: no such chain", eid)
	}
	return c, nil
}

// Execute applies actions in order, stopping at the first failure.
func (n *Network) Execute(ctx context.Context, actions []interfaces.Action) error {
	for i, action := range actions {
		if err := ctx.Err(); err != nil {
			return err
		}
		c, ok := n.Chain(action.Point.EID)
		if !ok {
			return fmt.Errorf("action %d: eid %d: no such chain", i, action.Point.EID)
		}
		if err := c.Apply(action); err != nil {
			return fmt.Errorf("action %d (%s): %w", i, action.Description, err)
		}
	}
	return nil
}
