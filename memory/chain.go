// Package memory provides an in-memory implementation of configurable
// contracts for testing and dry runs without a blockchain connection.
//
// A Chain answers eth_call style reads by decoding calldata against the
// configurable ABI, and applies interfaces.Action payloads to its state. Used
// through evm.Handle it behaves like a deployed contract.
package memory

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ruteri/omnichain-configurator/contracts"
	"github.com/ruteri/omnichain-configurator/interfaces"
)

var (
	// ErrNotOwner is returned when a restricted action is signed by someone other than the owner.
	ErrNotOwner = errors.New("caller is not the owner")

	// ErrNoContract is returned when an action targets an address with no contract.
	ErrNoContract = errors.New("no contract at address")
)

// Contract holds the state of one configurable contract.
type Contract struct {
	Owner            common.Address
	Delegate         common.Address
	Peers            map[uint32]common.Hash
	EnforcedGasLimit map[uint32]*big.Int
	Allowances       map[common.Address]map[common.Address]*big.Int
	AllocPoints      map[common.Address]map[common.Address]*big.Int
}

// NewContract creates an empty contract owned by owner.
func NewContract(owner common.Address) *Contract {
	return &Contract{
		Owner:            owner,
		Peers:            make(map[uint32]common.Hash),
		EnforcedGasLimit: make(map[uint32]*big.Int),
		Allowances:       make(map[common.Address]map[common.Address]*big.Int),
		AllocPoints:      make(map[common.Address]map[common.Address]*big.Int),
	}
}

func lookup(m map[common.Address]map[common.Address]*big.Int, a, b common.Address) *big.Int {
	if v, ok := m[a][b]; ok {
		return new(big.Int).Set(v)
	}
	return new(big.Int)
}

func store(m map[common.Address]map[common.Address]*big.Int, a, b common.Address, v *big.Int) {
	if m[a] == nil {
		m[a] = make(map[common.Address]*big.Int)
	}
	m[a][b] = new(big.Int).Set(v)
}

// Chain simulates one endpoint with any number of deployed contracts.
type Chain struct {
	mutex     sync.RWMutex
	eid       interfaces.EndpointID
	contracts map[common.Address]*Contract
	reads     int
}

// NewChain creates an empty chain for eid.
func NewChain(eid interfaces.EndpointID) *Chain {
	return &Chain{
		eid:       eid,
		contracts: make(map[common.Address]*Contract),
	}
}

// EID returns the endpoint id of the chain.
func (c *Chain) EID() interfaces.EndpointID {
	return c.eid
}

// Deploy places contract at address and returns its point.
func (c *Chain) Deploy(address common.Address, contract *Contract) interfaces.Point {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if contract.Peers == nil {
		contract.Peers = make(map[uint32]common.Hash)
	}
	if contract.EnforcedGasLimit == nil {
		contract.EnforcedGasLimit = make(map[uint32]*big.Int)
	}
	if contract.Allowances == nil {
		contract.Allowances = make(map[common.Address]map[common.Address]*big.Int)
	}
	if contract.AllocPoints == nil {
		contract.AllocPoints = make(map[common.Address]map[common.Address]*big.Int)
	}
	c.contracts[address] = contract
	return interfaces.Point{EID: c.eid, Address: address}
}

// Contract returns the contract at address. The returned value must not be
// modified while the chain is in use.
func (c *Chain) Contract(address common.Address) (*Contract, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	contract, ok := c.contracts[address]
	return contract, ok
}

// Reads returns the number of calls served by the chain.
func (c *Chain) Reads() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.reads
}

// CallContract answers a read-only call. Calls to addresses without a contract
// return no data, like an EVM node does.
func (c *Chain) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	if msg.To == nil {
		return nil, errors.New("call without target")
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.reads++

	contract, ok := c.contracts[*msg.To]
	if !ok {
		return nil, nil
	}

	decoded, err := contracts.DecodeCall(msg.Data)
	if err != nil {
		return nil, err
	}
	args := decoded.Args

	var result any
	switch decoded.Method.Name {
	case "owner":
		result = contract.Owner
	case "delegate":
		result = contract.Delegate
	case "peers":
		result = [32]byte(contract.Peers[args[0].(uint32)])
	case "enforcedGasLimit":
		gas, ok := contract.EnforcedGasLimit[args[0].(uint32)]
		if !ok {
			gas = new(big.Int)
		}
		result = gas
	case "allowance":
		result = lookup(contract.Allowances, args[0].(common.Address), args[1].(common.Address))
	case "allocPoints":
		result = lookup(contract.AllocPoints, args[0].(common.Address), args[1].(common.Address))
	default:
		return nil, fmt.Errorf("execution reverted: %s is not a view function", decoded.Method.Name)
	}

	return contracts.PackOutput(decoded.Method, result)
}

// Close implements evm.Provider.
func (c *Chain) Close() {}

// Apply executes one action against the chain.
func (c *Chain) Apply(action interfaces.Action) error {
	if action.Point.EID != c.eid {
		return fmt.Errorf("action for eid %d applied to chain %d", action.Point.EID, c.eid)
	}

	decoded, err := contracts.DecodeCall(action.Data)
	if err != nil {
		return err
	}
	args := decoded.Args

	c.mutex.Lock()
	defer c.mutex.Unlock()

	contract, ok := c.contracts[action.Point.Address]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoContract, action.Point)
	}

	onlyOwner := func() error {
		if action.Signer != nil && *action.Signer != contract.Owner {
			return fmt.Errorf("%s: %w", decoded.Method.Name, ErrNotOwner)
		}
		return nil
	}

	switch decoded.Method.Name {
	case "transferOwnership":
		if err := onlyOwner(); err != nil {
			return err
		}
		contract.Owner = args[0].(common.Address)
	case "setDelegate":
		if err := onlyOwner(); err != nil {
			return err
		}
		contract.Delegate = args[0].(common.Address)
	case "setPeer":
		if err := onlyOwner(); err != nil {
			return err
		}
		contract.Peers[args[0].(uint32)] = common.Hash(args[1].([32]byte))
	case "setEnforcedGasLimit":
		if err := onlyOwner(); err != nil {
			return err
		}
		contract.EnforcedGasLimit[args[0].(uint32)] = new(big.Int).Set(args[1].(*big.Int))
	case "approve":
		if action.Signer == nil {
			return errors.New("approve: action has no signer")
		}
		store(contract.Allowances, *action.Signer, args[0].(common.Address), args[1].(*big.Int))
	case "setAllocPoints":
		if err := onlyOwner(); err != nil {
			return err
		}
		token := args[0].(common.Address)
		stakes := args[1].([]common.Address)
		points := args[2].([]*big.Int)
		if len(stakes) != len(points) {
			return errors.New("setAllocPoints: length mismatch")
		}
		contract.AllocPoints[token] = make(map[common.Address]*big.Int, len(stakes))
		for i, stake := range stakes {
			store(contract.AllocPoints, token, stake, points[i])
		}
	default:
		return fmt.Errorf("execution reverted: %s is not a setter", decoded.Method.Name)
	}
	return nil
}
