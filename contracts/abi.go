// Package contracts holds the ABI of the configurable contract surface and
// helpers to encode and decode calldata against it.
package contracts

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// ConfigurableABIJSON describes every getter and setter the engine reads or
// proposes. A concrete contract implements the subset matching its domain.
const ConfigurableABIJSON = `[
	{"type":"function","name":"owner","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"transferOwnership","stateMutability":"nonpayable","inputs":[{"name":"newOwner","type":"address"}],"outputs":[]},

	{"type":"function","name":"delegate","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"setDelegate","stateMutability":"nonpayable","inputs":[{"name":"delegate","type":"address"}],"outputs":[]},

	{"type":"function","name":"peers","stateMutability":"view","inputs":[{"name":"eid","type":"uint32"}],"outputs":[{"name":"","type":"bytes32"}]},
	{"type":"function","name":"setPeer","stateMutability":"nonpayable","inputs":[{"name":"eid","type":"uint32"},{"name":"peer","type":"bytes32"}],"outputs":[]},

	{"type":"function","name":"enforcedGasLimit","stateMutability":"view","inputs":[{"name":"eid","type":"uint32"}],"outputs":[{"name":"","type":"uint128"}]},
	{"type":"function","name":"setEnforcedGasLimit","stateMutability":"nonpayable","inputs":[{"name":"eid","type":"uint32"},{"name":"gasLimit","type":"uint128"}],"outputs":[]},

	{"type":"function","name":"allowance","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"approve","stateMutability":"nonpayable","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},

	{"type":"function","name":"allocPoints","stateMutability":"view","inputs":[{"name":"rewardToken","type":"address"},{"name":"stakingToken","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"setAllocPoints","stateMutability":"nonpayable","inputs":[{"name":"rewardToken","type":"address"},{"name":"stakingTokens","type":"address[]"},{"name":"allocPoints","type":"uint256[]"}],"outputs":[]}
]`

// ConfigurableABI is the parsed form of ConfigurableABIJSON.
var ConfigurableABI abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(ConfigurableABIJSON))
	if err != nil {
		panic(fmt.Sprintf("contracts: invalid ABI: %v", err))
	}
	ConfigurableABI = parsed
}

// ErrUnknownSelector is returned when calldata does not match any method of the ABI.
var ErrUnknownSelector = errors.New("unknown method selector")

// Pack encodes a call to method with args.
func Pack(method string, args ...any) ([]byte, error) {
	data, err := ConfigurableABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", method, err)
	}
	return data, nil
}

// UnpackOutput decodes the single return value of method into T.
func UnpackOutput[T any](method string, output []byte) (T, error) {
	var zero T
	values, err := ConfigurableABI.Unpack(method, output)
	if err != nil {
		return zero, fmt.Errorf("failed to unpack %s: %w", method, err)
	}
	if len(values) != 1 {
		return zero, fmt.Errorf("failed to unpack %s: expected 1 value, got %d", method, len(values))
	}
	v, ok := abi.ConvertType(values[0], new(T)).(*T)
	if !ok {
		return zero, fmt.Errorf("failed to unpack %s: unexpected type %T", method, values[0])
	}
	return *v, nil
}

// Call is decoded calldata.
type Call struct {
	Method *abi.Method
	Args   []any
}

// DecodeCall decodes calldata into its method and arguments.
func DecodeCall(data []byte) (*Call, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("%w: calldata too short", ErrUnknownSelector)
	}
	method, err := ConfigurableABI.MethodById(data[:4])
	if err != nil {
		return nil, fmt.Errorf("%w: %x", ErrUnknownSelector, data[:4])
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, fmt.Errorf("failed to unpack arguments of %s: %w", method.Name, err)
	}
	return &Call{Method: method, Args: args}, nil
}

// PackOutput encodes the return values of method.
func PackOutput(method *abi.Method, values ...any) ([]byte, error) {
	out, err := method.Outputs.Pack(values...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack output of %s: %w", method.Name, err)
	}
	return out, nil
}
