// Package schema parses the YAML topology describing every network and the
// desired configuration of the contracts deployed on them.
//
// Parsing is the validation boundary: a topology that parses is well typed,
// references only declared networks and converts into graphs without further
// checks beyond identity uniqueness.
//
//	networks:
//	  - name: ethereum
//	    eid: 30101
//	    rpc: https://eth.example.org
//	oapp:
//	  contracts:
//	    - name: token
//	      network: ethereum
//	      address: 0x...
//	      owner: 0x...
//	      delegate: 0x...
//	  connections:
//	    - from: {network: ethereum, contract: token}
//	      to: {network: arbitrum, contract: token}
//	      enforcedGasLimit: 200000
//	erc20:
//	  - name: usdc
//	    network: ethereum
//	    address: 0x...
//	    allowances:
//	      - {owner: 0x..., spender: 0x..., amount: "1000000"}
//	rewarder:
//	  - name: rewarder
//	    network: ethereum
//	    address: 0x...
//	    allocations:
//	      - {rewardToken: 0x..., stakingToken: 0x..., points: 50}
package schema

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-playground/validator/v10"
	"github.com/ruteri/omnichain-configurator/interfaces"
	"gopkg.in/yaml.v3"
)

// ErrInvalidTopology wraps every validation failure.
var ErrInvalidTopology = errors.New("invalid topology")

var validate = validator.New()

// Network is one blockchain network of the deployment.
type Network struct {
	Name string `yaml:"name" validate:"required"`
	EID  uint32 `yaml:"eid" validate:"required,gt=0"`
	RPC  string `yaml:"rpc" validate:"omitempty,url"`
}

// ContractRef names a contract by its network and contract name.
type ContractRef struct {
	Network  string `yaml:"network" validate:"required"`
	Contract string `yaml:"contract" validate:"required"`
}

// Contract locates one deployed contract.
type Contract struct {
	Name    string `yaml:"name" validate:"required"`
	Network string `yaml:"network" validate:"required"`
	Address string `yaml:"address" validate:"required,eth_addr"`
}

// OAppContract is a messaging application and its node configuration.
type OAppContract struct {
	Contract `yaml:",inline"`
	Owner    string `yaml:"owner" validate:"omitempty,eth_addr"`
	Delegate string `yaml:"delegate" validate:"omitempty,eth_addr"`
}

// OAppConnection is a pathway between two messaging applications.
type OAppConnection struct {
	From             ContractRef `yaml:"from" validate:"required"`
	To               ContractRef `yaml:"to" validate:"required"`
	SkipPeer         bool        `yaml:"skipPeer"`
	EnforcedGasLimit *BigInt     `yaml:"enforcedGasLimit"`
}

// OAppSection is the messaging topology.
type OAppSection struct {
	Contracts   []OAppContract   `yaml:"contracts" validate:"required,min=1,dive"`
	Connections []OAppConnection `yaml:"connections" validate:"dive"`
}

// Allowance is one desired ERC20 allowance.
type Allowance struct {
	Owner   string  `yaml:"owner" validate:"required,eth_addr"`
	Spender string  `yaml:"spender" validate:"required,eth_addr"`
	Amount  *BigInt `yaml:"amount" validate:"required"`
}

// ERC20Contract is a token and its allowances.
type ERC20Contract struct {
	Contract   `yaml:",inline"`
	Allowances []Allowance `yaml:"allowances" validate:"dive"`
}

// Allocation is the share of a reward token's emissions given to a staking token.
type Allocation struct {
	RewardToken  string  `yaml:"rewardToken" validate:"required,eth_addr"`
	StakingToken string  `yaml:"stakingToken" validate:"required,eth_addr"`
	Points       *BigInt `yaml:"points" validate:"required"`
}

// RewarderContract is a reward distributor and its allocations.
type RewarderContract struct {
	Contract    `yaml:",inline"`
	Owner       string       `yaml:"owner" validate:"omitempty,eth_addr"`
	Allocations []Allocation `yaml:"allocations" validate:"dive"`
}

// Topology is a parsed and validated topology file. Nil sections are not
// configured.
type Topology struct {
	Networks []Network          `yaml:"networks" validate:"required,min=1,dive"`
	OApp     *OAppSection       `yaml:"oapp"`
	ERC20    []ERC20Contract    `yaml:"erc20" validate:"omitempty,dive"`
	Rewarder []RewarderContract `yaml:"rewarder" validate:"omitempty,dive"`

	networks map[string]Network
}

// Load reads and parses the topology file at path.
func Load(path string) (*Topology, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read topology: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML topology. Unknown fields are rejected.
func Parse(data []byte) (*Topology, error) {
	var t Topology
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&t); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTopology, err)
	}

	if err := validate.Struct(&t); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTopology, formatValidationError(err))
	}

	if err := t.index(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTopology, err)
	}
	return &t, nil
}

func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	for _, e := range validationErrs {
		field := e.Namespace()
		switch e.Tag() {
		case "required":
			return fmt.Errorf("%s: field is required", field)
		case "eth_addr":
			return fmt.Errorf("%s: %q is not an address", field, e.Value())
		case "gt", "min":
			return fmt.Errorf("%s: must be at least %s", field, e.Param())
		case "url":
			return fmt.Errorf("%s: %q is not a URL", field, e.Value())
		default:
			return fmt.Errorf("%s: validation failed (%s)", field, e.Tag())
		}
	}
	return err
}

func (t *Topology) index() error {
	t.networks = make(map[string]Network, len(t.Networks))
	eids := make(map[uint32]string, len(t.Networks))
	for _, n := range t.Networks {
		if _, ok := t.networks[n.Name]; ok {
			return fmt.Errorf("network %q declared twice", n.Name)
		}
		if other, ok := eids[n.EID]; ok {
			return fmt.Errorf("networks %q and %q share eid %d", other, n.Name, n.EID)
		}
		t.networks[n.Name] = n
		eids[n.EID] = n.Name
	}

	names := make(map[ContractRef]bool)
	check := func(section string, c Contract) error {
		if _, ok := t.networks[c.Network]; !ok {
			return fmt.Errorf("%s contract %q: unknown network %q", section, c.Name, c.Network)
		}
		ref := ContractRef{Network: c.Network, Contract: section + "/" + c.Name}
		if names[ref] {
			return fmt.Errorf("%s contract %q declared twice on %q", section, c.Name, c.Network)
		}
		names[ref] = true
		return nil
	}

	if t.OApp != nil {
		for _, c := range t.OApp.Contracts {
			if err := check("oapp", c.Contract); err != nil {
				return err
			}
		}
		for _, conn := range t.OApp.Connections {
			for _, ref := range []ContractRef{conn.From, conn.To} {
				if !names[ContractRef{Network: ref.Network, Contract: "oapp/" + ref.Contract}] {
					return fmt.Errorf("oapp connection references unknown contract %q on %q", ref.Contract, ref.Network)
				}
			}
		}
	}
	for _, c := range t.ERC20 {
		if err := check("erc20", c.Contract); err != nil {
			return err
		}
		seen := make(map[[2]common.Address]bool, len(c.Allowances))
		for _, a := range c.Allowances {
			pair := [2]common.Address{common.HexToAddress(a.Owner), common.HexToAddress(a.Spender)}
			if seen[pair] {
				return fmt.Errorf("erc20 contract %q: allowance of %s for %s declared twice", c.Name, pair[0].Hex(), pair[1].Hex())
			}
			seen[pair] = true
		}
	}
	for _, c := range t.Rewarder {
		if err := check("rewarder", c.Contract); err != nil {
			return err
		}
		seen := make(map[[2]common.Address]bool, len(c.Allocations))
		for _, a := range c.Allocations {
			pair := [2]common.Address{common.HexToAddress(a.RewardToken), common.HexToAddress(a.StakingToken)}
			if seen[pair] {
				return fmt.Errorf("rewarder contract %q: allocation of %s to %s declared twice", c.Name, pair[0].Hex(), pair[1].Hex())
			}
			seen[pair] = true
		}
	}
	return nil
}

// EID returns the endpoint id of the named network.
func (t *Topology) EID(network string) (interfaces.EndpointID, bool) {
	n, ok := t.networks[network]
	return interfaces.EndpointID(n.EID), ok
}

// RPCs maps every network with an RPC URL to that URL.
func (t *Topology) RPCs() map[interfaces.EndpointID]string {
	rpcs := make(map[interfaces.EndpointID]string, len(t.Networks))
	for _, n := range t.Networks {
		if n.RPC != "" {
			rpcs[interfaces.EndpointID(n.EID)] = n.RPC
		}
	}
	return rpcs
}

// LogUnconfigured warns about every section absent from the topology.
func (t *Topology) LogUnconfigured(log *slog.Logger) {
	if t.OApp == nil {
		log.Warn("No oapp configuration, skipping messaging applications")
	}
	if t.ERC20 == nil {
		log.Warn("No erc20 configuration, skipping tokens")
	}
	if t.Rewarder == nil {
		log.Warn("No rewarder configuration, skipping reward distributors")
	}
}
