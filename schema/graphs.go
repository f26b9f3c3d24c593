package schema

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ruteri/omnichain-configurator/diff"
	"github.com/ruteri/omnichain-configurator/domains/erc20"
	"github.com/ruteri/omnichain-configurator/domains/oapp"
	"github.com/ruteri/omnichain-configurator/domains/rewarder"
	"github.com/ruteri/omnichain-configurator/graph"
	"github.com/ruteri/omnichain-configurator/interfaces"
)

func optionalAddress(s string) *common.Address {
	if s == "" {
		return nil
	}
	addr := common.HexToAddress(s)
	return &addr
}

func (t *Topology) point(c Contract) interfaces.Point {
	eid, _ := t.EID(c.Network)
	return interfaces.Point{EID: eid, Address: common.HexToAddress(c.Address)}
}

func (t *Topology) oappPoint(ref ContractRef) interfaces.Point {
	for _, c := range t.OApp.Contracts {
		if c.Network == ref.Network && c.Name == ref.Contract {
			return t.point(c.Contract)
		}
	}
	return interfaces.Point{}
}

// OAppGraph builds the desired messaging graph. The peer of every connection
// is the address of its destination contract unless skipPeer is set. An absent
// oapp section yields an empty graph.
func (t *Topology) OAppGraph() (*oapp.Graph, error) {
	if t.OApp == nil {
		return graph.Empty[oapp.NodeConfig, oapp.EdgeConfig](), nil
	}

	nodes := make([]graph.Node[oapp.NodeConfig], 0, len(t.OApp.Contracts))
	for _, c := range t.OApp.Contracts {
		nodes = append(nodes, graph.Node[oapp.NodeConfig]{
			Point: t.point(c.Contract),
			Config: oapp.NodeConfig{
				Owner:    optionalAddress(c.Owner),
				Delegate: optionalAddress(c.Delegate),
			},
		})
	}

	edges := make([]graph.Edge[oapp.EdgeConfig], 0, len(t.OApp.Connections))
	for _, conn := range t.OApp.Connections {
		vector := interfaces.Vector{From: t.oappPoint(conn.From), To: t.oappPoint(conn.To)}
		cfg := oapp.EdgeConfig{EnforcedGasLimit: conn.EnforcedGasLimit.Value()}
		if !conn.SkipPeer {
			cfg.Peer = oapp.PeerOf(vector.To)
		}
		edges = append(edges, graph.Edge[oapp.EdgeConfig]{Vector: vector, Config: cfg})
	}

	return graph.Build(nodes, edges)
}

// ERC20Graph builds the desired token graph.
func (t *Topology) ERC20Graph() (*erc20.Graph, error) {
	nodes := make([]graph.Node[erc20.NodeConfig], 0, len(t.ERC20))
	for _, c := range t.ERC20 {
		var cfg erc20.NodeConfig
		if len(c.Allowances) > 0 {
			cfg.Allowance = make(erc20.Allowances)
			for _, a := range c.Allowances {
				owner := common.HexToAddress(a.Owner)
				if cfg.Allowance[owner] == nil {
					cfg.Allowance[owner] = make(map[common.Address]*big.Int)
				}
				cfg.Allowance[owner][common.HexToAddress(a.Spender)] = a.Amount.Value()
			}
		}
		nodes = append(nodes, graph.Node[erc20.NodeConfig]{Point: t.point(c.Contract), Config: cfg})
	}
	return graph.Build[erc20.NodeConfig, erc20.EdgeConfig](nodes, nil)
}

// RewarderGraph builds the desired rewarder graph.
func (t *Topology) RewarderGraph() (*rewarder.Graph, error) {
	nodes := make([]graph.Node[rewarder.NodeConfig], 0, len(t.Rewarder))
	for _, c := range t.Rewarder {
		cfg := rewarder.NodeConfig{Owner: optionalAddress(c.Owner)}
		if len(c.Allocations) > 0 {
			cfg.Allocations = make(rewarder.Allocations)
			for _, a := range c.Allocations {
				token := common.HexToAddress(a.RewardToken)
				if cfg.Allocations[token] == nil {
					cfg.Allocations[token] = make(map[common.Address]*big.Int)
				}
				cfg.Allocations[token][common.HexToAddress(a.StakingToken)] = a.Points.Value()
			}
		}
		nodes = append(nodes, graph.Node[rewarder.NodeConfig]{Point: t.point(c.Contract), Config: cfg})
	}
	return graph.Build[rewarder.NodeConfig, rewarder.EdgeConfig](nodes, nil)
}

// Labeler names points after the networks and contracts of the topology.
// Unknown points fall back to diff.DefaultLabeler.
func (t *Topology) Labeler() diff.Labeler {
	chains := make(map[interfaces.EndpointID]string, len(t.Networks))
	for _, n := range t.Networks {
		chains[interfaces.EndpointID(n.EID)] = n.Name
	}

	contracts := make(map[string]string)
	add := func(c Contract) {
		contracts[t.point(c).Key()] = c.Name
	}
	if t.OApp != nil {
		for _, c := range t.OApp.Contracts {
			add(c.Contract)
		}
	}
	for _, c := range t.ERC20 {
		add(c.Contract)
	}
	for _, c := range t.Rewarder {
		add(c.Contract)
	}

	return func(point interfaces.Point) (string, string) {
		chain, contract := diff.DefaultLabeler(point)
		if name, ok := chains[point.EID]; ok {
			chain = name
		}
		if name, ok := contracts[point.Key()]; ok {
			contract = name
		}
		return chain, contract
	}
}
