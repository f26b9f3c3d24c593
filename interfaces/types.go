// Package interfaces defines the core types and capability interfaces for the
// configuration reconciliation engine. It provides the contract between the
// graph, state, configurator and diff components without implementation details.
package interfaces

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// EndpointID identifies one blockchain network in the deployment.
type EndpointID uint32

// String returns the decimal representation of the endpoint id.
func (eid EndpointID) String() string {
	return strconv.FormatUint(uint64(eid), 10)
}

// ParseEndpointID parses a decimal endpoint id.
func ParseEndpointID(s string) (EndpointID, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid endpoint id %q: %w", s, err)
	}
	if v == 0 {
		return 0, errors.New("invalid endpoint id: must be non-zero")
	}
	return EndpointID(v), nil
}

// Point identifies one contract instance: an address on a given endpoint.
type Point struct {
	EID     EndpointID     `json:"eid" yaml:"eid"`
	Address common.Address `json:"address" yaml:"address"`
}

// NewPointFromHex creates a point from an endpoint id and a hex address.
func NewPointFromHex(eid EndpointID, addr string) (Point, error) {
	if !common.IsHexAddress(addr) {
		return Point{}, fmt.Errorf("invalid address %q: must be a 40-char hex string", addr)
	}
	return Point{EID: eid, Address: common.HexToAddress(addr)}, nil
}

// ParsePoint parses the serialized form produced by Point.Key.
func ParsePoint(s string) (Point, error) {
	eidStr, addr, ok := strings.Cut(s, ":")
	if !ok {
		return Point{}, fmt.Errorf("invalid point %q: expected <eid>:<address>", s)
	}
	eid, err := ParseEndpointID(eidStr)
	if err != nil {
		return Point{}, err
	}
	return NewPointFromHex(eid, addr)
}

// Key returns the serialized identity of the point. It is the primary key for
// graph indexes and read caches.
func (p Point) Key() string {
	return p.EID.String() + ":" + strings.ToLower(p.Address.Hex())
}

// String returns a human readable representation of the point.
func (p Point) String() string {
	return fmt.Sprintf("[%d, %s]", p.EID, p.Address.Hex())
}

// Vector identifies one directed relationship between two points.
type Vector struct {
	From Point `json:"from" yaml:"from"`
	To   Point `json:"to" yaml:"to"`
}

// Key returns the serialized identity of the vector.
func (v Vector) Key() string {
	return v.From.Key() + "->" + v.To.Key()
}

// String returns a human readable representation of the vector.
func (v Vector) String() string {
	return v.From.String() + " → " + v.To.String()
}

// AddressToBytes32 left-pads an address into the 32-byte peer format used by
// cross-chain messaging contracts.
func AddressToBytes32(addr common.Address) common.Hash {
	return common.BytesToHash(addr.Bytes())
}
