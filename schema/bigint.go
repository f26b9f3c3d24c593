package schema

import (
	"fmt"
	"math/big"
	"strings"

	"gopkg.in/yaml.v3"
)

// BigInt is a non-negative integer written as a decimal or 0x-prefixed hex
// string, or as a plain YAML integer.
type BigInt struct {
	big.Int
}

// ParseBigInt parses a decimal or 0x-prefixed hex integer.
func ParseBigInt(s string) (*BigInt, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), "_", "")
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s, base = s[2:], 16
	}
	var b BigInt
	if _, ok := b.SetString(s, base); !ok || s == "" {
		return nil, fmt.Errorf("invalid integer %q", s)
	}
	if b.Sign() < 0 {
		return nil, fmt.Errorf("integer %q must not be negative", s)
	}
	return &b, nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (b *BigInt) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected an integer", node.Line)
	}
	parsed, err := ParseBigInt(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	b.Set(&parsed.Int)
	return nil
}

// Value returns a copy of b as *big.Int. A nil receiver returns nil.
func (b *BigInt) Value() *big.Int {
	if b == nil {
		return nil
	}
	return new(big.Int).Set(&b.Int)
}
