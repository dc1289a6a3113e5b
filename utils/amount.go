// Package utils holds small shared helpers: EVM identifier checks and
// conversions between minor (wei) and major (display) units.
package utils

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// EtherDecimals is the native-token precision on EVM chains.
const EtherDecimals = 18

var hexBody = regexp.MustCompile("^[0-9a-fA-F]+$")

// IsAddress reports whether s has the shape of an EVM address (0x + 20 hex
// bytes). Checksum casing is not enforced; the chain accepts either.
func IsAddress(s string) bool {
	return len(s) == 42 && strings.HasPrefix(s, "0x") && hexBody.MatchString(s[2:])
}

// IsTxHash reports whether s has the shape of an EVM transaction hash
// (0x + 32 hex bytes).
func IsTxHash(s string) bool {
	return len(s) == 66 && strings.HasPrefix(s, "0x") && hexBody.MatchString(s[2:])
}

// ParseMinorUnits parses a base-10 integer amount in minor units. Decimal
// points and signs are rejected; on-chain amounts are whole, non-negative
// integers.
func ParseMinorUnits(s string) (*big.Int, error) {
	if s == "" {
		return nil, fmt.Errorf("amount cannot be empty")
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("amount %q is not a base-10 integer", s)
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("amount cannot be negative")
	}
	return v, nil
}

// ToMajorUnits renders a minor-unit amount as a decimal string in major
// units, e.g. 50000000000000 wei -> "0.00005".
func ToMajorUnits(amount *big.Int, decimals int32) string {
	return decimal.NewFromBigInt(amount, -decimals).String()
}

// FromMajorUnits converts a major-unit decimal string into minor units.
// Fractions finer than the given precision are an error, not silently
// truncated money.
func FromMajorUnits(s string, decimals int32) (*big.Int, error) {
	dec, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if dec.IsNegative() {
		return nil, fmt.Errorf("amount cannot be negative")
	}
	shifted := dec.Shift(decimals)
	if !shifted.IsInteger() {
		return nil, fmt.Errorf("amount %q has more than %d decimal places", s, decimals)
	}
	return shifted.BigInt(), nil
}
