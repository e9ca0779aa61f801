// Package types provides the value types shared by routes, invoices and the
// registry.
package types

import (
	"fmt"
	"math"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// MaxAmount is the largest amount any route may carry. Amounts are held as
// uint64 in memory but persisted in signed 64-bit columns.
const MaxAmount uint64 = math.MaxInt64

// Address identifies an account on a network (depositor, beneficiary,
// payer, escrow or treasury).
type Address string

// IsZero reports whether the address is empty.
func (a Address) IsZero() bool { return strings.TrimSpace(string(a)) == "" }

func (a Address) String() string { return string(a) }

// AssetID identifies a token on a network.
type AssetID string

func (a AssetID) String() string { return string(a) }

// Asset describes display metadata for a token. Decimals is the number of
// fractional digits of the smallest unit (18 for most EVM tokens, 8 for NEO).
type Asset struct {
	ID       AssetID `json:"id" yaml:"id"`
	Symbol   string  `json:"symbol" yaml:"symbol"`
	Decimals int32   `json:"decimals" yaml:"decimals"`
}

// Format renders an amount of this asset in major units.
func (a Asset) Format(amount uint64) string {
	s := FormatAmount(amount, a.Decimals)
	if a.Symbol == "" {
		return s
	}
	return s + " " + a.Symbol
}

// FormatAmount renders an integer amount with the given number of decimals:
// FormatAmount(4975, 2) == "49.75".
func FormatAmount(amount uint64, decimals int32) string {
	if decimals <= 0 {
		return new(big.Int).SetUint64(amount).String()
	}
	d := decimal.NewFromBigInt(new(big.Int).SetUint64(amount), -decimals)
	return d.StringFixed(decimals)
}

// ParseAmount converts a major-unit string back into the smallest unit.
// It rejects negative values, excess precision and values above MaxAmount.
func ParseAmount(s string, decimals int32) (uint64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("types: parse amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("types: parse amount %q: negative", s)
	}
	scaled := d.Shift(decimals)
	if !scaled.IsInteger() {
		return 0, fmt.Errorf("types: parse amount %q: more than %d decimals", s, decimals)
	}
	bi := scaled.BigInt()
	if !bi.IsUint64() || bi.Uint64() > MaxAmount {
		return 0, fmt.Errorf("types: parse amount %q: out of range", s)
	}
	return bi.Uint64(), nil
}
