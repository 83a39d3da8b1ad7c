package util

import (
	"math/big"
	"strings"

	"github.com/pkg/errors"
)

const (
	decimalBase    = 10
	weiPerGweiExp  = 9
	weiPerEtherExp = 18
)

// unitDecimals maps an amount unit to its wei exponent.
var unitDecimals = map[string]int{
	"wei":   0,
	"gwei":  weiPerGweiExp,
	"eth":   weiPerEtherExp,
	"ether": weiPerEtherExp,
}

// ParseAmount converts a decimal amount string in the given unit into
// wei. Fractional wei are rejected rather than rounded, and negative
// amounts are refused.
func ParseAmount(amount, unit string) (*big.Int, error) {
	decimals, ok := unitDecimals[strings.ToLower(strings.TrimSpace(unit))]
	if !ok {
		return nil, errors.Errorf("unknown unit %q (want wei, gwei or ether)", unit)
	}

	// big.Rat keeps decimal inputs exact, so fractional wei can be
	// detected instead of silently rounded.
	value, ok := new(big.Rat).SetString(strings.TrimSpace(amount))
	if !ok {
		return nil, errors.Errorf("failed to parse amount %q", amount)
	}
	if value.Sign() < 0 {
		return nil, errors.Errorf("amount %q is negative", amount)
	}

	if decimals > 0 {
		scale := new(big.Int).Exp(big.NewInt(decimalBase), big.NewInt(int64(decimals)), nil)
		value.Mul(value, new(big.Rat).SetInt(scale))
	}

	if !value.IsInt() {
		return nil, errors.Errorf("amount %q is not a whole number of wei", amount)
	}
	return new(big.Int).Set(value.Num()), nil
}

// FormatWei renders a wei value as a decimal ether string, trimming
// trailing zeros.
func FormatWei(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	scale := new(big.Int).Exp(big.NewInt(decimalBase), big.NewInt(weiPerEtherExp), nil)
	value := new(big.Rat).SetFrac(wei, scale)

	out := value.FloatString(weiPerEtherExp)
	out = strings.TrimRight(out, "0")
	out = strings.TrimSuffix(out, ".")
	if out == "" || out == "-" {
		return "0"
	}
	return out
}
