// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package units converts between human readable token amounts and base
// units.
package units

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// Ether is the number of decimals of an 18-decimal token
const Ether = 18

var (
	ErrNegative  = errors.New("negative amount")
	ErrPrecision = errors.New("amount has more precision than the token")
)

// Parse converts s, e.g. "49.5", to base units of a token with the given
// decimals. Fractional base units are rejected.
func Parse(s string, decimals int32) (*big.Int, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("%w: %s", ErrNegative, s)
	}
	scaled := d.Shift(decimals)
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, fmt.Errorf("%w: %s with %d decimals", ErrPrecision, s, decimals)
	}
	return scaled.BigInt(), nil
}

// MustParse is Parse for constants
func MustParse(s string, decimals int32) *big.Int {
	v, err := Parse(s, decimals)
	if err != nil {
		panic(err)
	}
	return v
}

// Format renders amount base units as a decimal string without trailing
// zeros
func Format(amount *big.Int, decimals int32) string {
	if amount == nil {
		return "0"
	}
	return decimal.NewFromBigInt(amount, -decimals).String()
}

// Bps renders basis points as a percentage, e.g. 50 -> "0.5%"
func Bps(bps uint16) string {
	return decimal.New(int64(bps), -2).String() + "%"
}
