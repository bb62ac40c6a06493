// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package pool

import "math/big"

// amountOut returns the output for an exact input on a constant-product
// curve after the pool fee is taken from the input
func amountOut(amountIn, reserveIn, reserveOut *big.Int, fee uint24) *big.Int {
	inAfterFee := new(big.Int).Mul(amountIn, big.NewInt(int64(feeDenominator-fee)))
	numerator := new(big.Int).Mul(inAfterFee, reserveOut)
	denominator := new(big.Int).Mul(reserveIn, big.NewInt(feeDenominator))
	denominator.Add(denominator, inAfterFee)
	return numerator.Div(numerator, denominator)
}

// amountIn returns the input needed for an exact output, rounded up.
// amountOut must be below reserveOut.
func amountIn(amountOut, reserveIn, reserveOut *big.Int, fee uint24) *big.Int {
	numerator := new(big.Int).Mul(reserveIn, amountOut)
	numerator.Mul(numerator, big.NewInt(feeDenominator))
	denominator := new(big.Int).Sub(reserveOut, amountOut)
	denominator.Mul(denominator, big.NewInt(int64(feeDenominator-fee)))
	in := numerator.Div(numerator, denominator)
	return in.Add(in, big.NewInt(1))
}
