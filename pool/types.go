// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package pool

import (
	"errors"
	"math/big"

	"github.com/luxfi/geth/common"

	"github.com/luxfi/slots/route"
	"github.com/luxfi/slots/state"
)

// Type aliases for Solidity-style integers
type uint24 = uint32

// Pool fee tiers (in hundredths of a bip, i.e. 1e-6)
const (
	Fee001 uint24 = 100    // 0.01%
	Fee005 uint24 = 500    // 0.05%
	Fee030 uint24 = 3000   // 0.30%
	Fee100 uint24 = 10000  // 1.00%
	FeeMax uint24 = 100000 // 10% max fee

	feeDenominator = 1_000_000
)

// Pool is a deployed pool. Balances held by the pool address are its
// reserves.
type Pool struct {
	Address common.Address
	Family  route.Family
	Token0  common.Address
	Token1  common.Address
	Fee     uint24
}

// UniswapCallee receives swap callbacks from Uniswap family pools
type UniswapCallee interface {
	UniswapV3SwapCallback(stateDB state.StateDB, caller common.Address, amount0Delta, amount1Delta *big.Int, data []byte) error
}

// AlgebraCallee receives swap callbacks from Algebra family pools
type AlgebraCallee interface {
	AlgebraSwapCallback(stateDB state.StateDB, caller common.Address, amount0Delta, amount1Delta *big.Int, data []byte) error
}

// Callee can be called back by pools of either family
type Callee interface {
	UniswapCallee
	AlgebraCallee
}

var (
	ErrPoolNotInitialized     = errors.New("pool not initialized")
	ErrPoolAlreadyInitialized = errors.New("pool already initialized")
	ErrInvalidFee             = errors.New("invalid fee")
	ErrInvalidAmount          = errors.New("invalid amount")
	ErrInsufficientLiquidity  = errors.New("insufficient liquidity")
	ErrInsufficientInput      = errors.New("insufficient input amount")
	ErrZeroOutput             = errors.New("zero output amount")
	ErrLocked                 = errors.New("pool locked")
)
