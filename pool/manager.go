// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package pool

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/luxfi/geth/common"

	"github.com/luxfi/slots/locator"
	"github.com/luxfi/slots/route"
	"github.com/luxfi/slots/state"
	"github.com/luxfi/slots/token"
)

var deployedKey = state.Key([]byte("pool/deployed"))

// Manager deploys pools at their derived addresses and executes swaps.
// Swaps follow the callback pattern: output is transferred first, then the
// caller is called back and must pay the input before the swap returns.
//
// Whether a pool exists is ledger state. The in-memory table only caches
// pool metadata, which is a pure function of the address, so a creation
// reverted with its snapshot leaves no usable pool behind.
type Manager struct {
	mu sync.RWMutex

	locator *locator.Locator

	// metadata by derived address
	pools map[common.Address]*Pool

	// locked guards each pool against reentrant swaps from its callback
	locked map[common.Address]bool
}

// NewManager creates a pool manager deploying through l
func NewManager(l *locator.Locator) *Manager {
	return &Manager{
		locator: l,
		pools:   make(map[common.Address]*Pool),
		locked:  make(map[common.Address]bool),
	}
}

// =========================================================================
// Pool Deployment
// =========================================================================

// Create deploys a pool for the pair at its derived address
func (m *Manager) Create(
	stateDB state.StateDB,
	tokenA common.Address,
	tokenB common.Address,
	fee uint24,
	family route.Family,
) (*Pool, error) {
	if fee >= FeeMax {
		return nil, fmt.Errorf("%w: %d", ErrInvalidFee, fee)
	}
	if family == route.FamilyUniswap && fee == 0 {
		return nil, fmt.Errorf("%w: uniswap pools need a fee tier", ErrInvalidFee)
	}
	token0, token1, err := locator.SortTokens(tokenA, tokenB)
	if err != nil {
		return nil, err
	}
	addr, err := m.locator.Locate(token0, token1, fee, family)
	if err != nil {
		return nil, err
	}

	if state.GetBool(stateDB, addr, deployedKey) {
		return nil, fmt.Errorf("%w: %s", ErrPoolAlreadyInitialized, addr.Hex())
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	p, cached := m.pools[addr]
	if !cached {
		p = &Pool{Address: addr, Family: family, Token0: token0, Token1: token1, Fee: fee}
		m.pools[addr] = p
	}
	stateDB.CreateAccount(addr)
	state.SetBool(stateDB, addr, deployedKey, true)
	return p, nil
}

// Get returns the pool deployed at addr
func (m *Manager) Get(stateDB state.StateDB, addr common.Address) (*Pool, bool) {
	if !state.GetBool(stateDB, addr, deployedKey) {
		return nil, false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.pools[addr]
	return p, ok
}

// Pools lists the pools deployed in stateDB
func (m *Manager) Pools(stateDB state.StateDB) []*Pool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Pool, 0, len(m.pools))
	for addr, p := range m.pools {
		if state.GetBool(stateDB, addr, deployedKey) {
			out = append(out, p)
		}
	}
	return out
}

// Reserves returns the pool's balances of token0 and token1
func (m *Manager) Reserves(stateDB state.StateDB, addr common.Address) (*big.Int, *big.Int, error) {
	p, ok := m.Get(stateDB, addr)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrPoolNotInitialized, addr.Hex())
	}
	return token.BalanceOf(stateDB, p.Token0, addr), token.BalanceOf(stateDB, p.Token1, addr), nil
}

// AddLiquidity moves amount0/amount1 from provider into the pool
func (m *Manager) AddLiquidity(
	stateDB state.StateDB,
	provider common.Address,
	addr common.Address,
	amount0 *big.Int,
	amount1 *big.Int,
) error {
	p, ok := m.Get(stateDB, addr)
	if !ok {
		return fmt.Errorf("%w: %s", ErrPoolNotInitialized, addr.Hex())
	}
	return state.Atomic(stateDB, func() error {
		if err := token.Transfer(stateDB, p.Token0, provider, addr, amount0); err != nil {
			return err
		}
		return token.Transfer(stateDB, p.Token1, provider, addr, amount1)
	})
}

// =========================================================================
// Swaps
// =========================================================================

// Swap trades against the pool at addr. A positive amountSpecified is an
// exact input, a negative one an exact output. The returned deltas are from
// the pool's side: positive amounts were paid in, negative amounts paid out.
func (m *Manager) Swap(
	stateDB state.StateDB,
	addr common.Address,
	callee Callee,
	recipient common.Address,
	zeroForOne bool,
	amountSpecified *big.Int,
	data []byte,
) (*big.Int, *big.Int, error) {
	p, ok := m.Get(stateDB, addr)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrPoolNotInitialized, addr.Hex())
	}
	if amountSpecified == nil || amountSpecified.Sign() == 0 {
		return nil, nil, ErrInvalidAmount
	}

	if err := m.lock(addr); err != nil {
		return nil, nil, err
	}
	defer m.unlock(addr)

	tokenIn, tokenOut := p.Token0, p.Token1
	if !zeroForOne {
		tokenIn, tokenOut = p.Token1, p.Token0
	}
	reserveIn := token.BalanceOf(stateDB, tokenIn, addr)
	reserveOut := token.BalanceOf(stateDB, tokenOut, addr)
	if reserveIn.Sign() == 0 || reserveOut.Sign() == 0 {
		return nil, nil, fmt.Errorf("%w: %s", ErrInsufficientLiquidity, addr.Hex())
	}

	var in, out *big.Int
	if amountSpecified.Sign() > 0 {
		in = new(big.Int).Set(amountSpecified)
		out = amountOut(in, reserveIn, reserveOut, p.Fee)
	} else {
		out = new(big.Int).Neg(amountSpecified)
		if out.Cmp(reserveOut) >= 0 {
			return nil, nil, fmt.Errorf("%w: want %s, have %s", ErrInsufficientLiquidity, out, reserveOut)
		}
		in = amountIn(out, reserveIn, reserveOut, p.Fee)
	}
	if out.Sign() == 0 {
		return nil, nil, ErrZeroOutput
	}

	amount0, amount1 := in, new(big.Int).Neg(out)
	if !zeroForOne {
		amount0, amount1 = new(big.Int).Neg(out), in
	}

	err := state.Atomic(stateDB, func() error {
		// Optimistic transfer of the output
		if err := token.Transfer(stateDB, tokenOut, addr, recipient, out); err != nil {
			return err
		}

		balanceBefore := token.BalanceOf(stateDB, tokenIn, addr)
		if err := m.callback(stateDB, p, callee, amount0, amount1, data); err != nil {
			return err
		}

		paid := new(big.Int).Sub(token.BalanceOf(stateDB, tokenIn, addr), balanceBefore)
		if paid.Cmp(in) < 0 {
			return fmt.Errorf("%w: pool=%s owed=%s paid=%s", ErrInsufficientInput, addr.Hex(), in, paid)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return amount0, amount1, nil
}

// callback invokes the family-specific callback entry point of callee
func (m *Manager) callback(
	stateDB state.StateDB,
	p *Pool,
	callee Callee,
	amount0, amount1 *big.Int,
	data []byte,
) error {
	switch p.Family {
	case route.FamilyUniswap:
		return callee.UniswapV3SwapCallback(stateDB, p.Address, amount0, amount1, data)
	case route.FamilyAlgebra:
		return callee.AlgebraSwapCallback(stateDB, p.Address, amount0, amount1, data)
	default:
		return fmt.Errorf("unknown pool family %d", p.Family)
	}
}

func (m *Manager) lock(addr common.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locked[addr] {
		return fmt.Errorf("%w: %s", ErrLocked, addr.Hex())
	}
	m.locked[addr] = true
	return nil
}

func (m *Manager) unlock(addr common.Address) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locked, addr)
}
