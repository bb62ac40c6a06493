// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package quoter prices routes without moving funds. Each hop is swapped
// for real inside a ledger snapshot; the callback aborts the swap with an
// Abort error carrying the amount, and the snapshot is always reverted.
package quoter

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/luxfi/geth/common"
	log "github.com/luxfi/log"

	"github.com/luxfi/slots/locator"
	"github.com/luxfi/slots/pool"
	"github.com/luxfi/slots/route"
	"github.com/luxfi/slots/router"
	"github.com/luxfi/slots/state"
)

// PayloadSize is the size of an abort payload
const PayloadSize = 32

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrNoQuote       = errors.New("swap finished without a quote")
)

// Abort is the expected failure of a quoting swap. Its payload is the
// quoted amount as a 32 byte big-endian word.
type Abort struct {
	Payload [PayloadSize]byte
}

func newAbort(amount *big.Int) *Abort {
	a := &Abort{}
	amount.FillBytes(a.Payload[:])
	return a
}

func (a *Abort) Error() string {
	return fmt.Sprintf("quote: %s", a.Amount())
}

// Amount decodes the payload
func (a *Abort) Amount() *big.Int {
	return new(big.Int).SetBytes(a.Payload[:])
}

// DecodeQuote recovers the amount from the failure of a quote call. Any
// failure other than an Abort is returned as is.
func DecodeQuote(err error) (*big.Int, error) {
	if err == nil {
		return nil, ErrNoQuote
	}
	var abort *Abort
	if errors.As(err, &abort) {
		return abort.Amount(), nil
	}
	return nil, err
}

// Quoter simulates routes against the pools of a Manager
type Quoter struct {
	address common.Address
	locator *locator.Locator
	pools   *pool.Manager
	log     log.Logger
}

var _ pool.Callee = (*Quoter)(nil)

// New creates a quoter deployed at address
func New(address common.Address, l *locator.Locator, pools *pool.Manager, logger log.Logger) *Quoter {
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	return &Quoter{address: address, locator: l, pools: pools, log: logger}
}

// Address returns the quoter address
func (q *Quoter) Address() common.Address { return q.address }

// QuoteExactInput returns the output of selling amountIn along raw
func (q *Quoter) QuoteExactInput(stateDB state.StateDB, raw []byte, amountIn *big.Int) (*big.Int, error) {
	return DecodeQuote(q.QuoteExactInputCall(stateDB, raw, amountIn))
}

// QuoteExactOutput returns the input needed to buy amountOut along raw
func (q *Quoter) QuoteExactOutput(stateDB state.StateDB, raw []byte, amountOut *big.Int) (*big.Int, error) {
	return DecodeQuote(q.QuoteExactOutputCall(stateDB, raw, amountOut))
}

// QuoteExactInputCall always fails. The quote comes back as an *Abort.
func (q *Quoter) QuoteExactInputCall(stateDB state.StateDB, raw []byte, amountIn *big.Int) error {
	if amountIn == nil || amountIn.Sign() <= 0 {
		return ErrInvalidAmount
	}
	return q.simulate(stateDB, raw, func(path route.Path) (*big.Int, error) {
		amount := new(big.Int).Set(amountIn)
		for {
			var err error
			if amount, err = q.hop(stateDB, router.ModeExactIn, path, amount); err != nil {
				return nil, err
			}
			if !path.HasMultiplePools() {
				return amount, nil
			}
			if path, err = path.SkipHead(); err != nil {
				return nil, err
			}
		}
	})
}

// QuoteExactOutputCall always fails. The quote comes back as an *Abort.
func (q *Quoter) QuoteExactOutputCall(stateDB state.StateDB, raw []byte, amountOut *big.Int) error {
	if amountOut == nil || amountOut.Sign() <= 0 {
		return ErrInvalidAmount
	}
	return q.simulate(stateDB, raw, func(path route.Path) (*big.Int, error) {
		amount := new(big.Int).Set(amountOut)
		for {
			var err error
			if amount, err = q.hop(stateDB, router.ModeExactOut, path, amount); err != nil {
				return nil, err
			}
			if !path.HasMultiplePools() {
				return amount, nil
			}
			if path, err = path.DropTail(); err != nil {
				return nil, err
			}
		}
	})
}

func (q *Quoter) simulate(stateDB state.StateDB, raw []byte, walk func(route.Path) (*big.Int, error)) error {
	if _, err := route.Decode(raw); err != nil {
		return err
	}
	snap := stateDB.Snapshot()
	defer stateDB.RevertToSnapshot(snap)

	amount, err := walk(route.Path(raw))
	if err != nil {
		return err
	}
	return newAbort(amount)
}

// hop swaps one pool and returns the amount its callback reported: the
// output for exact input, the input for exact output
func (q *Quoter) hop(stateDB state.StateDB, mode router.Mode, path route.Path, amount *big.Int) (*big.Int, error) {
	var (
		p   route.Pool
		err error
	)
	specified := new(big.Int).Set(amount)
	if mode == router.ModeExactIn {
		p, err = path.FirstPool()
	} else {
		p, err = path.LastPool()
		specified.Neg(specified)
	}
	if err != nil {
		return nil, err
	}
	addr, err := q.locator.LocatePool(p)
	if err != nil {
		return nil, err
	}

	_, _, err = q.pools.Swap(
		stateDB,
		addr,
		q,
		q.address,
		router.ZeroForOne(p.TokenIn, p.TokenOut),
		specified,
		router.EncodeCallbackData(mode, path),
	)
	quoted, err := DecodeQuote(err)
	if err != nil {
		return nil, err
	}
	q.log.Debug("quoted hop",
		"pool", addr,
		"mode", mode,
		"amount", amount,
		"quote", quoted,
	)
	return quoted, nil
}

// UniswapV3SwapCallback aborts a Uniswap family quoting swap
func (q *Quoter) UniswapV3SwapCallback(
	stateDB state.StateDB,
	caller common.Address,
	amount0Delta, amount1Delta *big.Int,
	data []byte,
) error {
	return q.swapCallback(route.FamilyUniswap, caller, amount0Delta, amount1Delta, data)
}

// AlgebraSwapCallback aborts an Algebra family quoting swap
func (q *Quoter) AlgebraSwapCallback(
	stateDB state.StateDB,
	caller common.Address,
	amount0Delta, amount1Delta *big.Int,
	data []byte,
) error {
	return q.swapCallback(route.FamilyAlgebra, caller, amount0Delta, amount1Delta, data)
}

func (q *Quoter) swapCallback(family route.Family, caller common.Address, amount0, amount1 *big.Int, data []byte) error {
	mode, _, p, err := router.Authenticate(q.locator, family, caller, data)
	if err != nil {
		q.log.Warn("rejected quote callback", "caller", caller, "err", err)
		return err
	}
	toPay, received, err := router.Deltas(p, amount0, amount1)
	if err != nil {
		return err
	}
	if mode == router.ModeExactIn {
		return newAbort(received)
	}
	return newAbort(toPay)
}
