// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package router is the swap engine. It walks an encoded route through
// pools that pay out first and call back for their input: exact input
// traversals go head to tail, exact output traversals tail to head. Each
// callback is authenticated by re-deriving the calling pool's address from
// the route. A traversal runs inside one ledger snapshot and leaves no
// trace when any step fails.
package router

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/luxfi/geth/common"
	log "github.com/luxfi/log"

	"github.com/luxfi/slots/fee"
	"github.com/luxfi/slots/locator"
	"github.com/luxfi/slots/metrics"
	"github.com/luxfi/slots/pool"
	"github.com/luxfi/slots/route"
	"github.com/luxfi/slots/state"
	"github.com/luxfi/slots/token"
)

// Option configures a Router
type Option func(*Router)

// WithLogger sets the logger
func WithLogger(logger log.Logger) Option {
	return func(r *Router) { r.log = logger }
}

// WithMetrics sets the metrics sink
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Router) { r.metrics = m }
}

// WithMaxFeeBps sets the integration fee cap
func WithMaxFeeBps(bps uint16) Option {
	return func(r *Router) { r.maxFeeBps = bps }
}

// frame is the state of the traversal in flight
type frame struct {
	mode  Mode
	phase Phase
	full  route.Path
	route route.Route

	settlement Settlement

	amount *big.Int // AmountIn or AmountOut
	limit  *big.Int // MinOut or MaxIn

	result Result
}

// Router executes routes against the pools of a Manager
type Router struct {
	mu     sync.Mutex
	active *frame

	address    common.Address
	locator    *locator.Locator
	pools      *pool.Manager
	governance *fee.Governance
	wrapped    common.Address
	maxFeeBps  uint16

	log     log.Logger
	metrics *metrics.Metrics
}

var _ pool.Callee = (*Router)(nil)

// New creates a router deployed at address
func New(
	address common.Address,
	l *locator.Locator,
	pools *pool.Manager,
	governance *fee.Governance,
	wrapped common.Address,
	opts ...Option,
) *Router {
	r := &Router{
		address:    address,
		locator:    l,
		pools:      pools,
		governance: governance,
		wrapped:    wrapped,
		maxFeeBps:  DefaultMaxFeeBps,
		log:        log.NewNoOpLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Address returns the router's ledger address. Payers approve it.
func (r *Router) Address() common.Address { return r.address }

// Locator returns the pool locator used for callback authentication
func (r *Router) Locator() *locator.Locator { return r.locator }

// MaxFeeBps returns the integration fee cap
func (r *Router) MaxFeeBps() uint16 { return r.maxFeeBps }

// Busy reports whether a traversal is in flight
func (r *Router) Busy() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active != nil
}

// =========================================================================
// Entry points
// =========================================================================

// ExactInput sells exactly p.AmountIn along p.Route and delivers at least
// p.MinOut net of fees
func (r *Router) ExactInput(stateDB state.StateDB, p ExactInputParams) (Result, error) {
	if p.AmountIn == nil || p.AmountIn.Sign() <= 0 {
		return Result{}, ErrInvalidAmount
	}
	minOut := p.MinOut
	if minOut == nil {
		minOut = new(big.Int)
	}
	return r.run(stateDB, ModeExactIn, p.Route, p.Settlement, p.AmountIn, minOut)
}

// ExactOutput buys exactly p.AmountOut along p.Route paying at most p.MaxIn
// including fees. A nil MaxIn means no bound.
func (r *Router) ExactOutput(stateDB state.StateDB, p ExactOutputParams) (Result, error) {
	if p.AmountOut == nil || p.AmountOut.Sign() <= 0 {
		return Result{}, ErrInvalidAmount
	}
	return r.run(stateDB, ModeExactOut, p.Route, p.Settlement, p.AmountOut, p.MaxIn)
}

func (r *Router) run(
	stateDB state.StateDB,
	mode Mode,
	raw []byte,
	s Settlement,
	amount *big.Int,
	limit *big.Int,
) (res Result, err error) {
	defer func() { r.metrics.Traversal(mode.String(), err) }()

	if s.FeeBps > r.maxFeeBps {
		return Result{}, fmt.Errorf("%w: %d bps above cap %d", ErrInvalidFee, s.FeeBps, r.maxFeeBps)
	}
	if s.Collector == (common.Address{}) {
		s.Collector = r.governance.Address()
	}
	decoded, err := route.Decode(raw)
	if err != nil {
		return Result{}, err
	}
	if err := CheckFlags(mode, decoded); err != nil {
		return Result{}, err
	}
	if err := r.checkTerminal(decoded.Terminal, s); err != nil {
		return Result{}, err
	}

	f := &frame{
		mode:       mode,
		phase:      PhaseIdle,
		full:       route.Path(raw),
		route:      decoded,
		settlement: s,
		amount:     new(big.Int).Set(amount),
		limit:      limit,
	}
	if err := r.enter(f); err != nil {
		return Result{}, err
	}
	defer r.exit()

	f.phase = PhaseAwaitingCallback
	err = state.Atomic(stateDB, func() error {
		var err error
		if mode == ModeExactIn {
			err = r.swapExactIn(stateDB, f.full, f.amount)
		} else {
			err = r.swapExactOut(stateDB, f.full, f.amount, r.address)
		}
		if err != nil {
			return err
		}
		if f.phase != PhaseSettled {
			return ErrIncompleteTraversal
		}
		return nil
	})
	if err != nil {
		f.phase = PhaseAborted
		r.log.Debug("traversal aborted",
			"mode", mode,
			"pools", len(decoded.Hops),
			"err", err,
		)
		return Result{}, err
	}

	r.log.Debug("traversal settled",
		"mode", mode,
		"pools", len(decoded.Hops),
		"amountIn", f.result.AmountIn,
		"amountOut", f.result.AmountOut,
		"fee", f.result.Fee,
	)
	return f.result, nil
}

func (r *Router) enter(f *frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active != nil {
		return ErrReentrantCall
	}
	r.active = f
	return nil
}

func (r *Router) exit() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = nil
}

func (r *Router) current() *frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// CheckFlags checks the trade flags of a route against the traversal mode.
// The entry hop (head for exact input, tail for exact output) names the
// operation, every other hop carries the plain mode flag.
func CheckFlags(mode Mode, r route.Route) error {
	entry, plain := 0, route.FlagExactIn
	allowed := map[route.Flag]bool{route.FlagMarginOpen: true, route.FlagExactIn: true, route.FlagLiquidate: true}
	if mode == ModeExactOut {
		entry, plain = len(r.Hops)-1, route.FlagExactOut
		allowed = map[route.Flag]bool{route.FlagMarginClose: true, route.FlagExactOut: true}
	}
	for i, h := range r.Hops {
		if i == entry {
			if !allowed[h.Flag] {
				return fmt.Errorf("%w: flag %s cannot start a %s traversal", route.ErrMalformedRoute, h.Flag, mode)
			}
			continue
		}
		if h.Flag != plain {
			return fmt.Errorf("%w: hop %d flag %s in a %s traversal", route.ErrMalformedRoute, i, h.Flag, mode)
		}
	}
	return nil
}

func (r *Router) checkTerminal(t route.Terminal, s Settlement) error {
	switch t.Flag {
	case route.TerminalVault:
		if s.Account == nil {
			return ErrMissingAccount
		}
	case route.TerminalUnwrap:
		if t.TokenOut != r.wrapped {
			return fmt.Errorf("%w: %s", ErrNotWrappedNative, t.TokenOut.Hex())
		}
		fallthrough
	default:
		if s.Recipient == (common.Address{}) {
			return ErrMissingRecipient
		}
	}
	if s.Account == nil && s.Payer == (common.Address{}) {
		return ErrMissingPayer
	}
	return nil
}

// =========================================================================
// Traversal
// =========================================================================

func (r *Router) swapExactIn(stateDB state.StateDB, path route.Path, amountIn *big.Int) error {
	p, err := path.FirstPool()
	if err != nil {
		return err
	}
	addr, err := r.locator.LocatePool(p)
	if err != nil {
		return err
	}
	r.log.Debug("exact input hop",
		"pool", addr,
		"tokenIn", p.TokenIn,
		"amountIn", amountIn,
	)
	_, _, err = r.pools.Swap(
		stateDB,
		addr,
		r,
		r.address,
		ZeroForOne(p.TokenIn, p.TokenOut),
		amountIn,
		EncodeCallbackData(ModeExactIn, path),
	)
	return err
}

func (r *Router) swapExactOut(stateDB state.StateDB, path route.Path, amountOut *big.Int, recipient common.Address) error {
	p, err := path.LastPool()
	if err != nil {
		return err
	}
	addr, err := r.locator.LocatePool(p)
	if err != nil {
		return err
	}
	r.log.Debug("exact output hop",
		"pool", addr,
		"tokenOut", p.TokenOut,
		"amountOut", amountOut,
	)
	_, _, err = r.pools.Swap(
		stateDB,
		addr,
		r,
		recipient,
		ZeroForOne(p.TokenIn, p.TokenOut),
		new(big.Int).Neg(amountOut),
		EncodeCallbackData(ModeExactOut, path),
	)
	return err
}

// UniswapV3SwapCallback is called by Uniswap family pools during a swap
func (r *Router) UniswapV3SwapCallback(
	stateDB state.StateDB,
	caller common.Address,
	amount0Delta, amount1Delta *big.Int,
	data []byte,
) error {
	return r.swapCallback(stateDB, route.FamilyUniswap, caller, amount0Delta, amount1Delta, data)
}

// AlgebraSwapCallback is called by Algebra family pools during a swap
func (r *Router) AlgebraSwapCallback(
	stateDB state.StateDB,
	caller common.Address,
	amount0Delta, amount1Delta *big.Int,
	data []byte,
) error {
	return r.swapCallback(stateDB, route.FamilyAlgebra, caller, amount0Delta, amount1Delta, data)
}

func (r *Router) swapCallback(
	stateDB state.StateDB,
	family route.Family,
	caller common.Address,
	amount0, amount1 *big.Int,
	data []byte,
) error {
	mode, path, p, err := Authenticate(r.locator, family, caller, data)
	if err != nil {
		r.reject(caller, err)
		return err
	}
	f := r.current()
	if f == nil || f.phase != PhaseAwaitingCallback || f.mode != mode {
		err := fmt.Errorf("%w: no %s traversal in flight", ErrUnauthorizedCallback, mode)
		r.reject(caller, err)
		return err
	}
	toPay, received, err := Deltas(p, amount0, amount1)
	if err != nil {
		return err
	}

	if mode == ModeExactIn {
		return r.continueExactIn(stateDB, f, path, p, caller, toPay, received)
	}
	return r.continueExactOut(stateDB, f, path, p, caller, toPay, received)
}

func (r *Router) reject(caller common.Address, err error) {
	r.metrics.RejectedCallback()
	r.log.Warn("rejected swap callback", "caller", caller, "err", err)
}

func (r *Router) continueExactIn(
	stateDB state.StateDB,
	f *frame,
	path route.Path,
	p route.Pool,
	caller common.Address,
	toPay, received *big.Int,
) error {
	if path.HasMultiplePools() {
		next, err := path.SkipHead()
		if err != nil {
			return err
		}
		if err := r.swapExactIn(stateDB, next, received); err != nil {
			return err
		}
	} else {
		if err := r.settleExactIn(stateDB, f, p.TokenOut, received); err != nil {
			return err
		}
	}

	// the head pool is paid by the payer, later pools from what the router
	// received one hop earlier
	if len(path) == len(f.full) {
		return r.fund(stateDB, f, p.TokenIn, toPay, caller)
	}
	return token.Transfer(stateDB, p.TokenIn, r.address, caller, toPay)
}

func (r *Router) continueExactOut(
	stateDB state.StateDB,
	f *frame,
	path route.Path,
	p route.Pool,
	caller common.Address,
	toPay, received *big.Int,
) error {
	if len(path) == len(f.full) {
		if received.Cmp(f.amount) != 0 {
			return fmt.Errorf("%w: received %s, wanted %s", ErrIncompleteTraversal, received, f.amount)
		}
		if err := r.deliver(stateDB, f, p.TokenOut, received); err != nil {
			return err
		}
		f.result.AmountOut = new(big.Int).Set(received)
	}

	if path.HasMultiplePools() {
		upstream, err := path.DropTail()
		if err != nil {
			return err
		}
		// the upstream pool pays the calling pool directly
		return r.swapExactOut(stateDB, upstream, toPay, caller)
	}
	return r.settleExactOut(stateDB, f, p.TokenIn, toPay, caller)
}
