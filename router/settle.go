// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package router

import (
	"fmt"
	"math/big"

	"github.com/luxfi/geth/common"

	"github.com/luxfi/slots/fee"
	"github.com/luxfi/slots/route"
	"github.com/luxfi/slots/state"
	"github.com/luxfi/slots/token"
)

// settleExactIn takes the fee out of the final output, enforces MinOut and
// delivers the rest
func (r *Router) settleExactIn(stateDB state.StateDB, f *frame, tokenOut common.Address, gross *big.Int) error {
	charged := fee.Amount(gross, f.settlement.FeeBps)
	net := new(big.Int).Sub(gross, charged)
	if net.Cmp(f.limit) < 0 {
		return fmt.Errorf("%w: out %s below minimum %s", ErrSlippageExceeded, net, f.limit)
	}
	if err := r.distributeFee(stateDB, f, tokenOut, charged, r.address, nil); err != nil {
		return err
	}
	if err := r.deliver(stateDB, f, tokenOut, net); err != nil {
		return err
	}
	f.result = Result{
		AmountIn:  new(big.Int).Set(f.amount),
		AmountOut: net,
		Fee:       charged,
	}
	f.phase = PhaseSettled
	return nil
}

// settleExactOut adds the fee on top of the head pool's input, enforces
// MaxIn and pays both
func (r *Router) settleExactOut(
	stateDB state.StateDB,
	f *frame,
	tokenIn common.Address,
	amountIn *big.Int,
	pool common.Address,
) error {
	charged := fee.Amount(amountIn, f.settlement.FeeBps)
	total := new(big.Int).Add(amountIn, charged)
	if f.limit != nil && total.Cmp(f.limit) > 0 {
		return fmt.Errorf("%w: in %s above maximum %s", ErrSlippageExceeded, total, f.limit)
	}
	if err := r.fund(stateDB, f, tokenIn, amountIn, pool); err != nil {
		return err
	}
	if err := r.distributeFee(stateDB, f, tokenIn, charged, common.Address{}, func(amount *big.Int, to common.Address) error {
		return r.fund(stateDB, f, tokenIn, amount, to)
	}); err != nil {
		return err
	}
	f.result.AmountIn = total
	f.result.Fee = charged
	f.phase = PhaseSettled
	return nil
}

// distributeFee splits amount between the collector and the partner. The
// fee is paid from holder, or through pay when holder is zero.
func (r *Router) distributeFee(
	stateDB state.StateDB,
	f *frame,
	asset common.Address,
	amount *big.Int,
	holder common.Address,
	pay func(*big.Int, common.Address) error,
) error {
	if amount.Sign() == 0 {
		return nil
	}
	s := f.settlement
	hasPartner := s.Partner != (common.Address{})
	protocol, partner := r.governance.Split(stateDB, amount, hasPartner)

	send := func(v *big.Int, to common.Address) error {
		if v.Sign() == 0 {
			return nil
		}
		if pay != nil {
			return pay(v, to)
		}
		return token.Transfer(stateDB, asset, holder, to, v)
	}
	if err := send(protocol, s.Collector); err != nil {
		return err
	}
	return send(partner, s.Partner)
}

// deliver hands the router's output to its destination
func (r *Router) deliver(stateDB state.StateDB, f *frame, tokenOut common.Address, amount *big.Int) error {
	s := f.settlement
	switch f.route.Terminal.Flag {
	case route.TerminalVault:
		if err := token.Transfer(stateDB, tokenOut, r.address, s.Account.Address(), amount); err != nil {
			return err
		}
		return s.Account.Credit(stateDB, tokenOut, amount)
	case route.TerminalUnwrap:
		return token.Unwrap(stateDB, r.wrapped, r.address, s.Recipient, amount)
	default:
		return token.Transfer(stateDB, tokenOut, r.address, s.Recipient, amount)
	}
}

// fund pays amount of asset to to from the account or the payer
func (r *Router) fund(stateDB state.StateDB, f *frame, asset common.Address, amount *big.Int, to common.Address) error {
	s := f.settlement
	if s.Account != nil {
		return s.Account.Fund(stateDB, asset, amount, to)
	}
	return token.TransferFrom(stateDB, asset, r.address, s.Payer, to, amount)
}
