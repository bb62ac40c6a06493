// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package router

import (
	"errors"
	"math/big"

	"github.com/luxfi/geth/common"

	"github.com/luxfi/slots/state"
)

// DefaultMaxFeeBps caps the integration fee a caller may charge
const DefaultMaxFeeBps uint16 = 100

var (
	ErrUnauthorizedCallback = errors.New("unauthorized callback")
	ErrSlippageExceeded     = errors.New("slippage exceeded")
	ErrInvalidFee           = errors.New("invalid fee")
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrReentrantCall        = errors.New("reentrant call")
	ErrIncompleteTraversal  = errors.New("incomplete traversal")
	ErrMissingAccount       = errors.New("route delivers to a vault account but none was given")
	ErrMissingRecipient     = errors.New("missing recipient")
	ErrMissingPayer         = errors.New("missing payer")
	ErrNotWrappedNative     = errors.New("unwrap requested for a token that is not the wrapped native asset")
)

// Mode is the traversal direction
type Mode uint8

const (
	// ModeExactIn walks the route head to tail with a fixed input
	ModeExactIn Mode = iota + 1
	// ModeExactOut walks the route tail to head with a fixed output
	ModeExactOut
)

func (m Mode) String() string {
	switch m {
	case ModeExactIn:
		return "exact_in"
	case ModeExactOut:
		return "exact_out"
	default:
		return "unknown"
	}
}

// Phase of a traversal
type Phase uint8

const (
	PhaseIdle Phase = iota
	PhaseAwaitingCallback
	PhaseSettled
	PhaseAborted
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseAwaitingCallback:
		return "awaiting_callback"
	case PhaseSettled:
		return "settled"
	case PhaseAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Account is a funding source and credit sink that stands in for a plain
// payer and recipient. Position vaults plug their lending positions in
// through it.
type Account interface {
	// Address receives output delivered to the account
	Address() common.Address

	// Fund pays amount of asset to to
	Fund(stateDB state.StateDB, asset common.Address, amount *big.Int, to common.Address) error

	// Credit is told that amount of asset was delivered to Address
	Credit(stateDB state.StateDB, asset common.Address, amount *big.Int) error
}

// Settlement carries what every traversal needs to pay and deliver
type Settlement struct {
	// Payer is pulled from by allowance when Account is nil
	Payer common.Address

	// Recipient receives output for the recipient and unwrap terminals
	Recipient common.Address

	// Account funds input and receives output for the vault terminal
	Account Account

	// Partner shares the fee with the protocol when set
	Partner common.Address
	FeeBps  uint16

	// Collector receives the protocol cut, the governance contract when
	// zero
	Collector common.Address
}

// ExactInputParams sells exactly AmountIn of the route's first token
type ExactInputParams struct {
	Settlement

	Route    []byte
	AmountIn *big.Int
	MinOut   *big.Int
}

// ExactOutputParams buys exactly AmountOut of the route's last token
type ExactOutputParams struct {
	Settlement

	Route     []byte
	AmountOut *big.Int
	MaxIn     *big.Int
}

// Result of a settled traversal
type Result struct {
	// AmountIn includes the fee for exact output traversals
	AmountIn *big.Int
	// AmountOut is net of the fee for exact input traversals
	AmountOut *big.Int
	Fee       *big.Int
}
