// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package slot

import (
	"errors"
	"math/big"

	"github.com/luxfi/geth/common"
	log "github.com/luxfi/log"

	"github.com/luxfi/slots/auth"
	"github.com/luxfi/slots/lending"
	"github.com/luxfi/slots/metrics"
	"github.com/luxfi/slots/router"
	"github.com/luxfi/slots/state"
)

// Signing domain of vault authorizations
const (
	DomainName    = "Slots"
	DomainVersion = "1"
)

// Authorization actions
const (
	ActionOpen              = "open"
	ActionIncrease          = "increase"
	ActionClose             = "close"
	ActionCloseFull         = "closeFull"
	ActionRepay             = "repay"
	ActionWithdraw          = "withdraw"
	ActionTransferOwnership = "transferOwnership"
	ActionLiquidate         = "liquidate"
)

var (
	ErrOnlyOwner        = errors.New("only owner")
	ErrReentrantCall    = router.ErrReentrantCall
	ErrNotLiquidatable  = errors.New("position is not liquidatable")
	ErrRouteMismatch    = errors.New("route does not match the position")
	ErrAlreadyOpen      = errors.New("position already open")
	ErrNotActive        = errors.New("position not active")
	ErrNotInitialized   = errors.New("vault not initialized")
	ErrSlippageExceeded = router.ErrSlippageExceeded
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrZeroAddress      = errors.New("zero address")
)

// Status of a position
type Status uint8

const (
	StatusUninitialized Status = iota
	StatusActive
	StatusClosed
	StatusLiquidated
)

func (s Status) String() string {
	switch s {
	case StatusUninitialized:
		return "uninitialized"
	case StatusActive:
		return "active"
	case StatusClosed:
		return "closed"
	case StatusLiquidated:
		return "liquidated"
	default:
		return "unknown"
	}
}

// OwnerIndex keeps the owner to vault index in sync with ownership changes
type OwnerIndex interface {
	Reassign(stateDB state.StateDB, vault, from, to common.Address) error
}

// Deps are the contracts every vault works with
type Deps struct {
	Router   *router.Router
	Market   *lending.Market
	Verifier auth.Verifier

	// Wrapped is the wrapped native token
	Wrapped common.Address

	// Collector receives the protocol cut of vault swap fees
	Collector common.Address

	Index   OwnerIndex
	ChainID uint64

	Log     log.Logger
	Metrics *metrics.Metrics
}

// Caller identifies who is calling. Auth lets a relayer act for the owner.
type Caller struct {
	Address common.Address
	Auth    *auth.Authorization
}

// OpenParams configure Open and Increase
type OpenParams struct {
	// DepositAsset is pulled from the owner by allowance, or from the
	// owner's native balance and wrapped when Native is set
	DepositAsset  common.Address
	DepositAmount *big.Int
	Native        bool

	// DepositRoute converts the deposit into collateral. Empty when the
	// deposit asset is the collateral asset.
	DepositRoute []byte
	MinDeposited *big.Int

	// MarginRoute sells BorrowAmount of the debt asset for collateral
	MarginRoute       []byte
	BorrowAmount      *big.Int
	MinMarginReceived *big.Int

	Partner common.Address
	FeeBps  uint16
}

// CloseParams configure Close
type CloseParams struct {
	// Route buys the full debt with collateral, exact output
	Route []byte

	// MinAmountOut bounds the collateral returned to the owner
	MinAmountOut *big.Int
	// MaxAmountIn bounds the collateral sold, nil for no bound
	MaxAmountIn *big.Int

	Partner common.Address
	FeeBps  uint16
}

// LiquidateParams configure Liquidate
type LiquidateParams struct {
	// Route sells AmountIn of collateral for the debt asset, exact input
	Route    []byte
	AmountIn *big.Int
	MinOut   *big.Int
}

// Position is a snapshot of a vault
type Position struct {
	Owner           common.Address
	Nonce           uint64
	Status          Status
	CollateralAsset common.Address
	DebtAsset       common.Address
	Collateral      *big.Int
	Debt            *big.Int
}

// Hash is the argument hash an authorization for Open or Increase signs
func (p OpenParams) Hash() common.Hash {
	return auth.Params(
		p.DepositAsset.Bytes(),
		amountField(p.DepositAmount),
		boolField(p.Native),
		p.DepositRoute,
		amountField(p.MinDeposited),
		p.MarginRoute,
		amountField(p.BorrowAmount),
		amountField(p.MinMarginReceived),
		p.Partner.Bytes(),
		feeField(p.FeeBps),
	)
}

// Hash is the argument hash an authorization for Close signs
func (p CloseParams) Hash() common.Hash {
	return auth.Params(
		p.Route,
		amountField(p.MinAmountOut),
		amountField(p.MaxAmountIn),
		p.Partner.Bytes(),
		feeField(p.FeeBps),
	)
}

// CloseFullParams is the argument hash of CloseFull
func CloseFullParams(raw []byte) common.Hash {
	return auth.Params(raw)
}

// RepayParams is the argument hash of Repay
func RepayParams(amount *big.Int) common.Hash {
	return auth.Params(amountField(amount))
}

// WithdrawParams is the argument hash of Withdraw
func WithdrawParams(amount *big.Int, asset common.Address, unwrapNative bool) common.Hash {
	return auth.Params(amountField(amount), asset.Bytes(), boolField(unwrapNative))
}

// TransferOwnershipParams is the argument hash of TransferOwnership
func TransferOwnershipParams(newOwner common.Address) common.Hash {
	return auth.Params(newOwner.Bytes())
}

// amountField keeps nil apart from zero and the sign apart from the
// magnitude
func amountField(x *big.Int) []byte {
	if x == nil {
		return nil
	}
	return append([]byte{byte(x.Sign() + 1)}, x.Bytes()...)
}

func boolField(b bool) []byte {
	if b {
		return []byte{1}
	}
	return []byte{0}
}

func feeField(bps uint16) []byte {
	return []byte{byte(bps >> 8), byte(bps)}
}
