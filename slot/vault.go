// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package slot implements position vaults: one leveraged position per
// vault, held as supply and debt in a lending market and built or unwound
// through the swap engine in a single atomic operation.
package slot

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	log "github.com/luxfi/log"

	"github.com/luxfi/slots/auth"
	"github.com/luxfi/slots/route"
	"github.com/luxfi/slots/router"
	"github.com/luxfi/slots/state"
	"github.com/luxfi/slots/token"
)

var (
	ownerKey      = state.Key([]byte("slot/owner"))
	nonceKey      = state.Key([]byte("slot/nonce"))
	statusKey     = state.Key([]byte("slot/status"))
	collateralKey = state.Key([]byte("slot/collateral"))
	debtKey       = state.Key([]byte("slot/debt"))
	authNonceKey  = state.Key([]byte("slot/authNonce"))
	busyKey       = state.Key([]byte("slot/busy"))
)

// Vault is the handle of a position vault. All of its state lives in ledger
// slots at its address.
type Vault struct {
	address common.Address
	deps    *Deps
}

// New returns the handle of the vault at address
func New(address common.Address, deps *Deps) *Vault {
	return &Vault{address: address, deps: deps}
}

// Address returns the vault address
func (v *Vault) Address() common.Address { return v.address }

// Init binds a freshly created vault to its owner
func (v *Vault) Init(stateDB state.StateDB, owner common.Address, nonce uint64) error {
	if owner == (common.Address{}) {
		return ErrZeroAddress
	}
	if v.Owner(stateDB) != (common.Address{}) {
		return fmt.Errorf("vault %s already initialized", v.address.Hex())
	}
	stateDB.CreateAccount(v.address)
	state.SetAddress(stateDB, v.address, ownerKey, owner)
	state.SetUint64(stateDB, v.address, nonceKey, nonce)
	return nil
}

// =========================================================================
// Views
// =========================================================================

func (v *Vault) Owner(stateDB state.StateDB) common.Address {
	return state.GetAddress(stateDB, v.address, ownerKey)
}

func (v *Vault) Nonce(stateDB state.StateDB) uint64 {
	return state.GetUint64(stateDB, v.address, nonceKey)
}

func (v *Vault) Status(stateDB state.StateDB) Status {
	return Status(state.GetUint64(stateDB, v.address, statusKey))
}

func (v *Vault) CollateralAsset(stateDB state.StateDB) common.Address {
	return state.GetAddress(stateDB, v.address, collateralKey)
}

func (v *Vault) DebtAsset(stateDB state.StateDB) common.Address {
	return state.GetAddress(stateDB, v.address, debtKey)
}

// AuthNonce is the nonce the next authorization must carry
func (v *Vault) AuthNonce(stateDB state.StateDB) uint64 {
	return state.GetUint64(stateDB, v.address, authNonceKey)
}

// DomainSeparator is the signing domain of authorizations for this vault
func (v *Vault) DomainSeparator() common.Hash {
	return auth.DomainSeparator(DomainName, DomainVersion, v.deps.ChainID, v.address)
}

// Position reads the vault and its market balances
func (v *Vault) Position(stateDB state.StateDB) Position {
	collateral, debt := v.CollateralAsset(stateDB), v.DebtAsset(stateDB)
	return Position{
		Owner:           v.Owner(stateDB),
		Nonce:           v.Nonce(stateDB),
		Status:          v.Status(stateDB),
		CollateralAsset: collateral,
		DebtAsset:       debt,
		Collateral:      v.deps.Market.SupplyBalance(stateDB, v.address, collateral),
		Debt:            v.deps.Market.BorrowBalance(stateDB, v.address, debt),
	}
}

// =========================================================================
// Operations
// =========================================================================

// Open starts the position: the margin route fixes the debt asset (its
// input) and the collateral asset (its output)
func (v *Vault) Open(stateDB state.StateDB, caller Caller, p OpenParams) error {
	return v.guard(stateDB, ActionOpen, func() error {
		if err := v.authorize(stateDB, caller, ActionOpen, p.Hash()); err != nil {
			return err
		}
		if status := v.Status(stateDB); status != StatusUninitialized {
			return fmt.Errorf("%w: status %s", ErrAlreadyOpen, status)
		}
		margin, err := route.Decode(p.MarginRoute)
		if err != nil {
			return err
		}
		collateral, debt := margin.TokenOut(), margin.TokenIn()
		if collateral == debt {
			return fmt.Errorf("%w: collateral and debt are both %s", ErrRouteMismatch, debt.Hex())
		}
		state.SetAddress(stateDB, v.address, collateralKey, collateral)
		state.SetAddress(stateDB, v.address, debtKey, debt)
		v.setStatus(stateDB, StatusActive)
		return v.increase(stateDB, p)
	})
}

// Increase adds a deposit and more borrowed margin to an open position
func (v *Vault) Increase(stateDB state.StateDB, caller Caller, p OpenParams) error {
	return v.guard(stateDB, ActionIncrease, func() error {
		if err := v.authorize(stateDB, caller, ActionIncrease, p.Hash()); err != nil {
			return err
		}
		if err := v.requireActive(stateDB); err != nil {
			return err
		}
		return v.increase(stateDB, p)
	})
}

func (v *Vault) increase(stateDB state.StateDB, p OpenParams) error {
	if p.DepositAmount == nil || p.DepositAmount.Sign() <= 0 {
		return fmt.Errorf("%w: deposit", ErrInvalidAmount)
	}
	if p.BorrowAmount == nil || p.BorrowAmount.Sign() <= 0 {
		return fmt.Errorf("%w: borrow", ErrInvalidAmount)
	}
	collateral, debt := v.CollateralAsset(stateDB), v.DebtAsset(stateDB)
	if err := checkRoute(p.MarginRoute, router.ModeExactIn, route.FlagMarginOpen, debt, collateral); err != nil {
		return err
	}
	if err := v.pullDeposit(stateDB, p); err != nil {
		return err
	}

	deposited := new(big.Int).Set(p.DepositAmount)
	if p.DepositAsset == collateral {
		if len(p.DepositRoute) != 0 {
			return fmt.Errorf("%w: deposit route for a collateral deposit", ErrRouteMismatch)
		}
		if err := v.deps.Market.Supply(stateDB, v.address, collateral, deposited, v.address); err != nil {
			return err
		}
	} else {
		if err := checkRoute(p.DepositRoute, router.ModeExactIn, route.FlagExactIn, p.DepositAsset, collateral); err != nil {
			return err
		}
		res, err := v.deps.Router.ExactInput(stateDB, router.ExactInputParams{
			Settlement: v.settlement(depositAccount{v}, p.Partner, p.FeeBps),
			Route:      p.DepositRoute,
			AmountIn:   p.DepositAmount,
			MinOut:     p.MinDeposited,
		})
		if err != nil {
			return fmt.Errorf("deposit route: %w", err)
		}
		deposited = res.AmountOut
	}
	if p.MinDeposited != nil && deposited.Cmp(p.MinDeposited) < 0 {
		return fmt.Errorf("%w: deposited %s below %s", ErrSlippageExceeded, deposited, p.MinDeposited)
	}

	res, err := v.deps.Router.ExactInput(stateDB, router.ExactInputParams{
		Settlement: v.settlement(marginAccount{v: v, debt: debt}, p.Partner, p.FeeBps),
		Route:      p.MarginRoute,
		AmountIn:   p.BorrowAmount,
		MinOut:     p.MinMarginReceived,
	})
	if err != nil {
		return fmt.Errorf("margin route: %w", err)
	}

	v.log().Debug("position increased",
		"vault", v.address,
		"deposited", deposited,
		"borrowed", p.BorrowAmount,
		"margin", res.AmountOut,
	)
	return nil
}

func (v *Vault) pullDeposit(stateDB state.StateDB, p OpenParams) error {
	owner := v.Owner(stateDB)
	if !p.Native {
		return token.TransferFrom(stateDB, p.DepositAsset, v.address, owner, v.address, p.DepositAmount)
	}
	if p.DepositAsset != v.deps.Wrapped {
		return fmt.Errorf("%w: native deposit of %s", ErrRouteMismatch, p.DepositAsset.Hex())
	}
	native, overflow := uint256.FromBig(p.DepositAmount)
	if overflow {
		return ErrInvalidAmount
	}
	if err := state.Transfer(stateDB, owner, v.address, native); err != nil {
		return err
	}
	return token.Wrap(stateDB, v.deps.Wrapped, v.address, p.DepositAmount)
}

// Close buys back the full debt with collateral, repays it and returns the
// remaining collateral to the owner
func (v *Vault) Close(stateDB state.StateDB, caller Caller, p CloseParams) error {
	return v.guard(stateDB, ActionClose, func() error {
		if err := v.authorize(stateDB, caller, ActionClose, p.Hash()); err != nil {
			return err
		}
		return v.close(stateDB, p)
	})
}

// CloseFull is Close without bounds or fee
func (v *Vault) CloseFull(stateDB state.StateDB, caller Caller, raw []byte) error {
	return v.guard(stateDB, ActionCloseFull, func() error {
		if err := v.authorize(stateDB, caller, ActionCloseFull, CloseFullParams(raw)); err != nil {
			return err
		}
		return v.close(stateDB, CloseParams{Route: raw})
	})
}

func (v *Vault) close(stateDB state.StateDB, p CloseParams) error {
	if err := v.requireActive(stateDB); err != nil {
		return err
	}
	collateral, debt := v.CollateralAsset(stateDB), v.DebtAsset(stateDB)
	if err := checkRoute(p.Route, router.ModeExactOut, route.FlagMarginClose, collateral, debt); err != nil {
		return err
	}

	owed := v.deps.Market.BorrowBalance(stateDB, v.address, debt)
	if owed.Sign() > 0 {
		_, err := v.deps.Router.ExactOutput(stateDB, router.ExactOutputParams{
			Settlement: v.settlement(closeAccount{v}, p.Partner, p.FeeBps),
			Route:      p.Route,
			AmountOut:  owed,
			MaxIn:      p.MaxAmountIn,
		})
		if err != nil {
			return fmt.Errorf("close route: %w", err)
		}
	}

	remaining := v.deps.Market.SupplyBalance(stateDB, v.address, collateral)
	if p.MinAmountOut != nil && remaining.Cmp(p.MinAmountOut) < 0 {
		return fmt.Errorf("%w: returned %s below %s", ErrSlippageExceeded, remaining, p.MinAmountOut)
	}
	if remaining.Sign() > 0 {
		if err := v.deps.Market.Redeem(stateDB, v.address, collateral, remaining, v.Owner(stateDB)); err != nil {
			return err
		}
	}
	v.setStatus(stateDB, StatusClosed)
	v.log().Debug("position closed",
		"vault", v.address,
		"repaid", owed,
		"returned", remaining,
	)
	return nil
}

// Liquidate sells AmountIn of seized collateral for the debt asset and
// repays with it. Anyone may call it while the market reports a shortfall.
// Proceeds above the outstanding debt are paid to the owner.
func (v *Vault) Liquidate(stateDB state.StateDB, liquidator common.Address, p LiquidateParams) error {
	return v.guard(stateDB, ActionLiquidate, func() error {
		if err := v.requireActive(stateDB); err != nil {
			return err
		}
		if !v.deps.Market.Shortfall(stateDB, v.address) {
			return ErrNotLiquidatable
		}
		collateral, debt := v.CollateralAsset(stateDB), v.DebtAsset(stateDB)
		if err := checkRoute(p.Route, router.ModeExactIn, route.FlagLiquidate, collateral, debt); err != nil {
			return err
		}
		res, err := v.deps.Router.ExactInput(stateDB, router.ExactInputParams{
			Settlement: v.settlement(liquidateAccount{v}, common.Address{}, 0),
			Route:      p.Route,
			AmountIn:   p.AmountIn,
			MinOut:     p.MinOut,
		})
		if err != nil {
			return fmt.Errorf("liquidation route: %w", err)
		}
		if v.deps.Market.BorrowBalance(stateDB, v.address, debt).Sign() == 0 {
			v.setStatus(stateDB, StatusLiquidated)
		}
		v.log().Info("position liquidated",
			"vault", v.address,
			"liquidator", liquidator,
			"seized", p.AmountIn,
			"proceeds", res.AmountOut,
		)
		return nil
	})
}

// Repay pays back amount of debt from the owner's balance
func (v *Vault) Repay(stateDB state.StateDB, caller Caller, amount *big.Int) error {
	return v.guard(stateDB, ActionRepay, func() error {
		if err := v.authorize(stateDB, caller, ActionRepay, RepayParams(amount)); err != nil {
			return err
		}
		if err := v.requireActive(stateDB); err != nil {
			return err
		}
		if amount == nil || amount.Sign() <= 0 {
			return ErrInvalidAmount
		}
		debt := v.DebtAsset(stateDB)
		if err := token.TransferFrom(stateDB, debt, v.address, v.Owner(stateDB), v.address, amount); err != nil {
			return err
		}
		return v.deps.Market.Repay(stateDB, v.address, debt, amount, v.address)
	})
}

// Withdraw sends amount of asset to the owner. Supplied collateral is
// redeemed through the market, which keeps the position healthy; any other
// asset comes from the vault's idle balance. unwrapNative pays the wrapped
// native token out as native balance.
func (v *Vault) Withdraw(stateDB state.StateDB, caller Caller, amount *big.Int, asset common.Address, unwrapNative bool) error {
	return v.guard(stateDB, ActionWithdraw, func() error {
		if err := v.authorize(stateDB, caller, ActionWithdraw, WithdrawParams(amount, asset, unwrapNative)); err != nil {
			return err
		}
		if amount == nil || amount.Sign() <= 0 {
			return ErrInvalidAmount
		}
		market := v.deps.Market
		if asset == v.CollateralAsset(stateDB) && market.SupplyBalance(stateDB, v.address, asset).Sign() > 0 {
			if err := market.Redeem(stateDB, v.address, asset, amount, v.address); err != nil {
				return err
			}
		}
		owner := v.Owner(stateDB)
		if unwrapNative {
			if asset != v.deps.Wrapped {
				return fmt.Errorf("%w: cannot unwrap %s", ErrRouteMismatch, asset.Hex())
			}
			return token.Unwrap(stateDB, v.deps.Wrapped, v.address, owner, amount)
		}
		return token.Transfer(stateDB, asset, v.address, owner, amount)
	})
}

// TransferOwnership hands the vault to newOwner
func (v *Vault) TransferOwnership(stateDB state.StateDB, caller Caller, newOwner common.Address) error {
	return v.guard(stateDB, ActionTransferOwnership, func() error {
		if err := v.authorize(stateDB, caller, ActionTransferOwnership, TransferOwnershipParams(newOwner)); err != nil {
			return err
		}
		if newOwner == (common.Address{}) {
			return ErrZeroAddress
		}
		old := v.Owner(stateDB)
		state.SetAddress(stateDB, v.address, ownerKey, newOwner)
		if v.deps.Index != nil {
			if err := v.deps.Index.Reassign(stateDB, v.address, old, newOwner); err != nil {
				return err
			}
		}
		v.log().Info("vault ownership transferred",
			"vault", v.address,
			"from", old,
			"to", newOwner,
		)
		return nil
	})
}

// =========================================================================
// Helpers
// =========================================================================

// guard runs fn atomically with the vault marked busy
func (v *Vault) guard(stateDB state.StateDB, op string, fn func() error) (err error) {
	defer func() { v.deps.Metrics.VaultOp(op, err) }()

	if v.Owner(stateDB) == (common.Address{}) {
		return fmt.Errorf("%w: %s", ErrNotInitialized, v.address.Hex())
	}
	if state.GetBool(stateDB, v.address, busyKey) {
		return ErrReentrantCall
	}
	state.SetBool(stateDB, v.address, busyKey, true)
	defer state.SetBool(stateDB, v.address, busyKey, false)

	if err = state.Atomic(stateDB, fn); err != nil {
		v.log().Debug("vault operation failed",
			"op", op,
			"vault", v.address,
			"err", err,
		)
		return err
	}
	return nil
}

// authorize accepts the owner, or anyone holding a valid authorization
// signed by the owner for action with these arguments. An accepted
// authorization consumes its nonce.
func (v *Vault) authorize(stateDB state.StateDB, c Caller, action string, params common.Hash) error {
	owner := v.Owner(stateDB)
	if c.Address == owner {
		return nil
	}
	if c.Auth == nil {
		return fmt.Errorf("%w: caller %s", ErrOnlyOwner, c.Address.Hex())
	}
	if v.deps.Verifier == nil {
		return auth.ErrInvalidSignature
	}
	nonce := v.AuthNonce(stateDB)
	err := auth.Check(v.deps.Verifier, v.DomainSeparator(), c.Auth, owner, v.address, action, params, nonce, stateDB.GetTime())
	if err != nil {
		return err
	}
	state.SetUint64(stateDB, v.address, authNonceKey, nonce+1)
	return nil
}

func (v *Vault) requireActive(stateDB state.StateDB) error {
	if status := v.Status(stateDB); status != StatusActive {
		return fmt.Errorf("%w: status %s", ErrNotActive, status)
	}
	return nil
}

func (v *Vault) setStatus(stateDB state.StateDB, s Status) {
	state.SetUint64(stateDB, v.address, statusKey, uint64(s))
}

func (v *Vault) settlement(a router.Account, partner common.Address, feeBps uint16) router.Settlement {
	return router.Settlement{
		Account:   a,
		Partner:   partner,
		FeeBps:    feeBps,
		Collector: v.deps.Collector,
	}
}

func (v *Vault) log() log.Logger {
	if v.deps.Log == nil {
		return log.NewNoOpLogger()
	}
	return v.deps.Log
}

// checkRoute decodes raw and checks it moves tokenIn to tokenOut into the
// vault in the given mode, with entry as the operation flag
func checkRoute(raw []byte, mode router.Mode, entry route.Flag, tokenIn, tokenOut common.Address) error {
	r, err := route.Decode(raw)
	if err != nil {
		return err
	}
	if err := router.CheckFlags(mode, r); err != nil {
		return fmt.Errorf("%w: %w", ErrRouteMismatch, err)
	}
	idx := 0
	if mode == router.ModeExactOut {
		idx = len(r.Hops) - 1
	}
	if r.Hops[idx].Flag != entry {
		return fmt.Errorf("%w: entry flag %s, want %s", ErrRouteMismatch, r.Hops[idx].Flag, entry)
	}
	if r.TokenIn() != tokenIn || r.TokenOut() != tokenOut {
		return fmt.Errorf("%w: route %s -> %s, want %s -> %s",
			ErrRouteMismatch, r.TokenIn().Hex(), r.TokenOut().Hex(), tokenIn.Hex(), tokenOut.Hex())
	}
	if r.Terminal.Flag != route.TerminalVault {
		return fmt.Errorf("%w: terminal flag %s", ErrRouteMismatch, r.Terminal.Flag)
	}
	return nil
}
