// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package lending is a Compound-style lending market used as the external
// collaborator of position vaults. It tracks supply and borrow balances per
// account and asset and enforces collateral-factor limits. Interest does not
// accrue.
package lending

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"sync"

	"github.com/luxfi/geth/common"

	"github.com/luxfi/slots/state"
	"github.com/luxfi/slots/token"
)

// RAY is the fixed-point scale of prices and collateral factors
var RAY = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// Storage key prefixes for market state
var (
	supplyPrefix      = []byte("lend/sup")
	borrowPrefix      = []byte("lend/bor")
	totalSupplyPrefix = []byte("lend/tsup")
	totalBorrowPrefix = []byte("lend/tbor")
)

var (
	ErrReserveNotFound         = errors.New("reserve not found")
	ErrReserveAlreadyExists    = errors.New("reserve already exists")
	ErrInvalidCollateralFactor = errors.New("invalid collateral factor")
	ErrInvalidPrice            = errors.New("invalid price")
	ErrInvalidAmount           = errors.New("invalid amount")
	ErrInsufficientSupply      = errors.New("insufficient supply balance")
	ErrInsufficientLiquidity   = errors.New("insufficient liquidity")
	ErrMaxLTVExceeded          = errors.New("max LTV exceeded")
	ErrHealthFactorTooLow      = errors.New("health factor too low")
	ErrRepayExceedsDebt        = errors.New("repay exceeds debt")
	ErrBorrowCapExceeded       = errors.New("borrow cap exceeded")
)

// Reserve is the configuration of a listed asset
type Reserve struct {
	Asset common.Address

	// CollateralFactor is the share of supplied value usable as collateral
	// (scaled by 1e18, e.g. 0.8e18 = 80%)
	CollateralFactor *big.Int

	// Price of one base unit in the market's numeraire (scaled by 1e18)
	Price *big.Int

	// BorrowCap bounds total borrows (0 = no cap)
	BorrowCap *big.Int
}

// Market is a lending market deployed at a fixed address. Reserve
// configuration lives in memory; balances live in ledger storage so they
// follow snapshots.
type Market struct {
	mu sync.RWMutex

	address  common.Address
	reserves map[common.Address]*Reserve
}

// NewMarket creates a market at addr
func NewMarket(addr common.Address) *Market {
	return &Market{
		address:  addr,
		reserves: make(map[common.Address]*Reserve),
	}
}

// Address returns the market address
func (m *Market) Address() common.Address { return m.address }

// =========================================================================
// Admin Functions
// =========================================================================

// ListReserve lists an asset
func (m *Market) ListReserve(asset common.Address, collateralFactor, price *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.reserves[asset]; exists {
		return ErrReserveAlreadyExists
	}
	if collateralFactor == nil || collateralFactor.Sign() < 0 || collateralFactor.Cmp(RAY) > 0 {
		return ErrInvalidCollateralFactor
	}
	if price == nil || price.Sign() <= 0 {
		return ErrInvalidPrice
	}
	m.reserves[asset] = &Reserve{
		Asset:            asset,
		CollateralFactor: new(big.Int).Set(collateralFactor),
		Price:            new(big.Int).Set(price),
		BorrowCap:        big.NewInt(0),
	}
	return nil
}

// SetPrice updates the oracle price of an asset
func (m *Market) SetPrice(asset common.Address, price *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	reserve, exists := m.reserves[asset]
	if !exists {
		return ErrReserveNotFound
	}
	if price == nil || price.Sign() <= 0 {
		return ErrInvalidPrice
	}
	reserve.Price = new(big.Int).Set(price)
	return nil
}

// SetBorrowCap sets the maximum borrowable for an asset
func (m *Market) SetBorrowCap(asset common.Address, cap *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	reserve, exists := m.reserves[asset]
	if !exists {
		return ErrReserveNotFound
	}
	reserve.BorrowCap = new(big.Int).Set(cap)
	return nil
}

// Reserve returns a copy of an asset's configuration
func (m *Market) Reserve(asset common.Address) (Reserve, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.reserves[asset]
	if !ok {
		return Reserve{}, false
	}
	return *r, true
}

// =========================================================================
// Core Lending Operations
// =========================================================================

// Supply moves amount of asset from payer into the market and credits it to
// onBehalfOf
func (m *Market) Supply(
	stateDB state.StateDB,
	payer common.Address,
	asset common.Address,
	amount *big.Int,
	onBehalfOf common.Address,
) error {
	if _, ok := m.Reserve(asset); !ok {
		return fmt.Errorf("%w: %s", ErrReserveNotFound, asset.Hex())
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	return state.Atomic(stateDB, func() error {
		if err := token.Transfer(stateDB, asset, payer, m.address, amount); err != nil {
			return err
		}
		state.AddBig(stateDB, m.address, positionKey(supplyPrefix, onBehalfOf, asset), amount)
		state.AddBig(stateDB, m.address, totalKey(totalSupplyPrefix, asset), amount)
		return nil
	})
}

// Borrow lends amount of asset to borrower, paying it out to to
func (m *Market) Borrow(
	stateDB state.StateDB,
	borrower common.Address,
	asset common.Address,
	amount *big.Int,
	to common.Address,
) error {
	reserve, ok := m.Reserve(asset)
	if !ok {
		return fmt.Errorf("%w: %s", ErrReserveNotFound, asset.Hex())
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if reserve.BorrowCap.Sign() > 0 {
		total := new(big.Int).Add(m.TotalBorrows(stateDB, asset), amount)
		if total.Cmp(reserve.BorrowCap) > 0 {
			return ErrBorrowCapExceeded
		}
	}
	if cash := m.Cash(stateDB, asset); amount.Cmp(cash) > 0 {
		return fmt.Errorf("%w: want %s, cash %s", ErrInsufficientLiquidity, amount, cash)
	}

	return state.Atomic(stateDB, func() error {
		state.AddBig(stateDB, m.address, positionKey(borrowPrefix, borrower, asset), amount)
		state.AddBig(stateDB, m.address, totalKey(totalBorrowPrefix, asset), amount)

		collateral, debt := m.AccountLiquidity(stateDB, borrower)
		if debt.Cmp(collateral) > 0 {
			return fmt.Errorf("%w: collateral=%s debt=%s", ErrMaxLTVExceeded, collateral, debt)
		}
		return token.Transfer(stateDB, asset, m.address, to, amount)
	})
}

// Repay pays back amount of onBehalfOf's debt in asset from payer
func (m *Market) Repay(
	stateDB state.StateDB,
	payer common.Address,
	asset common.Address,
	amount *big.Int,
	onBehalfOf common.Address,
) error {
	if _, ok := m.Reserve(asset); !ok {
		return fmt.Errorf("%w: %s", ErrReserveNotFound, asset.Hex())
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	debt := m.BorrowBalance(stateDB, onBehalfOf, asset)
	if amount.Cmp(debt) > 0 {
		return fmt.Errorf("%w: debt=%s amount=%s", ErrRepayExceedsDebt, debt, amount)
	}
	return state.Atomic(stateDB, func() error {
		if err := token.Transfer(stateDB, asset, payer, m.address, amount); err != nil {
			return err
		}
		neg := new(big.Int).Neg(amount)
		state.AddBig(stateDB, m.address, positionKey(borrowPrefix, onBehalfOf, asset), neg)
		state.AddBig(stateDB, m.address, totalKey(totalBorrowPrefix, asset), neg)
		return nil
	})
}

// Redeem withdraws amount of owner's supplied asset to to. The account must
// stay healthy afterwards.
func (m *Market) Redeem(
	stateDB state.StateDB,
	owner common.Address,
	asset common.Address,
	amount *big.Int,
	to common.Address,
) error {
	if _, ok := m.Reserve(asset); !ok {
		return fmt.Errorf("%w: %s", ErrReserveNotFound, asset.Hex())
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	supplied := m.SupplyBalance(stateDB, owner, asset)
	if amount.Cmp(supplied) > 0 {
		return fmt.Errorf("%w: supplied=%s amount=%s", ErrInsufficientSupply, supplied, amount)
	}
	if cash := m.Cash(stateDB, asset); amount.Cmp(cash) > 0 {
		return fmt.Errorf("%w: want %s, cash %s", ErrInsufficientLiquidity, amount, cash)
	}

	return state.Atomic(stateDB, func() error {
		neg := new(big.Int).Neg(amount)
		state.AddBig(stateDB, m.address, positionKey(supplyPrefix, owner, asset), neg)
		state.AddBig(stateDB, m.address, totalKey(totalSupplyPrefix, asset), neg)

		collateral, debt := m.AccountLiquidity(stateDB, owner)
		if debt.Cmp(collateral) > 0 {
			return fmt.Errorf("%w: collateral=%s debt=%s", ErrHealthFactorTooLow, collateral, debt)
		}
		return token.Transfer(stateDB, asset, m.address, to, amount)
	})
}

// Seize moves amount of owner's supplied asset to to without a health
// check. Liquidations use it after the account was found in shortfall.
func (m *Market) Seize(
	stateDB state.StateDB,
	owner common.Address,
	asset common.Address,
	amount *big.Int,
	to common.Address,
) error {
	if _, ok := m.Reserve(asset); !ok {
		return fmt.Errorf("%w: %s", ErrReserveNotFound, asset.Hex())
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	supplied := m.SupplyBalance(stateDB, owner, asset)
	if amount.Cmp(supplied) > 0 {
		return fmt.Errorf("%w: supplied=%s amount=%s", ErrInsufficientSupply, supplied, amount)
	}
	return state.Atomic(stateDB, func() error {
		neg := new(big.Int).Neg(amount)
		state.AddBig(stateDB, m.address, positionKey(supplyPrefix, owner, asset), neg)
		state.AddBig(stateDB, m.address, totalKey(totalSupplyPrefix, asset), neg)
		return token.Transfer(stateDB, asset, m.address, to, amount)
	})
}

// Shortfall reports whether who's debt exceeds its weighted collateral
func (m *Market) Shortfall(stateDB state.StateDB, who common.Address) bool {
	collateral, debt := m.AccountLiquidity(stateDB, who)
	return debt.Cmp(collateral) > 0
}

// =========================================================================
// Views
// =========================================================================

// AccountLiquidity returns the collateral-factor weighted value of who's
// supply and the value of its debt, both in the numeraire
func (m *Market) AccountLiquidity(stateDB state.StateDB, who common.Address) (*big.Int, *big.Int) {
	collateral := big.NewInt(0)
	debt := big.NewInt(0)
	for _, r := range m.sortedReserves() {
		if s := m.SupplyBalance(stateDB, who, r.Asset); s.Sign() > 0 {
			v := new(big.Int).Mul(s, r.Price)
			v.Mul(v, r.CollateralFactor)
			v.Div(v, RAY)
			v.Div(v, RAY)
			collateral.Add(collateral, v)
		}
		if b := m.BorrowBalance(stateDB, who, r.Asset); b.Sign() > 0 {
			v := new(big.Int).Mul(b, r.Price)
			v.Div(v, RAY)
			debt.Add(debt, v)
		}
	}
	return collateral, debt
}

// SupplyBalance returns who's supplied amount of asset
func (m *Market) SupplyBalance(stateDB state.StateDB, who, asset common.Address) *big.Int {
	return state.GetBig(stateDB, m.address, positionKey(supplyPrefix, who, asset))
}

// BorrowBalance returns who's debt in asset
func (m *Market) BorrowBalance(stateDB state.StateDB, who, asset common.Address) *big.Int {
	return state.GetBig(stateDB, m.address, positionKey(borrowPrefix, who, asset))
}

// TotalSupply returns the total supplied amount of asset
func (m *Market) TotalSupply(stateDB state.StateDB, asset common.Address) *big.Int {
	return state.GetBig(stateDB, m.address, totalKey(totalSupplyPrefix, asset))
}

// TotalBorrows returns the total borrowed amount of asset
func (m *Market) TotalBorrows(stateDB state.StateDB, asset common.Address) *big.Int {
	return state.GetBig(stateDB, m.address, totalKey(totalBorrowPrefix, asset))
}

// Cash returns the market's idle balance of asset
func (m *Market) Cash(stateDB state.StateDB, asset common.Address) *big.Int {
	return token.BalanceOf(stateDB, asset, m.address)
}

func (m *Market) sortedReserves() []Reserve {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Reserve, 0, len(m.reserves))
	for _, r := range m.reserves {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].Asset.Bytes(), out[j].Asset.Bytes()) < 0
	})
	return out
}

// positionKey generates the storage key of an account position
func positionKey(prefix []byte, who, asset common.Address) common.Hash {
	return state.Key(prefix, who.Bytes(), asset.Bytes())
}

func totalKey(prefix []byte, asset common.Address) common.Hash {
	return state.Key(prefix, asset.Bytes())
}
