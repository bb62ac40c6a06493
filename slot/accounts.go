// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package slot

import (
	"fmt"
	"math/big"

	"github.com/luxfi/geth/common"

	"github.com/luxfi/slots/router"
	"github.com/luxfi/slots/state"
	"github.com/luxfi/slots/token"
)

// Router accounts, one per vault operation. Each decides where input comes
// from and what happens to delivered output.

// depositAccount spends the vault's idle balance and supplies the output
type depositAccount struct{ v *Vault }

func (a depositAccount) Address() common.Address { return a.v.address }

func (a depositAccount) Fund(stateDB state.StateDB, asset common.Address, amount *big.Int, to common.Address) error {
	return token.Transfer(stateDB, asset, a.v.address, to, amount)
}

func (a depositAccount) Credit(stateDB state.StateDB, asset common.Address, amount *big.Int) error {
	return a.v.deps.Market.Supply(stateDB, a.v.address, asset, amount, a.v.address)
}

// marginAccount borrows the input and supplies the output. Output is
// credited before input is funded, so the borrow is checked against the
// enlarged collateral.
type marginAccount struct {
	v    *Vault
	debt common.Address
}

func (a marginAccount) Address() common.Address { return a.v.address }

func (a marginAccount) Fund(stateDB state.StateDB, asset common.Address, amount *big.Int, to common.Address) error {
	if asset != a.debt {
		return fmt.Errorf("%w: margin funds %s, debt is %s", ErrRouteMismatch, asset.Hex(), a.debt.Hex())
	}
	return a.v.deps.Market.Borrow(stateDB, a.v.address, asset, amount, to)
}

func (a marginAccount) Credit(stateDB state.StateDB, asset common.Address, amount *big.Int) error {
	return a.v.deps.Market.Supply(stateDB, a.v.address, asset, amount, a.v.address)
}

// closeAccount redeems collateral to pay for the swap and repays debt with
// its output
type closeAccount struct{ v *Vault }

func (a closeAccount) Address() common.Address { return a.v.address }

func (a closeAccount) Fund(stateDB state.StateDB, asset common.Address, amount *big.Int, to common.Address) error {
	return a.v.deps.Market.Redeem(stateDB, a.v.address, asset, amount, to)
}

func (a closeAccount) Credit(stateDB state.StateDB, asset common.Address, amount *big.Int) error {
	return a.v.deps.Market.Repay(stateDB, a.v.address, asset, amount, a.v.address)
}

// liquidateAccount seizes collateral and repays as much debt as the output
// covers. Output beyond the debt is the owner's equity and goes to the
// owner.
type liquidateAccount struct {
	v *Vault
}

func (a liquidateAccount) Address() common.Address { return a.v.address }

func (a liquidateAccount) Fund(stateDB state.StateDB, asset common.Address, amount *big.Int, to common.Address) error {
	return a.v.deps.Market.Seize(stateDB, a.v.address, asset, amount, to)
}

func (a liquidateAccount) Credit(stateDB state.StateDB, asset common.Address, amount *big.Int) error {
	market := a.v.deps.Market
	repay := market.BorrowBalance(stateDB, a.v.address, asset)
	if repay.Cmp(amount) > 0 {
		repay = new(big.Int).Set(amount)
	}
	if repay.Sign() > 0 {
		if err := market.Repay(stateDB, a.v.address, asset, repay, a.v.address); err != nil {
			return err
		}
	}
	surplus := new(big.Int).Sub(amount, repay)
	if surplus.Sign() == 0 {
		return nil
	}
	return token.Transfer(stateDB, asset, a.v.address, a.v.Owner(stateDB), surplus)
}

var (
	_ router.Account = depositAccount{}
	_ router.Account = marginAccount{}
	_ router.Account = closeAccount{}
	_ router.Account = liquidateAccount{}
)
