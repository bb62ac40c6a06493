// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package token keeps fungible token balances and allowances in ledger
// storage. Any address can act as a token; its balances live in that
// address's storage.
package token

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"

	"github.com/luxfi/slots/state"
)

// Storage key prefixes for token state
var (
	balancePrefix   = []byte("tok/bal")
	allowancePrefix = []byte("tok/alw")
	supplyPrefix    = []byte("tok/sup")
)

var (
	ErrInsufficientBalance   = errors.New("insufficient token balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrInvalidAmount         = errors.New("invalid amount")
	ErrZeroAddress           = errors.New("zero address")
)

func balanceKey(holder common.Address) common.Hash {
	return state.Key(balancePrefix, holder.Bytes())
}

func allowanceKey(owner, spender common.Address) common.Hash {
	return state.Key(allowancePrefix, owner.Bytes(), spender.Bytes())
}

// BalanceOf returns holder's balance of token
func BalanceOf(stateDB state.StateDB, token, holder common.Address) *big.Int {
	return state.GetBig(stateDB, token, balanceKey(holder))
}

// TotalSupply returns the minted supply of token
func TotalSupply(stateDB state.StateDB, token common.Address) *big.Int {
	return state.GetBig(stateDB, token, state.Key(supplyPrefix))
}

// Allowance returns how much spender may move on behalf of owner
func Allowance(stateDB state.StateDB, token, owner, spender common.Address) *big.Int {
	return state.GetBig(stateDB, token, allowanceKey(owner, spender))
}

// Approve sets spender's allowance over owner's balance
func Approve(stateDB state.StateDB, token, owner, spender common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if spender == (common.Address{}) {
		return ErrZeroAddress
	}
	state.SetBig(stateDB, token, allowanceKey(owner, spender), amount)
	return nil
}

// Transfer moves amount of token from one holder to another
func Transfer(stateDB state.StateDB, token, from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if to == (common.Address{}) {
		return ErrZeroAddress
	}
	if amount.Sign() == 0 {
		return nil
	}
	bal := BalanceOf(stateDB, token, from)
	if bal.Cmp(amount) < 0 {
		return fmt.Errorf("%w: token=%s holder=%s balance=%s amount=%s",
			ErrInsufficientBalance, token.Hex(), from.Hex(), bal, amount)
	}
	state.SetBig(stateDB, token, balanceKey(from), new(big.Int).Sub(bal, amount))
	state.AddBig(stateDB, token, balanceKey(to), amount)
	return nil
}

// TransferFrom moves amount from owner to recipient using spender's allowance
func TransferFrom(stateDB state.StateDB, token, spender, from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if spender != from {
		allowed := Allowance(stateDB, token, from, spender)
		if allowed.Cmp(amount) < 0 {
			return fmt.Errorf("%w: token=%s owner=%s spender=%s allowance=%s amount=%s",
				ErrInsufficientAllowance, token.Hex(), from.Hex(), spender.Hex(), allowed, amount)
		}
		state.SetBig(stateDB, token, allowanceKey(from, spender), new(big.Int).Sub(allowed, amount))
	}
	return Transfer(stateDB, token, from, to, amount)
}

// Mint creates amount of token for holder
func Mint(stateDB state.StateDB, token, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if to == (common.Address{}) {
		return ErrZeroAddress
	}
	state.AddBig(stateDB, token, balanceKey(to), amount)
	state.AddBig(stateDB, token, state.Key(supplyPrefix), amount)
	return nil
}

// Burn destroys amount of holder's token
func Burn(stateDB state.StateDB, token, from common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	bal := BalanceOf(stateDB, token, from)
	if bal.Cmp(amount) < 0 {
		return fmt.Errorf("%w: token=%s holder=%s balance=%s amount=%s",
			ErrInsufficientBalance, token.Hex(), from.Hex(), bal, amount)
	}
	state.SetBig(stateDB, token, balanceKey(from), new(big.Int).Sub(bal, amount))
	state.AddBig(stateDB, token, state.Key(supplyPrefix), new(big.Int).Neg(amount))
	return nil
}

// =========================================================================
// Wrapped native asset
// =========================================================================

// Wrap converts holder's native balance into the wrapped token. The native
// balance is escrowed at the wrapped token's address.
func Wrap(stateDB state.StateDB, wrapped, holder common.Address, amount *big.Int) error {
	native, overflow := uint256.FromBig(amount)
	if overflow || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if err := state.Transfer(stateDB, holder, wrapped, native); err != nil {
		return err
	}
	return Mint(stateDB, wrapped, holder, amount)
}

// Unwrap burns holder's wrapped token and pays the native balance to
// recipient
func Unwrap(stateDB state.StateDB, wrapped, holder, recipient common.Address, amount *big.Int) error {
	native, overflow := uint256.FromBig(amount)
	if overflow || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if err := Burn(stateDB, wrapped, holder, amount); err != nil {
		return err
	}
	return state.Transfer(stateDB, wrapped, recipient, native)
}
