// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package token

import (
	"errors"
	"math/big"
	"testing"

	"github.com/holiman/uint256"
	"github.com/luxfi/database/memdb"
	"github.com/luxfi/geth/common"

	"github.com/luxfi/slots/state"
)

var (
	testToken   = common.HexToAddress("0x4444444444444444444444444444444444444444")
	testWrapped = common.HexToAddress("0x7777777777777777777777777777777777777777")
	testAlice   = common.HexToAddress("0x5555555555555555555555555555555555555555")
	testBob     = common.HexToAddress("0x6666666666666666666666666666666666666666")
)

func TestTransfer(t *testing.T) {
	st := state.New(memdb.New())
	if err := Mint(st, testToken, testAlice, big.NewInt(100)); err != nil {
		t.Fatal(err)
	}

	if err := Transfer(st, testToken, testAlice, testBob, big.NewInt(30)); err != nil {
		t.Fatalf("transfer failed: %v", err)
	}
	if got := BalanceOf(st, testToken, testAlice); got.Int64() != 70 {
		t.Errorf("expected alice 70, got %v", got)
	}
	if got := BalanceOf(st, testToken, testBob); got.Int64() != 30 {
		t.Errorf("expected bob 30, got %v", got)
	}

	err := Transfer(st, testToken, testBob, testAlice, big.NewInt(31))
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Errorf("expected ErrInsufficientBalance, got %v", err)
	}
}

func TestTransferFrom_Allowance(t *testing.T) {
	st := state.New(memdb.New())
	_ = Mint(st, testToken, testAlice, big.NewInt(100))

	err := TransferFrom(st, testToken, testBob, testAlice, testBob, big.NewInt(10))
	if !errors.Is(err, ErrInsufficientAllowance) {
		t.Fatalf("expected ErrInsufficientAllowance, got %v", err)
	}

	if err := Approve(st, testToken, testAlice, testBob, big.NewInt(25)); err != nil {
		t.Fatal(err)
	}
	if err := TransferFrom(st, testToken, testBob, testAlice, testBob, big.NewInt(10)); err != nil {
		t.Fatalf("transferFrom failed: %v", err)
	}
	if got := Allowance(st, testToken, testAlice, testBob); got.Int64() != 15 {
		t.Errorf("expected remaining allowance 15, got %v", got)
	}
}

func TestBurn_ReducesSupply(t *testing.T) {
	st := state.New(memdb.New())
	_ = Mint(st, testToken, testAlice, big.NewInt(50))
	if err := Burn(st, testToken, testAlice, big.NewInt(20)); err != nil {
		t.Fatal(err)
	}
	if got := TotalSupply(st, testToken); got.Int64() != 30 {
		t.Errorf("expected supply 30, got %v", got)
	}
}

func TestWrapUnwrap(t *testing.T) {
	st := state.New(memdb.New())
	st.AddBalance(testAlice, uint256.NewInt(1000))

	if err := Wrap(st, testWrapped, testAlice, big.NewInt(400)); err != nil {
		t.Fatalf("wrap failed: %v", err)
	}
	if got := BalanceOf(st, testWrapped, testAlice); got.Int64() != 400 {
		t.Errorf("expected wrapped 400, got %v", got)
	}
	if got := st.GetBalance(testAlice).Uint64(); got != 600 {
		t.Errorf("expected native 600, got %d", got)
	}

	if err := Unwrap(st, testWrapped, testAlice, testBob, big.NewInt(150)); err != nil {
		t.Fatalf("unwrap failed: %v", err)
	}
	if got := st.GetBalance(testBob).Uint64(); got != 150 {
		t.Errorf("expected bob native 150, got %d", got)
	}
	if got := BalanceOf(st, testWrapped, testAlice); got.Int64() != 250 {
		t.Errorf("expected wrapped 250, got %v", got)
	}
}
