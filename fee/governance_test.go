// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package fee

import (
	"errors"
	"math"
	"math/big"
	"testing"

	"github.com/luxfi/database/memdb"
	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/slots/internal/access"
	"github.com/luxfi/slots/state"
	"github.com/luxfi/slots/token"
)

var (
	govAddr   = common.HexToAddress("0x0000000000000000000000000000000000009003")
	adminAddr = common.HexToAddress("0x1111111111111111111111111111111111111111")
	otherAddr = common.HexToAddress("0x2222222222222222222222222222222222222222")
	assetAddr = common.HexToAddress("0x3333333333333333333333333333333333333333")
)

const day = 24 * 60 * 60

func setup(t *testing.T, initial uint16) (*state.DB, *Governance) {
	t.Helper()
	st := state.New(memdb.New())
	st.SetBlock(1, 1_700_000_000)
	g, err := New(govAddr, DefaultParams())
	require.NoError(t, err)
	require.NoError(t, g.Deploy(st, adminAddr, initial))
	return st, g
}

func TestGovernance_CooldownThenBounds(t *testing.T) {
	st, g := setup(t, 0)

	err := g.ChangeShare(st, adminAddr, 100)
	require.ErrorIs(t, err, ErrChangeTooEarly)

	st.AdvanceTime(day)
	require.NoError(t, g.ChangeShare(st, adminAddr, 100))
	require.Equal(t, uint16(100), g.GetShare(st))

	// bounds come before the cooldown
	err = g.ChangeShare(st, adminAddr, 900)
	require.ErrorIs(t, err, ErrChangeOutOfBounds)
}

func TestGovernance_ChangeSequence(t *testing.T) {
	st, g := setup(t, 0)

	st.AdvanceTime(day)
	require.NoError(t, g.ChangeShare(st, adminAddr, 100))

	st.AdvanceTime(day)
	require.NoError(t, g.ChangeShare(st, adminAddr, 150))

	st.AdvanceTime(day / 2)
	require.ErrorIs(t, g.ChangeShare(st, adminAddr, 200), ErrChangeTooEarly)

	st.AdvanceTime(day / 2)
	require.ErrorIs(t, g.ChangeShare(st, adminAddr, 900), ErrChangeOutOfBounds)
	require.ErrorIs(t, g.ChangeShare(st, adminAddr, math.MaxUint16), ErrChangeOutOfBounds)

	require.NoError(t, g.ChangeShare(st, adminAddr, 140))
	st.AdvanceTime(day)
	require.NoError(t, g.ChangeShare(st, adminAddr, 60))
	require.Equal(t, uint16(60), g.GetShare(st))
	require.Equal(t, st.GetTime(), g.LastChangedAt(st))
}

func TestGovernance_OnlyAdmin(t *testing.T) {
	st, g := setup(t, 0)
	st.AdvanceTime(day)

	require.ErrorIs(t, g.ChangeShare(st, otherAddr, 50), access.ErrOnlyAdmin)

	require.NoError(t, g.ChangeAdmin(st, adminAddr, otherAddr))
	require.Equal(t, otherAddr, g.Admin(st))
	require.NoError(t, g.ChangeShare(st, otherAddr, 50))
	require.ErrorIs(t, g.ChangeAdmin(st, adminAddr, adminAddr), access.ErrOnlyAdmin)
}

func TestGovernance_Deploy(t *testing.T) {
	st, g := setup(t, 30)
	if got := g.GetShare(st); got != 30 {
		t.Errorf("expected share 30, got %d", got)
	}
	if got := g.LastChangedAt(st); got != st.GetTime() {
		t.Errorf("expected lastChangedAt %d, got %d", st.GetTime(), got)
	}
	if err := g.Deploy(st, adminAddr, 0); err == nil {
		t.Error("expected second deploy to fail")
	}

	g2, err := New(common.HexToAddress("0x9004"), DefaultParams())
	require.NoError(t, err)
	require.ErrorIs(t, g2.Deploy(st, adminAddr, 6000), ErrChangeOutOfBounds)
	require.ErrorIs(t, g2.ChangeShare(st, adminAddr, 0), ErrNotDeployed)
}

func TestGovernance_Withdraw(t *testing.T) {
	st, g := setup(t, 0)
	require.NoError(t, token.Mint(st, assetAddr, govAddr, big.NewInt(1234)))

	_, err := g.Withdraw(st, otherAddr, assetAddr, otherAddr)
	require.ErrorIs(t, err, access.ErrOnlyAdmin)

	amount, err := g.Withdraw(st, adminAddr, assetAddr, otherAddr)
	require.NoError(t, err)
	require.Equal(t, int64(1234), amount.Int64())
	require.Equal(t, int64(1234), token.BalanceOf(st, assetAddr, otherAddr).Int64())

	_, err = g.Withdraw(st, adminAddr, assetAddr, otherAddr)
	require.True(t, errors.Is(err, ErrNothingToWithdraw))
}

func TestSplit(t *testing.T) {
	st, g := setup(t, 0)
	st.AdvanceTime(day)
	require.NoError(t, g.ChangeShare(st, adminAddr, 100))

	fee := big.NewInt(1_000_000)
	protocol, partner := g.Split(st, fee, true)
	require.Equal(t, int64(10_000), protocol.Int64())
	require.Equal(t, int64(990_000), partner.Int64())

	protocol, partner = g.Split(st, fee, false)
	require.Equal(t, int64(1_000_000), protocol.Int64())
	require.Equal(t, int64(0), partner.Int64())

	if got := Amount(big.NewInt(10_000), 50); got.Int64() != 50 {
		t.Errorf("expected 50, got %s", got)
	}
}

func TestParams_Verify(t *testing.T) {
	require.NoError(t, DefaultParams().Verify())
	require.ErrorIs(t, Params{MinBps: 10, MaxBps: 5}.Verify(), ErrInvalidParams)
	require.ErrorIs(t, Params{MaxBps: 10_001}.Verify(), ErrInvalidParams)
}
