// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package access

import (
	"testing"

	"github.com/luxfi/database/memdb"
	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/slots/state"
)

func TestAdmin(t *testing.T) {
	var (
		contract = common.HexToAddress("0x01")
		alice    = common.HexToAddress("0xa1")
		bob      = common.HexToAddress("0xb0")
	)
	st := state.New(memdb.New())
	a := NewAdmin(contract)

	require.ErrorIs(t, a.Init(st, common.Address{}), ErrZeroAddress)
	require.NoError(t, a.Init(st, alice))
	require.Equal(t, alice, a.Get(st))

	require.ErrorIs(t, a.Require(st, bob), ErrOnlyAdmin)
	require.ErrorIs(t, a.Change(st, bob, bob), ErrOnlyAdmin)
	require.ErrorIs(t, a.Change(st, alice, common.Address{}), ErrZeroAddress)

	require.NoError(t, a.Change(st, alice, bob))
	require.NoError(t, a.Require(st, bob))
	require.ErrorIs(t, a.Require(st, alice), ErrOnlyAdmin)
}
