// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package modules

import (
	"testing"

	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/require"
)

func TestDirectory_Register(t *testing.T) {
	d := NewDirectory()
	router := common.HexToAddress("0x9001")
	quoter := common.HexToAddress("0x9002")

	require.NoError(t, d.Register(Module{Name: "quoter", Address: quoter}))
	require.NoError(t, d.Register(Module{Name: "router", Address: router}))

	require.Error(t, d.Register(Module{Name: "router", Address: common.HexToAddress("0x9003")}))
	require.Error(t, d.Register(Module{Name: "other", Address: router}))
	require.Error(t, d.Register(Module{Name: "burn", Address: BlackholeAddr}))
	require.Error(t, d.Register(Module{Name: "zero"}))
	require.Error(t, d.Register(Module{Address: common.HexToAddress("0x9009")}))

	mods := d.Modules()
	require.Len(t, mods, 2)
	require.Equal(t, router, mods[0].Address)
	require.Equal(t, quoter, mods[1].Address)

	m, ok := d.ByName("quoter")
	require.True(t, ok)
	require.Equal(t, quoter, m.Address)
	m, ok = d.ByAddress(router)
	require.True(t, ok)
	require.Equal(t, "router", m.Name)
	_, ok = d.ByName("factory")
	require.False(t, ok)
}

func TestAddressRange_Contains(t *testing.T) {
	if !System(common.HexToAddress("0x9abc")) {
		t.Error("expected 0x9abc to be a system address")
	}
	if System(common.HexToAddress("0xa000")) {
		t.Error("expected 0xa000 outside the system range")
	}
}
