// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/require"
)

func TestDefault_Verifies(t *testing.T) {
	require.NoError(t, Default().Verify())
}

func TestParse_Overrides(t *testing.T) {
	doc := `
chain_id = 7

[contracts]
router = "0x000000000000000000000000000000000000a001"

[fee]
max_step = 50
initial_share_bps = 25
`
	c, err := Parse([]byte(doc))
	require.NoError(t, err)
	require.Equal(t, uint64(7), c.ChainID)
	require.Equal(t, common.HexToAddress("0xa001"), c.Contracts.Router)
	require.Equal(t, uint16(50), c.Fee.MaxStep)
	require.Equal(t, uint16(25), c.Fee.InitialShareBps)

	// untouched fields keep their defaults
	require.Equal(t, Default().Contracts.Quoter, c.Contracts.Quoter)
	require.Equal(t, Default().Fee.Cooldown, c.Fee.Cooldown)
}

func TestVerify_Rejects(t *testing.T) {
	c := Default()
	c.Contracts.Quoter = c.Contracts.Router
	require.ErrorIs(t, c.Verify(), ErrInvalidConfig)

	c = Default()
	c.Pools.Algebra.InitCodeHash = common.Hash{}
	require.ErrorIs(t, c.Verify(), ErrInvalidConfig)

	c = Default()
	c.Fee.InitialShareBps = c.Fee.MaxBps + 1
	require.ErrorIs(t, c.Verify(), ErrInvalidConfig)

	c = Default()
	c.Fee.MinBps = 10
	c.Fee.MaxBps = 5
	require.ErrorIs(t, c.Verify(), ErrInvalidConfig)

	_, err := Parse([]byte(`[fee]
max_bps = 20000`))
	require.ErrorIs(t, err, ErrInvalidConfig)

	// the integration fee cap can be lowered, never raised
	_, err = Parse([]byte(`[fee]
max_fee_bps = 500`))
	require.ErrorIs(t, err, ErrInvalidConfig)
	c, err = Parse([]byte(`[fee]
max_fee_bps = 30`))
	require.NoError(t, err)
	require.Equal(t, uint16(30), c.Fee.MaxFeeBps)
}

func TestLoad_RoundTrip(t *testing.T) {
	body, err := Default().Encode()
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "slots.toml")
	require.NoError(t, os.WriteFile(path, body, 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, Default(), c)

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}
