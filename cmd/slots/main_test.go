// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/common/hexutil"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/slots/config"
	"github.com/luxfi/slots/factory"
	"github.com/luxfi/slots/route"
)

const (
	usdc = "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"
	weth = "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return strings.TrimSpace(out.String()), err
}

func TestLocate(t *testing.T) {
	out, err := run(t, "locate", usdc, weth, "--fee", "500")
	require.NoError(t, err)
	require.Equal(t, common.HexToAddress("0x88e6A0c2dDD26FEEb64F039a2c41296FcB3f5640").Hex(), out)

	_, err = run(t, "locate", usdc, "nope")
	require.ErrorIs(t, err, errBadArgument)
	_, err = run(t, "locate", usdc, weth, "--family", "curve")
	require.ErrorIs(t, err, errBadArgument)
}

func TestRouteEncodeDecode(t *testing.T) {
	out, err := run(t, "route", "encode",
		"--hop", usdc+":500:uniswap:exact_in",
		"--hop", weth+":0:algebra:exact_in",
		"--out", "0x0d0000000000000000000000000000000000000d",
		"--terminal", "vault",
	)
	require.NoError(t, err)
	raw, err := hexutil.Decode(out)
	require.NoError(t, err)
	r, err := route.Decode(raw)
	require.NoError(t, err)
	require.Equal(t, route.FormatExtended, r.Format)
	require.Len(t, r.Hops, 2)
	require.Equal(t, route.FamilyAlgebra, r.Hops[1].Family)
	require.Equal(t, route.TerminalVault, r.Terminal.Flag)

	out, err = run(t, "route", "decode", hexutil.Encode(raw))
	require.NoError(t, err)
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 3)
	require.Contains(t, lines[0], "2 hops, terminal vault")
	require.Contains(t, lines[1], "0x88e6A0c2dDD26FEEb64F039a2c41296FcB3f5640")

	out, err = run(t, "route", "encode", "--legacy", "--hop", usdc+":exact_in", "--out", weth)
	require.NoError(t, err)
	raw, err = hexutil.Decode(out)
	require.NoError(t, err)
	require.Equal(t, byte(route.FormatLegacy), raw[0])

	_, err = run(t, "route", "encode", "--hop", usdc+":500:uniswap:sideways", "--out", weth)
	require.ErrorIs(t, err, errBadArgument)
	_, err = run(t, "route", "decode", "0x03")
	require.ErrorIs(t, err, route.ErrMalformedRoute)
}

func TestVaultAddress(t *testing.T) {
	owner := "0x2222222222222222222222222222222222222222"
	out, err := run(t, "vault-address", owner, "3")
	require.NoError(t, err)
	cfg := config.Default()
	require.Equal(t, factory.VaultAddress(cfg.Contracts.Factory, cfg.VaultCodeHash, common.HexToAddress(owner), 3).Hex(), out)

	_, err = run(t, "vault-address", owner, "x")
	require.ErrorIs(t, err, errBadArgument)
}

func TestFeeSplit(t *testing.T) {
	out, err := run(t, "fee", "split", "1000", "--bps", "50", "--share", "2000", "--partner")
	require.NoError(t, err)
	require.Equal(t, "fee      5 (0.5%)\nprotocol 1\npartner  4\nnet      995", out)

	out, err = run(t, "fee", "split", "1000", "--bps", "50")
	require.NoError(t, err)
	require.Contains(t, out, "protocol 5\npartner  0")

	_, err = run(t, "fee", "split", "1000", "--bps", "2000")
	require.ErrorIs(t, err, errBadArgument)
	_, err = run(t, "fee", "split", "1000", "--bps", "500")
	require.ErrorIs(t, err, errBadArgument)
}

func TestConfigFlag(t *testing.T) {
	cfg := config.Default()
	cfg.Contracts.Factory = common.HexToAddress("0x000000000000000000000000000000000000a004")
	body, err := cfg.Encode()
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "slots.toml")
	require.NoError(t, os.WriteFile(path, body, 0o600))

	owner := common.HexToAddress("0x2222222222222222222222222222222222222222")
	out, err := run(t, "--config", path, "vault-address", owner.Hex(), "0")
	require.NoError(t, err)
	require.Equal(t, factory.VaultAddress(cfg.Contracts.Factory, cfg.VaultCodeHash, owner, 0).Hex(), out)

	_, err = run(t, "--config", filepath.Join(t.TempDir(), "missing.toml"), "vault-address", owner.Hex(), "0")
	require.Error(t, err)
}
