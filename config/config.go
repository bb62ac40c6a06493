// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package config holds the deployment configuration: contract addresses,
// pool family deployments, vault code hash and fee parameters. It is read
// from TOML.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/luxfi/geth/common"
	"github.com/pelletier/go-toml/v2"

	"github.com/luxfi/slots/fee"
	"github.com/luxfi/slots/locator"
	"github.com/luxfi/slots/registry"
	"github.com/luxfi/slots/route"
	"github.com/luxfi/slots/router"
)

var ErrInvalidConfig = errors.New("invalid config")

// Contracts are the fixed addresses of the protocol contracts
type Contracts struct {
	Router     common.Address `json:"router" toml:"router"`
	Quoter     common.Address `json:"quoter" toml:"quoter"`
	Governance common.Address `json:"governance" toml:"governance"`
	Factory    common.Address `json:"factory" toml:"factory"`
	Market     common.Address `json:"market" toml:"market"`
	Wrapped    common.Address `json:"wrapped" toml:"wrapped"`
}

// Pools are the deployments of both pool families
type Pools struct {
	Uniswap   locator.Deployment `json:"uniswap" toml:"uniswap"`
	Algebra   locator.Deployment `json:"algebra" toml:"algebra"`
	CacheSize int                `json:"cacheSize" toml:"cache_size"`
}

// Deployments returns the pool deployments keyed by family
func (p Pools) Deployments() map[route.Family]locator.Deployment {
	return map[route.Family]locator.Deployment{
		route.FamilyUniswap: p.Uniswap,
		route.FamilyAlgebra: p.Algebra,
	}
}

// Fee configures governance and the integration fee cap
type Fee struct {
	fee.Params

	InitialShareBps uint16 `json:"initialShareBps" toml:"initial_share_bps"`
	MaxFeeBps       uint16 `json:"maxFeeBps" toml:"max_fee_bps"`
}

// Log configures the zap logger
type Log struct {
	Level       string `json:"level" toml:"level"`
	Development bool   `json:"development" toml:"development"`
}

// Config is a full deployment
type Config struct {
	ChainID uint64         `json:"chainId" toml:"chain_id"`
	Admin   common.Address `json:"admin" toml:"admin"`

	Contracts     Contracts   `json:"contracts" toml:"contracts"`
	Pools         Pools       `json:"pools" toml:"pools"`
	VaultCodeHash common.Hash `json:"vaultCodeHash" toml:"vault_code_hash"`
	Fee           Fee         `json:"fee" toml:"fee"`
	Log           Log         `json:"log" toml:"log"`
}

// Default returns a local deployment with the system contracts at their
// registry addresses
func Default() Config {
	return Config{
		ChainID: 96369,
		Admin:   common.HexToAddress("0x9011223344556677889900112233445566778899"),
		Contracts: Contracts{
			Router:     registry.GetAddress("router"),
			Quoter:     registry.GetAddress("quoter"),
			Governance: registry.GetAddress("governance"),
			Factory:    registry.GetAddress("factory"),
			Market:     registry.GetAddress("market"),
			Wrapped:    registry.GetAddress("wrapped"),
		},
		Pools: Pools{
			Uniswap: locator.Deployment{
				Factory:      common.HexToAddress("0x1F98431c8aD98523631AE4a59f267346ea31F984"),
				InitCodeHash: common.HexToHash("0xe34f199b19b2b4f47f68442619d555527d244f78a3297ea89325f843f87b8b54"),
			},
			Algebra: locator.Deployment{
				Factory:      common.HexToAddress("0x411b0fAcC3489691f28ad58c47006AF5E3Ab3A28"),
				InitCodeHash: common.HexToHash("0x6ec6c9c8091d160c0aa74b2b14ba9c1717e95093bd3ac085cee99a49aab294a4"),
			},
			CacheSize: locator.DefaultCacheSize,
		},
		VaultCodeHash: common.HexToHash("0x2c1e6b1b8bf8a39bd2e6e7d7c1f0f3c4a5b6c7d8e9fa0b1c2d3e4f5a6b7c8d9e"),
		Fee: Fee{
			Params:    fee.DefaultParams(),
			MaxFeeBps: router.DefaultMaxFeeBps,
		},
		Log: Log{Level: "info"},
	}
}

// Verify checks the config is usable
func (c Config) Verify() error {
	contracts := map[string]common.Address{
		"router":     c.Contracts.Router,
		"quoter":     c.Contracts.Quoter,
		"governance": c.Contracts.Governance,
		"factory":    c.Contracts.Factory,
		"market":     c.Contracts.Market,
		"wrapped":    c.Contracts.Wrapped,
	}
	seen := make(map[common.Address]string, len(contracts))
	for name, addr := range contracts {
		if addr == (common.Address{}) {
			return fmt.Errorf("%w: %s address not set", ErrInvalidConfig, name)
		}
		if other, ok := seen[addr]; ok {
			return fmt.Errorf("%w: %s and %s share %s", ErrInvalidConfig, name, other, addr.Hex())
		}
		seen[addr] = name
	}
	if c.Admin == (common.Address{}) {
		return fmt.Errorf("%w: admin not set", ErrInvalidConfig)
	}
	for family, d := range c.Pools.Deployments() {
		if d.Factory == (common.Address{}) || d.InitCodeHash == (common.Hash{}) {
			return fmt.Errorf("%w: %s deployment incomplete", ErrInvalidConfig, family)
		}
	}
	if c.VaultCodeHash == (common.Hash{}) {
		return fmt.Errorf("%w: vault code hash not set", ErrInvalidConfig)
	}
	if err := c.Fee.Params.Verify(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.Fee.InitialShareBps < c.Fee.MinBps || c.Fee.InitialShareBps > c.Fee.MaxBps {
		return fmt.Errorf("%w: initial share %d outside [%d, %d]",
			ErrInvalidConfig, c.Fee.InitialShareBps, c.Fee.MinBps, c.Fee.MaxBps)
	}
	if c.Fee.MaxFeeBps > router.DefaultMaxFeeBps {
		return fmt.Errorf("%w: max fee %d bps above %d", ErrInvalidConfig, c.Fee.MaxFeeBps, router.DefaultMaxFeeBps)
	}
	return nil
}

// Parse decodes a TOML document over the defaults and verifies it
func Parse(body []byte) (Config, error) {
	c := Default()
	if err := toml.Unmarshal(body, &c); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := c.Verify(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Load reads the TOML config at path
func Load(path string) (Config, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(body)
}

// Encode renders c as TOML
func (c Config) Encode() ([]byte, error) {
	return toml.Marshal(c)
}
