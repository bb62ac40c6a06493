// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package protocol wires a full deployment from a config: locator, pools,
// fee governance, router, quoter, lending market and vault factory.
package protocol

import (
	"fmt"
	"math/big"

	"github.com/luxfi/geth/common"
	log "github.com/luxfi/log"

	"github.com/luxfi/slots/auth"
	"github.com/luxfi/slots/config"
	"github.com/luxfi/slots/factory"
	"github.com/luxfi/slots/fee"
	"github.com/luxfi/slots/lending"
	"github.com/luxfi/slots/locator"
	"github.com/luxfi/slots/metrics"
	"github.com/luxfi/slots/modules"
	"github.com/luxfi/slots/pool"
	"github.com/luxfi/slots/quoter"
	"github.com/luxfi/slots/route"
	"github.com/luxfi/slots/router"
	"github.com/luxfi/slots/slot"
	"github.com/luxfi/slots/state"
)

// Module names in the directory
const (
	RouterName     = "router"
	QuoterName     = "quoter"
	GovernanceName = "governance"
	FactoryName    = "factory"
	MarketName     = "market"
)

type options struct {
	log      log.Logger
	metrics  *metrics.Metrics
	verifier auth.Verifier
}

type Option func(*options)

func WithLogger(logger log.Logger) Option {
	return func(o *options) { o.log = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithVerifier replaces the ECDSA signature verifier used by vaults
func WithVerifier(v auth.Verifier) Option {
	return func(o *options) { o.verifier = v }
}

// PoolSpec names a pool to create
type PoolSpec struct {
	TokenA common.Address
	TokenB common.Address
	Fee    uint32
	Family route.Family
}

// Protocol is one deployment
type Protocol struct {
	Config     config.Config
	Locator    *locator.Locator
	Pools      *pool.Manager
	Governance *fee.Governance
	Router     *router.Router
	Quoter     *quoter.Quoter
	Market     *lending.Market
	Factory    *factory.Factory
	Directory  *modules.Directory

	log log.Logger
}

// Deploy builds every contract described by cfg and initializes their
// ledger state. Reserves and pools are listed afterwards through Market
// and Pools.
func Deploy(stateDB state.StateDB, cfg config.Config, opts ...Option) (*Protocol, error) {
	if err := cfg.Verify(); err != nil {
		return nil, err
	}
	o := &options{log: log.NewNoOpLogger(), verifier: auth.ECDSAVerifier{}}
	for _, opt := range opts {
		opt(o)
	}

	l, err := locator.New(cfg.Pools.Deployments(), cfg.Pools.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("locator: %w", err)
	}
	gov, err := fee.New(cfg.Contracts.Governance, cfg.Fee.Params,
		fee.WithLogger(o.log.With("module", "governance")),
		fee.WithMetrics(o.metrics),
	)
	if err != nil {
		return nil, fmt.Errorf("governance: %w", err)
	}
	if err := gov.Deploy(stateDB, cfg.Admin, cfg.Fee.InitialShareBps); err != nil {
		return nil, fmt.Errorf("governance: %w", err)
	}

	pools := pool.NewManager(l)
	r := router.New(cfg.Contracts.Router, l, pools, gov, cfg.Contracts.Wrapped,
		router.WithLogger(o.log.With("module", "router")),
		router.WithMetrics(o.metrics),
		router.WithMaxFeeBps(cfg.Fee.MaxFeeBps),
	)
	q := quoter.New(cfg.Contracts.Quoter, l, pools, o.log.With("module", "quoter"))
	market := lending.NewMarket(cfg.Contracts.Market)

	f := factory.New(cfg.Contracts.Factory, cfg.VaultCodeHash, slot.Deps{
		Router:   r,
		Market:   market,
		Verifier: o.verifier,
		Wrapped:  cfg.Contracts.Wrapped,
		ChainID:  cfg.ChainID,
		Log:      o.log.With("module", "vault"),
		Metrics:  o.metrics,
	})
	if err := f.Deploy(stateDB, cfg.Admin); err != nil {
		return nil, fmt.Errorf("factory: %w", err)
	}
	for _, addr := range []common.Address{cfg.Contracts.Router, cfg.Contracts.Quoter, cfg.Contracts.Market} {
		stateDB.CreateAccount(addr)
	}

	dir := modules.NewDirectory()
	for _, m := range []modules.Module{
		{Name: RouterName, Address: r.Address(), Contract: r},
		{Name: QuoterName, Address: cfg.Contracts.Quoter, Contract: q},
		{Name: GovernanceName, Address: gov.Address(), Contract: gov},
		{Name: FactoryName, Address: f.Address(), Contract: f},
		{Name: MarketName, Address: market.Address(), Contract: market},
	} {
		if err := dir.Register(m); err != nil {
			return nil, err
		}
	}

	p := &Protocol{
		Config:     cfg,
		Locator:    l,
		Pools:      pools,
		Governance: gov,
		Router:     r,
		Quoter:     q,
		Market:     market,
		Factory:    f,
		Directory:  dir,
		log:        o.log,
	}
	p.log.Info("protocol deployed",
		"chainID", cfg.ChainID,
		"admin", cfg.Admin,
		"modules", len(dir.Modules()),
	)
	return p, nil
}

// CreatePool deploys a pool and seeds it with liquidity from provider
func (p *Protocol) CreatePool(
	stateDB state.StateDB,
	provider common.Address,
	pair PoolSpec,
	amountA *big.Int,
	amountB *big.Int,
) (*pool.Pool, error) {
	created, err := p.Pools.Create(stateDB, pair.TokenA, pair.TokenB, pair.Fee, pair.Family)
	if err != nil {
		return nil, err
	}
	amount0, amount1 := amountA, amountB
	if created.Token0 != pair.TokenA {
		amount0, amount1 = amountB, amountA
	}
	if err := p.Pools.AddLiquidity(stateDB, provider, created.Address, amount0, amount1); err != nil {
		return nil, err
	}
	p.log.Debug("pool created",
		"address", created.Address,
		"family", pair.Family,
		"fee", pair.Fee,
	)
	return created, nil
}
