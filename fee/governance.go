// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package fee holds the protocol fee share and its bounded, time-gated
// governance. The share is expressed in basis points of every swap fee.
package fee

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/luxfi/geth/common"
	log "github.com/luxfi/log"

	"github.com/luxfi/slots/internal/access"
	"github.com/luxfi/slots/metrics"
	"github.com/luxfi/slots/state"
	"github.com/luxfi/slots/token"
)

// BpsDenominator is the basis point scale
const BpsDenominator = 10_000

// Default governance parameters
const (
	DefaultMinBps   uint16 = 0
	DefaultMaxBps   uint16 = 5_000
	DefaultMaxStep  uint16 = 100
	DefaultCooldown uint64 = 24 * 60 * 60
)

var (
	ErrChangeTooEarly    = errors.New("change too early")
	ErrChangeOutOfBounds = errors.New("change out of bounds")
	ErrInvalidParams     = errors.New("invalid governance params")
	ErrNotDeployed       = errors.New("governance not deployed")
	ErrNothingToWithdraw = errors.New("nothing to withdraw")
)

var (
	shareKey         = state.Key([]byte("fee/share"))
	lastChangedAtKey = state.Key([]byte("fee/lastChangedAt"))
	deployedKey      = state.Key([]byte("fee/deployed"))
)

// Params bound share changes
type Params struct {
	MinBps  uint16 `json:"minBps" toml:"min_bps"`
	MaxBps  uint16 `json:"maxBps" toml:"max_bps"`
	MaxStep uint16 `json:"maxStep" toml:"max_step"`

	// Cooldown in seconds of ledger time between two changes
	Cooldown uint64 `json:"cooldown" toml:"cooldown"`
}

// DefaultParams returns one day cooldown, 100 bps steps, share within [0, 5000]
func DefaultParams() Params {
	return Params{
		MinBps:   DefaultMinBps,
		MaxBps:   DefaultMaxBps,
		MaxStep:  DefaultMaxStep,
		Cooldown: DefaultCooldown,
	}
}

// Verify checks the parameters are coherent
func (p Params) Verify() error {
	if p.MaxBps > BpsDenominator {
		return fmt.Errorf("%w: maxBps %d above %d", ErrInvalidParams, p.MaxBps, BpsDenominator)
	}
	if p.MinBps > p.MaxBps {
		return fmt.Errorf("%w: minBps %d above maxBps %d", ErrInvalidParams, p.MinBps, p.MaxBps)
	}
	return nil
}

// Option configures a Governance
type Option func(*Governance)

// WithLogger sets the logger
func WithLogger(logger log.Logger) Option {
	return func(g *Governance) { g.log = logger }
}

// WithMetrics sets the metrics sink
func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Governance) { g.metrics = m }
}

// Governance is the handle of the fee contract deployed at address. Its
// state lives in ledger slots at that address, so it follows snapshots like
// every other contract. The address is also the protocol fee collector.
type Governance struct {
	address common.Address
	params  Params
	admin   access.Admin
	log     log.Logger
	metrics *metrics.Metrics
}

// New returns the governance handle at addr
func New(addr common.Address, params Params, opts ...Option) (*Governance, error) {
	if err := params.Verify(); err != nil {
		return nil, err
	}
	g := &Governance{
		address: addr,
		params:  params,
		admin:   access.NewAdmin(addr),
		log:     log.NewNoOpLogger(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Address returns the contract address, which collects protocol fees
func (g *Governance) Address() common.Address { return g.address }

// Params returns the change bounds
func (g *Governance) Params() Params { return g.params }

// Deploy initializes the contract with admin and an initial share. The
// cooldown clock starts now.
func (g *Governance) Deploy(stateDB state.StateDB, admin common.Address, initialBps uint16) error {
	if state.GetBool(stateDB, g.address, deployedKey) {
		return fmt.Errorf("fee governance already deployed at %s", g.address.Hex())
	}
	if initialBps < g.params.MinBps || initialBps > g.params.MaxBps {
		return fmt.Errorf("%w: initial share %d outside [%d, %d]",
			ErrChangeOutOfBounds, initialBps, g.params.MinBps, g.params.MaxBps)
	}
	if err := g.admin.Init(stateDB, admin); err != nil {
		return err
	}
	stateDB.CreateAccount(g.address)
	state.SetBool(stateDB, g.address, deployedKey, true)
	state.SetUint64(stateDB, g.address, shareKey, uint64(initialBps))
	state.SetUint64(stateDB, g.address, lastChangedAtKey, stateDB.GetTime())

	g.log.Info("fee governance deployed",
		"address", g.address,
		"admin", admin,
		"shareBps", initialBps,
	)
	return nil
}

// GetShare returns the protocol share of swap fees in basis points
func (g *Governance) GetShare(stateDB state.StateDB) uint16 {
	return uint16(state.GetUint64(stateDB, g.address, shareKey))
}

// LastChangedAt returns the ledger time of the last share change
func (g *Governance) LastChangedAt(stateDB state.StateDB) uint64 {
	return state.GetUint64(stateDB, g.address, lastChangedAtKey)
}

// Admin returns the current admin
func (g *Governance) Admin(stateDB state.StateDB) common.Address {
	return g.admin.Get(stateDB)
}

// ChangeShare moves the share to newBps. Bounds are checked before the
// cooldown, so an out of bounds request fails the same way at any time.
func (g *Governance) ChangeShare(stateDB state.StateDB, caller common.Address, newBps uint16) (err error) {
	defer func() { g.metrics.ShareChange(err) }()

	if !state.GetBool(stateDB, g.address, deployedKey) {
		return ErrNotDeployed
	}
	if err := g.admin.Require(stateDB, caller); err != nil {
		return err
	}

	current := g.GetShare(stateDB)
	if newBps < g.params.MinBps || newBps > g.params.MaxBps {
		return fmt.Errorf("%w: %d outside [%d, %d]", ErrChangeOutOfBounds, newBps, g.params.MinBps, g.params.MaxBps)
	}
	if step := absDiff(current, newBps); step > g.params.MaxStep {
		return fmt.Errorf("%w: step %d above %d", ErrChangeOutOfBounds, step, g.params.MaxStep)
	}

	now := stateDB.GetTime()
	last := g.LastChangedAt(stateDB)
	if now < last || now-last < g.params.Cooldown {
		return fmt.Errorf("%w: last change at %d, now %d, cooldown %d", ErrChangeTooEarly, last, now, g.params.Cooldown)
	}

	state.SetUint64(stateDB, g.address, shareKey, uint64(newBps))
	state.SetUint64(stateDB, g.address, lastChangedAtKey, now)

	g.log.Info("protocol fee share changed",
		"from", current,
		"to", newBps,
		"at", now,
	)
	return nil
}

// ChangeAdmin hands governance to newAdmin
func (g *Governance) ChangeAdmin(stateDB state.StateDB, caller, newAdmin common.Address) error {
	if err := g.admin.Change(stateDB, caller, newAdmin); err != nil {
		return err
	}
	g.log.Info("fee governance admin changed", "admin", newAdmin)
	return nil
}

// Withdraw sends the whole collected balance of asset to to
func (g *Governance) Withdraw(stateDB state.StateDB, caller, asset, to common.Address) (*big.Int, error) {
	if err := g.admin.Require(stateDB, caller); err != nil {
		return nil, err
	}
	amount := token.BalanceOf(stateDB, asset, g.address)
	if amount.Sign() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNothingToWithdraw, asset.Hex())
	}
	if err := token.Transfer(stateDB, asset, g.address, to, amount); err != nil {
		return nil, err
	}
	g.log.Info("protocol fees withdrawn",
		"asset", asset,
		"to", to,
		"amount", amount,
	)
	return amount, nil
}

// Split divides a swap fee between the protocol and a partner. Without a
// partner the protocol takes the whole fee.
func (g *Governance) Split(stateDB state.StateDB, fee *big.Int, hasPartner bool) (protocol, partner *big.Int) {
	if !hasPartner {
		return new(big.Int).Set(fee), new(big.Int)
	}
	return SplitShare(fee, g.GetShare(stateDB))
}

// Amount returns amount * feeBps / 10000
func Amount(amount *big.Int, feeBps uint16) *big.Int {
	v := new(big.Int).Mul(amount, big.NewInt(int64(feeBps)))
	return v.Div(v, big.NewInt(BpsDenominator))
}

// SplitShare returns the protocol cut fee * shareBps / 10000 and the rest
func SplitShare(fee *big.Int, shareBps uint16) (protocol, partner *big.Int) {
	protocol = Amount(fee, shareBps)
	partner = new(big.Int).Sub(fee, protocol)
	return protocol, partner
}

func absDiff(a, b uint16) uint16 {
	if a > b {
		return a - b
	}
	return b - a
}
