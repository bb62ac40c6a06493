// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package factory creates position vaults at deterministic addresses and
// keeps the owner to vault index. It is also the collector of protocol fees
// charged on vault operations.
package factory

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"

	"github.com/luxfi/crypto"
	"github.com/luxfi/geth/common"
	log "github.com/luxfi/log"

	"github.com/luxfi/slots/internal/access"
	"github.com/luxfi/slots/locator"
	"github.com/luxfi/slots/slot"
	"github.com/luxfi/slots/state"
	"github.com/luxfi/slots/token"
)

var (
	ErrInvalidNonce      = errors.New("invalid vault nonce")
	ErrUnknownVault      = errors.New("unknown vault")
	ErrNothingToWithdraw = errors.New("nothing to withdraw")
)

// Storage key prefixes for factory state
var (
	nextNoncePrefix = []byte("factory/nonce")
	countPrefix     = []byte("factory/count")
	itemPrefix      = []byte("factory/item")
	positionPrefix  = []byte("factory/pos")
	vaultPrefix     = []byte("factory/vault")
)

// Factory is the vault factory deployed at address
type Factory struct {
	address       common.Address
	vaultCodeHash common.Hash
	deps          *slot.Deps
	admin         access.Admin
	log           log.Logger
}

var _ slot.OwnerIndex = (*Factory)(nil)

// New creates the factory. Vaults it creates share deps; the factory sets
// itself as their fee collector and owner index.
func New(address common.Address, vaultCodeHash common.Hash, deps slot.Deps) *Factory {
	if deps.Log == nil {
		deps.Log = log.NewNoOpLogger()
	}
	f := &Factory{
		address:       address,
		vaultCodeHash: vaultCodeHash,
		admin:         access.NewAdmin(address),
		log:           deps.Log,
	}
	deps.Collector = address
	deps.Index = f
	f.deps = &deps
	return f
}

// Deploy initializes the admin
func (f *Factory) Deploy(stateDB state.StateDB, admin common.Address) error {
	if err := f.admin.Init(stateDB, admin); err != nil {
		return err
	}
	stateDB.CreateAccount(f.address)
	f.log.Info("vault factory deployed", "address", f.address, "admin", admin)
	return nil
}

// Address returns the factory address
func (f *Factory) Address() common.Address { return f.address }

// Admin returns the current admin
func (f *Factory) Admin(stateDB state.StateDB) common.Address { return f.admin.Get(stateDB) }

// =========================================================================
// Addresses
// =========================================================================

// Salt is the CREATE2 salt of owner's vault number nonce
func Salt(owner common.Address, nonce uint64) common.Hash {
	return common.BytesToHash(crypto.Keccak256(
		common.LeftPadBytes(owner.Bytes(), 32),
		common.LeftPadBytes(binary.BigEndian.AppendUint64(nil, nonce), 32),
	))
}

// VaultAddress derives a vault address without a factory handle
func VaultAddress(factory common.Address, vaultCodeHash common.Hash, owner common.Address, nonce uint64) common.Address {
	return locator.Create2Address(factory, Salt(owner, nonce), vaultCodeHash)
}

// GetAddress returns the address of owner's vault number nonce, created or not
func (f *Factory) GetAddress(owner common.Address, nonce uint64) common.Address {
	return VaultAddress(f.address, f.vaultCodeHash, owner, nonce)
}

// NextNonce returns the nonce of owner's next vault
func (f *Factory) NextNonce(stateDB state.StateDB, owner common.Address) uint64 {
	return state.GetUint64(stateDB, f.address, state.Key(nextNoncePrefix, owner.Bytes()))
}

// GetNextAddress returns the address owner's next vault will have
func (f *Factory) GetNextAddress(stateDB state.StateDB, owner common.Address) common.Address {
	return f.GetAddress(owner, f.NextNonce(stateDB, owner))
}

// =========================================================================
// Vaults
// =========================================================================

// CreateVault creates owner's vault number nonce. An existing nonce returns
// the existing vault; only the next nonce creates one.
func (f *Factory) CreateVault(stateDB state.StateDB, owner common.Address, nonce uint64) (*slot.Vault, error) {
	if owner == (common.Address{}) {
		return nil, slot.ErrZeroAddress
	}
	next := f.NextNonce(stateDB, owner)
	addr := f.GetAddress(owner, nonce)
	switch {
	case nonce < next:
		return slot.New(addr, f.deps), nil
	case nonce > next:
		return nil, fmt.Errorf("%w: got %d, next is %d", ErrInvalidNonce, nonce, next)
	}

	v := slot.New(addr, f.deps)
	err := state.Atomic(stateDB, func() error {
		if err := v.Init(stateDB, owner, nonce); err != nil {
			return err
		}
		state.SetBool(stateDB, f.address, state.Key(vaultPrefix, addr.Bytes()), true)
		state.SetUint64(stateDB, f.address, state.Key(nextNoncePrefix, owner.Bytes()), next+1)
		f.push(stateDB, owner, addr)
		return nil
	})
	if err != nil {
		return nil, err
	}
	f.log.Debug("vault created",
		"owner", owner,
		"nonce", nonce,
		"vault", addr,
	)
	return v, nil
}

// Vault returns the handle of a vault created by this factory
func (f *Factory) Vault(stateDB state.StateDB, addr common.Address) (*slot.Vault, error) {
	if !state.GetBool(stateDB, f.address, state.Key(vaultPrefix, addr.Bytes())) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownVault, addr.Hex())
	}
	return slot.New(addr, f.deps), nil
}

// GetVaults lists the vaults currently owned by owner
func (f *Factory) GetVaults(stateDB state.StateDB, owner common.Address) []common.Address {
	n := f.count(stateDB, owner)
	out := make([]common.Address, 0, n)
	for i := uint64(0); i < n; i++ {
		out = append(out, state.GetAddress(stateDB, f.address, itemKey(owner, i)))
	}
	return out
}

// Open creates the owner's next vault and opens a position in it. The owner
// is the caller, or the signer when a relayer submits an authorization; the
// authorization must then name the owner's next vault address.
func (f *Factory) Open(stateDB state.StateDB, caller slot.Caller, p slot.OpenParams) (*slot.Vault, error) {
	owner := caller.Address
	if caller.Auth != nil {
		owner = caller.Auth.Owner
	}
	var v *slot.Vault
	err := state.Atomic(stateDB, func() error {
		var err error
		v, err = f.CreateVault(stateDB, owner, f.NextNonce(stateDB, owner))
		if err != nil {
			return err
		}
		return v.Open(stateDB, caller, p)
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

// Reassign moves vault from one owner's list to another's. Only vaults of
// this factory can call it, through TransferOwnership.
func (f *Factory) Reassign(stateDB state.StateDB, vault, from, to common.Address) error {
	if !state.GetBool(stateDB, f.address, state.Key(vaultPrefix, vault.Bytes())) {
		return fmt.Errorf("%w: %s", ErrUnknownVault, vault.Hex())
	}
	if owner := slot.New(vault, f.deps).Owner(stateDB); owner != to {
		return fmt.Errorf("%w: %s is owned by %s", slot.ErrOnlyOwner, vault.Hex(), owner.Hex())
	}
	if from == to {
		return nil
	}
	if err := f.remove(stateDB, from, vault); err != nil {
		return err
	}
	f.push(stateDB, to, vault)
	return nil
}

// =========================================================================
// Admin
// =========================================================================

// WithdrawFees sends the factory's whole balance of asset to the admin
func (f *Factory) WithdrawFees(stateDB state.StateDB, caller, asset common.Address) (*big.Int, error) {
	if err := f.admin.Require(stateDB, caller); err != nil {
		return nil, err
	}
	amount := token.BalanceOf(stateDB, asset, f.address)
	if amount.Sign() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNothingToWithdraw, asset.Hex())
	}
	if err := token.Transfer(stateDB, asset, f.address, caller, amount); err != nil {
		return nil, err
	}
	f.log.Info("vault fees withdrawn",
		"asset", asset,
		"to", caller,
		"amount", amount,
	)
	return amount, nil
}

// ChangeAdmin hands the factory to newAdmin
func (f *Factory) ChangeAdmin(stateDB state.StateDB, caller, newAdmin common.Address) error {
	if err := f.admin.Change(stateDB, caller, newAdmin); err != nil {
		return err
	}
	f.log.Info("vault factory admin changed", "admin", newAdmin)
	return nil
}

// =========================================================================
// Owner index
// =========================================================================

func itemKey(owner common.Address, i uint64) common.Hash {
	return state.Key(itemPrefix, owner.Bytes(), binary.BigEndian.AppendUint64(nil, i))
}

func positionKey(owner, vault common.Address) common.Hash {
	return state.Key(positionPrefix, owner.Bytes(), vault.Bytes())
}

func (f *Factory) count(stateDB state.StateDB, owner common.Address) uint64 {
	return state.GetUint64(stateDB, f.address, state.Key(countPrefix, owner.Bytes()))
}

func (f *Factory) push(stateDB state.StateDB, owner, vault common.Address) {
	n := f.count(stateDB, owner)
	state.SetAddress(stateDB, f.address, itemKey(owner, n), vault)
	// positions are stored one-based so that zero means absent
	state.SetUint64(stateDB, f.address, positionKey(owner, vault), n+1)
	state.SetUint64(stateDB, f.address, state.Key(countPrefix, owner.Bytes()), n+1)
}

// remove swaps the last entry into the removed one
func (f *Factory) remove(stateDB state.StateDB, owner, vault common.Address) error {
	pos := state.GetUint64(stateDB, f.address, positionKey(owner, vault))
	if pos == 0 {
		return fmt.Errorf("%w: %s not owned by %s", ErrUnknownVault, vault.Hex(), owner.Hex())
	}
	n := f.count(stateDB, owner)
	idx, last := pos-1, n-1
	if idx != last {
		moved := state.GetAddress(stateDB, f.address, itemKey(owner, last))
		state.SetAddress(stateDB, f.address, itemKey(owner, idx), moved)
		state.SetUint64(stateDB, f.address, positionKey(owner, moved), idx+1)
	}
	state.SetAddress(stateDB, f.address, itemKey(owner, last), common.Address{})
	state.SetUint64(stateDB, f.address, positionKey(owner, vault), 0)
	state.SetUint64(stateDB, f.address, state.Key(countPrefix, owner.Bytes()), last)
	return nil
}
