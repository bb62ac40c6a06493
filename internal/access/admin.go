// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package access holds the single-admin check shared by contracts with an
// admin surface.
package access

import (
	"errors"
	"fmt"

	"github.com/luxfi/geth/common"

	"github.com/luxfi/slots/state"
)

var (
	ErrOnlyAdmin   = errors.New("only admin")
	ErrZeroAddress = errors.New("zero address")
)

var adminKey = state.Key([]byte("access/admin"))

// Admin is the admin slot of one contract
type Admin struct {
	contract common.Address
}

// NewAdmin returns the admin slot of contract
func NewAdmin(contract common.Address) Admin {
	return Admin{contract: contract}
}

// Init stores the first admin
func (a Admin) Init(stateDB state.StateDB, admin common.Address) error {
	if admin == (common.Address{}) {
		return ErrZeroAddress
	}
	state.SetAddress(stateDB, a.contract, adminKey, admin)
	return nil
}

// Get returns the current admin
func (a Admin) Get(stateDB state.StateDB) common.Address {
	return state.GetAddress(stateDB, a.contract, adminKey)
}

// Require fails unless caller is the admin
func (a Admin) Require(stateDB state.StateDB, caller common.Address) error {
	if admin := a.Get(stateDB); caller != admin {
		return fmt.Errorf("%w: caller=%s", ErrOnlyAdmin, caller.Hex())
	}
	return nil
}

// Change hands the admin role to newAdmin
func (a Admin) Change(stateDB state.StateDB, caller, newAdmin common.Address) error {
	if err := a.Require(stateDB, caller); err != nil {
		return err
	}
	if newAdmin == (common.Address{}) {
		return ErrZeroAddress
	}
	state.SetAddress(stateDB, a.contract, adminKey, newAdmin)
	return nil
}
