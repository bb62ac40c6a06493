// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package state

import (
	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
)

// journalEntry is a modification that can be undone
type journalEntry interface {
	revert(*DB)
}

type (
	storageChange struct {
		addr common.Address
		key  common.Hash
		prev common.Hash
	}
	balanceChange struct {
		addr common.Address
		prev *uint256.Int
	}
	createAccount struct {
		addr common.Address
	}
)

func (c storageChange) revert(s *DB) {
	s.cacheSlot(c.addr, c.key, c.prev)
}

func (c balanceChange) revert(s *DB) {
	s.balances[c.addr] = c.prev
}

func (c createAccount) revert(s *DB) {
	s.accounts[c.addr] = false
	delete(s.dirtyAccounts, c.addr)
}
