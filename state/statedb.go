// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package state provides the journaled ledger every contract in this module
// reads and writes. Snapshots give callers all-or-nothing execution: any
// failed operation reverts to the snapshot taken on entry.
package state

import (
	"errors"
	"fmt"
	"sort"

	"github.com/holiman/uint256"
	"github.com/luxfi/database"
	"github.com/luxfi/geth/common"
)

// StateDB interface for accessing and modifying ledger state
type StateDB interface {
	GetState(addr common.Address, key common.Hash) common.Hash
	SetState(addr common.Address, key common.Hash, value common.Hash)
	GetBalance(addr common.Address) *uint256.Int
	AddBalance(addr common.Address, amount *uint256.Int)
	SubBalance(addr common.Address, amount *uint256.Int)
	Exist(addr common.Address) bool
	CreateAccount(addr common.Address)
	GetBlockNumber() uint64
	GetTime() uint64

	Snapshot() int
	RevertToSnapshot(id int)
}

var (
	ErrInsufficientBalance = errors.New("insufficient native balance")
	ErrInvalidSnapshot     = errors.New("invalid snapshot id")
)

// Key prefixes in the backing database
var (
	dbStoragePrefix = []byte{'s'}
	dbBalancePrefix = []byte{'b'}
	dbAccountPrefix = []byte{'a'}
)

type revision struct {
	id           int
	journalIndex int
}

// DB is an in-memory journaled StateDB persisted to a key-value database on
// Commit. Reads that miss the cache fall through to the database.
type DB struct {
	db database.Database

	storage  map[common.Address]map[common.Hash]common.Hash
	balances map[common.Address]*uint256.Int
	accounts map[common.Address]bool

	dirtyStorage  map[common.Address]map[common.Hash]struct{}
	dirtyBalances map[common.Address]struct{}
	dirtyAccounts map[common.Address]struct{}

	journal        []journalEntry
	validRevisions []revision
	nextRevisionID int

	blockNumber uint64
	time        uint64

	dbErr error
}

var _ StateDB = (*DB)(nil)

// New creates a ledger over db
func New(db database.Database) *DB {
	return &DB{
		db:            db,
		storage:       make(map[common.Address]map[common.Hash]common.Hash),
		balances:      make(map[common.Address]*uint256.Int),
		accounts:      make(map[common.Address]bool),
		dirtyStorage:  make(map[common.Address]map[common.Hash]struct{}),
		dirtyBalances: make(map[common.Address]struct{}),
		dirtyAccounts: make(map[common.Address]struct{}),
	}
}

// SetBlock sets the current block number and timestamp (unix seconds)
func (s *DB) SetBlock(number, time uint64) {
	s.blockNumber = number
	s.time = time
}

// AdvanceTime moves the clock forward by seconds and mines one block
func (s *DB) AdvanceTime(seconds uint64) {
	s.blockNumber++
	s.time += seconds
}

func (s *DB) GetBlockNumber() uint64 { return s.blockNumber }

func (s *DB) GetTime() uint64 { return s.time }

// =========================================================================
// Storage
// =========================================================================

func (s *DB) GetState(addr common.Address, key common.Hash) common.Hash {
	if slots, ok := s.storage[addr]; ok {
		if v, ok := slots[key]; ok {
			return v
		}
	}
	v := s.load(storageKey(addr, key))
	s.cacheSlot(addr, key, common.BytesToHash(v))
	return common.BytesToHash(v)
}

func (s *DB) SetState(addr common.Address, key common.Hash, value common.Hash) {
	prev := s.GetState(addr, key)
	if prev == value {
		return
	}
	s.journal = append(s.journal, storageChange{addr: addr, key: key, prev: prev})
	s.cacheSlot(addr, key, value)

	dirty, ok := s.dirtyStorage[addr]
	if !ok {
		dirty = make(map[common.Hash]struct{})
		s.dirtyStorage[addr] = dirty
	}
	dirty[key] = struct{}{}
}

func (s *DB) cacheSlot(addr common.Address, key, value common.Hash) {
	slots, ok := s.storage[addr]
	if !ok {
		slots = make(map[common.Hash]common.Hash)
		s.storage[addr] = slots
	}
	slots[key] = value
}

// =========================================================================
// Accounts and native balances
// =========================================================================

func (s *DB) GetBalance(addr common.Address) *uint256.Int {
	if b, ok := s.balances[addr]; ok {
		return new(uint256.Int).Set(b)
	}
	b := new(uint256.Int).SetBytes(s.load(balanceKey(addr)))
	s.balances[addr] = b
	return new(uint256.Int).Set(b)
}

func (s *DB) AddBalance(addr common.Address, amount *uint256.Int) {
	s.setBalance(addr, new(uint256.Int).Add(s.GetBalance(addr), amount))
}

// SubBalance panics on underflow. Use Transfer for checked movements.
func (s *DB) SubBalance(addr common.Address, amount *uint256.Int) {
	cur := s.GetBalance(addr)
	if cur.Lt(amount) {
		panic(fmt.Sprintf("state: balance underflow for %s", addr.Hex()))
	}
	s.setBalance(addr, new(uint256.Int).Sub(cur, amount))
}

func (s *DB) setBalance(addr common.Address, v *uint256.Int) {
	s.journal = append(s.journal, balanceChange{addr: addr, prev: s.GetBalance(addr)})
	s.balances[addr] = v
	s.dirtyBalances[addr] = struct{}{}
	s.touch(addr)
}

func (s *DB) Exist(addr common.Address) bool {
	if ok, cached := s.accounts[addr]; cached {
		return ok
	}
	has, err := s.db.Has(accountKey(addr))
	if err != nil {
		s.setError(err)
		has = false
	}
	s.accounts[addr] = has
	return has
}

func (s *DB) CreateAccount(addr common.Address) {
	s.touch(addr)
}

func (s *DB) touch(addr common.Address) {
	if s.Exist(addr) {
		return
	}
	s.journal = append(s.journal, createAccount{addr: addr})
	s.accounts[addr] = true
	s.dirtyAccounts[addr] = struct{}{}
}

// =========================================================================
// Snapshots
// =========================================================================

// Snapshot returns an identifier for the current revision of the state
func (s *DB) Snapshot() int {
	id := s.nextRevisionID
	s.nextRevisionID++
	s.validRevisions = append(s.validRevisions, revision{id: id, journalIndex: len(s.journal)})
	return id
}

// RevertToSnapshot reverts all changes made since the given revision
func (s *DB) RevertToSnapshot(id int) {
	idx := sort.Search(len(s.validRevisions), func(i int) bool {
		return s.validRevisions[i].id >= id
	})
	if idx == len(s.validRevisions) || s.validRevisions[idx].id != id {
		panic(fmt.Errorf("%w: %d", ErrInvalidSnapshot, id))
	}
	snapshot := s.validRevisions[idx].journalIndex

	for i := len(s.journal) - 1; i >= snapshot; i-- {
		s.journal[i].revert(s)
	}
	s.journal = s.journal[:snapshot]
	s.validRevisions = s.validRevisions[:idx]
}

// =========================================================================
// Persistence
// =========================================================================

// Commit writes every dirty entry to the backing database and clears the
// journal. Snapshots taken before Commit are no longer valid.
func (s *DB) Commit() error {
	if s.dbErr != nil {
		return s.dbErr
	}
	batch := s.db.NewBatch()

	for addr, keys := range s.dirtyStorage {
		for key := range keys {
			v := s.storage[addr][key]
			var err error
			if v == (common.Hash{}) {
				err = batch.Delete(storageKey(addr, key))
			} else {
				err = batch.Put(storageKey(addr, key), v.Bytes())
			}
			if err != nil {
				return fmt.Errorf("commit storage %s: %w", addr.Hex(), err)
			}
		}
	}
	for addr := range s.dirtyBalances {
		if err := batch.Put(balanceKey(addr), s.balances[addr].Bytes()); err != nil {
			return fmt.Errorf("commit balance %s: %w", addr.Hex(), err)
		}
	}
	for addr := range s.dirtyAccounts {
		if !s.accounts[addr] {
			continue
		}
		if err := batch.Put(accountKey(addr), []byte{1}); err != nil {
			return fmt.Errorf("commit account %s: %w", addr.Hex(), err)
		}
	}
	if err := batch.Write(); err != nil {
		return err
	}

	s.dirtyStorage = make(map[common.Address]map[common.Hash]struct{})
	s.dirtyBalances = make(map[common.Address]struct{})
	s.dirtyAccounts = make(map[common.Address]struct{})
	s.journal = s.journal[:0]
	s.validRevisions = s.validRevisions[:0]
	return nil
}

func (s *DB) load(key []byte) []byte {
	v, err := s.db.Get(key)
	if errors.Is(err, database.ErrNotFound) {
		return nil
	}
	if err != nil {
		s.setError(err)
		return nil
	}
	return v
}

// setError remembers the first database error. Reads keep returning empty
// values; Commit and Error surface it.
func (s *DB) setError(err error) {
	if s.dbErr == nil {
		s.dbErr = err
	}
}

// Error returns the first database error hit while loading state
func (s *DB) Error() error {
	return s.dbErr
}

func storageKey(addr common.Address, key common.Hash) []byte {
	out := make([]byte, 0, len(dbStoragePrefix)+common.AddressLength+common.HashLength)
	out = append(out, dbStoragePrefix...)
	out = append(out, addr.Bytes()...)
	return append(out, key.Bytes()...)
}

func balanceKey(addr common.Address) []byte {
	return append(append([]byte{}, dbBalancePrefix...), addr.Bytes()...)
}

func accountKey(addr common.Address) []byte {
	return append(append([]byte{}, dbAccountPrefix...), addr.Bytes()...)
}
