// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package state

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/zeebo/blake3"
)

// Key creates a storage key from a prefix and any number of identifiers
func Key(prefix []byte, parts ...[]byte) common.Hash {
	h := blake3.New()
	h.Write(prefix)
	for _, p := range parts {
		h.Write(p)
	}
	var key common.Hash
	h.Digest().Read(key[:])
	return key
}

// GetBig reads a non-negative integer slot
func GetBig(st StateDB, addr common.Address, key common.Hash) *big.Int {
	return st.GetState(addr, key).Big()
}

// SetBig writes a non-negative integer slot
func SetBig(st StateDB, addr common.Address, key common.Hash, v *big.Int) {
	if v.Sign() < 0 {
		panic(fmt.Sprintf("state: negative value %s for slot %s", v, key.Hex()))
	}
	st.SetState(addr, key, common.BigToHash(v))
}

// AddBig adds delta (which may be negative) to an integer slot and returns
// the new value. The result must stay non-negative.
func AddBig(st StateDB, addr common.Address, key common.Hash, delta *big.Int) *big.Int {
	v := new(big.Int).Add(GetBig(st, addr, key), delta)
	SetBig(st, addr, key, v)
	return v
}

func GetUint64(st StateDB, addr common.Address, key common.Hash) uint64 {
	return st.GetState(addr, key).Big().Uint64()
}

func SetUint64(st StateDB, addr common.Address, key common.Hash, v uint64) {
	st.SetState(addr, key, common.BigToHash(new(big.Int).SetUint64(v)))
}

func GetAddress(st StateDB, addr common.Address, key common.Hash) common.Address {
	return common.BytesToAddress(st.GetState(addr, key).Bytes())
}

func SetAddress(st StateDB, addr common.Address, key common.Hash, v common.Address) {
	st.SetState(addr, key, common.BytesToHash(v.Bytes()))
}

func GetBool(st StateDB, addr common.Address, key common.Hash) bool {
	return st.GetState(addr, key) != (common.Hash{})
}

func SetBool(st StateDB, addr common.Address, key common.Hash, v bool) {
	var h common.Hash
	if v {
		h[common.HashLength-1] = 1
	}
	st.SetState(addr, key, h)
}

// Transfer moves native balance between accounts
func Transfer(st StateDB, from, to common.Address, amount *uint256.Int) error {
	if st.GetBalance(from).Lt(amount) {
		return fmt.Errorf("%w: %s has %s, needs %s",
			ErrInsufficientBalance, from.Hex(), st.GetBalance(from), amount)
	}
	st.SubBalance(from, amount)
	st.AddBalance(to, amount)
	return nil
}

// Atomic runs fn inside a snapshot and reverts every change it made if it
// returns an error.
func Atomic(st StateDB, fn func() error) error {
	snap := st.Snapshot()
	if err := fn(); err != nil {
		st.RevertToSnapshot(snap)
		return err
	}
	return nil
}
