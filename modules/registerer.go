// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package modules

import (
	"bytes"
	"fmt"
	"sort"
	"sync"

	"github.com/luxfi/geth/common"
)

// AddressRange represents a continuous range of addresses
type AddressRange struct {
	Start common.Address
	End   common.Address
}

// Contains returns true iff [addr] is contained within the (inclusive)
// range of addresses defined by [a].
func (a *AddressRange) Contains(addr common.Address) bool {
	addrBytes := addr.Bytes()
	return bytes.Compare(addrBytes, a.Start[:]) >= 0 && bytes.Compare(addrBytes, a.End[:]) <= 0
}

// BlackholeAddr is the address where assets are burned
var BlackholeAddr = common.Address{
	1, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// Burn addresses no contract may be deployed at
var burnAddresses = []common.Address{
	{},
	BlackholeAddr,
	common.HexToAddress("0x000000000000000000000000000000000000dEaD"),
}

// SystemRange holds the fixed addresses of the protocol contracts
// (router, quoter, governance, factory, market, wrapped native token)
var SystemRange = AddressRange{
	Start: common.HexToAddress("0x0000000000000000000000000000000000009000"),
	End:   common.HexToAddress("0x0000000000000000000000000000000000009fff"),
}

// Module is a deployed contract
type Module struct {
	// Name is the contract's config key, e.g. "router"
	Name     string
	Address  common.Address
	Contract any
}

// Directory is the set of contracts of one deployment, kept sorted by
// address for deterministic iteration
type Directory struct {
	mu      sync.RWMutex
	modules []Module
}

// NewDirectory returns an empty directory
func NewDirectory() *Directory {
	return &Directory{}
}

// Register adds a contract. Names and addresses must be unique and burn
// addresses are refused.
func (d *Directory) Register(m Module) error {
	for _, burn := range burnAddresses {
		if m.Address == burn {
			return fmt.Errorf("address %s overlaps with a burn address", m.Address)
		}
	}
	if m.Name == "" {
		return fmt.Errorf("module at %s has no name", m.Address)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	for _, registered := range d.modules {
		if registered.Name == m.Name {
			return fmt.Errorf("name %s already used by a contract", m.Name)
		}
		if registered.Address == m.Address {
			return fmt.Errorf("address %s already used by %s", m.Address, registered.Name)
		}
	}
	// sort by address to ensure deterministic iteration
	d.modules = insertSortedByAddress(d.modules, m)
	return nil
}

// ByAddress returns the contract deployed at address
func (d *Directory) ByAddress(address common.Address) (Module, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, m := range d.modules {
		if m.Address == address {
			return m, true
		}
	}
	return Module{}, false
}

// ByName returns the contract registered under name
func (d *Directory) ByName(name string) (Module, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, m := range d.modules {
		if m.Name == name {
			return m, true
		}
	}
	return Module{}, false
}

// Modules lists every contract ordered by address
func (d *Directory) Modules() []Module {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]Module(nil), d.modules...)
}

// System reports whether address lies in the system contract range
func System(address common.Address) bool {
	return SystemRange.Contains(address)
}

func insertSortedByAddress(data []Module, m Module) []Module {
	data = append(data, m)
	sort.Slice(data, func(i, j int) bool {
		return bytes.Compare(data[i].Address.Bytes(), data[j].Address.Bytes()) < 0
	})
	return data
}
