// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package registry

import (
	"github.com/luxfi/geth/common"
)

// ============================================================================
// SYSTEM ADDRESS SCHEME
// ============================================================================
//
// Protocol contracts of a default deployment sit on trailing-significant
// addresses in the 0x9000 page:
//   Format: 0x00000000000000000000000000000000000090II
//
// II is the item: 01 router, 02 quoter, 03 fee governance, 04 vault
// factory, 05 lending market, 06 wrapped native token.

const (
	Router     = "0x0000000000000000000000000000000000009001"
	Quoter     = "0x0000000000000000000000000000000000009002"
	Governance = "0x0000000000000000000000000000000000009003"
	Factory    = "0x0000000000000000000000000000000000009004"
	Market     = "0x0000000000000000000000000000000000009005"
	Wrapped    = "0x0000000000000000000000000000000000009006"
)

// ContractInfo describes a system contract
type ContractInfo struct {
	Address     string
	Name        string
	Description string
}

// AllContracts lists the system contracts in address order
var AllContracts = []ContractInfo{
	{Router, "router", "Leveraged swap router"},
	{Quoter, "quoter", "Revert-and-decode quoter"},
	{Governance, "governance", "Protocol fee share governance"},
	{Factory, "factory", "Position vault factory and fee collector"},
	{Market, "market", "Lending market"},
	{Wrapped, "wrapped", "Wrapped native token"},
}

// GetAddress returns the default address of a system contract by name
func GetAddress(name string) common.Address {
	for _, c := range AllContracts {
		if c.Name == name {
			return common.HexToAddress(c.Address)
		}
	}
	return common.Address{}
}

// IsSystem reports whether addr is a default system contract
func IsSystem(addr common.Address) bool {
	for _, c := range AllContracts {
		if common.HexToAddress(c.Address) == addr {
			return true
		}
	}
	return false
}
