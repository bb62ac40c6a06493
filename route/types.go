// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package route

import (
	"errors"

	"github.com/luxfi/geth/common"
)

// Type aliases for Solidity-style integers
type uint24 = uint32

// Family identifies a pool implementation. Each family has its own factory,
// init code hash, salt layout and callback entry point.
type Family uint8

const (
	FamilyAlgebra Family = 0
	FamilyUniswap Family = 1
)

func (f Family) Valid() bool {
	return f == FamilyAlgebra || f == FamilyUniswap
}

func (f Family) String() string {
	switch f {
	case FamilyAlgebra:
		return "algebra"
	case FamilyUniswap:
		return "uniswap"
	default:
		return "unknown"
	}
}

// Flag is the trade kind carried by a hop
type Flag uint8

const (
	FlagMarginOpen  Flag = 0
	FlagMarginClose Flag = 1
	FlagExactOut    Flag = 2
	FlagExactIn     Flag = 3
	FlagLiquidate   Flag = 4
)

func (f Flag) Valid() bool { return f <= FlagLiquidate }

func (f Flag) String() string {
	switch f {
	case FlagMarginOpen:
		return "margin_open"
	case FlagMarginClose:
		return "margin_close"
	case FlagExactOut:
		return "exact_out"
	case FlagExactIn:
		return "exact_in"
	case FlagLiquidate:
		return "liquidate"
	default:
		return "unknown"
	}
}

// TerminalFlag selects how the output of a route is settled
type TerminalFlag uint8

const (
	// TerminalRecipient pays the output token to an external recipient
	TerminalRecipient TerminalFlag = 0
	// TerminalVault credits the output to a position vault account
	TerminalVault TerminalFlag = 1
	// TerminalUnwrap unwraps the wrapped native output to the recipient
	TerminalUnwrap TerminalFlag = 2
)

func (f TerminalFlag) Valid() bool { return f <= TerminalUnwrap }

func (f TerminalFlag) String() string {
	switch f {
	case TerminalRecipient:
		return "recipient"
	case TerminalVault:
		return "vault"
	case TerminalUnwrap:
		return "unwrap"
	default:
		return "unknown"
	}
}

// Format is the tag byte leading an encoded route
type Format byte

const (
	FormatLegacy   Format = 0x01
	FormatExtended Format = 0x02
)

// Field sizes
const (
	AddrSize   = common.AddressLength
	FeeSize    = 3
	FamilySize = 1
	FlagSize   = 1

	LegacyHopSize   = AddrSize + FlagSize
	ExtendedHopSize = AddrSize + FeeSize + FamilySize + FlagSize
	TerminalSize    = AddrSize + FlagSize
	TagSize         = 1

	// MaxHops bounds traversal depth
	MaxHops = 8
	// MaxFee is the largest fee tier in millionths
	MaxFee uint24 = 1_000_000
)

// Hop is one leg of a route
type Hop struct {
	TokenIn common.Address
	Fee     uint24
	Family  Family
	Flag    Flag
}

// Terminal closes a route
type Terminal struct {
	TokenOut common.Address
	Flag     TerminalFlag
}

// Route is a decoded route
type Route struct {
	Format   Format
	Hops     []Hop
	Terminal Terminal
}

// TokenIn returns the first token of the route
func (r Route) TokenIn() common.Address {
	return r.Hops[0].TokenIn
}

// TokenOut returns the last token of the route
func (r Route) TokenOut() common.Address {
	return r.Terminal.TokenOut
}

// Pools lists the pool legs of the route in trade order
func (r Route) Pools() []Pool {
	pools := make([]Pool, len(r.Hops))
	for i, h := range r.Hops {
		out := r.Terminal.TokenOut
		if i+1 < len(r.Hops) {
			out = r.Hops[i+1].TokenIn
		}
		pools[i] = Pool{TokenIn: h.TokenIn, TokenOut: out, Fee: h.Fee, Family: h.Family, Flag: h.Flag}
	}
	return pools
}

// Pool is a single leg: the pair it trades and the pool that trades it
type Pool struct {
	TokenIn  common.Address
	TokenOut common.Address
	Fee      uint24
	Family   Family
	Flag     Flag
}

var (
	ErrMalformedRoute = errors.New("malformed route")
	ErrAmbiguousRoute = errors.New("ambiguous route length")
)
