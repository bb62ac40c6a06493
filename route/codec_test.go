// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package route

import (
	"errors"
	"testing"

	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/require"
)

var (
	tokenA = common.HexToAddress("0x1000000000000000000000000000000000000001")
	tokenB = common.HexToAddress("0x2000000000000000000000000000000000000002")
	tokenC = common.HexToAddress("0x3000000000000000000000000000000000000003")
	tokenD = common.HexToAddress("0x4000000000000000000000000000000000000004")
)

func mixedHops() []Hop {
	return []Hop{
		{TokenIn: tokenA, Fee: 500, Family: FamilyUniswap, Flag: FlagMarginOpen},
		{TokenIn: tokenB, Fee: 0, Family: FamilyAlgebra, Flag: FlagExactIn},
		{TokenIn: tokenC, Fee: 3000, Family: FamilyUniswap, Flag: FlagExactIn},
	}
}

func TestEncode_RoundTrip(t *testing.T) {
	terminal := Terminal{TokenOut: tokenD, Flag: TerminalVault}
	raw, err := Encode(mixedHops(), terminal)
	require.NoError(t, err)
	require.Len(t, raw, TagSize+3*ExtendedHopSize+TerminalSize)
	require.Equal(t, byte(FormatExtended), raw[0])

	r, err := Decode(raw)
	require.NoError(t, err)
	require.Equal(t, FormatExtended, r.Format)
	require.Equal(t, mixedHops(), r.Hops)
	require.Equal(t, terminal, r.Terminal)
	require.Equal(t, tokenA, r.TokenIn())
	require.Equal(t, tokenD, r.TokenOut())
}

func TestEncodeLegacy_RoundTrip(t *testing.T) {
	hops := []Hop{
		{TokenIn: tokenA, Family: FamilyAlgebra, Flag: FlagMarginClose},
		{TokenIn: tokenB, Family: FamilyAlgebra, Flag: FlagExactOut},
	}
	terminal := Terminal{TokenOut: tokenC, Flag: TerminalRecipient}
	raw, err := EncodeLegacy(hops, terminal)
	require.NoError(t, err)
	require.Len(t, raw, TagSize+2*LegacyHopSize+TerminalSize)

	r, err := Decode(raw)
	require.NoError(t, err)
	require.Equal(t, hops, r.Hops)
	require.Equal(t, terminal, r.Terminal)
}

func TestEncodeLegacy_RejectsExtendedHops(t *testing.T) {
	_, err := EncodeLegacy(mixedHops(), Terminal{TokenOut: tokenD})
	require.ErrorIs(t, err, ErrMalformedRoute)
}

func TestEncode_FeeLayout(t *testing.T) {
	raw, err := Encode([]Hop{{TokenIn: tokenA, Fee: 0x0a0b0c, Family: FamilyUniswap, Flag: FlagExactIn}},
		Terminal{TokenOut: tokenB})
	require.NoError(t, err)
	fee := raw[TagSize+AddrSize : TagSize+AddrSize+FeeSize]
	require.Equal(t, []byte{0x0a, 0x0b, 0x0c}, fee)
	require.Equal(t, byte(FamilyUniswap), raw[TagSize+AddrSize+FeeSize])
}

func TestDecode_Malformed(t *testing.T) {
	valid, err := Encode(mixedHops(), Terminal{TokenOut: tokenD})
	require.NoError(t, err)

	badFamily := append([]byte{}, valid...)
	badFamily[TagSize+AddrSize+FeeSize] = 9

	badFlag := append([]byte{}, valid...)
	badFlag[len(badFlag)-1] = 7

	tooMany := []byte{byte(FormatLegacy)}
	tooMany = append(tooMany, make([]byte, (MaxHops+1)*LegacyHopSize+TerminalSize)...)

	tests := []struct {
		name string
		raw  []byte
	}{
		{"empty", nil},
		{"tag only", []byte{byte(FormatExtended)}},
		{"unknown tag", append([]byte{0x09}, valid[1:]...)},
		{"misaligned", valid[:len(valid)-1]},
		{"terminal only", append([]byte{byte(FormatExtended)}, valid[len(valid)-TerminalSize:]...)},
		{"bad family", badFamily},
		{"bad terminal flag", badFlag},
		{"too many hops", tooMany},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.raw)
			if !errors.Is(err, ErrMalformedRoute) {
				t.Errorf("expected ErrMalformedRoute, got %v", err)
			}
		})
	}
}

func TestDecodeUntagged_SizeDispatch(t *testing.T) {
	ext, err := Encode(mixedHops(), Terminal{TokenOut: tokenD})
	require.NoError(t, err)
	r, err := DecodeUntagged(ext[TagSize:])
	require.NoError(t, err)
	require.Equal(t, FormatExtended, r.Format)
	require.Len(t, r.Hops, 3)

	legacy, err := EncodeLegacy([]Hop{{TokenIn: tokenA, Flag: FlagExactIn}}, Terminal{TokenOut: tokenB})
	require.NoError(t, err)
	r, err = DecodeUntagged(legacy[TagSize:])
	require.NoError(t, err)
	require.Equal(t, FormatLegacy, r.Format)
	require.Equal(t, FamilyAlgebra, r.Hops[0].Family)
	require.Equal(t, uint32(0), r.Hops[0].Fee)
}

func TestDecodeUntagged_Ambiguous(t *testing.T) {
	// 525 is a multiple of both strides
	body := make([]byte, TerminalSize+LegacyHopSize*ExtendedHopSize)
	_, err := DecodeUntagged(body)
	require.ErrorIs(t, err, ErrAmbiguousRoute)
	require.ErrorIs(t, err, ErrMalformedRoute)
}

func TestHopCount(t *testing.T) {
	raw, err := Encode(mixedHops(), Terminal{TokenOut: tokenD})
	require.NoError(t, err)
	n, err := HopCount(raw)
	require.NoError(t, err)
	require.Equal(t, 3, n)

	_, err = HopCount(raw[:len(raw)-2])
	require.ErrorIs(t, err, ErrMalformedRoute)
}
