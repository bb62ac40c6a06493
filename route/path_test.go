// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package route

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPath_HeadTraversal(t *testing.T) {
	raw, err := Encode(mixedHops(), Terminal{TokenOut: tokenD, Flag: TerminalVault})
	require.NoError(t, err)
	r, err := Decode(raw)
	require.NoError(t, err)
	want := r.Pools()

	p := Path(raw)
	for i := 0; i < len(want); i++ {
		got, err := p.FirstPool()
		require.NoError(t, err)
		require.Equal(t, want[i], got)
		if i < len(want)-1 {
			require.True(t, p.HasMultiplePools())
			p, err = p.SkipHead()
			require.NoError(t, err)
		}
	}
	require.False(t, p.HasMultiplePools())
	_, err = p.SkipHead()
	require.ErrorIs(t, err, ErrMalformedRoute)

	term, err := p.Terminal()
	require.NoError(t, err)
	require.Equal(t, tokenD, term.TokenOut)
	require.Equal(t, TerminalVault, term.Flag)
}

func TestPath_TailTraversal(t *testing.T) {
	raw, err := Encode(mixedHops(), Terminal{TokenOut: tokenD, Flag: TerminalUnwrap})
	require.NoError(t, err)
	r, err := Decode(raw)
	require.NoError(t, err)
	want := r.Pools()

	p := Path(raw)
	for i := len(want) - 1; i >= 0; i-- {
		got, err := p.LastPool()
		require.NoError(t, err)
		require.Equal(t, want[i], got)

		n, err := p.NumPools()
		require.NoError(t, err)
		require.Equal(t, i+1, n)
		if i > 0 {
			p, err = p.DropTail()
			require.NoError(t, err)
		}
	}

	// the remaining path is a well formed single hop route
	r, err = Decode(p)
	require.NoError(t, err)
	require.Len(t, r.Hops, 1)
	require.Equal(t, tokenB, r.Terminal.TokenOut)
	require.Equal(t, TerminalUnwrap, r.Terminal.Flag)
}

func TestPath_LegacyPools(t *testing.T) {
	raw, err := EncodeLegacy([]Hop{
		{TokenIn: tokenA, Flag: FlagLiquidate},
		{TokenIn: tokenB, Flag: FlagExactIn},
	}, Terminal{TokenOut: tokenC})
	require.NoError(t, err)

	first, err := Path(raw).FirstPool()
	require.NoError(t, err)
	require.Equal(t, Pool{TokenIn: tokenA, TokenOut: tokenB, Family: FamilyAlgebra, Flag: FlagLiquidate}, first)

	last, err := Path(raw).LastPool()
	require.NoError(t, err)
	require.Equal(t, tokenC, last.TokenOut)
}

func TestPath_Garbage(t *testing.T) {
	_, err := Path(nil).FirstPool()
	require.ErrorIs(t, err, ErrMalformedRoute)
	_, err = Path([]byte{byte(FormatExtended), 1, 2, 3}).LastPool()
	require.ErrorIs(t, err, ErrMalformedRoute)
	require.False(t, Path([]byte{0xff}).HasMultiplePools())
}
