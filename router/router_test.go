// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package router

import (
	"math/big"
	"testing"

	"github.com/holiman/uint256"
	"github.com/luxfi/database/memdb"
	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/slots/fee"
	"github.com/luxfi/slots/locator"
	"github.com/luxfi/slots/pool"
	"github.com/luxfi/slots/route"
	"github.com/luxfi/slots/state"
	"github.com/luxfi/slots/token"
)

var (
	tokenA  = common.HexToAddress("0x0A0000000000000000000000000000000000000A")
	tokenB  = common.HexToAddress("0x0B0000000000000000000000000000000000000B")
	tokenC  = common.HexToAddress("0x0C0000000000000000000000000000000000000C")
	tokenD  = common.HexToAddress("0x0D0000000000000000000000000000000000000D")
	wrapped = common.HexToAddress("0x0E0000000000000000000000000000000000000E")

	routerAddr = common.HexToAddress("0x0000000000000000000000000000000000009001")
	govAddr    = common.HexToAddress("0x0000000000000000000000000000000000009003")

	provider  = common.HexToAddress("0x1111111111111111111111111111111111111111")
	trader    = common.HexToAddress("0x2222222222222222222222222222222222222222")
	recipient = common.HexToAddress("0x3333333333333333333333333333333333333333")
	partner   = common.HexToAddress("0x4444444444444444444444444444444444444444")
	admin     = common.HexToAddress("0x5555555555555555555555555555555555555555")
)

func e18(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

type fixture struct {
	st     *state.DB
	router *Router
	pools  *pool.Manager
	gov    *fee.Governance
}

func newFixture(t *testing.T, shareBps uint16) *fixture {
	t.Helper()
	l, err := locator.New(map[route.Family]locator.Deployment{
		route.FamilyUniswap: {Factory: common.HexToAddress("0xaa"), InitCodeHash: common.HexToHash("0x01")},
		route.FamilyAlgebra: {Factory: common.HexToAddress("0xbb"), InitCodeHash: common.HexToHash("0x02")},
	}, 0)
	require.NoError(t, err)

	st := state.New(memdb.New())
	st.SetBlock(1, 1_700_000_000)

	gov, err := fee.New(govAddr, fee.DefaultParams())
	require.NoError(t, err)
	require.NoError(t, gov.Deploy(st, admin, shareBps))

	pools := pool.NewManager(l)
	for _, tok := range []common.Address{tokenA, tokenB, tokenC, tokenD} {
		require.NoError(t, token.Mint(st, tok, provider, e18(10_000_000)))
		require.NoError(t, token.Mint(st, tok, trader, e18(1_000)))
	}
	st.AddBalance(provider, uint256.MustFromBig(e18(1_000_000)))
	require.NoError(t, token.Wrap(st, wrapped, provider, e18(1_000_000)))

	deploy := func(a, b common.Address, fee uint32, family route.Family) {
		p, err := pools.Create(st, a, b, fee, family)
		require.NoError(t, err)
		require.NoError(t, pools.AddLiquidity(st, provider, p.Address, e18(1_000_000), e18(1_000_000)))
	}
	deploy(tokenA, tokenB, pool.Fee005, route.FamilyUniswap)
	deploy(tokenB, tokenC, 0, route.FamilyAlgebra)
	deploy(tokenC, tokenD, pool.Fee030, route.FamilyUniswap)
	deploy(tokenA, wrapped, pool.Fee005, route.FamilyUniswap)

	r := New(routerAddr, l, pools, gov, wrapped)
	for _, tok := range []common.Address{tokenA, tokenB, tokenC, tokenD} {
		require.NoError(t, token.Approve(st, tok, trader, routerAddr, e18(1_000)))
	}
	return &fixture{st: st, router: r, pools: pools, gov: gov}
}

func mixedRoute(t *testing.T, mode Mode, terminal route.TerminalFlag) []byte {
	t.Helper()
	flag := route.FlagExactIn
	if mode == ModeExactOut {
		flag = route.FlagExactOut
	}
	raw, err := route.Encode([]route.Hop{
		{TokenIn: tokenA, Fee: pool.Fee005, Family: route.FamilyUniswap, Flag: flag},
		{TokenIn: tokenB, Fee: 0, Family: route.FamilyAlgebra, Flag: flag},
		{TokenIn: tokenC, Fee: pool.Fee030, Family: route.FamilyUniswap, Flag: flag},
	}, route.Terminal{TokenOut: tokenD, Flag: terminal})
	require.NoError(t, err)
	return raw
}

func TestRouter_ExactInputMultiHop(t *testing.T) {
	f := newFixture(t, 0)
	before := token.BalanceOf(f.st, tokenA, trader)

	res, err := f.router.ExactInput(f.st, ExactInputParams{
		Settlement: Settlement{Payer: trader, Recipient: recipient},
		Route:      mixedRoute(t, ModeExactIn, route.TerminalRecipient),
		AmountIn:   e18(10),
		MinOut:     e18(9),
	})
	require.NoError(t, err)
	require.Equal(t, e18(10), res.AmountIn)
	require.Equal(t, 0, res.Fee.Sign())

	require.Equal(t, res.AmountOut, token.BalanceOf(f.st, tokenD, recipient))
	require.Equal(t, new(big.Int).Sub(before, e18(10)), token.BalanceOf(f.st, tokenA, trader))

	// nothing is left behind on the router
	for _, tok := range []common.Address{tokenA, tokenB, tokenC, tokenD} {
		require.Equal(t, 0, token.BalanceOf(f.st, tok, routerAddr).Sign(), "router holds %s", tok.Hex())
	}
	require.False(t, f.router.Busy())
}

func TestRouter_ExactOutputMultiHop(t *testing.T) {
	f := newFixture(t, 0)
	before := token.BalanceOf(f.st, tokenA, trader)

	res, err := f.router.ExactOutput(f.st, ExactOutputParams{
		Settlement: Settlement{Payer: trader, Recipient: recipient},
		Route:      mixedRoute(t, ModeExactOut, route.TerminalRecipient),
		AmountOut:  e18(10),
		MaxIn:      e18(11),
	})
	require.NoError(t, err)
	require.Equal(t, e18(10), res.AmountOut)
	require.Equal(t, e18(10), token.BalanceOf(f.st, tokenD, recipient))
	require.Equal(t, new(big.Int).Sub(before, res.AmountIn), token.BalanceOf(f.st, tokenA, trader))
	require.True(t, res.AmountIn.Cmp(e18(10)) > 0)

	for _, tok := range []common.Address{tokenA, tokenB, tokenC, tokenD} {
		require.Equal(t, 0, token.BalanceOf(f.st, tok, routerAddr).Sign())
	}
}

func TestRouter_SlippageReverts(t *testing.T) {
	f := newFixture(t, 0)
	beforeA := token.BalanceOf(f.st, tokenA, trader)
	r0, r1, err := f.pools.Reserves(f.st, mustLocate(t, f, tokenA, tokenB, pool.Fee005, route.FamilyUniswap))
	require.NoError(t, err)

	_, err = f.router.ExactInput(f.st, ExactInputParams{
		Settlement: Settlement{Payer: trader, Recipient: recipient},
		Route:      mixedRoute(t, ModeExactIn, route.TerminalRecipient),
		AmountIn:   e18(10),
		MinOut:     e18(10),
	})
	require.ErrorIs(t, err, ErrSlippageExceeded)

	_, err = f.router.ExactOutput(f.st, ExactOutputParams{
		Settlement: Settlement{Payer: trader, Recipient: recipient},
		Route:      mixedRoute(t, ModeExactOut, route.TerminalRecipient),
		AmountOut:  e18(10),
		MaxIn:      e18(10),
	})
	require.ErrorIs(t, err, ErrSlippageExceeded)

	// no partial pool interaction survives
	require.Equal(t, beforeA, token.BalanceOf(f.st, tokenA, trader))
	require.Equal(t, 0, token.BalanceOf(f.st, tokenD, recipient).Sign())
	n0, n1, err := f.pools.Reserves(f.st, mustLocate(t, f, tokenA, tokenB, pool.Fee005, route.FamilyUniswap))
	require.NoError(t, err)
	require.Equal(t, r0, n0)
	require.Equal(t, r1, n1)
	require.False(t, f.router.Busy())
}

func TestRouter_FeeSplit(t *testing.T) {
	f := newFixture(t, 100)
	raw := mixedRoute(t, ModeExactIn, route.TerminalRecipient)

	res, err := f.router.ExactInput(f.st, ExactInputParams{
		Settlement: Settlement{Payer: trader, Recipient: recipient, Partner: partner, FeeBps: 50},
		Route:      raw,
		AmountIn:   e18(10),
	})
	require.NoError(t, err)

	gross := new(big.Int).Add(res.AmountOut, res.Fee)
	require.Equal(t, fee.Amount(gross, 50), res.Fee)
	protocol := fee.Amount(res.Fee, 100)
	require.Equal(t, protocol, token.BalanceOf(f.st, tokenD, govAddr))
	require.Equal(t, new(big.Int).Sub(res.Fee, protocol), token.BalanceOf(f.st, tokenD, partner))

	// without a partner the collector takes everything
	collector := common.HexToAddress("0x7777777777777777777777777777777777777777")
	res, err = f.router.ExactOutput(f.st, ExactOutputParams{
		Settlement: Settlement{Payer: trader, Recipient: recipient, FeeBps: 50, Collector: collector},
		Route:      mixedRoute(t, ModeExactOut, route.TerminalRecipient),
		AmountOut:  e18(1),
	})
	require.NoError(t, err)
	require.Equal(t, res.Fee, token.BalanceOf(f.st, tokenA, collector))
	require.True(t, res.Fee.Sign() > 0)
}

func TestRouter_InvalidFee(t *testing.T) {
	f := newFixture(t, 0)
	_, err := f.router.ExactInput(f.st, ExactInputParams{
		Settlement: Settlement{Payer: trader, Recipient: recipient, FeeBps: DefaultMaxFeeBps + 1},
		Route:      mixedRoute(t, ModeExactIn, route.TerminalRecipient),
		AmountIn:   e18(1),
	})
	require.ErrorIs(t, err, ErrInvalidFee)

	// 5% is far above the default cap in either mode
	_, err = f.router.ExactOutput(f.st, ExactOutputParams{
		Settlement: Settlement{Payer: trader, Recipient: recipient, FeeBps: 500},
		Route:      mixedRoute(t, ModeExactOut, route.TerminalRecipient),
		AmountOut:  e18(1),
	})
	require.ErrorIs(t, err, ErrInvalidFee)
	require.Equal(t, 0, token.BalanceOf(f.st, tokenD, recipient).Sign())
}

func TestRouter_FlagMismatch(t *testing.T) {
	f := newFixture(t, 0)
	_, err := f.router.ExactInput(f.st, ExactInputParams{
		Settlement: Settlement{Payer: trader, Recipient: recipient},
		Route:      mixedRoute(t, ModeExactOut, route.TerminalRecipient),
		AmountIn:   e18(1),
	})
	require.ErrorIs(t, err, route.ErrMalformedRoute)

	_, err = f.router.ExactInput(f.st, ExactInputParams{
		Settlement: Settlement{Payer: trader, Recipient: recipient},
		Route:      mixedRoute(t, ModeExactIn, route.TerminalVault),
		AmountIn:   e18(1),
	})
	require.ErrorIs(t, err, ErrMissingAccount)
}

func TestRouter_Unwrap(t *testing.T) {
	f := newFixture(t, 0)
	raw, err := route.Encode([]route.Hop{
		{TokenIn: tokenA, Fee: pool.Fee005, Family: route.FamilyUniswap, Flag: route.FlagExactIn},
	}, route.Terminal{TokenOut: wrapped, Flag: route.TerminalUnwrap})
	require.NoError(t, err)

	res, err := f.router.ExactInput(f.st, ExactInputParams{
		Settlement: Settlement{Payer: trader, Recipient: recipient},
		Route:      raw,
		AmountIn:   e18(1),
	})
	require.NoError(t, err)
	require.Equal(t, res.AmountOut, f.st.GetBalance(recipient).ToBig())
	require.Equal(t, 0, token.BalanceOf(f.st, wrapped, recipient).Sign())
}

func TestRouter_UnauthorizedCallback(t *testing.T) {
	f := newFixture(t, 0)
	raw := mixedRoute(t, ModeExactIn, route.TerminalRecipient)
	data := EncodeCallbackData(ModeExactIn, route.Path(raw))
	poolAB := mustLocate(t, f, tokenA, tokenB, pool.Fee005, route.FamilyUniswap)

	// a caller that is not the pool named by the payload
	err := f.router.UniswapV3SwapCallback(f.st, trader, big.NewInt(1), big.NewInt(-1), data)
	require.ErrorIs(t, err, ErrUnauthorizedCallback)

	// right address, wrong family entry point
	err = f.router.AlgebraSwapCallback(f.st, poolAB, big.NewInt(1), big.NewInt(-1), data)
	require.ErrorIs(t, err, ErrUnauthorizedCallback)

	// right pool, no traversal in flight
	err = f.router.UniswapV3SwapCallback(f.st, poolAB, big.NewInt(1), big.NewInt(-1), data)
	require.ErrorIs(t, err, ErrUnauthorizedCallback)

	err = f.router.UniswapV3SwapCallback(f.st, poolAB, big.NewInt(1), big.NewInt(-1), []byte{0x09})
	require.ErrorIs(t, err, ErrUnauthorizedCallback)
}

// testAccount funds from and credits to its own balances
type testAccount struct {
	addr     common.Address
	credited map[common.Address]*big.Int
	reenter  func(state.StateDB) error
}

func (a *testAccount) Address() common.Address { return a.addr }

func (a *testAccount) Fund(stateDB state.StateDB, asset common.Address, amount *big.Int, to common.Address) error {
	return token.Transfer(stateDB, asset, a.addr, to, amount)
}

func (a *testAccount) Credit(stateDB state.StateDB, asset common.Address, amount *big.Int) error {
	if a.reenter != nil {
		return a.reenter(stateDB)
	}
	if a.credited == nil {
		a.credited = make(map[common.Address]*big.Int)
	}
	a.credited[asset] = new(big.Int).Set(amount)
	return nil
}

func TestRouter_Account(t *testing.T) {
	f := newFixture(t, 0)
	acct := &testAccount{addr: trader}

	res, err := f.router.ExactInput(f.st, ExactInputParams{
		Settlement: Settlement{Account: acct},
		Route:      mixedRoute(t, ModeExactIn, route.TerminalVault),
		AmountIn:   e18(5),
	})
	require.NoError(t, err)
	require.Equal(t, res.AmountOut, acct.credited[tokenD])
	require.Equal(t, new(big.Int).Add(e18(1_000), res.AmountOut), token.BalanceOf(f.st, tokenD, trader))
}

func TestRouter_Reentrancy(t *testing.T) {
	f := newFixture(t, 0)
	acct := &testAccount{addr: trader}
	acct.reenter = func(st state.StateDB) error {
		_, err := f.router.ExactInput(st, ExactInputParams{
			Settlement: Settlement{Payer: trader, Recipient: recipient},
			Route:      mixedRoute(t, ModeExactIn, route.TerminalRecipient),
			AmountIn:   e18(1),
		})
		return err
	}

	_, err := f.router.ExactInput(f.st, ExactInputParams{
		Settlement: Settlement{Account: acct},
		Route:      mixedRoute(t, ModeExactIn, route.TerminalVault),
		AmountIn:   e18(1),
	})
	require.ErrorIs(t, err, ErrReentrantCall)
	require.False(t, f.router.Busy())
}

func TestCheckFlags(t *testing.T) {
	r := route.Route{
		Format: route.FormatExtended,
		Hops: []route.Hop{
			{TokenIn: tokenA, Flag: route.FlagMarginOpen},
			{TokenIn: tokenB, Flag: route.FlagExactIn},
		},
		Terminal: route.Terminal{TokenOut: tokenC},
	}
	require.NoError(t, CheckFlags(ModeExactIn, r))
	require.ErrorIs(t, CheckFlags(ModeExactOut, r), route.ErrMalformedRoute)

	r.Hops[0].Flag = route.FlagExactOut
	r.Hops[1].Flag = route.FlagMarginClose
	require.NoError(t, CheckFlags(ModeExactOut, r))

	r.Hops[0].Flag = route.FlagLiquidate
	require.ErrorIs(t, CheckFlags(ModeExactOut, r), route.ErrMalformedRoute)
}

func mustLocate(t *testing.T, f *fixture, a, b common.Address, fee uint32, family route.Family) common.Address {
	t.Helper()
	addr, err := f.router.Locator().Locate(a, b, fee, family)
	require.NoError(t, err)
	return addr
}
