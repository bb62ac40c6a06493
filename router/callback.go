// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package router

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/luxfi/geth/common"

	"github.com/luxfi/slots/locator"
	"github.com/luxfi/slots/route"
)

// EncodeCallbackData builds the payload echoed by pools: the traversal mode
// followed by the remaining tagged path
func EncodeCallbackData(mode Mode, path route.Path) []byte {
	out := make([]byte, 0, 1+len(path))
	out = append(out, byte(mode))
	return append(out, path...)
}

// DecodeCallbackData splits a callback payload
func DecodeCallbackData(data []byte) (Mode, route.Path, error) {
	if len(data) < 2 {
		return 0, nil, fmt.Errorf("%w: short callback data", route.ErrMalformedRoute)
	}
	mode := Mode(data[0])
	if mode != ModeExactIn && mode != ModeExactOut {
		return 0, nil, fmt.Errorf("%w: unknown mode %d", route.ErrMalformedRoute, data[0])
	}
	path := route.Path(data[1:])
	if _, err := path.NumPools(); err != nil {
		return 0, nil, err
	}
	return mode, path, nil
}

// Authenticate re-derives the pool a callback payload claims to come from
// and checks it is the caller. The claimed pool is the head of the path for
// exact input and the tail for exact output.
func Authenticate(
	l *locator.Locator,
	family route.Family,
	caller common.Address,
	data []byte,
) (Mode, route.Path, route.Pool, error) {
	mode, path, err := DecodeCallbackData(data)
	if err != nil {
		return 0, nil, route.Pool{}, fmt.Errorf("%w: %w", ErrUnauthorizedCallback, err)
	}
	var p route.Pool
	if mode == ModeExactIn {
		p, err = path.FirstPool()
	} else {
		p, err = path.LastPool()
	}
	if err != nil {
		return 0, nil, route.Pool{}, fmt.Errorf("%w: %w", ErrUnauthorizedCallback, err)
	}
	if p.Family != family {
		return 0, nil, route.Pool{}, fmt.Errorf("%w: %s callback for a %s pool", ErrUnauthorizedCallback, family, p.Family)
	}
	expected, err := l.LocatePool(p)
	if err != nil {
		return 0, nil, route.Pool{}, fmt.Errorf("%w: %w", ErrUnauthorizedCallback, err)
	}
	if expected != caller {
		return 0, nil, route.Pool{}, fmt.Errorf("%w: caller %s, expected %s", ErrUnauthorizedCallback, caller.Hex(), expected.Hex())
	}
	return mode, path, p, nil
}

// ZeroForOne reports whether a swap from tokenIn to tokenOut sells token0
func ZeroForOne(tokenIn, tokenOut common.Address) bool {
	return bytes.Compare(tokenIn.Bytes(), tokenOut.Bytes()) < 0
}

// Deltas splits pool-side deltas into the amount owed to the pool and the
// amount it paid out
func Deltas(p route.Pool, amount0, amount1 *big.Int) (toPay, received *big.Int, err error) {
	if amount0 == nil || amount1 == nil {
		return nil, nil, fmt.Errorf("%w: missing deltas", ErrUnauthorizedCallback)
	}
	owed, out := amount0, amount1
	if !ZeroForOne(p.TokenIn, p.TokenOut) {
		owed, out = amount1, amount0
	}
	if owed.Sign() <= 0 || out.Sign() > 0 {
		return nil, nil, fmt.Errorf("%w: deltas %s/%s do not match the pool direction", ErrUnauthorizedCallback, amount0, amount1)
	}
	return new(big.Int).Set(owed), new(big.Int).Neg(out), nil
}
