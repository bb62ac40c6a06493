// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package route

import (
	"fmt"

	"github.com/luxfi/geth/common"
)

// Path is a tagged, encoded route viewed as a byte buffer. The swap engine
// consumes it hop by hop from the head (exact input) or the tail (exact
// output) and echoes the remainder through pool callbacks.
type Path []byte

func (p Path) stride() (int, error) {
	if len(p) < TagSize {
		return 0, fmt.Errorf("%w: empty", ErrMalformedRoute)
	}
	return strideOf(Format(p[0]))
}

// NumPools returns the number of pools left on the path
func (p Path) NumPools() (int, error) {
	stride, err := p.stride()
	if err != nil {
		return 0, err
	}
	return hopsIn(len(p)-TagSize, stride)
}

// HasMultiplePools reports whether more than one pool remains
func (p Path) HasMultiplePools() bool {
	n, err := p.NumPools()
	return err == nil && n > 1
}

// FirstPool decodes the pool at the head of the path
func (p Path) FirstPool() (Pool, error) {
	return p.poolAt(0)
}

// LastPool decodes the pool at the tail of the path
func (p Path) LastPool() (Pool, error) {
	n, err := p.NumPools()
	if err != nil {
		return Pool{}, err
	}
	return p.poolAt(n - 1)
}

// Terminal decodes the terminal element
func (p Path) Terminal() (Terminal, error) {
	if _, err := p.NumPools(); err != nil {
		return Terminal{}, err
	}
	tail := p[len(p)-TerminalSize:]
	t := Terminal{TokenOut: common.BytesToAddress(tail[:AddrSize]), Flag: TerminalFlag(tail[AddrSize])}
	if !t.Flag.Valid() {
		return Terminal{}, fmt.Errorf("%w: terminal flag %d", ErrMalformedRoute, t.Flag)
	}
	return t, nil
}

// SkipHead drops the first hop, keeping the tag
func (p Path) SkipHead() (Path, error) {
	stride, err := p.stride()
	if err != nil {
		return nil, err
	}
	if !p.HasMultiplePools() {
		return nil, fmt.Errorf("%w: cannot skip the only pool", ErrMalformedRoute)
	}
	out := make(Path, 0, len(p)-stride)
	out = append(out, p[0])
	return append(out, p[TagSize+stride:]...), nil
}

// DropTail drops the last hop. The last remaining hop's output token becomes
// the new terminal token; the terminal flag is kept.
func (p Path) DropTail() (Path, error) {
	stride, err := p.stride()
	if err != nil {
		return nil, err
	}
	if !p.HasMultiplePools() {
		return nil, fmt.Errorf("%w: cannot drop the only pool", ErrMalformedRoute)
	}
	lastHop := len(p) - TerminalSize - stride
	out := make(Path, 0, len(p)-stride)
	out = append(out, p[:lastHop]...)
	out = append(out, p[lastHop:lastHop+AddrSize]...)
	return append(out, p[len(p)-1]), nil
}

func (p Path) poolAt(i int) (Pool, error) {
	stride, err := p.stride()
	if err != nil {
		return Pool{}, err
	}
	n, err := hopsIn(len(p)-TagSize, stride)
	if err != nil {
		return Pool{}, err
	}
	if i < 0 || i >= n {
		return Pool{}, fmt.Errorf("%w: pool %d of %d", ErrMalformedRoute, i, n)
	}

	start := TagSize + i*stride
	h := decodeHop(Format(p[0]), p[start:start+stride])
	if !h.Family.Valid() || !h.Flag.Valid() || h.Fee > MaxFee {
		return Pool{}, fmt.Errorf("%w: pool %d", ErrMalformedRoute, i)
	}
	next := p[start+stride : start+stride+AddrSize]
	return Pool{
		TokenIn:  h.TokenIn,
		TokenOut: common.BytesToAddress(next),
		Fee:      h.Fee,
		Family:   h.Family,
		Flag:     h.Flag,
	}, nil
}
