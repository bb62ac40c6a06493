// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package route

import (
	"fmt"

	"github.com/luxfi/geth/common"
)

// Encode serialises hops and terminal in the extended format
func Encode(hops []Hop, terminal Terminal) ([]byte, error) {
	return Route{Format: FormatExtended, Hops: hops, Terminal: terminal}.Encode()
}

// EncodeLegacy serialises hops and terminal in the legacy address+flag
// format. Every hop must use the Algebra family with the implicit fee 0.
func EncodeLegacy(hops []Hop, terminal Terminal) ([]byte, error) {
	return Route{Format: FormatLegacy, Hops: hops, Terminal: terminal}.Encode()
}

// Encode serialises the route with a leading format tag
func (r Route) Encode() ([]byte, error) {
	body, err := r.encodeBody()
	if err != nil {
		return nil, err
	}
	return append([]byte{byte(r.Format)}, body...), nil
}

func (r Route) encodeBody() ([]byte, error) {
	if err := r.validate(); err != nil {
		return nil, err
	}

	stride := ExtendedHopSize
	if r.Format == FormatLegacy {
		stride = LegacyHopSize
	}
	out := make([]byte, 0, len(r.Hops)*stride+TerminalSize)
	for _, h := range r.Hops {
		out = append(out, h.TokenIn.Bytes()...)
		if r.Format == FormatExtended {
			out = append(out, byte(h.Fee>>16), byte(h.Fee>>8), byte(h.Fee))
			out = append(out, byte(h.Family))
		}
		out = append(out, byte(h.Flag))
	}
	out = append(out, r.Terminal.TokenOut.Bytes()...)
	return append(out, byte(r.Terminal.Flag)), nil
}

func (r Route) validate() error {
	if r.Format != FormatLegacy && r.Format != FormatExtended {
		return fmt.Errorf("%w: unknown format 0x%02x", ErrMalformedRoute, byte(r.Format))
	}
	if len(r.Hops) == 0 {
		return fmt.Errorf("%w: no hops", ErrMalformedRoute)
	}
	if len(r.Hops) > MaxHops {
		return fmt.Errorf("%w: %d hops exceeds %d", ErrMalformedRoute, len(r.Hops), MaxHops)
	}
	for i, h := range r.Hops {
		if !h.Flag.Valid() {
			return fmt.Errorf("%w: hop %d flag %d", ErrMalformedRoute, i, h.Flag)
		}
		if !h.Family.Valid() {
			return fmt.Errorf("%w: hop %d family %d", ErrMalformedRoute, i, h.Family)
		}
		if h.Fee > MaxFee {
			return fmt.Errorf("%w: hop %d fee %d", ErrMalformedRoute, i, h.Fee)
		}
		if r.Format == FormatLegacy && (h.Fee != 0 || h.Family != FamilyAlgebra) {
			return fmt.Errorf("%w: hop %d needs the extended format", ErrMalformedRoute, i)
		}
	}
	if !r.Terminal.Flag.Valid() {
		return fmt.Errorf("%w: terminal flag %d", ErrMalformedRoute, r.Terminal.Flag)
	}
	return nil
}

// Decode parses a tagged route
func Decode(raw []byte) (Route, error) {
	if len(raw) < TagSize {
		return Route{}, fmt.Errorf("%w: empty", ErrMalformedRoute)
	}
	return decodeBody(Format(raw[0]), raw[TagSize:])
}

// DecodeUntagged parses a route body without a format tag, choosing the
// format from the body length. Lengths valid for both strides are rejected.
func DecodeUntagged(body []byte) (Route, error) {
	legacy := fits(len(body), LegacyHopSize)
	extended := fits(len(body), ExtendedHopSize)
	switch {
	case legacy && extended:
		return Route{}, fmt.Errorf("%w: %w: %d bytes", ErrMalformedRoute, ErrAmbiguousRoute, len(body))
	case legacy:
		return decodeBody(FormatLegacy, body)
	case extended:
		return decodeBody(FormatExtended, body)
	default:
		return Route{}, fmt.Errorf("%w: %d bytes fit no stride", ErrMalformedRoute, len(body))
	}
}

// DecodeAs parses an untagged body in a known format
func DecodeAs(format Format, body []byte) (Route, error) {
	return decodeBody(format, body)
}

// HopCount returns the number of hops in a tagged route
func HopCount(raw []byte) (int, error) {
	if len(raw) < TagSize {
		return 0, fmt.Errorf("%w: empty", ErrMalformedRoute)
	}
	stride, err := strideOf(Format(raw[0]))
	if err != nil {
		return 0, err
	}
	n, err := hopsIn(len(raw)-TagSize, stride)
	if err != nil {
		return 0, err
	}
	return n, nil
}

func fits(length, stride int) bool {
	n := length - TerminalSize
	return n > 0 && n%stride == 0
}

func strideOf(format Format) (int, error) {
	switch format {
	case FormatLegacy:
		return LegacyHopSize, nil
	case FormatExtended:
		return ExtendedHopSize, nil
	default:
		return 0, fmt.Errorf("%w: unknown format 0x%02x", ErrMalformedRoute, byte(format))
	}
}

func hopsIn(length, stride int) (int, error) {
	n := length - TerminalSize
	if n <= 0 {
		return 0, fmt.Errorf("%w: %d bytes holds no hop", ErrMalformedRoute, length)
	}
	if n%stride != 0 {
		return 0, fmt.Errorf("%w: %d bytes not aligned to stride %d", ErrMalformedRoute, length, stride)
	}
	if n/stride > MaxHops {
		return 0, fmt.Errorf("%w: %d hops exceeds %d", ErrMalformedRoute, n/stride, MaxHops)
	}
	return n / stride, nil
}

func decodeBody(format Format, body []byte) (Route, error) {
	stride, err := strideOf(format)
	if err != nil {
		return Route{}, err
	}
	n, err := hopsIn(len(body), stride)
	if err != nil {
		return Route{}, err
	}

	r := Route{Format: format, Hops: make([]Hop, n)}
	for i := 0; i < n; i++ {
		r.Hops[i] = decodeHop(format, body[i*stride:(i+1)*stride])
	}
	tail := body[n*stride:]
	r.Terminal = Terminal{
		TokenOut: common.BytesToAddress(tail[:AddrSize]),
		Flag:     TerminalFlag(tail[AddrSize]),
	}
	if err := r.validate(); err != nil {
		return Route{}, err
	}
	return r, nil
}

func decodeHop(format Format, b []byte) Hop {
	h := Hop{TokenIn: common.BytesToAddress(b[:AddrSize])}
	if format == FormatLegacy {
		h.Flag = Flag(b[AddrSize])
		h.Family = FamilyAlgebra
		return h
	}
	h.Fee = uint24(b[AddrSize])<<16 | uint24(b[AddrSize+1])<<8 | uint24(b[AddrSize+2])
	h.Family = Family(b[AddrSize+FeeSize])
	h.Flag = Flag(b[AddrSize+FeeSize+FamilySize])
	return h
}
