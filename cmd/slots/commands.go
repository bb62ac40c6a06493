// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/common/hexutil"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/luxfi/slots/factory"
	"github.com/luxfi/slots/fee"
	"github.com/luxfi/slots/locator"
	"github.com/luxfi/slots/route"
	"github.com/luxfi/slots/units"
)

var errBadArgument = errors.New("bad argument")

var (
	families = map[string]route.Family{
		route.FamilyAlgebra.String(): route.FamilyAlgebra,
		route.FamilyUniswap.String(): route.FamilyUniswap,
	}
	flags = map[string]route.Flag{
		route.FlagMarginOpen.String():  route.FlagMarginOpen,
		route.FlagMarginClose.String(): route.FlagMarginClose,
		route.FlagExactOut.String():    route.FlagExactOut,
		route.FlagExactIn.String():     route.FlagExactIn,
		route.FlagLiquidate.String():   route.FlagLiquidate,
	}
	terminals = map[string]route.TerminalFlag{
		route.TerminalRecipient.String(): route.TerminalRecipient,
		route.TerminalVault.String():     route.TerminalVault,
		route.TerminalUnwrap.String():    route.TerminalUnwrap,
	}
)

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%w: %q is not an address", errBadArgument, s)
	}
	return common.HexToAddress(s), nil
}

func parseFamily(s string) (route.Family, error) {
	f, ok := families[strings.ToLower(s)]
	if !ok {
		return 0, fmt.Errorf("%w: unknown family %q", errBadArgument, s)
	}
	return f, nil
}

// parseHop reads token:fee:family:flag. Legacy hops are token:flag.
func parseHop(s string, legacy bool) (route.Hop, error) {
	parts := strings.Split(s, ":")
	want := 4
	if legacy {
		want = 2
	}
	if len(parts) != want {
		return route.Hop{}, fmt.Errorf("%w: hop %q needs %d fields", errBadArgument, s, want)
	}
	token, err := parseAddress(parts[0])
	if err != nil {
		return route.Hop{}, err
	}
	flag, ok := flags[strings.ToLower(parts[len(parts)-1])]
	if !ok {
		return route.Hop{}, fmt.Errorf("%w: unknown flag %q", errBadArgument, parts[len(parts)-1])
	}
	h := route.Hop{TokenIn: token, Flag: flag, Family: route.FamilyAlgebra}
	if legacy {
		return h, nil
	}
	tier, err := strconv.ParseUint(parts[1], 10, 24)
	if err != nil {
		return route.Hop{}, fmt.Errorf("%w: fee %q: %w", errBadArgument, parts[1], err)
	}
	h.Fee = uint32(tier)
	if h.Family, err = parseFamily(parts[2]); err != nil {
		return route.Hop{}, err
	}
	return h, nil
}

func newRouteCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "route",
		Short: "encode and decode routes",
	}

	var (
		hops     []string
		out      string
		terminal string
		legacy   bool
	)
	encode := &cobra.Command{
		Use:   "encode",
		Short: "encode a route from --hop token:fee:family:flag entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r := route.Route{Format: route.FormatExtended}
			if legacy {
				r.Format = route.FormatLegacy
			}
			for _, s := range hops {
				h, err := parseHop(s, legacy)
				if err != nil {
					return err
				}
				r.Hops = append(r.Hops, h)
			}
			tokenOut, err := parseAddress(out)
			if err != nil {
				return err
			}
			tf, ok := terminals[strings.ToLower(terminal)]
			if !ok {
				return fmt.Errorf("%w: unknown terminal %q", errBadArgument, terminal)
			}
			r.Terminal = route.Terminal{TokenOut: tokenOut, Flag: tf}

			raw, err := r.Encode()
			if err != nil {
				return err
			}
			a.log.Debug("route encoded", zap.Int("hops", len(r.Hops)), zap.Int("bytes", len(raw)))
			fmt.Fprintln(cmd.OutOrStdout(), hexutil.Encode(raw))
			return nil
		},
	}
	encode.Flags().StringArrayVar(&hops, "hop", nil, "hop as token:fee:family:flag (token:flag with --legacy)")
	encode.Flags().StringVar(&out, "out", "", "output token")
	encode.Flags().StringVar(&terminal, "terminal", route.TerminalRecipient.String(), "recipient, vault or unwrap")
	encode.Flags().BoolVar(&legacy, "legacy", false, "use the legacy address+flag format")
	_ = encode.MarkFlagRequired("out")

	decode := &cobra.Command{
		Use:   "decode <hex>",
		Short: "decode a route and print its pools",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := hexutil.Decode(args[0])
			if err != nil {
				return fmt.Errorf("%w: %w", errBadArgument, err)
			}
			r, err := route.Decode(raw)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "format 0x%02x, %d hops, terminal %s\n", byte(r.Format), len(r.Hops), r.Terminal.Flag)
			for i, p := range r.Pools() {
				addr, err := a.locate(p.TokenIn, p.TokenOut, p.Fee, p.Family)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%d %s -> %s fee %d %s %s pool %s\n",
					i, p.TokenIn.Hex(), p.TokenOut.Hex(), p.Fee, p.Family, p.Flag, addr.Hex())
			}
			return nil
		},
	}

	cmd.AddCommand(encode, decode)
	return cmd
}

func newLocateCmd(a *app) *cobra.Command {
	var (
		tier   uint32
		family string
	)
	cmd := &cobra.Command{
		Use:   "locate <tokenA> <tokenB>",
		Short: "derive a pool address",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tokenA, err := parseAddress(args[0])
			if err != nil {
				return err
			}
			tokenB, err := parseAddress(args[1])
			if err != nil {
				return err
			}
			f, err := parseFamily(family)
			if err != nil {
				return err
			}
			addr, err := a.locate(tokenA, tokenB, tier, f)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), addr.Hex())
			return nil
		},
	}
	cmd.Flags().Uint32Var(&tier, "fee", 0, "fee tier in millionths (ignored by algebra)")
	cmd.Flags().StringVar(&family, "family", route.FamilyUniswap.String(), "uniswap or algebra")
	return cmd
}

func newVaultAddressCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "vault-address <owner> <nonce>",
		Short: "derive the address of an owner's vault",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, err := parseAddress(args[0])
			if err != nil {
				return err
			}
			nonce, err := strconv.ParseUint(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("%w: nonce %q: %w", errBadArgument, args[1], err)
			}
			addr := factory.VaultAddress(a.cfg.Contracts.Factory, a.cfg.VaultCodeHash, owner, nonce)
			fmt.Fprintln(cmd.OutOrStdout(), addr.Hex())
			return nil
		},
	}
}

func newFeeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fee",
		Short: "integration fee arithmetic",
	}
	var (
		decimals   int32
		feeBps     uint16
		shareBps   uint16
		hasPartner bool
	)
	split := &cobra.Command{
		Use:   "split <amount>",
		Short: "split the integration fee on an amount between protocol and partner",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := units.Parse(args[0], decimals)
			if err != nil {
				return err
			}
			if feeBps > a.cfg.Fee.MaxFeeBps {
				return fmt.Errorf("%w: fee %s above the %s cap", errBadArgument, units.Bps(feeBps), units.Bps(a.cfg.Fee.MaxFeeBps))
			}
			if !cmd.Flags().Changed("share") {
				shareBps = a.cfg.Fee.InitialShareBps
			}
			total := fee.Amount(amount, feeBps)
			protocol, partner := total, new(big.Int)
			if hasPartner {
				protocol, partner = fee.SplitShare(total, shareBps)
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "fee      %s (%s)\n", units.Format(total, decimals), units.Bps(feeBps))
			fmt.Fprintf(w, "protocol %s\n", units.Format(protocol, decimals))
			fmt.Fprintf(w, "partner  %s\n", units.Format(partner, decimals))
			fmt.Fprintf(w, "net      %s\n", units.Format(new(big.Int).Sub(amount, total), decimals))
			return nil
		},
	}
	split.Flags().Int32Var(&decimals, "decimals", units.Ether, "token decimals")
	split.Flags().Uint16Var(&feeBps, "bps", 0, "integration fee in basis points")
	split.Flags().Uint16Var(&shareBps, "share", 0, "protocol share of the fee in basis points (config initial share when unset)")
	split.Flags().BoolVar(&hasPartner, "partner", false, "a partner takes the non-protocol part")
	cmd.AddCommand(split)
	return cmd
}

func (a *app) locate(tokenA, tokenB common.Address, tier uint32, family route.Family) (common.Address, error) {
	if a.locator == nil {
		l, err := locator.New(a.cfg.Pools.Deployments(), a.cfg.Pools.CacheSize)
		if err != nil {
			return common.Address{}, err
		}
		a.locator = l
	}
	return a.locator.Locate(tokenA, tokenB, tier, family)
}
