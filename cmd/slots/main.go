// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// slots is the operator CLI: route encoding, pool and vault address
// derivation and fee arithmetic against a deployment config.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/luxfi/slots/config"
	"github.com/luxfi/slots/locator"
)

type app struct {
	configPath string
	cfg        config.Config
	log        *zap.Logger
	locator    *locator.Locator
}

func newRootCmd() *cobra.Command {
	a := &app{cfg: config.Default(), log: zap.NewNop()}
	root := &cobra.Command{
		Use:           "slots",
		Short:         "leveraged swap routing tools",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "deployment config (TOML), defaults when empty")

	root.AddCommand(newRouteCmd(a))
	root.AddCommand(newLocateCmd(a))
	root.AddCommand(newVaultAddressCmd(a))
	root.AddCommand(newFeeCmd(a))
	return root
}

func (a *app) load() error {
	if a.configPath != "" {
		cfg, err := config.Load(a.configPath)
		if err != nil {
			return err
		}
		a.cfg = cfg
	}
	log, err := newLogger(a.cfg.Log)
	if err != nil {
		return err
	}
	a.log = log
	a.log.Debug("config loaded", zap.String("path", a.configPath), zap.Uint64("chainID", a.cfg.ChainID))
	return nil
}

func newLogger(c config.Log) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if c.Level != "" {
		var err error
		if level, err = zapcore.ParseLevel(c.Level); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", c.Level, err)
		}
	}
	zc := zap.NewProductionConfig()
	if c.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stderr"}
	return zc.Build()
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
