package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/subcommands"
	"go.uber.org/zap"

	"github.com/vadiminshakov/coinpurse/config"
	"github.com/vadiminshakov/coinpurse/internal/app"
	"github.com/vadiminshakov/coinpurse/internal/logging"
)

// as a CLI the process is short lived, global flags are kept in a package variable.
var globals config.Flags

func register(c *subcommands.Commander) {
	c.Register(&addCmd{}, "balances")
	c.Register(&removeCmd{}, "balances")
	c.Register(&clearCmd{}, "balances")
	c.Register(&historyCmd{}, "balances")

	c.Register(&showCmd{}, "valuation")
	c.Register(&totalCmd{}, "valuation")
	c.Register(&rateCmd{}, "valuation")

	c.Register(&serveCmd{}, "interactive")
	c.Register(&promptCmd{}, "interactive")

	c.Register(&configCmd{}, "setup")
	c.Register(&initCmd{}, "setup")
}

func loadConfig() (config.Config, *zap.Logger, error) {
	cfg, err := globals.Resolve()
	if err != nil {
		return config.Config{}, nil, err
	}
	logger, err := logging.New(logging.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

// run builds the application for one command and closes it afterwards.
func run(ctx context.Context, fn func(ctx context.Context, a *app.App) error) subcommands.ExitStatus {
	cfg, logger, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer logger.Sync() //nolint:errcheck

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("close storage", zap.Error(err))
		}
	}()

	if err := fn(ctx, a); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
