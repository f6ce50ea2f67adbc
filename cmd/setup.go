package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/subcommands"
	"github.com/kr/pretty"

	"github.com/vadiminshakov/coinpurse/config"
	"github.com/vadiminshakov/coinpurse/internal/setup"
)

type configCmd struct{}

func (*configCmd) Name() string     { return "config" }
func (*configCmd) Synopsis() string { return "print the effective configuration" }
func (*configCmd) Usage() string {
	return `coinpurse [-config file.yaml] config

  Prints the configuration after defaults, file, environment and flags are applied.
  Secrets are masked.
`
}
func (*configCmd) SetFlags(*flag.FlagSet) {}

func (*configCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := globals.Resolve()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	pretty.Fprintf(os.Stdout, "%# v\n", masked(cfg))
	return subcommands.ExitSuccess
}

func masked(cfg config.Config) config.Config {
	if cfg.Pricing.APIKey != "" {
		cfg.Pricing.APIKey = "***"
	}
	if cfg.Storage.Redis.Password != "" {
		cfg.Storage.Redis.Password = "***"
	}
	return cfg
}

type initCmd struct {
	out string
}

func (*initCmd) Name() string     { return "init" }
func (*initCmd) Synopsis() string { return "create a config file with a guided form" }
func (*initCmd) Usage() string {
	return `coinpurse init [-o path]
`
}

func (c *initCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.out, "o", defaultConfigPath(), "where to write the config file")
}

func (c *initCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := setup.RunWizard(c.out); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func defaultConfigPath() string {
	return filepath.Join(filepath.Dir(config.Default().Storage.FilePath), "config.yaml")
}
