package config

import (
	"flag"
)

// Flags holds command line overrides of the configuration.
type Flags struct {
	Path     string
	Backend  string
	Source   string
	LogLevel string
	Strict   bool
}

// Bind registers the global flags on fs.
func (f *Flags) Bind(fs *flag.FlagSet) {
	fs.StringVar(&f.Path, "config", "", "path to yaml config")
	fs.StringVar(&f.Backend, "storage", "", "storage backend override: memory, file, wal or redis")
	fs.StringVar(&f.Source, "source", "", "price source override: coingecko, binance, bybit or hyperliquid")
	fs.StringVar(&f.LogLevel, "log-level", "", "log level override: debug, info, warn or error")
	fs.BoolVar(&f.Strict, "strict", false, "reject removals larger than the held balance instead of clamping to zero")
}

// Resolve loads the file named by the flags and applies the overrides.
func (f *Flags) Resolve() (Config, error) {
	cfg, err := Load(f.Path)
	if err != nil {
		return Config{}, err
	}

	if f.Backend != "" {
		cfg.Storage.Backend = f.Backend
	}
	if f.Source != "" {
		cfg.Pricing.Source = f.Source
	}
	if f.LogLevel != "" {
		cfg.Log.Level = f.LogLevel
	}
	if f.Strict {
		cfg.Ledger.StrictRemoval = true
	}

	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
