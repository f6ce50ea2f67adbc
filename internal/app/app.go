// Package app wires storage, ledger, pricing and events from a configuration.
package app

import (
	"context"
	"os"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/coinpurse/config"
	"github.com/vadiminshakov/coinpurse/internal/events"
	"github.com/vadiminshakov/coinpurse/internal/ledger"
	"github.com/vadiminshakov/coinpurse/internal/services/portfolio"
	"github.com/vadiminshakov/coinpurse/internal/services/pricer"
	"github.com/vadiminshakov/coinpurse/internal/storage/journal"
	"github.com/vadiminshakov/coinpurse/internal/storage/kv"
)

const eventBuffer = 64

// App holds the instances shared by the CLI commands and the HTTP server.
type App struct {
	Config    config.Config
	Logger    *zap.Logger
	Store     kv.Store
	Ledger    *ledger.Ledger
	Fetcher   *pricer.Fetcher
	Portfolio *portfolio.Aggregator
	Events    *events.BalanceBroadcaster
	// Journal is nil unless storage.journal is enabled.
	Journal *journal.WALStore
}

// Option tweaks construction, tests use it to swap the rate source.
type Option func(*options)

type options struct {
	source pricer.Source
	store  kv.Store
	getenv func(string) string
}

// WithSource replaces the configured rate source.
func WithSource(s pricer.Source) Option {
	return func(o *options) {
		o.source = s
	}
}

// WithStore replaces the configured storage backend.
func WithStore(s kv.Store) Option {
	return func(o *options) {
		o.store = s
	}
}

// New opens the store and builds every component. Close releases the store.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := options{getenv: os.Getenv}
	for _, opt := range opts {
		opt(&o)
	}

	store := o.store
	if store == nil {
		var err error
		store, err = kv.Open(ctx, kv.Options{
			Backend:  cfg.Storage.Backend,
			FilePath: cfg.Storage.FilePath,
			WALDir:   cfg.Storage.WALDir,
			Redis: kv.RedisOptions{
				Addr:     cfg.Storage.Redis.Address,
				Username: cfg.Storage.Redis.Username,
				Password: cfg.Storage.Redis.Password,
				DB:       cfg.Storage.Redis.DB,
				Prefix:   cfg.Storage.Redis.Prefix,
			},
		})
		if err != nil {
			return nil, errors.Wrapf(err, "open %s storage", cfg.Storage.Backend)
		}
	}

	source := o.source
	if source == nil {
		var err error
		source, err = newSource(ctx, cfg.Pricing, o.getenv, logger)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
	}

	var ledgerOpts []ledger.Option
	if cfg.Ledger.StrictRemoval {
		ledgerOpts = append(ledgerOpts, ledger.WithStrictRemoval())
	}
	l := ledger.New(store, logger, ledgerOpts...)

	fetcher := pricer.NewFetcher(source, cfg.PricingPolicy(), logger)
	agg := portfolio.New(l, fetcher, logger,
		portfolio.WithRateTTL(cfg.Pricing.RateTTL),
		portfolio.WithTotalTTL(cfg.Pricing.TotalTTL),
	)

	broadcaster := events.NewBalanceBroadcaster(eventBuffer)
	l.OnChange(broadcaster.PublishChange)

	var changes *journal.WALStore
	if cfg.Storage.Journal {
		var err error
		changes, err = journal.NewWALStore(cfg.Storage.JournalDir)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		journalLogger := logger.Named("journal")
		l.OnChange(func(c ledger.Change) {
			if err := changes.Append(c.Record()); err != nil {
				journalLogger.Error("append balance change", zap.String("symbol", c.Symbol.String()), zap.Error(err))
			}
		})
	}

	logger.Debug("app ready",
		zap.String("storage", cfg.Storage.Backend),
		zap.String("source", source.Name()),
		zap.Bool("strict_removal", cfg.Ledger.StrictRemoval),
	)

	return &App{
		Config:    cfg,
		Logger:    logger,
		Store:     store,
		Ledger:    l,
		Fetcher:   fetcher,
		Portfolio: agg,
		Events:    broadcaster,
		Journal:   changes,
	}, nil
}

// Close releases the store and the journal.
func (a *App) Close() error {
	err := a.Store.Close()
	if a.Journal != nil {
		if jerr := a.Journal.Close(); jerr != nil && err == nil {
			err = jerr
		}
	}
	return err
}
