// Package portfolio combines ledger balances with cached USD rates into holdings and totals.
package portfolio

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/coinpurse/internal/cache"
	"github.com/vadiminshakov/coinpurse/internal/domain"
	"github.com/vadiminshakov/coinpurse/internal/ledger"
	"github.com/vadiminshakov/coinpurse/internal/services/pricer"
)

const (
	DefaultRateTTL  = time.Minute
	DefaultTotalTTL = 30 * time.Second
)

type balanceSource interface {
	GetAllAmounts(ctx context.Context) map[domain.Symbol]decimal.Decimal
}

// changeNotifier is implemented by ledgers that announce mutations.
type changeNotifier interface {
	OnChange(fn func(ledger.Change))
}

type rateFetcher interface {
	FetchAll(ctx context.Context, symbols []domain.Symbol) (pricer.RateSet, error)
	FetchOne(ctx context.Context, symbol domain.Symbol) (decimal.Decimal, error)
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithRateTTL sets how long a fetched rate set is served without refetching.
func WithRateTTL(d time.Duration) Option {
	return func(a *Aggregator) {
		a.rateTTL = d
	}
}

// WithTotalTTL sets how long a computed total is reused.
func WithTotalTTL(d time.Duration) Option {
	return func(a *Aggregator) {
		a.totalTTL = d
	}
}

// WithClock injects the clock both caches use.
func WithClock(now cache.Clock) Option {
	return func(a *Aggregator) {
		a.now = now
	}
}

// Aggregator is the pricing entry point used by the CLI and the HTTP API.
type Aggregator struct {
	balances balanceSource
	fetcher  rateFetcher
	logger   *zap.Logger

	rateTTL  time.Duration
	totalTTL time.Duration
	now      cache.Clock

	rates  *cache.TTL[pricer.RateSet]
	totals *cache.TTL[decimal.Decimal]
}

// New creates an aggregator. When balances announces changes the cached total is
// dropped on every mutation.
func New(balances balanceSource, fetcher rateFetcher, logger *zap.Logger, opts ...Option) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Aggregator{
		balances: balances,
		fetcher:  fetcher,
		logger:   logger.Named("portfolio"),
		rateTTL:  DefaultRateTTL,
		totalTTL: DefaultTotalTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}

	a.rates = cache.NewTTL[pricer.RateSet](a.rateTTL, a.now)
	a.totals = cache.NewTTL[decimal.Decimal](a.totalTTL, a.now)

	if n, ok := balances.(changeNotifier); ok {
		n.OnChange(func(ledger.Change) {
			a.InvalidateTotal()
		})
	}
	return a
}

// GetRate fetches the current rate of symbol in currency, bypassing the rate cache.
func (a *Aggregator) GetRate(ctx context.Context, symbol domain.Symbol, currency string) (decimal.Decimal, error) {
	if !domain.IsQuoteCurrency(currency) {
		return decimal.Zero, errors.Wrapf(domain.ErrUnsupportedCurrency,
			"only %s is supported, no rate for %s/%s", domain.QuoteCurrency, symbol, currency)
	}
	if !symbol.Valid() {
		return decimal.Zero, errors.Wrapf(domain.ErrUnsupportedSymbol, "symbol %q", symbol.String())
	}

	return a.fetcher.FetchOne(ctx, symbol)
}

// GetHoldings returns the holdings of every symbol with a positive quantity.
// Rate failures never surface: the last known rates are used, or values stay nil.
func (a *Aggregator) GetHoldings(ctx context.Context) (domain.Holdings, error) {
	rates := a.currentRates(ctx)
	return build(a.balances.GetAllAmounts(ctx), rates), nil
}

// Total sums the known values of all holdings, cached for the total TTL.
func (a *Aggregator) Total(ctx context.Context, currency string) (decimal.Decimal, error) {
	if !domain.IsQuoteCurrency(currency) {
		return decimal.Zero, errors.Wrapf(domain.ErrUnsupportedCurrency,
			"only %s is supported, got %s", domain.QuoteCurrency, currency)
	}

	total, _, err := a.totals.GetOrRefresh(ctx, func(ctx context.Context) (decimal.Decimal, error) {
		holdings, err := a.GetHoldings(ctx)
		if err != nil {
			return decimal.Zero, err
		}
		return holdings.Total(), nil
	})
	return total, err
}

// Allocation returns the share of the total per symbol.
func (a *Aggregator) Allocation(ctx context.Context) ([]domain.Share, error) {
	holdings, err := a.GetHoldings(ctx)
	if err != nil {
		return nil, err
	}
	return holdings.Allocation(), nil
}

// Refresh forces a rate refresh. On failure the cached rates are kept.
func (a *Aggregator) Refresh(ctx context.Context) error {
	set, err := a.fetcher.FetchAll(ctx, domain.Symbols())
	if err != nil {
		return err
	}
	a.rates.Set(set)
	a.InvalidateTotal()
	return nil
}

// RateStatus describes the cached rate set.
func (a *Aggregator) RateStatus() domain.RateStatus {
	set, fetchedAt, stale, ok := a.rates.Peek()
	if !ok {
		return domain.RateStatus{}
	}
	return domain.RateStatus{FetchedAt: fetchedAt, Stale: stale, Known: set.Len()}
}

// InvalidateTotal drops the cached total.
func (a *Aggregator) InvalidateTotal() {
	a.totals.Invalidate()
}

// currentRates returns a snapshot of the rate set callers can read without locking.
func (a *Aggregator) currentRates(ctx context.Context) pricer.RateSet {
	set, stale, err := a.rates.GetOrRefresh(ctx, func(ctx context.Context) (pricer.RateSet, error) {
		return a.fetcher.FetchAll(ctx, domain.Symbols())
	})
	switch {
	case err != nil:
		a.logger.Warn("rates unavailable, holdings will have no value", zap.Error(err))
		return pricer.RateSet{}
	case stale:
		a.logger.Warn("rate refresh failed, using stale rates")
	}
	return set
}

func build(amounts map[domain.Symbol]decimal.Decimal, rates pricer.RateSet) domain.Holdings {
	holdings := make(domain.Holdings)
	for _, s := range domain.Symbols() {
		amount, ok := amounts[s]
		if !ok || !amount.IsPositive() {
			continue
		}

		holding := domain.Holding{Amount: amount}
		if rate, ok := rates.Rate(s); ok && rate.IsPositive() {
			value := amount.Mul(rate)
			holding.Value = &value
		}
		holdings[s] = holding
	}
	return holdings
}
