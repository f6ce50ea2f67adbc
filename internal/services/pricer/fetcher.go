package pricer

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/coinpurse/internal/domain"
	"github.com/vadiminshakov/coinpurse/pkg/retrier"
)

const (
	DefaultTimeout    = 7 * time.Second
	DefaultRetries    = 3
	DefaultRetryDelay = 1 * time.Second
	DefaultBatchSize  = 5
	DefaultBatchDelay = 1 * time.Second
)

// Policy bounds every upstream call.
type Policy struct {
	// Timeout per attempt.
	Timeout time.Duration
	// Retries after the first attempt.
	Retries    int
	RetryDelay time.Duration
	// BatchSize symbols per upstream request during a full refresh.
	BatchSize  int
	BatchDelay time.Duration
}

// DefaultPolicy returns the recommended limits.
func DefaultPolicy() Policy {
	return Policy{
		Timeout:    DefaultTimeout,
		Retries:    DefaultRetries,
		RetryDelay: DefaultRetryDelay,
		BatchSize:  DefaultBatchSize,
		BatchDelay: DefaultBatchDelay,
	}
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithSleep replaces the wait used for retry and inter-batch delays.
func WithSleep(fn retrier.SleepFunc) FetcherOption {
	return func(f *Fetcher) {
		f.sleep = fn
	}
}

// WithClock overrides the clock used to stamp rate sets.
func WithClock(now func() time.Time) FetcherOption {
	return func(f *Fetcher) {
		f.now = now
	}
}

// Fetcher applies timeout, retry and batching to a Source.
type Fetcher struct {
	source Source
	policy Policy
	logger *zap.Logger
	sleep  retrier.SleepFunc
	now    func() time.Time
}

// NewFetcher wraps source. Zero fields of policy fall back to the defaults.
func NewFetcher(source Source, policy Policy, logger *zap.Logger, opts ...FetcherOption) *Fetcher {
	def := DefaultPolicy()
	if policy.Timeout <= 0 {
		policy.Timeout = def.Timeout
	}
	if policy.Retries < 0 {
		policy.Retries = 0
	}
	if policy.RetryDelay < 0 {
		policy.RetryDelay = 0
	}
	if policy.BatchSize <= 0 {
		policy.BatchSize = def.BatchSize
	}
	if policy.BatchDelay < 0 {
		policy.BatchDelay = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	f := &Fetcher{
		source: source,
		policy: policy,
		logger: logger.Named("pricer").With(zap.String("source", source.Name())),
		sleep:  retrier.Sleep,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Source returns the wrapped source.
func (f *Fetcher) Source() Source {
	return f.source
}

// FetchAll refreshes rates for symbols batch by batch. Any failed batch fails the
// whole refresh so a partial result never replaces a complete one.
func (f *Fetcher) FetchAll(ctx context.Context, symbols []domain.Symbol) (RateSet, error) {
	logger := f.logger.With(zap.String("refresh_id", uuid.NewString()))
	batches := Batches(symbols, f.policy.BatchSize)
	rates := make(map[domain.Symbol]decimal.Decimal, len(symbols))

	for i, batch := range batches {
		if i > 0 {
			if err := f.sleep(ctx, f.policy.BatchDelay); err != nil {
				return RateSet{}, errors.Wrap(err, "wait between batches")
			}
		}

		got, err := f.fetchBatch(ctx, batch)
		if err != nil {
			logger.Warn("rate batch failed", zap.Int("batch", i), zap.Int("batches", len(batches)), zap.Error(err))
			return RateSet{}, errors.Wrapf(domain.ErrRateUnavailable, "batch %d/%d: %v", i+1, len(batches), err)
		}
		for s, rate := range got {
			rates[s] = rate
		}
	}

	if len(rates) == 0 && len(symbols) > 0 {
		return RateSet{}, errors.Wrap(domain.ErrRateUnavailable, "upstream returned no rates")
	}

	logger.Debug("rates refreshed", zap.Int("symbols", len(rates)), zap.Int("batches", len(batches)))
	return RateSet{Rates: rates, FetchedAt: f.now()}, nil
}

// FetchOne fetches the rate of a single symbol.
func (f *Fetcher) FetchOne(ctx context.Context, symbol domain.Symbol) (decimal.Decimal, error) {
	rates, err := f.fetchBatch(ctx, []domain.Symbol{symbol})
	if err != nil {
		return decimal.Zero, errors.Wrapf(domain.ErrRateUnavailable, "%s/%s: %v", symbol, domain.QuoteCurrency, err)
	}

	rate, ok := rates[symbol]
	if !ok || !positive(rate) {
		return decimal.Zero, errors.Wrapf(domain.ErrRateUnavailable, "%s/%s: no rate in response", symbol, domain.QuoteCurrency)
	}
	return rate, nil
}

func (f *Fetcher) fetchBatch(ctx context.Context, batch []domain.Symbol) (map[domain.Symbol]decimal.Decimal, error) {
	r := retrier.New(
		retrier.WithMaxRetries(f.policy.Retries),
		retrier.WithInitialInterval(f.policy.RetryDelay),
		retrier.WithMultiplier(1),
		retrier.WithSleep(f.sleep),
		retrier.WithRetryIf(retryable),
		retrier.WithOnRetry(func(attempt int, err error) {
			f.logger.Debug("retrying rate request", zap.Int("attempt", attempt), zap.Error(err))
		}),
	)

	return retrier.DoWithData(r, ctx, func(ctx context.Context) (map[domain.Symbol]decimal.Decimal, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, f.policy.Timeout)
		defer cancel()
		return f.source.Fetch(attemptCtx, batch)
	})
}

// retryable treats everything except a malformed payload as transient.
func retryable(err error) bool {
	var malformed *MalformedError
	return !errors.As(err, &malformed)
}

// Batches splits symbols into consecutive groups of at most size.
func Batches(symbols []domain.Symbol, size int) [][]domain.Symbol {
	if size <= 0 {
		size = DefaultBatchSize
	}
	var out [][]domain.Symbol
	for start := 0; start < len(symbols); start += size {
		end := start + size
		if end > len(symbols) {
			end = len(symbols)
		}
		out = append(out, symbols[start:end])
	}
	return out
}
