package pricer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/coinpurse/internal/domain"
)

type mockSource struct {
	mock.Mock
}

func (m *mockSource) Name() string { return "mock" }

func (m *mockSource) Fetch(ctx context.Context, symbols []domain.Symbol) (map[domain.Symbol]decimal.Decimal, error) {
	args := m.Called(ctx, symbols)
	rates, _ := args.Get(0).(map[domain.Symbol]decimal.Decimal)
	return rates, args.Error(1)
}

type recordingSleep struct {
	delays []time.Duration
}

func (s *recordingSleep) sleep(ctx context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return ctx.Err()
}

func rates(kv ...any) map[domain.Symbol]decimal.Decimal {
	out := make(map[domain.Symbol]decimal.Decimal)
	for i := 0; i < len(kv); i += 2 {
		out[kv[i].(domain.Symbol)] = decimal.NewFromInt(int64(kv[i+1].(int)))
	}
	return out
}

func newTestFetcher(source Source, sleeper *recordingSleep) *Fetcher {
	return NewFetcher(source, DefaultPolicy(), zap.NewNop(), WithSleep(sleeper.sleep))
}

func TestBatches(t *testing.T) {
	symbols := domain.Symbols()

	batches := Batches(symbols, 5)
	require.Len(t, batches, 2)
	assert.Equal(t, symbols[:5], batches[0])
	assert.Equal(t, symbols[5:], batches[1])

	assert.Len(t, Batches(symbols, 8), 1)
	assert.Len(t, Batches(symbols, 3), 3)
	assert.Empty(t, Batches(nil, 5))
}

func TestFetcher_FetchAll_BatchesSequentiallyWithDelay(t *testing.T) {
	source := &mockSource{}
	symbols := domain.Symbols()
	source.On("Fetch", mock.Anything, symbols[:5]).Return(rates(domain.BTC, 50000, domain.ETH, 3000), nil).Once()
	source.On("Fetch", mock.Anything, symbols[5:]).Return(rates(domain.DOGE, 1), nil).Once()

	sleeper := &recordingSleep{}
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	f := NewFetcher(source, DefaultPolicy(), zap.NewNop(), WithSleep(sleeper.sleep), WithClock(func() time.Time { return now }))

	set, err := f.FetchAll(context.Background(), symbols)
	require.NoError(t, err)
	assert.Equal(t, 3, set.Len())
	assert.Equal(t, now, set.FetchedAt)
	rate, ok := set.Rate(domain.BTC)
	require.True(t, ok)
	assert.True(t, rate.Equal(decimal.NewFromInt(50000)))

	assert.Equal(t, []time.Duration{DefaultBatchDelay}, sleeper.delays)
	source.AssertNumberOfCalls(t, "Fetch", 2)
}

func TestFetcher_FetchAll_RetriesTransientFailures(t *testing.T) {
	source := &mockSource{}
	symbols := []domain.Symbol{domain.BTC}
	source.On("Fetch", mock.Anything, symbols).Return(nil, errors.New("connection reset")).Twice()
	source.On("Fetch", mock.Anything, symbols).Return(rates(domain.BTC, 60000), nil).Once()

	sleeper := &recordingSleep{}
	set, err := newTestFetcher(source, sleeper).FetchAll(context.Background(), symbols)
	require.NoError(t, err)
	assert.Equal(t, 1, set.Len())
	assert.Equal(t, []time.Duration{DefaultRetryDelay, DefaultRetryDelay}, sleeper.delays)
	source.AssertNumberOfCalls(t, "Fetch", 3)
}

func TestFetcher_FetchAll_FailsAfterRetriesExhausted(t *testing.T) {
	source := &mockSource{}
	symbols := domain.Symbols()
	source.On("Fetch", mock.Anything, symbols[:5]).Return(rates(domain.BTC, 1), nil)
	source.On("Fetch", mock.Anything, symbols[5:]).Return(nil, &StatusError{Source: "mock", Code: 429, Status: "429 Too Many Requests"})

	_, err := newTestFetcher(source, &recordingSleep{}).FetchAll(context.Background(), symbols)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRateUnavailable)
	// 1 call for the first batch, 1 + DefaultRetries for the failing one
	source.AssertNumberOfCalls(t, "Fetch", 2+DefaultRetries)
}

func TestFetcher_FetchAll_MalformedIsNotRetried(t *testing.T) {
	source := &mockSource{}
	symbols := []domain.Symbol{domain.ETH}
	source.On("Fetch", mock.Anything, symbols).Return(nil, &MalformedError{Source: "mock", Err: errors.New("eof")})

	_, err := newTestFetcher(source, &recordingSleep{}).FetchAll(context.Background(), symbols)
	assert.ErrorIs(t, err, domain.ErrRateUnavailable)
	source.AssertNumberOfCalls(t, "Fetch", 1)
}

func TestFetcher_FetchAll_EmptyResultFails(t *testing.T) {
	source := &mockSource{}
	symbols := []domain.Symbol{domain.ETH}
	source.On("Fetch", mock.Anything, symbols).Return(map[domain.Symbol]decimal.Decimal{}, nil)

	_, err := newTestFetcher(source, &recordingSleep{}).FetchAll(context.Background(), symbols)
	assert.ErrorIs(t, err, domain.ErrRateUnavailable)
}

func TestFetcher_AttemptTimeout(t *testing.T) {
	source := &mockSource{}
	symbols := []domain.Symbol{domain.SOL}
	source.On("Fetch", mock.Anything, symbols).Run(func(args mock.Arguments) {
		ctx := args.Get(0).(context.Context)
		<-ctx.Done()
	}).Return(nil, context.DeadlineExceeded)

	policy := DefaultPolicy()
	policy.Timeout = 10 * time.Millisecond
	policy.Retries = 1
	f := NewFetcher(source, policy, zap.NewNop(), WithSleep((&recordingSleep{}).sleep))

	_, err := f.FetchOne(context.Background(), domain.SOL)
	assert.ErrorIs(t, err, domain.ErrRateUnavailable)
	source.AssertNumberOfCalls(t, "Fetch", 2)
}

func TestFetcher_FetchOne(t *testing.T) {
	source := &mockSource{}
	source.On("Fetch", mock.Anything, []domain.Symbol{domain.BTC}).Return(rates(domain.BTC, 42000), nil)
	source.On("Fetch", mock.Anything, []domain.Symbol{domain.ADA}).Return(map[domain.Symbol]decimal.Decimal{}, nil)

	f := newTestFetcher(source, &recordingSleep{})

	rate, err := f.FetchOne(context.Background(), domain.BTC)
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.NewFromInt(42000)))

	_, err = f.FetchOne(context.Background(), domain.ADA)
	assert.ErrorIs(t, err, domain.ErrRateUnavailable)
}
