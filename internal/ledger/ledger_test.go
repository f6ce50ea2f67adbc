package ledger

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/coinpurse/internal/domain"
	"github.com/vadiminshakov/coinpurse/internal/storage/kv"
)

// faultyStore wraps a memory store and can corrupt writes or fail reads.
type faultyStore struct {
	*kv.Memory
	corruptWrites bool
	failReads     bool
	failWrites    bool
}

func (s *faultyStore) Get(ctx context.Context, key string) (string, bool, error) {
	if s.failReads {
		return "", false, errors.New("disk on fire")
	}
	return s.Memory.Get(ctx, key)
}

func (s *faultyStore) Set(ctx context.Context, key, value string) error {
	if s.failWrites {
		return errors.New("read-only filesystem")
	}
	if s.corruptWrites {
		value = value + "1"
	}
	return s.Memory.Set(ctx, key, value)
}

func newTestLedger(t *testing.T, opts ...Option) (*Ledger, *faultyStore) {
	t.Helper()
	store := &faultyStore{Memory: kv.NewMemory()}
	return New(store, zap.NewNop(), opts...), store
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestLedger_AddAccumulates(t *testing.T) {
	l, store := newTestLedger(t)
	ctx := context.Background()

	require.NoError(t, l.Add(ctx, domain.BTC, d("0.5")))
	require.NoError(t, l.Add(ctx, domain.BTC, d("0.25")))

	assert.True(t, l.GetAmount(ctx, domain.BTC).Equal(d("0.75")))

	raw, ok, err := store.Memory.Get(ctx, "BTC")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "0.75", raw)
}

func TestLedger_RemoveRestoresPreviousBalance(t *testing.T) {
	ctx := context.Background()
	for _, s := range domain.Symbols() {
		for _, amount := range []string{"0.000001", "1", "123.456789", "1000000"} {
			l, _ := newTestLedger(t)
			require.NoError(t, l.Add(ctx, s, d("3")))
			before := l.GetAmount(ctx, s)

			require.NoError(t, l.Add(ctx, s, d(amount)))
			require.NoError(t, l.Remove(ctx, s, d(amount)))

			assert.True(t, domain.ApproxEqual(before, l.GetAmount(ctx, s)), "%s %s", s, amount)
		}
	}
}

func TestLedger_RemoveClampsAtZero(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	require.NoError(t, l.Remove(ctx, domain.ETH, d("10")))
	assert.True(t, l.GetAmount(ctx, domain.ETH).IsZero())

	require.NoError(t, l.Add(ctx, domain.ETH, d("1.5")))
	require.NoError(t, l.Remove(ctx, domain.ETH, d("2")))
	amount := l.GetAmount(ctx, domain.ETH)
	assert.True(t, amount.IsZero())
	assert.False(t, amount.IsNegative())
}

func TestLedger_StrictRemoval(t *testing.T) {
	l, _ := newTestLedger(t, WithStrictRemoval())
	ctx := context.Background()
	require.True(t, l.Strict())

	require.NoError(t, l.Add(ctx, domain.SOL, d("1")))

	err := l.Remove(ctx, domain.SOL, d("1.5"))
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)
	assert.True(t, l.GetAmount(ctx, domain.SOL).Equal(d("1")))

	require.NoError(t, l.Remove(ctx, domain.SOL, d("1")))
	assert.True(t, l.GetAmount(ctx, domain.SOL).IsZero())
}

func TestLedger_ValidationLeavesStateUnchanged(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()
	require.NoError(t, l.Add(ctx, domain.ADA, d("5")))

	var changes int
	l.OnChange(func(Change) { changes++ })

	tests := []struct {
		name   string
		symbol domain.Symbol
		amount decimal.Decimal
	}{
		{name: "zero amount", symbol: domain.ADA, amount: decimal.Zero},
		{name: "negative amount", symbol: domain.ADA, amount: d("-1")},
		{name: "unsupported symbol", symbol: domain.Symbol("LTC"), amount: d("1")},
		{name: "empty symbol", symbol: domain.Symbol(""), amount: d("1")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, l.Add(ctx, tt.symbol, tt.amount), domain.ErrValidation)
			assert.ErrorIs(t, l.Remove(ctx, tt.symbol, tt.amount), domain.ErrValidation)
			assert.True(t, l.GetAmount(ctx, domain.ADA).Equal(d("5")))
		})
	}
	assert.Zero(t, changes)
}

func TestLedger_NonFiniteInputRejectedBeforeLedger(t *testing.T) {
	for _, f := range []float64{math.NaN(), math.Inf(1), math.Inf(-1), 0, -2} {
		_, err := domain.AmountFromFloat(f)
		assert.ErrorIs(t, err, domain.ErrValidation, "%v", f)
	}
}

func TestLedger_StorageConsistencyError(t *testing.T) {
	l, store := newTestLedger(t)
	ctx := context.Background()
	store.corruptWrites = true

	err := l.Add(ctx, domain.DOT, d("2"))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStorageConsistency)

	store.corruptWrites = false
	// cache was dropped, the next read goes to the store
	assert.True(t, l.GetAmount(ctx, domain.DOT).Equal(d("21")))
}

func TestLedger_WriteFailureSurfaces(t *testing.T) {
	l, store := newTestLedger(t)
	ctx := context.Background()
	store.failWrites = true

	err := l.Add(ctx, domain.XRP, d("1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read-only filesystem")
}

func TestLedger_GetAmountNeverFails(t *testing.T) {
	l, store := newTestLedger(t)
	ctx := context.Background()

	assert.True(t, l.GetAmount(ctx, domain.BTC).IsZero(), "never written")
	assert.True(t, l.GetAmount(ctx, domain.Symbol("LTC")).IsZero(), "unsupported")

	require.NoError(t, store.Memory.Set(ctx, "ETH", "garbage"))
	assert.True(t, l.GetAmount(ctx, domain.ETH).IsZero(), "corrupt value")

	require.NoError(t, store.Memory.Set(ctx, "SOL", "-4"))
	assert.True(t, l.GetAmount(ctx, domain.SOL).IsZero(), "negative value")

	store.failReads = true
	assert.True(t, l.GetAmount(ctx, domain.DOGE).IsZero(), "store error")
}

func TestLedger_CorruptValueIsReadRepairedOnAdd(t *testing.T) {
	l, store := newTestLedger(t)
	ctx := context.Background()
	require.NoError(t, store.Memory.Set(ctx, "BNB", "not-a-number"))

	require.NoError(t, l.Add(ctx, domain.BNB, d("2")))
	assert.True(t, l.GetAmount(ctx, domain.BNB).Equal(d("2")))
}

func TestLedger_ReadCacheAvoidsStore(t *testing.T) {
	l, store := newTestLedger(t)
	ctx := context.Background()
	require.NoError(t, l.Add(ctx, domain.BTC, d("1")))

	store.failReads = true
	assert.True(t, l.GetAmount(ctx, domain.BTC).Equal(d("1")))
}

func TestLedger_GetAllAmounts(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()
	require.NoError(t, l.Add(ctx, domain.BTC, d("1")))
	require.NoError(t, l.Add(ctx, domain.DOGE, d("100")))

	all := l.GetAllAmounts(ctx)
	require.Len(t, all, len(domain.Symbols()))
	assert.True(t, all[domain.BTC].Equal(d("1")))
	assert.True(t, all[domain.DOGE].Equal(d("100")))
	assert.True(t, all[domain.ETH].IsZero())
}

func TestLedger_Clear(t *testing.T) {
	l, store := newTestLedger(t)
	ctx := context.Background()
	require.NoError(t, l.Add(ctx, domain.BTC, d("1")))
	require.NoError(t, l.Add(ctx, domain.ETH, d("2")))

	var changes []Change
	l.OnChange(func(c Change) { changes = append(changes, c) })

	require.NoError(t, l.Clear(ctx))

	for _, s := range domain.Symbols() {
		_, ok, err := store.Memory.Get(ctx, s.String())
		require.NoError(t, err)
		assert.False(t, ok, s)
		assert.True(t, l.GetAmount(ctx, s).IsZero())
	}
	require.Len(t, changes, 2)
	assert.Equal(t, domain.BTC, changes[0].Symbol)
	assert.Equal(t, domain.ETH, changes[1].Symbol)
}

func TestLedger_OnChange(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	var got []Change
	l.OnChange(func(c Change) { got = append(got, c) })

	require.NoError(t, l.Add(ctx, domain.BTC, d("1")))
	require.NoError(t, l.Remove(ctx, domain.BTC, d("0.4")))

	require.Len(t, got, 2)
	assert.True(t, got[0].Previous.IsZero())
	assert.True(t, got[0].Current.Equal(d("1")))
	assert.True(t, got[1].Previous.Equal(d("1")))
	assert.True(t, got[1].Current.Equal(d("0.6")))
}

func TestLedger_PersistsAcrossInstances(t *testing.T) {
	store := kv.NewMemory()
	ctx := context.Background()

	first := New(store, zap.NewNop())
	require.NoError(t, first.Add(ctx, domain.XRP, d("42")))

	second := New(store, zap.NewNop())
	assert.True(t, second.GetAmount(ctx, domain.XRP).Equal(d("42")))
}
