// Package ledger owns the per-symbol balances and their persistence.
package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/coinpurse/internal/domain"
	"github.com/vadiminshakov/coinpurse/internal/storage/kv"
)

// Change describes a balance mutation. Hooks receive one per affected symbol.
type Change struct {
	Symbol   domain.Symbol
	Previous decimal.Decimal
	Current  decimal.Decimal
	At       time.Time
}

// Record converts the change into its published form.
func (c Change) Record() domain.BalanceChange {
	return domain.BalanceChange{
		Timestamp: c.At,
		Symbol:    c.Symbol,
		Previous:  c.Previous.String(),
		Amount:    c.Current.String(),
	}
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithStrictRemoval makes Remove fail with domain.ErrInsufficientBalance instead of clamping to zero.
func WithStrictRemoval() Option {
	return func(l *Ledger) {
		l.strict = true
	}
}

// WithClock overrides the clock used to stamp changes.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = now
	}
}

// Ledger keeps balances in a kv.Store and caches reads in memory.
// Every mutation is written through and verified before it returns.
type Ledger struct {
	store  kv.Store
	logger *zap.Logger
	strict bool
	now    func() time.Time

	mu    sync.Mutex
	cache map[domain.Symbol]decimal.Decimal

	hooksMu sync.RWMutex
	hooks   []func(Change)
}

// New creates a ledger on top of store.
func New(store kv.Store, logger *zap.Logger, opts ...Option) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Ledger{
		store:  store,
		logger: logger.Named("ledger"),
		now:    time.Now,
		cache:  make(map[domain.Symbol]decimal.Decimal),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// OnChange registers a hook called synchronously after every successful mutation.
func (l *Ledger) OnChange(fn func(Change)) {
	l.hooksMu.Lock()
	defer l.hooksMu.Unlock()
	l.hooks = append(l.hooks, fn)
}

// Strict reports whether over-removal is rejected.
func (l *Ledger) Strict() bool {
	return l.strict
}

// Add increases the balance of symbol by amount.
func (l *Ledger) Add(ctx context.Context, symbol domain.Symbol, amount decimal.Decimal) error {
	if err := validate(symbol, amount); err != nil {
		return err
	}

	change, err := l.mutate(ctx, symbol, func(current decimal.Decimal) (decimal.Decimal, error) {
		return current.Add(amount), nil
	})
	if err != nil {
		return errors.Wrapf(err, "add %s %s", amount.String(), symbol)
	}

	l.logger.Info("balance added",
		zap.String("symbol", symbol.String()),
		zap.String("amount", amount.String()),
		zap.String("previous", change.Previous.String()),
		zap.String("current", change.Current.String()))
	l.notify(change)
	return nil
}

// Remove decreases the balance of symbol by amount. The result is clamped at zero
// unless the ledger is strict.
func (l *Ledger) Remove(ctx context.Context, symbol domain.Symbol, amount decimal.Decimal) error {
	if err := validate(symbol, amount); err != nil {
		return err
	}

	change, err := l.mutate(ctx, symbol, func(current decimal.Decimal) (decimal.Decimal, error) {
		if l.strict && amount.Sub(current).GreaterThan(domain.Tolerance) {
			return decimal.Zero, errors.Wrapf(domain.ErrInsufficientBalance,
				"holding %s, requested %s", current.String(), amount.String())
		}
		return decimal.Max(decimal.Zero, current.Sub(amount)), nil
	})
	if err != nil {
		return errors.Wrapf(err, "remove %s %s", amount.String(), symbol)
	}

	l.logger.Info("balance removed",
		zap.String("symbol", symbol.String()),
		zap.String("amount", amount.String()),
		zap.String("previous", change.Previous.String()),
		zap.String("current", change.Current.String()))
	l.notify(change)
	return nil
}

// GetAmount returns the held quantity. It never fails: unknown symbols and storage
// errors read as zero.
func (l *Ledger) GetAmount(ctx context.Context, symbol domain.Symbol) decimal.Decimal {
	if !symbol.Valid() {
		l.logger.Warn("amount requested for unsupported symbol", zap.String("symbol", symbol.String()))
		return decimal.Zero
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	amount, err := l.currentLocked(ctx, symbol)
	if err != nil {
		l.logger.Warn("failed to read balance, using 0", zap.String("symbol", symbol.String()), zap.Error(err))
		return decimal.Zero
	}
	return amount
}

// GetAllAmounts returns the quantity of every supported symbol.
func (l *Ledger) GetAllAmounts(ctx context.Context) map[domain.Symbol]decimal.Decimal {
	symbols := domain.Symbols()
	out := make(map[domain.Symbol]decimal.Decimal, len(symbols))
	for _, s := range symbols {
		out[s] = l.GetAmount(ctx, s)
	}
	return out
}

// Clear removes every balance from the store and drops the read cache.
func (l *Ledger) Clear(ctx context.Context) error {
	l.mu.Lock()

	var changes []Change
	var firstErr error
	at := l.now()
	for _, s := range domain.Symbols() {
		previous, err := l.currentLocked(ctx, s)
		if err != nil {
			previous = decimal.Zero
		}
		if err := l.store.Remove(ctx, s.String()); err != nil {
			if firstErr == nil {
				firstErr = errors.Wrapf(err, "remove %s from store", s)
			}
			continue
		}
		if !previous.IsZero() {
			changes = append(changes, Change{Symbol: s, Previous: previous, Current: decimal.Zero, At: at})
		}
	}
	l.cache = make(map[domain.Symbol]decimal.Decimal)

	l.mu.Unlock()

	for _, c := range changes {
		l.notify(c)
	}

	if firstErr != nil {
		return errors.Wrap(firstErr, "clear balances")
	}

	l.logger.Info("balances cleared", zap.Int("symbols", len(changes)))
	return nil
}

func validate(symbol domain.Symbol, amount decimal.Decimal) error {
	if !symbol.Valid() {
		return errors.Wrapf(domain.ErrValidation, "unsupported symbol %q", symbol.String())
	}
	return domain.ValidateAmount(amount)
}

// mutate runs a read-modify-write cycle for one symbol and verifies the write.
func (l *Ledger) mutate(ctx context.Context, symbol domain.Symbol, next func(current decimal.Decimal) (decimal.Decimal, error)) (Change, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	current, err := l.currentLocked(ctx, symbol)
	if err != nil {
		return Change{}, err
	}

	updated, err := next(current)
	if err != nil {
		return Change{}, err
	}

	if err := l.store.Set(ctx, symbol.String(), updated.String()); err != nil {
		delete(l.cache, symbol)
		return Change{}, errors.Wrap(err, "write balance")
	}

	if err := l.verifyLocked(ctx, symbol, updated); err != nil {
		delete(l.cache, symbol)
		return Change{}, err
	}

	l.cache[symbol] = updated
	return Change{Symbol: symbol, Previous: current, Current: updated, At: l.now()}, nil
}

// currentLocked returns the cached quantity or loads it from the store.
// Missing and unparsable values read as zero; only store failures are returned.
func (l *Ledger) currentLocked(ctx context.Context, symbol domain.Symbol) (decimal.Decimal, error) {
	if amount, ok := l.cache[symbol]; ok {
		return amount, nil
	}

	raw, ok, err := l.store.Get(ctx, symbol.String())
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "read balance")
	}

	amount := decimal.Zero
	if ok {
		amount = l.parseStored(symbol, raw)
	}
	l.cache[symbol] = amount
	return amount, nil
}

func (l *Ledger) parseStored(symbol domain.Symbol, raw string) decimal.Decimal {
	amount, err := decimal.NewFromString(raw)
	if err != nil || amount.IsNegative() {
		l.logger.Warn("stored balance is corrupt, treating as 0",
			zap.String("symbol", symbol.String()), zap.String("raw", raw))
		return decimal.Zero
	}
	return amount
}

func (l *Ledger) verifyLocked(ctx context.Context, symbol domain.Symbol, expected decimal.Decimal) error {
	raw, ok, err := l.store.Get(ctx, symbol.String())
	if err != nil {
		return errors.Wrap(err, "read back balance")
	}
	if !ok {
		return errors.Wrapf(domain.ErrStorageConsistency, "%s missing after write", symbol)
	}

	stored, err := decimal.NewFromString(raw)
	if err != nil || !domain.ApproxEqual(stored, expected) {
		l.logger.Error("storage verification failed",
			zap.String("symbol", symbol.String()),
			zap.String("expected", expected.String()),
			zap.String("stored", raw))
		return errors.Wrapf(domain.ErrStorageConsistency, "%s stored %q, expected %s", symbol, raw, expected.String())
	}
	return nil
}

func (l *Ledger) notify(c Change) {
	l.hooksMu.RLock()
	hooks := make([]func(Change), len(l.hooks))
	copy(hooks, l.hooks)
	l.hooksMu.RUnlock()

	for _, fn := range hooks {
		fn(c)
	}
}
