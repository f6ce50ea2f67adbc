package pricer

import (
	"context"
	"sync"

	"github.com/hirokisan/bybit/v2"
	"github.com/panjf2000/ants/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/coinpurse/internal/domain"
)

const defaultBybitWorkers = 4

// Bybit reads V5 spot tickers of <SYMBOL>USDT. The SDK has one call per ticker,
// so the symbols of a batch are requested concurrently on a bounded pool.
type Bybit struct {
	client  *bybit.Client
	workers int
}

// NewBybit creates the source on top of a public Bybit client.
func NewBybit(client *bybit.Client, workers int) *Bybit {
	if workers <= 0 {
		workers = defaultBybitWorkers
	}
	return &Bybit{client: client, workers: workers}
}

func (p *Bybit) Name() string { return "bybit" }

func (p *Bybit) Fetch(ctx context.Context, symbols []domain.Symbol) (map[domain.Symbol]decimal.Decimal, error) {
	pool, err := ants.NewPool(p.workers)
	if err != nil {
		return nil, errors.Wrap(err, "create bybit worker pool")
	}
	defer pool.Release()

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		firstErr error
		rates    = make(map[domain.Symbol]decimal.Decimal, len(symbols))
	)

	record := func(s domain.Symbol, rate decimal.Decimal, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			return
		}
		if positive(rate) {
			rates[s] = rate
		}
	}

	for _, s := range symbols {
		s := s
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				record(s, decimal.Zero, ctx.Err())
				return
			}
			rate, err := p.ticker(s)
			record(s, rate, err)
		})
		if submitErr != nil {
			wg.Done()
			record(s, decimal.Zero, errors.Wrap(submitErr, "submit bybit ticker request"))
		}
	}

	// The SDK takes no context, so a hung request is abandoned rather than awaited.
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return nil, errors.Wrap(ctx.Err(), "bybit tickers")
	}

	if firstErr != nil {
		return nil, firstErr
	}
	return rates, nil
}

func (p *Bybit) ticker(s domain.Symbol) (decimal.Decimal, error) {
	symbol := bybit.SymbolV5(s.ExchangeTicker())
	result, err := p.client.V5().Market().GetTickers(bybit.V5GetTickersParam{
		Category: "spot",
		Symbol:   &symbol,
	})
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "bybit ticker %s", s.ExchangeTicker())
	}
	if result.Result.Spot == nil || len(result.Result.Spot.List) == 0 {
		return decimal.Zero, nil
	}

	rate, err := decimal.NewFromString(result.Result.Spot.List[0].LastPrice)
	if err != nil {
		return decimal.Zero, &MalformedError{Source: p.Name(), Err: err}
	}
	return rate, nil
}
