package pricer

import (
	"context"

	"github.com/adshao/go-binance/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/coinpurse/internal/domain"
)

// Binance reads last prices of <SYMBOL>USDT spot pairs, USDT is taken as USD.
type Binance struct {
	client *binance.Client
}

// NewBinance creates the source on top of a (public, key-less) Binance client.
func NewBinance(client *binance.Client) *Binance {
	return &Binance{client: client}
}

func (p *Binance) Name() string { return "binance" }

func (p *Binance) Fetch(ctx context.Context, symbols []domain.Symbol) (map[domain.Symbol]decimal.Decimal, error) {
	rates := make(map[domain.Symbol]decimal.Decimal, len(symbols))
	for _, s := range symbols {
		prices, err := p.client.NewListPricesService().Symbol(s.ExchangeTicker()).Do(ctx)
		if err != nil {
			return nil, errors.Wrapf(err, "binance price %s", s.ExchangeTicker())
		}
		if len(prices) == 0 {
			continue
		}

		rate, err := decimal.NewFromString(prices[0].Price)
		if err != nil {
			return nil, &MalformedError{Source: p.Name(), Err: err}
		}
		if positive(rate) {
			rates[s] = rate
		}
	}
	return rates, nil
}
