package pricer

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	hyperliquid "github.com/sonirico/go-hyperliquid"

	"github.com/vadiminshakov/coinpurse/internal/domain"
)

// Hyperliquid reads mid prices (USDC quoted) from the public Info API.
// One allMids call covers every symbol of a batch.
type Hyperliquid struct {
	info *hyperliquid.Info
}

func NewHyperliquid(info *hyperliquid.Info) *Hyperliquid {
	return &Hyperliquid{info: info}
}

func (p *Hyperliquid) Name() string { return "hyperliquid" }

func (p *Hyperliquid) Fetch(ctx context.Context, symbols []domain.Symbol) (map[domain.Symbol]decimal.Decimal, error) {
	if p.info == nil {
		return nil, errors.New("hyperliquid info client is nil")
	}

	mids, err := p.info.AllMids(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "hyperliquid all mids")
	}

	rates := make(map[domain.Symbol]decimal.Decimal, len(symbols))
	for _, s := range symbols {
		mid, ok := mids[s.String()]
		if !ok || mid == "" {
			continue
		}
		rate, err := decimal.NewFromString(mid)
		if err != nil {
			return nil, &MalformedError{Source: p.Name(), Err: err}
		}
		if positive(rate) {
			rates[s] = rate
		}
	}
	return rates, nil
}
