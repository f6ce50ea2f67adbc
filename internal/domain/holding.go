package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Holding quantity of one symbol and its USD value.
type Holding struct {
	Amount decimal.Decimal `json:"amount"`
	// Value nil when no rate is known for the symbol.
	Value *decimal.Decimal `json:"value"`
}

// HasValue reports whether a rate was available when the holding was built.
func (h Holding) HasValue() bool {
	return h.Value != nil
}

// Holdings computed view keyed by symbol. Only non-zero quantities are present.
type Holdings map[Symbol]Holding

// Symbols returns the held symbols in canonical order.
func (h Holdings) Symbols() []Symbol {
	out := make([]Symbol, 0, len(h))
	for _, s := range Symbols() {
		if _, ok := h[s]; ok {
			out = append(out, s)
		}
	}
	return out
}

// Total sums all known values.
func (h Holdings) Total() decimal.Decimal {
	total := decimal.Zero
	for _, holding := range h {
		if holding.Value != nil {
			total = total.Add(*holding.Value)
		}
	}
	return total
}

// Share part of the total value attributed to one symbol.
type Share struct {
	Symbol  Symbol          `json:"symbol"`
	Value   decimal.Decimal `json:"value"`
	Percent decimal.Decimal `json:"percent"`
}

// Allocation splits the total value between holdings that have a positive value.
func (h Holdings) Allocation() []Share {
	total := h.Total()
	if !total.IsPositive() {
		return nil
	}

	hundred := decimal.NewFromInt(100)
	shares := make([]Share, 0, len(h))
	for _, s := range h.Symbols() {
		holding := h[s]
		if holding.Value == nil || !holding.Value.IsPositive() {
			continue
		}
		shares = append(shares, Share{
			Symbol:  s,
			Value:   *holding.Value,
			Percent: holding.Value.Div(total).Mul(hundred),
		})
	}
	return shares
}

// RateStatus describes the rate set a view was computed from.
type RateStatus struct {
	FetchedAt time.Time `json:"fetched_at"`
	Stale     bool      `json:"stale"`
	Known     int       `json:"known"`
}
