// Package pricer fetches USD rates for the supported symbols from upstream price APIs.
package pricer

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/coinpurse/internal/domain"
)

// Source is one upstream price API. Fetch performs the request(s) for one batch
// of symbols; symbols the upstream does not know are left out of the result.
type Source interface {
	Name() string
	Fetch(ctx context.Context, symbols []domain.Symbol) (map[domain.Symbol]decimal.Decimal, error)
}

// RateSet USD rates from one successful refresh.
type RateSet struct {
	Rates     map[domain.Symbol]decimal.Decimal
	FetchedAt time.Time
}

// Rate returns the USD rate of s.
func (r RateSet) Rate(s domain.Symbol) (decimal.Decimal, bool) {
	rate, ok := r.Rates[s]
	return rate, ok
}

// Len number of symbols with a rate.
func (r RateSet) Len() int {
	return len(r.Rates)
}

// StatusError non-2xx upstream response.
type StatusError struct {
	Source string
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s responded %s", e.Source, e.Status)
}

// MalformedError upstream answered but the payload could not be used; retrying will not help.
type MalformedError struct {
	Source string
	Err    error
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("%s returned malformed payload: %v", e.Source, e.Err)
}

func (e *MalformedError) Unwrap() error {
	return e.Err
}

// positive keeps only usable rates.
func positive(rate decimal.Decimal) bool {
	return rate.IsPositive()
}
