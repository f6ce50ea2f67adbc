package domain

import "github.com/pkg/errors"

var (
	// ErrValidation malformed input to a ledger mutation.
	ErrValidation = errors.New("validation failed")
	// ErrStorageConsistency persisted value differs from the computed one after a write.
	ErrStorageConsistency = errors.New("storage consistency check failed")
	// ErrUnsupportedCurrency quote currency other than USD requested.
	ErrUnsupportedCurrency = errors.New("unsupported currency")
	// ErrUnsupportedSymbol symbol outside of the supported set.
	ErrUnsupportedSymbol = errors.New("unsupported symbol")
	// ErrRateUnavailable rate could not be fetched or parsed.
	ErrRateUnavailable = errors.New("rate unavailable")
	// ErrInsufficientBalance removal exceeds the held quantity, strict ledgers only.
	ErrInsufficientBalance = errors.New("insufficient balance")
)
