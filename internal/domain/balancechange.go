package domain

import "time"

// BalanceChange one mutation of a symbol balance as published and journaled.
// Quantities are strings so web clients never see float rounding.
type BalanceChange struct {
	Timestamp time.Time `json:"ts"`
	Symbol    Symbol    `json:"symbol"`
	Previous  string    `json:"previous"`
	Amount    string    `json:"amount"`
}

// BalanceChangeRecord bundles a change with its journal index.
type BalanceChangeRecord struct {
	Index  uint64        `json:"index"`
	Change BalanceChange `json:"change"`
}
