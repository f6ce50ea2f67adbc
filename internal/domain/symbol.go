// Package domain defines the core data structures shared by the ledger and the pricing services.
package domain

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Symbol short ticker of a supported virtual currency.
type Symbol string

const (
	BTC  Symbol = "BTC"
	ETH  Symbol = "ETH"
	BNB  Symbol = "BNB"
	SOL  Symbol = "SOL"
	ADA  Symbol = "ADA"
	XRP  Symbol = "XRP"
	DOT  Symbol = "DOT"
	DOGE Symbol = "DOGE"
)

// QuoteCurrency the only currency values are expressed in.
const QuoteCurrency = "USD"

const logoURLPattern = "https://raw.githubusercontent.com/spothq/cryptocurrency-icons/master/128/color/%s.png"

// symbolInfo static metadata of a symbol.
// Adding a symbol means adding one row here and one constant above.
type symbolInfo struct {
	symbol      Symbol
	coinGeckoID string
}

var symbolTable = []symbolInfo{
	{symbol: BTC, coinGeckoID: "bitcoin"},
	{symbol: ETH, coinGeckoID: "ethereum"},
	{symbol: BNB, coinGeckoID: "binancecoin"},
	{symbol: SOL, coinGeckoID: "solana"},
	{symbol: ADA, coinGeckoID: "cardano"},
	{symbol: XRP, coinGeckoID: "ripple"},
	{symbol: DOT, coinGeckoID: "polkadot"},
	{symbol: DOGE, coinGeckoID: "dogecoin"},
}

var symbolIndex = func() map[Symbol]symbolInfo {
	idx := make(map[Symbol]symbolInfo, len(symbolTable))
	for _, info := range symbolTable {
		idx[info.symbol] = info
	}
	return idx
}()

// Symbols returns all supported symbols in canonical order.
func Symbols() []Symbol {
	out := make([]Symbol, 0, len(symbolTable))
	for _, info := range symbolTable {
		out = append(out, info.symbol)
	}
	return out
}

// ParseSymbol converts user input into a supported Symbol.
func ParseSymbol(s string) (Symbol, error) {
	sym := Symbol(strings.ToUpper(strings.TrimSpace(s)))
	if !sym.Valid() {
		return "", errors.Wrapf(ErrUnsupportedSymbol, "symbol %q", s)
	}
	return sym, nil
}

// Valid reports whether the symbol is in the supported set.
func (s Symbol) Valid() bool {
	_, ok := symbolIndex[s]
	return ok
}

// String returns the ticker.
func (s Symbol) String() string {
	return string(s)
}

// CoinGeckoID returns the CoinGecko coin id, empty for unsupported symbols.
func (s Symbol) CoinGeckoID() string {
	return symbolIndex[s].coinGeckoID
}

// ExchangeTicker returns the spot ticker quoted in USDT, e.g. BTCUSDT.
func (s Symbol) ExchangeTicker() string {
	return fmt.Sprintf("%sUSDT", s)
}

// LogoURL returns the icon URL of the symbol.
func (s Symbol) LogoURL() string {
	if !s.Valid() {
		return ""
	}
	return fmt.Sprintf(logoURLPattern, strings.ToLower(string(s)))
}

// SymbolByCoinGeckoID resolves a CoinGecko id back to its Symbol.
func SymbolByCoinGeckoID(id string) (Symbol, bool) {
	for _, info := range symbolTable {
		if info.coinGeckoID == id {
			return info.symbol, true
		}
	}
	return "", false
}

// IsQuoteCurrency reports whether currency names the supported quote currency.
func IsQuoteCurrency(currency string) bool {
	return strings.EqualFold(strings.TrimSpace(currency), QuoteCurrency)
}
