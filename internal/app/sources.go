package app

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/coinpurse/config"
	"github.com/vadiminshakov/coinpurse/internal/clients"
	"github.com/vadiminshakov/coinpurse/internal/services/pricer"
)

// Source names accepted in pricing.source.
const (
	SourceCoinGecko   = "coingecko"
	SourceBinance     = "binance"
	SourceBybit       = "bybit"
	SourceHyperliquid = "hyperliquid"
)

const (
	envBinanceKey     = "BINANCE_API_KEY"
	envBinanceSecret  = "BINANCE_API_SECRET"
	envBybitKey       = "BYBIT_API_KEY"
	envBybitSecret    = "BYBIT_API_SECRET"
	envHyperliquidURL = "HYPERLIQUID_API_URL"
)

// newSource is the single point of dispatch from a configured source name to a rate source.
func newSource(ctx context.Context, cfg config.Pricing, getenv func(string) string, logger *zap.Logger) (pricer.Source, error) {
	switch cfg.Source {
	case SourceCoinGecko, "":
		return pricer.NewCoinGecko(clients.NewHTTPClient(cfg.Timeout), cfg.CoinGeckoURL, cfg.APIKey), nil
	case SourceBinance:
		return pricer.NewBinance(clients.NewBinanceClient(getenv(envBinanceKey), getenv(envBinanceSecret), cfg.Timeout)), nil
	case SourceBybit:
		return pricer.NewBybit(clients.NewBybitClient(getenv(envBybitKey), getenv(envBybitSecret), cfg.Timeout), cfg.Workers), nil
	case SourceHyperliquid:
		info, err := clients.NewHyperliquidInfo(ctx, getenv(envHyperliquidURL))
		if err != nil {
			return nil, err
		}
		logger.Debug("hyperliquid mids are quoted in USDC and used as USD")
		return pricer.NewHyperliquid(info), nil
	default:
		return nil, errors.Errorf("unsupported price source %q", cfg.Source)
	}
}
