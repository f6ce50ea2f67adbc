package clients

import (
	"time"

	"github.com/adshao/go-binance/v2"
)

// NewBinanceClient returns a client for public market endpoints. Keys are optional for price reads.
// Request deadlines come from the caller context, timeout caps requests made without one.
func NewBinanceClient(apiKey, apiSecret string, timeout time.Duration) *binance.Client {
	client := binance.NewClient(apiKey, apiSecret)
	client.HTTPClient = NewHTTPClient(timeout)
	return client
}
