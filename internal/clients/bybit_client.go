package clients

import (
	"time"

	"github.com/hirokisan/bybit/v2"
)

// NewBybitClient returns a client for the public v5 market API. Auth is attached only when both keys are set.
// The SDK calls take no context, so timeout bounds every request at the HTTP client.
func NewBybitClient(apiKey, apiSecret string, timeout time.Duration) *bybit.Client {
	client := bybit.NewClient().WithHTTPClient(NewHTTPClient(timeout))
	if apiKey != "" && apiSecret != "" {
		client = client.WithAuth(apiKey, apiSecret)
	}

	return client
}
