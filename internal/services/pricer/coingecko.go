package pricer

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/coinpurse/internal/domain"
)

// DefaultCoinGeckoURL public CoinGecko API root.
const DefaultCoinGeckoURL = "https://api.coingecko.com/api/v3"

const coinGeckoKeyHeader = "x-cg-demo-api-key"

// CoinGecko queries the simple/price endpoint, one request per batch.
type CoinGecko struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

// NewCoinGecko creates the source. An empty baseURL means DefaultCoinGeckoURL.
func NewCoinGecko(client *http.Client, baseURL, apiKey string) *CoinGecko {
	if client == nil {
		client = http.DefaultClient
	}
	if baseURL == "" {
		baseURL = DefaultCoinGeckoURL
	}
	return &CoinGecko{client: client, baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey}
}

func (c *CoinGecko) Name() string { return "coingecko" }

type coinGeckoQuote struct {
	USD *json.Number `json:"usd"`
}

func (c *CoinGecko) Fetch(ctx context.Context, symbols []domain.Symbol) (map[domain.Symbol]decimal.Decimal, error) {
	ids := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if id := s.CoinGeckoID(); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return map[domain.Symbol]decimal.Decimal{}, nil
	}

	q := url.Values{}
	q.Set("ids", strings.Join(ids, ","))
	q.Set("vs_currencies", "usd")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/simple/price?"+q.Encode(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "build coingecko request")
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set(coinGeckoKeyHeader, c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "coingecko request")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{Source: c.Name(), Code: resp.StatusCode, Status: resp.Status}
	}

	var payload map[string]coinGeckoQuote
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(&payload); err != nil {
		return nil, &MalformedError{Source: c.Name(), Err: err}
	}

	rates := make(map[domain.Symbol]decimal.Decimal, len(payload))
	for id, quote := range payload {
		s, ok := domain.SymbolByCoinGeckoID(id)
		if !ok || quote.USD == nil {
			continue
		}
		rate, err := decimal.NewFromString(quote.USD.String())
		if err != nil || !positive(rate) {
			continue
		}
		rates[s] = rate
	}
	return rates, nil
}
