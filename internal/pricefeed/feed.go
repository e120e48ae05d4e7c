// Package pricefeed supplies USD prices for the settlement assets.
package pricefeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"stacks-fundraising/internal/domain"
)

// ErrUnavailable is returned when the feed cannot produce prices.
var ErrUnavailable = errors.New("price feed unavailable")

// Feed returns current USD unit prices.
type Feed interface {
	Prices(ctx context.Context) (domain.PriceData, error)
}

// Market ids used by the feed for each asset. sBTC is pegged 1:1 to BTC.
var marketIDs = map[domain.Asset]string{
	domain.STX:  "blockstack",
	domain.SBTC: "bitcoin",
}

// DefaultTimeout is the request timeout of HTTPFeed.
const DefaultTimeout = 10 * time.Second

// HTTPFeed reads prices from a CoinGecko-compatible simple price endpoint.
type HTTPFeed struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// FeedOption configures HTTPFeed.
type FeedOption func(*HTTPFeed)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) FeedOption {
	return func(f *HTTPFeed) {
		f.client.Timeout = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) FeedOption {
	return func(f *HTTPFeed) {
		f.client = client
	}
}

// WithAPIKey sends key in the x-cg-demo-api-key header.
func WithAPIKey(key string) FeedOption {
	return func(f *HTTPFeed) {
		f.apiKey = key
	}
}

// NewHTTPFeed creates a feed reading from baseURL.
func NewHTTPFeed(baseURL string, opts ...FeedOption) *HTTPFeed {
	f := &HTTPFeed{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Prices fetches the USD price of every settlement asset. Assets missing
// from the response are absent from the result.
func (f *HTTPFeed) Prices(ctx context.Context) (domain.PriceData, error) {
	ids := make([]string, 0, len(marketIDs))
	for _, asset := range []domain.Asset{domain.STX, domain.SBTC} {
		ids = append(ids, marketIDs[asset])
	}
	url := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=usd", f.baseURL, strings.Join(ids, ","))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if f.apiKey != "" {
		req.Header.Set("x-cg-demo-api-key", f.apiKey)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d: %s", ErrUnavailable, resp.StatusCode, body)
	}

	var raw map[string]map[string]float64
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: unmarshal response: %v", ErrUnavailable, err)
	}

	prices := make(domain.PriceData, len(marketIDs))
	for asset, id := range marketIDs {
		if usd, ok := raw[id]["usd"]; ok && usd > 0 {
			prices[asset] = usd
		}
	}
	return prices, nil
}

// StaticFeed returns fixed prices.
type StaticFeed struct {
	prices domain.PriceData
}

// NewStaticFeed creates a feed with fixed STX and BTC prices. Non-positive
// prices are omitted.
func NewStaticFeed(stxUSD, btcUSD float64) *StaticFeed {
	p := domain.PriceData{}
	if stxUSD > 0 {
		p[domain.STX] = stxUSD
	}
	if btcUSD > 0 {
		p[domain.SBTC] = btcUSD
	}
	return &StaticFeed{prices: p}
}

// Prices returns a copy of the fixed prices.
func (f *StaticFeed) Prices(context.Context) (domain.PriceData, error) {
	out := make(domain.PriceData, len(f.prices))
	for k, v := range f.prices {
		out[k] = v
	}
	return out, nil
}
