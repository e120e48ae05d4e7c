package pricefeed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stacks-fundraising/internal/domain"
)

func TestHTTPFeed_Prices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/simple/price" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("ids"); got != "blockstack,bitcoin" {
			t.Errorf("unexpected ids %q", got)
		}
		if got := r.URL.Query().Get("vs_currencies"); got != "usd" {
			t.Errorf("unexpected vs_currencies %q", got)
		}
		assert.Equal(t, "demo", r.Header.Get("x-cg-demo-api-key"))
		w.Write([]byte(`{"blockstack":{"usd":0.62},"bitcoin":{"usd":97000.5}}`))
	}))
	defer server.Close()

	prices, err := NewHTTPFeed(server.URL+"/", WithAPIKey("demo")).Prices(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0.62, prices[domain.STX])
	assert.Equal(t, 97000.5, prices[domain.SBTC])
	assert.True(t, prices.Complete())
}

func TestHTTPFeed_PartialResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"bitcoin":{"usd":97000}}`))
	}))
	defer server.Close()

	prices, err := NewHTTPFeed(server.URL).Prices(context.Background())
	require.NoError(t, err)
	_, ok := prices[domain.STX]
	assert.False(t, ok)
	assert.False(t, prices.Complete())
}

func TestHTTPFeed_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		payload string
	}{
		{"rate limited", http.StatusTooManyRequests, `{"status":{"error_code":429}}`},
		{"not json", http.StatusOK, `<html>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.payload))
			}))
			defer server.Close()

			_, err := NewHTTPFeed(server.URL).Prices(context.Background())
			assert.ErrorIs(t, err, ErrUnavailable)
		})
	}
}

func TestStaticFeed(t *testing.T) {
	feed := NewStaticFeed(0.5, 0)
	prices, err := feed.Prices(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.PriceData{domain.STX: 0.5}, prices)

	prices[domain.SBTC] = 1
	again, _ := feed.Prices(context.Background())
	assert.NotContains(t, again, domain.SBTC)
}
