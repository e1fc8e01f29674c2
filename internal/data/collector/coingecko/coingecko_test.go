package coingecko

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/songzhibin97/xrplfeed/internal/data"
)

func setupTestServer(t *testing.T, status int, body string) (*httptest.Server, *CoinGeckoRateSource) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/simple/price", r.URL.Path)
		assert.Equal(t, "ripple", r.URL.Query().Get("ids"))
		assert.Equal(t, "usd", r.URL.Query().Get("vs_currencies"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, err := w.Write([]byte(body))
		require.NoError(t, err)
	}))

	ds := NewCoinGeckoRateSource(server.URL)
	ds.httpClient = resty.NewWithClient(server.Client())

	return server, ds
}

func TestCoinGeckoRateSource_Name(t *testing.T) {
	assert.Equal(t, "coingecko", NewCoinGeckoRateSource("").Name())
}

func TestCoinGeckoRateSource_FetchRate(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		expectError bool
		malformed   bool
		expected    float64
	}{
		{name: "valid response", status: http.StatusOK, body: `{"ripple":{"usd":0.61}}`, expected: 0.61},
		{name: "missing asset", status: http.StatusOK, body: `{"bitcoin":{"usd":60000}}`, expectError: true, malformed: true},
		{name: "string price", status: http.StatusOK, body: `{"ripple":{"usd":"0.61"}}`, expectError: true, malformed: true},
		{name: "not json", status: http.StatusOK, body: `<html>`, expectError: true, malformed: true},
		{name: "rate limited", status: http.StatusTooManyRequests, body: `{}`, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, ds := setupTestServer(t, tt.status, tt.body)
			defer server.Close()

			rate, err := ds.FetchRate(context.Background())

			if tt.expectError {
				assert.Error(t, err)
				assert.Zero(t, rate)
				if tt.malformed {
					assert.ErrorIs(t, err, data.ErrMalformedResponse)
				}
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.expected, rate)
		})
	}
}
