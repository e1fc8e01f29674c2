package kraken

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

func setupTestServer(t *testing.T, status int, body string) (*httptest.Server, *KrakenRateSource) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/Ticker", r.URL.Path)
		assert.Equal(t, "XRPUSD", r.URL.Query().Get("pair"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, err := w.Write([]byte(body))
		require.NoError(t, err)
	}))

	ds := NewKrakenRateSource(server.URL)
	ds.httpClient = resty.NewWithClient(server.Client())

	return server, ds
}

func TestKrakenRateSource_Name(t *testing.T) {
	assert.Equal(t, "kraken", NewKrakenRateSource("").Name())
}

func TestKrakenRateSource_FetchRate(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		expectError bool
		malformed   bool
		expected    float64
	}{
		{
			name:     "valid response",
			status:   http.StatusOK,
			body:     `{"error":[],"result":{"XXRPZUSD":{"a":["0.6","1","1"],"c":["0.60120","25.0"]}}}`,
			expected: 0.6012,
		},
		{
			name:        "api error",
			status:      http.StatusOK,
			body:        `{"error":["EQuery:Unknown asset pair"]}`,
			expectError: true,
		},
		{
			name:        "missing last trade",
			status:      http.StatusOK,
			body:        `{"error":[],"result":{"XXRPZUSD":{"a":["0.6"]}}}`,
			expectError: true,
			malformed:   true,
		},
		{
			name:        "unparseable price",
			status:      http.StatusOK,
			body:        `{"error":[],"result":{"XXRPZUSD":{"c":["abc","1"]}}}`,
			expectError: true,
			malformed:   true,
		},
		{
			name:        "server error",
			status:      http.StatusBadGateway,
			body:        `{}`,
			expectError: true,
		},
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
			assert.InDelta(t, tt.expected, rate, 1e-9)
		})
	}
}
