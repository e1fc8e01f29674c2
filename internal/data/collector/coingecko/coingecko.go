package coingecko

import (
	"context"
	"fmt"
	"net/http"

	"github.com/bitly/go-simplejson"
	"github.com/go-resty/resty/v2"

	"github.com/songzhibin97/xrplfeed/internal/data"
	"github.com/songzhibin97/xrplfeed/internal/utils/request"
)

const defaultBaseURL = "https://api.coingecko.com/api/v3"

type CoinGeckoRateSource struct {
	baseURL    string
	httpClient *resty.Client
}

func NewCoinGeckoRateSource(baseURL string) *CoinGeckoRateSource {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &CoinGeckoRateSource{
		baseURL:    baseURL,
		httpClient: request.Request,
	}
}

func (c *CoinGeckoRateSource) Name() string {
	return "coingecko"
}

// FetchRate reads ripple.usd from the simple price endpoint.
func (c *CoinGeckoRateSource) FetchRate(ctx context.Context) (float64, error) {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"ids":           "ripple",
			"vs_currencies": "usd",
		}).
		Get(c.baseURL + "/simple/price")
	if err != nil {
		return 0, fmt.Errorf("failed to execute request: %w", err)
	}

	if resp.StatusCode() != http.StatusOK {
		return 0, fmt.Errorf("unexpected status code: %d", resp.StatusCode())
	}

	js, err := simplejson.NewJson(resp.Body())
	if err != nil {
		return 0, fmt.Errorf("%w: %v", data.ErrMalformedResponse, err)
	}

	price, err := js.GetPath("ripple", "usd").Float64()
	if err != nil || price <= 0 {
		return 0, fmt.Errorf("%w: missing ripple.usd", data.ErrMalformedResponse)
	}

	return price, nil
}
