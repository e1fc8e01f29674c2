package kraken

import (
	"context"
	"fmt"
	"net/http"

	"github.com/bitly/go-simplejson"
	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"github.com/songzhibin97/xrplfeed/internal/data"
	"github.com/songzhibin97/xrplfeed/internal/utils/request"
)

const (
	defaultBaseURL = "https://api.kraken.com/0/public"
	xrpPair        = "XRPUSD"
	// Kraken 返回的内部交易对名称
	xrpResultKey = "XXRPZUSD"
)

type KrakenRateSource struct {
	baseURL    string
	httpClient *resty.Client
}

func NewKrakenRateSource(baseURL string) *KrakenRateSource {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &KrakenRateSource{
		baseURL:    baseURL,
		httpClient: request.Request,
	}
}

func (k *KrakenRateSource) Name() string {
	return "kraken"
}

// FetchRate reads the last trade price, result.XXRPZUSD.c[0].
func (k *KrakenRateSource) FetchRate(ctx context.Context) (float64, error) {
	resp, err := k.httpClient.R().
		SetContext(ctx).
		SetQueryParam("pair", xrpPair).
		Get(k.baseURL + "/Ticker")
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

	if errs, _ := js.Get("error").StringArray(); len(errs) > 0 {
		return 0, fmt.Errorf("kraken error: %v", errs)
	}

	last, err := js.GetPath("result", xrpResultKey, "c").GetIndex(0).String()
	if err != nil {
		return 0, fmt.Errorf("%w: missing result.%s.c", data.ErrMalformedResponse, xrpResultKey)
	}

	price, err := decimal.NewFromString(last)
	if err != nil || !price.IsPositive() {
		return 0, fmt.Errorf("%w: invalid price %q", data.ErrMalformedResponse, last)
	}

	f, _ := price.Float64()
	return f, nil
}
