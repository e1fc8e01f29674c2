package binance

import (
	"context"
	"fmt"
	"net/http"

	"github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"

	"github.com/songzhibin97/xrplfeed/internal/data"
)

const (
	defaultBaseURL = "https://api.binance.com"
	xrpSymbol      = "XRPUSDT"
)

// BinanceRateSource reads the XRP/USDT last price from the public ticker.
type BinanceRateSource struct {
	client *binance.Client
	symbol string
}

func NewBinanceRateSource(baseURL string, httpClient *http.Client) *BinanceRateSource {
	// 公共行情接口无需密钥
	client := binance.NewClient("", "")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	client.BaseURL = baseURL
	if httpClient != nil {
		client.HTTPClient = httpClient
	}
	return &BinanceRateSource{
		client: client,
		symbol: xrpSymbol,
	}
}

func (b *BinanceRateSource) Name() string {
	return "binance"
}

func (b *BinanceRateSource) FetchRate(ctx context.Context) (float64, error) {
	prices, err := b.client.NewListPricesService().Symbol(b.symbol).Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to execute request: %w", err)
	}

	for _, p := range prices {
		if p == nil || p.Symbol != b.symbol {
			continue
		}
		price, err := decimal.NewFromString(p.Price)
		if err != nil {
			return 0, fmt.Errorf("%w: failed to parse price: %v", data.ErrMalformedResponse, err)
		}
		if !price.IsPositive() {
			return 0, fmt.Errorf("%w: non-positive price %s", data.ErrMalformedResponse, p.Price)
		}
		f, _ := price.Float64()
		return f, nil
	}

	return 0, fmt.Errorf("%w: symbol %s not in response", data.ErrMalformedResponse, b.symbol)
}
