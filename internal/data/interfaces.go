package data

import (
	"context"
	"errors"

	"github.com/songzhibin97/xrplfeed/internal/models"
)

var (
	// ErrMalformedResponse is returned when a payload cannot be interpreted at all.
	ErrMalformedResponse = errors.New("malformed response")

	// ErrNoReferenceRate is returned when no fiat rate has ever been obtained.
	ErrNoReferenceRate = errors.New("no reference rate available")
)

// PageParams 单页请求参数
type PageParams struct {
	Search string
	Offset int
	Limit  int
}

// TokenFetcher 负责从元数据源拉取代币
type TokenFetcher interface {
	// FetchTokenPage retrieves one page sorted by descending 24h volume
	FetchTokenPage(ctx context.Context, params PageParams) ([]models.Token, error)

	// FetchAllTokens sweeps pages until the source is exhausted or the cap is hit
	FetchAllTokens(ctx context.Context, search string) ([]models.Token, error)
}

// RateOracle provides the base asset's fiat reference rate
type RateOracle interface {
	ReferenceRate(ctx context.Context) (float64, error)
}

// RateProvider is one upstream source of the reference rate
type RateProvider interface {
	Name() string
	FetchRate(ctx context.Context) (float64, error)
}

// KeyValueStore 本地持久化键值存储
type KeyValueStore interface {
	// Get returns the stored value and whether the key exists
	Get(ctx context.Context, key string) (string, bool, error)

	// Set writes the value for key as a single atomic statement
	Set(ctx context.Context, key, value string) error

	Close() error
}
