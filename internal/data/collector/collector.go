package collector

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/songzhibin97/xrplfeed/internal/data"
	"github.com/songzhibin97/xrplfeed/internal/models"
)

// DefaultRateTTL 汇率缓存有效期
const DefaultRateTTL = 30 * time.Second

type Logger interface {
	Error(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
}

// MultiSourceOracle implements data.RateOracle by walking its sources in
// priority order. The first positive rate wins and is cached for ttl.
type MultiSourceOracle struct {
	sources []data.RateProvider
	logger  Logger
	ttl     time.Duration
	now     func() time.Time

	mu        sync.Mutex
	rate      float64
	previous  float64
	fetchedAt time.Time
}

type OracleOption func(*MultiSourceOracle)

// WithClock overrides the time source used for TTL checks.
func WithClock(now func() time.Time) OracleOption {
	return func(o *MultiSourceOracle) {
		o.now = now
	}
}

func NewMultiSourceOracle(sources []data.RateProvider, ttl time.Duration, logger Logger, opts ...OracleOption) *MultiSourceOracle {
	if ttl <= 0 {
		ttl = DefaultRateTTL
	}
	o := &MultiSourceOracle{
		sources: sources,
		logger:  logger,
		ttl:     ttl,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ReferenceRate implements data.RateOracle
func (o *MultiSourceOracle) ReferenceRate(ctx context.Context) (float64, error) {
	if rate, ok := o.fresh(); ok {
		return rate, nil
	}

	var errs []error
	for _, source := range o.sources {
		rate, err := source.FetchRate(ctx)
		if err == nil && rate > 0 && !math.IsInf(rate, 0) {
			o.store(rate)
			o.logger.Info("fetched reference rate", "source", source.Name(), "rate", rate)
			return rate, nil
		}
		if err == nil {
			err = fmt.Errorf("%w: non-positive rate %v", data.ErrMalformedResponse, rate)
		}
		o.logger.Error("failed to fetch reference rate", "source", source.Name(), "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", source.Name(), err))
	}

	// 所有来源失败时返回过期缓存
	if rate, ok := o.cached(); ok {
		o.logger.Info("serving stale reference rate", "rate", rate)
		return rate, nil
	}

	if len(errs) == 0 {
		errs = append(errs, errors.New("no rate sources configured"))
	}
	return 0, fmt.Errorf("%w: failed to fetch XRP price: %w", data.ErrNoReferenceRate, errors.Join(errs...))
}

func (o *MultiSourceOracle) fresh() (float64, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.rate > 0 && o.now().Sub(o.fetchedAt) < o.ttl {
		return o.rate, true
	}
	return 0, false
}

func (o *MultiSourceOracle) cached() (float64, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.rate, o.rate > 0
}

func (o *MultiSourceOracle) store(rate float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.rate > 0 {
		o.previous = o.rate
	}
	o.rate = rate
	o.fetchedAt = o.now()
}

// RateSnapshot resolves the reference rate like ReferenceRate and reports how
// it moved against the value held before the latest successful fetch.
func (o *MultiSourceOracle) RateSnapshot(ctx context.Context) (models.RateSnapshot, error) {
	if _, err := o.ReferenceRate(ctx); err != nil {
		return models.RateSnapshot{}, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	snap := models.RateSnapshot{
		Currency:  "USD",
		Rate:      o.rate,
		Previous:  o.previous,
		UpdatedAt: o.fetchedAt,
	}
	if o.previous > 0 {
		snap.ChangePercent = (o.rate - o.previous) / o.previous * 100
		snap.Increased = o.rate > o.previous
		snap.Decreased = o.rate < o.previous
	}
	return snap, nil
}
