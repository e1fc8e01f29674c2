package prefs

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/songzhibin97/xrplfeed/internal/data"
)

const TickersKey = "showTickers"

type Logger interface {
	Error(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
}

// TickerPreference is the persisted ticker visibility flag, true by default.
type TickerPreference struct {
	store data.KeyValueStore

	mu      sync.RWMutex
	enabled bool
}

func LoadTickerPreference(ctx context.Context, store data.KeyValueStore, logger Logger) (*TickerPreference, error) {
	p := &TickerPreference{store: store, enabled: true}

	raw, ok, err := store.Get(ctx, TickersKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load ticker preference: %w", err)
	}
	if !ok {
		return p, nil
	}

	enabled, err := strconv.ParseBool(raw)
	if err != nil {
		logger.Error("discarding unreadable ticker preference", "value", raw, "error", err)
		return p, nil
	}
	p.enabled = enabled
	return p, nil
}

func (p *TickerPreference) Enabled() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.enabled
}

// Toggle flips and persists the flag, returning the new value.
func (p *TickerPreference) Toggle(ctx context.Context) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	next := !p.enabled
	if err := p.store.Set(ctx, TickersKey, strconv.FormatBool(next)); err != nil {
		return p.enabled, fmt.Errorf("failed to persist ticker preference: %w", err)
	}
	p.enabled = next
	return next, nil
}
