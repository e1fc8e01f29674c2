package prefs

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/songzhibin97/xrplfeed/internal/data"
	"github.com/songzhibin97/xrplfeed/internal/models"
)

const FavoritesKey = "tokenFavorites"

// Favorites is the persisted set of favorited token ids. Every mutation
// rewrites the whole set as one JSON value.
type Favorites struct {
	store data.KeyValueStore

	mu  sync.RWMutex
	ids map[string]struct{}
}

// LoadFavorites reads the set once. A corrupt stored value starts an empty set.
func LoadFavorites(ctx context.Context, store data.KeyValueStore, logger Logger) (*Favorites, error) {
	f := &Favorites{store: store, ids: make(map[string]struct{})}

	raw, ok, err := store.Get(ctx, FavoritesKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load favorites: %w", err)
	}
	if !ok {
		return f, nil
	}

	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		logger.Error("discarding unreadable favorites", "error", err)
		return f, nil
	}
	for _, id := range ids {
		f.ids[id] = struct{}{}
	}
	return f, nil
}

// Toggle flips membership of id and persists the full set. The in-memory
// set is left unchanged when the write fails.
func (f *Favorites) Toggle(ctx context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	_, was := f.ids[id]
	if was {
		delete(f.ids, id)
	} else {
		f.ids[id] = struct{}{}
	}

	if err := f.persistLocked(ctx); err != nil {
		if was {
			f.ids[id] = struct{}{}
		} else {
			delete(f.ids, id)
		}
		return was, err
	}
	return !was, nil
}

func (f *Favorites) IsFavorite(id string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.ids[id]
	return ok
}

// IDs returns the favorited ids in lexical order.
func (f *Favorites) IDs() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.sortedLocked()
}

func (f *Favorites) sortedLocked() []string {
	ids := make([]string, 0, len(f.ids))
	for id := range f.ids {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (f *Favorites) persistLocked(ctx context.Context) error {
	payload, err := json.Marshal(f.sortedLocked())
	if err != nil {
		return fmt.Errorf("failed to encode favorites: %w", err)
	}
	if err := f.store.Set(ctx, FavoritesKey, string(payload)); err != nil {
		return fmt.Errorf("failed to persist favorites: %w", err)
	}
	return nil
}

// SortFavoritesFirst moves favorited tokens ahead of the rest, keeping the
// existing order inside each group. The input slice is not modified.
func SortFavoritesFirst(tokens []models.Token, isFavorite func(id string) bool) []models.Token {
	out := make([]models.Token, len(tokens))
	copy(out, tokens)
	sort.SliceStable(out, func(i, j int) bool {
		return isFavorite(out[i].ID) && !isFavorite(out[j].ID)
	})
	return out
}
