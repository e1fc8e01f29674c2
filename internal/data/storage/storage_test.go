package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T) *SQLiteStorage {
	s, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "feed.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStorage_GetMissing(t *testing.T) {
	s := newTestSQLite(t)

	value, ok, err := s.Get(context.Background(), "tokenFavorites")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, value)
}

func TestSQLiteStorage_SetOverwrites(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "showTickers", "true"))
	require.NoError(t, s.Set(ctx, "showTickers", "false"))

	value, ok, err := s.Get(ctx, "showTickers")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "false", value)
}

func TestSQLiteStorage_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feed.db")
	ctx := context.Background()

	first, err := NewSQLiteStorage(path)
	require.NoError(t, err)
	require.NoError(t, first.Set(ctx, "tokenFavorites", `["SOLO-rSolo"]`))
	require.NoError(t, first.Close())

	second, err := NewSQLiteStorage(path)
	require.NoError(t, err)
	defer second.Close()

	value, ok, err := second.Get(ctx, "tokenFavorites")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `["SOLO-rSolo"]`, value)
}

func TestOpen(t *testing.T) {
	store, err := Open(DriverSQLite, filepath.Join(t.TempDir(), "open.db"))
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStorage{}, store)
	require.NoError(t, store.Close())

	_, err = Open("mysql", "whatever")
	assert.ErrorContains(t, err, "unsupported storage driver")
}

func TestPostgresStorage_RoundTrip(t *testing.T) {
	dsn := os.Getenv("XRPLFEED_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("XRPLFEED_TEST_PG_DSN not set")
	}

	s, err := NewPostgresStorage(dsn)
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "showTickers", "true"))
	require.NoError(t, s.Set(ctx, "showTickers", "false"))

	value, ok, err := s.Get(ctx, "showTickers")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "false", value)
}
