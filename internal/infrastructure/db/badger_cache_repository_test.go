package db

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/damon-houk/rate-sync-client/internal/domain/entity"
	"github.com/dgraph-io/badger/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *badger.DB {
	t.Helper()

	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	badgerDB, err := badger.Open(opts)
	require.NoError(t, err)

	t.Cleanup(func() {
		badgerDB.Close()
	})
	return badgerDB
}

func testEntry(url, body string) *entity.CacheEntry {
	return &entity.CacheEntry{
		Method:     http.MethodGet,
		URL:        url,
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       []byte(body),
		StoredAt:   time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestBadgerCacheRepository(t *testing.T) {
	repo := NewBadgerCacheRepository(openTestDB(t))
	ctx := context.Background()

	entry := testEntry("https://api.example.com/latest?from=EUR", `{"rates":{"USD":1.08}}`)
	key := entry.Identity()

	t.Run("Missing entry", func(t *testing.T) {
		got, err := repo.Get(ctx, "api-v1", key)
		assert.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("Store and retrieve", func(t *testing.T) {
		require.NoError(t, repo.Put(ctx, "api-v1", key, entry))

		got, err := repo.Get(ctx, "api-v1", key)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, entry.Body, got.Body)
		assert.Equal(t, "application/json", got.Header.Get("Content-Type"))
		assert.True(t, entry.StoredAt.Equal(got.StoredAt))
	})

	t.Run("Partitions are disjoint", func(t *testing.T) {
		got, err := repo.Get(ctx, "static-v1", key)
		assert.NoError(t, err)
		assert.Nil(t, got)

		other := testEntry(entry.URL, "static body")
		require.NoError(t, repo.Put(ctx, "static-v1", key, other))

		apiEntry, err := repo.Get(ctx, "api-v1", key)
		require.NoError(t, err)
		assert.Equal(t, entry.Body, apiEntry.Body)
	})

	t.Run("Invalid partition name", func(t *testing.T) {
		assert.Error(t, repo.Put(ctx, "bad:name", key, entry))
		_, err := repo.Get(ctx, "", key)
		assert.Error(t, err)
	})

	t.Run("List and drop partitions", func(t *testing.T) {
		require.NoError(t, repo.Put(ctx, "api-v0", key, entry))

		names, err := repo.Partitions(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"api-v0", "api-v1", "static-v1"}, names)

		require.NoError(t, repo.DropPartition(ctx, "api-v0"))

		names, err = repo.Partitions(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"api-v1", "static-v1"}, names)

		// Prefix-sharing names are untouched
		got, err := repo.Get(ctx, "api-v1", key)
		require.NoError(t, err)
		assert.NotNil(t, got)
	})
}
