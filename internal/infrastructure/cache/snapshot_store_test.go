package cache

import (
	"testing"
	"time"

	"github.com/damon-houk/rate-sync-client/internal/domain/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotStore(t *testing.T) {
	store := NewSnapshotStore()

	// Test initial state
	assert.Equal(t, 0, store.Size())
	assert.Nil(t, store.Get("EUR"))
	assert.Nil(t, store.Latest())

	eur := &entity.RateSnapshot{
		Base:       "EUR",
		Rates:      entity.RateTable{"USD": 1.08, "GBP": 0.85},
		CapturedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	store.Put(eur)
	assert.Equal(t, 1, store.Size())

	retrieved := store.Get("eur")
	require.NotNil(t, retrieved)
	assert.Equal(t, eur.Rates, retrieved.Rates)

	// Overwritten, never merged
	store.Put(&entity.RateSnapshot{Base: "EUR", Rates: entity.RateTable{"USD": 1.10}})
	assert.Equal(t, 1, store.Size())
	assert.Equal(t, entity.RateTable{"USD": 1.10}, store.Get("EUR").Rates)

	// Independent bases
	store.Put(&entity.RateSnapshot{Base: "USD", Rates: entity.RateTable{"EUR": 0.92}})
	assert.Equal(t, 2, store.Size())
	assert.Equal(t, "USD", store.Latest().Base)
	assert.Equal(t, entity.RateTable{"USD": 1.10}, store.Get("EUR").Rates)
}

func TestSnapshotStoreIsolation(t *testing.T) {
	store := NewSnapshotStore()
	rates := entity.RateTable{"USD": 1.08}
	store.Put(&entity.RateSnapshot{Base: "EUR", Rates: rates})

	// Mutating the caller's table does not reach the stored snapshot
	rates["USD"] = 99
	assert.Equal(t, 1.08, store.Get("EUR").Rates["USD"])

	// Neither does mutating a returned copy
	got := store.Get("EUR")
	got.Rates["USD"] = 42
	assert.Equal(t, 1.08, store.Get("EUR").Rates["USD"])
}
