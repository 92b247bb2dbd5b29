package cache

import (
	"strings"
	"sync"

	"github.com/damon-houk/rate-sync-client/internal/domain/entity"
)

// SnapshotStore provides a thread-safe in-memory store of the latest rate snapshot per base currency
type SnapshotStore struct {
	snapshots map[string]*entity.RateSnapshot
	latest    string
	mutex     sync.RWMutex
}

// NewSnapshotStore creates an empty snapshot store
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{
		snapshots: make(map[string]*entity.RateSnapshot),
	}
}

func normalizeBase(base string) string {
	return strings.ToUpper(strings.TrimSpace(base))
}

// Get returns a copy of the snapshot stored for base, or nil
func (s *SnapshotStore) Get(base string) *entity.RateSnapshot {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return s.snapshots[normalizeBase(base)].Clone()
}

// Put overwrites the snapshot stored for the snapshot's base
func (s *SnapshotStore) Put(snapshot *entity.RateSnapshot) {
	if snapshot == nil {
		return
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	base := normalizeBase(snapshot.Base)
	stored := snapshot.Clone()
	stored.Base = base

	s.snapshots[base] = stored
	s.latest = base
}

// Latest returns a copy of the most recently stored snapshot across all bases
func (s *SnapshotStore) Latest() *entity.RateSnapshot {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if s.latest == "" {
		return nil
	}
	return s.snapshots[s.latest].Clone()
}

// Size returns the number of base currencies with a stored snapshot
func (s *SnapshotStore) Size() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return len(s.snapshots)
}
