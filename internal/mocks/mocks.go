// internal/mocks/mocks.go
package mocks

import (
	"context"

	"github.com/damon-houk/rate-sync-client/internal/domain/entity"
	"github.com/stretchr/testify/mock"
)

// MockRateAPI mocks the RateAPI interface
type MockRateAPI struct {
	mock.Mock
}

func (m *MockRateAPI) FetchRates(ctx context.Context, base string) (*entity.RateSnapshot, error) {
	args := m.Called(ctx, base)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.RateSnapshot), args.Error(1)
}

// MockSnapshotRepository mocks the SnapshotRepository interface
type MockSnapshotRepository struct {
	mock.Mock
}

func (m *MockSnapshotRepository) Get(base string) *entity.RateSnapshot {
	args := m.Called(base)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(*entity.RateSnapshot)
}

func (m *MockSnapshotRepository) Put(snapshot *entity.RateSnapshot) {
	m.Called(snapshot)
}

func (m *MockSnapshotRepository) Size() int {
	args := m.Called()
	return args.Int(0)
}

func (m *MockSnapshotRepository) Latest() *entity.RateSnapshot {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(*entity.RateSnapshot)
}

// MockCacheRepository mocks the CacheRepository interface
type MockCacheRepository struct {
	mock.Mock
}

func (m *MockCacheRepository) Get(ctx context.Context, partition, key string) (*entity.CacheEntry, error) {
	args := m.Called(ctx, partition, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.CacheEntry), args.Error(1)
}

func (m *MockCacheRepository) Put(ctx context.Context, partition, key string, entry *entity.CacheEntry) error {
	args := m.Called(ctx, partition, key, entry)
	return args.Error(0)
}

func (m *MockCacheRepository) Partitions(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockCacheRepository) DropPartition(ctx context.Context, partition string) error {
	args := m.Called(ctx, partition)
	return args.Error(0)
}

// MockSyncListener mocks the SyncListener interface
type MockSyncListener struct {
	mock.Mock
}

func (m *MockSyncListener) OnSyncSuccess(result *entity.SyncResult) {
	m.Called(result)
}

func (m *MockSyncListener) OnSyncError(base string, err error, fallback *entity.RateSnapshot) {
	m.Called(base, err, fallback)
}
