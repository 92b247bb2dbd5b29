package repository

import (
	"context"

	"github.com/damon-houk/rate-sync-client/internal/domain/entity"
)

// CacheRepository stores cached responses in named, disjoint partitions
type CacheRepository interface {
	// Get returns the entry stored under key in partition, or nil when absent
	Get(ctx context.Context, partition, key string) (*entity.CacheEntry, error)

	// Put stores entry under key in partition, replacing any previous entry
	Put(ctx context.Context, partition, key string, entry *entity.CacheEntry) error

	// Partitions lists the names of all partitions holding at least one entry
	Partitions(ctx context.Context) ([]string, error)

	// DropPartition deletes every entry of partition
	DropPartition(ctx context.Context, partition string) error
}
