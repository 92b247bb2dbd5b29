package db

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/damon-houk/rate-sync-client/internal/domain/entity"
	"github.com/dgraph-io/badger/v3"
)

const (
	keyPrefix    = "cache:"
	keySeparator = ":"
)

// BadgerCacheRepository implements the cache repository interface using BadgerDB.
// Entries live under "cache:<partition>:<identity>" so partitions never share keys.
type BadgerCacheRepository struct {
	db *badger.DB
}

// NewBadgerCacheRepository creates a new BadgerDB cache repository
func NewBadgerCacheRepository(db *badger.DB) *BadgerCacheRepository {
	return &BadgerCacheRepository{db: db}
}

func partitionPrefix(partition string) []byte {
	return []byte(keyPrefix + partition + keySeparator)
}

func entryKey(partition, key string) []byte {
	return append(partitionPrefix(partition), key...)
}

func validatePartition(partition string) error {
	if partition == "" || strings.Contains(partition, keySeparator) {
		return fmt.Errorf("invalid partition name %q", partition)
	}
	return nil
}

// Get retrieves the entry stored under key in partition
func (r *BadgerCacheRepository) Get(ctx context.Context, partition, key string) (*entity.CacheEntry, error) {
	if err := validatePartition(partition); err != nil {
		return nil, err
	}

	var entry entity.CacheEntry
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(entryKey(partition, key))
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &entry)
		})
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve cache entry: %w", err)
	}

	return &entry, nil
}

// Put stores entry under key in partition
func (r *BadgerCacheRepository) Put(ctx context.Context, partition, key string, entry *entity.CacheEntry) error {
	if err := validatePartition(partition); err != nil {
		return err
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}

	err = r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(entryKey(partition, key), data)
	})
	if err != nil {
		return fmt.Errorf("failed to store cache entry: %w", err)
	}

	return nil
}

// Partitions lists every partition name that currently holds entries
func (r *BadgerCacheRepository) Partitions(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})

	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(keyPrefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			rest := bytes.TrimPrefix(it.Item().Key(), []byte(keyPrefix))
			if idx := bytes.Index(rest, []byte(keySeparator)); idx > 0 {
				seen[string(rest[:idx])] = struct{}{}
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list cache partitions: %w", err)
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)

	return names, nil
}

// DropPartition deletes every entry stored in partition
func (r *BadgerCacheRepository) DropPartition(ctx context.Context, partition string) error {
	if err := validatePartition(partition); err != nil {
		return err
	}

	var keys [][]byte
	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = partitionPrefix(partition)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to scan partition %s: %w", partition, err)
	}

	wb := r.db.NewWriteBatch()
	defer wb.Cancel()

	for _, key := range keys {
		if err := wb.Delete(key); err != nil {
			return fmt.Errorf("failed to delete from partition %s: %w", partition, err)
		}
	}

	if err := wb.Flush(); err != nil {
		return fmt.Errorf("failed to drop partition %s: %w", partition, err)
	}

	return nil
}
