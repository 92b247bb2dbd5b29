// Package repository internal/domain/repository/snapshot_repository.go
package repository

import (
	"github.com/damon-houk/rate-sync-client/internal/domain/entity"
)

// SnapshotRepository holds the most recent rate snapshot per base currency
type SnapshotRepository interface {
	// Get returns the stored snapshot for base, or nil when none was captured yet
	Get(base string) *entity.RateSnapshot

	// Put replaces the stored snapshot for the snapshot's base
	Put(snapshot *entity.RateSnapshot)

	// Latest returns the most recently captured snapshot across all bases
	Latest() *entity.RateSnapshot

	// Size returns the number of base currencies with a stored snapshot
	Size() int
}
