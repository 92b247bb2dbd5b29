package service

import (
	"context"

	"github.com/damon-houk/rate-sync-client/internal/domain/entity"
)

// RateAPI defines the interface for retrieving rate tables from the remote endpoint
type RateAPI interface {
	// FetchRates retrieves the latest rate table relative to base
	FetchRates(ctx context.Context, base string) (*entity.RateSnapshot, error)
}
