package service

import (
	"math"

	"github.com/damon-houk/rate-sync-client/internal/domain/entity"
)

// StableThreshold is the absolute percentage change below which a rate counts as unchanged
const StableThreshold = 0.001

// CalculateChanges compares current against previous and returns the percentage
// change for every currency present in both tables. A nil previous table means
// there is nothing to compare against and yields an empty change set.
func CalculateChanges(current, previous entity.RateTable) entity.ChangeSet {
	changes := make(entity.ChangeSet)
	if len(previous) == 0 {
		return changes
	}

	for code, rate := range current {
		prev, ok := previous[code]
		if !ok || prev == 0 {
			continue
		}

		change := (rate - prev) / prev * 100
		if math.Abs(change) < StableThreshold {
			change = 0
		}
		changes[code] = change
	}

	return changes
}
