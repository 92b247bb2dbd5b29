package entity

import (
	"sort"
	"time"
)

// RateTable maps a 3-letter currency code to its rate relative to a base currency
type RateTable map[string]float64

// Clone returns an independent copy of the table
func (t RateTable) Clone() RateTable {
	if t == nil {
		return nil
	}

	out := make(RateTable, len(t))
	for code, rate := range t {
		out[code] = rate
	}
	return out
}

// Codes returns the currency codes of the table in sorted order
func (t RateTable) Codes() []string {
	codes := make([]string, 0, len(t))
	for code := range t {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// RateSnapshot is a complete rate table for one base currency at one point in time
type RateSnapshot struct {
	Base       string    `json:"base"`
	Rates      RateTable `json:"rates"`
	Date       string    `json:"date,omitempty"`
	CapturedAt time.Time `json:"captured_at"`
	FromCache  bool      `json:"from_cache"`
}

// Clone returns a deep copy so stored snapshots stay immutable
func (s *RateSnapshot) Clone() *RateSnapshot {
	if s == nil {
		return nil
	}

	clone := *s
	clone.Rates = s.Rates.Clone()
	return &clone
}

// ChangeSet maps a currency code to the signed percentage change between two snapshots
type ChangeSet map[string]float64

// SyncResult is the outcome of one successful sync
type SyncResult struct {
	SessionID string        `json:"session_id"`
	Base      string        `json:"base"`
	Snapshot  *RateSnapshot `json:"snapshot"`
	Changes   ChangeSet     `json:"changes"`
	Duration  time.Duration `json:"duration"`
}
