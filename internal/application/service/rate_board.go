package service

import (
	"strings"
	"sync"
	"time"

	"github.com/damon-houk/rate-sync-client/internal/domain/entity"
	"github.com/damon-houk/rate-sync-client/internal/infrastructure/logger"
)

// RateRow is one displayed currency
type RateRow struct {
	Currency string   `json:"currency"`
	Rate     float64  `json:"rate"`
	Change   *float64 `json:"change,omitempty"`
}

// BoardView is a point-in-time copy of what the board displays
type BoardView struct {
	Base        string               `json:"base"`
	Rows        []RateRow            `json:"rows"`
	LastUpdated *time.Time           `json:"last_updated,omitempty"`
	FromCache   bool                 `json:"from_cache"`
	Error       *UserError           `json:"error,omitempty"`
	Fallback    *entity.RateSnapshot `json:"fallback,omitempty"`
	Changes     entity.ChangeSet     `json:"changes"`
}

// RateBoard keeps the presentation state fed by sync results. It implements SyncListener.
type RateBoard struct {
	targets []string
	logger  logger.Logger

	mu       sync.RWMutex
	result   *entity.SyncResult
	userErr  *UserError
	fallback *entity.RateSnapshot
}

// NewRateBoard creates a board that shows the given target currencies. An
// empty target list shows every currency of the snapshot.
func NewRateBoard(targets []string, log logger.Logger) *RateBoard {
	if log == nil {
		log = logger.GetDefaultLogger()
	}

	normalized := make([]string, 0, len(targets))
	for _, t := range targets {
		if t = strings.ToUpper(strings.TrimSpace(t)); t != "" {
			normalized = append(normalized, t)
		}
	}

	return &RateBoard{
		targets: normalized,
		logger:  log.WithField("component", "rate_board"),
	}
}

// OnSyncSuccess replaces the displayed data and clears any error
func (b *RateBoard) OnSyncSuccess(result *entity.SyncResult) {
	if result == nil || result.Snapshot == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.result = result
	b.userErr = nil
	b.fallback = nil
}

// OnSyncError shows the error message and, when available, the fallback data alongside it
func (b *RateBoard) OnSyncError(base string, err error, fallback *entity.RateSnapshot) {
	userErr := CategorizeError(err)
	if userErr == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.userErr = userErr
	b.fallback = fallback

	b.logger.Info("Showing sync error", map[string]interface{}{
		"base":         base,
		"category":     string(userErr.Category),
		"has_fallback": fallback != nil,
	})
}

// View returns the current board contents
func (b *RateBoard) View() BoardView {
	b.mu.RLock()
	defer b.mu.RUnlock()

	view := BoardView{
		Rows:     []RateRow{},
		Changes:  entity.ChangeSet{},
		Error:    b.userErr,
		Fallback: b.fallback.Clone(),
	}

	if b.result == nil {
		return view
	}

	snapshot := b.result.Snapshot
	capturedAt := snapshot.CapturedAt
	view.Base = snapshot.Base
	view.LastUpdated = &capturedAt
	view.FromCache = snapshot.FromCache

	for _, code := range b.displayCodes(snapshot) {
		rate, ok := snapshot.Rates[code]
		if !ok {
			continue
		}

		row := RateRow{Currency: code, Rate: rate}
		if change, ok := b.result.Changes[code]; ok {
			c := change
			row.Change = &c
			view.Changes[code] = change
		}
		view.Rows = append(view.Rows, row)
	}

	return view
}

func (b *RateBoard) displayCodes(snapshot *entity.RateSnapshot) []string {
	if len(b.targets) == 0 {
		return snapshot.Rates.Codes()
	}

	codes := make([]string, 0, len(b.targets))
	for _, code := range b.targets {
		// the base itself is never listed against itself
		if code != snapshot.Base {
			codes = append(codes, code)
		}
	}
	return codes
}
