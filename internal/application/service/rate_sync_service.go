// Package service internal/application/service/rate_sync_service.go
package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/damon-houk/rate-sync-client/internal/domain/entity"
	"github.com/damon-houk/rate-sync-client/internal/domain/repository"
	domain "github.com/damon-houk/rate-sync-client/internal/domain/service"
	"github.com/damon-houk/rate-sync-client/internal/infrastructure/logger"
	"github.com/damon-houk/rate-sync-client/internal/infrastructure/metrics"
)

// DefaultSyncTimeout bounds a single rate request
const DefaultSyncTimeout = 10 * time.Second

// OnlineChecker reports the current connectivity state
type OnlineChecker interface {
	Online() bool
}

type alwaysOnline struct{}

func (alwaysOnline) Online() bool { return true }

// RateSyncService owns the fetch lifecycle: one session at a time, a bounded
// request, change detection and the snapshot store update.
type RateSyncService struct {
	api          domain.RateAPI
	store        repository.SnapshotRepository
	connectivity OnlineChecker
	timeout      time.Duration
	logger       logger.Logger

	mu          sync.Mutex
	session     *entity.SyncSession
	lastUpdated time.Time
}

// NewRateSyncService creates a new sync service
func NewRateSyncService(api domain.RateAPI, store repository.SnapshotRepository, connectivity OnlineChecker, timeout time.Duration, log logger.Logger) *RateSyncService {
	if connectivity == nil {
		connectivity = alwaysOnline{}
	}
	if timeout <= 0 {
		timeout = DefaultSyncTimeout
	}
	if log == nil {
		log = logger.GetDefaultLogger()
	}

	return &RateSyncService{
		api:          api,
		store:        store,
		connectivity: connectivity,
		timeout:      timeout,
		logger:       log.WithField("component", "rate_sync"),
	}
}

// Sync fetches a fresh rate table for base and diffs it against the stored one.
// It returns ErrBusy without side effects while another sync is in flight.
func (s *RateSyncService) Sync(ctx context.Context, base string) (*entity.SyncResult, error) {
	base = strings.ToUpper(strings.TrimSpace(base))
	if base == "" {
		return nil, entity.ErrInvalidBase
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.timeout)
	session, ok := s.begin(base, cancel)
	if !ok {
		cancel()
		metrics.ObserveSync(base, "busy", time.Now())
		return nil, entity.NewSyncError(entity.ErrBusy, base, 0, nil)
	}
	defer s.end(session)

	s.logger.Debug("Sync started", map[string]interface{}{
		"session_id": session.ID,
		"base":       base,
		"timeout":    s.timeout.String(),
	})

	snapshot, err := s.api.FetchRates(fetchCtx, base)
	if err != nil {
		syncErr := s.classify(fetchCtx, base, err)
		metrics.ObserveSync(base, outcome(syncErr), session.StartedAt)
		s.logger.Warn("Sync failed", map[string]interface{}{
			"session_id": session.ID,
			"base":       base,
			"error":      syncErr.Error(),
		})
		return nil, syncErr
	}

	snapshot.Base = base
	if snapshot.CapturedAt.IsZero() {
		snapshot.CapturedAt = time.Now()
	}

	var previousRates entity.RateTable
	if previous := s.store.Get(base); previous != nil {
		previousRates = previous.Rates
	}
	changes := domain.CalculateChanges(snapshot.Rates, previousRates)

	s.store.Put(snapshot)

	s.mu.Lock()
	s.lastUpdated = snapshot.CapturedAt
	s.mu.Unlock()

	duration := time.Since(session.StartedAt)
	metrics.ObserveSync(base, "success", session.StartedAt)
	s.logger.Info("Sync completed", map[string]interface{}{
		"session_id":  session.ID,
		"base":        base,
		"rates":       len(snapshot.Rates),
		"changes":     len(changes),
		"from_cache":  snapshot.FromCache,
		"duration_ms": duration.Milliseconds(),
	})

	return &entity.SyncResult{
		SessionID: session.ID,
		Base:      base,
		Snapshot:  snapshot.Clone(),
		Changes:   changes,
		Duration:  duration,
	}, nil
}

// begin opens a session unless one is already active
func (s *RateSyncService) begin(base string, cancel context.CancelFunc) (*entity.SyncSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session != nil {
		return nil, false
	}
	s.session = entity.NewSyncSession(base, cancel)
	return s.session, true
}

// end releases the session on every exit path
func (s *RateSyncService) end(session *entity.SyncSession) {
	session.Cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == session {
		s.session = nil
	}
}

// classify maps a fetch failure onto the sync error taxonomy
func (s *RateSyncService) classify(fetchCtx context.Context, base string, err error) *entity.SyncError {
	if ctxErr := fetchCtx.Err(); ctxErr != nil {
		return entity.NewSyncError(entity.ErrTimeout, base, 0, ctxErr)
	}

	var syncErr *entity.SyncError
	if !errors.As(err, &syncErr) {
		return entity.NewSyncError(entity.ErrAPI, base, 0, err)
	}

	// A transport failure while the host still looks online is reported as an API error
	if errors.Is(syncErr, entity.ErrNetworkUnreachable) && s.connectivity.Online() {
		return entity.NewSyncError(entity.ErrAPI, base, 0, syncErr.Err)
	}

	if syncErr.Base == "" {
		syncErr.Base = base
	}
	return syncErr
}

// IsFetching reports whether a session is active
func (s *RateSyncService) IsFetching() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.session != nil
}

// ActiveSession returns the base and start time of the active session, if any
func (s *RateSyncService) ActiveSession() (base string, startedAt time.Time, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return "", time.Time{}, false
	}
	return s.session.Base, s.session.StartedAt, true
}

// LastUpdated returns the capture time of the last successful sync
func (s *RateSyncService) LastUpdated() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.lastUpdated
}

// Fallback returns the most recent snapshot held for any base currency
func (s *RateSyncService) Fallback() *entity.RateSnapshot {
	return s.store.Latest()
}

// CachedBases returns how many base currencies have a stored snapshot
func (s *RateSyncService) CachedBases() int {
	return s.store.Size()
}

func outcome(err *entity.SyncError) string {
	switch {
	case errors.Is(err, entity.ErrTimeout):
		return "timeout"
	case errors.Is(err, entity.ErrMalformedResponse):
		return "malformed_response"
	case errors.Is(err, entity.ErrNetworkUnreachable):
		return "network_unreachable"
	case errors.Is(err, entity.ErrBusy):
		return "busy"
	default:
		return "api_error"
	}
}
