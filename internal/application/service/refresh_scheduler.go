package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/damon-houk/rate-sync-client/internal/domain/entity"
	"github.com/damon-houk/rate-sync-client/internal/infrastructure/logger"
	"github.com/damon-houk/rate-sync-client/internal/infrastructure/metrics"
	"github.com/robfig/cron/v3"
)

// DefaultRefreshInterval is the period between automatic syncs
const DefaultRefreshInterval = 30 * time.Second

// SchedulerState is the lifecycle state of the refresh timer
type SchedulerState int

const (
	Stopped SchedulerState = iota
	Running
)

func (s SchedulerState) String() string {
	if s == Running {
		return "running"
	}
	return "stopped"
}

// Syncer is the part of the sync service the scheduler drives
type Syncer interface {
	Sync(ctx context.Context, base string) (*entity.SyncResult, error)
	IsFetching() bool
	Fallback() *entity.RateSnapshot
}

// ConnectivitySource exposes the connectivity state and its transitions
type ConnectivitySource interface {
	Online() bool
	Subscribe() <-chan bool
}

// SyncListener receives the outcome of every sync the scheduler starts
type SyncListener interface {
	OnSyncSuccess(result *entity.SyncResult)
	// OnSyncError is called for every failure except ErrBusy. fallback is the
	// newest snapshot of any base, or nil.
	OnSyncError(base string, err error, fallback *entity.RateSnapshot)
}

type eventKind int

const (
	eventRefresh eventKind = iota
	eventSetBase
	eventSynced
)

type event struct {
	kind eventKind
	base string
}

// intervalSchedule fires at a fixed period after each activation
type intervalSchedule time.Duration

func (i intervalSchedule) Next(t time.Time) time.Time {
	return t.Add(time.Duration(i))
}

// Every returns a schedule firing at a fixed interval
func Every(interval time.Duration) cron.Schedule {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	return intervalSchedule(interval)
}

// ParseSchedule returns the schedule for a cron or descriptor expression
// ("@every 45s", "*/5 * * * *"), or a fixed interval when expr is empty.
func ParseSchedule(expr string, interval time.Duration) (cron.Schedule, error) {
	if strings.TrimSpace(expr) == "" {
		return Every(interval), nil
	}
	return cron.ParseStandard(expr)
}

// RefreshScheduler drives periodic syncs of the active base currency. A single
// dispatch loop owns the timer; syncs run on their own goroutines so the loop
// can observe an active session when a tick fires.
type RefreshScheduler struct {
	syncer       Syncer
	connectivity ConnectivitySource
	listener     SyncListener
	schedule     cron.Schedule
	events       chan event
	logger       logger.Logger
	wg           sync.WaitGroup

	mu    sync.RWMutex
	state SchedulerState
	base  string
}

// NewRefreshScheduler creates a scheduler for base. A nil schedule uses DefaultRefreshInterval.
func NewRefreshScheduler(syncer Syncer, connectivity ConnectivitySource, listener SyncListener, schedule cron.Schedule, base string, log logger.Logger) *RefreshScheduler {
	if schedule == nil {
		schedule = Every(DefaultRefreshInterval)
	}
	if log == nil {
		log = logger.GetDefaultLogger()
	}

	return &RefreshScheduler{
		syncer:       syncer,
		connectivity: connectivity,
		listener:     listener,
		schedule:     schedule,
		events:       make(chan event, 8),
		logger:       log.WithField("component", "refresh_scheduler"),
		base:         strings.ToUpper(base),
	}
}

// State returns the current timer state
func (s *RefreshScheduler) State() SchedulerState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.state
}

// Base returns the active base currency
func (s *RefreshScheduler) Base() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.base
}

// RequestRefresh asks for an immediate sync of the active base
func (s *RefreshScheduler) RequestRefresh(ctx context.Context) error {
	return s.send(ctx, event{kind: eventRefresh})
}

// SetBase switches the active base currency, restarts the timer and syncs the new base
func (s *RefreshScheduler) SetBase(ctx context.Context, base string) error {
	base = strings.ToUpper(strings.TrimSpace(base))
	if base == "" {
		return entity.ErrInvalidBase
	}
	return s.send(ctx, event{kind: eventSetBase, base: base})
}

func (s *RefreshScheduler) send(ctx context.Context, ev event) error {
	select {
	case s.events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run performs the initial sync and dispatches events until ctx is done.
// It waits for in-flight syncs before returning.
func (s *RefreshScheduler) Run(ctx context.Context) error {
	var transitions <-chan bool
	if s.connectivity != nil {
		transitions = s.connectivity.Subscribe()
	}

	var timer *time.Timer
	var timerC <-chan time.Time

	stopTimer := func() {
		if timer != nil {
			timer.Stop()
			timer, timerC = nil, nil
		}
	}
	// At most one timer exists; arming always replaces the previous one
	armTimer := func() {
		stopTimer()
		now := time.Now()
		timer = time.NewTimer(s.schedule.Next(now).Sub(now))
		timerC = timer.C
	}

	defer func() {
		stopTimer()
		s.wg.Wait()
		s.setState(Stopped)
	}()

	s.launch(ctx, s.Base(), "initial")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Stopping refresh scheduler", nil)
			return ctx.Err()

		case <-timerC:
			s.tick(ctx)
			armTimer()

		case online, ok := <-transitions:
			if !ok {
				transitions = nil
				continue
			}
			if !online {
				s.logger.Info("Connectivity lost, ticks paused", nil)
				continue
			}
			if s.syncer.IsFetching() {
				s.logger.Debug("Back online but a sync is active, skipping", nil)
				continue
			}
			s.launch(ctx, s.Base(), "online")

		case ev := <-s.events:
			switch ev.kind {
			case eventRefresh:
				s.launch(ctx, s.Base(), "manual")
			case eventSetBase:
				s.setBase(ev.base)
				if s.State() == Running {
					armTimer()
				}
				s.launch(ctx, ev.base, "base_change")
			case eventSynced:
				if s.State() == Stopped {
					s.setState(Running)
					armTimer()
					s.logger.Info("Auto refresh started", map[string]interface{}{
						"base": s.Base(),
					})
				}
			}
		}
	}
}

// tick syncs the active base unless offline or a sync is in flight
func (s *RefreshScheduler) tick(ctx context.Context) {
	if s.connectivity != nil && !s.connectivity.Online() {
		metrics.ObserveTick("skipped_offline")
		s.logger.Debug("Tick skipped: offline", nil)
		return
	}
	if s.syncer.IsFetching() {
		metrics.ObserveTick("skipped_busy")
		s.logger.Debug("Tick skipped: sync in progress", nil)
		return
	}

	metrics.ObserveTick("fired")
	s.launch(ctx, s.Base(), "tick")
}

func (s *RefreshScheduler) launch(ctx context.Context, base, trigger string) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		result, err := s.syncer.Sync(ctx, base)
		s.report(base, trigger, result, err)
		if err != nil {
			return
		}

		select {
		case s.events <- event{kind: eventSynced}:
		case <-ctx.Done():
		}
	}()
}

func (s *RefreshScheduler) report(base, trigger string, result *entity.SyncResult, err error) {
	if errors.Is(err, entity.ErrBusy) {
		s.logger.Debug("Sync rejected: another sync is active", map[string]interface{}{
			"base":    base,
			"trigger": trigger,
		})
		return
	}

	if err != nil {
		s.logger.Warn("Scheduled sync failed", map[string]interface{}{
			"base":    base,
			"trigger": trigger,
			"error":   err.Error(),
		})
		if s.listener != nil {
			s.listener.OnSyncError(base, err, s.syncer.Fallback())
		}
		return
	}

	if s.listener != nil {
		s.listener.OnSyncSuccess(result)
	}
}

func (s *RefreshScheduler) setState(state SchedulerState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = state
}

func (s *RefreshScheduler) setBase(base string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.base = base
}
