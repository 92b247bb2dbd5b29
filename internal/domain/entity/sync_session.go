package entity

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SyncSession represents one in-flight fetch attempt
type SyncSession struct {
	ID        string
	Base      string
	StartedAt time.Time

	cancel     context.CancelFunc
	cancelOnce sync.Once
}

// NewSyncSession opens a session for base whose cancellation handle is cancel
func NewSyncSession(base string, cancel context.CancelFunc) *SyncSession {
	return &SyncSession{
		ID:        uuid.New().String(),
		Base:      base,
		StartedAt: time.Now(),
		cancel:    cancel,
	}
}

// Cancel invokes the cancellation handle. Only the first call has any effect.
func (s *SyncSession) Cancel() {
	s.cancelOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
	})
}
