package connectivity

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/damon-houk/rate-sync-client/internal/infrastructure/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() logger.Logger {
	return logger.NewJSONLogger(io.Discard, logger.ErrorLevel)
}

func TestMonitorTransitions(t *testing.T) {
	m := NewMonitor(true, quietLogger())
	sub := m.Subscribe()

	assert.True(t, m.Online())

	// No transition, no event
	m.Set(true)
	select {
	case <-sub:
		t.Fatal("unexpected transition")
	default:
	}

	m.Set(false)
	assert.False(t, m.Online())
	assert.Equal(t, false, <-sub)

	// A slow subscriber only sees the latest state
	m.Set(true)
	m.Set(false)
	m.Set(true)
	assert.Equal(t, true, <-sub)
	select {
	case <-sub:
		t.Fatal("expected a single pending state")
	default:
	}
}

func TestMonitorRun(t *testing.T) {
	m := NewMonitor(false, quietLogger())
	sub := m.Subscribe()

	var reachable atomic.Bool
	reachable.Store(true)
	probe := func(ctx context.Context) bool { return reachable.Load() }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx, probe, 10*time.Millisecond) }()

	assert.Equal(t, true, <-sub)

	reachable.Store(false)
	assert.Eventually(t, func() bool { return !m.Online() }, time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestDialProbe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	probe, err := DialProbe(server.URL, time.Second)
	require.NoError(t, err)
	assert.True(t, probe(context.Background()))

	server.Close()
	assert.False(t, probe(context.Background()))
}
