// Package connectivity tracks whether the rate endpoint is reachable and
// publishes online/offline transitions.
package connectivity

import (
	"context"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/damon-houk/rate-sync-client/internal/infrastructure/logger"
	"github.com/damon-houk/rate-sync-client/internal/infrastructure/metrics"
)

// ProbeFunc reports whether the remote side is currently reachable
type ProbeFunc func(ctx context.Context) bool

// Monitor holds the connectivity state
type Monitor struct {
	mu          sync.Mutex
	online      bool
	changedAt   time.Time
	subscribers []chan bool
	logger      logger.Logger
}

// NewMonitor creates a monitor starting in the given state
func NewMonitor(online bool, log logger.Logger) *Monitor {
	if log == nil {
		log = logger.GetDefaultLogger()
	}
	metrics.SetOnline(online)

	return &Monitor{
		online:    online,
		changedAt: time.Now(),
		logger:    log.WithField("component", "connectivity"),
	}
}

// Online reports the current state
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.online
}

// ChangedAt returns when the state last changed
func (m *Monitor) ChangedAt() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.changedAt
}

// Subscribe returns a channel receiving every transition. A subscriber that
// falls behind only sees the most recent state.
func (m *Monitor) Subscribe() <-chan bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch := make(chan bool, 1)
	m.subscribers = append(m.subscribers, ch)
	return ch
}

// Set records the state and notifies subscribers when it changed
func (m *Monitor) Set(online bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.online == online {
		return
	}
	m.online = online
	m.changedAt = time.Now()
	metrics.SetOnline(online)

	m.logger.Info("Connectivity changed", map[string]interface{}{
		"online": online,
	})

	for _, ch := range m.subscribers {
		// drop a stale undelivered state before publishing the new one
		select {
		case <-ch:
		default:
		}
		ch <- online
	}
}

// Run probes every interval until ctx is done
func (m *Monitor) Run(ctx context.Context, probe ProbeFunc, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.Set(probe(ctx))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.Set(probe(ctx))
		}
	}
}

// DialProbe returns a probe that opens a TCP connection to the host of rawURL
func DialProbe(rawURL string, timeout time.Duration) (ProbeFunc, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}

	port := u.Port()
	if port == "" {
		port = "443"
		if u.Scheme == "http" {
			port = "80"
		}
	}
	addr := net.JoinHostPort(u.Hostname(), port)

	return func(ctx context.Context) bool {
		dialer := net.Dialer{Timeout: timeout}
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			return false
		}
		conn.Close()
		return true
	}, nil
}
