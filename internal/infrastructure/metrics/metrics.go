package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SyncTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ratesync_sync_total",
			Help: "Total number of sync attempts per base currency and outcome",
		},
		[]string{"base", "outcome"},
	)

	SyncDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ratesync_sync_duration_seconds",
			Help:    "Duration of completed sync attempts per base currency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"base"},
	)

	SyncLastSuccess = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ratesync_sync_last_success_timestamp",
			Help: "Unix timestamp of the last successful sync per base currency",
		},
		[]string{"base"},
	)

	SchedulerTicksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ratesync_scheduler_ticks_total",
			Help: "Scheduler ticks by result (fired, skipped_offline, skipped_busy)",
		},
		[]string{"result"},
	)

	ConnectivityOnline = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ratesync_connectivity_online",
			Help: "1 when the rate endpoint is considered reachable, 0 otherwise",
		},
	)

	ProxyRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ratesync_cache_proxy_requests_total",
			Help: "Requests seen by the cache proxy per partition and result",
		},
		[]string{"partition", "result"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ratesync_http_requests_total",
			Help: "Requests served by the status API per route, method and status code",
		},
		[]string{"route", "method", "status"},
	)

	HTTPRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ratesync_http_request_duration_seconds",
			Help:    "Latency of the status API per route",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
)

// ObserveSync records the outcome of one sync attempt
func ObserveSync(base, outcome string, startedAt time.Time) {
	SyncTotal.WithLabelValues(base, outcome).Inc()
	if outcome == "busy" {
		return
	}

	SyncDurationSeconds.WithLabelValues(base).Observe(time.Since(startedAt).Seconds())
	if outcome == "success" {
		SyncLastSuccess.WithLabelValues(base).Set(float64(time.Now().Unix()))
	}
}

// ObserveTick records what the scheduler did with one timer tick
func ObserveTick(result string) {
	SchedulerTicksTotal.WithLabelValues(result).Inc()
}

// ObserveProxy records how the cache proxy served one request
func ObserveProxy(partition, result string) {
	ProxyRequestsTotal.WithLabelValues(partition, result).Inc()
}

// ObserveHTTP records one request served by the status API
func ObserveHTTP(route, method string, status int, startedAt time.Time) {
	HTTPRequestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	HTTPRequestDurationSeconds.WithLabelValues(route).Observe(time.Since(startedAt).Seconds())
}

// SetOnline publishes the current connectivity state
func SetOnline(online bool) {
	if online {
		ConnectivityOnline.Set(1)
		return
	}
	ConnectivityOnline.Set(0)
}
