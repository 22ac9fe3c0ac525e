// Package metrics provides Prometheus collectors for Quasar's cache and copy
// engine.
//
// # Overview
//
// The metrics package provides:
//   - Cache hit and miss counters per accessor
//   - Copy counters, queue depth and duration per destination table
//   - Timer and ThroughputTracker helpers used by copy listeners
//
// # Basic Usage
//
//	metrics.CacheRequests.WithLabelValues("Value", metrics.ResultHit).Inc()
//
//	timer := metrics.NewTimer("people")
//	copyTable(ctx, table)
//	metrics.CopyDuration.WithLabelValues("people").Observe(timer.Stop().Seconds())
//
// Collectors register with the default Prometheus registry on package load.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Cache request results.
const (
	ResultHit  = "hit"
	ResultMiss = "miss"
)

var (
	// CacheRequests counts lookups made by the caching decorators.
	// Labels: accessor (method name), result (hit/miss)
	CacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quasar_cache_requests_total",
			Help: "Total number of cache lookups by accessor and result",
		},
		[]string{"accessor", "result"},
	)

	// ValuesCopied counts values written to destination tables.
	ValuesCopied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quasar_values_copied_total",
			Help: "Total number of values written to destination tables",
		},
		[]string{"table"},
	)

	// ValueSetsCopied counts value sets (rows) written to destination tables.
	ValueSetsCopied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quasar_value_sets_copied_total",
			Help: "Total number of value sets written to destination tables",
		},
		[]string{"table"},
	)

	// WriteQueueDepth tracks the backlog of the concurrent copier's write queue.
	WriteQueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "quasar_write_queue_depth",
			Help: "Number of value sets waiting to be written",
		},
		[]string{"table"},
	)

	// CopyDuration tracks how long a table copy takes.
	CopyDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quasar_copy_duration_seconds",
			Help:    "Duration of table copies in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		},
		[]string{"table"},
	)

	// Throughput tracks value sets written per second.
	Throughput = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "quasar_throughput_value_sets_per_second",
			Help: "Current copy throughput in value sets per second",
		},
		[]string{"table"},
	)
)

// Timer provides a simple timing mechanism for measuring operation durations.
type Timer struct {
	start time.Time
	name  string
}

// NewTimer creates a new timer and starts timing immediately.
func NewTimer(name string) *Timer {
	return &Timer{
		start: time.Now(),
		name:  name,
	}
}

// Name returns the label the timer was created with.
func (t *Timer) Name() string {
	return t.name
}

// Stop returns the elapsed duration since creation. It can be called more
// than once.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}

// ThroughputTracker tracks value sets per second over time windows.
// Thread-safe for concurrent use.
type ThroughputTracker struct {
	mu        sync.Mutex
	count     int64     // Value sets since last reset
	total     int64     // Value sets since creation
	lastReset time.Time // Time of last reset
	started   time.Time
	table     string
}

// NewThroughputTracker creates a tracker reporting under the table label.
func NewThroughputTracker(table string) *ThroughputTracker {
	now := time.Now()
	return &ThroughputTracker{
		lastReset: now,
		started:   now,
		table:     table,
	}
}

// Increment adds n to the count. Safe for concurrent use.
func (t *ThroughputTracker) Increment(n int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.count += n
	t.total += n
}

// GetAndReset calculates the throughput since the last reset, updates the
// Prometheus gauge, and starts a new window.
func (t *ThroughputTracker) GetAndReset() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	elapsed := time.Since(t.lastReset).Seconds()
	if elapsed == 0 {
		return 0
	}

	throughput := float64(t.count) / elapsed

	t.count = 0
	t.lastReset = time.Now()

	Throughput.WithLabelValues(t.table).Set(throughput)

	return throughput
}

// Overall returns the total count and the average rate since creation.
func (t *ThroughputTracker) Overall() (int64, float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	elapsed := time.Since(t.started).Seconds()
	if elapsed == 0 {
		return t.total, 0
	}
	return t.total, float64(t.total) / elapsed
}
