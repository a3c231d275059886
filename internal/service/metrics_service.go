package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation and provides lightweight snapshots for API consumption.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cycleDuration   *prometheus.HistogramVec
	stageFailures   *prometheus.CounterVec
	skippedTicks    prometheus.Counter
	connection      prometheus.Gauge
	stateWrite      *prometheus.HistogramVec
	menuLookups     *prometheus.CounterVec

	cycleCount      uint64
	cycleFailures   uint64
	skippedCount    uint64
	stateWriteCount uint64
	lastCycleUnix   int64
}

// MetricsSnapshot summarises sync activity for the status endpoint.
type MetricsSnapshot struct {
	Cycles       uint64    `json:"cycles"`
	FailedCycles uint64    `json:"failed_cycles"`
	SkippedTicks uint64    `json:"skipped_ticks"`
	StateWrites  uint64    `json:"state_writes"`
	LastCycleAt  time.Time `json:"last_cycle_at,omitempty"`
	Goroutines   int       `json:"goroutines"`
	GeneratedAt  time.Time `json:"generated_at"`
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cycleDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "edupage_sync_cycle_duration_seconds",
		Help:    "Duration of sync cycles by outcome",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"outcome"})

	stageFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "edupage_sync_stage_failures_total",
		Help: "Degraded or failed sync stages",
	}, []string{"stage"})

	skippedTicks := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "edupage_sync_skipped_ticks_total",
		Help: "Scheduler ticks dropped because a cycle was still running",
	})

	connection := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "edupage_connection_up",
		Help: "1 when the last cycle reached the portal",
	})

	stateWrite := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "edupage_state_write_seconds",
		Help:    "Latency for state store writes",
		Buckets: prometheus.DefBuckets,
	}, []string{"result"})

	menuLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "edupage_menu_lookups_total",
		Help: "Menu lookups by accepted endpoint variant",
	}, []string{"variant"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cycleDuration, stageFailures, skippedTicks, connection, stateWrite, menuLookups, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:        registry,
		handler:         handler,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cycleDuration:   cycleDuration,
		stageFailures:   stageFailures,
		skippedTicks:    skippedTicks,
		connection:      connection,
		stateWrite:      stateWrite,
		menuLookups:     menuLookups,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// ObserveCycle records a finished sync cycle.
func (m *MetricsService) ObserveCycle(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.cycleDuration.WithLabelValues(outcome).Observe(duration.Seconds())
	atomic.AddUint64(&m.cycleCount, 1)
	if outcome != CycleOutcomeOK && outcome != CycleOutcomeDegraded {
		atomic.AddUint64(&m.cycleFailures, 1)
	}
	atomic.StoreInt64(&m.lastCycleUnix, time.Now().Unix())
}

// RecordStageFailure counts a degraded or failed stage.
func (m *MetricsService) RecordStageFailure(stage string) {
	if m == nil {
		return
	}
	m.stageFailures.WithLabelValues(stage).Inc()
}

// RecordSkippedTick counts a dropped scheduler tick.
func (m *MetricsService) RecordSkippedTick() {
	if m == nil {
		return
	}
	m.skippedTicks.Inc()
	atomic.AddUint64(&m.skippedCount, 1)
}

// SetConnection mirrors the connection flag.
func (m *MetricsService) SetConnection(up bool) {
	if m == nil {
		return
	}
	if up {
		m.connection.Set(1)
		return
	}
	m.connection.Set(0)
}

// ObserveStateWrite tracks the duration of a state store write.
func (m *MetricsService) ObserveStateWrite(err error, duration time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.stateWrite.WithLabelValues(result).Observe(duration.Seconds())
	atomic.AddUint64(&m.stateWriteCount, 1)
}

// RecordMenuLookup counts which menu variant answered, or "none".
func (m *MetricsService) RecordMenuLookup(variant string) {
	if m == nil {
		return
	}
	m.menuLookups.WithLabelValues(variant).Inc()
}

// Snapshot returns aggregated counters for the status endpoint.
func (m *MetricsService) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	snapshot := MetricsSnapshot{
		Cycles:       atomic.LoadUint64(&m.cycleCount),
		FailedCycles: atomic.LoadUint64(&m.cycleFailures),
		SkippedTicks: atomic.LoadUint64(&m.skippedCount),
		StateWrites:  atomic.LoadUint64(&m.stateWriteCount),
		Goroutines:   runtime.NumGoroutine(),
		GeneratedAt:  time.Now().UTC(),
	}
	if last := atomic.LoadInt64(&m.lastCycleUnix); last > 0 {
		snapshot.LastCycleAt = time.Unix(last, 0).UTC()
	}
	return snapshot
}
