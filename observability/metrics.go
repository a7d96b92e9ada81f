package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "stock_pulse"

// Metrics holds all Prometheus collectors for the service
type Metrics struct {
	// Market data provider metrics
	ExternalAPIRequestsTotal *prometheus.CounterVec
	ExternalAPIErrorsTotal   *prometheus.CounterVec
	ExternalAPIDuration      *prometheus.HistogramVec

	// Cache metrics
	CacheLookupsTotal   *prometheus.CounterVec
	CacheWritesTotal    *prometheus.CounterVec
	CacheFallbacksTotal prometheus.Counter

	// Batch ranking metrics
	BatchRunsTotal    *prometheus.CounterVec
	BatchSymbolsTotal *prometheus.CounterVec
	BatchDuration     prometheus.Histogram
	TrendingScores    *prometheus.HistogramVec

	// Realtime metrics
	SchedulerRunning       prometheus.Gauge
	SchedulerTicksTotal    prometheus.Counter
	Subscribers            prometheus.Gauge
	BroadcastMessagesTotal *prometheus.CounterVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryTotal    *prometheus.CounterVec
	DBErrorsTotal   *prometheus.CounterVec

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Circuit breaker metrics
	CircuitBreakerState *prometheus.GaugeVec
	CircuitBreakerTrips *prometheus.CounterVec
}

// defaultBuckets are the default histogram buckets for duration metrics (in seconds)
var defaultBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30}

// batchBuckets cover a full sequential pass with the provider delay (seconds)
var batchBuckets = []float64{1, 10, 30, 60, 120, 180, 300, 600, 1200}

// scoreBuckets span the trending score range 0..100
var scoreBuckets = []float64{0, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100}

var (
	globalMetrics *Metrics
	metricsMu     sync.Mutex
)

// NewMetrics creates and registers all collectors on reg (default registerer when nil)
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	factory := promauto.With(reg)

	return &Metrics{
		ExternalAPIRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "external_api",
				Name:      "requests_total",
				Help:      "Total number of market data provider requests",
			},
			[]string{"service", "operation"},
		),
		ExternalAPIErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "external_api",
				Name:      "errors_total",
				Help:      "Total number of market data provider errors",
			},
			[]string{"service", "operation", "error_type"},
		),
		ExternalAPIDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "external_api",
				Name:      "duration_seconds",
				Help:      "Duration of market data provider calls in seconds",
				Buckets:   defaultBuckets,
			},
			[]string{"service", "operation"},
		),

		CacheLookupsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "lookups_total",
				Help:      "Cache lookups by backend and result (hit, miss, error)",
			},
			[]string{"backend", "result"},
		),
		CacheWritesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "writes_total",
				Help:      "Cache writes by backend and status",
			},
			[]string{"backend", "status"},
		),
		CacheFallbacksTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "fallbacks_total",
				Help:      "Times the networked cache was unavailable at startup",
			},
		),

		BatchRunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "batch",
				Name:      "runs_total",
				Help:      "Daily ranking batch runs by status",
			},
			[]string{"status"},
		),
		BatchSymbolsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "batch",
				Name:      "symbols_total",
				Help:      "Symbols processed by the ranking batch by outcome (updated, skipped, failed)",
			},
			[]string{"outcome"},
		),
		BatchDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "batch",
				Name:      "duration_seconds",
				Help:      "Duration of a full ranking batch in seconds",
				Buckets:   batchBuckets,
			},
		),
		TrendingScores: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "ranking",
				Name:      "trending_score",
				Help:      "Distribution of computed trending scores by signal",
				Buckets:   scoreBuckets,
			},
			[]string{"signal"},
		),

		SchedulerRunning: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "realtime",
				Name:      "scheduler_running",
				Help:      "1 while the realtime broadcast scheduler is running",
			},
		),
		SchedulerTicksTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "realtime",
				Name:      "ticks_total",
				Help:      "Total number of scheduler ticks",
			},
		),
		Subscribers: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "realtime",
				Name:      "subscribers",
				Help:      "Number of connected push subscribers",
			},
		),
		BroadcastMessagesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "realtime",
				Name:      "broadcast_messages_total",
				Help:      "Broadcast messages by message type",
			},
			[]string{"type"},
		),

		DBQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "database",
				Name:      "query_duration_seconds",
				Help:      "Duration of database queries in seconds",
				Buckets:   defaultBuckets,
			},
			[]string{"operation", "table"},
		),
		DBQueryTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "database",
				Name:      "queries_total",
				Help:      "Total number of database queries",
			},
			[]string{"operation", "table"},
		),
		DBErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "database",
				Name:      "errors_total",
				Help:      "Total number of database errors",
			},
			[]string{"operation", "table"},
		),

		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds",
				Buckets:   defaultBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "response_size_bytes",
				Help:      "Size of HTTP responses in bytes",
				Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
			},
			[]string{"method", "path"},
		),

		CircuitBreakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "circuit_breaker",
				Name:      "state",
				Help:      "Current state of circuit breakers (0=closed, 1=half-open, 2=open)",
			},
			[]string{"service"},
		),
		CircuitBreakerTrips: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "circuit_breaker",
				Name:      "trips_total",
				Help:      "Total number of circuit breaker trips",
			},
			[]string{"service"},
		),
	}
}

// InitMetrics registers the global metrics on the default registerer
func InitMetrics() *Metrics {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	if globalMetrics == nil {
		globalMetrics = NewMetrics(nil)
	}
	return globalMetrics
}

// GetMetrics returns the global metrics, registering them on first use
func GetMetrics() *Metrics {
	metricsMu.Lock()
	m := globalMetrics
	metricsMu.Unlock()
	if m == nil {
		return InitMetrics()
	}
	return m
}

func (m *Metrics) RecordExternalAPIRequest(service, operation string) {
	m.ExternalAPIRequestsTotal.WithLabelValues(service, operation).Inc()
}

func (m *Metrics) RecordExternalAPIError(service, operation, errorType string) {
	m.ExternalAPIErrorsTotal.WithLabelValues(service, operation, errorType).Inc()
}

func (m *Metrics) RecordExternalAPIDuration(service, operation string, duration time.Duration) {
	m.ExternalAPIDuration.WithLabelValues(service, operation).Observe(duration.Seconds())
}

// RecordCacheLookup records a cache read; result is hit, miss or error
func (m *Metrics) RecordCacheLookup(backend, result string) {
	m.CacheLookupsTotal.WithLabelValues(backend, result).Inc()
}

func (m *Metrics) RecordCacheWrite(backend, status string) {
	m.CacheWritesTotal.WithLabelValues(backend, status).Inc()
}

func (m *Metrics) RecordCacheFallback() {
	m.CacheFallbacksTotal.Inc()
}

func (m *Metrics) RecordBatchRun(status string, duration time.Duration) {
	m.BatchRunsTotal.WithLabelValues(status).Inc()
	m.BatchDuration.Observe(duration.Seconds())
}

// RecordBatchSymbol records one symbol outcome: updated, skipped or failed
func (m *Metrics) RecordBatchSymbol(outcome string) {
	m.BatchSymbolsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordTrendingScore(signal string, score int) {
	m.TrendingScores.WithLabelValues(signal).Observe(float64(score))
}

func (m *Metrics) SetSchedulerRunning(running bool) {
	if running {
		m.SchedulerRunning.Set(1)
		return
	}
	m.SchedulerRunning.Set(0)
}

func (m *Metrics) RecordSchedulerTick() {
	m.SchedulerTicksTotal.Inc()
}

func (m *Metrics) SetSubscribers(n int) {
	m.Subscribers.Set(float64(n))
}

func (m *Metrics) RecordBroadcast(messageType string) {
	m.BroadcastMessagesTotal.WithLabelValues(messageType).Inc()
}

func (m *Metrics) RecordDBQuery(operation, table string, duration time.Duration) {
	m.DBQueryTotal.WithLabelValues(operation, table).Inc()
	m.DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}

func (m *Metrics) RecordDBError(operation, table string) {
	m.DBErrorsTotal.WithLabelValues(operation, table).Inc()
}

func (m *Metrics) RecordHTTPRequest(method, path, statusCode string, duration time.Duration, responseSize int) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.HTTPResponseSize.WithLabelValues(method, path).Observe(float64(responseSize))
}

// SetCircuitBreakerState sets the current state of a circuit breaker
func (m *Metrics) SetCircuitBreakerState(service string, state int) {
	m.CircuitBreakerState.WithLabelValues(service).Set(float64(state))
}

func (m *Metrics) RecordCircuitBreakerTrip(service string) {
	m.CircuitBreakerTrips.WithLabelValues(service).Inc()
}

// Timer measures one operation from creation
type Timer struct {
	start   time.Time
	metrics *Metrics
}

func (m *Metrics) NewTimer() *Timer {
	return &Timer{
		start:   time.Now(),
		metrics: m,
	}
}

func (t *Timer) ObserveExternalAPI(service, operation string) {
	t.metrics.RecordExternalAPIDuration(service, operation, time.Since(t.start))
}

func (t *Timer) ObserveDB(operation, table string) {
	t.metrics.RecordDBQuery(operation, table, time.Since(t.start))
}

func (t *Timer) ObserveBatch(status string) {
	t.metrics.RecordBatchRun(status, time.Since(t.start))
}

func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
