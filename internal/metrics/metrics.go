package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Ensure Metrics implements Recorder interface at compile time
var _ Recorder = (*Metrics)(nil)

// Recorder defines the interface for recording application metrics.
// Implementations include Metrics (Prometheus-based) and NoopMetrics (no-op).
type Recorder interface {
	// Token refresh
	RecordRefreshAttempt(outcome string, duration time.Duration)
	RecordRefreshDeduplicated()
	RecordRefreshRejected(reason string)

	// Token validation
	RecordTokenValidation(reason string)

	// Session lifecycle
	RecordSessionCreated()
	RecordSessionEnded(reason string, duration time.Duration)
	RecordSessionWarning()
	RecordManagerTransition(state string)
	SetActiveSessionsCount(count int)

	// Cache
	RecordCacheHit(cacheType string)
	RecordCacheMiss(cacheType string)

	// Database
	RecordDatabaseQueryError(operation string)
}

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// Refresh Metrics
	RefreshAttemptsTotal     *prometheus.CounterVec
	RefreshDeduplicatedTotal prometheus.Counter
	RefreshRejectedTotal     *prometheus.CounterVec
	RefreshDuration          *prometheus.HistogramVec

	// Validation Metrics
	TokenValidationTotal *prometheus.CounterVec

	// Session Metrics
	SessionsActive          prometheus.Gauge
	SessionsCreatedTotal    prometheus.Counter
	SessionsEndedTotal      *prometheus.CounterVec
	SessionWarningsTotal    prometheus.Counter
	SessionDuration         prometheus.Histogram
	ManagerTransitionsTotal *prometheus.CounterVec

	// Cache Metrics
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	// HTTP Request Metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Database Query Metrics
	DatabaseQueryErrorsTotal *prometheus.CounterVec
}

var (
	defaultMetrics *Metrics
	once           sync.Once
)

// Init initializes metrics based on enabled flag.
// If enabled=true, returns Prometheus-based Metrics.
// If enabled=false, returns NoopMetrics (zero overhead).
// Uses sync.Once to ensure Prometheus metrics are only registered once.
func Init(enabled bool) Recorder {
	if !enabled {
		return NewNoopMetrics()
	}

	once.Do(func() {
		defaultMetrics = initMetrics()
	})
	return defaultMetrics
}

// initMetrics creates and registers all Prometheus metrics
func initMetrics() *Metrics {
	return &Metrics{
		RefreshAttemptsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "session_refresh_attempts_total",
				Help: "Total number of token refresh attempts by outcome",
			},
			[]string{"outcome"}, // success, retryable, expired_grant, exhausted
		),
		RefreshDeduplicatedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "session_refresh_deduplicated_total",
				Help: "Refresh calls that joined an in-flight refresh instead of hitting the provider",
			},
		),
		RefreshRejectedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "session_refresh_rejected_total",
				Help: "Refresh calls rejected by guard checks before any network call",
			},
			[]string{"reason"}, // signed_out, too_old, no_refresh_token, no_user
		),
		RefreshDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "session_refresh_duration_seconds",
				Help:    "Time taken for a token refresh round trip",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"outcome"},
		),
		TokenValidationTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "session_token_validation_total",
				Help: "Total token validations by verdict reason",
			},
			[]string{"reason"},
		),
		SessionsActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "session_active",
				Help: "Current number of active sessions",
			},
		),
		SessionsCreatedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "session_created_total",
				Help: "Total sessions created",
			},
		),
		SessionsEndedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "session_ended_total",
				Help: "Total sessions ended by reason",
			},
			[]string{"reason"}, // logout, idle_expired, hard_expired
		),
		SessionWarningsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "session_warnings_total",
				Help: "Total expiry warnings shown to idle users",
			},
		),
		SessionDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "session_duration_seconds",
				Help:    "Session lifetime from creation to end",
				Buckets: prometheus.ExponentialBuckets(60, 2, 12),
			},
		),
		ManagerTransitionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "session_manager_transitions_total",
				Help: "Session manager state machine transitions by resulting state",
			},
			[]string{"state"}, // normal, warning, idle_expired, hard_expired
		),
		CacheHitsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "session_cache_hits_total",
				Help: "Cache hits by cache type",
			},
			[]string{"cache"},
		),
		CacheMissesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "session_cache_misses_total",
				Help: "Cache misses by cache type",
			},
			[]string{"cache"},
		),
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Current number of in-flight HTTP requests",
			},
		),
		DatabaseQueryErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "database_query_errors_total",
				Help: "Database query errors by operation",
			},
			[]string{"operation"},
		),
	}
}

// Token refresh

func (m *Metrics) RecordRefreshAttempt(outcome string, duration time.Duration) {
	m.RefreshAttemptsTotal.WithLabelValues(outcome).Inc()
	m.RefreshDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

func (m *Metrics) RecordRefreshDeduplicated() {
	m.RefreshDeduplicatedTotal.Inc()
}

func (m *Metrics) RecordRefreshRejected(reason string) {
	m.RefreshRejectedTotal.WithLabelValues(reason).Inc()
}

// Token validation

func (m *Metrics) RecordTokenValidation(reason string) {
	m.TokenValidationTotal.WithLabelValues(reason).Inc()
}

// Session lifecycle

func (m *Metrics) RecordSessionCreated() {
	m.SessionsCreatedTotal.Inc()
	m.SessionsActive.Inc()
}

func (m *Metrics) RecordSessionEnded(reason string, duration time.Duration) {
	m.SessionsEndedTotal.WithLabelValues(reason).Inc()
	m.SessionsActive.Dec()
	m.SessionDuration.Observe(duration.Seconds())
}

func (m *Metrics) RecordSessionWarning() {
	m.SessionWarningsTotal.Inc()
}

func (m *Metrics) RecordManagerTransition(state string) {
	m.ManagerTransitionsTotal.WithLabelValues(state).Inc()
}

func (m *Metrics) SetActiveSessionsCount(count int) {
	m.SessionsActive.Set(float64(count))
}

// Cache

func (m *Metrics) RecordCacheHit(cacheType string) {
	m.CacheHitsTotal.WithLabelValues(cacheType).Inc()
}

func (m *Metrics) RecordCacheMiss(cacheType string) {
	m.CacheMissesTotal.WithLabelValues(cacheType).Inc()
}

// Database

func (m *Metrics) RecordDatabaseQueryError(operation string) {
	m.DatabaseQueryErrorsTotal.WithLabelValues(operation).Inc()
}
