package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Update metrics
	updatesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "statsbot_updates_received_total",
		Help: "Total number of updates received",
	}, []string{"kind"})

	messagesStored = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "statsbot_messages_stored_total",
		Help: "Total number of messages persisted",
	}, []string{"chat_type"})

	// Stats query metrics
	statsQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "statsbot_stats_queries_total",
		Help: "Total number of aggregation queries executed",
	}, []string{"kind", "status"})

	statsQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "statsbot_stats_query_duration_seconds",
		Help:    "Duration of aggregation queries",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})

	// Cache metrics
	cacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "statsbot_cache_hits_total",
		Help: "Total number of cache hits",
	}, []string{"kind"})

	cacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "statsbot_cache_misses_total",
		Help: "Total number of cache misses",
	}, []string{"kind"})

	// Navigation metrics
	callbacksHandled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "statsbot_callbacks_handled_total",
		Help: "Total number of stats callbacks handled",
	}, []string{"action", "status"})

	searchesPerformed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "statsbot_searches_performed_total",
		Help: "Total number of user searches performed",
	})

	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "statsbot_active_sessions",
		Help: "Number of open search sessions",
	})

	// Rate limit metrics
	rateLimitExceeded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "statsbot_rate_limit_exceeded_total",
		Help: "Total number of rate limit exceeded events",
	})

	// API metrics
	apiRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "statsbot_api_requests_total",
		Help: "Total number of HTTP API requests",
	}, []string{"endpoint", "status"})
)

// Metrics provides methods to record metrics
type Metrics struct{}

// NewMetrics creates a new metrics instance
func NewMetrics() *Metrics {
	return &Metrics{}
}

// RecordUpdateReceived records a received update by kind (message, command, callback)
func (m *Metrics) RecordUpdateReceived(kind string) {
	updatesReceived.WithLabelValues(kind).Inc()
}

// RecordMessageStored records a persisted message
func (m *Metrics) RecordMessageStored(chatType string) {
	messagesStored.WithLabelValues(chatType).Inc()
}

// RecordStatsQuery records one aggregation query against the store
func (m *Metrics) RecordStatsQuery(kind, status string, duration time.Duration) {
	statsQueries.WithLabelValues(kind, status).Inc()
	statsQueryDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordCacheHit records a cache hit for a query kind
func (m *Metrics) RecordCacheHit(kind string) {
	cacheHits.WithLabelValues(kind).Inc()
}

// RecordCacheMiss records a cache miss for a query kind
func (m *Metrics) RecordCacheMiss(kind string) {
	cacheMisses.WithLabelValues(kind).Inc()
}

// RecordCallback records a handled stats callback
func (m *Metrics) RecordCallback(action, status string) {
	callbacksHandled.WithLabelValues(action, status).Inc()
}

// RecordSearch records a performed user search
func (m *Metrics) RecordSearch() {
	searchesPerformed.Inc()
}

// SetActiveSessions sets the number of open search sessions
func (m *Metrics) SetActiveSessions(count float64) {
	activeSessions.Set(count)
}

// RecordRateLimitExceeded records a rate limit exceeded event
func (m *Metrics) RecordRateLimitExceeded() {
	rateLimitExceeded.Inc()
}

// RecordAPIRequest records an HTTP API request
func (m *Metrics) RecordAPIRequest(endpoint, status string) {
	apiRequests.WithLabelValues(endpoint, status).Inc()
}

// StartMetricsServer starts the metrics HTTP server
func StartMetricsServer(port int, path string) error {
	router := mux.NewRouter()
	router.Handle(path, promhttp.Handler())

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	addr := fmt.Sprintf(":%d", port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return server.ListenAndServe()
}
