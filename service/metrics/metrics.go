package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the application.
// Following the explicit dependency injection pattern, this struct
// is passed to all components that need to record metrics.
type Metrics struct {
	// Explorer API Metrics
	explorerCallsTotal          *prometheus.CounterVec
	explorerCallDuration        *prometheus.HistogramVec
	explorerRetries             *prometheus.CounterVec
	explorerTransactionsPerCall *prometheus.HistogramVec
	fetchCacheLookups           *prometheus.CounterVec

	// Search Metrics
	searchesTotal          *prometheus.CounterVec
	searchDuration         *prometheus.HistogramVec
	searchAddressesVisited *prometheus.CounterVec

	// Database Metrics
	dbQueryDuration   *prometheus.HistogramVec
	dbOperationsTotal *prometheus.CounterVec

	// HTTP Metrics
	httpRequestDuration *prometheus.HistogramVec
	httpRequestsTotal   *prometheus.CounterVec

	// NATS Metrics
	natsMessagesPublished *prometheus.CounterVec
	natsPublishDuration   *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		// Explorer API Metrics
		explorerCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "explorer_api_calls_total",
				Help: "Total number of block explorer API calls by endpoint and status",
			},
			[]string{"endpoint", "status"},
		),
		explorerCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "explorer_api_call_duration_seconds",
				Help:    "Duration of block explorer API calls in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 25.0},
			},
			[]string{"endpoint"},
		),
		explorerRetries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "explorer_api_retries_total",
				Help: "Total number of block explorer API retry attempts",
			},
			[]string{"endpoint", "reason"},
		),
		explorerTransactionsPerCall: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "explorer_api_transactions_per_call",
				Help:    "Number of transactions returned per explorer API call",
				Buckets: []float64{0, 1, 10, 25, 50, 100, 200},
			},
			[]string{"endpoint"},
		),
		fetchCacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fetch_cache_lookups_total",
				Help: "Total number of transaction cache lookups by result (hit or miss)",
			},
			[]string{"result"},
		),

		// Search Metrics
		searchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "connection_searches_total",
				Help: "Total number of connection searches by outcome",
			},
			[]string{"outcome"},
		),
		searchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "connection_search_duration_seconds",
				Help:    "Duration of connection searches in seconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
			},
			[]string{"outcome"},
		),
		searchAddressesVisited: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "connection_search_addresses_visited_total",
				Help: "Total number of addresses expanded by connection searches, by depth",
			},
			[]string{"depth"},
		),

		// Database Metrics
		dbQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "db_query_duration_seconds",
				Help:    "Duration of database queries in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
			},
			[]string{"operation", "table"},
		),
		dbOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "db_operations_total",
				Help: "Total number of database operations",
			},
			[]string{"operation", "status"},
		),

		// HTTP Metrics
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 10, 60},
			},
			[]string{"handler", "method", "status"},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"handler", "method", "status"},
		),

		// NATS Metrics
		natsMessagesPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nats_messages_published_total",
				Help: "Total number of NATS messages published",
			},
			[]string{"subject", "status"},
		),
		natsPublishDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nats_publish_duration_seconds",
				Help:    "Duration of NATS publish operations in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
			[]string{"subject"},
		),
	}
}

// Explorer API metric helpers

// RecordAPICall records a block explorer API call with duration.
func (m *Metrics) RecordAPICall(endpoint, status string, duration float64) {
	m.explorerCallsTotal.WithLabelValues(endpoint, status).Inc()
	m.explorerCallDuration.WithLabelValues(endpoint).Observe(duration)
}

// RecordAPIRetry records a retry attempt.
func (m *Metrics) RecordAPIRetry(endpoint, reason string) {
	m.explorerRetries.WithLabelValues(endpoint, reason).Inc()
}

// RecordTransactionsPerCall records the number of transactions returned by one call.
func (m *Metrics) RecordTransactionsPerCall(endpoint string, count int) {
	m.explorerTransactionsPerCall.WithLabelValues(endpoint).Observe(float64(count))
}

// RecordCacheLookup records a transaction cache lookup ("hit" or "miss").
func (m *Metrics) RecordCacheLookup(result string) {
	m.fetchCacheLookups.WithLabelValues(result).Inc()
}

// Search metric helpers

// RecordSearch records a completed connection search.
// Outcome is one of "found", "not_found" or "inconclusive".
func (m *Metrics) RecordSearch(outcome string, duration float64) {
	m.searchesTotal.WithLabelValues(outcome).Inc()
	m.searchDuration.WithLabelValues(outcome).Observe(duration)
}

// RecordAddressVisited records one address expansion at the given depth.
func (m *Metrics) RecordAddressVisited(depth string) {
	m.searchAddressesVisited.WithLabelValues(depth).Inc()
}

// Database metric helpers

// RecordDBQuery records a database query with duration.
func (m *Metrics) RecordDBQuery(operation, table string, duration float64, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.dbQueryDuration.WithLabelValues(operation, table).Observe(duration)
	m.dbOperationsTotal.WithLabelValues(operation, status).Inc()
}

// HTTP metric helpers

// RecordHTTPRequest records an HTTP request with duration.
func (m *Metrics) RecordHTTPRequest(handler, method string, statusCode int, duration float64) {
	status := statusCodeToString(statusCode)
	m.httpRequestDuration.WithLabelValues(handler, method, status).Observe(duration)
	m.httpRequestsTotal.WithLabelValues(handler, method, status).Inc()
}

// NATS metric helpers

// RecordNATSPublish records a NATS publish operation.
func (m *Metrics) RecordNATSPublish(subject, status string, duration float64) {
	m.natsMessagesPublished.WithLabelValues(subject, status).Inc()
	m.natsPublishDuration.WithLabelValues(subject).Observe(duration)
}

// Helper functions

func statusCodeToString(code int) string {
	// Group status codes by class
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500 && code < 600:
		return "5xx"
	default:
		return "unknown"
	}
}
