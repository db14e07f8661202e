package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for rawtx. It is passed explicitly
// to every component that records metrics; a nil *Metrics means "don't record".
type Metrics struct {
	// Ledger RPC
	rpcCallsTotal    *prometheus.CounterVec
	rpcCallDuration  *prometheus.HistogramVec
	rpcRateLimitHits *prometheus.CounterVec

	// Codec
	decodesTotal     *prometheus.CounterVec
	decodedTxBytes   prometheus.Histogram
	reconstructTotal *prometheus.CounterVec
	reconstructTime  *prometheus.HistogramVec

	// Batch workflow activities
	activityDuration *prometheus.HistogramVec

	// Database
	dbQueryDuration   *prometheus.HistogramVec
	dbOperationsTotal *prometheus.CounterVec

	// HTTP
	httpRequestDuration *prometheus.HistogramVec
	httpRequestsTotal   *prometheus.CounterVec

	// NATS
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
		rpcCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_rpc_calls_total",
				Help: "Total number of Solana RPC calls by method and status",
			},
			[]string{"method", "status", "endpoint"},
		),
		rpcCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solana_rpc_call_duration_seconds",
				Help:    "Duration of Solana RPC calls in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"method", "endpoint"},
		),
		rpcRateLimitHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_rpc_rate_limit_hits_total",
				Help: "Total number of Solana RPC rate limit hits (429 errors)",
			},
			[]string{"endpoint"},
		),

		decodesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rawtx_decodes_total",
				Help: "Total number of textual transactions decoded, by detected encoding and status",
			},
			[]string{"encoding", "status"},
		),
		decodedTxBytes: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "rawtx_decoded_transaction_bytes",
				Help:    "Size of successfully decoded transactions in bytes",
				Buckets: []float64{64, 128, 256, 512, 768, 1024, 1232},
			},
		),
		reconstructTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rawtx_reconstructions_total",
				Help: "Total number of signature reconstructions by status",
			},
			[]string{"status"},
		),
		reconstructTime: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rawtx_reconstruction_duration_seconds",
				Help:    "Duration of signature reconstructions in seconds, ledger query included",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"status"},
		),

		activityDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "reconstruct_activity_duration_seconds",
				Help:    "Duration of reconstruction activities in seconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"activity", "status"},
		),

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

		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
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

// Ledger RPC metric helpers

// RecordRPCCall records a Solana RPC call with duration.
func (m *Metrics) RecordRPCCall(method, status, endpoint string, duration float64) {
	m.rpcCallsTotal.WithLabelValues(method, status, endpoint).Inc()
	m.rpcCallDuration.WithLabelValues(method, endpoint).Observe(duration)
}

// RecordRateLimitHit records a rate limit hit (429 error).
func (m *Metrics) RecordRateLimitHit(endpoint string) {
	m.rpcRateLimitHits.WithLabelValues(endpoint).Inc()
}

// Codec metric helpers

// RecordDecode records a textual decode attempt. size is ignored unless status is "success".
func (m *Metrics) RecordDecode(encoding, status string, size int) {
	m.decodesTotal.WithLabelValues(encoding, status).Inc()
	if status == "success" {
		m.decodedTxBytes.Observe(float64(size))
	}
}

// RecordReconstruction records a reconstruction outcome with duration.
func (m *Metrics) RecordReconstruction(status string, duration float64) {
	m.reconstructTotal.WithLabelValues(status).Inc()
	m.reconstructTime.WithLabelValues(status).Observe(duration)
}

// Activity metric helpers

// RecordActivityDuration records activity execution duration.
func (m *Metrics) RecordActivityDuration(activity string, err error, duration float64) {
	m.activityDuration.WithLabelValues(activity, errorStatus(err)).Observe(duration)
}

// Database metric helpers

// RecordDBQuery records a database query with duration.
func (m *Metrics) RecordDBQuery(operation, table string, duration float64, err error) {
	m.dbQueryDuration.WithLabelValues(operation, table).Observe(duration)
	m.dbOperationsTotal.WithLabelValues(operation, errorStatus(err)).Inc()
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

func errorStatus(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func statusCodeToString(code int) string {
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
