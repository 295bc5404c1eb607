package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/iho/payengine/internal/domain"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Transaction metrics
	TransactionsProcessed *prometheus.CounterVec
	TransactionErrors     *prometheus.CounterVec
	TransactionDuration   prometheus.Histogram
	MalformedRecords      prometheus.Counter

	// Bounded store metrics
	Evictions *prometheus.CounterVec

	// Scheduler metrics
	QueueDepth          *prometheus.GaugeVec
	WorkerProcessed     *prometheus.CounterVec
	DuplicateRejections prometheus.Counter

	// API metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Export metrics
	ExportRows    prometheus.Counter
	ExportErrors  prometheus.Counter
	ExportRetries prometheus.Counter
}

// New creates and registers all metrics on the default registerer.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer creates and registers all metrics on reg.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		// Transaction metrics
		TransactionsProcessed: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payengine_transactions_processed_total",
				Help: "Total transactions applied by type",
			},
			[]string{"type"},
		),
		TransactionErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payengine_transaction_errors_total",
				Help: "Total rejected transactions by type and error kind",
			},
			[]string{"type", "error_kind"},
		),
		TransactionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "payengine_transaction_duration_seconds",
			Help:    "Time spent applying one transaction",
			Buckets: []float64{1e-7, 5e-7, 1e-6, 5e-6, 1e-5, 5e-5, 1e-4, 1e-3},
		}),
		MalformedRecords: f.NewCounter(prometheus.CounterOpts{
			Name: "payengine_malformed_records_total",
			Help: "Total input records skipped because they could not be parsed",
		}),

		// Bounded store metrics
		Evictions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payengine_evictions_total",
				Help: "Total entries evicted from bounded containers",
			},
			[]string{"container"},
		),

		// Scheduler metrics
		QueueDepth: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "payengine_worker_queue_depth",
				Help: "Transactions buffered in a worker queue",
			},
			[]string{"worker"},
		),
		WorkerProcessed: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payengine_worker_processed_total",
				Help: "Transactions successfully applied per worker",
			},
			[]string{"worker"},
		),
		DuplicateRejections: f.NewCounter(prometheus.CounterOpts{
			Name: "payengine_duplicate_rejections_total",
			Help: "Transactions rejected by the shared transaction id index",
		}),

		// API metrics
		HTTPRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payengine_http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "payengine_http_duration_seconds",
				Help:    "HTTP request duration",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		// Export metrics
		ExportRows: f.NewCounter(prometheus.CounterOpts{
			Name: "payengine_export_rows_total",
			Help: "Account rows written by snapshot exports",
		}),
		ExportErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "payengine_export_errors_total",
			Help: "Failed snapshot exports",
		}),
		ExportRetries: f.NewCounter(prometheus.CounterOpts{
			Name: "payengine_export_retries_total",
			Help: "Snapshot export attempts retried after a deadlock or serialization failure",
		}),
	}
}

// ObserveTransaction records the outcome of one applied transaction.
func (m *Metrics) ObserveTransaction(kind domain.Type, err error, took time.Duration) {
	if m == nil {
		return
	}

	m.TransactionDuration.Observe(took.Seconds())
	if err != nil {
		m.TransactionErrors.WithLabelValues(string(kind), domain.ErrorKind(err)).Inc()
		return
	}
	m.TransactionsProcessed.WithLabelValues(string(kind)).Inc()
}

// EvictionCounter returns the eviction counter for one container.
func (m *Metrics) EvictionCounter(container string) prometheus.Counter {
	if m == nil {
		return nil
	}
	return m.Evictions.WithLabelValues(container)
}
