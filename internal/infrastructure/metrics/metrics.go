package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Disbursement metrics
	DisbursementsCreated   *prometheus.CounterVec
	RailExecutions         *prometheus.CounterVec
	RailDuration           *prometheus.HistogramVec
	DisbursementsRetried   prometheus.Counter
	BatchRuns              *prometheus.CounterVec
	BatchItems             *prometheus.CounterVec
	BatchDuration          prometheus.Histogram
	DisbursedAmount        *prometheus.CounterVec
	RailRetries            *prometheus.CounterVec
	BestEffortWriteFailure prometheus.Counter

	// Reconciliation metrics
	SettlementRecords       *prometheus.CounterVec
	MatchConfidence         *prometheus.HistogramVec
	Reconciliations         *prometheus.CounterVec
	ReviewsCreated          *prometheus.CounterVec
	ReviewsResolved         *prometheus.CounterVec
	ReconciliationConflicts prometheus.Counter

	// API metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Outbox metrics
	EventsPublished *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics on the default registerer.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer creates all Prometheus metrics and registers them on reg.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		// Disbursement metrics
		DisbursementsCreated: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vendorpay_disbursements_created_total",
				Help: "Total number of disbursements created",
			},
			[]string{"method"},
		),
		RailExecutions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vendorpay_rail_executions_total",
				Help: "Rail processor executions by method and outcome",
			},
			[]string{"method", "outcome"},
		),
		RailDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vendorpay_rail_duration_seconds",
				Help:    "Duration of external rail calls",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		DisbursementsRetried: f.NewCounter(prometheus.CounterOpts{
			Name: "vendorpay_disbursements_retried_total",
			Help: "Total number of failed disbursements reset for retry",
		}),
		BatchRuns: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vendorpay_batch_runs_total",
				Help: "Payment run executions by resulting status",
			},
			[]string{"status"},
		),
		BatchItems: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vendorpay_batch_items_total",
				Help: "Batch items by outcome",
			},
			[]string{"outcome"},
		),
		BatchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "vendorpay_batch_duration_seconds",
			Help:    "Duration of payment run executions",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 300},
		}),
		DisbursedAmount: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vendorpay_disbursed_amount_minor_total",
				Help: "Confirmed disbursement amounts in minor units",
			},
			[]string{"method", "currency"},
		),
		RailRetries: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vendorpay_rail_retries_total",
				Help: "Transient rail errors that were retried",
			},
			[]string{"method"},
		),
		BestEffortWriteFailure: f.NewCounter(prometheus.CounterOpts{
			Name: "vendorpay_best_effort_write_failures_total",
			Help: "Failed best-effort FAILED status writes on the error path",
		}),

		// Reconciliation metrics
		SettlementRecords: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vendorpay_settlement_records_total",
				Help: "Settlement records ingested by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		MatchConfidence: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vendorpay_match_confidence",
				Help:    "Confidence of winning matches",
				Buckets: []float64{50, 60, 70, 80, 85, 90, 95, 100},
			},
			[]string{"match_type"},
		),
		Reconciliations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vendorpay_reconciliations_total",
				Help: "Committed reconciliations by type",
			},
			[]string{"type"},
		),
		ReviewsCreated: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vendorpay_reviews_created_total",
				Help: "Review records created by reason",
			},
			[]string{"reason"},
		),
		ReviewsResolved: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vendorpay_reviews_resolved_total",
				Help: "Review records resolved by status and actor kind",
			},
			[]string{"status", "actor"},
		),
		ReconciliationConflicts: f.NewCounter(prometheus.CounterOpts{
			Name: "vendorpay_reconciliation_conflicts_total",
			Help: "Commits skipped because the disbursement was no longer eligible",
		}),

		// API metrics
		HTTPRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vendorpay_http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vendorpay_http_duration_seconds",
				Help:    "HTTP request duration",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		EventsPublished: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vendorpay_events_published_total",
				Help: "Outbox events published by type and outcome",
			},
			[]string{"event_type", "outcome"},
		),
	}
}
