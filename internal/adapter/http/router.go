package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/iho/vendorpay/internal/adapter/http/handler"
	"github.com/iho/vendorpay/internal/adapter/http/middleware"
	"github.com/iho/vendorpay/internal/infrastructure/metrics"
	"github.com/iho/vendorpay/internal/usecase"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	DisbursementHandler   *handler.DisbursementHandler
	BatchHandler          *handler.BatchHandler
	ReconciliationHandler *handler.ReconciliationHandler
	ReviewHandler         *handler.ReviewHandler
	ReportHandler         *handler.ReportHandler
	HealthHandler         *handler.HealthHandler

	// MetricsHandler serves /metrics when set.
	MetricsHandler http.Handler
	Metrics        *metrics.Metrics

	IdempotencyStore usecase.IdempotencyStore
	IdempotencyTTL   time.Duration
	RateLimiter      *middleware.RateLimiter
	Logger           zerolog.Logger
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Metrics(cfg.Metrics))
	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Limit)
	}

	r.Get("/health", cfg.HealthHandler.Liveness)
	r.Get("/ready", cfg.HealthHandler.Readiness)
	if cfg.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)
	}

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.IdempotencyStore != nil {
			idempotency := middleware.NewIdempotencyMiddleware(cfg.IdempotencyStore, cfg.IdempotencyTTL, cfg.Logger)
			r.Use(idempotency.Wrap)
		}

		r.Route("/disbursements", func(r chi.Router) {
			r.Post("/", cfg.DisbursementHandler.Create)
			r.Post("/retry-failed", cfg.BatchHandler.RetryFailed)
			r.Get("/{id}", cfg.DisbursementHandler.Get)
			r.Get("/{id}/history", cfg.DisbursementHandler.History)
			r.Post("/{id}/reconcile", cfg.DisbursementHandler.Reconcile)
			r.Post("/{id}/match", cfg.DisbursementHandler.MatchTransaction)
		})

		r.Post("/payment-runs/{id}/execute", cfg.BatchHandler.Execute)

		r.Route("/reconciliation", func(r chi.Router) {
			r.Post("/bank-statements", cfg.ReconciliationHandler.BankStatements)
			r.Post("/blockchain-transactions", cfg.ReconciliationHandler.BlockchainTransactions)
		})

		r.Route("/reviews", func(r chi.Router) {
			r.Get("/", cfg.ReviewHandler.List)
			r.Post("/triage", cfg.ReviewHandler.Triage)
			r.Post("/{id}/approve", cfg.ReviewHandler.Approve)
			r.Post("/{id}/reject", cfg.ReviewHandler.Reject)
		})

		r.Route("/reports", func(r chi.Router) {
			r.Get("/reconciliation", cfg.ReportHandler.Report)
			r.Get("/statistics", cfg.ReportHandler.Statistics)
		})
	})

	return r
}
