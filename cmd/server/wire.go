package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	httpAdapter "github.com/iho/vendorpay/internal/adapter/http"
	"github.com/iho/vendorpay/internal/adapter/http/handler"
	"github.com/iho/vendorpay/internal/adapter/http/middleware"
	"github.com/iho/vendorpay/internal/adapter/rail"
	"github.com/iho/vendorpay/internal/adapter/repository/memory"
	postgresRepo "github.com/iho/vendorpay/internal/adapter/repository/postgres"
	redisRepo "github.com/iho/vendorpay/internal/adapter/repository/redis"
	"github.com/iho/vendorpay/internal/domain"
	"github.com/iho/vendorpay/internal/infrastructure/config"
	"github.com/iho/vendorpay/internal/infrastructure/eventpublisher"
	"github.com/iho/vendorpay/internal/infrastructure/lock"
	"github.com/iho/vendorpay/internal/infrastructure/metrics"
	"github.com/iho/vendorpay/internal/infrastructure/postgres"
	"github.com/iho/vendorpay/internal/infrastructure/redis"
	"github.com/iho/vendorpay/internal/infrastructure/rules"
	"github.com/iho/vendorpay/internal/infrastructure/sweeper"
	"github.com/iho/vendorpay/internal/usecase"
)

// app is the wired engine: the HTTP handler plus its background workers.
type app struct {
	handler   http.Handler
	publisher *eventpublisher.EventPublisher
	sweeper   *sweeper.Sweeper
	limiter   *middleware.RateLimiter

	// memory is set when the engine runs on the in-process store.
	memory *memory.Store

	closers []func()
}

// Close releases connections in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// stores is the persistence side of the engine, whichever backend serves it.
type stores struct {
	txManager     usecase.TransactionManager
	disbursements usecase.DisbursementRepository
	reviews       usecase.ReviewRepository
	logs          usecase.ReconciliationLogRepository
	runs          usecase.PaymentRunRepository
	invoices      usecase.InvoiceStore
	vendors       usecase.VendorStore
	outbox        usecase.OutboxRepository
}

func newApp(ctx context.Context, cfg *config.Config, log zerolog.Logger, reg *prometheus.Registry) (a *app, err error) {
	a = &app{}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	m := metrics.NewWithRegisterer(reg)
	var checks []handler.ReadinessCheck

	// Storage
	var st stores
	switch cfg.Storage {
	case config.StorageMemory:
		a.memory = memory.NewStore()
		st = stores{
			txManager:     a.memory,
			disbursements: a.memory.Disbursements(),
			reviews:       a.memory.Reviews(),
			logs:          a.memory.Logs(),
			runs:          a.memory.Runs(),
			invoices:      a.memory.Invoices(),
			vendors:       a.memory.Vendors(),
			outbox:        a.memory.Outbox(),
		}
		log.Warn().Msg("using in-memory storage, state is lost on restart")
	default:
		pool, err := postgres.NewPoolWithConfig(ctx, postgres.PoolConfig{
			DatabaseURL: cfg.DatabaseURL,
			MaxConns:    cfg.DatabaseMaxConns,
			MinConns:    cfg.DatabaseMinConns,
		})
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		log.Info().Msg("connected to postgres")

		if err := postgres.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath, log); err != nil {
			return nil, fmt.Errorf("run migrations: %w", err)
		}

		st = stores{
			txManager:     postgresRepo.NewTxManager(pool),
			disbursements: postgresRepo.NewDisbursementRepository(pool),
			reviews:       postgresRepo.NewReviewRepository(pool),
			logs:          postgresRepo.NewLogRepository(pool),
			runs:          postgresRepo.NewRunRepository(pool),
			invoices:      postgresRepo.NewInvoiceStore(pool),
			vendors:       postgresRepo.NewVendorStore(pool),
			outbox:        postgresRepo.NewOutboxRepository(pool),
		}
		checks = append(checks, handler.PostgresCheck(pool))
	}

	// Locking, caching and idempotency
	var locker usecase.Locker = lock.NewKeyedMutex()
	var idempotency usecase.IdempotencyStore
	if cfg.RedisEnabled {
		client, err := redis.NewClient(ctx, cfg.RedisURL, log)
		if err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		a.closers = append(a.closers, func() { _ = client.Close() })
		log.Info().Msg("connected to redis")

		locker = redisRepo.NewLocker(client, cfg.LockTTL, log)
		st.vendors = redisRepo.NewCachedVendorStore(st.vendors, redisRepo.NewCache(client), cfg.VendorCacheTTL, log)
		idempotency = redisRepo.NewIdempotencyStore(client)
		checks = append(checks, handler.RedisCheck(client))
	}

	idGen := postgresRepo.NewULIDGenerator()
	dbRetrier := postgresRepo.NewRetrier(log)
	railRetrier := rail.NewRetrier(cfg.RailMaxAttempts, cfg.RailRetryInterval, log)

	ruleSet, err := rules.Load(cfg.RulesPath)
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}

	// Rails
	deps := usecase.ProcessorDeps{
		TxManager:     st.txManager,
		Disbursements: st.disbursements,
		Invoices:      st.invoices,
		Outbox:        st.outbox,
		IDGen:         idGen,
		Locker:        locker,
		DBRetrier:     dbRetrier,
		RailRetrier:   railRetrier,
		RailTimeout:   cfg.RailTimeout,
		Logger:        log,
		Metrics:       m,
	}
	processors := newProcessors(cfg, deps)

	// Use cases
	disbursementUC := usecase.NewDisbursementUseCase(
		st.txManager, st.disbursements, st.logs, st.reviews, st.invoices, st.vendors, st.outbox,
		idGen, locker, dbRetrier, log, m,
	)
	batchUC := usecase.NewBatchUseCase(
		st.txManager, st.disbursements, st.runs, st.outbox, idGen, locker, dbRetrier, processors,
		usecase.BatchConfig{
			Concurrency: cfg.BatchConcurrency,
			RetryWindow: cfg.RetryWindow,
			MaxRetries:  cfg.MaxRetries,
		},
		log, m,
	)
	reconciliationUC := usecase.NewReconciliationUseCase(
		st.txManager, st.disbursements, st.reviews, st.logs, st.outbox,
		idGen, locker, dbRetrier, ruleSet, log, m,
	)
	reviewUC := usecase.NewReviewUseCase(
		st.txManager, st.disbursements, st.reviews, st.logs, st.outbox,
		idGen, locker, dbRetrier,
		usecase.TriagePolicy{
			ApproveMinConfidence:       cfg.TriageApproveConfidence,
			ApproveMaxAmountDifference: cfg.TriageMaxDifference,
			RejectBelowConfidence:      cfg.TriageRejectConfidence,
		},
		log, m,
	)
	reportUC := usecase.NewReportUseCase(st.disbursements, log)

	// Background workers
	var publisher eventpublisher.Publisher = eventpublisher.NewLogPublisher(log)
	if cfg.EventPublisher == config.PublisherKafka {
		kafka := eventpublisher.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		a.closers = append(a.closers, func() {
			if err := kafka.Close(); err != nil {
				log.Warn().Err(err).Msg("failed to close kafka writer")
			}
		})
		publisher = kafka
	}
	a.publisher = eventpublisher.NewEventPublisher(eventpublisher.Config{
		OutboxRepo: st.outbox,
		Publisher:  publisher,
		Logger:     log,
		Metrics:    m,
		BatchSize:  cfg.OutboxBatchSize,
		Interval:   cfg.OutboxPollInterval,
		Retention:  cfg.OutboxRetention,
	})
	a.sweeper = sweeper.New(batchUC, reviewUC, sweeper.Config{
		RetryInterval:  cfg.RetrySweepInterval,
		TriageInterval: cfg.TriageSweepInterval,
	}, log)

	// HTTP
	if cfg.RateLimitRPS > 0 {
		a.limiter = middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	}
	a.handler = httpAdapter.NewRouter(httpAdapter.RouterConfig{
		DisbursementHandler:   handler.NewDisbursementHandler(disbursementUC),
		BatchHandler:          handler.NewBatchHandler(batchUC),
		ReconciliationHandler: handler.NewReconciliationHandler(reconciliationUC),
		ReviewHandler:         handler.NewReviewHandler(reviewUC),
		ReportHandler:         handler.NewReportHandler(reportUC, log),
		HealthHandler:         handler.NewHealthHandler(checks...),
		MetricsHandler:        promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		Metrics:               m,
		IdempotencyStore:      idempotency,
		IdempotencyTTL:        cfg.IdempotencyTTL,
		RateLimiter:           a.limiter,
		Logger:                log,
	})

	return a, nil
}

// newProcessors builds one processor per payment method on the configured rails.
func newProcessors(cfg *config.Config, deps usecase.ProcessorDeps) []usecase.RailProcessor {
	if cfg.RailMode == config.RailModeGateway {
		gw := rail.NewGateway(cfg.RailGatewayURL, cfg.RailGatewayAPIKey, cfg.RailTimeout, nil)
		return []usecase.RailProcessor{
			usecase.NewACHProcessor(deps, gw),
			usecase.NewCryptoProcessor(deps, gw),
			usecase.NewMultisigProcessor(deps, gw),
		}
	}

	return []usecase.RailProcessor{
		usecase.NewACHProcessor(deps, rail.NewSandboxClient(domain.MethodACH)),
		usecase.NewCryptoProcessor(deps, rail.NewSandboxClient(domain.MethodUSDC)),
		usecase.NewMultisigProcessor(deps, rail.NewSandboxSafeClient(cfg.SandboxThreshold)),
	}
}
