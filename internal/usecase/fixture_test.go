package usecase_test

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/iho/vendorpay/internal/adapter/repository/memory"
	"github.com/iho/vendorpay/internal/domain"
	"github.com/iho/vendorpay/internal/infrastructure/lock"
	"github.com/iho/vendorpay/internal/infrastructure/metrics"
	"github.com/iho/vendorpay/internal/usecase"
)

type seqIDs struct{ n atomic.Int64 }

func (s *seqIDs) Generate() string { return fmt.Sprintf("evt-%d", s.n.Add(1)) }

// fixture wires use cases over the memory store.
type fixture struct {
	t       *testing.T
	store   *memory.Store
	locker  *lock.KeyedMutex
	ids     *seqIDs
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return &fixture{
		t:       t,
		store:   memory.NewStore(),
		locker:  lock.NewKeyedMutex(),
		ids:     &seqIDs{},
		metrics: metrics.NewWithRegisterer(prometheus.NewRegistry()),
		logger:  zerolog.Nop(),
	}
}

func (f *fixture) processorDeps() usecase.ProcessorDeps {
	return usecase.ProcessorDeps{
		TxManager:     f.store,
		Disbursements: f.store.Disbursements(),
		Invoices:      f.store.Invoices(),
		Outbox:        f.store.Outbox(),
		IDGen:         f.ids,
		Locker:        f.locker,
		RailTimeout:   time.Second,
		Logger:        f.logger,
		Metrics:       f.metrics,
	}
}

func (f *fixture) disbursementUseCase() *usecase.DisbursementUseCase {
	return usecase.NewDisbursementUseCase(
		f.store, f.store.Disbursements(), f.store.Logs(), f.store.Reviews(), f.store.Invoices(), f.store.Vendors(),
		f.store.Outbox(), f.ids, f.locker, nil, f.logger, f.metrics,
	)
}

func (f *fixture) batchUseCase(cfg usecase.BatchConfig, processors ...usecase.RailProcessor) *usecase.BatchUseCase {
	return usecase.NewBatchUseCase(
		f.store, f.store.Disbursements(), f.store.Runs(), f.store.Outbox(), f.ids, f.locker, nil,
		processors, cfg, f.logger, f.metrics,
	)
}

func (f *fixture) reconciliationUseCase() *usecase.ReconciliationUseCase {
	return usecase.NewReconciliationUseCase(
		f.store, f.store.Disbursements(), f.store.Reviews(), f.store.Logs(), f.store.Outbox(), f.ids,
		f.locker, nil, domain.DefaultRuleSet(), f.logger, f.metrics,
	)
}

func (f *fixture) reviewUseCase() *usecase.ReviewUseCase {
	return usecase.NewReviewUseCase(
		f.store, f.store.Disbursements(), f.store.Reviews(), f.store.Logs(), f.store.Outbox(), f.ids,
		f.locker, nil, usecase.DefaultTriagePolicy(), f.logger, f.metrics,
	)
}

// seedPending stores a PENDING disbursement with a payable invoice of the same id.
func (f *fixture) seedPending(id int64, method domain.PaymentMethod, amount int64, runID *int64) *domain.Disbursement {
	now := time.Now().UTC()
	f.store.Invoices().Put(&domain.Invoice{ID: id, VendorID: 100 + id, Status: domain.InvoiceApproved, Amount: amount, Currency: "USD"})

	d := &domain.Disbursement{
		ID:           id,
		InvoiceID:    id,
		VendorID:     100 + id,
		PaymentRunID: runID,
		Amount:       amount,
		Currency:     "USD",
		Method:       method,
		Status:       domain.StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	switch method {
	case domain.MethodACH:
		d.DestinationAccount, d.DestinationRouting = "000123456789", "021000021"
	case domain.MethodUSDC:
		d.DestinationAccount = "0x9f8F72aA9304c8B593d555F12eF6589cC3A579A2"
	case domain.MethodSafeMultisig:
		d.DestinationAccount, d.SafeThreshold = "0x5afe000000000000000000000000000000000001", 2
	}
	f.store.Disbursements().Put(d)
	return d
}

// seedConfirmed stores a CONFIRMED disbursement executed at executedAt.
func (f *fixture) seedConfirmed(id int64, method domain.PaymentMethod, amount int64, executedAt time.Time, ref domain.ExternalReference) *domain.Disbursement {
	d := f.seedPending(id, method, amount, nil)
	d.Status = domain.StatusConfirmed
	d.ExecutedAt = &executedAt
	d.Reference = ref
	f.store.Disbursements().Put(d)
	return d
}

func (f *fixture) seedRun(id int64) *int64 {
	f.store.Runs().Put(&domain.PaymentRun{ID: id, Name: fmt.Sprintf("run-%d", id), Status: domain.RunStatusScheduled, CreatedAt: time.Now().UTC()})
	return &id
}

func (f *fixture) seedReview(id, disbursementID int64, confidence float64, diff int64) *domain.ReconciliationReview {
	r := &domain.ReconciliationReview{
		ID:                id,
		DisbursementID:    disbursementID,
		MatchType:         domain.MatchBankStatement,
		Confidence:        confidence,
		ExternalReference: fmt.Sprintf("stmt-%d", id),
		ExternalAmount:    10000 + diff,
		AmountDifference:  diff,
		Status:            domain.ReviewPending,
		ReviewReason:      domain.ReasonLowConfidence,
		CreatedAt:         time.Now().UTC().Add(time.Duration(id) * time.Millisecond),
	}
	f.store.Reviews().Put(r)
	return r
}

func (f *fixture) now() time.Time { return time.Now().UTC() }
