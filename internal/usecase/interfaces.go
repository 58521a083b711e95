package usecase

import (
	"context"
	"time"

	"github.com/iho/vendorpay/internal/domain"
)

// DisbursementRepository defines data access for disbursements.
type DisbursementRepository interface {
	Create(ctx context.Context, tx Transaction, d *domain.Disbursement) error
	GetByID(ctx context.Context, id int64) (*domain.Disbursement, error)
	GetByIDForUpdate(ctx context.Context, tx Transaction, id int64) (*domain.Disbursement, error)
	// Update persists d only if the stored version still equals d.Version and
	// bumps d.Version on success. A stale version yields domain.ErrConcurrentModification.
	Update(ctx context.Context, tx Transaction, d *domain.Disbursement) error
	ListByRunAndStatus(ctx context.Context, runID int64, status domain.DisbursementStatus) ([]*domain.Disbursement, error)
	// ListByStatusSince returns disbursements in status last updated at or after since.
	ListByStatusSince(ctx context.Context, status domain.DisbursementStatus, since time.Time) ([]*domain.Disbursement, error)
	// ListUnreconciled returns CONFIRMED disbursements of the given methods settled at or after since.
	ListUnreconciled(ctx context.Context, methods []domain.PaymentMethod, since time.Time) ([]*domain.Disbursement, error)
	ListCreatedBetween(ctx context.Context, r domain.DateRange) ([]*domain.Disbursement, error)
}

// ReviewRepository defines data access for reconciliation reviews.
type ReviewRepository interface {
	Create(ctx context.Context, tx Transaction, r *domain.ReconciliationReview) error
	GetByID(ctx context.Context, id int64) (*domain.ReconciliationReview, error)
	GetByIDForUpdate(ctx context.Context, tx Transaction, id int64) (*domain.ReconciliationReview, error)
	Update(ctx context.Context, tx Transaction, r *domain.ReconciliationReview) error
	List(ctx context.Context, filter domain.ReviewFilter) ([]*domain.ReconciliationReview, int, error)
	HasPending(ctx context.Context, tx Transaction, disbursementID int64, externalRef string) (bool, error)
	// ListPendingForDisbursement locks and returns the disbursement's open reviews, oldest first.
	ListPendingForDisbursement(ctx context.Context, tx Transaction, disbursementID int64) ([]*domain.ReconciliationReview, error)
}

// ReconciliationLogRepository defines data access for the append-only reconciliation log.
type ReconciliationLogRepository interface {
	Create(ctx context.Context, tx Transaction, entry *domain.ReconciliationLogEntry) error
	ListByDisbursement(ctx context.Context, disbursementID int64) ([]*domain.ReconciliationLogEntry, error)
}

// PaymentRunRepository defines data access for payment runs.
type PaymentRunRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.PaymentRun, error)
	UpdateStatus(ctx context.Context, tx Transaction, id int64, status domain.PaymentRunStatus, at time.Time) error
}

// InvoiceStore is the invoice collaborator contract.
type InvoiceStore interface {
	GetInvoice(ctx context.Context, id int64) (*domain.Invoice, error)
	MarkPaid(ctx context.Context, tx Transaction, id int64, at time.Time) error
}

// VendorStore is the vendor profile collaborator contract.
type VendorStore interface {
	GetVendorPaymentDetails(ctx context.Context, vendorID int64) (*domain.VendorPaymentDetails, error)
}

// OutboxRepository defines data access for outbox events.
type OutboxRepository interface {
	Create(ctx context.Context, tx Transaction, event *domain.OutboxEvent) error
	GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)
	MarkPublished(ctx context.Context, id string, publishedAt time.Time) error
	DeletePublished(ctx context.Context, before time.Time) error
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TransactionManager handles transaction lifecycle.
type TransactionManager interface {
	Begin(ctx context.Context) (Transaction, error)
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// Locker serializes mutations of a single key across goroutines or instances.
type Locker interface {
	// Lock blocks until key is held or ctx is done. The returned func releases it.
	Lock(ctx context.Context, key string) (func(), error)
}

// Retrier retries an operation that failed with a transient error.
type Retrier interface {
	Retry(ctx context.Context, operation func() error) error
}

// Cache defines caching operations.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// IdempotencyStore handles idempotency key storage.
type IdempotencyStore interface {
	// CheckAndSet atomically checks if key exists, sets if not.
	// Returns (exists, existingValue, error).
	CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	// Update updates an existing key with the final response.
	Update(ctx context.Context, key string, response []byte, ttl time.Duration) error
	// Release drops a claimed key so the request can be retried.
	Release(ctx context.Context, key string) error
}
