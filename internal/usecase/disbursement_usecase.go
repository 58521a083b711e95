package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/vendorpay/internal/domain"
	"github.com/iho/vendorpay/internal/infrastructure/metrics"
)

// DisbursementUseCase handles disbursement creation, status reads and the
// manual reconciliation shortcuts.
type DisbursementUseCase struct {
	txManager     TransactionManager
	disbursements DisbursementRepository
	logs          ReconciliationLogRepository
	invoices      InvoiceStore
	vendors       VendorStore
	locker        Locker
	writer        *disbursementWriter
	closer        *reviewCloser
	logger        zerolog.Logger
	metrics       *metrics.Metrics
}

// NewDisbursementUseCase creates a new DisbursementUseCase.
func NewDisbursementUseCase(
	txManager TransactionManager,
	disbursements DisbursementRepository,
	logs ReconciliationLogRepository,
	reviews ReviewRepository,
	invoices InvoiceStore,
	vendors VendorStore,
	outbox OutboxRepository,
	idGen IDGenerator,
	locker Locker,
	retrier Retrier,
	logger zerolog.Logger,
	metrics *metrics.Metrics,
) *DisbursementUseCase {
	return &DisbursementUseCase{
		txManager:     txManager,
		disbursements: disbursements,
		logs:          logs,
		invoices:      invoices,
		vendors:       vendors,
		locker:        locker,
		writer: &disbursementWriter{
			txManager:     txManager,
			disbursements: disbursements,
			outbox:        outbox,
			idGen:         idGen,
			retrier:       retrier,
		},
		closer:  &reviewCloser{reviews: reviews, outbox: outbox, idGen: idGen},
		logger:  logger.With().Str("component", "disbursement").Logger(),
		metrics: metrics,
	}
}

// CreateDisbursementInput represents input for creating a disbursement.
type CreateDisbursementInput struct {
	InvoiceID int64
	// Method overrides the vendor's preferred method when set.
	Method       domain.PaymentMethod
	PaymentRunID *int64
	ScheduledAt  *time.Time
}

// Create creates a PENDING disbursement for a payable invoice, snapshotting the
// vendor's destination details for the chosen method.
func (uc *DisbursementUseCase) Create(ctx context.Context, input CreateDisbursementInput) (*domain.Disbursement, error) {
	invoice, err := uc.invoices.GetInvoice(ctx, input.InvoiceID)
	if err != nil {
		return nil, err
	}
	if !invoice.Status.Payable() {
		return nil, fmt.Errorf("%w: invoice %d is %s", domain.ErrInvoiceNotPayable, invoice.ID, invoice.Status)
	}
	if err := domain.ValidateAmount(invoice.Amount, invoice.Currency); err != nil {
		return nil, err
	}
	if err := domain.ValidateCurrency(invoice.Currency); err != nil {
		return nil, err
	}

	vendor, err := uc.vendors.GetVendorPaymentDetails(ctx, invoice.VendorID)
	if err != nil {
		return nil, err
	}

	method := input.Method
	if method == "" {
		method = vendor.PreferredMethod
	}
	if !method.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedMethod, method)
	}

	account, routing, threshold, err := vendor.Destination(method)
	if err != nil {
		return nil, fmt.Errorf("vendor %d, method %s: %w", vendor.VendorID, method, err)
	}

	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(txCtx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	now := time.Now().UTC()
	d := &domain.Disbursement{
		InvoiceID:          invoice.ID,
		VendorID:           invoice.VendorID,
		PaymentRunID:       input.PaymentRunID,
		Amount:             invoice.Amount,
		Currency:           strings.ToUpper(invoice.Currency),
		Method:             method,
		Status:             domain.StatusPending,
		DestinationAccount: account,
		DestinationRouting: routing,
		SafeThreshold:      threshold,
		ScheduledAt:        input.ScheduledAt,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := uc.disbursements.Create(txCtx, tx, d); err != nil {
		return nil, err
	}

	if err := uc.writer.emit(txCtx, tx, d, domain.EventTypeDisbursementCreated); err != nil {
		return nil, err
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, err
	}

	if uc.metrics != nil {
		uc.metrics.DisbursementsCreated.WithLabelValues(string(method)).Inc()
	}
	uc.logger.Info().
		Int64("disbursement_id", d.ID).
		Int64("invoice_id", d.InvoiceID).
		Str("method", string(method)).
		Int64("amount", d.Amount).
		Msg("disbursement created")

	return d, nil
}

// PaymentStatus is the externally visible state of a disbursement.
type PaymentStatus struct {
	DisbursementID           int64
	InvoiceID                int64
	Method                   domain.PaymentMethod
	Status                   domain.DisbursementStatus
	Amount                   int64
	Currency                 string
	Reference                domain.ExternalReference
	FailureReason            string
	RetryCount               int
	ExecutedAt               *time.Time
	ReconciledAt             *time.Time
	ReconciliationType       *domain.ReconciliationType
	ReconciliationConfidence *float64
}

// GetStatus returns the current status of a disbursement.
func (uc *DisbursementUseCase) GetStatus(ctx context.Context, id int64) (*PaymentStatus, error) {
	d, err := uc.disbursements.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	return &PaymentStatus{
		DisbursementID:           d.ID,
		InvoiceID:                d.InvoiceID,
		Method:                   d.Method,
		Status:                   d.Status,
		Amount:                   d.Amount,
		Currency:                 d.Currency,
		Reference:                d.Reference,
		FailureReason:            d.FailureReason,
		RetryCount:               d.RetryCount,
		ExecutedAt:               d.ExecutedAt,
		ReconciledAt:             d.ReconciledAt,
		ReconciliationType:       d.ReconciliationType,
		ReconciliationConfidence: d.ReconciliationConfidence,
	}, nil
}

// History returns the reconciliation log of a disbursement.
func (uc *DisbursementUseCase) History(ctx context.Context, id int64) ([]*domain.ReconciliationLogEntry, error) {
	if _, err := uc.disbursements.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return uc.logs.ListByDisbursement(ctx, id)
}

// Reconcile manually reconciles a CONFIRMED bank-settled disbursement against a bank reference.
func (uc *DisbursementUseCase) Reconcile(ctx context.Context, id int64, bankReference string) error {
	bankReference = strings.TrimSpace(bankReference)
	if bankReference == "" {
		return fmt.Errorf("%w: bank reference is required", domain.ErrReferenceMismatch)
	}

	return uc.reconcileManually(ctx, id, domain.MatchManualBank, func(d *domain.Disbursement) (string, error) {
		if d.Method.Family() != domain.FamilyBank {
			return "", fmt.Errorf("%w: %s disbursement cannot be reconciled against a bank reference", domain.ErrMethodMismatch, d.Method)
		}
		if d.Reference.BankReference == "" {
			d.Reference.BankReference = bankReference
		}
		return bankReference, nil
	})
}

// MatchTransaction manually reconciles a CONFIRMED on-chain disbursement. The
// hash must equal the hash recorded at execution.
func (uc *DisbursementUseCase) MatchTransaction(ctx context.Context, id int64, txHash string) error {
	return uc.reconcileManually(ctx, id, domain.MatchManualChain, func(d *domain.Disbursement) (string, error) {
		if d.Method.Family() != domain.FamilyOnChain {
			return "", fmt.Errorf("%w: %s disbursement has no transaction hash", domain.ErrMethodMismatch, d.Method)
		}
		if !domain.SameAddress(d.Reference.TxHash, txHash) {
			return "", fmt.Errorf("%w: %q is not the recorded hash of disbursement %d", domain.ErrReferenceMismatch, txHash, d.ID)
		}
		return d.Reference.TxHash, nil
	})
}

// reconcileManually commits a MANUAL reconciliation at confidence 100. check
// validates d and returns the external reference to log.
func (uc *DisbursementUseCase) reconcileManually(
	ctx context.Context,
	id int64,
	matchType domain.MatchType,
	check func(d *domain.Disbursement) (string, error),
) error {
	err := withLock(ctx, uc.locker, id, func() error {
		_, err := uc.writer.apply(ctx, id, func(ctx context.Context, tx Transaction, d *domain.Disbursement) (string, error) {
			ref, err := check(d)
			if err != nil {
				return "", err
			}

			now := time.Now().UTC()
			if err := d.MarkReconciled(domain.ReconciliationManual, 100, now); err != nil {
				return "", err
			}

			entry := &domain.ReconciliationLogEntry{
				DisbursementID:    d.ID,
				MatchType:         matchType,
				Confidence:        100,
				ExternalReference: ref,
				MatchedAmount:     d.Amount,
				ApprovedBy:        ManualActor,
				ProcessedAt:       now,
			}
			if err := uc.logs.Create(ctx, tx, entry); err != nil {
				return "", err
			}
			if _, err := uc.closer.supersede(ctx, tx, d.ID, 0, now); err != nil {
				return "", err
			}
			return domain.EventTypeDisbursementReconciled, nil
		})
		return err
	})
	if err != nil {
		return err
	}

	if uc.metrics != nil {
		uc.metrics.Reconciliations.WithLabelValues(string(domain.ReconciliationManual)).Inc()
	}
	uc.logger.Info().Int64("disbursement_id", id).Str("match_type", string(matchType)).Msg("disbursement reconciled manually")

	return nil
}
