package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/vendorpay/internal/domain"
	"github.com/iho/vendorpay/internal/usecase"
)

const createReconciliationLog = `INSERT INTO reconciliation_logs (disbursement_id, match_type, confidence, external_reference,
	matched_amount, amount_difference, auto_reconciled, approved_by, processed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING id`

const listReconciliationLogs = `SELECT id, disbursement_id, match_type, confidence, external_reference, matched_amount,
	amount_difference, auto_reconciled, approved_by, processed_at
FROM reconciliation_logs WHERE disbursement_id = $1 ORDER BY processed_at, id`

// LogRepository implements usecase.ReconciliationLogRepository.
type LogRepository struct {
	db DBTX
}

// NewLogRepository creates a new LogRepository.
func NewLogRepository(pool *pgxpool.Pool) *LogRepository {
	return &LogRepository{db: pool}
}

func (r *LogRepository) Create(ctx context.Context, tx usecase.Transaction, e *domain.ReconciliationLogEntry) error {
	q, err := pgxTx(tx)
	if err != nil {
		return err
	}

	err = q.QueryRow(ctx, createReconciliationLog,
		e.DisbursementID,
		string(e.MatchType),
		e.Confidence,
		e.ExternalReference,
		e.MatchedAmount,
		e.AmountDifference,
		e.AutoReconciled,
		e.ApprovedBy,
		timeToPgTimestamptz(e.ProcessedAt),
	).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("insert reconciliation log: %w", err)
	}
	return nil
}

func (r *LogRepository) ListByDisbursement(ctx context.Context, disbursementID int64) ([]*domain.ReconciliationLogEntry, error) {
	rows, err := r.db.Query(ctx, listReconciliationLogs, disbursementID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.ReconciliationLogEntry
	for rows.Next() {
		var (
			e           domain.ReconciliationLogEntry
			matchType   string
			processedAt pgtype.Timestamptz
		)
		if err := rows.Scan(
			&e.ID,
			&e.DisbursementID,
			&matchType,
			&e.Confidence,
			&e.ExternalReference,
			&e.MatchedAmount,
			&e.AmountDifference,
			&e.AutoReconciled,
			&e.ApprovedBy,
			&processedAt,
		); err != nil {
			return nil, err
		}
		e.MatchType = domain.MatchType(matchType)
		e.ProcessedAt = processedAt.Time
		out = append(out, &e)
	}

	return out, rows.Err()
}

const getPaymentRun = `SELECT id, name, status, scheduled_at, executed_at, created_at, updated_at
FROM payment_runs WHERE id = $1`

const updatePaymentRunStatus = `UPDATE payment_runs SET status = $2, updated_at = $3,
	executed_at = CASE WHEN $2 IN ('EXECUTED', 'PARTIALLY_EXECUTED') THEN $3 ELSE executed_at END
WHERE id = $1`

// RunRepository implements usecase.PaymentRunRepository.
type RunRepository struct {
	db DBTX
}

// NewRunRepository creates a new RunRepository.
func NewRunRepository(pool *pgxpool.Pool) *RunRepository {
	return &RunRepository{db: pool}
}

func (r *RunRepository) GetByID(ctx context.Context, id int64) (*domain.PaymentRun, error) {
	var (
		run                   domain.PaymentRun
		status                string
		scheduledAt, executed pgtype.Timestamptz
		createdAt, updatedAt  pgtype.Timestamptz
	)
	err := r.db.QueryRow(ctx, getPaymentRun, id).Scan(
		&run.ID, &run.Name, &status, &scheduledAt, &executed, &createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPaymentRunNotFound
		}
		return nil, err
	}

	run.Status = domain.PaymentRunStatus(status)
	run.ScheduledAt = timestamptzPtr(scheduledAt)
	run.ExecutedAt = timestamptzPtr(executed)
	run.CreatedAt = createdAt.Time
	run.UpdatedAt = updatedAt.Time
	return &run, nil
}

func (r *RunRepository) UpdateStatus(ctx context.Context, tx usecase.Transaction, id int64, status domain.PaymentRunStatus, at time.Time) error {
	q, err := pgxTx(tx)
	if err != nil {
		return err
	}
	tag, err := q.Exec(ctx, updatePaymentRunStatus, id, string(status), timeToPgTimestamptz(at))
	if err != nil {
		return fmt.Errorf("update payment run %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrPaymentRunNotFound
	}
	return nil
}

const getInvoice = `SELECT id, vendor_id, status, amount, currency FROM invoices WHERE id = $1`

const markInvoicePaid = `UPDATE invoices SET status = 'PAID', paid_at = $2, updated_at = $2 WHERE id = $1`

// InvoiceStore implements usecase.InvoiceStore over the invoices table.
type InvoiceStore struct {
	db DBTX
}

// NewInvoiceStore creates a new InvoiceStore.
func NewInvoiceStore(pool *pgxpool.Pool) *InvoiceStore {
	return &InvoiceStore{db: pool}
}

func (s *InvoiceStore) GetInvoice(ctx context.Context, id int64) (*domain.Invoice, error) {
	var (
		inv    domain.Invoice
		status string
	)
	err := s.db.QueryRow(ctx, getInvoice, id).Scan(&inv.ID, &inv.VendorID, &status, &inv.Amount, &inv.Currency)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %d", domain.ErrInvoiceNotFound, id)
		}
		return nil, err
	}
	inv.Status = domain.InvoiceStatus(status)
	return &inv, nil
}

func (s *InvoiceStore) MarkPaid(ctx context.Context, tx usecase.Transaction, id int64, at time.Time) error {
	q, err := pgxTx(tx)
	if err != nil {
		return err
	}
	tag, err := q.Exec(ctx, markInvoicePaid, id, timeToPgTimestamptz(at))
	if err != nil {
		return fmt.Errorf("mark invoice %d paid: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %d", domain.ErrInvoiceNotFound, id)
	}
	return nil
}

const getVendorPaymentDetails = `SELECT vendor_id, preferred_method, bank_routing_number, bank_account_number,
	crypto_address, safe_address, safe_threshold
FROM vendor_payment_details WHERE vendor_id = $1`

// VendorStore implements usecase.VendorStore over the vendor_payment_details table.
type VendorStore struct {
	db DBTX
}

// NewVendorStore creates a new VendorStore.
func NewVendorStore(pool *pgxpool.Pool) *VendorStore {
	return &VendorStore{db: pool}
}

func (s *VendorStore) GetVendorPaymentDetails(ctx context.Context, vendorID int64) (*domain.VendorPaymentDetails, error) {
	var (
		v         domain.VendorPaymentDetails
		preferred string
	)
	err := s.db.QueryRow(ctx, getVendorPaymentDetails, vendorID).Scan(
		&v.VendorID,
		&preferred,
		&v.BankRoutingNumber,
		&v.BankAccountNumber,
		&v.CryptoAddress,
		&v.SafeAddress,
		&v.SafeThreshold,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %d", domain.ErrVendorNotFound, vendorID)
		}
		return nil, err
	}
	v.PreferredMethod = domain.PaymentMethod(preferred)
	return &v, nil
}

var (
	_ usecase.ReconciliationLogRepository = (*LogRepository)(nil)
	_ usecase.PaymentRunRepository        = (*RunRepository)(nil)
	_ usecase.InvoiceStore                = (*InvoiceStore)(nil)
	_ usecase.VendorStore                 = (*VendorStore)(nil)
)
