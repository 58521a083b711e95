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

const disbursementColumns = `id, invoice_id, vendor_id, payment_run_id, amount, currency, method, status,
	transaction_id, bank_reference, tx_hash, block_number, confirmations, signature_count,
	destination_account, destination_routing, safe_threshold,
	reconciled_at, reconciliation_type, reconciliation_confidence,
	retry_count, failure_reason, scheduled_at, executed_at, version, created_at, updated_at, requires_repair`

const createDisbursement = `INSERT INTO disbursements (invoice_id, vendor_id, payment_run_id, amount, currency, method, status,
	destination_account, destination_routing, safe_threshold, scheduled_at, version, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 1, $12, $13)
RETURNING id`

const getDisbursementByID = `SELECT ` + disbursementColumns + ` FROM disbursements WHERE id = $1`

const getDisbursementForUpdate = getDisbursementByID + ` FOR UPDATE`

const updateDisbursement = `UPDATE disbursements SET
	status = $3, transaction_id = $4, bank_reference = $5, tx_hash = $6, block_number = $7,
	confirmations = $8, signature_count = $9, reconciled_at = $10, reconciliation_type = $11,
	reconciliation_confidence = $12, retry_count = $13, failure_reason = $14, executed_at = $15,
	updated_at = $16, requires_repair = $17, version = version + 1
WHERE id = $1 AND version = $2`

const listDisbursementsByRunAndStatus = `SELECT ` + disbursementColumns + ` FROM disbursements
WHERE payment_run_id = $1 AND status = $2 ORDER BY id`

const listDisbursementsByStatusSince = `SELECT ` + disbursementColumns + ` FROM disbursements
WHERE status = $1 AND updated_at >= $2 ORDER BY id`

const listUnreconciledDisbursements = `SELECT ` + disbursementColumns + ` FROM disbursements
WHERE status = 'CONFIRMED' AND method = ANY($1) AND COALESCE(executed_at, scheduled_at, created_at) >= $2
ORDER BY id`

const listDisbursementsCreatedBetween = `SELECT ` + disbursementColumns + ` FROM disbursements
WHERE created_at >= $1 AND created_at < $2 ORDER BY id`

// DisbursementRepository implements usecase.DisbursementRepository.
type DisbursementRepository struct {
	db DBTX
}

// NewDisbursementRepository creates a new DisbursementRepository.
func NewDisbursementRepository(pool *pgxpool.Pool) *DisbursementRepository {
	return &DisbursementRepository{db: pool}
}

// Create inserts d and sets its ID and initial version.
func (r *DisbursementRepository) Create(ctx context.Context, tx usecase.Transaction, d *domain.Disbursement) error {
	q, err := pgxTx(tx)
	if err != nil {
		return err
	}

	err = q.QueryRow(ctx, createDisbursement,
		d.InvoiceID,
		d.VendorID,
		d.PaymentRunID,
		d.Amount,
		d.Currency,
		string(d.Method),
		string(d.Status),
		d.DestinationAccount,
		d.DestinationRouting,
		d.SafeThreshold,
		optionalTimestamptz(d.ScheduledAt),
		timeToPgTimestamptz(d.CreatedAt),
		timeToPgTimestamptz(d.UpdatedAt),
	).Scan(&d.ID)
	if err != nil {
		return fmt.Errorf("insert disbursement: %w", err)
	}

	d.Version = 1
	return nil
}

// GetByID retrieves a disbursement by ID.
func (r *DisbursementRepository) GetByID(ctx context.Context, id int64) (*domain.Disbursement, error) {
	return scanDisbursementRow(r.db.QueryRow(ctx, getDisbursementByID, id))
}

// GetByIDForUpdate retrieves a disbursement and locks its row until tx ends.
func (r *DisbursementRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id int64) (*domain.Disbursement, error) {
	q, err := pgxTx(tx)
	if err != nil {
		return nil, err
	}
	return scanDisbursementRow(q.QueryRow(ctx, getDisbursementForUpdate, id))
}

// Update writes the mutable columns of d if the stored version still matches.
func (r *DisbursementRepository) Update(ctx context.Context, tx usecase.Transaction, d *domain.Disbursement) error {
	q, err := pgxTx(tx)
	if err != nil {
		return err
	}

	var reconType *string
	if d.ReconciliationType != nil {
		s := string(*d.ReconciliationType)
		reconType = &s
	}

	tag, err := q.Exec(ctx, updateDisbursement,
		d.ID,
		d.Version,
		string(d.Status),
		d.Reference.TransactionID,
		d.Reference.BankReference,
		d.Reference.TxHash,
		d.Reference.BlockNumber,
		d.Reference.Confirmations,
		d.Reference.SignatureCount,
		optionalTimestamptz(d.ReconciledAt),
		reconType,
		d.ReconciliationConfidence,
		d.RetryCount,
		d.FailureReason,
		optionalTimestamptz(d.ExecutedAt),
		timeToPgTimestamptz(d.UpdatedAt),
		d.RequiresRepair,
	)
	if err != nil {
		return fmt.Errorf("update disbursement %d: %w", d.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: disbursement %d version %d", domain.ErrConcurrentModification, d.ID, d.Version)
	}

	d.Version++
	return nil
}

// ListByRunAndStatus returns the run's disbursements in status, by id.
func (r *DisbursementRepository) ListByRunAndStatus(ctx context.Context, runID int64, status domain.DisbursementStatus) ([]*domain.Disbursement, error) {
	return r.list(ctx, listDisbursementsByRunAndStatus, runID, string(status))
}

// ListByStatusSince returns disbursements in status updated at or after since.
func (r *DisbursementRepository) ListByStatusSince(ctx context.Context, status domain.DisbursementStatus, since time.Time) ([]*domain.Disbursement, error) {
	return r.list(ctx, listDisbursementsByStatusSince, string(status), timeToPgTimestamptz(since))
}

// ListUnreconciled returns CONFIRMED disbursements of methods settled at or after since.
func (r *DisbursementRepository) ListUnreconciled(ctx context.Context, methods []domain.PaymentMethod, since time.Time) ([]*domain.Disbursement, error) {
	names := make([]string, len(methods))
	for i, m := range methods {
		names[i] = string(m)
	}
	return r.list(ctx, listUnreconciledDisbursements, names, timeToPgTimestamptz(since))
}

// ListCreatedBetween returns disbursements created within [From, To).
func (r *DisbursementRepository) ListCreatedBetween(ctx context.Context, dr domain.DateRange) ([]*domain.Disbursement, error) {
	return r.list(ctx, listDisbursementsCreatedBetween, timeToPgTimestamptz(dr.From), timeToPgTimestamptz(dr.To))
}

func (r *DisbursementRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Disbursement, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Disbursement
	for rows.Next() {
		d, err := scanDisbursement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}

	return out, rows.Err()
}

func scanDisbursementRow(row pgx.Row) (*domain.Disbursement, error) {
	d, err := scanDisbursement(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDisbursementNotFound
		}
		return nil, err
	}
	return d, nil
}

func scanDisbursement(row pgx.Row) (*domain.Disbursement, error) {
	var (
		d                         domain.Disbursement
		method, status            string
		reconType                 *string
		reconciledAt, scheduledAt pgtype.Timestamptz
		executedAt                pgtype.Timestamptz
		createdAt, updatedAt      pgtype.Timestamptz
	)

	err := row.Scan(
		&d.ID,
		&d.InvoiceID,
		&d.VendorID,
		&d.PaymentRunID,
		&d.Amount,
		&d.Currency,
		&method,
		&status,
		&d.Reference.TransactionID,
		&d.Reference.BankReference,
		&d.Reference.TxHash,
		&d.Reference.BlockNumber,
		&d.Reference.Confirmations,
		&d.Reference.SignatureCount,
		&d.DestinationAccount,
		&d.DestinationRouting,
		&d.SafeThreshold,
		&reconciledAt,
		&reconType,
		&d.ReconciliationConfidence,
		&d.RetryCount,
		&d.FailureReason,
		&scheduledAt,
		&executedAt,
		&d.Version,
		&createdAt,
		&updatedAt,
		&d.RequiresRepair,
	)
	if err != nil {
		return nil, err
	}

	d.Method = domain.PaymentMethod(method)
	d.Status = domain.DisbursementStatus(status)
	if reconType != nil {
		t := domain.ReconciliationType(*reconType)
		d.ReconciliationType = &t
	}
	d.ReconciledAt = timestamptzPtr(reconciledAt)
	d.ScheduledAt = timestamptzPtr(scheduledAt)
	d.ExecutedAt = timestamptzPtr(executedAt)
	d.CreatedAt = createdAt.Time
	d.UpdatedAt = updatedAt.Time

	return &d, nil
}

var _ usecase.DisbursementRepository = (*DisbursementRepository)(nil)
