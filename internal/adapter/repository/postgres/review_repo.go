package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/vendorpay/internal/domain"
	"github.com/iho/vendorpay/internal/usecase"
)

const reviewColumns = `id, disbursement_id, match_type, confidence, external_reference, external_amount,
	amount_difference, status, review_reason, approved_by, rejected_by, rejection_reason,
	created_at, resolved_at, updated_at`

const createReview = `INSERT INTO reconciliation_reviews (disbursement_id, match_type, confidence, external_reference,
	external_amount, amount_difference, status, review_reason, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING id`

const getReviewByID = `SELECT ` + reviewColumns + ` FROM reconciliation_reviews WHERE id = $1`

const getReviewForUpdate = getReviewByID + ` FOR UPDATE`

const updateReview = `UPDATE reconciliation_reviews SET
	status = $2, approved_by = $3, rejected_by = $4, rejection_reason = $5, resolved_at = $6, updated_at = $7
WHERE id = $1`

const hasPendingReview = `SELECT EXISTS (
	SELECT 1 FROM reconciliation_reviews
	WHERE disbursement_id = $1 AND LOWER(external_reference) = LOWER($2) AND status = 'PENDING_REVIEW'
)`

const listPendingReviewsForDisbursement = `SELECT ` + reviewColumns + ` FROM reconciliation_reviews
WHERE disbursement_id = $1 AND status = 'PENDING_REVIEW' ORDER BY created_at, id FOR UPDATE`

// ReviewRepository implements usecase.ReviewRepository.
type ReviewRepository struct {
	db DBTX
}

// NewReviewRepository creates a new ReviewRepository.
func NewReviewRepository(pool *pgxpool.Pool) *ReviewRepository {
	return &ReviewRepository{db: pool}
}

func (r *ReviewRepository) Create(ctx context.Context, tx usecase.Transaction, review *domain.ReconciliationReview) error {
	q, err := pgxTx(tx)
	if err != nil {
		return err
	}

	err = q.QueryRow(ctx, createReview,
		review.DisbursementID,
		string(review.MatchType),
		review.Confidence,
		review.ExternalReference,
		review.ExternalAmount,
		review.AmountDifference,
		string(review.Status),
		string(review.ReviewReason),
		timeToPgTimestamptz(review.CreatedAt),
		timeToPgTimestamptz(review.UpdatedAt),
	).Scan(&review.ID)
	if err != nil {
		return fmt.Errorf("insert review: %w", err)
	}
	return nil
}

func (r *ReviewRepository) GetByID(ctx context.Context, id int64) (*domain.ReconciliationReview, error) {
	return scanReviewRow(r.db.QueryRow(ctx, getReviewByID, id))
}

func (r *ReviewRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id int64) (*domain.ReconciliationReview, error) {
	q, err := pgxTx(tx)
	if err != nil {
		return nil, err
	}
	return scanReviewRow(q.QueryRow(ctx, getReviewForUpdate, id))
}

func (r *ReviewRepository) Update(ctx context.Context, tx usecase.Transaction, review *domain.ReconciliationReview) error {
	q, err := pgxTx(tx)
	if err != nil {
		return err
	}

	tag, err := q.Exec(ctx, updateReview,
		review.ID,
		string(review.Status),
		review.ApprovedBy,
		review.RejectedBy,
		review.RejectionReason,
		optionalTimestamptz(review.ResolvedAt),
		timeToPgTimestamptz(review.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("update review %d: %w", review.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrReviewNotFound
	}
	return nil
}

// List returns the filtered page ordered by creation time and the total match count.
func (r *ReviewRepository) List(ctx context.Context, filter domain.ReviewFilter) ([]*domain.ReconciliationReview, int, error) {
	where, args := reviewWhere(filter)

	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM reconciliation_reviews"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := "SELECT " + reviewColumns + " FROM reconciliation_reviews" + where + " ORDER BY created_at, id"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*domain.ReconciliationReview
	for rows.Next() {
		rv, err := scanReview(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, rv)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return out, total, nil
}

// HasPending reports whether an open review exists for the disbursement and reference.
func (r *ReviewRepository) HasPending(ctx context.Context, tx usecase.Transaction, disbursementID int64, externalRef string) (bool, error) {
	q, err := pgxTx(tx)
	if err != nil {
		return false, err
	}
	var exists bool
	err = q.QueryRow(ctx, hasPendingReview, disbursementID, externalRef).Scan(&exists)
	return exists, err
}

// ListPendingForDisbursement locks and returns the disbursement's open reviews.
func (r *ReviewRepository) ListPendingForDisbursement(ctx context.Context, tx usecase.Transaction, disbursementID int64) ([]*domain.ReconciliationReview, error) {
	q, err := pgxTx(tx)
	if err != nil {
		return nil, err
	}
	rows, err := q.Query(ctx, listPendingReviewsForDisbursement, disbursementID)
	if err != nil {
		return nil, fmt.Errorf("list open reviews of disbursement %d: %w", disbursementID, err)
	}
	defer rows.Close()

	var out []*domain.ReconciliationReview
	for rows.Next() {
		rv, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rv)
	}
	return out, rows.Err()
}

func reviewWhere(f domain.ReviewFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.Status != "" {
		add("status = $%d", string(f.Status))
	}
	if f.Reason != "" {
		add("review_reason = $%d", string(f.Reason))
	}
	if f.MinConfidence != nil {
		add("confidence >= $%d", *f.MinConfidence)
	}
	if f.MaxConfidence != nil {
		add("confidence <= $%d", *f.MaxConfidence)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func scanReviewRow(row pgx.Row) (*domain.ReconciliationReview, error) {
	rv, err := scanReview(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrReviewNotFound
		}
		return nil, err
	}
	return rv, nil
}

func scanReview(row pgx.Row) (*domain.ReconciliationReview, error) {
	var (
		rv                        domain.ReconciliationReview
		matchType, status, reason string
		createdAt, updatedAt      pgtype.Timestamptz
		resolvedAt                pgtype.Timestamptz
	)

	err := row.Scan(
		&rv.ID,
		&rv.DisbursementID,
		&matchType,
		&rv.Confidence,
		&rv.ExternalReference,
		&rv.ExternalAmount,
		&rv.AmountDifference,
		&status,
		&reason,
		&rv.ApprovedBy,
		&rv.RejectedBy,
		&rv.RejectionReason,
		&createdAt,
		&resolvedAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	rv.MatchType = domain.MatchType(matchType)
	rv.Status = domain.ReviewStatus(status)
	rv.ReviewReason = domain.ReviewReason(reason)
	rv.CreatedAt = createdAt.Time
	rv.ResolvedAt = timestamptzPtr(resolvedAt)
	rv.UpdatedAt = updatedAt.Time

	return &rv, nil
}

var _ usecase.ReviewRepository = (*ReviewRepository)(nil)
