package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/vendorpay/internal/domain"
	"github.com/iho/vendorpay/internal/infrastructure/metrics"
)

// TriagePolicy decides which pending reviews auto-triage may resolve.
type TriagePolicy struct {
	ApproveMinConfidence float64
	// ApproveMaxAmountDifference is in currency units.
	ApproveMaxAmountDifference decimal.Decimal
	RejectBelowConfidence      float64
}

// DefaultTriagePolicy approves at confidence >= 85 with at most one currency
// unit of difference and rejects below 50.
func DefaultTriagePolicy() TriagePolicy {
	return TriagePolicy{
		ApproveMinConfidence:       85,
		ApproveMaxAmountDifference: decimal.NewFromInt(1),
		RejectBelowConfidence:      50,
	}
}

func (p TriagePolicy) approves(r *domain.ReconciliationReview, currency string) bool {
	return r.Confidence >= p.ApproveMinConfidence &&
		domain.ToMajor(r.AmountDifference, currency).LessThanOrEqual(p.ApproveMaxAmountDifference)
}

// ReviewPage is one page of a review listing.
type ReviewPage struct {
	Items  []*domain.ReconciliationReview
	Total  int
	Limit  int
	Offset int
}

// TriageResult reports an auto-triage sweep. Superseded counts reviews closed
// because their disbursement was already reconciled.
type TriageResult struct {
	Evaluated  int
	Approved   int
	Rejected   int
	Superseded int
	Untouched  int
	Errors     []string
}

// ReviewUseCase handles the manual review queue.
type ReviewUseCase struct {
	txManager     TransactionManager
	disbursements DisbursementRepository
	reviews       ReviewRepository
	logs          ReconciliationLogRepository
	outbox        OutboxRepository
	idGen         IDGenerator
	locker        Locker
	retrier       Retrier
	policy        TriagePolicy
	closer        *reviewCloser
	logger        zerolog.Logger
	metrics       *metrics.Metrics
}

// NewReviewUseCase creates a new ReviewUseCase.
func NewReviewUseCase(
	txManager TransactionManager,
	disbursements DisbursementRepository,
	reviews ReviewRepository,
	logs ReconciliationLogRepository,
	outbox OutboxRepository,
	idGen IDGenerator,
	locker Locker,
	retrier Retrier,
	policy TriagePolicy,
	logger zerolog.Logger,
	metrics *metrics.Metrics,
) *ReviewUseCase {
	return &ReviewUseCase{
		txManager:     txManager,
		disbursements: disbursements,
		reviews:       reviews,
		logs:          logs,
		outbox:        outbox,
		idGen:         idGen,
		locker:        locker,
		retrier:       retrier,
		policy:        policy,
		closer:        &reviewCloser{reviews: reviews, outbox: outbox, idGen: idGen},
		logger:        logger.With().Str("component", "review").Logger(),
		metrics:       metrics,
	}
}

// ListPending returns a page of reviews, PENDING_REVIEW unless the filter says otherwise.
func (uc *ReviewUseCase) ListPending(ctx context.Context, filter domain.ReviewFilter) (*ReviewPage, error) {
	if filter.Status == "" {
		filter.Status = domain.ReviewPending
	}
	filter.Limit, filter.Offset = domain.ValidatePagination(filter.Limit, filter.Offset)

	items, total, err := uc.reviews.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	return &ReviewPage{Items: items, Total: total, Limit: filter.Limit, Offset: filter.Offset}, nil
}

// Approve resolves a pending review: the review becomes APPROVED, the disbursement
// RECONCILED (MANUAL) and one log entry is written, all in one transaction.
func (uc *ReviewUseCase) Approve(ctx context.Context, reviewID int64, approver string) (*domain.ReconciliationReview, error) {
	approver = strings.TrimSpace(approver)
	if approver == "" {
		return nil, domain.ErrActorRequired
	}

	current, err := uc.reviews.GetByID(ctx, reviewID)
	if err != nil {
		return nil, err
	}

	var approved *domain.ReconciliationReview
	err = withLock(ctx, uc.locker, current.DisbursementID, func() error {
		return retry(ctx, uc.retrier, func() error {
			r, err := uc.approveOnce(ctx, reviewID, approver)
			if err != nil {
				return err
			}
			approved = r
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	if uc.metrics != nil {
		uc.metrics.ReviewsResolved.WithLabelValues(string(domain.ReviewApproved), actorKind(approver)).Inc()
		uc.metrics.Reconciliations.WithLabelValues(string(domain.ReconciliationManual)).Inc()
	}
	uc.logger.Info().
		Int64("review_id", reviewID).
		Int64("disbursement_id", approved.DisbursementID).
		Str("approver", approver).
		Msg("review approved")

	return approved, nil
}

func (uc *ReviewUseCase) approveOnce(ctx context.Context, reviewID int64, approver string) (*domain.ReconciliationReview, error) {
	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(txCtx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	review, err := uc.reviews.GetByIDForUpdate(txCtx, tx, reviewID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if err := review.Approve(approver, now); err != nil {
		return nil, fmt.Errorf("review %d: %w", reviewID, err)
	}

	d, err := uc.disbursements.GetByIDForUpdate(txCtx, tx, review.DisbursementID)
	if err != nil {
		return nil, err
	}
	if err := d.MarkReconciled(domain.ReconciliationManual, review.Confidence, now); err != nil {
		return nil, fmt.Errorf("disbursement %d: %w", d.ID, err)
	}

	if err := uc.disbursements.Update(txCtx, tx, d); err != nil {
		return nil, err
	}
	if err := uc.reviews.Update(txCtx, tx, review); err != nil {
		return nil, err
	}
	if _, err := uc.closer.supersede(txCtx, tx, d.ID, review.ID, now); err != nil {
		return nil, err
	}

	entry := &domain.ReconciliationLogEntry{
		DisbursementID:    d.ID,
		MatchType:         review.MatchType,
		Confidence:        review.Confidence,
		ExternalReference: review.ExternalReference,
		MatchedAmount:     review.ExternalAmount,
		AmountDifference:  review.AmountDifference,
		AutoReconciled:    false,
		ApprovedBy:        approver,
		ProcessedAt:       now,
	}
	if err := uc.logs.Create(txCtx, tx, entry); err != nil {
		return nil, err
	}

	if err := uc.emitReview(txCtx, tx, review, domain.EventTypeReviewApproved, approver, now); err != nil {
		return nil, err
	}
	if err := uc.outbox.Create(txCtx, tx, &domain.OutboxEvent{
		ID:            uc.idGen.Generate(),
		AggregateID:   formatID(d.ID),
		AggregateType: domain.AggregateTypeDisbursement,
		EventType:     domain.EventTypeDisbursementReconciled,
		Payload:       domain.NewDisbursementEvent(d, now),
		CreatedAt:     now,
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, err
	}

	return review, nil
}

// Reject resolves a pending review as REJECTED. The disbursement is not touched
// and stays eligible for a different match.
func (uc *ReviewUseCase) Reject(ctx context.Context, reviewID int64, rejector, reason string) (*domain.ReconciliationReview, error) {
	rejector = strings.TrimSpace(rejector)
	if rejector == "" {
		return nil, domain.ErrActorRequired
	}

	var rejected *domain.ReconciliationReview
	err := retry(ctx, uc.retrier, func() error {
		r, err := uc.rejectOnce(ctx, reviewID, rejector, reason)
		if err != nil {
			return err
		}
		rejected = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	if uc.metrics != nil {
		uc.metrics.ReviewsResolved.WithLabelValues(string(domain.ReviewRejected), actorKind(rejector)).Inc()
	}
	uc.logger.Info().
		Int64("review_id", reviewID).
		Int64("disbursement_id", rejected.DisbursementID).
		Str("rejector", rejector).
		Str("reason", reason).
		Msg("review rejected")

	return rejected, nil
}

func (uc *ReviewUseCase) rejectOnce(ctx context.Context, reviewID int64, rejector, reason string) (*domain.ReconciliationReview, error) {
	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(txCtx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	review, err := uc.reviews.GetByIDForUpdate(txCtx, tx, reviewID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if err := review.Reject(rejector, reason, now); err != nil {
		return nil, fmt.Errorf("review %d: %w", reviewID, err)
	}
	if err := uc.reviews.Update(txCtx, tx, review); err != nil {
		return nil, err
	}
	if err := uc.emitReview(txCtx, tx, review, domain.EventTypeReviewRejected, rejector, now); err != nil {
		return nil, err
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, err
	}

	return review, nil
}

// AutoTriagePending approves clearly good and rejects clearly bad pending reviews.
// Everything in between is left for a human. Reviews of a disbursement that is
// already reconciled are closed as superseded.
func (uc *ReviewUseCase) AutoTriagePending(ctx context.Context) (*TriageResult, error) {
	pending, err := uc.snapshotPending(ctx)
	if err != nil {
		return nil, err
	}

	result := &TriageResult{}
	for _, r := range pending {
		if ctx.Err() != nil {
			break
		}
		result.Evaluated++

		if err := uc.triageOne(ctx, r, result); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("review %d: %v", r.ID, err))
		}
	}

	uc.logger.Info().
		Int("evaluated", result.Evaluated).
		Int("approved", result.Approved).
		Int("rejected", result.Rejected).
		Int("superseded", result.Superseded).
		Int("untouched", result.Untouched).
		Int("errors", len(result.Errors)).
		Msg("auto-triage finished")

	return result, nil
}

func (uc *ReviewUseCase) triageOne(ctx context.Context, r *domain.ReconciliationReview, result *TriageResult) error {
	d, err := uc.disbursements.GetByID(ctx, r.DisbursementID)
	if err != nil {
		return err
	}
	if d.Status == domain.StatusReconciled {
		return uc.closeSuperseded(ctx, r.DisbursementID, result)
	}

	switch {
	case uc.policy.approves(r, d.Currency):
		_, err = uc.Approve(ctx, r.ID, AutoTriageActor)
		if err == nil {
			result.Approved++
		}
	case r.Confidence < uc.policy.RejectBelowConfidence:
		_, err = uc.Reject(ctx, r.ID, AutoTriageActor, string(domain.ReasonLowConfidence))
		if err == nil {
			result.Rejected++
		}
	default:
		result.Untouched++
	}

	switch {
	case errors.Is(err, domain.ErrReviewAlreadyResolved):
		// Closed by a sibling's approval earlier in this sweep.
		result.Untouched++
		return nil
	case errors.Is(err, domain.ErrAlreadyReconciled):
		return uc.closeSuperseded(ctx, r.DisbursementID, result)
	}
	return err
}

// closeSuperseded rejects every open review of a reconciled disbursement.
func (uc *ReviewUseCase) closeSuperseded(ctx context.Context, disbursementID int64, result *TriageResult) error {
	return retry(ctx, uc.retrier, func() error {
		txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
		defer cancel()

		tx, err := uc.txManager.Begin(txCtx)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback(txCtx) }()

		n, err := uc.closer.supersede(txCtx, tx, disbursementID, 0, time.Now().UTC())
		if err != nil {
			return err
		}
		if err := tx.Commit(txCtx); err != nil {
			return err
		}

		result.Superseded += n
		if n > 0 && uc.metrics != nil {
			uc.metrics.ReviewsResolved.WithLabelValues(string(domain.ReviewRejected), actorKind(SupersedeActor)).Add(float64(n))
		}
		if n > 0 {
			uc.logger.Info().Int64("disbursement_id", disbursementID).Int("reviews", n).Msg("superseded reviews closed")
		}
		return nil
	})
}

// snapshotPending collects all pending reviews before any is resolved, so
// resolutions do not shift the pages being read.
func (uc *ReviewUseCase) snapshotPending(ctx context.Context) ([]*domain.ReconciliationReview, error) {
	var all []*domain.ReconciliationReview
	filter := domain.ReviewFilter{Status: domain.ReviewPending, Limit: domain.MaxPageSize}

	for {
		items, total, err := uc.reviews.List(ctx, filter)
		if err != nil {
			return nil, err
		}
		all = append(all, items...)
		filter.Offset += len(items)
		if len(items) == 0 || filter.Offset >= total {
			return all, nil
		}
	}
}

func (uc *ReviewUseCase) emitReview(ctx context.Context, tx Transaction, r *domain.ReconciliationReview, eventType, actor string, at time.Time) error {
	return uc.outbox.Create(ctx, tx, reviewEvent(uc.idGen, r, eventType, actor, at))
}

func actorKind(actor string) string {
	if strings.HasPrefix(actor, "system:") {
		return "system"
	}
	return "human"
}
