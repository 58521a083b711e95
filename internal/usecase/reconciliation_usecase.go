package usecase

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/iho/vendorpay/internal/domain"
	"github.com/iho/vendorpay/internal/infrastructure/metrics"
)

// ReconciliationSummary reports one ingestion batch of settlement records.
type ReconciliationSummary struct {
	Kind domain.SettlementKind
	// Processed counts settled records that were scored.
	Processed int
	// Skipped counts records that are not settled outbound movements.
	Skipped int
	// Matched counts records with at least one passing candidate.
	Matched           int
	Unmatched         int
	AutoReconciled    int
	SentToReview      int
	DuplicateReviews  int
	AlreadyReconciled int
	Errors            []string
	Matches           []domain.ReconciliationMatch
}

// ReconciliationUseCase matches settlement records against confirmed
// disbursements and commits or queues the winners.
type ReconciliationUseCase struct {
	txManager     TransactionManager
	disbursements DisbursementRepository
	reviews       ReviewRepository
	logs          ReconciliationLogRepository
	outbox        OutboxRepository
	idGen         IDGenerator
	locker        Locker
	retrier       Retrier
	writer        *disbursementWriter
	closer        *reviewCloser
	rules         domain.RuleSet
	logger        zerolog.Logger
	metrics       *metrics.Metrics
}

// NewReconciliationUseCase creates a new ReconciliationUseCase.
func NewReconciliationUseCase(
	txManager TransactionManager,
	disbursements DisbursementRepository,
	reviews ReviewRepository,
	logs ReconciliationLogRepository,
	outbox OutboxRepository,
	idGen IDGenerator,
	locker Locker,
	retrier Retrier,
	rules domain.RuleSet,
	logger zerolog.Logger,
	metrics *metrics.Metrics,
) *ReconciliationUseCase {
	return &ReconciliationUseCase{
		txManager:     txManager,
		disbursements: disbursements,
		reviews:       reviews,
		logs:          logs,
		outbox:        outbox,
		idGen:         idGen,
		locker:        locker,
		retrier:       retrier,
		writer: &disbursementWriter{
			txManager:     txManager,
			disbursements: disbursements,
			outbox:        outbox,
			idGen:         idGen,
			retrier:       retrier,
		},
		closer:  &reviewCloser{reviews: reviews, outbox: outbox, idGen: idGen},
		rules:   rules,
		logger:  logger.With().Str("component", "reconciliation").Logger(),
		metrics: metrics,
	}
}

// ReconcileBankStatements matches bank statement lines against ACH disbursements.
func (uc *ReconciliationUseCase) ReconcileBankStatements(ctx context.Context, entries []*domain.BankStatementEntry) (*ReconciliationSummary, error) {
	records := make([]domain.SettlementRecord, 0, len(entries))
	for _, e := range entries {
		records = append(records, e)
	}
	return uc.reconcile(ctx, domain.SettlementBank, domain.FamilyBank, records)
}

// ReconcileBlockchainTransactions matches chain transactions against on-chain disbursements.
func (uc *ReconciliationUseCase) ReconcileBlockchainTransactions(ctx context.Context, txs []*domain.BlockchainTransaction) (*ReconciliationSummary, error) {
	records := make([]domain.SettlementRecord, 0, len(txs))
	for _, tx := range txs {
		records = append(records, tx)
	}
	return uc.reconcile(ctx, domain.SettlementBlockchain, domain.FamilyOnChain, records)
}

func (uc *ReconciliationUseCase) reconcile(
	ctx context.Context,
	kind domain.SettlementKind,
	family domain.MethodFamily,
	records []domain.SettlementRecord,
) (*ReconciliationSummary, error) {
	summary := &ReconciliationSummary{Kind: kind}
	logger := uc.logger.With().Str("kind", string(kind)).Logger()

	eligible := make([]int, 0, len(records))
	for i, rec := range records {
		if !settledOutbound(rec) {
			summary.Skipped++
			continue
		}
		eligible = append(eligible, i)
	}
	summary.Processed = len(eligible)
	if len(eligible) == 0 {
		return summary, nil
	}

	since := time.Now().UTC().AddDate(0, 0, -uc.lookbackDays(family))
	candidates, err := uc.disbursements.ListUnreconciled(ctx, domain.MethodsInFamily(family), since)
	if err != nil {
		return nil, err
	}

	perRecord, err := uc.score(ctx, records, eligible, candidates)
	if err != nil {
		return nil, err
	}

	for _, matches := range perRecord {
		if len(matches) == 0 {
			summary.Unmatched++
		} else {
			summary.Matched++
		}
	}

	winners := selectWinners(perRecord)
	summary.Matches = winners

	for _, m := range winners {
		if err := ctx.Err(); err != nil {
			summary.Errors = append(summary.Errors, fmt.Sprintf("disbursement %d: %v", m.DisbursementID, err))
			continue
		}

		var commitErr error
		if m.AutoReconciled {
			commitErr = uc.commitAuto(ctx, m)
		} else {
			commitErr = uc.queueReview(ctx, m)
		}

		switch {
		case commitErr == nil && m.AutoReconciled:
			summary.AutoReconciled++
		case commitErr == nil:
			summary.SentToReview++
		case errors.Is(commitErr, errDuplicateReview):
			summary.DuplicateReviews++
		case errors.Is(commitErr, domain.ErrAlreadyReconciled):
			summary.AlreadyReconciled++
			if uc.metrics != nil {
				uc.metrics.ReconciliationConflicts.Inc()
			}
		default:
			summary.Errors = append(summary.Errors, fmt.Sprintf("disbursement %d: %v", m.DisbursementID, commitErr))
			logger.Error().Err(commitErr).Int64("disbursement_id", m.DisbursementID).Msg("failed to commit reconciliation match")
		}

		if uc.metrics != nil {
			uc.metrics.MatchConfidence.WithLabelValues(string(m.MatchType)).Observe(m.Confidence)
		}
	}

	if uc.metrics != nil {
		uc.metrics.SettlementRecords.WithLabelValues(string(kind), "skipped").Add(float64(summary.Skipped))
		uc.metrics.SettlementRecords.WithLabelValues(string(kind), "matched").Add(float64(summary.Matched))
		uc.metrics.SettlementRecords.WithLabelValues(string(kind), "unmatched").Add(float64(summary.Unmatched))
	}

	logger.Info().
		Int("processed", summary.Processed).
		Int("skipped", summary.Skipped).
		Int("auto_reconciled", summary.AutoReconciled).
		Int("sent_to_review", summary.SentToReview).
		Int("already_reconciled", summary.AlreadyReconciled).
		Int("unmatched", summary.Unmatched).
		Int("errors", len(summary.Errors)).
		Msg("settlement batch reconciled")

	return summary, nil
}

// score runs Match for every eligible record in parallel.
func (uc *ReconciliationUseCase) score(
	ctx context.Context,
	records []domain.SettlementRecord,
	eligible []int,
	candidates []*domain.Disbursement,
) ([][]domain.ReconciliationMatch, error) {
	perRecord := make([][]domain.ReconciliationMatch, len(eligible))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for slot, idx := range eligible {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			matches := Match(records[idx], candidates, uc.rules)
			for i := range matches {
				matches[i].RecordIndex = idx
			}
			perRecord[slot] = matches
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return perRecord, nil
}

// selectWinners picks at most one match per disbursement and lets each record
// auto-commit at most one disbursement. Matches are taken best first. An
// auto-eligible match whose record already auto-committed gives way to the
// disbursement's next auto-eligible match from another record; when none is
// left it goes to review as AMBIGUOUS_MATCH. Losers are dropped.
func selectWinners(perRecord [][]domain.ReconciliationMatch) []domain.ReconciliationMatch {
	var all []domain.ReconciliationMatch
	for _, matches := range perRecord {
		all = append(all, matches...)
	}
	sort.SliceStable(all, func(i, j int) bool { return betterMatch(all[i], all[j]) })

	chosen := make(map[int64]domain.ReconciliationMatch)
	ambiguous := make(map[int64]domain.ReconciliationMatch)
	autoUsed := make(map[int]bool)
	for _, m := range all {
		if _, done := chosen[m.DisbursementID]; done {
			continue
		}
		_, demoted := ambiguous[m.DisbursementID]
		if demoted && !m.AutoReconciled {
			continue
		}
		if m.AutoReconciled && autoUsed[m.RecordIndex] {
			if !demoted {
				m.AutoReconciled = false
				m.RequiresReview = true
				m.ReviewReason = domain.ReasonAmbiguousMatch
				ambiguous[m.DisbursementID] = m
			}
			continue
		}
		if m.AutoReconciled {
			autoUsed[m.RecordIndex] = true
		}
		chosen[m.DisbursementID] = m
	}
	for id, m := range ambiguous {
		if _, done := chosen[id]; !done {
			chosen[id] = m
		}
	}

	winners := make([]domain.ReconciliationMatch, 0, len(chosen))
	for _, m := range chosen {
		winners = append(winners, m)
	}
	sort.Slice(winners, func(i, j int) bool {
		if winners[i].RecordIndex != winners[j].RecordIndex {
			return winners[i].RecordIndex < winners[j].RecordIndex
		}
		return betterMatch(winners[i], winners[j])
	})
	return winners
}

var errDuplicateReview = errors.New("an open review already exists for this match")

// commitAuto writes RECONCILED (AUTO) and the log entry under the disbursement lock.
func (uc *ReconciliationUseCase) commitAuto(ctx context.Context, m domain.ReconciliationMatch) error {
	err := withLock(ctx, uc.locker, m.DisbursementID, func() error {
		_, err := uc.writer.apply(ctx, m.DisbursementID, func(ctx context.Context, tx Transaction, d *domain.Disbursement) (string, error) {
			now := time.Now().UTC()
			if err := d.MarkReconciled(domain.ReconciliationAuto, m.Confidence, now); err != nil {
				return "", err
			}

			entry := &domain.ReconciliationLogEntry{
				DisbursementID:    d.ID,
				MatchType:         m.MatchType,
				Confidence:        m.Confidence,
				ExternalReference: m.MatchedReference,
				MatchedAmount:     m.MatchedAmount,
				AmountDifference:  m.AmountDifference,
				AutoReconciled:    true,
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
		uc.metrics.Reconciliations.WithLabelValues(string(domain.ReconciliationAuto)).Inc()
	}
	uc.logger.Info().
		Int64("disbursement_id", m.DisbursementID).
		Float64("confidence", m.Confidence).
		Str("reference", m.MatchedReference).
		Msg("disbursement auto-reconciled")

	return nil
}

// queueReview materializes a review record unless the disbursement is already
// reconciled or an identical review is still open.
func (uc *ReconciliationUseCase) queueReview(ctx context.Context, m domain.ReconciliationMatch) error {
	return withLock(ctx, uc.locker, m.DisbursementID, func() error {
		return retry(ctx, uc.retrier, func() error {
			return uc.queueReviewOnce(ctx, m)
		})
	})
}

func (uc *ReconciliationUseCase) queueReviewOnce(ctx context.Context, m domain.ReconciliationMatch) error {
	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(txCtx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	d, err := uc.disbursements.GetByIDForUpdate(txCtx, tx, m.DisbursementID)
	if err != nil {
		return err
	}
	if d.Status == domain.StatusReconciled {
		return domain.ErrAlreadyReconciled
	}
	if d.Status != domain.StatusConfirmed {
		return fmt.Errorf("%w: disbursement %d is %s", domain.ErrInvalidStatusTransition, d.ID, d.Status)
	}

	open, err := uc.reviews.HasPending(txCtx, tx, m.DisbursementID, m.MatchedReference)
	if err != nil {
		return err
	}
	if open {
		return errDuplicateReview
	}

	now := time.Now().UTC()
	review := domain.NewReviewFromMatch(m, now)
	if err := uc.reviews.Create(txCtx, tx, review); err != nil {
		return err
	}

	event := &domain.OutboxEvent{
		ID:            uc.idGen.Generate(),
		AggregateID:   formatID(review.ID),
		AggregateType: domain.AggregateTypeReview,
		EventType:     domain.EventTypeReviewCreated,
		Payload:       domain.NewReviewEvent(review, ""),
		CreatedAt:     now,
	}
	if err := uc.outbox.Create(txCtx, tx, event); err != nil {
		return err
	}

	if err := tx.Commit(txCtx); err != nil {
		return err
	}

	if uc.metrics != nil {
		uc.metrics.ReviewsCreated.WithLabelValues(string(review.ReviewReason)).Inc()
	}
	uc.logger.Info().
		Int64("review_id", review.ID).
		Int64("disbursement_id", review.DisbursementID).
		Float64("confidence", review.Confidence).
		Str("reason", string(review.ReviewReason)).
		Msg("match queued for review")

	return nil
}

func (uc *ReconciliationUseCase) lookbackDays(family domain.MethodFamily) int {
	if days := uc.rules.LookbackDays(family); days > 0 {
		return days
	}
	if family == domain.FamilyBank {
		return DefaultBankLookbackDays
	}
	return DefaultOnChainLookbackDays
}

func settledOutbound(rec domain.SettlementRecord) bool {
	if !rec.Settled() {
		return false
	}
	if e, ok := rec.(*domain.BankStatementEntry); ok {
		return e.Outbound()
	}
	return true
}
