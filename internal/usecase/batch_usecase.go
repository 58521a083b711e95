package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/iho/vendorpay/internal/domain"
	"github.com/iho/vendorpay/internal/infrastructure/metrics"
)

// ItemOutcome classifies one disbursement of a batch.
type ItemOutcome string

const (
	OutcomeSucceeded          ItemOutcome = "SUCCEEDED"
	OutcomeFailed             ItemOutcome = "FAILED"
	OutcomeAwaitingSignatures ItemOutcome = "AWAITING_SIGNATURES"
	OutcomeSkipped            ItemOutcome = "SKIPPED"
)

// BatchItemResult is the per-disbursement outcome of a batch execution.
type BatchItemResult struct {
	DisbursementID int64
	Method         domain.PaymentMethod
	Amount         int64
	Currency       string
	Outcome        ItemOutcome
	Status         domain.DisbursementStatus
	ExternalRef    string
	Error          string
}

// BatchResult aggregates a payment run execution. Amounts are exact minor-unit sums.
type BatchResult struct {
	RunID              int64
	RunStatus          domain.PaymentRunStatus
	Total              int
	Succeeded          int
	Failed             int
	AwaitingSignatures int
	Skipped            int
	TotalAmount        int64
	SucceededAmount    int64
	Items              []BatchItemResult
}

// RetryResult reports one disbursement considered by RetryFailedPayments.
type RetryResult struct {
	DisbursementID int64
	Before         domain.DisbursementStatus
	After          domain.DisbursementStatus
	RetryCount     int
	Error          string
}

// BatchConfig tunes batch execution and retry sweeps.
type BatchConfig struct {
	// Concurrency is the number of disbursements executed at once; 1 runs them sequentially.
	Concurrency int
	RetryWindow time.Duration
	MaxRetries  int
}

// BatchUseCase executes payment runs and resets failed payments for retry.
type BatchUseCase struct {
	txManager     TransactionManager
	disbursements DisbursementRepository
	runs          PaymentRunRepository
	outbox        OutboxRepository
	idGen         IDGenerator
	locker        Locker
	writer        *disbursementWriter
	processors    map[domain.PaymentMethod]RailProcessor
	cfg           BatchConfig
	logger        zerolog.Logger
	metrics       *metrics.Metrics
}

// NewBatchUseCase creates a new BatchUseCase.
func NewBatchUseCase(
	txManager TransactionManager,
	disbursements DisbursementRepository,
	runs PaymentRunRepository,
	outbox OutboxRepository,
	idGen IDGenerator,
	locker Locker,
	retrier Retrier,
	processors []RailProcessor,
	cfg BatchConfig,
	logger zerolog.Logger,
	metrics *metrics.Metrics,
) *BatchUseCase {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.RetryWindow <= 0 {
		cfg.RetryWindow = DefaultRetryWindow
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}

	byMethod := make(map[domain.PaymentMethod]RailProcessor, len(processors))
	for _, p := range processors {
		byMethod[p.Method()] = p
	}

	return &BatchUseCase{
		txManager:     txManager,
		disbursements: disbursements,
		runs:          runs,
		outbox:        outbox,
		idGen:         idGen,
		locker:        locker,
		writer: &disbursementWriter{
			txManager:     txManager,
			disbursements: disbursements,
			outbox:        outbox,
			idGen:         idGen,
			retrier:       retrier,
		},
		processors: byMethod,
		cfg:        cfg,
		logger:     logger.With().Str("component", "batch").Logger(),
		metrics:    metrics,
	}
}

// ExecuteBatch dispatches every PENDING disbursement of the run to its rail processor.
// Item failures are recorded and never abort the batch. Cancelling ctx stops dispatch
// of new items, which are reported SKIPPED; items already dispatched run to completion.
func (uc *BatchUseCase) ExecuteBatch(ctx context.Context, runID int64) (*BatchResult, error) {
	if _, err := uc.runs.GetByID(ctx, runID); err != nil {
		return nil, err
	}

	pending, err := uc.disbursements.ListByRunAndStatus(ctx, runID, domain.StatusPending)
	if err != nil {
		return nil, err
	}
	if len(pending) == 0 {
		return nil, fmt.Errorf("%w: run %d", domain.ErrNoPendingDisbursements, runID)
	}

	logger := uc.logger.With().Int64("run_id", runID).Logger()
	start := time.Now()

	if err := uc.setRunStatus(ctx, runID, domain.RunStatusExecuting, nil); err != nil {
		return nil, err
	}

	items := make([]BatchItemResult, len(pending))
	var g errgroup.Group
	g.SetLimit(uc.cfg.Concurrency)

	for i, d := range pending {
		if ctx.Err() != nil {
			items[i] = skippedItem(d)
			continue
		}
		g.Go(func() error {
			// Cancellation may have arrived while waiting for a free slot.
			if ctx.Err() != nil {
				items[i] = skippedItem(d)
				return nil
			}
			items[i] = uc.executeItem(context.WithoutCancel(ctx), d, logger)
			return nil
		})
	}
	_ = g.Wait()

	result := &BatchResult{RunID: runID, Total: len(pending), Items: items}
	for _, item := range items {
		result.TotalAmount += item.Amount
		switch item.Outcome {
		case OutcomeSucceeded:
			result.Succeeded++
			result.SucceededAmount += item.Amount
		case OutcomeFailed:
			result.Failed++
		case OutcomeAwaitingSignatures:
			result.AwaitingSignatures++
		case OutcomeSkipped:
			result.Skipped++
		}
		if uc.metrics != nil {
			uc.metrics.BatchItems.WithLabelValues(string(item.Outcome)).Inc()
		}
	}

	result.RunStatus = domain.DeriveRunStatus(result.Total, result.Succeeded)
	if err := uc.setRunStatus(context.WithoutCancel(ctx), runID, result.RunStatus, result); err != nil {
		// Item outcomes are already durable on the disbursements; the run status is derived data.
		logger.Error().Err(err).Str("status", string(result.RunStatus)).Msg("failed to persist payment run status")
	}

	if uc.metrics != nil {
		uc.metrics.BatchRuns.WithLabelValues(string(result.RunStatus)).Inc()
		uc.metrics.BatchDuration.Observe(time.Since(start).Seconds())
	}

	logger.Info().
		Int("total", result.Total).
		Int("succeeded", result.Succeeded).
		Int("failed", result.Failed).
		Int("awaiting_signatures", result.AwaitingSignatures).
		Int("skipped", result.Skipped).
		Int64("total_amount", result.TotalAmount).
		Str("status", string(result.RunStatus)).
		Msg("payment run executed")

	return result, nil
}

func (uc *BatchUseCase) executeItem(ctx context.Context, d *domain.Disbursement, logger zerolog.Logger) (item BatchItemResult) {
	item = BatchItemResult{
		DisbursementID: d.ID,
		Method:         d.Method,
		Amount:         d.Amount,
		Currency:       d.Currency,
		Status:         d.Status,
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Error().Int64("disbursement_id", d.ID).Interface("panic", r).Msg("rail processor panicked")
			item.Outcome = OutcomeFailed
			item.Error = fmt.Sprintf("panic: %v", r)
		}
	}()

	proc, ok := uc.processors[d.Method]
	if !ok {
		item.Outcome = OutcomeFailed
		item.Error = fmt.Errorf("%w: no processor for %s", domain.ErrUnsupportedMethod, d.Method).Error()
		return item
	}

	res, err := proc.Execute(ctx, d.ID)
	if res != nil {
		item.Status = res.Status
		item.ExternalRef = primaryReference(res.ExternalRef)
	}

	switch {
	case err != nil:
		item.Outcome = OutcomeFailed
		item.Error = err.Error()
		if res == nil {
			item.Status = domain.StatusFailed
		}
	case res.Success:
		item.Outcome = OutcomeSucceeded
	case res.Status == domain.StatusPending:
		item.Outcome = OutcomeAwaitingSignatures
	default:
		item.Outcome = OutcomeFailed
		item.Error = res.Error
	}

	return item
}

func (uc *BatchUseCase) setRunStatus(ctx context.Context, runID int64, status domain.PaymentRunStatus, result *BatchResult) error {
	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(txCtx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	now := time.Now().UTC()
	if err := uc.runs.UpdateStatus(txCtx, tx, runID, status, now); err != nil {
		return err
	}

	if result != nil {
		event := &domain.OutboxEvent{
			ID:            uc.idGen.Generate(),
			AggregateID:   formatID(runID),
			AggregateType: domain.AggregateTypePaymentRun,
			EventType:     domain.EventTypePaymentRunExecuted,
			Payload:       domain.NewPaymentRunEvent(runID, status, result.Total, result.Succeeded, result.Failed),
			CreatedAt:     now,
		}
		if err := uc.outbox.Create(txCtx, tx, event); err != nil {
			return err
		}
	}

	return tx.Commit(txCtx)
}

func skippedItem(d *domain.Disbursement) BatchItemResult {
	return BatchItemResult{
		DisbursementID: d.ID,
		Method:         d.Method,
		Amount:         d.Amount,
		Currency:       d.Currency,
		Outcome:        OutcomeSkipped,
		Status:         d.Status,
		Error:          context.Canceled.Error(),
	}
}

// RetryFailedPayments resets recent FAILED disbursements to PENDING. Disbursements
// at the retry cap, and those the rail settled without the engine recording it,
// are reported but left FAILED.
func (uc *BatchUseCase) RetryFailedPayments(ctx context.Context) ([]RetryResult, error) {
	since := time.Now().UTC().Add(-uc.cfg.RetryWindow)

	failed, err := uc.disbursements.ListByStatusSince(ctx, domain.StatusFailed, since)
	if err != nil {
		return nil, err
	}

	results := make([]RetryResult, 0, len(failed))
	for _, d := range failed {
		if ctx.Err() != nil {
			break
		}

		res := RetryResult{DisbursementID: d.ID, Before: d.Status, After: d.Status, RetryCount: d.RetryCount}

		if d.RetryCount >= uc.cfg.MaxRetries {
			res.Error = fmt.Sprintf("retry limit of %d reached", uc.cfg.MaxRetries)
			results = append(results, res)
			continue
		}
		if d.RequiresRepair {
			res.Error = domain.ErrRequiresRepair.Error()
			uc.logger.Warn().Int64("disbursement_id", d.ID).Str("reference", d.RecordedReference()).
				Msg("skipping retry of disbursement settled at the rail")
			results = append(results, res)
			continue
		}

		var updated *domain.Disbursement
		err := withLock(ctx, uc.locker, d.ID, func() error {
			var err error
			updated, err = uc.writer.apply(ctx, d.ID, func(_ context.Context, _ Transaction, d *domain.Disbursement) (string, error) {
				if d.RetryCount >= uc.cfg.MaxRetries {
					return "", fmt.Errorf("retry limit of %d reached", uc.cfg.MaxRetries)
				}
				return domain.EventTypeDisbursementRetried, d.ResetForRetry(time.Now().UTC())
			})
			return err
		})
		if err != nil {
			if errors.Is(err, domain.ErrInvalidStatusTransition) {
				// Moved on since listing; report its current state.
				if cur, getErr := uc.disbursements.GetByID(ctx, d.ID); getErr == nil {
					res.After = cur.Status
				}
			}
			res.Error = err.Error()
			uc.logger.Warn().Err(err).Int64("disbursement_id", d.ID).Msg("failed to reset disbursement for retry")
			results = append(results, res)
			continue
		}

		res.After = updated.Status
		res.RetryCount = updated.RetryCount
		results = append(results, res)

		if uc.metrics != nil {
			uc.metrics.DisbursementsRetried.Inc()
		}
	}

	uc.logger.Info().Int("candidates", len(failed)).Msg("failed payment retry sweep finished")

	return results, nil
}
