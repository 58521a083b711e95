package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/vendorpay/internal/domain"
	"github.com/iho/vendorpay/internal/infrastructure/metrics"
)

// ProcessorDeps are the collaborators shared by every rail processor.
type ProcessorDeps struct {
	TxManager     TransactionManager
	Disbursements DisbursementRepository
	Invoices      InvoiceStore
	Outbox        OutboxRepository
	IDGen         IDGenerator
	Locker        Locker
	// DBRetrier retries commit transactions on serialization failures and deadlocks.
	DBRetrier Retrier
	// RailRetrier retries transient rail errors with backoff.
	RailRetrier Retrier
	RailTimeout time.Duration
	Logger      zerolog.Logger
	Metrics     *metrics.Metrics
}

// railSettlement is a rail's answer mapped onto the disbursement state machine.
type railSettlement struct {
	// status is CONFIRMED, FAILED for a definitive decline, or PENDING while a
	// multisig proposal is short of signatures.
	status    domain.DisbursementStatus
	reference domain.ExternalReference
	reason    string
}

type settleFunc func(ctx context.Context, d *domain.Disbursement) (*railSettlement, error)

type railProcessor struct {
	method      domain.PaymentMethod
	writer      *disbursementWriter
	invoices    InvoiceStore
	locker      Locker
	railRetrier Retrier
	railTimeout time.Duration
	logger      zerolog.Logger
	metrics     *metrics.Metrics
}

func newRailProcessor(method domain.PaymentMethod, deps ProcessorDeps) railProcessor {
	timeout := deps.RailTimeout
	if timeout <= 0 {
		timeout = DefaultRailTimeout
	}
	return railProcessor{
		method: method,
		writer: &disbursementWriter{
			txManager:     deps.TxManager,
			disbursements: deps.Disbursements,
			outbox:        deps.Outbox,
			idGen:         deps.IDGen,
			retrier:       deps.DBRetrier,
		},
		invoices:    deps.Invoices,
		locker:      deps.Locker,
		railRetrier: deps.RailRetrier,
		railTimeout: timeout,
		logger:      deps.Logger.With().Str("component", "rail_processor").Str("method", string(method)).Logger(),
		metrics:     deps.Metrics,
	}
}

// Method returns the payment method the processor handles.
func (p *railProcessor) Method() domain.PaymentMethod { return p.method }

func (p *railProcessor) execute(ctx context.Context, id int64, settle settleFunc) (*RailResult, error) {
	var result *RailResult
	err := withLock(ctx, p.locker, id, func() error {
		var err error
		result, err = p.executeLocked(ctx, id, settle)
		return err
	})
	return result, err
}

func (p *railProcessor) executeLocked(ctx context.Context, id int64, settle settleFunc) (*RailResult, error) {
	d, err := p.writer.apply(ctx, id, func(_ context.Context, _ Transaction, d *domain.Disbursement) (string, error) {
		if d.Method != p.method {
			return "", fmt.Errorf("%w: %s processor cannot execute %s disbursement %d", domain.ErrMethodMismatch, p.method, d.Method, d.ID)
		}
		if d.Status != domain.StatusPending {
			return "", fmt.Errorf("%w: disbursement %d is %s, want %s", domain.ErrInvalidStatusTransition, d.ID, d.Status, domain.StatusPending)
		}
		return "", d.Transition(domain.StatusProcessing, time.Now().UTC())
	})
	if err != nil {
		return nil, err
	}

	logger := p.logger.With().Int64("disbursement_id", id).Logger()

	start := time.Now()
	s, err := p.safeSettle(ctx, d, settle)
	if p.metrics != nil {
		p.metrics.RailDuration.WithLabelValues(string(p.method)).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		railErr := p.asRailError(err)
		p.markFailed(ctx, id, railErr.Error(), nil, false, logger)
		return p.failedResult(id, railErr.Error(), domain.ExternalReference{}), railErr
	}

	switch s.status {
	case domain.StatusPending:
		return p.awaitSignatures(ctx, id, s, logger)
	case domain.StatusFailed:
		reason := s.reason
		if reason == "" {
			reason = "declined by rail"
		}
		railErr := &domain.RailError{Method: p.method, Reason: reason}
		p.markFailed(ctx, id, railErr.Error(), &s.reference, false, logger)
		return p.failedResult(id, railErr.Error(), s.reference), railErr
	}

	confirmed, err := p.writer.apply(ctx, id, func(ctx context.Context, tx Transaction, d *domain.Disbursement) (string, error) {
		now := time.Now().UTC()
		mergeReference(&d.Reference, s.reference)
		d.ExecutedAt = &now
		if err := d.Transition(domain.StatusConfirmed, now); err != nil {
			return "", err
		}
		if err := p.invoices.MarkPaid(ctx, tx, d.InvoiceID, now); err != nil {
			return "", fmt.Errorf("mark invoice %d paid: %w", d.InvoiceID, err)
		}
		return domain.EventTypeDisbursementConfirmed, nil
	})
	if err != nil {
		// The rail moved the money: keep its identifiers and fence the row off
		// from the retry sweep.
		reason := fmt.Sprintf("rail settled %s but recording the confirmation failed: %v", primaryReference(s.reference), err)
		p.markFailed(ctx, id, reason, &s.reference, true, logger)
		return p.failedResult(id, reason, s.reference), err
	}

	if p.metrics != nil {
		p.metrics.RailExecutions.WithLabelValues(string(p.method), "confirmed").Inc()
		p.metrics.DisbursedAmount.WithLabelValues(string(p.method), confirmed.Currency).Add(float64(confirmed.Amount))
	}
	logger.Info().Str("reference", confirmed.RecordedReference()).Msg("disbursement confirmed")

	return &RailResult{
		DisbursementID: id,
		Success:        true,
		Status:         confirmed.Status,
		ExternalRef:    confirmed.Reference,
	}, nil
}

func (p *railProcessor) awaitSignatures(ctx context.Context, id int64, s *railSettlement, logger zerolog.Logger) (*RailResult, error) {
	d, err := p.writer.apply(ctx, id, func(_ context.Context, _ Transaction, d *domain.Disbursement) (string, error) {
		d.Reference.TxHash = s.reference.TxHash
		d.Reference.SignatureCount = s.reference.SignatureCount
		return domain.EventTypeDisbursementAwaiting, d.Transition(domain.StatusPending, time.Now().UTC())
	})
	if err != nil {
		// The Safe proposal stays live and may still collect signatures.
		reason := fmt.Sprintf("record pending signatures: %v", err)
		p.markFailed(ctx, id, reason, &s.reference, true, logger)
		return p.failedResult(id, reason, s.reference), err
	}

	if p.metrics != nil {
		p.metrics.RailExecutions.WithLabelValues(string(p.method), "awaiting_signatures").Inc()
	}
	logger.Info().
		Int("signatures", d.Reference.SignatureCount).
		Int("threshold", d.SafeThreshold).
		Str("safe_tx_hash", d.Reference.TxHash).
		Msg("multisig proposal awaiting signatures")

	return &RailResult{
		DisbursementID: id,
		Status:         d.Status,
		ExternalRef:    d.Reference,
	}, nil
}

// markFailed writes FAILED on a context detached from the caller's cancellation.
// repair marks rows the rail has already acted on. A failure here is logged
// and never returned.
func (p *railProcessor) markFailed(ctx context.Context, id int64, reason string, ref *domain.ExternalReference, repair bool, logger zerolog.Logger) {
	if p.metrics != nil {
		p.metrics.RailExecutions.WithLabelValues(string(p.method), "failed").Inc()
	}

	_, err := p.writer.apply(context.WithoutCancel(ctx), id, func(_ context.Context, _ Transaction, d *domain.Disbursement) (string, error) {
		if ref != nil {
			mergeReference(&d.Reference, *ref)
		}
		d.FailureReason = reason
		d.RequiresRepair = d.RequiresRepair || repair
		return domain.EventTypeDisbursementFailed, d.Transition(domain.StatusFailed, time.Now().UTC())
	})
	if err != nil {
		if p.metrics != nil {
			p.metrics.BestEffortWriteFailure.Inc()
		}
		logger.Error().Err(err).Str("failure_reason", reason).Msg("failed to record disbursement failure")
		return
	}

	if repair {
		logger.Error().Str("failure_reason", reason).Msg("disbursement settled at the rail but not recorded, manual repair required")
		return
	}
	logger.Warn().Str("failure_reason", reason).Msg("disbursement failed")
}

func (p *railProcessor) safeSettle(ctx context.Context, d *domain.Disbursement, settle settleFunc) (s *railSettlement, err error) {
	defer func() {
		if r := recover(); r != nil {
			s, err = nil, fmt.Errorf("rail processor panic: %v", r)
		}
	}()

	s, err = settle(ctx, d)
	if err == nil && s == nil {
		err = errors.New("rail returned no outcome")
	}
	return s, err
}

// call runs op with a per-attempt timeout under the rail retrier.
func (p *railProcessor) call(ctx context.Context, op func(ctx context.Context) error) error {
	attempt := 0
	return retry(ctx, p.railRetrier, func() error {
		attempt++
		if attempt > 1 && p.metrics != nil {
			p.metrics.RailRetries.WithLabelValues(string(p.method)).Inc()
		}
		callCtx, cancel := context.WithTimeout(ctx, p.railTimeout)
		defer cancel()
		return op(callCtx)
	})
}

func (p *railProcessor) asRailError(err error) *domain.RailError {
	var railErr *domain.RailError
	if errors.As(err, &railErr) {
		return railErr
	}
	return &domain.RailError{
		Method:    p.method,
		Reason:    "rail call failed",
		Retryable: errors.Is(err, context.DeadlineExceeded),
		Err:       err,
	}
}

func (p *railProcessor) failedResult(id int64, reason string, ref domain.ExternalReference) *RailResult {
	return &RailResult{
		DisbursementID: id,
		Status:         domain.StatusFailed,
		ExternalRef:    ref,
		Error:          reason,
	}
}

func railPaymentFor(d *domain.Disbursement) RailPayment {
	return RailPayment{
		DisbursementID:     d.ID,
		IdempotencyKey:     fmt.Sprintf("%s-%d", d.PaymentReference(), d.RetryCount),
		Reference:          d.PaymentReference(),
		Method:             d.Method,
		Amount:             d.Amount,
		Currency:           d.Currency,
		DestinationAccount: d.DestinationAccount,
		DestinationRouting: d.DestinationRouting,
	}
}

func primaryReference(ref domain.ExternalReference) string {
	d := domain.Disbursement{Reference: ref}
	return d.RecordedReference()
}

func mergeReference(dst *domain.ExternalReference, src domain.ExternalReference) {
	if src.TransactionID != "" {
		dst.TransactionID = src.TransactionID
	}
	if src.BankReference != "" {
		dst.BankReference = src.BankReference
	}
	if src.TxHash != "" {
		dst.TxHash = src.TxHash
	}
	if src.BlockNumber != 0 {
		dst.BlockNumber = src.BlockNumber
	}
	if src.Confirmations != 0 {
		dst.Confirmations = src.Confirmations
	}
	if src.SignatureCount != 0 {
		dst.SignatureCount = src.SignatureCount
	}
}

// ACHProcessor executes bank transfers.
type ACHProcessor struct {
	railProcessor
	client RailClient
}

// NewACHProcessor creates a new ACHProcessor.
func NewACHProcessor(deps ProcessorDeps, client RailClient) *ACHProcessor {
	return &ACHProcessor{railProcessor: newRailProcessor(domain.MethodACH, deps), client: client}
}

// Execute drives one ACH disbursement from PENDING to CONFIRMED or FAILED.
func (p *ACHProcessor) Execute(ctx context.Context, id int64) (*RailResult, error) {
	return p.execute(ctx, id, p.settle)
}

func (p *ACHProcessor) settle(ctx context.Context, d *domain.Disbursement) (*railSettlement, error) {
	out, err := p.submit(ctx, d)
	if err != nil {
		return nil, err
	}
	if !out.Success {
		return &railSettlement{status: domain.StatusFailed, reason: out.FailureReason}, nil
	}
	return &railSettlement{
		status: domain.StatusConfirmed,
		reference: domain.ExternalReference{
			TransactionID: out.TransactionID,
			BankReference: out.BankReference,
		},
	}, nil
}

// CryptoProcessor executes USDC transfers.
type CryptoProcessor struct {
	railProcessor
	client RailClient
}

// NewCryptoProcessor creates a new CryptoProcessor.
func NewCryptoProcessor(deps ProcessorDeps, client RailClient) *CryptoProcessor {
	return &CryptoProcessor{railProcessor: newRailProcessor(domain.MethodUSDC, deps), client: client}
}

// Execute drives one USDC disbursement from PENDING to CONFIRMED or FAILED.
func (p *CryptoProcessor) Execute(ctx context.Context, id int64) (*RailResult, error) {
	return p.execute(ctx, id, p.settle)
}

func (p *CryptoProcessor) settle(ctx context.Context, d *domain.Disbursement) (*railSettlement, error) {
	out, err := p.submit(ctx, d)
	if err != nil {
		return nil, err
	}
	if !out.Success {
		return &railSettlement{status: domain.StatusFailed, reason: out.FailureReason}, nil
	}
	return &railSettlement{
		status: domain.StatusConfirmed,
		reference: domain.ExternalReference{
			TransactionID: out.TransactionID,
			TxHash:        out.TxHash,
			BlockNumber:   out.BlockNumber,
			Confirmations: 1,
		},
	}, nil
}

// submitWith sends d through a single-step rail client.
func (p *railProcessor) submitWith(ctx context.Context, client RailClient, d *domain.Disbursement) (*RailOutcome, error) {
	var out *RailOutcome
	err := p.call(ctx, func(ctx context.Context) error {
		o, err := client.Submit(ctx, railPaymentFor(d))
		if err != nil {
			return err
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, errors.New("rail returned no outcome")
	}
	return out, nil
}

func (p *ACHProcessor) submit(ctx context.Context, d *domain.Disbursement) (*RailOutcome, error) {
	return p.submitWith(ctx, p.client, d)
}

func (p *CryptoProcessor) submit(ctx context.Context, d *domain.Disbursement) (*RailOutcome, error) {
	return p.submitWith(ctx, p.client, d)
}

// MultisigProcessor executes Safe treasury transfers that need a signature threshold.
type MultisigProcessor struct {
	railProcessor
	client SafeClient
}

// NewMultisigProcessor creates a new MultisigProcessor.
func NewMultisigProcessor(deps ProcessorDeps, client SafeClient) *MultisigProcessor {
	return &MultisigProcessor{railProcessor: newRailProcessor(domain.MethodSafeMultisig, deps), client: client}
}

// Execute proposes (or re-checks) the Safe transaction and executes it once the
// signature threshold is met. Short of the threshold the disbursement returns to PENDING.
func (p *MultisigProcessor) Execute(ctx context.Context, id int64) (*RailResult, error) {
	return p.execute(ctx, id, p.settle)
}

func (p *MultisigProcessor) settle(ctx context.Context, d *domain.Disbursement) (*railSettlement, error) {
	var proposal *SafeProposal
	err := p.call(ctx, func(ctx context.Context) error {
		prop, err := p.client.Propose(ctx, railPaymentFor(d), d.Reference.TxHash)
		if err != nil {
			return err
		}
		proposal = prop
		return nil
	})
	if err != nil {
		return nil, err
	}
	if proposal == nil || proposal.SafeTxHash == "" {
		return nil, errors.New("safe returned no proposal")
	}

	threshold := d.SafeThreshold
	if threshold <= 0 {
		threshold = proposal.Threshold
	}
	if threshold <= 0 {
		return nil, &domain.RailError{Method: p.method, Reason: "safe threshold is not configured"}
	}

	if proposal.Signatures < threshold {
		return &railSettlement{
			status: domain.StatusPending,
			reference: domain.ExternalReference{
				TxHash:         proposal.SafeTxHash,
				SignatureCount: proposal.Signatures,
			},
		}, nil
	}

	var out *RailOutcome
	err = p.call(ctx, func(ctx context.Context) error {
		o, err := p.client.Execute(ctx, proposal.SafeTxHash)
		if err != nil {
			return err
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, errors.New("safe returned no execution outcome")
	}
	if !out.Success {
		return &railSettlement{
			status:    domain.StatusFailed,
			reason:    out.FailureReason,
			reference: domain.ExternalReference{TxHash: proposal.SafeTxHash, SignatureCount: proposal.Signatures},
		}, nil
	}

	txHash := out.TxHash
	if txHash == "" {
		txHash = proposal.SafeTxHash
	}
	return &railSettlement{
		status: domain.StatusConfirmed,
		reference: domain.ExternalReference{
			TxHash:         txHash,
			BlockNumber:    out.BlockNumber,
			Confirmations:  1,
			SignatureCount: proposal.Signatures,
		},
	}, nil
}
