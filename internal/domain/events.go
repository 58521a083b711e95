package domain

import "time"

// Event types
const (
	EventTypeDisbursementCreated    = "disbursement.created"
	EventTypeDisbursementConfirmed  = "disbursement.confirmed"
	EventTypeDisbursementFailed     = "disbursement.failed"
	EventTypeDisbursementAwaiting   = "disbursement.awaiting_signatures"
	EventTypeDisbursementRetried    = "disbursement.retried"
	EventTypeDisbursementReconciled = "disbursement.reconciled"
	EventTypeReviewCreated          = "review.created"
	EventTypeReviewApproved         = "review.approved"
	EventTypeReviewRejected         = "review.rejected"
	EventTypePaymentRunExecuted     = "payment_run.executed"
)

// Aggregate types
const (
	AggregateTypeDisbursement = "disbursement"
	AggregateTypeReview       = "reconciliation_review"
	AggregateTypePaymentRun   = "payment_run"
)

// OutboxEvent represents an event to be published
type OutboxEvent struct {
	ID            string
	AggregateID   string
	AggregateType string
	EventType     string
	Payload       map[string]any
	CreatedAt     time.Time
	PublishedAt   *time.Time
	Published     bool
}

// NewDisbursementEvent builds the payload for d in its current state.
func NewDisbursementEvent(d *Disbursement, at time.Time) map[string]any {
	return map[string]any{
		"disbursement_id": d.ID,
		"invoice_id":      d.InvoiceID,
		"vendor_id":       d.VendorID,
		"method":          string(d.Method),
		"status":          string(d.Status),
		"amount":          d.Amount,
		"currency":        d.Currency,
		"reference":       d.RecordedReference(),
		"failure_reason":  d.FailureReason,
		"event_at":        at.UTC().Format(time.RFC3339),
	}
}

// NewReviewEvent builds the payload for r in its current state.
func NewReviewEvent(r *ReconciliationReview, actor string) map[string]any {
	return map[string]any{
		"review_id":       r.ID,
		"disbursement_id": r.DisbursementID,
		"status":          string(r.Status),
		"reason":          string(r.ReviewReason),
		"confidence":      r.Confidence,
		"actor":           actor,
	}
}

// NewPaymentRunEvent builds the payload for a finished batch execution.
func NewPaymentRunEvent(runID int64, status PaymentRunStatus, total, succeeded, failed int) map[string]any {
	return map[string]any{
		"run_id":    runID,
		"status":    string(status),
		"total":     total,
		"succeeded": succeeded,
		"failed":    failed,
	}
}
