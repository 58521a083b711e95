package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/vendorpay/internal/domain"
	"github.com/iho/vendorpay/internal/usecase"
)

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// ReferenceResponse holds the rail identifiers of an executed payment.
type ReferenceResponse struct {
	TransactionID  string `json:"transaction_id,omitempty"`
	BankReference  string `json:"bank_reference,omitempty"`
	TxHash         string `json:"tx_hash,omitempty"`
	BlockNumber    int64  `json:"block_number,omitempty"`
	Confirmations  int    `json:"confirmations,omitempty"`
	SignatureCount int    `json:"signature_count,omitempty"`
}

func referenceFromDomain(r domain.ExternalReference) ReferenceResponse {
	return ReferenceResponse{
		TransactionID:  r.TransactionID,
		BankReference:  r.BankReference,
		TxHash:         r.TxHash,
		BlockNumber:    r.BlockNumber,
		Confirmations:  r.Confirmations,
		SignatureCount: r.SignatureCount,
	}
}

// DisbursementResponse represents a disbursement in API responses.
// Amount is in minor units; AmountMajor is the same value in major units.
type DisbursementResponse struct {
	ID           int64             `json:"id"`
	InvoiceID    int64             `json:"invoice_id"`
	VendorID     int64             `json:"vendor_id"`
	PaymentRunID *int64            `json:"payment_run_id,omitempty"`
	Amount       int64             `json:"amount"`
	AmountMajor  decimal.Decimal   `json:"amount_major"`
	Currency     string            `json:"currency"`
	Method       string            `json:"method"`
	Status       string            `json:"status"`
	Reference    ReferenceResponse `json:"reference"`
	RetryCount   int               `json:"retry_count"`
	// RequiresRepair flags a payment the rail settled that was never recorded.
	RequiresRepair bool       `json:"requires_repair,omitempty"`
	ScheduledAt    *time.Time `json:"scheduled_at,omitempty"`
	Version      int64             `json:"version"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// DisbursementFromDomain converts a domain disbursement to a response.
func DisbursementFromDomain(d *domain.Disbursement) *DisbursementResponse {
	return &DisbursementResponse{
		ID:           d.ID,
		InvoiceID:    d.InvoiceID,
		VendorID:     d.VendorID,
		PaymentRunID: d.PaymentRunID,
		Amount:       d.Amount,
		AmountMajor:  domain.ToMajor(d.Amount, d.Currency),
		Currency:     d.Currency,
		Method:       string(d.Method),
		Status:       string(d.Status),
		Reference:    referenceFromDomain(d.Reference),
		RetryCount:     d.RetryCount,
		RequiresRepair: d.RequiresRepair,
		ScheduledAt:    d.ScheduledAt,
		Version:      d.Version,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

// PaymentStatusResponse is the externally visible state of a disbursement.
type PaymentStatusResponse struct {
	DisbursementID           int64             `json:"disbursement_id"`
	InvoiceID                int64             `json:"invoice_id"`
	Method                   string            `json:"method"`
	Status                   string            `json:"status"`
	Amount                   int64             `json:"amount"`
	AmountMajor              decimal.Decimal   `json:"amount_major"`
	Currency                 string            `json:"currency"`
	Reference                ReferenceResponse `json:"reference"`
	FailureReason            string            `json:"failure_reason,omitempty"`
	RetryCount               int               `json:"retry_count"`
	ExecutedAt               *time.Time        `json:"executed_at,omitempty"`
	ReconciledAt             *time.Time        `json:"reconciled_at,omitempty"`
	ReconciliationType       *string           `json:"reconciliation_type,omitempty"`
	ReconciliationConfidence *float64          `json:"reconciliation_confidence,omitempty"`
}

// PaymentStatusFromUseCase converts a use case status to a response.
func PaymentStatusFromUseCase(s *usecase.PaymentStatus) *PaymentStatusResponse {
	resp := &PaymentStatusResponse{
		DisbursementID:           s.DisbursementID,
		InvoiceID:                s.InvoiceID,
		Method:                   string(s.Method),
		Status:                   string(s.Status),
		Amount:                   s.Amount,
		AmountMajor:              domain.ToMajor(s.Amount, s.Currency),
		Currency:                 s.Currency,
		Reference:                referenceFromDomain(s.Reference),
		FailureReason:            s.FailureReason,
		RetryCount:               s.RetryCount,
		ExecutedAt:               s.ExecutedAt,
		ReconciledAt:             s.ReconciledAt,
		ReconciliationConfidence: s.ReconciliationConfidence,
	}
	if s.ReconciliationType != nil {
		kind := string(*s.ReconciliationType)
		resp.ReconciliationType = &kind
	}
	return resp
}

// LogEntryResponse is one committed reconciliation in a disbursement's history.
type LogEntryResponse struct {
	ID                int64     `json:"id"`
	MatchType         string    `json:"match_type"`
	Confidence        float64   `json:"confidence"`
	ExternalReference string    `json:"external_reference"`
	MatchedAmount     int64     `json:"matched_amount"`
	AmountDifference  int64     `json:"amount_difference"`
	AutoReconciled    bool      `json:"auto_reconciled"`
	ApprovedBy        string    `json:"approved_by,omitempty"`
	ProcessedAt       time.Time `json:"processed_at"`
}

// LogEntriesFromDomain converts reconciliation log entries to responses.
func LogEntriesFromDomain(entries []*domain.ReconciliationLogEntry) []LogEntryResponse {
	out := make([]LogEntryResponse, len(entries))
	for i, e := range entries {
		out[i] = LogEntryResponse{
			ID:                e.ID,
			MatchType:         string(e.MatchType),
			Confidence:        e.Confidence,
			ExternalReference: e.ExternalReference,
			MatchedAmount:     e.MatchedAmount,
			AmountDifference:  e.AmountDifference,
			AutoReconciled:    e.AutoReconciled,
			ApprovedBy:        e.ApprovedBy,
			ProcessedAt:       e.ProcessedAt,
		}
	}
	return out
}

// BatchItemResponse is the outcome for one disbursement in a run.
type BatchItemResponse struct {
	DisbursementID int64  `json:"disbursement_id"`
	Method         string `json:"method"`
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	Outcome        string `json:"outcome"`
	Status         string `json:"status"`
	ExternalRef    string `json:"external_ref,omitempty"`
	Error          string `json:"error,omitempty"`
}

// BatchResultResponse summarizes a payment run execution.
type BatchResultResponse struct {
	RunID              int64               `json:"run_id"`
	RunStatus          string              `json:"run_status"`
	Total              int                 `json:"total"`
	Succeeded          int                 `json:"succeeded"`
	Failed             int                 `json:"failed"`
	AwaitingSignatures int                 `json:"awaiting_signatures"`
	Skipped            int                 `json:"skipped"`
	TotalAmount        int64               `json:"total_amount"`
	SucceededAmount    int64               `json:"succeeded_amount"`
	Items              []BatchItemResponse `json:"items"`
}

// BatchResultFromUseCase converts a batch result to a response.
func BatchResultFromUseCase(r *usecase.BatchResult) *BatchResultResponse {
	items := make([]BatchItemResponse, len(r.Items))
	for i, it := range r.Items {
		items[i] = BatchItemResponse{
			DisbursementID: it.DisbursementID,
			Method:         string(it.Method),
			Amount:         it.Amount,
			Currency:       it.Currency,
			Outcome:        string(it.Outcome),
			Status:         string(it.Status),
			ExternalRef:    it.ExternalRef,
			Error:          it.Error,
		}
	}
	return &BatchResultResponse{
		RunID:              r.RunID,
		RunStatus:          string(r.RunStatus),
		Total:              r.Total,
		Succeeded:          r.Succeeded,
		Failed:             r.Failed,
		AwaitingSignatures: r.AwaitingSignatures,
		Skipped:            r.Skipped,
		TotalAmount:        r.TotalAmount,
		SucceededAmount:    r.SucceededAmount,
		Items:              items,
	}
}

// RetryResultResponse is the outcome of re-attempting one failed payment.
type RetryResultResponse struct {
	DisbursementID int64  `json:"disbursement_id"`
	Before         string `json:"before"`
	After          string `json:"after"`
	RetryCount     int    `json:"retry_count"`
	Error          string `json:"error,omitempty"`
}

// RetryResultsFromUseCase converts retry results to responses.
func RetryResultsFromUseCase(results []usecase.RetryResult) []RetryResultResponse {
	out := make([]RetryResultResponse, len(results))
	for i, r := range results {
		out[i] = RetryResultResponse{
			DisbursementID: r.DisbursementID,
			Before:         string(r.Before),
			After:          string(r.After),
			RetryCount:     r.RetryCount,
			Error:          r.Error,
		}
	}
	return out
}

// MatchResponse is one candidate match produced by a reconciliation pass.
type MatchResponse struct {
	DisbursementID   int64   `json:"disbursement_id"`
	MatchType        string  `json:"match_type"`
	Confidence       float64 `json:"confidence"`
	MatchedReference string  `json:"matched_reference"`
	MatchedAmount    int64   `json:"matched_amount"`
	AmountDifference int64   `json:"amount_difference"`
	AutoReconciled   bool    `json:"auto_reconciled"`
	RequiresReview   bool    `json:"requires_review"`
	ReviewReason     string  `json:"review_reason,omitempty"`
	RuleID           string  `json:"rule_id,omitempty"`
	RecordIndex      int     `json:"record_index"`
}

// ReconciliationSummaryResponse summarizes one ingestion pass.
type ReconciliationSummaryResponse struct {
	Kind              string          `json:"kind"`
	Processed         int             `json:"processed"`
	Skipped           int             `json:"skipped"`
	Matched           int             `json:"matched"`
	Unmatched         int             `json:"unmatched"`
	AutoReconciled    int             `json:"auto_reconciled"`
	SentToReview      int             `json:"sent_to_review"`
	DuplicateReviews  int             `json:"duplicate_reviews"`
	AlreadyReconciled int             `json:"already_reconciled"`
	Errors            []string        `json:"errors,omitempty"`
	Matches           []MatchResponse `json:"matches"`
}

// ReconciliationSummaryFromUseCase converts a reconciliation summary to a response.
func ReconciliationSummaryFromUseCase(s *usecase.ReconciliationSummary) *ReconciliationSummaryResponse {
	matches := make([]MatchResponse, len(s.Matches))
	for i, m := range s.Matches {
		matches[i] = MatchResponse{
			DisbursementID:   m.DisbursementID,
			MatchType:        string(m.MatchType),
			Confidence:       m.Confidence,
			MatchedReference: m.MatchedReference,
			MatchedAmount:    m.MatchedAmount,
			AmountDifference: m.AmountDifference,
			AutoReconciled:   m.AutoReconciled,
			RequiresReview:   m.RequiresReview,
			ReviewReason:     string(m.ReviewReason),
			RuleID:           m.RuleID,
			RecordIndex:      m.RecordIndex,
		}
	}
	return &ReconciliationSummaryResponse{
		Kind:              string(s.Kind),
		Processed:         s.Processed,
		Skipped:           s.Skipped,
		Matched:           s.Matched,
		Unmatched:         s.Unmatched,
		AutoReconciled:    s.AutoReconciled,
		SentToReview:      s.SentToReview,
		DuplicateReviews:  s.DuplicateReviews,
		AlreadyReconciled: s.AlreadyReconciled,
		Errors:            s.Errors,
		Matches:           matches,
	}
}

// ReviewResponse represents a reconciliation review in API responses.
type ReviewResponse struct {
	ID                int64      `json:"id"`
	DisbursementID    int64      `json:"disbursement_id"`
	MatchType         string     `json:"match_type"`
	Confidence        float64    `json:"confidence"`
	ExternalReference string     `json:"external_reference"`
	ExternalAmount    int64      `json:"external_amount"`
	AmountDifference  int64      `json:"amount_difference"`
	Status            string     `json:"status"`
	ReviewReason      string     `json:"review_reason"`
	ApprovedBy        string     `json:"approved_by,omitempty"`
	RejectedBy        string     `json:"rejected_by,omitempty"`
	RejectionReason   string     `json:"rejection_reason,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	ResolvedAt        *time.Time `json:"resolved_at,omitempty"`
}

// ReviewFromDomain converts a domain review to a response.
func ReviewFromDomain(r *domain.ReconciliationReview) *ReviewResponse {
	return &ReviewResponse{
		ID:                r.ID,
		DisbursementID:    r.DisbursementID,
		MatchType:         string(r.MatchType),
		Confidence:        r.Confidence,
		ExternalReference: r.ExternalReference,
		ExternalAmount:    r.ExternalAmount,
		AmountDifference:  r.AmountDifference,
		Status:            string(r.Status),
		ReviewReason:      string(r.ReviewReason),
		ApprovedBy:        r.ApprovedBy,
		RejectedBy:        r.RejectedBy,
		RejectionReason:   r.RejectionReason,
		CreatedAt:         r.CreatedAt,
		ResolvedAt:        r.ResolvedAt,
	}
}

// ReviewPageResponse is a page of reviews.
type ReviewPageResponse struct {
	Items  []*ReviewResponse `json:"items"`
	Total  int               `json:"total"`
	Limit  int               `json:"limit"`
	Offset int               `json:"offset"`
}

// ReviewPageFromUseCase converts a review page to a response.
func ReviewPageFromUseCase(p *usecase.ReviewPage) *ReviewPageResponse {
	items := make([]*ReviewResponse, len(p.Items))
	for i, rv := range p.Items {
		items[i] = ReviewFromDomain(rv)
	}
	return &ReviewPageResponse{Items: items, Total: p.Total, Limit: p.Limit, Offset: p.Offset}
}

// TriageResultResponse summarizes an automatic review triage pass.
type TriageResultResponse struct {
	Evaluated  int      `json:"evaluated"`
	Approved   int      `json:"approved"`
	Rejected   int      `json:"rejected"`
	Superseded int      `json:"superseded"`
	Untouched  int      `json:"untouched"`
	Errors     []string `json:"errors,omitempty"`
}

// TriageResultFromUseCase converts a triage result to a response.
func TriageResultFromUseCase(r *usecase.TriageResult) *TriageResultResponse {
	return &TriageResultResponse{
		Evaluated:  r.Evaluated,
		Approved:   r.Approved,
		Rejected:   r.Rejected,
		Superseded: r.Superseded,
		Untouched:  r.Untouched,
		Errors:     r.Errors,
	}
}

// CurrencyTotalsResponse holds per-currency amounts in minor units.
type CurrencyTotalsResponse struct {
	Currency           string `json:"currency"`
	TotalAmount        int64  `json:"total_amount"`
	ReconciledAmount   int64  `json:"reconciled_amount"`
	UnreconciledAmount int64  `json:"unreconciled_amount"`
}

// UnreconciledItemResponse is one disbursement awaiting reconciliation.
type UnreconciledItemResponse struct {
	DisbursementID int64     `json:"disbursement_id"`
	Status         string    `json:"status"`
	Method         string    `json:"method"`
	Amount         int64     `json:"amount"`
	Currency       string    `json:"currency"`
	CreatedAt      time.Time `json:"created_at"`
	FailureReason  string    `json:"failure_reason,omitempty"`
}

// ReportResponse is a reconciliation report over a date range.
type ReportResponse struct {
	From              time.Time                  `json:"from"`
	To                time.Time                  `json:"to"`
	GeneratedAt       time.Time                  `json:"generated_at"`
	Total             int                        `json:"total"`
	Reconciled        int                        `json:"reconciled"`
	Unreconciled      int                        `json:"unreconciled"`
	AutoReconciled    int                        `json:"auto_reconciled"`
	ManualReconciled  int                        `json:"manual_reconciled"`
	Currencies        []CurrencyTotalsResponse   `json:"currencies"`
	UnreconciledItems []UnreconciledItemResponse `json:"unreconciled_items"`
}

// ReportFromUseCase converts a reconciliation report to a response.
func ReportFromUseCase(r *usecase.ReconciliationReport) *ReportResponse {
	currencies := make([]CurrencyTotalsResponse, len(r.Currencies))
	for i, c := range r.Currencies {
		currencies[i] = CurrencyTotalsResponse(c)
	}
	items := make([]UnreconciledItemResponse, len(r.UnreconciledItems))
	for i, it := range r.UnreconciledItems {
		items[i] = UnreconciledItemResponse{
			DisbursementID: it.DisbursementID,
			Status:         string(it.Status),
			Method:         string(it.Method),
			Amount:         it.Amount,
			Currency:       it.Currency,
			CreatedAt:      it.CreatedAt,
			FailureReason:  it.FailureReason,
		}
	}
	return &ReportResponse{
		From:              r.Range.From,
		To:                r.Range.To,
		GeneratedAt:       r.GeneratedAt,
		Total:             r.Total,
		Reconciled:        r.Reconciled,
		Unreconciled:      r.Unreconciled,
		AutoReconciled:    r.AutoReconciled,
		ManualReconciled:  r.ManualReconciled,
		Currencies:        currencies,
		UnreconciledItems: items,
	}
}

// MethodStatisticsResponse holds reconciliation counts for one payment method.
type MethodStatisticsResponse struct {
	Method           string          `json:"method"`
	Total            int             `json:"total"`
	Reconciled       int             `json:"reconciled"`
	AutoReconciled   int             `json:"auto_reconciled"`
	ManualReconciled int             `json:"manual_reconciled"`
	Unreconciled     int             `json:"unreconciled"`
	ReconciledPct    decimal.Decimal `json:"reconciled_pct"`
}

// StatisticsResponse holds reconciliation rates over a date range.
type StatisticsResponse struct {
	From          time.Time                  `json:"from"`
	To            time.Time                  `json:"to"`
	Total         int                        `json:"total"`
	Reconciled    int                        `json:"reconciled"`
	ReconciledPct decimal.Decimal            `json:"reconciled_pct"`
	Methods       []MethodStatisticsResponse `json:"methods"`
}

// StatisticsFromUseCase converts statistics to a response.
func StatisticsFromUseCase(s *usecase.Statistics) *StatisticsResponse {
	methods := make([]MethodStatisticsResponse, len(s.Methods))
	for i, m := range s.Methods {
		methods[i] = MethodStatisticsResponse{
			Method:           string(m.Method),
			Total:            m.Total,
			Reconciled:       m.Reconciled,
			AutoReconciled:   m.AutoReconciled,
			ManualReconciled: m.ManualReconciled,
			Unreconciled:     m.Unreconciled,
			ReconciledPct:    m.ReconciledPct,
		}
	}
	return &StatisticsResponse{
		From:          s.Range.From,
		To:            s.Range.To,
		Total:         s.Total,
		Reconciled:    s.Reconciled,
		ReconciledPct: s.ReconciledPct,
		Methods:       methods,
	}
}
