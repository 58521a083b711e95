package domain

import "time"

// MatchType describes which evidence produced a reconciliation.
type MatchType string

const (
	MatchBankStatement   MatchType = "BANK_STATEMENT"
	MatchBlockchainHash  MatchType = "BLOCKCHAIN_HASH"
	MatchBlockchainScore MatchType = "BLOCKCHAIN_HEURISTIC"
	MatchManualBank      MatchType = "MANUAL_BANK"
	MatchManualChain     MatchType = "MANUAL_CHAIN"
)

// ReviewStatus is the state of a review record.
type ReviewStatus string

const (
	ReviewPending  ReviewStatus = "PENDING_REVIEW"
	ReviewApproved ReviewStatus = "APPROVED"
	ReviewRejected ReviewStatus = "REJECTED"
)

// ReviewReason explains why a match was not committed automatically.
type ReviewReason string

const (
	ReasonLowConfidence        ReviewReason = "LOW_CONFIDENCE"
	ReasonAmountMismatch       ReviewReason = "AMOUNT_MISMATCH"
	ReasonRuleRequiresApproval ReviewReason = "RULE_REQUIRES_APPROVAL"
	ReasonAmbiguousMatch       ReviewReason = "AMBIGUOUS_MATCH"
)

// RejectionSuperseded is the rejection reason of reviews closed because their
// disbursement was reconciled through another match.
const RejectionSuperseded = "SUPERSEDED"

// ReconciliationMatch is a scored candidate pairing of a settlement record and a disbursement.
type ReconciliationMatch struct {
	DisbursementID   int64
	MatchType        MatchType
	Confidence       float64
	MatchedReference string
	// MatchedAmount and AmountDifference are in minor units; the difference is absolute.
	MatchedAmount    int64
	AmountDifference int64
	AutoReconciled   bool
	RequiresReview   bool
	ReviewReason     ReviewReason
	RuleID           string
	// RecordIndex is the position of the settlement record in its ingestion batch.
	RecordIndex int
}

// ReconciliationReview is a persisted, human-actionable candidate match.
type ReconciliationReview struct {
	ID                int64
	DisbursementID    int64
	MatchType         MatchType
	Confidence        float64
	ExternalReference string
	ExternalAmount    int64
	AmountDifference  int64
	Status            ReviewStatus
	ReviewReason      ReviewReason
	ApprovedBy        string
	RejectedBy        string
	RejectionReason   string
	CreatedAt         time.Time
	ResolvedAt        *time.Time
	UpdatedAt         time.Time
}

// NewReviewFromMatch materializes a review record for a match routed to review.
func NewReviewFromMatch(m ReconciliationMatch, now time.Time) *ReconciliationReview {
	return &ReconciliationReview{
		DisbursementID:    m.DisbursementID,
		MatchType:         m.MatchType,
		Confidence:        m.Confidence,
		ExternalReference: m.MatchedReference,
		ExternalAmount:    m.MatchedAmount,
		AmountDifference:  m.AmountDifference,
		Status:            ReviewPending,
		ReviewReason:      m.ReviewReason,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// Approve resolves the review as approved.
func (r *ReconciliationReview) Approve(approver string, at time.Time) error {
	if r.Status != ReviewPending {
		return ErrReviewAlreadyResolved
	}
	r.Status = ReviewApproved
	r.ApprovedBy = approver
	r.ResolvedAt = &at
	r.UpdatedAt = at
	return nil
}

// Reject resolves the review as rejected.
func (r *ReconciliationReview) Reject(rejector, reason string, at time.Time) error {
	if r.Status != ReviewPending {
		return ErrReviewAlreadyResolved
	}
	r.Status = ReviewRejected
	r.RejectedBy = rejector
	r.RejectionReason = reason
	r.ResolvedAt = &at
	r.UpdatedAt = at
	return nil
}

// Clone returns a deep copy.
func (r *ReconciliationReview) Clone() *ReconciliationReview {
	c := *r
	if r.ResolvedAt != nil {
		v := *r.ResolvedAt
		c.ResolvedAt = &v
	}
	return &c
}

// ReviewFilter narrows a pending review listing.
type ReviewFilter struct {
	Status        ReviewStatus
	Reason        ReviewReason
	MinConfidence *float64
	MaxConfidence *float64
	Limit         int
	Offset        int
}

// ReconciliationLogEntry is the immutable record of a committed reconciliation.
type ReconciliationLogEntry struct {
	ID                int64
	DisbursementID    int64
	MatchType         MatchType
	Confidence        float64
	ExternalReference string
	MatchedAmount     int64
	AmountDifference  int64
	AutoReconciled    bool
	ApprovedBy        string
	ProcessedAt       time.Time
}
