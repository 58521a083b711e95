package usecase

import (
	"strconv"
	"time"
)

const (
	// DefaultTransactionTimeout is the maximum duration for a database transaction
	// This prevents long-running transactions from blocking tables
	DefaultTransactionTimeout = 10 * time.Second

	// DefaultRailTimeout bounds a single attempt against an external rail.
	DefaultRailTimeout = 30 * time.Second

	// DefaultRetryWindow is how far back RetryFailedPayments looks for FAILED disbursements.
	DefaultRetryWindow = 24 * time.Hour

	// DefaultMaxRetries caps how often a disbursement is reset for retry.
	DefaultMaxRetries = 5

	// Candidate lookback used when no enabled rule of the family sets one.
	DefaultBankLookbackDays    = 30
	DefaultOnChainLookbackDays = 7

	// AutoTriageActor is recorded as approver/rejector for auto-triage decisions.
	AutoTriageActor = "system:auto-triage"

	// ManualActor is recorded for the manual reconciliation shortcuts.
	ManualActor = "system:manual"

	// SupersedeActor rejects the open reviews of a disbursement once it is reconciled.
	SupersedeActor = "system:reconciled"

	// IdempotencyKeyTTL is how long idempotency keys are cached
	IdempotencyKeyTTL = 24 * time.Hour
)

// DisbursementLockKey is the Locker key guarding a disbursement.
func DisbursementLockKey(id int64) string {
	return "disbursement:" + formatID(id)
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
