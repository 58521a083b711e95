package domain

import "time"

// PaymentRunStatus is the aggregate status of a payment run.
type PaymentRunStatus string

const (
	RunStatusScheduled         PaymentRunStatus = "SCHEDULED"
	RunStatusExecuting         PaymentRunStatus = "EXECUTING"
	RunStatusExecuted          PaymentRunStatus = "EXECUTED"
	RunStatusPartiallyExecuted PaymentRunStatus = "PARTIALLY_EXECUTED"
)

// PaymentRun is a named batch of disbursements scheduled for execution together.
type PaymentRun struct {
	ID          int64
	Name        string
	Status      PaymentRunStatus
	ScheduledAt *time.Time
	ExecutedAt  *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// DeriveRunStatus computes the aggregate run status from member outcomes.
func DeriveRunStatus(total, succeeded int) PaymentRunStatus {
	if total > 0 && succeeded == total {
		return RunStatusExecuted
	}
	return RunStatusPartiallyExecuted
}
