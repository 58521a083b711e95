package domain

import (
	"fmt"
	"strings"
	"time"
)

// PaymentMethod identifies the settlement rail a disbursement is paid through.
type PaymentMethod string

const (
	MethodACH          PaymentMethod = "ACH"
	MethodUSDC         PaymentMethod = "USDC"
	MethodSafeMultisig PaymentMethod = "SAFE_MULTISIG"
)

// MethodFamily groups methods that settle through the same kind of evidence feed.
type MethodFamily string

const (
	FamilyBank    MethodFamily = "BANK"
	FamilyOnChain MethodFamily = "ONCHAIN"
)

// AllMethods lists every supported payment method.
var AllMethods = []PaymentMethod{MethodACH, MethodUSDC, MethodSafeMultisig}

// Valid reports whether m is a supported method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodACH, MethodUSDC, MethodSafeMultisig:
		return true
	}
	return false
}

// Family returns the settlement family of the method.
func (m PaymentMethod) Family() MethodFamily {
	if m == MethodACH {
		return FamilyBank
	}
	return FamilyOnChain
}

// ParsePaymentMethod parses a method name case-insensitively.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	m := PaymentMethod(strings.ToUpper(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedMethod, s)
	}
	return m, nil
}

// MethodsInFamily returns the methods settled through the given family.
func MethodsInFamily(f MethodFamily) []PaymentMethod {
	var out []PaymentMethod
	for _, m := range AllMethods {
		if m.Family() == f {
			out = append(out, m)
		}
	}
	return out
}

// DisbursementStatus is the lifecycle state of a disbursement.
type DisbursementStatus string

const (
	StatusPending    DisbursementStatus = "PENDING"
	StatusProcessing DisbursementStatus = "PROCESSING"
	StatusConfirmed  DisbursementStatus = "CONFIRMED"
	StatusFailed     DisbursementStatus = "FAILED"
	StatusReconciled DisbursementStatus = "RECONCILED"
)

// PROCESSING -> PENDING only happens for a multisig proposal that is still short of signatures.
var statusTransitions = map[DisbursementStatus][]DisbursementStatus{
	StatusPending:    {StatusProcessing},
	StatusProcessing: {StatusConfirmed, StatusFailed, StatusPending},
	StatusFailed:     {StatusPending},
	StatusConfirmed:  {StatusReconciled},
}

// CanTransitionTo reports whether the state machine allows s -> next.
func (s DisbursementStatus) CanTransitionTo(next DisbursementStatus) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ReconciliationType records how a disbursement reached RECONCILED.
type ReconciliationType string

const (
	ReconciliationAuto   ReconciliationType = "AUTO"
	ReconciliationManual ReconciliationType = "MANUAL"
)

// ExternalReference holds the rail-specific identifiers of an executed payment.
type ExternalReference struct {
	TransactionID  string
	BankReference  string
	TxHash         string
	BlockNumber    int64
	Confirmations  int
	SignatureCount int
}

// Disbursement is one outbound payment obligation tied to exactly one invoice.
type Disbursement struct {
	ID           int64
	InvoiceID    int64
	VendorID     int64
	PaymentRunID *int64

	// Amount is in minor units of Currency.
	Amount   int64
	Currency string
	Method   PaymentMethod
	Status   DisbursementStatus

	Reference ExternalReference

	// Destination snapshot taken from the vendor profile at creation.
	DestinationAccount string
	DestinationRouting string
	SafeThreshold      int

	ReconciledAt             *time.Time
	ReconciliationType       *ReconciliationType
	ReconciliationConfidence *float64

	RetryCount    int
	FailureReason string
	// RequiresRepair is set when the rail accepted the payment (or holds a live
	// proposal) but the engine could not record it. Such a row is never
	// re-submitted automatically.
	RequiresRepair bool
	ScheduledAt   *time.Time
	ExecutedAt    *time.Time

	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PaymentReference is the memo sent with the payment and echoed back on bank statements.
func (d *Disbursement) PaymentReference() string {
	return fmt.Sprintf("PAY-%d", d.ID)
}

// RecordedReference returns the primary rail identifier recorded for the disbursement.
func (d *Disbursement) RecordedReference() string {
	switch {
	case d.Reference.TxHash != "":
		return d.Reference.TxHash
	case d.Reference.BankReference != "":
		return d.Reference.BankReference
	default:
		return d.Reference.TransactionID
	}
}

// SettledAt is the point in time settlement evidence is compared against.
func (d *Disbursement) SettledAt() time.Time {
	switch {
	case d.ExecutedAt != nil:
		return *d.ExecutedAt
	case d.ScheduledAt != nil:
		return *d.ScheduledAt
	default:
		return d.CreatedAt
	}
}

// Transition moves the disbursement to next if the state machine allows it.
func (d *Disbursement) Transition(next DisbursementStatus, at time.Time) error {
	if !d.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, d.Status, next)
	}
	d.Status = next
	d.UpdatedAt = at
	return nil
}

// MarkReconciled commits the terminal reconciliation state.
func (d *Disbursement) MarkReconciled(kind ReconciliationType, confidence float64, at time.Time) error {
	if d.Status == StatusReconciled {
		return ErrAlreadyReconciled
	}
	if err := d.Transition(StatusReconciled, at); err != nil {
		return err
	}
	c := ClampConfidence(confidence)
	d.ReconciledAt = &at
	d.ReconciliationType = &kind
	d.ReconciliationConfidence = &c
	return nil
}

// ResetForRetry moves a failed disbursement back to PENDING.
func (d *Disbursement) ResetForRetry(at time.Time) error {
	if d.Status != StatusFailed {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, d.Status, StatusPending)
	}
	if d.RequiresRepair {
		return fmt.Errorf("%w: disbursement %d (%s)", ErrRequiresRepair, d.ID, d.RecordedReference())
	}
	d.Status = StatusPending
	d.RetryCount++
	d.FailureReason = ""
	d.UpdatedAt = at
	return nil
}

// Clone returns a deep copy.
func (d *Disbursement) Clone() *Disbursement {
	c := *d
	if d.PaymentRunID != nil {
		v := *d.PaymentRunID
		c.PaymentRunID = &v
	}
	if d.ReconciledAt != nil {
		v := *d.ReconciledAt
		c.ReconciledAt = &v
	}
	if d.ReconciliationType != nil {
		v := *d.ReconciliationType
		c.ReconciliationType = &v
	}
	if d.ReconciliationConfidence != nil {
		v := *d.ReconciliationConfidence
		c.ReconciliationConfidence = &v
	}
	if d.ScheduledAt != nil {
		v := *d.ScheduledAt
		c.ScheduledAt = &v
	}
	if d.ExecutedAt != nil {
		v := *d.ExecutedAt
		c.ExecutedAt = &v
	}
	return &c
}

// ClampConfidence bounds a score to [0, 100].
func ClampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 100 {
		return 100
	}
	return c
}
