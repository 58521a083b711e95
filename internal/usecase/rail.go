package usecase

import (
	"context"

	"github.com/iho/vendorpay/internal/domain"
)

// RailPayment is the instruction handed to an external settlement rail.
type RailPayment struct {
	DisbursementID int64
	// IdempotencyKey is stable per execution attempt so a resubmission after a
	// transient failure cannot pay twice.
	IdempotencyKey     string
	Reference          string
	Method             domain.PaymentMethod
	Amount             int64
	Currency           string
	DestinationAccount string
	DestinationRouting string
}

// RailOutcome is what a rail reported for a submitted payment.
// Success=false is a definitive decline; transport problems are returned as errors.
type RailOutcome struct {
	Success       bool
	TransactionID string
	BankReference string
	TxHash        string
	BlockNumber   int64
	FailureReason string
}

// RailClient submits single-step payments (ACH, USDC).
type RailClient interface {
	Submit(ctx context.Context, p RailPayment) (*RailOutcome, error)
}

// SafeProposal is the signing state of a multisig transaction.
type SafeProposal struct {
	SafeTxHash string
	Signatures int
	Threshold  int
}

// SafeClient drives multisig treasury transfers.
type SafeClient interface {
	// Propose creates a proposal for p, or returns the current state of
	// safeTxHash when a proposal is already in flight.
	Propose(ctx context.Context, p RailPayment, safeTxHash string) (*SafeProposal, error)
	Execute(ctx context.Context, safeTxHash string) (*RailOutcome, error)
}

// RailResult is the outcome of a processor execution.
type RailResult struct {
	DisbursementID int64
	Success        bool
	Status         domain.DisbursementStatus
	ExternalRef    domain.ExternalReference
	Error          string
}

// RailProcessor drives one disbursement of its method through a rail.
type RailProcessor interface {
	Method() domain.PaymentMethod
	Execute(ctx context.Context, disbursementID int64) (*RailResult, error)
}
