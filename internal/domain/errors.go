package domain

import (
	"errors"
	"fmt"
)

var (
	// Validation errors
	ErrInvoiceNotPayable  = errors.New("invoice is not in a payable state")
	ErrUnsupportedMethod  = errors.New("unsupported payment method")
	ErrMissingDestination = errors.New("vendor is missing destination details for payment method")
	ErrInvalidAmount      = errors.New("amount must be positive")
	ErrInvalidCurrency    = errors.New("invalid currency code")
	ErrMethodMismatch     = errors.New("disbursement method does not match processor")
	ErrReferenceMismatch  = errors.New("reference does not match recorded external reference")
	ErrInvalidRule        = errors.New("invalid reconciliation rule")
	ErrInvalidDateRange   = errors.New("invalid date range")
	ErrActorRequired      = errors.New("approver is required")

	// Not found errors
	ErrDisbursementNotFound   = errors.New("disbursement not found")
	ErrReviewNotFound         = errors.New("reconciliation review not found")
	ErrPaymentRunNotFound     = errors.New("payment run not found")
	ErrNoPendingDisbursements = errors.New("payment run has no pending disbursements")
	ErrInvoiceNotFound        = errors.New("invoice not found")
	ErrVendorNotFound         = errors.New("vendor not found")

	// Conflict errors
	ErrReviewAlreadyResolved   = errors.New("reconciliation review already resolved")
	ErrAlreadyReconciled       = errors.New("disbursement already reconciled")
	ErrInvalidStatusTransition = errors.New("invalid disbursement status transition")
	ErrConcurrentModification  = errors.New("disbursement was modified concurrently")
	ErrLockNotObtained         = errors.New("could not obtain disbursement lock")
	ErrRequiresRepair          = errors.New("disbursement was settled by the rail but not recorded; repair it manually")
)

var validationErrors = []error{
	ErrInvoiceNotPayable, ErrUnsupportedMethod, ErrMissingDestination, ErrInvalidAmount,
	ErrInvalidCurrency, ErrMethodMismatch, ErrReferenceMismatch, ErrInvalidRule, ErrInvalidDateRange,
	ErrActorRequired,
}

var notFoundErrors = []error{
	ErrDisbursementNotFound, ErrReviewNotFound, ErrPaymentRunNotFound, ErrNoPendingDisbursements,
	ErrInvoiceNotFound, ErrVendorNotFound,
}

var conflictErrors = []error{
	ErrReviewAlreadyResolved, ErrAlreadyReconciled, ErrInvalidStatusTransition,
	ErrConcurrentModification, ErrLockNotObtained, ErrRequiresRepair,
}

// IsValidation reports whether err needs user correction before it can succeed.
func IsValidation(err error) bool { return isAny(err, validationErrors) }

// IsNotFound reports whether err refers to an unknown entity.
func IsNotFound(err error) bool { return isAny(err, notFoundErrors) }

// IsConflict reports whether err was caused by the current state of an entity.
func IsConflict(err error) bool { return isAny(err, conflictErrors) }

func isAny(err error, targets []error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}

// RailError is returned when an external settlement rail rejects or fails a payment.
type RailError struct {
	Method    PaymentMethod
	Reason    string
	Retryable bool
	Err       error
}

func (e *RailError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s rail: %s: %v", e.Method, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s rail: %s", e.Method, e.Reason)
}

func (e *RailError) Unwrap() error { return e.Err }

// IsRailError reports whether err carries a *RailError.
func IsRailError(err error) bool {
	var re *RailError
	return errors.As(err, &re)
}
