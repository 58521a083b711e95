package domain

import "strings"

// InvoiceStatus is the subset of invoice states the engine reads or writes.
type InvoiceStatus string

const (
	InvoiceDraft     InvoiceStatus = "DRAFT"
	InvoiceApproved  InvoiceStatus = "APPROVED"
	InvoiceScheduled InvoiceStatus = "SCHEDULED"
	InvoicePaid      InvoiceStatus = "PAID"
)

// Payable reports whether a disbursement may be created against an invoice in this state.
func (s InvoiceStatus) Payable() bool {
	return s == InvoiceApproved || s == InvoiceScheduled
}

// Invoice is the narrow view of an invoice the engine needs.
type Invoice struct {
	ID       int64
	VendorID int64
	Status   InvoiceStatus
	Amount   int64
	Currency string
}

// VendorPaymentDetails are the method-specific destination details on a vendor profile.
type VendorPaymentDetails struct {
	VendorID          int64         `json:"vendor_id"`
	PreferredMethod   PaymentMethod `json:"preferred_method"`
	BankRoutingNumber string        `json:"bank_routing_number,omitempty"`
	BankAccountNumber string        `json:"bank_account_number,omitempty"`
	CryptoAddress     string        `json:"crypto_address,omitempty"`
	SafeAddress       string        `json:"safe_address,omitempty"`
	SafeThreshold     int           `json:"safe_threshold,omitempty"`
}

// Destination returns the account, routing and threshold snapshot for method m.
func (v *VendorPaymentDetails) Destination(m PaymentMethod) (account, routing string, threshold int, err error) {
	switch m {
	case MethodACH:
		if strings.TrimSpace(v.BankRoutingNumber) == "" || strings.TrimSpace(v.BankAccountNumber) == "" {
			return "", "", 0, ErrMissingDestination
		}
		return v.BankAccountNumber, v.BankRoutingNumber, 0, nil
	case MethodUSDC:
		if strings.TrimSpace(v.CryptoAddress) == "" {
			return "", "", 0, ErrMissingDestination
		}
		return v.CryptoAddress, "", 0, nil
	case MethodSafeMultisig:
		if strings.TrimSpace(v.SafeAddress) == "" || v.SafeThreshold < 1 {
			return "", "", 0, ErrMissingDestination
		}
		return v.SafeAddress, "", v.SafeThreshold, nil
	}
	return "", "", 0, ErrUnsupportedMethod
}
