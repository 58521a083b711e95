package dto

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/vendorpay/internal/domain"
	"github.com/iho/vendorpay/internal/usecase"
)

// CreateDisbursementRequest represents a request to create a disbursement for an invoice.
type CreateDisbursementRequest struct {
	InvoiceID    int64      `json:"invoice_id" validate:"required,gt=0"`
	Method       string     `json:"method,omitempty" validate:"omitempty,oneof=ACH USDC SAFE_MULTISIG"`
	PaymentRunID *int64     `json:"payment_run_id,omitempty" validate:"omitempty,gt=0"`
	ScheduledAt  *time.Time `json:"scheduled_at,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *CreateDisbursementRequest) ToUseCaseInput() usecase.CreateDisbursementInput {
	return usecase.CreateDisbursementInput{
		InvoiceID:    r.InvoiceID,
		Method:       domain.PaymentMethod(r.Method),
		PaymentRunID: r.PaymentRunID,
		ScheduledAt:  r.ScheduledAt,
	}
}

// ReconcileRequest manually reconciles a bank payment against a statement reference.
type ReconcileRequest struct {
	BankReference string `json:"bank_reference" validate:"required"`
}

// MatchTransactionRequest manually reconciles an on-chain payment by transaction hash.
type MatchTransactionRequest struct {
	TxHash string `json:"tx_hash" validate:"required"`
}

// BankStatementEntry is one line of an ingested bank statement.
type BankStatementEntry struct {
	TransactionID string    `json:"transaction_id" validate:"required"`
	Date          time.Time `json:"date" validate:"required"`
	Amount        int64     `json:"amount" validate:"required"`
	Currency      string    `json:"currency" validate:"required,len=3"`
	Reference     string    `json:"reference,omitempty"`
	AccountNumber string    `json:"account_number,omitempty"`
	Type          string    `json:"type,omitempty" validate:"omitempty,oneof=DEBIT CREDIT debit credit"`
	Status        string    `json:"status,omitempty"`
}

// ReconcileBankStatementsRequest carries a batch of bank statement lines.
type ReconcileBankStatementsRequest struct {
	Entries []BankStatementEntry `json:"entries" validate:"required,min=1,dive"`
}

// ToDomain converts the request entries to domain records.
func (r *ReconcileBankStatementsRequest) ToDomain() []*domain.BankStatementEntry {
	out := make([]*domain.BankStatementEntry, len(r.Entries))
	for i, e := range r.Entries {
		out[i] = &domain.BankStatementEntry{
			TransactionID: e.TransactionID,
			Date:          e.Date,
			Amount:        e.Amount,
			Currency:      strings.ToUpper(e.Currency),
			Reference:     e.Reference,
			AccountNumber: e.AccountNumber,
			Type:          strings.ToUpper(e.Type),
			Status:        e.Status,
		}
	}
	return out
}

// TokenTransfer is an ERC-20 transfer log inside a transaction.
type TokenTransfer struct {
	Token           string `json:"token" validate:"required"`
	ContractAddress string `json:"contract_address,omitempty"`
	From            string `json:"from,omitempty"`
	To              string `json:"to" validate:"required"`
	Value           string `json:"value" validate:"required,numeric"`
	Decimals        int32  `json:"decimals" validate:"gte=0,lte=36"`
}

// BlockchainTransaction is one observed on-chain transaction.
type BlockchainTransaction struct {
	Hash           string          `json:"hash" validate:"required"`
	BlockNumber    int64           `json:"block_number" validate:"gte=0"`
	From           string          `json:"from,omitempty"`
	To             string          `json:"to,omitempty"`
	Value          decimal.Decimal `json:"value"`
	Status         string          `json:"status,omitempty"`
	Timestamp      time.Time       `json:"timestamp" validate:"required"`
	Confirmations  int             `json:"confirmations" validate:"gte=0"`
	TokenTransfers []TokenTransfer `json:"token_transfers,omitempty" validate:"dive"`
}

// ReconcileBlockchainRequest carries a batch of observed transactions.
type ReconcileBlockchainRequest struct {
	Transactions []BlockchainTransaction `json:"transactions" validate:"required,min=1,dive"`
}

// ToDomain converts the request transactions to domain records.
func (r *ReconcileBlockchainRequest) ToDomain() []*domain.BlockchainTransaction {
	out := make([]*domain.BlockchainTransaction, len(r.Transactions))
	for i, tx := range r.Transactions {
		transfers := make([]domain.TokenTransfer, len(tx.TokenTransfers))
		for j, tt := range tx.TokenTransfers {
			transfers[j] = domain.TokenTransfer{
				Token:           tt.Token,
				ContractAddress: tt.ContractAddress,
				From:            tt.From,
				To:              tt.To,
				Value:           tt.Value,
				Decimals:        tt.Decimals,
			}
		}
		out[i] = &domain.BlockchainTransaction{
			Hash:           tx.Hash,
			BlockNumber:    tx.BlockNumber,
			From:           tx.From,
			To:             tx.To,
			Value:          tx.Value,
			Status:         tx.Status,
			Timestamp:      tx.Timestamp,
			Confirmations:  tx.Confirmations,
			TokenTransfers: transfers,
		}
	}
	return out
}

// ApproveReviewRequest approves a pending review.
type ApproveReviewRequest struct {
	Approver string `json:"approver" validate:"required"`
}

// RejectReviewRequest rejects a pending review.
type RejectReviewRequest struct {
	Rejector string `json:"rejector" validate:"required"`
	Reason   string `json:"reason,omitempty" validate:"max=500"`
}
