package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// SettlementKind tags the variant of a settlement record.
type SettlementKind string

const (
	SettlementBank       SettlementKind = "BANK_STATEMENT"
	SettlementBlockchain SettlementKind = "BLOCKCHAIN"
)

// SettlementRecord is externally observed evidence that money moved.
// It is implemented by *BankStatementEntry and *BlockchainTransaction only.
type SettlementRecord interface {
	Kind() SettlementKind
	ExternalReference() string
	OccurredAt() time.Time
	Settled() bool
}

// BankStatementEntry is one line of a bank statement feed.
type BankStatementEntry struct {
	TransactionID string
	Date          time.Time
	// Amount is in minor units.
	Amount        int64
	Currency      string
	Reference     string
	AccountNumber string
	Type          string
	Status        string
}

func (e *BankStatementEntry) Kind() SettlementKind { return SettlementBank }

func (e *BankStatementEntry) ExternalReference() string {
	if e.Reference != "" {
		return e.Reference
	}
	return e.TransactionID
}

func (e *BankStatementEntry) OccurredAt() time.Time { return e.Date }

// Outbound reports whether the line debits the account; credits are never disbursements.
func (e *BankStatementEntry) Outbound() bool {
	return !strings.EqualFold(strings.TrimSpace(e.Type), "CREDIT")
}

// Settled reports whether the line represents money that actually moved.
func (e *BankStatementEntry) Settled() bool {
	switch strings.ToUpper(e.Status) {
	case "", "POSTED", "COMPLETED", "SETTLED", "BOOKED":
		return true
	}
	return false
}

// TokenTransfer is an ERC-20 style transfer emitted by a transaction.
type TokenTransfer struct {
	Token           string
	ContractAddress string
	From            string
	To              string
	// Value is the raw integer amount in the token's smallest unit.
	Value    string
	Decimals int32
}

// Amount resolves the raw value into token units.
func (t TokenTransfer) Amount() (decimal.Decimal, error) {
	raw, err := decimal.NewFromString(t.Value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("token transfer value %q: %w", t.Value, err)
	}
	return raw.Shift(-t.Decimals), nil
}

// BlockchainTransaction is one transaction observed on chain.
type BlockchainTransaction struct {
	Hash        string
	BlockNumber int64
	From        string
	To          string
	// Value is the native value in currency units.
	Value          decimal.Decimal
	Status         string
	Timestamp      time.Time
	Confirmations  int
	TokenTransfers []TokenTransfer
}

func (t *BlockchainTransaction) Kind() SettlementKind { return SettlementBlockchain }

func (t *BlockchainTransaction) ExternalReference() string { return t.Hash }

func (t *BlockchainTransaction) OccurredAt() time.Time { return t.Timestamp }

// Settled reports whether the transaction succeeded on chain.
func (t *BlockchainTransaction) Settled() bool {
	switch strings.ToLower(t.Status) {
	case "", "success", "confirmed", "1":
		return true
	}
	return false
}

// TokenTransferTo returns the first transfer of token to the recipient.
func (t *BlockchainTransaction) TokenTransferTo(token, recipient string) (TokenTransfer, bool) {
	for _, tt := range t.TokenTransfers {
		if strings.EqualFold(tt.Token, token) && SameAddress(tt.To, recipient) {
			return tt, true
		}
	}
	return TokenTransfer{}, false
}

// SameAddress compares chain addresses or hashes case-insensitively.
func SameAddress(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	return a != "" && strings.EqualFold(a, b)
}
