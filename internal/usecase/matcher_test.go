package usecase

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/vendorpay/internal/domain"
)

func confirmedACH(id int64, amount int64, executedAt time.Time) *domain.Disbursement {
	return &domain.Disbursement{
		ID:                 id,
		Amount:             amount,
		Currency:           "USD",
		Method:             domain.MethodACH,
		Status:             domain.StatusConfirmed,
		DestinationAccount: "000123456789",
		DestinationRouting: "021000021",
		Reference:          domain.ExternalReference{TransactionID: "ach_1", BankReference: "BR-1"},
		ExecutedAt:         &executedAt,
	}
}

func confirmedUSDC(id int64, amount int64, executedAt time.Time, txHash string) *domain.Disbursement {
	return &domain.Disbursement{
		ID:                 id,
		Amount:             amount,
		Currency:           "USD",
		Method:             domain.MethodUSDC,
		Status:             domain.StatusConfirmed,
		DestinationAccount: "0x9f8F72aA9304c8B593d555F12eF6589cC3A579A2",
		Reference:          domain.ExternalReference{TxHash: txHash, BlockNumber: 100, Confirmations: 1},
		ExecutedAt:         &executedAt,
	}
}

func TestMatch_BankStatement(t *testing.T) {
	executed := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	rules := domain.DefaultRuleSet()

	tests := []struct {
		name       string
		entry      *domain.BankStatementEntry
		wantMatch  bool
		confidence float64
		auto       bool
		reason     domain.ReviewReason
	}{
		{
			name: "exact match auto-reconciles",
			entry: &domain.BankStatementEntry{
				TransactionID: "stmt-1", Date: executed, Amount: 150000, Currency: "USD",
				Reference: "PAY-42 ACME SUPPLIES", AccountNumber: "000123456789", Type: "DEBIT",
			},
			wantMatch: true, confidence: 100, auto: true,
		},
		{
			name: "amount off by fifty cents goes to review",
			entry: &domain.BankStatementEntry{
				TransactionID: "stmt-2", Date: executed, Amount: 150050, Currency: "USD",
				Reference: "PAY-42", AccountNumber: "000123456789",
			},
			wantMatch: true, confidence: 98.67, reason: domain.ReasonAmountMismatch,
		},
		{
			name: "three days late is low confidence",
			entry: &domain.BankStatementEntry{
				TransactionID: "stmt-3", Date: executed.AddDate(0, 0, 3), Amount: 150000, Currency: "USD",
				Reference: "PAY-42", AccountNumber: "000123456789",
			},
			wantMatch: true, confidence: 88, reason: domain.ReasonLowConfidence,
		},
		{
			name: "one minor unit difference still auto-reconciles",
			entry: &domain.BankStatementEntry{
				TransactionID: "stmt-4", Date: executed, Amount: 149999, Currency: "USD",
				Reference: "PAY-42", AccountNumber: "000123456789",
			},
			wantMatch: true, confidence: 99.97, auto: true,
		},
		{
			name: "below minimum confidence is discarded",
			entry: &domain.BankStatementEntry{
				TransactionID: "stmt-5", Date: executed.AddDate(0, 0, 4), Amount: 151000, Currency: "USD",
				Reference: "INVOICE 77",
			},
		},
		{
			name: "other currency never matches",
			entry: &domain.BankStatementEntry{
				TransactionID: "stmt-6", Date: executed, Amount: 150000, Currency: "EUR",
				Reference: "PAY-42", AccountNumber: "000123456789",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := confirmedACH(42, 150000, executed)
			matches := Match(tt.entry, []*domain.Disbursement{d}, rules)

			if !tt.wantMatch {
				assert.Empty(t, matches)
				return
			}
			require.Len(t, matches, 1)
			m := matches[0]
			assert.Equal(t, int64(42), m.DisbursementID)
			assert.Equal(t, domain.MatchBankStatement, m.MatchType)
			assert.InDelta(t, tt.confidence, m.Confidence, 0.001)
			assert.Equal(t, tt.auto, m.AutoReconciled)
			assert.Equal(t, !tt.auto, m.RequiresReview)
			assert.Equal(t, tt.reason, m.ReviewReason)
			assert.Equal(t, "bank-default", m.RuleID)
			assert.Equal(t, domain.AbsDiff(tt.entry.Amount, d.Amount), m.AmountDifference)
		})
	}
}

func TestMatch_SkipsIneligibleCandidates(t *testing.T) {
	executed := time.Now().UTC()
	entry := &domain.BankStatementEntry{Date: executed, Amount: 1000, Reference: "PAY-1", AccountNumber: "000123456789"}

	pending := confirmedACH(1, 1000, executed)
	pending.Status = domain.StatusPending
	reconciled := confirmedACH(2, 1000, executed)
	reconciled.Status = domain.StatusReconciled
	onChain := confirmedUSDC(3, 1000, executed, "0xabc")

	assert.Empty(t, Match(entry, []*domain.Disbursement{pending, reconciled, onChain}, domain.DefaultRuleSet()))

	disabled := domain.DefaultRuleSet()
	disabled.Bank[0].Enabled = false
	assert.Empty(t, Match(entry, []*domain.Disbursement{confirmedACH(4, 1000, executed)}, disabled))
}

func TestMatch_SortedByConfidence(t *testing.T) {
	executed := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	entry := &domain.BankStatementEntry{Date: executed, Amount: 50000, Reference: "PAY-7", AccountNumber: "000123456789"}

	weaker := confirmedACH(8, 50100, executed)
	stronger := confirmedACH(7, 50000, executed)

	matches := Match(entry, []*domain.Disbursement{weaker, stronger}, domain.DefaultRuleSet())
	require.Len(t, matches, 2)
	assert.Equal(t, int64(7), matches[0].DisbursementID)
	assert.Greater(t, matches[0].Confidence, matches[1].Confidence)
}

func TestMatch_BlockchainHash(t *testing.T) {
	executed := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	d := confirmedUSDC(7, 250000, executed, "0xabc123def456")

	tx := &domain.BlockchainTransaction{
		Hash:      "0xABC123DEF456",
		Status:    "success",
		Timestamp: executed.AddDate(0, 0, 10),
		To:        "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48",
		TokenTransfers: []domain.TokenTransfer{{
			Token: "USDC", To: d.DestinationAccount, Value: "2500000000", Decimals: 6,
		}},
	}

	matches := Match(tx, []*domain.Disbursement{d}, domain.DefaultRuleSet())
	require.Len(t, matches, 1)
	m := matches[0]
	assert.Equal(t, domain.MatchBlockchainHash, m.MatchType)
	assert.Equal(t, float64(100), m.Confidence)
	assert.True(t, m.AutoReconciled)
	assert.Equal(t, int64(250000), m.MatchedAmount)
	assert.Zero(t, m.AmountDifference)
}

func TestMatch_BlockchainHashAmountFromMultiTransfer(t *testing.T) {
	executed := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	d := confirmedUSDC(7, 250000, executed, "0xbatch")
	fee := domain.TokenTransfer{Token: "USDC", To: "0x00000000000000000000000000000000000000fe", Value: "1000000", Decimals: 6}

	t.Run("transfer to the destination wins over earlier legs", func(t *testing.T) {
		tx := &domain.BlockchainTransaction{Hash: "0xbatch", Timestamp: executed, TokenTransfers: []domain.TokenTransfer{
			fee,
			{Token: "USDC", To: d.DestinationAccount, Value: "2500000000", Decimals: 6},
		}}
		m := Match(tx, []*domain.Disbursement{d}, domain.DefaultRuleSet())[0]
		assert.Equal(t, int64(250000), m.MatchedAmount)
		assert.True(t, m.AutoReconciled)
	})

	t.Run("split legs to the destination are summed", func(t *testing.T) {
		tx := &domain.BlockchainTransaction{Hash: "0xbatch", Timestamp: executed, TokenTransfers: []domain.TokenTransfer{
			{Token: "USDC", To: d.DestinationAccount, Value: "2000000000", Decimals: 6},
			fee,
			{Token: "USDC", To: d.DestinationAccount, Value: "500000000", Decimals: 6},
		}}
		m := Match(tx, []*domain.Disbursement{d}, domain.DefaultRuleSet())[0]
		assert.Equal(t, int64(250000), m.MatchedAmount)
		assert.Zero(t, m.AmountDifference)
	})

	t.Run("without a destination leg the closest amount is taken", func(t *testing.T) {
		tx := &domain.BlockchainTransaction{Hash: "0xbatch", Timestamp: executed, TokenTransfers: []domain.TokenTransfer{
			fee,
			{Token: "USDC", To: "0x00000000000000000000000000000000000000aa", Value: "2499990000", Decimals: 6},
		}}
		m := Match(tx, []*domain.Disbursement{d}, domain.DefaultRuleSet())[0]
		assert.Equal(t, int64(249999), m.MatchedAmount)
		assert.Equal(t, int64(1), m.AmountDifference)
	})
}

func TestMatch_ZeroExponentCurrencyCap(t *testing.T) {
	executed := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	d := confirmedACH(3, 10000, executed)
	d.Currency = "JPY"

	entry := &domain.BankStatementEntry{
		Date: executed, Amount: 10001, Currency: "JPY",
		Reference: "PAY-3", AccountNumber: d.DestinationAccount,
	}
	matches := Match(entry, []*domain.Disbursement{d}, domain.DefaultRuleSet())
	require.Len(t, matches, 1)
	assert.GreaterOrEqual(t, matches[0].Confidence, domain.DefaultRuleSet().Bank[0].AutoReconcileThreshold)
	assert.False(t, matches[0].AutoReconciled)
	assert.Equal(t, domain.ReasonAmountMismatch, matches[0].ReviewReason)
}

func TestMatch_BlockchainHeuristic(t *testing.T) {
	executed := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	d := confirmedUSDC(9, 250000, executed, "0xrecorded")

	t.Run("recipient amount and date", func(t *testing.T) {
		tx := &domain.BlockchainTransaction{
			Hash:      "0xother",
			Timestamp: executed,
			To:        "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48",
			TokenTransfers: []domain.TokenTransfer{{
				Token: "usdc", To: "0x9F8F72AA9304C8B593D555F12EF6589CC3A579A2", Value: "2500000000", Decimals: 6,
			}},
		}
		matches := Match(tx, []*domain.Disbursement{d}, domain.DefaultRuleSet())
		require.Len(t, matches, 1)
		assert.Equal(t, domain.MatchBlockchainScore, matches[0].MatchType)
		assert.Equal(t, float64(100), matches[0].Confidence)
		assert.True(t, matches[0].AutoReconciled)
	})

	t.Run("native value to recipient", func(t *testing.T) {
		tx := &domain.BlockchainTransaction{
			Hash:      "0xnative",
			Timestamp: executed.AddDate(0, 0, 1),
			To:        d.DestinationAccount,
			Value:     decimal.RequireFromString("2500"),
		}
		matches := Match(tx, []*domain.Disbursement{d}, domain.DefaultRuleSet())
		require.Len(t, matches, 1)
		assert.InDelta(t, 90, matches[0].Confidence, 0.001)
		assert.True(t, matches[0].RequiresReview)
		assert.Equal(t, domain.ReasonLowConfidence, matches[0].ReviewReason)
	})

	t.Run("wrong recipient is discarded", func(t *testing.T) {
		tx := &domain.BlockchainTransaction{
			Hash:      "0xelsewhere",
			Timestamp: executed,
			To:        "0x0000000000000000000000000000000000000001",
			TokenTransfers: []domain.TokenTransfer{{
				Token: "USDC", To: "0x0000000000000000000000000000000000000001", Value: "2500000000", Decimals: 6,
			}},
		}
		assert.Empty(t, Match(tx, []*domain.Disbursement{d}, domain.DefaultRuleSet()))
	})
}

func TestDecide(t *testing.T) {
	rule := domain.DefaultRuleSet().Bank[0]

	tests := []struct {
		name     string
		match    domain.ReconciliationMatch
		currency string
		mutate   func(r *domain.ReconciliationRule)
		pass     bool
		auto     bool
		reason   domain.ReviewReason
	}{
		{name: "below minimum", match: domain.ReconciliationMatch{Confidence: 59.99}},
		{name: "auto", match: domain.ReconciliationMatch{Confidence: 90, AmountDifference: 1}, pass: true, auto: true},
		{name: "amount cap", match: domain.ReconciliationMatch{Confidence: 95, AmountDifference: 2}, pass: true, reason: domain.ReasonAmountMismatch},
		{name: "JPY exact", match: domain.ReconciliationMatch{Confidence: 95}, currency: "JPY", pass: true, auto: true},
		{
			name:     "JPY one yen off",
			match:    domain.ReconciliationMatch{Confidence: 95, MatchedAmount: 10001, AmountDifference: 1},
			currency: "JPY",
			pass:     true,
			reason:   domain.ReasonAmountMismatch,
		},
		{name: "low confidence", match: domain.ReconciliationMatch{Confidence: 75}, pass: true, reason: domain.ReasonLowConfidence},
		{
			name:   "auto disabled by rule",
			match:  domain.ReconciliationMatch{Confidence: 100},
			mutate: func(r *domain.ReconciliationRule) { r.Actions.AutoReconcile = false },
			pass:   true,
			reason: domain.ReasonRuleRequiresApproval,
		},
		{
			name:   "review not allowed",
			match:  domain.ReconciliationMatch{Confidence: 75},
			mutate: func(r *domain.ReconciliationRule) { r.Actions.RequireApproval = false },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := rule
			if tt.mutate != nil {
				tt.mutate(&r)
			}
			currency := tt.currency
			if currency == "" {
				currency = "USD"
			}
			m := tt.match
			assert.Equal(t, tt.pass, decide(&m, &r, currency))
			assert.Equal(t, tt.auto, m.AutoReconciled)
			assert.Equal(t, tt.reason, m.ReviewReason)
		})
	}
}

func TestReferenceMatches(t *testing.T) {
	tests := []struct {
		statement string
		refs      []string
		want      bool
	}{
		{"PAY-42 ACME", []string{"PAY-42"}, true},
		{"pay-42", []string{"PAY-42"}, true},
		{"PAY-420", []string{"PAY-42"}, false},
		{"XPAY-4", []string{"PAY-42"}, false},
		{"PAY-4", []string{"PAY-42"}, false},
		{"BR-1", []string{"PAY-9", "BR-1"}, true},
		{"ACH ach_123 settled", []string{"PAY-9", "", "ach_123"}, true},
		{"", []string{"PAY-42"}, false},
		{"PAY-42", []string{""}, false},
	}

	for _, tt := range tests {
		t.Run(tt.statement, func(t *testing.T) {
			assert.Equal(t, tt.want, referenceMatches(tt.statement, tt.refs...))
		})
	}
}

func TestCalendarDays(t *testing.T) {
	a := time.Date(2026, 3, 10, 23, 59, 0, 0, time.UTC)
	b := time.Date(2026, 3, 11, 0, 1, 0, 0, time.UTC)
	assert.Equal(t, int64(1), calendarDays(a, b))
	assert.Equal(t, int64(1), calendarDays(b, a))
	assert.Equal(t, int64(0), calendarDays(a, a.Add(-time.Hour)))
}

func TestSelectWinners(t *testing.T) {
	t.Run("best match per disbursement wins", func(t *testing.T) {
		perRecord := [][]domain.ReconciliationMatch{
			{{DisbursementID: 1, Confidence: 92, AutoReconciled: true, RecordIndex: 0}},
			{{DisbursementID: 1, Confidence: 100, AutoReconciled: true, RecordIndex: 1}},
		}
		winners := selectWinners(perRecord)
		require.Len(t, winners, 1)
		assert.Equal(t, 1, winners[0].RecordIndex)
	})

	t.Run("equal confidence prefers smaller difference then earlier record", func(t *testing.T) {
		perRecord := [][]domain.ReconciliationMatch{
			{{DisbursementID: 1, Confidence: 95, AmountDifference: 1, RecordIndex: 0}},
			{{DisbursementID: 1, Confidence: 95, AmountDifference: 0, RecordIndex: 1}},
			{{DisbursementID: 1, Confidence: 95, AmountDifference: 0, RecordIndex: 2}},
		}
		winners := selectWinners(perRecord)
		require.Len(t, winners, 1)
		assert.Equal(t, 1, winners[0].RecordIndex)
	})

	t.Run("one record auto-commits one disbursement", func(t *testing.T) {
		perRecord := [][]domain.ReconciliationMatch{{
			{DisbursementID: 1, Confidence: 100, AutoReconciled: true, RecordIndex: 0},
			{DisbursementID: 2, Confidence: 96, AutoReconciled: true, RecordIndex: 0},
		}}
		winners := selectWinners(perRecord)
		require.Len(t, winners, 2)
		assert.Equal(t, int64(1), winners[0].DisbursementID)
		assert.True(t, winners[0].AutoReconciled)
		assert.Equal(t, int64(2), winners[1].DisbursementID)
		assert.False(t, winners[1].AutoReconciled)
		assert.True(t, winners[1].RequiresReview)
		assert.Equal(t, domain.ReasonAmbiguousMatch, winners[1].ReviewReason)
	})

	t.Run("demoted disbursement falls back to another record", func(t *testing.T) {
		perRecord := [][]domain.ReconciliationMatch{
			{
				{DisbursementID: 1, Confidence: 100, AutoReconciled: true, RecordIndex: 0},
				{DisbursementID: 2, Confidence: 99, AutoReconciled: true, RecordIndex: 0},
			},
			{{DisbursementID: 2, Confidence: 96, AutoReconciled: true, RecordIndex: 1}},
		}
		winners := selectWinners(perRecord)
		require.Len(t, winners, 2)
		assert.Equal(t, int64(1), winners[0].DisbursementID)
		assert.True(t, winners[0].AutoReconciled)
		assert.Equal(t, int64(2), winners[1].DisbursementID)
		assert.Equal(t, 1, winners[1].RecordIndex)
		assert.True(t, winners[1].AutoReconciled)
		assert.Empty(t, winners[1].ReviewReason)
	})

	t.Run("fallback record is not reused", func(t *testing.T) {
		perRecord := [][]domain.ReconciliationMatch{
			{
				{DisbursementID: 1, Confidence: 100, AutoReconciled: true, RecordIndex: 0},
				{DisbursementID: 2, Confidence: 99, AutoReconciled: true, RecordIndex: 0},
				{DisbursementID: 3, Confidence: 98, AutoReconciled: true, RecordIndex: 0},
			},
			{{DisbursementID: 2, Confidence: 96, AutoReconciled: true, RecordIndex: 1}},
		}
		winners := selectWinners(perRecord)
		require.Len(t, winners, 3)
		byID := make(map[int64]domain.ReconciliationMatch)
		for _, w := range winners {
			byID[w.DisbursementID] = w
		}
		assert.True(t, byID[1].AutoReconciled)
		assert.True(t, byID[2].AutoReconciled)
		assert.Equal(t, 1, byID[2].RecordIndex)
		assert.False(t, byID[3].AutoReconciled)
		assert.Equal(t, domain.ReasonAmbiguousMatch, byID[3].ReviewReason)
		assert.Equal(t, 0, byID[3].RecordIndex)
	})
}
