package usecase

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/vendorpay/internal/domain"
)

// Bank statement weights.
const (
	bankAmountWeight    = 40
	bankDateWeight      = 20
	bankReferenceWeight = 25
	bankAccountWeight   = 15
)

// Blockchain weights; an exact hash match scores hashMatchConfidence outright.
const (
	chainRecipientWeight = 50
	chainAmountWeight    = 30
	chainDateWeight      = 20
	hashMatchConfidence  = 100
)

// Match scores one settlement record against candidate disbursements and returns
// the passing matches, highest confidence first. It performs no I/O.
func Match(record domain.SettlementRecord, candidates []*domain.Disbursement, rules domain.RuleSet) []domain.ReconciliationMatch {
	var matches []domain.ReconciliationMatch

	for _, d := range candidates {
		if d.Status != domain.StatusConfirmed {
			continue
		}
		rule, ok := rules.RuleFor(d.Method)
		if !ok {
			continue
		}

		var m domain.ReconciliationMatch
		switch rec := record.(type) {
		case *domain.BankStatementEntry:
			if d.Method.Family() != domain.FamilyBank {
				continue
			}
			if rec.Currency != "" && !strings.EqualFold(rec.Currency, d.Currency) {
				continue
			}
			m = scoreBankEntry(rec, d, rule)
		case *domain.BlockchainTransaction:
			if d.Method.Family() != domain.FamilyOnChain {
				continue
			}
			m = scoreBlockchainTx(rec, d, rule)
		default:
			continue
		}

		if decide(&m, rule, d.Currency) {
			matches = append(matches, m)
		}
	}

	sort.SliceStable(matches, func(i, j int) bool { return betterMatch(matches[i], matches[j]) })

	return matches
}

func scoreBankEntry(e *domain.BankStatementEntry, d *domain.Disbursement, rule *domain.ReconciliationRule) domain.ReconciliationMatch {
	diff := domain.AbsDiff(e.Amount, d.Amount)

	score := proximity(bankAmountWeight, diff, tolerance(d.Amount, rule.AmountTolerancePct))
	score += proximity(bankDateWeight, calendarDays(e.Date, d.SettledAt()), decimal.NewFromInt(int64(rule.DateRangeDays)))

	if referenceMatches(e.Reference, d.PaymentReference(), d.Reference.BankReference, d.Reference.TransactionID) {
		score += bankReferenceWeight
	}
	if acct := strings.TrimSpace(e.AccountNumber); acct != "" && acct == strings.TrimSpace(d.DestinationAccount) {
		score += bankAccountWeight
	}

	return domain.ReconciliationMatch{
		DisbursementID:   d.ID,
		MatchType:        domain.MatchBankStatement,
		Confidence:       roundConfidence(score),
		MatchedReference: e.ExternalReference(),
		MatchedAmount:    e.Amount,
		AmountDifference: diff,
		RuleID:           rule.ID,
	}
}

func scoreBlockchainTx(tx *domain.BlockchainTransaction, d *domain.Disbursement, rule *domain.ReconciliationRule) domain.ReconciliationMatch {
	m := domain.ReconciliationMatch{
		DisbursementID:   d.ID,
		MatchedReference: tx.Hash,
		RuleID:           rule.ID,
	}

	if domain.SameAddress(tx.Hash, d.Reference.TxHash) {
		// The hash is authoritative; the amount is compared only when the transaction carries one.
		amount, ok := chainAmount(tx, d, false)
		if !ok {
			amount = d.Amount
		}
		m.MatchType = domain.MatchBlockchainHash
		m.Confidence = hashMatchConfidence
		m.MatchedAmount = amount
		m.AmountDifference = domain.AbsDiff(amount, d.Amount)
		return m
	}

	var score float64
	_, tokenToDest := tx.TokenTransferTo(tokenSymbol(d), d.DestinationAccount)
	if tokenToDest || domain.SameAddress(tx.To, d.DestinationAccount) {
		score += chainRecipientWeight
	}

	amount, ok := chainAmount(tx, d, true)
	diff := domain.AbsDiff(amount, d.Amount)
	if ok {
		score += proximity(chainAmountWeight, diff, tolerance(d.Amount, rule.AmountTolerancePct))
	}
	score += proximity(chainDateWeight, calendarDays(tx.Timestamp, d.SettledAt()), decimal.NewFromInt(int64(rule.DateRangeDays)))

	m.MatchType = domain.MatchBlockchainScore
	m.Confidence = roundConfidence(score)
	m.MatchedAmount = amount
	m.AmountDifference = diff
	return m
}

// decide applies the rule's decision policy and reports whether m passes.
// currency is the disbursement's, in which m.AmountDifference is counted.
func decide(m *domain.ReconciliationMatch, rule *domain.ReconciliationRule, currency string) bool {
	if m.Confidence < rule.MinimumConfidence {
		return false
	}

	highConfidence := m.Confidence >= rule.AutoReconcileThreshold
	withinCap := rule.WithinAutoCap(m.AmountDifference, currency)

	if highConfidence && withinCap && rule.Actions.AutoReconcile {
		m.AutoReconciled = true
		return true
	}
	if !rule.Actions.RequireApproval {
		return false
	}

	m.RequiresReview = true
	switch {
	case !highConfidence:
		m.ReviewReason = domain.ReasonLowConfidence
	case !withinCap:
		m.ReviewReason = domain.ReasonAmountMismatch
	default:
		m.ReviewReason = domain.ReasonRuleRequiresApproval
	}
	return true
}

// betterMatch orders by confidence desc, amount difference asc, then record order and id.
func betterMatch(a, b domain.ReconciliationMatch) bool {
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	if a.AmountDifference != b.AmountDifference {
		return a.AmountDifference < b.AmountDifference
	}
	if a.RecordIndex != b.RecordIndex {
		return a.RecordIndex < b.RecordIndex
	}
	return a.DisbursementID < b.DisbursementID
}

// tolerance returns pct percent of amount in minor units.
func tolerance(amount int64, pct float64) decimal.Decimal {
	return decimal.NewFromInt(amount).Mul(decimal.NewFromFloat(pct)).Div(decimal.NewFromInt(100)).Abs()
}

// proximity awards weight for an exact hit, scaling linearly to zero at limit.
func proximity(weight float64, diff int64, limit decimal.Decimal) float64 {
	if diff == 0 {
		return weight
	}
	if !limit.IsPositive() {
		return 0
	}

	d := decimal.NewFromInt(diff)
	if d.GreaterThan(limit) {
		return 0
	}
	ratio := d.Div(limit).InexactFloat64()
	return weight * (1 - ratio)
}

// calendarDays is the absolute number of UTC calendar days between a and b.
func calendarDays(a, b time.Time) int64 {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	da := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	db := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	days := int64(da.Sub(db).Hours() / 24)
	if days < 0 {
		return -days
	}
	return days
}

// referenceMatches reports whether the statement reference contains one of the
// disbursement references or is contained in one.
func referenceMatches(statementRef string, refs ...string) bool {
	statementRef = strings.ToUpper(strings.TrimSpace(statementRef))
	if statementRef == "" {
		return false
	}
	for _, ref := range refs {
		ref = strings.ToUpper(strings.TrimSpace(ref))
		if ref == "" {
			continue
		}
		if containsBounded(statementRef, ref) || containsBounded(ref, statementRef) {
			return true
		}
	}
	return false
}

// containsBounded is strings.Contains that refuses to split a run of digits,
// so PAY-4 does not match inside PAY-42.
func containsBounded(haystack, needle string) bool {
	for start := 0; start+len(needle) <= len(haystack); {
		i := strings.Index(haystack[start:], needle)
		if i < 0 {
			return false
		}
		i += start
		end := i + len(needle)

		leftOK := i == 0 || !isDigit(haystack[i-1]) || !isDigit(needle[0])
		rightOK := end == len(haystack) || !isDigit(haystack[end]) || !isDigit(needle[len(needle)-1])
		if leftOK && rightOK {
			return true
		}
		start = i + 1
	}
	return false
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

// chainAmount resolves the amount a transaction moved for d in d's minor units.
// Token transfers to d's destination are summed. Without requireRecipient and
// with no such transfer, the token transfer closest to d.Amount is taken.
// Native value is the last resort.
func chainAmount(tx *domain.BlockchainTransaction, d *domain.Disbursement, requireRecipient bool) (int64, bool) {
	token := tokenSymbol(d)

	var (
		toDest, found             bool
		sum, closest, closestDiff int64
	)
	for _, tt := range tx.TokenTransfers {
		if !strings.EqualFold(tt.Token, token) {
			continue
		}
		v, err := tt.Amount()
		if err != nil {
			continue
		}
		amount := domain.ToMinor(v, d.Currency)
		if domain.SameAddress(tt.To, d.DestinationAccount) {
			toDest = true
			sum += amount
			continue
		}
		if diff := domain.AbsDiff(amount, d.Amount); !found || diff < closestDiff {
			found, closest, closestDiff = true, amount, diff
		}
	}
	switch {
	case toDest:
		return sum, true
	case found && !requireRecipient:
		return closest, true
	case tx.Value.IsPositive():
		return domain.ToMinor(tx.Value, d.Currency), true
	}
	return 0, false
}

// tokenSymbol is the token a disbursement settles in; USD amounts settle as USDC.
func tokenSymbol(d *domain.Disbursement) string {
	if d.Method == domain.MethodUSDC || strings.EqualFold(d.Currency, "USD") {
		return "USDC"
	}
	return strings.ToUpper(d.Currency)
}

func roundConfidence(score float64) float64 {
	return domain.ClampConfidence(math.Round(score*100) / 100)
}
