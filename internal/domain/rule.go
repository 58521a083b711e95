package domain

import (
	"fmt"
	"slices"

	"github.com/shopspring/decimal"
)

// RuleActions controls what a passing match is allowed to do.
type RuleActions struct {
	AutoReconcile   bool `yaml:"auto_reconcile"`
	RequireApproval bool `yaml:"require_approval"`
}

// ReconciliationRule configures matching for a set of payment methods.
type ReconciliationRule struct {
	ID                     string          `yaml:"id"`
	Enabled                bool            `yaml:"enabled"`
	ApplicableMethods      []PaymentMethod `yaml:"applicable_methods"`
	AmountTolerancePct     float64         `yaml:"amount_tolerance_pct"`
	DateRangeDays          int             `yaml:"date_range_days"`
	LookbackDays           int             `yaml:"lookback_days"`
	MinimumConfidence      float64         `yaml:"minimum_confidence"`
	AutoReconcileThreshold float64         `yaml:"auto_reconcile_threshold"`
	// MaxAutoAmountDifference is the hard cap, in currency units, for
	// auto-reconciliation.
	MaxAutoAmountDifference decimal.Decimal `yaml:"max_auto_amount_difference"`
	Actions                 RuleActions     `yaml:"actions"`
}

// DefaultMaxAutoAmountDifference is one cent.
var DefaultMaxAutoAmountDifference = decimal.New(1, -2)

// WithinAutoCap reports whether a minor-unit difference in currency is small
// enough to auto-reconcile.
func (r *ReconciliationRule) WithinAutoCap(diff int64, currency string) bool {
	return ToMajor(diff, currency).LessThanOrEqual(r.MaxAutoAmountDifference)
}

// AppliesTo reports whether the rule is enabled for the method.
func (r *ReconciliationRule) AppliesTo(m PaymentMethod) bool {
	return r.Enabled && slices.Contains(r.ApplicableMethods, m)
}

// Validate checks the rule is internally consistent.
func (r *ReconciliationRule) Validate() error {
	switch {
	case r.ID == "":
		return fmt.Errorf("%w: id is required", ErrInvalidRule)
	case len(r.ApplicableMethods) == 0:
		return fmt.Errorf("%w: %s has no applicable methods", ErrInvalidRule, r.ID)
	case r.AmountTolerancePct < 0:
		return fmt.Errorf("%w: %s amount tolerance is negative", ErrInvalidRule, r.ID)
	case r.DateRangeDays < 0 || r.LookbackDays < 0:
		return fmt.Errorf("%w: %s day windows must not be negative", ErrInvalidRule, r.ID)
	case r.MinimumConfidence < 0 || r.MinimumConfidence > 100:
		return fmt.Errorf("%w: %s minimum confidence out of range", ErrInvalidRule, r.ID)
	case r.AutoReconcileThreshold < r.MinimumConfidence || r.AutoReconcileThreshold > 100:
		return fmt.Errorf("%w: %s auto-reconcile threshold out of range", ErrInvalidRule, r.ID)
	case r.MaxAutoAmountDifference.IsNegative():
		return fmt.Errorf("%w: %s max auto amount difference is negative", ErrInvalidRule, r.ID)
	}
	for _, m := range r.ApplicableMethods {
		if !m.Valid() {
			return fmt.Errorf("%w: %s references %w %q", ErrInvalidRule, r.ID, ErrUnsupportedMethod, m)
		}
	}
	return nil
}

// RuleSet holds the loaded rules of both method families.
type RuleSet struct {
	Bank    []ReconciliationRule `yaml:"bank"`
	OnChain []ReconciliationRule `yaml:"onchain"`
}

// ForFamily returns the rules of a method family.
func (rs RuleSet) ForFamily(f MethodFamily) []ReconciliationRule {
	if f == FamilyBank {
		return rs.Bank
	}
	return rs.OnChain
}

// RuleFor returns the first enabled rule that applies to the method.
func (rs RuleSet) RuleFor(m PaymentMethod) (*ReconciliationRule, bool) {
	rules := rs.ForFamily(m.Family())
	for i := range rules {
		if rules[i].AppliesTo(m) {
			return &rules[i], true
		}
	}
	return nil, false
}

// LookbackDays returns the widest candidate window of a family's enabled rules.
func (rs RuleSet) LookbackDays(f MethodFamily) int {
	days := 0
	for _, r := range rs.ForFamily(f) {
		if r.Enabled && r.LookbackDays > days {
			days = r.LookbackDays
		}
	}
	return days
}

// Validate checks every rule and that each rule sits in the family of its methods.
func (rs RuleSet) Validate() error {
	check := func(f MethodFamily, rules []ReconciliationRule) error {
		for i := range rules {
			if err := rules[i].Validate(); err != nil {
				return err
			}
			for _, m := range rules[i].ApplicableMethods {
				if m.Family() != f {
					return fmt.Errorf("%w: %s lists %s under the %s family", ErrInvalidRule, rules[i].ID, m, f)
				}
			}
		}
		return nil
	}
	if err := check(FamilyBank, rs.Bank); err != nil {
		return err
	}
	return check(FamilyOnChain, rs.OnChain)
}

// DefaultRuleSet is used when no rules file is configured.
func DefaultRuleSet() RuleSet {
	return RuleSet{
		Bank: []ReconciliationRule{{
			ID:                      "bank-default",
			Enabled:                 true,
			ApplicableMethods:       []PaymentMethod{MethodACH},
			AmountTolerancePct:      1,
			DateRangeDays:           5,
			LookbackDays:            30,
			MinimumConfidence:       60,
			AutoReconcileThreshold:  90,
			MaxAutoAmountDifference: DefaultMaxAutoAmountDifference,
			Actions:                 RuleActions{AutoReconcile: true, RequireApproval: true},
		}},
		OnChain: []ReconciliationRule{{
			ID:                      "onchain-default",
			Enabled:                 true,
			ApplicableMethods:       []PaymentMethod{MethodUSDC, MethodSafeMultisig},
			AmountTolerancePct:      0.5,
			DateRangeDays:           2,
			LookbackDays:            7,
			MinimumConfidence:       70,
			AutoReconcileThreshold:  95,
			MaxAutoAmountDifference: DefaultMaxAutoAmountDifference,
			Actions:                 RuleActions{AutoReconcile: true, RequireApproval: true},
		}},
	}
}
