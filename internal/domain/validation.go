package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	MaxPageSize     = 1000
	DefaultPageSize = 50
	MaxReportRange  = 366 * 24 * time.Hour
)

// MaxDisbursementMajor caps a single disbursement at one billion currency
// units, whatever the currency's minor-unit digits.
var MaxDisbursementMajor = decimal.NewFromInt(1_000_000_000)

// ValidateCurrency rejects currencies no rail settles.
func ValidateCurrency(currency string) error {
	code := strings.ToUpper(strings.TrimSpace(currency))
	if _, ok := currencyExponents[code]; !ok {
		return fmt.Errorf("%w: %q", ErrInvalidCurrency, currency)
	}
	return nil
}

// ValidateAmount checks a minor-unit amount in currency.
func ValidateAmount(amount int64, currency string) error {
	if amount <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidAmount, amount)
	}
	if ToMajor(amount, currency).GreaterThan(MaxDisbursementMajor) {
		return fmt.Errorf("%w: %s %s exceeds the %s limit",
			ErrInvalidAmount, ToMajor(amount, currency), currency, MaxDisbursementMajor)
	}
	return nil
}

// DateRange is a half-open [From, To) interval.
type DateRange struct {
	From time.Time
	To   time.Time
}

func (r DateRange) Validate() error {
	switch {
	case r.From.IsZero() || r.To.IsZero():
		return fmt.Errorf("%w: both bounds are required", ErrInvalidDateRange)
	case !r.From.Before(r.To):
		return fmt.Errorf("%w: from must be before to", ErrInvalidDateRange)
	case r.To.Sub(r.From) > MaxReportRange:
		return fmt.Errorf("%w: range exceeds %s", ErrInvalidDateRange, MaxReportRange)
	}
	return nil
}

// ValidatePagination clamps limit to (0, MaxPageSize] and offset to >= 0.
func ValidatePagination(limit, offset int) (int, int) {
	limit = min(max(limit, 0), MaxPageSize)
	if limit == 0 {
		limit = DefaultPageSize
	}
	return limit, max(offset, 0)
}
