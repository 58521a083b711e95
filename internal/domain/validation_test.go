package domain

import (
	"errors"
	"testing"
	"time"
)

func TestValidateCurrency(t *testing.T) {
	t.Parallel()

	for _, ok := range []string{"USD", " usd ", "USDC", "JPY"} {
		if err := ValidateCurrency(ok); err != nil {
			t.Fatalf("%q: unexpected error %v", ok, err)
		}
	}
	if err := ValidateCurrency("XYZ"); !errors.Is(err, ErrInvalidCurrency) {
		t.Fatalf("expected ErrInvalidCurrency, got %v", err)
	}
}

func TestValidateAmount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		amount   int64
		currency string
		ok       bool
	}{
		{150000, "USD", true},
		{0, "USD", false},
		{-5, "EUR", false},
		{100_000_000_000, "USD", true},
		{100_000_000_001, "USD", false},
		// a billion yen is within the limit, a billion and one is not
		{1_000_000_000, "JPY", true},
		{1_000_000_001, "JPY", false},
	}
	for _, tt := range tests {
		err := ValidateAmount(tt.amount, tt.currency)
		if tt.ok && err != nil {
			t.Fatalf("%d %s: unexpected error %v", tt.amount, tt.currency, err)
		}
		if !tt.ok && !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("%d %s: expected ErrInvalidAmount, got %v", tt.amount, tt.currency, err)
		}
	}
}

func TestDateRange_Validate(t *testing.T) {
	t.Parallel()

	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	if err := (DateRange{From: from, To: from.AddDate(0, 1, 0)}).Validate(); err != nil {
		t.Fatalf("expected valid range, got %v", err)
	}
	for name, r := range map[string]DateRange{
		"missing to": {From: from},
		"empty":      {From: from, To: from},
		"too wide":   {From: from, To: from.AddDate(2, 0, 0)},
	} {
		if err := r.Validate(); !errors.Is(err, ErrInvalidDateRange) {
			t.Fatalf("%s: expected ErrInvalidDateRange, got %v", name, err)
		}
	}
}

func TestValidatePagination(t *testing.T) {
	t.Parallel()

	tests := []struct{ limit, offset, wantLimit, wantOffset int }{
		{0, -5, DefaultPageSize, 0},
		{-1, 10, DefaultPageSize, 10},
		{MaxPageSize + 10, 0, MaxPageSize, 0},
		{25, 50, 25, 50},
	}
	for _, tt := range tests {
		l, o := ValidatePagination(tt.limit, tt.offset)
		if l != tt.wantLimit || o != tt.wantOffset {
			t.Fatalf("ValidatePagination(%d, %d) = %d, %d", tt.limit, tt.offset, l, o)
		}
	}
}
