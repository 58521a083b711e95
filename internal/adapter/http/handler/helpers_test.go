package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/iho/vendorpay/internal/adapter/http/dto"
	"github.com/iho/vendorpay/internal/domain"
)

func TestParseIntQuery(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/reviews?limit=50", nil)
	if got := parseIntQuery(req, "limit", 10); got != 50 {
		t.Fatalf("expected limit=50, got %d", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/reviews?limit=invalid", nil)
	if got := parseIntQuery(req, "limit", 10); got != 10 {
		t.Fatalf("expected fallback to default, got %d", got)
	}

	req.URL = &url.URL{RawQuery: ""}
	if got := parseIntQuery(req, "limit", 25); got != 25 {
		t.Fatalf("expected default when missing, got %d", got)
	}
}

func TestMapDomainError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"disbursement not found", domain.ErrDisbursementNotFound, http.StatusNotFound},
		{"wrapped invoice not found", fmt.Errorf("%w: 7", domain.ErrInvoiceNotFound), http.StatusNotFound},
		{"invoice not payable", domain.ErrInvoiceNotPayable, http.StatusBadRequest},
		{"reference mismatch", domain.ErrReferenceMismatch, http.StatusBadRequest},
		{"already resolved", domain.ErrReviewAlreadyResolved, http.StatusConflict},
		{"lock not obtained", domain.ErrLockNotObtained, http.StatusConflict},
		{"rail failure", &domain.RailError{Method: domain.MethodACH, Reason: "timeout"}, http.StatusBadGateway},
		{"unknown error", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := mapDomainError(tt.err); got != tt.expected {
				t.Fatalf("expected %d, got %d", tt.expected, got)
			}
		})
	}
}

func TestWriteJSON(t *testing.T) {
	rr := httptest.NewRecorder()
	payload := map[string]string{"status": "ok"}

	writeJSON(rr, http.StatusCreated, payload)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", rr.Code)
	}

	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected content-type application/json, got %s", ct)
	}

	var decoded map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if decoded["status"] != "ok" {
		t.Fatalf("expected payload to round-trip, got %+v", decoded)
	}
}

func TestWriteError(t *testing.T) {
	rr := httptest.NewRecorder()

	writeError(rr, http.StatusBadRequest, "bad request", "detail")

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}

	var resp dto.ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}

	if resp.Error != "bad request" {
		t.Fatalf("expected error message to propagate, got %+v", resp)
	}
}

func TestParseDateRange(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/reports/statistics?from=2026-03-01&to=2026-03-31", nil)
	rng, err := parseDateRange(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !rng.From.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected from: %s", rng.From)
	}
	if !rng.To.Equal(time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected date-only to to cover the whole day, got %s", rng.To)
	}

	req = httptest.NewRequest(http.MethodGet, "/reports/statistics?from=2026-03-01T10:00:00Z&to=2026-03-01T12:00:00Z", nil)
	rng, err = parseDateRange(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rng.To.Sub(rng.From) != 2*time.Hour {
		t.Fatalf("unexpected range: %+v", rng)
	}

	for _, q := range []string{"", "?from=2026-03-01", "?from=yesterday&to=2026-03-01", "?from=2026-03-02&to=2026-03-01"} {
		req = httptest.NewRequest(http.MethodGet, "/reports/statistics"+q, nil)
		if _, err := parseDateRange(req); !errors.Is(err, domain.ErrInvalidDateRange) {
			t.Fatalf("query %q: expected ErrInvalidDateRange, got %v", q, err)
		}
	}
}

func TestDecodeAndValidate_ReportsFields(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/disbursements", strings.NewReader(`{"method":"CHEQUE"}`))

	var body dto.CreateDisbursementRequest
	if decodeAndValidate(rr, req, &body) {
		t.Fatalf("expected validation to fail")
	}
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}

	var resp dto.ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	if resp.Fields["CreateDisbursementRequest.InvoiceID"] != "required" {
		t.Fatalf("expected invoice_id to be reported, got %+v", resp.Fields)
	}
	if resp.Fields["CreateDisbursementRequest.Method"] != "oneof" {
		t.Fatalf("expected method to be reported, got %+v", resp.Fields)
	}
}
