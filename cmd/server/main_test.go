package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/vendorpay/internal/domain"
	"github.com/iho/vendorpay/internal/infrastructure/config"
)

func testConfig() *config.Config {
	return &config.Config{
		Storage:                 config.StorageMemory,
		IdempotencyTTL:          time.Hour,
		LockTTL:                 time.Second,
		VendorCacheTTL:          time.Minute,
		RailMode:                config.RailModeSandbox,
		RailTimeout:             time.Second,
		RailMaxAttempts:         1,
		RailRetryInterval:       time.Millisecond,
		SandboxThreshold:        2,
		BatchConcurrency:        2,
		RetryWindow:             24 * time.Hour,
		MaxRetries:              5,
		EventPublisher:          config.PublisherLog,
		OutboxPollInterval:      time.Second,
		OutboxBatchSize:         10,
		TriageApproveConfidence: 90,
		TriageRejectConfidence:  50,
		TriageMaxDifference:     decimal.NewFromInt(1),
	}
}

func seed(t *testing.T, a *app) {
	t.Helper()
	require.NotNil(t, a.memory)

	a.memory.Vendors().Put(&domain.VendorPaymentDetails{
		VendorID:          7,
		PreferredMethod:   domain.MethodACH,
		BankRoutingNumber: "021000021",
		BankAccountNumber: "000123456789",
	})
	a.memory.Invoices().Put(&domain.Invoice{
		ID:       11,
		VendorID: 7,
		Status:   domain.InvoiceApproved,
		Amount:   150000,
		Currency: "USD",
	})
	a.memory.Runs().Put(&domain.PaymentRun{
		ID:        3,
		Name:      "weekly",
		Status:    domain.RunStatusScheduled,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	})
}

func do(t *testing.T, h http.Handler, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestNewApp_MemoryEndToEnd(t *testing.T) {
	reg := prometheus.NewRegistry()
	a, err := newApp(context.Background(), testConfig(), zerolog.Nop(), reg)
	require.NoError(t, err)
	defer a.Close()
	seed(t, a)

	assert.Equal(t, http.StatusOK, do(t, a.handler, http.MethodGet, "/health", "").Code)
	assert.Equal(t, http.StatusOK, do(t, a.handler, http.MethodGet, "/ready", "").Code)

	rec := do(t, a.handler, http.MethodPost, "/api/v1/disbursements", `{"invoice_id": 11, "payment_run_id": 3}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode(t, rec)
	assert.Equal(t, "PENDING", created["status"])
	assert.Equal(t, "ACH", created["method"])
	id := int64(created["id"].(float64))

	rec = do(t, a.handler, http.MethodPost, "/api/v1/payment-runs/3/execute", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result := decode(t, rec)
	assert.Equal(t, "EXECUTED", result["run_status"])
	assert.EqualValues(t, 1, result["succeeded"])

	rec = do(t, a.handler, http.MethodGet, fmt.Sprintf("/api/v1/disbursements/%d", id), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "CONFIRMED", decode(t, rec)["status"])

	rec = do(t, a.handler, http.MethodGet, "/api/v1/disbursements/999", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Nothing left to run.
	rec = do(t, a.handler, http.MethodPost, "/api/v1/payment-runs/3/execute", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, a.handler, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "vendorpay_disbursements_created_total")
	assert.Contains(t, rec.Body.String(), "vendorpay_http_requests_total")
}

func TestNewApp_WithRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := testConfig()
	cfg.RedisEnabled = true
	cfg.RedisURL = "redis://" + mr.Addr()

	a, err := newApp(context.Background(), cfg, zerolog.Nop(), prometheus.NewRegistry())
	require.NoError(t, err)
	defer a.Close()
	seed(t, a)

	rec := do(t, a.handler, http.MethodGet, "/ready", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["redis"])

	body := `{"invoice_id": 11}`
	first := do(t, a.handler, http.MethodPost, "/api/v1/disbursements", body, "Idempotency-Key", "create-11")
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())

	second := do(t, a.handler, http.MethodPost, "/api/v1/disbursements", body, "Idempotency-Key", "create-11")
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, "true", second.Header().Get("X-Idempotency-Replay"))
	assert.True(t, bytes.Equal(first.Body.Bytes(), second.Body.Bytes()))

	// Vendor details were cached on the way through.
	keys := mr.Keys()
	assert.NotEmpty(t, keys)
}

func TestNewApp_RejectsBadRedis(t *testing.T) {
	cfg := testConfig()
	cfg.RedisEnabled = true
	cfg.RedisURL = "not a url"

	_, err := newApp(context.Background(), cfg, zerolog.Nop(), prometheus.NewRegistry())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect to redis")
}

func TestNewApp_RejectsMissingRulesFile(t *testing.T) {
	cfg := testConfig()
	cfg.RulesPath = "testdata/does-not-exist.yaml"

	_, err := newApp(context.Background(), cfg, zerolog.Nop(), prometheus.NewRegistry())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load rules")
}

func TestNewApp_RateLimiter(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitRPS = 1
	cfg.RateLimitBurst = 1

	a, err := newApp(context.Background(), cfg, zerolog.Nop(), prometheus.NewRegistry())
	require.NoError(t, err)
	defer a.Close()
	require.NotNil(t, a.limiter)

	assert.Equal(t, http.StatusOK, do(t, a.handler, http.MethodGet, "/api/v1/reviews", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, do(t, a.handler, http.MethodGet, "/api/v1/reviews", "").Code)
}

func TestIgnoreCanceled(t *testing.T) {
	assert.NoError(t, ignoreCanceled(context.Canceled))
	assert.NoError(t, ignoreCanceled(nil))
	assert.Error(t, ignoreCanceled(io.EOF))
}
