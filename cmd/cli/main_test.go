package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Body   string
	Header http.Header
}

// fakeAPI answers every request with status and body and records what it saw.
func fakeAPI(t *testing.T, status int, body string) (*httptest.Server, *[]recordedRequest) {
	t.Helper()

	var seen []recordedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		seen = append(seen, recordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			Body:   string(raw),
			Header: r.Header.Clone(),
		})
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &seen
}

func runCLI(t *testing.T, srv *httptest.Server, stdin string, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--url", srv.URL}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Fatalf("expected short unchanged, got %q", got)
	}

	if got := truncate("longerstring", 6); got != "lon..." {
		t.Fatalf("expected lon..., got %q", got)
	}

	if got := truncate("abcdef", 2); got != "ab" {
		t.Fatalf("expected ab, got %q", got)
	}
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := printJSON(&buf, struct {
		A int `json:"a"`
	}{A: 1}); err != nil {
		t.Fatal(err)
	}

	expected := "{\n  \"a\": 1\n}\n"
	if buf.String() != expected {
		t.Fatalf("unexpected json output:\n%s", buf.String())
	}
}

func TestParseID(t *testing.T) {
	if id, err := parseID("42"); err != nil || id != 42 {
		t.Fatalf("expected 42, got %d (%v)", id, err)
	}
	for _, bad := range []string{"0", "-1", "abc", ""} {
		if _, err := parseID(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestCreateDisbursement(t *testing.T) {
	srv, seen := fakeAPI(t, http.StatusCreated, `{"id": 5, "status": "PENDING", "method": "USDC"}`)

	out, err := runCLI(t, srv, "", "disbursements", "create", "--invoice", "11", "--method", "USDC", "--run", "3", "--idempotency-key", "k-1")
	if err != nil {
		t.Fatalf("command failed: %v", err)
	}

	req := (*seen)[0]
	if req.Method != http.MethodPost || req.Path != "/api/v1/disbursements" {
		t.Fatalf("unexpected request %s %s", req.Method, req.Path)
	}
	if req.Header.Get("Idempotency-Key") != "k-1" {
		t.Fatalf("idempotency key not forwarded")
	}

	var body map[string]any
	if err := json.Unmarshal([]byte(req.Body), &body); err != nil {
		t.Fatal(err)
	}
	if body["invoice_id"] != float64(11) || body["method"] != "USDC" || body["payment_run_id"] != float64(3) {
		t.Fatalf("unexpected body %s", req.Body)
	}
	if !strings.Contains(out, `"status": "PENDING"`) {
		t.Fatalf("unexpected output %s", out)
	}
}

func TestCreateDisbursement_RequiresInvoice(t *testing.T) {
	srv, seen := fakeAPI(t, http.StatusCreated, `{}`)

	if _, err := runCLI(t, srv, "", "disbursements", "create"); err == nil {
		t.Fatal("expected missing flag error")
	}
	if len(*seen) != 0 {
		t.Fatal("no request should be sent")
	}
}

func TestAPIErrorIsReported(t *testing.T) {
	srv, _ := fakeAPI(t, http.StatusNotFound, `{"error": "not found", "message": "disbursement not found"}`)

	_, err := runCLI(t, srv, "", "payments", "status", "9")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "status 404") || !strings.Contains(err.Error(), "disbursement not found") {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestAPIErrorWithoutJSONBody(t *testing.T) {
	srv, _ := fakeAPI(t, http.StatusBadGateway, `upstream down`)

	_, err := runCLI(t, srv, "", "disbursements", "history", "9")
	if err == nil || !strings.Contains(err.Error(), "Bad Gateway") || !strings.Contains(err.Error(), "upstream down") {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestExecuteRun(t *testing.T) {
	srv, seen := fakeAPI(t, http.StatusOK, `{
		"run_id": 3, "run_status": "PARTIALLY_EXECUTED", "total": 2, "succeeded": 1, "failed": 1,
		"items": [
			{"disbursement_id": 1, "method": "ACH", "amount": 1000, "currency": "USD", "outcome": "SUCCEEDED", "status": "CONFIRMED", "external_ref": "ach_1"},
			{"disbursement_id": 2, "method": "USDC", "amount": 500, "currency": "USD", "outcome": "FAILED", "status": "FAILED", "error": "declined"}
		]
	}`)

	out, err := runCLI(t, srv, "", "runs", "execute", "3")
	if err != nil {
		t.Fatalf("command failed: %v", err)
	}
	if (*seen)[0].Path != "/api/v1/payment-runs/3/execute" {
		t.Fatalf("unexpected path %s", (*seen)[0].Path)
	}
	for _, want := range []string{"Run 3: PARTIALLY_EXECUTED", "Succeeded: 1", "ach_1", "declined"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRetryFailed(t *testing.T) {
	srv, seen := fakeAPI(t, http.StatusOK, `[{"disbursement_id": 4, "before": "FAILED", "after": "PENDING", "retry_count": 2}]`)

	out, err := runCLI(t, srv, "", "disbursements", "retry-failed")
	if err != nil {
		t.Fatalf("command failed: %v", err)
	}
	if (*seen)[0].Method != http.MethodPost || (*seen)[0].Path != "/api/v1/disbursements/retry-failed" {
		t.Fatalf("unexpected request %+v", (*seen)[0])
	}
	if !strings.Contains(out, "FAILED") || !strings.Contains(out, "PENDING") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestReconcileBankStatementsFromStdin(t *testing.T) {
	srv, seen := fakeAPI(t, http.StatusOK, `{"kind": "BANK_STATEMENT", "processed": 1, "matched": 1, "auto_reconciled": 1}`)

	input := `{"entries": [{"transaction_id": "t1"}]}`
	out, err := runCLI(t, srv, input, "reconcile", "bank-statements")
	if err != nil {
		t.Fatalf("command failed: %v", err)
	}
	if (*seen)[0].Path != "/api/v1/reconciliation/bank-statements" || (*seen)[0].Body != input {
		t.Fatalf("unexpected request %+v", (*seen)[0])
	}
	if !strings.Contains(out, `"auto_reconciled": 1`) {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestReconcileRejectsInvalidJSON(t *testing.T) {
	srv, seen := fakeAPI(t, http.StatusOK, `{}`)

	path := filepath.Join(t.TempDir(), "txs.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := runCLI(t, srv, "", "reconcile", "blockchain", "-f", path); err == nil {
		t.Fatal("expected invalid JSON error")
	}
	if len(*seen) != 0 {
		t.Fatal("no request should be sent")
	}
}

func TestReviewsList(t *testing.T) {
	srv, seen := fakeAPI(t, http.StatusOK, `{
		"items": [{"id": 8, "disbursement_id": 2, "match_type": "BANK_TRANSFER", "confidence": 72.5, "amount_difference": 40, "review_reason": "LOW_CONFIDENCE", "external_reference": "REF-2"}],
		"total": 3, "limit": 1, "offset": 0
	}`)

	out, err := runCLI(t, srv, "", "reviews", "list", "--reason", "LOW_CONFIDENCE", "--limit", "1")
	if err != nil {
		t.Fatalf("command failed: %v", err)
	}
	if q := (*seen)[0].Query; !strings.Contains(q, "reason=LOW_CONFIDENCE") || !strings.Contains(q, "limit=1") {
		t.Fatalf("unexpected query %s", q)
	}
	for _, want := range []string{"72.50", "REF-2", "1 of 3"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestReviewsApproveAndReject(t *testing.T) {
	srv, seen := fakeAPI(t, http.StatusOK, `{"id": 8, "status": "APPROVED"}`)

	if _, err := runCLI(t, srv, "", "reviews", "approve", "8", "--by", "alice"); err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if _, err := runCLI(t, srv, "", "reviews", "reject", "9", "--by", "bob", "--reason", "wrong vendor"); err != nil {
		t.Fatalf("reject failed: %v", err)
	}

	if (*seen)[0].Path != "/api/v1/reviews/8/approve" || !strings.Contains((*seen)[0].Body, `"approver":"alice"`) {
		t.Fatalf("unexpected approve request %+v", (*seen)[0])
	}
	if (*seen)[1].Path != "/api/v1/reviews/9/reject" || !strings.Contains((*seen)[1].Body, `"reason":"wrong vendor"`) {
		t.Fatalf("unexpected reject request %+v", (*seen)[1])
	}
}

func TestReportWritesWorkbook(t *testing.T) {
	srv, seen := fakeAPI(t, http.StatusOK, "PK-workbook-bytes")

	path := filepath.Join(t.TempDir(), "report.xlsx")
	out, err := runCLI(t, srv, "", "report", "--from", "2026-01-01", "--to", "2026-01-31", "-o", path)
	if err != nil {
		t.Fatalf("command failed: %v", err)
	}

	if q := (*seen)[0].Query; !strings.Contains(q, "format=xlsx") || !strings.Contains(q, "from=2026-01-01") {
		t.Fatalf("unexpected query %s", q)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != "PK-workbook-bytes" {
		t.Fatalf("unexpected file contents %q", raw)
	}
	if !strings.Contains(out, "Report written to") {
		t.Fatalf("unexpected output %s", out)
	}
}

func TestStats(t *testing.T) {
	srv, seen := fakeAPI(t, http.StatusOK, `{"total": 4}`)

	if _, err := runCLI(t, srv, "", "stats", "--from", "2026-01-01", "--to", "2026-01-31"); err != nil {
		t.Fatalf("command failed: %v", err)
	}
	if (*seen)[0].Path != "/api/v1/reports/statistics" {
		t.Fatalf("unexpected path %s", (*seen)[0].Path)
	}
}
