package rail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/iho/vendorpay/internal/domain"
	"github.com/iho/vendorpay/internal/usecase"
)

// Gateway talks JSON to a payment gateway fronting the bank, token and Safe
// rails. It implements both usecase.RailClient and usecase.SafeClient.
type Gateway struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewGateway creates a Gateway. A nil client gets one with timeout.
func NewGateway(baseURL, apiKey string, timeout time.Duration, client *http.Client) *Gateway {
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &Gateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  client,
	}
}

type paymentRequest struct {
	Method             string `json:"method"`
	Amount             int64  `json:"amount"`
	Currency           string `json:"currency"`
	Reference          string `json:"reference"`
	DestinationAccount string `json:"destination_account"`
	DestinationRouting string `json:"destination_routing,omitempty"`
	SafeTxHash         string `json:"safe_tx_hash,omitempty"`
}

type paymentResponse struct {
	Status        string `json:"status"`
	TransactionID string `json:"transaction_id"`
	BankReference string `json:"bank_reference"`
	TxHash        string `json:"tx_hash"`
	BlockNumber   int64  `json:"block_number"`
	FailureReason string `json:"failure_reason"`
}

func (r paymentResponse) outcome() *usecase.RailOutcome {
	return &usecase.RailOutcome{
		Success:       r.Status == "settled",
		TransactionID: r.TransactionID,
		BankReference: r.BankReference,
		TxHash:        r.TxHash,
		BlockNumber:   r.BlockNumber,
		FailureReason: r.FailureReason,
	}
}

type proposalResponse struct {
	SafeTxHash string `json:"safe_tx_hash"`
	Signatures int    `json:"signatures"`
	Threshold  int    `json:"threshold"`
}

// Submit sends a single-step payment.
func (g *Gateway) Submit(ctx context.Context, p usecase.RailPayment) (*usecase.RailOutcome, error) {
	var resp paymentResponse
	if err := g.post(ctx, p.Method, "/v1/payments", p.IdempotencyKey, requestFor(p), &resp); err != nil {
		return nil, err
	}
	return resp.outcome(), nil
}

// Propose creates a Safe proposal or fetches the state of safeTxHash.
func (g *Gateway) Propose(ctx context.Context, p usecase.RailPayment, safeTxHash string) (*usecase.SafeProposal, error) {
	body := requestFor(p)
	body.SafeTxHash = safeTxHash

	var resp proposalResponse
	if err := g.post(ctx, domain.MethodSafeMultisig, "/v1/safe/proposals", p.IdempotencyKey, body, &resp); err != nil {
		return nil, err
	}
	return &usecase.SafeProposal{SafeTxHash: resp.SafeTxHash, Signatures: resp.Signatures, Threshold: resp.Threshold}, nil
}

// Execute submits a signed Safe proposal.
func (g *Gateway) Execute(ctx context.Context, safeTxHash string) (*usecase.RailOutcome, error) {
	path := "/v1/safe/proposals/" + url.PathEscape(safeTxHash) + "/execute"

	var resp paymentResponse
	if err := g.post(ctx, domain.MethodSafeMultisig, path, "exec-"+safeTxHash, struct{}{}, &resp); err != nil {
		return nil, err
	}
	return resp.outcome(), nil
}

func requestFor(p usecase.RailPayment) paymentRequest {
	return paymentRequest{
		Method:             string(p.Method),
		Amount:             p.Amount,
		Currency:           p.Currency,
		Reference:          p.Reference,
		DestinationAccount: p.DestinationAccount,
		DestinationRouting: p.DestinationRouting,
	}
}

func (g *Gateway) post(ctx context.Context, method domain.PaymentMethod, path, idempotencyKey string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal rail request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build rail request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", idempotencyKey)
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	res, err := g.client.Do(req)
	if err != nil {
		return &domain.RailError{Method: method, Reason: "gateway unreachable", Retryable: ctx.Err() == nil, Err: err}
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return &domain.RailError{
			Method:    method,
			Reason:    fmt.Sprintf("gateway status %d: %s", res.StatusCode, strings.TrimSpace(string(msg))),
			Retryable: retryableStatus(res.StatusCode),
		}
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return &domain.RailError{Method: method, Reason: "malformed gateway response", Err: err}
	}
	return nil
}

func retryableStatus(code int) bool {
	return code == http.StatusRequestTimeout || code == http.StatusTooManyRequests || code >= 500
}

var (
	_ usecase.RailClient = (*Gateway)(nil)
	_ usecase.SafeClient = (*Gateway)(nil)
)
