package rail

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/iho/vendorpay/internal/domain"
	"github.com/iho/vendorpay/internal/usecase"
)

// SandboxDeclineAccount is declined by the sandbox with an ACH return code.
const SandboxDeclineAccount = "000000000000"

const sandboxBlockBase = 19_000_000

// SandboxClient is a deterministic in-process RailClient for ACH and USDC.
// Resubmitting the same idempotency key returns the first outcome.
type SandboxClient struct {
	method domain.PaymentMethod

	mu        sync.Mutex
	outcomes  map[string]*usecase.RailOutcome
	declines  map[string]string
	transient int
	calls     int
}

// NewSandboxClient creates a sandbox for method.
func NewSandboxClient(method domain.PaymentMethod) *SandboxClient {
	return &SandboxClient{
		method:   method,
		outcomes: make(map[string]*usecase.RailOutcome),
		declines: map[string]string{SandboxDeclineAccount: "R03: no account / unable to locate account"},
	}
}

// Decline makes payments to account fail with reason.
func (c *SandboxClient) Decline(account, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.declines[account] = reason
}

// FailTransiently makes the next n submissions return a retryable error.
func (c *SandboxClient) FailTransiently(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.transient = n
}

// Calls returns the number of Submit calls received.
func (c *SandboxClient) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// Submit settles p immediately.
func (c *SandboxClient) Submit(ctx context.Context, p usecase.RailPayment) (*usecase.RailOutcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++

	if c.transient > 0 {
		c.transient--
		return nil, &domain.RailError{Method: c.method, Reason: "sandbox unavailable", Retryable: true}
	}
	if out, ok := c.outcomes[p.IdempotencyKey]; ok {
		cp := *out
		return &cp, nil
	}

	var out *usecase.RailOutcome
	if reason, ok := c.declines[p.DestinationAccount]; ok {
		out = &usecase.RailOutcome{Success: false, FailureReason: reason}
	} else {
		out = c.settle(p)
	}
	c.outcomes[p.IdempotencyKey] = out

	cp := *out
	return &cp, nil
}

func (c *SandboxClient) settle(p usecase.RailPayment) *usecase.RailOutcome {
	sum := sha256.Sum256([]byte(string(c.method) + "|" + p.IdempotencyKey))
	digest := hex.EncodeToString(sum[:])

	switch c.method {
	case domain.MethodUSDC:
		return &usecase.RailOutcome{
			Success:       true,
			TransactionID: "usdc_" + digest[:16],
			TxHash:        "0x" + digest,
			BlockNumber:   sandboxBlockBase + int64(binary.BigEndian.Uint16(sum[:2])),
		}
	default:
		return &usecase.RailOutcome{
			Success:       true,
			TransactionID: "ach_" + digest[:16],
			BankReference: p.Reference,
		}
	}
}

// SandboxSafeClient is a deterministic in-process SafeClient. Each Propose
// call for an existing proposal adds one signature, up to the threshold.
type SandboxSafeClient struct {
	threshold int

	mu        sync.Mutex
	proposals map[string]*usecase.SafeProposal
	executed  map[string]*usecase.RailOutcome
}

// NewSandboxSafeClient creates a sandbox Safe requiring threshold signatures.
func NewSandboxSafeClient(threshold int) *SandboxSafeClient {
	if threshold < 1 {
		threshold = 1
	}
	return &SandboxSafeClient{
		threshold: threshold,
		proposals: make(map[string]*usecase.SafeProposal),
		executed:  make(map[string]*usecase.RailOutcome),
	}
}

// Propose creates a proposal for p or advances the one at safeTxHash.
func (c *SandboxSafeClient) Propose(ctx context.Context, p usecase.RailPayment, safeTxHash string) (*usecase.SafeProposal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if safeTxHash != "" {
		prop, ok := c.proposals[safeTxHash]
		if !ok {
			return nil, &domain.RailError{Method: domain.MethodSafeMultisig, Reason: fmt.Sprintf("unknown safe transaction %s", safeTxHash)}
		}
		if prop.Signatures < prop.Threshold {
			prop.Signatures++
		}
		cp := *prop
		return &cp, nil
	}

	sum := sha256.Sum256([]byte("safe|" + p.Reference + "|" + p.DestinationAccount))
	hash := "0x" + hex.EncodeToString(sum[:])
	prop, ok := c.proposals[hash]
	if !ok {
		prop = &usecase.SafeProposal{SafeTxHash: hash, Signatures: 1, Threshold: c.threshold}
		c.proposals[hash] = prop
	}
	cp := *prop
	return &cp, nil
}

// Execute submits a fully signed proposal on chain.
func (c *SandboxSafeClient) Execute(ctx context.Context, safeTxHash string) (*usecase.RailOutcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if out, ok := c.executed[safeTxHash]; ok {
		cp := *out
		return &cp, nil
	}
	prop, ok := c.proposals[safeTxHash]
	if !ok {
		return nil, &domain.RailError{Method: domain.MethodSafeMultisig, Reason: fmt.Sprintf("unknown safe transaction %s", safeTxHash)}
	}
	if prop.Signatures < prop.Threshold {
		return &usecase.RailOutcome{Success: false, FailureReason: "signature threshold not met"}, nil
	}

	sum := sha256.Sum256([]byte("exec|" + safeTxHash))
	out := &usecase.RailOutcome{
		Success:       true,
		TransactionID: "safe_" + hex.EncodeToString(sum[:8]),
		TxHash:        safeTxHash,
		BlockNumber:   sandboxBlockBase + int64(binary.BigEndian.Uint16(sum[:2])),
	}
	c.executed[safeTxHash] = out
	cp := *out
	return &cp, nil
}

var (
	_ usecase.RailClient = (*SandboxClient)(nil)
	_ usecase.SafeClient = (*SandboxSafeClient)(nil)
)
