package handler

import (
	"context"
	"net/http"

	"github.com/iho/vendorpay/internal/adapter/http/dto"
	"github.com/iho/vendorpay/internal/domain"
	"github.com/iho/vendorpay/internal/usecase"
)

// DisbursementService is the subset of the disbursement use case the handler needs.
type DisbursementService interface {
	Create(ctx context.Context, input usecase.CreateDisbursementInput) (*domain.Disbursement, error)
	GetStatus(ctx context.Context, id int64) (*usecase.PaymentStatus, error)
	History(ctx context.Context, id int64) ([]*domain.ReconciliationLogEntry, error)
	Reconcile(ctx context.Context, id int64, bankReference string) error
	MatchTransaction(ctx context.Context, id int64, txHash string) error
}

// DisbursementHandler handles disbursement HTTP requests.
type DisbursementHandler struct {
	disbursements DisbursementService
}

// NewDisbursementHandler creates a new DisbursementHandler.
func NewDisbursementHandler(disbursements DisbursementService) *DisbursementHandler {
	return &DisbursementHandler{disbursements: disbursements}
}

// Create handles POST /disbursements.
func (h *DisbursementHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateDisbursementRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	d, err := h.disbursements.Create(r.Context(), req.ToUseCaseInput())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.DisbursementFromDomain(d))
}

// Get handles GET /disbursements/{id}.
func (h *DisbursementHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid disbursement id", err.Error())
		return
	}

	h.writeStatus(w, r, id, http.StatusOK)
}

// History handles GET /disbursements/{id}/history.
func (h *DisbursementHandler) History(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid disbursement id", err.Error())
		return
	}

	entries, err := h.disbursements.History(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.LogEntriesFromDomain(entries))
}

// Reconcile handles POST /disbursements/{id}/reconcile.
func (h *DisbursementHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid disbursement id", err.Error())
		return
	}

	var req dto.ReconcileRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if err := h.disbursements.Reconcile(r.Context(), id, req.BankReference); err != nil {
		writeDomainError(w, err)
		return
	}

	h.writeStatus(w, r, id, http.StatusOK)
}

// MatchTransaction handles POST /disbursements/{id}/match.
func (h *DisbursementHandler) MatchTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid disbursement id", err.Error())
		return
	}

	var req dto.MatchTransactionRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if err := h.disbursements.MatchTransaction(r.Context(), id, req.TxHash); err != nil {
		writeDomainError(w, err)
		return
	}

	h.writeStatus(w, r, id, http.StatusOK)
}

func (h *DisbursementHandler) writeStatus(w http.ResponseWriter, r *http.Request, id int64, status int) {
	s, err := h.disbursements.GetStatus(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, status, dto.PaymentStatusFromUseCase(s))
}
