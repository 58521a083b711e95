package handler

import (
	"context"
	"net/http"

	"github.com/iho/vendorpay/internal/adapter/http/dto"
	"github.com/iho/vendorpay/internal/domain"
	"github.com/iho/vendorpay/internal/usecase"
)

// ReconciliationService ingests settlement records.
type ReconciliationService interface {
	ReconcileBankStatements(ctx context.Context, entries []*domain.BankStatementEntry) (*usecase.ReconciliationSummary, error)
	ReconcileBlockchainTransactions(ctx context.Context, txs []*domain.BlockchainTransaction) (*usecase.ReconciliationSummary, error)
}

// ReconciliationHandler handles settlement ingestion HTTP requests.
type ReconciliationHandler struct {
	reconciler ReconciliationService
}

// NewReconciliationHandler creates a new ReconciliationHandler.
func NewReconciliationHandler(reconciler ReconciliationService) *ReconciliationHandler {
	return &ReconciliationHandler{reconciler: reconciler}
}

// BankStatements handles POST /reconciliation/bank-statements.
func (h *ReconciliationHandler) BankStatements(w http.ResponseWriter, r *http.Request) {
	var req dto.ReconcileBankStatementsRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	summary, err := h.reconciler.ReconcileBankStatements(r.Context(), req.ToDomain())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ReconciliationSummaryFromUseCase(summary))
}

// BlockchainTransactions handles POST /reconciliation/blockchain-transactions.
func (h *ReconciliationHandler) BlockchainTransactions(w http.ResponseWriter, r *http.Request) {
	var req dto.ReconcileBlockchainRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	summary, err := h.reconciler.ReconcileBlockchainTransactions(r.Context(), req.ToDomain())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ReconciliationSummaryFromUseCase(summary))
}
