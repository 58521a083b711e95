package handler

import (
	"context"
	"net/http"

	"github.com/iho/vendorpay/internal/adapter/http/dto"
	"github.com/iho/vendorpay/internal/usecase"
)

// BatchService executes payment runs and retries failed payments.
type BatchService interface {
	ExecuteBatch(ctx context.Context, runID int64) (*usecase.BatchResult, error)
	RetryFailedPayments(ctx context.Context) ([]usecase.RetryResult, error)
}

// BatchHandler handles payment run HTTP requests.
type BatchHandler struct {
	batches BatchService
}

// NewBatchHandler creates a new BatchHandler.
func NewBatchHandler(batches BatchService) *BatchHandler {
	return &BatchHandler{batches: batches}
}

// Execute handles POST /payment-runs/{id}/execute.
func (h *BatchHandler) Execute(w http.ResponseWriter, r *http.Request) {
	runID, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid payment run id", err.Error())
		return
	}

	result, err := h.batches.ExecuteBatch(r.Context(), runID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.BatchResultFromUseCase(result))
}

// RetryFailed handles POST /disbursements/retry-failed.
func (h *BatchHandler) RetryFailed(w http.ResponseWriter, r *http.Request) {
	results, err := h.batches.RetryFailedPayments(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.RetryResultsFromUseCase(results))
}
