package handler

import (
	"context"
	"net/http"

	"github.com/iho/vendorpay/internal/adapter/http/dto"
	"github.com/iho/vendorpay/internal/domain"
	"github.com/iho/vendorpay/internal/usecase"
)

// ReviewService lists and resolves reconciliation reviews.
type ReviewService interface {
	ListPending(ctx context.Context, filter domain.ReviewFilter) (*usecase.ReviewPage, error)
	Approve(ctx context.Context, reviewID int64, approver string) (*domain.ReconciliationReview, error)
	Reject(ctx context.Context, reviewID int64, rejector, reason string) (*domain.ReconciliationReview, error)
	AutoTriagePending(ctx context.Context) (*usecase.TriageResult, error)
}

// ReviewHandler handles review HTTP requests.
type ReviewHandler struct {
	reviews ReviewService
}

// NewReviewHandler creates a new ReviewHandler.
func NewReviewHandler(reviews ReviewService) *ReviewHandler {
	return &ReviewHandler{reviews: reviews}
}

// List handles GET /reviews.
func (h *ReviewHandler) List(w http.ResponseWriter, r *http.Request) {
	minConfidence, err := parseFloatQuery(r, "min_confidence")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid query", err.Error())
		return
	}
	maxConfidence, err := parseFloatQuery(r, "max_confidence")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid query", err.Error())
		return
	}

	q := r.URL.Query()
	filter := domain.ReviewFilter{
		Status:        domain.ReviewStatus(q.Get("status")),
		Reason:        domain.ReviewReason(q.Get("reason")),
		MinConfidence: minConfidence,
		MaxConfidence: maxConfidence,
		Limit:         parseIntQuery(r, "limit", domain.DefaultPageSize),
		Offset:        parseIntQuery(r, "offset", 0),
	}

	page, err := h.reviews.ListPending(r.Context(), filter)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ReviewPageFromUseCase(page))
}

// Approve handles POST /reviews/{id}/approve.
func (h *ReviewHandler) Approve(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid review id", err.Error())
		return
	}

	var req dto.ApproveReviewRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	review, err := h.reviews.Approve(r.Context(), id, req.Approver)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ReviewFromDomain(review))
}

// Reject handles POST /reviews/{id}/reject.
func (h *ReviewHandler) Reject(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid review id", err.Error())
		return
	}

	var req dto.RejectReviewRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	review, err := h.reviews.Reject(r.Context(), id, req.Rejector, req.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ReviewFromDomain(review))
}

// Triage handles POST /reviews/triage.
func (h *ReviewHandler) Triage(w http.ResponseWriter, r *http.Request) {
	result, err := h.reviews.AutoTriagePending(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.TriageResultFromUseCase(result))
}
