package handler

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/iho/vendorpay/internal/adapter/http/dto"
	"github.com/iho/vendorpay/internal/domain"
	"github.com/iho/vendorpay/internal/infrastructure/export"
	"github.com/iho/vendorpay/internal/usecase"
)

// ReportService builds reconciliation reports and statistics.
type ReportService interface {
	GenerateReport(ctx context.Context, r domain.DateRange) (*usecase.ReconciliationReport, error)
	GetStatistics(ctx context.Context, r domain.DateRange) (*usecase.Statistics, error)
}

// ReportHandler handles reporting HTTP requests.
type ReportHandler struct {
	reports ReportService
	logger  zerolog.Logger
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(reports ReportService, logger zerolog.Logger) *ReportHandler {
	return &ReportHandler{reports: reports, logger: logger}
}

// Report handles GET /reports/reconciliation. format=xlsx returns a workbook.
func (h *ReportHandler) Report(w http.ResponseWriter, r *http.Request) {
	rng, err := parseDateRange(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	report, err := h.reports.GenerateReport(r.Context(), rng)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if r.URL.Query().Get("format") != "xlsx" {
		writeJSON(w, http.StatusOK, dto.ReportFromUseCase(report))
		return
	}

	stats, err := h.reports.GetStatistics(r.Context(), rng)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteReport(&buf, report, stats); err != nil {
		h.logger.Error().Err(err).Msg("failed to render report workbook")
		writeError(w, http.StatusInternalServerError, "report export failed", "")
		return
	}

	filename := fmt.Sprintf("reconciliation_%s_%s.xlsx",
		rng.From.Format("20060102"), rng.To.Format("20060102"))
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", "attachment; filename="+strconv.Quote(filename))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// Statistics handles GET /reports/statistics.
func (h *ReportHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	rng, err := parseDateRange(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	stats, err := h.reports.GetStatistics(r.Context(), rng)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.StatisticsFromUseCase(stats))
}
