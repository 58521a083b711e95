package usecase

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/vendorpay/internal/domain"
)

// UnreconciledItem is one disbursement still awaiting reconciliation.
type UnreconciledItem struct {
	DisbursementID int64
	Status         domain.DisbursementStatus
	Method         domain.PaymentMethod
	Amount         int64
	Currency       string
	CreatedAt      time.Time
	FailureReason  string
}

// CurrencyTotals sums amounts of one currency. Amounts in different currencies
// are never added together.
type CurrencyTotals struct {
	Currency           string
	TotalAmount        int64
	ReconciledAmount   int64
	UnreconciledAmount int64
}

// ReconciliationReport summarizes the disbursements created in a date range.
type ReconciliationReport struct {
	Range             domain.DateRange
	GeneratedAt       time.Time
	Total             int
	Reconciled        int
	Unreconciled      int
	AutoReconciled    int
	ManualReconciled  int
	Currencies        []CurrencyTotals
	UnreconciledItems []UnreconciledItem
}

// MethodStatistics are reconciliation counters for one payment method.
type MethodStatistics struct {
	Method           domain.PaymentMethod
	Total            int
	Reconciled       int
	AutoReconciled   int
	ManualReconciled int
	Unreconciled     int
	// ReconciledPct is Reconciled/Total*100 rounded to two places.
	ReconciledPct decimal.Decimal
}

// Statistics is the per-method reconciliation breakdown of a date range.
type Statistics struct {
	Range         domain.DateRange
	Total         int
	Reconciled    int
	ReconciledPct decimal.Decimal
	Methods       []MethodStatistics
}

// ReportUseCase builds read-only reconciliation reports.
type ReportUseCase struct {
	disbursements DisbursementRepository
	logger        zerolog.Logger
}

// NewReportUseCase creates a new ReportUseCase.
func NewReportUseCase(disbursements DisbursementRepository, logger zerolog.Logger) *ReportUseCase {
	return &ReportUseCase{
		disbursements: disbursements,
		logger:        logger.With().Str("component", "report").Logger(),
	}
}

// GenerateReport totals the disbursements created within r and lists the ones
// not yet reconciled, oldest first.
func (uc *ReportUseCase) GenerateReport(ctx context.Context, r domain.DateRange) (*ReconciliationReport, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	list, err := uc.disbursements.ListCreatedBetween(ctx, r)
	if err != nil {
		return nil, err
	}

	report := &ReconciliationReport{
		Range:       r,
		GeneratedAt: time.Now().UTC(),
		Total:       len(list),
	}
	byCurrency := make(map[string]*CurrencyTotals)

	for _, d := range list {
		ct, ok := byCurrency[d.Currency]
		if !ok {
			ct = &CurrencyTotals{Currency: d.Currency}
			byCurrency[d.Currency] = ct
		}
		ct.TotalAmount += d.Amount

		if d.Status == domain.StatusReconciled {
			report.Reconciled++
			ct.ReconciledAmount += d.Amount
			if d.ReconciliationType != nil && *d.ReconciliationType == domain.ReconciliationAuto {
				report.AutoReconciled++
			} else {
				report.ManualReconciled++
			}
			continue
		}

		report.Unreconciled++
		ct.UnreconciledAmount += d.Amount
		report.UnreconciledItems = append(report.UnreconciledItems, UnreconciledItem{
			DisbursementID: d.ID,
			Status:         d.Status,
			Method:         d.Method,
			Amount:         d.Amount,
			Currency:       d.Currency,
			CreatedAt:      d.CreatedAt,
			FailureReason:  d.FailureReason,
		})
	}

	for _, ct := range byCurrency {
		report.Currencies = append(report.Currencies, *ct)
	}
	sort.Slice(report.Currencies, func(i, j int) bool { return report.Currencies[i].Currency < report.Currencies[j].Currency })
	sort.SliceStable(report.UnreconciledItems, func(i, j int) bool {
		a, b := report.UnreconciledItems[i], report.UnreconciledItems[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.DisbursementID < b.DisbursementID
	})

	uc.logger.Debug().
		Time("from", r.From).
		Time("to", r.To).
		Int("total", report.Total).
		Int("unreconciled", report.Unreconciled).
		Msg("reconciliation report generated")

	return report, nil
}

// GetStatistics breaks reconciliation progress within r down by payment method.
// Every supported method is listed, including those with no disbursements.
func (uc *ReportUseCase) GetStatistics(ctx context.Context, r domain.DateRange) (*Statistics, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	list, err := uc.disbursements.ListCreatedBetween(ctx, r)
	if err != nil {
		return nil, err
	}

	byMethod := make(map[domain.PaymentMethod]*MethodStatistics, len(domain.AllMethods))
	for _, m := range domain.AllMethods {
		byMethod[m] = &MethodStatistics{Method: m}
	}

	stats := &Statistics{Range: r, Total: len(list)}
	for _, d := range list {
		ms, ok := byMethod[d.Method]
		if !ok {
			ms = &MethodStatistics{Method: d.Method}
			byMethod[d.Method] = ms
		}
		ms.Total++
		if d.Status != domain.StatusReconciled {
			ms.Unreconciled++
			continue
		}
		ms.Reconciled++
		stats.Reconciled++
		if d.ReconciliationType != nil && *d.ReconciliationType == domain.ReconciliationAuto {
			ms.AutoReconciled++
		} else {
			ms.ManualReconciled++
		}
	}

	for _, m := range domain.AllMethods {
		ms := byMethod[m]
		ms.ReconciledPct = percentage(ms.Reconciled, ms.Total)
		stats.Methods = append(stats.Methods, *ms)
	}
	stats.ReconciledPct = percentage(stats.Reconciled, stats.Total)

	return stats, nil
}

func percentage(part, total int) decimal.Decimal {
	if total == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(part)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(total))).
		Round(2)
}
