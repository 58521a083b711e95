// Package export renders reconciliation reports as spreadsheets.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/iho/vendorpay/internal/domain"
	"github.com/iho/vendorpay/internal/usecase"
)

const (
	summarySheet      = "Summary"
	currencySheet     = "Currencies"
	unreconciledSheet = "Unreconciled"
	methodSheet       = "Methods"
)

// ContentType is the MIME type of the workbook produced by WriteReport.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// WriteReport writes report, and stats when non-nil, as an XLSX workbook to w.
func WriteReport(w io.Writer, report *usecase.ReconciliationReport, stats *usecase.Statistics) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return err
	}

	summary := [][]any{
		{"From", report.Range.From.Format(time.RFC3339)},
		{"To", report.Range.To.Format(time.RFC3339)},
		{"Generated At", report.GeneratedAt.Format(time.RFC3339)},
		{"Total", report.Total},
		{"Reconciled", report.Reconciled},
		{"Auto Reconciled", report.AutoReconciled},
		{"Manual Reconciled", report.ManualReconciled},
		{"Unreconciled", report.Unreconciled},
	}
	if err := writeRows(f, summarySheet, summary); err != nil {
		return err
	}

	currencies := [][]any{{"Currency", "Total", "Reconciled", "Unreconciled"}}
	for _, c := range report.Currencies {
		currencies = append(currencies, []any{
			c.Currency,
			major(c.TotalAmount, c.Currency),
			major(c.ReconciledAmount, c.Currency),
			major(c.UnreconciledAmount, c.Currency),
		})
	}
	if err := addSheet(f, currencySheet, currencies); err != nil {
		return err
	}

	items := [][]any{{"Disbursement", "Status", "Method", "Amount", "Currency", "Created At", "Failure Reason"}}
	for _, it := range report.UnreconciledItems {
		items = append(items, []any{
			it.DisbursementID,
			string(it.Status),
			string(it.Method),
			major(it.Amount, it.Currency),
			it.Currency,
			it.CreatedAt.Format(time.RFC3339),
			it.FailureReason,
		})
	}
	if err := addSheet(f, unreconciledSheet, items); err != nil {
		return err
	}

	if stats != nil {
		methods := [][]any{{"Method", "Total", "Reconciled", "Auto", "Manual", "Unreconciled", "Reconciled %"}}
		for _, m := range stats.Methods {
			pct, _ := m.ReconciledPct.Float64()
			methods = append(methods, []any{
				string(m.Method), m.Total, m.Reconciled, m.AutoReconciled, m.ManualReconciled, m.Unreconciled, pct,
			})
		}
		if err := addSheet(f, methodSheet, methods); err != nil {
			return err
		}
	}

	if err := f.SetColWidth(unreconciledSheet, "A", "G", 18); err != nil {
		return err
	}

	return f.Write(w)
}

func addSheet(f *excelize.File, name string, rows [][]any) error {
	if _, err := f.NewSheet(name); err != nil {
		return err
	}
	return writeRows(f, name, rows)
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

// major renders minor units as a number in the currency's major unit.
func major(minor int64, currency string) float64 {
	v, _ := domain.ToMajor(minor, currency).Float64()
	return v
}
