package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/iho/vendorpay/internal/adapter/http/dto"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type options struct {
	baseURL string
	timeout time.Duration
}

func (o *options) client() *apiClient {
	return newAPIClient(o.baseURL, o.timeout)
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "vendorpay-cli",
		Short:         "VendorPay CLI tool",
		Long:          `A command line interface for operating the VendorPay disbursement and reconciliation engine.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.baseURL, "url", "http://localhost:8080", "Base URL of the VendorPay API")
	rootCmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "Request timeout")

	rootCmd.AddCommand(
		newDisbursementsCmd(opts),
		newRunsCmd(opts),
		newReconcileCmd(opts),
		newReviewsCmd(opts),
		newReportCmd(opts),
		newStatsCmd(opts),
	)
	return rootCmd
}

func newDisbursementsCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "disbursements",
		Aliases: []string{"payments"},
		Short:   "Disbursement operations",
	}

	var (
		invoiceID int64
		method    string
		runID     int64
		key       string
	)
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a disbursement for an approved invoice",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := dto.CreateDisbursementRequest{InvoiceID: invoiceID, Method: method}
			if runID > 0 {
				req.PaymentRunID = &runID
			}
			var headers map[string]string
			if key != "" {
				headers = map[string]string{"Idempotency-Key": key}
			}
			var out dto.DisbursementResponse
			if err := opts.client().callJSON(cmdContext(cmd), http.MethodPost, "/api/v1/disbursements", req, &out, headers); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	createCmd.Flags().Int64Var(&invoiceID, "invoice", 0, "Invoice ID")
	createCmd.Flags().StringVar(&method, "method", "", "Payment method (ACH, USDC, SAFE_MULTISIG); defaults to the vendor's preference")
	createCmd.Flags().Int64Var(&runID, "run", 0, "Payment run ID")
	createCmd.Flags().StringVar(&key, "idempotency-key", "", "Idempotency key for safe retries")
	_ = createCmd.MarkFlagRequired("invoice")

	statusCmd := &cobra.Command{
		Use:   "status <id>",
		Short: "Show the status of a disbursement",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return getAndPrint(cmd, opts, fmt.Sprintf("/api/v1/disbursements/%d", id), &dto.PaymentStatusResponse{})
		},
	}

	historyCmd := &cobra.Command{
		Use:   "history <id>",
		Short: "Show the reconciliation log of a disbursement",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			var out []dto.LogEntryResponse
			return getAndPrint(cmd, opts, fmt.Sprintf("/api/v1/disbursements/%d/history", id), &out)
		},
	}

	var bankRef string
	reconcileCmd := &cobra.Command{
		Use:   "reconcile <id>",
		Short: "Manually reconcile a bank disbursement",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return postAndPrint(cmd, opts, fmt.Sprintf("/api/v1/disbursements/%d/reconcile", id),
				dto.ReconcileRequest{BankReference: bankRef}, &dto.PaymentStatusResponse{})
		},
	}
	reconcileCmd.Flags().StringVar(&bankRef, "bank-ref", "", "Bank reference from the statement")
	_ = reconcileCmd.MarkFlagRequired("bank-ref")

	var txHash string
	matchCmd := &cobra.Command{
		Use:   "match <id>",
		Short: "Manually match an on-chain disbursement to its transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return postAndPrint(cmd, opts, fmt.Sprintf("/api/v1/disbursements/%d/match", id),
				dto.MatchTransactionRequest{TxHash: txHash}, &dto.PaymentStatusResponse{})
		},
	}
	matchCmd.Flags().StringVar(&txHash, "tx-hash", "", "Transaction hash")
	_ = matchCmd.MarkFlagRequired("tx-hash")

	retryCmd := &cobra.Command{
		Use:   "retry-failed",
		Short: "Reset recently failed disbursements for another attempt",
		RunE: func(cmd *cobra.Command, args []string) error {
			var out []dto.RetryResultResponse
			if err := opts.client().callJSON(cmdContext(cmd), http.MethodPost, "/api/v1/disbursements/retry-failed", nil, &out, nil); err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tBEFORE\tAFTER\tRETRIES\tERROR")
			for _, r := range out {
				fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\n", r.DisbursementID, r.Before, r.After, r.RetryCount, truncate(r.Error, 40))
			}
			return w.Flush()
		},
	}

	cmd.AddCommand(createCmd, statusCmd, historyCmd, reconcileCmd, matchCmd, retryCmd)
	return cmd
}

func newRunsCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Payment run operations",
	}

	executeCmd := &cobra.Command{
		Use:   "execute <run-id>",
		Short: "Execute all pending disbursements of a payment run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			var out dto.BatchResultResponse
			if err := opts.client().callJSON(cmdContext(cmd), http.MethodPost, fmt.Sprintf("/api/v1/payment-runs/%d/execute", id), nil, &out, nil); err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Run %d: %s\n", out.RunID, out.RunStatus)
			fmt.Fprintf(w, "Total: %d  Succeeded: %d  Failed: %d  Awaiting signatures: %d  Skipped: %d\n",
				out.Total, out.Succeeded, out.Failed, out.AwaitingSignatures, out.Skipped)

			tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tMETHOD\tAMOUNT\tOUTCOME\tSTATUS\tREF\tERROR")
			for _, it := range out.Items {
				fmt.Fprintf(tw, "%d\t%s\t%d %s\t%s\t%s\t%s\t%s\n",
					it.DisbursementID, it.Method, it.Amount, it.Currency, it.Outcome, it.Status,
					truncate(it.ExternalRef, 24), truncate(it.Error, 40))
			}
			return tw.Flush()
		},
	}

	cmd.AddCommand(executeCmd)
	return cmd
}

func newReconcileCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Ingest settlement records",
	}

	ingest := func(use, short, path string) *cobra.Command {
		var file string
		c := &cobra.Command{
			Use:   use,
			Short: short,
			RunE: func(cmd *cobra.Command, args []string) error {
				raw, err := readInput(cmd, file)
				if err != nil {
					return err
				}
				if !json.Valid(raw) {
					return fmt.Errorf("%s is not valid JSON", file)
				}
				return postAndPrint(cmd, opts, path, raw, &dto.ReconciliationSummaryResponse{})
			},
		}
		c.Flags().StringVarP(&file, "file", "f", "-", "JSON request file, - for stdin")
		return c
	}

	cmd.AddCommand(
		ingest("bank-statements", "Reconcile a batch of bank statement lines", "/api/v1/reconciliation/bank-statements"),
		ingest("blockchain", "Reconcile a batch of on-chain transactions", "/api/v1/reconciliation/blockchain-transactions"),
	)
	return cmd
}

func newReviewsCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reviews",
		Short: "Reconciliation review queue",
	}

	var (
		status string
		reason string
		limit  int
		offset int
	)
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List reviews, pending by default",
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			if status != "" {
				q.Set("status", status)
			}
			if reason != "" {
				q.Set("reason", reason)
			}
			q.Set("limit", strconv.Itoa(limit))
			q.Set("offset", strconv.Itoa(offset))

			var page dto.ReviewPageResponse
			if err := opts.client().callJSON(cmdContext(cmd), http.MethodGet, "/api/v1/reviews?"+q.Encode(), nil, &page, nil); err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tDISBURSEMENT\tTYPE\tCONFIDENCE\tDIFF\tREASON\tREFERENCE")
			for _, r := range page.Items {
				fmt.Fprintf(w, "%d\t%d\t%s\t%.2f\t%d\t%s\t%s\n",
					r.ID, r.DisbursementID, r.MatchType, r.Confidence, r.AmountDifference, r.ReviewReason,
					truncate(r.ExternalReference, 24))
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d of %d\n", len(page.Items), page.Total)
			return nil
		},
	}
	listCmd.Flags().StringVar(&status, "status", "", "Review status filter")
	listCmd.Flags().StringVar(&reason, "reason", "", "Review reason filter")
	listCmd.Flags().IntVar(&limit, "limit", 50, "Page size")
	listCmd.Flags().IntVar(&offset, "offset", 0, "Page offset")

	var approver string
	approveCmd := &cobra.Command{
		Use:   "approve <review-id>",
		Short: "Approve a pending review",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return postAndPrint(cmd, opts, fmt.Sprintf("/api/v1/reviews/%d/approve", id),
				dto.ApproveReviewRequest{Approver: approver}, &dto.ReviewResponse{})
		},
	}
	approveCmd.Flags().StringVar(&approver, "by", "", "Approver identity")
	_ = approveCmd.MarkFlagRequired("by")

	var rejector, rejectReason string
	rejectCmd := &cobra.Command{
		Use:   "reject <review-id>",
		Short: "Reject a pending review",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return postAndPrint(cmd, opts, fmt.Sprintf("/api/v1/reviews/%d/reject", id),
				dto.RejectReviewRequest{Rejector: rejector, Reason: rejectReason}, &dto.ReviewResponse{})
		},
	}
	rejectCmd.Flags().StringVar(&rejector, "by", "", "Rejector identity")
	rejectCmd.Flags().StringVar(&rejectReason, "reason", "", "Rejection reason")
	_ = rejectCmd.MarkFlagRequired("by")

	triageCmd := &cobra.Command{
		Use:   "triage",
		Short: "Auto-approve or reject pending reviews by the triage policy",
		RunE: func(cmd *cobra.Command, args []string) error {
			return postAndPrint(cmd, opts, "/api/v1/reviews/triage", nil, &dto.TriageResultResponse{})
		},
	}

	cmd.AddCommand(listCmd, approveCmd, rejectCmd, triageCmd)
	return cmd
}

func newReportCmd(opts *options) *cobra.Command {
	var from, to, output string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Reconciliation report for a date range",
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{"from": {from}, "to": {to}}
			if output == "" {
				return getAndPrint(cmd, opts, "/api/v1/reports/reconciliation?"+q.Encode(), &dto.ReportResponse{})
			}

			q.Set("format", "xlsx")
			raw, err := opts.client().call(cmdContext(cmd), http.MethodGet, "/api/v1/reports/reconciliation?"+q.Encode(), nil, nil)
			if err != nil {
				return err
			}
			if err := os.WriteFile(output, raw, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Report written to %s (%d bytes)\n", output, len(raw))
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "Start date (YYYY-MM-DD or RFC3339)")
	cmd.Flags().StringVar(&to, "to", "", "End date (YYYY-MM-DD or RFC3339), inclusive for dates")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write an XLSX workbook to this file")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func newStatsCmd(opts *options) *cobra.Command {
	var from, to string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Reconciliation statistics for a date range",
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{"from": {from}, "to": {to}}
			return getAndPrint(cmd, opts, "/api/v1/reports/statistics?"+q.Encode(), &dto.StatisticsResponse{})
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "Start date (YYYY-MM-DD or RFC3339)")
	cmd.Flags().StringVar(&to, "to", "", "End date (YYYY-MM-DD or RFC3339)")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func getAndPrint(cmd *cobra.Command, opts *options, path string, out any) error {
	if err := opts.client().callJSON(cmdContext(cmd), http.MethodGet, path, nil, out, nil); err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), out)
}

func postAndPrint(cmd *cobra.Command, opts *options, path string, body, out any) error {
	if err := opts.client().callJSON(cmdContext(cmd), http.MethodPost, path, body, out, nil); err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), out)
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func readInput(cmd *cobra.Command, file string) ([]byte, error) {
	if file == "" || file == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(file)
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
