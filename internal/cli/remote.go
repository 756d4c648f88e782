package cli

import (
	"fmt"
	"net/http"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"voicepay/internal/domain"
	"voicepay/internal/vault"
)

var paymentsLimit int

func init() {
	auditCmd := &cobra.Command{
		Use:   "audit",
		Short: "Run the security audit of the server's sensitive store",
		Args:  cobra.NoArgs,
		RunE:  runAudit,
	}
	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show sensitive store statistics",
		Args:  cobra.NoArgs,
		RunE:  runStats,
	}
	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "Force an expiry sweep of the sensitive store",
		Args:  cobra.NoArgs,
		RunE:  runSweep,
	}
	paymentsCmd := &cobra.Command{
		Use:   "payments",
		Short: "List recent payment dispatch attempts",
		Args:  cobra.NoArgs,
		RunE:  runPayments,
	}
	paymentsCmd.Flags().IntVarP(&paymentsLimit, "limit", "n", 20, "Maximum number of payments")

	RootCmd.AddCommand(auditCmd, statsCmd, sweepCmd, paymentsCmd)
}

func runAudit(cmd *cobra.Command, _ []string) error {
	var body struct {
		Findings []string `json:"findings"`
	}
	if err := fetchJSON(cmd.Context(), http.MethodGet, "/v1/vault/audit", &body); err != nil {
		return err
	}
	if formatFlag == "json" {
		return printJSON(cmd.OutOrStdout(), body)
	}
	for _, f := range body.Findings {
		fmt.Fprintln(cmd.OutOrStdout(), f)
	}
	return nil
}

func runStats(cmd *cobra.Command, _ []string) error {
	var st vault.Stats
	if err := fetchJSON(cmd.Context(), http.MethodGet, "/v1/vault/stats", &st); err != nil {
		return err
	}
	if formatFlag == "json" {
		return printJSON(cmd.OutOrStdout(), st)
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "sensitive entries\t%d\n", st.Count)
	fmt.Fprintf(w, "regular entries\t%d\n", st.RegularCount)
	fmt.Fprintf(w, "oldest entry age\t%dms\n", st.OldestAgeMs)
	fmt.Fprintf(w, "total accesses\t%d\n", st.TotalAccessCount)
	fmt.Fprintf(w, "sweep active\t%t\n", st.SweepActive)
	return w.Flush()
}

func runSweep(cmd *cobra.Command, _ []string) error {
	var body struct {
		Removed int `json:"removed"`
	}
	if err := fetchJSON(cmd.Context(), http.MethodPost, "/v1/vault/sweep", &body); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "removed %d expired entries\n", body.Removed)
	return nil
}

func runPayments(cmd *cobra.Command, _ []string) error {
	var body struct {
		Payments []domain.PaymentRecord `json:"payments"`
	}
	path := "/v1/payments?limit=" + strconv.Itoa(paymentsLimit)
	if err := fetchJSON(cmd.Context(), http.MethodGet, path, &body); err != nil {
		return err
	}
	if formatFlag == "json" {
		return printJSON(cmd.OutOrStdout(), body.Payments)
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CREATED\tREQUEST\tRECIPIENT\tAMOUNT\tAPP\tOUTCOME")
	for _, p := range body.Payments {
		fmt.Fprintf(w, "%s\t%s\t%s\t₹%s\t%s\t%s\n",
			p.CreatedAt, p.RequestID, p.Recipient, domain.AmountFromPaise(p.AmountPaise), p.AppID, p.Outcome)
	}
	return w.Flush()
}
