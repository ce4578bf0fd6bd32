package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"kycdesk/internal/monitoring/reconcile"
)

func newMonitoringCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "monitoring",
		Short: "Inspect continuous monitoring",
	}
	cmd.AddCommand(newMonitoringStatsCommand(opts), newMonitoringChangesCommand(opts))
	return cmd
}

func newMonitoringStatsCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show monitoring totals",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var raw reconcile.RawStats
			if err := opts.client().do(cmd.Context(), "GET", "/monitoring/stats", nil, &raw); err != nil {
				return err
			}
			stats := reconcile.ReconcileStats(raw, nil)

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "Total monitored:\t%d\n", stats.Total)
			fmt.Fprintf(w, "CPF:\t%d\n", stats.ByType.CPF)
			fmt.Fprintf(w, "CNPJ:\t%d\n", stats.ByType.CNPJ)
			fmt.Fprintf(w, "With restrictions:\t%d\n", stats.WithRestrictions)
			fmt.Fprintf(w, "Active:\t%d\n", stats.Active)
			fmt.Fprintf(w, "Inactive:\t%d\n", stats.Inactive)
			fmt.Fprintf(w, "Last update:\t%s\n", formatTime(stats.LastUpdate))
			return w.Flush()
		},
	}
}

func newMonitoringChangesCommand(opts *globalOptions) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "changes",
		Short: "List recent restriction changes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var body struct {
				Changes []reconcile.RawChange `json:"changes"`
			}
			path := fmt.Sprintf("/monitoring/changes/recent?days=%d", days)
			if err := opts.client().do(cmd.Context(), "GET", path, nil, &body); err != nil {
				return err
			}
			changes := reconcile.ReconcileChanges(body.Changes)

			out := cmd.OutOrStdout()
			if len(changes) == 0 {
				fmt.Fprintln(out, "no changes")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "DOCUMENT\tTYPE\tCHANGE\tDETECTED")
			for _, c := range changes {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.DisplayDocument(), c.DocumentType, c.Description, formatTime(c.DetectedAt))
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&days, "days", 2, "Look-back window in days (1-90)")
	return cmd
}

func formatTime(t *time.Time) string {
	if t == nil {
		return reconcile.Placeholder
	}
	return t.Local().Format("2006-01-02 15:04")
}
