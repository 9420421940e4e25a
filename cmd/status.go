package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sells-group/leadgen-cli/internal/state"
)

var statusLimit int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show dedup state totals and recent runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		stats, err := st.Stats(ctx)
		if err != nil {
			return err
		}
		cmd.Printf("state (%s)\n", cfg.State.Driver)
		cmd.Printf("  queries done:      %d\n", stats.Queries)
		cmd.Printf("  domains seen:      %d\n", stats.Domains)
		cmd.Printf("  domains harvested: %d\n", stats.Attempts)
		cmd.Printf("  companies:         %d\n", stats.Companies)
		cmd.Printf("  emails:            %d\n", stats.Emails)

		runs, err := st.RecentRuns(ctx, statusLimit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			cmd.Println("no runs recorded")
			return nil
		}

		cmd.Println("recent runs")
		for _, r := range runs {
			cmd.Printf("  %s  started %s  %s\n",
				r.ID,
				r.StartedAt.Local().Format(time.RFC3339),
				runSummary(r))
		}
		return nil
	},
}

func runSummary(r state.Run) string {
	if r.FinishedAt == nil {
		return "(unfinished)"
	}
	c := r.Counts
	return fmt.Sprintf("queries %d/%d/%d domains %d/%d/%d (done/skipped/failed)",
		c.QueriesDone, c.QueriesSkipped, c.QueriesFailed,
		c.DomainsDone, c.DomainsSkipped, c.DomainsFailed)
}

func init() {
	statusCmd.Flags().IntVar(&statusLimit, "limit", 10, "number of recent runs to show")
	rootCmd.AddCommand(statusCmd)
}
