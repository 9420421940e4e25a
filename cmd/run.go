package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/pipeline"
)

var runFresh bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute the pipeline over the manifest queries",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if runFresh {
			zap.L().Warn("clearing dedup state, every unit will be reprocessed")
			if err := env.Store.Clear(ctx); err != nil {
				return eris.Wrap(err, "clear state")
			}
		}

		report, err := env.Orchestrator.Run(ctx, env.Manifest.QueryList())
		if err != nil {
			return err
		}

		printReport(cmd, report)
		return nil
	},
}

func printReport(cmd *cobra.Command, r *pipeline.Report) {
	cmd.Printf("run %s\n", r.RunID)
	cmd.Printf("  queries: %d done, %d skipped, %d failed\n",
		r.Queries.Done, r.Queries.Skipped, r.Queries.Failed)
	cmd.Printf("  domains: %d done, %d skipped, %d failed\n",
		r.Domains.Done, r.Domains.Skipped, r.Domains.Failed)
	cmd.Printf("  output:  %d companies, %d new domains, %d emails\n",
		r.Companies, r.NewDomains, r.Emails)

	for _, stage := range []struct {
		name     string
		failures []pipeline.UnitFailure
	}{
		{"query", r.Queries.Failures},
		{"domain", r.Domains.Failures},
	} {
		for _, f := range stage.failures {
			cmd.Printf("  failed %s %q after %d attempts (%s): %s\n",
				stage.name, f.Unit, f.Attempts, f.Outcome, firstLine(f.Err))
		}
	}
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}

func init() {
	runCmd.Flags().BoolVar(&runFresh, "fresh", false, "clear dedup state before running")
	rootCmd.AddCommand(runCmd)
}
