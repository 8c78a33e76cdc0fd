package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/veridexhq/veridex/internal/store"
)

// runCmd executes a single pipeline run and exits.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute one pipeline run and exit",
	Long: `Run the full pipeline once: ingest every registered source, extract
claims, gather evidence, compute verdicts and scores, then print the run
summary and exit. Useful for cron-driven setups and local inspection.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp("run")
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		runID, err := app.orch.RunOnce(ctx)
		if err != nil {
			return fmt.Errorf("pipeline run: %w", err)
		}

		printRunSummary(app.store, runID)
		return nil
	},
}

func printRunSummary(st store.Store, runID string) {
	run, ok := st.LatestRun()
	if !ok || run.ID != runID {
		return
	}
	fmt.Printf("Run %s: %s\n", run.ID, run.Status)
	fmt.Printf("  items ingested:    %d\n", run.Stats.ItemsIngested)
	fmt.Printf("  claims extracted:  %d\n", run.Stats.ClaimsExtracted)
	fmt.Printf("  evidence gathered: %d\n", run.Stats.EvidenceGathered)
	fmt.Printf("  verdicts updated:  %d\n", run.Stats.VerdictsUpdated)
	fmt.Printf("  claims expired:    %d\n", run.Stats.ClaimsExpired)
	fmt.Printf("  scores recomputed: %d\n", run.Stats.ScoresRecomputed)
	if len(run.Stats.SourceErrors) > 0 {
		fmt.Printf("  source errors:\n")
		for id, msg := range run.Stats.SourceErrors {
			fmt.Printf("    %s: %s\n", id, msg)
		}
	}
	if run.Error != "" {
		fmt.Printf("  error: %s\n", run.Error)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
}
