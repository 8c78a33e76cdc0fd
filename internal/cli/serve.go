package cli

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/veridexhq/veridex/internal/api"
	"github.com/veridexhq/veridex/internal/pipeline"
)

// serveCmd runs the scheduler and HTTP API until interrupted.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the pipeline on a schedule and serve the HTTP API",
	Long: `Start the long-running service: the pipeline fires immediately, then on
the configured interval, and the HTTP API serves claims, scores, the
leaderboard, and a manual trigger endpoint.

Shut down with SIGINT or SIGTERM. An in-flight run gets a grace period
to finish its current source before being recorded as partial.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp("serve")
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		sched := pipeline.NewScheduler(app.orch, app.cfg.Pipeline.Interval, app.log)
		go sched.Start(ctx)

		srv := api.NewServer(app.cfg.Server, app.log, app.store, app.loadReg, app.orch)
		errCh := make(chan error, 1)
		go func() { errCh <- srv.Start() }()

		select {
		case <-ctx.Done():
			app.log.Info("shutdown signal received")
		case err := <-errCh:
			if err != nil {
				return err
			}
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			app.log.Error("http shutdown failed", "error", err)
		}

		if app.cfg.Store.SnapshotPath != "" {
			if err := app.store.Save(app.cfg.Store.SnapshotPath); err != nil {
				app.log.Error("snapshot save failed", "error", err)
			}
		}
		app.log.Info("veridex stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
