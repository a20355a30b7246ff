package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/apartresearch/reward-analyzer/internal/pipeline"
	"github.com/apartresearch/reward-analyzer/internal/prom"
	"github.com/apartresearch/reward-analyzer/internal/trainer"
)

func newRunCmd() *cobra.Command {
	var opts gridOptions
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Train every experiment of a sweep and publish the autoencoders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runSweep(ctx, cmd, &opts)
		},
	}
	opts.addFlags(cmd.Flags())
	return cmd
}

func runSweep(ctx context.Context, cmd *cobra.Command, opts *gridOptions) error {
	cfg, err := initializeConfig()
	if err != nil {
		return err
	}
	grid, err := opts.grid(cmd.Flags())
	if err != nil {
		return err
	}
	t, err := trainer.NewCommandTrainer(cfg.Runner.Trainer)
	if err != nil {
		return err
	}
	tracker, closeTracker, err := newTracker(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeTracker()

	reg := prometheus.NewRegistry()
	runner := pipeline.NewRunner(
		cfg.Runner.RunnerConfig, t, tracker, cfg.Tracking.Naming(), pipeline.NewMetrics(reg))

	log.Infof("running %d experiments", grid.Len())
	results, runErr := runner.Run(ctx, grid)
	writeResults(cmd.OutOrStdout(), results)

	if cfg.Metrics.Textfile != "" {
		if err := prom.WriteTextfile(cfg.Metrics.Textfile, reg); err != nil {
			log.WithError(err).Error("writing metrics textfile")
		}
	}
	if runErr != nil {
		return errors.Wrap(runErr, "sweep failed")
	}
	return nil
}

func writeResults(w io.Writer, results []pipeline.Result) {
	table := newTable(w, "experiment", "run", "artifact", "duration", "error")
	for _, res := range results {
		var artifact, errText string
		if res.Artifact != nil {
			artifact = res.Artifact.Name
		}
		if res.Err != nil {
			errText = res.Err.Error()
		}
		table.Append([]string{
			res.Key.String(), res.RunName, artifact, res.Duration.Round(time.Millisecond).String(), errText,
		})
	}
	table.Render()
}
