package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/apartresearch/reward-analyzer/internal/api"
	"github.com/apartresearch/reward-analyzer/pkg/logger"
)

func newServeCmd() *cobra.Command {
	var opts gridOptions
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the grid and the published artifacts over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := initializeConfig()
			if err != nil {
				return err
			}
			var logs *logger.Buffer
			if cfg.API.LogBufferSize > 0 {
				logs = logger.NewBuffer(cfg.API.LogBufferSize)
				log.AddHook(logs)
			}

			grid, err := opts.grid(cmd.Flags())
			if err != nil {
				return err
			}
			tracker, closeTracker, err := newTracker(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeTracker()

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(
				collectors.ProcessCollectorOpts{}))
			return api.New(grid, tracker, logs, reg).Run(ctx, cfg.API.Port)
		},
	}
	opts.addFlags(cmd.Flags())
	return cmd
}
