package cmd

import (
	"context"
	"errors"
	"fmt"

	"docworker/core/config"
	apperrors "docworker/core/errors"
	"docworker/core/events"
	"docworker/core/jobs"
	"docworker/core/logger"
	"docworker/core/ops"
	"docworker/core/queue"
	"docworker/core/worker"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func init() {
	rootCmd.AddCommand(runCmd)
}

// runCmd is the explicit form of the root command.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Consume and report document jobs until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWorker(cmd)
	},
}

// runWorker loads configuration, starts the optional ops server and runs the
// consumption loop. Only configuration errors are returned; an unrecoverable
// stop is logged and ends the process with status 0.
func runWorker(cmd *cobra.Command) error {
	ctx := logger.WithComponentName(cmd.Context(), "run")

	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := logger.Configure(cfg.Log.Level, cfg.Log.Format); err != nil {
		return apperrors.Kind(apperrors.ErrConfiguration, err)
	}
	logger.Info(ctx, "Configuration loaded",
		zap.Stringer("redis", cfg.Redis),
		zap.String("queue", cfg.Worker.Queue),
		zap.String("environment", cfg.Environment))

	bus := events.New()
	defer bus.Close()

	opsCtx, stopOps := context.WithCancel(ctx)
	opsDone := make(chan struct{})
	if cfg.Ops.Address != "" {
		srv := ops.New(cfg.Ops.Address, bus)
		go func() {
			defer close(opsDone)
			if err := srv.Start(opsCtx); err != nil {
				logger.Error(ctx, "Ops server exited", zap.Error(err))
			}
		}()
	} else {
		close(opsDone)
	}
	defer func() {
		stopOps()
		<-opsDone
	}()

	w := worker.New(
		queue.NewManager(cfg.Redis),
		jobs.ReportHandler{},
		bus,
		worker.OptionsFromConfig(cfg.Worker),
	)
	if err := w.Run(ctx); err != nil {
		if errors.Is(err, apperrors.ErrUnrecoverable) {
			logger.Info(ctx, "Worker stopped after an unrecoverable error", zap.Error(err))
			return nil
		}
		return err
	}
	logger.Info(ctx, "Worker stopped")
	return nil
}
