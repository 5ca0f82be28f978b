package main

import (
	"docworker/cmd/docworker/cmd" // CLI commands
	"docworker/core/logger"       // Structured logging

	"context"   // Cancellation for graceful shutdown
	"os"        // Signal types
	"os/signal" // Listening to OS signals
	"syscall"   // SIGINT and SIGTERM

	"go.uber.org/zap"
)

// main is the entry point of the document worker.
func main() {
	ctx := logger.WithComponentName(context.Background(), "main")

	// Flush buffered logs before exiting. Sync errors on stderr are expected
	// on some platforms and are not actionable here.
	defer func() {
		_ = logger.Logger.Sync()
	}()

	// The first SIGINT/SIGTERM cancels the context; the worker notices it when
	// its current bounded pop returns.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info(ctx, "Received signal, initiating graceful shutdown", zap.String("signal", sig.String()))
		cancel()
	}()

	cmd.Execute(ctx)
}
