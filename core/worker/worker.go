// Package worker runs the consumption loop: it pops job payloads from the queue
// with a bounded wait, decodes and reports them, and replaces the connection
// when it is lost.
package worker

import (
	"context"
	"errors"
	"time"

	"docworker/core/config"
	apperrors "docworker/core/errors"
	"docworker/core/events"
	"docworker/core/jobs"
	"docworker/core/logger"
	"docworker/core/metrics"
	"docworker/core/queue"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Connector opens verified queue connections. queue.Manager implements it.
type Connector interface {
	Connect(ctx context.Context) (queue.Connection, error)
}

// Options tunes the loop. Zero values fall back to the defaults noted per field.
type Options struct {
	Queue             string        // default "document_jobs"
	PopTimeout        time.Duration // default 1s
	ReconnectAttempts int           // connect calls per RECONNECTING episode, default 1
	ReconnectBackoff  time.Duration // pause between reconnect attempts
}

// OptionsFromConfig maps the worker section of the configuration.
func OptionsFromConfig(c config.WorkerConfig) Options {
	return Options{
		Queue:             c.Queue,
		PopTimeout:        c.PopTimeout,
		ReconnectAttempts: c.ReconnectAttempts,
		ReconnectBackoff:  c.ReconnectBackoff,
	}
}

// Worker consumes one queue on a single goroutine. It owns its connection
// exclusively; Run may be called once.
type Worker struct {
	connector Connector
	handler   jobs.Handler
	bus       events.Bus
	opts      Options
	state     State
}

// New returns a Worker. bus may be nil when nobody observes state changes.
func New(connector Connector, handler jobs.Handler, bus events.Bus, opts Options) *Worker {
	if opts.Queue == "" {
		opts.Queue = config.DefaultQueue
	}
	if opts.PopTimeout <= 0 {
		opts.PopTimeout = config.DefaultPopTimeout
	}
	if opts.ReconnectAttempts < 1 {
		opts.ReconnectAttempts = 1
	}
	return &Worker{
		connector: connector,
		handler:   handler,
		bus:       bus,
		opts:      opts,
		state:     StateStarting,
	}
}

// State returns the last state entered. It must not be called while Run is
// executing on another goroutine; observers use the event bus instead.
func (w *Worker) State() State {
	return w.state
}

// Run connects and consumes until ctx is cancelled or the loop hits an error it
// cannot recover from. Cancellation yields a nil error after a graceful
// shutdown; every other stop returns an error wrapping apperrors.ErrUnrecoverable.
func (w *Worker) Run(ctx context.Context) error {
	ctx = logger.WithComponentName(ctx, "worker")
	w.transition(ctx, StateStarting, "starting")
	logger.Info(ctx, "Worker started, connecting to queue backend")

	conn, err := w.connector.Connect(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return w.shutdown(ctx, nil)
		}
		logger.Error(ctx, "Failed to connect to queue backend, exiting", zap.Error(err))
		w.transition(ctx, StateStopped, "initial connect failed")
		return apperrors.Kind(apperrors.ErrUnrecoverable, err)
	}
	w.transition(ctx, StateConnected, "connected")
	logger.Info(ctx, "Waiting for jobs",
		zap.String("queue", w.opts.Queue),
		zap.Duration("pop_timeout", w.opts.PopTimeout))

	// Pops run on a context that ignores cancellation: an item the server has
	// already removed must still be reported. Cancellation is noticed when the
	// bounded wait returns.
	popCtx := context.WithoutCancel(ctx)
	for {
		if ctx.Err() != nil {
			return w.shutdown(ctx, conn)
		}

		raw, ok, err := conn.Pop(popCtx, w.opts.Queue, w.opts.PopTimeout)
		switch {
		case err == nil && !ok:
			metrics.Pops.WithLabelValues("empty").Inc()
		case err == nil:
			metrics.Pops.WithLabelValues("item").Inc()
			w.process(ctx, raw)
		case errors.Is(err, apperrors.ErrConnectionLost):
			metrics.Pops.WithLabelValues("error").Inc()
			conn, err = w.reconnect(ctx, conn, err)
			if err != nil {
				if ctx.Err() != nil {
					return w.shutdown(ctx, nil)
				}
				return err
			}
		default:
			metrics.Pops.WithLabelValues("error").Inc()
			w.closeConn(ctx, conn)
			logger.Error(ctx, "Unexpected queue error, exiting", zap.Error(err))
			w.transition(ctx, StateStopped, "unexpected queue error")
			return apperrors.Kind(apperrors.ErrUnrecoverable, err)
		}
	}
}

// process decodes and reports one item. Nothing here can stop the loop.
func (w *Worker) process(ctx context.Context, raw string) {
	job, err := jobs.Decode(raw)
	if err != nil {
		metrics.Jobs.WithLabelValues("malformed").Inc()
		logger.Warn(ctx, "Skipping malformed job payload",
			zap.Error(err),
			zap.Int("payload_bytes", len(raw)))
		return
	}

	report := job.Report()
	tracer := otel.Tracer("docworker-worker")
	ctx, span := tracer.Start(ctx, "worker.HandleJob", trace.WithAttributes(
		attribute.String("job.id", report.JobID),
		attribute.String("job.type", report.JobType),
	))
	defer span.End()

	metrics.JobFileBytes.Observe(float64(report.FileSize))
	if err := w.handler.Handle(ctx, job); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.Jobs.WithLabelValues("failed").Inc()
		logger.Error(ctx, "Job handler failed", zap.String("job_id", report.JobID), zap.Error(err))
		return
	}
	metrics.Jobs.WithLabelValues("reported").Inc()
}

// reconnect replaces a lost connection. The old connection is closed before
// any attempt, so the loop never pops against it again.
func (w *Worker) reconnect(ctx context.Context, old queue.Connection, cause error) (queue.Connection, error) {
	w.transition(ctx, StateReconnecting, "connection lost")
	w.closeConn(ctx, old)
	logger.Warn(ctx, "Redis connection lost", zap.Error(cause))

	var lastErr error
	for attempt := 1; attempt <= w.opts.ReconnectAttempts; attempt++ {
		if attempt > 1 && w.opts.ReconnectBackoff > 0 {
			timer := time.NewTimer(w.opts.ReconnectBackoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}

		logger.Info(ctx, "Attempting to reconnect",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", w.opts.ReconnectAttempts))
		conn, err := w.connector.Connect(ctx)
		if err == nil {
			metrics.Reconnects.WithLabelValues("success").Inc()
			logger.Info(ctx, "Reconnected to queue backend", zap.Int("attempt", attempt))
			w.transition(ctx, StateConnected, "reconnected")
			return conn, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
	}

	metrics.Reconnects.WithLabelValues("failed").Inc()
	logger.Error(ctx, "Failed to reconnect, exiting",
		zap.Int("attempts", w.opts.ReconnectAttempts),
		zap.Error(lastErr))
	w.transition(ctx, StateStopped, "reconnect failed")
	return nil, apperrors.Kind(apperrors.ErrUnrecoverable, lastErr)
}

func (w *Worker) shutdown(ctx context.Context, conn queue.Connection) error {
	if conn != nil {
		w.closeConn(ctx, conn)
	}
	logger.Info(ctx, "Worker interrupted, shutting down gracefully")
	w.transition(ctx, StateStopped, "interrupted")
	return nil
}

func (w *Worker) closeConn(ctx context.Context, conn queue.Connection) {
	if err := conn.Close(); err != nil {
		logger.Debug(ctx, "Error closing queue connection", zap.Error(err))
	}
}

func (w *Worker) transition(ctx context.Context, to State, reason string) {
	from := w.state
	w.state = to
	metrics.SetState(to.String(), stateNames)
	logger.Debug(ctx, "Worker state changed",
		zap.Stringer("from", from),
		zap.Stringer("to", to),
		zap.String("reason", reason))
	if w.bus != nil {
		// Published even after cancellation so the final STOPPED is observed.
		w.bus.Publish(context.WithoutCancel(ctx), StateTopic, StateChanged{From: from, To: to, Reason: reason})
	}
}
