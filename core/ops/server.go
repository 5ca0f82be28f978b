// Package ops serves the worker's operational endpoints: liveness, readiness
// derived from the consumption loop state, and Prometheus metrics.
package ops

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	apperrors "docworker/core/errors"
	"docworker/core/events"
	"docworker/core/logger"
	"docworker/core/worker"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

// Server tracks the last worker state seen on the bus and reports it over HTTP.
type Server struct {
	addr        string
	state       atomic.Int32
	events      <-chan events.TypedEvent
	unsubscribe func()
}

// New subscribes to worker state changes immediately so no transition
// published before Start is missed.
func New(addr string, bus events.Bus) *Server {
	s := &Server{addr: addr}
	s.state.Store(int32(worker.StateStarting))
	s.events, s.unsubscribe = bus.Subscribe(worker.StateTopic)
	return s
}

// State returns the last observed worker state.
func (s *Server) State() worker.State {
	return worker.State(s.state.Load())
}

// Handler builds the chi router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// Start serves until ctx is cancelled, then shuts the listener down. A listen
// failure is returned, not logged; the caller reports it.
func (s *Server) Start(ctx context.Context) error {
	ctx = logger.WithComponentName(ctx, "ops")
	go s.watch(ctx)

	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	logger.Info(ctx, "Ops server listening", zap.String("address", s.addr))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return apperrors.Wrap(err, "ops server shutdown")
		}
		logger.Info(ctx, "Ops server stopped")
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return apperrors.Wrap(err, "ops server")
	}
}

func (s *Server) watch(ctx context.Context) {
	defer s.unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-s.events:
			if !ok {
				return
			}
			if changed, ok := ev.(worker.StateChanged); ok {
				s.state.Store(int32(changed.To))
				logger.Debug(ctx, "Observed worker state", zap.Stringer("state", changed.To))
			}
		}
	}
}

type statusResponse struct {
	Status string `json:"status"`
	State  string `json:"state"`
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	writeStatus(w, r, http.StatusOK, statusResponse{Status: "ok", State: s.State().String()})
}

// readyz is 200 only while the loop holds a live connection.
func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	state := s.State()
	if state != worker.StateConnected {
		writeStatus(w, r, http.StatusServiceUnavailable, statusResponse{Status: "unavailable", State: state.String()})
		return
	}
	writeStatus(w, r, http.StatusOK, statusResponse{Status: "ok", State: state.String()})
}

func writeStatus(w http.ResponseWriter, r *http.Request, code int, body statusResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Debug(r.Context(), "Failed to encode ops response", zap.Error(err))
	}
}
