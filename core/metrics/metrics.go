package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ConnectAttempts counts connection manager connect calls by outcome.
	ConnectAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docworker_connect_attempts_total",
		Help: "Total number of queue connect attempts.",
	}, []string{"status"})

	// Reconnects counts reconnect episodes by outcome.
	Reconnects = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docworker_reconnects_total",
		Help: "Total number of reconnect episodes.",
	}, []string{"status"})

	// Pops counts blocking pop results: item, empty or error.
	Pops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docworker_pops_total",
		Help: "Total number of blocking pops by result.",
	}, []string{"result"})

	// Jobs counts popped items by outcome: reported, malformed or failed.
	Jobs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docworker_jobs_total",
		Help: "Total number of popped queue items by outcome.",
	}, []string{"outcome"})

	// JobFileBytes observes the reported document size of each job.
	JobFileBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "docworker_job_file_bytes",
		Help:    "Reported document size of received jobs.",
		Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
	})

	// WorkerState is 1 for the consumption loop's current state and 0 otherwise.
	WorkerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "docworker_worker_state",
		Help: "Current consumption loop state.",
	}, []string{"state"})

	// EventsDropped counts events not delivered to a slow subscriber.
	EventsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docworker_events_dropped_total",
		Help: "Total number of events dropped because a subscriber was full.",
	}, []string{"topic"})
)

// SetState marks current as the active state among all.
func SetState(current string, all []string) {
	for _, s := range all {
		v := 0.0
		if s == current {
			v = 1
		}
		WorkerState.WithLabelValues(s).Set(v)
	}
}
