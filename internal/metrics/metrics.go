package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const scopeLabel = "scope"

// Labels returns the prometheus labels for the watched scope.
func Labels(scope string) prometheus.Labels {
	return prometheus.Labels{scopeLabel: scope}
}

var (
	// EventsProcessed is the number of events dispatched to all sinks.
	EventsProcessed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "docstream",
		Subsystem: "run",
		Name:      "events_processed_total",
		Help:      "Number of change events dispatched to all sinks",
	}, []string{scopeLabel})

	// CheckpointSyncs is the number of positions written to the checkpoint store.
	CheckpointSyncs = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "docstream",
		Subsystem: "run",
		Name:      "checkpoint_syncs_total",
		Help:      "Number of positions written to the checkpoint store",
	}, []string{scopeLabel})

	// PositionResets is the number of times a stored position was reset
	// since the feed could no longer resolve it.
	PositionResets = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "docstream",
		Subsystem: "run",
		Name:      "position_resets_total",
		Help:      "Number of unresolvable positions reset",
	}, []string{scopeLabel})

	// RunResults counts successful runs by result code.
	RunResults = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "docstream",
		Subsystem: "run",
		Name:      "results_total",
		Help:      "Number of successful runs by result code",
	}, []string{scopeLabel, "code"})

	// RunErrors counts failed runs.
	RunErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "docstream",
		Subsystem: "run",
		Name:      "errors_total",
		Help:      "Number of failed runs",
	}, []string{scopeLabel})

	// Lag is how far behind the last dispatched event is.
	Lag = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "docstream",
		Subsystem: "run",
		Name:      "lag_seconds",
		Help:      "Lag between now and the last dispatched event cluster time in seconds",
	}, []string{scopeLabel})

	// SinkLatency is how long each sink takes to accept an event.
	SinkLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "docstream",
		Subsystem: "sink",
		Name:      "latency_seconds",
		Help:      "Sink put latency in seconds",
		Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
	}, []string{"sink"})

	// SinkErrors is the number of failed puts per sink.
	SinkErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "docstream",
		Subsystem: "sink",
		Name:      "error_total",
		Help:      "Number of errors putting events to sinks",
	}, []string{"sink"})

	// CheckpointSets is the number of set queries per checkpoint table.
	CheckpointSets = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "docstream",
		Subsystem: "checkpoints_table",
		Name:      "set_total",
		Help:      "Total number of set position queries performed per table",
	}, []string{"table"})

	// ConnectAttempts is the number of failed source connection attempts.
	ConnectAttempts = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "docstream",
		Subsystem: "source",
		Name:      "connect_failures_total",
		Help:      "Number of failed source connection attempts",
	})
)

func init() {
	prometheus.MustRegister(
		EventsProcessed,
		CheckpointSyncs,
		PositionResets,
		RunResults,
		RunErrors,
		Lag,
		SinkLatency,
		SinkErrors,
		CheckpointSets,
		ConnectAttempts,
	)
}
