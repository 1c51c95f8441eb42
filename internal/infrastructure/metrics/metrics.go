// Package metrics provides Prometheus metrics for evaluator-server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TasksDispatched counts inference tasks appended to the request stream.
	TasksDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evaluator_tasks_dispatched_total",
			Help: "Total number of inference tasks dispatched",
		},
		[]string{"result"},
	)

	// ChunksConsumed counts result stream records by chunk status.
	ChunksConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evaluator_chunks_consumed_total",
			Help: "Total number of result stream records consumed",
		},
		[]string{"status"},
	)

	// MalformedRecords counts result records that could not be decoded.
	MalformedRecords = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "evaluator_malformed_records_total",
			Help: "Total number of malformed result stream records skipped",
		},
	)

	// Finalizations counts stream sessions reaching a terminal state.
	Finalizations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evaluator_stream_finalizations_total",
			Help: "Total number of stream sessions finalized",
		},
		[]string{"outcome"},
	)

	// ActiveStreamSessions tracks in-flight stream sessions.
	ActiveStreamSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "evaluator_active_stream_sessions",
			Help: "Number of stream sessions waiting for a terminal record",
		},
	)

	// ConsumerErrors counts consumer loop failures followed by a cooldown.
	ConsumerErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evaluator_consumer_errors_total",
			Help: "Total number of consumer loop errors",
		},
		[]string{"stage"},
	)

	// GuestConversations tracks conversations held in guest memory.
	GuestConversations = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "evaluator_guest_conversations",
			Help: "Number of guest conversations held in memory",
		},
	)

	// GuestEvictions counts guest conversations removed by the eviction job.
	GuestEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "evaluator_guest_evictions_total",
			Help: "Total number of idle guest conversations evicted",
		},
	)

	// SessionMerges counts guest to user merges.
	SessionMerges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evaluator_session_merges_total",
			Help: "Total number of guest session merges",
		},
		[]string{"result"},
	)

	// HTTPRequestDuration tracks API latency.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "evaluator_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

// RecordDispatch records the outcome of a dispatch.
func RecordDispatch(err error) {
	if err != nil {
		TasksDispatched.WithLabelValues("error").Inc()
		return
	}
	TasksDispatched.WithLabelValues("ok").Inc()
}

// RecordMerge records the outcome of a guest merge.
func RecordMerge(err error) {
	if err != nil {
		SessionMerges.WithLabelValues("error").Inc()
		return
	}
	SessionMerges.WithLabelValues("ok").Inc()
}
