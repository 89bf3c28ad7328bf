package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	pipelineOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "querypilot_pipeline_outcomes_total",
			Help: "Total number of question pipeline runs by outcome kind.",
		},
		[]string{"kind"},
	)
	pipelineDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "querypilot_pipeline_duration_seconds",
			Help:    "End-to-end latency of a question pipeline run.",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
	)
	translateRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "querypilot_translate_requests_total",
			Help: "Total number of language-model translation attempts by provider and status.",
		},
		[]string{"provider", "status"},
	)
	warehouseCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "querypilot_warehouse_calls_total",
			Help: "Total number of warehouse calls by operation and status.",
		},
		[]string{"operation", "status"},
	)
	interactionLogFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "querypilot_interaction_log_failures_total",
			Help: "Total number of interaction records that could not be written.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		pipelineOutcomesTotal,
		pipelineDurationSeconds,
		translateRequestsTotal,
		warehouseCallsTotal,
		interactionLogFailuresTotal,
	)
}

func ObservePipelineOutcome(kind string, elapsed time.Duration) {
	pipelineOutcomesTotal.WithLabelValues(kind).Inc()
	pipelineDurationSeconds.Observe(elapsed.Seconds())
}

func ObserveTranslate(provider string, err error) {
	translateRequestsTotal.WithLabelValues(provider, statusLabel(err)).Inc()
}

func ObserveWarehouseCall(operation string, err error) {
	warehouseCallsTotal.WithLabelValues(operation, statusLabel(err)).Inc()
}

func IncrementInteractionLogFailure() {
	interactionLogFailuresTotal.Inc()
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
