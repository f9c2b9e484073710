// Package metrics is the ambient observability concern carried from the
// teacher regardless of spec.md's Non-goals (SPEC_FULL.md §11: "an ambient
// concern carried regardless of spec.md's Non-goals, which exclude
// distributed execution, not metrics").
//
// Grounded on internal/observability/metrics.go's promauto-registered
// CounterVec/HistogramVec/GaugeVec shape, narrowed to the surfaces
// ArtifactFlow actually has: runs, LLM invocations, tool executions, and
// stream buffers.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles every counter/histogram/gauge the core emits. A nil
// *Metrics is safe to call methods on — every method guards against it so
// callers that don't wire metrics (tests, minimal deployments) don't need
// a no-op implementation.
type Metrics struct {
	RunsStarted   *prometheus.CounterVec // no labels
	RunsCompleted *prometheus.CounterVec // outcome: completed|interrupted|error
	RunDuration   prometheus.Histogram

	LLMRequests *prometheus.CounterVec // agent, status: success|error
	LLMTokens   *prometheus.CounterVec // agent, kind: prompt|completion

	ToolExecutions *prometheus.CounterVec // tool, status: success|error
	ToolDuration   *prometheus.HistogramVec

	StreamBufferDepth *prometheus.GaugeVec // run_id
	ArtifactConflicts prometheus.Counter
}

// New creates and registers every metric with Prometheus's default
// registry. Call once at startup; passing the result through constructors
// rather than referencing a package-level global, per
// internal/artifacts/repository.go's *slog.Logger field convention.
func New() *Metrics {
	return &Metrics{
		RunsStarted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "artifactflow_runs_started_total",
			Help: "Total number of execution runs started.",
		}, nil),
		RunsCompleted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "artifactflow_runs_completed_total",
			Help: "Total number of execution runs by terminal outcome.",
		}, []string{"outcome"}),
		RunDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "artifactflow_run_duration_seconds",
			Help:    "Wall-clock duration of a run from allocation to terminal event.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		}),
		LLMRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "artifactflow_llm_requests_total",
			Help: "Total LLM invocations by agent and outcome.",
		}, []string{"agent", "status"}),
		LLMTokens: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "artifactflow_llm_tokens_total",
			Help: "Total LLM tokens consumed by agent and token kind.",
		}, []string{"agent", "kind"}),
		ToolExecutions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "artifactflow_tool_executions_total",
			Help: "Total tool executions by tool name and outcome.",
		}, []string{"tool", "status"}),
		ToolDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "artifactflow_tool_duration_seconds",
			Help:    "Tool execution duration in seconds.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		}, []string{"tool"}),
		StreamBufferDepth: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "artifactflow_stream_buffer_depth",
			Help: "Current number of buffered-but-undelivered events per run.",
		}, []string{"run_id"}),
		ArtifactConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "artifactflow_artifact_version_conflicts_total",
			Help: "Total optimistic-lock conflicts observed by the artifact store.",
		}),
	}
}

func (m *Metrics) RunStarted() {
	if m == nil {
		return
	}
	m.RunsStarted.WithLabelValues().Inc()
}

func (m *Metrics) RunCompleted(outcome string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.RunsCompleted.WithLabelValues(outcome).Inc()
	m.RunDuration.Observe(durationSeconds)
}

func (m *Metrics) LLMRequest(agent, status string, promptTokens, completionTokens int) {
	if m == nil {
		return
	}
	m.LLMRequests.WithLabelValues(agent, status).Inc()
	if promptTokens > 0 {
		m.LLMTokens.WithLabelValues(agent, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		m.LLMTokens.WithLabelValues(agent, "completion").Add(float64(completionTokens))
	}
}

func (m *Metrics) ToolExecution(tool, status string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.ToolExecutions.WithLabelValues(tool, status).Inc()
	m.ToolDuration.WithLabelValues(tool).Observe(durationSeconds)
}

func (m *Metrics) SetStreamBufferDepth(runID string, depth int) {
	if m == nil {
		return
	}
	m.StreamBufferDepth.WithLabelValues(runID).Set(float64(depth))
}

func (m *Metrics) DeleteStreamBufferDepth(runID string) {
	if m == nil {
		return
	}
	m.StreamBufferDepth.DeleteLabelValues(runID)
}

func (m *Metrics) ArtifactConflict() {
	if m == nil {
		return
	}
	m.ArtifactConflicts.Inc()
}
