// Package telemetry provides run metrics and cost observability for the
// reels agent. Counters are exported in Prometheus format; notable events
// are additionally written to the telemetry logger.
package telemetry

import (
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Sanchay-T/influencer-platform-app-sub009/internal/agent/config"
)

// Telemetry aggregates the agent's Prometheus metrics behind one registry.
type Telemetry struct {
	config   config.TelemetryConfig
	logger   *log.Logger
	registry *prometheus.Registry

	runsTotal       *prometheus.CounterVec
	toolCalls       *prometheus.CounterVec
	toolErrors      *prometheus.CounterVec
	filterFallbacks prometheus.Counter
	iterationCaps   prometheus.Counter
	runCostUSD      prometheus.Counter
	llmTokens       *prometheus.CounterVec
}

// New creates a Telemetry instance with its own registry.
func New(cfg config.TelemetryConfig) *Telemetry {
	out := log.Writer()
	if cfg.LogFile != "" {
		if f, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644); err == nil {
			out = f
		}
	}
	t := &Telemetry{
		config:   cfg,
		logger:   log.New(out, "[TELEMETRY] ", log.LstdFlags),
		registry: prometheus.NewRegistry(),
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reelagent_runs_total",
			Help: "Completed agent runs by outcome.",
		}, []string{"status"}),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reelagent_tool_calls_total",
			Help: "Tool calls executed by tool name.",
		}, []string{"tool"}),
		toolErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reelagent_tool_errors_total",
			Help: "Tool calls that returned an error payload, by tool name.",
		}, []string{"tool"}),
		filterFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reelagent_filter_fallback_total",
			Help: "Runs where filtering emptied the classified set and the unfiltered fallback was served.",
		}),
		iterationCaps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reelagent_iteration_cap_total",
			Help: "Runs terminated by the iteration cap instead of a model stop.",
		}),
		runCostUSD: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reelagent_run_cost_usd_total",
			Help: "Cumulative run cost in USD across all providers.",
		}),
		llmTokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reelagent_llm_tokens_total",
			Help: "LLM tokens consumed by direction.",
		}, []string{"direction"}),
	}
	t.registry.MustRegister(t.runsTotal, t.toolCalls, t.toolErrors,
		t.filterFallbacks, t.iterationCaps, t.runCostUSD, t.llmTokens)
	return t
}

// Handler serves the metrics registry in Prometheus exposition format.
func (t *Telemetry) Handler() http.Handler {
	return promhttp.HandlerFor(t.registry, promhttp.HandlerOpts{})
}

func (t *Telemetry) RecordRun(status string) {
	t.runsTotal.WithLabelValues(status).Inc()
}

func (t *Telemetry) RecordToolCall(tool string) {
	t.toolCalls.WithLabelValues(tool).Inc()
}

func (t *Telemetry) RecordToolError(tool string) {
	t.toolErrors.WithLabelValues(tool).Inc()
}

// RecordFilterFallback notes a run whose classified set filtered down to
// nothing. Frequent hits here mean classification is failing wholesale.
func (t *Telemetry) RecordFilterFallback(sessionID string) {
	t.filterFallbacks.Inc()
	t.logger.Printf("filter fallback triggered for session %s: classified set emptied, serving unfiltered candidates", sessionID)
}

func (t *Telemetry) RecordIterationCap(sessionID string, iterations int) {
	t.iterationCaps.Inc()
	t.logger.Printf("session %s hit iteration cap (%d), finalizing with partial results", sessionID, iterations)
}

func (t *Telemetry) RecordLLMUsage(inputTokens, outputTokens int64) {
	t.llmTokens.WithLabelValues("input").Add(float64(inputTokens))
	t.llmTokens.WithLabelValues("output").Add(float64(outputTokens))
}

func (t *Telemetry) RecordRunCost(sessionID string, totalUSD float64) {
	t.runCostUSD.Add(totalUSD)
	t.logger.Printf("session %s total cost: %s", sessionID, FormatUSD(totalUSD))
}

// FormatUSD renders a cost with audit precision.
func FormatUSD(v float64) string {
	return fmt.Sprintf("$%.6f", v)
}
