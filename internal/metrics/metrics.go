// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package metrics holds the Prometheus collectors for the engine. Every
// method is safe on a nil *Metrics so components can run without metrics
// in tests and one-shot CLI commands.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "content_engine"

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	registry *prometheus.Registry

	GatewayCalls    *prometheus.CounterVec
	GatewayAttempts *prometheus.CounterVec
	GatewayTokens   *prometheus.CounterVec
	GatewayCost     *prometheus.CounterVec
	GatewayLatency  *prometheus.HistogramVec
	UsageDropped    prometheus.Counter

	PipelineRuns  *prometheus.CounterVec
	StageFailures *prometheus.CounterVec

	AssetsGenerated  *prometheus.CounterVec
	AssetErrors      *prometheus.CounterVec
	SchedulerCycles  *prometheus.CounterVec
	CycleDuration    prometheus.Histogram
	SchedulerRunning prometheus.Gauge

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// New registers every collector on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		GatewayCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_calls_total",
			Help:      "Model gateway calls by backend kind, provider and outcome.",
		}, []string{"kind", "provider", "outcome"}),
		GatewayAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_attempts_total",
			Help:      "Backend attempts including retries.",
		}, []string{"kind"}),
		GatewayTokens: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_tokens_total",
			Help:      "Tokens reported or estimated per backend kind.",
		}, []string{"kind", "direction"}), // direction: input, output
		GatewayCost: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_cost_usd_total",
			Help:      "Advisory cost estimate in USD.",
		}, []string{"kind"}),
		GatewayLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "gateway_call_duration_seconds",
			Help:      "Duration of gateway calls including retries.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"kind"}),
		UsageDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "usage_records_dropped_total",
			Help:      "Usage records dropped because the recorder buffer was full.",
		}),
		PipelineRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_runs_total",
			Help:      "Content pipeline runs by outcome.",
		}, []string{"outcome"}), // completed, partial, fatal
		StageFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_stage_failures_total",
			Help:      "Stage failures by stage and reason.",
		}, []string{"stage", "reason"}),
		AssetsGenerated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assets_generated_total",
			Help:      "Generated image assets by type.",
		}, []string{"type"}),
		AssetErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "asset_errors_total",
			Help:      "Asset generation failures by type.",
		}, []string{"type"}),
		SchedulerCycles: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduler_cycles_total",
			Help:      "Scheduler triggers by outcome.",
		}, []string{"outcome"}), // completed, failed, skipped
		CycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scheduler_cycle_duration_seconds",
			Help:      "Duration of image generation cycles.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		SchedulerRunning: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scheduler_running",
			Help:      "1 while the scheduler loop is running.",
		}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveGatewayCall records one completed gateway call.
func (m *Metrics) ObserveGatewayCall(kind, provider, outcome string, attempts, inTok, outTok int, cost float64, d time.Duration) {
	if m == nil {
		return
	}
	m.GatewayCalls.WithLabelValues(kind, provider, outcome).Inc()
	m.GatewayAttempts.WithLabelValues(kind).Add(float64(attempts))
	m.GatewayTokens.WithLabelValues(kind, "input").Add(float64(inTok))
	m.GatewayTokens.WithLabelValues(kind, "output").Add(float64(outTok))
	m.GatewayCost.WithLabelValues(kind).Add(cost)
	m.GatewayLatency.WithLabelValues(kind).Observe(d.Seconds())
}

// IncUsageDropped counts a dropped usage record.
func (m *Metrics) IncUsageDropped() {
	if m == nil {
		return
	}
	m.UsageDropped.Inc()
}

// IncPipelineRun counts a finished pipeline run.
func (m *Metrics) IncPipelineRun(outcome string) {
	if m == nil {
		return
	}
	m.PipelineRuns.WithLabelValues(outcome).Inc()
}

// IncStageFailure counts a failed stage.
func (m *Metrics) IncStageFailure(stage, reason string) {
	if m == nil {
		return
	}
	m.StageFailures.WithLabelValues(stage, reason).Inc()
}

// IncAssetGenerated counts a persisted asset.
func (m *Metrics) IncAssetGenerated(assetType string) {
	if m == nil {
		return
	}
	m.AssetsGenerated.WithLabelValues(assetType).Inc()
}

// IncAssetError counts a failed asset generation.
func (m *Metrics) IncAssetError(assetType string) {
	if m == nil {
		return
	}
	m.AssetErrors.WithLabelValues(assetType).Inc()
}

// ObserveCycle records a scheduler trigger outcome and, for executed cycles,
// its duration.
func (m *Metrics) ObserveCycle(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.SchedulerCycles.WithLabelValues(outcome).Inc()
	if outcome != "skipped" {
		m.CycleDuration.Observe(d.Seconds())
	}
}

// SetSchedulerRunning mirrors the scheduler running flag.
func (m *Metrics) SetSchedulerRunning(running bool) {
	if m == nil {
		return
	}
	if running {
		m.SchedulerRunning.Set(1)
		return
	}
	m.SchedulerRunning.Set(0)
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
