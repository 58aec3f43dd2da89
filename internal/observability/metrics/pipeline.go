package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mkorchagin/content-pipeline/internal/core/domain"
)

// PipelineMetrics exposes the classification pipeline's run, provider,
// resolution, action and cache counters on a dedicated registry.
type PipelineMetrics struct {
	registry *prometheus.Registry

	runsTotal         *prometheus.CounterVec
	runDuration       *prometheus.HistogramVec
	providerAttempts  *prometheus.CounterVec
	resolutionTier    *prometheus.CounterVec
	actionDuration    *prometheus.HistogramVec
	actionFailures    *prometheus.CounterVec
	cacheLookupsTotal *prometheus.CounterVec
}

func NewPipelineMetrics(service string) *PipelineMetrics {
	registry := prometheus.NewRegistry()

	runsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ccp",
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Pipeline runs by terminal state.",
		},
		[]string{"service", "state"},
	)
	runDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ccp",
			Subsystem: "pipeline",
			Name:      "run_duration_seconds",
			Help:      "Full pipeline run duration in seconds by terminal state.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "state"},
	)
	providerAttempts := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ccp",
			Subsystem: "pipeline",
			Name:      "provider_attempts_total",
			Help:      "Classification provider calls by provider and outcome.",
		},
		[]string{"service", "provider", "outcome"},
	)
	resolutionTier := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ccp",
			Subsystem: "pipeline",
			Name:      "resolutions_total",
			Help:      "Category resolutions by tier; a rising fallback share points at labels worth aliasing.",
		},
		[]string{"service", "tier"},
	)
	actionDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ccp",
			Subsystem: "pipeline",
			Name:      "action_duration_seconds",
			Help:      "Action execution duration in seconds by handler and status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "handler", "status"},
	)
	actionFailures := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ccp",
			Subsystem: "pipeline",
			Name:      "action_failures_total",
			Help:      "Action failures by handler and failure kind.",
		},
		[]string{"service", "handler", "kind"},
	)
	cacheLookupsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ccp",
			Subsystem: "pipeline",
			Name:      "classification_cache_lookups_total",
			Help:      "Classification cache lookups by result.",
		},
		[]string{"service", "result"},
	)

	registry.MustRegister(runsTotal, runDuration, providerAttempts, resolutionTier, actionDuration, actionFailures, cacheLookupsTotal)

	return &PipelineMetrics{
		registry:          registry,
		runsTotal:         runsTotal,
		runDuration:       runDuration,
		providerAttempts:  providerAttempts,
		resolutionTier:    resolutionTier,
		actionDuration:    actionDuration,
		actionFailures:    actionFailures,
		cacheLookupsTotal: cacheLookupsTotal,
	}
}

func (m *PipelineMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRun records every dimension of a finished pipeline run.
func (m *PipelineMetrics) ObserveRun(service string, result *domain.PipelineResult) {
	if result == nil {
		return
	}

	state := string(result.State)
	m.runsTotal.WithLabelValues(service, state).Inc()
	m.runDuration.WithLabelValues(service, state).Observe(result.Duration.Seconds())

	for _, attempt := range result.Attempts {
		outcome := "error"
		switch {
		case attempt.Cached:
			outcome = "cache_hit"
		case attempt.Succeeded:
			outcome = "success"
		}
		m.providerAttempts.WithLabelValues(service, attempt.Provider, outcome).Inc()
	}
	if len(result.Attempts) > 0 && !result.Attempts[0].Cached {
		m.cacheLookupsTotal.WithLabelValues(service, "miss").Inc()
	} else if len(result.Attempts) > 0 {
		m.cacheLookupsTotal.WithLabelValues(service, "hit").Inc()
	}

	m.resolutionTier.WithLabelValues(service, string(result.Resolution.Tier)).Inc()

	for _, record := range result.Dispatch.Records {
		status := "success"
		if !record.Success {
			status = "error"
			m.actionFailures.WithLabelValues(service, record.HandlerKey, string(record.FailureKind)).Inc()
		}
		m.actionDuration.WithLabelValues(service, record.HandlerKey, status).Observe(record.Duration.Seconds())
	}
}
