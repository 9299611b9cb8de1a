// Package metrics holds the Prometheus collectors for pricing calls.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups every collector on its own registry.
type Metrics struct {
	registry *prometheus.Registry

	PricingTotal     *prometheus.CounterVec
	MatchesTotal     *prometheus.CounterVec
	DegradationTotal *prometheus.CounterVec
	CacheHits        *prometheus.CounterVec
	CacheMisses      *prometheus.CounterVec
	StageDuration    *prometheus.HistogramVec
	FusedConfidence  prometheus.Histogram
}

// New creates and registers the collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		PricingTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "job_pricer_pricing_total",
				Help: "Pricing calls by outcome",
			},
			[]string{"outcome"},
		),
		MatchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "job_pricer_matches_total",
				Help: "Matches by method and confidence tier",
			},
			[]string{"method", "tier"},
		),
		DegradationTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "job_pricer_degradations_total",
				Help: "Degraded paths taken, by kind",
			},
			[]string{"kind"},
		),
		CacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "job_pricer_cache_hits_total",
				Help: "Cache hits",
			},
			[]string{"cache_type"},
		),
		CacheMisses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "job_pricer_cache_misses_total",
				Help: "Cache misses",
			},
			[]string{"cache_type"},
		),
		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "job_pricer_stage_duration_seconds",
				Help:    "Duration of each pricing stage",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
			},
			[]string{"stage"},
		),
		FusedConfidence: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "job_pricer_match_confidence",
				Help:    "Final match confidence",
				Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
			},
		),
	}

	m.registry.MustRegister(
		m.PricingTotal,
		m.MatchesTotal,
		m.DegradationTotal,
		m.CacheHits,
		m.CacheMisses,
		m.StageDuration,
		m.FusedConfidence,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveStage records how long a stage took. Safe on a nil receiver.
func (m *Metrics) ObserveStage(stage string, started time.Time) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(time.Since(started).Seconds())
}

// Degraded counts a degraded path. Safe on a nil receiver.
func (m *Metrics) Degraded(kind string) {
	if m == nil {
		return
	}
	m.DegradationTotal.WithLabelValues(kind).Inc()
}

// Matched counts a match outcome. Safe on a nil receiver.
func (m *Metrics) Matched(method, tier string, confidence float64) {
	if m == nil {
		return
	}
	m.MatchesTotal.WithLabelValues(method, tier).Inc()
	m.FusedConfidence.Observe(confidence)
}

// Priced counts a finished pricing call. Safe on a nil receiver.
func (m *Metrics) Priced(outcome string) {
	if m == nil {
		return
	}
	m.PricingTotal.WithLabelValues(outcome).Inc()
}

// CacheResult counts a cache lookup. Safe on a nil receiver.
func (m *Metrics) CacheResult(cacheType string, hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHits.WithLabelValues(cacheType).Inc()
		return
	}
	m.CacheMisses.WithLabelValues(cacheType).Inc()
}
