package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pass outcomes used as the "outcome" label on linkengine_passes_total.
const (
	OutcomeCommitted = "committed"
	OutcomeStale     = "stale"
	OutcomeFailed    = "failed"
)

// EngineCollector bundles Prometheus metrics for the link precomputation
// engine and exposes a /metrics handler.
type EngineCollector struct {
	gatherer prometheus.Gatherer

	Passes         *prometheus.CounterVec
	PassDuration   prometheus.Histogram
	StageDurations *prometheus.HistogramVec

	Candidates    prometheus.Gauge
	ValidPairs    prometheus.Gauge
	AcceptedLinks prometheus.Gauge
}

// NewEngineCollector registers engine metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewEngineCollector(reg prometheus.Registerer) (*EngineCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	passes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "linkengine_passes_total",
		Help: "Total number of recomputation passes, labeled by outcome.",
	}, []string{"outcome"})
	passes, err := registerCounterVec(reg, passes, "linkengine_passes_total")
	if err != nil {
		return nil, err
	}

	passDuration, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "linkengine_pass_duration_seconds",
		Help:    "Wall-clock duration of a full recomputation pass, commit included.",
		Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}), "linkengine_pass_duration_seconds")
	if err != nil {
		return nil, err
	}

	stages := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "linkengine_stage_duration_seconds",
		Help:    "Duration of individual pipeline stages.",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}, []string{"stage"})
	stages, err = registerHistogramVec(reg, stages, "linkengine_stage_duration_seconds")
	if err != nil {
		return nil, err
	}

	candidates, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "linkengine_candidates",
		Help: "Number of antenna-pair candidates evaluated in the last pass.",
	}), "linkengine_candidates")
	if err != nil {
		return nil, err
	}
	validPairs, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "linkengine_valid_node_pairs",
		Help: "Number of ordered node pairs that survived the eligibility filter in the last pass.",
	}), "linkengine_valid_node_pairs")
	if err != nil {
		return nil, err
	}
	accepted, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "linkengine_accepted_links",
		Help: "Number of bidirectional links committed by the last pass.",
	}), "linkengine_accepted_links")
	if err != nil {
		return nil, err
	}

	return &EngineCollector{
		gatherer:       gatherer,
		Passes:         passes,
		PassDuration:   passDuration,
		StageDurations: stages,
		Candidates:     candidates,
		ValidPairs:     validPairs,
		AcceptedLinks:  accepted,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *EngineCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// Handler exposes a ready-to-use /metrics handler.
func (c *EngineCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// ObservePass records the outcome and duration of a pass.
func (c *EngineCollector) ObservePass(outcome string, d time.Duration) {
	if c == nil {
		return
	}
	if c.Passes != nil {
		c.Passes.WithLabelValues(outcome).Inc()
	}
	if c.PassDuration != nil {
		c.PassDuration.Observe(d.Seconds())
	}
}

// ObserveStage records the duration of one pipeline stage.
func (c *EngineCollector) ObserveStage(stage string, d time.Duration) {
	if c == nil || c.StageDurations == nil {
		return
	}
	c.StageDurations.WithLabelValues(stage).Observe(d.Seconds())
}

// SetPassCounts updates the per-pass size gauges.
func (c *EngineCollector) SetPassCounts(validPairs, candidates, accepted int) {
	if c == nil {
		return
	}
	if c.ValidPairs != nil {
		c.ValidPairs.Set(float64(validPairs))
	}
	if c.Candidates != nil {
		c.Candidates.Set(float64(candidates))
	}
	if c.AcceptedLinks != nil {
		c.AcceptedLinks.Set(float64(accepted))
	}
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
