// Package metrics exposes Prometheus instrumentation for the exclusion
// engine. The engine reports through the Recorder interface so service
// tests can run without a live registry.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/veilapp/veil-server/internal/domain"
)

// Recorder receives engine observations.
type Recorder interface {
	// SetExcludedEntities publishes the per-type exclusion counts for a
	// user after a recompute. Types absent from counts are reset to zero.
	SetExcludedEntities(userID string, counts map[domain.EntityType]int)
	// ObserveRecompute records one recompute run.
	ObserveRecompute(trigger string, duration time.Duration, err error)
}

// PromRecorder implements Recorder on top of Prometheus collectors.
type PromRecorder struct {
	excludedEntities  *prometheus.GaugeVec
	recomputeTotal    *prometheus.CounterVec
	recomputeDuration prometheus.Histogram
}

// NewPromRecorder registers the engine collectors with reg.
func NewPromRecorder(reg prometheus.Registerer) *PromRecorder {
	r := &PromRecorder{
		excludedEntities: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "veil_excluded_entities",
				Help: "Number of entities excluded from a user's view, by type",
			},
			[]string{"user", "entity_type"},
		),
		recomputeTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "veil_recompute_total",
				Help: "Total number of exclusion recompute runs",
			},
			[]string{"trigger", "result"},
		),
		recomputeDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "veil_recompute_duration_seconds",
				Help:    "Duration of exclusion recompute runs in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
	}
	reg.MustRegister(r.excludedEntities, r.recomputeTotal, r.recomputeDuration)
	return r
}

// SetExcludedEntities implements Recorder.
func (r *PromRecorder) SetExcludedEntities(userID string, counts map[domain.EntityType]int) {
	for _, t := range domain.EntityTypes() {
		r.excludedEntities.WithLabelValues(userID, string(t)).Set(float64(counts[t]))
	}
}

// ObserveRecompute implements Recorder.
func (r *PromRecorder) ObserveRecompute(trigger string, duration time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.recomputeTotal.WithLabelValues(trigger, result).Inc()
	r.recomputeDuration.Observe(duration.Seconds())
}

// NopRecorder discards all observations.
type NopRecorder struct{}

// SetExcludedEntities implements Recorder.
func (NopRecorder) SetExcludedEntities(string, map[domain.EntityType]int) {}

// ObserveRecompute implements Recorder.
func (NopRecorder) ObserveRecompute(string, time.Duration, error) {}
