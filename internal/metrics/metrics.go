// Package metrics provides Prometheus metrics for the save workflow
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Save paths
const (
	PathChosen     = "chosen"
	PathClassified = "classified"
)

// Save outcomes
const (
	OutcomeResolved = "resolved"
	OutcomeFailed   = "failed"
	OutcomeInvalid  = "invalid"
)

// Metrics contains the workflow collectors. A nil *Metrics records nothing.
type Metrics struct {
	savesTotal            *prometheus.CounterVec
	classificationErrors  *prometheus.CounterVec
	classificationSeconds prometheus.Histogram
}

// New creates and registers the collectors on registry
func New(registry prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		savesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "diary_saves_total",
				Help: "Total number of save workflows by path and terminal outcome",
			},
			[]string{"path", "outcome"},
		),
		classificationErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "diary_classification_errors_total",
				Help: "Total number of failed classifications by reason",
			},
			[]string{"reason"},
		),
		classificationSeconds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name: "diary_classification_duration_seconds",
				Help: "Time spent waiting on the emotion-analysis service",
				// 50ms to ~12.8s, past the default 10s timeout
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 9),
			},
		),
	}

	for _, c := range []prometheus.Collector{m.savesTotal, m.classificationErrors, m.classificationSeconds} {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// RecordSave counts a finished save workflow
func (m *Metrics) RecordSave(path, outcome string) {
	if m == nil {
		return
	}
	m.savesTotal.WithLabelValues(path, outcome).Inc()
}

// RecordClassification observes one classifier call; reason is "" on success.
func (m *Metrics) RecordClassification(d time.Duration, reason string) {
	if m == nil {
		return
	}
	m.classificationSeconds.Observe(d.Seconds())
	if reason != "" {
		m.classificationErrors.WithLabelValues(reason).Inc()
	}
}
