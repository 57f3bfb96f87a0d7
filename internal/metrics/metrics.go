// Package metrics exposes Prometheus collectors for the consistency engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ScenariosChecked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storyweave_scenarios_checked_total",
		Help: "Total number of scenarios run through the consistency checker.",
	})

	FindingsReported = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storyweave_findings_reported_total",
		Help: "Total number of consistency findings, labelled by kind.",
	}, []string{"kind"})

	PathsEnumerated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storyweave_paths_enumerated_total",
		Help: "Total number of playthrough paths enumerated.",
	})

	StateNodesMerged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storyweave_state_nodes_merged_total",
		Help: "Total number of quotient-graph nodes produced by state-space exploration.",
	})

	PathEvaluations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storyweave_path_evaluations_total",
		Help: "Total number of external path evaluations, labelled by outcome.",
	}, []string{"outcome"})

	CheckDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "storyweave_check_duration_ms",
		Help:    "Consistency check latency in milliseconds.",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
	})
)
