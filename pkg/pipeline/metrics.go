package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	stageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "jenkube_stage_duration_seconds",
			Help:    "Time spent in each convergence stage",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
		},
		[]string{"stage"},
	)

	runsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jenkube_runs_total",
			Help: "Total number of convergence runs",
		},
		[]string{"status"}, // success or the failing stage
	)

	lastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "jenkube_last_run_timestamp_seconds",
			Help: "Unix timestamp of the last completed convergence run",
		},
	)

	objectsApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jenkube_objects_applied_total",
			Help: "Cluster objects applied, by outcome",
		},
		[]string{"outcome"}, // Created, Updated, Unchanged
	)
)
