package run

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docintake_runs_total",
		Help: "Runs by terminal status.",
	}, []string{"status"})

	stageExtractDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "docintake_stage_extract_duration_seconds",
		Help:    "Wall time of the extraction stage.",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
	})

	stageAnalyzeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "docintake_stage_analyze_duration_seconds",
		Help:    "Wall time of the analysis stage.",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
	})

	lazyRegenerations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docintake_lazy_regenerations_total",
		Help: "Artifacts rendered on demand by format.",
	}, []string{"format"})
)
