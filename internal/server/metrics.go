package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// jobsTotal counts jobs reaching a terminal state.
	// Labels: state (completed, failed, cancelled)
	jobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ribosearch",
		Subsystem: "jobs",
		Name:      "finished_total",
		Help:      "Total design jobs by terminal state",
	}, []string{"state"})

	// jobsRunning tracks jobs whose worker is active.
	jobsRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "ribosearch",
		Subsystem: "jobs",
		Name:      "running",
		Help:      "Number of design jobs currently running",
	})

	// jobDuration measures wall time of finished searches.
	jobDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "ribosearch",
		Subsystem: "jobs",
		Name:      "duration_seconds",
		Help:      "Wall time of design searches in seconds",
		Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
	})

	// searchSteps counts optimizer steps.
	// Labels: outcome (accepted, rejected)
	searchSteps = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ribosearch",
		Subsystem: "search",
		Name:      "steps_total",
		Help:      "Total local search steps by outcome",
	}, []string{"outcome"})
)

func recordStep(accepted bool) {
	if accepted {
		searchSteps.WithLabelValues("accepted").Inc()
	} else {
		searchSteps.WithLabelValues("rejected").Inc()
	}
}
