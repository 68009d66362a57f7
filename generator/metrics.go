package generator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	attemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "spurly",
		Subsystem: "generation",
		Name:      "attempts_total",
		Help:      "Generation service attempts by outcome",
	}, []string{"outcome"})

	rejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "spurly",
		Subsystem: "filter",
		Name:      "rejections_total",
		Help:      "Variant texts rejected by the safety filter, by rule",
	}, []string{"reason"})

	regenerationRounds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "spurly",
		Subsystem: "generation",
		Name:      "regeneration_rounds",
		Help:      "Regeneration rounds needed per request after the initial round",
		Buckets:   []float64{0, 1, 2, 3, 5, 8, 10},
	})

	degradedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "spurly",
		Subsystem: "generation",
		Name:      "degraded_total",
		Help:      "Requests that hit the regeneration cap with variants still failing",
	})
)
