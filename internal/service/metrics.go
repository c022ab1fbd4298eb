package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	confirmationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "drama_confirmations_total",
		Help: "Total number of confirmed frames.",
	})

	dramasCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "drama_completions_total",
		Help: "Total number of sessions that reached the end of a drama.",
	})

	refreshesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drama_refreshes_total",
			Help: "Total number of candidate refreshes by payment mode.",
		},
		[]string{"mode"},
	)

	customSubmissionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "drama_custom_submissions_total",
		Help: "Total number of paid custom frame submissions.",
	})

	generationFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drama_generation_failures_total",
			Help: "Total number of failed generation calls by kind.",
		},
		[]string{"kind"},
	)

	settlementsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drama_settlements_total",
			Help: "Total number of settlement attempts by status.",
		},
		[]string{"status"},
	)

	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "drama_active_sessions",
		Help: "Number of sessions held in memory.",
	})
)
