package services

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	verificationOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snapquest_verification_outcomes_total",
			Help: "Verification decisions by status",
		},
		[]string{"status"},
	)
	xpCredited = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snapquest_xp_credited_total",
			Help: "XP credited to users by source",
		},
		[]string{"source"},
	)
	badgesAwarded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snapquest_badges_awarded_total",
			Help: "Badges awarded by requirement type",
		},
		[]string{"requirement"},
	)
	questTasksCompleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snapquest_quest_tasks_completed_total",
			Help: "Quest task completions by quest kind and whether they were credited",
		},
		[]string{"kind", "credited"},
	)
	scorerLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "snapquest_scorer_duration_seconds",
			Help:    "Latency of match scorer calls",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 16},
		},
	)
	notificationsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snapquest_notifications_total",
			Help: "Push notifications by type and result",
		},
		[]string{"type", "result"},
	)
)

// RegisterMetrics registers the domain metrics. Call this from main.go.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(
		verificationOutcomes,
		xpCredited,
		badgesAwarded,
		questTasksCompleted,
		scorerLatency,
		notificationsSent,
	)
}
