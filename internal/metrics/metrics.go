// Package metrics defines the server's Prometheus instrumentation as
// package-level promauto collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HandsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agentpoker_hands_completed_total",
		Help: "Total number of completed hands, by table",
	}, []string{"table_id"})

	HandDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "agentpoker_hand_duration_seconds",
		Help:    "Wall-clock duration of a hand from blinds to award",
		Buckets: prometheus.DefBuckets,
	}, []string{"table_id"})

	ActionsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agentpoker_actions_processed_total",
		Help: "Total number of betting actions processed, by type",
	}, []string{"action"})

	ActionRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agentpoker_actions_rejected_total",
		Help: "Total number of betting actions rejected, by engine error code",
	}, []string{"code"})

	ActionTimeouts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agentpoker_action_timeouts_total",
		Help: "Total number of actions synthesized by the action-timeout clock",
	}, []string{"table_id"})

	TablesActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "agentpoker_tables_active",
		Help: "Number of table actors currently running",
	})

	PlayersSeated = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "agentpoker_players_seated",
		Help: "Number of agents currently seated across all tables",
	})

	CollusionPairsFlagged = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "agentpoker_collusion_pairs_flagged",
		Help: "Number of agent pairs currently on the collusion watchlist",
	})

	CollusionScore = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "agentpoker_collusion_score",
		Help:    "Distribution of pairwise collusion scores once scored",
		Buckets: []float64{0, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.75, 0.8, 0.9, 1.0},
	})

	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "agentpoker_request_duration_seconds",
		Help:    "HTTP request duration by route and status",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "status"})

	RateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agentpoker_rate_limited_total",
		Help: "Total number of requests rejected by the rate limiter, by route class",
	}, []string{"class"})

	PostCommitFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agentpoker_post_commit_failures_total",
		Help: "Total number of best-effort post-commit side effects that failed",
	}, []string{"sink"})
)
