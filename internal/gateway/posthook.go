package gateway

import (
	"context"
	"log"
	"time"

	"agentpoker/internal/analytics"
	"agentpoker/internal/archive"
	"agentpoker/internal/collusion"
	"agentpoker/internal/engine"
	"agentpoker/internal/events"
	"agentpoker/internal/identity"
	"agentpoker/internal/metrics"
	"agentpoker/internal/table"
)

// Fanout bundles the post-commit consumers of a completed hand. Only the
// identity store is required; every other sink is optional and skipped
// when nil.
type Fanout struct {
	Identity  identity.Store
	Archive   archive.Store
	Collusion *collusion.Accumulator
	Analytics *analytics.Sink
	Events    *events.Producer
}

// NewHandCommitHook builds the table.HandCommitHook wired into the registry
// at startup. It runs the post-commit fan-out: archive the hand, update
// identity-store counters, feed the collusion accumulator, and forward
// observability copies to the analytics sink and event bus. Every step is
// best-effort; a failure here never unwinds the hand that already
// committed.
func NewHandCommitHook(f Fanout) table.HandCommitHook {
	return func(tableID string, record *engine.HandRecord) {
		ctx := context.Background()

		if f.Archive != nil {
			if err := f.Archive.StoreHand(ctx, record); err != nil {
				metrics.PostCommitFailures.WithLabelValues("archive").Inc()
				log.Printf("archive.StoreHand table=%s hand=%s: %v", tableID, record.HandID, err)
			}
		}

		ending := make(map[string]int, len(record.EndingStacks))
		for _, s := range record.EndingStacks {
			ending[s.AgentID] = s.Chips
		}
		if errs := identity.ApplyHandResults(ctx, f.Identity, ending, record.WinnerIDs); len(errs) > 0 {
			metrics.PostCommitFailures.WithLabelValues("identity").Inc()
			for _, err := range errs {
				log.Printf("identity.ApplyHandResults table=%s hand=%s: %v", tableID, record.HandID, err)
			}
		}

		if f.Collusion != nil {
			f.Collusion.RecordHand(record)
		}

		if f.Analytics != nil {
			if err := f.Analytics.RecordHand(ctx, record); err != nil {
				metrics.PostCommitFailures.WithLabelValues("analytics").Inc()
				log.Printf("analytics.RecordHand table=%s hand=%s: %v", tableID, record.HandID, err)
			}
		}
		if f.Events != nil {
			if err := f.Events.PublishHandCompleted(record); err != nil {
				metrics.PostCommitFailures.WithLabelValues("events").Inc()
				log.Printf("events.PublishHandCompleted table=%s hand=%s: %v", tableID, record.HandID, err)
			}
		}

		metrics.HandsCompleted.WithLabelValues(tableID).Inc()
		metrics.HandDuration.WithLabelValues(tableID).Observe(record.EndedAt.Sub(record.StartedAt).Seconds())
	}
}

// NewPairUpdateHook builds the collusion accumulator's onUpdate callback:
// durably upsert the pair row, forward an analytics copy, and publish a
// watchlist event on every update while the pair's score is at or above the
// flagging threshold. pairStore,
// sink, and producer may each be nil.
func NewPairUpdateHook(pairStore *collusion.PostgresStore, sink *analytics.Sink, producer *events.Producer) func(*collusion.PairStats) {
	return func(pair *collusion.PairStats) {
		ctx := context.Background()
		now := time.Now()

		if pairStore != nil {
			if err := pairStore.UpsertPair(ctx, pair, now); err != nil {
				metrics.PostCommitFailures.WithLabelValues("agent_pairs").Inc()
				log.Printf("collusion.UpsertPair %s/%s: %v", pair.AgentA, pair.AgentB, err)
			}
		}
		if sink != nil {
			if err := sink.RecordCollusionPair(ctx, pair, now); err != nil {
				metrics.PostCommitFailures.WithLabelValues("analytics").Inc()
				log.Printf("analytics.RecordCollusionPair %s/%s: %v", pair.AgentA, pair.AgentB, err)
			}
		}

		if pair.Score > 0 {
			metrics.CollusionScore.Observe(pair.Score)
		}
		if pair.Score >= collusion.WatchlistThreshold && producer != nil {
			if err := producer.PublishCollusionFlagged(pair, now); err != nil {
				metrics.PostCommitFailures.WithLabelValues("events").Inc()
				log.Printf("events.PublishCollusionFlagged %s/%s: %v", pair.AgentA, pair.AgentB, err)
			}
		}
	}
}

// NewEvictHook builds the callback the table registry fires when a hand
// start evicts a seated agent (busted stack or prolonged sit-out): release
// the identity store's table assignment and write the final chip count
// back, so the agent can rebuy and rejoin elsewhere.
func NewEvictHook(identityStore identity.Store) table.EvictHook {
	return func(agentID string, chips int) {
		ctx := context.Background()
		if err := identityStore.UpdateChips(ctx, agentID, chips); err != nil {
			log.Printf("identity.UpdateChips evicted agent=%s: %v", agentID, err)
		}
		if err := identityStore.SetCurrentTable(ctx, agentID, ""); err != nil {
			log.Printf("identity.SetCurrentTable evicted agent=%s: %v", agentID, err)
		}
	}
}
