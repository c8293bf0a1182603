package events

import (
	"testing"
	"time"

	"agentpoker/internal/collusion"
	"agentpoker/internal/engine"
)

func TestBuildHandCompletedEvent(t *testing.T) {
	ended := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	record := &engine.HandRecord{
		HandID:         "t1-3",
		TableID:        "t1",
		StartingStacks: []engine.StartingStack{{AgentID: "a1"}, {AgentID: "a2"}},
		WinnerIDs:      []string{"a1"},
		WinningHand:    "Flush",
		Pot:            150,
		EndedAt:        ended,
	}

	event := buildHandCompletedEvent(record)
	if event.HandID != "t1-3" || event.TableID != "t1" {
		t.Fatalf("unexpected identity fields: %+v", event)
	}
	if event.PlayerCount != 2 || event.Pot != 150 || event.WinningHand != "Flush" {
		t.Fatalf("unexpected fields: %+v", event)
	}
	if !event.EndedAt.Equal(ended) {
		t.Fatalf("expected EndedAt %v, got %v", ended, event.EndedAt)
	}
}

func TestBuildCollusionFlaggedEvent(t *testing.T) {
	pair := &collusion.PairStats{AgentA: "alice", AgentB: "bob", Score: 0.81}
	asOf := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	event := buildCollusionFlaggedEvent(pair, asOf)
	if event.AgentA != "alice" || event.AgentB != "bob" || event.Score != 0.81 {
		t.Fatalf("unexpected event: %+v", event)
	}
	if !event.AsOf.Equal(asOf) {
		t.Fatalf("expected AsOf %v, got %v", asOf, event.AsOf)
	}
}
