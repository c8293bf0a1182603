package engine

import (
	"testing"
	"time"

	"agentpoker/pkg/rng"
)

var fixedNow = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func newTestRNG(t *testing.T) *rng.System {
	t.Helper()
	sys, err := rng.NewSystemWithSeed([]byte("engine-test-seed"))
	if err != nil {
		t.Fatalf("rng.NewSystemWithSeed: %v", err)
	}
	return sys
}

func twoPlayerTable(t *testing.T) *State {
	t.Helper()
	state := NewState("table-test")
	if err := Join(state, "a1", "Alice", 1000); err != nil {
		t.Fatalf("join a1: %v", err)
	}
	if err := Join(state, "a2", "Bob", 1000); err != nil {
		t.Fatalf("join a2: %v", err)
	}
	return state
}

func nPlayerTable(t *testing.T, n int, chips int) *State {
	t.Helper()
	state := NewState("table-test")
	for i := 0; i < n; i++ {
		id := string(rune('a' + i))
		if err := Join(state, id, id, chips); err != nil {
			t.Fatalf("join %s: %v", id, err)
		}
	}
	return state
}

// totalChipsInPlay sums chips still in hand plus the pot. Bet/TotalBet are
// bookkeeping copies of amounts already swept into Pot by contributeChips,
// not separate chip locations, so they are not added again here.
func totalChipsInPlay(state *State) int {
	total := state.Pot
	for _, p := range state.Players {
		total += p.Chips
	}
	return total
}
