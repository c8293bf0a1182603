package table

import (
	"context"
	"testing"
	"time"

	"agentpoker/internal/engine"
	"agentpoker/pkg/rng"
)

func newTestActor(t *testing.T) *Actor {
	t.Helper()
	sys, err := rng.NewSystemWithSeed([]byte("table-actor-test"))
	if err != nil {
		t.Fatalf("rng.NewSystemWithSeed: %v", err)
	}
	a := NewActor("t1", sys, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	a.Start(ctx)
	t.Cleanup(a.Stop)
	return a
}

func TestActorJoinStartsHandAutomatically(t *testing.T) {
	a := newTestActor(t)
	if err := a.Join("a1", "Alice", 1000); err != nil {
		t.Fatalf("join a1: %v", err)
	}
	if err := a.Join("a2", "Bob", 1000); err != nil {
		t.Fatalf("join a2: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		view := a.GetAgentView("a1")
		if view.Phase == engine.PhasePreflop {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("hand did not start automatically once two players joined")
}

func TestActorRejectsOffTurnActThenAcceptsOnTurn(t *testing.T) {
	a := newTestActor(t)
	if err := a.Join("a1", "Alice", 1000); err != nil {
		t.Fatalf("join a1: %v", err)
	}
	if err := a.Join("a2", "Bob", 1000); err != nil {
		t.Fatalf("join a2: %v", err)
	}

	var view *AgentView
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		view = a.GetAgentView("a1")
		if view.Phase == engine.PhasePreflop {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if view.Phase != engine.PhasePreflop {
		t.Fatalf("hand never started")
	}

	turnAgent := view.TurnAgentID
	otherAgent := "a1"
	if turnAgent == "a1" {
		otherAgent = "a2"
	}

	// The off-turn agent's action must be rejected without corrupting the
	// table: the on-turn agent's subsequent action should still succeed.
	if err := a.Act(otherAgent, engine.ActionCheck, 0); err == nil {
		t.Fatalf("expected out-of-turn act to fail")
	}
	if err := a.Act(turnAgent, engine.ActionCall, 0); err != nil {
		t.Fatalf("on-turn act should succeed: %v", err)
	}
}

func TestActorChatAttachesToHandRecord(t *testing.T) {
	a := newTestActor(t)
	if err := a.Join("a1", "Alice", 1000); err != nil {
		t.Fatalf("join a1: %v", err)
	}
	if err := a.Chat("a1", "gg"); err != nil {
		t.Fatalf("chat: %v", err)
	}
	view := a.GetAgentView("a1")
	found := false
	for _, m := range view.Chat {
		if m.Text == "gg" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected chat message to appear in agent view, got %+v", view.Chat)
	}
}

func TestActorUpdateChips(t *testing.T) {
	a := newTestActor(t)
	if err := a.Join("a1", "Alice", 1000); err != nil {
		t.Fatalf("join a1: %v", err)
	}
	a.UpdateChips("a1", 5000)
	view := a.GetAgentView("a1")
	if view.YourChips != 5000 {
		t.Fatalf("expected updated chip count 5000, got %d", view.YourChips)
	}
}

func TestRegistryGetOrCreateIsIdempotent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	reg := NewRegistry(ctx, nil, nil)
	t.Cleanup(reg.StopAll)

	a1 := reg.GetOrCreate("t1")
	a2 := reg.GetOrCreate("t1")
	if a1 != a2 {
		t.Fatalf("expected the same actor instance for the same table id")
	}
}

func TestRegistryResetDiscardsActor(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	reg := NewRegistry(ctx, nil, nil)
	t.Cleanup(reg.StopAll)

	a1 := reg.GetOrCreate("t1")
	reg.Reset("t1")
	a2 := reg.GetOrCreate("t1")
	if a1 == a2 {
		t.Fatalf("expected reset to discard the old actor")
	}
}
