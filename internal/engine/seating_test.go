package engine

import "testing"

func TestJoinRejectsBelowMinBuyIn(t *testing.T) {
	state := NewState("t1")
	err := Join(state, "a1", "Alice", 10)
	if ErrorCode(err) != CodeInsufficientBuyIn {
		t.Fatalf("expected CodeInsufficientBuyIn, got %v", err)
	}
}

func TestJoinRejectsDuplicateSeat(t *testing.T) {
	state := NewState("t1")
	if err := Join(state, "a1", "Alice", 1000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := Join(state, "a1", "Alice", 1000)
	if ErrorCode(err) != CodeAlreadySeated {
		t.Fatalf("expected CodeAlreadySeated, got %v", err)
	}
}

func TestJoinRejectsWhenFull(t *testing.T) {
	state := NewState("t1")
	for i := 0; i < MaxPlayers; i++ {
		if err := Join(state, seatID(i), "P", 1000); err != nil {
			t.Fatalf("unexpected error seating player %d: %v", i, err)
		}
	}
	err := Join(state, "overflow", "Overflow", 1000)
	if ErrorCode(err) != CodeTableFull {
		t.Fatalf("expected CodeTableFull, got %v", err)
	}
}

func TestLeaveRejectsMidHand(t *testing.T) {
	state := twoPlayerTable(t)
	sys := newTestRNG(t)
	if err := StartHand(state, sys, fixedNow, "h1"); err != nil {
		t.Fatalf("StartHand: %v", err)
	}
	active := state.Players[state.CurrentTurnIndex]
	err := Leave(state, active.AgentID)
	if ErrorCode(err) != CodeInHandCannotLeave {
		t.Fatalf("expected CodeInHandCannotLeave, got %v", err)
	}
}

func TestSitOutOnlyBetweenHands(t *testing.T) {
	state := twoPlayerTable(t)
	sys := newTestRNG(t)
	if err := StartHand(state, sys, fixedNow, "h1"); err != nil {
		t.Fatalf("StartHand: %v", err)
	}
	err := SitOut(state, state.Players[0].AgentID)
	if ErrorCode(err) != CodeNotBetweenHands {
		t.Fatalf("expected CodeNotBetweenHands, got %v", err)
	}
}

func TestSitOutPermittedRegardlessOfAllInStatus(t *testing.T) {
	// Open question resolved permissively: sit-out gates on phase alone,
	// not on a player's leftover status from the hand just completed.
	state := twoPlayerTable(t)
	state.Players[0].Status = StatusAllIn
	if err := SitOut(state, state.Players[0].AgentID); err != nil {
		t.Fatalf("expected sit-out to succeed in waiting phase regardless of status: %v", err)
	}
	if state.Players[0].Status != StatusSittingOut {
		t.Fatalf("expected status sitting_out, got %s", state.Players[0].Status)
	}
}

func seatID(i int) string {
	return string(rune('a' + i))
}
