package engine

import (
	"testing"
	"time"
)

func TestStartHandPostsBlindsAndDealsCards(t *testing.T) {
	state := twoPlayerTable(t)
	sys := newTestRNG(t)
	if err := StartHand(state, sys, fixedNow, "h1"); err != nil {
		t.Fatalf("StartHand: %v", err)
	}
	if state.Phase != PhasePreflop {
		t.Fatalf("expected preflop, got %s", state.Phase)
	}
	for _, p := range state.Players {
		if len(p.HoleCards) != 2 {
			t.Fatalf("player %s expected 2 hole cards, got %d", p.AgentID, len(p.HoleCards))
		}
	}
	if state.Pot != state.SmallBlind+state.BigBlind {
		t.Fatalf("expected pot %d, got %d", state.SmallBlind+state.BigBlind, state.Pot)
	}
	if totalChipsInPlay(state) != 2000 {
		t.Fatalf("chip conservation violated: %d", totalChipsInPlay(state))
	}
}

func TestNoDuplicateCardsDealt(t *testing.T) {
	state := nPlayerTable(t, 6, 1000)
	sys := newTestRNG(t)
	if err := StartHand(state, sys, fixedNow, "h1"); err != nil {
		t.Fatalf("StartHand: %v", err)
	}
	seen := make(map[int]bool)
	for _, p := range state.Players {
		for _, c := range p.HoleCards {
			id := c.ToID()
			if seen[id] {
				t.Fatalf("duplicate card dealt: %v", c)
			}
			seen[id] = true
		}
	}
	for _, c := range state.Deck {
		id := c.ToID()
		if seen[id] {
			t.Fatalf("card %v dealt and still in deck", c)
		}
		seen[id] = true
	}
	if len(seen) != 52 {
		t.Fatalf("expected 52 distinct cards accounted for, got %d", len(seen))
	}
}

func TestFoldOutAwardsEntirePotToSurvivor(t *testing.T) {
	state := twoPlayerTable(t)
	sys := newTestRNG(t)
	if err := StartHand(state, sys, fixedNow, "h1"); err != nil {
		t.Fatalf("StartHand: %v", err)
	}
	actor := state.Players[state.CurrentTurnIndex]
	other := otherPlayer(state, actor.AgentID)
	potBefore := state.Pot
	otherChipsBeforeAward := other.Chips

	if err := Act(state, actor.AgentID, ActionFold, 0, fixedNow); err != nil {
		t.Fatalf("Act fold: %v", err)
	}

	if state.Phase != PhaseShowdown {
		t.Fatalf("expected showdown after fold-out, got %s", state.Phase)
	}
	if state.LastHandResult == nil {
		t.Fatalf("expected a hand result")
	}
	if other.Chips != otherChipsBeforeAward+potBefore {
		t.Fatalf("expected survivor to receive the pot: %d + %d != %d", otherChipsBeforeAward, potBefore, other.Chips)
	}
	if state.LastHandResult.WinnerNames[0] != other.Name {
		t.Fatalf("expected %s to win, got %v", other.Name, state.LastHandResult.WinnerNames)
	}
	if totalChipsInPlay(state) != 2000 {
		t.Fatalf("chip conservation violated after fold-out: %d", totalChipsInPlay(state))
	}
}

func TestPostflopFoldOutRecordsCommunityCards(t *testing.T) {
	state := twoPlayerTable(t)
	sys := newTestRNG(t)
	if err := StartHand(state, sys, fixedNow, "h1"); err != nil {
		t.Fatalf("StartHand: %v", err)
	}

	// Preflop: the small blind completes, the big blind checks, dealing
	// the flop.
	first := state.Players[state.CurrentTurnIndex]
	if err := Act(state, first.AgentID, ActionCall, 0, fixedNow); err != nil {
		t.Fatalf("Act call: %v", err)
	}
	second := state.Players[state.CurrentTurnIndex]
	if err := Act(state, second.AgentID, ActionCheck, 0, fixedNow); err != nil {
		t.Fatalf("Act check: %v", err)
	}
	if state.Phase != PhaseFlop {
		t.Fatalf("expected flop, got %s", state.Phase)
	}
	if len(state.CommunityCards) != 3 {
		t.Fatalf("expected 3 community cards on the flop, got %d", len(state.CommunityCards))
	}

	// Flop: the player on action folds, ending the hand without a
	// contested showdown.
	folder := state.Players[state.CurrentTurnIndex]
	if err := Act(state, folder.AgentID, ActionFold, 0, fixedNow); err != nil {
		t.Fatalf("Act fold: %v", err)
	}
	if state.Phase != PhaseShowdown {
		t.Fatalf("expected showdown after fold-out, got %s", state.Phase)
	}

	record := state.HandRecord
	if record == nil {
		t.Fatalf("expected a hand record")
	}
	if len(record.CommunityCards) != 3 {
		t.Fatalf("fold-out record must carry the dealt board, got %d cards", len(record.CommunityCards))
	}
	for i, c := range state.CommunityCards {
		if record.CommunityCards[i] != c {
			t.Fatalf("record card %d = %v, want %v", i, record.CommunityCards[i], c)
		}
	}
}

func TestMinRaiseLaw(t *testing.T) {
	state := twoPlayerTable(t)
	sys := newTestRNG(t)
	if err := StartHand(state, sys, fixedNow, "h1"); err != nil {
		t.Fatalf("StartHand: %v", err)
	}
	actor := state.Players[state.CurrentTurnIndex]
	// currentBet is the big blind; a raise below 2x the current bet must
	// be rejected unless it is all-in for less.
	err := Act(state, actor.AgentID, ActionRaise, state.CurrentBet+1, fixedNow)
	if ErrorCode(err) != CodeBelowMinRaise {
		t.Fatalf("expected CodeBelowMinRaise, got %v", err)
	}
}

func TestCannotActOutOfTurn(t *testing.T) {
	state := twoPlayerTable(t)
	sys := newTestRNG(t)
	if err := StartHand(state, sys, fixedNow, "h1"); err != nil {
		t.Fatalf("StartHand: %v", err)
	}
	actor := state.Players[state.CurrentTurnIndex]
	notActor := otherPlayer(state, actor.AgentID)
	err := Act(state, notActor.AgentID, ActionCheck, 0, fixedNow)
	if ErrorCode(err) != CodeNotYourTurn {
		t.Fatalf("expected CodeNotYourTurn, got %v", err)
	}
}

func TestTimeoutIsIdempotent(t *testing.T) {
	state := twoPlayerTable(t)
	sys := newTestRNG(t)
	if err := StartHand(state, sys, fixedNow, "h1"); err != nil {
		t.Fatalf("StartHand: %v", err)
	}
	late := fixedNow.Add(ActionTimeout + time.Second)
	actorBefore := state.Players[state.CurrentTurnIndex].AgentID

	if err := Timeout(state, late); err != nil {
		t.Fatalf("Timeout: %v", err)
	}
	phaseAfterFirst := state.Phase
	turnAfterFirst := state.CurrentTurnIndex

	if err := Timeout(state, late); err != nil {
		t.Fatalf("second Timeout: %v", err)
	}
	if state.Phase != phaseAfterFirst || state.CurrentTurnIndex != turnAfterFirst {
		t.Fatalf("Timeout was not idempotent: phase %s->%s turn %d->%d", phaseAfterFirst, state.Phase, turnAfterFirst, state.CurrentTurnIndex)
	}

	folded, _ := state.playerByAgent(actorBefore)
	if state.Phase == PhaseShowdown {
		return // two-player fold-out resolves the hand; acceptable terminus
	}
	if folded.Status != StatusFolded {
		t.Fatalf("expected timed-out player to have folded")
	}
}

func TestTimeoutNoOpBeforeDeadline(t *testing.T) {
	state := twoPlayerTable(t)
	sys := newTestRNG(t)
	if err := StartHand(state, sys, fixedNow, "h1"); err != nil {
		t.Fatalf("StartHand: %v", err)
	}
	turnBefore := state.CurrentTurnIndex
	if err := Timeout(state, fixedNow.Add(time.Second)); err != nil {
		t.Fatalf("Timeout: %v", err)
	}
	if state.CurrentTurnIndex != turnBefore {
		t.Fatalf("Timeout fired before the action clock expired")
	}
}

func otherPlayer(state *State, agentID string) *Player {
	for _, p := range state.Players {
		if p.AgentID != agentID {
			return p
		}
	}
	return nil
}
