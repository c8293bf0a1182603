package table

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"agentpoker/internal/engine"
	"agentpoker/pkg/poker"
	"agentpoker/pkg/rng"
)

func dealtTwoPlayerState(t *testing.T) *engine.State {
	t.Helper()
	state := engine.NewState("view-test")
	if err := engine.Join(state, "a1", "Alice", 1000); err != nil {
		t.Fatalf("join a1: %v", err)
	}
	if err := engine.Join(state, "a2", "Bob", 1000); err != nil {
		t.Fatalf("join a2: %v", err)
	}
	sys, err := rng.NewSystemWithSeed([]byte("views-test"))
	if err != nil {
		t.Fatalf("rng.NewSystemWithSeed: %v", err)
	}
	if err := engine.StartHand(state, sys, time.Now(), "h1"); err != nil {
		t.Fatalf("StartHand: %v", err)
	}
	return state
}

// No agent's view may carry another agent's hole cards outside showdown,
// not even in a field a lax serializer might leak: the whole marshalled
// view must be free of the opponent's cards.
func TestAgentViewNeverLeaksOpponentHoleCards(t *testing.T) {
	state := dealtTwoPlayerState(t)
	now := time.Now()

	view := buildAgentView(state, "a1", now)
	blob, err := json.Marshal(view)
	if err != nil {
		t.Fatalf("marshal view: %v", err)
	}

	opponent, _ := playerByID(state, "a2")
	for _, c := range opponent.HoleCards {
		needle := `"rank":"` + c.Rank.String() + `","suit":"` + c.Suit.String() + `"`
		if countOccurrences(string(blob), needle) > countInOwnCards(view, c) {
			t.Fatalf("opponent card %v appears in a1's serialized view: %s", c, blob)
		}
	}
	if len(view.HoleCards) != 2 {
		t.Fatalf("agent must see their own two hole cards, got %d", len(view.HoleCards))
	}
}

func TestPublicViewHidesHoleCardsUntilShowdown(t *testing.T) {
	state := engine.NewState("showdown-view")
	for _, id := range []string{"a1", "a2", "a3"} {
		if err := engine.Join(state, id, id, 1000); err != nil {
			t.Fatalf("join %s: %v", id, err)
		}
	}
	sys, err := rng.NewSystemWithSeed([]byte("showdown-view"))
	if err != nil {
		t.Fatalf("rng.NewSystemWithSeed: %v", err)
	}
	if err := engine.StartHand(state, sys, time.Now(), "h1"); err != nil {
		t.Fatalf("StartHand: %v", err)
	}

	view := buildPublicView(state)
	if view.ShowdownHands != nil {
		t.Fatalf("no hole cards may be public before showdown")
	}

	state.Phase = engine.PhaseShowdown
	state.Players[0].Status = engine.StatusFolded
	view = buildPublicView(state)
	if _, ok := view.ShowdownHands[state.Players[0].AgentID]; ok {
		t.Fatalf("a folded player's cards must stay hidden at showdown")
	}
	if _, ok := view.ShowdownHands[state.Players[1].AgentID]; !ok {
		t.Fatalf("a contender's cards must be shown at a contested showdown")
	}
}

func TestPublicViewShowsNothingOnFoldOutWin(t *testing.T) {
	state := dealtTwoPlayerState(t)
	onTurn := state.Players[state.CurrentTurnIndex]
	if err := engine.Act(state, onTurn.AgentID, engine.ActionFold, 0, time.Now()); err != nil {
		t.Fatalf("Act fold: %v", err)
	}
	if state.Phase != engine.PhaseShowdown {
		t.Fatalf("expected showdown after fold-out, got %s", state.Phase)
	}
	if view := buildPublicView(state); view.ShowdownHands != nil {
		t.Fatalf("fold-out win must not table anyone's cards: %v", view.ShowdownHands)
	}
}

func TestAvailableActionsDerivation(t *testing.T) {
	state := dealtTwoPlayerState(t)
	onTurn := state.Players[state.CurrentTurnIndex]

	view := buildAgentView(state, onTurn.AgentID, time.Now())
	if !view.IsYourTurn {
		t.Fatalf("expected isYourTurn for the player on turn")
	}
	if !hasAction(view.AvailableActions, engine.ActionFold) || !hasAction(view.AvailableActions, engine.ActionAllIn) {
		t.Fatalf("fold and all_in must always be available, got %v", view.AvailableActions)
	}
	if onTurn.Bet < state.CurrentBet {
		if !hasAction(view.AvailableActions, engine.ActionCall) || hasAction(view.AvailableActions, engine.ActionCheck) {
			t.Fatalf("facing a bet: expected call (not check), got %v", view.AvailableActions)
		}
	}
	if !hasAction(view.AvailableActions, engine.ActionRaise) {
		t.Fatalf("a deep stack facing the big blind must be able to raise, got %v", view.AvailableActions)
	}

	offTurn := otherAgent(state, onTurn.AgentID)
	view = buildAgentView(state, offTurn, time.Now())
	if view.IsYourTurn || len(view.AvailableActions) != 0 {
		t.Fatalf("no actions may be offered off turn, got %v", view.AvailableActions)
	}
}

func TestMsRemainingCountsDownFromActionClock(t *testing.T) {
	state := dealtTwoPlayerState(t)
	state.LastActionTime = time.Now().Add(-5 * time.Second)

	view := buildAgentView(state, "a1", time.Now())
	if view.MsRemaining <= 0 || view.MsRemaining > (engine.ActionTimeout - 4*time.Second).Milliseconds() {
		t.Fatalf("unexpected msRemaining: %d", view.MsRemaining)
	}
}

func playerByID(state *engine.State, agentID string) (*engine.Player, int) {
	for i, p := range state.Players {
		if p.AgentID == agentID {
			return p, i
		}
	}
	return nil, -1
}

func otherAgent(state *engine.State, agentID string) string {
	for _, p := range state.Players {
		if p.AgentID != agentID {
			return p.AgentID
		}
	}
	return ""
}

func hasAction(actions []engine.ActionType, want engine.ActionType) bool {
	for _, a := range actions {
		if a == want {
			return true
		}
	}
	return false
}

func countOccurrences(s, sub string) int {
	return strings.Count(s, sub)
}

func countInOwnCards(view *AgentView, c poker.Card) int {
	n := 0
	for _, own := range view.HoleCards {
		if own.Rank == c.Rank.String() && own.Suit == c.Suit.String() {
			n++
		}
	}
	for _, cc := range view.CommunityCards {
		if cc.Rank == c.Rank.String() && cc.Suit == c.Suit.String() {
			n++
		}
	}
	return n
}
