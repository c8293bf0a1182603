package engine

import (
	"time"

	"agentpoker/pkg/rng"
)

// Act applies one betting decision from the player currently on turn.
func Act(state *State, agentID string, action ActionType, amount int, now time.Time) error {
	player, idx := state.playerByAgent(agentID)
	if player == nil {
		return newErr(CodeNotSeated, "agent %s not seated at table %s", agentID, state.TableID)
	}
	if !isBettingPhase(state.Phase) {
		return newErr(CodeWrongPhase, "no action accepted in phase %s", state.Phase)
	}
	if state.CurrentTurnIndex != idx {
		return newErr(CodeNotYourTurn, "it is not agent %s's turn", agentID)
	}
	if player.Status != StatusActive {
		return newErr(CodeNotActive, "agent %s is not active", agentID)
	}

	switch action {
	case ActionFold:
		player.Status = StatusFolded

	case ActionCheck:
		if player.Bet != state.CurrentBet {
			return newErr(CodeBetToMatch, "must call %d to check", state.CurrentBet-player.Bet)
		}
		player.HasActed = true

	case ActionCall:
		contribution := state.CurrentBet - player.Bet
		if contribution > player.Chips {
			contribution = player.Chips
		}
		if contribution < 0 {
			contribution = 0
		}
		contributeChips(state, player, contribution)
		player.HasActed = true
		if player.Chips == 0 {
			player.Status = StatusAllIn
		}

	case ActionRaise:
		minRaiseTo := state.CurrentBet * 2
		maxRaiseTo := player.Bet + player.Chips
		if amount > maxRaiseTo {
			return newErr(CodeInsufficientChips, "raise to %d exceeds available chips", amount)
		}
		if amount < minRaiseTo && amount < maxRaiseTo {
			return newErr(CodeBelowMinRaise, "raise to %d below minimum %d", amount, minRaiseTo)
		}
		contribution := amount - player.Bet
		contributeChips(state, player, contribution)
		player.HasActed = true
		if player.Chips == 0 {
			player.Status = StatusAllIn
		}
		if player.Bet > state.CurrentBet {
			state.CurrentBet = player.Bet
			clearHasActedExcept(state, idx)
		}

	case ActionAllIn:
		contribution := player.Chips
		contributeChips(state, player, contribution)
		player.HasActed = true
		player.Status = StatusAllIn
		if player.Bet > state.CurrentBet {
			state.CurrentBet = player.Bet
			clearHasActedExcept(state, idx)
		}

	default:
		return newErr(CodeUnknownAction, "unknown action %q", action)
	}

	state.HandRecord.Actions = append(state.HandRecord.Actions, ActionRecord{
		AgentID:   agentID,
		Action:    action,
		Amount:    amount,
		Phase:     state.Phase,
		Timestamp: now,
	})

	return roundAdvance(state, now)
}

// contributeChips moves chips from the player's stack to their bet and the
// pot, growing the pot by the exact contribution.
func contributeChips(state *State, player *Player, amount int) {
	player.Chips -= amount
	player.Bet += amount
	player.TotalBet += amount
	state.Pot += amount
}

// clearHasActedExcept clears hasActed for every other still-active player
// after a bet increase; each must act again against the new price.
func clearHasActedExcept(state *State, exceptIdx int) {
	for i, p := range state.Players {
		if i == exceptIdx {
			continue
		}
		if p.Status == StatusActive {
			p.HasActed = false
		}
	}
}

func isBettingPhase(phase Phase) bool {
	switch phase {
	case PhasePreflop, PhaseFlop, PhaseTurn, PhaseRiver:
		return true
	default:
		return false
	}
}

// roundAdvance runs after every action: resolve immediately if only one
// non-folded player remains, else advance the phase if every active
// player has matched and acted, else move the turn to the next active
// seat.
func roundAdvance(state *State, now time.Time) error {
	nonFolded := playersWithStatus(state, func(s Status) bool { return s != StatusFolded })
	if len(nonFolded) == 1 {
		return resolveFoldOut(state, nonFolded[0], now)
	}

	if allMatchedAndActed(state) {
		return advancePhase(state, now)
	}

	next := nextActingSeat(state, state.CurrentTurnIndex)
	if next < 0 {
		// no one left who can act (remaining are all-in): advance anyway.
		return advancePhase(state, now)
	}
	state.CurrentTurnIndex = next
	state.LastActionTime = now
	return nil
}

func playersWithStatus(state *State, pred func(Status) bool) []*Player {
	var out []*Player
	for _, p := range state.Players {
		if p.Status == StatusSittingOut {
			continue
		}
		if p.HoleCards == nil {
			continue // not dealt into this hand
		}
		if pred(p.Status) {
			out = append(out, p)
		}
	}
	return out
}

func allMatchedAndActed(state *State) bool {
	for _, p := range state.Players {
		if p.Status != StatusActive || p.HoleCards == nil {
			continue
		}
		if !p.HasActed || p.Bet != state.CurrentBet {
			return false
		}
	}
	return true
}

// nextActingSeat finds the next seat (strictly after from, wrapping over
// the full Players slice) dealt into the hand with status active, skipping
// folded/all_in/sitting_out and seats that joined after the deal, or -1 if
// none.
func nextActingSeat(state *State, from int) int {
	n := len(state.Players)
	if n == 0 {
		return -1
	}
	for step := 1; step <= n; step++ {
		idx := (from + step) % n
		p := state.Players[idx]
		if p.Status == StatusActive && p.HoleCards != nil {
			return idx
		}
	}
	return -1
}

// advancePhase resets per-round betting state and deals the next street.
func advancePhase(state *State, now time.Time) error {
	for _, p := range state.Players {
		if p.Status == StatusSittingOut || p.HoleCards == nil {
			continue
		}
		p.Bet = 0
		p.HasActed = p.Status != StatusActive
	}
	state.CurrentBet = 0

	var toDeal int
	switch state.Phase {
	case PhasePreflop:
		state.Phase = PhaseFlop
		toDeal = 3
	case PhaseFlop:
		state.Phase = PhaseTurn
		toDeal = 1
	case PhaseTurn:
		state.Phase = PhaseRiver
		toDeal = 1
	case PhaseRiver:
		return Resolve(state, now)
	default:
		return newErr(CodeWrongPhase, "cannot advance phase from %s", state.Phase)
	}

	if toDeal > 0 {
		dealt, remaining, err := rng.Deal(state.Deck, toDeal)
		if err != nil {
			return newErr(CodeDeckExhausted, "dealing community cards: %v", err)
		}
		state.CommunityCards = append(state.CommunityCards, dealt...)
		state.Deck = remaining
	}

	activeCount := len(playersWithStatus(state, func(s Status) bool { return s == StatusActive }))
	if activeCount < 2 {
		// Everyone left is all-in (or folded out already handled above):
		// deal through to the river, then resolve.
		return advancePhase(state, now)
	}

	// First to act postflop: the first active seat after the dealer.
	state.CurrentTurnIndex = nextActingSeat(state, state.DealerIndex)
	state.LastActionTime = now
	return nil
}
