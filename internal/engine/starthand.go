package engine

import (
	"time"

	"agentpoker/pkg/poker"
	"agentpoker/pkg/rng"
)

// StartHand deals a new hand into state. handID must be a fresh,
// caller-supplied identifier (the table actor mints one per hand); now is
// the hand's start timestamp.
//
// Precondition: phase is waiting or showdown, and at least two players
// have chips >= bigBlind and are not sitting out.
func StartHand(state *State, rngSys *rng.System, now time.Time, handID string) error {
	if state.Phase != PhaseWaiting && state.Phase != PhaseShowdown {
		return newErr(CodeCannotStartHand, "cannot start a hand from phase %s", state.Phase)
	}

	eligible := 0
	for _, p := range state.Players {
		if p.Status != StatusSittingOut && p.Chips >= state.BigBlind {
			eligible++
		}
	}
	if eligible < 2 {
		return newErr(CodeCannotStartHand, "fewer than two eligible players")
	}

	// 1. Compute blinds from the average stack of all seated players.
	state.SmallBlind, state.BigBlind = computeBlinds(state.Players)

	// 2 & 3. Evict undercapitalised and long-absent sitting-out players.
	kept := state.Players[:0:0]
	for _, p := range state.Players {
		if p.Status != StatusSittingOut && p.Chips < state.BigBlind {
			continue // evicted: short-stacked and not sitting out
		}
		if p.Status == StatusSittingOut && p.SitOutCount >= SitOutEvictionLimit {
			continue // evicted: missed too many hands
		}
		kept = append(kept, p)
	}
	state.Players = kept

	// 4. Reorder dealt-in players to contiguous seatIndex = 0..k-1,
	// preserving previous relative order; sitting-out players follow,
	// also contiguous and order-preserving. Indices used below (dealer,
	// blinds, turn) are indices into state.Players post-reorder.
	dealtIn := make([]*Player, 0, len(state.Players))
	sittingOut := make([]*Player, 0, len(state.Players))
	for _, p := range state.Players {
		if p.Status == StatusSittingOut {
			p.SitOutCount++
			sittingOut = append(sittingOut, p)
			continue
		}
		p.Status = StatusActive
		p.Bet = 0
		p.TotalBet = 0
		p.HasActed = false
		p.HoleCards = nil
		dealtIn = append(dealtIn, p)
	}
	state.Players = append(dealtIn, sittingOut...)
	resequenceSeats(state)
	k := len(dealtIn)
	if k < 2 {
		// Blind recomputation can evict a player the eligibility check
		// above still counted; without two dealt-in players there is no
		// hand to play.
		state.Phase = PhaseWaiting
		state.CurrentTurnIndex = -1
		return newErr(CodeCannotStartHand, "fewer than two players remain after evictions")
	}

	// 5. Fresh shuffled deck; deal two hole cards per dealt-in player.
	deck := rng.NewDeck()
	rng.Shuffle(deck, rngSys)
	for _, p := range dealtIn {
		hole, remaining, err := rng.Deal(deck, 2)
		if err != nil {
			return newErr(CodeDeckExhausted, "dealing hole cards: %v", err)
		}
		p.HoleCards = hole
		deck = remaining
	}
	state.Deck = deck
	state.CommunityCards = nil

	// Resolve the persistent dealer (tracked by agent id across hands,
	// since seats are renumbered every StartHand) to an index in the
	// freshly reordered dealt-in block. If the prior dealer is no longer
	// dealt in this hand, the button falls to the first dealt-in seat.
	state.DealerIndex = 0
	for i, p := range dealtIn {
		if p.AgentID == state.DealerAgentID {
			state.DealerIndex = i
			break
		}
	}

	// 6. Post blinds.
	var sbIdx, bbIdx int
	if k == 2 {
		sbIdx = state.DealerIndex
		bbIdx = (state.DealerIndex + 1) % k
	} else {
		sbIdx = (state.DealerIndex + 1) % k
		bbIdx = (state.DealerIndex + 2) % k
	}
	postBlind(dealtIn[sbIdx], state.SmallBlind)
	postBlind(dealtIn[bbIdx], state.BigBlind)
	state.Pot = dealtIn[sbIdx].Bet + dealtIn[bbIdx].Bet
	state.CurrentBet = state.BigBlind
	state.DealerAgentID = dealtIn[state.DealerIndex].AgentID

	// 7. First to act preflop: seat after the big blind.
	state.CurrentTurnIndex = nextActiveSeat(dealtIn, bbIdx)
	state.Phase = PhasePreflop
	state.HandID = handID
	state.LastActionTime = now
	state.LastHandResult = nil

	startingStacks := make([]StartingStack, 0, k)
	holeCards := make(map[string][]poker.Card, k)
	for _, p := range dealtIn {
		startingStacks = append(startingStacks, StartingStack{AgentID: p.AgentID, Chips: p.Chips + p.Bet})
		holeCards[p.AgentID] = append([]poker.Card(nil), p.HoleCards...)
	}
	// Chat posted while waiting sits on a placeholder record (no hand id);
	// carry it into the new hand's log.
	var pendingChat []ChatMessage
	if state.HandRecord != nil && state.HandRecord.HandID == "" {
		pendingChat = state.HandRecord.Chat
	}
	state.HandRecord = &HandRecord{
		HandID:         handID,
		TableID:        state.TableID,
		StartingStacks: startingStacks,
		HoleCards:      holeCards,
		Chat:           pendingChat,
		StartedAt:      now,
	}

	if state.CurrentTurnIndex < 0 {
		// Every dealt-in player is already all-in from blind posting
		// (e.g. heads-up where both stacks are shorter than the blinds):
		// no action is possible, so run the board out immediately.
		return advancePhase(state, now)
	}

	return nil
}

// computeBlinds returns smallBlind = max(10, floor(avgStack/100)) and
// bigBlind = 2*smallBlind, averaged over all seated players' chips.
func computeBlinds(players []*Player) (small, big int) {
	if len(players) == 0 {
		return DefaultSmallBlind, DefaultBigBlind
	}
	total := 0
	for _, p := range players {
		total += p.Chips
	}
	avg := total / len(players)
	small = avg / 100
	if small < 10 {
		small = 10
	}
	return small, small * 2
}

// postBlind contributes min(blind, chips) from the player, marking them
// all_in if their stack falls short of the full blind.
func postBlind(p *Player, blind int) {
	contribution := blind
	if p.Chips < contribution {
		contribution = p.Chips
	}
	p.Chips -= contribution
	p.Bet = contribution
	p.TotalBet = contribution
	if p.Chips == 0 {
		p.Status = StatusAllIn
	}
}

// nextActiveSeat returns the index within players of the next seat with
// status active, strictly after from (wrapping), or -1 if none qualify.
func nextActiveSeat(players []*Player, from int) int {
	n := len(players)
	for step := 1; step <= n; step++ {
		idx := (from + step) % n
		if players[idx].Status == StatusActive {
			return idx
		}
	}
	return -1
}
