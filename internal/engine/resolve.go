package engine

import (
	"sort"
	"time"

	"agentpoker/pkg/poker"
)

// resolveFoldOut awards the pot directly to the sole non-folded player,
// skipping hand evaluation entirely.
func resolveFoldOut(state *State, winner *Player, now time.Time) error {
	winner.Chips += state.Pot
	awarded := state.Pot

	state.Phase = PhaseShowdown
	state.CurrentTurnIndex = -1
	rotateDealer(state)

	state.LastHandResult = &HandResult{
		WinnerNames: []string{winner.Name},
		HandName:    "Last player standing",
		PotWon:      awarded,
		HandID:      state.HandID,
	}
	if state.HandRecord != nil {
		state.HandRecord.WinnerIDs = []string{winner.AgentID}
		state.HandRecord.WinnerNames = []string{winner.Name}
		state.HandRecord.WinningHand = "Last player standing"
		state.HandRecord.Pot = state.Pot
		state.HandRecord.CommunityCards = append([]poker.Card(nil), state.CommunityCards...)
		state.HandRecord.EndedAt = now
		recordEndingStacks(state)
	}
	state.Pot = 0
	return nil
}

// potLayer is one side-pot layer: the chip amount in the layer and the
// players eligible to win it.
type potLayer struct {
	amount    int
	eligible  []*Player
}

// Resolve performs side-pot construction and award at showdown.
func Resolve(state *State, now time.Time) error {
	participants := playersWithStatus(state, func(Status) bool { return true })

	levels := distinctPositiveLevels(participants)
	layers := buildLayers(participants, levels)

	totalAwarded := 0
	for _, layer := range layers {
		if layer.amount == 0 || len(layer.eligible) == 0 {
			continue
		}
		winners := bestHands(state, layer.eligible)
		share := layer.amount / len(winners)
		remainder := layer.amount % len(winners)
		for i, w := range winners {
			amt := share
			if i == 0 {
				amt += remainder // earliest seat among winners takes the remainder
			}
			w.Chips += amt
			totalAwarded += amt
		}
	}

	if totalAwarded != state.Pot {
		// Defensive: side-pot construction must exactly exhaust the pot.
		// Any shortfall or excess is a programming error in layer
		// construction; surface it rather than silently drifting chips.
		return newErr(CodePotMismatch, "side-pot award %d does not equal pot %d", totalAwarded, state.Pot)
	}

	winnerNames, winnerIDs, handDesc := summarizeWinners(state, layers)

	state.Phase = PhaseShowdown
	state.CurrentTurnIndex = -1
	rotateDealer(state)

	state.LastHandResult = &HandResult{
		WinnerNames: winnerNames,
		HandName:    handDesc,
		PotWon:      state.Pot,
		HandID:      state.HandID,
	}
	if state.HandRecord != nil {
		state.HandRecord.WinnerIDs = winnerIDs
		state.HandRecord.WinnerNames = winnerNames
		state.HandRecord.WinningHand = handDesc
		state.HandRecord.Pot = state.Pot
		state.HandRecord.CommunityCards = append([]poker.Card(nil), state.CommunityCards...)
		state.HandRecord.EndedAt = now
		recordEndingStacks(state)
	}
	state.Pot = 0
	return nil
}

// recordEndingStacks snapshots each participant's post-award chip count
// into the hand record, so downstream consumers (identity-store write-back,
// chip-conservation checks) read final balances instead of re-deriving them
// from the action log.
func recordEndingStacks(state *State) {
	record := state.HandRecord
	record.EndingStacks = record.EndingStacks[:0]
	for _, s := range record.StartingStacks {
		if p, _ := state.playerByAgent(s.AgentID); p != nil {
			record.EndingStacks = append(record.EndingStacks, StartingStack{AgentID: p.AgentID, Chips: p.Chips})
		}
	}
}

func distinctPositiveLevels(players []*Player) []int {
	seen := make(map[int]bool)
	for _, p := range players {
		if p.TotalBet > 0 {
			seen[p.TotalBet] = true
		}
	}
	levels := make([]int, 0, len(seen))
	for l := range seen {
		levels = append(levels, l)
	}
	sort.Ints(levels)
	return levels
}

func buildLayers(players []*Player, levels []int) []potLayer {
	layers := make([]potLayer, 0, len(levels))
	prev := 0
	for _, level := range levels {
		count := 0
		var eligible []*Player
		for _, p := range players {
			if p.TotalBet >= level {
				count++
				if p.Status == StatusActive || p.Status == StatusAllIn {
					eligible = append(eligible, p)
				}
			}
		}
		layers = append(layers, potLayer{
			amount:   (level - prev) * count,
			eligible: eligible,
		})
		prev = level
	}
	return layers
}

// bestHands returns the subset of eligible players holding the strongest
// hand (possibly a tie → a split), in ascending seat order so the caller
// can give remainder chips to the earliest seat.
func bestHands(state *State, eligible []*Player) []*Player {
	type scored struct {
		player *Player
		hand   *poker.EvaluatedHand
	}
	scoredPlayers := make([]scored, 0, len(eligible))
	for _, p := range eligible {
		cards := append(append([]poker.Card(nil), p.HoleCards...), state.CommunityCards...)
		hand, err := poker.BestOf(cards)
		if err != nil {
			continue
		}
		scoredPlayers = append(scoredPlayers, scored{player: p, hand: hand})
	}
	sort.SliceStable(scoredPlayers, func(i, j int) bool {
		return scoredPlayers[i].player.SeatIndex < scoredPlayers[j].player.SeatIndex
	})

	var best *poker.EvaluatedHand
	for _, sp := range scoredPlayers {
		if best == nil || poker.CompareHands(sp.hand, best) > 0 {
			best = sp.hand
		}
	}
	var winners []*Player
	for _, sp := range scoredPlayers {
		if poker.CompareHands(sp.hand, best) == 0 {
			winners = append(winners, sp.player)
		}
	}
	return winners
}

func summarizeWinners(state *State, layers []potLayer) (names []string, ids []string, handDesc string) {
	// The hand description shown is the top-level (last) layer's winning
	// hand class, which covers the common single-pot case and the usual
	// "who actually won" read for a multi-layer side-pot hand.
	seen := make(map[string]bool)
	for _, layer := range layers {
		if len(layer.eligible) == 0 {
			continue
		}
		winners := bestHands(state, layer.eligible)
		for _, w := range winners {
			if !seen[w.AgentID] {
				seen[w.AgentID] = true
				names = append(names, w.Name)
				ids = append(ids, w.AgentID)
			}
		}
		if len(winners) > 0 {
			cards := append(append([]poker.Card(nil), winners[0].HoleCards...), state.CommunityCards...)
			if hand, err := poker.BestOf(cards); err == nil {
				handDesc = hand.Rank.String()
			}
		}
	}
	if handDesc == "" {
		handDesc = "High Card"
	}
	return names, ids, handDesc
}

// rotateDealer advances the dealer button by one seat over the set of
// still-seated, non-sitting-out players.
func rotateDealer(state *State) {
	rotation := playersWithStatusIncludingHoleless(state)
	if len(rotation) == 0 {
		return
	}
	curIdx := -1
	for i, p := range rotation {
		if p.AgentID == state.DealerAgentID {
			curIdx = i
			break
		}
	}
	next := (curIdx + 1) % len(rotation)
	state.DealerAgentID = rotation[next].AgentID
}

// playersWithStatusIncludingHoleless returns all seated players who are
// not sitting out, regardless of whether they were dealt into the hand
// just completed (used for dealer rotation, which must include players
// who sat down between hands).
func playersWithStatusIncludingHoleless(state *State) []*Player {
	var out []*Player
	for _, p := range state.Players {
		if p.Status != StatusSittingOut {
			out = append(out, p)
		}
	}
	return out
}

// Timeout synthesises a fold for the player on turn if the action clock
// has expired. It is idempotent: once the fold has been applied, state's
// own transition (turn moves on, or hand resolves) means a repeated call
// with the same or later now finds nothing further to do.
func Timeout(state *State, now time.Time) error {
	if !isBettingPhase(state.Phase) {
		return nil
	}
	if state.CurrentTurnIndex < 0 {
		return nil
	}
	if now.Sub(state.LastActionTime) < ActionTimeout {
		return nil
	}
	player := state.Players[state.CurrentTurnIndex]
	return Act(state, player.AgentID, ActionFold, 0, now)
}
