package table

import (
	"time"

	"agentpoker/internal/engine"
	"agentpoker/pkg/poker"
)

// PublicPlayer is the per-seat information visible to everyone at a table.
type PublicPlayer struct {
	AgentID string        `json:"agentId"`
	Name    string        `json:"name"`
	Chips   int           `json:"chips"`
	Status  engine.Status `json:"status"`
	Bet     int           `json:"bet"`
}

// AgentView is what one specific agent sees: their own hole cards plus the
// shared public view of the table.
type AgentView struct {
	TableID          string           `json:"tableId"`
	Phase            engine.Phase     `json:"phase"`
	HoleCards        []cardView       `json:"holeCards"`
	CommunityCards   []cardView       `json:"communityCards"`
	Pot              int              `json:"pot"`
	CurrentBet       int              `json:"currentBet"`
	YourChips        int              `json:"yourChips"`
	YourBet          int              `json:"yourBet"`
	IsYourTurn       bool             `json:"isYourTurn"`
	TurnAgentID      string           `json:"turnAgentId,omitempty"`
	MsRemaining      int64            `json:"msRemaining"`
	Players          []PublicPlayer   `json:"players"`
	Chat             []engine.ChatMessage `json:"chat"`
	AvailableActions []engine.ActionType  `json:"availableActions"`
	LastHandResult   *engine.HandResult   `json:"lastHandResult,omitempty"`
}

// PublicView is the spectator-facing view: no one's hole cards, except at a
// contested showdown (two or more players who didn't fold), where those
// players' cards are shown.
type PublicView struct {
	TableID        string               `json:"tableId"`
	Phase          engine.Phase         `json:"phase"`
	CommunityCards []cardView           `json:"communityCards"`
	Pot            int                  `json:"pot"`
	CurrentBet     int                  `json:"currentBet"`
	Players        []PublicPlayer       `json:"players"`
	ShowdownHands  map[string][]cardView `json:"showdownHands,omitempty"`
	LastHandResult *engine.HandResult   `json:"lastHandResult,omitempty"`
}

// Summary is a lightweight per-table listing entry, used by admin/listing
// endpoints that do not need a full view.
type Summary struct {
	TableID     string       `json:"tableId"`
	Phase       engine.Phase `json:"phase"`
	PlayerCount int          `json:"playerCount"`
	MaxPlayers  int          `json:"maxPlayers"`
	Pot         int          `json:"pot"`
}

type cardView struct {
	Rank string `json:"rank"`
	Suit string `json:"suit"`
}

func toCardViews(cards []poker.Card) []cardView {
	out := make([]cardView, len(cards))
	for i, c := range cards {
		out[i] = cardView{Rank: c.Rank.String(), Suit: c.Suit.String()}
	}
	return out
}

func publicPlayers(state *engine.State) []PublicPlayer {
	out := make([]PublicPlayer, 0, len(state.Players))
	for _, p := range state.Players {
		out = append(out, PublicPlayer{
			AgentID: p.AgentID,
			Name:    p.Name,
			Chips:   p.Chips,
			Status:  p.Status,
			Bet:     p.Bet,
		})
	}
	return out
}

func recentChat(state *engine.State, limit int) []engine.ChatMessage {
	if state.HandRecord == nil {
		return nil
	}
	chat := state.HandRecord.Chat
	if len(chat) <= limit {
		return chat
	}
	return chat[len(chat)-limit:]
}

func msRemaining(state *engine.State, now time.Time) int64 {
	if state.CurrentTurnIndex < 0 {
		return 0
	}
	deadline := state.LastActionTime.Add(engine.ActionTimeout)
	remaining := deadline.Sub(now).Milliseconds()
	if remaining < 0 {
		return 0
	}
	return remaining
}

// availableActions derives the legal action list: always fold/all_in;
// check iff currentBet <= player.bet, else call; raise iff the player can
// cover more than a call.
func availableActions(state *engine.State, player *engine.Player) []engine.ActionType {
	actions := []engine.ActionType{engine.ActionFold, engine.ActionAllIn}
	if state.CurrentBet <= player.Bet {
		actions = append(actions, engine.ActionCheck)
	} else {
		actions = append(actions, engine.ActionCall)
	}
	if player.Chips > state.CurrentBet-player.Bet {
		actions = append(actions, engine.ActionRaise)
	}
	return actions
}

func buildAgentView(state *engine.State, agentID string, now time.Time) *AgentView {
	view := &AgentView{
		TableID:        state.TableID,
		Phase:          state.Phase,
		CommunityCards: toCardViews(state.CommunityCards),
		Pot:            state.Pot,
		CurrentBet:     state.CurrentBet,
		Players:        publicPlayers(state),
		Chat:           recentChat(state, 10),
		MsRemaining:    msRemaining(state, now),
		LastHandResult: state.LastHandResult,
	}

	var self *engine.Player
	for _, p := range state.Players {
		if p.AgentID == agentID {
			self = p
			break
		}
	}
	if self == nil {
		return view
	}

	view.HoleCards = toCardViews(self.HoleCards)
	view.YourChips = self.Chips
	view.YourBet = self.Bet

	if state.CurrentTurnIndex >= 0 && state.CurrentTurnIndex < len(state.Players) {
		turnPlayer := state.Players[state.CurrentTurnIndex]
		view.TurnAgentID = turnPlayer.AgentID
		if turnPlayer.AgentID == agentID {
			view.IsYourTurn = true
			if self.Status == engine.StatusActive {
				view.AvailableActions = availableActions(state, self)
			}
		}
	}
	return view
}

func buildPublicView(state *engine.State) *PublicView {
	view := &PublicView{
		TableID:        state.TableID,
		Phase:          state.Phase,
		CommunityCards: toCardViews(state.CommunityCards),
		Pot:            state.Pot,
		CurrentBet:     state.CurrentBet,
		Players:        publicPlayers(state),
		LastHandResult: state.LastHandResult,
	}
	if state.Phase == engine.PhaseShowdown {
		// Cards are tabled only at a contested showdown. A fold-out win
		// ends the hand without anyone showing.
		contenders := 0
		for _, p := range state.Players {
			if p.Status != engine.StatusFolded && len(p.HoleCards) > 0 {
				contenders++
			}
		}
		if contenders >= 2 {
			view.ShowdownHands = make(map[string][]cardView)
			for _, p := range state.Players {
				if p.Status != engine.StatusFolded && len(p.HoleCards) > 0 {
					view.ShowdownHands[p.AgentID] = toCardViews(p.HoleCards)
				}
			}
		}
	}
	return view
}

func buildSummary(state *engine.State) *Summary {
	return &Summary{
		TableID:     state.TableID,
		Phase:       state.Phase,
		PlayerCount: len(state.Players),
		MaxPlayers:  engine.MaxPlayers,
		Pot:         state.Pot,
	}
}
