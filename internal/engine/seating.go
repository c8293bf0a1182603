package engine

// Join seats a new player. Seats are assigned in insertion order.
func Join(state *State, agentID, name string, chips int) error {
	if _, idx := state.playerByAgent(agentID); idx >= 0 {
		return newErr(CodeAlreadySeated, "agent %s already seated", agentID)
	}
	if len(state.Players) >= MaxPlayers {
		return newErr(CodeTableFull, "table %s is full", state.TableID)
	}
	if chips < MinBuyInBlinds*state.BigBlind {
		return newErr(CodeInsufficientBuyIn, "buy-in %d below minimum %d", chips, MinBuyInBlinds*state.BigBlind)
	}

	state.Players = append(state.Players, &Player{
		AgentID:   agentID,
		Name:      name,
		Chips:     chips,
		Status:    StatusActive,
		SeatIndex: len(state.Players),
	})
	return nil
}

// Leave removes a seated player, unless they are mid-hand.
func Leave(state *State, agentID string) error {
	player, idx := state.playerByAgent(agentID)
	if idx < 0 {
		return newErr(CodeNotSeated, "agent %s not seated at table %s", agentID, state.TableID)
	}
	inHandPhase := state.Phase != PhaseWaiting && state.Phase != PhaseShowdown
	dealtIn := player.HoleCards != nil
	if inHandPhase && dealtIn && (player.Status == StatusActive || player.Status == StatusAllIn) {
		return newErr(CodeInHandCannotLeave, "agent %s cannot leave mid-hand", agentID)
	}

	state.Players = append(state.Players[:idx], state.Players[idx+1:]...)
	resequenceSeats(state)
	if state.CurrentTurnIndex == idx {
		state.CurrentTurnIndex = -1
	} else if state.CurrentTurnIndex > idx {
		state.CurrentTurnIndex--
	}
	if state.DealerIndex > idx {
		state.DealerIndex--
	}
	return nil
}

// SitOut marks a seated player as sitting out. Only permitted between
// hands (waiting/showdown); phase alone gates the request, so a player
// whose status is still all_in from the hand just completed may sit out.
func SitOut(state *State, agentID string) error {
	player, _ := state.playerByAgent(agentID)
	if player == nil {
		return newErr(CodeNotSeated, "agent %s not seated at table %s", agentID, state.TableID)
	}
	if state.Phase != PhaseWaiting && state.Phase != PhaseShowdown {
		return newErr(CodeNotBetweenHands, "sit-out only permitted between hands")
	}
	player.Status = StatusSittingOut
	return nil
}

// SitIn resumes an agent previously sitting out. Only permitted between
// hands.
func SitIn(state *State, agentID string) error {
	player, _ := state.playerByAgent(agentID)
	if player == nil {
		return newErr(CodeNotSeated, "agent %s not seated at table %s", agentID, state.TableID)
	}
	if state.Phase != PhaseWaiting && state.Phase != PhaseShowdown {
		return newErr(CodeNotBetweenHands, "sit-in only permitted between hands")
	}
	player.Status = StatusActive
	player.SitOutCount = 0
	return nil
}

// resequenceSeats reassigns contiguous SeatIndex values 0..k-1 preserving
// current order.
func resequenceSeats(state *State) {
	for i, p := range state.Players {
		p.SeatIndex = i
	}
}
