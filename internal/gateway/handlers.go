package gateway

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"agentpoker/internal/engine"
	"agentpoker/internal/identity"
	"agentpoker/internal/metrics"
	"agentpoker/internal/sanitize"
	"agentpoker/internal/table"
)

const defaultHistoryLimit = 20

type registerRequest struct {
	Name        string `json:"name"`
	LLMProvider string `json:"llmProvider"`
	LLMModel    string `json:"llmModel"`
}

func (s *Server) handleRegister(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errValidation("malformed request body"))
		return
	}

	name, err := sanitize.Name(req.Name)
	if err != nil {
		respondError(c, errValidation(err.Error()))
		return
	}

	token, err := newAPIKey()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not generate credentials"})
		return
	}

	agent, err := s.identity.Register(c.Request.Context(), name, hashAPIKey(token), req.LLMProvider, req.LLMModel, s.startingChips(), time.Now())
	if err == identity.ErrNameTaken {
		respondError(c, errConflict("name already registered"))
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "registration failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"agentId": agent.ID,
		"apiKey":  token,
		"chips":   agent.Chips,
	})
}

func (s *Server) startingChips() int {
	if s.cfg.StartingChips > 0 {
		return s.cfg.StartingChips
	}
	return engine.StartingChips
}

func (s *Server) handleMe(c *gin.Context) {
	agent := agentFromContext(c)
	c.JSON(http.StatusOK, gin.H{
		"id":          agent.ID,
		"name":        agent.Name,
		"chips":       agent.Chips,
		"handsPlayed": agent.HandsPlayed,
		"handsWon":    agent.HandsWon,
		"currentTable": agent.CurrentTable,
		"rebuys":      agent.Rebuys,
		"rebuysLeft":  3 - agent.Rebuys,
	})
}

func (s *Server) handleRebuy(c *gin.Context) {
	agent := agentFromContext(c)
	if agent.Chips >= 100 {
		respondError(c, errPrecondition("rebuy only allowed below 100 chips"))
		return
	}
	if !identity.CanRebuy(agent) {
		respondError(c, errPrecondition("no rebuys remaining"))
		return
	}
	if s.agentInActiveHand(agent) {
		respondError(c, errPrecondition("cannot rebuy during an active hand"))
		return
	}

	topUp := s.startingChips() - agent.Chips
	updated, err := s.identity.Rebuy(c.Request.Context(), agent.ID, topUp)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "rebuy failed"})
		return
	}

	if updated.CurrentTable != "" {
		if actor := s.tables.Get(updated.CurrentTable); actor != nil {
			actor.UpdateChips(agent.ID, updated.Chips)
		}
	}

	c.JSON(http.StatusOK, gin.H{"chips": updated.Chips, "rebuysLeft": 3 - updated.Rebuys})
}

// agentInActiveHand reports whether the agent is currently dealt into a
// live betting round at their table. Rebuy is deliberately rejected in
// that window: topping up a stack that is mid-hand would corrupt pot
// accounting.
func (s *Server) agentInActiveHand(agent *identity.Agent) bool {
	if agent.CurrentTable == "" {
		return false
	}
	actor := s.tables.Get(agent.CurrentTable)
	if actor == nil {
		return false
	}
	view := actor.GetAgentView(agent.ID)
	if view == nil || view.Phase == engine.PhaseWaiting || view.Phase == engine.PhaseShowdown {
		return false
	}
	for _, p := range view.Players {
		if p.AgentID == agent.ID {
			return p.Status == engine.StatusActive || p.Status == engine.StatusAllIn
		}
	}
	return false
}

type joinRequest struct {
	TableID string `json:"tableId"`
}

func (s *Server) handleJoin(c *gin.Context) {
	agent := agentFromContext(c)
	if agent.CurrentTable != "" {
		respondError(c, errPrecondition("already seated at a table"))
		return
	}

	var req joinRequest
	_ = c.ShouldBindJSON(&req)

	tableID := req.TableID
	if tableID == "" {
		tableID = s.findJoinableTable()
	}

	actor := s.tables.GetOrCreate(tableID)
	if err := actor.Join(agent.ID, agent.Name, agent.Chips); err != nil {
		respondError(c, fromEngineError(err))
		return
	}

	if err := s.identity.SetCurrentTable(c.Request.Context(), agent.ID, tableID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "joined table but failed to record assignment"})
		return
	}

	metrics.TablesActive.Set(float64(len(s.tables.List())))
	c.JSON(http.StatusOK, actor.GetAgentView(agent.ID))
}

// findJoinableTable returns an existing table id with room, or a freshly
// generated one if every known table is full.
func (s *Server) findJoinableTable() string {
	for _, summary := range s.tables.List() {
		if summary.PlayerCount < summary.MaxPlayers {
			return summary.TableID
		}
	}
	return uuid.NewString()
}

func (s *Server) requireSeatedActor(c *gin.Context) (*table.Actor, *identity.Agent, bool) {
	agent := agentFromContext(c)
	if agent.CurrentTable == "" {
		respondError(c, errPrecondition("not at a table"))
		return nil, nil, false
	}
	actor := s.tables.Get(agent.CurrentTable)
	if actor == nil {
		respondError(c, errNotFound("table no longer exists"))
		return nil, nil, false
	}
	return actor, agent, true
}

func (s *Server) handleLeave(c *gin.Context) {
	actor, agent, ok := s.requireSeatedActor(c)
	if !ok {
		return
	}
	chips, err := actor.Leave(agent.ID)
	if err != nil {
		respondError(c, fromEngineError(err))
		return
	}
	if err := s.identity.UpdateChips(c.Request.Context(), agent.ID, chips); err != nil {
		log.Printf("identity.UpdateChips on leave agent=%s: %v", agent.ID, err)
	}
	_ = s.identity.SetCurrentTable(c.Request.Context(), agent.ID, "")
	c.JSON(http.StatusOK, gin.H{"ok": true, "chips": chips})
}

func (s *Server) handleSitOut(c *gin.Context) {
	actor, agent, ok := s.requireSeatedActor(c)
	if !ok {
		return
	}
	if err := actor.SitOut(agent.ID); err != nil {
		respondError(c, fromEngineError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) handleSitIn(c *gin.Context) {
	actor, agent, ok := s.requireSeatedActor(c)
	if !ok {
		return
	}
	if err := actor.SitIn(agent.ID); err != nil {
		respondError(c, fromEngineError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) handleState(c *gin.Context) {
	actor, agent, ok := s.requireSeatedActor(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, actor.GetAgentView(agent.ID))
}

type actRequest struct {
	Action string `json:"action"`
	Amount int    `json:"amount"`
}

func (s *Server) handleAct(c *gin.Context) {
	actor, agent, ok := s.requireSeatedActor(c)
	if !ok {
		return
	}

	var req actRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errValidation("malformed request body"))
		return
	}

	action := engine.ActionType(req.Action)
	switch action {
	case engine.ActionFold, engine.ActionCheck, engine.ActionCall, engine.ActionRaise, engine.ActionAllIn:
	default:
		respondError(c, errValidation("unknown action"))
		return
	}

	if err := actor.Act(agent.ID, action, req.Amount); err != nil {
		metrics.ActionRejected.WithLabelValues(string(engine.ErrorCode(err))).Inc()
		respondError(c, fromEngineError(err))
		return
	}
	metrics.ActionsProcessed.WithLabelValues(req.Action).Inc()

	c.JSON(http.StatusOK, gin.H{"ok": true, "state": actor.GetAgentView(agent.ID)})
}

type chatRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleChat(c *gin.Context) {
	actor, agent, ok := s.requireSeatedActor(c)
	if !ok {
		return
	}

	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errValidation("malformed request body"))
		return
	}

	cleaned, err := sanitize.Chat(req.Text)
	if errors.Is(err, sanitize.ErrFiltered) {
		respondError(c, errValidation("Message filtered"))
		return
	}
	if err != nil {
		respondError(c, errValidation(err.Error()))
		return
	}

	if err := actor.Chat(agent.ID, cleaned); err != nil {
		respondError(c, fromEngineError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) handleHistory(c *gin.Context) {
	actor, _, ok := s.requireSeatedActor(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"hands": actor.GetHandHistory(limitParam(c))})
}

func (s *Server) handleSpectate(c *gin.Context) {
	actor := s.tables.Get(c.Param("id"))
	if actor == nil {
		respondError(c, errNotFound("unknown table"))
		return
	}
	c.JSON(http.StatusOK, actor.GetPublicView())
}

func (s *Server) handlePublicHistory(c *gin.Context) {
	actor := s.tables.Get(c.Param("id"))
	if actor == nil {
		respondError(c, errNotFound("unknown table"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"hands": actor.GetHandHistory(limitParam(c))})
}

func (s *Server) handleLeaderboard(c *gin.Context) {
	agents, err := s.identity.Leaderboard(c.Request.Context(), limitParam(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load leaderboard"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"agents": agents})
}

func (s *Server) handleStats(c *gin.Context) {
	summaries := s.tables.List()
	seated := 0
	inHand := 0
	for _, sm := range summaries {
		seated += sm.PlayerCount
		if sm.Phase != engine.PhaseWaiting {
			inHand++
		}
	}
	metrics.PlayersSeated.Set(float64(seated))
	body := gin.H{
		"tables":        len(summaries),
		"tablesInHand":  inHand,
		"playersSeated": seated,
		"tableList":     summaries,
	}
	if s.collusion != nil {
		flagged := s.collusion.Watchlist()
		metrics.CollusionPairsFlagged.Set(float64(len(flagged)))
		body["flaggedPairs"] = len(flagged)
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) handleCollusion(c *gin.Context) {
	if s.collusion == nil {
		c.JSON(http.StatusOK, gin.H{"flagged": []any{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"flagged": s.collusion.Watchlist()})
}

func (s *Server) handleReset(c *gin.Context) {
	tableID := c.Param("id")
	if s.tables.Get(tableID) == nil {
		respondError(c, errNotFound("unknown table"))
		return
	}
	s.tables.Reset(tableID)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func limitParam(c *gin.Context) int {
	raw := c.Query("limit")
	if raw == "" {
		return defaultHistoryLimit
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return defaultHistoryLimit
	}
	return n
}
