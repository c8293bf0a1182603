// Package table implements the single-writer table actor: one goroutine per
// table, serializing every mutating and read operation through a single
// inbox channel so the engine's state never observes two concurrent
// mutations, and so a read always reflects every previously committed write.
package table

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"agentpoker/internal/engine"
	"agentpoker/internal/metrics"
	"agentpoker/pkg/rng"
)

const handHistoryCap = 50

// Persister is implemented by whatever backs table-state snapshots. The
// actor calls it after every committed mutation; a nil Persister is a valid
// no-op configuration for tests.
type Persister interface {
	SaveSnapshot(ctx context.Context, tableID string, state *engine.State) error
}

// HandCommitHook is invoked once per completed hand, after the actor commits
// the resolving transition, carrying the finished HandRecord. The gateway
// wires this to the identity store, hand archive, analytics sink, and
// collusion accumulator.
type HandCommitHook func(tableID string, record *engine.HandRecord)

// EvictHook is invoked when a hand start removes a seated agent (busted
// stack, or sitting out past the eviction limit), carrying their final
// chip count.
type EvictHook func(agentID string, chips int)

// ShuffleAuditor is optionally implemented by a Persister that can durably
// record shuffle audit events alongside snapshots.
type ShuffleAuditor interface {
	StoreShuffleAudit(ctx context.Context, event *rng.ShuffleAuditEvent) error
}

type opKind int

const (
	opJoin opKind = iota
	opLeave
	opSitOut
	opSitIn
	opAct
	opChat
	opGetAgentView
	opGetPublicView
	opGetSummary
	opGetHandHistory
	opGetLastHandRecord
	opUpdateChips
	opActionTimeout
	opStartHandCooldown
)

type request struct {
	kind    opKind
	agentID string
	name    string
	chips   int
	action  engine.ActionType
	amount  int
	text    string
	limit   int
	now     time.Time
	reply   chan response
}

type response struct {
	err        error
	chips      int
	agentView  *AgentView
	publicView *PublicView
	summary    *Summary
	history    []*engine.HandRecord
	handRecord *engine.HandRecord
}

// Actor owns one table's state and is the only goroutine that ever mutates
// it.
type Actor struct {
	tableID   string
	state     *engine.State
	rngSys    *rng.System
	persist   Persister
	onHandEnd HandCommitHook
	onEvict   EvictHook

	history []*engine.HandRecord

	inbox chan request
	stop  chan struct{}
	wg    sync.WaitGroup

	actionTimer   *time.Timer
	cooldownTimer *time.Timer
}

// NewActor constructs an actor for tableID in the waiting phase. persist and
// onHandEnd may be nil.
func NewActor(tableID string, rngSys *rng.System, persist Persister, onHandEnd HandCommitHook) *Actor {
	a := &Actor{
		tableID:   tableID,
		state:     engine.NewState(tableID),
		rngSys:    rngSys,
		persist:   persist,
		onHandEnd: onHandEnd,
		inbox:     make(chan request, 32),
		stop:      make(chan struct{}),
	}
	a.actionTimer = time.NewTimer(time.Hour)
	a.actionTimer.Stop()
	a.cooldownTimer = time.NewTimer(time.Hour)
	a.cooldownTimer.Stop()
	return a
}

// OnEvict sets the eviction callback. Must be called before Start.
func (a *Actor) OnEvict(fn EvictHook) { a.onEvict = fn }

// restoreState seeds the actor from a persisted snapshot. Must be called
// before Start.
func (a *Actor) restoreState(state *engine.State) {
	if state != nil {
		a.state = state
	}
}

// Start launches the actor's single goroutine. Call Stop to shut it down.
func (a *Actor) Start(ctx context.Context) {
	a.wg.Add(1)
	go a.run(ctx)
}

// Stop halts the actor's goroutine and waits for it to exit.
func (a *Actor) Stop() {
	close(a.stop)
	a.wg.Wait()
}

func (a *Actor) run(ctx context.Context) {
	defer a.wg.Done()
	defer a.actionTimer.Stop()
	defer a.cooldownTimer.Stop()

	// A restored snapshot may already be mid-hand or in cooldown; pick the
	// pending deadline back up before the first message arrives.
	a.rearmTimers()

	for {
		select {
		case <-ctx.Done():
			return
		case <-a.stop:
			return
		case req := <-a.inbox:
			resp := a.handle(req)
			if req.reply != nil {
				req.reply <- resp
			}
			a.rearmTimers()
		case now := <-a.actionTimer.C:
			a.handle(request{kind: opActionTimeout, now: now})
			a.rearmTimers()
		case now := <-a.cooldownTimer.C:
			a.handle(request{kind: opStartHandCooldown, now: now})
			a.rearmTimers()
		}
	}
}

// rearmTimers sets the action-timeout and showdown-cooldown deferred timers
// to reflect state after the last processed message.
func (a *Actor) rearmTimers() {
	stopAndDrain(a.actionTimer)
	stopAndDrain(a.cooldownTimer)

	switch {
	case isBettingPhase(a.state.Phase) && a.state.CurrentTurnIndex >= 0:
		deadline := a.state.LastActionTime.Add(engine.ActionTimeout)
		a.actionTimer.Reset(time.Until(deadline))
	case a.state.Phase == engine.PhaseShowdown:
		var base time.Time
		if a.state.HandRecord != nil && !a.state.HandRecord.EndedAt.IsZero() {
			base = a.state.HandRecord.EndedAt
		} else {
			base = time.Now()
		}
		a.cooldownTimer.Reset(time.Until(base.Add(engine.ShowdownCooldown)))
	}
}

// stopAndDrain stops t and drains any already-fired value so a later
// Reset cannot be followed by a stale fire event still sitting in the
// channel (the run loop is the timer's only reader, so this is race-free).
func stopAndDrain(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}

func isBettingPhase(phase engine.Phase) bool {
	switch phase {
	case engine.PhasePreflop, engine.PhaseFlop, engine.PhaseTurn, engine.PhaseRiver:
		return true
	default:
		return false
	}
}

// handle processes exactly one request against the actor's state. It is
// only ever called from the actor's own goroutine (run), which is what
// makes this the single-writer boundary.
func (a *Actor) handle(req request) response {
	var resp response

	switch req.kind {
	case opJoin:
		resp.err = engine.Join(a.state, req.agentID, req.name, req.chips)
		a.maybeStartHand(req.now)

	case opLeave:
		if p, idx := a.playerByAgent(req.agentID); idx >= 0 {
			resp.chips = p.Chips
		}
		resp.err = engine.Leave(a.state, req.agentID)

	case opSitOut:
		resp.err = engine.SitOut(a.state, req.agentID)

	case opSitIn:
		resp.err = engine.SitIn(a.state, req.agentID)
		a.maybeStartHand(req.now)

	case opAct:
		wasShowdown := a.state.Phase == engine.PhaseShowdown
		resp.err = engine.Act(a.state, req.agentID, req.action, req.amount, req.now)
		if resp.err == nil {
			a.afterPossibleHandEnd(wasShowdown)
		}

	case opChat:
		resp.err = a.chat(req.agentID, req.text, req.now)

	case opGetAgentView:
		resp.agentView = buildAgentView(a.state, req.agentID, req.now)

	case opGetPublicView:
		resp.publicView = buildPublicView(a.state)

	case opGetSummary:
		resp.summary = buildSummary(a.state)

	case opGetHandHistory:
		resp.history = a.recentHistory(req.limit)

	case opGetLastHandRecord:
		if len(a.history) > 0 {
			resp.handRecord = a.history[len(a.history)-1]
		}

	case opUpdateChips:
		if p, idx := a.playerByAgent(req.agentID); idx >= 0 {
			p.Chips = req.chips
		}

	case opActionTimeout:
		wasShowdown := a.state.Phase == engine.PhaseShowdown
		expired := isBettingPhase(a.state.Phase) && a.state.CurrentTurnIndex >= 0 &&
			req.now.Sub(a.state.LastActionTime) >= engine.ActionTimeout
		resp.err = engine.Timeout(a.state, req.now)
		if resp.err == nil {
			if expired {
				metrics.ActionTimeouts.WithLabelValues(a.tableID).Inc()
			}
			a.afterPossibleHandEnd(wasShowdown)
		}

	case opStartHandCooldown:
		a.maybeStartHand(req.now)
	}

	if a.persist != nil {
		_ = a.persist.SaveSnapshot(context.Background(), a.tableID, a.state)
	}
	return resp
}

// maybeStartHand starts a new hand if the table is in waiting phase, or in
// showdown past its cooldown, and enough players are ready.
func (a *Actor) maybeStartHand(now time.Time) {
	if now.IsZero() {
		now = time.Now()
	}
	if a.state.Phase == engine.PhaseShowdown {
		if a.state.HandRecord == nil || now.Before(a.state.HandRecord.EndedAt.Add(engine.ShowdownCooldown)) {
			return
		}
	} else if a.state.Phase != engine.PhaseWaiting {
		return
	}

	eligible := 0
	for _, p := range a.state.Players {
		if p.Status != engine.StatusSittingOut && p.Chips >= a.state.BigBlind {
			eligible++
		}
	}
	if eligible < 2 {
		return
	}

	seatedBefore := make(map[string]int, len(a.state.Players))
	for _, p := range a.state.Players {
		seatedBefore[p.AgentID] = p.Chips
	}

	// Hand ids are timestamped so they stay unique across actor restarts
	// (the archive's insert-or-ignore keys on them).
	handID := fmt.Sprintf("%s-%d", a.tableID, now.UnixNano())
	err := engine.StartHand(a.state, a.rngSys, now, handID)

	// Evictions happen inside StartHand whether or not a hand ultimately
	// begins; release every removed player either way.
	if a.onEvict != nil {
		for _, p := range a.state.Players {
			delete(seatedBefore, p.AgentID)
		}
		for agentID, chips := range seatedBefore {
			a.onEvict(agentID, chips)
		}
	}

	if err != nil {
		log.Printf("table %s: start hand: %v", a.tableID, err)
		return
	}

	audit := a.rngSys.AuditEntry(a.tableID, handID)
	log.Printf("shuffle table=%s hand=%s alg=%s seed_hash=%s", audit.TableID, audit.HandID, audit.Algorithm, audit.SeedHash)
	if auditor, ok := a.persist.(ShuffleAuditor); ok {
		if err := auditor.StoreShuffleAudit(context.Background(), audit); err != nil {
			log.Printf("table %s: store shuffle audit: %v", a.tableID, err)
		}
	}
}

// afterPossibleHandEnd records the just-completed hand into local history
// and fires the commit hook, once, exactly when the transition just taken
// moved the table into showdown.
func (a *Actor) afterPossibleHandEnd(wasShowdown bool) {
	if wasShowdown || a.state.Phase != engine.PhaseShowdown || a.state.HandRecord == nil {
		return
	}
	record := a.state.HandRecord
	a.history = append(a.history, record)
	if len(a.history) > handHistoryCap {
		a.history = a.history[len(a.history)-handHistoryCap:]
	}
	if a.onHandEnd != nil {
		a.onHandEnd(a.tableID, record)
	}
}

func (a *Actor) recentHistory(limit int) []*engine.HandRecord {
	if limit <= 0 || limit > len(a.history) {
		limit = len(a.history)
	}
	return append([]*engine.HandRecord(nil), a.history[len(a.history)-limit:]...)
}

func (a *Actor) playerByAgent(agentID string) (*engine.Player, int) {
	for i, p := range a.state.Players {
		if p.AgentID == agentID {
			return p, i
		}
	}
	return nil, -1
}

func (a *Actor) chat(agentID, text string, now time.Time) error {
	player, _ := a.playerByAgent(agentID)
	if player == nil {
		return &engine.Error{Code: engine.CodeNotSeated, Message: fmt.Sprintf("agent %s not seated", agentID)}
	}
	if a.state.HandRecord == nil {
		a.state.HandRecord = &engine.HandRecord{TableID: a.tableID}
	}
	a.state.HandRecord.Chat = append(a.state.HandRecord.Chat, engine.ChatMessage{
		AgentID:   agentID,
		Name:      player.Name,
		Text:      text,
		Timestamp: now,
	})
	return nil
}

func (a *Actor) send(req request) response {
	req.reply = make(chan response, 1)
	select {
	case a.inbox <- req:
	case <-a.stop:
		return response{err: fmt.Errorf("table %s: actor stopped", a.tableID)}
	}
	return <-req.reply
}

// Join seats agentID at the table.
func (a *Actor) Join(agentID, name string, chips int) error {
	return a.send(request{kind: opJoin, agentID: agentID, name: name, chips: chips, now: time.Now()}).err
}

// Leave removes agentID from the table, if not mid-hand. On success it
// returns the chip count the agent takes with them, for the caller to
// write back to the identity store.
func (a *Actor) Leave(agentID string) (int, error) {
	resp := a.send(request{kind: opLeave, agentID: agentID, now: time.Now()})
	return resp.chips, resp.err
}

// SitOut marks agentID as sitting out.
func (a *Actor) SitOut(agentID string) error {
	return a.send(request{kind: opSitOut, agentID: agentID, now: time.Now()}).err
}

// SitIn resumes agentID from sitting out.
func (a *Actor) SitIn(agentID string) error {
	return a.send(request{kind: opSitIn, agentID: agentID, now: time.Now()}).err
}

// Act submits a betting decision from agentID.
func (a *Actor) Act(agentID string, action engine.ActionType, amount int) error {
	return a.send(request{kind: opAct, agentID: agentID, action: action, amount: amount, now: time.Now()}).err
}

// Chat appends a pre-sanitized chat message from agentID.
func (a *Actor) Chat(agentID, text string) error {
	return a.send(request{kind: opChat, agentID: agentID, text: text, now: time.Now()}).err
}

// GetAgentView returns agentID's filtered view of the table.
func (a *Actor) GetAgentView(agentID string) *AgentView {
	return a.send(request{kind: opGetAgentView, agentID: agentID, now: time.Now()}).agentView
}

// GetPublicView returns the spectator view of the table.
func (a *Actor) GetPublicView() *PublicView {
	return a.send(request{kind: opGetPublicView}).publicView
}

// GetSummary returns a lightweight listing entry for the table.
func (a *Actor) GetSummary() *Summary {
	return a.send(request{kind: opGetSummary}).summary
}

// GetHandHistory returns up to limit of the most recently completed hands
// (all of them, if limit <= 0).
func (a *Actor) GetHandHistory(limit int) []*engine.HandRecord {
	return a.send(request{kind: opGetHandHistory, limit: limit}).history
}

// GetLastHandRecord returns the most recently completed hand, or nil.
func (a *Actor) GetLastHandRecord() *engine.HandRecord {
	return a.send(request{kind: opGetLastHandRecord}).handRecord
}

// UpdateChips overwrites agentID's seated chip count (used by /rebuy).
func (a *Actor) UpdateChips(agentID string, chips int) {
	a.send(request{kind: opUpdateChips, agentID: agentID, chips: chips})
}
