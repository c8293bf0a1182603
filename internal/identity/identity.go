// Package identity defines the agent identity store: registration,
// authentication lookup, chip balances, and lifetime counters. It is the
// authoritative source of chip truth between hands; the in-memory table
// copy is a cache written back on every committing action.
package identity

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNameTaken is returned by Register when the requested name is
	// already in use.
	ErrNameTaken = errors.New("identity: name already registered")
	// ErrNotFound is returned when an agent id or name has no matching row.
	ErrNotFound = errors.New("identity: agent not found")
	// ErrBanned is returned by AuthenticateByHash for a banned agent.
	ErrBanned = errors.New("identity: agent is banned")
)

const maxRebuys = 3

// Agent is one registered agent's identity-store row.
type Agent struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	APIKeyHash   string    `json:"-"`
	Chips        int       `json:"chips"`
	HandsPlayed  int       `json:"handsPlayed"`
	HandsWon     int       `json:"handsWon"`
	LLMProvider  string    `json:"llmProvider,omitempty"`
	LLMModel     string    `json:"llmModel,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	Banned       bool      `json:"banned"`
	CurrentTable string    `json:"currentTable,omitempty"`
	Rebuys       int       `json:"rebuys"`
}

// Store is the identity store's persistence boundary. Implementations must
// make Register atomic on the name-uniqueness constraint.
type Store interface {
	Register(ctx context.Context, name string, apiKeyHash string, llmProvider string, llmModel string, startingChips int, now time.Time) (*Agent, error)
	AuthenticateByHash(ctx context.Context, apiKeyHash string) (*Agent, error)
	Get(ctx context.Context, agentID string) (*Agent, error)
	SetCurrentTable(ctx context.Context, agentID string, tableID string) error
	UpdateChips(ctx context.Context, agentID string, chips int) error
	RecordHandResult(ctx context.Context, agentID string, won bool) error
	Rebuy(ctx context.Context, agentID string, amount int) (*Agent, error)
	SetBanned(ctx context.Context, agentID string, banned bool) error
	Leaderboard(ctx context.Context, limit int) ([]*Agent, error)
}

// ApplyHandResults updates every participant's lifetime counters and chip
// balance for one completed hand. Best-effort: the caller logs and
// continues on error rather than rolling back the hand.
func ApplyHandResults(ctx context.Context, store Store, endingChips map[string]int, winnerIDs []string) []error {
	won := make(map[string]bool, len(winnerIDs))
	for _, id := range winnerIDs {
		won[id] = true
	}

	var errs []error
	for agentID, chips := range endingChips {
		if err := store.UpdateChips(ctx, agentID, chips); err != nil {
			errs = append(errs, err)
		}
		if err := store.RecordHandResult(ctx, agentID, won[agentID]); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// CanRebuy reports whether an agent has rebuys remaining.
func CanRebuy(a *Agent) bool {
	return a.Rebuys < maxRebuys
}
