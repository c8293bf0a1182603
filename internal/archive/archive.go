// Package archive implements the append-only hand archive and table
// snapshot store: durable records of completed hands (hand_history) and
// the table actor's recoverable state (table_snapshots).
package archive

import (
	"context"

	"agentpoker/internal/engine"
)

// HandSummary is the denormalized hand_history row: the fields needed to
// list and index completed hands without deserializing the full record.
type HandSummary struct {
	HandID      string `json:"handId"`
	TableID     string `json:"tableId"`
	WinnerID    string `json:"winnerId"`
	WinnerName  string `json:"winnerName"`
	WinningHand string `json:"winningHand"`
	Pot         int    `json:"pot"`
	PlayerCount int    `json:"playerCount"`
	StartedAt   int64  `json:"startedAt"`
	EndedAt     int64  `json:"endedAt"`
}

// Store is the hand archive's persistence boundary. StoreHand is
// idempotent on HandID ("insert or ignore") so a retried post-commit flush
// never double-inserts.
type Store interface {
	StoreHand(ctx context.Context, record *engine.HandRecord) error
	GetHand(ctx context.Context, handID string) (*engine.HandRecord, error)
	GetTableHands(ctx context.Context, tableID string, limit int) ([]HandSummary, error)
	SaveSnapshot(ctx context.Context, tableID string, state *engine.State) error
	LoadSnapshot(ctx context.Context, tableID string) (*engine.State, error)
}

// Summarize reduces a full HandRecord to its hand_history row.
func Summarize(record *engine.HandRecord) HandSummary {
	s := HandSummary{
		HandID:      record.HandID,
		TableID:     record.TableID,
		WinningHand: record.WinningHand,
		Pot:         record.Pot,
		PlayerCount: len(record.StartingStacks),
		StartedAt:   record.StartedAt.Unix(),
		EndedAt:     record.EndedAt.Unix(),
	}
	if len(record.WinnerIDs) > 0 {
		s.WinnerID = record.WinnerIDs[0]
	}
	if len(record.WinnerNames) > 0 {
		s.WinnerName = record.WinnerNames[0]
	}
	return s
}
