// Package analytics implements the optional ClickHouse sink: an
// observability-only consumer of completed hands and collusion-pair
// updates, fed from the gateway's post-commit fan-out. Its writes are
// best-effort and never gate a table-actor commit.
package analytics

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"

	"agentpoker/internal/collusion"
	"agentpoker/internal/engine"
)

// Config holds ClickHouse connection parameters.
type Config struct {
	Host         string
	Port         int
	Database     string
	Username     string
	Password     string
	Secure       bool
	MaxOpenConns int
	MaxIdleConns int
}

// Sink implements the analytics write path against ClickHouse.
type Sink struct {
	conn clickhouse.Conn
}

// NewSink opens and pings a ClickHouse connection.
func NewSink(ctx context.Context, cfg Config) (*Sink, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		TLS: &tls.Config{InsecureSkipVerify: cfg.Secure},
	})
	if err != nil {
		return nil, fmt.Errorf("analytics: connect to clickhouse: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("analytics: ping clickhouse: %w", err)
	}
	return &Sink{conn: conn}, nil
}

// CreateTables creates the analytics tables if they don't exist.
func (s *Sink) CreateTables(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS hand_events (
			hand_id String,
			table_id String,
			winner_id String,
			winning_hand String,
			pot Int64,
			player_count Int32,
			duration_ms Int64,
			timestamp DateTime64(3)
		) ENGINE = ReplacingMergeTree(timestamp)
		ORDER BY (table_id, hand_id, timestamp)`,

		`CREATE TABLE IF NOT EXISTS collusion_pair_events (
			agent_a String,
			agent_b String,
			hands_together Int32,
			a_folds_to_b Int32,
			b_folds_to_a Int32,
			chip_flow Int32,
			score Float64,
			timestamp DateTime64(3)
		) ENGINE = ReplacingMergeTree(timestamp)
		ORDER BY (agent_a, agent_b, timestamp)`,
	}
	for _, q := range queries {
		if err := s.conn.Exec(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

// RecordHand inserts one completed hand's analytics row.
func (s *Sink) RecordHand(ctx context.Context, record *engine.HandRecord) error {
	winnerID := ""
	if len(record.WinnerIDs) > 0 {
		winnerID = record.WinnerIDs[0]
	}
	return s.conn.Exec(ctx, `
		INSERT INTO hand_events (hand_id, table_id, winner_id, winning_hand, pot, player_count, duration_ms, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, record.HandID, record.TableID, winnerID, record.WinningHand, record.Pot,
		len(record.StartingStacks), record.EndedAt.Sub(record.StartedAt).Milliseconds(), record.EndedAt)
}

// RecordCollusionPair inserts one collusion accumulator snapshot, sampled
// whenever a pair's stats update (the accumulator's onUpdate hook).
func (s *Sink) RecordCollusionPair(ctx context.Context, pair *collusion.PairStats, now time.Time) error {
	return s.conn.Exec(ctx, `
		INSERT INTO collusion_pair_events (agent_a, agent_b, hands_together, a_folds_to_b, b_folds_to_a, chip_flow, score, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, pair.AgentA, pair.AgentB, pair.HandsTogether, pair.AFoldsToB, pair.BFoldsToA, pair.ChipFlow, pair.Score, now)
}

// Close releases the underlying connection.
func (s *Sink) Close() error {
	return s.conn.Close()
}
