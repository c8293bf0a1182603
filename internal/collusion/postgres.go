package collusion

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/lib/pq"
)

// PostgresStore persists the pairwise graph to the agent_pairs table, so
// the watchlist survives restarts. Writes are best-effort copies of the
// in-memory accumulator, which stays authoritative within a process.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an existing *sql.DB. The caller owns the
// connection lifecycle.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// CreatePairsTable creates the agent_pairs table if it doesn't exist.
func (s *PostgresStore) CreatePairsTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS agent_pairs (
			agent_a VARCHAR(64) NOT NULL,
			agent_b VARCHAR(64) NOT NULL,
			hands_together INTEGER NOT NULL DEFAULT 0,
			a_folds_to_b INTEGER NOT NULL DEFAULT 0,
			b_folds_to_a INTEGER NOT NULL DEFAULT 0,
			chip_flow_a_to_b INTEGER NOT NULL DEFAULT 0,
			collusion_score DOUBLE PRECISION NOT NULL DEFAULT 0,
			last_updated TIMESTAMP NOT NULL,
			PRIMARY KEY (agent_a, agent_b)
		);

		CREATE INDEX IF NOT EXISTS idx_agent_pairs_score ON agent_pairs(collusion_score DESC);
	`
	_, err := s.db.ExecContext(ctx, query)
	return err
}

// UpsertPair writes one pair's current accumulator snapshot.
func (s *PostgresStore) UpsertPair(ctx context.Context, pair *PairStats, now time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO agent_pairs (agent_a, agent_b, hands_together, a_folds_to_b, b_folds_to_a, chip_flow_a_to_b, collusion_score, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (agent_a, agent_b) DO UPDATE SET
			hands_together = EXCLUDED.hands_together,
			a_folds_to_b = EXCLUDED.a_folds_to_b,
			b_folds_to_a = EXCLUDED.b_folds_to_a,
			chip_flow_a_to_b = EXCLUDED.chip_flow_a_to_b,
			collusion_score = EXCLUDED.collusion_score,
			last_updated = EXCLUDED.last_updated
	`, pair.AgentA, pair.AgentB, pair.HandsTogether, pair.AFoldsToB, pair.BFoldsToA, pair.ChipFlow, pair.Score, now)
	return err
}

// LoadAll reads every persisted pair, used to warm the accumulator after a
// restart.
func (s *PostgresStore) LoadAll(ctx context.Context) ([]*PairStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT agent_a, agent_b, hands_together, a_folds_to_b, b_folds_to_a, chip_flow_a_to_b, collusion_score
		FROM agent_pairs
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pairs []*PairStats
	for rows.Next() {
		p := &PairStats{}
		if err := rows.Scan(&p.AgentA, &p.AgentB, &p.HandsTogether, &p.AFoldsToB, &p.BFoldsToA, &p.ChipFlow, &p.Score); err != nil {
			return nil, err
		}
		pairs = append(pairs, p)
	}
	return pairs, rows.Err()
}
