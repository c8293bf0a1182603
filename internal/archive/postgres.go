package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"time"

	_ "github.com/lib/pq"

	"agentpoker/internal/engine"
	"agentpoker/pkg/rng"
)

const handHistoryRetention = 50

// PostgresStore implements Store for PostgreSQL. Full hand records are
// stored as a JSONB blob alongside a denormalized hand_history row for
// indexed lookups; access is raw parameterized SQL, no ORM.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an existing *sql.DB.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// CreateTables creates hand_history, table_snapshots and rng_audit if they
// don't exist.
func (s *PostgresStore) CreateTables(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS hand_history (
			id VARCHAR(80) PRIMARY KEY,
			table_id VARCHAR(64) NOT NULL,
			winner_id VARCHAR(64),
			winner_name VARCHAR(20),
			winning_hand VARCHAR(32),
			pot BIGINT NOT NULL,
			player_count INTEGER NOT NULL,
			record JSONB NOT NULL,
			started_at TIMESTAMP NOT NULL,
			ended_at TIMESTAMP NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_hand_history_table_id ON hand_history(table_id);
		CREATE INDEX IF NOT EXISTS idx_hand_history_winner_id ON hand_history(winner_id);

		CREATE TABLE IF NOT EXISTS table_snapshots (
			table_id VARCHAR(64) PRIMARY KEY,
			state JSONB NOT NULL,
			updated_at TIMESTAMP NOT NULL
		);

		CREATE TABLE IF NOT EXISTS rng_audit (
			id BIGSERIAL PRIMARY KEY,
			table_id VARCHAR(64) NOT NULL,
			hand_id VARCHAR(80) NOT NULL,
			seed_hash VARCHAR(64) NOT NULL,
			algorithm VARCHAR(48) NOT NULL,
			created_at TIMESTAMP NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_rng_audit_table_id ON rng_audit(table_id);
	`)
	return err
}

// StoreShuffleAudit appends one shuffle audit event to the fairness-review
// trail, satisfying the table.ShuffleAuditor interface.
func (s *PostgresStore) StoreShuffleAudit(ctx context.Context, event *rng.ShuffleAuditEvent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rng_audit (table_id, hand_id, seed_hash, algorithm, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, event.TableID, event.HandID, event.SeedHash, event.Algorithm, event.Timestamp)
	return err
}

// StoreHand inserts a completed hand, ignoring the insert if the hand id
// already exists (idempotent against a retried post-commit flush).
func (s *PostgresStore) StoreHand(ctx context.Context, record *engine.HandRecord) error {
	blob, err := json.Marshal(record)
	if err != nil {
		return err
	}
	summary := Summarize(record)

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO hand_history (id, table_id, winner_id, winner_name, winning_hand, pot, player_count, record, started_at, ended_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING
	`, summary.HandID, summary.TableID, summary.WinnerID, summary.WinnerName, summary.WinningHand,
		summary.Pot, summary.PlayerCount, blob, record.StartedAt, record.EndedAt)
	if err != nil {
		return err
	}
	if err := s.PruneOldHands(ctx, summary.TableID); err != nil {
		log.Printf("archive: prune hands table=%s: %v", summary.TableID, err)
	}
	return nil
}

// GetHand retrieves one hand's full record by id.
func (s *PostgresStore) GetHand(ctx context.Context, handID string) (*engine.HandRecord, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx, `SELECT record FROM hand_history WHERE id = $1`, handID).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	record := &engine.HandRecord{}
	if err := json.Unmarshal(blob, record); err != nil {
		return nil, err
	}
	return record, nil
}

// GetTableHands returns the most recent hand summaries for a table, newest
// first, capped at handHistoryRetention regardless of the requested limit.
func (s *PostgresStore) GetTableHands(ctx context.Context, tableID string, limit int) ([]HandSummary, error) {
	if limit <= 0 || limit > handHistoryRetention {
		limit = handHistoryRetention
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, table_id, winner_id, winner_name, winning_hand, pot, player_count, started_at, ended_at
		FROM hand_history WHERE table_id = $1 ORDER BY ended_at DESC LIMIT $2
	`, tableID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []HandSummary
	for rows.Next() {
		var sm HandSummary
		var startedAt, endedAt time.Time
		var winnerID, winnerName, winningHand sql.NullString
		if err := rows.Scan(&sm.HandID, &sm.TableID, &winnerID, &winnerName, &winningHand, &sm.Pot, &sm.PlayerCount, &startedAt, &endedAt); err != nil {
			return nil, err
		}
		sm.WinnerID = winnerID.String
		sm.WinnerName = winnerName.String
		sm.WinningHand = winningHand.String
		sm.StartedAt = startedAt.Unix()
		sm.EndedAt = endedAt.Unix()
		summaries = append(summaries, sm)
	}
	return summaries, rows.Err()
}

// SaveSnapshot upserts the table actor's durable state, satisfying the
// table.Persister interface.
func (s *PostgresStore) SaveSnapshot(ctx context.Context, tableID string, state *engine.State) error {
	blob, err := json.Marshal(state)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO table_snapshots (table_id, state, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (table_id) DO UPDATE SET state = EXCLUDED.state, updated_at = EXCLUDED.updated_at
	`, tableID, blob)
	return err
}

// LoadSnapshot retrieves a table's last persisted state, or nil if none
// exists yet.
func (s *PostgresStore) LoadSnapshot(ctx context.Context, tableID string) (*engine.State, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx, `SELECT state FROM table_snapshots WHERE table_id = $1`, tableID).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	state := &engine.State{}
	if err := json.Unmarshal(blob, state); err != nil {
		return nil, err
	}
	return state, nil
}

// PruneOldHands deletes hand_history rows for a table beyond the retained
// window, called opportunistically after each insert.
func (s *PostgresStore) PruneOldHands(ctx context.Context, tableID string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM hand_history
		WHERE table_id = $1 AND id NOT IN (
			SELECT id FROM hand_history WHERE table_id = $1 ORDER BY ended_at DESC LIMIT $2
		)
	`, tableID, handHistoryRetention)
	return err
}
