package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// PostgresStore implements Store for PostgreSQL using raw parameterized
// SQL, no ORM.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an existing *sql.DB. The caller owns the
// connection lifecycle.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// CreateAgentsTable creates the agents table if it doesn't exist.
func (s *PostgresStore) CreateAgentsTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS agents (
			id VARCHAR(64) PRIMARY KEY,
			name VARCHAR(20) UNIQUE NOT NULL,
			api_key_hash VARCHAR(64) UNIQUE NOT NULL,
			chips BIGINT NOT NULL DEFAULT 0,
			hands_played INTEGER NOT NULL DEFAULT 0,
			hands_won INTEGER NOT NULL DEFAULT 0,
			llm_provider VARCHAR(64),
			llm_model VARCHAR(128),
			created_at TIMESTAMP NOT NULL,
			banned BOOLEAN NOT NULL DEFAULT FALSE,
			current_table VARCHAR(64),
			rebuys INTEGER NOT NULL DEFAULT 0
		);

		CREATE INDEX IF NOT EXISTS idx_agents_api_key_hash ON agents(api_key_hash);
		CREATE INDEX IF NOT EXISTS idx_agents_chips ON agents(chips DESC);
	`
	_, err := s.db.ExecContext(ctx, query)
	return err
}

// Register inserts a new agent row. It returns ErrNameTaken if the name (or
// derived api key hash) collides with an existing row.
func (s *PostgresStore) Register(ctx context.Context, name string, apiKeyHash string, llmProvider string, llmModel string, startingChips int, now time.Time) (*Agent, error) {
	agent := &Agent{
		ID:          uuid.NewString(),
		Name:        name,
		APIKeyHash:  apiKeyHash,
		Chips:       startingChips,
		LLMProvider: llmProvider,
		LLMModel:    llmModel,
		CreatedAt:   now,
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO agents (id, name, api_key_hash, chips, hands_played, hands_won, llm_provider, llm_model, created_at, banned, current_table, rebuys)
		VALUES ($1, $2, $3, $4, 0, 0, $5, $6, $7, FALSE, NULL, 0)
	`, agent.ID, agent.Name, agent.APIKeyHash, agent.Chips, agent.LLMProvider, agent.LLMModel, agent.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrNameTaken
		}
		return nil, err
	}
	return agent, nil
}

// AuthenticateByHash looks up an agent by their hashed API key.
func (s *PostgresStore) AuthenticateByHash(ctx context.Context, apiKeyHash string) (*Agent, error) {
	agent, err := s.scanOne(ctx, `
		SELECT id, name, api_key_hash, chips, hands_played, hands_won, llm_provider, llm_model, created_at, banned, current_table, rebuys
		FROM agents WHERE api_key_hash = $1
	`, apiKeyHash)
	if err != nil {
		return nil, err
	}
	if agent.Banned {
		return agent, ErrBanned
	}
	return agent, nil
}

// Get looks up an agent by id.
func (s *PostgresStore) Get(ctx context.Context, agentID string) (*Agent, error) {
	return s.scanOne(ctx, `
		SELECT id, name, api_key_hash, chips, hands_played, hands_won, llm_provider, llm_model, created_at, banned, current_table, rebuys
		FROM agents WHERE id = $1
	`, agentID)
}

func (s *PostgresStore) scanOne(ctx context.Context, query string, arg any) (*Agent, error) {
	agent := &Agent{}
	var currentTable, llmProvider, llmModel sql.NullString

	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&agent.ID,
		&agent.Name,
		&agent.APIKeyHash,
		&agent.Chips,
		&agent.HandsPlayed,
		&agent.HandsWon,
		&llmProvider,
		&llmModel,
		&agent.CreatedAt,
		&agent.Banned,
		&currentTable,
		&agent.Rebuys,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if currentTable.Valid {
		agent.CurrentTable = currentTable.String
	}
	if llmProvider.Valid {
		agent.LLMProvider = llmProvider.String
	}
	if llmModel.Valid {
		agent.LLMModel = llmModel.String
	}
	return agent, nil
}

// SetCurrentTable updates the table an agent is currently seated at. Pass
// "" to clear it.
func (s *PostgresStore) SetCurrentTable(ctx context.Context, agentID string, tableID string) error {
	var arg sql.NullString
	if tableID != "" {
		arg = sql.NullString{String: tableID, Valid: true}
	}
	result, err := s.db.ExecContext(ctx, `UPDATE agents SET current_table = $1 WHERE id = $2`, arg, agentID)
	if err != nil {
		return err
	}
	return mustAffectOne(result)
}

// UpdateChips overwrites an agent's chip balance with the authoritative
// value from a table-actor commit.
func (s *PostgresStore) UpdateChips(ctx context.Context, agentID string, chips int) error {
	result, err := s.db.ExecContext(ctx, `UPDATE agents SET chips = $1 WHERE id = $2`, chips, agentID)
	if err != nil {
		return err
	}
	return mustAffectOne(result)
}

// RecordHandResult increments hands_played, and hands_won if won is true.
func (s *PostgresStore) RecordHandResult(ctx context.Context, agentID string, won bool) error {
	delta := 0
	if won {
		delta = 1
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE agents SET hands_played = hands_played + 1, hands_won = hands_won + $1 WHERE id = $2
	`, delta, agentID)
	if err != nil {
		return err
	}
	return mustAffectOne(result)
}

// Rebuy tops up an agent's chips by amount, up to maxRebuys uses.
func (s *PostgresStore) Rebuy(ctx context.Context, agentID string, amount int) (*Agent, error) {
	agent, err := s.Get(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if !CanRebuy(agent) {
		return nil, fmt.Errorf("identity: agent %s has exhausted its rebuys", agentID)
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE agents SET chips = chips + $1, rebuys = rebuys + 1 WHERE id = $2
	`, amount, agentID)
	if err != nil {
		return nil, err
	}
	if err := mustAffectOne(result); err != nil {
		return nil, err
	}
	return s.Get(ctx, agentID)
}

// SetBanned flips the banned flag administratively.
func (s *PostgresStore) SetBanned(ctx context.Context, agentID string, banned bool) error {
	result, err := s.db.ExecContext(ctx, `UPDATE agents SET banned = $1 WHERE id = $2`, banned, agentID)
	if err != nil {
		return err
	}
	return mustAffectOne(result)
}

// Leaderboard returns the top agents by chip balance.
func (s *PostgresStore) Leaderboard(ctx context.Context, limit int) ([]*Agent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, api_key_hash, chips, hands_played, hands_won, llm_provider, llm_model, created_at, banned, current_table, rebuys
		FROM agents WHERE banned = FALSE ORDER BY chips DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var agents []*Agent
	for rows.Next() {
		agent := &Agent{}
		var currentTable, llmProvider, llmModel sql.NullString
		if err := rows.Scan(
			&agent.ID, &agent.Name, &agent.APIKeyHash, &agent.Chips,
			&agent.HandsPlayed, &agent.HandsWon, &llmProvider, &llmModel, &agent.CreatedAt,
			&agent.Banned, &currentTable, &agent.Rebuys,
		); err != nil {
			return nil, err
		}
		if currentTable.Valid {
			agent.CurrentTable = currentTable.String
		}
		if llmProvider.Valid {
			agent.LLMProvider = llmProvider.String
		}
		if llmModel.Valid {
			agent.LLMModel = llmModel.String
		}
		agents = append(agents, agent)
	}
	return agents, rows.Err()
}

func mustAffectOne(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	// unique_violation is SQLSTATE 23505.
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
