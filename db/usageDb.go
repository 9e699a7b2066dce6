package db

import (
	"database/sql"
	"fmt"

	"clinicchat/models"

	_ "github.com/lib/pq"
)

type UsageRepository interface {
	RecordAPICall(call *models.APICall) error
	GetAllAPICalls() ([]*models.APICall, error)
	GetAPICallsBySession(sessionID string) ([]*models.APICall, error)
}

type PostgresUsageRepository struct {
	db *sql.DB
}

func NewPostgresUsageRepository(databaseURL string) (*PostgresUsageRepository, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresUsageRepository{db: db}, nil
}

// RecordAPICall inserts one telemetry row. Rows are append-only.
func (r *PostgresUsageRepository) RecordAPICall(call *models.APICall) error {
	query := `
		INSERT INTO api_calls (session_id, input_tokens, output_tokens, tool_used)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	row := r.db.QueryRow(query, call.SessionID, call.InputTokens, call.OutputTokens, call.ToolUsed)

	err := row.Scan(&call.ID, &call.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record api call: %w", err)
	}

	return nil
}

func (r *PostgresUsageRepository) GetAllAPICalls() ([]*models.APICall, error) {
	query := `
		SELECT id, session_id, input_tokens, output_tokens, tool_used, created_at
		FROM api_calls
		ORDER BY created_at DESC`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query api calls: %w", err)
	}
	defer rows.Close()

	return scanAPICalls(rows)
}

func (r *PostgresUsageRepository) GetAPICallsBySession(sessionID string) ([]*models.APICall, error) {
	query := `
		SELECT id, session_id, input_tokens, output_tokens, tool_used, created_at
		FROM api_calls
		WHERE session_id = $1
		ORDER BY created_at ASC`

	rows, err := r.db.Query(query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query session api calls: %w", err)
	}
	defer rows.Close()

	return scanAPICalls(rows)
}

func (r *PostgresUsageRepository) Close() error {
	return r.db.Close()
}

func scanAPICalls(rows *sql.Rows) ([]*models.APICall, error) {
	var calls []*models.APICall
	for rows.Next() {
		call := &models.APICall{}
		err := rows.Scan(&call.ID, &call.SessionID, &call.InputTokens, &call.OutputTokens, &call.ToolUsed, &call.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan api call: %w", err)
		}
		calls = append(calls, call)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over api calls: %w", err)
	}

	return calls, nil
}
