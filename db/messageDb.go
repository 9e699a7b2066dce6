package db

import (
	"database/sql"
	"fmt"
	"time"

	"clinicchat/models"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

type MessageRepository interface {
	SaveMessage(msg *models.StoredMessage) error
	GetMessagesBySession(sessionID string) ([]models.StoredMessage, error)
	GetAllMessages(limit int) ([]models.StoredMessage, error)
	GetSessionCount() (int, error)
	DeleteSessionMessages(sessionID string) error
}

type PostgresMessageRepository struct {
	db *sql.DB
}

func NewPostgresMessageRepository(databaseURL string) (*PostgresMessageRepository, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresMessageRepository{db: db}, nil
}

// SaveMessage appends one conversation message. Messages are never updated
// or deleted individually; history is append-only per session.
func (r *PostgresMessageRepository) SaveMessage(msg *models.StoredMessage) error {
	if msg.MessageID == "" {
		msg.MessageID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO messages (message_id, session_id, role, content, show_booking_link, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.Exec(query, msg.MessageID, msg.SessionID, msg.Role, msg.Content, msg.ShowBookingLink, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}

	return nil
}

func (r *PostgresMessageRepository) GetMessagesBySession(sessionID string) ([]models.StoredMessage, error) {
	query := `
		SELECT message_id, session_id, role, content, show_booking_link, created_at
		FROM messages
		WHERE session_id = $1
		ORDER BY created_at ASC`

	rows, err := r.db.Query(query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query session messages: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

func (r *PostgresMessageRepository) GetAllMessages(limit int) ([]models.StoredMessage, error) {
	query := `
		SELECT message_id, session_id, role, content, show_booking_link, created_at
		FROM messages
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

func (r *PostgresMessageRepository) GetSessionCount() (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(DISTINCT session_id) FROM messages`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}

	return count, nil
}

func (r *PostgresMessageRepository) DeleteSessionMessages(sessionID string) error {
	_, err := r.db.Exec(`DELETE FROM messages WHERE session_id = $1`, sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete session messages: %w", err)
	}

	return nil
}

func (r *PostgresMessageRepository) Close() error {
	return r.db.Close()
}

func scanMessages(rows *sql.Rows) ([]models.StoredMessage, error) {
	var messages []models.StoredMessage
	for rows.Next() {
		var msg models.StoredMessage
		err := rows.Scan(&msg.MessageID, &msg.SessionID, &msg.Role, &msg.Content, &msg.ShowBookingLink, &msg.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over messages: %w", err)
	}

	return messages, nil
}
