package models

import "time"

// StoredMessage is one persisted conversation message, as written by the
// chat endpoint and read back by the dashboard.
type StoredMessage struct {
	MessageID       string    `json:"message_id"`
	SessionID       string    `json:"session_id"`
	Role            string    `json:"role"`
	Content         string    `json:"content"`
	ShowBookingLink bool      `json:"show_booking_link"`
	CreatedAt       time.Time `json:"created_at"`
}

// SessionSummary aggregates one chat session for the dashboard listing.
type SessionSummary struct {
	SessionID        string          `json:"session_id"`
	MessageCount     int             `json:"message_count"`
	FirstMessageTime time.Time       `json:"first_message_time"`
	LastMessageTime  time.Time       `json:"last_message_time"`
	Summary          string          `json:"summary"`
	Messages         []StoredMessage `json:"messages"`
}
