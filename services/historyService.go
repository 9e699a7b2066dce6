package services

import (
	"fmt"
	"log"
	"sort"
	"strings"

	"clinicchat/db"
	"clinicchat/models"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/samber/lo"
)

// Sort orders accepted by GetAllSessions.
const (
	SortMostRecent   = "most_recent"
	SortOldestFirst  = "oldest_first"
	SortMostMessages = "most_messages"
)

const sessionMessageLimit = 1000

// HistoryService reads and aggregates the persisted conversation history
// for the dashboard, and appends new messages on behalf of the chat
// endpoint.
type HistoryService struct {
	repo db.MessageRepository
}

func NewHistoryService(repo db.MessageRepository) *HistoryService {
	return &HistoryService{repo: repo}
}

func (s *HistoryService) SaveMessage(sessionID, role, content string, showBookingLink bool) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}
	if role != "user" && role != "assistant" {
		return fmt.Errorf("invalid role: %s", role)
	}

	msg := &models.StoredMessage{
		SessionID:       sessionID,
		Role:            role,
		Content:         content,
		ShowBookingLink: showBookingLink,
	}

	if err := s.repo.SaveMessage(msg); err != nil {
		log.Printf("[ERROR] Failed to save %s message for session %s: %v", role, sessionID, err)
		return fmt.Errorf("failed to save message: %w", err)
	}

	return nil
}

func (s *HistoryService) GetSessionMessages(sessionID string) ([]models.StoredMessage, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session ID is required")
	}

	messages, err := s.repo.GetMessagesBySession(sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session messages: %w", err)
	}

	return messages, nil
}

// GetAllSessions groups the stored messages into per-session summaries with
// aggregate metadata, sorted by the requested order.
func (s *HistoryService) GetAllSessions(sortOrder string) ([]*models.SessionSummary, error) {
	log.Printf("[INFO] Listing sessions sorted by %s", sortOrder)

	messages, err := s.repo.GetAllMessages(sessionMessageLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}

	bySession := lo.GroupBy(messages, func(msg models.StoredMessage) string {
		return msg.SessionID
	})

	sessions := make([]*models.SessionSummary, 0, len(bySession))
	for sessionID, sessionMessages := range bySession {
		sort.Slice(sessionMessages, func(i, j int) bool {
			return sessionMessages[i].CreatedAt.Before(sessionMessages[j].CreatedAt)
		})

		sessions = append(sessions, &models.SessionSummary{
			SessionID:        sessionID,
			MessageCount:     len(sessionMessages),
			FirstMessageTime: sessionMessages[0].CreatedAt,
			LastMessageTime:  sessionMessages[len(sessionMessages)-1].CreatedAt,
			Summary:          summarizeTopics(sessionMessages),
			Messages:         sessionMessages,
		})
	}

	sortSessions(sessions, sortOrder)

	log.Printf("[INFO] Listed %d sessions", len(sessions))
	return sessions, nil
}

// SearchSessions returns the sessions whose messages match the search term,
// tolerating minor typos.
func (s *HistoryService) SearchSessions(term, sortOrder string) ([]*models.SessionSummary, error) {
	sessions, err := s.GetAllSessions(sortOrder)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(term) == "" {
		return sessions, nil
	}

	matched := lo.Filter(sessions, func(session *models.SessionSummary, _ int) bool {
		return sessionMatchesSearch(session, term)
	})

	log.Printf("[INFO] Search %q matched %d of %d sessions", term, len(matched), len(sessions))
	return matched, nil
}

func (s *HistoryService) DeleteSession(sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	if err := s.repo.DeleteSessionMessages(sessionID); err != nil {
		log.Printf("[ERROR] Failed to delete session %s: %v", sessionID, err)
		return fmt.Errorf("failed to delete session: %w", err)
	}

	log.Printf("[INFO] Deleted session %s", sessionID)
	return nil
}

func (s *HistoryService) GetSessionCount() (int, error) {
	count, err := s.repo.GetSessionCount()
	if err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}

	return count, nil
}

func sessionMatchesSearch(session *models.SessionSummary, term string) bool {
	for _, msg := range session.Messages {
		if fuzzy.MatchFold(term, msg.Content) {
			return true
		}
		words := strings.Fields(strings.ToLower(msg.Content))
		if len(fuzzy.Find(strings.ToLower(term), words)) > 0 {
			return true
		}
	}
	return false
}

var topicKeywords = []struct {
	topic    string
	keywords []string
}{
	{"Appointment booking", []string{"appointment", "book", "schedule", "calendly"}},
	{"Insurance inquiry", []string{"insurance", "coverage", "plan"}},
	{"Pricing questions", []string{"price", "cost", "fee", "payment"}},
	{"Service information", []string{"service", "treatment", "therapy"}},
	{"Location/Hours", []string{"location", "address", "hour", "open"}},
}

// summarizeTopics produces a short keyword-based description of what a
// conversation was about, based on the user's messages only.
func summarizeTopics(messages []models.StoredMessage) string {
	userContent := strings.ToLower(strings.Join(
		lo.FilterMap(messages, func(msg models.StoredMessage, _ int) (string, bool) {
			return msg.Content, msg.Role == "user"
		}),
		" ",
	))

	var topics []string
	for _, entry := range topicKeywords {
		for _, keyword := range entry.keywords {
			if strings.Contains(userContent, keyword) {
				topics = append(topics, entry.topic)
				break
			}
		}
	}

	if len(topics) == 0 {
		return "General inquiry"
	}
	return strings.Join(topics, ", ")
}

func sortSessions(sessions []*models.SessionSummary, sortOrder string) {
	switch sortOrder {
	case SortOldestFirst:
		sort.Slice(sessions, func(i, j int) bool {
			return sessions[i].FirstMessageTime.Before(sessions[j].FirstMessageTime)
		})
	case SortMostMessages:
		sort.Slice(sessions, func(i, j int) bool {
			return sessions[i].MessageCount > sessions[j].MessageCount
		})
	default:
		sort.Slice(sessions, func(i, j int) bool {
			return sessions[i].LastMessageTime.After(sessions[j].LastMessageTime)
		})
	}
}
