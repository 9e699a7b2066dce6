package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"clinicchat/models"
)

// ErrGatewayUnavailable wraps transport, auth, and rate-limit failures from
// the language model gateway. It is the only error that fails a whole turn.
var ErrGatewayUnavailable = errors.New("language model gateway unavailable")

// NoResultsSentinel is the tool-result payload used when the knowledge base
// has nothing relevant. The model, not the orchestrator, turns it into a
// user-facing reply.
const NoResultsSentinel = "No relevant information found."

// Gateway is one request/response exchange with the language model.
type Gateway interface {
	Complete(ctx context.Context, system string, tools []ToolSpec, turns []models.ChatMessage) (*models.ModelResponse, error)
}

// Oracle answers free-text queries with the most relevant stored documents.
// An empty slice means nothing relevant was found.
type Oracle interface {
	Search(ctx context.Context, query string) ([]string, error)
}

// UsageRecorder persists one telemetry row per model round-trip.
type UsageRecorder interface {
	RecordUsage(record *models.APICall) error
}

// Service is the tool-augmented conversation orchestrator. It owns the
// system prompt and the two-tool catalog, and holds no per-conversation
// state: the full turn sequence arrives on every call, so concurrent calls
// for different sessions are safe.
type Service struct {
	gateway Gateway
	oracle  Oracle
	usage   UsageRecorder
}

func NewService(gateway Gateway, oracle Oracle, usage UsageRecorder) *Service {
	return &Service{
		gateway: gateway,
		oracle:  oracle,
		usage:   usage,
	}
}

// Respond runs one conversation turn: at most two gateway calls and at most
// one oracle call, strictly ordered. turns must be non-empty and end with a
// user turn; sessionID may be empty, in which case telemetry is recorded
// without session attribution.
func (s *Service) Respond(ctx context.Context, turns []models.ChatMessage, sessionID string) (*models.ChatResult, error) {
	log.Printf("[INFO] Starting chat turn with %d messages", len(turns))

	round1, err := s.gateway.Complete(ctx, SystemPrompt, ToolCatalog(), turns)
	if err != nil {
		log.Printf("[ERROR] Gateway call failed: %v", err)
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	result := &models.ChatResult{}
	var kbCall *models.ToolCall
	var kbQuery string

	for _, block := range round1.Content {
		switch block.Type {
		case models.BlockTypeText:
			result.Text = block.Text
		case models.BlockTypeToolUse:
			if block.ToolCall == nil {
				log.Printf("[WARN] Tool use block without a tool call, ignoring")
				continue
			}
			kind, ok := parseToolName(block.ToolCall.Name)
			if !ok {
				log.Printf("[WARN] Model requested unknown tool %q, ignoring", block.ToolCall.Name)
				continue
			}
			switch kind {
			case toolShowBookingLink:
				result.ShowBookingLink = true
			case toolQueryKnowledgeBase:
				query, ok := block.ToolCall.Arguments["query"].(string)
				if !ok {
					log.Printf("[WARN] query_knowledge_base call %s has no string query argument, ignoring", block.ToolCall.ID)
					continue
				}
				if kbCall != nil {
					log.Printf("[WARN] Model requested query_knowledge_base more than once, keeping the first request")
					continue
				}
				result.QueriedKnowledgeBase = true
				kbCall = block.ToolCall
				kbQuery = query
			}
		}
	}

	if kbCall == nil {
		s.recordUsage(sessionID, round1.Usage, roundOneTool(result))
		log.Printf("[INFO] Chat turn completed in one round trip")
		return result, nil
	}

	payload := s.searchKnowledgeBase(ctx, kbQuery)
	extended := extendConversation(turns, round1, models.ToolResult{
		ToolCallID: kbCall.ID,
		Content:    payload,
	})

	round2, err := s.gateway.Complete(ctx, SystemPrompt, ToolCatalog(), extended)
	if err != nil {
		// Nothing recorded for round 1 either: a usage row without a
		// user-visible reply would be orphaned.
		log.Printf("[ERROR] Second gateway call failed: %v", err)
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	// Round 2 is authoritative for the reply text, even if the model asks
	// for another tool; the turn is capped at two round trips.
	result.Text = firstTextBlock(round2)

	toolName := ToolNameQueryKnowledgeBase
	s.recordUsage(sessionID, round1.Usage, &toolName)
	s.recordUsage(sessionID, round2.Usage, nil)

	log.Printf("[INFO] Chat turn completed in two round trips")
	return result, nil
}

func (s *Service) searchKnowledgeBase(ctx context.Context, query string) string {
	log.Printf("[INFO] Querying knowledge base: %q", query)

	documents, err := s.oracle.Search(ctx, query)
	if err != nil {
		log.Printf("[WARN] Knowledge base search failed, degrading to no results: %v", err)
		return NoResultsSentinel
	}
	if len(documents) == 0 {
		log.Printf("[INFO] Knowledge base returned no documents for %q", query)
		return NoResultsSentinel
	}

	log.Printf("[INFO] Knowledge base returned %d documents", len(documents))
	return strings.Join(documents, "\n\n")
}

// extendConversation returns a new turn sequence with the assistant's
// round-1 content appended verbatim, followed by a user turn carrying the
// tool result. The caller's slice is never mutated.
func extendConversation(turns []models.ChatMessage, round1 *models.ModelResponse, toolResult models.ToolResult) []models.ChatMessage {
	extended := make([]models.ChatMessage, len(turns), len(turns)+2)
	copy(extended, turns)

	assistant := models.ChatMessage{Role: "assistant"}
	for _, block := range round1.Content {
		switch block.Type {
		case models.BlockTypeText:
			assistant.Content += block.Text
		case models.BlockTypeToolUse:
			if block.ToolCall != nil {
				assistant.ToolCalls = append(assistant.ToolCalls, *block.ToolCall)
			}
		}
	}

	extended = append(extended, assistant)
	extended = append(extended, models.ChatMessage{
		Role:        "user",
		ToolResults: []models.ToolResult{toolResult},
	})

	return extended
}

func firstTextBlock(response *models.ModelResponse) string {
	for _, block := range response.Content {
		if block.Type == models.BlockTypeText {
			return block.Text
		}
	}
	return ""
}

func roundOneTool(result *models.ChatResult) *string {
	if result.ShowBookingLink {
		name := ToolNameShowBookingLink
		return &name
	}
	return nil
}

func (s *Service) recordUsage(sessionID string, usage models.TokenUsage, toolUsed *string) {
	record := &models.APICall{
		InputTokens:  usage.InputTokens,
		OutputTokens: usage.OutputTokens,
		ToolUsed:     toolUsed,
	}
	if sessionID != "" {
		record.SessionID = &sessionID
	}

	if err := s.usage.RecordUsage(record); err != nil {
		log.Printf("[WARN] Failed to record usage telemetry: %v", err)
	}
}
