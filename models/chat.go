package models

// ChatMessage is one turn of a conversation as exchanged with the model.
// User turns carry plain text; assistant turns may additionally carry
// tool calls, and user turns may carry tool results answering them.
type ChatMessage struct {
	Role        string       `json:"role"`
	Content     string       `json:"content"`
	ToolCalls   []ToolCall   `json:"tool_calls,omitempty"`
	ToolResults []ToolResult `json:"tool_results,omitempty"`
}

type ToolCall struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	Content    string `json:"content"`
}

type ChatRequest struct {
	Messages  []ChatMessage `json:"messages"`
	SessionID string        `json:"session_id,omitempty"`
}

// ChatResult is what the orchestrator hands back to the UI shell.
// ShowBookingLink and QueriedKnowledgeBase are each true iff the
// corresponding tool fired during this call.
type ChatResult struct {
	Text                 string `json:"text"`
	ShowBookingLink      bool   `json:"show_booking_link"`
	QueriedKnowledgeBase bool   `json:"queried_knowledge_base"`
}

// Model response stop reasons.
const (
	StopReasonEndTurn = "end_turn"
	StopReasonToolUse = "tool_use"
	StopReasonOther   = "other"
)

// Content block types within a ModelResponse.
const (
	BlockTypeText    = "text"
	BlockTypeToolUse = "tool_use"
)

// ModelBlock is one ordered content block of a model response: either
// plain text or a tool invocation request.
type ModelBlock struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ToolCall *ToolCall `json:"tool_call,omitempty"`
}

type TokenUsage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// ModelResponse is the gateway-neutral shape of one model round-trip.
type ModelResponse struct {
	StopReason string       `json:"stop_reason"`
	Content    []ModelBlock `json:"content"`
	Usage      TokenUsage   `json:"usage"`
}
