package models

import "time"

// APICall is one usage telemetry row, recorded once per model round-trip.
// ToolUsed and SessionID are nil when absent. Rows are append-only.
type APICall struct {
	ID           int       `json:"id"`
	SessionID    *string   `json:"session_id,omitempty"`
	InputTokens  int64     `json:"input_tokens"`
	OutputTokens int64     `json:"output_tokens"`
	ToolUsed     *string   `json:"tool_used,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// UsageStats is the dashboard's overall token and cost summary.
type UsageStats struct {
	TotalCalls        int     `json:"total_calls"`
	TotalInputTokens  int64   `json:"total_input_tokens"`
	TotalOutputTokens int64   `json:"total_output_tokens"`
	TotalTokens       int64   `json:"total_tokens"`
	AvgInputTokens    float64 `json:"avg_input_tokens"`
	AvgOutputTokens   float64 `json:"avg_output_tokens"`
	AvgTotalTokens    float64 `json:"avg_total_tokens"`
	InputCostUSD      float64 `json:"input_cost_usd"`
	OutputCostUSD     float64 `json:"output_cost_usd"`
	TotalCostUSD      float64 `json:"total_cost_usd"`
}

type DailyUsage struct {
	Date         string `json:"date"`
	InputTokens  int64  `json:"input_tokens"`
	OutputTokens int64  `json:"output_tokens"`
	TotalTokens  int64  `json:"total_tokens"`
}

type ToolUsage struct {
	Tool  string `json:"tool"`
	Count int    `json:"count"`
}

type SessionUsage struct {
	SessionID    string `json:"session_id"`
	InputTokens  int64  `json:"input_tokens"`
	OutputTokens int64  `json:"output_tokens"`
	TotalTokens  int64  `json:"total_tokens"`
}
