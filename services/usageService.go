package services

import (
	"fmt"
	"log"
	"sort"

	"clinicchat/db"
	"clinicchat/models"

	"github.com/samber/lo"
)

// Claude Sonnet pricing per million tokens, used for the dashboard's
// estimated-cost figures.
const (
	inputCostPerMillionUSD  = 3.0
	outputCostPerMillionUSD = 15.0
)

// NoToolBucket labels calls where no tool fired in breakdowns.
const NoToolBucket = "no_tool"

// UsageService aggregates the per-call telemetry rows for the dashboard
// and records new rows on behalf of the chat orchestrator.
type UsageService struct {
	repo db.UsageRepository
}

func NewUsageService(repo db.UsageRepository) *UsageService {
	return &UsageService{repo: repo}
}

// RecordUsage satisfies the orchestrator's UsageRecorder dependency.
func (s *UsageService) RecordUsage(record *models.APICall) error {
	if err := s.repo.RecordAPICall(record); err != nil {
		return fmt.Errorf("failed to record api call: %w", err)
	}
	return nil
}

func (s *UsageService) GetStats() (*models.UsageStats, error) {
	calls, err := s.repo.GetAllAPICalls()
	if err != nil {
		return nil, fmt.Errorf("failed to get api calls: %w", err)
	}

	stats := ComputeStats(calls)
	log.Printf("[INFO] Computed usage stats over %d api calls", stats.TotalCalls)
	return stats, nil
}

// ComputeStats derives the overall token and cost summary from a set of
// telemetry rows.
func ComputeStats(calls []*models.APICall) *models.UsageStats {
	stats := &models.UsageStats{TotalCalls: len(calls)}

	stats.TotalInputTokens = lo.SumBy(calls, func(call *models.APICall) int64 { return call.InputTokens })
	stats.TotalOutputTokens = lo.SumBy(calls, func(call *models.APICall) int64 { return call.OutputTokens })
	stats.TotalTokens = stats.TotalInputTokens + stats.TotalOutputTokens

	if stats.TotalCalls > 0 {
		stats.AvgInputTokens = float64(stats.TotalInputTokens) / float64(stats.TotalCalls)
		stats.AvgOutputTokens = float64(stats.TotalOutputTokens) / float64(stats.TotalCalls)
		stats.AvgTotalTokens = float64(stats.TotalTokens) / float64(stats.TotalCalls)
	}

	stats.InputCostUSD = float64(stats.TotalInputTokens) / 1_000_000 * inputCostPerMillionUSD
	stats.OutputCostUSD = float64(stats.TotalOutputTokens) / 1_000_000 * outputCostPerMillionUSD
	stats.TotalCostUSD = stats.InputCostUSD + stats.OutputCostUSD

	return stats
}

// GetDailyUsage returns per-day token totals in chronological order.
func (s *UsageService) GetDailyUsage() ([]models.DailyUsage, error) {
	calls, err := s.repo.GetAllAPICalls()
	if err != nil {
		return nil, fmt.Errorf("failed to get api calls: %w", err)
	}

	byDate := lo.GroupBy(calls, func(call *models.APICall) string {
		return call.CreatedAt.Format("2006-01-02")
	})

	daily := make([]models.DailyUsage, 0, len(byDate))
	for date, dayCalls := range byDate {
		input := lo.SumBy(dayCalls, func(call *models.APICall) int64 { return call.InputTokens })
		output := lo.SumBy(dayCalls, func(call *models.APICall) int64 { return call.OutputTokens })
		daily = append(daily, models.DailyUsage{
			Date:         date,
			InputTokens:  input,
			OutputTokens: output,
			TotalTokens:  input + output,
		})
	}

	sort.Slice(daily, func(i, j int) bool {
		return daily[i].Date < daily[j].Date
	})

	return daily, nil
}

// GetToolBreakdown counts calls per tool, with calls that used no tool
// grouped under NoToolBucket, ordered by count descending.
func (s *UsageService) GetToolBreakdown() ([]models.ToolUsage, error) {
	calls, err := s.repo.GetAllAPICalls()
	if err != nil {
		return nil, fmt.Errorf("failed to get api calls: %w", err)
	}

	counts := lo.CountValuesBy(calls, func(call *models.APICall) string {
		if call.ToolUsed == nil {
			return NoToolBucket
		}
		return *call.ToolUsed
	})

	breakdown := make([]models.ToolUsage, 0, len(counts))
	for tool, count := range counts {
		breakdown = append(breakdown, models.ToolUsage{Tool: tool, Count: count})
	}

	sort.Slice(breakdown, func(i, j int) bool {
		if breakdown[i].Count != breakdown[j].Count {
			return breakdown[i].Count > breakdown[j].Count
		}
		return breakdown[i].Tool < breakdown[j].Tool
	})

	return breakdown, nil
}

// GetTopSessions returns the limit sessions with the highest total token
// usage. Calls without session attribution are excluded.
func (s *UsageService) GetTopSessions(limit int) ([]models.SessionUsage, error) {
	calls, err := s.repo.GetAllAPICalls()
	if err != nil {
		return nil, fmt.Errorf("failed to get api calls: %w", err)
	}

	attributed := lo.Filter(calls, func(call *models.APICall, _ int) bool {
		return call.SessionID != nil
	})

	bySession := lo.GroupBy(attributed, func(call *models.APICall) string {
		return *call.SessionID
	})

	usage := make([]models.SessionUsage, 0, len(bySession))
	for sessionID, sessionCalls := range bySession {
		input := lo.SumBy(sessionCalls, func(call *models.APICall) int64 { return call.InputTokens })
		output := lo.SumBy(sessionCalls, func(call *models.APICall) int64 { return call.OutputTokens })
		usage = append(usage, models.SessionUsage{
			SessionID:    sessionID,
			InputTokens:  input,
			OutputTokens: output,
			TotalTokens:  input + output,
		})
	}

	sort.Slice(usage, func(i, j int) bool {
		return usage[i].TotalTokens > usage[j].TotalTokens
	})

	if limit > 0 && len(usage) > limit {
		usage = usage[:limit]
	}

	return usage, nil
}

func (s *UsageService) GetSessionCalls(sessionID string) ([]*models.APICall, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session ID is required")
	}

	calls, err := s.repo.GetAPICallsBySession(sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session api calls: %w", err)
	}

	return calls, nil
}
