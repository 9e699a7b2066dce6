package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"clinicchat/models"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicGateway implements Gateway against the Anthropic Messages API.
// One instance is created at startup and shared across calls.
type AnthropicGateway struct {
	client  *anthropic.Client
	timeout time.Duration
}

func NewAnthropicGateway(apiKey string, timeout time.Duration) *AnthropicGateway {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))

	return &AnthropicGateway{
		client:  &client,
		timeout: timeout,
	}
}

func (g *AnthropicGateway) Complete(ctx context.Context, system string, tools []ToolSpec, turns []models.ChatMessage) (*models.ModelResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	response, err := g.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.ModelClaude4Sonnet20250514,
		MaxTokens: 4096,
		System:    []anthropic.TextBlockParam{{Text: system}},
		Tools:     convertToolSpecs(tools),
		Messages:  convertMessages(turns),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to call Anthropic API: %w", err)
	}

	return convertResponse(response), nil
}

func convertToolSpecs(tools []ToolSpec) []anthropic.ToolUnionParam {
	var toolSpecs []anthropic.ToolUnionParam

	for _, tool := range tools {
		toolSpecs = append(toolSpecs, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        tool.Name,
				Description: anthropic.String(tool.Description),
				InputSchema: tool.InputSchema,
			},
		})
	}

	return toolSpecs
}

func convertMessages(turns []models.ChatMessage) []anthropic.MessageParam {
	var messages []anthropic.MessageParam

	for _, turn := range turns {
		switch turn.Role {
		case "user":
			if len(turn.ToolResults) > 0 {
				toolResultBlocks := []anthropic.ContentBlockParamUnion{}
				for _, result := range turn.ToolResults {
					toolResultBlocks = append(toolResultBlocks, anthropic.ContentBlockParamUnion{
						OfToolResult: &anthropic.ToolResultBlockParam{
							ToolUseID: result.ToolCallID,
							Content: []anthropic.ToolResultBlockParamContentUnion{
								{OfText: &anthropic.TextBlockParam{Text: result.Content}},
							},
						},
					})
				}
				messages = append(messages, anthropic.NewUserMessage(toolResultBlocks...))
				continue
			}
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(turn.Content)))
		case "assistant":
			contentBlocks := []anthropic.ContentBlockParamUnion{}

			if turn.Content != "" {
				contentBlocks = append(contentBlocks, anthropic.ContentBlockParamUnion{
					OfText: &anthropic.TextBlockParam{Text: turn.Content},
				})
			}

			for _, toolCall := range turn.ToolCalls {
				contentBlocks = append(contentBlocks, anthropic.ContentBlockParamUnion{
					OfToolUse: &anthropic.ToolUseBlockParam{
						ID:    toolCall.ID,
						Name:  toolCall.Name,
						Input: toolCall.Arguments,
					},
				})
			}

			messages = append(messages, anthropic.NewAssistantMessage(contentBlocks...))
		default:
			log.Printf("[WARN] Skipping message with unknown role %q", turn.Role)
		}
	}

	return messages
}

func convertResponse(response *anthropic.Message) *models.ModelResponse {
	converted := &models.ModelResponse{
		StopReason: convertStopReason(response.StopReason),
		Usage: models.TokenUsage{
			InputTokens:  response.Usage.InputTokens,
			OutputTokens: response.Usage.OutputTokens,
		},
	}

	for _, block := range response.Content {
		switch block := block.AsAny().(type) {
		case anthropic.TextBlock:
			converted.Content = append(converted.Content, models.ModelBlock{
				Type: models.BlockTypeText,
				Text: block.Text,
			})
		case anthropic.ToolUseBlock:
			inputJSON, _ := json.Marshal(block.Input)
			var arguments map[string]interface{}
			json.Unmarshal(inputJSON, &arguments)

			converted.Content = append(converted.Content, models.ModelBlock{
				Type: models.BlockTypeToolUse,
				ToolCall: &models.ToolCall{
					ID:        block.ID,
					Name:      block.Name,
					Arguments: arguments,
				},
			})
		}
	}

	return converted
}

func convertStopReason(reason anthropic.StopReason) string {
	switch reason {
	case anthropic.StopReasonEndTurn:
		return models.StopReasonEndTurn
	case anthropic.StopReasonToolUse:
		return models.StopReasonToolUse
	default:
		return models.StopReasonOther
	}
}
