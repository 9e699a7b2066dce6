package chat

import (
	"context"
	"errors"
	"testing"

	"clinicchat/models"
)

type stubGateway struct {
	responses []*models.ModelResponse
	errs      []error
	calls     [][]models.ChatMessage
}

func (g *stubGateway) Complete(ctx context.Context, system string, tools []ToolSpec, turns []models.ChatMessage) (*models.ModelResponse, error) {
	i := len(g.calls)
	recorded := make([]models.ChatMessage, len(turns))
	copy(recorded, turns)
	g.calls = append(g.calls, recorded)

	if i < len(g.errs) && g.errs[i] != nil {
		return nil, g.errs[i]
	}
	if i >= len(g.responses) {
		return &models.ModelResponse{StopReason: models.StopReasonEndTurn}, nil
	}
	return g.responses[i], nil
}

type stubOracle struct {
	results []string
	err     error
	queries []string
}

func (o *stubOracle) Search(ctx context.Context, query string) ([]string, error) {
	o.queries = append(o.queries, query)
	if o.err != nil {
		return nil, o.err
	}
	return o.results, nil
}

type stubRecorder struct {
	records []*models.APICall
	err     error
}

func (r *stubRecorder) RecordUsage(record *models.APICall) error {
	if r.err != nil {
		return r.err
	}
	r.records = append(r.records, record)
	return nil
}

func textResponse(text string, usage models.TokenUsage) *models.ModelResponse {
	return &models.ModelResponse{
		StopReason: models.StopReasonEndTurn,
		Content:    []models.ModelBlock{{Type: models.BlockTypeText, Text: text}},
		Usage:      usage,
	}
}

func toolUseResponse(usage models.TokenUsage, blocks ...models.ModelBlock) *models.ModelResponse {
	return &models.ModelResponse{
		StopReason: models.StopReasonToolUse,
		Content:    blocks,
		Usage:      usage,
	}
}

func toolUseBlock(id, name string, arguments map[string]interface{}) models.ModelBlock {
	return models.ModelBlock{
		Type: models.BlockTypeToolUse,
		ToolCall: &models.ToolCall{
			ID:        id,
			Name:      name,
			Arguments: arguments,
		},
	}
}

func userTurns(contents ...string) []models.ChatMessage {
	turns := make([]models.ChatMessage, 0, len(contents))
	for _, content := range contents {
		turns = append(turns, models.ChatMessage{Role: "user", Content: content})
	}
	return turns
}

func TestRespondPlainText(t *testing.T) {
	gateway := &stubGateway{
		responses: []*models.ModelResponse{
			textResponse("Hello! How can I help?", models.TokenUsage{InputTokens: 12, OutputTokens: 7}),
		},
	}
	oracle := &stubOracle{}
	recorder := &stubRecorder{}
	service := NewService(gateway, oracle, recorder)

	result, err := service.Respond(context.Background(), userTurns("Hi"), "session-1")
	if err != nil {
		t.Fatalf("Respond() returned error: %v", err)
	}

	if result.Text != "Hello! How can I help?" {
		t.Errorf("Text = %q, expected round-1 text verbatim", result.Text)
	}
	if result.ShowBookingLink {
		t.Error("ShowBookingLink = true, expected false")
	}
	if result.QueriedKnowledgeBase {
		t.Error("QueriedKnowledgeBase = true, expected false")
	}
	if len(gateway.calls) != 1 {
		t.Errorf("gateway calls = %d, expected 1", len(gateway.calls))
	}
	if len(oracle.queries) != 0 {
		t.Errorf("oracle queries = %d, expected 0", len(oracle.queries))
	}
	if len(recorder.records) != 1 {
		t.Fatalf("usage records = %d, expected 1", len(recorder.records))
	}

	record := recorder.records[0]
	if record.InputTokens != 12 || record.OutputTokens != 7 {
		t.Errorf("recorded usage = %d/%d, expected 12/7", record.InputTokens, record.OutputTokens)
	}
	if record.ToolUsed != nil {
		t.Errorf("ToolUsed = %q, expected absent", *record.ToolUsed)
	}
	if record.SessionID == nil || *record.SessionID != "session-1" {
		t.Error("expected usage record attributed to session-1")
	}
}

func TestRespondShowBookingLink(t *testing.T) {
	gateway := &stubGateway{
		responses: []*models.ModelResponse{
			toolUseResponse(
				models.TokenUsage{InputTokens: 20, OutputTokens: 5},
				toolUseBlock("toolu_01", ToolNameShowBookingLink, map[string]interface{}{}),
			),
		},
	}
	oracle := &stubOracle{}
	recorder := &stubRecorder{}
	service := NewService(gateway, oracle, recorder)

	result, err := service.Respond(context.Background(), userTurns("I'd like to book an appointment"), "session-1")
	if err != nil {
		t.Fatalf("Respond() returned error: %v", err)
	}

	if result.Text != "" {
		t.Errorf("Text = %q, expected empty", result.Text)
	}
	if !result.ShowBookingLink {
		t.Error("ShowBookingLink = false, expected true")
	}
	if result.QueriedKnowledgeBase {
		t.Error("QueriedKnowledgeBase = true, expected false")
	}
	if len(gateway.calls) != 1 {
		t.Errorf("gateway calls = %d, expected 1", len(gateway.calls))
	}
	if len(recorder.records) != 1 {
		t.Fatalf("usage records = %d, expected 1", len(recorder.records))
	}
	if recorder.records[0].ToolUsed == nil || *recorder.records[0].ToolUsed != ToolNameShowBookingLink {
		t.Error("expected usage record with tool_used = show_booking_link")
	}
}

func TestRespondKnowledgeBaseQuery(t *testing.T) {
	gateway := &stubGateway{
		responses: []*models.ModelResponse{
			toolUseResponse(
				models.TokenUsage{InputTokens: 30, OutputTokens: 10},
				toolUseBlock("toolu_02", ToolNameQueryKnowledgeBase, map[string]interface{}{"query": "insurance accepted"}),
			),
			textResponse("We accept Blue Cross and Aetna.", models.TokenUsage{InputTokens: 50, OutputTokens: 15}),
		},
	}
	oracle := &stubOracle{results: []string{"We accept Blue Cross and Aetna."}}
	recorder := &stubRecorder{}
	service := NewService(gateway, oracle, recorder)

	result, err := service.Respond(context.Background(), userTurns("What insurance do you accept?"), "session-2")
	if err != nil {
		t.Fatalf("Respond() returned error: %v", err)
	}

	if result.Text != "We accept Blue Cross and Aetna." {
		t.Errorf("Text = %q, expected round-2 text", result.Text)
	}
	if result.ShowBookingLink {
		t.Error("ShowBookingLink = true, expected false")
	}
	if !result.QueriedKnowledgeBase {
		t.Error("QueriedKnowledgeBase = false, expected true")
	}

	if len(oracle.queries) != 1 || oracle.queries[0] != "insurance accepted" {
		t.Errorf("oracle queries = %v, expected exactly one query %q", oracle.queries, "insurance accepted")
	}

	if len(gateway.calls) != 2 {
		t.Fatalf("gateway calls = %d, expected 2", len(gateway.calls))
	}

	// Round 2 must see the original turn, the assistant's tool call, and
	// the tool result echoing the call id.
	extended := gateway.calls[1]
	if len(extended) != 3 {
		t.Fatalf("round-2 turns = %d, expected 3", len(extended))
	}
	assistant := extended[1]
	if assistant.Role != "assistant" || len(assistant.ToolCalls) != 1 || assistant.ToolCalls[0].ID != "toolu_02" {
		t.Errorf("round-2 assistant turn does not carry the round-1 tool call: %+v", assistant)
	}
	toolTurn := extended[2]
	if toolTurn.Role != "user" || len(toolTurn.ToolResults) != 1 {
		t.Fatalf("round-2 tool result turn malformed: %+v", toolTurn)
	}
	if toolTurn.ToolResults[0].ToolCallID != "toolu_02" {
		t.Errorf("tool result id = %q, expected toolu_02", toolTurn.ToolResults[0].ToolCallID)
	}
	if toolTurn.ToolResults[0].Content != "We accept Blue Cross and Aetna." {
		t.Errorf("tool result payload = %q", toolTurn.ToolResults[0].Content)
	}

	if len(recorder.records) != 2 {
		t.Fatalf("usage records = %d, expected 2", len(recorder.records))
	}
	first, second := recorder.records[0], recorder.records[1]
	if first.ToolUsed == nil || *first.ToolUsed != ToolNameQueryKnowledgeBase {
		t.Error("expected first usage record with tool_used = query_knowledge_base")
	}
	if first.InputTokens != 30 || first.OutputTokens != 10 {
		t.Errorf("first record usage = %d/%d, expected 30/10", first.InputTokens, first.OutputTokens)
	}
	if second.ToolUsed != nil {
		t.Errorf("second record ToolUsed = %q, expected absent", *second.ToolUsed)
	}
	if second.InputTokens != 50 || second.OutputTokens != 15 {
		t.Errorf("second record usage = %d/%d, expected 50/15", second.InputTokens, second.OutputTokens)
	}
}

func TestRespondRoundOneTextDiscardedWhenKnowledgeBaseFires(t *testing.T) {
	gateway := &stubGateway{
		responses: []*models.ModelResponse{
			toolUseResponse(
				models.TokenUsage{},
				models.ModelBlock{Type: models.BlockTypeText, Text: "Let me look that up."},
				toolUseBlock("toolu_03", ToolNameQueryKnowledgeBase, map[string]interface{}{"query": "opening hours"}),
			),
			textResponse("We are open 9 to 5 on weekdays.", models.TokenUsage{}),
		},
	}
	service := NewService(gateway, &stubOracle{results: []string{"Open 9-5 Mon-Fri"}}, &stubRecorder{})

	result, err := service.Respond(context.Background(), userTurns("When are you open?"), "")
	if err != nil {
		t.Fatalf("Respond() returned error: %v", err)
	}

	if result.Text != "We are open 9 to 5 on weekdays." {
		t.Errorf("Text = %q, round 2 should be authoritative", result.Text)
	}
}

func TestRespondOracleEmptyStillRoundTwo(t *testing.T) {
	gateway := &stubGateway{
		responses: []*models.ModelResponse{
			toolUseResponse(
				models.TokenUsage{},
				toolUseBlock("toolu_04", ToolNameQueryKnowledgeBase, map[string]interface{}{"query": "parking"}),
			),
			textResponse("I'm sorry, I don't have details on parking.", models.TokenUsage{}),
		},
	}
	oracle := &stubOracle{results: nil}
	service := NewService(gateway, oracle, &stubRecorder{})

	result, err := service.Respond(context.Background(), userTurns("Do you have parking?"), "session-3")
	if err != nil {
		t.Fatalf("Respond() returned error: %v", err)
	}

	if len(gateway.calls) != 2 {
		t.Fatalf("gateway calls = %d, expected round 2 to still run", len(gateway.calls))
	}
	toolTurn := gateway.calls[1][2]
	if toolTurn.ToolResults[0].Content != NoResultsSentinel {
		t.Errorf("tool result payload = %q, expected sentinel %q", toolTurn.ToolResults[0].Content, NoResultsSentinel)
	}
	if result.Text != "I'm sorry, I don't have details on parking." {
		t.Errorf("Text = %q, expected the model's reply, not a canned one", result.Text)
	}
	if !result.QueriedKnowledgeBase {
		t.Error("QueriedKnowledgeBase = false, expected true")
	}
}

func TestRespondOracleFailureDegradesToNoResults(t *testing.T) {
	gateway := &stubGateway{
		responses: []*models.ModelResponse{
			toolUseResponse(
				models.TokenUsage{},
				toolUseBlock("toolu_05", ToolNameQueryKnowledgeBase, map[string]interface{}{"query": "pricing"}),
			),
			textResponse("I couldn't find pricing details right now.", models.TokenUsage{}),
		},
	}
	oracle := &stubOracle{err: errors.New("connection refused")}
	service := NewService(gateway, oracle, &stubRecorder{})

	result, err := service.Respond(context.Background(), userTurns("How much is a session?"), "")
	if err != nil {
		t.Fatalf("Respond() returned error, oracle failure must not abort the turn: %v", err)
	}

	if len(gateway.calls) != 2 {
		t.Fatalf("gateway calls = %d, expected 2", len(gateway.calls))
	}
	toolTurn := gateway.calls[1][2]
	if toolTurn.ToolResults[0].Content != NoResultsSentinel {
		t.Errorf("tool result payload = %q, expected sentinel on oracle failure", toolTurn.ToolResults[0].Content)
	}
	if result.Text != "I couldn't find pricing details right now." {
		t.Errorf("Text = %q", result.Text)
	}
}

func TestRespondBoundedRoundTrips(t *testing.T) {
	// Round 2 requests the knowledge base again; the turn is still capped
	// at two gateway calls and one oracle call.
	gateway := &stubGateway{
		responses: []*models.ModelResponse{
			toolUseResponse(
				models.TokenUsage{},
				toolUseBlock("toolu_06", ToolNameQueryKnowledgeBase, map[string]interface{}{"query": "services"}),
			),
			toolUseResponse(
				models.TokenUsage{},
				models.ModelBlock{Type: models.BlockTypeText, Text: "We offer physical and occupational therapy."},
				toolUseBlock("toolu_07", ToolNameQueryKnowledgeBase, map[string]interface{}{"query": "more services"}),
			),
		},
	}
	oracle := &stubOracle{results: []string{"PT and OT services"}}
	recorder := &stubRecorder{}
	service := NewService(gateway, oracle, recorder)

	result, err := service.Respond(context.Background(), userTurns("What services do you offer?"), "session-4")
	if err != nil {
		t.Fatalf("Respond() returned error: %v", err)
	}

	if len(gateway.calls) != 2 {
		t.Errorf("gateway calls = %d, expected hard cap of 2", len(gateway.calls))
	}
	if len(oracle.queries) != 1 {
		t.Errorf("oracle queries = %d, expected hard cap of 1", len(oracle.queries))
	}
	if result.Text != "We offer physical and occupational therapy." {
		t.Errorf("Text = %q, expected round 2's text regardless of its tool request", result.Text)
	}
	if len(recorder.records) != 2 {
		t.Errorf("usage records = %d, expected 2", len(recorder.records))
	}
}

func TestRespondBothToolsInRoundOne(t *testing.T) {
	gateway := &stubGateway{
		responses: []*models.ModelResponse{
			toolUseResponse(
				models.TokenUsage{},
				toolUseBlock("toolu_08", ToolNameShowBookingLink, map[string]interface{}{}),
				toolUseBlock("toolu_09", ToolNameQueryKnowledgeBase, map[string]interface{}{"query": "first visit"}),
			),
			textResponse("Bring your insurance card to your first visit.", models.TokenUsage{}),
		},
	}
	oracle := &stubOracle{results: []string{"First visit: bring insurance card."}}
	service := NewService(gateway, oracle, &stubRecorder{})

	result, err := service.Respond(context.Background(), userTurns("Book me in, and what should I bring?"), "")
	if err != nil {
		t.Fatalf("Respond() returned error: %v", err)
	}

	if !result.ShowBookingLink {
		t.Error("ShowBookingLink = false, expected true even with knowledge base branch")
	}
	if !result.QueriedKnowledgeBase {
		t.Error("QueriedKnowledgeBase = false, expected true")
	}
	if result.Text != "Bring your insurance card to your first visit." {
		t.Errorf("Text = %q, expected round-2 text", result.Text)
	}
}

func TestRespondUnknownToolIgnored(t *testing.T) {
	gateway := &stubGateway{
		responses: []*models.ModelResponse{
			toolUseResponse(
				models.TokenUsage{},
				toolUseBlock("toolu_10", "delete_all_records", map[string]interface{}{}),
				models.ModelBlock{Type: models.BlockTypeText, Text: "Happy to help with that."},
			),
		},
	}
	oracle := &stubOracle{}
	recorder := &stubRecorder{}
	service := NewService(gateway, oracle, recorder)

	result, err := service.Respond(context.Background(), userTurns("Hello"), "")
	if err != nil {
		t.Fatalf("Respond() returned error, unknown tools must not be fatal: %v", err)
	}

	if result.Text != "Happy to help with that." {
		t.Errorf("Text = %q, expected fallback to the text block", result.Text)
	}
	if result.ShowBookingLink || result.QueriedKnowledgeBase {
		t.Error("no known tool fired, both flags should be false")
	}
	if len(oracle.queries) != 0 {
		t.Error("oracle must not be called for unknown tools")
	}
	if len(recorder.records) != 1 {
		t.Errorf("usage records = %d, expected 1", len(recorder.records))
	}
}

func TestRespondMalformedKnowledgeBaseArguments(t *testing.T) {
	tests := []struct {
		name      string
		arguments map[string]interface{}
	}{
		{"missing query", map[string]interface{}{}},
		{"non-string query", map[string]interface{}{"query": 42}},
		{"nil arguments", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gateway := &stubGateway{
				responses: []*models.ModelResponse{
					toolUseResponse(
						models.TokenUsage{},
						toolUseBlock("toolu_11", ToolNameQueryKnowledgeBase, tt.arguments),
						models.ModelBlock{Type: models.BlockTypeText, Text: "Could you rephrase that?"},
					),
				},
			}
			oracle := &stubOracle{}
			service := NewService(gateway, oracle, &stubRecorder{})

			result, err := service.Respond(context.Background(), userTurns("Tell me things"), "")
			if err != nil {
				t.Fatalf("Respond() returned error: %v", err)
			}

			if result.QueriedKnowledgeBase {
				t.Error("QueriedKnowledgeBase = true, malformed call should be ignored")
			}
			if len(oracle.queries) != 0 {
				t.Error("oracle must not be called with malformed arguments")
			}
			if result.Text != "Could you rephrase that?" {
				t.Errorf("Text = %q, expected fallback text", result.Text)
			}
			if len(gateway.calls) != 1 {
				t.Errorf("gateway calls = %d, expected 1", len(gateway.calls))
			}
		})
	}
}

func TestRespondGatewayFailureRoundOne(t *testing.T) {
	gateway := &stubGateway{
		errs: []error{errors.New("429 rate limited")},
	}
	recorder := &stubRecorder{}
	service := NewService(gateway, &stubOracle{}, recorder)

	_, err := service.Respond(context.Background(), userTurns("Hi"), "session-5")
	if err == nil {
		t.Fatal("Respond() returned nil error, expected gateway failure")
	}
	if !errors.Is(err, ErrGatewayUnavailable) {
		t.Errorf("error = %v, expected ErrGatewayUnavailable", err)
	}
	if len(recorder.records) != 0 {
		t.Errorf("usage records = %d, expected none for a failed call", len(recorder.records))
	}
}

func TestRespondGatewayFailureRoundTwo(t *testing.T) {
	gateway := &stubGateway{
		responses: []*models.ModelResponse{
			toolUseResponse(
				models.TokenUsage{InputTokens: 30, OutputTokens: 10},
				toolUseBlock("toolu_12", ToolNameQueryKnowledgeBase, map[string]interface{}{"query": "hours"}),
			),
		},
		errs: []error{nil, errors.New("connection reset")},
	}
	oracle := &stubOracle{results: []string{"Open 9-5"}}
	recorder := &stubRecorder{}
	service := NewService(gateway, oracle, recorder)

	_, err := service.Respond(context.Background(), userTurns("When are you open?"), "session-6")
	if err == nil {
		t.Fatal("Respond() returned nil error, expected gateway failure")
	}
	if !errors.Is(err, ErrGatewayUnavailable) {
		t.Errorf("error = %v, expected ErrGatewayUnavailable", err)
	}
	if len(oracle.queries) != 1 {
		t.Errorf("oracle queries = %d, expected 1", len(oracle.queries))
	}
	// No orphaned round-1 record without a user-visible reply.
	if len(recorder.records) != 0 {
		t.Errorf("usage records = %d, expected none when round 2 fails", len(recorder.records))
	}
}

func TestRespondTelemetryFailureSwallowed(t *testing.T) {
	gateway := &stubGateway{
		responses: []*models.ModelResponse{
			textResponse("All good.", models.TokenUsage{InputTokens: 5, OutputTokens: 2}),
		},
	}
	recorder := &stubRecorder{err: errors.New("disk full")}
	service := NewService(gateway, &stubOracle{}, recorder)

	result, err := service.Respond(context.Background(), userTurns("Hi"), "session-7")
	if err != nil {
		t.Fatalf("Respond() returned error, telemetry failure must not surface: %v", err)
	}
	if result.Text != "All good." {
		t.Errorf("Text = %q", result.Text)
	}
}

func TestRespondWithoutSessionAttribution(t *testing.T) {
	gateway := &stubGateway{
		responses: []*models.ModelResponse{
			textResponse("Hello.", models.TokenUsage{InputTokens: 5, OutputTokens: 2}),
		},
	}
	recorder := &stubRecorder{}
	service := NewService(gateway, &stubOracle{}, recorder)

	if _, err := service.Respond(context.Background(), userTurns("Hi"), ""); err != nil {
		t.Fatalf("Respond() returned error: %v", err)
	}

	if len(recorder.records) != 1 {
		t.Fatalf("usage records = %d, expected 1", len(recorder.records))
	}
	if recorder.records[0].SessionID != nil {
		t.Errorf("SessionID = %q, expected absent", *recorder.records[0].SessionID)
	}
}

func TestRespondIdempotent(t *testing.T) {
	newService := func() (*Service, *stubRecorder) {
		gateway := &stubGateway{
			responses: []*models.ModelResponse{
				toolUseResponse(
					models.TokenUsage{InputTokens: 30, OutputTokens: 10},
					toolUseBlock("toolu_13", ToolNameQueryKnowledgeBase, map[string]interface{}{"query": "insurance"}),
				),
				textResponse("We accept Blue Cross.", models.TokenUsage{InputTokens: 50, OutputTokens: 12}),
			},
		}
		recorder := &stubRecorder{}
		return NewService(gateway, &stubOracle{results: []string{"Blue Cross"}}, recorder), recorder
	}

	turns := userTurns("What insurance do you accept?")

	first, firstRecorder := newService()
	second, secondRecorder := newService()

	resultA, err := first.Respond(context.Background(), turns, "session-8")
	if err != nil {
		t.Fatalf("first Respond() returned error: %v", err)
	}
	resultB, err := second.Respond(context.Background(), turns, "session-8")
	if err != nil {
		t.Fatalf("second Respond() returned error: %v", err)
	}

	if *resultA != *resultB {
		t.Errorf("results differ: %+v vs %+v", resultA, resultB)
	}
	if len(firstRecorder.records) != len(secondRecorder.records) {
		t.Errorf("record counts differ: %d vs %d", len(firstRecorder.records), len(secondRecorder.records))
	}
	if len(turns) != 1 {
		t.Errorf("caller turns were mutated, len = %d", len(turns))
	}
}

func TestExtendConversationDoesNotMutateCaller(t *testing.T) {
	turns := userTurns("first", "second")
	round1 := toolUseResponse(
		models.TokenUsage{},
		models.ModelBlock{Type: models.BlockTypeText, Text: "Checking."},
		toolUseBlock("toolu_14", ToolNameQueryKnowledgeBase, map[string]interface{}{"query": "x"}),
	)

	extended := extendConversation(turns, round1, models.ToolResult{ToolCallID: "toolu_14", Content: "doc"})

	if len(turns) != 2 {
		t.Errorf("caller slice mutated, len = %d", len(turns))
	}
	if len(extended) != 4 {
		t.Fatalf("extended len = %d, expected 4", len(extended))
	}
	if extended[2].Role != "assistant" || extended[2].Content != "Checking." {
		t.Errorf("assistant turn = %+v", extended[2])
	}
	if extended[3].Role != "user" || extended[3].ToolResults[0].ToolCallID != "toolu_14" {
		t.Errorf("tool result turn = %+v", extended[3])
	}
}
