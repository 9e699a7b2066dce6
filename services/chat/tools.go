package chat

import (
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/invopop/jsonschema"
)

// Tool names exposed to the model. The catalog is fixed for the lifetime
// of the process.
const (
	ToolNameShowBookingLink    = "show_booking_link"
	ToolNameQueryKnowledgeBase = "query_knowledge_base"
)

// toolKind is the closed set of tools the orchestrator dispatches on.
// Adding a tool means adding a constant here, a case in parseToolName,
// and a case in every switch over toolKind.
type toolKind int

const (
	toolShowBookingLink toolKind = iota
	toolQueryKnowledgeBase
)

func parseToolName(name string) (toolKind, bool) {
	switch name {
	case ToolNameShowBookingLink:
		return toolShowBookingLink, true
	case ToolNameQueryKnowledgeBase:
		return toolQueryKnowledgeBase, true
	default:
		return 0, false
	}
}

type ShowBookingLinkInput struct{}

type QueryKnowledgeBaseInput struct {
	Query string `json:"query" jsonschema:"required,description=The search query to find relevant information from the knowledge base"`
}

// ToolSpec is one static tool declaration sent to the gateway on every call.
type ToolSpec struct {
	Name        string
	Description string
	InputSchema anthropic.ToolInputSchemaParam
}

func ToolCatalog() []ToolSpec {
	return []ToolSpec{
		{
			Name:        ToolNameShowBookingLink,
			Description: "Display the booking calendar widget to allow the user to schedule an appointment. Use this when the user wants to book, schedule, or set up a meeting/appointment/call.",
			InputSchema: generateToolSchema[ShowBookingLinkInput](),
		},
		{
			Name:        ToolNameQueryKnowledgeBase,
			Description: "Get information about the business. Use this when the user wants to learn about insurance or general information about the business, especially when the query is not about booking an appointment.",
			InputSchema: generateToolSchema[QueryKnowledgeBaseInput](),
		},
	}
}

func generateToolSchema[T any]() anthropic.ToolInputSchemaParam {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	schema := reflector.Reflect(v)

	return anthropic.ToolInputSchemaParam{
		Properties: schema.Properties,
	}
}
