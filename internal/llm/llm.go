// ABOUTME: Request and response types for the chat completion service boundary
// ABOUTME: Normalizes SDK response shapes into Result/Choice extracted once per call

package llm

// Message is one turn in a model request. Assistant messages that requested
// tool calls carry them in ToolCalls; tool messages carry the ToolCallID of
// the call they answer.
type Message struct {
	Role       string
	Content    string
	ToolCallID string
	ToolCalls  []ToolCall
}

// ToolCall is a model-issued request to invoke an external capability.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// ToolDef describes a function tool offered to the model.
type ToolDef struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Request is a single chat completion call. Leaving Tools empty disables
// tool calling for the request.
type Request struct {
	Model    string
	Messages []Message
	Tools    []ToolDef
}

// Choice is one response choice with every field the relay inspects,
// extracted from the SDK response exactly once.
type Choice struct {
	Content      string
	Refusal      string
	Reasoning    string
	FinishReason string
	ToolCalls    []ToolCall
}

// Result is a normalized chat completion response.
type Result struct {
	Choices []Choice
}
