// ABOUTME: Provider-neutral chat types shared by the orchestration loop and model clients
// ABOUTME: Wire conversion happens at the provider boundary (openai.go)

package llm

import "context"

// Message roles understood by every provider.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one entry of the history sent to the model.
type Message struct {
	Role       string
	Content    string
	ToolCalls  []ToolCall // set on assistant messages that requested tools
	ToolCallID string     // set on tool result messages
	Name       string     // tool name on tool result messages
}

// ToolCall is a single tool invocation requested by the model.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string // raw JSON object as produced by the model
}

// ToolDefinition describes a callable tool to the model.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  any // JSON-schema document
}

// Request is one model call.
type Request struct {
	Model     string
	Messages  []Message
	Tools     []ToolDefinition
	MaxTokens int
}

// Usage counts tokens for one model call.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Add accumulates another call's usage.
func (u *Usage) Add(o Usage) {
	u.InputTokens += o.InputTokens
	u.OutputTokens += o.OutputTokens
}

// ChatResponse is the assembled result of one streamed model call.
type ChatResponse struct {
	Content      string
	ToolCalls    []ToolCall
	FinishReason string
	Usage        Usage
}

// StreamCallback receives text tokens as the model produces them.
type StreamCallback func(token string)

// Client is implemented by every model provider.
type Client interface {
	// ChatStream sends req and streams text tokens to callback as they arrive.
	// The returned response carries the full text and any tool calls.
	ChatStream(ctx context.Context, req Request, callback StreamCallback) (*ChatResponse, error)
}
