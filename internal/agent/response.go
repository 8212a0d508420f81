// ABOUTME: Events emitted by the orchestration loop while a conversation runs.
// ABOUTME: The gateway turns these into SSE frames; the loop never writes to the wire itself.

package agent

// Response represents one event from a running conversation.
type Response struct {
	Event      ResponseEvent
	Text       string
	ToolUse    *ToolUseEvent
	ToolResult *ToolResultEvent
	Error      string
	Done       bool
	Status     Status // For EventDone and EventError
}

// ResponseEvent indicates the type of response event.
type ResponseEvent int

const (
	EventText ResponseEvent = iota
	EventToolUse
	EventToolResult
	EventDone
	EventError
)

func (e ResponseEvent) String() string {
	switch e {
	case EventText:
		return "text"
	case EventToolUse:
		return "tool_use"
	case EventToolResult:
		return "tool_result"
	case EventDone:
		return "done"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// ToolUseEvent represents a tool call requested by the model.
type ToolUseEvent struct {
	ID        string
	Name      string
	InputJSON string
}

// ToolResultEvent represents the text a tool returned to the model.
type ToolResultEvent struct {
	ID      string
	Name    string
	Output  string
	IsError bool
}

// Emitter receives events in order. Implementations must not block for long;
// the loop calls it inline.
type Emitter func(*Response)

func (e Emitter) emit(r *Response) {
	if e != nil {
		e(r)
	}
}

func textResponse(text string) *Response {
	return &Response{Event: EventText, Text: text}
}

func doneResponse(full string, status Status) *Response {
	return &Response{Event: EventDone, Text: full, Done: true, Status: status}
}

func errorResponse(msg string) *Response {
	return &Response{Event: EventError, Error: msg, Done: true, Status: StatusError}
}
