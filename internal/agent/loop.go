// ABOUTME: Orchestration loop driving the bounded model/tool conversation.
// ABOUTME: Streams model text, runs requested tools concurrently, and feeds results back until done or capped.

package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/2389/missionlink-gateway/internal/llm"
	"github.com/2389/missionlink-gateway/internal/packs"
)

// DefaultStepCap is the maximum number of model calls per conversation.
const DefaultStepCap = 5

// DefaultMaxParallel bounds concurrent tool calls within one step.
const DefaultMaxParallel = 4

// TruncatedFallback is sent when the step cap is reached before the model
// produced any text.
const TruncatedFallback = "I couldn't finish looking that up. Please try asking again in a simpler way."

// ProviderFailureMessage is the caller-visible text for model failures.
const ProviderFailureMessage = "The assistant is unavailable right now. Please try again."

// ErrStepLimit is recorded on results that stopped at the step cap.
var ErrStepLimit = errors.New("step limit reached")

// State is the loop's position in a conversation.
type State int

const (
	StateAwaitingModel State = iota
	StateModelResponded
	StateToolsPending
	StateDone
)

func (s State) String() string {
	switch s {
	case StateAwaitingModel:
		return "AWAITING_MODEL"
	case StateModelResponded:
		return "MODEL_RESPONDED"
	case StateToolsPending:
		return "TOOLS_PENDING"
	case StateDone:
		return "DONE"
	default:
		return "UNKNOWN"
	}
}

// Status is the outcome recorded for a finished conversation.
type Status string

const (
	StatusSuccess   Status = "success"
	StatusTruncated Status = "truncated"
	StatusError     Status = "error"
)

// ToolRouter executes tool calls. *packs.Router implements it.
type ToolRouter interface {
	Definitions() []llm.ToolDefinition
	Execute(ctx context.Context, call llm.ToolCall) *packs.Invocation
}

// Step is one model round trip plus the tools it requested.
type Step struct {
	Index       int
	Text        string
	Invocations []*packs.Invocation
}

// Request is one conversation to run.
type Request struct {
	ID           string // generated when empty
	SystemPrompt string
	Messages     []llm.Message
}

// Result summarizes a finished conversation. Text is the concatenation of
// every EventText emitted.
type Result struct {
	RequestID   string
	Text        string
	Steps       []Step
	Status      Status
	ToolsCalled []string
	Usage       llm.Usage
	State       State
	Err         error
	Duration    time.Duration
}

// Config contains configuration options for the Loop.
type Config struct {
	Client      llm.Client
	Tools       ToolRouter
	Model       string
	MaxTokens   int
	StepCap     int
	MaxParallel int
	Logger      *slog.Logger
}

// Loop runs conversations. It holds no per-request state and is safe for
// concurrent use.
type Loop struct {
	client      llm.Client
	tools       ToolRouter
	model       string
	maxTokens   int
	stepCap     int
	maxParallel int
	logger      *slog.Logger
}

// NewLoop creates a Loop with the given configuration.
func NewLoop(cfg Config) *Loop {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	stepCap := cfg.StepCap
	if stepCap <= 0 {
		stepCap = DefaultStepCap
	}
	maxParallel := cfg.MaxParallel
	if maxParallel <= 0 {
		maxParallel = DefaultMaxParallel
	}
	return &Loop{
		client:      cfg.Client,
		tools:       cfg.Tools,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		stepCap:     stepCap,
		maxParallel: maxParallel,
		logger:      logger.With("component", "agent_loop"),
	}
}

// run is the per-request state. It is never shared between requests.
type run struct {
	loop    *Loop
	emit    Emitter
	logger  *slog.Logger
	text    strings.Builder
	result  *Result
	history []llm.Message
}

func (r *run) transition(s State) {
	r.logger.Debug("loop state", "from", r.result.State, "to", s, "step", len(r.result.Steps))
	r.result.State = s
}

func (r *run) stream(token string) {
	if token == "" {
		return
	}
	r.text.WriteString(token)
	r.emit.emit(textResponse(token))
}

// Run drives one conversation to completion. It always returns a non-nil
// Result, also on error, so callers can audit partial output. The returned
// error is the provider or context error that ended the run; hitting the
// step cap is not an error.
func (l *Loop) Run(ctx context.Context, req Request, emit Emitter) (*Result, error) {
	start := time.Now()
	id := req.ID
	if id == "" {
		id = uuid.New().String()
	}

	r := &run{
		loop:    l,
		emit:    emit,
		logger:  l.logger.With("request_id", id),
		result:  &Result{RequestID: id, State: StateAwaitingModel},
		history: initialHistory(req),
	}
	defer func() {
		r.result.Text = r.text.String()
		r.result.Duration = time.Since(start)
	}()

	r.logger.Info("=== CONVERSATION STARTED ===", "messages", len(req.Messages), "step_cap", l.stepCap)

	tools := l.tools.Definitions()
	for idx := 0; idx < l.stepCap; idx++ {
		r.transition(StateAwaitingModel)
		resp, err := l.client.ChatStream(ctx, llm.Request{
			Model:     l.model,
			Messages:  slices.Clone(r.history),
			Tools:     tools,
			MaxTokens: l.maxTokens,
		}, r.stream)
		if err != nil {
			return r.fail(ctx, err)
		}
		r.result.Usage.Add(resp.Usage)
		r.transition(StateModelResponded)

		step := Step{Index: idx, Text: resp.Content}
		if len(resp.ToolCalls) == 0 {
			r.result.Steps = append(r.result.Steps, step)
			return r.finish(StatusSuccess), nil
		}

		r.transition(StateToolsPending)
		ensureCallIDs(resp.ToolCalls)
		r.history = append(r.history, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})
		step.Invocations = r.runTools(ctx, resp.ToolCalls)
		r.result.Steps = append(r.result.Steps, step)

		if err := ctx.Err(); err != nil {
			return r.fail(ctx, err)
		}
	}

	r.logger.Warn("step cap reached", "step_cap", l.stepCap, "tools_called", len(r.result.ToolsCalled))
	r.result.Err = fmt.Errorf("%w (%d)", ErrStepLimit, l.stepCap)
	if strings.TrimSpace(r.text.String()) == "" {
		r.stream(TruncatedFallback)
	}
	return r.finish(StatusTruncated), nil
}

// runTools announces, executes and records every call of one step, then
// folds the results into history in call order.
func (r *run) runTools(ctx context.Context, calls []llm.ToolCall) []*packs.Invocation {
	for i := range calls {
		r.emit.emit(&Response{Event: EventToolUse, ToolUse: &ToolUseEvent{
			ID:        calls[i].ID,
			Name:      calls[i].Name,
			InputJSON: calls[i].Arguments,
		}})
	}

	invocations := executeAll(ctx, r.loop.tools, calls, r.loop.maxParallel)

	for _, inv := range invocations {
		r.result.ToolsCalled = append(r.result.ToolsCalled, inv.Name)
		r.emit.emit(&Response{Event: EventToolResult, ToolResult: &ToolResultEvent{
			ID:      inv.ID,
			Name:    inv.Name,
			Output:  inv.Result,
			IsError: inv.Failed(),
		}})
		r.history = append(r.history, llm.Message{
			Role:       llm.RoleTool,
			Content:    inv.Result,
			ToolCallID: inv.ID,
			Name:       inv.Name,
		})
	}
	return invocations
}

func (r *run) finish(status Status) *Result {
	r.transition(StateDone)
	r.result.Status = status
	full := r.text.String()
	r.emit.emit(doneResponse(full, status))
	r.logger.Info("=== CONVERSATION FINISHED ===",
		"status", status,
		"steps", len(r.result.Steps),
		"tools_called", r.result.ToolsCalled,
		"input_tokens", r.result.Usage.InputTokens,
		"output_tokens", r.result.Usage.OutputTokens,
	)
	return r.result
}

func (r *run) fail(ctx context.Context, err error) (*Result, error) {
	r.transition(StateDone)
	r.result.Status = StatusError
	r.result.Err = err

	if ctx.Err() != nil {
		r.logger.Info("conversation cancelled", "steps", len(r.result.Steps), "error", err)
		r.emit.emit(errorResponse("request cancelled"))
		return r.result, err
	}

	r.logger.Error("model call failed", "steps", len(r.result.Steps), "error", err)
	r.emit.emit(errorResponse(ProviderFailureMessage))
	return r.result, err
}

// ensureCallIDs gives every call an ID so tool results can reference it.
func ensureCallIDs(calls []llm.ToolCall) {
	for i := range calls {
		if calls[i].ID == "" {
			calls[i].ID = "call_" + uuid.New().String()
		}
	}
}

func initialHistory(req Request) []llm.Message {
	history := make([]llm.Message, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		history = append(history, llm.Message{Role: llm.RoleSystem, Content: req.SystemPrompt})
	}
	return append(history, req.Messages...)
}
