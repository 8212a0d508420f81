// ABOUTME: Routes model tool calls to built-in handlers.
// ABOUTME: Validates arguments, applies per-tool timeouts, and converts every failure into text.

package packs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/2389/missionlink-gateway/internal/llm"
)

// ErrUnknownTool indicates the requested tool is not registered.
var ErrUnknownTool = errors.New("unknown tool")

// ErrToolTimeout indicates a handler did not finish within its timeout.
var ErrToolTimeout = errors.New("tool timed out")

// ErrToolPanic indicates a handler panicked.
var ErrToolPanic = errors.New("tool panicked")

// DefaultTimeout is the default timeout for tool execution.
const DefaultTimeout = 10 * time.Second

// Invocation is the outcome of one tool call. Result is always set and is
// what the model sees; Err classifies failures for logs and audit.
type Invocation struct {
	ID        string
	Name      string
	Arguments string
	Result    string
	Err       error
	Duration  time.Duration
}

// Failed reports whether the call produced an error result.
func (i *Invocation) Failed() bool {
	return i.Err != nil
}

// Router executes tool calls against a Registry.
type Router struct {
	registry *Registry
	logger   *slog.Logger
	timeout  time.Duration
}

// RouterConfig contains configuration options for the Router.
type RouterConfig struct {
	Registry *Registry
	Logger   *slog.Logger
	Timeout  time.Duration
}

// NewRouter creates a new Router with the given configuration.
func NewRouter(cfg RouterConfig) *Router {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Router{
		registry: cfg.Registry,
		logger:   logger.With("component", "tool_router"),
		timeout:  timeout,
	}
}

// Definitions returns the tool definitions offered to the model.
func (r *Router) Definitions() []llm.ToolDefinition {
	return r.registry.Definitions()
}

// Execute runs one tool call. It never returns a Go error: unknown tools,
// invalid arguments, timeouts, handler errors and panics all become an
// Invocation with an "Error: ..." result. Calls are not retried.
func (r *Router) Execute(ctx context.Context, call llm.ToolCall) *Invocation {
	start := time.Now()
	inv := &Invocation{ID: call.ID, Name: call.Name, Arguments: call.Arguments}
	defer func() { inv.Duration = time.Since(start) }()

	entry := r.registry.lookup(call.Name)
	if entry == nil {
		r.logger.Warn("model called unknown tool", "tool_name", call.Name, "request_id", call.ID)
		inv.Err = fmt.Errorf("%w: %s", ErrUnknownTool, call.Name)
		inv.Result = fmt.Sprintf("Error: unknown tool %q. Available tools: %s.",
			call.Name, strings.Join(r.registry.ToolNames(), ", "))
		return inv
	}

	input := json.RawMessage(call.Arguments)
	if strings.TrimSpace(call.Arguments) == "" {
		input = json.RawMessage("{}")
	}
	if err := entry.Schema.Validate(input); err != nil {
		r.logger.Warn("invalid tool arguments",
			"tool_name", call.Name,
			"request_id", call.ID,
			"error", err,
		)
		inv.Err = err
		inv.Result = fmt.Sprintf("Error: invalid arguments for %s: %s", call.Name, strings.TrimPrefix(err.Error(), ErrInvalidToolArgs.Error()+": "))
		return inv
	}

	timeout := entry.timeout(r.timeout)
	r.logger.Info("→ dispatching to builtin",
		"tool_name", call.Name,
		"pack_id", entry.PackID,
		"request_id", call.ID,
	)

	text, err := r.run(ctx, entry, input, timeout)
	switch {
	case errors.Is(err, ErrToolTimeout):
		r.logger.Warn("tool call timed out", "tool_name", call.Name, "request_id", call.ID, "timeout", timeout)
		inv.Err = err
		inv.Result = fmt.Sprintf("Error: %s timed out after %s.", call.Name, timeout)
	case errors.Is(err, context.Canceled):
		inv.Err = err
		inv.Result = fmt.Sprintf("Error: %s was cancelled.", call.Name)
	case errors.Is(err, ErrToolPanic):
		r.logger.Error("tool handler panicked", "tool_name", call.Name, "request_id", call.ID, "error", err)
		inv.Err = err
		inv.Result = fmt.Sprintf("Error: %s failed unexpectedly.", call.Name)
	case err != nil:
		r.logger.Warn("builtin tool error", "tool_name", call.Name, "request_id", call.ID, "error", err)
		inv.Err = err
		inv.Result = fmt.Sprintf("Error: %s failed: %v", call.Name, err)
	default:
		r.logger.Info("← builtin responded", "tool_name", call.Name, "request_id", call.ID)
		inv.Result = text
	}
	return inv
}

type outcome struct {
	text string
	err  error
}

// run executes the handler under a timeout. A handler that ignores its
// context is abandoned when the timeout fires; its goroutine finishes on its own.
func (r *Router) run(parent context.Context, entry *builtinEntry, input json.RawMessage, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- outcome{err: fmt.Errorf("%w: %v", ErrToolPanic, p)}
			}
		}()
		text, err := entry.Tool.Handler(ctx, input)
		done <- outcome{text: text, err: err}
	}()

	select {
	case o := <-done:
		if o.err != nil && errors.Is(o.err, context.DeadlineExceeded) && parent.Err() == nil {
			return "", fmt.Errorf("%w: %w", ErrToolTimeout, o.err)
		}
		return o.text, o.err
	case <-ctx.Done():
		if err := parent.Err(); err != nil {
			return "", err
		}
		return "", ErrToolTimeout
	}
}
