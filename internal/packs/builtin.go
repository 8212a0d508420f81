// ABOUTME: Built-in tool types for tools that execute in-process.
// ABOUTME: A pack groups tools under an ID; handlers return text for the model.

package packs

import (
	"context"
	"encoding/json"
	"time"
)

// ToolHandler executes a built-in tool. Input is the validated JSON argument
// object. The returned text is fed back to the model verbatim.
type ToolHandler func(ctx context.Context, input json.RawMessage) (string, error)

// ToolDefinition describes a tool to the model.
type ToolDefinition struct {
	Name            string
	Description     string
	InputSchemaJSON string

	// TimeoutSeconds overrides the router default when positive.
	TimeoutSeconds int
}

// BuiltinTool represents a tool that executes in the gateway process.
type BuiltinTool struct {
	Definition ToolDefinition
	Handler    ToolHandler
}

// BuiltinPack is a collection of built-in tools with a pack ID.
type BuiltinPack struct {
	ID    string
	Tools []*BuiltinTool
}

// builtinEntry stores a builtin tool with its pack ID and parsed schema.
type builtinEntry struct {
	Tool   *BuiltinTool
	PackID string
	Schema *Schema
}

func (e *builtinEntry) timeout(fallback time.Duration) time.Duration {
	if s := e.Tool.Definition.TimeoutSeconds; s > 0 {
		return time.Duration(s) * time.Second
	}
	return fallback
}
