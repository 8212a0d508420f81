// ABOUTME: Thread-safe registry for built-in tool packs.
// ABOUTME: Rejects name collisions and freezes after startup so requests see a fixed tool set.

package packs

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/2389/missionlink-gateway/internal/llm"
)

// ErrToolCollision indicates a tool name already exists in another pack.
var ErrToolCollision = errors.New("tool name collision")

// ErrRegistryFrozen indicates a registration attempt after Freeze.
var ErrRegistryFrozen = errors.New("registry is frozen")

// Registry maintains the registered tools.
type Registry struct {
	mu       sync.RWMutex
	builtins map[string]*builtinEntry // tool name -> entry
	order    []string                 // registration order, for stable definitions
	frozen   bool
	logger   *slog.Logger
}

// NewRegistry creates a new Registry instance.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		builtins: make(map[string]*builtinEntry),
		logger:   logger,
	}
}

// RegisterBuiltinPack registers a pack of built-in tools.
// Returns ErrToolCollision if any tool name is taken, and an error if any
// tool schema does not parse. On error nothing from the pack is registered.
func (r *Registry) RegisterBuiltinPack(pack *BuiltinPack) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return ErrRegistryFrozen
	}

	schemas := make([]*Schema, len(pack.Tools))
	seen := make(map[string]bool, len(pack.Tools))
	for i, tool := range pack.Tools {
		name := tool.Definition.Name
		if name == "" {
			return fmt.Errorf("pack %s: tool %d has no name", pack.ID, i)
		}
		if tool.Handler == nil {
			return fmt.Errorf("pack %s: tool %s has no handler", pack.ID, name)
		}
		if existing, exists := r.builtins[name]; exists {
			return fmt.Errorf("%w: tool '%s' already registered by pack '%s'", ErrToolCollision, name, existing.PackID)
		}
		if seen[name] {
			return fmt.Errorf("%w: tool '%s' declared twice in pack '%s'", ErrToolCollision, name, pack.ID)
		}
		seen[name] = true

		schema, err := ParseSchema(tool.Definition.InputSchemaJSON)
		if err != nil {
			return fmt.Errorf("pack %s: tool %s: %w", pack.ID, name, err)
		}
		schemas[i] = schema
	}

	for i, tool := range pack.Tools {
		name := tool.Definition.Name
		r.builtins[name] = &builtinEntry{Tool: tool, PackID: pack.ID, Schema: schemas[i]}
		r.order = append(r.order, name)
	}

	r.logger.Info("=== BUILTIN PACK REGISTERED ===",
		"pack_id", pack.ID,
		"tool_count", len(pack.Tools),
		"total_tools", len(r.builtins),
	)
	return nil
}

// Freeze prevents further registration.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// lookup returns the entry for a tool name, or nil.
func (r *Registry) lookup(name string) *builtinEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.builtins[name]
}

// IsBuiltin returns true if the tool name is registered.
func (r *Registry) IsBuiltin(name string) bool {
	return r.lookup(name) != nil
}

// ToolNames returns registered tool names in registration order.
func (r *Registry) ToolNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Definitions returns the model-facing definitions in registration order.
func (r *Registry) Definitions() []llm.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]llm.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		def := r.builtins[name].Tool.Definition
		defs = append(defs, llm.ToolDefinition{
			Name:        def.Name,
			Description: def.Description,
			Parameters:  json.RawMessage(def.InputSchemaJSON),
		})
	}
	return defs
}

// BuiltinPackInfo contains information about a registered builtin pack for display.
type BuiltinPackInfo struct {
	ID        string
	ToolNames []string
}

// ListBuiltinPacks returns registered packs in first-registration order.
func (r *Registry) ListBuiltinPacks() []BuiltinPackInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []BuiltinPackInfo
	index := make(map[string]int)
	for _, name := range r.order {
		packID := r.builtins[name].PackID
		i, ok := index[packID]
		if !ok {
			i = len(result)
			index[packID] = i
			result = append(result, BuiltinPackInfo{ID: packID})
		}
		result[i].ToolNames = append(result[i].ToolNames, name)
	}
	return result
}
