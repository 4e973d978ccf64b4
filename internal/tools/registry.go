// ABOUTME: Registry of tool definitions exposed to MCP clients.
// ABOUTME: Populated once at startup, frozen, then read concurrently by every transport.

package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrDuplicateTool indicates a tool with the same name is already registered.
var ErrDuplicateTool = errors.New("duplicate tool")

// ErrUnknownTool indicates the requested tool is not registered.
var ErrUnknownTool = errors.New("unknown tool")

// ErrInvalidDefinition indicates a tool definition failed validation.
var ErrInvalidDefinition = errors.New("invalid tool definition")

// ErrRegistryFrozen indicates registration was attempted after startup completed.
var ErrRegistryFrozen = errors.New("registry is frozen")

// ParamType is the declared type of a tool parameter.
type ParamType string

const (
	TypeString  ParamType = "string"
	TypeNumber  ParamType = "number"
	TypeBoolean ParamType = "boolean"
	TypeObject  ParamType = "object"
)

// Valid reports whether t is one of the supported parameter types.
func (t ParamType) Valid() bool {
	switch t {
	case TypeString, TypeNumber, TypeBoolean, TypeObject:
		return true
	}
	return false
}

// Handler executes a tool with its bound arguments.
// The context carries the per-call deadline; handlers doing slow work should honor it.
type Handler func(ctx context.Context, args Args) (any, error)

// ParameterSpec describes one named tool parameter.
type ParameterSpec struct {
	Name        string
	Type        ParamType
	Required    bool
	Description string
}

// ToolDefinition describes a callable tool.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  []ParameterSpec
	Handler     Handler

	// Timeout overrides the dispatcher's default handler deadline when non-zero.
	Timeout time.Duration
}

// Parameter returns the spec for the named parameter, or nil.
func (d *ToolDefinition) Parameter(name string) *ParameterSpec {
	for i := range d.Parameters {
		if d.Parameters[i].Name == name {
			return &d.Parameters[i]
		}
	}
	return nil
}

// clone returns a copy that shares nothing mutable with d.
func (d *ToolDefinition) clone() *ToolDefinition {
	c := *d
	c.Parameters = append([]ParameterSpec(nil), d.Parameters...)
	return &c
}

func (d *ToolDefinition) validate() error {
	if d.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidDefinition)
	}
	if d.Handler == nil {
		return fmt.Errorf("%w: tool '%s' has no handler", ErrInvalidDefinition, d.Name)
	}
	seen := make(map[string]struct{}, len(d.Parameters))
	for _, p := range d.Parameters {
		if p.Name == "" {
			return fmt.Errorf("%w: tool '%s' has an unnamed parameter", ErrInvalidDefinition, d.Name)
		}
		if !p.Type.Valid() {
			return fmt.Errorf("%w: parameter '%s' of tool '%s' has unsupported type %q",
				ErrInvalidDefinition, p.Name, d.Name, p.Type)
		}
		if _, dup := seen[p.Name]; dup {
			return fmt.Errorf("%w: parameter '%s' declared twice on tool '%s'",
				ErrInvalidDefinition, p.Name, d.Name)
		}
		seen[p.Name] = struct{}{}
	}
	return nil
}

// Registry holds the tool catalog.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]*ToolDefinition
	order  []*ToolDefinition
	frozen bool
	logger *slog.Logger
}

// NewRegistry creates an empty Registry. Pass nil logger for default.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		tools:  make(map[string]*ToolDefinition),
		logger: logger,
	}
}

// Register validates and stores a tool definition.
// The definition is copied; later changes by the caller are not observed.
func (r *Registry) Register(def ToolDefinition) error {
	if err := def.validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return fmt.Errorf("%w: cannot register '%s'", ErrRegistryFrozen, def.Name)
	}
	if _, exists := r.tools[def.Name]; exists {
		return fmt.Errorf("%w: tool '%s' already registered", ErrDuplicateTool, def.Name)
	}

	stored := def.clone()
	r.tools[def.Name] = stored
	r.order = append(r.order, stored)

	r.logger.Debug("tool registered",
		"tool_name", def.Name,
		"param_count", len(def.Parameters),
		"total_tools", len(r.order),
	)
	return nil
}

// MustRegister is Register for startup code where a failure is a programming error.
func (r *Registry) MustRegister(def ToolDefinition) {
	if err := r.Register(def); err != nil {
		panic(err)
	}
}

// Freeze makes the registry read-only. Safe to call multiple times.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.frozen {
		r.frozen = true
		r.logger.Info("tool registry frozen", "tool_count", len(r.order))
	}
}

// Frozen reports whether Freeze has been called.
func (r *Registry) Frozen() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.frozen
}

// Lookup returns a copy of the definition registered under name.
func (r *Registry) Lookup(name string) (*ToolDefinition, error) {
	r.mu.RLock()
	def, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: '%s'", ErrUnknownTool, name)
	}
	return def.clone(), nil
}

// List returns copies of all definitions in registration order.
func (r *Registry) List() []*ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*ToolDefinition, len(r.order))
	for i, def := range r.order {
		out[i] = def.clone()
	}
	return out
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
