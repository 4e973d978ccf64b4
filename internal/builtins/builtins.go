// ABOUTME: Registers the built-in tool set on a registry at startup.
// ABOUTME: Holds the simple tools (get_hello, get_data, list_tools) and the shared Deps.

package builtins

import (
	"context"
	"fmt"
	"time"

	"github.com/2389/toolgate/internal/store"
	"github.com/2389/toolgate/internal/tools"
)

// StatsSource reports audit counters. *store.SQLiteStore satisfies it.
type StatsSource interface {
	InvocationStats(ctx context.Context) (*store.InvocationStats, error)
}

// Deps carries the runtime state some tools report on. Every field is optional.
type Deps struct {
	ServiceName string
	Version     string
	StartedAt   time.Time
	Sessions    func() int  // live SSE sessions
	Stats       StatsSource // nil when no database is configured
}

func (d Deps) withDefaults() Deps {
	if d.ServiceName == "" {
		d.ServiceName = "toolgate"
	}
	if d.Version == "" {
		d.Version = "dev"
	}
	if d.StartedAt.IsZero() {
		d.StartedAt = time.Now()
	}
	return d
}

// Register adds every built-in tool to reg in catalog order.
func Register(reg *tools.Registry, deps Deps) error {
	deps = deps.withDefaults()
	sys := &systemInfo{deps: deps}

	defs := []tools.ToolDefinition{
		{
			Name:        "get_hello",
			Description: "Returns a simple hello greeting from the server",
			Handler: func(context.Context, tools.Args) (any, error) {
				return fmt.Sprintf("Hello from %s! Ready to process your requests.", deps.ServiceName), nil
			},
		},
		{
			Name:        "get_data",
			Description: "Retrieves data based on the provided query parameters",
			Parameters: []tools.ParameterSpec{
				{Name: "dataType", Type: tools.TypeString, Required: true, Description: "The type of data to retrieve"},
				{Name: "filter", Type: tools.TypeString, Description: "Optional filter criteria"},
			},
			Handler: getData,
		},
		{
			Name:        "process_text",
			Description: "Processes text according to the specified operation (uppercase, lowercase, reverse, word_count, markdown, digest)",
			Parameters: []tools.ParameterSpec{
				{Name: "content", Type: tools.TypeString, Required: true, Description: "The text content to process"},
				{Name: "operation", Type: tools.TypeString, Required: true, Description: "The type of processing to perform"},
			},
			Handler: processText,
		},
		{
			Name:        "calculate",
			Description: "Performs calculations based on provided numbers and operation",
			Parameters: []tools.ParameterSpec{
				{Name: "num1", Type: tools.TypeNumber, Required: true, Description: "First number for calculation"},
				{Name: "num2", Type: tools.TypeNumber, Required: true, Description: "Second number for calculation"},
				{Name: "operation", Type: tools.TypeString, Required: true, Description: "Operation to perform (add, subtract, multiply, divide)"},
			},
			Handler: calculate,
		},
		{
			Name:        "get_system_info",
			Description: "Retrieves system information and status (status, runtime, uptime, sessions, invocations)",
			Parameters: []tools.ParameterSpec{
				{Name: "infoType", Type: tools.TypeString, Required: true, Description: "Type of system information to retrieve"},
			},
			Handler: sys.handle,
		},
		{
			Name:        "validate_data",
			Description: "Validates data according to comma-separated rules (required, json, yaml, email, max_length=N, min_length=N)",
			Parameters: []tools.ParameterSpec{
				{Name: "data", Type: tools.TypeString, Required: true, Description: "The data to validate"},
				{Name: "rules", Type: tools.TypeString, Required: true, Description: "The validation rules to apply"},
			},
			Handler: validateData,
		},
		{
			Name:        "list_tools",
			Description: "Lists all available tools and their descriptions",
			Handler: func(context.Context, tools.Args) (any, error) {
				return reg.Catalog(), nil
			},
		},
	}

	for _, def := range defs {
		if err := reg.Register(def); err != nil {
			return fmt.Errorf("registering builtin %s: %w", def.Name, err)
		}
	}
	return nil
}

func getData(_ context.Context, args tools.Args) (any, error) {
	filter := "none"
	if args.Has("filter") && args.String("filter") != "" {
		filter = args.String("filter")
	}
	return fmt.Sprintf("Data response for type: %s, filter: %s", args.String("dataType"), filter), nil
}
