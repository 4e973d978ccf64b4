// ABOUTME: JSON Schema rendering of tool parameter lists for client-side discovery.
// ABOUTME: Produces the same inputSchema shape MCP clients expect from tools/list.

package tools

import "encoding/json"

// PropertySchema is the JSON Schema fragment for one parameter.
type PropertySchema struct {
	Type        ParamType `json:"type"`
	Description string    `json:"description,omitempty"`
}

// InputSchema is the object schema for a tool's arguments.
type InputSchema struct {
	Type       string                    `json:"type"`
	Properties map[string]PropertySchema `json:"properties"`
	Required   []string                  `json:"required,omitempty"`
}

// Info is the discovery view of a tool.
type Info struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema InputSchema `json:"inputSchema"`
}

// Schema builds the input schema for the definition's parameters.
func (d *ToolDefinition) Schema() InputSchema {
	s := InputSchema{
		Type:       "object",
		Properties: make(map[string]PropertySchema, len(d.Parameters)),
	}
	for _, p := range d.Parameters {
		s.Properties[p.Name] = PropertySchema{Type: p.Type, Description: p.Description}
		if p.Required {
			s.Required = append(s.Required, p.Name)
		}
	}
	return s
}

// SchemaJSON returns the input schema encoded as JSON.
func (d *ToolDefinition) SchemaJSON() json.RawMessage {
	data, err := json.Marshal(d.Schema())
	if err != nil {
		// Schema contains only strings and maps of strings.
		return json.RawMessage(`{"type":"object"}`)
	}
	return data
}

// Info returns the discovery view of the definition.
func (d *ToolDefinition) Info() Info {
	return Info{
		Name:        d.Name,
		Description: d.Description,
		InputSchema: d.Schema(),
	}
}

// Catalog returns the discovery view of every tool, in registration order.
func (r *Registry) Catalog() []Info {
	defs := r.List()
	out := make([]Info, len(defs))
	for i, d := range defs {
		out[i] = d.Info()
	}
	return out
}
