// ABOUTME: Typed argument bundle handed to tool handlers after binding.
// ABOUTME: Values are already coerced, so accessors never fail on bound parameters.

package tools

// Args holds coerced arguments keyed by parameter name.
// Only declared parameters that were present in the request are included.
type Args struct {
	values map[string]any
}

// NewArgs builds a bundle directly, bypassing Bind. Intended for tests and
// for tools invoked internally with trusted values.
func NewArgs(values map[string]any) Args {
	cp := make(map[string]any, len(values))
	for k, v := range values {
		cp[k] = v
	}
	return Args{values: cp}
}

// Has reports whether the named argument was supplied.
func (a Args) Has(name string) bool {
	_, ok := a.values[name]
	return ok
}

// String returns the named string argument, or "" when absent.
func (a Args) String(name string) string {
	s, _ := a.values[name].(string)
	return s
}

// Number returns the named number argument, or 0 when absent.
func (a Args) Number(name string) float64 {
	f, _ := a.values[name].(float64)
	return f
}

// Bool returns the named boolean argument, or false when absent.
func (a Args) Bool(name string) bool {
	b, _ := a.values[name].(bool)
	return b
}

// Object returns the named object argument, or nil when absent.
func (a Args) Object(name string) map[string]any {
	m, _ := a.values[name].(map[string]any)
	return m
}

// Len returns the number of bound arguments.
func (a Args) Len() int {
	return len(a.values)
}
