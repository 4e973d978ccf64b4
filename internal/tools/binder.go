// ABOUTME: Parameter binder that validates and coerces raw invocation arguments.
// ABOUTME: Single enforcement point for tool input contracts, shared by all transports.

package tools

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"google.golang.org/protobuf/types/known/structpb"
)

// MissingParameterError reports a required parameter absent from the arguments.
type MissingParameterError struct {
	Param string
}

func (e *MissingParameterError) Error() string {
	return fmt.Sprintf("missing required parameter '%s'", e.Param)
}

// TypeMismatchError reports an argument that cannot be coerced to its declared type.
type TypeMismatchError struct {
	Param    string
	Expected ParamType
	Actual   any
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("parameter '%s' expects %s, got %s", e.Param, e.Expected, describeValue(e.Actual))
}

// Bind validates raw against the definition's parameters and returns the coerced bundle.
// Parameters are checked in declaration order. Keys with no matching parameter are ignored.
// A JSON null counts as absent.
func Bind(def *ToolDefinition, raw map[string]any) (Args, error) {
	values := make(map[string]any, len(def.Parameters))
	for _, p := range def.Parameters {
		v, present := raw[p.Name]
		if !present || v == nil {
			if p.Required {
				return Args{}, &MissingParameterError{Param: p.Name}
			}
			continue
		}
		coerced, ok := coerce(p.Type, v)
		if !ok {
			return Args{}, &TypeMismatchError{Param: p.Name, Expected: p.Type, Actual: v}
		}
		values[p.Name] = coerced
	}
	return Args{values: values}, nil
}

func coerce(t ParamType, v any) (any, bool) {
	switch t {
	case TypeString:
		return coerceString(v)
	case TypeNumber:
		return coerceNumber(v)
	case TypeBoolean:
		return coerceBool(v)
	case TypeObject:
		return coerceObject(v)
	}
	return nil, false
}

func coerceString(v any) (any, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case bool:
		return strconv.FormatBool(x), true
	case json.Number:
		return x.String(), true
	}
	if f, ok := numberValue(v); ok {
		return strconv.FormatFloat(f, 'f', -1, 64), true
	}
	return nil, false
}

func coerceNumber(v any) (any, bool) {
	var f float64
	switch x := v.(type) {
	case string:
		parsed, err := strconv.ParseFloat(x, 64)
		if err != nil {
			return nil, false
		}
		f = parsed
	case json.Number:
		parsed, err := x.Float64()
		if err != nil {
			return nil, false
		}
		f = parsed
	default:
		n, ok := numberValue(v)
		if !ok {
			return nil, false
		}
		f = n
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, false
	}
	return f, true
}

func coerceBool(v any) (any, bool) {
	switch x := v.(type) {
	case bool:
		return x, true
	case string:
		b, err := strconv.ParseBool(x)
		if err != nil {
			return nil, false
		}
		return b, true
	}
	return nil, false
}

// coerceObject normalizes an object through structpb so handlers receive a
// JSON-shaped deep copy that does not alias the caller's map.
func coerceObject(v any) (any, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, false
	}
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, false
	}
	return s.AsMap(), true
}

func numberValue(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int8:
		return float64(x), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint8:
		return float64(x), true
	case uint16:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	}
	return 0, false
}

func describeValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return fmt.Sprintf("string %q", x)
	case bool:
		return fmt.Sprintf("boolean %t", x)
	case map[string]any:
		return "object"
	case []any:
		return "array"
	}
	if f, ok := numberValue(v); ok {
		return "number " + strconv.FormatFloat(f, 'g', -1, 64)
	}
	return fmt.Sprintf("%T", v)
}
