// ABOUTME: Tests for the tool registry: registration, lookup, ordering, freezing.
// ABOUTME: Also covers definition validation and schema rendering.

package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopHandler(context.Context, Args) (any, error) { return "ok", nil }

func testTool(name string, params ...ParameterSpec) ToolDefinition {
	return ToolDefinition{
		Name:        name,
		Description: "test tool " + name,
		Parameters:  params,
		Handler:     noopHandler,
	}
}

func TestRegistry_RegisterAndLookup(t *testing.T) {
	reg := NewRegistry(nil)
	require.NoError(t, reg.Register(testTool("echo", ParameterSpec{Name: "msg", Type: TypeString, Required: true})))

	def, err := reg.Lookup("echo")
	require.NoError(t, err)
	assert.Equal(t, "echo", def.Name)
	require.Len(t, def.Parameters, 1)
	assert.Equal(t, "msg", def.Parameters[0].Name)
}

func TestRegistry_DuplicateName(t *testing.T) {
	reg := NewRegistry(nil)
	require.NoError(t, reg.Register(testTool("echo")))

	err := reg.Register(testTool("echo"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateTool))
	assert.Contains(t, err.Error(), "echo")
	assert.Equal(t, 1, reg.Len())
}

func TestRegistry_LookupUnknown(t *testing.T) {
	reg := NewRegistry(nil)

	_, err := reg.Lookup("nope")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownTool)
}

func TestRegistry_ListPreservesRegistrationOrder(t *testing.T) {
	reg := NewRegistry(nil)
	names := []string{"zeta", "alpha", "mid", "beta", "omega"}
	for _, n := range names {
		require.NoError(t, reg.Register(testTool(n)))
	}

	list := reg.List()
	require.Len(t, list, len(names))
	seen := make(map[string]bool)
	for i, def := range list {
		assert.Equal(t, names[i], def.Name)
		assert.False(t, seen[def.Name], "duplicate %s in list", def.Name)
		seen[def.Name] = true
	}
}

func TestRegistry_ListIsACopy(t *testing.T) {
	reg := NewRegistry(nil)
	require.NoError(t, reg.Register(testTool("a")))
	require.NoError(t, reg.Register(testTool("b")))

	list := reg.List()
	list[0] = nil

	again := reg.List()
	require.NotNil(t, again[0])
	assert.Equal(t, "a", again[0].Name)
}

func TestRegistry_Freeze(t *testing.T) {
	reg := NewRegistry(nil)
	require.NoError(t, reg.Register(testTool("before")))
	reg.Freeze()
	reg.Freeze()

	assert.True(t, reg.Frozen())
	err := reg.Register(testTool("after"))
	assert.ErrorIs(t, err, ErrRegistryFrozen)

	_, err = reg.Lookup("before")
	assert.NoError(t, err)
}

func TestRegistry_DefinitionIsCopied(t *testing.T) {
	reg := NewRegistry(nil)
	params := []ParameterSpec{{Name: "x", Type: TypeNumber}}
	def := testTool("calc", params...)
	require.NoError(t, reg.Register(def))

	def.Parameters[0].Name = "mutated"

	stored, err := reg.Lookup("calc")
	require.NoError(t, err)
	assert.Equal(t, "x", stored.Parameters[0].Name)
}

func TestRegistry_ReturnedDefinitionsAreCopies(t *testing.T) {
	reg := NewRegistry(nil)
	require.NoError(t, reg.Register(testTool("calc", ParameterSpec{Name: "x", Type: TypeNumber, Required: true})))
	reg.Freeze()

	looked, err := reg.Lookup("calc")
	require.NoError(t, err)
	looked.Parameters[0].Required = false
	looked.Parameters = append(looked.Parameters, ParameterSpec{Name: "extra", Type: TypeString})
	looked.Timeout = time.Hour
	looked.Handler = nil

	listed := reg.List()
	listed[0].Parameters[0].Type = TypeString
	listed[0].Description = "changed"

	stored, err := reg.Lookup("calc")
	require.NoError(t, err)
	require.Len(t, stored.Parameters, 1)
	assert.Equal(t, ParameterSpec{Name: "x", Type: TypeNumber, Required: true}, stored.Parameters[0])
	assert.Zero(t, stored.Timeout)
	assert.NotNil(t, stored.Handler)
	assert.NotEqual(t, "changed", stored.Description)
}

func TestRegistry_InvalidDefinitions(t *testing.T) {
	tests := []struct {
		name string
		def  ToolDefinition
	}{
		{"empty name", ToolDefinition{Handler: noopHandler}},
		{"nil handler", ToolDefinition{Name: "x"}},
		{"unnamed parameter", testTool("x", ParameterSpec{Type: TypeString})},
		{"bad type", testTool("x", ParameterSpec{Name: "a", Type: "array"})},
		{"duplicate parameter", testTool("x",
			ParameterSpec{Name: "a", Type: TypeString},
			ParameterSpec{Name: "a", Type: TypeNumber},
		)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := NewRegistry(nil)
			err := reg.Register(tt.def)
			assert.ErrorIs(t, err, ErrInvalidDefinition)
			assert.Equal(t, 0, reg.Len())
		})
	}
}

func TestRegistry_MustRegisterPanicsOnDuplicate(t *testing.T) {
	reg := NewRegistry(nil)
	reg.MustRegister(testTool("once"))
	assert.Panics(t, func() { reg.MustRegister(testTool("once")) })
}

func TestRegistry_ConcurrentLookup(t *testing.T) {
	reg := NewRegistry(nil)
	for i := 0; i < 20; i++ {
		require.NoError(t, reg.Register(testTool(fmt.Sprintf("tool-%d", i))))
	}
	reg.Freeze()

	done := make(chan struct{})
	for g := 0; g < 8; g++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for i := 0; i < 200; i++ {
				_, _ = reg.Lookup(fmt.Sprintf("tool-%d", i%20))
				_ = reg.List()
			}
		}()
	}
	for g := 0; g < 8; g++ {
		<-done
	}
}

func TestDefinition_Schema(t *testing.T) {
	def := testTool("get_data",
		ParameterSpec{Name: "dataType", Type: TypeString, Required: true, Description: "The type of data"},
		ParameterSpec{Name: "filter", Type: TypeString, Description: "Optional filter"},
	)

	var schema map[string]any
	require.NoError(t, json.Unmarshal(def.SchemaJSON(), &schema))

	assert.Equal(t, "object", schema["type"])
	props := schema["properties"].(map[string]any)
	require.Contains(t, props, "dataType")
	require.Contains(t, props, "filter")
	assert.Equal(t, "string", props["dataType"].(map[string]any)["type"])
	assert.Equal(t, []any{"dataType"}, schema["required"])
}

func TestRegistry_Catalog(t *testing.T) {
	reg := NewRegistry(nil)
	require.NoError(t, reg.Register(testTool("first")))
	require.NoError(t, reg.Register(testTool("second", ParameterSpec{Name: "n", Type: TypeNumber, Required: true})))

	cat := reg.Catalog()
	require.Len(t, cat, 2)
	assert.Equal(t, "first", cat[0].Name)
	assert.Equal(t, "second", cat[1].Name)
	assert.Equal(t, []string{"n"}, cat[1].InputSchema.Required)
	assert.Empty(t, cat[0].InputSchema.Required)
}
