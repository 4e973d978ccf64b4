// ABOUTME: Tests for the process_text tool
// ABOUTME: One case per operation plus the unsupported-operation error

package builtins

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessText(t *testing.T) {
	reg := newTestRegistry(t, Deps{})

	tests := []struct {
		op      string
		content string
		want    any
	}{
		{"uppercase", "Hello", "HELLO"},
		{"lowercase", "HeLLo", "hello"},
		{"reverse", "héllo", "olléh"},
		{"word_count", "  the quick\tbrown\nfox ", 4},
		{"word_count", "", 0},
		{"markdown", "# Title", "<h1>Title</h1>\n"},
		{"digest", "abc", "bddd813c634239723171ef3fee98579b94964e3bb1cb3e427262c8c068d52319"},
		{" UpperCase ", "x", "X"},
	}

	for _, tt := range tests {
		t.Run(tt.op, func(t *testing.T) {
			got, err := call(t, reg, "process_text", map[string]any{"content": tt.content, "operation": tt.op})
			require.NoError(t, err)
			res, ok := got.(TextResult)
			require.True(t, ok)
			assert.Equal(t, tt.want, res.Result)
		})
	}
}

func TestProcessText_UnknownOperation(t *testing.T) {
	reg := newTestRegistry(t, Deps{})

	_, err := call(t, reg, "process_text", map[string]any{"content": "x", "operation": "summarize"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "summarize")
}
