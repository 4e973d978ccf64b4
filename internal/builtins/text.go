// ABOUTME: process_text tool: case changes, reversal, word counts, markdown rendering, digests.
// ABOUTME: Markdown goes through goldmark; digest is BLAKE2b-256 from x/crypto.

package builtins

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"golang.org/x/crypto/blake2b"

	"github.com/2389/toolgate/internal/tools"
)

// TextResult is the result of process_text.
type TextResult struct {
	Operation string `json:"operation"`
	Result    any    `json:"result"`
}

func processText(_ context.Context, args tools.Args) (any, error) {
	content := args.String("content")
	op := strings.ToLower(strings.TrimSpace(args.String("operation")))

	var result any
	switch op {
	case "uppercase":
		result = strings.ToUpper(content)
	case "lowercase":
		result = strings.ToLower(content)
	case "reverse":
		result = reverseRunes(content)
	case "word_count":
		result = len(strings.Fields(content))
	case "markdown":
		var buf bytes.Buffer
		if err := goldmark.Convert([]byte(content), &buf); err != nil {
			return nil, fmt.Errorf("rendering markdown: %w", err)
		}
		result = buf.String()
	case "digest":
		sum := blake2b.Sum256([]byte(content))
		result = hex.EncodeToString(sum[:])
	default:
		return nil, fmt.Errorf("unsupported operation '%s' (want uppercase, lowercase, reverse, word_count, markdown, or digest)", op)
	}

	return TextResult{Operation: op, Result: result}, nil
}

func reverseRunes(s string) string {
	r := []rune(s)
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
	return string(r)
}
