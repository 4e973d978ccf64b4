// ABOUTME: Store interface and data types for toolgate persistence
// ABOUTME: Defines the Invocation audit record and the Store interface for database operations

package store

import (
	"context"
	"time"
)

// Transport names recorded on invocations.
const (
	TransportStdio = "stdio"
	TransportSSE   = "sse"
)

// Invocation is one dispatched tool call as recorded in the audit log.
type Invocation struct {
	ID           string // UUID v4, generated if empty
	RequestID    string // client correlation token, raw JSON text
	ToolName     string
	Transport    string // "stdio" or "sse"
	SessionID    string // SSE session, empty for stdio
	ErrorKind    string // empty on success
	ErrorMessage string
	Duration     time.Duration
	Timestamp    time.Time // generated if zero
}

// Succeeded reports whether the invocation produced a result.
func (i *Invocation) Succeeded() bool {
	return i.ErrorKind == ""
}

// InvocationFilter specifies filtering options for listing invocations.
type InvocationFilter struct {
	Since     *time.Time // invocations at or after this time
	ToolName  *string    // filter by tool
	Transport *string    // filter by transport
	ErrorKind *string    // filter by error kind ("" matches successes)
	Failed    bool       // only invocations that returned an error
	Limit     int        // max results (default 100, max 1000)
}

// InvocationStats summarizes the audit log.
type InvocationStats struct {
	Total    int64            `json:"total"`
	Failures int64            `json:"failures"`
	ByTool   map[string]int64 `json:"byTool"`
	ByKind   map[string]int64 `json:"byKind"`
}

// Store defines the persistence operations used by the server.
type Store interface {
	RecordInvocation(ctx context.Context, inv *Invocation) error
	ListInvocations(ctx context.Context, f InvocationFilter) ([]Invocation, error)
	InvocationStats(ctx context.Context) (*InvocationStats, error)
	Close() error
}

var _ Store = (*SQLiteStore)(nil)
