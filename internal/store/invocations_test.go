// ABOUTME: Tests for invocation audit log store operations
// ABOUTME: Covers Record, List with filtering and limits, and aggregate stats

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedInvocations(t *testing.T, s *SQLiteStore, base time.Time) {
	t.Helper()
	ctx := context.Background()

	rows := []Invocation{
		{RequestID: `"r1"`, ToolName: "get_hello", Transport: TransportStdio},
		{RequestID: `"r2"`, ToolName: "calculate", Transport: TransportSSE, SessionID: "s-1"},
		{RequestID: `"r3"`, ToolName: "calculate", Transport: TransportSSE, SessionID: "s-1", ErrorKind: "HandlerExecutionError", ErrorMessage: "division by zero"},
		{RequestID: `7`, ToolName: "nope", Transport: TransportStdio, ErrorKind: "UnknownToolError", ErrorMessage: "unknown tool: nope"},
	}
	for i := range rows {
		rows[i].Timestamp = base.Add(time.Duration(i) * time.Second)
		rows[i].Duration = time.Duration(i+1) * time.Millisecond
		require.NoError(t, s.RecordInvocation(ctx, &rows[i]))
	}
}

func TestInvocationStore_Record(t *testing.T) {
	s := setupTestStore(t)

	inv := &Invocation{
		RequestID: `"abc"`,
		ToolName:  "get_hello",
		Transport: TransportStdio,
		Duration:  1500 * time.Microsecond,
	}
	require.NoError(t, s.RecordInvocation(context.Background(), inv))

	assert.NotEmpty(t, inv.ID)
	assert.False(t, inv.Timestamp.IsZero())
	assert.True(t, inv.Succeeded())
}

func TestInvocationStore_ListNewestFirst(t *testing.T) {
	s := setupTestStore(t)
	seedInvocations(t, s, time.Now().UTC().Add(-time.Minute))

	got, err := s.ListInvocations(context.Background(), InvocationFilter{})
	require.NoError(t, err)
	require.Len(t, got, 4)

	assert.Equal(t, "nope", got[0].ToolName)
	assert.Equal(t, `7`, got[0].RequestID)
	assert.Equal(t, "get_hello", got[3].ToolName)
	assert.Equal(t, time.Millisecond, got[3].Duration)
}

func TestInvocationStore_ListFilters(t *testing.T) {
	s := setupTestStore(t)
	base := time.Now().UTC().Add(-time.Minute)
	seedInvocations(t, s, base)
	ctx := context.Background()

	tool := "calculate"
	got, err := s.ListInvocations(ctx, InvocationFilter{ToolName: &tool})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	transport := TransportStdio
	got, err = s.ListInvocations(ctx, InvocationFilter{Transport: &transport})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	success := ""
	got, err = s.ListInvocations(ctx, InvocationFilter{ErrorKind: &success})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	for _, inv := range got {
		assert.True(t, inv.Succeeded())
	}

	got, err = s.ListInvocations(ctx, InvocationFilter{Failed: true})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "UnknownToolError", got[0].ErrorKind)
	assert.Equal(t, "HandlerExecutionError", got[1].ErrorKind)

	got, err = s.ListInvocations(ctx, InvocationFilter{Failed: true, ToolName: &tool})
	require.NoError(t, err)
	assert.Len(t, got, 1)

	since := base.Add(2 * time.Second)
	got, err = s.ListInvocations(ctx, InvocationFilter{Since: &since})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = s.ListInvocations(ctx, InvocationFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestInvocationStore_ListEmpty(t *testing.T) {
	s := setupTestStore(t)

	got, err := s.ListInvocations(context.Background(), InvocationFilter{})
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestInvocationStore_Stats(t *testing.T) {
	s := setupTestStore(t)
	seedInvocations(t, s, time.Now().UTC().Add(-time.Minute))

	stats, err := s.InvocationStats(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(4), stats.Total)
	assert.Equal(t, int64(2), stats.Failures)
	assert.Equal(t, int64(2), stats.ByTool["calculate"])
	assert.Equal(t, int64(1), stats.ByTool["get_hello"])
	assert.Equal(t, int64(1), stats.ByKind["UnknownToolError"])
	assert.NotContains(t, stats.ByKind, "")
}

func TestInvocationStore_StatsEmpty(t *testing.T) {
	s := setupTestStore(t)

	stats, err := s.InvocationStats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Total)
	assert.Zero(t, stats.Failures)
	assert.Empty(t, stats.ByTool)
}

func TestNormalizeInvocationLimit(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, 100},
		{-5, 100},
		{50, 50},
		{1000, 1000},
		{5000, 1000},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeInvocationLimit(tt.in))
	}
}
