// ABOUTME: Tests for SQLite store implementation
// ABOUTME: Covers database creation, nested directories, in-memory mode, and reopen persistence

package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

func TestNewSQLiteStore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer store.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
	if err := store.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestNewSQLiteStore_CreatesDirectory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "subdir", "nested", "test.db")

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer store.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created in nested directory")
	}
}

func TestNewSQLiteStore_InMemory(t *testing.T) {
	store, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.RecordInvocation(ctx, &Invocation{ToolName: "get_hello", Transport: TransportStdio}); err != nil {
		t.Fatalf("RecordInvocation failed: %v", err)
	}

	got, err := store.ListInvocations(ctx, InvocationFilter{})
	if err != nil {
		t.Fatalf("ListInvocations failed: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("expected 1 invocation, got %d", len(got))
	}
}

func TestSQLiteStore_Reopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	first, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	if err := first.RecordInvocation(ctx, &Invocation{ToolName: "calculate", Transport: TransportSSE}); err != nil {
		t.Fatalf("RecordInvocation failed: %v", err)
	}
	first.Close()

	second, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer second.Close()

	got, err := second.ListInvocations(ctx, InvocationFilter{})
	if err != nil {
		t.Fatalf("ListInvocations failed: %v", err)
	}
	if len(got) != 1 || got[0].ToolName != "calculate" {
		t.Errorf("expected persisted calculate invocation, got %+v", got)
	}
}
