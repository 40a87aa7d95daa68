package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/loykin/taskrun/internal/history"
)

func sampleEvent(t history.EventType, code int) history.Event {
	return history.Event{
		Type:       t,
		OccurredAt: time.Now().UTC(),
		RunID:      "2026-10-16123456789Z",
		Record: history.Record{
			Op:         string(t),
			Bin:        "/bin/echo",
			Args:       []string{"hello", "world"},
			Cwd:        "/work",
			PID:        4242,
			ExitCode:   &code,
			DurationMS: 12,
		},
	}
}

func TestSQLiteSink_File(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "history.db")
	sink, err := New("sqlite://" + dbPath)
	if err != nil {
		t.Fatalf("Failed to create sink: %v", err)
	}
	defer func() {
		if err := sink.Close(); err != nil {
			t.Errorf("Failed to close sink: %v", err)
		}
	}()

	ctx := context.Background()
	if err := sink.Send(ctx, sampleEvent(history.EventExec, 0)); err != nil {
		t.Fatalf("send exec: %v", err)
	}
	if err := sink.Send(ctx, sampleEvent(history.EventStream, 1)); err != nil {
		t.Fatalf("send stream: %v", err)
	}
	n, err := sink.Count(ctx, history.EventExec)
	if err != nil || n != 1 {
		t.Fatalf("count exec = %d, %v", n, err)
	}
}

func TestSQLiteSink_InMemory(t *testing.T) {
	sink, err := New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create in-memory sink: %v", err)
	}
	defer func() { _ = sink.Close() }()

	ev := sampleEvent(history.EventFile, 0)
	ev.Record.ExitCode = nil
	ev.Record.Bin = ""
	ev.Record.Args = nil
	ev.Record.Error = "permission denied"
	if err := sink.Send(context.Background(), ev); err != nil {
		t.Fatalf("send: %v", err)
	}
	n, err := sink.Count(context.Background(), history.EventFile)
	if err != nil || n != 1 {
		t.Fatalf("count = %d, %v", n, err)
	}
}

func TestSQLiteSink_EmptyDSN(t *testing.T) {
	if _, err := New("  "); err == nil {
		t.Fatalf("expected error for empty DSN")
	}
}
