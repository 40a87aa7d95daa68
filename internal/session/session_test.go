package session

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/loykin/taskrun/internal/env"
	"github.com/loykin/taskrun/internal/history"
	"github.com/loykin/taskrun/internal/logger"
	"github.com/loykin/taskrun/internal/pathutil"
	"github.com/loykin/taskrun/internal/runlog"
)

type recordingSink struct {
	mu     sync.Mutex
	events []history.Event
	err    error
	closed bool
}

func (r *recordingSink) Send(_ context.Context, e history.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return r.err
}

func (r *recordingSink) Close() error {
	r.closed = true
	return nil
}

func newSession(t *testing.T, sink history.Sink) (*Session, *runlog.Log) {
	t.Helper()
	dir := t.TempDir()
	l := runlog.New(runlog.Options{File: logger.Config{Dir: dir}, Console: io.Discard, Width: 80})
	t.Cleanup(func() { _ = l.Close() })
	s := New(Options{
		Cwd:      dir,
		Log:      l,
		Env:      env.FromPairs([]string{"A=1"}),
		Resolver: pathutil.NewResolver("/home/tester"),
		History:  sink,
	})
	return s, l
}

func TestAbsAnchorsAtCwd(t *testing.T) {
	s, _ := newSession(t, nil)
	cwd := s.Cwd()

	if got := s.Abs("x/y"); got != filepath.Join(cwd, "x/y") {
		t.Fatalf("relative: got %q", got)
	}
	if got := s.Abs("/abs"); got != "/abs" {
		t.Fatalf("absolute: got %q", got)
	}
	if got := s.Abs("~/notes"); got != "/home/tester/notes" {
		t.Fatalf("home: got %q", got)
	}
	if got := s.Abs("dir/"); !strings.HasSuffix(got, "dir/") {
		t.Fatalf("trailing separator lost: %q", got)
	}
}

func TestSetCwdDoesNotTouchProcess(t *testing.T) {
	s, _ := newSession(t, nil)
	before, _ := os.Getwd()
	s.SetCwd("/elsewhere")
	after, _ := os.Getwd()
	if before != after {
		t.Fatalf("process cwd changed: %q -> %q", before, after)
	}
	if s.Cwd() != "/elsewhere" {
		t.Fatalf("session cwd not updated: %q", s.Cwd())
	}
}

func TestRecordSendsStampedEvent(t *testing.T) {
	sink := &recordingSink{}
	s, l := newSession(t, sink)

	s.Record(context.Background(), history.EventFile, history.Record{Op: "copy", Cwd: s.Cwd()})
	if len(sink.events) != 1 {
		t.Fatalf("expected one event, got %d", len(sink.events))
	}
	ev := sink.events[0]
	if ev.RunID != l.RunID() || ev.Type != history.EventFile || ev.OccurredAt.IsZero() {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestRecordFailureIsSwallowed(t *testing.T) {
	sink := &recordingSink{err: errors.New("sink down")}
	s, l := newSession(t, sink)

	s.Record(context.Background(), history.EventExec, history.Record{Op: "exec"})
	if err := s.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !sink.closed {
		t.Fatalf("sink not closed")
	}
	_ = l.Close()
	b, err := os.ReadFile(l.Path())
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(b), "debug: history send failed: sink down") {
		t.Fatalf("failure not logged:\n%s", b)
	}
}
