package history

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type memSink struct {
	mu     sync.Mutex
	events []Event
	err    error
	closed bool
}

func (m *memSink) Send(_ context.Context, e Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return m.err
}

func (m *memSink) Close() error {
	m.closed = true
	return nil
}

func TestMultiFansOutAndJoinsErrors(t *testing.T) {
	a := &memSink{}
	b := &memSink{err: errors.New("b down")}
	m := Multi{a, nil, b}
	e := Event{Type: EventExec, OccurredAt: time.Now().UTC(), Record: Record{Op: "exec", Bin: "echo"}}
	err := m.Send(context.Background(), e)
	if err == nil || err.Error() != "b down" {
		t.Fatalf("expected joined error, got %v", err)
	}
	if len(a.events) != 1 || len(b.events) != 1 {
		t.Fatalf("fan-out incomplete: %d %d", len(a.events), len(b.events))
	}
	if err := m.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !a.closed || !b.closed {
		t.Fatalf("closers not called")
	}
}

func TestRecordHelpers(t *testing.T) {
	code := 3
	r := Record{Args: []string{"a", "b c"}, ExitCode: &code, Error: "x"}
	if r.ArgsJSON() != `["a","b c"]` {
		t.Fatalf("args json: %s", r.ArgsJSON())
	}
	if r.NullableExit() != int64(3) || r.NullableError() != "x" {
		t.Fatalf("nullable helpers wrong")
	}
	empty := Record{}
	if empty.ArgsJSON() != "[]" || empty.NullableExit() != nil || empty.NullableError() != nil {
		t.Fatalf("empty helpers wrong")
	}
}
