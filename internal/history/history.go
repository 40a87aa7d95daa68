// Package history exports structured records of the actions a run performs
// (process invocations, filesystem changes) to external analytics stores.
// The run log stays the authoritative ordered trail; sinks are best-effort.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// EventType defines the kind of action.
type EventType string

const (
	EventExec     EventType = "exec"
	EventStream   EventType = "exec_stream"
	EventDetached EventType = "exec_detached"
	EventFile     EventType = "file"
)

// Record describes one action.
type Record struct {
	Op         string   `json:"op"`
	Bin        string   `json:"bin,omitempty"`
	Args       []string `json:"args,omitempty"`
	Cwd        string   `json:"cwd"`
	PID        int      `json:"pid,omitempty"`
	ExitCode   *int     `json:"exit_code,omitempty"`
	DurationMS int64    `json:"duration_ms"`
	Error      string   `json:"error,omitempty"`
}

// ArgsJSON returns Args encoded as a JSON array, for sinks storing it as text.
func (r Record) ArgsJSON() string {
	if len(r.Args) == 0 {
		return "[]"
	}
	b, err := json.Marshal(r.Args)
	if err != nil {
		return "[]"
	}
	return string(b)
}

// NullableExit returns the exit code or nil, for SQL parameters.
func (r Record) NullableExit() any {
	if r.ExitCode == nil {
		return nil
	}
	return int64(*r.ExitCode)
}

// NullableError returns the error text or nil, for SQL parameters.
func (r Record) NullableError() any {
	if r.Error == "" {
		return nil
	}
	return r.Error
}

// Event is a Record stamped with its run and time.
type Event struct {
	Type       EventType `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	RunID      string    `json:"run_id"`
	Record     Record    `json:"record"`
}

// Sink is a destination for history events.
// Implementations must be safe for concurrent use.
type Sink interface {
	Send(ctx context.Context, e Event) error
}

// Multi fans an event out to several sinks and joins their errors.
type Multi []Sink

func (m Multi) Send(ctx context.Context, e Event) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Send(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink that implements io.Closer.
func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if c, ok := s.(interface{ Close() error }); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
