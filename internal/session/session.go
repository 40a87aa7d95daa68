// Package session carries the state every operation of a run shares: the
// working directory, the run log, the environment, the home resolver and the
// optional history sink.
package session

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/loykin/taskrun/internal/env"
	"github.com/loykin/taskrun/internal/history"
	"github.com/loykin/taskrun/internal/metrics"
	"github.com/loykin/taskrun/internal/pathutil"
	"github.com/loykin/taskrun/internal/runlog"
)

// Options configures a Session. Log is required.
type Options struct {
	Cwd      string // starting directory; os.Getwd when empty
	Log      *runlog.Log
	Env      *env.Env           // os environment when nil
	Resolver *pathutil.Resolver // pathutil.Default when nil
	History  history.Sink       // optional
}

// Session is safe for concurrent use.
type Session struct {
	mu  sync.RWMutex
	cwd string

	log      *runlog.Log
	env      *env.Env
	resolver *pathutil.Resolver
	history  history.Sink
}

func New(opts Options) *Session {
	cwd := opts.Cwd
	if cwd == "" {
		if wd, err := os.Getwd(); err == nil {
			cwd = wd
		}
	}
	e := opts.Env
	if e == nil {
		e = env.New()
		e.FromOS()
	}
	r := opts.Resolver
	if r == nil {
		r = pathutil.Default()
	}
	return &Session{cwd: cwd, log: opts.Log, env: e, resolver: r, history: opts.History}
}

func (s *Session) Log() *runlog.Log { return s.log }
func (s *Session) Env() *env.Env { return s.env }
func (s *Session) Resolver() *pathutil.Resolver { return s.resolver }
func (s *Session) Debug() bool { return s.log.IsDebug() }

// Cwd returns the current working directory of the session.
func (s *Session) Cwd() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cwd
}

// SetCwd replaces the working directory. Callers validate dir first.
func (s *Session) SetCwd(dir string) {
	s.mu.Lock()
	s.cwd = dir
	s.mu.Unlock()
}

// Resolve expands "~/" in path.
func (s *Session) Resolve(path string) string {
	return s.resolver.Resolve(path)
}

// Abs expands "~/" in path and anchors the result at the session cwd.
func (s *Session) Abs(path string) string {
	return pathutil.Join(s.Cwd(), s.resolver.Resolve(path))
}

// Record stamps rec and sends it to the history sink. Sink failures are
// written to the run log at debug level and never returned.
func (s *Session) Record(ctx context.Context, t history.EventType, rec history.Record) {
	if s.history == nil {
		return
	}
	ev := history.Event{Type: t, OccurredAt: time.Now().UTC(), RunID: s.log.RunID(), Record: rec}
	if err := s.history.Send(ctx, ev); err != nil {
		metrics.IncHistoryError(string(t))
		s.log.Debug("history send failed: " + err.Error())
	}
}

// Close flushes the run log and closes the history sink when it can be
// closed. The run log itself stays open; its owner closes it.
func (s *Session) Close(ctx context.Context) error {
	if c, ok := s.history.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			return err
		}
	}
	return s.log.Sync(ctx)
}
