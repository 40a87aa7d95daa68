// Package runlog keeps the per-run audit log. Every entry goes to a console
// sink immediately and is appended to a run log file by a single writer
// goroutine, so lines land in the file in exactly the order they were
// enqueued and never interleave.
package runlog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/davecgh/go-spew/spew"

	"github.com/loykin/taskrun/internal/logger"
	"github.com/loykin/taskrun/internal/metrics"
)

// DefaultQueueSize bounds the number of lines waiting for the writer.
const DefaultQueueSize = 1024

// Options configures a Log.
type Options struct {
	File      logger.Config // where run-<id>.log lives and how it rotates
	Console   io.Writer     // console sink; os.Stderr when nil
	Debug     bool          // emit Debug entries on the console
	Start     time.Time     // run start; time.Now when zero
	QueueSize int           // pending line bound; DefaultQueueSize when <= 0
	Width     int           // chunk width; logger.TerminalWidth() when <= 0

	// Writer overrides the file writer. Used by tests to inject failures.
	Writer io.WriteCloser
}

type request struct {
	line    string
	flushed chan struct{}
}

// Log is a process-wide append-only audit log.
type Log struct {
	runID   string
	path    string
	debug   bool
	width   int
	console *slog.Logger
	out     io.Writer
	outMu   sync.Mutex
	w       io.WriteCloser

	mu     sync.RWMutex
	closed bool
	ch     chan request
	done   chan struct{}
}

var dump = spew.ConfigState{Indent: "  ", SortKeys: true, DisablePointerAddresses: true}

// RunID formats t the way run log files are named: the UTC ISO-8601 form with
// the 'T', ':' and '.' characters removed.
func RunID(t time.Time) string {
	s := t.UTC().Format("2006-01-02T15:04:05.000Z")
	return strings.NewReplacer("T", "", ":", "", ".", "").Replace(s)
}

// New opens the run log and starts its writer.
func New(opts Options) *Log {
	start := opts.Start
	if start.IsZero() {
		start = time.Now()
	}
	console := opts.Console
	if console == nil {
		console = os.Stderr
	}
	size := opts.QueueSize
	if size <= 0 {
		size = DefaultQueueSize
	}
	width := opts.Width
	if width <= 0 {
		width = logger.TerminalWidth()
	}
	id := RunID(start)
	path := opts.File.Path("run-" + id + ".log")
	w := opts.Writer
	if w == nil {
		w = opts.File.FileWriter(path)
	}
	l := &Log{
		runID:   id,
		path:    path,
		debug:   opts.Debug,
		width:   width,
		console: logger.NewConsole(console, opts.Debug),
		out:     console,
		w:       w,
		ch:      make(chan request, size),
		done:    make(chan struct{}),
	}
	go l.run()

	l.Write("runLogPath: " + path)
	l.Write("runId: " + id)
	l.Write(fmt.Sprintf("isDebug: %t", opts.Debug))
	return l
}

func (l *Log) run() {
	defer close(l.done)
	for req := range l.ch {
		if req.flushed != nil {
			close(req.flushed)
			continue
		}
		if _, err := io.WriteString(l.w, req.line); err != nil {
			metrics.IncRunLogError()
			l.console.Error("run log write failed", "path", l.path, "error", err)
			continue
		}
		metrics.IncRunLogLine()
	}
}

// Path returns the run log file location.
func (l *Log) Path() string { return l.path }

// SpawnPath returns the companion file that detached processes write to.
func (l *Log) SpawnPath() string { return l.path + "-spawn" }

// RunID returns the identifier embedded in the file name.
func (l *Log) RunID() string { return l.runID }

// IsDebug reports whether debug entries reach the console.
func (l *Log) IsDebug() bool { return l.debug }

// Console returns the console logger.
func (l *Log) Console() *slog.Logger { return l.console }

// Write enqueues line followed by a newline. Writes after Close are dropped.
func (l *Log) Write(line string) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return
	}
	l.ch <- request{line: line + "\n"}
}

// Sync blocks until every line enqueued before the call has been handed to
// the file writer, or ctx is done.
func (l *Log) Sync(ctx context.Context) error {
	flushed := make(chan struct{})
	l.mu.RLock()
	if l.closed {
		l.mu.RUnlock()
		return nil
	}
	l.ch <- request{flushed: flushed}
	l.mu.RUnlock()
	select {
	case <-flushed:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close drains pending lines, stops the writer and closes the file.
// It is safe to call more than once.
func (l *Log) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	close(l.ch)
	l.mu.Unlock()
	<-l.done
	return l.w.Close()
}

// Log writes entry to the console at info level and to the run log.
// Extras are rendered structurally on both sinks.
func (l *Log) Log(entry string, extras ...any) {
	l.console.Info(entry, attrs(extras)...)
	l.writeEntry("", entry, extras)
}

// Debug writes entry to the console only in debug mode; the run log always
// receives it.
func (l *Log) Debug(entry string, extras ...any) {
	l.console.Debug(entry, attrs(extras)...)
	l.writeEntry("debug: ", entry, extras)
}

// Echo copies raw process output to the console and the run log.
func (l *Log) Echo(text string) {
	l.echo(text)
	l.Write(strings.TrimSuffix(text, "\n"))
}

// EchoDebug is Echo gated on debug mode for the console.
func (l *Log) EchoDebug(text string) {
	if l.debug {
		l.echo(text)
	}
	l.Write("debug: " + strings.TrimSuffix(text, "\n"))
}

func (l *Log) echo(text string) {
	l.outMu.Lock()
	_, _ = io.WriteString(l.out, text)
	l.outMu.Unlock()
}

// LogError writes a banner naming identifier followed by err's message split
// into terminal-width chunks, one per line, so long driver errors are never
// cut off.
func (l *Log) LogError(identifier string, err error) {
	l.Write("\n💥 wrappedLog:" + identifier + "\n")
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	if msg == "" {
		l.Write(fmt.Sprintf("wrappedLog NullOrEmptyString error:%T", err))
		l.Write(fmt.Sprintf("wrappedLog NullOrEmptyString error:%v", err))
		return
	}
	for _, c := range Chunk(msg, l.width) {
		l.Write("\n" + c)
	}
	l.console.Error(identifier, "error", msg)
}

func (l *Log) writeEntry(prefix, entry string, extras []any) {
	var b strings.Builder
	for i, c := range Chunk(entry, l.width) {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(c)
	}
	for _, e := range extras {
		b.WriteByte('\n')
		b.WriteString(strings.TrimSuffix(dump.Sdump(e), "\n"))
	}
	l.Write(prefix + b.String())
}

func attrs(extras []any) []any {
	if len(extras) == 0 {
		return nil
	}
	out := make([]any, 0, len(extras))
	for i, e := range extras {
		out = append(out, slog.Any(fmt.Sprintf("arg%d", i), e))
	}
	return out
}

// Chunk splits s into pieces of at most width runes. Strings that already fit
// come back as a single element; a non-positive width disables chunking.
func Chunk(s string, width int) []string {
	r := []rune(s)
	if width <= 0 || len(r) <= width {
		return []string{s}
	}
	out := make([]string, 0, len(r)/width+1)
	for i := 0; i < len(r); i += width {
		end := i + width
		if end > len(r) {
			end = len(r)
		}
		out = append(out, string(r[i:end]))
	}
	return out
}
