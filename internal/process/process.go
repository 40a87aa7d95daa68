// Package process runs external programs for a session in three modes:
// buffered through the shell, streamed with live output, and detached into
// a new session that outlives the caller.
package process

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/loykin/taskrun/internal/history"
	"github.com/loykin/taskrun/internal/metrics"
	"github.com/loykin/taskrun/internal/session"
)

// streamWaitDelay bounds how long Stream keeps draining output after the
// process exits. A background grandchild holding the pipes open does not
// keep Stream waiting.
const streamWaitDelay = 250 * time.Millisecond

const (
	modeBuffered = "buffered"
	modeStream   = "stream"
	modeDetached = "detached"
)

// Executor spawns processes in the session cwd with the session environment.
type Executor struct {
	s *session.Session
}

func New(s *session.Session) *Executor { return &Executor{s: s} }

func (x *Executor) resolve(bin string, args []string) (string, []string) {
	return x.s.Resolve(bin), x.s.Resolver().ResolveAll(args)
}

func (x *Executor) prepare(cmd *exec.Cmd, detached bool) {
	cmd.Dir = x.s.Cwd()
	cmd.Env = x.s.Env().Merge(nil)
	configureSysProcAttr(cmd, detached)
}

func (x *Executor) finish(ctx context.Context, mode string, t history.EventType, bin string, args []string, started time.Time, res ExecResult, pid int) {
	metrics.ObserveExec(mode, time.Since(started).Seconds(), res.err())
	rec := history.Record{
		Op:         mode,
		Bin:        bin,
		Args:       args,
		Cwd:        x.s.Cwd(),
		PID:        pid,
		ExitCode:   res.ExitCode,
		DurationMS: time.Since(started).Milliseconds(),
	}
	if err := res.err(); err != nil {
		rec.Error = err.Error()
	}
	x.s.Record(ctx, t, rec)
}

// Exec runs "bin args..." through the shell and buffers its output. A
// non-zero exit is reported in the result, not as an error; the error is a
// *SpawnError when the shell itself could not run.
func (x *Executor) Exec(ctx context.Context, bin string, args []string) (ExecResult, error) {
	rb, ra := x.resolve(bin, args)
	line := strings.TrimSpace(rb + " " + strings.Join(ra, " "))
	x.s.Log().Debug("exec: " + line)

	started := time.Now()
	cmd := shellCommand(ctx, line)
	x.prepare(cmd, false)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := ExecResult{Stdout: stdout.String(), Stderr: stderr.String()}
	var exitErr *exec.ExitError
	switch {
	case err == nil || errors.As(err, &exitErr):
		code, sig := exitStatus(cmd.ProcessState)
		res.ExitCode, res.Signal, res.State = intPtr(code), sig, StateExited
	default:
		res.State = StateErrored
		spawnErr := &SpawnError{Bin: rb, Args: ra, Cwd: cmd.Dir, Err: err}
		x.s.Log().Debug("exec error", spawnErr.Error())
		x.finish(ctx, modeBuffered, history.EventExec, rb, ra, started, res, 0)
		return res, spawnErr
	}
	x.s.Log().Debug("exec: " + rb + " exited with code " + strconv.Itoa(*res.ExitCode))
	x.finish(ctx, modeBuffered, history.EventExec, rb, ra, started, res, cmd.Process.Pid)
	return res, nil
}

// Stream spawns bin directly and relays output as it arrives: to the
// console when printOutput is set, otherwise only in debug mode. Both
// streams are also collected in full. Stream returns once the process
// exits, even if a background child still holds its output open. Stream
// never fails; a process that cannot start yields a nil ExitCode.
func (x *Executor) Stream(ctx context.Context, bin string, args []string, printOutput bool) ExecResult {
	rb, ra := x.resolve(bin, args)
	x.s.Log().Debug("execStream: " + strings.TrimSpace(rb+" "+strings.Join(ra, " ")))

	started := time.Now()
	// #nosec G204
	cmd := exec.CommandContext(ctx, rb, ra...)
	x.prepare(cmd, false)

	res := ExecResult{State: StateSpawned}
	fail := func(err error) ExecResult {
		res.State = StateErrored
		x.s.Log().Debug("execStream: " + rb + " encountered an error " + err.Error())
		x.finish(ctx, modeStream, history.EventStream, rb, ra, started, res, 0)
		return res
	}
	echo := x.s.Log().EchoDebug
	if printOutput {
		echo = x.s.Log().Echo
	}
	stdout := &relay{echo: echo}
	stderr := &relay{echo: echo}
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = streamWaitDelay
	if err := cmd.Start(); err != nil {
		return fail(err)
	}
	res.State = StateRunning

	waitErr := cmd.Wait()
	res.Stdout, res.Stderr = stdout.buf.String(), stderr.buf.String()
	if cmd.ProcessState == nil {
		return fail(waitErr)
	}
	code, sig := exitStatus(cmd.ProcessState)
	res.ExitCode, res.Signal, res.State = intPtr(code), sig, StateExited
	if code == 0 {
		x.s.Log().Debug("execStream: " + rb + " exited with code 0")
	} else {
		x.s.Log().Debug("execStream: " + rb + " exited with code " + strconv.Itoa(code) + " and signal " + sig)
	}
	x.finish(ctx, modeStream, history.EventStream, rb, ra, started, res, cmd.Process.Pid)
	return res
}

// StreamQuiet is Stream with console output limited to debug mode.
func (x *Executor) StreamQuiet(ctx context.Context, bin string, args []string) ExecResult {
	return x.Stream(ctx, bin, args, false)
}

// relay collects one output stream of a streamed process and echoes each
// chunk as it arrives. exec runs one copying goroutine per relay.
type relay struct {
	buf  strings.Builder
	echo func(string)
}

func (r *relay) Write(p []byte) (int, error) {
	chunk := string(p)
	r.buf.WriteString(chunk)
	r.echo(chunk)
	return len(p), nil
}

// Detached starts bin in a new session with stdin from the null device and
// stdout/stderr appended to the run log's spawn file. It returns the child
// PID without waiting; the child is reaped in the background so it does not
// linger as a zombie while this process runs.
func (x *Executor) Detached(bin string, args []string) (int, error) {
	rb, ra := x.resolve(bin, args)
	x.s.Log().Debug("execDetached: " + strings.TrimSpace(rb+" "+strings.Join(ra, " ")))

	started := time.Now()
	out, err := os.OpenFile(x.s.Log().SpawnPath(), os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return 0, &SpawnError{Bin: rb, Args: ra, Cwd: x.s.Cwd(), Err: err}
	}
	defer func() { _ = out.Close() }()
	null, err := os.Open(os.DevNull)
	if err != nil {
		return 0, &SpawnError{Bin: rb, Args: ra, Cwd: x.s.Cwd(), Err: err}
	}
	defer func() { _ = null.Close() }()

	// #nosec G204
	cmd := exec.Command(rb, ra...)
	x.prepare(cmd, true)
	cmd.Stdin = null
	cmd.Stdout = out
	cmd.Stderr = out
	if err := cmd.Start(); err != nil {
		x.s.Log().Debug("execDetached: " + rb + " encountered an error " + err.Error())
		metrics.ObserveExec(modeDetached, time.Since(started).Seconds(), err)
		return 0, &SpawnError{Bin: rb, Args: ra, Cwd: cmd.Dir, Err: err}
	}
	pid := cmd.Process.Pid
	go func() {
		_ = cmd.Wait()
		if cmd.ProcessState != nil {
			code, sig := exitStatus(cmd.ProcessState)
			x.s.Log().Debug("execDetached: " + strconv.Itoa(pid) + " exited with code " + strconv.Itoa(code) + " " + sig)
		}
	}()

	metrics.ObserveExec(modeDetached, time.Since(started).Seconds(), nil)
	x.s.Record(context.Background(), history.EventDetached, history.Record{
		Op:         modeDetached,
		Bin:        rb,
		Args:       ra,
		Cwd:        cmd.Dir,
		PID:        pid,
		DurationMS: time.Since(started).Milliseconds(),
	})
	return pid, nil
}
