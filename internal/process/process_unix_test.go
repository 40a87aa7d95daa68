//go:build !windows

package process

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/loykin/taskrun/internal/env"
	"github.com/loykin/taskrun/internal/logger"
	"github.com/loykin/taskrun/internal/pathutil"
	"github.com/loykin/taskrun/internal/runlog"
	"github.com/loykin/taskrun/internal/session"
)

func newExecutor(t *testing.T, extraEnv ...string) (*Executor, *session.Session) {
	t.Helper()
	dir := t.TempDir()
	l := runlog.New(runlog.Options{File: logger.Config{Dir: t.TempDir()}, Console: io.Discard, Width: 120})
	t.Cleanup(func() { _ = l.Close() })
	pairs := append([]string{"PATH=" + os.Getenv("PATH")}, extraEnv...)
	s := session.New(session.Options{
		Cwd:      dir,
		Log:      l,
		Env:      env.FromPairs(pairs),
		Resolver: pathutil.NewResolver("/home/tester"),
	})
	return New(s), s
}

func TestExecReportsRealExitCode(t *testing.T) {
	x, _ := newExecutor(t)

	res, err := x.Exec(context.Background(), "echo", []string{"hello", "world"})
	if err != nil {
		t.Fatalf("exec: %v", err)
	}
	if !res.Success() || res.Stdout != "hello world\n" {
		t.Fatalf("unexpected result: %+v", res)
	}

	res, err = x.Exec(context.Background(), "echo oops 1>&2; exit", []string{"3"})
	if err != nil {
		t.Fatalf("non-zero exit must not be an error: %v", err)
	}
	if res.ExitCode == nil || *res.ExitCode != 3 {
		t.Fatalf("expected exit code 3, got %+v", res)
	}
	if res.Stderr != "oops\n" {
		t.Fatalf("stderr = %q", res.Stderr)
	}
}

func TestExecSpawnError(t *testing.T) {
	x, s := newExecutor(t)
	s.SetCwd(filepath.Join(s.Cwd(), "does-not-exist"))

	res, err := x.Exec(context.Background(), "true", nil)
	var spawnErr *SpawnError
	if !errors.As(err, &spawnErr) {
		t.Fatalf("expected *SpawnError, got %v", err)
	}
	if res.ExitCode != nil || res.State != StateErrored {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestStreamInterleavedOutputAndExitCode(t *testing.T) {
	x, _ := newExecutor(t)
	script := "echo out1; echo err1 1>&2; echo out2; echo err2 1>&2; exit 7"

	for _, printOutput := range []bool{true, false} {
		res := x.Stream(context.Background(), "/bin/sh", []string{"-c", script}, printOutput)
		if res.ExitCode == nil || *res.ExitCode != 7 {
			t.Fatalf("print=%v: expected exit 7, got %+v", printOutput, res)
		}
		if res.Stdout != "out1\nout2\n" || res.Stderr != "err1\nerr2\n" {
			t.Fatalf("print=%v: stdout=%q stderr=%q", printOutput, res.Stdout, res.Stderr)
		}
		if res.State != StateExited {
			t.Fatalf("state = %s", res.State)
		}
	}
}

func TestStreamMissingBinary(t *testing.T) {
	x, _ := newExecutor(t)
	res := x.StreamQuiet(context.Background(), "/definitely/not/a/binary", nil)
	if res.ExitCode != nil {
		t.Fatalf("expected nil exit code, got %d", *res.ExitCode)
	}
	if res.State != StateErrored {
		t.Fatalf("state = %s", res.State)
	}
}

func TestStreamSignalExit(t *testing.T) {
	x, _ := newExecutor(t)
	res := x.StreamQuiet(context.Background(), "/bin/sh", []string{"-c", "kill -TERM $$"})
	if res.ExitCode == nil || *res.ExitCode != 143 {
		t.Fatalf("expected 143, got %+v", res)
	}
	if res.Signal != "SIGTERM" {
		t.Fatalf("signal = %q", res.Signal)
	}
}

func TestStreamUsesSessionEnvCwdAndHome(t *testing.T) {
	x, s := newExecutor(t, "GREETING=hi")
	res := x.StreamQuiet(context.Background(), "/bin/sh", []string{"-c", `echo "$GREETING"; pwd; echo "$1"`, "sh", "~/notes"})
	lines := strings.Split(strings.TrimSpace(res.Stdout), "\n")
	if len(lines) != 3 {
		t.Fatalf("unexpected output %q", res.Stdout)
	}
	if lines[0] != "hi" {
		t.Errorf("env not applied: %q", lines[0])
	}
	wantDir, _ := filepath.EvalSymlinks(s.Cwd())
	gotDir, _ := filepath.EvalSymlinks(lines[1])
	if gotDir != wantDir {
		t.Errorf("cwd = %q, want %q", gotDir, wantDir)
	}
	if lines[2] != "/home/tester/notes" {
		t.Errorf("home not expanded: %q", lines[2])
	}
}

func TestStreamContextCancel(t *testing.T) {
	x, _ := newExecutor(t)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	res := x.StreamQuiet(ctx, "sleep", []string{"5"})
	if res.ExitCode == nil || *res.ExitCode == 0 {
		t.Fatalf("expected killed process, got %+v", res)
	}
}

func TestStreamReturnsWhenBackgroundChildHoldsPipes(t *testing.T) {
	x, _ := newExecutor(t)
	start := time.Now()
	res := x.StreamQuiet(context.Background(), "/bin/sh", []string{"-c", "sleep 5 & echo hi; exit 3"})
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("stream waited %s for the background child", elapsed)
	}
	if res.ExitCode == nil || *res.ExitCode != 3 {
		t.Fatalf("expected exit code 3, got %+v", res)
	}
	if res.Stdout != "hi\n" {
		t.Fatalf("stdout = %q", res.Stdout)
	}
	if res.State != StateExited {
		t.Fatalf("state = %s", res.State)
	}
}

func TestStreamPassesInheritedEnvLiterally(t *testing.T) {
	x, _ := newExecutor(t, "TEMPLATE=${PATH}/x")
	res := x.StreamQuiet(context.Background(), "/bin/sh", []string{"-c", `printf %s "$TEMPLATE"`})
	if res.Stdout != "${PATH}/x" {
		t.Fatalf("inherited value was rewritten: %q", res.Stdout)
	}
}

func TestDetached(t *testing.T) {
	x, s := newExecutor(t)

	pid, err := x.Detached("/bin/sh", []string{"-c", "echo detached-out; echo detached-err 1>&2; sleep 0.3"})
	if err != nil {
		t.Fatalf("detached: %v", err)
	}
	if pid <= 0 {
		t.Fatalf("invalid pid %d", pid)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		info, err := Inspect(pid)
		if err != nil {
			t.Fatalf("inspect: %v", err)
		}
		if !info.Running {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("detached process %d still running", pid)
		}
		time.Sleep(50 * time.Millisecond)
	}

	b, err := os.ReadFile(s.Log().SpawnPath())
	if err != nil {
		t.Fatalf("read spawn log: %v", err)
	}
	if !strings.Contains(string(b), "detached-out") || !strings.Contains(string(b), "detached-err") {
		t.Fatalf("spawn log missing output: %q", b)
	}
}

func TestDetachedMissingBinary(t *testing.T) {
	x, _ := newExecutor(t)
	if _, err := x.Detached("/definitely/not/a/binary", nil); err == nil {
		t.Fatalf("expected error")
	}
}

func TestInspectSelfAndMissing(t *testing.T) {
	info, err := Inspect(os.Getpid())
	if err != nil {
		t.Fatalf("inspect self: %v", err)
	}
	if !info.Running || info.CreatedAt.IsZero() {
		t.Fatalf("unexpected self info: %+v", info)
	}

	info, err = Inspect(0)
	if err != nil || info.Running {
		t.Fatalf("pid 0: %+v %v", info, err)
	}
}

func TestSysProcAttrs(t *testing.T) {
	cmd := shellCommand(context.Background(), "true")
	configureSysProcAttr(cmd, true)
	if cmd.SysProcAttr == nil || !cmd.SysProcAttr.Setsid {
		t.Fatalf("Setsid not set for detached command")
	}
	configureSysProcAttr(cmd, false)
	if !cmd.SysProcAttr.Setpgid || cmd.SysProcAttr.Setsid {
		t.Fatalf("Setpgid not set for attached command")
	}
}
