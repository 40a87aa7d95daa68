package process

import (
	"fmt"
	"strings"
)

// State is where a spawned process is in its lifecycle.
type State string

const (
	StateSpawned State = "spawned"
	StateRunning State = "running"
	StateExited  State = "exited"
	StateErrored State = "errored"
)

// ExecResult is the outcome of a finished process. ExitCode is nil only when
// the process never started. A process killed by a signal reports
// 128+signo and names the signal.
type ExecResult struct {
	ExitCode *int   `json:"exitCode"`
	Signal   string `json:"signal,omitempty"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	State    State  `json:"-"`
}

// Success reports whether the process exited with status 0.
func (r ExecResult) Success() bool {
	return r.ExitCode != nil && *r.ExitCode == 0
}

func (r ExecResult) err() error {
	switch {
	case r.ExitCode == nil:
		return fmt.Errorf("process did not start")
	case *r.ExitCode != 0:
		return fmt.Errorf("exit status %d", *r.ExitCode)
	}
	return nil
}

// SpawnError means the interpreter or binary could not be run at all.
type SpawnError struct {
	Bin  string
	Args []string
	Cwd  string
	Err  error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("exec: could not run %s %s in %s: %v", e.Bin, strings.Join(e.Args, " "), e.Cwd, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

func intPtr(v int) *int { return &v }
