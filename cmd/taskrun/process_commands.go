package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/loykin/taskrun"
)

type detachResult struct {
	PID int `json:"pid"`
}

// createExecCommand creates the exec subcommand
func createExecCommand(c command) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exec <bin> [args...]",
		Short: "Run a command through the shell and print its buffered result",
		Long: `Run a command through the shell, wait for it and print
{"exitCode", "stdout", "stderr"}. A non-zero exit is part of the result,
not a failure of taskrun itself.

Examples:
  taskrun exec git rev-parse HEAD
  taskrun exec -- ls -la ~/`,
		Args: cobra.MinimumNArgs(1),
		RunE: c.action(func(ctx context.Context, r *taskrun.Runner, args []string) (any, error) {
			return r.Exec(ctx, args[0], args[1:]...)
		}),
	}
	cmd.Flags().SetInterspersed(false)
	return cmd
}

// createStreamCommand creates the stream subcommand
func createStreamCommand(c command, f *StreamFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stream <bin> [args...]",
		Short: "Run a command directly, relaying its output as it arrives",
		Long: `Run a command without a shell and relay stdout and stderr to the
console and the run log in the chunks the command writes them, as they arrive.
With --quiet, output reaches the console only in debug mode. The collected
result is printed when the command exits, even if a background child it
started keeps running.`,
		Args: cobra.MinimumNArgs(1),
		RunE: c.action(func(ctx context.Context, r *taskrun.Runner, args []string) (any, error) {
			if f.Quiet {
				return r.StreamQuiet(ctx, args[0], args[1:]...), nil
			}
			return r.Stream(ctx, args[0], args[1:]...), nil
		}),
	}
	cmd.Flags().BoolVar(&f.Quiet, "quiet", false, "only echo output in debug mode")
	cmd.Flags().SetInterspersed(false)
	return cmd
}

// createDetachCommand creates the detach subcommand
func createDetachCommand(c command) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "detach <bin> [args...]",
		Short: "Start a command in its own session and print its PID",
		Long: `Start a command that outlives taskrun. Its stdin is the null device and
its output is appended to the run log's "-spawn" companion file.`,
		Args: cobra.MinimumNArgs(1),
		RunE: c.action(func(_ context.Context, r *taskrun.Runner, args []string) (any, error) {
			pid, err := r.Detached(args[0], args[1:]...)
			if err != nil {
				return nil, err
			}
			return detachResult{PID: pid}, nil
		}),
	}
	cmd.Flags().SetInterspersed(false)
	return cmd
}

// createInspectCommand creates the inspect subcommand
func createInspectCommand(c command) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <pid>",
		Short: "Print whether a process is running and what it is",
		Args:  cobra.ExactArgs(1),
		RunE: c.action(func(_ context.Context, _ *taskrun.Runner, args []string) (any, error) {
			pid, err := strconv.Atoi(args[0])
			if err != nil || pid <= 0 {
				return nil, fmt.Errorf("invalid pid %q", args[0])
			}
			return taskrun.Inspect(pid)
		}),
	}
}
