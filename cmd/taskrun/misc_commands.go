package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/loykin/taskrun"
)

// createEnvCommand creates the env subcommand
func createEnvCommand(c command, f *EnvFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "env [name]",
		Short: "Print a variable from the session environment",
		Long: `Print the value of one variable, or null when it is undefined or
empty. With --all, print the names of every defined variable.`,
		Args: cobra.MaximumNArgs(1),
		RunE: c.action(func(_ context.Context, r *taskrun.Runner, args []string) (any, error) {
			if f.All || len(args) == 0 {
				return r.Env().Names(), nil
			}
			if v, ok := r.Env().Read(args[0]); ok {
				return v, nil
			}
			return nil, nil
		}),
	}
	cmd.Flags().BoolVar(&f.All, "all", false, "list every defined variable name")
	return cmd
}

// createRequireEnvCommand creates the require-env subcommand
func createRequireEnvCommand(c command) *cobra.Command {
	return &cobra.Command{
		Use:   "require-env <name>",
		Short: "Print a variable, failing with the list of defined names when it is missing",
		Args:  cobra.ExactArgs(1),
		RunE: c.action(func(_ context.Context, r *taskrun.Runner, args []string) (any, error) {
			return r.Env().Require(args[0])
		}),
	}
}

// createFreePortCommand creates the free-port subcommand
func createFreePortCommand(c command) *cobra.Command {
	return &cobra.Command{
		Use:   "free-port",
		Short: "Print a TCP port that is free on the loopback interface",
		Args:  cobra.NoArgs,
		RunE: c.action(func(_ context.Context, _ *taskrun.Runner, _ []string) (any, error) {
			return taskrun.FreePort()
		}),
	}
}

// createPlatformCommand creates the platform subcommand
func createPlatformCommand(c command) *cobra.Command {
	return &cobra.Command{
		Use:   "platform",
		Short: "Print the operating system name",
		Args:  cobra.NoArgs,
		RunE: c.action(func(_ context.Context, _ *taskrun.Runner, _ []string) (any, error) {
			return taskrun.Platform(), nil
		}),
	}
}

// createSleepCommand creates the sleep subcommand
func createSleepCommand(c command) *cobra.Command {
	return &cobra.Command{
		Use:   "sleep <duration>",
		Short: "Wait for a duration (\"500ms\", \"2s\" or bare milliseconds)",
		Args:  cobra.ExactArgs(1),
		RunE: c.action(func(ctx context.Context, _ *taskrun.Runner, args []string) (any, error) {
			d, err := parseWait(args[0])
			if err != nil {
				return nil, err
			}
			return done, taskrun.Sleep(ctx, d)
		}),
	}
}
