package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := buildRoot()
	if err := root.ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// buildRoot creates the root command with every subcommand attached.
func buildRoot() *cobra.Command {
	globalFlags := &GlobalFlags{}
	streamFlags := &StreamFlags{}
	envFlags := &EnvFlags{}

	taskrunCommand := command{flags: globalFlags}

	root := createRootCommand(globalFlags)

	root.AddCommand(fileCommands(taskrunCommand)...)
	root.AddCommand(
		createExecCommand(taskrunCommand),
		createStreamCommand(taskrunCommand, streamFlags),
		createDetachCommand(taskrunCommand),
		createInspectCommand(taskrunCommand),
		createEnvCommand(taskrunCommand, envFlags),
		createRequireEnvCommand(taskrunCommand),
		createFreePortCommand(taskrunCommand),
		createDBConfigCommand(taskrunCommand),
		createQueryCommand(taskrunCommand),
		createQueryJSONCommand(taskrunCommand),
		createPlatformCommand(taskrunCommand),
		createSleepCommand(taskrunCommand),
	)
	return root
}

// createRootCommand creates the root command with the persistent flags
func createRootCommand(flags *GlobalFlags) *cobra.Command {
	root := &cobra.Command{
		Use:   "taskrun",
		Short: "Task execution helpers for orchestration engines",
		Long: `Taskrun exposes filesystem, process and database helpers one call at a
time. Every call appends to the run log; results are printed as JSON on
stdout and logs go to stderr.

Examples:
  taskrun write ./build/VERSION 1.2.3
  taskrun cp ./dist/ /srv/app/
  taskrun exec make test
  taskrun stream --quiet npm ci
  taskrun db-config`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "path to TOML config file (optional)")
	root.PersistentFlags().StringVar(&flags.Cwd, "cwd", "", "working directory for relative paths and processes")
	root.PersistentFlags().BoolVar(&flags.Debug, "debug", false, "echo debug entries and process output on the console")
	root.PersistentFlags().StringVar(&flags.MetricsFile, "metrics-file", "", "write Prometheus metrics to this textfile on exit")
	root.PersistentFlags().StringVar(&flags.HistoryDSN, "history-dsn", "", "record exec and file events (sqlite path, postgres://, clickhouse://, opensearch://)")

	return root
}
