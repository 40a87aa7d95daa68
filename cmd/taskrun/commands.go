package main

import (
	"context"
	"errors"
	"io"

	"github.com/spf13/cobra"

	"github.com/loykin/taskrun"
)

type command struct {
	flags *GlobalFlags
}

type okResult struct {
	OK bool `json:"ok"`
}

var done = okResult{OK: true}

// handler is one subcommand body. Its result is printed as JSON.
type handler func(ctx context.Context, r *taskrun.Runner, args []string) (any, error)

func (c command) open(console io.Writer) (*taskrun.Runner, error) {
	return taskrun.Open(taskrun.Options{
		ConfigPath: c.flags.ConfigPath,
		Cwd:        c.flags.Cwd,
		Debug:      c.flags.Debug,
		HistoryDSN: c.flags.HistoryDSN,
		Console:    console,
	})
}

// run opens a runner for one invocation, prints the handler result and
// writes the metrics textfile when one is configured.
func (c command) run(cmd *cobra.Command, args []string, h handler) (err error) {
	r, err := c.open(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, c.writeMetrics(r), r.Close())
	}()

	res, err := h(cmd.Context(), r, args)
	if err != nil {
		r.LogError(cmd.Name(), err)
		return err
	}
	return printJSON(cmd.OutOrStdout(), res)
}

func (c command) action(h handler) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		return c.run(cmd, args, h)
	}
}

func (c command) writeMetrics(r *taskrun.Runner) error {
	path := c.flags.MetricsFile
	if path == "" {
		path = r.Config().Metrics.File
	}
	if path == "" {
		return nil
	}
	if err := taskrun.RegisterMetricsDefault(); err != nil {
		return err
	}
	return taskrun.WriteMetrics(path)
}
