package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/loykin/taskrun"
)

type dbConfigView struct {
	taskrun.ConnectionConfig
	DSN string `json:"dsn"`
}

// createDBConfigCommand creates the db-config subcommand
func createDBConfigCommand(c command) *cobra.Command {
	return &cobra.Command{
		Use:   "db-config",
		Short: "Print the resolved database connection settings",
		Long: `Resolve DATABASE_URL with the DB_HOST, DB_PORT, DB_USER, DB_PASS and
DB_NAME fallbacks and print the result. The password is redacted.`,
		Args: cobra.NoArgs,
		RunE: c.action(func(_ context.Context, r *taskrun.Runner, _ []string) (any, error) {
			cfg, err := r.ConnectionConfig()
			if err != nil {
				return nil, err
			}
			view := dbConfigView{ConnectionConfig: cfg, DSN: cfg.Redacted()}
			if view.Password != "" {
				view.Password = "xxxxx"
			}
			return view, nil
		}),
	}
}

// createQueryCommand creates the query subcommand
func createQueryCommand(c command) *cobra.Command {
	return &cobra.Command{
		Use:   "query <sql>",
		Short: "Run SQL and print the rows",
		Long: `Run one or more SQL statements. A single statement prints its rows;
several print the rows of the first SELECT, or nothing when none selected.`,
		Args: cobra.ExactArgs(1),
		RunE: c.action(func(ctx context.Context, r *taskrun.Runner, args []string) (any, error) {
			client, err := r.DB(ctx)
			if err != nil {
				return nil, err
			}
			defer client.Close()
			return client.RawQueryRows(ctx, args[0])
		}),
	}
}

// createQueryJSONCommand creates the query-json subcommand
func createQueryJSONCommand(c command) *cobra.Command {
	return &cobra.Command{
		Use:   "query-json <sql>",
		Short: "Run SQL and print the rows, or every result set when nothing selected, as compact JSON",
		Args:  cobra.ExactArgs(1),
		RunE: c.action(func(ctx context.Context, r *taskrun.Runner, args []string) (any, error) {
			client, err := r.DB(ctx)
			if err != nil {
				return nil, err
			}
			defer client.Close()
			out, err := client.RawQuery(ctx, args[0])
			return rawJSON(out), err
		}),
	}
}
