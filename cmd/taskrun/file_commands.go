package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/loykin/taskrun"
)

// fileCommands creates the filesystem subcommands. Relative paths resolve
// against --cwd and a leading "~/" against the home directory.
func fileCommands(c command) []*cobra.Command {
	return []*cobra.Command{
		{
			Use:   "read <path>",
			Short: "Print a file's contents",
			Args:  cobra.ExactArgs(1),
			RunE: c.action(func(_ context.Context, r *taskrun.Runner, args []string) (any, error) {
				return r.ReadFile(args[0])
			}),
		},
		{
			Use:   "write <path> <contents>",
			Short: "Replace a file's contents",
			Args:  cobra.ExactArgs(2),
			RunE: c.action(func(_ context.Context, r *taskrun.Runner, args []string) (any, error) {
				return r.WriteFile(args[0], args[1])
			}),
		},
		{
			Use:   "append <path> <contents>",
			Short: "Append to a file, creating it when missing",
			Args:  cobra.ExactArgs(2),
			RunE: c.action(func(_ context.Context, r *taskrun.Runner, args []string) (any, error) {
				return r.AppendFile(args[0], args[1])
			}),
		},
		{
			Use:   "touch <path>",
			Short: "Create a file or update its timestamps",
			Args:  cobra.ExactArgs(1),
			RunE: c.action(func(_ context.Context, r *taskrun.Runner, args []string) (any, error) {
				return done, r.TouchFile(args[0])
			}),
		},
		{
			Use:   "replace <path> <find> <replace>",
			Short: "Replace the first occurrence of a string in a file",
			Args:  cobra.ExactArgs(3),
			RunE: c.action(func(_ context.Context, r *taskrun.Runner, args []string) (any, error) {
				return r.ReplaceInFile(args[0], args[1], args[2])
			}),
		},
		{
			Use:   "mkdir <path>...",
			Short: "Create directories and their parents",
			Args:  cobra.MinimumNArgs(1),
			RunE: c.action(func(_ context.Context, r *taskrun.Runner, args []string) (any, error) {
				if len(args) == 1 {
					return done, r.MakeDirectory(args[0])
				}
				return done, r.MakeDirectories(args)
			}),
		},
		{
			Use:   "cd-check <path>",
			Short: "Validate a directory and print it as the new working directory",
			Args:  cobra.ExactArgs(1),
			RunE: c.action(func(_ context.Context, r *taskrun.Runner, args []string) (any, error) {
				if err := r.ChangeDirectory(args[0]); err != nil {
					return nil, err
				}
				return r.CurrentDirectory(), nil
			}),
		},
		{
			Use:   "rm <path>",
			Short: "Remove a file or directory tree",
			Args:  cobra.ExactArgs(1),
			RunE: c.action(func(_ context.Context, r *taskrun.Runner, args []string) (any, error) {
				return done, r.Remove(args[0])
			}),
		},
		{
			Use:   "rm-all <path>...",
			Short: "Remove paths concurrently, logging failures instead of stopping",
			Args:  cobra.MinimumNArgs(1),
			RunE: c.action(func(_ context.Context, r *taskrun.Runner, args []string) (any, error) {
				r.RemoveAll(args)
				return done, nil
			}),
		},
		{
			Use:   "cp <src> <dest>",
			Short: "Copy a file or directory tree and print the destination",
			Long: `Copy follows cp conventions: a file copied onto an existing directory
lands inside it, and a directory copied onto a destination ending in "/"
lands inside it under its own name.`,
			Args: cobra.ExactArgs(2),
			RunE: c.action(func(_ context.Context, r *taskrun.Runner, args []string) (any, error) {
				return r.Copy(args[0], args[1])
			}),
		},
		{
			Use:   "mv <src> <dest>",
			Short: "Rename a file or directory",
			Args:  cobra.ExactArgs(2),
			RunE: c.action(func(_ context.Context, r *taskrun.Runner, args []string) (any, error) {
				return done, r.Move(args[0], args[1])
			}),
		},
		{
			Use:   "ln <src> <dest>",
			Short: "Create a symbolic link at dest pointing to src",
			Args:  cobra.ExactArgs(2),
			RunE: c.action(func(_ context.Context, r *taskrun.Runner, args []string) (any, error) {
				return r.Symlink(args[0], args[1])
			}),
		},
		{
			Use:   "exists <path>",
			Short: "Print whether a path exists",
			Args:  cobra.ExactArgs(1),
			RunE: c.action(func(_ context.Context, r *taskrun.Runner, args []string) (any, error) {
				return r.DoesPathExist(args[0]), nil
			}),
		},
		{
			Use:   "home",
			Short: "Print the home directory",
			Args:  cobra.NoArgs,
			RunE: c.action(func(_ context.Context, r *taskrun.Runner, _ []string) (any, error) {
				return r.HomeDirectory(), nil
			}),
		},
	}
}
