// Package taskrun is the embedding API for the task-execution helpers:
// filesystem operations, process execution, the run log and postgres
// connection resolution, all bound to one Runner.
package taskrun

import (
	"context"
	"errors"
	"io"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"

	"github.com/loykin/taskrun/internal/config"
	"github.com/loykin/taskrun/internal/db"
	"github.com/loykin/taskrun/internal/env"
	"github.com/loykin/taskrun/internal/fileops"
	"github.com/loykin/taskrun/internal/history"
	"github.com/loykin/taskrun/internal/history/factory"
	"github.com/loykin/taskrun/internal/metrics"
	"github.com/loykin/taskrun/internal/pgconn"
	"github.com/loykin/taskrun/internal/ports"
	"github.com/loykin/taskrun/internal/process"
	"github.com/loykin/taskrun/internal/runlog"
	"github.com/loykin/taskrun/internal/session"
)

// Type aliases to expose stable API types
type ExecResult = process.ExecResult
type ProcessInfo = process.Info
type SpawnError = process.SpawnError
type OpError = fileops.OpError
type MissingEnvError = env.MissingError
type ConnectionConfig = pgconn.Config
type SSL = pgconn.SSL
type DB = db.Client
type Row = db.Row
type HistorySink = history.Sink
type Config = config.Config

// ErrInvalidURL wraps every connection string parse failure.
var ErrInvalidURL = pgconn.ErrInvalidURL

// Options configures Open. Zero values fall back to the config file, then
// the TASKRUN_* environment, then built-in defaults.
type Options struct {
	ConfigPath string
	Cwd        string
	Debug      bool
	HistoryDSN string
	Console    io.Writer // os.Stderr when nil
	Fs         afero.Fs  // afero.NewOsFs when nil
	Start      time.Time // run start; time.Now when zero
}

// Runner owns one session: its run log, working directory and environment.
type Runner struct {
	cfg  *config.Config
	sess *session.Session
	fs   *fileops.FS
	exec *process.Executor

	closeOnce sync.Once
	closeErr  error
}

// Open loads configuration, starts the run log and wires the history sink.
func Open(opts Options) (*Runner, error) {
	e := env.New()
	e.FromOS()
	cfg, err := config.Load(opts.ConfigPath, e)
	if err != nil {
		return nil, err
	}
	global, err := cfg.GlobalEnv()
	if err != nil {
		return nil, err
	}
	e.SetPairs(global)

	if opts.Debug {
		cfg.Debug = true
	}
	if opts.Cwd != "" {
		cfg.Cwd = opts.Cwd
	}
	if opts.HistoryDSN != "" {
		cfg.History.DSN = opts.HistoryDSN
	}
	if cfg.Cwd == "" {
		if cfg.Cwd, err = os.Getwd(); err != nil {
			return nil, err
		}
	}

	fileCfg := cfg.Log.Logger()
	if fileCfg.Dir == "" {
		fileCfg.Dir = cfg.Cwd
	}
	log := runlog.New(runlog.Options{
		File:    fileCfg,
		Console: opts.Console,
		Debug:   cfg.Debug,
		Start:   opts.Start,
	})

	var sink history.Sink
	if cfg.History.DSN != "" {
		if sink, err = factory.NewSinkFromDSN(cfg.History.DSN); err != nil {
			log.LogError("history", err)
			_ = log.Close()
			return nil, err
		}
	}

	sess := session.New(session.Options{Cwd: cfg.Cwd, Log: log, Env: e, History: sink})
	fs := opts.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Runner{
		cfg:  cfg,
		sess: sess,
		fs:   fileops.New(sess, fs),
		exec: process.New(sess),
	}, nil
}

// Close flushes the run log and closes the history sink. Later calls return
// the first result.
func (r *Runner) Close() error {
	r.closeOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := r.sess.Close(ctx)
		r.closeErr = errors.Join(err, r.sess.Log().Close())
	})
	return r.closeErr
}

// Config returns the effective configuration.
func (r *Runner) Config() *config.Config { return r.cfg }

// Log returns the run log.
func (r *Runner) Log() *runlog.Log { return r.sess.Log() }

// Env returns the session environment.
func (r *Runner) Env() *env.Env { return r.sess.Env() }

// Run log helpers (public facade)

func (r *Runner) Logf(entry string, extras ...any)      { r.sess.Log().Log(entry, extras...) }
func (r *Runner) Debug(entry string, extras ...any)     { r.sess.Log().Debug(entry, extras...) }
func (r *Runner) LogError(identifier string, err error) { r.sess.Log().LogError(identifier, err) }

// Filesystem helpers (public facade)

func (r *Runner) ReadFile(path string) (string, error)             { return r.fs.ReadFile(path) }
func (r *Runner) WriteFile(path, contents string) (string, error)  { return r.fs.WriteFile(path, contents) }
func (r *Runner) AppendFile(path, contents string) (string, error) { return r.fs.AppendFile(path, contents) }
func (r *Runner) TouchFile(path string) error                      { return r.fs.TouchFile(path) }
func (r *Runner) MakeDirectory(path string) error                  { return r.fs.MakeDirectory(path) }
func (r *Runner) MakeDirectories(paths []string) error             { return r.fs.MakeDirectories(paths) }
func (r *Runner) ChangeDirectory(path string) error                { return r.fs.ChangeDirectory(path) }
func (r *Runner) CurrentDirectory() string                         { return r.fs.CurrentDirectory() }
func (r *Runner) Remove(path string) error                         { return r.fs.Remove(path) }
func (r *Runner) RemoveAll(paths []string)                         { r.fs.RemoveAll(paths) }
func (r *Runner) Copy(src, dest string) (string, error)            { return r.fs.Copy(src, dest) }
func (r *Runner) Move(src, dest string) error                      { return r.fs.Move(src, dest) }
func (r *Runner) Symlink(src, dest string) (string, error)         { return r.fs.Symlink(src, dest) }
func (r *Runner) HomeDirectory() string                            { return r.fs.HomeDirectory() }
func (r *Runner) DoesPathExist(path string) bool                   { return r.fs.DoesPathExist(path) }

func (r *Runner) ReplaceInFile(path, find, replace string) (string, error) {
	return r.fs.ReplaceInFile(path, find, replace)
}

// Process helpers (public facade)

func (r *Runner) Exec(ctx context.Context, bin string, args ...string) (ExecResult, error) {
	return r.exec.Exec(ctx, bin, args)
}

func (r *Runner) Stream(ctx context.Context, bin string, args ...string) ExecResult {
	return r.exec.Stream(ctx, bin, args, true)
}

func (r *Runner) StreamQuiet(ctx context.Context, bin string, args ...string) ExecResult {
	return r.exec.StreamQuiet(ctx, bin, args)
}

func (r *Runner) Detached(bin string, args ...string) (int, error) { return r.exec.Detached(bin, args) }

func Inspect(pid int) (ProcessInfo, error) { return process.Inspect(pid) }

// Database helpers (public facade)

// ConnectionConfig resolves DATABASE_URL and the DB_* fallbacks from the
// session environment.
func (r *Runner) ConnectionConfig() (ConnectionConfig, error) {
	s, err := pgconn.SettingsFromEnv(r.sess.Env())
	if err != nil {
		return ConnectionConfig{}, err
	}
	return pgconn.Resolve(pgconn.ConnStringParser{Fs: r.fs.Fs()}, s)
}

// DB opens a pool for the resolved connection config.
func (r *Runner) DB(ctx context.Context) (*DB, error) {
	cfg, err := r.ConnectionConfig()
	if err != nil {
		return nil, err
	}
	return db.Open(ctx, cfg, r.sess.Log())
}

// Misc helpers

func FreePort() (int, error) { return ports.Free() }

// Platform names the operating system the runner is on.
func Platform() string { return runtime.GOOS }

// Sleep blocks for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Metrics helpers (public facade)

func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }
func RegisterMetricsDefault() error                 { return metrics.Register(prometheus.DefaultRegisterer) }

// WriteMetrics dumps the default registry to path in the node_exporter
// textfile format.
func WriteMetrics(path string) error { return metrics.WriteTextfile(path, prometheus.DefaultGatherer) }
