package logger

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// runLogMaxSizeMB is far above any run, so a run log never rotates and
// stays one file.
const runLogMaxSizeMB = 1 << 30

// Config describes where run log files go.
type Config struct {
	Dir string // base directory for run logs; empty means the working directory
}

// Path returns the location of a log file called name under Dir.
func (c Config) Path(name string) string {
	if c.Dir == "" {
		return name
	}
	return filepath.Join(c.Dir, name)
}

// FileWriter returns an append-mode writer for path that never rotates.
// The file and its parent directory are created lazily on first write.
func (c Config) FileWriter(path string) io.WriteCloser {
	if dir := filepath.Dir(path); dir != "" {
		_ = os.MkdirAll(dir, 0o750)
	}
	return &lj.Logger{
		Filename: path,
		MaxSize:  runLogMaxSizeMB,
	}
}

// NewConsole builds the console logger. Debug records are only emitted when
// debug is true.
func NewConsole(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(NewColorTextHandler(w, &slog.HandlerOptions{Level: level}, false))
}
