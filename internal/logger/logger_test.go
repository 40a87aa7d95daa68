package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFileWriterCreatesFileInDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	cfg := Config{Dir: dir}
	p := cfg.Path("run-x.log")
	if p != filepath.Join(dir, "run-x.log") {
		t.Fatalf("unexpected path %q", p)
	}
	w := cfg.FileWriter(p)
	if _, err := w.Write([]byte("hello\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := w.Write([]byte("world\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = w.Close()
	b, err := os.ReadFile(p)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(b) != "hello\nworld\n" {
		t.Fatalf("unexpected content %q", string(b))
	}
}

func TestFileWriterAppendsToExisting(t *testing.T) {
	p := filepath.Join(t.TempDir(), "a.log")
	if err := os.WriteFile(p, []byte("first\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	w := Config{}.FileWriter(p)
	_, _ = w.Write([]byte("second\n"))
	_ = w.Close()
	b, _ := os.ReadFile(p)
	if string(b) != "first\nsecond\n" {
		t.Fatalf("expected append, got %q", string(b))
	}
}

func TestPathWithoutDir(t *testing.T) {
	if got := (Config{}).Path("x.log"); got != "x.log" {
		t.Fatalf("got %q", got)
	}
}

func TestFileWriterNeverRotates(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "run-big.log")
	w := Config{Dir: dir}.FileWriter(p)
	line := []byte(strings.Repeat("x", 999) + "\n")
	const n = 12 * 1024 // 12MB, past lumberjack's default size
	for i := 0; i < n; i++ {
		if _, err := w.Write(line); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}
	_ = w.Close()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "run-big.log" {
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Fatalf("run log split into %v", names)
	}
	b, err := os.ReadFile(p)
	if err != nil {
		t.Fatal(err)
	}
	if got := bytes.Count(b, []byte("\n")); got != n {
		t.Fatalf("lines = %d, want %d", got, n)
	}
}

func TestConsoleDebugGate(t *testing.T) {
	var buf bytes.Buffer
	l := NewConsole(&buf, false)
	l.Debug("hidden")
	l.Info("shown", "k", "v")
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug leaked when disabled: %q", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "k=v") {
		t.Fatalf("info missing: %q", out)
	}
	if strings.Contains(out, "time=") {
		t.Fatalf("time should be dropped: %q", out)
	}

	buf.Reset()
	NewConsole(&buf, true).Debug("visible")
	if !strings.Contains(buf.String(), "visible") || !strings.Contains(buf.String(), "\033[36m") {
		t.Fatalf("debug record missing or uncolored: %q", buf.String())
	}
}

func TestColorHandlerWithAttrsKeepsColor(t *testing.T) {
	var buf bytes.Buffer
	l := NewConsole(&buf, false).With("op", "copy")
	l.Warn("careful")
	out := buf.String()
	if !strings.Contains(out, "\033[33m") || !strings.Contains(out, "op=copy") {
		t.Fatalf("unexpected: %q", out)
	}
}

func TestTerminalWidthHonorsColumns(t *testing.T) {
	t.Setenv("COLUMNS", "42")
	if w := TerminalWidth(); w != 42 {
		t.Fatalf("got %d", w)
	}
	t.Setenv("COLUMNS", "nope")
	if w := TerminalWidth(); w <= 0 {
		t.Fatalf("width must be positive, got %d", w)
	}
}
