package logger

import (
	"os"
	"strconv"
)

// DefaultWidth is used when the terminal width cannot be determined.
const DefaultWidth = 180

// TerminalWidth returns the column count used to chunk long messages.
// COLUMNS wins when set to a positive number; otherwise the width of a
// terminal attached to stdout or stderr; otherwise DefaultWidth.
func TerminalWidth() int {
	if v, err := strconv.Atoi(os.Getenv("COLUMNS")); err == nil && v > 0 {
		return v
	}
	for _, f := range []*os.File{os.Stdout, os.Stderr} {
		if w := fdWidth(f.Fd()); w > 0 {
			return w
		}
	}
	return DefaultWidth
}
