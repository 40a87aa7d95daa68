package fileops

import (
	"fmt"
	"strings"
)

// OpError is returned by every failing operation. Its message carries the
// operation, the arguments as given, the cause, the session cwd and the
// resolved paths.
type OpError struct {
	Op       string
	Args     []string
	Resolved []string
	Cwd      string
	Detail   string // extra context lines, e.g. the find/replace pair
	Err      error
}

func (e *OpError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: could not %s %s: %v\n\n", e.Op, verb(e.Op), strings.Join(e.Args, " to "), e.Err)
	if e.Detail != "" {
		b.WriteString(e.Detail)
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "Current working directory: %s\n", e.Cwd)
	switch len(e.Resolved) {
	case 0:
	case 1:
		fmt.Fprintf(&b, "Resolved path: %s\n", e.Resolved[0])
	default:
		fmt.Fprintf(&b, "Resolved src: %s\n", e.Resolved[0])
		fmt.Fprintf(&b, "Resolved dest: %s\n", e.Resolved[1])
	}
	return b.String()
}

func (e *OpError) Unwrap() error { return e.Err }

func verb(op string) string {
	switch op {
	case OpRead:
		return "read"
	case OpWrite:
		return "write"
	case OpAppend, OpTouch:
		return "append"
	case OpReplace:
		return "replace in"
	case OpMkdir:
		return "make directory"
	case OpChdir:
		return "change to directory"
	case OpRemove:
		return "remove path"
	case OpCopy:
		return "copy"
	case OpMove:
		return "move"
	case OpSymlink:
		return "symlink"
	default:
		return op
	}
}
