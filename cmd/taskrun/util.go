package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"
)

// rawJSON is printed verbatim.
type rawJSON string

func printJSON(w io.Writer, v any) error {
	if raw, ok := v.(rawJSON); ok {
		_, err := fmt.Fprintln(w, string(raw))
		return err
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

// parseWait accepts a Go duration ("1.5s") or a bare number of milliseconds.
func parseWait(s string) (time.Duration, error) {
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		if ms < 0 {
			return 0, fmt.Errorf("negative duration %q", s)
		}
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", s)
	}
	return d, nil
}
