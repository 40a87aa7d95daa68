// Package pathutil expands home-relative paths and anchors relative paths to
// an explicit working directory.
package pathutil

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const homePrefix = "~/"

// Resolver expands a leading "~/" to a fixed home directory.
type Resolver struct {
	home string
}

var (
	defaultOnce     sync.Once
	defaultResolver *Resolver
)

// Default returns a Resolver bound to the current user's home directory.
// The lookup happens once per process.
func Default() *Resolver {
	defaultOnce.Do(func() {
		home, err := os.UserHomeDir()
		if err != nil {
			home = os.Getenv("HOME")
		}
		defaultResolver = NewResolver(home)
	})
	return defaultResolver
}

// NewResolver returns a Resolver that expands "~/" to home.
func NewResolver(home string) *Resolver {
	return &Resolver{home: home}
}

// Home returns the directory "~/" expands to.
func (r *Resolver) Home() string { return r.home }

// Resolve replaces a leading "~/" with the home directory. Any other input,
// including the empty string, is returned unchanged; no cleaning is done.
func (r *Resolver) Resolve(path string) string {
	if path == "" {
		return path
	}
	if strings.HasPrefix(path, homePrefix) {
		return r.home + path[1:]
	}
	return path
}

// ResolveAll applies Resolve to every element and returns a new slice.
func (r *Resolver) ResolveAll(paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = r.Resolve(p)
	}
	return out
}

// Join anchors a relative path at cwd. Absolute paths and an empty cwd leave
// path untouched. Unlike filepath.Join the result is not cleaned, so a
// trailing separator on path survives.
func Join(cwd, path string) string {
	if path == "" || cwd == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasSuffix(cwd, string(filepath.Separator)) {
		return cwd + path
	}
	return cwd + string(filepath.Separator) + path
}

// HasTrailingSeparator reports whether path ends with a path separator.
func HasTrailingSeparator(path string) bool {
	return strings.HasSuffix(path, "/") || strings.HasSuffix(path, string(filepath.Separator))
}

// LastSegment returns the text after the final "/" in path. A path ending in
// "/" yields the empty string, matching how cp-style callers split names.
func LastSegment(path string) string {
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}
