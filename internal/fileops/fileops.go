// Package fileops performs filesystem operations on behalf of a session.
// Paths are expanded ("~/") and anchored at the session cwd before use.
package fileops

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/loykin/taskrun/internal/history"
	"github.com/loykin/taskrun/internal/metrics"
	"github.com/loykin/taskrun/internal/pathutil"
	"github.com/loykin/taskrun/internal/session"
)

// Operation names as they appear in errors, metrics and history.
const (
	OpRead    = "readFile"
	OpWrite   = "writeFile"
	OpAppend  = "appendFile"
	OpTouch   = "touchFile"
	OpReplace = "replaceInFile"
	OpMkdir   = "makeDirectory"
	OpChdir   = "changeDirectory"
	OpRemove  = "remove"
	OpCopy    = "copy"
	OpMove    = "move"
	OpSymlink = "symlink"
)

// FS runs file operations against an afero filesystem.
type FS struct {
	fs afero.Fs
	s  *session.Session
}

// New returns an FS bound to s. A nil fs means the OS filesystem.
func New(s *session.Session, fs afero.Fs) *FS {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &FS{fs: fs, s: s}
}

// Fs returns the underlying filesystem.
func (f *FS) Fs() afero.Fs { return f.fs }

func (f *FS) fail(op string, args, resolved []string, err error) error {
	metrics.IncFileOp(op, err)
	return &OpError{Op: op, Args: args, Resolved: resolved, Cwd: f.s.Cwd(), Err: err}
}

func (f *FS) ok(op, msg string, mutates bool, started time.Time, paths ...string) {
	metrics.IncFileOp(op, nil)
	f.s.Log().Debug(op + ": " + msg)
	if mutates {
		f.s.Record(context.Background(), history.EventFile, history.Record{
			Op:         op,
			Args:       paths,
			Cwd:        f.s.Cwd(),
			DurationMS: time.Since(started).Milliseconds(),
		})
	}
}

func (f *FS) ReadFile(path string) (string, error) {
	p := f.s.Abs(path)
	b, err := afero.ReadFile(f.fs, p)
	if err != nil {
		return "", f.fail(OpRead, []string{path}, []string{p}, err)
	}
	f.ok(OpRead, p, false, time.Now())
	return string(b), nil
}

// WriteFile replaces the file contents and returns them.
func (f *FS) WriteFile(path, contents string) (string, error) {
	start := time.Now()
	p := f.s.Abs(path)
	if err := afero.WriteFile(f.fs, p, []byte(contents), 0o644); err != nil {
		return "", f.fail(OpWrite, []string{path}, []string{p}, err)
	}
	f.ok(OpWrite, p, true, start, p)
	return contents, nil
}

// AppendFile appends contents, creating the file when missing.
func (f *FS) AppendFile(path, contents string) (string, error) {
	start := time.Now()
	p := f.s.Abs(path)
	err := f.appendTo(p, []byte(contents))
	if err != nil {
		return "", f.fail(OpAppend, []string{path}, []string{p}, err)
	}
	f.ok(OpAppend, p, true, start, p)
	return contents, nil
}

func (f *FS) appendTo(p string, b []byte) (err error) {
	fh, err := f.fs.OpenFile(p, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := fh.Close(); err == nil {
			err = cerr
		}
	}()
	_, err = fh.Write(b)
	return err
}

// TouchFile sets the access and modification times to now, creating an
// empty file when path does not exist. Contents are never changed.
func (f *FS) TouchFile(path string) error {
	start := time.Now()
	p := f.s.Abs(path)
	err := f.fs.Chtimes(p, start, start)
	if errors.Is(err, os.ErrNotExist) {
		err = f.appendTo(p, nil)
	}
	if err != nil {
		return f.fail(OpTouch, []string{path}, []string{p}, err)
	}
	f.ok(OpTouch, p, true, start, p)
	return nil
}

// ReplaceInFile replaces the first literal occurrence of find and returns the
// new contents.
func (f *FS) ReplaceInFile(path, find, replace string) (string, error) {
	start := time.Now()
	p := f.s.Abs(path)
	b, err := afero.ReadFile(f.fs, p)
	if err == nil {
		out := strings.Replace(string(b), find, replace, 1)
		if err = afero.WriteFile(f.fs, p, []byte(out), 0o644); err == nil {
			f.ok(OpReplace, fmt.Sprintf("%s (%s) -> (%s)", p, find, replace), true, start, p)
			return out, nil
		}
	}
	metrics.IncFileOp(OpReplace, err)
	return "", &OpError{
		Op:       OpReplace,
		Args:     []string{path},
		Resolved: []string{p},
		Cwd:      f.s.Cwd(),
		Detail:   fmt.Sprintf("Searching for  %s\nReplacing with %s", find, replace),
		Err:      err,
	}
}

// MakeDirectory creates path and any missing parents. Existing directories
// are not an error.
func (f *FS) MakeDirectory(path string) error {
	start := time.Now()
	p := f.s.Abs(path)
	if err := f.fs.MkdirAll(p, 0o755); err != nil {
		return f.fail(OpMkdir, []string{path}, []string{p}, err)
	}
	f.ok(OpMkdir, p, true, start, p)
	return nil
}

// MakeDirectories runs MakeDirectory for every path concurrently and waits
// for all of them. Failures are joined.
func (f *FS) MakeDirectories(paths []string) error {
	errs := make([]error, len(paths))
	var wg sync.WaitGroup
	for i, p := range paths {
		wg.Add(1)
		go func(i int, p string) {
			defer wg.Done()
			errs[i] = f.MakeDirectory(p)
		}(i, p)
	}
	wg.Wait()
	return errors.Join(errs...)
}

// ChangeDirectory moves the session cwd to path, which must be a directory.
func (f *FS) ChangeDirectory(path string) error {
	p := f.s.Abs(path)
	info, err := f.fs.Stat(p)
	if err == nil && !info.IsDir() {
		err = fmt.Errorf("%s is not a directory", p)
	}
	if err != nil {
		return f.fail(OpChdir, []string{path}, []string{p}, err)
	}
	f.s.SetCwd(filepath.Clean(p))
	f.ok(OpChdir, p, false, time.Now())
	return nil
}

func (f *FS) CurrentDirectory() string {
	cwd := f.s.Cwd()
	f.s.Log().Debug("currentDirectory: " + cwd)
	return cwd
}

// Remove deletes path recursively. A missing path is a no-op.
func (f *FS) Remove(path string) error {
	start := time.Now()
	p := f.s.Abs(path)
	if !f.exists(p) {
		return nil
	}
	if err := f.fs.RemoveAll(p); err != nil {
		return f.fail(OpRemove, []string{path}, []string{p}, err)
	}
	f.ok(OpRemove, p, true, start, p)
	return nil
}

// RemoveAll removes every path concurrently. Individual failures are logged
// at debug level and otherwise ignored.
func (f *FS) RemoveAll(paths []string) {
	var wg sync.WaitGroup
	for _, path := range paths {
		wg.Add(1)
		go func(path string) {
			defer wg.Done()
			p := f.s.Abs(path)
			start := time.Now()
			if err := f.fs.RemoveAll(p); err != nil {
				metrics.IncFileOp("removeOrContinue", err)
				f.s.Log().Debug("removeOrContinue: skipped " + p + ": " + err.Error())
				return
			}
			f.ok("removeOrContinue", p, true, start, p)
		}(path)
	}
	wg.Wait()
}

// Copy mirrors cp:
//
//	cp some/file.txt somedest   -> somedest/file.txt when somedest is a directory
//	cp some/file.txt other.txt  -> other.txt
//	cp somesource somedest/     -> somedest/somesource
//	cp somesource/ somedest/    -> somedest/*
//	cp somesource somedest      -> somedest/*
//
// Existing files are overwritten and file modes kept. The returned path is
// where the source ended up.
func (f *FS) Copy(src, dest string) (string, error) {
	start := time.Now()
	rs, rd := f.s.Abs(src), f.s.Abs(dest)
	target, err := f.copy(src, dest, rs, rd)
	if err != nil {
		return "", f.fail(OpCopy, []string{src, dest}, []string{rs, rd}, err)
	}
	f.ok(OpCopy, rs+" -> "+target, true, start, rs, target)
	return target, nil
}

func (f *FS) copy(src, dest, rs, rd string) (string, error) {
	srcInfo, err := f.fs.Stat(rs)
	if err != nil {
		return "", err
	}
	base := pathutil.LastSegment(src)

	if !srcInfo.IsDir() {
		target := rd
		if destInfo, err := f.fs.Stat(rd); err == nil && destInfo.IsDir() {
			target = strings.TrimSuffix(rd, "/") + "/" + base
		}
		return target, f.copyFile(rs, target, srcInfo.Mode())
	}

	if pathutil.HasTrailingSeparator(dest) {
		trimmed := strings.TrimRight(rd, `/\`)
		target := trimmed
		if !strings.HasSuffix(trimmed, base) {
			target = trimmed + "/" + base
		}
		if err := f.fs.MkdirAll(target, srcInfo.Mode().Perm()); err != nil {
			return "", err
		}
		return target, f.copyTree(rs, target)
	}
	return rd, f.copyTree(rs, rd)
}

func (f *FS) copyFile(src, dst string, mode os.FileMode) (err error) {
	if err := f.fs.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	in, err := f.fs.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := f.fs.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode.Perm())
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err = io.Copy(out, in); err != nil {
		return err
	}
	return f.fs.Chmod(dst, mode.Perm())
}

func (f *FS) copyTree(src, dst string) error {
	root := filepath.Clean(src)
	return afero.Walk(f.fs, root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		switch {
		case info.IsDir():
			return f.fs.MkdirAll(target, info.Mode().Perm())
		case info.Mode()&os.ModeSymlink != 0:
			return f.copyLink(p, target)
		default:
			return f.copyFile(p, target, info.Mode())
		}
	})
}

func (f *FS) copyLink(src, dst string) error {
	reader, ok := f.fs.(afero.LinkReader)
	linker, ok2 := f.fs.(afero.Linker)
	if !ok || !ok2 {
		return &os.LinkError{Op: "symlink", Old: src, New: dst, Err: afero.ErrNoSymlink}
	}
	link, err := reader.ReadlinkIfPossible(src)
	if err != nil {
		return err
	}
	_ = f.fs.Remove(dst)
	return linker.SymlinkIfPossible(link, dst)
}

// Move renames src to dest.
func (f *FS) Move(src, dest string) error {
	start := time.Now()
	rs, rd := f.s.Abs(src), f.s.Abs(dest)
	if err := f.fs.Rename(rs, rd); err != nil {
		return f.fail(OpMove, []string{src, dest}, []string{rs, rd}, err)
	}
	f.ok(OpMove, rs+" -> "+rd, true, start, rs, rd)
	return nil
}

// Symlink creates dest pointing at src and returns the resolved dest.
func (f *FS) Symlink(src, dest string) (string, error) {
	start := time.Now()
	rs, rd := f.s.Abs(src), f.s.Abs(dest)
	linker, ok := f.fs.(afero.Linker)
	var err error
	if !ok {
		err = afero.ErrNoSymlink
	} else {
		err = linker.SymlinkIfPossible(rs, rd)
	}
	if err != nil {
		return "", f.fail(OpSymlink, []string{src, dest}, []string{rs, rd}, err)
	}
	f.ok(OpSymlink, rs+" -> "+rd, true, start, rs, rd)
	return rd, nil
}

func (f *FS) HomeDirectory() string {
	f.s.Log().Debug("homeDirectory")
	return f.s.Resolver().Home()
}

// DoesPathExist reports whether path can be stat'ed. Any failure counts as
// absent.
func (f *FS) DoesPathExist(path string) bool {
	ok := f.exists(f.s.Abs(path))
	if ok {
		f.s.Log().Debug("doesPathExist: yes " + path)
	} else {
		f.s.Log().Debug("doesPathExist: no " + path)
	}
	return ok
}

func (f *FS) exists(p string) bool {
	_, err := f.fs.Stat(p)
	return err == nil
}
