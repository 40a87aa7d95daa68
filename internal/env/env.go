package env

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
)

type Var map[string]string

// Env is a snapshot of the process environment plus explicit overrides.
// Lookups see overrides first, then the snapshot.
type Env struct {
	mu  sync.RWMutex
	Var Var // global overrides (K->V)
	env Var // cached base from OS environment
}

func New() *Env {
	return &Env{
		Var: make(Var),
	}
}

// FromOS caches the current process environment as the base.
func (e *Env) FromOS() {
	base := make(Var)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok && k != "" {
			base[k] = v
		}
	}
	e.mu.Lock()
	e.env = base
	e.mu.Unlock()
}

// FromPairs replaces the base with the given "K=V" entries instead of the OS
// environment. Malformed entries are skipped.
func FromPairs(pairs []string) *Env {
	e := New()
	base := make(Var, len(pairs))
	for _, kv := range pairs {
		if k, v, ok := strings.Cut(kv, "="); ok && k != "" {
			base[k] = v
		}
	}
	e.env = base
	return e
}

func (e *Env) ensureBase() {
	e.mu.RLock()
	loaded := e.env != nil
	e.mu.RUnlock()
	if !loaded {
		e.FromOS()
	}
}

// Set sets a global variable K=V.
func (e *Env) Set(k, v string) {
	e.mu.Lock()
	if e.Var == nil {
		e.Var = make(Var)
	}
	e.Var[k] = v
	e.mu.Unlock()
}

// SetPairs applies "K=V" entries as overrides.
func (e *Env) SetPairs(pairs []string) {
	for _, kv := range pairs {
		if k, v, ok := strings.Cut(kv, "="); ok && k != "" {
			e.Set(k, v)
		}
	}
}

// Unset removes a global variable.
func (e *Env) Unset(k string) {
	e.mu.Lock()
	if e.Var != nil {
		delete(e.Var, k)
	}
	e.mu.Unlock()
}

// Lookup returns the value of name and whether it is defined at all, even
// when empty.
func (e *Env) Lookup(name string) (string, bool) {
	e.ensureBase()
	e.mu.RLock()
	defer e.mu.RUnlock()
	if v, ok := e.Var[name]; ok {
		return v, true
	}
	v, ok := e.env[name]
	return v, ok
}

// Read returns the value of name. Undefined and empty values both report
// ok=false.
func (e *Env) Read(name string) (string, bool) {
	v, ok := e.Lookup(name)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// Names returns every defined variable name, sorted.
func (e *Env) Names() []string {
	e.ensureBase()
	e.mu.RLock()
	seen := make(map[string]struct{}, len(e.env)+len(e.Var))
	for k := range e.env {
		seen[k] = struct{}{}
	}
	for k := range e.Var {
		seen[k] = struct{}{}
	}
	e.mu.RUnlock()
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// MissingError reports a required variable that is undefined or empty.
type MissingError struct {
	Name      string
	Empty     bool     // defined but empty
	Available []string // names defined at the time of the lookup
}

func (e *MissingError) Error() string {
	var b strings.Builder
	if e.Empty {
		fmt.Fprintf(&b, "environment variable %s was defined, but was empty", e.Name)
	} else {
		fmt.Fprintf(&b, "no environment variable called %s", e.Name)
	}
	b.WriteString("\n\nAvailable:\n\n")
	b.WriteString(strings.Join(e.Available, "\n"))
	b.WriteString("\n")
	return b.String()
}

// Require returns the value of name or a *MissingError listing every defined
// variable name.
func (e *Env) Require(name string) (string, error) {
	v, ok := e.Lookup(name)
	if ok && v != "" {
		return v, nil
	}
	return "", &MissingError{Name: name, Empty: ok, Available: e.Names()}
}

// Merge composes the child process environment: the base snapshot passed
// through unchanged, then the e.Var overrides, then perProc "K=V" entries.
// Only override values expand ${NAME}: e.Var against the base, perProc
// against the base plus e.Var. Unknown names stay literal. The result is
// sorted "K=V" pairs.
func (e *Env) Merge(perProc []string) []string {
	e.ensureBase()
	m := make(Var)
	e.mu.RLock()
	for k, v := range e.env {
		m[k] = v
	}
	base := make(Var, len(m))
	for k, v := range m {
		base[k] = v
	}
	for k, v := range e.Var {
		if k == "" {
			continue
		}
		m[k] = expand(v, base)
	}
	e.mu.RUnlock()

	layered := make(Var, len(m))
	for k, v := range m {
		layered[k] = v
	}
	for _, kv := range perProc {
		if k, v, ok := strings.Cut(kv, "="); ok && k != "" {
			m[k] = expand(v, layered)
		}
	}
	out := make([]string, 0, len(m))
	for k, v := range m {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}

// expand replaces each ${NAME} in s with its value in m in one left to right
// pass. Substituted text is not expanded again.
func expand(s string, m Var) string {
	if !strings.Contains(s, "${") {
		return s
	}
	var b strings.Builder
	for {
		i := strings.Index(s, "${")
		if i < 0 {
			break
		}
		j := strings.IndexByte(s[i+2:], '}')
		if j < 0 {
			break
		}
		name := s[i+2 : i+2+j]
		b.WriteString(s[:i])
		if v, ok := m[name]; ok {
			b.WriteString(v)
		} else {
			b.WriteString(s[i : i+3+j])
		}
		s = s[i+3+j:]
	}
	b.WriteString(s)
	return b.String()
}
