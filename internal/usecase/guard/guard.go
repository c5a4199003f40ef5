// Package guard wraps objects that must fail loudly when used before the
// real compiled code has been loaded.
package guard

import (
	"fmt"
	"sort"

	"hotpatch/internal/domain"
)

// Object is a dynamically keyed value such as the page's program registry.
type Object interface {
	Get(key string) (any, error)
	Has(key string) (bool, error)
	Keys() ([]string, error)
}

// Map is a plain map-backed Object.
type Map map[string]any

// Get returns the value for key, or nil when absent.
func (m Map) Get(key string) (any, error) { return m[key], nil }

// Has reports whether key is present.
func (m Map) Has(key string) (bool, error) {
	_, ok := m[key]
	return ok, nil
}

// Keys returns the keys in sorted order.
func (m Map) Keys() ([]string, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Diagnostic is the single message returned for every premature use.
const Diagnostic = "The compiled code is not ready yet. This page is running a placeholder " +
	"while the watch server builds it for the first time. The page reloads " +
	"automatically once the build finishes; nothing needs to be done."

// NotReadyError is returned by a guarded object for premature use.
type NotReadyError struct {
	Op  string // "get", "has" or "keys"
	Key string // empty for "keys"
}

func (e *NotReadyError) Error() string { return Diagnostic }

func (e *NotReadyError) Unwrap() error { return domain.ErrNotReady }

// Detail describes which access was rejected, for logs.
func (e *NotReadyError) Detail() string {
	if e.Key == "" {
		return e.Op
	}
	return fmt.Sprintf("%s %q", e.Op, e.Key)
}

type guarded struct {
	target Object
	allow  map[string]bool
}

// Wrap returns an Object that passes through keys that exist on target,
// returns nil for absent keys in allow, and rejects every other read as
// well as every presence check and key enumeration with NotReadyError.
func Wrap(target Object, allow ...string) Object {
	g := &guarded{target: target, allow: make(map[string]bool, len(allow))}
	for _, k := range allow {
		g.allow[k] = true
	}
	return g
}

func (g *guarded) Get(key string) (any, error) {
	ok, err := g.target.Has(key)
	if err != nil {
		return nil, err
	}
	if ok {
		return g.target.Get(key)
	}
	if g.allow[key] {
		return nil, nil
	}
	return nil, &NotReadyError{Op: "get", Key: key}
}

func (g *guarded) Has(key string) (bool, error) {
	return false, &NotReadyError{Op: "has", Key: key}
}

func (g *guarded) Keys() ([]string, error) {
	return nil, &NotReadyError{Op: "keys"}
}
