// Package page drives the page that runs the compiled program.
package page

import (
	"context"
	"time"

	"hotpatch/internal/domain"
	"hotpatch/internal/usecase/guard"
)

// EventKind is a page-level change the session listens for.
type EventKind int

const (
	EventFocused EventKind = iota
	EventVisible
	EventHidden
)

func (k EventKind) String() string {
	switch k {
	case EventFocused:
		return "focused"
	case EventVisible:
		return "visible"
	case EventHidden:
		return "hidden"
	}
	return "unknown"
}

// Event is delivered on Host.Events.
type Event struct {
	Kind EventKind
	Date time.Time
}

// Artifact describes the compiled code currently loaded on the page.
type Artifact struct {
	Mode              domain.CompilationMode
	CompiledTimestamp int64
}

// Placeholder is the artifact of a page that has not received compiled code yet.
var Placeholder = Artifact{Mode: domain.ModePlaceholder}

// Host is the page the program runs in.
type Host interface {
	// Evaluate runs patched code. A runtime exception is returned as *EvalError.
	Evaluate(ctx context.Context, code string) error
	// Reload reloads the page, discarding all in-memory program state.
	Reload(ctx context.Context) error
	// Artifact reports what is loaded; Placeholder if nothing is compiled yet.
	Artifact(ctx context.Context) (Artifact, error)
	// Registry returns the page-global program registry.
	Registry(ctx context.Context) (guard.Object, error)
	Events() <-chan Event
	Visible() bool
	Close() error
}

// Loader is a Host that cannot fetch compiled code by itself. Before a
// reload the session stages the build the server announced, and the next
// Reload brings it up.
type Loader interface {
	Load(a Artifact)
}

// EvalError is a runtime exception thrown by evaluated code.
type EvalError struct {
	Message string
}

func (e *EvalError) Error() string { return e.Message }

func (e *EvalError) Unwrap() error { return domain.ErrEval }

// guardAllow lists keys tooling reads on any object; reading them from the
// placeholder registry must not raise.
var guardAllow = []string{"toJSON", "then", "constructor"}

// registryFor wraps tree with the startup guard while the page still runs
// the placeholder.
func registryFor(tree map[string]any, a Artifact) guard.Object {
	if tree == nil {
		tree = map[string]any{}
	}
	if a.Mode == domain.ModePlaceholder {
		return guard.Wrap(guard.Map(tree), guardAllow...)
	}
	return guard.Map(tree)
}
