package page

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"hotpatch/internal/domain"
	"hotpatch/internal/usecase/guard"
)

// Memory is an in-process page. It records evaluated code instead of
// running it and lets tests script registry contents and page events.
type Memory struct {
	mu        sync.Mutex
	registry  map[string]any
	artifact  Artifact
	staged    *Artifact
	evaluated []string
	reloads   int
	evalHook  func(code string) error
	onReload  func(m *Memory)
	visible   bool
	closed    bool
	events    chan Event
	logger    *slog.Logger
}

var _ Loader = (*Memory)(nil)

// NewMemory creates a visible page running the placeholder.
func NewMemory() *Memory {
	return &Memory{
		registry: map[string]any{},
		artifact: Placeholder,
		visible:  true,
		events:   make(chan Event, 16),
		logger:   slog.Default(),
	}
}

// SetLogger sets where dropped events are reported.
func (m *Memory) SetLogger(l *slog.Logger) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logger = l
}

// SetRegistry replaces the registry contents.
func (m *Memory) SetRegistry(tree map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registry = tree
}

// SetArtifact sets what the page reports as loaded.
func (m *Memory) SetArtifact(a Artifact) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.artifact = a
}

// SetEvalHook installs fn to decide the outcome of Evaluate.
func (m *Memory) SetEvalHook(fn func(code string) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evalHook = fn
}

// Load stages a for the next Reload.
func (m *Memory) Load(a Artifact) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.staged = &a
}

// OnReload installs fn to run after each Reload, e.g. to load a new artifact.
func (m *Memory) OnReload(fn func(m *Memory)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onReload = fn
}

// Emit records a page event and updates visibility. The event is dropped
// when nobody drains the queue.
func (m *Memory) Emit(kind EventKind) {
	m.mu.Lock()
	switch kind {
	case EventVisible:
		m.visible = true
	case EventHidden:
		m.visible = false
	}
	closed, log := m.closed, m.logger
	m.mu.Unlock()
	if closed {
		return
	}
	select {
	case m.events <- Event{Kind: kind, Date: time.Now()}:
	default:
		log.Warn("page event dropped", "kind", kind.String())
	}
}

// Evaluated returns the code passed to Evaluate, in order.
func (m *Memory) Evaluated() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.evaluated...)
}

// Reloads returns how many times the page was reloaded.
func (m *Memory) Reloads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reloads
}

func (m *Memory) Evaluate(_ context.Context, code string) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return domain.NewDomainError("Memory.Evaluate", domain.ErrPageBackend, "closed")
	}
	m.evaluated = append(m.evaluated, code)
	hook := m.evalHook
	m.mu.Unlock()

	if hook == nil {
		return nil
	}
	if err := hook(code); err != nil {
		return &EvalError{Message: err.Error()}
	}
	return nil
}

func (m *Memory) Reload(_ context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return domain.NewDomainError("Memory.Reload", domain.ErrReload, "closed")
	}
	m.reloads++
	if m.staged != nil {
		m.artifact = *m.staged
		m.staged = nil
	}
	fn := m.onReload
	m.mu.Unlock()

	if fn != nil {
		fn(m)
	}
	return nil
}

func (m *Memory) Artifact(_ context.Context) (Artifact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return Artifact{}, domain.NewDomainError("Memory.Artifact", domain.ErrPageBackend, "closed")
	}
	return m.artifact, nil
}

func (m *Memory) Registry(_ context.Context) (guard.Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tree := make(map[string]any, len(m.registry))
	for k, v := range m.registry {
		tree[k] = v
	}
	return registryFor(tree, m.artifact), nil
}

func (m *Memory) Events() <-chan Event { return m.events }

func (m *Memory) Visible() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.visible
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
