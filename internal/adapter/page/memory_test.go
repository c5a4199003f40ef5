package page

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hotpatch/internal/domain"
	"hotpatch/internal/usecase/guard"
)

// Compile-time interface checks.
var (
	_ Host = (*Memory)(nil)
	_ Host = (*ChromeDP)(nil)
)

func TestMemoryEvaluate(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.Evaluate(ctx, "1+1"))
	m.SetEvalHook(func(code string) error {
		if code == "throw" {
			return errors.New("Uncaught Error: boom")
		}
		return nil
	})
	err := m.Evaluate(ctx, "throw")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrEval))

	var evalErr *EvalError
	require.True(t, errors.As(err, &evalErr))
	assert.Equal(t, "Uncaught Error: boom", evalErr.Message)

	assert.Equal(t, []string{"1+1", "throw"}, m.Evaluated())
}

func TestMemoryReload(t *testing.T) {
	m := NewMemory()
	m.OnReload(func(m *Memory) {
		m.SetArtifact(Artifact{Mode: domain.ModeStandard, CompiledTimestamp: 7})
	})

	require.NoError(t, m.Reload(context.Background()))
	assert.Equal(t, 1, m.Reloads())

	a, err := m.Artifact(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Artifact{Mode: domain.ModeStandard, CompiledTimestamp: 7}, a)

	require.NoError(t, m.Close())
	assert.True(t, errors.Is(m.Reload(context.Background()), domain.ErrReload))
	_, err = m.Artifact(context.Background())
	assert.ErrorIs(t, err, domain.ErrPageBackend)
}

func TestMemoryLoadAppliesOnReload(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	built := Artifact{Mode: domain.ModeStandard, CompiledTimestamp: 7}

	m.Load(built)
	a, err := m.Artifact(ctx)
	require.NoError(t, err)
	assert.Equal(t, Placeholder, a, "staged until reload")

	var seen Artifact
	m.OnReload(func(m *Memory) { seen, _ = m.Artifact(ctx) })
	require.NoError(t, m.Reload(ctx))
	assert.Equal(t, built, seen)

	require.NoError(t, m.Reload(ctx))
	a, err = m.Artifact(ctx)
	require.NoError(t, err)
	assert.Equal(t, built, a, "a plain reload keeps the loaded build")
}

func TestMemoryRegistryGuardedWhilePlaceholder(t *testing.T) {
	m := NewMemory()
	reg, err := m.Registry(context.Background())
	require.NoError(t, err)

	_, err = reg.Keys()
	assert.True(t, errors.Is(err, domain.ErrNotReady))
	v, err := reg.Get("toJSON")
	assert.NoError(t, err)
	assert.Nil(t, v)

	m.SetArtifact(Artifact{Mode: domain.ModeDebug, CompiledTimestamp: 1})
	m.SetRegistry(map[string]any{"Main": map[string]any{"programKind": "element"}})
	reg, err = m.Registry(context.Background())
	require.NoError(t, err)
	assert.IsType(t, guard.Map{}, reg)
	keys, err := reg.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{"Main"}, keys)
}

func TestMemoryEvents(t *testing.T) {
	m := NewMemory()
	assert.True(t, m.Visible())

	m.Emit(EventHidden)
	assert.False(t, m.Visible())
	m.Emit(EventVisible)
	assert.True(t, m.Visible())
	m.Emit(EventFocused)

	var kinds []EventKind
	for i := 0; i < 3; i++ {
		kinds = append(kinds, (<-m.Events()).Kind)
	}
	assert.Equal(t, []EventKind{EventHidden, EventVisible, EventFocused}, kinds)
	assert.Equal(t, "visible", EventVisible.String())
}

func TestMemoryEmitDropsWhenQueueFull(t *testing.T) {
	var buf bytes.Buffer
	m := NewMemory()
	m.SetLogger(slog.New(slog.NewTextHandler(&buf, nil)))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < cap(m.events)+4; i++ {
			m.Emit(EventFocused)
		}
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Emit blocked on a full queue")
	}
	assert.Len(t, m.events, cap(m.events))
	assert.Contains(t, buf.String(), "page event dropped")
}
