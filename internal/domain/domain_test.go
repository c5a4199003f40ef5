package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendKeyMintedOnlyByNewIdle(t *testing.T) {
	var zero SendKey
	assert.False(t, zero.Valid())
	assert.False(t, zero.Same(zero))

	a := NewIdle(time.Unix(1, 0))
	b := NewIdle(time.Unix(1, 0))
	assert.True(t, a.Key.Valid())
	assert.True(t, a.Key.Same(a.Key))
	assert.False(t, a.Key.Same(b.Key), "each Idle transition mints a distinct key")
}

func TestSendMessageCarriesKey(t *testing.T) {
	idle := NewIdle(time.Now())
	cmd := NewSendMessage(idle.Key, ChangedCompilationMode{Mode: ModeOptimize})
	assert.True(t, cmd.Key().Same(idle.Key))
	assert.Equal(t, ChangedCompilationMode{Mode: ModeOptimize}, cmd.Message())
}

func TestStatusTagAndSince(t *testing.T) {
	at := time.Unix(100, 0)
	statuses := map[string]Status{
		"Connecting":              Connecting{Date: at, Attempt: 1},
		"Busy":                    Busy{Date: at},
		"Idle":                    NewIdle(at),
		"CompileError":            CompileError{Date: at},
		"EvalError":               EvalError{Date: at},
		"SleepingBeforeReconnect": SleepingBeforeReconnect{Date: at, Attempt: 2},
		"UnexpectedError":         UnexpectedError{Date: at, Message: "x"},
	}
	for tag, st := range statuses {
		assert.Equal(t, tag, st.Tag())
		assert.Equal(t, at, st.Since())
	}
}

func TestParseCompilationMode(t *testing.T) {
	for _, in := range []string{"debug", " Standard ", "OPTIMIZE", "proxy"} {
		m, err := ParseCompilationMode(in)
		require.NoError(t, err, in)
		assert.NotEmpty(t, m)
	}

	_, err := ParseCompilationMode("fast")
	assert.ErrorIs(t, err, ErrInvalidMode)
}

func TestCompilationModeIsWire(t *testing.T) {
	for _, m := range WireModes {
		assert.True(t, m.IsWire(), m)
	}
	assert.False(t, ModePlaceholder.IsWire())
	assert.False(t, CompilationMode("").IsWire())
}

func TestProgramKindSupportsDebugger(t *testing.T) {
	supported := map[ProgramKind]bool{
		KindWorker:      false,
		KindHTML:        false,
		KindSandbox:     true,
		KindElement:     true,
		KindDocument:    true,
		KindApplication: true,
	}
	require.Len(t, ProgramKinds, len(supported))
	for _, k := range ProgramKinds {
		assert.Equal(t, supported[k], k.SupportsDebugger(), k)
	}
}

func TestDebuggerAllowed(t *testing.T) {
	assert.True(t, DebuggerAllowed(nil))
	assert.True(t, DebuggerAllowed(NoProgramsAtAll{}))
	assert.True(t, DebuggerAllowed(IntrospectionDecodeError{Message: "bad"}))
	assert.True(t, DebuggerAllowed(DebuggerModeStatus{Mode: DebuggerEnabled{}}))
	assert.False(t, DebuggerAllowed(DebuggerModeStatus{Mode: DebuggerDisabled{Reason: "html"}}))
}
