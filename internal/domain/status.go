package domain

import "time"

// Status is the connection/build status. Exactly one variant is active and
// every transition replaces it wholesale.
//
//sumtype:decl
type Status interface {
	isStatus()
	// Tag names the variant for logs and rendering.
	Tag() string
	// Since is the time the status was entered.
	Since() time.Time
}

// Connecting means a connection attempt is in flight.
type Connecting struct {
	Date    time.Time
	Attempt int
}

// Busy means the server is compiling. Mode is empty when unknown.
type Busy struct {
	Date time.Time
	Mode CompilationMode
}

// Idle means connected and up to date. Key is the only way to send.
type Idle struct {
	Date time.Time
	Key  SendKey
}

// CompileError means the server reported a compilation error.
type CompileError struct {
	Date time.Time
}

// EvalError means applying patched code threw at runtime.
type EvalError struct {
	Date time.Time
}

// SleepingBeforeReconnect waits out the backoff for Attempt.
type SleepingBeforeReconnect struct {
	Date    time.Time
	Attempt int
}

// UnexpectedError carries a message shown verbatim.
type UnexpectedError struct {
	Date    time.Time
	Message string
}

func (Connecting) isStatus()              {}
func (Busy) isStatus()                    {}
func (Idle) isStatus()                    {}
func (CompileError) isStatus()            {}
func (EvalError) isStatus()               {}
func (SleepingBeforeReconnect) isStatus() {}
func (UnexpectedError) isStatus()         {}

func (Connecting) Tag() string              { return "Connecting" }
func (Busy) Tag() string                    { return "Busy" }
func (Idle) Tag() string                    { return "Idle" }
func (CompileError) Tag() string            { return "CompileError" }
func (EvalError) Tag() string               { return "EvalError" }
func (SleepingBeforeReconnect) Tag() string { return "SleepingBeforeReconnect" }
func (UnexpectedError) Tag() string         { return "UnexpectedError" }

func (s Connecting) Since() time.Time              { return s.Date }
func (s Busy) Since() time.Time                    { return s.Date }
func (s Idle) Since() time.Time                    { return s.Date }
func (s CompileError) Since() time.Time            { return s.Date }
func (s EvalError) Since() time.Time               { return s.Date }
func (s SleepingBeforeReconnect) Since() time.Time { return s.Date }
func (s UnexpectedError) Since() time.Time         { return s.Date }

// SendKey is the capability required for every outbound send. Only NewIdle
// mints one; the zero value is invalid.
type SendKey struct {
	k *sendKeyMark
}

type sendKeyMark struct{ _ byte }

// Valid reports whether the key was minted by NewIdle.
func (k SendKey) Valid() bool { return k.k != nil }

// Same reports whether two keys come from the same Idle transition.
func (k SendKey) Same(other SendKey) bool { return k.k != nil && k.k == other.k }

// NewIdle enters Idle with a freshly minted SendKey.
func NewIdle(date time.Time) Idle {
	return Idle{Date: date, Key: SendKey{k: &sendKeyMark{}}}
}

// Model is the whole client state. It is replaced, never shared, by each transition.
type Model struct {
	Status                Status
	LastCompiledTimestamp int64
	CanHotReload          bool
	UIExpanded            bool
}
