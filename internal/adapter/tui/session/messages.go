// Package session runs one page session as a Bubble Tea program: it feeds
// socket, timer, page and key events through the hot-reload engine and
// executes the commands it returns.
package session

import (
	"time"

	"hotpatch/internal/adapter/connection"
	"hotpatch/internal/adapter/page"
	"hotpatch/internal/domain"
)

// ConnEventMsg carries a connection lifecycle event into the program.
type ConnEventMsg struct {
	Event connection.Event
}

// PageEventMsg carries a focus or visibility change into the program.
type PageEventMsg struct {
	Event page.Event
}

// SleepTickMsg fires when a backoff timer elapses. Timers are never
// cancelled; the engine decides whether the wake is still due.
type SleepTickMsg struct {
	Date time.Time
}

// EvalResultMsg reports the outcome of evaluating patched code.
type EvalResultMsg struct {
	Date time.Time
	Err  error
}

// IntrospectedMsg carries a fresh classification of the page's programs.
type IntrospectedMsg struct {
	Result domain.IntrospectionResult
}

// ReloadedMsg is sent once teardown and the page reload have finished.
type ReloadedMsg struct {
	Err error
}
