package domain

import "time"

// Message is an input to the hot-reload state machine.
//
//sumtype:decl
type Message interface{ isMessage() }

// WebSocketConnectedMsg is emitted when the connection opens.
type WebSocketConnectedMsg struct {
	Date time.Time
}

// WebSocketClosedMsg is emitted when the connection closes for any reason,
// including a failed dial.
type WebSocketClosedMsg struct {
	Date time.Time
}

// WebSocketMessageReceivedMsg carries one raw inbound text frame.
type WebSocketMessageReceivedMsg struct {
	Date time.Time
	Data []byte
}

// SleepBeforeReconnectDoneMsg is a backoff timer firing while the page is visible.
type SleepBeforeReconnectDoneMsg struct {
	Date time.Time
}

// PageVisibilityChangedToVisibleMsg forces a reconnect attempt.
type PageVisibilityChangedToVisibleMsg struct {
	Date time.Time
}

// FocusedTabMsg is emitted when the tab regains focus.
type FocusedTabMsg struct{}

// EvalSucceededMsg reports that patched code was applied.
type EvalSucceededMsg struct{}

// EvalErroredMsg reports that patched code threw.
type EvalErroredMsg struct {
	Date    time.Time
	Message string
}

// ChangedCompilationModeMsg is the user picking a compilation mode.
type ChangedCompilationModeMsg struct {
	Date time.Time
	Mode CompilationMode
}

// PressedChevronMsg toggles the expanded status widget.
type PressedChevronMsg struct{}

// PressedReconnectNowMsg is the user skipping the backoff wait.
type PressedReconnectNowMsg struct {
	Date time.Time
}

func (WebSocketConnectedMsg) isMessage()             {}
func (WebSocketClosedMsg) isMessage()                {}
func (WebSocketMessageReceivedMsg) isMessage()       {}
func (SleepBeforeReconnectDoneMsg) isMessage()       {}
func (PageVisibilityChangedToVisibleMsg) isMessage() {}
func (FocusedTabMsg) isMessage()                     {}
func (EvalSucceededMsg) isMessage()                  {}
func (EvalErroredMsg) isMessage()                    {}
func (ChangedCompilationModeMsg) isMessage()         {}
func (PressedChevronMsg) isMessage()                 {}
func (PressedReconnectNowMsg) isMessage()            {}
