package domain

// Command is an effect requested by the state machine. Commands are run
// in order, outside the transition function.
//
//sumtype:decl
type Command interface{ isCommand() }

// Evaluate applies patched code to the running program.
type Evaluate struct {
	Code string
}

// Reconnect opens a new connection announcing CompiledTimestamp.
type Reconnect struct {
	CompiledTimestamp int64
}

// ReloadPage discards all in-memory state and reloads the page. Mode and
// CompiledTimestamp identify the build that prompted the reload.
type ReloadPage struct {
	Reason            string
	Mode              CompilationMode
	CompiledTimestamp int64
}

// SleepBeforeReconnect arms a backoff timer for Attempt.
type SleepBeforeReconnect struct {
	Attempt int
}

// SendMessage sends one frame to the server. Build it with NewSendMessage.
type SendMessage struct {
	key     SendKey
	message ClientMessage
}

// NewSendMessage builds a send command; it needs the current Idle key.
func NewSendMessage(key SendKey, message ClientMessage) SendMessage {
	return SendMessage{key: key, message: message}
}

// Key returns the capability the command was built with.
func (c SendMessage) Key() SendKey { return c.key }

// Message returns the frame to send.
func (c SendMessage) Message() ClientMessage { return c.message }

func (Evaluate) isCommand()             {}
func (Reconnect) isCommand()            {}
func (ReloadPage) isCommand()           {}
func (SleepBeforeReconnect) isCommand() {}
func (SendMessage) isCommand()          {}
