package domain

// ServerMessage is a decoded frame sent by the watch server.
//
//sumtype:decl
type ServerMessage interface{ isServerMessage() }

// StatusChanged reports a new build status for this client's target.
type StatusChanged struct {
	Status BuildStatus
}

// SuccessfullyCompiled carries freshly compiled code.
type SuccessfullyCompiled struct {
	Code              string
	CompilationMode   CompilationMode
	CompiledTimestamp int64
}

func (StatusChanged) isServerMessage()        {}
func (SuccessfullyCompiled) isServerMessage() {}

// BuildStatus is the payload of StatusChanged.
//
//sumtype:decl
type BuildStatus interface{ isBuildStatus() }

// AlreadyUpToDate means no recompilation was required for this client.
type AlreadyUpToDate struct{}

// BuildBusy means the server is compiling in Mode.
type BuildBusy struct {
	Mode CompilationMode
}

// BuildClientError is a server-side error about this client.
type BuildClientError struct {
	Message string
}

// BuildCompileError means compilation failed; details live on the server.
type BuildCompileError struct{}

func (AlreadyUpToDate) isBuildStatus()   {}
func (BuildBusy) isBuildStatus()         {}
func (BuildClientError) isBuildStatus()  {}
func (BuildCompileError) isBuildStatus() {}

// ClientMessage is a frame sent to the watch server.
//
//sumtype:decl
type ClientMessage interface{ isClientMessage() }

// FocusedTab tells the server this tab gained focus.
type FocusedTab struct{}

// ChangedCompilationMode asks the server to rebuild in Mode.
type ChangedCompilationMode struct {
	Mode CompilationMode
}

func (FocusedTab) isClientMessage()             {}
func (ChangedCompilationMode) isClientMessage() {}

// FrameDecoder turns one inbound text frame into a ServerMessage.
// It must be pure: the same input always yields the same result.
type FrameDecoder func(data []byte) (ServerMessage, error)
