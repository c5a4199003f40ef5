package domain

// ProgramKind is the declared kind of an initialized program on the page.
type ProgramKind string

const (
	KindWorker      ProgramKind = "worker"
	KindHTML        ProgramKind = "html"
	KindSandbox     ProgramKind = "sandbox"
	KindElement     ProgramKind = "element"
	KindDocument    ProgramKind = "document"
	KindApplication ProgramKind = "application"
)

// ProgramKinds lists every known kind.
var ProgramKinds = []ProgramKind{KindWorker, KindHTML, KindSandbox, KindElement, KindDocument, KindApplication}

// SupportsDebugger reports whether the debugger can attach to programs of kind k.
func (k ProgramKind) SupportsDebugger() bool {
	switch k {
	case KindSandbox, KindElement, KindDocument, KindApplication:
		return true
	}
	return false
}

// IntrospectionResult classifies the programs found on the page.
//
//sumtype:decl
type IntrospectionResult interface{ isIntrospectionResult() }

// NoProgramsAtAll means the registry is empty.
type NoProgramsAtAll struct{}

// IntrospectionDecodeError means the registry had an unexpected shape.
type IntrospectionDecodeError struct {
	Message string
}

// DebuggerModeStatus says whether debug mode can be offered.
type DebuggerModeStatus struct {
	Mode DebuggerMode
}

func (NoProgramsAtAll) isIntrospectionResult()          {}
func (IntrospectionDecodeError) isIntrospectionResult() {}
func (DebuggerModeStatus) isIntrospectionResult()       {}

// DebuggerMode is DebuggerEnabled or DebuggerDisabled.
//
//sumtype:decl
type DebuggerMode interface{ isDebuggerMode() }

// DebuggerEnabled means at least one program supports the debugger.
type DebuggerEnabled struct{}

// DebuggerDisabled explains why no program supports the debugger.
type DebuggerDisabled struct {
	Reason string
}

func (DebuggerEnabled) isDebuggerMode()  {}
func (DebuggerDisabled) isDebuggerMode() {}

// DebuggerAllowed reports whether r permits switching to debug mode.
func DebuggerAllowed(r IntrospectionResult) bool {
	s, ok := r.(DebuggerModeStatus)
	if !ok {
		return true
	}
	_, disabled := s.Mode.(DebuggerDisabled)
	return !disabled
}
