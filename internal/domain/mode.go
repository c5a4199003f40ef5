package domain

import (
	"fmt"
	"strings"
)

// CompilationMode is the build variant negotiated between client and server.
type CompilationMode string

const (
	// ModePlaceholder is client-only: the page runs a stub and nothing has been compiled yet.
	ModePlaceholder CompilationMode = "proxy"
	ModeDebug       CompilationMode = "debug"
	ModeStandard    CompilationMode = "standard"
	ModeOptimize    CompilationMode = "optimize"
)

// WireModes lists the modes the server understands, in display order.
var WireModes = []CompilationMode{ModeDebug, ModeStandard, ModeOptimize}

// IsWire reports whether m may appear on the wire.
func (m CompilationMode) IsWire() bool {
	switch m {
	case ModeDebug, ModeStandard, ModeOptimize:
		return true
	}
	return false
}

// ParseCompilationMode parses a mode name, including the placeholder mode.
func ParseCompilationMode(s string) (CompilationMode, error) {
	m := CompilationMode(strings.ToLower(strings.TrimSpace(s)))
	if m.IsWire() || m == ModePlaceholder {
		return m, nil
	}
	return "", NewDomainError("ParseCompilationMode", ErrInvalidMode, fmt.Sprintf("%q", s))
}
