package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the domain layer.
var (
	ErrNoSendKey     = fmt.Errorf("send requires the key of the current idle status")
	ErrNotConnected  = fmt.Errorf("no live connection")
	ErrSendQueueFull = fmt.Errorf("outbound queue full")
	ErrDecode        = fmt.Errorf("decode failed")
	ErrEval          = fmt.Errorf("evaluation failed")
	ErrReload        = fmt.Errorf("page reload failed")
	ErrNotReady      = fmt.Errorf("compiled code is not ready")
	ErrInvalidMode   = fmt.Errorf("invalid compilation mode")
	ErrConfigLoad    = fmt.Errorf("failed to load configuration")
	ErrPageBackend   = fmt.Errorf("page backend unavailable")
)

// DomainError wraps a sentinel error with context.
type DomainError struct {
	Op     string // operation name (e.g., "Connection.Send")
	Err    error  // underlying sentinel or wrapped error
	Detail string // human-readable detail
}

func (e *DomainError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *DomainError) Unwrap() error { return e.Err }

// NewDomainError creates a new DomainError.
func NewDomainError(op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail}
}

// WrapOp adds operation context to an error using fmt.Errorf wrapping.
// Returns nil if err is nil, enabling idiomatic use: return domain.WrapOp("op", err)
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// ErrorCode is a machine-parseable error category used as a log attribute.
type ErrorCode string

const (
	CodeUnknown      ErrorCode = "UNKNOWN"
	CodeNoSendKey    ErrorCode = "NO_SEND_KEY"
	CodeNotConnected ErrorCode = "NOT_CONNECTED"
	CodeQueueFull    ErrorCode = "SEND_QUEUE_FULL"
	CodeDecode       ErrorCode = "DECODE"
	CodeEval         ErrorCode = "EVAL"
	CodeReload       ErrorCode = "RELOAD"
	CodeNotReady     ErrorCode = "NOT_READY"
	CodeInvalidMode  ErrorCode = "INVALID_MODE"
	CodeConfigLoad   ErrorCode = "CONFIG_LOAD"
	CodePageBackend  ErrorCode = "PAGE_BACKEND"
)

var errorCodeMap = map[error]ErrorCode{
	ErrNoSendKey:     CodeNoSendKey,
	ErrNotConnected:  CodeNotConnected,
	ErrSendQueueFull: CodeQueueFull,
	ErrDecode:        CodeDecode,
	ErrEval:          CodeEval,
	ErrReload:        CodeReload,
	ErrNotReady:      CodeNotReady,
	ErrInvalidMode:   CodeInvalidMode,
	ErrConfigLoad:    CodeConfigLoad,
	ErrPageBackend:   CodePageBackend,
}

// ErrorCodeOf returns the machine-parseable error code for the given error.
// Returns CodeUnknown if no matching sentinel is found in the chain.
func ErrorCodeOf(err error) ErrorCode {
	if err == nil {
		return CodeUnknown
	}
	if code, ok := errorCodeMap[err]; ok {
		return code
	}
	for sentinel, code := range errorCodeMap {
		if errors.Is(err, sentinel) {
			return code
		}
	}
	return CodeUnknown
}
