package cleantxtrelay

import (
	"errors"
	"fmt"
)

var (
	ErrConnectRejected  = errors.New("connect rejected")
	ErrEditDiscarded    = errors.New("edit discarded")
	ErrCheckpointFailed = errors.New("checkpoint failed")
	ErrSessionNotFound  = errors.New("session not found")
	ErrInvalidMessage   = errors.New("invalid message")
	ErrConnectionClosed = errors.New("connection closed")
)

// Wire codes reported to clients in error frames.
const (
	CodeConnectRejected  = "CONNECT_REJECTED"
	CodeEditDiscarded    = "EDIT_DISCARDED"
	CodeCheckpointFailed = "CHECKPOINT_FAILED"
	CodeInvalidMessage   = "INVALID_MESSAGE"
	CodeInternal         = "INTERNAL"
)

// Error is a failure reported back to the originating connection. It unwraps
// to both its kind (one of the sentinels above) and its cause.
type Error struct {
	Code    string
	Message string

	kind  error
	cause error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return fmt.Sprintf("%v: %v: %v", e.kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%v: %v", e.kind, e.Message)
}

func (e *Error) Unwrap() []error {
	var errs []error
	if e.kind != nil {
		errs = append(errs, e.kind)
	}
	if e.cause != nil {
		errs = append(errs, e.cause)
	}
	return errs
}

func newError(code string, kind error, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		kind:    kind,
		cause:   cause,
	}
}

func connectRejected(message string) error {
	return newError(CodeConnectRejected, ErrConnectRejected, message, nil)
}

func editDiscarded(message string, cause error) *Error {
	return newError(CodeEditDiscarded, ErrEditDiscarded, message, cause)
}

func checkpointFailed(message string, cause error) *Error {
	return newError(CodeCheckpointFailed, ErrCheckpointFailed, message, cause)
}

func invalidMessage(message string, cause error) *Error {
	return newError(CodeInvalidMessage, ErrInvalidMessage, message, cause)
}

// ErrorCode maps err to the code and message sent to clients. Causes are not
// exposed; they stay in the logs.
func ErrorCode(err error) (code, message string) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, e.Message
	}
	return CodeInternal, "internal error"
}
