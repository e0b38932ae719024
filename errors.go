package redistmpl

import (
	"errors"
	"fmt"

	"github.com/raniellyferreira/redistmpl/template"
)

// Code classifies a session failure. The numbering is stable and is what
// script bindings report to callers.
type Code int

const (
	// CodeNone means no error has been recorded
	CodeNone Code = 0

	CodeAlreadyConnected Code = 1
	CodeConnectError     Code = 2
	CodeNotConnected     Code = 3
	CodeMalformedCommand Code = 4
	CodeCommandError     Code = 5

	// CodeConfigNotFound and CodeConfigInvalid are only produced by sessions
	// configured from a resource
	CodeConfigNotFound Code = 6
	CodeConfigInvalid  Code = 7
)

// String returns the name of the code
func (c Code) String() string {
	switch c {
	case CodeNone:
		return "none"
	case CodeAlreadyConnected:
		return "already_connected"
	case CodeConnectError:
		return "connect_error"
	case CodeNotConnected:
		return "not_connected"
	case CodeMalformedCommand:
		return "malformed_command"
	case CodeCommandError:
		return "command_error"
	case CodeConfigNotFound:
		return "config_not_found"
	case CodeConfigInvalid:
		return "config_invalid"
	default:
		return fmt.Sprintf("code(%d)", int(c))
	}
}

// Error is returned by every failing session operation
type Error struct {
	Code    Code
	Message string
	Err     error
}

// Error implements the error interface
func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the wrapped error
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error carrying the same code, so callers can compare
// against the sentinels below with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Sentinels for errors.Is. Returned errors carry more specific messages.
var (
	ErrAlreadyConnected = &Error{Code: CodeAlreadyConnected, Message: "already connected"}
	ErrConnect          = &Error{Code: CodeConnectError, Message: "connect failed"}
	ErrNotConnected     = &Error{Code: CodeNotConnected, Message: "not connected, call Connect first"}
	ErrMalformedCommand = &Error{Code: CodeMalformedCommand, Message: "malformed command"}
	ErrCommand          = &Error{Code: CodeCommandError, Message: "command failed"}
	ErrConfigNotFound   = &Error{Code: CodeConfigNotFound, Message: "connection resource not found"}
	ErrConfigInvalid    = &Error{Code: CodeConfigInvalid, Message: "connection resource is invalid"}
)

// ErrInvalidOption indicates an option was given an unusable value
var ErrInvalidOption = errors.New("invalid option")

func newError(code Code, msg string, cause error) *Error {
	return &Error{Code: code, Message: msg, Err: cause}
}

// CodeOf returns the code of err, CodeNone for nil and CodeCommandError for
// errors that did not come from a session
func CodeOf(err error) Code {
	if err == nil {
		return CodeNone
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeCommandError
}

// ErrorState is the last failure recorded by a session. It is overwritten by
// every failing operation and cleared only by ClearError.
type ErrorState struct {
	Code    Code
	Message string
}

// IsZero reports whether no error is recorded
func (s ErrorState) IsZero() bool {
	return s.Code == CodeNone && s.Message == ""
}

// malformed maps template compile and build failures to MalformedCommand
func malformed(err error) *Error {
	msg := err.Error()
	if errors.Is(err, template.ErrBlankCommand) {
		msg = "blank command"
	}
	return newError(CodeMalformedCommand, msg, err)
}
