package errors

import (
	"fmt"

	"github.com/plateau-io/plateau/internal/domain/command"
)

// Error is a domain error with a stable code and optional metadata for
// message formatting.
type Error struct {
	Code     Code
	Message  string
	Metadata map[string]string

	cause error
}

// New creates a domain error with the given code and developer message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a domain error with a formatted developer message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code to an underlying error.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}

// WithMetadata returns a copy carrying formatting metadata.
func (e *Error) WithMetadata(metadata map[string]string) *Error {
	clone := *e
	clone.Metadata = metadata
	return &clone
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is/As chains.
func (e *Error) Unwrap() error {
	return e.cause
}

// FromRejection converts a command rejection into a domain error. Unknown
// rejection codes keep their string form so wire behavior stays stable.
func FromRejection(rejection command.Rejection) *Error {
	code := Code(rejection.Code)
	if code == "" {
		code = CodeUnknown
	}
	return &Error{Code: code, Message: rejection.Message}
}
