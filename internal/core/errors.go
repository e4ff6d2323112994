package core

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a domain failure so transport adapters can map it to a
// status code without string matching.
type ErrorKind string

const (
	KindNotFound     ErrorKind = "NOT_FOUND"
	KindValidation   ErrorKind = "VALIDATION"
	KindInvalidState ErrorKind = "INVALID_STATE"
	KindUpstream     ErrorKind = "UPSTREAM_FAILURE"
	KindInternal     ErrorKind = "INTERNAL"
)

// Error is the domain error type returned by core services. Validation and
// state errors are detected before any mutation, so an Error of those kinds
// guarantees nothing was written.
type Error struct {
	Kind    ErrorKind
	Message string
	err     error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.err }

// KindOf returns the ErrorKind of err, or KindInternal for anything that is
// not a *core.Error.
func KindOf(err error) ErrorKind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindInternal
}

func NotFoundf(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func Validationf(format string, args ...any) error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func InvalidStatef(format string, args ...any) error {
	return &Error{Kind: KindInvalidState, Message: fmt.Sprintf(format, args...)}
}

// Upstreamf wraps a collaborator failure (payment gateway, SMS provider) so
// the caller can distinguish it from local validation problems.
func Upstreamf(err error, format string, args ...any) error {
	return &Error{Kind: KindUpstream, Message: fmt.Sprintf(format, args...), err: err}
}
