// Package apperr carries the failure taxonomy shared by every pipeline stage.
package apperr

import (
	"errors"
	"fmt"
	"runtime/debug"
)

type Kind string

const (
	// KindInput is a missing or unresolvable region identifier or argument.
	KindInput Kind = "input"
	// KindNotAvailable means an upstream artifact does not exist yet.
	KindNotAvailable Kind = "not_available"
	// KindData is an unreadable raster or an unexpected array shape.
	KindData Kind = "data"
	// KindInternal is anything else, including recovered panics.
	KindInternal Kind = "internal"
)

type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg = fmt.Sprintf("%s: %v", msg, e.Err)
		}
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, msg)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, op string, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...), Err: err}
}

func Input(op, format string, args ...any) *Error {
	return newError(KindInput, op, nil, format, args...)
}

func NotAvailable(op, format string, args ...any) *Error {
	return newError(KindNotAvailable, op, nil, format, args...)
}

// Data wraps err (which may be nil) as a data error.
func Data(op string, err error, format string, args ...any) *Error {
	return newError(KindData, op, err, format, args...)
}

func Internal(op string, err error, format string, args ...any) *Error {
	return newError(KindInternal, op, err, format, args...)
}

// KindOf reports the kind of the first *Error in err's chain, or
// KindInternal for untagged errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Recover converts a panic in the calling function into an internal error
// assigned to *errp. It must be deferred directly.
func Recover(op string, errp *error) {
	if r := recover(); r != nil {
		*errp = &Error{
			Kind:    KindInternal,
			Op:      op,
			Message: fmt.Sprintf("panic: %v", r),
			Err:     &panicError{value: r, stack: debug.Stack()},
		}
	}
}

type panicError struct {
	value any
	stack []byte
}

func (p *panicError) Error() string {
	return fmt.Sprintf("%v", p.value)
}

// Stack returns the goroutine stack captured when a panic was recovered, or
// nil when err did not originate from Recover.
func Stack(err error) []byte {
	var p *panicError
	if errors.As(err, &p) {
		return p.stack
	}
	return nil
}
