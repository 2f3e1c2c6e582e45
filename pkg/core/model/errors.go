package model

import (
	"errors"
	"fmt"
)

// Kind classifies errors returned by the shift engine
type Kind int

const (
	KindValidation Kind = iota + 1
	KindNotFound
	KindConflict
	KindStaleState
	KindForbidden
	KindSchedulerTransient
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindStaleState:
		return "stale_state"
	case KindForbidden:
		return "forbidden"
	case KindSchedulerTransient:
		return "scheduler_transient"
	}
	return "unknown"
}

// Sentinels for errors.Is matching. Any *Error matches the sentinel of its Kind.
var (
	ErrValidation         = &Error{Kind: KindValidation, Message: "validation failed"}
	ErrNotFound           = &Error{Kind: KindNotFound, Message: "not found"}
	ErrConflict           = &Error{Kind: KindConflict, Message: "conflict"}
	ErrStaleState         = &Error{Kind: KindStaleState, Message: "stale state"}
	ErrForbidden          = &Error{Kind: KindForbidden, Message: "forbidden"}
	ErrSchedulerTransient = &Error{Kind: KindSchedulerTransient, Message: "scheduler transient failure"}
)

// ErrAlreadyCancelled is wrapped in the Conflict error returned when cancelling a cancelled shift
var ErrAlreadyCancelled = errors.New("shift already cancelled")

// Error is a classified engine error
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same Kind
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// Errorf builds a classified error with a formatted message
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies an underlying error
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the Kind of the first classified error in the chain, or 0
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
