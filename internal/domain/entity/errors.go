package entity

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	ErrorKindInvalidState  ErrorKind = "InvalidState"
	ErrorKindBusy          ErrorKind = "Busy"
	ErrorKindNoTargetPage  ErrorKind = "NoTargetPage"
	ErrorKindActionFailed  ErrorKind = "ActionFailed"
	ErrorKindBackendError  ErrorKind = "BackendError"
	ErrorKindUserCancelled ErrorKind = "UserCancelled"
)

// Error is the classified error used across the core. Two errors match with
// errors.Is when their kinds are equal.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func NewError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func Errorf(kind ErrorKind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// Kind sentinels for errors.Is checks.
var (
	ErrInvalidState  = &Error{Kind: ErrorKindInvalidState}
	ErrBusy          = &Error{Kind: ErrorKindBusy}
	ErrNoTargetPage  = &Error{Kind: ErrorKindNoTargetPage}
	ErrActionFailed  = &Error{Kind: ErrorKindActionFailed}
	ErrBackend       = &Error{Kind: ErrorKindBackendError}
	ErrUserCancelled = &Error{Kind: ErrorKindUserCancelled}
)

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}
