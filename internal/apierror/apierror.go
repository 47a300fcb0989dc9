// Package apierror defines the small set of error kinds the API surface
// maps to HTTP status codes. Everything else in the daemon uses plain
// fmt.Errorf wrapping; this package exists only so the single error
// handler at the edge can tell a bad request from a missing name from an
// internal failure.
package apierror

import "fmt"

// Kind classifies an error for HTTP status mapping.
type Kind string

const (
	KindValidation Kind = "validation"
	KindNotFound   Kind = "not_found"
	KindConflict   Kind = "conflict_with_compose_source"
	KindRegistry   Kind = "registry"
	KindSupervisor Kind = "supervisor"
)

// Error is a typed error carrying a Kind for status-code mapping. It wraps
// an underlying cause so errors.Is/errors.As still see through it.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

func Validationf(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

func NotFoundf(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

func Conflictf(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Msg: fmt.Sprintf(format, args...)}
}
