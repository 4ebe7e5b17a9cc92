// README: Error taxonomy shared by the scheduling core and mapped to HTTP at the boundary.
package apperror

import (
	"errors"
	"fmt"
)

type Kind string

const (
	Validation        Kind = "VALIDATION"
	InvalidState      Kind = "INVALID_STATE"
	InvalidTransition Kind = "INVALID_TRANSITION"
	BayConflict       Kind = "BAY_CONFLICT"
	BayInactive       Kind = "BAY_INACTIVE"
	NotFound          Kind = "NOT_FOUND"
	// Conflict means a concurrent writer changed the entity first; the request may be retried.
	Conflict  Kind = "CONFLICT"
	Forbidden Kind = "FORBIDDEN"
	Internal  Kind = "INTERNAL"
)

type Error struct {
	Kind    Kind
	Message string
	Details map[string]any
}

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	return string(e.Kind) + ": " + e.Message
}

// Is matches any *Error of the same kind, so module sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// With returns a copy carrying an extra detail field.
func (e *Error) With(key string, value any) *Error {
	out := &Error{Kind: e.Kind, Message: e.Message, Details: make(map[string]any, len(e.Details)+1)}
	for k, v := range e.Details {
		out.Details[k] = v
	}
	out.Details[key] = value
	return out
}

// KindOf returns the kind of the first *Error in err's chain, or Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// As extracts the *Error from err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}
