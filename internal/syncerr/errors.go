// Package syncerr implements the error taxonomy shared by the dispatcher and
// the handlers it schedules. Each kind carries the HTTP status it maps to so
// the dispatcher's response writer never has to guess.
package syncerr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is one of the seven error kinds the sync protocol distinguishes.
type Kind int

const (
	InternalError Kind = iota
	AuthFailure
	NotFound
	BadRequest
	ClientUpgradeRequired
	ProtocolViolation
	WorkerCrash
)

// Status returns the HTTP status code associated with the kind.
func (k Kind) Status() int {
	switch k {
	case AuthFailure:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	case BadRequest:
		return http.StatusBadRequest
	case ClientUpgradeRequired:
		return http.StatusNotImplemented
	case WorkerCrash, InternalError:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// Error wraps an underlying cause with a Kind and a message safe to return
// to the client (it must never leak internal detail for InternalError/WorkerCrash).
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// As is a thin convenience wrapper around errors.As for this package's type.
func As(err error) (*Error, bool) {
	var se *Error
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
