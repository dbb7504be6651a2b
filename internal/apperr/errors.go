// Package apperr classifies enrichment errors into kinds that the HTTP
// surface can map onto status codes.
package apperr

import (
	"errors"
	"net/http"

	"github.com/rotisserie/eris"
)

// Kind identifies how an error should be handled and reported.
type Kind int

const (
	// KindInternal covers persistence and other unclassified failures.
	KindInternal Kind = iota
	// KindValidation is bad or missing caller input. Never retried.
	KindValidation
	// KindUnauthorized is an ownership mismatch without a valid
	// capability. Never retried.
	KindUnauthorized
	// KindNotFound means the card does not exist.
	KindNotFound
	// KindDownstream is a fatal collaborator failure after retries
	// were exhausted.
	KindDownstream
	// KindTimeout means the run exceeded its wall-clock budget.
	KindTimeout
)

// Error pairs an underlying error with its kind.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string { return e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }

// New wraps a message as an error of the given kind.
func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Err: eris.New(msg)}
}

// Wrap tags an existing error with a kind, preserving its chain.
func Wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: err}
}

// Validation builds a client-input error.
func Validation(msg string) error { return New(KindValidation, msg) }

// Unauthorized builds an ownership/authorization error.
func Unauthorized(msg string) error { return New(KindUnauthorized, msg) }

// NotFound builds a missing-entity error.
func NotFound(msg string) error { return New(KindNotFound, msg) }

// KindOf extracts the kind from an error chain. Untagged errors are
// internal.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

// Status maps an error to the HTTP status code for the trigger endpoint.
func Status(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
