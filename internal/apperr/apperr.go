package apperr

import (
	"errors"
	"net/http"
)

// Error kinds shared by every service. Package-level errors wrap one of these
// so handlers can map a failure to a status without knowing the package.
var (
	ErrNotFound         = errors.New("not found")
	ErrValidation       = errors.New("validation failed")
	ErrInvalidReference = errors.New("invalid reference")
	ErrDuplicate        = errors.New("duplicate")
	ErrUpstream         = errors.New("upstream failure")
	ErrMalformedPayload = errors.New("malformed payload")
)

// Error is a user-facing message tagged with a kind.
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func (e *Error) Unwrap() error { return e.Kind }

func New(kind error, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func Validation(msg string) error       { return New(ErrValidation, msg) }
func NotFound(msg string) error         { return New(ErrNotFound, msg) }
func InvalidReference(msg string) error { return New(ErrInvalidReference, msg) }
func Duplicate(msg string) error        { return New(ErrDuplicate, msg) }
func Malformed(msg string) error        { return New(ErrMalformedPayload, msg) }

// Upstream wraps an infrastructure failure (store, media host) so it keeps its
// cause for logs but reports as a 500.
func Upstream(op string, err error) error {
	return &upstreamError{op: op, err: err}
}

type upstreamError struct {
	op  string
	err error
}

func (e *upstreamError) Error() string { return e.op + ": " + e.err.Error() }

func (e *upstreamError) Unwrap() []error { return []error{ErrUpstream, e.err} }

// Status maps an error to the HTTP status of its kind.
func Status(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrInvalidReference),
		errors.Is(err, ErrDuplicate),
		errors.Is(err, ErrMalformedPayload):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage is the message safe to return to a caller. Infrastructure
// failures are collapsed to a generic text.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Msg
	}
	return "internal error"
}
