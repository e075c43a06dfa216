// Package apperr defines the closed set of failure kinds shared by every
// component that talks to the outside world.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure
type Kind int

const (
	// KindUnknown is returned by KindOf for errors that carry no Kind
	KindUnknown Kind = iota
	// KindPermissionDenied means the target origin is not authorized
	KindPermissionDenied
	// KindClientError is a terminal 4xx response
	KindClientError
	// KindServerError is a 5xx or transport failure after retries
	KindServerError
	// KindDataUnavailable is an expected-but-missing payload
	KindDataUnavailable
)

// String returns the string representation of Kind
func (k Kind) String() string {
	switch k {
	case KindPermissionDenied:
		return "not-granted"
	case KindClientError:
		return "client-error"
	case KindServerError:
		return "server-error"
	case KindDataUnavailable:
		return "data-unavailable"
	default:
		return "unknown"
	}
}

// Request describes the outbound call an error belongs to
type Request struct {
	Method string `json:"method"`
	URL    string `json:"url"`
}

// Error is the structured error relayed by the gateway and the resolvers
type Error struct {
	Kind    Kind    `json:"kind"`
	Status  int     `json:"status,omitempty"`
	Message string  `json:"message"`
	Request Request `json:"request"`
	Err     error   `json:"-"`
}

func (e *Error) Error() string {
	var msg string
	switch {
	case e.Status != 0:
		msg = fmt.Sprintf("%s: HTTP %d %s", e.Kind, e.Status, e.Message)
	default:
		msg = fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	if e.Request.URL != "" {
		msg += " (" + e.Request.Method + " " + e.Request.URL + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// PermissionDenied builds a KindPermissionDenied error for the given request
func PermissionDenied(req Request, message string) *Error {
	return &Error{Kind: KindPermissionDenied, Message: message, Request: req}
}

// ClientError builds a terminal 4xx error
func ClientError(req Request, status int, message string) *Error {
	return &Error{Kind: KindClientError, Status: status, Message: message, Request: req}
}

// ServerError builds a retryable-class error; status is 0 for transport failures
func ServerError(req Request, status int, message string, cause error) *Error {
	return &Error{Kind: KindServerError, Status: status, Message: message, Request: req, Err: cause}
}

// Unavailable builds a KindDataUnavailable error
func Unavailable(message string) *Error {
	return &Error{Kind: KindDataUnavailable, Message: message}
}

// KindOf extracts the Kind from anywhere in err's chain
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
