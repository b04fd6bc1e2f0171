package transmission

import (
	"errors"
	"fmt"
)

// Error kinds. Match them with errors.Is.
var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrSessionConflict    = errors.New("session conflict")
	ErrNetworkUnavailable = errors.New("network unavailable")
	ErrDecodingFailed     = errors.New("decoding failed")
	ErrVersionUnsupported = errors.New("rpc version unsupported")
	ErrHTTPStatus         = errors.New("unexpected http status")
	ErrRPC                = errors.New("rpc error")
	ErrUnknown            = errors.New("transport error")
)

// EmptyBodyDetails is the diagnostic for a 2xx response without a body.
const EmptyBodyDetails = "Empty response body"

// Error is a classified transport failure.
type Error struct {
	Kind       error
	Method     string
	Details    string
	StatusCode int // ErrHTTPStatus and ErrUnauthorized
	Version    int // ErrVersionUnsupported
	Err        error
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	switch {
	case errors.Is(e.Kind, ErrHTTPStatus) && e.StatusCode != 0:
		msg = fmt.Sprintf("%s %d", msg, e.StatusCode)
	case errors.Is(e.Kind, ErrVersionUnsupported):
		msg = fmt.Sprintf("%s (%d)", msg, e.Version)
	}
	if e.Method != "" {
		msg = e.Method + ": " + msg
	}
	if e.Details != "" {
		msg += ": " + e.Details
	}
	if e.Err != nil && e.Details == "" {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Is(target error) bool {
	return target == e.Kind
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind error, method, details string, cause error) *Error {
	return &Error{Kind: kind, Method: method, Details: details, Err: cause}
}

// IsRetriable reports whether err is a transient transport failure a caller
// may try again later.
func IsRetriable(err error) bool {
	return errors.Is(err, ErrNetworkUnavailable) || errors.Is(err, ErrSessionConflict)
}
