// Package mapper turns raw RPC responses and stored records into domain
// values. Every function is pure: it either returns a fully populated value
// or a *Error describing the first problem found. Nothing is defaulted when
// the daemon sends something unexpected.
package mapper

import (
	"errors"
	"fmt"
)

// Mapping error kinds. Match them with errors.Is.
var (
	ErrMissingField      = errors.New("missing field")
	ErrInvalidType       = errors.New("invalid type")
	ErrInvalidValue      = errors.New("invalid value")
	ErrMissingArguments  = errors.New("missing arguments")
	ErrEmptyCollection   = errors.New("empty collection")
	ErrUnsupportedStatus = errors.New("unsupported status")
	ErrRPC               = errors.New("rpc error")
)

// Error is a typed mapping failure.
type Error struct {
	Kind     error
	Field    string
	Details  string
	RawValue string
}

func (e *Error) Error() string {
	msg := "map " + e.Kind.Error()
	if e.Field != "" {
		msg += " " + e.Field
	}
	if e.RawValue != "" {
		msg += fmt.Sprintf(" (raw %s)", e.RawValue)
	}
	if e.Details != "" {
		msg += ": " + e.Details
	}
	return msg
}

func (e *Error) Is(target error) bool {
	return target == e.Kind
}

func missingField(field string) *Error {
	return &Error{Kind: ErrMissingField, Field: field}
}

func invalidValue(field, details string) *Error {
	return &Error{Kind: ErrInvalidValue, Field: field, Details: details}
}
