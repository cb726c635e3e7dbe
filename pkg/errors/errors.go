// Package errors provides tagged errors for market data operations.
//
// Every failure surfaced by the fetch layer carries a Kind:
//   - KindConfig: bad input detected before any network call (unknown exchange, bad timeframe)
//   - KindTransport: network, timeout or venue-side failure during a fetch step
//   - KindMalformed: a response that could not be decoded at all
//
// Usage:
//
//	err := errors.Newf(errors.KindConfig, "unknown exchange: %s", id)
//	err := errors.Wrap(errors.KindTransport, "load markets failed", cause)
//	err := errors.WrapStep(errors.KindTransport, "ohlcv failed", cause) // keeps a tagged cause's kind
//	if errors.IsKind(err, errors.KindConfig) { ... }
package errors

import (
	"errors"
	"fmt"
)

// Kind classifies an Error.
type Kind int

const (
	KindUnknown Kind = iota
	KindConfig
	KindTransport
	KindMalformed
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindTransport:
		return "transport"
	case KindMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Error is a tagged error with an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

// New creates an Error with the given kind and message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates an Error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps cause with a kind and message.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Wrapf wraps cause with a kind and formatted message.
func Wrapf(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// WrapStep wraps cause with message. The Kind is the one already carried by
// cause, or fallback when cause is untagged.
func WrapStep(fallback Kind, message string, cause error) *Error {
	kind := KindOf(cause)
	if kind == KindUnknown {
		kind = fallback
	}
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// KindOf returns the Kind of the first *Error in err's chain,
// or KindUnknown when there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
