// Package lanerr defines the error kinds shared by the LAN session engine.
//
// Every error surfaced to a command, a session owner or an HTTP response
// carries one of the kinds below. Callers classify with errors.Is:
//
//	if errors.Is(err, lanerr.ErrTimeout) { ... }
//
// An *Error matches both its kind and its underlying cause.
package lanerr

import (
	"errors"
	"fmt"
)

// Error kinds.
var (
	ErrHandshake      = errors.New("handshake error")
	ErrCrypto         = errors.New("crypto error")
	ErrPayloadParse   = errors.New("payload parse error")
	ErrTimeout        = errors.New("timeout")
	ErrNetwork        = errors.New("network error")
	ErrNotFound       = errors.New("not found")
	ErrPrecondition   = errors.New("precondition failed")
	ErrSessionStopped = errors.New("session stopped")
)

// Refinements of the kinds above.
var (
	// ErrKeyMismatch is reported when the device presents a key id that
	// differs from the one fetched from the cloud.
	ErrKeyMismatch = fmt.Errorf("%w: lan key id mismatch", ErrHandshake)

	// ErrSignature is reported when an envelope signature does not verify.
	ErrSignature = fmt.Errorf("%w: signature mismatch", ErrCrypto)
)

// Error is an error of a given kind with an optional cause.
type Error struct {
	Kind    error
	Message string
	Err     error
}

// New returns an error of the given kind.
func New(kind error, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Wrap returns an error of the given kind caused by err.
func Wrap(kind error, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

func (e *Error) Error() string {
	s := e.Kind.Error()
	if e.Message != "" {
		s += ": " + e.Message
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// StatusError reports a failure status returned by the device, such as a
// negative datapoint ack or a rejected registration.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("status %d", e.Status)
}

// Kind returns the first error kind err matches, or nil.
func Kind(err error) error {
	for _, k := range []error{
		ErrKeyMismatch, ErrSignature,
		ErrHandshake, ErrCrypto, ErrPayloadParse, ErrTimeout,
		ErrNetwork, ErrNotFound, ErrPrecondition, ErrSessionStopped,
	} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
