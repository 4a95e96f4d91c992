package catalog

import (
	"context"
	"errors"
)

// Error kinds. Every layer wraps one of these with fmt.Errorf("...: %w") so
// callers classify failures with errors.Is instead of string matching.
var (
	// ErrNotFound is an authoritative absence reported by a downstream service.
	ErrNotFound = errors.New("not found")
	// ErrUnavailable is a transport or availability fault. Retried.
	ErrUnavailable = errors.New("unavailable")
	// ErrTimedOut means no terminal outcome arrived within the call timeout. Retried.
	ErrTimedOut = errors.New("timed out")
	// ErrCircuitOpen is returned without invoking the downstream client.
	ErrCircuitOpen = errors.New("circuit open")
	// ErrOverloaded means the bulkhead for the domain is full.
	ErrOverloaded = errors.New("overloaded")
	// ErrRateLimited means the domain exhausted its permits for the current period.
	ErrRateLimited = errors.New("rate limited")
	// ErrInvalidResponse is a downstream contract violation.
	ErrInvalidResponse = errors.New("invalid response")
	// ErrInvalidInput is a caller error, e.g. a blank product key.
	ErrInvalidInput = errors.New("invalid input")
	// ErrPublishFailure means the broker did not accept an event.
	ErrPublishFailure = errors.New("publish failure")
)

// Kind is the stable name of an error kind, used in provenance records and
// HTTP error bodies.
type Kind string

const (
	KindNone            Kind = ""
	KindNotFound        Kind = "NOT_FOUND"
	KindUnavailable     Kind = "UNAVAILABLE"
	KindTimedOut        Kind = "TIMED_OUT"
	KindCircuitOpen     Kind = "CIRCUIT_OPEN"
	KindOverloaded      Kind = "OVERLOADED"
	KindRateLimited     Kind = "RATE_LIMITED"
	KindInvalidResponse Kind = "INVALID_RESPONSE"
	KindInvalidInput    Kind = "INVALID_INPUT"
	KindPublishFailure  Kind = "PUBLISH_FAILURE"
	KindCanceled        Kind = "CANCELED"
	KindInternal        Kind = "INTERNAL"
)

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrNotFound, KindNotFound},
	{ErrCircuitOpen, KindCircuitOpen},
	{ErrOverloaded, KindOverloaded},
	{ErrRateLimited, KindRateLimited},
	{ErrTimedOut, KindTimedOut},
	{ErrUnavailable, KindUnavailable},
	{ErrInvalidResponse, KindInvalidResponse},
	{ErrInvalidInput, KindInvalidInput},
	{ErrPublishFailure, KindPublishFailure},
}

// KindOf classifies err. Errors outside the taxonomy are KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimedOut
	case errors.Is(err, context.Canceled):
		return KindCanceled
	}
	return KindInternal
}

// IsTransient reports whether a retry could change the outcome.
func IsTransient(err error) bool {
	return errors.Is(err, ErrUnavailable) || errors.Is(err, ErrTimedOut)
}
