// internal/fault/fault.go
package fault

import (
	"errors"
	"fmt"
)

// Kind classifies a failure by how the process reacts to it.
type Kind int

const (
	// Transport: port unreachable or Modbus transaction error. Non-fatal.
	Transport Kind = iota + 1
	// Network: connection, timeout or HTTP error while reporting. Retried.
	Network
	// RateLimited: HTTP 403 from the reporting API. Cooldown, then retried.
	RateLimited
	// Configuration: invalid or missing settings. Fatal at startup.
	Configuration
	// Weather: lookup failed. Marks weather data stale for one cycle.
	Weather
)

func (k Kind) String() string {
	switch k {
	case Transport:
		return "transport"
	case Network:
		return "network"
	case RateLimited:
		return "rate_limited"
	case Configuration:
		return "configuration"
	case Weather:
		return "weather"
	default:
		return "unknown"
	}
}

// Error carries enough context for logs and tests.
// Target is a device name or system id; Attempt is 1-based, 0 when not applicable.
type Error struct {
	Kind    Kind
	Target  string
	Attempt int
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := e.Kind.String()
	if e.Target != "" {
		msg += " (" + e.Target + ")"
	}
	if e.Attempt > 0 {
		msg += fmt.Sprintf(" attempt %d", e.Attempt)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// New wraps err with a kind and target.
func New(kind Kind, target string, err error) *Error {
	return &Error{Kind: kind, Target: target, Err: err}
}

// Is reports whether err (or anything it wraps) is a fault of the given kind.
func Is(err error, kind Kind) bool {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind == kind
	}
	return false
}

// KindOf returns the kind of the first fault in err's chain, or 0.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return 0
}
