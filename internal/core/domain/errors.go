package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValueOutOfRange   = errors.New("value out of range")
	ErrInvalidIngestURL  = errors.New("ingest server not set or invalid")
	ErrNoSession         = errors.New("no broadcast session")
	ErrDeviceUnavailable = errors.New("device unavailable")
	ErrProbeInProgress   = errors.New("configuration probe already in progress")
)

// SessionError carries the media engine's numeric error code. The codes
// are engine-specific; ClassifyError encodes the mapping for the engine
// this build integrates with and must be revisited when swapping engines.
type SessionError struct {
	Code    int
	Message string
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("session error %d: %s", e.Code, e.Message)
}

func NewSessionError(code int, message string) *SessionError {
	return &SessionError{Code: code, Message: message}
}

// Engine error codes with a known retry strategy.
const (
	// CodeNetworkUnreachable is emitted when the transport loses
	// connectivity entirely; retrying before the network returns is
	// pointless, so reconnection waits for a reachability signal.
	CodeNetworkUnreachable = 10405

	// CodeUnspecified is the engine's placeholder code for errors that
	// are worth one immediate retry.
	CodeUnspecified = 0
)

type ErrorClass int

const (
	ClassGenericSession ErrorClass = iota
	ClassTransientNetwork
	ClassValidation
	ClassDevice
)

// ClassifyError decides the retry strategy for a session error. Unknown
// errors fall back to a single immediate retry.
func ClassifyError(err error) ErrorClass {
	if errors.Is(err, ErrValueOutOfRange) || errors.Is(err, ErrInvalidIngestURL) {
		return ClassValidation
	}
	if errors.Is(err, ErrDeviceUnavailable) {
		return ClassDevice
	}
	var sessionErr *SessionError
	if errors.As(err, &sessionErr) && sessionErr.Code == CodeNetworkUnreachable {
		return ClassTransientNetwork
	}
	return ClassGenericSession
}
