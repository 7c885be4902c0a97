package recaptcha

import (
	"errors"
	"fmt"
)

// ErrBusy indicates another call on the same solver has not completed yet.
var ErrBusy = errors.New("recaptcha: another call is already in flight")

// ValidationError reports a bad argument caught before any network I/O.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("recaptcha: invalid %s: %s", e.Field, e.Reason)
}

// NetworkError reports a transport failure or an unexpected HTTP status.
type NetworkError struct {
	StatusCode int // zero when no response was received
	Err        error
}

func (e *NetworkError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("recaptcha: request failed: %v", e.Err)
	}
	return fmt.Sprintf("recaptcha: received HTTP %d", e.StatusCode)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ProtocolError reports a legacy response missing an expected marker or field.
type ProtocolError struct {
	Step   string
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("recaptcha: %s: %s", e.Step, e.Reason)
}
