package types

import (
	"errors"
	"fmt"
)

var (
	// ErrNetworkFailure covers rejected requests and non-success responses.
	ErrNetworkFailure = errors.New("network failure")
	// ErrMalformedResponse means the payload did not have the expected shape.
	ErrMalformedResponse = errors.New("malformed response")
	// ErrControlRejected is matched by every *ControlRejectedError.
	ErrControlRejected = errors.New("control rejected")
	ErrNotFound        = errors.New("not found")
)

// ControlRejectedError carries the backend's human-readable reason.
type ControlRejectedError struct {
	Reason string
}

func (e *ControlRejectedError) Error() string {
	return fmt.Sprintf("trading control rejected: %s", e.Reason)
}

func (e *ControlRejectedError) Is(target error) bool { return target == ErrControlRejected }
