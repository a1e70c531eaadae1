package generation

import (
	"fmt"
	"time"
)

// TimeoutError reports that the generation service did not answer
// within the configured deadline. The request may still complete on
// the service side; callers treat the operation as failed either way.
type TimeoutError struct {
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("generation request timed out after %s", e.Timeout)
}

// NetworkError reports a transport-level failure before any response
// was received.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("generation request failed: %v", e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ServiceError reports that the generation service answered but the
// answer was unusable: a non-success status, malformed JSON, or a
// payload missing required fields. Partial results are never accepted.
type ServiceError struct {
	Status int
	Reason string
}

func (e *ServiceError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("generation service error (status %d): %s", e.Status, e.Reason)
	}
	return fmt.Sprintf("generation service error: %s", e.Reason)
}
