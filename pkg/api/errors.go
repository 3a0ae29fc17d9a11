package api

import (
	"errors"
	"fmt"
	"time"
)

// ActivityError is returned by the invoker when an activity has failed and
// its retry policy is exhausted. It wraps the last attempt's error.
type ActivityError struct {
	Activity string
	Attempts int
	Err      error
}

func (e *ActivityError) Error() string {
	return fmt.Sprintf("activity %s failed after %d attempt(s): %v", e.Activity, e.Attempts, e.Err)
}

func (e *ActivityError) Unwrap() error { return e.Err }

// BlockedError indicates that the workflow gave up waiting for an
// intervention to be resolved because the host abandoned the wait (for
// example on shutdown), not because the intervention failed. Workflow
// definitions convert it into a structured BlockedResult.
type BlockedError struct {
	Activity       string
	InterventionID string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("workflow blocked on activity %s awaiting intervention %s", e.Activity, e.InterventionID)
}

// IsBlockedError returns the blocked error if err indicates the workflow
// ended while an intervention was still pending.
func IsBlockedError(err error) (*BlockedError, bool) {
	var b *BlockedError
	if errors.As(err, &b) {
		return b, true
	}
	return nil, false
}

// InterventionTimeoutError is the non-retryable fatal error raised when a
// configured intervention timeout elapses before a resolution signal
// arrives. It terminates the workflow instance.
type InterventionTimeoutError struct {
	Activity       string
	InterventionID string
	Timeout        time.Duration
}

func (e *InterventionTimeoutError) Error() string {
	return fmt.Sprintf("intervention for activity %s not resolved within %v (intervention %s)",
		e.Activity, e.Timeout, e.InterventionID)
}

// InterventionFailedError is raised when the single post-intervention
// retry also fails. It is fatal: the instance is not re-queued for another
// round of intervention.
type InterventionFailedError struct {
	Activity       string
	InterventionID string
	Err            error
}

func (e *InterventionFailedError) Error() string {
	return fmt.Sprintf("activity %s failed after intervention %s: %v", e.Activity, e.InterventionID, e.Err)
}

func (e *InterventionFailedError) Unwrap() error { return e.Err }
