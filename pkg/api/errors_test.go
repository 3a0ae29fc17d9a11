package api

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestActivityErrorUnwraps(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection refused")
	err := &ActivityError{Activity: "fetch", Attempts: 3, Err: cause}

	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "fetch")
	require.Contains(t, err.Error(), "3 attempt(s)")
}

func TestIsBlockedError(t *testing.T) {
	t.Parallel()

	blocked := &BlockedError{Activity: "fetch", InterventionID: "wf-1:run-1:fetch-1"}

	got, ok := IsBlockedError(blocked)
	require.True(t, ok)
	require.Equal(t, "fetch", got.Activity)

	// Wrapped blocked errors are still recognized.
	got, ok = IsBlockedError(fmt.Errorf("run ended: %w", blocked))
	require.True(t, ok)
	require.Equal(t, "wf-1:run-1:fetch-1", got.InterventionID)

	_, ok = IsBlockedError(errors.New("something else"))
	require.False(t, ok)
	_, ok = IsBlockedError(nil)
	require.False(t, ok)
}

func TestInterventionFailedErrorUnwraps(t *testing.T) {
	t.Parallel()

	cause := errors.New("still broken")
	err := &InterventionFailedError{Activity: "fetch", InterventionID: "iid", Err: cause}

	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "after intervention iid")
}

func TestInterventionTimeoutErrorMessage(t *testing.T) {
	t.Parallel()

	err := &InterventionTimeoutError{Activity: "fetch", InterventionID: "iid", Timeout: time.Minute}
	require.Contains(t, err.Error(), "fetch")
	require.Contains(t, err.Error(), "1m0s")
	require.Contains(t, err.Error(), "iid")
}

func TestExecutionStateTerminal(t *testing.T) {
	t.Parallel()

	require.True(t, StateCompleted.Terminal())
	require.True(t, StateFailedAfterIntervention.Terminal())
	require.False(t, StatePending.Terminal())
	require.False(t, StateRunning.Terminal())
	require.False(t, StateFailed.Terminal(), "a failed record still escalates to intervention")
	require.False(t, StateAwaitingIntervention.Terminal())
	require.False(t, StateInterventionResolved.Terminal())
}
