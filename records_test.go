package intervene

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/casaops/intervene/pkg/api"
)

func TestRecordSetHappyPath(t *testing.T) {
	t.Parallel()

	rs := newRecordSet()
	now := time.Now()

	require.NoError(t, rs.start("geocode-1", "geocode", now))

	rec, ok := rs.get("geocode-1")
	require.True(t, ok)
	require.Equal(t, api.StateRunning, rec.State)
	require.Equal(t, 1, rec.Attempt)
	require.Equal(t, now, rec.StartTime)

	require.NoError(t, rs.complete("geocode-1", "result", now.Add(time.Second)))

	rec, _ = rs.get("geocode-1")
	require.Equal(t, api.StateCompleted, rec.State)
	require.Equal(t, "result", rec.Result)
	require.Empty(t, rs.blocked())
	require.Empty(t, rs.interventionIDs())
}

func TestRecordSetEscalateAndResolve(t *testing.T) {
	t.Parallel()

	rs := newRecordSet()
	now := time.Now()

	require.NoError(t, rs.start("fetch-1", "fetch", now))
	require.NoError(t, rs.fail("fetch-1", "boom", 2))
	require.NoError(t, rs.escalate("fetch-1", "wf-1:run-1:fetch-1", now))

	rec, _ := rs.get("fetch-1")
	require.Equal(t, api.StateAwaitingIntervention, rec.State)
	require.Equal(t, "boom", rec.Error)
	require.Equal(t, 2, rec.Attempt)
	require.Equal(t, "wf-1:run-1:fetch-1", rec.InterventionID)

	require.Len(t, rs.blocked(), 1)
	require.Equal(t, []string{"wf-1:run-1:fetch-1"}, rs.interventionIDs())
	require.Equal(t, []string{"wf-1:run-1:fetch-1"}, rs.pendingInterventionIDs())

	execID, changed, known := rs.resolve("wf-1:run-1:fetch-1")
	require.True(t, known)
	require.True(t, changed)
	require.Equal(t, "fetch-1", execID)
	require.Equal(t, api.StateInterventionResolved, rs.state("fetch-1"))

	// A resolved intervention leaves the blocked and pending sets but
	// stays in the issued list.
	require.Empty(t, rs.blocked())
	require.Empty(t, rs.pendingInterventionIDs())
	require.Equal(t, []string{"wf-1:run-1:fetch-1"}, rs.interventionIDs())
}

func TestRecordSetResolveIsIdempotent(t *testing.T) {
	t.Parallel()

	rs := newRecordSet()
	now := time.Now()

	require.NoError(t, rs.start("fetch-1", "fetch", now))
	require.NoError(t, rs.fail("fetch-1", "boom", 1))
	require.NoError(t, rs.escalate("fetch-1", "iid", now))

	_, changed, known := rs.resolve("iid")
	require.True(t, known)
	require.True(t, changed)

	_, changed, known = rs.resolve("iid")
	require.True(t, known)
	require.False(t, changed, "second resolve must be a no-op")
	require.Equal(t, api.StateInterventionResolved, rs.state("fetch-1"))
}

func TestRecordSetResolveUnknownID(t *testing.T) {
	t.Parallel()

	rs := newRecordSet()
	_, changed, known := rs.resolve("never-issued")
	require.False(t, known)
	require.False(t, changed)
}

func TestRecordSetFailFinal(t *testing.T) {
	t.Parallel()

	rs := newRecordSet()
	now := time.Now()

	require.NoError(t, rs.start("fetch-1", "fetch", now))
	require.NoError(t, rs.fail("fetch-1", "boom", 2))
	require.NoError(t, rs.escalate("fetch-1", "iid", now))
	_, _, _ = rs.resolve("iid")
	require.NoError(t, rs.failFinal("fetch-1", "still broken", now.Add(time.Minute)))

	rec, _ := rs.get("fetch-1")
	require.Equal(t, api.StateFailedAfterIntervention, rec.State)
	require.True(t, rec.State.Terminal())
	require.Equal(t, "still broken", rec.Error)
	require.Empty(t, rs.blocked())
}

func TestRecordSetRejectsIllegalTransitions(t *testing.T) {
	t.Parallel()

	rs := newRecordSet()
	now := time.Now()

	require.NoError(t, rs.start("a-1", "a", now))
	require.Error(t, rs.start("a-1", "a", now), "duplicate execution id")

	// Escalation requires a failed record.
	require.Error(t, rs.escalate("a-1", "iid", now))

	require.NoError(t, rs.complete("a-1", nil, now))
	require.Error(t, rs.fail("a-1", "late failure", 1), "completed records cannot fail")
	require.Error(t, rs.complete("a-1", nil, now), "completed records cannot complete again")

	require.Error(t, rs.fail("missing", "x", 1))
	require.Error(t, rs.failFinal("missing", "x", now))
}

func TestRecordSetSnapshotIsACopy(t *testing.T) {
	t.Parallel()

	rs := newRecordSet()
	now := time.Now()
	require.NoError(t, rs.start("a-1", "a", now))

	snap := rs.snapshot()
	require.Len(t, snap, 1)
	entry := snap["a-1"]
	entry.State = api.StateCompleted
	snap["a-1"] = entry

	require.Equal(t, api.StateRunning, rs.state("a-1"), "mutating the snapshot must not touch the set")
}
