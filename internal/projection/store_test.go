package projection

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func blockedAttrs(id, activity string) Attributes {
	return Attributes{
		InstanceID:      id,
		IsBlocked:       true,
		BlockedActivity: activity,
		BlockedError:    "upstream down",
		BlockedAt:       time.Date(2026, 8, 1, 9, 30, 0, 0, time.UTC),
		InterventionID:  id + ":run:" + activity + "-1",
	}
}

// storeUnderTest exercises every Store implementation the same way.
func storeUnderTest(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	_, err := store.Get(ctx, "wf-404")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Upsert(ctx, blockedAttrs("wf-1", "fetch")))
	require.NoError(t, store.Upsert(ctx, blockedAttrs("wf-2", "geocode")))
	require.NoError(t, store.Upsert(ctx, Attributes{InstanceID: "wf-3"}))

	got, err := store.Get(ctx, "wf-1")
	require.NoError(t, err)
	require.True(t, got.IsBlocked)
	require.Equal(t, "fetch", got.BlockedActivity)
	require.Equal(t, "upstream down", got.BlockedError)
	require.Equal(t, "wf-1:run:fetch-1", got.InterventionID)
	require.True(t, got.BlockedAt.Equal(time.Date(2026, 8, 1, 9, 30, 0, 0, time.UTC)))

	// Operator console queries.
	blocked, err := ListBlocked(ctx, store)
	require.NoError(t, err)
	require.Len(t, blocked, 2)

	isBlocked := true
	byFlag, err := store.List(ctx, Filter{Blocked: &isBlocked})
	require.NoError(t, err)
	require.Len(t, byFlag, 2)

	byActivity, err := store.List(ctx, Filter{BlockedActivity: "geocode"})
	require.NoError(t, err)
	require.Len(t, byActivity, 1)
	require.Equal(t, "wf-2", byActivity[0].InstanceID)

	all, err := store.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)

	// Upsert replaces: resolving wf-1 clears its blocked attributes.
	require.NoError(t, store.Upsert(ctx, Attributes{InstanceID: "wf-1"}))
	got, err = store.Get(ctx, "wf-1")
	require.NoError(t, err)
	require.False(t, got.IsBlocked)
	require.Empty(t, got.InterventionID)

	blocked, err = ListBlocked(ctx, store)
	require.NoError(t, err)
	require.Len(t, blocked, 1)
	require.Equal(t, "wf-2", blocked[0].InstanceID)
}

func TestMemDBStore(t *testing.T) {
	t.Parallel()

	store, err := NewMemDBStore()
	require.NoError(t, err)
	storeUnderTest(t, store)
}

func TestSQLiteStore(t *testing.T) {
	t.Parallel()

	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "attrs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := NewSQLiteStore(db)
	require.NoError(t, err)
	storeUnderTest(t, store)
}

func TestMemDBStoreReturnsCopies(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, err := NewMemDBStore()
	require.NoError(t, err)

	require.NoError(t, store.Upsert(ctx, blockedAttrs("wf-1", "fetch")))
	got, err := store.Get(ctx, "wf-1")
	require.NoError(t, err)
	got.BlockedActivity = "tampered"

	fresh, err := store.Get(ctx, "wf-1")
	require.NoError(t, err)
	require.Equal(t, "fetch", fresh.BlockedActivity)
}
