package workflows_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/casaops/intervene"
	"github.com/casaops/intervene/activities"
	"github.com/casaops/intervene/pkg/api"
	"github.com/casaops/intervene/workflows"
)

func newTestHost(t *testing.T) *intervene.Host {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h, err := intervene.NewInMemoryHost(logger)
	require.NoError(t, err)
	require.NoError(t, workflows.RegisterAll(h))
	return h
}

func register(t *testing.T, h *intervene.Host, name string, fn api.ActivityFunc) {
	t.Helper()
	require.NoError(t, h.RegisterActivity(name, fn))
}

func TestCountyLookupSkipsLookupWhenGeocoderKnowsCounty(t *testing.T) {
	t.Parallel()

	h := newTestHost(t)
	var lookups atomic.Int32

	register(t, h, activities.GeocodeProperty, func(ctx context.Context, args []any) (any, error) {
		return activities.GeocodeResult{Latitude: 30.27, Longitude: -97.74, County: "Travis"}, nil
	})
	register(t, h, activities.LookupCounty, func(ctx context.Context, args []any) (any, error) {
		lookups.Add(1)
		return activities.CountyResult{County: "never"}, nil
	})

	inst, err := h.Run(context.Background(), workflows.CountyLookupName, "501 W 6th St")
	require.NoError(t, err)
	require.Equal(t, api.StatusCompleted, inst.Status)
	require.Equal(t, activities.CountyResult{County: "Travis"}, inst.Output)
	require.Equal(t, int32(0), lookups.Load(), "lookup must be skipped when the geocoder resolves the county")
}

func TestCountyLookupFallsBackToLookup(t *testing.T) {
	t.Parallel()

	h := newTestHost(t)

	register(t, h, activities.GeocodeProperty, func(ctx context.Context, args []any) (any, error) {
		return activities.GeocodeResult{Latitude: 30.27, Longitude: -97.74}, nil
	})
	register(t, h, activities.LookupCounty, func(ctx context.Context, args []any) (any, error) {
		lat, _ := args[0].(float64)
		require.InDelta(t, 30.27, lat, 0.001)
		return activities.CountyResult{County: "Travis", State: "TX", FIPS: "48453"}, nil
	})

	inst, err := h.Run(context.Background(), workflows.CountyLookupName, "501 W 6th St")
	require.NoError(t, err)
	require.Equal(t, api.StatusCompleted, inst.Status)
	require.Equal(t, activities.CountyResult{County: "Travis", State: "TX", FIPS: "48453"}, inst.Output)
}

func TestPermitRetrievalStoresBatch(t *testing.T) {
	t.Parallel()

	h := newTestHost(t)
	var mu sync.Mutex
	var stored []activities.PermitBatch

	register(t, h, activities.LookupCounty, func(ctx context.Context, args []any) (any, error) {
		return activities.CountyResult{County: "Travis"}, nil
	})
	register(t, h, activities.RetrievePermits, func(ctx context.Context, args []any) (any, error) {
		county, _ := args[0].(string)
		return activities.PermitBatch{County: county, PermitIDs: []string{"P-1", "P-2"}}, nil
	})
	register(t, h, activities.StorePermits, func(ctx context.Context, args []any) (any, error) {
		batch, _ := args[0].(activities.PermitBatch)
		mu.Lock()
		stored = append(stored, batch)
		mu.Unlock()
		return nil, nil
	})

	inst, err := h.Run(context.Background(), workflows.PermitRetrievalName, "501 W 6th St")
	require.NoError(t, err)
	require.Equal(t, api.StatusCompleted, inst.Status)

	batch, ok := inst.Output.(activities.PermitBatch)
	require.True(t, ok)
	require.Equal(t, "Travis", batch.County)
	require.Equal(t, []string{"P-1", "P-2"}, batch.PermitIDs)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []activities.PermitBatch{batch}, stored)
}

func TestServiceRequestProcessingAdvancesRemainingTransitions(t *testing.T) {
	t.Parallel()

	h := newTestHost(t)
	var mu sync.Mutex
	var transitions []string
	notified := false

	register(t, h, activities.LoadServiceRequest, func(ctx context.Context, args []any) (any, error) {
		return activities.ServiceRequest{ID: "req-1", Status: activities.RequestValidated, Requester: "ana"}, nil
	})
	register(t, h, activities.TransitionServiceRequest, func(ctx context.Context, args []any) (any, error) {
		next, _ := args[1].(string)
		mu.Lock()
		transitions = append(transitions, next)
		mu.Unlock()
		return activities.ServiceRequest{ID: "req-1", Status: next, Requester: "ana"}, nil
	})
	register(t, h, activities.NotifyRequester, func(ctx context.Context, args []any) (any, error) {
		mu.Lock()
		notified = true
		mu.Unlock()
		return nil, nil
	})

	inst, err := h.Run(context.Background(), workflows.ServiceRequestProcessingName, "req-1")
	require.NoError(t, err)
	require.Equal(t, api.StatusCompleted, inst.Status)

	req, ok := inst.Output.(activities.ServiceRequest)
	require.True(t, ok)
	require.Equal(t, activities.RequestFulfilled, req.Status)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{activities.RequestScheduled, activities.RequestFulfilled}, transitions,
		"a VALIDATED request only walks the remaining transitions")
	require.True(t, notified)
}

func TestSubscriptionCreateRecoversAfterIntervention(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newTestHost(t)

	var billingUp atomic.Bool
	register(t, h, activities.CreateBillingAccount, func(ctx context.Context, args []any) (any, error) {
		if !billingUp.Load() {
			return nil, errors.New("billing unavailable")
		}
		return activities.BillingAccount{AccountID: "acct-1", Plan: "pro"}, nil
	})
	register(t, h, activities.ActivateSubscription, func(ctx context.Context, args []any) (any, error) {
		accountID, _ := args[0].(string)
		return activities.Subscription{SubscriptionID: "sub-1", AccountID: accountID, Active: true}, nil
	})

	id, err := h.Start(ctx, workflows.SubscriptionCreateName, workflows.SubscriptionInput{
		CustomerID: "cust-1",
		Plan:       "pro",
	})
	require.NoError(t, err)

	var interventionID string
	require.Eventually(t, func() bool {
		out, err := h.Query(ctx, id, api.QueryInterventionIDs)
		if err != nil {
			return false
		}
		ids, _ := out.([]string)
		if len(ids) == 0 {
			return false
		}
		interventionID = ids[0]
		return true
	}, 10*time.Second, 20*time.Millisecond)

	billingUp.Store(true)
	require.NoError(t, h.Signal(ctx, id, api.SignalResolveIntervention, interventionID))

	inst, err := h.AwaitCompletion(ctx, id)
	require.NoError(t, err)
	require.Equal(t, api.StatusCompleted, inst.Status)
	require.Equal(t, activities.Subscription{SubscriptionID: "sub-1", AccountID: "acct-1", Active: true}, inst.Output)
}

func TestSubscriptionCancelDeactivatesBeforeBillingCancel(t *testing.T) {
	t.Parallel()

	h := newTestHost(t)
	var mu sync.Mutex
	var calls []string

	register(t, h, activities.DeactivateSubscription, func(ctx context.Context, args []any) (any, error) {
		mu.Lock()
		calls = append(calls, "deactivate")
		mu.Unlock()
		return activities.Subscription{SubscriptionID: "sub-1", AccountID: "acct-1", Active: false}, nil
	})
	register(t, h, activities.CancelBillingAccount, func(ctx context.Context, args []any) (any, error) {
		accountID, _ := args[0].(string)
		require.Equal(t, "acct-1", accountID)
		mu.Lock()
		calls = append(calls, "cancelBilling")
		mu.Unlock()
		return nil, nil
	})

	inst, err := h.Run(context.Background(), workflows.SubscriptionCancelName, workflows.SubscriptionInput{
		SubscriptionID: "sub-1",
	})
	require.NoError(t, err)
	require.Equal(t, api.StatusCompleted, inst.Status)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"deactivate", "cancelBilling"}, calls)
}

func TestSubscriptionUpdateChangesPlan(t *testing.T) {
	t.Parallel()

	h := newTestHost(t)

	register(t, h, activities.UpdateBillingPlan, func(ctx context.Context, args []any) (any, error) {
		subID, _ := args[0].(string)
		plan, _ := args[1].(string)
		require.Equal(t, "sub-1", subID)
		return activities.BillingAccount{AccountID: "acct-1", Plan: plan}, nil
	})

	inst, err := h.Run(context.Background(), workflows.SubscriptionUpdateName, workflows.SubscriptionInput{
		SubscriptionID: "sub-1",
		Plan:           "enterprise",
	})
	require.NoError(t, err)
	require.Equal(t, api.StatusCompleted, inst.Status)
	require.Equal(t, activities.BillingAccount{AccountID: "acct-1", Plan: "enterprise"}, inst.Output)
}
