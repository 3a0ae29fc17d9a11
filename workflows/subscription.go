package workflows

import (
	"encoding/gob"
	"fmt"

	"github.com/casaops/intervene"
	"github.com/casaops/intervene/activities"
	"github.com/casaops/intervene/pkg/api"
)

// SubscriptionInput is the input to the subscription workflows.
type SubscriptionInput struct {
	CustomerID     string
	SubscriptionID string
	Plan           string
}

func init() {
	gob.Register(SubscriptionInput{})
}

// SubscriptionCreate provisions a billing account and activates the
// subscription on it.
func SubscriptionCreate(ctx api.WorkflowContext, input any) (any, error) {
	in, ok := input.(SubscriptionInput)
	if !ok {
		return nil, fmt.Errorf("SubscriptionCreate: input must be a SubscriptionInput, got %T", input)
	}

	c := intervene.NewCoordinator(ctx)

	out, err := c.Execute(activities.CreateBillingAccount, []any{in.CustomerID, in.Plan}, activityTimeout)
	if err != nil {
		return finish(c, err)
	}
	account, ok := out.(activities.BillingAccount)
	if !ok {
		return nil, fmt.Errorf("createBillingAccount: unexpected result type %T", out)
	}

	out, err = c.Execute(activities.ActivateSubscription, []any{account.AccountID, in.Plan}, activityTimeout)
	if err != nil {
		return finish(c, err)
	}
	sub, ok := out.(activities.Subscription)
	if !ok {
		return nil, fmt.Errorf("activateSubscription: unexpected result type %T", out)
	}
	return sub, nil
}

// SubscriptionUpdate moves an existing subscription to a new plan.
func SubscriptionUpdate(ctx api.WorkflowContext, input any) (any, error) {
	in, ok := input.(SubscriptionInput)
	if !ok {
		return nil, fmt.Errorf("SubscriptionUpdate: input must be a SubscriptionInput, got %T", input)
	}

	c := intervene.NewCoordinator(ctx)

	out, err := c.Execute(activities.UpdateBillingPlan, []any{in.SubscriptionID, in.Plan}, activityTimeout)
	if err != nil {
		return finish(c, err)
	}
	account, ok := out.(activities.BillingAccount)
	if !ok {
		return nil, fmt.Errorf("updateBillingPlan: unexpected result type %T", out)
	}
	return account, nil
}

// SubscriptionCancel deactivates the subscription and cancels its
// billing account. Deactivation runs first so a blocked billing cancel
// never leaves an active subscription on a cancelled account.
func SubscriptionCancel(ctx api.WorkflowContext, input any) (any, error) {
	in, ok := input.(SubscriptionInput)
	if !ok {
		return nil, fmt.Errorf("SubscriptionCancel: input must be a SubscriptionInput, got %T", input)
	}

	c := intervene.NewCoordinator(ctx)

	out, err := c.Execute(activities.DeactivateSubscription, []any{in.SubscriptionID}, activityTimeout)
	if err != nil {
		return finish(c, err)
	}
	sub, ok := out.(activities.Subscription)
	if !ok {
		return nil, fmt.Errorf("deactivateSubscription: unexpected result type %T", out)
	}

	if _, err := c.Execute(activities.CancelBillingAccount, []any{sub.AccountID}, activityTimeout); err != nil {
		return finish(c, err)
	}
	return sub, nil
}
