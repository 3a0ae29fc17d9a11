package workflows

import (
	"fmt"

	"github.com/casaops/intervene"
	"github.com/casaops/intervene/activities"
	"github.com/casaops/intervene/pkg/api"
)

// transitionOrder lists the service request statuses a request walks
// through; processing advances the request from its current status to
// FULFILLED one transition at a time.
var transitionOrder = []string{
	activities.RequestReceived,
	activities.RequestValidated,
	activities.RequestScheduled,
	activities.RequestFulfilled,
}

// ServiceRequestProcessing loads a service request, advances it through
// the remaining status transitions, and notifies the requester. Input is
// the request id.
func ServiceRequestProcessing(ctx api.WorkflowContext, input any) (any, error) {
	requestID, ok := input.(string)
	if !ok {
		return nil, fmt.Errorf("ServiceRequestProcessing: input must be a string request id, got %T", input)
	}

	c := intervene.NewCoordinator(ctx)

	out, err := c.Execute(activities.LoadServiceRequest, []any{requestID}, activityTimeout)
	if err != nil {
		return finish(c, err)
	}
	req, ok := out.(activities.ServiceRequest)
	if !ok {
		return nil, fmt.Errorf("loadServiceRequest: unexpected result type %T", out)
	}

	for _, next := range remainingTransitions(req.Status) {
		out, err := c.Execute(activities.TransitionServiceRequest, []any{req.ID, next}, activityTimeout)
		if err != nil {
			return finish(c, err)
		}
		if updated, ok := out.(activities.ServiceRequest); ok {
			req = updated
		} else {
			req.Status = next
		}
	}

	if _, err := c.Execute(activities.NotifyRequester, []any{req.ID, req.Requester, req.Status}, activityTimeout); err != nil {
		return finish(c, err)
	}
	return req, nil
}

// remainingTransitions returns the statuses after current in transition
// order. An unknown current status restarts the chain from the top.
func remainingTransitions(current string) []string {
	for i, status := range transitionOrder {
		if status == current {
			return transitionOrder[i+1:]
		}
	}
	return transitionOrder
}
