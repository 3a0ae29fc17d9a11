// Package activities declares the activity names and payload types the
// bundled workflows exchange with their backing services. The activity
// implementations live outside this module; callers register them on the
// host under these names.
package activities

import "encoding/gob"

// Activity names. Workflows invoke activities by these names; hosts must
// register a handler for each name a workflow uses.
const (
	LookupCounty             = "lookupCounty"
	GeocodeProperty          = "geocodeProperty"
	RetrievePermits          = "retrievePermits"
	StorePermits             = "storePermits"
	LoadServiceRequest       = "loadServiceRequest"
	TransitionServiceRequest = "transitionServiceRequest"
	NotifyRequester          = "notifyRequester"
	CreateBillingAccount     = "createBillingAccount"
	ActivateSubscription     = "activateSubscription"
	UpdateBillingPlan        = "updateBillingPlan"
	CancelBillingAccount     = "cancelBillingAccount"
	DeactivateSubscription   = "deactivateSubscription"
)

// GeocodeResult is returned by geocodeProperty.
type GeocodeResult struct {
	Latitude  float64
	Longitude float64
	County    string // empty when the geocoder could not resolve a county
}

// CountyResult is returned by lookupCounty.
type CountyResult struct {
	County string
	State  string
	FIPS   string
}

// PermitBatch is returned by retrievePermits and passed to storePermits.
type PermitBatch struct {
	County    string
	PermitIDs []string
}

// ServiceRequest is returned by loadServiceRequest and drives the
// transition chain in ServiceRequestProcessing.
type ServiceRequest struct {
	ID        string
	Status    string
	Requester string
}

// Service request statuses in transition order.
const (
	RequestReceived  = "RECEIVED"
	RequestValidated = "VALIDATED"
	RequestScheduled = "SCHEDULED"
	RequestFulfilled = "FULFILLED"
)

// BillingAccount is returned by createBillingAccount and updateBillingPlan.
type BillingAccount struct {
	AccountID string
	Plan      string
}

// Subscription is returned by activateSubscription.
type Subscription struct {
	SubscriptionID string
	AccountID      string
	Active         bool
}

func init() {
	gob.Register(GeocodeResult{})
	gob.Register(CountyResult{})
	gob.Register(PermitBatch{})
	gob.Register(ServiceRequest{})
	gob.Register(BillingAccount{})
	gob.Register(Subscription{})
}
