// Package intervene provides an embeddable, intervention-aware workflow
// execution core for Go.
//
// Intervene is built for backend services whose workflows call activities
// that can fail in ways no retry policy fixes: a provider outage, bad
// upstream data, a misconfigured account. Instead of failing the workflow,
// intervene escalates the exhausted activity to a human operator, suspends
// the workflow durably, and resumes it the moment the operator signals the
// intervention resolved. It runs fully in-process with in-memory or SQLite
// persistence.
//
// # Core Concepts
//
// The programming model is intentionally small:
//
//  1. Host
//  2. Coordinator
//  3. Activities
//  4. Interventions
//
// # Host
//
// The Host runs workflow instances, persists their state and event
// history, and provides APIs to:
//   - start workflows
//   - deliver signals and serve queries
//   - list and inspect instances
//   - resume suspended instances after a restart
//
// # Coordinator
//
// A Coordinator is created inside each workflow function and routes every
// activity call through the intervention lifecycle:
//
//	c := intervene.NewCoordinator(ctx)
//	out, err := c.Execute("geocodeProperty", []any{addr}, 30*time.Second)
//
// Execute retries the activity per the initial retry policy. If every
// attempt fails, it issues an intervention id, marks the workflow as
// blocked in the search attribute projection, and suspends. When an
// operator sends the resolveIntervention signal with that id, the
// activity is retried exactly once more: success unblocks the workflow,
// failure ends the execution in FAILED_AFTER_INTERVENTION.
//
// # Interventions
//
// Operators find blocked workflows through the projected search
// attributes (isBlocked, blockedActivity, blockedError, blockedAt,
// interventionId), inspect them with the built-in queries, and resolve
// them after fixing the external cause:
//
//	h.Signal(ctx, instanceID, api.SignalResolveIntervention, interventionID)
//
// Resolution signals are idempotent; unknown ids are logged and ignored.
//
// # Durability
//
// With the SQLite backend a suspended instance survives process
// restarts. Host.RecoverStuckInstances replays the recorded event
// history, re-applies resolution signals, and continues each instance
// from where it suspended.
package intervene
