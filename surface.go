package intervene

import (
	"log/slog"

	"github.com/casaops/intervene/pkg/api"
)

// registerSurface installs the resolution signal handler and the query
// handlers. Handlers run while the host holds the instance lock, so they
// only take c.mu and never call back into the WorkflowContext (the
// blocked Execute goroutine performs projection updates after it wakes).
func (c *Coordinator) registerSurface() {
	c.ctx.SetSignalHandler(api.SignalResolveIntervention, c.handleResolveIntervention)

	c.ctx.SetQueryHandler(api.QueryActivityStates, func() (any, error) {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.records.snapshot(), nil
	})

	c.ctx.SetQueryHandler(api.QueryInterventionIDs, func() (any, error) {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.records.interventionIDs(), nil
	})

	c.ctx.SetQueryHandler(api.QueryBlockedActivities, func() (any, error) {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.records.blocked(), nil
	})

	c.ctx.SetQueryHandler(api.QueryIsBlocked, func() (any, error) {
		c.mu.Lock()
		defer c.mu.Unlock()
		return len(c.records.blocked()) > 0, nil
	})
}

// handleResolveIntervention processes a resolveIntervention signal.
// Unknown ids and re-delivered resolutions are logged and ignored so the
// signal is safe to send more than once.
func (c *Coordinator) handleResolveIntervention(payload any) {
	id, ok := payload.(string)
	if !ok || id == "" {
		c.logger.Warn("resolve signal with invalid payload",
			slog.Any("payload", payload),
		)
		return
	}

	c.mu.Lock()
	execID, changed, known := c.records.resolve(id)
	c.mu.Unlock()

	switch {
	case !known:
		c.logger.Info("resolve signal for unknown intervention id, ignoring",
			slog.String("intervention_id", id),
		)
	case !changed:
		c.logger.Info("intervention already resolved, ignoring",
			slog.String("intervention_id", id),
			slog.String("execution_id", execID),
		)
	default:
		c.logger.Info("intervention resolved",
			slog.String("intervention_id", id),
			slog.String("execution_id", execID),
		)
	}
}
