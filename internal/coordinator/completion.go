package coordinator

import (
	"context"

	"github.com/specialistvlad/lazyinit/internal/ctxlog"
)

// completeLocked performs the single Pending -> Completed transition and its
// effect: tail entries in table order, then every init routine is dropped,
// then the cleanup hook runs. c.mu must be held.
func (c *Coordinator) completeLocked(ctx context.Context) {
	if c.state == stateCompleted {
		return
	}
	c.state = stateCompleted
	logger := ctxlog.FromContext(ctx)

	if tail := c.tables.Tail(); len(tail) > 0 {
		logger.Info("All ordinary components loaded, now loading tail components.", "count", len(tail))
		for _, name := range tail {
			res, err := c.activateLocked(ctx, name)
			if err != nil {
				logger.Error("Tail component could not be activated.", "component", name, "error", err)
				continue
			}
			logger.Debug("Tail component resolved.", "component", name, "outcome", res.Outcome.String())
		}
	}

	logger.Debug("Init routines dropped.", "count", c.arena.dropRoutines())

	if c.cleanup != nil {
		logger.Info("All components loaded, running cleanup.")
		if err := c.cleanup(context.WithoutCancel(ctx)); err != nil {
			logger.Error("Cleanup failed.", "error", err)
		}
	} else {
		logger.Info("All components loaded.")
	}

	c.completed.Store(true)
	close(c.done)
}
