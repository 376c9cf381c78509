package coordinator

import (
	"context"
	"time"

	"github.com/specialistvlad/lazyinit/internal/ctxlog"
)

// WatchPending logs the ordinary entries that are still unloaded every
// interval. It returns when completion is reached or ctx is cancelled.
func (c *Coordinator) WatchPending(ctx context.Context, interval time.Duration) {
	logger := ctxlog.FromContext(ctx)
	if interval <= 0 {
		logger.Warn("Pending component watcher not started: interval must be positive.", "interval", interval)
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			logger.Debug("Pending component watcher stopped, all components loaded.")
			return
		case <-ticker.C:
			for _, e := range c.Pending() {
				logger.Info("Component not loaded yet.", "index", e.Index, "component", e.Name)
			}
		}
	}
}
