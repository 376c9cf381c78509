package app

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/specialistvlad/lazyinit/internal/ctxlog"
)

// Run listens on the configured address and serves until ctx is done or the
// node halts.
func (a *App) Run(ctx context.Context) error {
	l, err := net.Listen("tcp", a.config.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.config.Listen, err)
	}
	return a.Serve(ctx, l)
}

// Serve runs the node on l. It returns nil on a normal shutdown and the halt
// error when an unknown component was requested outside debug mode.
func (a *App) Serve(ctx context.Context, l net.Listener) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	a.logger.Debug("App.Serve method started.")

	go func() {
		select {
		case <-a.halted:
			a.logger.Error("Node halted.", "error", a.haltErr)
			cancel(a.haltErr)
		case <-ctx.Done():
		}
	}()

	if a.debug {
		go a.coordinator.WatchPending(ctx, a.pendingEvery)
	}

	go func() {
		select {
		case <-a.coordinator.Done():
			a.logger.Info("🏁 All deferred components activated.")
		case <-ctx.Done():
		}
	}()

	serveErr := a.server.Serve(ctx, l)
	a.shutdown()

	if err := a.haltError(); err != nil {
		return fmt.Errorf("node halted: %w", err)
	}
	return serveErr
}

func (a *App) shutdown() {
	for _, c := range a.closers {
		c.Close()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.tracing.Shutdown(ctx); err != nil {
		a.logger.Error("Tracing shutdown failed.", "error", err)
	}
	a.logger.Debug("App shut down.")
}
