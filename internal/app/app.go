package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/specialistvlad/lazyinit/internal/config"
	"github.com/specialistvlad/lazyinit/internal/coordinator"
	"github.com/specialistvlad/lazyinit/internal/ctxlog"
	"github.com/specialistvlad/lazyinit/internal/dispatch"
	"github.com/specialistvlad/lazyinit/internal/image"
	"github.com/specialistvlad/lazyinit/internal/policy"
	"github.com/specialistvlad/lazyinit/internal/reclaim"
	"github.com/specialistvlad/lazyinit/internal/registry"
	"github.com/specialistvlad/lazyinit/internal/server"
	"github.com/specialistvlad/lazyinit/internal/tracing"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW   io.Writer
	logger *slog.Logger
	config *Config

	model        *config.Model
	debug        bool
	pendingEvery time.Duration

	tracing     *tracing.Provider
	arena       *reclaim.Arena
	coordinator *coordinator.Coordinator
	dispatcher  *dispatch.Dispatcher
	server      *server.Server
	closers     []closer

	haltOnce sync.Once
	haltErr  error
	halted   chan struct{}
}

// NewApp is the constructor for the main application. It loads the policy,
// runs the registration phase and closes it, so the returned App only has to
// serve load requests.
//
// Configuration problems are fatal startup errors and panic.
func NewApp(outW io.Writer, cfg *Config, loader config.Loader, modules ...registry.Module) *App {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	model, err := loader.Load(ctx, cfg.PolicyPaths...)
	if err != nil {
		panic(fmt.Errorf("failed to load configuration: %w", err))
	}
	logger.Debug("Policy loaded.", "sources", model.Sources)

	tables, err := policy.New(model.Lists())
	if err != nil {
		panic(fmt.Errorf("failed to build policy tables: %w", err))
	}

	provider, err := tracing.NewProvider(ctx, cfg.Tracing)
	if err != nil {
		panic(fmt.Errorf("failed to configure tracing: %w", err))
	}

	if len(modules) == 0 {
		modules = coreModules(cfg, outW)
	}
	if err := registry.Validate(ctx, tables, modules); err != nil {
		// A mismatch between code and policy is a programmer error.
		panic(err)
	}

	a := &App{
		outW:    outW,
		logger:  logger,
		config:  cfg,
		model:   model,
		debug:   cfg.Debug || (model.Diagnostics.Debug != nil && *model.Diagnostics.Debug),
		tracing: provider,
		arena:   reclaim.NewArena(),
		halted:  make(chan struct{}),
	}
	a.pendingEvery = pendingInterval(cfg, model)
	for _, m := range modules {
		if c, ok := m.(closer); ok {
			a.closers = append(a.closers, c)
		}
	}

	a.coordinator = coordinator.New(tables,
		coordinator.WithReporter(coordinator.ReporterFor(a.debug, a.halt)),
		coordinator.WithCleanup(a.arena.Release),
		coordinator.WithTracer(provider.Tracer()),
	)
	a.arena.Hold("policy model", func() { a.model = nil })

	stats := registry.RegisterAll(ctx, a.coordinator, modules)
	a.runEager(ctx, stats.Eager)
	a.coordinator.CloseRegistration(ctx)

	a.dispatcher = dispatch.New(a.coordinator, &image.Parser{MaxSize: int(cfg.MaxImageSize), Vermagic: cfg.Vermagic}, cfg.MaxImageSize)
	a.server = server.New(server.Config{
		Addr:        cfg.Listen,
		AdminToken:  cfg.AdminToken,
		RateLimit:   cfg.RateLimit,
		Burst:       cfg.RateBurst,
		MaxBodySize: cfg.MaxImageSize,
	}, a.dispatcher, a.coordinator)

	logger.Debug("Application initialized.", "debug", a.debug, "deferred", stats.Deferred, "eager", len(stats.Eager))
	return a
}

// runEager initializes the components the coordinator declined to defer.
func (a *App) runEager(ctx context.Context, offers []registry.Offer) {
	for _, o := range offers {
		if err := o.Fn(ctx); err != nil {
			a.logger.Warn("Eager init routine failed.", "component", o.Name, "error", err)
			continue
		}
		a.logger.Debug("Eager init routine finished.", "component", o.Name)
	}
}

func pendingInterval(cfg *Config, model *config.Model) time.Duration {
	if cfg.PendingInterval > 0 {
		return cfg.PendingInterval
	}
	if model.Diagnostics.PendingInterval != nil {
		return *model.Diagnostics.PendingInterval
	}
	return DefaultPendingInterval
}

// halt is the fatal unknown-component path outside debug mode.
func (a *App) halt(err error) {
	a.haltOnce.Do(func() {
		a.haltErr = err
		close(a.halted)
	})
}

// haltError returns the first halt error, if any.
func (a *App) haltError() error {
	select {
	case <-a.halted:
		return a.haltErr
	default:
		return nil
	}
}

// Coordinator returns the application's coordinator. This is primarily for
// testing.
func (a *App) Coordinator() *coordinator.Coordinator {
	return a.coordinator
}

// Dispatcher returns the load-request entry point.
func (a *App) Dispatcher() *dispatch.Dispatcher {
	return a.dispatcher
}

// Server returns the HTTP front end.
func (a *App) Server() *server.Server {
	return a.server
}

// Debug reports whether diagnostic mode is on.
func (a *App) Debug() bool {
	return a.debug
}
