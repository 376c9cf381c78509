package coordinator

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/specialistvlad/lazyinit/internal/ctxlog"
	"github.com/specialistvlad/lazyinit/internal/policy"
	"github.com/specialistvlad/lazyinit/internal/registry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Outcome describes how a single activation request was resolved.
type Outcome int

const (
	OutcomeActivated Outcome = iota + 1
	OutcomeAlreadyLoaded
	OutcomeExcluded
	OutcomeAlreadyActive
	OutcomeAfterCompletion
	OutcomeUnknown
)

func (o Outcome) String() string {
	switch o {
	case OutcomeActivated:
		return "activated"
	case OutcomeAlreadyLoaded:
		return "already_loaded"
	case OutcomeExcluded:
		return "excluded"
	case OutcomeAlreadyActive:
		return "already_active"
	case OutcomeAfterCompletion:
		return "after_completion"
	case OutcomeUnknown:
		return "unknown"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Result is returned by Activate.
type Result struct {
	Outcome Outcome
	// InitErr is the init routine's error. It is informational; the request
	// itself still succeeded.
	InitErr error
	// Completed is true for the single request that triggered completion.
	Completed bool
}

// CleanupFunc runs once, after every ordinary and tail entry has run.
type CleanupFunc func(ctx context.Context) error

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithReporter sets the unknown-component strategy. The default halts by
// panicking.
func WithReporter(r Reporter) Option {
	return func(c *Coordinator) { c.reporter = r }
}

// WithCleanup sets the one-time cleanup hook.
func WithCleanup(fn CleanupFunc) Option {
	return func(c *Coordinator) { c.cleanup = fn }
}

// WithTracer sets the tracer used for activation spans.
func WithTracer(t trace.Tracer) Option {
	return func(c *Coordinator) { c.tracer = t }
}

type phase int

const (
	phaseRegistering phase = iota
	phaseServing
)

type state int

const (
	statePending state = iota
	stateCompleted
)

// Coordinator owns the deferred registry and the completion state machine.
// The zero value is not usable; create one with New.
type Coordinator struct {
	tables   *policy.Tables
	reporter Reporter
	cleanup  CleanupFunc
	tracer   trace.Tracer

	mu    sync.Mutex
	arena *arena
	phase phase
	state state

	// completed and done mirror state for lock-free readers. Both are
	// published after the completion effect has finished.
	completed atomic.Bool
	done      chan struct{}
}

// New creates a coordinator for the given tables.
func New(tables *policy.Tables, opts ...Option) *Coordinator {
	c := &Coordinator{
		tables:   tables,
		reporter: HaltReporter{},
		tracer:   noop.NewTracerProvider().Tracer("lazyinit"),
		arena:    newArena(tables.Capacity()),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Register implements registry.Registrar. It must only be called during the
// registration phase; registering a name twice or after the phase ended
// panics. Names are compared in policy.Canonical form.
func (c *Coordinator) Register(name string, fn registry.InitFunc, source string) bool {
	name = policy.Canonical(name)
	if c.tables.IsExcluded(name) || !c.tables.IsEligible(name) {
		return false
	}
	if fn == nil {
		panic(fmt.Sprintf("coordinator: component '%s' registered without an init routine", name))
	}

	class := Ordinary
	if c.tables.IsTail(name) {
		class = Tail
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != phaseRegistering {
		panic(fmt.Sprintf("coordinator: component '%s' registered after registration closed", name))
	}
	c.arena.add(entry{name: name, source: source, class: class, fn: fn})
	return true
}

// CloseRegistration ends the registration phase. It is called implicitly by
// the first Activate. If no ordinary entry was registered, completion is
// reached immediately.
func (c *Coordinator) CloseRegistration(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeRegistrationLocked(ctx)
}

func (c *Coordinator) closeRegistrationLocked(ctx context.Context) {
	if c.phase == phaseServing {
		return
	}
	c.phase = phaseServing

	ordinary := c.arena.count(Ordinary)
	ctxlog.FromContext(ctx).Info("Registration closed.",
		"entries", len(c.arena.entries), "ordinary", ordinary, "tail", c.arena.count(Tail))

	if ordinary == 0 {
		c.completeLocked(ctx)
	}
}

// Activate resolves a load request for name. It returns an error only for
// reentrant calls and unknown components; init routine failures are reported
// in Result.InitErr.
func (c *Coordinator) Activate(ctx context.Context, name string) (Result, error) {
	if insideActivation(ctx) {
		return Result{}, fmt.Errorf("%w: %q requested from inside an init routine", ErrReentrant, name)
	}
	name = policy.Canonical(name)

	ctx, span := c.tracer.Start(ctx, "lazyinit.activate",
		trace.WithAttributes(attribute.String("component.name", name)))
	defer span.End()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeRegistrationLocked(ctx)

	var (
		res Result
		err error
	)
	if c.state == stateCompleted {
		// Requests may keep arriving after everything has been loaded.
		res = Result{Outcome: OutcomeAfterCompletion}
	} else {
		res, err = c.activateLocked(ctx, name)
		if res.Outcome == OutcomeActivated && c.arena.ordinaryLoaded() {
			c.completeLocked(ctx)
			res.Completed = true
		}
	}

	span.SetAttributes(
		attribute.String("activation.outcome", res.Outcome.String()),
		attribute.Bool("activation.completed", res.Completed),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return res, err
}

// activateLocked runs the decision sequence for one name. c.mu must be held.
func (c *Coordinator) activateLocked(ctx context.Context, name string) (Result, error) {
	logger := ctxlog.FromContext(ctx).With("component", name)
	logger.Debug("Trying to activate component.")

	if c.tables.IsExcluded(name) {
		logger.Debug("Component is excluded from deferral.")
		return Result{Outcome: OutcomeExcluded}, nil
	}

	i, ok := c.arena.lookup(name)
	if !ok {
		if c.tables.IsAlreadyActive(name) {
			logger.Debug("Component is built in without an init routine.")
			return Result{Outcome: OutcomeAlreadyActive}, nil
		}
		return Result{Outcome: OutcomeUnknown}, c.reporter.UnknownComponent(ctx, name)
	}

	e := &c.arena.entries[i]
	if e.loaded {
		logger.Debug("Component already loaded.", "index", i)
		return Result{Outcome: OutcomeAlreadyLoaded}, nil
	}

	e.loaded = true
	e.err = c.invoke(ctx, e)
	logger.Info("Init routine returned.", "index", i, "class", e.class.String(), "error", e.err)
	return Result{Outcome: OutcomeActivated, InitErr: e.err}, nil
}

// invoke runs an init routine, converting a panic into an error. The routine
// cannot be cancelled by the requester going away.
func (c *Coordinator) invoke(ctx context.Context, e *entry) (err error) {
	ctx, span := c.tracer.Start(ctx, "lazyinit.init", trace.WithAttributes(
		attribute.String("component.name", e.name),
		attribute.String("component.class", e.class.String()),
		attribute.String("component.source", e.source),
	))
	defer span.End()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrInitPanic, r)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	return e.fn(markActivation(context.WithoutCancel(ctx)))
}

// Completed reports whether completion has been reached and its effect has
// finished. It does not take the lock.
func (c *Coordinator) Completed() bool {
	return c.completed.Load()
}

// Done is closed once Completed would return true.
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

// Snapshot returns a copy of every registry entry in registration order.
func (c *Coordinator) Snapshot() []EntryInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.arena.snapshot()
}

// Pending returns the ordinary entries that have not been loaded yet.
func (c *Coordinator) Pending() []EntryInfo {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []EntryInfo
	for _, e := range c.arena.snapshot() {
		if e.Class == Ordinary && !e.Loaded {
			out = append(out, e)
		}
	}
	return out
}

type activationKey struct{}

func markActivation(ctx context.Context) context.Context {
	return context.WithValue(ctx, activationKey{}, true)
}

func insideActivation(ctx context.Context) bool {
	v, _ := ctx.Value(activationKey{}).(bool)
	return v
}
