package coordinator_test

import (
	"context"
	"errors"
	"testing"

	"github.com/specialistvlad/lazyinit/internal/coordinator"
	"github.com/specialistvlad/lazyinit/internal/policy"
	"github.com/specialistvlad/lazyinit/internal/registry"
	"github.com/specialistvlad/lazyinit/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setup builds a coordinator over the given lists, registers a recording
// routine for every eligible name and counts cleanup runs.
func setup(t *testing.T, lists policy.Lists, opts ...coordinator.Option) (*coordinator.Coordinator, *testutil.Recorder, *int) {
	t.Helper()

	rec := testutil.NewRecorder()
	cleanups := 0
	opts = append([]coordinator.Option{
		coordinator.WithCleanup(func(context.Context) error {
			cleanups++
			return nil
		}),
	}, opts...)

	c := coordinator.New(policy.MustNew(lists), opts...)
	for _, n := range lists.Eligible {
		c.Register(n, rec.Init(n, nil), "coordinator_test.go")
	}
	return c, rec, &cleanups
}

func TestActivateCompletionScenario(t *testing.T) {
	ctx, _ := testutil.LogContext(t)
	c, rec, cleanups := setup(t, policy.Lists{
		Eligible: []string{"A", "B", "C"},
		Tail:     []string{"C"},
	})

	res, err := c.Activate(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, coordinator.OutcomeActivated, res.Outcome)
	assert.False(t, res.Completed)
	assert.False(t, c.Completed())
	assert.Equal(t, 0, rec.Count("C"))

	res, err = c.Activate(ctx, "B")
	require.NoError(t, err)
	assert.Equal(t, coordinator.OutcomeActivated, res.Outcome)
	assert.True(t, res.Completed)
	assert.True(t, c.Completed())
	assert.Equal(t, []string{"A", "B", "C"}, rec.Order())
	assert.Equal(t, 1, *cleanups)

	select {
	case <-c.Done():
	default:
		t.Fatal("Done channel should be closed after completion")
	}

	res, err = c.Activate(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, coordinator.OutcomeAfterCompletion, res.Outcome)
	assert.Equal(t, 1, rec.Count("A"))
	assert.Equal(t, 1, *cleanups)
}

func TestActivateIsIdempotent(t *testing.T) {
	ctx, _ := testutil.LogContext(t)
	c, rec, _ := setup(t, policy.Lists{Eligible: []string{"A", "B"}})

	_, err := c.Activate(ctx, "A")
	require.NoError(t, err)
	res, err := c.Activate(ctx, "A")
	require.NoError(t, err)

	assert.Equal(t, coordinator.OutcomeAlreadyLoaded, res.Outcome)
	assert.Equal(t, 1, rec.Count("A"))
	assert.False(t, c.Completed())
}

func TestActivateExcluded(t *testing.T) {
	ctx, _ := testutil.LogContext(t)
	c, rec, _ := setup(t, policy.Lists{
		Eligible: []string{"A", "X"},
		Excluded: []string{"X"},
	})

	before := c.Snapshot()
	res, err := c.Activate(ctx, "X")
	require.NoError(t, err)

	assert.Equal(t, coordinator.OutcomeExcluded, res.Outcome)
	assert.Equal(t, before, c.Snapshot())
	assert.Equal(t, 0, rec.Total())
	for _, e := range before {
		assert.NotEqual(t, "X", e.Name, "excluded names never get an entry")
	}
}

func TestActivateAlreadyActive(t *testing.T) {
	ctx, _ := testutil.LogContext(t)
	c, rec, _ := setup(t, policy.Lists{
		Eligible:      []string{"A"},
		AlreadyActive: []string{"builtin"},
	})

	res, err := c.Activate(ctx, "builtin")
	require.NoError(t, err)
	assert.Equal(t, coordinator.OutcomeAlreadyActive, res.Outcome)
	assert.Equal(t, 0, rec.Total())
}

func TestActivateUnknownLogged(t *testing.T) {
	ctx, logs := testutil.LogContext(t)
	c, _, _ := setup(t, policy.Lists{Eligible: []string{"A"}},
		coordinator.WithReporter(coordinator.LogReporter{}))

	res, err := c.Activate(ctx, "Y")
	require.Error(t, err)
	assert.ErrorIs(t, err, coordinator.ErrUnknownComponent)
	assert.Equal(t, coordinator.OutcomeUnknown, res.Outcome)

	var unknown *coordinator.UnknownComponentError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "Y", unknown.Name)
	assert.Contains(t, logs.String(), "Failed to find a built-in component.")
	assert.False(t, c.Completed())
}

func TestActivateUnknownHalts(t *testing.T) {
	ctx, _ := testutil.LogContext(t)

	var halted error
	c, _, _ := setup(t, policy.Lists{Eligible: []string{"A"}},
		coordinator.WithReporter(coordinator.HaltReporter{Halt: func(err error) { halted = err }}))

	_, err := c.Activate(ctx, "Y")
	require.ErrorIs(t, err, coordinator.ErrUnknownComponent)
	require.Error(t, halted)
	assert.ErrorIs(t, halted, coordinator.ErrUnknownComponent)
}

func TestActivateUnknownPanicsByDefault(t *testing.T) {
	ctx, _ := testutil.LogContext(t)
	c, _, _ := setup(t, policy.Lists{Eligible: []string{"A"}})

	assert.Panics(t, func() { _, _ = c.Activate(ctx, "Y") })

	// The lock must have been released by the panic.
	res, err := c.Activate(ctx, "A")
	require.NoError(t, err)
	assert.True(t, res.Completed)
}

func TestActivateAfterCompletionAcceptsAnything(t *testing.T) {
	ctx, _ := testutil.LogContext(t)
	c, _, _ := setup(t, policy.Lists{Eligible: []string{"A"}})

	_, err := c.Activate(ctx, "A")
	require.NoError(t, err)
	require.True(t, c.Completed())

	res, err := c.Activate(ctx, "never-heard-of-it")
	require.NoError(t, err)
	assert.Equal(t, coordinator.OutcomeAfterCompletion, res.Outcome)
}

func TestInitFailureIsAbsorbed(t *testing.T) {
	ctx, _ := testutil.LogContext(t)
	boom := errors.New("probe failed")
	calls := 0

	c := coordinator.New(policy.MustNew(policy.Lists{Eligible: []string{"A", "B"}}))
	c.Register("A", func(context.Context) error {
		calls++
		return boom
	}, "coordinator_test.go")
	c.Register("B", func(context.Context) error { return nil }, "coordinator_test.go")

	res, err := c.Activate(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, coordinator.OutcomeActivated, res.Outcome)
	assert.ErrorIs(t, res.InitErr, boom)

	res, err = c.Activate(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, coordinator.OutcomeAlreadyLoaded, res.Outcome, "a failed routine is not retried")
	assert.Equal(t, 1, calls)

	snap := c.Snapshot()
	require.Len(t, snap, 2)
	assert.True(t, snap[0].Loaded)
	assert.ErrorIs(t, snap[0].InitErr, boom)
}

func TestInitPanicIsRecovered(t *testing.T) {
	ctx, _ := testutil.LogContext(t)
	c := coordinator.New(policy.MustNew(policy.Lists{Eligible: []string{"A"}}))
	c.Register("A", func(context.Context) error { panic("kaboom") }, "coordinator_test.go")

	res, err := c.Activate(ctx, "A")
	require.NoError(t, err)
	assert.ErrorIs(t, res.InitErr, coordinator.ErrInitPanic)
	assert.True(t, res.Completed)
}

func TestReentrantActivationIsRejected(t *testing.T) {
	ctx, _ := testutil.LogContext(t)
	c := coordinator.New(policy.MustNew(policy.Lists{Eligible: []string{"A", "B"}}))

	var inner error
	c.Register("A", func(ctx context.Context) error {
		_, inner = c.Activate(ctx, "B")
		return nil
	}, "coordinator_test.go")
	c.Register("B", func(context.Context) error { return nil }, "coordinator_test.go")

	_, err := c.Activate(ctx, "A")
	require.NoError(t, err)
	assert.ErrorIs(t, inner, coordinator.ErrReentrant)
}

func TestInitRoutineOutlivesRequestCancellation(t *testing.T) {
	ctx, _ := testutil.LogContext(t)
	ctx, cancel := context.WithCancel(ctx)
	cancel()

	c := coordinator.New(policy.MustNew(policy.Lists{Eligible: []string{"A"}}))
	var seen error
	c.Register("A", func(ctx context.Context) error {
		seen = ctx.Err()
		return nil
	}, "coordinator_test.go")

	_, err := c.Activate(ctx, "A")
	require.NoError(t, err)
	assert.NoError(t, seen)
}

func TestRegister(t *testing.T) {
	noop := func(context.Context) error { return nil }
	tables := policy.MustNew(policy.Lists{
		Eligible: []string{"A", "T", "X"},
		Excluded: []string{"X"},
		Tail:     []string{"T"},
	})

	c := coordinator.New(tables)
	assert.True(t, c.Register("A", noop, "a.go"))
	assert.True(t, c.Register("T", noop, "t.go"))
	assert.False(t, c.Register("X", noop, "x.go"), "excluded components keep eager init")
	assert.False(t, c.Register("other", noop, "other.go"), "unmanaged components keep eager init")

	snap := c.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, coordinator.EntryInfo{Index: 0, Name: "A", Source: "a.go", Class: coordinator.Ordinary}, snap[0])
	assert.Equal(t, coordinator.EntryInfo{Index: 1, Name: "T", Source: "t.go", Class: coordinator.Tail}, snap[1])

	assert.Panics(t, func() { c.Register("A", noop, "a.go") }, "duplicate registration")
	assert.Panics(t, func() { c.Register("T", nil, "t.go") }, "nil routine")

	c.CloseRegistration(context.Background())
	assert.Panics(t, func() { c.Register("A", noop, "a.go") }, "registration after close")
}

func TestCloseRegistrationWithoutOrdinaryEntriesCompletes(t *testing.T) {
	ctx, _ := testutil.LogContext(t)
	c, rec, cleanups := setup(t, policy.Lists{
		Eligible: []string{"T"},
		Tail:     []string{"T"},
	})

	c.CloseRegistration(ctx)
	assert.True(t, c.Completed())
	assert.Equal(t, 1, rec.Count("T"))
	assert.Equal(t, 1, *cleanups)

	c.CloseRegistration(ctx)
	assert.Equal(t, 1, *cleanups)
}

func TestTailRunsBeforeCleanup(t *testing.T) {
	ctx, _ := testutil.LogContext(t)
	rec := testutil.NewRecorder()

	c := coordinator.New(
		policy.MustNew(policy.Lists{
			Eligible: []string{"A", "T1", "T2"},
			Tail:     []string{"T2", "T1"},
		}),
		coordinator.WithCleanup(func(context.Context) error {
			return rec.Init("cleanup", nil)(context.Background())
		}),
	)
	for _, n := range []string{"A", "T1", "T2"} {
		c.Register(n, rec.Init(n, nil), "coordinator_test.go")
	}

	_, err := c.Activate(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "T2", "T1", "cleanup"}, rec.Order(), "tail runs in table order, then cleanup")

	for _, e := range c.Snapshot() {
		assert.True(t, e.Loaded, e.Name)
	}
}

func TestRequestForTailBeforeCompletion(t *testing.T) {
	ctx, _ := testutil.LogContext(t)
	c, rec, _ := setup(t, policy.Lists{
		Eligible: []string{"A", "T"},
		Tail:     []string{"T"},
	})

	// An explicit request runs the tail entry early; completion skips it later.
	res, err := c.Activate(ctx, "T")
	require.NoError(t, err)
	assert.Equal(t, coordinator.OutcomeActivated, res.Outcome)
	assert.False(t, res.Completed, "tail entries never gate completion")

	res, err = c.Activate(ctx, "A")
	require.NoError(t, err)
	assert.True(t, res.Completed)
	assert.Equal(t, 1, rec.Count("T"))
}

func TestCoordinatorIsARegistrar(t *testing.T) {
	var _ registry.Registrar = (*coordinator.Coordinator)(nil)
}
