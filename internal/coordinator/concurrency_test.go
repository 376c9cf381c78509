package coordinator_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/specialistvlad/lazyinit/internal/coordinator"
	"github.com/specialistvlad/lazyinit/internal/policy"
	"github.com/specialistvlad/lazyinit/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConcurrentDistinctActivations(t *testing.T) {
	ctx, _ := testutil.LogContext(t)

	const n = 64
	names := make([]string, n)
	for i := range names {
		names[i] = fmt.Sprintf("component_%02d", i)
	}

	var cleanups atomic.Int32
	var loadedAtCleanup atomic.Bool
	rec := testutil.NewRecorder()

	c := coordinator.New(
		policy.MustNew(policy.Lists{Eligible: append(names, "tail"), Tail: []string{"tail"}}),
		coordinator.WithCleanup(func(context.Context) error {
			cleanups.Add(1)
			loadedAtCleanup.Store(rec.Count("tail") == 1 && rec.Total() == n+1)
			return nil
		}),
	)
	for _, name := range append(names, "tail") {
		c.Register(name, rec.Init(name, nil), "concurrency_test.go")
	}
	c.CloseRegistration(ctx)

	var (
		wg          sync.WaitGroup
		completions atomic.Int32
		start       = make(chan struct{})
	)
	for _, name := range names {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			<-start
			res, err := c.Activate(ctx, name)
			assert.NoError(t, err)
			if res.Completed {
				completions.Add(1)
			}
		}(name)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, n+1, rec.Total())
	for _, name := range names {
		assert.Equal(t, 1, rec.Count(name), name)
	}
	assert.Equal(t, int32(1), completions.Load())
	assert.Equal(t, int32(1), cleanups.Load())
	assert.True(t, loadedAtCleanup.Load(), "every entry ran before cleanup")
	assert.True(t, c.Completed())
}

func TestConcurrentDuplicateActivations(t *testing.T) {
	ctx, _ := testutil.LogContext(t)
	c, rec, _ := setup(t, policy.Lists{Eligible: []string{"A", "B"}})

	var wg sync.WaitGroup
	outcomes := make(chan coordinator.Outcome, 32)
	for i := 0; i < cap(outcomes); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := c.Activate(ctx, "A")
			assert.NoError(t, err)
			outcomes <- res.Outcome
		}()
	}
	wg.Wait()
	close(outcomes)

	counts := map[coordinator.Outcome]int{}
	for o := range outcomes {
		counts[o]++
	}
	assert.Equal(t, 1, counts[coordinator.OutcomeActivated])
	assert.Equal(t, cap(outcomes)-1, counts[coordinator.OutcomeAlreadyLoaded])
	assert.Equal(t, 1, rec.Count("A"))
}

func TestCompletedIsPublishedAfterCleanup(t *testing.T) {
	ctx, _ := testutil.LogContext(t)

	var sawCompleted atomic.Bool
	var c *coordinator.Coordinator
	c = coordinator.New(
		policy.MustNew(policy.Lists{Eligible: []string{"A"}}),
		coordinator.WithCleanup(func(context.Context) error {
			sawCompleted.Store(c.Completed())
			return nil
		}),
	)
	c.Register("A", func(context.Context) error { return nil }, "concurrency_test.go")

	_, err := c.Activate(ctx, "A")
	require.NoError(t, err)
	assert.False(t, sawCompleted.Load(), "lock-free readers must not see completion before cleanup returns")
	assert.True(t, c.Completed())
}
