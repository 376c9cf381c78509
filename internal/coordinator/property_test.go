package coordinator_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/specialistvlad/lazyinit/internal/coordinator"
	"github.com/specialistvlad/lazyinit/internal/policy"
	"github.com/specialistvlad/lazyinit/internal/testutil"
	"pgregory.net/rapid"
)

// TestActivationProperties drives random tables and request sequences and
// checks the coordinator against a simple model.
func TestActivationProperties(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		universe := make([]string, 12)
		for i := range universe {
			universe[i] = fmt.Sprintf("c%d", i)
		}

		// Each name falls into one bucket.
		const (
			bucketOrdinary = iota
			bucketTail
			bucketExcludedEligible
			bucketExcluded
			bucketAlreadyActive
			bucketUnknown
		)
		buckets := make(map[string]int, len(universe))
		var lists policy.Lists
		for _, n := range universe {
			b := rapid.IntRange(bucketOrdinary, bucketUnknown).Draw(rt, "bucket_"+n)
			buckets[n] = b
			switch b {
			case bucketOrdinary:
				lists.Eligible = append(lists.Eligible, n)
			case bucketTail:
				lists.Eligible = append(lists.Eligible, n)
				lists.Tail = append(lists.Tail, n)
			case bucketExcludedEligible:
				lists.Eligible = append(lists.Eligible, n)
				lists.Excluded = append(lists.Excluded, n)
			case bucketExcluded:
				lists.Excluded = append(lists.Excluded, n)
			case bucketAlreadyActive:
				lists.AlreadyActive = append(lists.AlreadyActive, n)
			}
		}

		rec := testutil.NewRecorder()
		cleanups := 0
		c := coordinator.New(policy.MustNew(lists),
			coordinator.WithReporter(coordinator.LogReporter{}),
			coordinator.WithCleanup(func(context.Context) error {
				cleanups++
				return nil
			}),
		)
		for _, n := range universe {
			c.Register(n, rec.Init(n, nil), "property_test.go")
		}
		c.CloseRegistration(context.Background())

		requested := map[string]bool{}
		requests := rapid.SliceOfN(rapid.SampledFrom(universe), 0, 40).Draw(rt, "requests")
		for _, n := range requests {
			wasCompleted := c.Completed()
			res, err := c.Activate(context.Background(), n)

			if wasCompleted {
				if err != nil || res.Outcome != coordinator.OutcomeAfterCompletion {
					rt.Fatalf("request for %s after completion: outcome %v err %v", n, res.Outcome, err)
				}
				continue
			}

			switch buckets[n] {
			case bucketExcluded, bucketExcludedEligible:
				if err != nil || res.Outcome != coordinator.OutcomeExcluded {
					rt.Fatalf("excluded %s: outcome %v err %v", n, res.Outcome, err)
				}
			case bucketAlreadyActive:
				if err != nil || res.Outcome != coordinator.OutcomeAlreadyActive {
					rt.Fatalf("already active %s: outcome %v err %v", n, res.Outcome, err)
				}
			case bucketUnknown:
				if err == nil || res.Outcome != coordinator.OutcomeUnknown {
					rt.Fatalf("unknown %s must fail: outcome %v err %v", n, res.Outcome, err)
				}
			case bucketOrdinary, bucketTail:
				want := coordinator.OutcomeActivated
				if requested[n] {
					want = coordinator.OutcomeAlreadyLoaded
				}
				if err != nil || res.Outcome != want {
					rt.Fatalf("registered %s: outcome %v want %v err %v", n, res.Outcome, want, err)
				}
				requested[n] = true
			}
		}

		// Completion holds exactly when every ordinary entry was requested.
		allOrdinary := true
		for _, n := range universe {
			if buckets[n] == bucketOrdinary && !requested[n] {
				allOrdinary = false
			}
		}
		if c.Completed() != allOrdinary {
			rt.Fatalf("completed = %v, all ordinary requested = %v", c.Completed(), allOrdinary)
		}

		for _, n := range universe {
			if got := rec.Count(n); got > 1 {
				rt.Fatalf("%s ran %d times", n, got)
			}
			registered := buckets[n] == bucketOrdinary || buckets[n] == bucketTail
			if !registered && rec.Count(n) != 0 {
				rt.Fatalf("unregistered %s ran", n)
			}
			if c.Completed() && registered && rec.Count(n) != 1 {
				rt.Fatalf("%s did not run before completion", n)
			}
		}

		wantCleanups := 0
		if c.Completed() {
			wantCleanups = 1
		}
		if cleanups != wantCleanups {
			rt.Fatalf("cleanup ran %d times, want %d", cleanups, wantCleanups)
		}
	})
}
