package registry

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/specialistvlad/lazyinit/internal/ctxlog"
	"github.com/specialistvlad/lazyinit/internal/policy"
)

// Validate performs a parity check between the policy tables and the compiled
// modules.
//
// A tail component that is not compiled in would make the completion sequence
// fail, so it is an error. Eligible components that are not compiled in are
// only reported: a request for one of them is diagnosed at load time.
func Validate(ctx context.Context, tables *policy.Tables, modules []Module) error {
	logger := ctxlog.FromContext(ctx)
	names := Names(modules)
	for i, n := range names {
		names[i] = policy.Canonical(n)
	}

	var errs []string
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		if _, dup := seen[n]; dup {
			errs = append(errs, fmt.Sprintf("component %q is offered by more than one module", n))
		}
		seen[n] = struct{}{}
	}

	for _, n := range tables.Tail() {
		if tables.IsExcluded(n) {
			continue
		}
		if !slices.Contains(names, n) {
			errs = append(errs, fmt.Sprintf("tail component %q is not compiled in", n))
		}
	}

	for _, n := range names {
		if tables.IsAlreadyActive(n) && tables.IsEligible(n) && !tables.IsExcluded(n) {
			logger.Warn("Component is eligible but also listed as already active; the registry entry wins.", "component", n)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("registry validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}
