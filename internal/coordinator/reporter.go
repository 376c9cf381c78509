package coordinator

import (
	"context"

	"github.com/specialistvlad/lazyinit/internal/ctxlog"
)

// Reporter decides what an unknown component means for the node. The
// returned error is propagated to the requester either way.
type Reporter interface {
	UnknownComponent(ctx context.Context, name string) error
}

// HaltReporter treats an unknown component as fatal. Halt is called with the
// error; a nil Halt panics.
type HaltReporter struct {
	Halt func(error)
}

// UnknownComponent implements Reporter.
func (h HaltReporter) UnknownComponent(ctx context.Context, name string) error {
	err := &UnknownComponentError{Name: name}
	ctxlog.FromContext(ctx).Error("Policy tables are out of sync with the built-in components, halting.", "component", name)
	if h.Halt == nil {
		panic(err)
	}
	h.Halt(err)
	return err
}

// LogReporter logs the unknown component and lets the node keep running.
type LogReporter struct{}

// UnknownComponent implements Reporter.
func (LogReporter) UnknownComponent(ctx context.Context, name string) error {
	err := &UnknownComponentError{Name: name}
	ctxlog.FromContext(ctx).Error("Failed to find a built-in component.", "component", name)
	return err
}

// ReporterFor picks the reporter for the given mode: LogReporter when debug is
// set, HaltReporter with halt otherwise.
func ReporterFor(debug bool, halt func(error)) Reporter {
	if debug {
		return LogReporter{}
	}
	return HaltReporter{Halt: halt}
}
