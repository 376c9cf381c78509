package registry

import (
	"context"

	"github.com/specialistvlad/lazyinit/internal/ctxlog"
)

// Stats summarizes a registration pass.
type Stats struct {
	Offered  int
	Deferred int
	// Eager holds the offers the registrar declined. They are expected to
	// be initialized right away.
	Eager []Offer
}

// countingRegistrar forwards to the real registrar while counting outcomes.
type countingRegistrar struct {
	ctx   context.Context
	next  Registrar
	stats Stats
}

func (c *countingRegistrar) Register(name string, fn InitFunc, source string) bool {
	c.stats.Offered++
	if c.next.Register(name, fn, source) {
		c.stats.Deferred++
		return true
	}
	ctxlog.FromContext(c.ctx).Debug("Component keeps eager initialization.", "component", name, "source", source)
	c.stats.Eager = append(c.stats.Eager, Offer{Name: name, Source: source, Fn: fn})
	return false
}

// RegisterAll runs the registration phase: every module offers its init
// routines to r. A false return is not an error.
func RegisterAll(ctx context.Context, r Registrar, modules []Module) Stats {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Registration phase started.", "modules", len(modules))

	cr := &countingRegistrar{ctx: ctx, next: r}
	for _, m := range modules {
		m.Register(cr)
	}

	logger.Info("Registration phase finished.", "offered", cr.stats.Offered, "deferred", cr.stats.Deferred)
	return cr.stats
}
