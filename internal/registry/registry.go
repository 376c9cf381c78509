package registry

import "context"

// InitFunc is a component's one-shot initialization routine. The returned
// error is recorded for diagnostics only.
type InitFunc func(ctx context.Context) error

// Registrar accepts deferred init routines during the registration phase.
type Registrar interface {
	// Register offers fn under name. It returns true if the routine was
	// deferred and false if the component is not managed by the registrar.
	Register(name string, fn InitFunc, source string) bool
}

// Module is the interface that all built-in components must implement to be
// registered.
type Module interface {
	Register(r Registrar)
}

// ModuleFunc adapts a plain function to the Module interface.
type ModuleFunc func(r Registrar)

// Register calls f(r).
func (f ModuleFunc) Register(r Registrar) { f(r) }

// Offer is one recorded Register call.
type Offer struct {
	Name   string
	Source string
	Fn     InitFunc
}

// Recorder is a Registrar that accepts everything and remembers the offers in
// call order. It is used to take an inventory of compiled modules.
type Recorder struct {
	Offers []Offer
}

// Register implements Registrar.
func (r *Recorder) Register(name string, fn InitFunc, source string) bool {
	r.Offers = append(r.Offers, Offer{Name: name, Source: source, Fn: fn})
	return true
}

// Names returns the component names the given modules offer, in order.
func Names(modules []Module) []string {
	rec := &Recorder{}
	for _, m := range modules {
		m.Register(rec)
	}
	names := make([]string, 0, len(rec.Offers))
	for _, o := range rec.Offers {
		names = append(names, o.Name)
	}
	return names
}
