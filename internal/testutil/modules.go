package testutil

import (
	"context"
	"sync"

	"github.com/specialistvlad/lazyinit/internal/registry"
)

// Recorder counts init routine invocations per component and remembers the
// global invocation order. It is safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	counts map[string]int
	order  []string
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{counts: make(map[string]int)}
}

// Init returns an init routine for name that records each call and returns
// err.
func (r *Recorder) Init(name string, err error) registry.InitFunc {
	return func(context.Context) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.counts[name]++
		r.order = append(r.order, name)
		return err
	}
}

// Count returns how many times name's routine ran.
func (r *Recorder) Count(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[name]
}

// Total returns the number of routine invocations across all components.
func (r *Recorder) Total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order)
}

// Order returns a copy of the invocation order.
func (r *Recorder) Order() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order...)
}

// Module returns a registry.Module that offers a recording routine for each
// name.
func (r *Recorder) Module(names ...string) registry.Module {
	return registry.ModuleFunc(func(reg registry.Registrar) {
		for _, n := range names {
			reg.Register(n, r.Init(n, nil), "testutil/modules.go")
		}
	})
}
