// Package envvars provides the "envvars" component, which snapshots the
// process environment when activated.
package envvars

import (
	"context"
	"maps"
	"os"
	"strings"
	"sync"

	"github.com/specialistvlad/lazyinit/internal/ctxlog"
	"github.com/specialistvlad/lazyinit/internal/registry"
)

// Name is the component name.
const Name = "envvars"

// Store holds the environment captured at activation.
type Store struct {
	mu   sync.RWMutex
	vars map[string]string
}

// Get returns the captured value of key.
func (s *Store) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vars[key]
	return v, ok
}

// All returns a copy of the snapshot; nil before activation.
func (s *Store) All() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.vars)
}

// Module implements the registry.Module interface for this package.
type Module struct {
	Store *Store
	// Environ defaults to os.Environ.
	Environ func() []string
}

// New returns a module writing into a fresh store.
func New() *Module {
	return &Module{Store: &Store{}}
}

func (m *Module) init(ctx context.Context) error {
	environ := m.Environ
	if environ == nil {
		environ = os.Environ
	}

	vars := make(map[string]string)
	for _, e := range environ() {
		k, v, ok := strings.Cut(e, "=")
		if ok {
			vars[k] = v
		}
	}

	m.Store.mu.Lock()
	m.Store.vars = vars
	m.Store.mu.Unlock()

	ctxlog.FromContext(ctx).Debug("Captured environment.", "count", len(vars))
	return nil
}

// Register offers the component.
func (m *Module) Register(r registry.Registrar) {
	r.Register(Name, m.init, "modules/envvars")
}
