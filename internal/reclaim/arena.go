// Package reclaim releases boot-only resources once every deferred component
// has been activated.
//
// Anything that is needed only while deferred components may still be loaded,
// such as the parsed policy model, is held in an Arena. Release drops all of it in reverse order, asks the runtime to return
// freed memory to the OS, and seals the arena so nothing new can be held.
package reclaim

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/specialistvlad/lazyinit/internal/ctxlog"
)

type held struct {
	name    string
	release func()
}

// Arena collects boot-only resources.
type Arena struct {
	mu       sync.Mutex
	items    []held
	sealed   bool
	freeOS   func()
	released int
}

// NewArena creates an empty arena.
func NewArena() *Arena {
	return &Arena{freeOS: debug.FreeOSMemory}
}

// Hold registers a release function for a boot-only resource. Holding after
// Release is a programming error and panics.
func (a *Arena) Hold(name string, release func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sealed {
		panic(fmt.Sprintf("reclaim: '%s' held after the arena was sealed", name))
	}
	a.items = append(a.items, held{name: name, release: release})
}

// Release frees every held resource in reverse order and seals the arena.
// Only the first call has an effect.
func (a *Arena) Release(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sealed {
		logger.Debug("Boot-only resources already released.")
		return nil
	}

	for i := len(a.items) - 1; i >= 0; i-- {
		logger.Debug("Releasing boot-only resource.", "resource", a.items[i].name)
		a.items[i].release()
		a.released++
	}
	a.items = nil
	a.freeOS()
	a.sealed = true

	logger.Info("Boot-only resources released, arena sealed.", "released", a.released)
	return nil
}

// Sealed reports whether Release has run.
func (a *Arena) Sealed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sealed
}
