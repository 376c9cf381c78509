package coordinator

import (
	"fmt"

	"github.com/specialistvlad/lazyinit/internal/registry"
)

// Class separates components that gate completion from the ones that run as
// its consequence.
type Class int

const (
	// Ordinary entries must all be loaded before completion.
	Ordinary Class = iota
	// Tail entries run once completion has been reached.
	Tail
)

func (c Class) String() string {
	switch c {
	case Ordinary:
		return "ordinary"
	case Tail:
		return "tail"
	default:
		return fmt.Sprintf("Class(%d)", int(c))
	}
}

// entry is one deferred init routine.
type entry struct {
	name   string
	source string
	class  Class
	fn     registry.InitFunc
	loaded bool
	// err is the routine's result, kept for diagnostics only.
	err error
}

// arena is the fixed-capacity registry. Entries are never removed and their
// positions never change.
type arena struct {
	entries []entry
	index   map[string]int
}

func newArena(capacity int) *arena {
	return &arena{
		entries: make([]entry, 0, capacity),
		index:   make(map[string]int, capacity),
	}
}

func (a *arena) add(e entry) int {
	if _, exists := a.index[e.name]; exists {
		panic(fmt.Sprintf("coordinator: component '%s' already registered", e.name))
	}
	if len(a.entries) == cap(a.entries) {
		panic(fmt.Sprintf("coordinator: registry capacity %d exceeded by '%s'", cap(a.entries), e.name))
	}
	a.entries = append(a.entries, e)
	i := len(a.entries) - 1
	a.index[e.name] = i
	return i
}

func (a *arena) lookup(name string) (int, bool) {
	i, ok := a.index[name]
	return i, ok
}

// ordinaryLoaded reports whether every Ordinary entry has been loaded.
func (a *arena) ordinaryLoaded() bool {
	for i := range a.entries {
		if a.entries[i].class == Ordinary && !a.entries[i].loaded {
			return false
		}
	}
	return true
}

// dropRoutines forgets every init routine so the closures and whatever they
// capture can be collected. Loaded flags and results are kept.
func (a *arena) dropRoutines() int {
	n := 0
	for i := range a.entries {
		if a.entries[i].fn != nil {
			a.entries[i].fn = nil
			n++
		}
	}
	return n
}

func (a *arena) count(class Class) int {
	n := 0
	for i := range a.entries {
		if a.entries[i].class == class {
			n++
		}
	}
	return n
}

// EntryInfo is a read-only copy of a registry entry.
type EntryInfo struct {
	Index   int
	Name    string
	Source  string
	Class   Class
	Loaded  bool
	InitErr error
}

func (a *arena) snapshot() []EntryInfo {
	out := make([]EntryInfo, len(a.entries))
	for i, e := range a.entries {
		out[i] = EntryInfo{Index: i, Name: e.name, Source: e.source, Class: e.class, Loaded: e.loaded, InitErr: e.err}
	}
	return out
}
