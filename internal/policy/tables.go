// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package policy

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrInvalidTables is returned by New when the lists violate the overlap rules.
var ErrInvalidTables = errors.New("invalid policy tables")

// Lists is the raw, ordered input for the policy tables, usually decoded from
// a configuration file.
type Lists struct {
	Eligible      []string
	AlreadyActive []string
	Excluded      []string
	Tail          []string
}

// Tables is the validated, immutable form of Lists.
type Tables struct {
	eligible      set
	alreadyActive set
	excluded      set
	tail          set

	// tailOrder keeps the declaration order used when tail components run.
	tailOrder []string
	capacity  int
}

type set map[string]struct{}

func (s set) has(name string) bool {
	_, ok := s[Canonical(name)]
	return ok
}

// Canonical maps a component name to the form used for every lookup:
// dashes become underscores, so "qcom-wlan" and "qcom_wlan" are one name.
func Canonical(name string) string {
	return strings.ReplaceAll(name, "-", "_")
}

// New validates the lists and builds the tables.
//
// Names are stored in Canonical form. A name may appear in at most one of Excluded and AlreadyActive, and every
// Tail name must also be Eligible. Eligible names that are also Excluded are
// permitted; Excluded wins at every call site.
func New(l Lists) (*Tables, error) {
	var errs []string

	build := func(list string, names []string) set {
		s := make(set, len(names))
		for _, n := range names {
			n = Canonical(n)
			if strings.TrimSpace(n) == "" {
				errs = append(errs, fmt.Sprintf("%s: empty component name", list))
				continue
			}
			if s.has(n) {
				errs = append(errs, fmt.Sprintf("%s: duplicate component name %q", list, n))
				continue
			}
			s[n] = struct{}{}
		}
		return s
	}

	t := &Tables{
		eligible:      build("eligible", l.Eligible),
		alreadyActive: build("already_active", l.AlreadyActive),
		excluded:      build("excluded", l.Excluded),
		tail:          build("tail", l.Tail),
	}

	for _, n := range l.AlreadyActive {
		if t.excluded.has(n) {
			errs = append(errs, fmt.Sprintf("%q is both excluded and already_active", n))
		}
	}
	for _, n := range l.Tail {
		if n != "" && !t.eligible.has(n) {
			errs = append(errs, fmt.Sprintf("tail component %q is not eligible", n))
		}
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("%w:\n- %s", ErrInvalidTables, strings.Join(errs, "\n- "))
	}

	for _, n := range l.Tail {
		if n = Canonical(n); !slices.Contains(t.tailOrder, n) {
			t.tailOrder = append(t.tailOrder, n)
		}
	}
	for n := range t.eligible {
		if !t.excluded.has(n) {
			t.capacity++
		}
	}
	return t, nil
}

// MustNew is like New but panics on invalid lists. It is intended for tests
// and for tables compiled into the binary.
func MustNew(l Lists) *Tables {
	t, err := New(l)
	if err != nil {
		panic(err)
	}
	return t
}

// IsExcluded reports whether name must never be deferred.
func (t *Tables) IsExcluded(name string) bool { return t.excluded.has(name) }

// IsEligible reports whether name may be deferred.
func (t *Tables) IsEligible(name string) bool { return t.eligible.has(name) }

// IsTail reports whether name runs after every ordinary component.
func (t *Tables) IsTail(name string) bool { return t.tail.has(name) }

// IsAlreadyActive reports whether name is built in without an init routine.
func (t *Tables) IsAlreadyActive(name string) bool { return t.alreadyActive.has(name) }

// Tail returns the tail component names in declaration order.
func (t *Tables) Tail() []string { return slices.Clone(t.tailOrder) }

// Capacity is the largest number of components that can ever be registered
// for deferral: every eligible name that is not excluded.
func (t *Tables) Capacity() int { return t.capacity }
