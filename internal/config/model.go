package config

import (
	"slices"
	"time"

	"github.com/specialistvlad/lazyinit/internal/policy"
)

// Model is the unified, format-agnostic representation of the node's
// deferred activation configuration.
type Model struct {
	Policy      Policy
	Diagnostics Diagnostics
	// Sources lists the files the model was read from, in load order.
	Sources []string
}

// Policy holds the four raw policy lists.
type Policy struct {
	Eligible      []string
	AlreadyActive []string
	Excluded      []string
	Tail          []string
}

// Diagnostics holds optional debug settings. Nil fields were not set.
type Diagnostics struct {
	Debug           *bool
	PendingInterval *time.Duration
}

// NewModel returns an empty model.
func NewModel() *Model {
	return &Model{}
}

// Merge appends other's lists to m, dropping names m already has, and lets
// other's diagnostics settings override m's.
func (m *Model) Merge(other *Model) {
	m.Policy.Eligible = appendNew(m.Policy.Eligible, other.Policy.Eligible)
	m.Policy.AlreadyActive = appendNew(m.Policy.AlreadyActive, other.Policy.AlreadyActive)
	m.Policy.Excluded = appendNew(m.Policy.Excluded, other.Policy.Excluded)
	m.Policy.Tail = appendNew(m.Policy.Tail, other.Policy.Tail)

	if other.Diagnostics.Debug != nil {
		m.Diagnostics.Debug = other.Diagnostics.Debug
	}
	if other.Diagnostics.PendingInterval != nil {
		m.Diagnostics.PendingInterval = other.Diagnostics.PendingInterval
	}
	m.Sources = append(m.Sources, other.Sources...)
}

// Lists converts the policy into policy.Lists.
func (m *Model) Lists() policy.Lists {
	return policy.Lists{
		Eligible:      slices.Clone(m.Policy.Eligible),
		AlreadyActive: slices.Clone(m.Policy.AlreadyActive),
		Excluded:      slices.Clone(m.Policy.Excluded),
		Tail:          slices.Clone(m.Policy.Tail),
	}
}

func appendNew(dst, src []string) []string {
	for _, n := range src {
		if !slices.Contains(dst, n) {
			dst = append(dst, n)
		}
	}
	return dst
}
