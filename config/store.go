// Package config holds the process-wide knobs read once at startup (section
// 6 of the specification) plus a small live debug-probe registry for
// runtime introspection. The behavior knobs themselves are frozen into an
// immutable Snapshot at group-construction time; only the probe registry
// stays mutable afterwards.
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package config

import (
	"sync"

	"github.com/momentics/reactorcore/errs"
)

// MinSelectorAutoRebuildThreshold is the floor below which the auto-rebuild
// feature is disabled outright (treated as 0).
const MinSelectorAutoRebuildThreshold = 3

// DefaultSelectorAutoRebuildThreshold is Netty's historical 512.
const DefaultSelectorAutoRebuildThreshold = 512

// DefaultIORatio is the default balance between I/O dispatch and task
// draining time in a reactor loop iteration.
const DefaultIORatio = 50

// DefaultMaxPendingTasks is used for MPSC queues constructed without an
// explicit capacity; it is not a hard architectural limit, just a sane
// default for "effectively unlimited".
const DefaultMaxPendingTasks = 1 << 16

// Knobs is the mutable form of the process-wide configuration; build it
// with defaults via NewKnobs and override fields before calling Freeze.
type Knobs struct {
	DisableKeySetOptimization bool
	SelectorAutoRebuildThreshold int
	IORatio                      int
	DefaultMaxPendingTasks       int
	AffinityEnabled              bool
}

// NewKnobs returns a Knobs populated with the documented defaults.
func NewKnobs() Knobs {
	return Knobs{
		SelectorAutoRebuildThreshold: DefaultSelectorAutoRebuildThreshold,
		IORatio:                      DefaultIORatio,
		DefaultMaxPendingTasks:       DefaultMaxPendingTasks,
	}
}

// Snapshot is the immutable, validated form of Knobs every loop in a group
// holds a copy of. Construct via Freeze.
type Snapshot struct {
	DisableKeySetOptimization    bool
	SelectorAutoRebuildThreshold int
	IORatio                      int
	DefaultMaxPendingTasks       int
	AffinityEnabled              bool
}

// Freeze validates k and returns an immutable Snapshot, clamping
// SelectorAutoRebuildThreshold below the minimum to 0 (disabled) per
// section 6.
func (k Knobs) Freeze() (Snapshot, error) {
	if k.IORatio < 1 || k.IORatio > 100 {
		return Snapshot{}, errs.Invalidf("config: invalid value for %s: %d", "IORatio", k.IORatio)
	}
	threshold := k.SelectorAutoRebuildThreshold
	if threshold != 0 && threshold < MinSelectorAutoRebuildThreshold {
		threshold = 0
	}
	maxPending := k.DefaultMaxPendingTasks
	if maxPending <= 0 {
		maxPending = DefaultMaxPendingTasks
	}
	return Snapshot{
		DisableKeySetOptimization:    k.DisableKeySetOptimization,
		SelectorAutoRebuildThreshold: threshold,
		IORatio:                      k.IORatio,
		DefaultMaxPendingTasks:       maxPending,
		AffinityEnabled:              k.AffinityEnabled,
	}, nil
}

// Probes is a thread-safe registry of named diagnostic callbacks, e.g. one
// per loop reporting queue depth, registered-channel counts, and rebuild
// counts. Unlike Snapshot, it stays live for the lifetime of the group.
type Probes struct {
	mu     sync.RWMutex
	probes map[string]func() any
}

// NewProbes creates an empty probe registry.
func NewProbes() *Probes {
	return &Probes{probes: make(map[string]func() any)}
}

// Register installs or replaces the probe under name.
func (p *Probes) Register(name string, fn func() any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.probes[name] = fn
}

// Unregister removes the probe under name, if present.
func (p *Probes) Unregister(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.probes, name)
}

// Snapshot evaluates every registered probe and returns the results keyed
// by name. Probe evaluation order is unspecified.
func (p *Probes) Snapshot() map[string]any {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]any, len(p.probes))
	for name, fn := range p.probes {
		out[name] = fn()
	}
	return out
}
