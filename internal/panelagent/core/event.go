package core

import (
	"maps"
	"slices"
	"sync"
	"time"
)

// DriverStatus is published whenever the simulator's reported export driver is
// relevant to the panel, changed or confirmed unchanged.
type DriverStatus struct {
	ExportDriver string
}

// ProfileHint is published whenever the simulator reports its active vehicle.
type ProfileHint struct {
	Tag string
}

// LinkStatus is published when the simulator link turns stale or fresh again.
type LinkStatus struct {
	Stale bool
	Since time.Time
}

// Value is a named value received from the simulator that is not a status signal.
type Value struct {
	Name  string
	Value string
}

// Feed delivers values of one type to registered handlers. Every Subscribe
// gets exactly one delivery per Publish until its cancel func is called.
type Feed[T any] struct {
	mu       sync.RWMutex
	next     uint64
	handlers map[uint64]func(T)
}

// Subscribe registers fn and returns a func that removes it. Calling the
// returned func more than once is harmless.
func (f *Feed[T]) Subscribe(fn func(T)) (cancel func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.handlers == nil {
		f.handlers = make(map[uint64]func(T))
	}
	id := f.next
	f.next++
	f.handlers[id] = fn

	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.handlers, id)
	}
}

// Publish calls every registered handler with v in registration order. Handlers
// run on the caller's goroutine without the feed lock held, so they may
// subscribe, unsubscribe or publish again.
func (f *Feed[T]) Publish(v T) {
	f.mu.RLock()
	ids := slices.Sorted(maps.Keys(f.handlers))
	handlers := make([]func(T), 0, len(ids))
	for _, id := range ids {
		handlers = append(handlers, f.handlers[id])
	}
	f.mu.RUnlock()

	for _, h := range handlers {
		h(v)
	}
}

// Len returns the number of active subscriptions.
func (f *Feed[T]) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.handlers)
}

// Events groups the feeds a panel session exposes to external collaborators.
// It outlives individual sessions: subscribers registered once keep receiving
// across restarts.
type Events struct {
	DriverStatus Feed[DriverStatus]
	ProfileHint  Feed[ProfileHint]
	LinkStatus   Feed[LinkStatus]
	Value        Feed[Value]
}

// OnDriverStatus registers fn for DriverStatus events.
func (e *Events) OnDriverStatus(fn func(DriverStatus)) (cancel func()) {
	return e.DriverStatus.Subscribe(fn)
}

// OnProfileHint registers fn for ProfileHint events.
func (e *Events) OnProfileHint(fn func(ProfileHint)) (cancel func()) {
	return e.ProfileHint.Subscribe(fn)
}

// OnLinkStatus registers fn for LinkStatus events.
func (e *Events) OnLinkStatus(fn func(LinkStatus)) (cancel func()) {
	return e.LinkStatus.Subscribe(fn)
}

// OnValue registers fn for non-status values.
func (e *Events) OnValue(fn func(Value)) (cancel func()) {
	return e.Value.Subscribe(fn)
}
