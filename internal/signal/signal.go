// Package signal provides a small synchronous bus for named host events.
//
// The bootstrap layer listens for readiness signals such as "input.first"
// or "buffer.first" and wires one-shot triggers to them. Delivery is
// synchronous and in listener registration order; there is exactly one
// logical thread of control, the mutex only serializes registration
// against delivery from host timers.
package signal

import (
	"sync"
)

// Handler is invoked when a signal it listens for is emitted.
type Handler func()

// Bus routes named signals to registered listeners.
type Bus struct {
	mu         sync.Mutex
	listeners  map[string][]*listener
	suppressed map[string]int
	nextID     uint64
}

type listener struct {
	id uint64
	fn Handler
}

// NewBus creates an empty signal bus.
func NewBus() *Bus {
	return &Bus{
		listeners:  make(map[string][]*listener),
		suppressed: make(map[string]int),
	}
}

// Listen registers a handler for the named signal and returns a function
// that removes it. Handlers for one signal run in registration order.
func (b *Bus) Listen(name string, fn Handler) (remove func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	l := &listener{id: b.nextID, fn: fn}
	b.listeners[name] = append(b.listeners[name], l)

	id := l.id
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		ls := b.listeners[name]
		for i, cand := range ls {
			if cand.id == id {
				b.listeners[name] = append(ls[:i], ls[i+1:]...)
				return
			}
		}
	}
}

// Emit delivers the named signal to all listeners synchronously.
// Emitting a suppressed signal is a no-op.
func (b *Bus) Emit(name string) {
	b.mu.Lock()
	if b.suppressed[name] > 0 {
		b.mu.Unlock()
		return
	}
	ls := make([]*listener, len(b.listeners[name]))
	copy(ls, b.listeners[name])
	b.mu.Unlock()

	for _, l := range ls {
		l.fn()
	}
}

// Suppress disables delivery of the named signals until the returned
// restore function is called. Suppressions nest: a signal is delivered
// again only once every outstanding suppression of it has been restored.
//
// Internal batch operations use this to keep incidental events (opening
// a scratch buffer, replaying a file list) from firing first-use triggers.
func (b *Bus) Suppress(names ...string) (restore func()) {
	b.mu.Lock()
	for _, n := range names {
		b.suppressed[n]++
	}
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			for _, n := range names {
				if b.suppressed[n] > 0 {
					b.suppressed[n]--
				}
			}
			b.mu.Unlock()
		})
	}
}

// Suppressed reports whether the named signal is currently suppressed.
// Trigger listeners use this as a defensive recheck before firing.
func (b *Bus) Suppressed(name string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.suppressed[name] > 0
}
