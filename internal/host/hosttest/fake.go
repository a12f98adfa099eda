// Package hosttest provides a scriptable host.Host for tests. Idle time
// is advanced manually with TickIdle, and input arrival is scripted as a
// sequence of InputPending results.
package hosttest

import (
	"sync"
	"time"
)

// Fake is a deterministic host double.
type Fake struct {
	mu          sync.Mutex
	pending     []*scheduled
	inputScript []bool
	inputStuck  bool
	interactive bool
	nextID      int
}

type scheduled struct {
	id    int
	delay time.Duration
	fn    func()
}

// New creates an interactive fake host with no scheduled callbacks.
func New() *Fake {
	return &Fake{interactive: true}
}

// OnIdle implements host.Host. The delay is recorded but time never
// advances on its own; call TickIdle to fire the oldest callback.
func (f *Fake) OnIdle(d time.Duration, fn func()) (cancel func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	s := &scheduled{id: f.nextID, delay: d, fn: fn}
	f.pending = append(f.pending, s)

	id := s.id
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		for i, cand := range f.pending {
			if cand.id == id {
				f.pending = append(f.pending[:i], f.pending[i+1:]...)
				return
			}
		}
	}
}

// InputPending implements host.Host. Each call consumes one scripted
// value; once the script is exhausted it keeps returning the final
// sticky value (false unless StickInput was used).
func (f *Fake) InputPending() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.inputScript) == 0 {
		return f.inputStuck
	}
	v := f.inputScript[0]
	f.inputScript = f.inputScript[1:]
	return v
}

// Interactive implements host.Host.
func (f *Fake) Interactive() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.interactive
}

// SetInteractive changes the interactivity probe result.
func (f *Fake) SetInteractive(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.interactive = v
}

// ScriptInput appends values to the InputPending script.
func (f *Fake) ScriptInput(seq ...bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputScript = append(f.inputScript, seq...)
}

// StickInput sets the value returned once the script is exhausted.
func (f *Fake) StickInput(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputStuck = v
}

// TickIdle fires the oldest scheduled idle callback. Returns false when
// nothing is scheduled.
func (f *Fake) TickIdle() bool {
	f.mu.Lock()
	if len(f.pending) == 0 {
		f.mu.Unlock()
		return false
	}
	s := f.pending[0]
	f.pending = f.pending[1:]
	f.mu.Unlock()

	s.fn()
	return true
}

// DrainIdle fires scheduled callbacks until none remain or max fires
// have happened. Returns the number fired.
func (f *Fake) DrainIdle(max int) int {
	fired := 0
	for fired < max && f.TickIdle() {
		fired++
	}
	return fired
}

// PendingIdle returns the number of scheduled, unfired callbacks.
func (f *Fake) PendingIdle() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}
