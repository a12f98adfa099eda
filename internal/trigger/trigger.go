// Package trigger aggregates independent readiness signals into one-shot
// callback-list firings. A binding relates one target callback list to a
// set of source signals; the first source to fire after the after-init
// gate opens runs the target list exactly once, then the binding disarms
// for the rest of the bootstrap cycle.
package trigger

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/dshills/warmstart/internal/diag"
	"github.com/dshills/warmstart/internal/hook"
	"github.com/dshills/warmstart/internal/signal"
)

// ErrOverlappingBinding is returned when a target is already bound to an
// armed binding sharing at least one source; allowing it would risk a
// double fire.
var ErrOverlappingBinding = errors.New("target already bound to an overlapping source set")

// Binding is a one-shot relation from source signals to a target list.
type Binding struct {
	// ID identifies the binding in diagnostics.
	ID uuid.UUID
	// Target is the callback list run when the binding fires.
	Target string
	// Sources are the signal names that can fire the binding.
	Sources []string

	armed   atomic.Bool
	pending atomic.Bool
	removes []func()
}

// Armed reports whether the binding can still fire.
func (b *Binding) Armed() bool { return b.armed.Load() }

func (b *Binding) hasSource(name string) bool {
	for _, s := range b.Sources {
		if s == name {
			return true
		}
	}
	return false
}

// Aggregator owns the trigger bindings and the after-init gate.
type Aggregator struct {
	bus    *signal.Bus
	runner *hook.Runner
	log    *diag.Logger

	gate atomic.Bool

	mu       sync.Mutex
	bindings []*Binding
}

// New creates an aggregator with a closed gate.
func New(bus *signal.Bus, runner *hook.Runner, log *diag.Logger) *Aggregator {
	if log == nil {
		log = diag.Discard()
	}
	return &Aggregator{bus: bus, runner: runner, log: log}
}

// Bind installs one listener per source signal for the target list.
// It rejects a binding whose source set overlaps an armed binding of the
// same target. Distinct targets may share sources freely.
func (a *Aggregator) Bind(target string, sources ...string) (*Binding, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, existing := range a.bindings {
		if existing.Target != target || !existing.Armed() {
			continue
		}
		for _, s := range sources {
			if existing.hasSource(s) {
				return nil, ErrOverlappingBinding
			}
		}
	}

	b := &Binding{
		ID:      uuid.New(),
		Target:  target,
		Sources: append([]string(nil), sources...),
	}
	b.armed.Store(true)

	for _, src := range b.Sources {
		src := src
		remove := a.bus.Listen(src, func() {
			a.deliver(b, src)
		})
		b.removes = append(b.removes, remove)
	}

	a.bindings = append(a.bindings, b)
	return b, nil
}

// OpenGate marks baseline startup complete. Bindings whose sources fired
// while the gate was closed fire now; that is the implicit deferral the
// listeners perform before the gate opens.
func (a *Aggregator) OpenGate() {
	if !a.gate.CompareAndSwap(false, true) {
		return
	}

	a.mu.Lock()
	bindings := make([]*Binding, len(a.bindings))
	copy(bindings, a.bindings)
	a.mu.Unlock()

	for _, b := range bindings {
		if b.pending.Load() {
			a.fire(b)
		}
	}
}

// GateOpen reports whether baseline startup has completed.
func (a *Aggregator) GateOpen() bool { return a.gate.Load() }

// Reset tears down all bindings and closes the gate. A force bootstrap
// calls this before rebuilding its wiring.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	bindings := a.bindings
	a.bindings = nil
	a.mu.Unlock()

	for _, b := range bindings {
		b.armed.Store(false)
		for _, remove := range b.removes {
			remove()
		}
	}
	a.gate.Store(false)
}

// deliver is the listener body: armed check, gate check, then the
// defensive suppression recheck before firing.
func (a *Aggregator) deliver(b *Binding, source string) {
	if !b.armed.Load() {
		return
	}
	if !a.gate.Load() {
		b.pending.Store(true)
		return
	}
	// The bus drops suppressed emissions, but a source may have been
	// suppressed between delivery and this point during a batch
	// operation. Recheck before committing to the one shot.
	if a.bus.Suppressed(source) {
		return
	}
	a.fire(b)
}

// fire runs the target list and disarms the binding. The swap is the
// double-fire guard for sources firing in the same tick.
func (a *Aggregator) fire(b *Binding) {
	if !b.armed.CompareAndSwap(true, false) {
		return
	}
	b.pending.Store(false)

	a.log.Trace("trigger %s firing list %s", b.ID, b.Target)
	if err := a.runner.Run(context.Background(), b.Target); err != nil {
		// The firing happened; the binding stays disarmed. The caller
		// of the batch decides nothing here, the error is surfaced in
		// the log like any other isolated hook failure.
		a.log.Warn("trigger list %s: %v", b.Target, err)
	}
}
