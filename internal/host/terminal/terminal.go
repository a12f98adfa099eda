// Package terminal implements host.Host on top of a tcell screen.
//
// A single pump goroutine owns PollEvent and feeds a buffered channel;
// InputPending is a length check on that channel, which gives deferred
// tasks a cheap non-blocking poll. First-use signals (first keystroke,
// first file, first buffer) are emitted on the signal bus as the
// corresponding host events arrive.
package terminal

import (
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gdamore/tcell/v2"
	"golang.org/x/term"

	"github.com/dshills/warmstart/internal/signal"
)


// Host is a tcell-backed host.Host.
type Host struct {
	screen tcell.Screen
	bus    *signal.Bus

	events chan tcell.Event
	quit   chan struct{}

	firstKey    atomic.Bool
	firstFile   atomic.Bool
	firstBuffer atomic.Bool
	running     atomic.Bool

	mu     sync.Mutex
	timers map[int]*time.Timer
	nextID int
}

// New creates a terminal host publishing signals on bus.
func New(bus *signal.Bus) (*Host, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	return &Host{
		screen: screen,
		bus:    bus,
		events: make(chan tcell.Event, 64),
		quit:   make(chan struct{}),
		timers: make(map[int]*time.Timer),
	}, nil
}

// Start initializes the screen and begins pumping events.
func (h *Host) Start() error {
	if err := h.screen.Init(); err != nil {
		return err
	}
	h.running.Store(true)
	go h.pump()
	return nil
}

// Stop tears down the screen and stops the pump.
func (h *Host) Stop() {
	if !h.running.Swap(false) {
		return
	}
	close(h.quit)
	h.screen.Fini()

	h.mu.Lock()
	for id, t := range h.timers {
		t.Stop()
		delete(h.timers, id)
	}
	h.mu.Unlock()
}

// pump owns PollEvent. tcell's PollEvent blocks, so it lives on its own
// goroutine; everything downstream consumes the buffered channel.
func (h *Host) pump() {
	for {
		ev := h.screen.PollEvent()
		if ev == nil {
			return
		}
		select {
		case h.events <- ev:
		case <-h.quit:
			return
		}
	}
}

// Next returns the next host event, blocking until one arrives or the
// host stops. The boolean is false once the host has stopped.
func (h *Host) Next() (tcell.Event, bool) {
	select {
	case ev := <-h.events:
		h.observe(ev)
		return ev, true
	case <-h.quit:
		return nil, false
	}
}

// observe emits first-use signals for an event being handed to the host
// program. Suppression during internal batch work is handled by the bus.
func (h *Host) observe(ev tcell.Event) {
	if _, ok := ev.(*tcell.EventKey); ok {
		if h.firstKey.CompareAndSwap(false, true) {
			h.bus.Emit(signal.FirstInput)
		}
	}
}

// NotifyFileOpened emits the first-file signal once. The host program
// calls it whenever it opens a file; only the first call emits.
func (h *Host) NotifyFileOpened() {
	if h.firstFile.CompareAndSwap(false, true) {
		h.bus.Emit(signal.FirstFile)
	}
}

// NotifyBufferShown emits the first-buffer signal once.
func (h *Host) NotifyBufferShown() {
	if h.firstBuffer.CompareAndSwap(false, true) {
		h.bus.Emit(signal.FirstBuffer)
	}
}

// OnIdle implements host.Host using a one-shot timer.
func (h *Host) OnIdle(d time.Duration, fn func()) (cancel func()) {
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	timer := time.AfterFunc(d, func() {
		h.mu.Lock()
		delete(h.timers, id)
		h.mu.Unlock()
		fn()
	})
	h.timers[id] = timer
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if t, ok := h.timers[id]; ok {
			t.Stop()
			delete(h.timers, id)
		}
	}
}

// InputPending implements host.Host.
func (h *Host) InputPending() bool {
	return len(h.events) > 0
}

// Interactive implements host.Host. A host whose stdin is not a terminal
// (piped input, daemon session) gets immediate-mode loading.
func (h *Host) Interactive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// Bus returns the signal bus this host publishes on.
func (h *Host) Bus() *signal.Bus {
	return h.bus
}
