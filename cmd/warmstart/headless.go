package main

import (
	"sync"
	"time"
)

// headlessHost is the host used for -headless runs: no screen, no
// input, never interactive, so the loader drains immediately.
type headlessHost struct {
	mu     sync.Mutex
	timers []*time.Timer
}

func newHeadlessHost() *headlessHost {
	return &headlessHost{}
}

func (h *headlessHost) Start() error { return nil }

func (h *headlessHost) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, t := range h.timers {
		t.Stop()
	}
	h.timers = nil
}

func (h *headlessHost) OnIdle(d time.Duration, fn func()) (cancel func()) {
	h.mu.Lock()
	timer := time.AfterFunc(d, fn)
	h.timers = append(h.timers, timer)
	h.mu.Unlock()
	return func() { timer.Stop() }
}

func (h *headlessHost) InputPending() bool { return false }

func (h *headlessHost) Interactive() bool { return false }
