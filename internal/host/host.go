// Package host defines the narrow surface the orchestration layer needs
// from its hosting program: an idle scheduler, an input-pending poll, and
// an interactivity probe. The terminal subpackage provides the real
// tcell-backed implementation; hosttest provides a scriptable fake.
package host

import "time"

// Host is the hosting program as seen by the bootstrap layer.
//
// There is one logical thread of control. OnIdle callbacks must be
// treated as running interleaved with host event handling, never in
// parallel with it.
type Host interface {
	// OnIdle schedules fn to run once after d of quiescence. The returned
	// cancel function stops a callback that has not yet fired.
	OnIdle(d time.Duration, fn func()) (cancel func())

	// InputPending reports whether host input is waiting to be handled.
	// Deferred tasks poll this at safe points and abandon their attempt
	// when it turns true.
	InputPending() bool

	// Interactive reports whether a user is attached. Non-interactive
	// hosts skip idle gating and drain deferred work immediately.
	Interactive() bool
}

// Lifecycle extends Host for implementations that own resources such as
// a screen or an event pump.
type Lifecycle interface {
	Host
	Start() error
	Stop()
}
