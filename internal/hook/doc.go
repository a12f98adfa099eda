// Package hook implements named callback lists and a fault-isolating
// runner for them.
//
// A callback list is identified by name, not by pointer, so independent
// components can append to the same list without coordinating. The runner
// distinguishes two failure classes: a Warning is logged and iteration
// continues, any other error stops the current batch and is reported to
// the caller wrapped in an ExecutionError.
//
// Known limitation: callbacks run with no timeout. A callback that never
// returns hangs the host; this is inherent to the cooperative
// single-threaded model and is deliberately not papered over here.
package hook
