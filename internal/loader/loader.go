// Package loader implements the idle-triggered incremental loader: a
// FIFO queue of deferred, idempotent tasks drained one task per idle
// opportunity so the host never blocks on initialization work.
//
// Interruption is cooperative. A task polls Step.Interrupted at safe
// points and abandons its attempt when host input arrives; the loader
// requeues it at the front of the queue. The host cannot preempt a task
// mid-statement, so a task that never polls runs to completion.
package loader

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dshills/warmstart/internal/diag"
	"github.com/dshills/warmstart/internal/host"
	"github.com/dshills/warmstart/internal/ledger"
)

// State describes what the loader is doing.
type State int

const (
	// StateIdleEmpty means the queue is empty or the loader is unarmed.
	StateIdleEmpty State = iota
	// StateDraining means a drain step is scheduled or running.
	StateDraining
	// StateInterrupted means the last attempt was abandoned for input
	// and its task waits at the front of the queue.
	StateInterrupted
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdleEmpty:
		return "idle-empty"
	case StateDraining:
		return "draining"
	case StateInterrupted:
		return "interrupted"
	default:
		return "unknown"
	}
}

// ErrInterrupted is returned by a task that abandoned its attempt
// because host input arrived. It is a control signal, not a failure:
// the task is retried at the front of the queue.
var ErrInterrupted = errors.New("interrupted by host input")

// TaskError wraps a failed task attempt. The task is dropped, never
// retried, and the queue continues.
type TaskError struct {
	Task string
	Err  error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("deferred task %s: %v", e.Task, e.Err)
}

func (e *TaskError) Unwrap() error { return e.Err }

// Task is one unit of deferred initialization work. Tasks must be
// idempotent: a partial attempt must be either a safe no-op or
// restartable from the top.
type Task interface {
	// Name identifies the task for the ledger and diagnostics.
	Name() string
	// Run performs the work. Return ErrInterrupted (usually via
	// Step.Check) to abandon the attempt when input arrives.
	Run(step *Step) error
}

// TaskFunc adapts a named function to the Task interface.
type TaskFunc struct {
	name string
	fn   func(step *Step) error
}

// NewTask creates a function task.
func NewTask(name string, fn func(step *Step) error) *TaskFunc {
	return &TaskFunc{name: name, fn: fn}
}

// Name implements Task.
func (t *TaskFunc) Name() string { return t.name }

// Run implements Task.
func (t *TaskFunc) Run(step *Step) error { return t.fn(step) }

// Step is handed to a task attempt. It carries the cooperative
// interruption poll.
type Step struct {
	host        host.Host
	ignoreInput bool
}

// Interrupted reports whether host input is waiting and the attempt
// should be abandoned. Always false during an immediate-mode drain.
func (s *Step) Interrupted() bool {
	if s.ignoreInput || s.host == nil {
		return false
	}
	return s.host.InputPending()
}

// Check returns ErrInterrupted when the attempt should be abandoned,
// nil otherwise. Tasks typically call it between phases:
//
//	if err := step.Check(); err != nil {
//		return err
//	}
func (s *Step) Check() error {
	if s.Interrupted() {
		return ErrInterrupted
	}
	return nil
}

// Loader drains a queue of deferred tasks during host idle time.
type Loader struct {
	mu         sync.Mutex
	host       host.Host
	log        *diag.Logger
	ledger     *ledger.Ledger
	queue      []Task
	state      State
	armed      bool
	immediate  bool
	startDelay time.Duration
	stepDelay  time.Duration
	cancelIdle func()
}

// Option configures a Loader.
type Option func(*Loader)

// WithStartDelay sets the initial quiescence period before the first
// drain step. Default 2s.
func WithStartDelay(d time.Duration) Option {
	return func(l *Loader) { l.startDelay = d }
}

// WithStepDelay sets the idle delay between drain steps. Default 750ms.
func WithStepDelay(d time.Duration) Option {
	return func(l *Loader) { l.stepDelay = d }
}

// WithImmediate forces immediate-mode draining even on an interactive
// host. Non-interactive hosts are immediate regardless.
func WithImmediate(v bool) Option {
	return func(l *Loader) { l.immediate = v }
}

// New creates a loader. A nil ledger gets an in-memory one.
func New(h host.Host, led *ledger.Ledger, log *diag.Logger, opts ...Option) *Loader {
	if led == nil {
		led = ledger.New("")
	}
	if log == nil {
		log = diag.Discard()
	}
	l := &Loader{
		host:       h,
		log:        log,
		ledger:     led,
		startDelay: 2 * time.Second,
		stepDelay:  750 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Register appends tasks to the queue in order. When runNow is true,
// draining begins at once instead of waiting for the next idle
// opportunity; the loader must already be armed for runNow to schedule
// anything.
func (l *Loader) Register(tasks []Task, runNow bool) {
	l.mu.Lock()
	l.queue = append(l.queue, tasks...)
	armed := l.armed
	idle := l.state == StateIdleEmpty && l.cancelIdle == nil
	l.mu.Unlock()

	if !armed {
		return
	}
	switch {
	case runNow && l.immediateMode():
		l.drainAll()
	case runNow:
		l.schedule(0)
	case idle:
		// The loader already finished an earlier drain; pick the new
		// tasks up at the next idle opportunity.
		l.schedule(l.startDelay)
	}
}

// Arm starts draining. On a non-interactive host (or with WithImmediate)
// all pending tasks run back-to-back with no idle gating; otherwise the
// first step is scheduled after the initial quiescence period.
func (l *Loader) Arm() {
	l.mu.Lock()
	if l.armed {
		l.mu.Unlock()
		return
	}
	l.armed = true
	empty := len(l.queue) == 0
	l.mu.Unlock()

	if empty {
		return
	}
	if l.immediateMode() {
		l.drainAll()
		return
	}
	l.schedule(l.startDelay)
}

// Disarm cancels any scheduled step and stops further draining. Pending
// tasks stay queued; a later Arm resumes them.
func (l *Loader) Disarm() {
	l.mu.Lock()
	cancel := l.cancelIdle
	l.cancelIdle = nil
	l.armed = false
	l.state = StateIdleEmpty
	l.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Clear drops every pending task. Used when a forced bootstrap rebuilds
// the queue from a fresh manifest.
func (l *Loader) Clear() {
	l.mu.Lock()
	l.queue = nil
	l.state = StateIdleEmpty
	l.mu.Unlock()
}

// State returns the loader's current state.
func (l *Loader) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Pending returns the names of queued tasks in drain order.
func (l *Loader) Pending() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	names := make([]string, len(l.queue))
	for i, t := range l.queue {
		names[i] = t.Name()
	}
	return names
}

func (l *Loader) immediateMode() bool {
	if l.immediate {
		return true
	}
	return l.host != nil && !l.host.Interactive()
}

// schedule books the next drain step after d of host idle time.
func (l *Loader) schedule(d time.Duration) {
	l.mu.Lock()
	if !l.armed {
		l.mu.Unlock()
		return
	}
	if l.cancelIdle != nil {
		l.cancelIdle()
	}
	// An interruption keeps its state until the retry attempt begins.
	if l.state != StateInterrupted {
		l.state = StateDraining
	}
	l.cancelIdle = l.host.OnIdle(d, l.step)
	l.mu.Unlock()
}

// step performs one drain increment: pop the head task, discard it if
// the ledger already has it (consuming no idle wait), otherwise attempt
// it and decide between requeue-front, drop, or continue.
func (l *Loader) step() {
	for {
		l.mu.Lock()
		l.cancelIdle = nil
		if !l.armed {
			l.mu.Unlock()
			return
		}
		if len(l.queue) == 0 {
			l.state = StateIdleEmpty
			l.mu.Unlock()
			l.log.Info("Finished incremental loading")
			return
		}
		task := l.queue[0]
		l.queue = l.queue[1:]

		if l.ledger.Done(task.Name()) {
			l.mu.Unlock()
			l.log.Trace("skipping %s: already loaded", task.Name())
			continue
		}

		l.state = StateDraining
		l.mu.Unlock()

		l.log.Info("Incrementally loading %s", task.Name())
		err := task.Run(&Step{host: l.host})

		switch {
		case errors.Is(err, ErrInterrupted):
			l.mu.Lock()
			l.queue = append([]Task{task}, l.queue...)
			l.state = StateInterrupted
			l.mu.Unlock()
			l.log.Debug("input arrived during %s; requeued for retry", task.Name())
			l.schedule(l.stepDelay)
			return

		case err != nil:
			l.log.Error("%v", &TaskError{Task: task.Name(), Err: err})
			// Dropped permanently. A failing task must not wedge the
			// pipeline, so the queue moves on.

		default:
			l.ledger.MarkDone(task.Name())
		}

		l.mu.Lock()
		if len(l.queue) == 0 {
			l.state = StateIdleEmpty
			l.mu.Unlock()
			l.log.Info("Finished incremental loading")
			return
		}
		l.mu.Unlock()
		l.schedule(l.stepDelay)
		return
	}
}

// drainAll runs every pending task back-to-back with no idle gating.
// The interruption poll is disabled: there is no interactive user to
// yield to.
func (l *Loader) drainAll() {
	for {
		l.mu.Lock()
		if len(l.queue) == 0 {
			l.state = StateIdleEmpty
			l.mu.Unlock()
			l.log.Info("Finished incremental loading")
			return
		}
		task := l.queue[0]
		l.queue = l.queue[1:]
		l.state = StateDraining
		l.mu.Unlock()

		if l.ledger.Done(task.Name()) {
			l.log.Trace("skipping %s: already loaded", task.Name())
			continue
		}

		l.log.Info("Incrementally loading %s", task.Name())
		if err := task.Run(&Step{host: l.host, ignoreInput: true}); err != nil {
			l.log.Error("%v", &TaskError{Task: task.Name(), Err: err})
			continue
		}
		l.ledger.MarkDone(task.Name())
	}
}
