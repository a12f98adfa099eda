package hook

import (
	"context"
	"sync"
)

// Hook is a single registered callback.
type Hook interface {
	// Name identifies the callback in diagnostics.
	Name() string
	// Run executes the callback. Returning a Warning logs and continues;
	// any other error aborts the current batch.
	Run(ctx context.Context) error
}

// Func adapts a plain function to the Hook interface.
type Func struct {
	name string
	fn   func(ctx context.Context) error
}

// NewFunc creates a named function hook.
func NewFunc(name string, fn func(ctx context.Context) error) *Func {
	return &Func{name: name, fn: fn}
}

// Name implements Hook.
func (f *Func) Name() string { return f.name }

// Run implements Hook.
func (f *Func) Run(ctx context.Context) error { return f.fn(ctx) }

// Registry holds the process-wide callback lists, keyed by name.
// Lists keep registration order; appending the same hook twice runs it twice.
type Registry struct {
	mu    sync.RWMutex
	lists map[string][]Hook
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{lists: make(map[string][]Hook)}
}

// Add appends a hook to the named list, creating the list on first use.
func (r *Registry) Add(list string, h Hook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lists[list] = append(r.lists[list], h)
}

// AddFunc appends a function hook to the named list.
func (r *Registry) AddFunc(list, name string, fn func(ctx context.Context) error) {
	r.Add(list, NewFunc(name, fn))
}

// Remove deletes the first hook with the given name from the named
// list. Returns false when no such hook is registered.
func (r *Registry) Remove(list, name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	hooks := r.lists[list]
	for i, h := range hooks {
		if h.Name() == name {
			r.lists[list] = append(hooks[:i], hooks[i+1:]...)
			return true
		}
	}
	return false
}

// Clear removes all hooks from the named list.
func (r *Registry) Clear(list string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.lists, list)
}

// Len returns the number of hooks registered on the named list.
func (r *Registry) Len(list string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.lists[list])
}

// Lists returns the names of all lists with at least one hook.
func (r *Registry) Lists() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.lists))
	for name, hooks := range r.lists {
		if len(hooks) > 0 {
			names = append(names, name)
		}
	}
	return names
}

// snapshot returns a copy of the named list so callbacks may append to
// the registry while a run is in progress.
func (r *Registry) snapshot(list string) []Hook {
	r.mu.RLock()
	defer r.mu.RUnlock()
	hooks := make([]Hook, len(r.lists[list]))
	copy(hooks, r.lists[list])
	return hooks
}
