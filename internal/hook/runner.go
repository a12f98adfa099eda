package hook

import (
	"context"
	"fmt"

	"github.com/dshills/warmstart/internal/diag"
)

// Runner executes callback lists with per-callback fault isolation.
type Runner struct {
	reg *Registry
	log *diag.Logger
}

// NewRunner creates a runner over the given registry.
func NewRunner(reg *Registry, log *diag.Logger) *Runner {
	if log == nil {
		log = diag.Discard()
	}
	return &Runner{reg: reg, log: log}
}

// Run invokes every hook on the named list in registration order.
//
// A hook returning a Warning is logged and the remaining hooks still run.
// Any other error (or panic) is wrapped in an ExecutionError and returned
// immediately; hooks after the failing one do not run, hooks before it
// stay run. Other lists are unaffected.
func (r *Runner) Run(ctx context.Context, list string) error {
	for _, h := range r.reg.snapshot(list) {
		r.log.Trace("running hook %s (list %s)", h.Name(), list)

		err := r.invoke(ctx, h)
		if err == nil {
			continue
		}
		if IsWarning(err) {
			r.log.Warn("hook %s: %v", h.Name(), err)
			continue
		}
		return &ExecutionError{List: list, Hook: h.Name(), Err: err}
	}
	return nil
}

// RunAll invokes several lists as one batch. The first ExecutionError
// aborts the remaining lists in the batch and is returned to the caller,
// who decides whether to escalate or log and continue.
func (r *Runner) RunAll(ctx context.Context, lists ...string) error {
	for _, list := range lists {
		if err := r.Run(ctx, list); err != nil {
			return err
		}
	}
	return nil
}

// invoke runs one hook, converting a panic into an ordinary error so a
// misbehaving callback cannot take down the host.
func (r *Runner) invoke(ctx context.Context, h Hook) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return h.Run(ctx)
}
