package hook_test

import (
	"context"
	"errors"
	"testing"

	"github.com/dshills/warmstart/internal/diag"
	"github.com/dshills/warmstart/internal/hook"
)

var errBroken = errors.New("broken")

func newRunner() (*hook.Registry, *hook.Runner) {
	reg := hook.NewRegistry()
	return reg, hook.NewRunner(reg, diag.Discard())
}

func appendName(order *[]string, name string) func(context.Context) error {
	return func(context.Context) error {
		*order = append(*order, name)
		return nil
	}
}

func TestRunPreservesRegistrationOrder(t *testing.T) {
	reg, r := newRunner()

	var order []string
	reg.AddFunc("startup", "a", appendName(&order, "a"))
	reg.AddFunc("startup", "b", appendName(&order, "b"))
	reg.AddFunc("startup", "c", appendName(&order, "c"))

	if err := r.Run(context.Background(), "startup"); err != nil {
		t.Fatalf("Run returned %v", err)
	}

	want := []string{"a", "b", "c"}
	if len(order) != len(want) {
		t.Fatalf("ran %d hooks, want %d", len(order), len(want))
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %q, want %q", i, order[i], want[i])
		}
	}
}

func TestWarningContinuesRemainingHooks(t *testing.T) {
	reg, r := newRunner()

	var order []string
	reg.AddFunc("first-file", "a", appendName(&order, "a"))
	reg.AddFunc("first-file", "warns", func(context.Context) error {
		order = append(order, "warns")
		return hook.Warningf("recentf list is stale")
	})
	reg.AddFunc("first-file", "b", appendName(&order, "b"))

	if err := r.Run(context.Background(), "first-file"); err != nil {
		t.Fatalf("warning escalated to error: %v", err)
	}
	if len(order) != 3 || order[2] != "b" {
		t.Errorf("hooks after warning did not run, order = %v", order)
	}
}

func TestHardErrorStopsBatchAtFailingHook(t *testing.T) {
	reg, r := newRunner()

	var order []string
	reg.AddFunc("first-input", "a", appendName(&order, "a"))
	reg.AddFunc("first-input", "boom", func(context.Context) error { return errBroken })
	reg.AddFunc("first-input", "never", appendName(&order, "never"))

	err := r.Run(context.Background(), "first-input")
	if err == nil {
		t.Fatal("expected error")
	}

	var execErr *hook.ExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("error type %T, want *hook.ExecutionError", err)
	}
	if execErr.List != "first-input" || execErr.Hook != "boom" {
		t.Errorf("ExecutionError identity = %s/%s", execErr.List, execErr.Hook)
	}
	if !errors.Is(err, errBroken) {
		t.Error("cause not preserved through Unwrap")
	}
	if len(order) != 1 || order[0] != "a" {
		t.Errorf("hooks after failure ran, order = %v", order)
	}
}

func TestOtherListUnaffectedByFailure(t *testing.T) {
	reg, r := newRunner()

	reg.AddFunc("bad-list", "boom", func(context.Context) error { return errBroken })

	ran := false
	reg.AddFunc("good-list", "ok", func(context.Context) error {
		ran = true
		return nil
	})

	if err := r.Run(context.Background(), "bad-list"); err == nil {
		t.Fatal("expected error from bad-list")
	}
	if err := r.Run(context.Background(), "good-list"); err != nil {
		t.Fatalf("good-list failed: %v", err)
	}
	if !ran {
		t.Error("good-list hook did not run after bad-list failure")
	}
}

func TestRunAllAbortsRemainingListsInBatch(t *testing.T) {
	reg, r := newRunner()

	reg.AddFunc("one", "boom", func(context.Context) error { return errBroken })

	ran := false
	reg.AddFunc("two", "ok", func(context.Context) error {
		ran = true
		return nil
	})

	err := r.RunAll(context.Background(), "one", "two")
	if err == nil {
		t.Fatal("expected batch error")
	}
	if ran {
		t.Error("list after failing list ran within the same batch")
	}
}

func TestPanicBecomesExecutionError(t *testing.T) {
	reg, r := newRunner()

	reg.AddFunc("startup", "panics", func(context.Context) error {
		panic("nil map write")
	})

	err := r.Run(context.Background(), "startup")
	var execErr *hook.ExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("panic not converted, got %T: %v", err, err)
	}
}

func TestHookMayAppendDuringRun(t *testing.T) {
	reg, r := newRunner()

	appended := false
	reg.AddFunc("startup", "self-extend", func(context.Context) error {
		reg.AddFunc("startup", "late", func(context.Context) error {
			appended = true
			return nil
		})
		return nil
	})

	if err := r.Run(context.Background(), "startup"); err != nil {
		t.Fatalf("Run returned %v", err)
	}
	if appended {
		t.Error("hook appended mid-run executed in the same run")
	}

	if err := r.Run(context.Background(), "startup"); err != nil {
		t.Fatalf("second Run returned %v", err)
	}
	if !appended {
		t.Error("appended hook never ran on a later invocation")
	}
}

func TestRemoveDeletesNamedHook(t *testing.T) {
	reg, r := newRunner()

	var order []string
	reg.AddFunc("first-file", "keep", appendName(&order, "keep"))
	reg.AddFunc("first-file", "drop", appendName(&order, "drop"))

	if !reg.Remove("first-file", "drop") {
		t.Fatal("Remove returned false for a registered hook")
	}
	if reg.Remove("first-file", "drop") {
		t.Error("Remove returned true for an absent hook")
	}

	if err := r.Run(context.Background(), "first-file"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(order) != 1 || order[0] != "keep" {
		t.Errorf("order = %v, want [keep]", order)
	}
}

func TestClearEmptiesList(t *testing.T) {
	reg, r := newRunner()

	calls := 0
	reg.AddFunc("local-vars", "x", func(context.Context) error {
		calls++
		return nil
	})
	reg.Clear("local-vars")

	if err := r.Run(context.Background(), "local-vars"); err != nil {
		t.Fatalf("Run of cleared list returned %v", err)
	}
	if calls != 0 {
		t.Errorf("cleared hook ran %d times", calls)
	}
	if reg.Len("local-vars") != 0 {
		t.Errorf("Len after Clear = %d", reg.Len("local-vars"))
	}
}
