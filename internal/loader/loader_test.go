package loader_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/dshills/warmstart/internal/diag"
	"github.com/dshills/warmstart/internal/host/hosttest"
	"github.com/dshills/warmstart/internal/ledger"
	"github.com/dshills/warmstart/internal/loader"
)

func testLogger() (*diag.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return diag.New(diag.Config{Level: diag.LevelDebug, Output: &buf}), &buf
}

func namedTask(order *[]string, name string) loader.Task {
	return loader.NewTask(name, func(*loader.Step) error {
		*order = append(*order, name)
		return nil
	})
}

func TestDrainsInRegistrationOrder(t *testing.T) {
	h := hosttest.New()
	log, buf := testLogger()
	l := loader.New(h, nil, log)

	var order []string
	l.Register([]loader.Task{
		namedTask(&order, "org-macs"),
		namedTask(&order, "org-faces"),
		namedTask(&order, "org-entities"),
	}, false)

	l.Arm()
	if n := h.DrainIdle(10); n != 3 {
		t.Fatalf("idle ticks consumed = %d, want 3", n)
	}

	want := []string{"org-macs", "org-faces", "org-entities"}
	if len(order) != 3 {
		t.Fatalf("completed %d tasks, want 3: %v", len(order), order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %q, want %q", i, order[i], want[i])
		}
	}

	out := buf.String()
	for _, line := range []string{
		"Incrementally loading org-macs",
		"Incrementally loading org-faces",
		"Incrementally loading org-entities",
		"Finished incremental loading",
	} {
		if !strings.Contains(out, line) {
			t.Errorf("log missing %q\nlog:\n%s", line, out)
		}
	}
	if l.State() != loader.StateIdleEmpty {
		t.Errorf("final state = %v, want idle-empty", l.State())
	}
}

func TestInterruptedTaskRetriesBeforeLaterTasks(t *testing.T) {
	h := hosttest.New()
	log, _ := testLogger()
	l := loader.New(h, nil, log)

	var order []string
	attempts := 0

	t1 := namedTask(&order, "org-macs")
	t2 := loader.NewTask("org-faces", func(step *loader.Step) error {
		attempts++
		if err := step.Check(); err != nil {
			return err
		}
		order = append(order, "org-faces")
		return nil
	})
	t3 := namedTask(&order, "org-entities")

	l.Register([]loader.Task{t1, t2, t3}, false)
	l.Arm()

	if !h.TickIdle() { // t1
		t.Fatal("no drain step scheduled after Arm")
	}

	// Input arrives during org-faces' first attempt only.
	h.ScriptInput(true)
	h.TickIdle() // t2 attempt, interrupted

	if l.State() != loader.StateInterrupted {
		t.Fatalf("state after interruption = %v, want interrupted", l.State())
	}
	if got := l.Pending(); len(got) != 2 || got[0] != "org-faces" || got[1] != "org-entities" {
		t.Fatalf("queue after interruption = %v, want [org-faces org-entities]", got)
	}

	h.DrainIdle(10) // retry t2, then t3

	want := []string{"org-macs", "org-faces", "org-entities"}
	if len(order) != 3 {
		t.Fatalf("completed = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %q, want %q", i, order[i], want[i])
		}
	}
	if attempts != 2 {
		t.Errorf("org-faces attempts = %d, want 2", attempts)
	}
}

func TestFailingTaskDroppedNotRetried(t *testing.T) {
	h := hosttest.New()
	log, buf := testLogger()
	l := loader.New(h, nil, log)

	var order []string
	attempts := 0
	bad := loader.NewTask("org-faces", func(*loader.Step) error {
		attempts++
		return errors.New("void function org-faces-init")
	})

	l.Register([]loader.Task{
		namedTask(&order, "org-macs"),
		bad,
		namedTask(&order, "org-entities"),
	}, false)
	l.Arm()
	h.DrainIdle(10)

	if attempts != 1 {
		t.Errorf("failing task attempted %d times, want 1", attempts)
	}
	if len(order) != 2 || order[1] != "org-entities" {
		t.Errorf("failing task blocked later tasks: %v", order)
	}
	if !strings.Contains(buf.String(), "deferred task org-faces") {
		t.Errorf("failure not logged with task identity:\n%s", buf.String())
	}
	if l.State() != loader.StateIdleEmpty {
		t.Errorf("final state = %v", l.State())
	}
}

func TestLedgerSatisfiedTaskConsumesNoIdleSlot(t *testing.T) {
	h := hosttest.New()
	log, _ := testLogger()
	led := ledger.New("")
	led.MarkDone("org-faces")
	l := loader.New(h, led, log)

	var order []string
	l.Register([]loader.Task{
		namedTask(&order, "org-macs"),
		namedTask(&order, "org-faces"),
		namedTask(&order, "org-entities"),
	}, false)
	l.Arm()

	// Two ticks must be enough: the satisfied task is discarded inside
	// the same drain step that then attempts org-entities.
	h.TickIdle()
	h.TickIdle()

	if len(order) != 2 || order[0] != "org-macs" || order[1] != "org-entities" {
		t.Errorf("completions = %v, want [org-macs org-entities]", order)
	}
}

func TestNonInteractiveHostDrainsImmediately(t *testing.T) {
	h := hosttest.New()
	h.SetInteractive(false)
	log, _ := testLogger()
	l := loader.New(h, nil, log)

	var order []string
	l.Register([]loader.Task{
		namedTask(&order, "org-macs"),
		namedTask(&order, "org-faces"),
	}, false)
	l.Arm()

	if len(order) != 2 {
		t.Fatalf("immediate drain completed %d tasks, want 2", len(order))
	}
	if h.PendingIdle() != 0 {
		t.Error("immediate drain scheduled idle callbacks")
	}
}

func TestRunNowBeginsDrainingWithoutQuiescence(t *testing.T) {
	h := hosttest.New()
	log, _ := testLogger()
	l := loader.New(h, nil, log)
	l.Arm() // armed, queue empty

	var order []string
	l.Register([]loader.Task{namedTask(&order, "org-macs")}, true)

	if h.PendingIdle() != 1 {
		t.Fatalf("runNow did not schedule an immediate step, pending = %d", h.PendingIdle())
	}
	h.DrainIdle(5)
	if len(order) != 1 {
		t.Errorf("runNow task did not complete: %v", order)
	}
}

func TestRegisterAfterEarlierDrainIsPickedUp(t *testing.T) {
	h := hosttest.New()
	log, _ := testLogger()
	l := loader.New(h, nil, log)

	var order []string
	l.Register([]loader.Task{namedTask(&order, "org-macs")}, false)
	l.Arm()
	h.DrainIdle(5)
	if l.State() != loader.StateIdleEmpty {
		t.Fatalf("precondition: state = %v", l.State())
	}

	l.Register([]loader.Task{namedTask(&order, "org-faces")}, false)
	h.DrainIdle(5)

	if len(order) != 2 || order[1] != "org-faces" {
		t.Errorf("late-registered task never drained: %v", order)
	}
}

func TestDisarmStopsScheduledStep(t *testing.T) {
	h := hosttest.New()
	log, _ := testLogger()
	l := loader.New(h, nil, log)

	var order []string
	l.Register([]loader.Task{namedTask(&order, "org-macs")}, false)
	l.Arm()
	l.Disarm()

	h.DrainIdle(5)
	if len(order) != 0 {
		t.Errorf("task ran after Disarm: %v", order)
	}
	if got := l.Pending(); len(got) != 1 {
		t.Errorf("pending after Disarm = %v, want the task kept", got)
	}
}

func TestSuccessfulTaskRecordedInLedger(t *testing.T) {
	h := hosttest.New()
	log, _ := testLogger()
	led := ledger.New("")
	l := loader.New(h, led, log)

	l.Register([]loader.Task{loader.NewTask("org-macs", func(*loader.Step) error { return nil })}, false)
	l.Arm()
	h.DrainIdle(5)

	if !led.Done("org-macs") {
		t.Error("completed task not marked in ledger")
	}
}
