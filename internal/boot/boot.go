// Package boot implements the bootstrap state machine: the idempotent
// sequencer that resets environment state, loads the precompiled
// registry, wires the one-shot triggers and the incremental loader, and
// hands off to downstream module initialization.
//
// Only two failures abort a bootstrap: a missing registry artifact
// (registry.MissingError, the operator never ran sync) and an artifact
// that fails to evaluate (registry.LoadError, the generator is broken).
// Every other step failure is logged and the sequence continues.
package boot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/dshills/warmstart/internal/diag"
	"github.com/dshills/warmstart/internal/envsnap"
	"github.com/dshills/warmstart/internal/hook"
	"github.com/dshills/warmstart/internal/host"
	"github.com/dshills/warmstart/internal/ledger"
	"github.com/dshills/warmstart/internal/loader"
	"github.com/dshills/warmstart/internal/registry"
	"github.com/dshills/warmstart/internal/signal"
	"github.com/dshills/warmstart/internal/trigger"
)

// Callback list names owned by the bootstrap layer. External
// collaborators append to them by name at any time.
const (
	ListFirstInput     = "first-input"
	ListFirstFile      = "first-file"
	ListFirstBuffer    = "first-buffer"
	ListStartup        = "startup"
	ListLocalVars      = "local-vars"
	ListConfigReloaded = "config-reloaded"
)

// Options configures an Orchestrator.
type Options struct {
	Paths   Paths
	Modules Modules
	Host    host.Host
	Bus     *signal.Bus
	Log     *diag.Logger

	// ImportEnv enables environment-snapshot import. Graphical and
	// daemonized sessions set it; terminal sessions inherit their
	// environment natively and leave it false.
	ImportEnv bool

	// ImmediateLoad forces immediate-mode incremental loading.
	ImmediateLoad bool

	// IdleStartDelay and IdleStepDelay tune the incremental loader.
	// Zero values keep the loader defaults.
	IdleStartDelay time.Duration
	IdleStepDelay  time.Duration
}

// Orchestrator owns the process-wide bootstrap state: callback lists,
// trigger bindings, the deferred-task queue, and the initialized flag.
type Orchestrator struct {
	paths   Paths
	modules Modules
	host    host.Host
	bus     *signal.Bus
	log     *diag.Logger
	opts    Options

	hooks    *hook.Registry
	runner   *hook.Runner
	triggers *trigger.Aggregator
	loader   *loader.Loader
	ledger   *ledger.Ledger

	mu          sync.Mutex
	initialized bool
	initTime    time.Duration
	moduleCount int
	autoloads   map[string]string
	listeners   []func()
	stubs       [][2]string // (list, hook name) added from the manifest

	// envBaseline is the process environment recorded at construction;
	// every bootstrap resets to it so a forced re-run starts clean.
	envBaseline []string
}

// New creates an orchestrator. The environment baseline is snapshotted
// here, before anything mutates it.
func New(opts Options) *Orchestrator {
	if opts.Modules == nil {
		opts.Modules = NopModules{}
	}
	if opts.Bus == nil {
		opts.Bus = signal.NewBus()
	}
	if opts.Log == nil {
		opts.Log = diag.Discard()
	}

	hooks := hook.NewRegistry()
	runner := hook.NewRunner(hooks, opts.Log)
	led := ledger.New(opts.Paths.LedgerFile())

	loaderOpts := []loader.Option{loader.WithImmediate(opts.ImmediateLoad)}
	if opts.IdleStartDelay > 0 {
		loaderOpts = append(loaderOpts, loader.WithStartDelay(opts.IdleStartDelay))
	}
	if opts.IdleStepDelay > 0 {
		loaderOpts = append(loaderOpts, loader.WithStepDelay(opts.IdleStepDelay))
	}

	return &Orchestrator{
		paths:     opts.Paths,
		modules:   opts.Modules,
		host:      opts.Host,
		bus:       opts.Bus,
		log:       opts.Log,
		opts:      opts,
		hooks:     hooks,
		runner:    runner,
		triggers:  trigger.New(opts.Bus, runner, opts.Log),
		loader:    loader.New(opts.Host, led, opts.Log, loaderOpts...),
		ledger:    led,
		autoloads: make(map[string]string),

		envBaseline: os.Environ(),
	}
}

// Init runs the bootstrap sequence. It is idempotent: a second call is
// a no-op unless force is true, in which case the environment reset and
// the full re-sequencing happen again and the init time is recomputed.
// The returned bool reports whether this call performed the sequence.
func (o *Orchestrator) Init(force bool) (bool, error) {
	o.mu.Lock()
	if o.initialized && !force {
		o.mu.Unlock()
		return false, nil
	}
	// Set before the remaining steps so a re-entrant call from a hook
	// running during bootstrap does not re-trigger the sequence.
	o.initialized = true
	o.mu.Unlock()

	started := time.Now()

	// Internal wiring below opens files and creates buffers; none of
	// that is user activity, so first-use signals stay quiet for the
	// duration.
	restore := o.bus.Suppress(signal.FirstInput, signal.FirstFile, signal.FirstBuffer)
	defer restore()

	o.teardown()
	o.resetEnvironment()

	manifest, err := registry.Load(o.paths.RegistryFile())
	if err != nil {
		o.mu.Lock()
		o.initialized = false
		o.mu.Unlock()
		return false, err
	}

	if o.opts.ImportEnv {
		o.importEnvSnapshot()
	}

	if err := o.modules.LoadConfig(); err != nil {
		o.log.Warn("module config subsystem: %v", err)
	}

	o.registerStubs(manifest)
	o.wireHousekeeping()
	o.wireLifecycle()
	o.armFirstUseTriggers()
	o.queueDeferred(manifest)

	if err := o.modules.Init(force); err != nil {
		o.log.Warn("module initialization: %v", err)
	}

	elapsed := time.Since(started)
	o.mu.Lock()
	o.initTime = elapsed
	o.moduleCount = len(manifest.Deferred)
	o.mu.Unlock()

	o.log.Debug("bootstrap sequence complete in %s", elapsed)
	return true, nil
}

// teardown undoes wiring from a previous bootstrap cycle so a forced
// re-run does not double-register anything.
func (o *Orchestrator) teardown() {
	o.mu.Lock()
	listeners := o.listeners
	stubs := o.stubs
	o.listeners = nil
	o.stubs = nil
	o.autoloads = make(map[string]string)
	o.mu.Unlock()

	for _, remove := range listeners {
		remove()
	}
	for _, s := range stubs {
		o.hooks.Remove(s[0], s[1])
	}
	o.hooks.Remove(ListFirstBuffer, "housekeeping")
	o.triggers.Reset()
	o.loader.Disarm()
	o.loader.Clear()
}

// resetEnvironment restores the process environment to the baseline
// snapshot recorded at construction.
func (o *Orchestrator) resetEnvironment() {
	os.Clearenv()
	for _, kv := range o.envBaseline {
		if key, value, ok := strings.Cut(kv, "="); ok {
			os.Setenv(key, value)
		}
	}
}

// importEnvSnapshot applies the external environment snapshot. Absence
// is normal; anything else is logged and bootstrap continues.
func (o *Orchestrator) importEnvSnapshot() {
	vars, err := envsnap.Read(o.paths.EnvFile())
	if err != nil {
		if errors.Is(err, envsnap.ErrNoSnapshot) {
			o.log.Debug("no env snapshot at %s", o.paths.EnvFile())
			return
		}
		o.log.Warn("env snapshot: %v", err)
		return
	}
	if err := envsnap.Apply(vars); err != nil {
		o.log.Warn("applying env snapshot: %v", err)
		return
	}
	o.log.Debug("imported %d vars from env snapshot", len(vars))
}

// registerStubs installs the manifest's autoload map and hook stubs.
// A hook stub loads its module when the target list runs; nothing is
// loaded here.
func (o *Orchestrator) registerStubs(m *registry.Manifest) {
	o.mu.Lock()
	for _, al := range m.Autoloads {
		o.autoloads[al.Name] = al.Module
	}
	o.mu.Unlock()

	for _, stub := range m.HookStubs {
		mod := stub.Module
		name := "autoload:" + mod
		o.hooks.AddFunc(stub.List, name, func(context.Context) error {
			return o.modules.Load(mod)
		})
		o.mu.Lock()
		o.stubs = append(o.stubs, [2]string{stub.List, name})
		o.mu.Unlock()
	}
}

// wireHousekeeping begins idle housekeeping once the first buffer is
// shown: the ledger gets its first flush so a crash before shutdown
// does not lose completed-task records.
func (o *Orchestrator) wireHousekeeping() {
	o.hooks.AddFunc(ListFirstBuffer, "housekeeping", func(context.Context) error {
		if err := o.ledger.Flush(); err != nil {
			return hook.Warningf("ledger flush: %v", err)
		}
		return nil
	})
}

// wireLifecycle connects the lifecycle signals: local-var hooks after a
// mode change, loader arming plus gate opening at startup-complete, and
// the benchmark line at final window setup.
func (o *Orchestrator) wireLifecycle() {
	o.listen(signal.ModeChanged, func() {
		if err := o.runner.Run(context.Background(), ListLocalVars); err != nil {
			o.log.Warn("local-var hooks: %v", err)
		}
	})

	o.listen(signal.StartupComplete, func() {
		o.triggers.OpenGate()
		if err := o.runner.Run(context.Background(), ListStartup); err != nil {
			o.log.Warn("startup hooks: %v", err)
		}
		o.loader.Arm()
	})

	o.listen(signal.UIReady, func() {
		o.log.Info("%s", o.Benchmark())
	})

	o.listen(signal.ConfigChanged, func() {
		if err := o.runner.Run(context.Background(), ListConfigReloaded); err != nil {
			o.log.Warn("config-reloaded hooks: %v", err)
		}
	})
}

// armFirstUseTriggers binds the three first-use lists to their source
// sets. Showing a file also counts as showing a buffer, so the buffer
// binding listens on both signals.
func (o *Orchestrator) armFirstUseTriggers() {
	bindings := []struct {
		target  string
		sources []string
	}{
		{ListFirstInput, []string{signal.FirstInput}},
		{ListFirstFile, []string{signal.FirstFile}},
		{ListFirstBuffer, []string{signal.FirstBuffer, signal.FirstFile}},
	}
	for _, b := range bindings {
		if _, err := o.triggers.Bind(b.target, b.sources...); err != nil {
			o.log.Warn("binding %s: %v", b.target, err)
		}
	}
}

// queueDeferred turns the manifest's deferred modules into loader tasks.
func (o *Orchestrator) queueDeferred(m *registry.Manifest) {
	if err := o.ledger.Load(); err != nil {
		o.log.Warn("%v", err)
	}

	tasks := make([]loader.Task, 0, len(m.Deferred))
	for _, name := range m.Deferred {
		name := name
		tasks = append(tasks, loader.NewTask(name, func(step *loader.Step) error {
			if err := step.Check(); err != nil {
				return err
			}
			return o.modules.Load(name)
		}))
	}
	o.loader.Register(tasks, false)
}

// listen registers a bus listener and remembers its removal for the
// next teardown.
func (o *Orchestrator) listen(name string, fn func()) {
	remove := o.bus.Listen(name, fn)
	o.mu.Lock()
	o.listeners = append(o.listeners, remove)
	o.mu.Unlock()
}

// Initialized reports whether a bootstrap has completed.
func (o *Orchestrator) Initialized() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.initialized
}

// InitTime returns the duration of the most recent bootstrap sequence.
func (o *Orchestrator) InitTime() time.Duration {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.initTime
}

// Benchmark returns the human-readable startup summary shown at final
// window setup.
func (o *Orchestrator) Benchmark() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return fmt.Sprintf("warmstart: %d modules deferred, ready in %.3fs",
		o.moduleCount, o.initTime.Seconds())
}

// RegisterCallback appends fn to the named callback list.
func (o *Orchestrator) RegisterCallback(list, name string, fn func(ctx context.Context) error) {
	o.hooks.AddFunc(list, name, fn)
}

// RunCallbackList runs the named list through the fault-isolating
// runner.
func (o *Orchestrator) RunCallbackList(ctx context.Context, list string) error {
	return o.runner.Run(ctx, list)
}

// BindOneShot arms a one-shot trigger from the source signals to the
// target list.
func (o *Orchestrator) BindOneShot(target string, sources ...string) error {
	_, err := o.triggers.Bind(target, sources...)
	return err
}

// EnqueueDeferred queues module loads on the incremental loader. With
// runNow true, draining begins immediately instead of at the next idle
// opportunity.
func (o *Orchestrator) EnqueueDeferred(names []string, runNow bool) {
	tasks := make([]loader.Task, 0, len(names))
	for _, name := range names {
		name := name
		tasks = append(tasks, loader.NewTask(name, func(step *loader.Step) error {
			if err := step.Check(); err != nil {
				return err
			}
			return o.modules.Load(name)
		}))
	}
	o.loader.Register(tasks, runNow)
}

// ResolveAutoload returns the module providing the named callable, if
// the registry declared one.
func (o *Orchestrator) ResolveAutoload(name string) (string, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	mod, ok := o.autoloads[name]
	return mod, ok
}

// Hooks exposes the callback-list registry to collaborators that
// register during their own construction.
func (o *Orchestrator) Hooks() *hook.Registry { return o.hooks }

// Loader exposes the incremental loader, primarily for the harness to
// inspect drain state.
func (o *Orchestrator) Loader() *loader.Loader { return o.loader }
