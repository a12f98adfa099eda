// Package main is the entry point for the warmstart host harness.
package main

import (
	"flag"
	"fmt"
	"os"
	ossignal "os/signal"
	"strings"
	"syscall"

	"github.com/gdamore/tcell/v2"

	"github.com/dshills/warmstart/internal/boot"
	"github.com/dshills/warmstart/internal/config"
	"github.com/dshills/warmstart/internal/diag"
	"github.com/dshills/warmstart/internal/envsnap"
	"github.com/dshills/warmstart/internal/host"
	"github.com/dshills/warmstart/internal/host/terminal"
	"github.com/dshills/warmstart/internal/registry"
	"github.com/dshills/warmstart/internal/signal"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) > 0 {
		switch args[0] {
		case "sync":
			return runSync(args[1:])
		case "version":
			fmt.Printf("warmstart %s (%s)\n", version, commit)
			return 0
		}
	}
	return runHost(args)
}

// runSync regenerates the registry artifact and the environment
// snapshot. This is the remediation step a missing-artifact bootstrap
// failure points at.
func runSync(args []string) int {
	fs := flag.NewFlagSet("sync", flag.ExitOnError)
	configPath := fs.String("config", "warmstart.toml", "path to configuration file")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if err := registry.Generate(cfg.ModuleDir, cfg.RegistryPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Printf("Generated %s from %s\n", cfg.RegistryPath, cfg.ModuleDir)

	vars := make(map[string]string)
	for _, kv := range os.Environ() {
		if key, value, ok := strings.Cut(kv, "="); ok {
			vars[key] = value
		}
	}
	if err := envsnap.Write(cfg.EnvSnapshotPath, vars); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Printf("Captured environment snapshot to %s\n", cfg.EnvSnapshotPath)
	return 0
}

func runHost(args []string) int {
	fs := flag.NewFlagSet("warmstart", flag.ExitOnError)
	configPath := fs.String("config", "warmstart.toml", "path to configuration file")
	headless := fs.Bool("headless", false, "run without a terminal UI and drain deferred work immediately")
	force := fs.Bool("force", false, "force a full re-bootstrap even if already initialized")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "warmstart - deferred-startup harness\n\n")
		fmt.Fprintf(os.Stderr, "Usage: warmstart [options]\n")
		fmt.Fprintf(os.Stderr, "       warmstart sync [-config path]\n\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	log := diag.New(diag.Config{
		Level:   diag.ParseLevel(cfg.LogLevel),
		Prefix:  "warmstart",
		Verbose: cfg.Verbose,
	})

	bus := signal.NewBus()

	var hostImpl host.Lifecycle
	if *headless {
		hostImpl = newHeadlessHost()
	} else {
		th, err := terminal.New(bus)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to create terminal: %v\n", err)
			return 1
		}
		hostImpl = th
	}

	if err := hostImpl.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to start host: %v\n", err)
		return 1
	}
	defer hostImpl.Stop()

	orch := boot.New(boot.Options{
		Paths: boot.FixedPaths{
			Local:    ".",
			Cache:    ".",
			Config:   ".",
			Registry: cfg.RegistryPath,
			Env:      cfg.EnvSnapshotPath,
			Ledger:   cfg.LedgerPath,
		},
		Modules:        boot.NopModules{},
		Host:           hostImpl,
		Bus:            bus,
		Log:            log,
		ImportEnv:      !hostImpl.Interactive(),
		ImmediateLoad:  cfg.Immediate || *headless,
		IdleStartDelay: cfg.IdleStartDelay.Std(),
		IdleStepDelay:  cfg.IdleStepDelay.Std(),
	})

	if _, err := orch.Init(*force); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	// Watch the config file so edits run the config-reloaded list.
	if stop, werr := config.Watch(*configPath, bus, log); werr == nil {
		defer stop()
	} else {
		log.Debug("config watcher unavailable: %v", werr)
	}

	bus.Emit(signal.StartupComplete)
	bus.Emit(signal.UIReady)

	if *headless {
		// Immediate mode already drained everything during arming.
		return 0
	}

	// Handle signals for graceful shutdown.
	sigs := make(chan os.Signal, 1)
	ossignal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		bus.Emit(signal.Quit)
		hostImpl.Stop()
	}()

	return eventLoop(hostImpl.(*terminal.Host), bus)
}

// eventLoop pumps terminal events until the user quits with Escape or
// Ctrl-C. Real hosts replace this with their own input handling; the
// harness only needs enough to demonstrate idle-time draining.
func eventLoop(th *terminal.Host, bus *signal.Bus) int {
	for {
		ev, ok := th.Next()
		if !ok {
			return 0
		}
		if key, isKey := ev.(*tcell.EventKey); isKey {
			switch key.Key() {
			case tcell.KeyEscape, tcell.KeyCtrlC:
				bus.Emit(signal.Quit)
				return 0
			}
		}
	}
}
