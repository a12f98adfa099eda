package boot

import "path/filepath"

// Paths resolves the storage roots and artifact locations the bootstrap
// needs. Path policy lives with the harness, not here; the orchestrator
// only ever asks, it never derives.
type Paths interface {
	// LocalDir is the local-storage root.
	LocalDir() string
	// CacheDir is the cache root.
	CacheDir() string
	// ConfigDir is the private-config root.
	ConfigDir() string
	// RegistryFile is the precompiled registry artifact.
	RegistryFile() string
	// EnvFile is the environment snapshot.
	EnvFile() string
	// LedgerFile is the incremental-load ledger.
	LedgerFile() string
}

// FixedPaths is a Paths built from explicit roots. Artifact files live
// under LocalDir unless overridden.
type FixedPaths struct {
	Local    string
	Cache    string
	Config   string
	Registry string
	Env      string
	Ledger   string
}

// LocalDir implements Paths.
func (p FixedPaths) LocalDir() string { return p.Local }

// CacheDir implements Paths.
func (p FixedPaths) CacheDir() string { return p.Cache }

// ConfigDir implements Paths.
func (p FixedPaths) ConfigDir() string { return p.Config }

// RegistryFile implements Paths.
func (p FixedPaths) RegistryFile() string {
	if p.Registry != "" {
		return p.Registry
	}
	return filepath.Join(p.Local, "autoloads.lua")
}

// EnvFile implements Paths.
func (p FixedPaths) EnvFile() string {
	if p.Env != "" {
		return p.Env
	}
	return filepath.Join(p.Local, "env")
}

// LedgerFile implements Paths.
func (p FixedPaths) LedgerFile() string {
	if p.Ledger != "" {
		return p.Ledger
	}
	return filepath.Join(p.Cache, "incremental.json")
}

// Modules is the downstream module subsystem. The bootstrap sequences
// it but knows nothing about what a module is.
type Modules interface {
	// LoadConfig loads the module-configuration subsystem.
	LoadConfig() error
	// Load loads one module by name. Called from deferred tasks,
	// autoload stubs, and registry hook stubs; must be idempotent.
	Load(name string) error
	// Init is the final hand-off once bootstrap wiring is complete.
	Init(force bool) error
}

// NopModules satisfies Modules with no-ops. Hosts without a module
// subsystem use it, as do tests.
type NopModules struct{}

// LoadConfig implements Modules.
func (NopModules) LoadConfig() error { return nil }

// Load implements Modules.
func (NopModules) Load(string) error { return nil }

// Init implements Modules.
func (NopModules) Init(bool) error { return nil }
