// Package config loads the host bootstrap configuration from a TOML
// file. A missing file is not an error; every field has a usable
// default so a bare host starts with zero configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Duration is a time.Duration that unmarshals from TOML strings such as
// "750ms" or "2s".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the host bootstrap configuration.
type Config struct {
	// LogLevel is the minimum diagnostic level: debug, info, warn, error.
	LogLevel string `toml:"log_level"`
	// Verbose enables per-invocation hook tracing.
	Verbose bool `toml:"verbose"`
	// Immediate forces immediate-mode incremental loading even on an
	// interactive host.
	Immediate bool `toml:"immediate"`
	// IdleStartDelay is the quiescence period before the first drain step.
	IdleStartDelay Duration `toml:"idle_start_delay"`
	// IdleStepDelay is the idle delay between drain steps.
	IdleStepDelay Duration `toml:"idle_step_delay"`
	// RegistryPath locates the precompiled registry artifact.
	RegistryPath string `toml:"registry_path"`
	// EnvSnapshotPath locates the environment snapshot file.
	EnvSnapshotPath string `toml:"env_snapshot_path"`
	// LedgerPath locates the incremental-load ledger.
	LedgerPath string `toml:"ledger_path"`
	// ModuleDir is the directory scanned by the sync step.
	ModuleDir string `toml:"module_dir"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogLevel:        "info",
		IdleStartDelay:  Duration(2 * time.Second),
		IdleStepDelay:   Duration(750 * time.Millisecond),
		RegistryPath:    "state/autoloads.lua",
		EnvSnapshotPath: "state/env",
		LedgerPath:      "state/incremental.json",
		ModuleDir:       "modules",
	}
}

// Load reads the configuration at path, layered over the defaults.
// An absent file returns the defaults with no error.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Default(), fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}
