// Package registry loads the precompiled registry artifact: a generated
// Lua file declaring deferred module definitions, produced by the sync
// step and evaluated once during bootstrap.
//
// The artifact runs in a restricted Lua state with three registration
// functions and no filesystem or process access. Two failure modes are
// kept distinct on purpose: an absent artifact means the operator never
// ran sync (a configuration problem with a remediation), while an
// artifact that errors during evaluation means the generator itself
// produced something broken.
package registry

import (
	"fmt"
	"os"

	lua "github.com/yuin/gopher-lua"
)

// Autoload maps a callable name to the module that provides it. The
// module is loaded on first use of the name, never at bootstrap.
type Autoload struct {
	Name   string
	Module string
}

// HookStub attaches a module load to a callback list: when the list
// runs, the module is loaded first.
type HookStub struct {
	List   string
	Module string
}

// Manifest is the evaluated content of the registry artifact.
type Manifest struct {
	// Autoloads in declaration order.
	Autoloads []Autoload
	// Deferred lists modules queued for incremental loading, in
	// declaration order, deduplicated.
	Deferred []string
	// HookStubs in declaration order.
	HookStubs []HookStub
}

// MissingError reports an absent artifact. User-actionable: the fix is
// running the sync step, not debugging the host.
type MissingError struct {
	Path string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("registry artifact %s does not exist; run 'warmstart sync' to generate it", e.Path)
}

// LoadError reports an artifact that exists but failed to evaluate.
// Distinct from MissingError so the operator can tell "never generated"
// from "generated but broken".
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("registry artifact %s failed to load: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Load evaluates the artifact at path into a Manifest.
func Load(path string) (*Manifest, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, &MissingError{Path: path}
		}
		return nil, &LoadError{Path: path, Err: err}
	}

	m := &Manifest{}
	seen := make(map[string]bool)

	L := newSandboxedState()
	defer L.Close()

	L.SetGlobal("autoload", L.NewFunction(func(L *lua.LState) int {
		m.Autoloads = append(m.Autoloads, Autoload{
			Name:   L.CheckString(1),
			Module: L.CheckString(2),
		})
		return 0
	}))
	L.SetGlobal("defer_load", L.NewFunction(func(L *lua.LState) int {
		name := L.CheckString(1)
		if !seen[name] {
			seen[name] = true
			m.Deferred = append(m.Deferred, name)
		}
		return 0
	}))
	L.SetGlobal("add_hook", L.NewFunction(func(L *lua.LState) int {
		m.HookStubs = append(m.HookStubs, HookStub{
			List:   L.CheckString(1),
			Module: L.CheckString(2),
		})
		return 0
	}))

	if err := doFileRecovered(L, path); err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	return m, nil
}

// newSandboxedState creates a Lua state with only safe libraries and no
// way back to the filesystem.
func newSandboxedState() *lua.LState {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})

	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)

	// The base library leaks file and chunk loading; the artifact is a
	// flat declaration file and needs none of it.
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require"} {
		L.SetGlobal(name, lua.LNil)
	}
	return L
}

// doFileRecovered evaluates the file, converting a Lua runtime panic
// into an ordinary error.
func doFileRecovered(L *lua.LState, path string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()
	return L.DoFile(path)
}
