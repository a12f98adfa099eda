package registry

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Generate scans moduleDir and writes the registry artifact to outPath.
// This is the sync/repair step a MissingError tells the operator to run.
//
// Each subdirectory of moduleDir is one module. Within a module:
//   - every module is declared with defer_load
//   - an "autoloads" file lists one callable name per line
//   - a "hooks" file lists one callback-list name per line
//
// Modules are emitted in sorted order so regeneration is deterministic.
func Generate(moduleDir, outPath string) error {
	entries, err := os.ReadDir(moduleDir)
	if err != nil {
		return fmt.Errorf("scanning modules in %s: %w", moduleDir, err)
	}

	var modules []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			modules = append(modules, e.Name())
		}
	}
	sort.Strings(modules)

	var sb strings.Builder
	fmt.Fprintf(&sb, "-- generated by warmstart sync %s\n", time.Now().Format(time.RFC3339))
	fmt.Fprintf(&sb, "-- do not edit; rerun 'warmstart sync' after changing modules\n\n")

	for _, mod := range modules {
		fmt.Fprintf(&sb, "defer_load(%q)\n", mod)

		names, err := readLines(filepath.Join(moduleDir, mod, "autoloads"))
		if err != nil {
			return err
		}
		for _, name := range names {
			fmt.Fprintf(&sb, "autoload(%q, %q)\n", name, mod)
		}

		lists, err := readLines(filepath.Join(moduleDir, mod, "hooks"))
		if err != nil {
			return err
		}
		for _, list := range lists {
			fmt.Fprintf(&sb, "add_hook(%q, %q)\n", list, mod)
		}
	}

	if dir := filepath.Dir(outPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating artifact dir: %w", err)
		}
	}
	if err := os.WriteFile(outPath, []byte(sb.String()), 0o644); err != nil {
		return fmt.Errorf("writing artifact %s: %w", outPath, err)
	}
	return nil
}

// readLines reads non-blank, non-comment lines. A missing file yields
// an empty list.
func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	return lines, scanner.Err()
}
