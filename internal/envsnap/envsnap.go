// Package envsnap reads an environment snapshot file and applies it to
// the process. Graphical and daemonized sessions do not inherit a login
// shell's environment, so the bootstrap imports one captured earlier;
// terminal sessions inherit natively and skip this entirely.
//
// Format: one KEY=VALUE per line, '#' starts a comment, blank lines are
// ignored, later assignments win.
package envsnap

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
)

// ErrNoSnapshot is returned by Read when the snapshot file is absent.
// Callers treat this as "nothing to import", not as a failure.
var ErrNoSnapshot = errors.New("no environment snapshot")

// Read parses the snapshot at path into a variable map.
func Read(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoSnapshot
		}
		return nil, fmt.Errorf("opening env snapshot %s: %w", path, err)
	}
	defer f.Close()

	vars := make(map[string]string)
	scanner := bufio.NewScanner(f)
	lineno := 0
	for scanner.Scan() {
		lineno++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("env snapshot %s:%d: malformed line %q", path, lineno, line)
		}
		vars[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading env snapshot %s: %w", path, err)
	}
	return vars, nil
}

// Apply sets every variable in the map on the process environment.
func Apply(vars map[string]string) error {
	for key, value := range vars {
		if err := os.Setenv(key, value); err != nil {
			return fmt.Errorf("setting %s: %w", key, err)
		}
	}
	return nil
}

// Write captures the given variables to path in snapshot format. Used by
// the sync step to refresh the snapshot from a login shell.
func Write(path string, vars map[string]string) error {
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString("# environment snapshot generated by warmstart sync\n")
	for _, k := range keys {
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(vars[k])
		sb.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(sb.String()), 0o600); err != nil {
		return fmt.Errorf("writing env snapshot %s: %w", path, err)
	}
	return nil
}
