// Package ledger tracks which deferred tasks have already completed so
// that re-attempting one is a cheap identity lookup rather than a
// re-execution. The ledger persists as a small JSON document; a missing
// file is simply a fresh ledger.
package ledger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Ledger records completed task names. The in-memory map is
// authoritative; the file is only a warm-start optimization.
type Ledger struct {
	mu        sync.Mutex
	path      string
	completed map[string]time.Time
	dirty     bool
}

// New creates a ledger backed by path. An empty path keeps the ledger
// purely in memory.
func New(path string) *Ledger {
	return &Ledger{
		path:      path,
		completed: make(map[string]time.Time),
	}
}

// Load reads the ledger file. A missing file leaves the ledger empty and
// returns nil; a malformed file is reported but the ledger stays usable.
func (l *Ledger) Load() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.path == "" {
		return nil
	}

	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading ledger %s: %w", l.path, err)
	}

	if !gjson.ValidBytes(data) {
		return fmt.Errorf("ledger %s: not valid JSON", l.path)
	}

	gjson.GetBytes(data, "completed").ForEach(func(key, value gjson.Result) bool {
		ts, err := time.Parse(time.RFC3339, value.String())
		if err != nil {
			ts = time.Time{}
		}
		l.completed[key.String()] = ts
		return true
	})
	return nil
}

// Done reports whether the named task already completed.
func (l *Ledger) Done(name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.completed[name]
	return ok
}

// MarkDone records the named task as completed now.
func (l *Ledger) MarkDone(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.completed[name] = time.Now()
	l.dirty = true
}

// Forget removes one task from the ledger, forcing its next attempt to
// run for real. Used when a force bootstrap resets the environment.
func (l *Ledger) Forget(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.completed[name]; ok {
		delete(l.completed, name)
		l.dirty = true
	}
}

// Reset drops every entry.
func (l *Ledger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.completed) > 0 {
		l.dirty = true
	}
	l.completed = make(map[string]time.Time)
}

// Len returns the number of completed entries.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.completed)
}

// Flush writes the ledger file if anything changed since the last flush.
func (l *Ledger) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.path == "" || !l.dirty {
		return nil
	}

	data := []byte(`{"completed":{}}`)
	var err error
	for name, ts := range l.completed {
		data, err = sjson.SetBytes(data, "completed."+escapeKey(name), ts.Format(time.RFC3339))
		if err != nil {
			return fmt.Errorf("encoding ledger entry %q: %w", name, err)
		}
	}

	if dir := filepath.Dir(l.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating ledger dir: %w", err)
		}
	}
	if err := os.WriteFile(l.path, data, 0o644); err != nil {
		return fmt.Errorf("writing ledger %s: %w", l.path, err)
	}
	l.dirty = false
	return nil
}

// escapeKey protects dots in task names from being treated as JSON path
// separators.
func escapeKey(name string) string {
	return strings.NewReplacer(".", `\.`, "*", `\*`, "?", `\?`).Replace(name)
}
