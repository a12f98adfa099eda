package ledger

import (
	"os"
	"path/filepath"
	"testing"
)

func TestMarkDoneAndLookup(t *testing.T) {
	l := New("")

	if l.Done("org-macs") {
		t.Fatal("fresh ledger reports task done")
	}
	l.MarkDone("org-macs")
	if !l.Done("org-macs") {
		t.Fatal("MarkDone not visible")
	}
	l.Forget("org-macs")
	if l.Done("org-macs") {
		t.Fatal("Forget did not remove entry")
	}
}

func TestFlushAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "incremental.json")

	l := New(path)
	l.MarkDone("org-macs")
	l.MarkDone("evil.core") // dotted name must survive the JSON path encoding
	if err := l.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	reloaded := New(path)
	if err := reloaded.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reloaded.Done("org-macs") {
		t.Error("org-macs lost across reload")
	}
	if !reloaded.Done("evil.core") {
		t.Error("dotted task name lost across reload")
	}
	if reloaded.Len() != 2 {
		t.Errorf("Len = %d, want 2", reloaded.Len())
	}
}

func TestLoadMissingFileIsFresh(t *testing.T) {
	l := New(filepath.Join(t.TempDir(), "nope.json"))
	if err := l.Load(); err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if l.Len() != 0 {
		t.Errorf("Len = %d, want 0", l.Len())
	}
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	l := New(path)
	if err := l.Load(); err == nil {
		t.Fatal("malformed ledger loaded without error")
	}
	// Ledger must remain usable after a bad load.
	l.MarkDone("org-faces")
	if !l.Done("org-faces") {
		t.Error("ledger unusable after failed load")
	}
}

func TestFlushSkipsWhenClean(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.json")
	l := New(path)
	if err := l.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("clean ledger wrote a file")
	}
}
