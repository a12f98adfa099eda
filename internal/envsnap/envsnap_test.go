package envsnap

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeSnapshot(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "env")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReadParsesVariables(t *testing.T) {
	path := writeSnapshot(t, "# captured from login shell\nPATH=/usr/local/bin:/usr/bin\nLANG=en_US.UTF-8\n\nEDITOR=vi\n")

	vars, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(vars) != 3 {
		t.Errorf("len = %d, want 3 (%v)", len(vars), vars)
	}
	if vars["PATH"] != "/usr/local/bin:/usr/bin" {
		t.Errorf("PATH = %q", vars["PATH"])
	}
	if vars["EDITOR"] != "vi" {
		t.Errorf("EDITOR = %q", vars["EDITOR"])
	}
}

func TestReadLastAssignmentWins(t *testing.T) {
	path := writeSnapshot(t, "LANG=C\nLANG=en_US.UTF-8\n")

	vars, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if vars["LANG"] != "en_US.UTF-8" {
		t.Errorf("LANG = %q, want last assignment", vars["LANG"])
	}
}

func TestReadValueMayContainEquals(t *testing.T) {
	path := writeSnapshot(t, "LESS=-R -F=auto\n")

	vars, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if vars["LESS"] != "-R -F=auto" {
		t.Errorf("LESS = %q", vars["LESS"])
	}
}

func TestReadMissingFile(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "absent"))
	if !errors.Is(err, ErrNoSnapshot) {
		t.Errorf("err = %v, want ErrNoSnapshot", err)
	}
}

func TestReadMalformedLine(t *testing.T) {
	path := writeSnapshot(t, "JUSTAKEY\n")

	if _, err := Read(path); err == nil {
		t.Error("malformed line accepted")
	}
}

func TestWriteRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "env")
	want := map[string]string{"A": "1", "B": "two words"}

	if err := Write(path, want); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %q, want %q", k, got[k], v)
		}
	}
}

func TestApplySetsProcessEnv(t *testing.T) {
	t.Setenv("WARMSTART_TEST_VAR", "old")

	if err := Apply(map[string]string{"WARMSTART_TEST_VAR": "new"}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got := os.Getenv("WARMSTART_TEST_VAR"); got != "new" {
		t.Errorf("env = %q, want new", got)
	}
}
