package shell

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/bash\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("writing script: %v", err)
	}
	return path
}

func TestLocalRun(t *testing.T) {
	dir := t.TempDir()
	marker := filepath.Join(dir, "marker")
	script := writeScript(t, dir, "ok.sh", "touch "+marker)

	if err := (Local{}).Run(context.Background(), script); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, err := os.Stat(marker); err != nil {
		t.Errorf("script side effect missing: %v", err)
	}
}

func TestLocalRunFailure(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "fail.sh", "echo broken >&2; exit 1")

	err := Local{}.Run(context.Background(), script)
	if err == nil {
		t.Fatal("expected error for failing script")
	}
	if !strings.Contains(err.Error(), script) {
		t.Errorf("error should name the script, got: %v", err)
	}
	if !strings.Contains(err.Error(), "broken") {
		t.Errorf("error should carry stderr, got: %v", err)
	}
}
