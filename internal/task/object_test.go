package task

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLocalFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "reads.fa")

	f := NewLocalFile(path)
	if f.Exists() {
		t.Error("file should not exist yet")
	}
	if _, err := f.LastModified(); err == nil {
		t.Error("LastModified on a missing file must error")
	}
	if f.ReadOnly() {
		t.Error("NewLocalFile must be writable")
	}
	if !strings.HasPrefix(f.URL(), "file://localhost/") {
		t.Errorf("URL = %q, want file://localhost/ prefix", f.URL())
	}

	if err := os.WriteFile(path, []byte(">read1\nACGT\n"), 0644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
	if !f.Exists() {
		t.Error("file should exist after write")
	}
	if _, err := f.LastModified(); err != nil {
		t.Errorf("LastModified failed: %v", err)
	}

	if !NewReadOnlyFile(path).ReadOnly() {
		t.Error("NewReadOnlyFile must be read-only")
	}
}

func TestSplitFile(t *testing.T) {
	sf := NewSplitFile("/data/reads.fa", 3)

	if sf.ChunkCount() != 3 {
		t.Fatalf("ChunkCount = %d, want 3", sf.ChunkCount())
	}
	if sf.Complete().LocalPath() != "/data/reads.fa" {
		t.Errorf("Complete path = %q", sf.Complete().LocalPath())
	}

	seen := make(map[string]bool)
	for i := 0; i < 3; i++ {
		chunk := sf.Chunk(i)
		want := fmt.Sprintf("/data/chunk_%03d_reads.fa", i)
		if chunk.LocalPath() != want {
			t.Errorf("chunk %d path = %q, want %q", i, chunk.LocalPath(), want)
		}
		if seen[chunk.URL()] {
			t.Errorf("chunk %d shares a URL with another chunk", i)
		}
		seen[chunk.URL()] = true
	}

	if sf.ScatterTask() != nil || sf.GatherTask() != nil {
		t.Error("fresh SplitFile must have no scatter/gather tasks attached")
	}
}
