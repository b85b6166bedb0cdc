package task

import (
	"strings"
	"sync"
	"testing"
)

func TestRegistryUnique(t *testing.T) {
	r := NewRegistry()

	tests := []struct {
		name string
		want string
	}{
		{"align", "align"},
		{"align", "align.01"},
		{"align", "align.02"},
		{"asm", "asm"},
		{"asm", "asm.01"},
	}

	for _, tt := range tests {
		if got := r.Unique(tt.name); got != tt.want {
			t.Errorf("Unique(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

// TestRegistryUniqueTakenSuffix verifies the counter skips names reserved
// out of order.
func TestRegistryUniqueTakenSuffix(t *testing.T) {
	r := NewRegistry()
	r.Unique("align.01")
	r.Unique("align")

	if got := r.Unique("align"); got != "align.02" {
		t.Errorf("Unique(\"align\") = %q, want \"align.02\"", got)
	}
}

func TestRegistryConcurrent(t *testing.T) {
	r := NewRegistry()

	const n = 50
	results := make([]string, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			results[i] = r.Unique("chunk")
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool, n)
	for _, name := range results {
		if seen[name] {
			t.Fatalf("duplicate name %q allocated", name)
		}
		seen[name] = true
		if name != "chunk" && !strings.HasPrefix(name, "chunk.") {
			t.Fatalf("unexpected name %q", name)
		}
	}
}
