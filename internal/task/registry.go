package task

import (
	"fmt"
	"sync"
)

// Registry allocates unique task names. Auto-generated names are
// de-duplicated by suffixing an incrementing zero-padded counter, so the
// same base name yields foo, foo.01, foo.02, and so on.
//
// Constructions may happen from multiple goroutines; the registry is safe
// for concurrent use.
type Registry struct {
	mu    sync.Mutex
	names map[string]struct{}
}

// NewRegistry creates an empty name registry.
func NewRegistry() *Registry {
	return &Registry{names: make(map[string]struct{})}
}

// Unique reserves and returns a unique variant of name.
func (r *Registry) Unique(name string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, used := r.names[name]; !used {
		r.names[name] = struct{}{}
		return name
	}
	for n := 1; ; n++ {
		try := fmt.Sprintf("%s.%02d", name, n)
		if _, used := r.names[try]; !used {
			r.names[try] = struct{}{}
			return try
		}
	}
}

// defaultRegistry is the process-lifetime registry used when a construction
// call does not inject its own.
var defaultRegistry = NewRegistry()
