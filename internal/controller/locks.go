package controller

import (
	"sort"
	"sync"
)

// PathLocks provides per-path mutual exclusion so that two tasks touching
// the same output file never run at the same time, while tasks with
// disjoint outputs proceed concurrently.
type PathLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewPathLocks creates an empty lock set.
func NewPathLocks() *PathLocks {
	return &PathLocks{
		locks: make(map[string]*sync.Mutex),
	}
}

// Lock acquires the mutex for a single path, creating it on first use.
func (p *PathLocks) Lock(path string) {
	p.mu.Lock()
	l, ok := p.locks[path]
	if !ok {
		l = &sync.Mutex{}
		p.locks[path] = l
	}
	p.mu.Unlock()

	l.Lock()
}

// Unlock releases the mutex for a single path.
func (p *PathLocks) Unlock(path string) {
	p.mu.Lock()
	l, ok := p.locks[path]
	p.mu.Unlock()

	if ok {
		l.Unlock()
	}
}

// LockAll acquires locks for every path. Paths are sorted before acquisition
// so that overlapping sets are always taken in the same order, which rules
// out deadlock between concurrent tasks.
func (p *PathLocks) LockAll(paths []string) {
	if len(paths) == 0 {
		return
	}

	sorted := make([]string, len(paths))
	copy(sorted, paths)
	sort.Strings(sorted)

	for _, path := range sorted {
		p.Lock(path)
	}
}

// UnlockAll releases locks in reverse sorted order, mirroring LockAll.
func (p *PathLocks) UnlockAll(paths []string) {
	if len(paths) == 0 {
		return
	}

	sorted := make([]string, len(paths))
	copy(sorted, paths)
	sort.Strings(sorted)

	for i := len(sorted) - 1; i >= 0; i-- {
		p.Unlock(sorted[i])
	}
}
