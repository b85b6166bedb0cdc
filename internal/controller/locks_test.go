package controller

import (
	"sync"
	"testing"
)

func TestPathLocksMutualExclusion(t *testing.T) {
	locks := NewPathLocks()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			locks.Lock("shared.out")
			counter++
			locks.Unlock("shared.out")
		}()
	}
	wg.Wait()

	if counter != 50 {
		t.Errorf("counter = %d, want 50", counter)
	}
}

// Two goroutines acquiring overlapping path sets in opposite declaration
// order; sorted acquisition keeps this from deadlocking.
func TestPathLocksLockAllOrdering(t *testing.T) {
	locks := NewPathLocks()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			paths := []string{"a.out", "b.out"}
			locks.LockAll(paths)
			locks.UnlockAll(paths)
		}()
		go func() {
			defer wg.Done()
			paths := []string{"b.out", "a.out"}
			locks.LockAll(paths)
			locks.UnlockAll(paths)
		}()
	}
	wg.Wait()
}

func TestPathLocksEmptySet(t *testing.T) {
	locks := NewPathLocks()
	locks.LockAll(nil)
	locks.UnlockAll(nil)
	locks.Unlock("never-locked")
}
