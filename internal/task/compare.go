package task

import (
	"log"
	"time"
)

// TimestampCompare is the default staleness predicate: the task must run when
// any declared output is missing, when it declares no outputs at all, or when
// the oldest output is not strictly newer than the newest input.
//
// Equal timestamps count as stale. Coarse filesystem clocks make "same
// second" ambiguous, and re-running is the safe side of that ambiguity.
func TimestampCompare(inputs, outputs map[string]Object, params map[string]any) bool {
	// A task with no declared outputs is always considered to need running.
	if len(outputs) == 0 {
		return true
	}

	var minOut time.Time
	first := true
	for _, o := range outputs {
		if !o.Exists() {
			log.Printf("output does not exist yet: %s", o.URL())
			return true
		}
		ts, err := o.LastModified()
		if err != nil {
			// Raced with deletion; treat as missing.
			return true
		}
		if first || ts.Before(minOut) {
			minOut = ts
			first = false
		}
	}

	// All outputs exist; with zero declared inputs that is sufficient
	// freshness evidence.
	if len(inputs) == 0 {
		return false
	}

	var maxIn time.Time
	for _, o := range inputs {
		ts, err := o.LastModified()
		if err != nil {
			// An unreadable input timestamp cannot prove freshness.
			return true
		}
		if ts.After(maxIn) {
			maxIn = ts
		}
	}

	if !minOut.After(maxIn) {
		log.Printf("timestamp of oldest output %v <= newest input %v", minOut, maxIn)
		return true
	}
	return false
}

// NeverStale is a predicate for anchor tasks that exist purely as
// dependency-graph nodes and are never actually run.
func NeverStale(inputs, outputs map[string]Object, params map[string]any) bool {
	return false
}
