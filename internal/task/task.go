// Package task implements a dependency-aware, re-runnable unit of computation
// for file-based pipelines. A Task carries declared inputs, outputs and
// parameters, content fingerprints of its code and configuration, and a
// staleness protocol that decides whether the task needs to run relative to
// its declared outputs.
package task

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/pipetide/pipetide/internal/events"
)

// Construction and execution error classes. Anything that indicates a
// programming or configuration error is surfaced through one of these;
// "the computation ran but did not produce its contract" is recorded as
// task status instead.
var (
	// ErrReadOnlyOutput reports a read-only data object assigned as an output.
	ErrReadOnlyOutput = errors.New("read-only data object assigned as output")

	// ErrChunkCountMismatch reports chunked inputs/outputs that disagree on
	// their chunk count during scatter decomposition.
	ErrChunkCountMismatch = errors.New("chunk count mismatch across chunked data objects")

	// ErrTaskFunction reports a computation body that mutated the task's
	// declared inputs or parameters.
	ErrTaskFunction = errors.New("task function modified inputs or parameters")
)

// Status is the outcome of the most recent run attempt. There is no
// transition guard: re-running a task simply overwrites status, so a Done
// task can flip back to Fail on a later attempt.
type Status int

const (
	StatusInitialized Status = iota
	StatusDone
	StatusFail
)

func (s Status) String() string {
	switch s {
	case StatusInitialized:
		return "initialized"
	case StatusDone:
		return "done"
	case StatusFail:
		return "fail"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Mode selects how a task participates in execution.
type Mode int

const (
	// ModeLocal runs synchronously in the caller with no status reporting.
	ModeLocal Mode = iota
	// ModeThreaded runs from a caller-managed goroutine, reporting started
	// and final status over an event bus.
	ModeThreaded
	// ModeDistributed behaves like ModeThreaded but marks the task as
	// eligible for submission to a remote grid scheduler.
	ModeDistributed
)

func (m Mode) String() string {
	switch m {
	case ModeLocal:
		return "local"
	case ModeThreaded:
		return "threaded"
	case ModeDistributed:
		return "distributed"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Func is the canonical computation signature. The task-context value gives
// the body access to its declared inputs, outputs and parameters; the body
// must not mutate the input or parameter maps.
type Func func(t *Task) error

// CompareFunc is a staleness predicate. It reports true when the task must
// (re-)run given its declared inputs, outputs and parameters.
type CompareFunc func(inputs, outputs map[string]Object, params map[string]any) bool

// Task is a fingerprinted, re-runnable computation with declared I/O.
// Create one with New, NewShellTask, NewGridTask or NewScriptTask; run it
// arbitrarily many times through Run.
type Task struct {
	url  string
	fn   Func
	doc  string
	mode Mode

	inputs   map[string]Object
	outputs  map[string]Object
	mutables map[string]Object
	params   map[string]any

	codeFingerprint  string
	paramFingerprint string

	compares    []CompareFunc
	distributed bool
	chunkID     int // -1 unless produced by decomposition

	mu          sync.Mutex
	status      Status
	referenceFP string

	bus      *events.Bus
	shutdown <-chan struct{}
	finalize func(*Task)

	runCtx context.Context // valid only while the body executes
}

// URL returns the task's globally unique identifier.
func (t *Task) URL() string { return t.url }

// Doc returns the documentation string attached at construction, if any.
func (t *Task) Doc() string { return t.doc }

// Mode returns the task's execution mode.
func (t *Task) Mode() Mode { return t.mode }

// Distributed reports whether the task may be submitted to a remote
// scheduler rather than run locally.
func (t *Task) Distributed() bool { return t.distributed }

// ChunkID returns the task's chunk index when it was produced by scatter
// decomposition, or -1.
func (t *Task) ChunkID() int { return t.chunkID }

// Input returns the declared input with the given symbolic name, or nil.
func (t *Task) Input(name string) Object { return t.inputs[name] }

// Output returns the declared output with the given symbolic name, or nil.
func (t *Task) Output(name string) Object { return t.outputs[name] }

// Mutable returns the declared mutable object with the given name, or nil.
func (t *Task) Mutable(name string) Object { return t.mutables[name] }

// Param returns the parameter with the given name, or nil.
func (t *Task) Param(name string) any { return t.params[name] }

// Inputs returns the live input map. The map is shared with the task; the
// computation body must treat it as read-only.
func (t *Task) Inputs() map[string]Object { return t.inputs }

// Outputs returns the live output map.
func (t *Task) Outputs() map[string]Object { return t.outputs }

// Mutables returns the live mutable-object map.
func (t *Task) Mutables() map[string]Object { return t.mutables }

// Parameters returns the live parameter map. The computation body must treat
// it as read-only.
func (t *Task) Parameters() map[string]any { return t.params }

// CodeFingerprint returns the content hash of the task's code body computed
// at construction time, or "" when no source was obtainable.
func (t *Task) CodeFingerprint() string { return t.codeFingerprint }

// ParamFingerprint returns the hash of the task's construction-time
// configuration.
func (t *Task) ParamFingerprint() string { return t.paramFingerprint }

// Context returns the context of the in-flight run. It is only meaningful
// from inside the computation body; outside a run it returns
// context.Background.
func (t *Task) Context() context.Context {
	if t.runCtx != nil {
		return t.runCtx
	}
	return context.Background()
}

// Status returns the outcome of the most recent run attempt.
// Do not call while the task is executing.
func (t *Task) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// SetStatus overwrites the task status.
// Do not call while the task is executing.
func (t *Task) SetStatus(s Status) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = s
}

// SetInputs late-binds the input map, e.g. by a decomposer.
func (t *Task) SetInputs(inputs map[string]Object) { t.inputs = inputs }

// SetOutputs late-binds the output map.
func (t *Task) SetOutputs(outputs map[string]Object) { t.outputs = outputs }

// SetReferenceFingerprint installs an externally persisted code fingerprint.
// While set and different from the current code fingerprint, ShouldRun
// reports true once and the reference is updated to match.
func (t *Task) SetReferenceFingerprint(fp string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.referenceFP = fp
}

// SetEventBus attaches the status message channel used by threaded and
// distributed runs. Many tasks may share one bus.
func (t *Task) SetEventBus(bus *events.Bus) { t.bus = bus }

// SetShutdownSignal attaches a cooperative cancellation signal. The engine
// never polls it mid-computation; it only makes the signal observable to the
// body via ShutdownSignal.
func (t *Task) SetShutdownSignal(sig <-chan struct{}) { t.shutdown = sig }

// ShutdownSignal returns the attached shutdown signal, or nil. Long-running
// computation bodies should select on it.
func (t *Task) ShutdownSignal() <-chan struct{} { return t.shutdown }

// SetFinalize installs a hook the controller invokes after every run
// attempt, regardless of outcome.
func (t *Task) SetFinalize(fn func(*Task)) { t.finalize = fn }

// Finalize runs the post-execution hook if one is installed.
func (t *Task) Finalize() {
	if t.finalize != nil {
		t.finalize(t)
	}
}

// ShouldRun decides whether the task must (re-)run: the logical OR of all
// configured compare predicates, overridden to true whenever a reference
// fingerprint is set and differs from the current code fingerprint. The
// reference is then updated to match so the drift signal fires once.
func (t *Task) ShouldRun() bool {
	t.mu.Lock()
	if t.referenceFP != "" && t.referenceFP != t.codeFingerprint {
		t.referenceFP = t.codeFingerprint
		t.mu.Unlock()
		return true
	}
	t.mu.Unlock()

	for _, cmp := range t.compares {
		if cmp(t.inputs, t.outputs, t.params) {
			return true
		}
	}
	return false
}

// IsSatisfied reports whether the task's outputs are up to date. Reads
// timestamps and existence without synchronization against the task's own
// writes; do not call while the task is executing.
func (t *Task) IsSatisfied() bool { return !t.ShouldRun() }

// String renders the full task state for failure logs.
func (t *Task) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "task %s status=%s mode=%s", t.url, t.status, t.mode)
	if t.chunkID >= 0 {
		fmt.Fprintf(&b, " chunk=%d", t.chunkID)
	}
	writeObjs := func(label string, objs map[string]Object) {
		if len(objs) == 0 {
			return
		}
		names := make([]string, 0, len(objs))
		for name := range objs {
			names = append(names, name)
		}
		sort.Strings(names)
		fmt.Fprintf(&b, "\n  %s:", label)
		for _, name := range names {
			fmt.Fprintf(&b, "\n    %s = %s", name, objs[name].URL())
		}
	}
	writeObjs("inputs", t.inputs)
	writeObjs("outputs", t.outputs)
	writeObjs("mutables", t.mutables)
	if len(t.params) > 0 {
		names := make([]string, 0, len(t.params))
		for name := range t.params {
			names = append(names, name)
		}
		sort.Strings(names)
		b.WriteString("\n  parameters:")
		for _, name := range names {
			fmt.Fprintf(&b, "\n    %s = %v", name, t.params[name])
		}
	}
	return b.String()
}
