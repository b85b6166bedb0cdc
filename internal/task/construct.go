package task

import (
	"context"
	"errors"
	"fmt"
	"log"
	"maps"
	"os"
	"path/filepath"
	"strings"

	"github.com/pipetide/pipetide/internal/shell"
)

// Options is the construction-time configuration shared by every task
// constructor.
type Options struct {
	// URL is the task's identifier. When empty it is auto-derived from the
	// computation's defining location and name, de-duplicated against the
	// registry.
	URL string

	Inputs     map[string]Object
	Outputs    map[string]Object
	Mutables   map[string]Object
	Parameters map[string]any

	// Mode selects local, threaded or distributed execution. ModeDistributed
	// implies Distributed.
	Mode Mode

	// Distributed marks the task as eligible for grid submission. It also
	// selects the grid form in NewScriptTask.
	Distributed bool

	// Compares are the staleness predicates; default is TimestampCompare.
	Compares []CompareFunc

	// Registry is the name registry for auto-URL de-duplication; defaults to
	// the process-wide singleton.
	Registry *Registry

	// Doc is free-form documentation carried on the task.
	Doc string

	// Source, when set, is the code body fingerprinted for drift detection.
	// Script constructors fill it with the script contents; for plain
	// functions it defaults to the defining source file.
	Source []byte

	// Shell overrides the runner used by script tasks; defaults to local
	// bash or the process-wide grid submitter.
	Shell shell.Runner
}

func (o Options) registry() *Registry {
	if o.Registry != nil {
		return o.Registry
	}
	return defaultRegistry
}

// New converts a computation function into a Task. Inputs, outputs and
// parameters are declared up front; splittable objects are normalized to
// their complete representative; code and parameter fingerprints are
// computed from the construction-time state.
func New(fn Func, opts Options) (*Task, error) {
	if fn == nil {
		return nil, errors.New("task: nil computation")
	}
	if opts.Source == nil {
		opts.Source = sourceOf(fn)
	}
	if opts.URL == "" {
		file, name := funcLocation(fn)
		opts.URL = "task://" + file + "/" + opts.registry().Unique(name)
	}
	return newTask(fn, opts, -1)
}

// newTask is the shared construction pipeline. chunkID is -1 except for
// decomposer-produced tasks.
func newTask(fn Func, opts Options, chunkID int) (*Task, error) {
	inputs := normalizeObjects(opts.Inputs)
	outputs := normalizeObjects(opts.Outputs)
	mutables := normalizeObjects(opts.Mutables)

	for name, o := range outputs {
		if o.ReadOnly() {
			return nil, fmt.Errorf("output %q (%s) of task %s: %w", name, o.URL(), opts.URL, ErrReadOnlyOutput)
		}
	}

	compares := opts.Compares
	if len(compares) == 0 {
		compares = []CompareFunc{TimestampCompare}
	}

	params := opts.Parameters
	if params == nil {
		params = map[string]any{}
	}

	return &Task{
		url:              opts.URL,
		fn:               fn,
		doc:              opts.Doc,
		mode:             opts.Mode,
		inputs:           inputs,
		outputs:          outputs,
		mutables:         mutables,
		params:           params,
		codeFingerprint:  CodeFingerprint(opts.Source),
		paramFingerprint: configDigest(opts),
		compares:         compares,
		distributed:      opts.Distributed || opts.Mode == ModeDistributed,
		chunkID:          chunkID,
		status:           StatusInitialized,
	}, nil
}

// normalizeObjects replaces splittable objects with their complete,
// un-split representative. Per-chunk sub-objects only appear on tasks
// produced by the decomposer.
func normalizeObjects(objs map[string]Object) map[string]Object {
	normalized := make(map[string]Object, len(objs))
	for name, o := range objs {
		if s, ok := o.(Splittable); ok {
			normalized[name] = s.Complete()
		} else {
			normalized[name] = o
		}
	}
	return normalized
}

// Nullary adapts a computation that takes no arguments.
func Nullary(fn func() error) Func {
	return func(*Task) error { return fn() }
}

// WithContext adapts a computation that observes run cancellation.
func WithContext(fn func(ctx context.Context, t *Task) error) Func {
	return func(t *Task) error { return fn(t.Context(), t) }
}

// WithParams adapts a computation that receives the declared parameters
// directly.
func WithParams(fn func(t *Task, params map[string]any) error) Func {
	return func(t *Task) error { return fn(t, t.Parameters()) }
}

// NewShellTask converts a shell script into a Task wrapping a fixed local
// bash invocation of the script.
func NewShellTask(script string, opts Options) (*Task, error) {
	runner := opts.Shell
	if runner == nil {
		runner = shell.Local{}
	}
	return newScriptTask(script, runner, opts)
}

// NewGridTask converts a shell script into a Task wrapping a synchronous
// grid-engine submission, blocking until the remote job completes.
func NewGridTask(script string, opts Options) (*Task, error) {
	runner := opts.Shell
	if runner == nil {
		runner = shell.DefaultGrid
	}
	opts.Distributed = true
	return newScriptTask(script, runner, opts)
}

// NewScriptTask chooses between the local shell and grid-engine forms based
// on the Distributed option.
func NewScriptTask(script string, opts Options) (*Task, error) {
	if opts.Distributed {
		return NewGridTask(script, opts)
	}
	return NewShellTask(script, opts)
}

func newScriptTask(script string, runner shell.Runner, opts Options) (*Task, error) {
	if opts.Source == nil {
		data, err := os.ReadFile(script)
		if err != nil {
			log.Printf("WARNING: script %s unreadable (%v); code fingerprint will be empty", script, err)
		} else {
			opts.Source = data
		}
	}

	opts.Parameters = maps.Clone(opts.Parameters)
	if opts.Parameters == nil {
		opts.Parameters = map[string]any{}
	}
	opts.Parameters["script"] = script

	if opts.URL == "" {
		opts.URL = "task://" + absPath(script) + "/" + opts.registry().Unique(scriptName(script))
	}

	fn := func(t *Task) error {
		return runner.Run(t.Context(), script)
	}
	return newTask(fn, opts, -1)
}

func scriptName(script string) string {
	base := filepath.Base(script)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
