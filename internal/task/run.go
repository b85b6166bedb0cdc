package task

import (
	"context"
	"fmt"
	"log"
	"maps"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"time"

	"github.com/pipetide/pipetide/internal/events"
)

// Run executes the task once. The returned Status is the terminal status of
// this attempt; the error is non-nil only for failures the caller must act
// on (a computation body error, or an inputs/parameters mutation). A task
// that ran but did not produce its declared outputs returns (StatusFail, nil)
// - that outcome belongs to the controller, not the error path.
//
// Local-mode tasks run silently. Threaded and distributed tasks additionally
// publish a started event strictly before the run and a finished event with
// the terminal status exactly once per attempt, even on failure.
func (t *Task) Run(ctx context.Context) (Status, error) {
	if t.mode == ModeLocal {
		return t.runOnce(ctx)
	}
	return t.runReported(ctx)
}

func (t *Task) runReported(ctx context.Context) (Status, error) {
	if t.bus == nil {
		// Usable for local testing, but without a bus there is no status
		// reporting and no guaranteed clean cancellation.
		log.Printf("WARNING: task %s has no event bus attached; running unreported", t.url)
		return t.runOnce(ctx)
	}

	start := time.Now()
	t.bus.Publish(events.TopicTask, events.TaskStartedEvent{
		URL:       t.url,
		ChunkID:   t.chunkID,
		Timestamp: start,
	})

	defer func() {
		// Output directories may be served from stale metadata caches on
		// distributed filesystems; list them before anyone checks existence.
		syncDirectories(objectPaths(t.outputs))
		t.bus.Publish(events.TopicTask, events.TaskFinishedEvent{
			URL:       t.url,
			Status:    t.Status().String(),
			Duration:  time.Since(start),
			Timestamp: time.Now(),
		})
	}()

	return t.runOnce(ctx)
}

func (t *Task) runOnce(ctx context.Context) (Status, error) {
	inputsBefore := maps.Clone(t.inputs)
	paramsBefore := maps.Clone(t.params)

	syncDirectories(objectPaths(t.inputs))

	log.Printf("running task %s", t.url)
	t.runCtx = ctx
	err := t.fn(t)
	t.runCtx = nil

	if err != nil {
		log.Printf("ERROR: task failed unexpectedly: %v\n%s", err, t)
		t.SetStatus(StatusFail)
		return StatusFail, fmt.Errorf("task %s: %w", t.url, err)
	}

	if !reflect.DeepEqual(t.inputs, inputsBefore) || !reflect.DeepEqual(t.params, paramsBefore) {
		log.Printf("ERROR: inputs or parameters modified by task body:\n%s", t)
		t.SetStatus(StatusFail)
		return StatusFail, fmt.Errorf("task %s: %w", t.url, ErrTaskFunction)
	}

	if missing := missingOutputs(t.outputs); len(missing) > 0 {
		log.Printf("task %s did not generate all outputs; missing: %v", t.url, missing)
		t.SetStatus(StatusFail)
		return StatusFail, nil
	}

	t.SetStatus(StatusDone)
	return StatusDone, nil
}

func missingOutputs(outputs map[string]Object) []string {
	var missing []string
	for name, o := range outputs {
		if !o.Exists() {
			missing = append(missing, name+"="+o.URL())
		}
	}
	sort.Strings(missing)
	return missing
}

func objectPaths(objs map[string]Object) []string {
	paths := make([]string, 0, len(objs))
	for _, o := range objs {
		paths = append(paths, o.LocalPath())
	}
	return paths
}

// syncDirectories forces a directory listing for each distinct parent
// directory. Distributed filesystems can serve stale directory metadata
// until the directory is read, making just-written files look absent.
// Failures here are swallowed; the probe is best effort.
func syncDirectories(paths []string) {
	seen := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		dir := filepath.Dir(p)
		if _, done := seen[dir]; done {
			continue
		}
		seen[dir] = struct{}{}
		_, _ = os.ReadDir(dir)
	}
}
