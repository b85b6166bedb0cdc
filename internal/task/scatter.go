package task

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Collection is an ordered sequence of tasks produced by one decomposition,
// plus the scatter/gather auxiliary tasks that split and join the underlying
// data objects (as distinct from the per-chunk work tasks).
type Collection struct {
	url           string
	tasks         []*Task
	scatterGather []*Task
}

// NewCollection creates an empty collection with the given URL.
func NewCollection(url string) *Collection {
	return &Collection{url: url}
}

// URL returns the collection's identifier (tasks:// scheme).
func (c *Collection) URL() string { return c.url }

// Add appends a work task.
func (c *Collection) Add(t *Task) { c.tasks = append(c.tasks, t) }

// Tasks returns the work tasks in chunk-index order.
func (c *Collection) Tasks() []*Task { return c.tasks }

// At returns the i-th work task.
func (c *Collection) At(i int) *Task { return c.tasks[i] }

// Len returns the number of work tasks.
func (c *Collection) Len() int { return len(c.tasks) }

// AddScatterGather appends an auxiliary scatter or gather task.
func (c *Collection) AddScatterGather(t *Task) { c.scatterGather = append(c.scatterGather, t) }

// ScatterGatherTasks returns the auxiliary tasks in first-seen order.
func (c *Collection) ScatterGatherTasks() []*Task { return c.scatterGather }

// Scatter decomposes one logical task into N per-chunk tasks. At least one
// declared input or output must be a Splittable exposing a chunk count; all
// chunk counts must agree. Chunked objects are replaced per chunk by their
// i-th sub-object, non-chunked objects pass through unchanged, and any
// scatter task attached to a chunked input or gather task attached to a
// chunked output is collected once into the auxiliary task list.
func Scatter(fn Func, opts Options) (*Collection, error) {
	if fn == nil {
		return nil, errors.New("task: nil computation")
	}
	if opts.Source == nil {
		opts.Source = sourceOf(fn)
	}
	if opts.URL == "" {
		file, name := funcLocation(fn)
		opts.URL = "tasks://" + file + "/" + name
	}

	col := NewCollection(opts.URL)
	nChunk := 0

	var scatter, gather *Task
	for _, name := range sortedNames(opts.Inputs) {
		s, ok := opts.Inputs[name].(Splittable)
		if !ok {
			continue
		}
		if nChunk != 0 && s.ChunkCount() != nChunk {
			return nil, fmt.Errorf("input %q has %d chunks, want %d: %w", name, s.ChunkCount(), nChunk, ErrChunkCountMismatch)
		}
		nChunk = s.ChunkCount()
		if scatter == nil && s.ScatterTask() != nil {
			scatter = s.ScatterTask()
			col.AddScatterGather(scatter)
		}
	}
	for _, name := range sortedNames(opts.Outputs) {
		s, ok := opts.Outputs[name].(Splittable)
		if !ok {
			continue
		}
		if nChunk != 0 && s.ChunkCount() != nChunk {
			return nil, fmt.Errorf("output %q has %d chunks, want %d: %w", name, s.ChunkCount(), nChunk, ErrChunkCountMismatch)
		}
		nChunk = s.ChunkCount()
		if gather == nil && s.GatherTask() != nil {
			gather = s.GatherTask()
			col.AddScatterGather(gather)
		}
	}

	if nChunk == 0 {
		return nil, fmt.Errorf("task %s: no chunked inputs or outputs to scatter", opts.URL)
	}

	for i := 0; i < nChunk; i++ {
		chunkOpts := opts
		chunkOpts.Inputs = chunkObjects(opts.Inputs, i)
		chunkOpts.Outputs = chunkObjects(opts.Outputs, i)
		chunkOpts.URL = taskScheme(opts.URL) + fmt.Sprintf("/%03d", i)

		t, err := newTask(fn, chunkOpts, i)
		if err != nil {
			return nil, err
		}
		col.Add(t)
	}

	return col, nil
}

// chunkObjects replaces each splittable object with its i-th sub-object.
func chunkObjects(objs map[string]Object, i int) map[string]Object {
	chunked := make(map[string]Object, len(objs))
	for name, o := range objs {
		if s, ok := o.(Splittable); ok {
			chunked[name] = s.Chunk(i)
		} else {
			chunked[name] = o
		}
	}
	return chunked
}

// taskScheme converts a collection URL to the single-task scheme.
func taskScheme(collectionURL string) string {
	return strings.Replace(collectionURL, "tasks://", "task://", 1)
}

func sortedNames(objs map[string]Object) []string {
	names := make([]string, 0, len(objs))
	for name := range objs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
