package controller

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/pipetide/pipetide/internal/events"
	"github.com/pipetide/pipetide/internal/task"
)

// slotsParam is the task parameter naming how many concurrency slots the
// task occupies while running.
const slotsParam = "slots"

// Result is the outcome of one task in a controller pass.
type Result struct {
	URL     string
	Status  task.Status
	Skipped bool // outputs were already up to date
	Err     error
}

// RunnerConfig configures a Runner.
type RunnerConfig struct {
	// Slots is the total concurrency budget. A task consumes 1 slot unless
	// its "slots" parameter says otherwise. Defaults to 4.
	Slots int
	// Bus receives task and pipeline progress events. Optional.
	Bus *events.Bus
}

// Runner executes the tasks of a graph in dependency order, running
// independent tasks concurrently within the slot budget.
type Runner struct {
	config  RunnerConfig
	graph   *Graph
	locks   *PathLocks
	sem     *semaphore.Weighted
	mu      sync.Mutex
	results []Result
}

// NewRunner creates a runner over the given graph.
func NewRunner(cfg RunnerConfig, graph *Graph) *Runner {
	if cfg.Slots <= 0 {
		cfg.Slots = 4
	}

	return &Runner{
		config:  cfg,
		graph:   graph,
		locks:   NewPathLocks(),
		sem:     semaphore.NewWeighted(int64(cfg.Slots)),
		results: []Result{},
	}
}

// Run validates the graph, then executes eligible tasks in waves until every
// task is resolved or blocked. Tasks whose outputs are already up to date
// are skipped without invoking their function. A failed task does not abort
// the pass; only its downstream tasks stay pending, and Run reports them in
// the returned error.
func (r *Runner) Run(ctx context.Context) ([]Result, error) {
	if _, err := r.graph.Validate(); err != nil {
		return nil, err
	}

	for {
		if err := ctx.Err(); err != nil {
			return r.results, err
		}

		eligible := r.graph.Eligible()
		if len(eligible) == 0 {
			break
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.config.Slots)

		for _, node := range eligible {
			n := node
			g.Go(func() error {
				return r.executeNode(gctx, n)
			})
		}

		if err := g.Wait(); err != nil {
			if ctx.Err() != nil {
				return r.results, ctx.Err()
			}
		}

		r.publishStage()
	}

	if blocked := r.graph.Blocked(); len(blocked) > 0 {
		sort.Strings(blocked)
		return r.results, fmt.Errorf("%d tasks blocked by upstream failures: %s", len(blocked), strings.Join(blocked, ", "))
	}

	return r.results, nil
}

// Results returns the results recorded so far.
func (r *Runner) Results() []Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Result, len(r.results))
	copy(out, r.results)
	return out
}

// executeNode runs a single node. Task failures are recorded in the graph,
// never returned, so one failure does not cancel the wave.
func (r *Runner) executeNode(ctx context.Context, n *Node) error {
	t := n.Task
	url := t.URL()

	if err := ctx.Err(); err != nil {
		r.graph.MarkFailed(url, fmt.Errorf("cancelled before execution: %w", err))
		return nil
	}

	slots := slotsOf(t, r.config.Slots)
	if err := r.sem.Acquire(ctx, slots); err != nil {
		r.graph.MarkFailed(url, fmt.Errorf("cancelled while waiting for %d slots: %w", slots, err))
		return nil
	}
	defer r.sem.Release(slots)

	paths := outputPaths(t)
	r.locks.LockAll(paths)
	defer r.locks.UnlockAll(paths)

	r.graph.MarkRunning(url)

	if t.IsSatisfied() {
		r.graph.MarkSkipped(url)
		r.recordResult(Result{URL: url, Status: t.Status(), Skipped: true})
		if r.config.Bus != nil {
			r.config.Bus.Publish(events.TopicTask, events.TaskSkippedEvent{
				URL:       url,
				Timestamp: time.Now(),
			})
		}
		return nil
	}

	if r.config.Bus != nil {
		t.SetEventBus(r.config.Bus)
	}
	t.SetShutdownSignal(ctx.Done())

	st, err := t.Run(ctx)
	t.Finalize()

	if err != nil || st != task.StatusDone {
		if err == nil {
			err = fmt.Errorf("task %q finished with status %s", url, st)
		}
		log.Printf("ERROR: task %q failed: %v", url, err)
		r.graph.MarkFailed(url, err)
		r.recordResult(Result{URL: url, Status: st, Err: err})
		return nil
	}

	r.graph.MarkDone(url)
	r.recordResult(Result{URL: url, Status: st})
	return nil
}

// slotsOf reads a task's slot request, clamped to [1, max]. JSON-sourced
// parameters arrive as float64.
func slotsOf(t *task.Task, max int) int64 {
	var n int
	switch v := t.Param(slotsParam).(type) {
	case int:
		n = v
	case int64:
		n = int(v)
	case float64:
		n = int(v)
	default:
		return 1
	}
	if n < 1 {
		return 1
	}
	if n > max {
		return int64(max)
	}
	return int64(n)
}

// outputPaths collects the local paths a task writes, outputs and mutables.
func outputPaths(t *task.Task) []string {
	var paths []string
	for _, o := range t.Outputs() {
		paths = append(paths, o.LocalPath())
	}
	for _, o := range t.Mutables() {
		paths = append(paths, o.LocalPath())
	}
	return paths
}

func (r *Runner) recordResult(res Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res)
}

func (r *Runner) publishStage() {
	if r.config.Bus == nil {
		return
	}
	resolved, failed, total := r.graph.Counts()
	r.config.Bus.Publish(events.TopicPipeline, events.PipelineStageEvent{
		Done:      resolved,
		Failed:    failed,
		Total:     total,
		Timestamp: time.Now(),
	})
}
