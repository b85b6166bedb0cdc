// Package controller walks a graph of tasks in dependency order, running
// eligible tasks in parallel waves. Dependencies are not declared explicitly:
// they fall out of the tasks' declared data objects — whoever produces an
// object runs before whoever consumes it.
package controller

import (
	"fmt"
	"strings"
	"sync"

	"github.com/gammazero/toposort"

	"github.com/pipetide/pipetide/internal/task"
)

// NodeStatus tracks a task's position within one controller pass. It is
// distinct from task.Status, which reflects only the most recent run
// attempt.
type NodeStatus int

const (
	NodePending NodeStatus = iota
	NodeRunning
	NodeDone
	NodeFailed
	NodeSkipped // outputs already up to date, wrapper not invoked
)

// Node is one task plus its controller-side state.
type Node struct {
	Task   *task.Task
	Status NodeStatus
	Err    error
}

// Graph is a dependency graph over tasks keyed by URL.
type Graph struct {
	mu        sync.RWMutex
	nodes     map[string]*Node  // task URL -> node
	producers map[string]string // object URL -> producing task URL
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		nodes:     make(map[string]*Node),
		producers: make(map[string]string),
	}
}

// AddTask adds a task to the graph. Returns an error if the task URL is
// already present or another task already produces one of its outputs.
func (g *Graph) AddTask(t *task.Task) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	url := t.URL()
	if _, exists := g.nodes[url]; exists {
		return fmt.Errorf("task %q already in graph", url)
	}

	for name, o := range t.Outputs() {
		if prev, claimed := g.producers[o.URL()]; claimed {
			return fmt.Errorf("output %q (%s) of task %q already produced by %q", name, o.URL(), url, prev)
		}
	}
	for _, o := range t.Outputs() {
		g.producers[o.URL()] = url
	}

	g.nodes[url] = &Node{Task: t}
	return nil
}

// AddCollection adds a decomposed collection: auxiliary scatter/gather tasks
// first, then the per-chunk work tasks in order.
func (g *Graph) AddCollection(c *task.Collection) error {
	for _, t := range c.ScatterGatherTasks() {
		if err := g.AddTask(t); err != nil {
			return err
		}
	}
	for _, t := range c.Tasks() {
		if err := g.AddTask(t); err != nil {
			return err
		}
	}
	return nil
}

// dependencies returns the URLs of tasks producing any of n's inputs.
// Caller holds at least a read lock.
func (g *Graph) dependencies(n *Node) []string {
	var deps []string
	seen := make(map[string]struct{})
	for _, o := range n.Task.Inputs() {
		producer, ok := g.producers[o.URL()]
		if !ok || producer == n.Task.URL() {
			continue
		}
		if _, dup := seen[producer]; dup {
			continue
		}
		seen[producer] = struct{}{}
		deps = append(deps, producer)
	}
	return deps
}

// Validate runs a topological sort over the graph. Returns the ordered task
// URLs, or an error when the declared I/O implies a cycle.
func (g *Graph) Validate() ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var edges []toposort.Edge
	for url, n := range g.nodes {
		deps := g.dependencies(n)
		if len(deps) == 0 {
			// Edge from nil keeps independent tasks in the sort.
			edges = append(edges, toposort.Edge{nil, url})
			continue
		}
		for _, dep := range deps {
			edges = append(edges, toposort.Edge{dep, url})
		}
	}

	sorted, err := toposort.Toposort(edges)
	if err != nil {
		return nil, fmt.Errorf("task graph contains cycle: %w", err)
	}

	order := make([]string, 0, len(sorted))
	for _, url := range sorted {
		if url != nil {
			order = append(order, url.(string))
		}
	}

	if len(order) != len(g.nodes) {
		var missing []string
		found := make(map[string]bool, len(order))
		for _, url := range order {
			found[url] = true
		}
		for url := range g.nodes {
			if !found[url] {
				missing = append(missing, url)
			}
		}
		return nil, fmt.Errorf("topological sort lost %d tasks: %s", len(missing), strings.Join(missing, ", "))
	}

	return order, nil
}

// Eligible returns pending nodes whose producing tasks have all resolved
// successfully (done or skipped).
func (g *Graph) Eligible() []*Node {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var eligible []*Node
	for _, n := range g.nodes {
		if n.Status != NodePending {
			continue
		}
		ready := true
		for _, dep := range g.dependencies(n) {
			producer := g.nodes[dep]
			if producer.Status != NodeDone && producer.Status != NodeSkipped {
				ready = false
				break
			}
		}
		if ready {
			eligible = append(eligible, n)
		}
	}
	return eligible
}

// Get returns the node for a task URL.
func (g *Graph) Get(url string) (*Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[url]
	return n, ok
}

func (g *Graph) setStatus(url string, st NodeStatus, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if n, ok := g.nodes[url]; ok {
		n.Status = st
		n.Err = err
	}
}

// MarkRunning flags a node as executing.
func (g *Graph) MarkRunning(url string) { g.setStatus(url, NodeRunning, nil) }

// MarkDone flags a node as successfully resolved.
func (g *Graph) MarkDone(url string) { g.setStatus(url, NodeDone, nil) }

// MarkSkipped flags a node as resolved without running.
func (g *Graph) MarkSkipped(url string) { g.setStatus(url, NodeSkipped, nil) }

// MarkFailed flags a node as failed.
func (g *Graph) MarkFailed(url string, err error) { g.setStatus(url, NodeFailed, err) }

// Counts returns resolved, failed and total node counts.
func (g *Graph) Counts() (resolved, failed, total int) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, n := range g.nodes {
		switch n.Status {
		case NodeDone, NodeSkipped:
			resolved++
		case NodeFailed:
			failed++
		}
	}
	return resolved, failed, len(g.nodes)
}

// Blocked returns URLs of pending tasks that can never become eligible in
// this pass, i.e. downstream of a failure.
func (g *Graph) Blocked() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var blocked []string
	for url, n := range g.nodes {
		if n.Status == NodePending {
			blocked = append(blocked, url)
		}
	}
	return blocked
}
