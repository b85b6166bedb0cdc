package controller

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pipetide/pipetide/internal/task"
)

// chainTask builds a task reading the given input files and writing the given
// output files, with a body that creates each output.
func chainTask(t *testing.T, url string, inputs, outputs []string) *task.Task {
	t.Helper()

	in := make(map[string]task.Object, len(inputs))
	for i, path := range inputs {
		in["in_"+string(rune('a'+i))] = task.NewLocalFile(path)
	}
	out := make(map[string]task.Object, len(outputs))
	for i, path := range outputs {
		out["out_"+string(rune('a'+i))] = task.NewLocalFile(path)
	}

	tk, err := task.New(func(tk *task.Task) error {
		for _, o := range tk.Outputs() {
			if err := os.WriteFile(o.LocalPath(), []byte("x"), 0o644); err != nil {
				return err
			}
		}
		return nil
	}, task.Options{
		URL:     url,
		Inputs:  in,
		Outputs: out,
	})
	if err != nil {
		t.Fatalf("task.New(%s): %v", url, err)
	}
	return tk
}

func TestGraphRejectsDuplicateURL(t *testing.T) {
	dir := t.TempDir()
	g := NewGraph()

	a := chainTask(t, "task://t/a", nil, []string{filepath.Join(dir, "a.out")})
	b := chainTask(t, "task://t/a", nil, []string{filepath.Join(dir, "b.out")})

	if err := g.AddTask(a); err != nil {
		t.Fatalf("first AddTask: %v", err)
	}
	if err := g.AddTask(b); err == nil {
		t.Fatal("expected error for duplicate task URL")
	}
}

func TestGraphRejectsDuplicateProducer(t *testing.T) {
	dir := t.TempDir()
	shared := filepath.Join(dir, "shared.out")
	g := NewGraph()

	a := chainTask(t, "task://t/a", nil, []string{shared})
	b := chainTask(t, "task://t/b", nil, []string{shared})

	if err := g.AddTask(a); err != nil {
		t.Fatalf("first AddTask: %v", err)
	}
	err := g.AddTask(b)
	if err == nil {
		t.Fatal("expected error for second producer of same object")
	}
	if !strings.Contains(err.Error(), "task://t/a") {
		t.Errorf("error should name the first producer, got: %v", err)
	}
}

func TestGraphValidateOrder(t *testing.T) {
	dir := t.TempDir()
	f1 := filepath.Join(dir, "f1")
	f2 := filepath.Join(dir, "f2")

	g := NewGraph()
	for _, tk := range []*task.Task{
		chainTask(t, "task://t/c", []string{f2}, []string{filepath.Join(dir, "f3")}),
		chainTask(t, "task://t/a", nil, []string{f1}),
		chainTask(t, "task://t/b", []string{f1}, []string{f2}),
	} {
		if err := g.AddTask(tk); err != nil {
			t.Fatalf("AddTask: %v", err)
		}
	}

	order, err := g.Validate()
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(order) != 3 {
		t.Fatalf("expected 3 tasks in order, got %d", len(order))
	}

	pos := make(map[string]int, len(order))
	for i, url := range order {
		pos[url] = i
	}
	if pos["task://t/a"] > pos["task://t/b"] {
		t.Errorf("a must sort before b: %v", order)
	}
	if pos["task://t/b"] > pos["task://t/c"] {
		t.Errorf("b must sort before c: %v", order)
	}
}

func TestGraphValidateDetectsCycle(t *testing.T) {
	dir := t.TempDir()
	x := filepath.Join(dir, "x")
	y := filepath.Join(dir, "y")

	g := NewGraph()
	if err := g.AddTask(chainTask(t, "task://t/a", []string{x}, []string{y})); err != nil {
		t.Fatalf("AddTask: %v", err)
	}
	if err := g.AddTask(chainTask(t, "task://t/b", []string{y}, []string{x})); err != nil {
		t.Fatalf("AddTask: %v", err)
	}

	if _, err := g.Validate(); err == nil {
		t.Fatal("expected cycle error")
	}
}

func TestGraphEligibility(t *testing.T) {
	dir := t.TempDir()
	f1 := filepath.Join(dir, "f1")

	g := NewGraph()
	root := chainTask(t, "task://t/root", nil, []string{f1})
	child := chainTask(t, "task://t/child", []string{f1}, []string{filepath.Join(dir, "f2")})
	if err := g.AddTask(root); err != nil {
		t.Fatalf("AddTask: %v", err)
	}
	if err := g.AddTask(child); err != nil {
		t.Fatalf("AddTask: %v", err)
	}

	eligible := g.Eligible()
	if len(eligible) != 1 || eligible[0].Task.URL() != "task://t/root" {
		t.Fatalf("expected only root eligible, got %d nodes", len(eligible))
	}

	g.MarkRunning("task://t/root")
	if got := g.Eligible(); len(got) != 0 {
		t.Fatalf("nothing should be eligible while root runs, got %d", len(got))
	}

	g.MarkDone("task://t/root")
	eligible = g.Eligible()
	if len(eligible) != 1 || eligible[0].Task.URL() != "task://t/child" {
		t.Fatalf("expected child eligible after root done, got %d nodes", len(eligible))
	}

	// Skipped producers also unblock consumers.
	g2 := NewGraph()
	root2 := chainTask(t, "task://t/root2", nil, []string{filepath.Join(dir, "g1")})
	child2 := chainTask(t, "task://t/child2", []string{filepath.Join(dir, "g1")}, []string{filepath.Join(dir, "g2")})
	_ = g2.AddTask(root2)
	_ = g2.AddTask(child2)
	g2.MarkSkipped("task://t/root2")
	if got := g2.Eligible(); len(got) != 1 || got[0].Task.URL() != "task://t/child2" {
		t.Fatalf("skipped producer should unblock consumer")
	}
}

func TestGraphBlockedAndCounts(t *testing.T) {
	dir := t.TempDir()
	f1 := filepath.Join(dir, "f1")

	g := NewGraph()
	_ = g.AddTask(chainTask(t, "task://t/root", nil, []string{f1}))
	_ = g.AddTask(chainTask(t, "task://t/child", []string{f1}, []string{filepath.Join(dir, "f2")}))

	g.MarkFailed("task://t/root", os.ErrInvalid)

	if got := g.Eligible(); len(got) != 0 {
		t.Fatalf("failed producer must block consumer, got %d eligible", len(got))
	}

	blocked := g.Blocked()
	if len(blocked) != 1 || blocked[0] != "task://t/child" {
		t.Fatalf("expected child blocked, got %v", blocked)
	}

	resolved, failed, total := g.Counts()
	if resolved != 0 || failed != 1 || total != 2 {
		t.Errorf("Counts = (%d, %d, %d), want (0, 1, 2)", resolved, failed, total)
	}

	n, ok := g.Get("task://t/root")
	if !ok || n.Err == nil {
		t.Error("failed node should carry its error")
	}
}
