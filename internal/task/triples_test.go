package task

import (
	"testing"
)

func TestTriples(t *testing.T) {
	in := NewLocalFile("/data/reads.fa")
	out := NewLocalFile("/data/aligned.bam")
	mut := NewLocalFile("/data/stats.db")

	tk, err := New(Nullary(func() error { return nil }), Options{
		URL:        "task:///pipe/align",
		Inputs:     map[string]Object{"reads": in},
		Outputs:    map[string]Object{"aligned": out},
		Mutables:   map[string]Object{"stats": mut},
		Parameters: map[string]any{"threads": 4},
		Source:     []byte("align body"),
		Registry:   NewRegistry(),
	})
	if err != nil {
		t.Fatalf("construction failed: %v", err)
	}

	triples := tk.Triples()
	has := func(s, p, o string) bool {
		for _, tr := range triples {
			if tr.Subject == s && tr.Predicate == p && tr.Object == o {
				return true
			}
		}
		return false
	}

	// Inputs are prerequisites of the task.
	if !has(tk.URL(), "pipetide:prereq", in.URL()) {
		t.Error("missing input prereq triple")
	}
	// Outputs invert the direction: the task is prerequisite of its outputs.
	if !has(out.URL(), "pipetide:prereq", tk.URL()) {
		t.Error("missing output prereq triple")
	}
	if !has(tk.URL(), "pipetide:hasMutable", mut.URL()) {
		t.Error("missing mutable triple")
	}
	if !has(tk.URL(), "pipetide:hasParameters", `{"threads":4}`) {
		t.Error("missing parameters triple")
	}
	if !has(tk.URL(), "pipetide:codeFingerprint", tk.CodeFingerprint()) {
		t.Error("missing code fingerprint triple")
	}
	if !has(tk.URL(), "pipetide:paramFingerprint", tk.ParamFingerprint()) {
		t.Error("missing param fingerprint triple")
	}
}
