package task

import (
	"encoding/json"
)

// Namespace prefix for exported predicates.
const ns = "pipetide:"

// Triple is one subject-predicate-object statement of the dependency-graph
// export.
type Triple struct {
	Subject   string
	Predicate string
	Object    string
}

// Triples exports the task's dependency relations for introspection tooling.
// Inputs are prerequisites of the task; outputs invert the direction, making
// the task a prerequisite of whatever consumes them. This is read-only
// export, not on the execution hot path.
func (t *Task) Triples() []Triple {
	var triples []Triple

	for _, name := range sortedNames(t.inputs) {
		triples = append(triples, Triple{t.url, ns + "prereq", t.inputs[name].URL()})
	}
	for _, name := range sortedNames(t.outputs) {
		triples = append(triples, Triple{t.outputs[name].URL(), ns + "prereq", t.url})
	}
	for _, name := range sortedNames(t.mutables) {
		triples = append(triples, Triple{t.url, ns + "hasMutable", t.mutables[name].URL()})
	}

	if len(t.params) > 0 {
		if data, err := json.Marshal(t.params); err == nil {
			triples = append(triples, Triple{t.url, ns + "hasParameters", string(data)})
		}
	}

	triples = append(triples,
		Triple{t.url, ns + "codeFingerprint", t.codeFingerprint},
		Triple{t.url, ns + "paramFingerprint", t.paramFingerprint},
	)

	return triples
}
