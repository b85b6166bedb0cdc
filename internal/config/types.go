package config

// GridConfig holds the grid-engine submission settings shared by every
// distributed stage.
type GridConfig struct {
	Command []string `json:"command,omitempty"` // Submission command and flags, e.g. ["qsub", "-sync", "y"]
	Queue   string   `json:"queue,omitempty"`   // Queue name appended as -q <queue>
}

// StageConfig defines one pipeline stage: a shell script plus its declared
// data objects. Dependencies between stages are never listed; they follow
// from one stage's outputs being another stage's inputs.
type StageConfig struct {
	Name        string            `json:"name"`
	Script      string            `json:"script"`
	Inputs      map[string]string `json:"inputs,omitempty"`     // Port name -> local path
	Outputs     map[string]string `json:"outputs,omitempty"`    // Port name -> local path
	Mutables    map[string]string `json:"mutables,omitempty"`   // Port name -> local path
	Parameters  map[string]any    `json:"parameters,omitempty"` // Fingerprinted stage parameters
	Distributed bool              `json:"distributed,omitempty"`
	Slots       int               `json:"slots,omitempty"` // Concurrency slots the stage occupies
}

// PipelineConfig is the top-level configuration.
type PipelineConfig struct {
	Name   string        `json:"name"`
	Slots  int           `json:"slots"` // Total concurrency budget for the run
	Grid   GridConfig    `json:"grid"`
	Stages []StageConfig `json:"stages"`
}
