package events

import (
	"time"
)

// Event is the base interface for all events.
type Event interface {
	EventType() string
	TaskURL() string
}

// Topic constants
const (
	TopicTask     = "task"
	TopicPipeline = "pipeline"
)

// Event type constants
const (
	EventTypeTaskStarted   = "task.started"
	EventTypeTaskFinished  = "task.finished"
	EventTypeTaskSkipped   = "task.skipped"
	EventTypePipelineStage = "pipeline.stage"
)

// TaskStartedEvent is published when a task's execution wrapper begins a run
// attempt. It is always published strictly before the matching
// TaskFinishedEvent.
type TaskStartedEvent struct {
	URL       string
	ChunkID   int // -1 when the task was not produced by decomposition
	Timestamp time.Time
}

func (e TaskStartedEvent) EventType() string { return EventTypeTaskStarted }
func (e TaskStartedEvent) TaskURL() string   { return e.URL }

// TaskFinishedEvent carries the terminal status of one run attempt. Exactly
// one is published per attempt, pass or fail.
type TaskFinishedEvent struct {
	URL       string
	Status    string // "done" or "fail"
	Duration  time.Duration
	Timestamp time.Time
}

func (e TaskFinishedEvent) EventType() string { return EventTypeTaskFinished }
func (e TaskFinishedEvent) TaskURL() string   { return e.URL }

// TaskSkippedEvent is published by the controller when a task's declared
// outputs are already up to date and the wrapper is not invoked.
type TaskSkippedEvent struct {
	URL       string
	Timestamp time.Time
}

func (e TaskSkippedEvent) EventType() string { return EventTypeTaskSkipped }
func (e TaskSkippedEvent) TaskURL() string   { return e.URL }

// PipelineStageEvent reports coarse progress over the whole task graph.
type PipelineStageEvent struct {
	Done      int
	Failed    int
	Total     int
	Timestamp time.Time
}

func (e PipelineStageEvent) EventType() string { return EventTypePipelineStage }
func (e PipelineStageEvent) TaskURL() string   { return "" }
