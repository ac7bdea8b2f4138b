package pipeline

import (
	"fmt"
)

// Context describes this process's place in a pipeline-partitioned
// training graph: which stage it runs, how many micro-batches are in
// flight, the names of the event-handshake inputs and outputs, and the
// subset of graph feeds/fetches the stage's partition actually touches.
// The names are filled in from the engine's configuration result; a
// fresh Context describes a single-stage run with no handshake.
type Context struct {
	NumPipelineStages            int
	PipelineStageID              int
	NumGradientAccumulationSteps int

	ForwardWaitedEventName    string
	ForwardRecordedEventName  string
	BackwardWaitedEventName   string
	BackwardRecordedEventName string

	ForwardWaitedOutputName    string
	ForwardRecordedOutputName  string
	BackwardWaitedOutputName   string
	BackwardRecordedOutputName string

	// FeedNames and FetchNames are the allow-lists for this stage.
	// Outside pipeline parallelism they stay empty and nothing is
	// filtered.
	FeedNames  []string
	FetchNames []string
}

func NewContext() *Context {
	return &Context{
		NumPipelineStages:            1,
		PipelineStageID:              0,
		NumGradientAccumulationSteps: 1,
	}
}

func (c *Context) Validate() error {
	if c.NumPipelineStages < 1 {
		return fmt.Errorf("NumPipelineStages must be at least 1, got %d", c.NumPipelineStages)
	}
	if c.PipelineStageID < 0 || c.PipelineStageID >= c.NumPipelineStages {
		return fmt.Errorf("PipelineStageID %d out of range [0, %d)", c.PipelineStageID, c.NumPipelineStages)
	}
	if c.NumGradientAccumulationSteps < 1 {
		return fmt.Errorf("NumGradientAccumulationSteps must be at least 1, got %d", c.NumGradientAccumulationSteps)
	}
	return nil
}

func (c *Context) IsFirstStage() bool {
	return c.PipelineStageID == 0
}

// IsLastStage reports whether this stage holds the end of the model,
// where the loss and the evaluation fetches live. A single-stage run is
// its own last stage.
func (c *Context) IsLastStage() bool {
	return c.PipelineStageID == c.NumPipelineStages-1
}

// Slot maps a step counter onto the micro-batch slot whose events the
// step must use.
func (c *Context) Slot(step uint64) int {
	return int(step % uint64(c.NumGradientAccumulationSteps))
}

// WorkerID maps a step counter onto the worker slot that runs it.
func (c *Context) WorkerID(step uint64) int {
	return int(step % uint64(c.NumPipelineStages))
}

// AllowedFeed reports whether this stage's partition consumes the named
// graph input. Without pipeline parallelism every feed is allowed.
func (c *Context) AllowedFeed(name string) bool {
	if c.NumPipelineStages == 1 {
		return true
	}
	return contains(c.FeedNames, name)
}

// AllowedFetch reports whether this stage's partition can produce the
// named graph output.
func (c *Context) AllowedFetch(name string) bool {
	if c.NumPipelineStages == 1 {
		return true
	}
	return contains(c.FetchNames, name)
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
