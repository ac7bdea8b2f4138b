package training

import (
	"github.com/tsawler/go-training/tensor"
)

// StepResult is what a completed weight update exposes to an Observer.
// Feeds and fetches are positional with their name slices.
type StepResult struct {
	// Step counts completed steps before this one; WeightUpdateStep
	// counts completed weight updates before this one.
	Step             uint64
	WeightUpdateStep uint64

	FeedNames  []string
	Feeds      []*tensor.Tensor
	FetchNames []string
	Fetches    []*tensor.Tensor

	// AllFinite is false when the mixed-precision backward pass
	// overflowed on this update. Always true without mixed precision.
	AllFinite bool
}

// EvaluationBatch is one evaluation micro-batch's feeds and fetches,
// tagged with the training step the evaluation ran at.
type EvaluationBatch struct {
	Step uint64

	FeedNames  []string
	Feeds      []*tensor.Tensor
	FetchNames []string
	Fetches    []*tensor.Tensor
}

// Observer receives training progress. OnStep fires on the last
// pipeline stage after cadence-gated weight updates; the evaluation
// callbacks fire on the coordinator rank. Implementations must not
// retain the tensor slices past the call.
type Observer interface {
	OnStep(r StepResult)
	OnEvaluationBatch(b EvaluationBatch)

	// OnEvaluationEnd marks the end of an evaluation pass of totalBatchSize
	// examples. The tag distinguishes passes, "test" for periodic
	// evaluation.
	OnEvaluationEnd(totalBatchSize int, step uint64, tag string)
}
