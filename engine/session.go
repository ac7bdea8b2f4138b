package engine

import (
	"github.com/tsawler/go-training/tensor"
)

// RunOptions controls a single graph execution.
type RunOptions struct {
	// OnlyExecutePathToFetches restricts execution to the operators
	// required to produce the requested fetches. Accumulation steps and
	// evaluation passes set this; weight-update steps run the full graph.
	OnlyExecutePathToFetches bool

	// Tag labels the run in engine-side diagnostics.
	Tag string
}

// SaveOption selects what a model save includes.
type SaveOption int

const (
	SaveNoReload SaveOption = iota
	SaveWithUpdatedWeights
	SaveWithUpdatedWeightsAndLossFunc
)

func (o SaveOption) String() string {
	switch o {
	case SaveNoReload:
		return "NoReload"
	case SaveWithUpdatedWeights:
		return "WithUpdatedWeights"
	case SaveWithUpdatedWeightsAndLossFunc:
		return "WithUpdatedWeightsAndLossFunc"
	default:
		return "Unknown"
	}
}

// Session is the execution engine behind the training loop. The
// orchestrator drives it purely by name: it feeds named tensors, asks
// for named fetches, and never inspects the graph itself. Graph
// loading, gradient construction, optimizer construction and pipeline
// partitioning all happen behind this interface.
//
// Run is synchronous and must be safe to call from the worker
// goroutines the orchestrator dispatches accumulation steps on.
type Session interface {
	Load(modelPath string) error

	// ConfigureForTraining builds the training graph and reports the
	// names the orchestrator needs: the loss-scale input, the optimizer
	// output map, and the per-stage pipeline feeds/fetches.
	ConfigureForTraining(cfg TrainingConfiguration) (*TrainingConfigurationResult, error)

	Run(opts RunOptions, feedNames []string, feeds []*tensor.Tensor, fetchNames []string) ([]*tensor.Tensor, error)

	Save(path string, opt SaveOption) error

	// GetStateTensors returns the trainable state by name. Values are
	// host-resident copies; any device-to-host transfer happens inside
	// the engine.
	GetStateTensors() (map[string]*tensor.Tensor, error)

	SetStateTensors(state map[string]*tensor.Tensor) error
}
