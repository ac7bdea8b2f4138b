package training

import (
	"github.com/pkg/errors"
)

const defaultMaxNumCheckpoints = 10

// Parameters configure a TrainingRunner. The zero value is not usable:
// a model path, an optimizer name, a batch size, a step count and a
// learning rate feed name are required. Optional knobs default in
// NewTrainingRunner.
type Parameters struct {
	// ModelPath is the forward graph to load. When PipelineStagePaths is
	// set, each stage loads its own pre-partitioned graph instead.
	ModelPath          string
	PipelineStagePaths []string

	// TrainingOptimizerName selects the optimizer graph to build.
	TrainingOptimizerName string

	// LossName is the training objective; it only applies on the stage
	// that holds the end of the model.
	LossName string

	// WeightNamesToTrain and WeightNamesNotToTrain are mutually
	// exclusive ways to restrict the trainable set.
	WeightNamesToTrain    []string
	WeightNamesNotToTrain []string

	BatchSize     int
	EvalBatchSize int
	NumTrainSteps uint64

	// GradientAccumulationSteps is how many micro-batches feed one
	// weight update.
	GradientAccumulationSteps int

	LearningRate LearningRateParameters

	UseMixedPrecision bool
	// LossScale fixes the mixed-precision loss scale; zero selects
	// dynamic scaling.
	LossScale float32

	// GradientsAsAllReduce averages gradients across ranks inside the
	// graph, which adds a second finiteness check on weight updates.
	GradientsAsAllReduce bool

	NumPipelineStages int
	WorldRank         int
	WorldSize         int

	// FetchNames are the outputs to retrieve on weight-update steps.
	FetchNames []string

	// DisplayLossSteps is the weight-update cadence for Observer.OnStep.
	DisplayLossSteps uint64
	// EvaluationPeriod runs an evaluation pass every so many steps; zero
	// disables periodic evaluation.
	EvaluationPeriod uint64
	SkipEvaluation   bool
	IsPerfTest       bool
	ShuffleData      bool

	CheckpointsDir       string
	CheckpointToLoadPath string
	// CheckpointPeriod saves a checkpoint every so many weight updates;
	// zero disables saving.
	CheckpointPeriod  uint64
	MaxNumCheckpoints int

	// RunningModelPath, when set, makes the coordinator save the graph
	// actually being run at the start of Run.
	RunningModelPath string
	// OutputDir receives the trained model at EndTraining; empty skips
	// the save.
	OutputDir string

	Observer Observer
}

func applyParameterDefaults(p *Parameters) {
	if p.GradientAccumulationSteps == 0 {
		p.GradientAccumulationSteps = 1
	}
	if p.NumPipelineStages == 0 {
		p.NumPipelineStages = 1
	}
	if p.WorldSize == 0 {
		p.WorldSize = 1
	}
	if p.DisplayLossSteps == 0 {
		p.DisplayLossSteps = 1
	}
	if p.MaxNumCheckpoints == 0 {
		p.MaxNumCheckpoints = defaultMaxNumCheckpoints
	}
	if p.EvalBatchSize == 0 {
		p.EvalBatchSize = p.BatchSize
	}
}

func validateParameters(p *Parameters) error {
	if p.ModelPath == "" {
		return errors.New("a model path is required")
	}
	if p.TrainingOptimizerName == "" {
		return errors.New("a training optimizer name is required")
	}
	if len(p.WeightNamesToTrain) > 0 && len(p.WeightNamesNotToTrain) > 0 {
		return errors.New("WeightNamesToTrain and WeightNamesNotToTrain are mutually exclusive")
	}
	if p.BatchSize < 1 {
		return errors.Errorf("batch size must be at least 1, got %d", p.BatchSize)
	}
	if p.EvalBatchSize < 1 {
		return errors.Errorf("eval batch size must be at least 1, got %d", p.EvalBatchSize)
	}
	if p.NumTrainSteps < 1 {
		return errors.New("number of training steps must be at least 1")
	}
	if p.GradientAccumulationSteps < 1 {
		return errors.Errorf("gradient accumulation steps must be at least 1, got %d", p.GradientAccumulationSteps)
	}
	if p.LearningRate.FeedName == "" {
		return errors.New("a learning rate feed name is required")
	}
	if p.LearningRate.WarmupRatio < 0 || p.LearningRate.WarmupRatio >= 1 {
		return errors.Errorf("warmup ratio must be in [0, 1), got %g", p.LearningRate.WarmupRatio)
	}
	switch p.LearningRate.WarmupMode {
	case "", WarmupNone, WarmupConstant, WarmupLinear, WarmupCosine, WarmupPoly:
	default:
		return errors.Errorf("unknown warmup mode %q", p.LearningRate.WarmupMode)
	}
	if p.LossScale < 0 {
		return errors.Errorf("loss scale must not be negative, got %g", p.LossScale)
	}
	if p.NumPipelineStages < 1 {
		return errors.Errorf("number of pipeline stages must be at least 1, got %d", p.NumPipelineStages)
	}
	if p.WorldSize < 1 {
		return errors.Errorf("world size must be at least 1, got %d", p.WorldSize)
	}
	if p.WorldRank < 0 || p.WorldRank >= p.WorldSize {
		return errors.Errorf("world rank %d out of range [0, %d)", p.WorldRank, p.WorldSize)
	}
	if p.NumPipelineStages > 1 && p.WorldRank >= p.NumPipelineStages {
		return errors.Errorf("world rank %d does not map to a pipeline stage, have %d stages", p.WorldRank, p.NumPipelineStages)
	}
	if len(p.PipelineStagePaths) > 0 && len(p.PipelineStagePaths) != p.NumPipelineStages {
		return errors.Errorf("got %d pipeline stage paths for %d stages", len(p.PipelineStagePaths), p.NumPipelineStages)
	}
	if p.MaxNumCheckpoints < 1 {
		return errors.Errorf("max number of checkpoints must be at least 1, got %d", p.MaxNumCheckpoints)
	}
	return nil
}
