package engine

// OptimizerOutputKey identifies the well-known graph outputs the
// optimizer construction adds beyond the user's own fetches.
type OptimizerOutputKey int

const (
	// GradientAllIsFinite reports whether every gradient survived the
	// mixed-precision backward pass without overflow.
	GradientAllIsFinite OptimizerOutputKey = iota
	// DeltaAllIsFinite is the post-reduction finiteness flag produced
	// when gradients are averaged across ranks before the update.
	DeltaAllIsFinite
	// GradientAccumulation is the output that forces accumulation-step
	// execution all the way through the gradient sum.
	GradientAccumulation
)

func (k OptimizerOutputKey) String() string {
	switch k {
	case GradientAllIsFinite:
		return "GradientAllIsFinite"
	case DeltaAllIsFinite:
		return "DeltaAllIsFinite"
	case GradientAccumulation:
		return "GradientAccumulation"
	default:
		return "Unknown"
	}
}

// OptimizerConfiguration names the optimizer graph to build and the
// input the learning rate arrives on.
type OptimizerConfiguration struct {
	Name                  string
	LearningRateInputName string
}

// PipelineConfiguration requests a pipeline-partitioned training graph.
type PipelineConfiguration struct {
	NumPipelineStages int
	StageID           int
	// FetchNames are the outputs the caller wants from this stage; the
	// engine may narrow them to what the stage's partition can produce.
	FetchNames []string
}

// TrainingConfiguration is the orchestrator's request to
// Session.ConfigureForTraining.
type TrainingConfiguration struct {
	WeightNamesToTrain        []string
	WeightNamesNotToTrain     []string
	LossName                  string
	GradientAccumulationSteps int
	UseMixedPrecision         bool
	// GradientsAsAllReduce averages gradients across ranks inside the
	// graph, which adds the DeltaAllIsFinite optimizer output.
	GradientsAsAllReduce bool
	Optimizer            OptimizerConfiguration
	Pipeline             *PipelineConfiguration
}

// PipelineConfigurationResult carries the per-stage names the engine
// settled on: which graph inputs this stage actually consumes, which
// outputs it can produce, and the four event-handshake inputs plus
// their four pass-through outputs.
type PipelineConfigurationResult struct {
	FeedNames  []string
	FetchNames []string

	ForwardWaitedEventName    string
	ForwardRecordedEventName  string
	BackwardWaitedEventName   string
	BackwardRecordedEventName string

	ForwardWaitedOutputName    string
	ForwardRecordedOutputName  string
	BackwardWaitedOutputName   string
	BackwardRecordedOutputName string
}

// TrainingConfigurationResult reports what ConfigureForTraining built.
type TrainingConfigurationResult struct {
	// LossScaleInputName is set when mixed precision is enabled.
	LossScaleInputName string

	// OptimizerOutputNames maps each well-known optimizer output to the
	// graph output name carrying it.
	OptimizerOutputNames map[OptimizerOutputKey]string

	// Pipeline is set when the graph was pipeline-partitioned.
	Pipeline *PipelineConfigurationResult
}

// EventFeedNames lists the pipeline event inputs in feed order, empty
// strings skipped.
func (r *PipelineConfigurationResult) EventFeedNames() []string {
	names := make([]string, 0, 4)
	for _, n := range []string{
		r.ForwardWaitedEventName,
		r.ForwardRecordedEventName,
		r.BackwardWaitedEventName,
		r.BackwardRecordedEventName,
	} {
		if n != "" {
			names = append(names, n)
		}
	}
	return names
}

// EventOutputNames lists the pipeline event pass-through outputs, empty
// strings skipped.
func (r *PipelineConfigurationResult) EventOutputNames() []string {
	names := make([]string, 0, 4)
	for _, n := range []string{
		r.ForwardWaitedOutputName,
		r.ForwardRecordedOutputName,
		r.BackwardWaitedOutputName,
		r.BackwardRecordedOutputName,
	} {
		if n != "" {
			names = append(names, n)
		}
	}
	return names
}
