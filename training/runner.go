package training

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/tsawler/go-training/checkpoints"
	"github.com/tsawler/go-training/engine"
	"github.com/tsawler/go-training/pipeline"
	"github.com/tsawler/go-training/tensor"
)

// TrainingRunner drives the training loop over an engine session: it
// assembles feeds and fetches by name, overlaps accumulation steps
// across pipeline worker slots, applies weight updates synchronously,
// and owns the loss scaler, the checkpoint cadence and periodic
// evaluation.
//
// The runner is not safe for concurrent use; one goroutine drives it.
type TrainingRunner struct {
	params  Parameters
	session engine.Session

	ctx        *pipeline.Context
	schedule   *pipeline.Schedule
	workerPool *pipeline.WorkerPool

	lossScaler           *LossScaler
	optimizerOutputNames map[engine.OptimizerOutputKey]string
	registry             *checkpoints.Registry
	evaluator            *Evaluator

	step                  uint64
	round                 uint64
	weightUpdateStepCount uint64
	trainingDataSetIndex  uint32
}

// NewTrainingRunner validates the parameters and builds the runner.
// Initialize must be called before the first Run.
func NewTrainingRunner(params Parameters, session engine.Session) (*TrainingRunner, error) {
	applyParameterDefaults(&params)
	if err := validateParameters(&params); err != nil {
		return nil, err
	}
	if session == nil {
		return nil, errors.New("a session is required")
	}

	schedule, err := pipeline.NewSchedule(params.NumPipelineStages, params.GradientAccumulationSteps)
	if err != nil {
		return nil, err
	}
	pool, err := pipeline.NewWorkerPool(params.NumPipelineStages)
	if err != nil {
		return nil, err
	}

	ctx := pipeline.NewContext()
	ctx.NumGradientAccumulationSteps = params.GradientAccumulationSteps
	if params.NumPipelineStages > 1 {
		ctx.NumPipelineStages = params.NumPipelineStages
		ctx.PipelineStageID = params.WorldRank
	}
	if err := ctx.Validate(); err != nil {
		return nil, err
	}

	return &TrainingRunner{
		params:     params,
		session:    session,
		ctx:        ctx,
		schedule:   schedule,
		workerPool: pool,
	}, nil
}

// Step returns the number of completed steps in the current round.
func (r *TrainingRunner) Step() uint64 {
	return r.step
}

// Round counts completed Run calls.
func (r *TrainingRunner) Round() uint64 {
	return r.round
}

// WeightUpdateStepCount counts weight updates across all rounds.
func (r *TrainingRunner) WeightUpdateStepCount() uint64 {
	return r.weightUpdateStepCount
}

// Initialize loads the model, builds the training graph behind the
// session, and restores the latest checkpoint if one exists.
func (r *TrainingRunner) Initialize() error {
	modelPath := r.params.ModelPath
	if r.params.NumPipelineStages > 1 && len(r.params.PipelineStagePaths) > 0 {
		modelPath = r.params.PipelineStagePaths[r.ctx.PipelineStageID]
	}
	if err := r.session.Load(modelPath); err != nil {
		return errors.Wrapf(err, "loading model %s", modelPath)
	}

	cfg := engine.TrainingConfiguration{
		WeightNamesToTrain:        r.params.WeightNamesToTrain,
		WeightNamesNotToTrain:     r.params.WeightNamesNotToTrain,
		GradientAccumulationSteps: r.params.GradientAccumulationSteps,
		UseMixedPrecision:         r.params.UseMixedPrecision,
		GradientsAsAllReduce:      r.params.GradientsAsAllReduce,
		Optimizer: engine.OptimizerConfiguration{
			Name:                  r.params.TrainingOptimizerName,
			LearningRateInputName: r.params.LearningRate.FeedName,
		},
	}
	// The loss only exists on the stage holding the end of the model.
	if r.ctx.IsLastStage() {
		cfg.LossName = r.params.LossName
	}
	if r.params.NumPipelineStages > 1 {
		cfg.Pipeline = &engine.PipelineConfiguration{
			NumPipelineStages: r.params.NumPipelineStages,
			StageID:           r.ctx.PipelineStageID,
			FetchNames:        r.params.FetchNames,
		}
	}

	result, err := r.session.ConfigureForTraining(cfg)
	if err != nil {
		return errors.Wrap(err, "configuring session for training")
	}

	if result.LossScaleInputName != "" {
		if r.params.LossScale == 0 {
			r.lossScaler = NewLossScaler(result.LossScaleInputName, true, 0)
		} else {
			r.lossScaler = NewLossScaler(result.LossScaleInputName, false, r.params.LossScale)
		}
	}

	r.optimizerOutputNames = result.OptimizerOutputNames
	if r.optimizerOutputNames == nil {
		r.optimizerOutputNames = map[engine.OptimizerOutputKey]string{}
	}

	if r.params.NumPipelineStages > 1 {
		if result.Pipeline == nil {
			return errors.New("session reported no pipeline configuration for a multi-stage run")
		}
		p := result.Pipeline
		r.ctx.ForwardWaitedEventName = p.ForwardWaitedEventName
		r.ctx.ForwardRecordedEventName = p.ForwardRecordedEventName
		r.ctx.BackwardWaitedEventName = p.BackwardWaitedEventName
		r.ctx.BackwardRecordedEventName = p.BackwardRecordedEventName
		r.ctx.ForwardWaitedOutputName = p.ForwardWaitedOutputName
		r.ctx.ForwardRecordedOutputName = p.ForwardRecordedOutputName
		r.ctx.BackwardWaitedOutputName = p.BackwardWaitedOutputName
		r.ctx.BackwardRecordedOutputName = p.BackwardRecordedOutputName
		r.ctx.FeedNames = p.FeedNames
		r.ctx.FetchNames = p.FetchNames
	}

	r.evaluator = NewEvaluator(&r.params, r.session, r.lossScaler)

	if r.params.CheckpointsDir != "" {
		registry, err := checkpoints.NewRegistry(r.params.CheckpointsDir, r.params.MaxNumCheckpoints)
		if err != nil {
			return errors.Wrap(err, "opening checkpoint registry")
		}
		r.registry = registry
	}

	loadPath := r.params.CheckpointToLoadPath
	if loadPath == "" && r.registry != nil {
		if latest, ok := r.registry.TryGetLatest(); ok {
			loadPath = latest
		}
	}
	if loadPath != "" {
		if err := r.LoadCheckpoint(loadPath); err != nil {
			return errors.Wrapf(err, "restoring checkpoint %s", loadPath)
		}
		klog.Infof("Restored checkpoint %s at step %d", loadPath, r.step)
	}

	return nil
}

// Run trains until NumTrainSteps, then bumps the round counter and
// resets the step counter so a follow-up Run starts a fresh phase.
// evalLoader may be nil to disable periodic evaluation.
func (r *TrainingRunner) Run(trainLoader, evalLoader DataLoader) error {
	if r.params.WorldRank == 0 && r.params.RunningModelPath != "" {
		if err := r.session.Save(r.params.RunningModelPath, engine.SaveNoReload); err != nil {
			klog.Warningf("Failed to save the running graph to %s: %v", r.params.RunningModelPath, err)
		}
	}

	if trainLoader == nil {
		klog.Warning("Training data loader not provided, nothing to do")
		return nil
	}

	if err := r.trainingLoop(trainLoader, evalLoader); err != nil {
		return err
	}

	r.round++
	r.step = 0
	return nil
}

func (r *TrainingRunner) trainingLoop(trainLoader, evalLoader DataLoader) error {
	enableCheckpointSaving := r.params.WorldRank == 0 &&
		r.registry != nil && r.params.CheckpointPeriod > 0

	if evalLoader != nil {
		if err := evalLoader.InitializeDataSetIndex(0); err != nil {
			return errors.Wrap(err, "initializing evaluation data")
		}
	}
	if err := trainLoader.InitializeDataSetIndex(int(r.trainingDataSetIndex)); err != nil {
		return errors.Wrap(err, "initializing training data")
	}

	numShardsToVisit := trainLoader.NumShards()
	lrScheduler, err := NewLearningRateScheduler(r.params.LearningRate, r.params.NumTrainSteps)
	if err != nil {
		return err
	}

	stats := newRunStats(r.params.BatchSize, r.params.NumTrainSteps)
	epoch := 0
	var gradientAccumulationStepCount uint64
	stepStart := r.step
	weightUpdateStepCountStart := r.weightUpdateStepCount

	for r.step < r.params.NumTrainSteps {
		stepsAtEpochStart := r.step

		for shardIt := 0; shardIt < numShardsToVisit; shardIt++ {
			trainingData := trainLoader.CurrentDataSet()
			r.trainingDataSetIndex = uint32(trainLoader.CurrentDataSetIndex())
			if trainingData == nil {
				klog.Warningf("Skipping shard %d, which failed to load", trainLoader.CurrentDataSetIndex())
				trainLoader.MoveToNextDataSet()
				continue
			}

			if r.params.ShuffleData {
				klog.V(1).Info("Randomly shuffling training data")
				trainingData.RandomShuffle()
			}

			batchNumCurShard := trainingData.TotalBatch(r.params.BatchSize)
			for batch := 0; batch < batchNumCurShard && r.step < r.params.NumTrainSteps; batch++ {
				isWeightUpdateStep := (r.step+1)%uint64(r.params.GradientAccumulationSteps) == 0

				feedNames, feeds, err := r.prepareFeeds(trainLoader, trainingData, lrScheduler, batch)
				if err != nil {
					return err
				}
				fetchNames, err := r.prepareFetchNames(isWeightUpdateStep)
				if err != nil {
					return err
				}

				start := time.Now()
				if isWeightUpdateStep {
					err = r.runWithUpdate(feedNames, fetchNames, feeds)
				} else {
					err = r.runWithoutUpdate(feedNames, fetchNames, feeds)
					if err == nil {
						gradientAccumulationStepCount++
					}
				}
				if err != nil {
					return err
				}
				elapsed := time.Since(start)
				stats.record(r.step, elapsed)

				if r.ctx.IsFirstStage() {
					klog.V(1).Infof("Round %d, step %d, epoch %d, batch %d/%d, shard %d/%d, examples [%d, %d), time %.2f ms, throughput %.2f ex/sec",
						r.round, r.step, epoch, batch, batchNumCurShard, shardIt+1, numShardsToVisit,
						batch*r.params.BatchSize, (batch+1)*r.params.BatchSize,
						float64(elapsed.Microseconds())/1000, stats.throughput())
				}

				if evalLoader != nil && r.params.EvaluationPeriod > 0 &&
					r.step%r.params.EvaluationPeriod == 0 {
					if err := r.evaluator.Evaluate(evalLoader, r.step); err != nil {
						return err
					}
				}

				if enableCheckpointSaving && isWeightUpdateStep &&
					r.weightUpdateStepCount%r.params.CheckpointPeriod == 0 {
					if err := r.savePeriodicCheckpoint(); err != nil {
						return err
					}
				}
			}

			if err := r.workerPool.JoinAll(); err != nil {
				return errors.Wrap(err, "joining pipeline workers at end of shard")
			}
			if r.step < r.params.NumTrainSteps {
				trainLoader.MoveToNextDataSet()
			}
		}

		if r.step == stepsAtEpochStart {
			return errors.New("no shard produced a training batch, cannot make progress")
		}
		epoch++
	}

	if r.ctx.IsFirstStage() {
		klog.Infof("Round %d finished: %d batches (%d accumulation, %d update) in %s, %.2f ms/batch, %.2f ex/sec, stabilized %.2f ex/sec",
			r.round,
			r.step-stepStart,
			gradientAccumulationStepCount,
			r.weightUpdateStepCount-weightUpdateStepCountStart,
			stats.totalTime,
			float64(stats.averageStepTime().Microseconds())/1000,
			stats.throughput(),
			stats.stabilizedThroughput())
	}
	return nil
}

// prepareFeeds assembles one step's feeds: the batch's data columns,
// the loss scale, the learning rate, then the event ids for the step's
// micro-batch slot. On a partitioned graph only the names this stage's
// partition consumes are fed.
func (r *TrainingRunner) prepareFeeds(loader DataLoader, data DataSet, lrScheduler LearningRateScheduler, batch int) ([]string, []*tensor.Tensor, error) {
	dataNames := loader.DataSetTensorNames()
	dataFeeds, err := data.GetKthBatch(r.params.BatchSize, batch)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "reading batch %d", batch)
	}
	if len(dataFeeds) != len(dataNames) {
		return nil, nil, errors.Errorf("data set produced %d tensors for %d tensor names", len(dataFeeds), len(dataNames))
	}

	feedNames := make([]string, 0, len(dataNames)+6)
	feeds := make([]*tensor.Tensor, 0, len(dataNames)+6)

	for i, name := range dataNames {
		if !r.ctx.AllowedFeed(name) {
			continue
		}
		feedNames = append(feedNames, name)
		feeds = append(feeds, dataFeeds[i])
	}

	if r.lossScaler != nil && r.ctx.AllowedFeed(r.lossScaler.LossScaleInputName) {
		feedNames = append(feedNames, r.lossScaler.LossScaleInputName)
		feeds = append(feeds, tensor.ScalarFloat32(r.lossScaler.GetLossScale()))
	}

	if name := r.params.LearningRate.FeedName; r.ctx.AllowedFeed(name) {
		feedNames = append(feedNames, name)
		feeds = append(feeds, tensor.ScalarFloat32(lrScheduler.GetLearningRate(r.step+1)))
	}

	slot := r.ctx.Slot(r.step)
	stage := r.ctx.PipelineStageID
	if r.ctx.ForwardWaitedEventName != "" {
		feedNames = append(feedNames, r.ctx.ForwardWaitedEventName)
		feeds = append(feeds, tensor.ScalarInt64(r.schedule.ForwardWaitedEventID(stage, slot)))
	}
	if r.ctx.ForwardRecordedEventName != "" {
		feedNames = append(feedNames, r.ctx.ForwardRecordedEventName)
		feeds = append(feeds, tensor.ScalarInt64(r.schedule.ForwardRecordedEventID(stage, slot)))
	}
	if r.ctx.BackwardWaitedEventName != "" {
		feedNames = append(feedNames, r.ctx.BackwardWaitedEventName)
		feeds = append(feeds, tensor.ScalarInt64(r.schedule.BackwardWaitedEventID(stage, slot)))
	}
	if r.ctx.BackwardRecordedEventName != "" {
		feedNames = append(feedNames, r.ctx.BackwardRecordedEventName)
		feeds = append(feeds, tensor.ScalarInt64(r.schedule.BackwardRecordedEventID(stage, slot)))
	}

	return feedNames, feeds, nil
}

// prepareFetchNames decides what a step pulls back. Weight updates
// fetch the caller's names plus the finiteness flags; accumulation
// steps fetch the gradient sink and the event pass-throughs so the
// handshake operators always execute. An empty result falls back to
// everything the stage can produce.
func (r *TrainingRunner) prepareFetchNames(isWeightUpdateStep bool) ([]string, error) {
	var fetchNames []string

	if isWeightUpdateStep {
		for _, name := range r.params.FetchNames {
			if r.ctx.AllowedFetch(name) {
				fetchNames = append(fetchNames, name)
			}
		}
		if r.params.UseMixedPrecision {
			name, ok := r.optimizerOutputNames[engine.GradientAllIsFinite]
			if !ok {
				return nil, errors.New("gradient finiteness output is missing from the optimizer outputs")
			}
			fetchNames = append(fetchNames, name)
			if r.params.GradientsAsAllReduce {
				name, ok := r.optimizerOutputNames[engine.DeltaAllIsFinite]
				if !ok {
					return nil, errors.New("update delta finiteness output is missing from the optimizer outputs")
				}
				fetchNames = append(fetchNames, name)
			}
		}
	} else {
		if r.params.GradientAccumulationSteps > 1 {
			name, ok := r.optimizerOutputNames[engine.GradientAccumulation]
			if !ok {
				return nil, errors.New("gradient accumulation output is missing from the optimizer outputs")
			}
			fetchNames = append(fetchNames, name)
		}
		for _, name := range []string{
			r.ctx.ForwardWaitedOutputName,
			r.ctx.ForwardRecordedOutputName,
			r.ctx.BackwardWaitedOutputName,
			r.ctx.BackwardRecordedOutputName,
		} {
			if name != "" {
				fetchNames = append(fetchNames, name)
			}
		}
	}

	if len(fetchNames) == 0 {
		fetchNames = append(fetchNames, r.ctx.FetchNames...)
	}
	return fetchNames, nil
}

// runWithUpdate drains the worker pool, then applies a weight update on
// the calling goroutine with the full graph enabled.
func (r *TrainingRunner) runWithUpdate(feedNames, fetchNames []string, feeds []*tensor.Tensor) error {
	if err := r.workerPool.JoinAll(); err != nil {
		return errors.Wrap(err, "joining pipeline workers before weight update")
	}

	fetches, err := r.session.Run(engine.RunOptions{Tag: "update"}, feedNames, feeds, fetchNames)
	if err != nil {
		return errors.Wrapf(err, "weight update at step %d", r.step)
	}

	allFinite := true
	if r.lossScaler != nil {
		if name, ok := r.optimizerOutputNames[engine.GradientAllIsFinite]; ok {
			if idx := indexOf(fetchNames, name); idx >= 0 {
				if idx >= len(fetches) {
					return errors.Errorf("session returned %d fetches for %d fetch names", len(fetches), len(fetchNames))
				}
				finite, err := fetches[idx].BoolItem()
				if err != nil {
					return errors.Wrap(err, "reading gradient finiteness flag")
				}
				allFinite = finite
				r.lossScaler.UpdateLossScale(allFinite)
			}
		}
	}
	if !allFinite {
		klog.Warningf("Gradients overflowed at step %d, loss scale reduced to %g", r.step, r.lossScaler.GetLossScale())
	}

	if r.ctx.IsLastStage() && !r.params.IsPerfTest &&
		r.weightUpdateStepCount%r.params.DisplayLossSteps == 0 &&
		r.params.Observer != nil {
		r.params.Observer.OnStep(StepResult{
			Step:             r.step,
			WeightUpdateStep: r.weightUpdateStepCount,
			FeedNames:        feedNames,
			Feeds:            feeds,
			FetchNames:       fetchNames,
			Fetches:          fetches,
			AllFinite:        allFinite,
		})
	}

	r.step++
	r.weightUpdateStepCount++
	return nil
}

// runWithoutUpdate overlaps an accumulation step with the other
// in-flight micro-batches by handing it to the step's worker slot.
func (r *TrainingRunner) runWithoutUpdate(feedNames, fetchNames []string, feeds []*tensor.Tensor) error {
	workerID := r.ctx.WorkerID(r.step)
	if err := r.workerPool.Join(workerID); err != nil {
		return errors.Wrapf(err, "pipeline worker %d", workerID)
	}

	st := r.workerPool.State(workerID)
	st.Step = r.step
	st.FeedNames = feedNames
	st.Feeds = feeds
	st.FetchNames = fetchNames
	st.Fetches = nil

	session := r.session
	if err := r.workerPool.Dispatch(workerID, func() error {
		fetches, err := session.Run(
			engine.RunOptions{OnlyExecutePathToFetches: true, Tag: "accumulation"},
			st.FeedNames, st.Feeds, st.FetchNames)
		if err != nil {
			return err
		}
		st.Fetches = fetches
		return nil
	}); err != nil {
		return errors.Wrapf(err, "dispatching to pipeline worker %d", workerID)
	}

	r.step++
	return nil
}

// savePeriodicCheckpoint registers a checkpoint for the current weight
// update count and writes it, evicting the oldest beyond the retention
// limit. A failed eviction is tolerated; a failed save is not.
func (r *TrainingRunner) savePeriodicCheckpoint() error {
	newPath, shouldRemoveOld, oldPath, err := r.registry.Add(r.weightUpdateStepCount)
	if err != nil {
		return errors.Wrap(err, "registering checkpoint")
	}

	if err := os.MkdirAll(r.registry.Dir(), 0755); err != nil {
		return errors.Wrap(err, "creating checkpoint directory")
	}

	if shouldRemoveOld {
		if err := os.RemoveAll(oldPath); err != nil {
			klog.Warningf("Failed to delete old checkpoint %s: %v", oldPath, err)
		}
	}

	if err := r.SaveCheckpoint(newPath); err != nil {
		return err
	}
	klog.Infof("Saved checkpoint %s", newPath)
	return nil
}

// SaveCheckpoint writes the session's trainable state and the loop
// counters to a checkpoint directory.
func (r *TrainingRunner) SaveCheckpoint(path string) error {
	state, err := r.session.GetStateTensors()
	if err != nil {
		return errors.Wrap(err, "reading session state")
	}

	properties := map[string]string{
		checkpoints.PropertyStep:             checkpoints.FormatUint(r.step),
		checkpoints.PropertyRound:            checkpoints.FormatUint(r.round),
		checkpoints.PropertyWeightUpdateStep: checkpoints.FormatUint(r.weightUpdateStepCount),
		checkpoints.PropertyDataSetIndex:     checkpoints.FormatUint(r.trainingDataSetIndex),
	}
	if r.lossScaler != nil {
		properties[checkpoints.PropertyLossScalerState] = r.lossScaler.SaveToString()
	}

	return checkpoints.Save(path, state, properties)
}

// LoadCheckpoint restores session state and loop counters saved by
// SaveCheckpoint. The counters are applied only after every property
// has parsed, so a malformed checkpoint leaves them untouched.
func (r *TrainingRunner) LoadCheckpoint(path string) error {
	state, properties, err := checkpoints.Load(path)
	if err != nil {
		return err
	}

	if err := r.session.SetStateTensors(state); err != nil {
		return errors.Wrap(err, "restoring session state")
	}

	step, err := checkpoints.PropertyUint[uint64](properties, checkpoints.PropertyStep)
	if err != nil {
		return err
	}
	round, err := checkpoints.PropertyUint[uint64](properties, checkpoints.PropertyRound)
	if err != nil {
		return err
	}
	weightUpdateStep, err := checkpoints.PropertyUint[uint64](properties, checkpoints.PropertyWeightUpdateStep)
	if err != nil {
		return err
	}
	dataSetIndex, err := checkpoints.PropertyUint[uint32](properties, checkpoints.PropertyDataSetIndex)
	if err != nil {
		return err
	}

	if r.lossScaler != nil {
		scalerState, err := checkpoints.PropertyString(properties, checkpoints.PropertyLossScalerState)
		if err != nil {
			return err
		}
		if err := r.lossScaler.LoadFromString(scalerState); err != nil {
			return err
		}
	}

	r.step = step
	r.round = round
	r.weightUpdateStepCount = weightUpdateStep
	r.trainingDataSetIndex = dataSetIndex
	return nil
}

// EndTraining finishes a training session on the coordinator rank: a
// final evaluation when the whole model lives in one stage, then the
// trained model saves into OutputDir.
func (r *TrainingRunner) EndTraining(evalLoader DataLoader) error {
	if r.params.WorldRank != 0 {
		klog.V(1).Infof("Skipping end of training on rank %d, not the coordinator", r.params.WorldRank)
		return nil
	}

	if r.params.NumPipelineStages == 1 && evalLoader != nil {
		klog.Info("Evaluating the final model")
		if err := r.evaluator.Evaluate(evalLoader, r.step); err != nil {
			return err
		}
	}

	if r.params.OutputDir == "" {
		klog.Info("No output directory specified, skipping save of trained model")
		return nil
	}
	if err := os.MkdirAll(r.params.OutputDir, 0755); err != nil {
		return errors.Wrap(err, "creating output directory")
	}

	klog.Info("Saving the trained model")
	base := filepath.Base(r.params.ModelPath)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	trainedPath := filepath.Join(r.params.OutputDir, stem+"_trained"+ext)
	if err := r.session.Save(trainedPath, engine.SaveWithUpdatedWeights); err != nil {
		return errors.Wrapf(err, "saving trained model %s", trainedPath)
	}

	withLossPath := filepath.Join(r.params.OutputDir, stem+"_with_cost_trained"+ext)
	if err := r.session.Save(withLossPath, engine.SaveWithUpdatedWeightsAndLossFunc); err != nil {
		return errors.Wrapf(err, "saving trained model %s", withLossPath)
	}
	return nil
}

// UpdateParams adjusts the knobs a later Run is allowed to change
// between training phases. Everything else keeps its original value.
func (r *TrainingRunner) UpdateParams(p Parameters) error {
	if p.BatchSize < 1 {
		return errors.Errorf("batch size must be at least 1, got %d", p.BatchSize)
	}
	if p.NumTrainSteps < 1 {
		return errors.New("number of training steps must be at least 1")
	}
	if p.GradientAccumulationSteps < 1 {
		return errors.Errorf("gradient accumulation steps must be at least 1, got %d", p.GradientAccumulationSteps)
	}
	if p.LearningRate.WarmupRatio < 0 || p.LearningRate.WarmupRatio >= 1 {
		return errors.Errorf("warmup ratio must be in [0, 1), got %g", p.LearningRate.WarmupRatio)
	}
	if r.params.NumPipelineStages > 1 && p.GradientAccumulationSteps != r.params.GradientAccumulationSteps {
		return errors.New("gradient accumulation steps cannot change once the pipeline schedule is built")
	}

	r.params.LearningRate.BaseLearningRate = p.LearningRate.BaseLearningRate
	r.params.LearningRate.WarmupRatio = p.LearningRate.WarmupRatio
	r.params.NumTrainSteps = p.NumTrainSteps
	r.params.BatchSize = p.BatchSize
	r.params.GradientAccumulationSteps = p.GradientAccumulationSteps
	r.ctx.NumGradientAccumulationSteps = p.GradientAccumulationSteps
	return nil
}

// ResetLossScaler restores the loss scale to its initial value.
func (r *TrainingRunner) ResetLossScaler() {
	if r.lossScaler != nil {
		r.lossScaler.Reset()
	}
}

// Cleanup joins any in-flight pipeline workers. Call it when done with
// the runner, especially after an error mid-run.
func (r *TrainingRunner) Cleanup() {
	r.workerPool.Cleanup()
}

func indexOf(names []string, name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	return -1
}
