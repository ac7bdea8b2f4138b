package training

import (
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/tsawler/go-training/engine"
	"github.com/tsawler/go-training/tensor"
)

// Evaluator drives evaluation passes over a test loader. It keeps its
// batch position across passes, so successive evaluations walk forward
// through the data instead of rereading the head of the shard.
type Evaluator struct {
	params  *Parameters
	session engine.Session
	scaler  *LossScaler

	currentBatch int
}

// NewEvaluator creates an evaluator sharing the runner's session. The
// scaler is nil when training runs in full precision.
func NewEvaluator(params *Parameters, session engine.Session, scaler *LossScaler) *Evaluator {
	return &Evaluator{
		params:  params,
		session: session,
		scaler:  scaler,
	}
}

// Evaluate runs one pass of EvalBatchSize examples, split into
// BatchSize micro-batches. Only the coordinator rank evaluates. step
// tags the pass for the Observer.
func (e *Evaluator) Evaluate(loader DataLoader, step uint64) error {
	if e.params.SkipEvaluation {
		klog.Info("Skipping evaluation")
		return nil
	}
	if e.params.WorldRank != 0 {
		klog.V(1).Infof("Skipping evaluation on rank %d, not the coordinator", e.params.WorldRank)
		return nil
	}

	feedNames := append([]string{}, loader.DataSetTensorNames()...)
	if e.scaler != nil {
		feedNames = append(feedNames, e.scaler.LossScaleInputName)
	}
	feedNames = append(feedNames, e.params.LearningRate.FeedName)

	testData := loader.CurrentDataSet()
	if testData == nil {
		klog.Warningf("Skipping evaluation, data set %d failed to load", loader.CurrentDataSetIndex())
		return nil
	}

	if e.params.ShuffleData && e.currentBatch == 0 {
		klog.Info("Randomly shuffling evaluation data")
		testData.RandomShuffle()
	}

	evalBatchSize := e.params.EvalBatchSize
	numBatches := (evalBatchSize + e.params.BatchSize - 1) / e.params.BatchSize
	if evalBatchSize%e.params.BatchSize != 0 {
		klog.Warningf("Eval batch size %d is not a multiple of batch size %d, evaluating %d examples instead",
			evalBatchSize, e.params.BatchSize, numBatches*e.params.BatchSize)
	}

	opts := engine.RunOptions{OnlyExecutePathToFetches: true, Tag: "evaluation"}
	for batchIdx := 0; batchIdx < numBatches; batchIdx++ {
		feeds, err := testData.GetKthBatch(e.params.BatchSize, e.currentBatch)
		if err != nil {
			return errors.Wrapf(err, "reading evaluation batch %d", e.currentBatch)
		}
		if e.scaler != nil {
			feeds = append(feeds, tensor.ScalarFloat32(e.scaler.GetLossScale()))
		}
		feeds = append(feeds, tensor.ScalarFloat32(e.params.LearningRate.BaseLearningRate))

		fetches, err := e.session.Run(opts, feedNames, feeds, e.params.FetchNames)
		if err != nil {
			return errors.Wrap(err, "evaluation run failed")
		}

		if e.params.Observer != nil {
			e.params.Observer.OnEvaluationBatch(EvaluationBatch{
				Step:       step,
				FeedNames:  feedNames,
				Feeds:      feeds,
				FetchNames: e.params.FetchNames,
				Fetches:    fetches,
			})
		}

		e.currentBatch++
		if e.currentBatch >= testData.TotalBatch(e.params.BatchSize) {
			testData = loader.MoveToNextDataSet()
			e.currentBatch = 0
			if testData == nil {
				klog.Warningf("Stopping evaluation early, data set %d failed to load", loader.CurrentDataSetIndex())
				break
			}
		}
	}

	if e.params.Observer != nil {
		e.params.Observer.OnEvaluationEnd(evalBatchSize, step, "test")
	}
	return nil
}
