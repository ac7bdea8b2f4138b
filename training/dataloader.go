package training

import (
	"math/rand"

	"github.com/pkg/errors"

	"github.com/tsawler/go-training/tensor"
)

// DataSet is one shard of samples. Tensors are row-major with the
// sample count as the first dimension, one tensor per loader tensor
// name, rows aligned across tensors.
type DataSet interface {
	// TotalBatch reports how many batches of batchSize the shard holds,
	// counting a final partial batch.
	TotalBatch(batchSize int) int

	// GetKthBatch cuts batch k out of the shard, one tensor per loader
	// tensor name, in name order.
	GetKthBatch(batchSize, k int) ([]*tensor.Tensor, error)

	// RandomShuffle reorders the shard's samples in place.
	RandomShuffle()
}

// DataLoader walks a ring of shards. CurrentDataSet returns nil for a
// shard that failed to load; the training loop logs and skips it.
type DataLoader interface {
	DataSetTensorNames() []string
	NumShards() int
	CurrentDataSet() DataSet
	CurrentDataSetIndex() int
	InitializeDataSetIndex(index int) error
	MoveToNextDataSet() DataSet
}

// InMemoryDataSet keeps a shard's tensors in memory.
type InMemoryDataSet struct {
	columns []*tensor.Tensor
	numRows int
}

// NewInMemoryDataSet creates a shard from column tensors. All columns
// must agree on the number of rows.
func NewInMemoryDataSet(columns ...*tensor.Tensor) (*InMemoryDataSet, error) {
	if len(columns) == 0 {
		return nil, errors.New("a data set needs at least one column")
	}

	numRows := 0
	for i, col := range columns {
		if col == nil {
			return nil, errors.Errorf("column %d is nil", i)
		}
		if i == 0 {
			numRows = col.Shape[0]
		} else if col.Shape[0] != numRows {
			return nil, errors.Errorf("column %d has %d rows, expected %d", i, col.Shape[0], numRows)
		}
	}

	return &InMemoryDataSet{
		columns: columns,
		numRows: numRows,
	}, nil
}

// NumSamples returns the number of rows in the shard.
func (ds *InMemoryDataSet) NumSamples() int {
	return ds.numRows
}

func (ds *InMemoryDataSet) TotalBatch(batchSize int) int {
	if batchSize < 1 {
		return 0
	}
	return (ds.numRows + batchSize - 1) / batchSize
}

func (ds *InMemoryDataSet) GetKthBatch(batchSize, k int) ([]*tensor.Tensor, error) {
	if batchSize < 1 {
		return nil, errors.Errorf("batch size must be at least 1, got %d", batchSize)
	}
	if total := ds.TotalBatch(batchSize); k < 0 || k >= total {
		return nil, errors.Errorf("batch %d out of range [0, %d)", k, total)
	}

	begin := k * batchSize
	end := begin + batchSize
	if end > ds.numRows {
		end = ds.numRows
	}

	batch := make([]*tensor.Tensor, len(ds.columns))
	for i, col := range ds.columns {
		b, err := col.SliceRows(begin, end)
		if err != nil {
			return nil, errors.Wrapf(err, "slicing column %d", i)
		}
		batch[i] = b
	}
	return batch, nil
}

// RandomShuffle reorders rows with one permutation applied to every
// column, so samples stay aligned.
func (ds *InMemoryDataSet) RandomShuffle() {
	perm := rand.Perm(ds.numRows)
	for i := range ds.columns {
		if shuffled, err := ds.columns[i].GatherRows(perm); err == nil {
			ds.columns[i] = shuffled
		}
	}
}

// InMemoryDataLoader serves a fixed ring of shards. A nil shard stands
// in for one that failed to load.
type InMemoryDataLoader struct {
	tensorNames []string
	shards      []DataSet
	index       int
}

// NewInMemoryDataLoader creates a loader over the given shards. The
// tensor names must match the column order of every shard.
func NewInMemoryDataLoader(tensorNames []string, shards ...DataSet) (*InMemoryDataLoader, error) {
	if len(tensorNames) == 0 {
		return nil, errors.New("a data loader needs at least one tensor name")
	}
	if len(shards) == 0 {
		return nil, errors.New("a data loader needs at least one shard")
	}
	return &InMemoryDataLoader{
		tensorNames: tensorNames,
		shards:      shards,
	}, nil
}

func (dl *InMemoryDataLoader) DataSetTensorNames() []string {
	return dl.tensorNames
}

func (dl *InMemoryDataLoader) NumShards() int {
	return len(dl.shards)
}

func (dl *InMemoryDataLoader) CurrentDataSet() DataSet {
	return dl.shards[dl.index]
}

func (dl *InMemoryDataLoader) CurrentDataSetIndex() int {
	return dl.index
}

func (dl *InMemoryDataLoader) InitializeDataSetIndex(index int) error {
	if index < 0 || index >= len(dl.shards) {
		return errors.Errorf("data set index %d out of range [0, %d)", index, len(dl.shards))
	}
	dl.index = index
	return nil
}

func (dl *InMemoryDataLoader) MoveToNextDataSet() DataSet {
	dl.index = (dl.index + 1) % len(dl.shards)
	return dl.shards[dl.index]
}
