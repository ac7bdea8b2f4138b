package tensor

import (
	"fmt"
)

func (t *Tensor) Clone() (*Tensor, error) {
	clone := &Tensor{
		Shape:    make([]int, len(t.Shape)),
		DType:    t.DType,
		NumElems: t.NumElems,
	}

	copy(clone.Shape, t.Shape)

	if t.Data == nil {
		return nil, fmt.Errorf("tensor has nil data")
	}

	switch t.DType {
	case Float32:
		data := t.Data.([]float32)
		cloneData := make([]float32, len(data))
		copy(cloneData, data)
		clone.Data = cloneData
	case Int64:
		data := t.Data.([]int64)
		cloneData := make([]int64, len(data))
		copy(cloneData, data)
		clone.Data = cloneData
	case Bool:
		data := t.Data.([]bool)
		cloneData := make([]bool, len(data))
		copy(cloneData, data)
		clone.Data = cloneData
	default:
		return nil, fmt.Errorf("unsupported dtype for Clone: %s", t.DType)
	}

	return clone, nil
}

func (t *Tensor) GetFloat32Data() ([]float32, error) {
	if t.DType != Float32 {
		return nil, fmt.Errorf("tensor dtype is %s, not Float32", t.DType)
	}
	return t.Data.([]float32), nil
}

func (t *Tensor) GetInt64Data() ([]int64, error) {
	if t.DType != Int64 {
		return nil, fmt.Errorf("tensor dtype is %s, not Int64", t.DType)
	}
	return t.Data.([]int64), nil
}

func (t *Tensor) GetBoolData() ([]bool, error) {
	if t.DType != Bool {
		return nil, fmt.Errorf("tensor dtype is %s, not Bool", t.DType)
	}
	return t.Data.([]bool), nil
}

func (t *Tensor) Item() (interface{}, error) {
	if t.NumElems != 1 {
		return nil, fmt.Errorf("item() can only be called on tensors with exactly one element, got %d", t.NumElems)
	}

	switch t.DType {
	case Float32:
		return t.Data.([]float32)[0], nil
	case Int64:
		return t.Data.([]int64)[0], nil
	case Bool:
		return t.Data.([]bool)[0], nil
	default:
		return nil, fmt.Errorf("unsupported dtype for Item: %s", t.DType)
	}
}

func (t *Tensor) Float32Item() (float32, error) {
	if t.NumElems != 1 {
		return 0, fmt.Errorf("expected a one-element tensor, got %d elements", t.NumElems)
	}
	data, err := t.GetFloat32Data()
	if err != nil {
		return 0, err
	}
	return data[0], nil
}

func (t *Tensor) Int64Item() (int64, error) {
	if t.NumElems != 1 {
		return 0, fmt.Errorf("expected a one-element tensor, got %d elements", t.NumElems)
	}
	data, err := t.GetInt64Data()
	if err != nil {
		return 0, err
	}
	return data[0], nil
}

func (t *Tensor) BoolItem() (bool, error) {
	if t.NumElems != 1 {
		return false, fmt.Errorf("expected a one-element tensor, got %d elements", t.NumElems)
	}
	data, err := t.GetBoolData()
	if err != nil {
		return false, err
	}
	return data[0], nil
}

func (t *Tensor) Size() []int {
	result := make([]int, len(t.Shape))
	copy(result, t.Shape)
	return result
}

func (t *Tensor) Numel() int {
	return t.NumElems
}

func (t *Tensor) Dim() int {
	return len(t.Shape)
}

func (t *Tensor) Equal(other *Tensor) (bool, error) {
	if t.DType != other.DType {
		return false, nil
	}

	if len(t.Shape) != len(other.Shape) {
		return false, nil
	}

	for i, dim := range t.Shape {
		if dim != other.Shape[i] {
			return false, nil
		}
	}

	switch t.DType {
	case Float32:
		data1 := t.Data.([]float32)
		data2 := other.Data.([]float32)
		for i := 0; i < t.NumElems; i++ {
			if data1[i] != data2[i] {
				return false, nil
			}
		}
	case Int64:
		data1 := t.Data.([]int64)
		data2 := other.Data.([]int64)
		for i := 0; i < t.NumElems; i++ {
			if data1[i] != data2[i] {
				return false, nil
			}
		}
	case Bool:
		data1 := t.Data.([]bool)
		data2 := other.Data.([]bool)
		for i := 0; i < t.NumElems; i++ {
			if data1[i] != data2[i] {
				return false, nil
			}
		}
	default:
		return false, fmt.Errorf("unsupported dtype for Equal: %s", t.DType)
	}

	return true, nil
}

// SliceRows returns a copy of rows [begin, end) along the first
// dimension. Used to cut per-batch views out of a shard-sized tensor.
func (t *Tensor) SliceRows(begin, end int) (*Tensor, error) {
	if len(t.Shape) == 0 {
		return nil, fmt.Errorf("cannot slice a tensor with no dimensions")
	}
	if begin < 0 || end > t.Shape[0] || begin >= end {
		return nil, fmt.Errorf("invalid row range [%d, %d) for dimension of size %d", begin, end, t.Shape[0])
	}

	rowElems := t.NumElems / t.Shape[0]
	newShape := make([]int, len(t.Shape))
	copy(newShape, t.Shape)
	newShape[0] = end - begin

	switch t.DType {
	case Float32:
		data := t.Data.([]float32)
		out := make([]float32, (end-begin)*rowElems)
		copy(out, data[begin*rowElems:end*rowElems])
		return NewTensor(newShape, t.DType, out)
	case Int64:
		data := t.Data.([]int64)
		out := make([]int64, (end-begin)*rowElems)
		copy(out, data[begin*rowElems:end*rowElems])
		return NewTensor(newShape, t.DType, out)
	case Bool:
		data := t.Data.([]bool)
		out := make([]bool, (end-begin)*rowElems)
		copy(out, data[begin*rowElems:end*rowElems])
		return NewTensor(newShape, t.DType, out)
	default:
		return nil, fmt.Errorf("unsupported dtype for SliceRows: %s", t.DType)
	}
}

// GatherRows returns a copy with rows picked from the first dimension
// in the given order. Reordering several tensors with the same index
// slice keeps their rows aligned, which is how a data set shuffles its
// columns together.
func (t *Tensor) GatherRows(indices []int) (*Tensor, error) {
	if len(t.Shape) == 0 {
		return nil, fmt.Errorf("cannot gather from a tensor with no dimensions")
	}
	for _, idx := range indices {
		if idx < 0 || idx >= t.Shape[0] {
			return nil, fmt.Errorf("row index %d out of range [0, %d)", idx, t.Shape[0])
		}
	}

	rowElems := t.NumElems / t.Shape[0]
	newShape := make([]int, len(t.Shape))
	copy(newShape, t.Shape)
	newShape[0] = len(indices)

	switch t.DType {
	case Float32:
		data := t.Data.([]float32)
		out := make([]float32, len(indices)*rowElems)
		for i, idx := range indices {
			copy(out[i*rowElems:(i+1)*rowElems], data[idx*rowElems:(idx+1)*rowElems])
		}
		return NewTensor(newShape, t.DType, out)
	case Int64:
		data := t.Data.([]int64)
		out := make([]int64, len(indices)*rowElems)
		for i, idx := range indices {
			copy(out[i*rowElems:(i+1)*rowElems], data[idx*rowElems:(idx+1)*rowElems])
		}
		return NewTensor(newShape, t.DType, out)
	case Bool:
		data := t.Data.([]bool)
		out := make([]bool, len(indices)*rowElems)
		for i, idx := range indices {
			copy(out[i*rowElems:(i+1)*rowElems], data[idx*rowElems:(idx+1)*rowElems])
		}
		return NewTensor(newShape, t.DType, out)
	default:
		return nil, fmt.Errorf("unsupported dtype for GatherRows: %s", t.DType)
	}
}
