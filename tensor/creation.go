package tensor

import (
	"fmt"
)

func NewTensor(shape []int, dtype DType, data interface{}) (*Tensor, error) {
	if err := validateShape(shape); err != nil {
		return nil, err
	}

	numElems := calculateNumElements(shape)

	t := &Tensor{
		Shape:    shape,
		DType:    dtype,
		NumElems: numElems,
	}

	if data != nil {
		if err := t.setData(data); err != nil {
			return nil, err
		}
	}

	return t, nil
}

func (t *Tensor) setData(data interface{}) error {
	switch t.DType {
	case Float32:
		switch d := data.(type) {
		case []float32:
			if len(d) != t.NumElems {
				return fmt.Errorf("data length %d does not match tensor size %d", len(d), t.NumElems)
			}
			t.Data = d
		case float32:
			slice := make([]float32, t.NumElems)
			for i := range slice {
				slice[i] = d
			}
			t.Data = slice
		default:
			return fmt.Errorf("unsupported data type for Float32 tensor: %T", data)
		}
	case Int64:
		switch d := data.(type) {
		case []int64:
			if len(d) != t.NumElems {
				return fmt.Errorf("data length %d does not match tensor size %d", len(d), t.NumElems)
			}
			t.Data = d
		case int64:
			slice := make([]int64, t.NumElems)
			for i := range slice {
				slice[i] = d
			}
			t.Data = slice
		default:
			return fmt.Errorf("unsupported data type for Int64 tensor: %T", data)
		}
	case Bool:
		switch d := data.(type) {
		case []bool:
			if len(d) != t.NumElems {
				return fmt.Errorf("data length %d does not match tensor size %d", len(d), t.NumElems)
			}
			t.Data = d
		case bool:
			slice := make([]bool, t.NumElems)
			for i := range slice {
				slice[i] = d
			}
			t.Data = slice
		default:
			return fmt.Errorf("unsupported data type for Bool tensor: %T", data)
		}
	default:
		return fmt.Errorf("unsupported dtype: %s", t.DType)
	}
	return nil
}

func Zeros(shape []int, dtype DType) (*Tensor, error) {
	if err := validateShape(shape); err != nil {
		return nil, err
	}

	numElems := calculateNumElements(shape)

	var data interface{}
	switch dtype {
	case Float32:
		data = make([]float32, numElems)
	case Int64:
		data = make([]int64, numElems)
	case Bool:
		data = make([]bool, numElems)
	default:
		return nil, fmt.Errorf("unsupported dtype for Zeros: %s", dtype)
	}

	return NewTensor(shape, dtype, data)
}

// ScalarFloat32 wraps a single value as a one-element tensor, the form
// the engine expects for loss-scale and learning-rate feeds.
func ScalarFloat32(v float32) *Tensor {
	t, _ := NewTensor([]int{1}, Float32, []float32{v})
	return t
}

// ScalarInt64 wraps a single value as a one-element tensor, the form
// the engine expects for event-id feeds.
func ScalarInt64(v int64) *Tensor {
	t, _ := NewTensor([]int{1}, Int64, []int64{v})
	return t
}

func ScalarBool(v bool) *Tensor {
	t, _ := NewTensor([]int{1}, Bool, []bool{v})
	return t
}
