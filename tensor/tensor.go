package tensor

import (
	"fmt"
)

type DType int

const (
	Float32 DType = iota
	Int64
	Bool
)

func (d DType) String() string {
	switch d {
	case Float32:
		return "Float32"
	case Int64:
		return "Int64"
	case Bool:
		return "Bool"
	default:
		return "Unknown"
	}
}

// Tensor is a host-resident named-value payload exchanged with the
// execution engine. Data is one of []float32, []int64, []bool with
// row-major layout.
type Tensor struct {
	Shape    []int
	DType    DType
	Data     interface{}
	NumElems int
}

func (t *Tensor) String() string {
	return fmt.Sprintf("Tensor(shape=%v, dtype=%s, elements=%d)",
		t.Shape, t.DType, t.NumElems)
}

func calculateNumElements(shape []int) int {
	elements := 1
	for _, dim := range shape {
		elements *= dim
	}
	return elements
}

func validateShape(shape []int) error {
	if len(shape) == 0 {
		return fmt.Errorf("invalid shape: must have at least one dimension")
	}
	for i, dim := range shape {
		if dim <= 0 {
			return fmt.Errorf("invalid shape: dimension %d has size %d, must be positive", i, dim)
		}
	}
	return nil
}
