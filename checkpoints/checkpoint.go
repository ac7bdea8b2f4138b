package checkpoints

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/tsawler/go-training/tensor"
)

const (
	tensorsFileName    = "tensors.json"
	propertiesFileName = "properties.pb"

	bundleVersion = "1.0.0"
)

// WeightTensor is the serialized form of one state tensor. Exactly one
// of the data fields is populated, matching DType.
type WeightTensor struct {
	Name        string    `json:"name"`
	Shape       []int     `json:"shape"`
	DType       string    `json:"dtype"`
	Float32Data []float32 `json:"float32_data,omitempty"`
	Int64Data   []int64   `json:"int64_data,omitempty"`
	BoolData    []bool    `json:"bool_data,omitempty"`
}

// TensorBundle is the tensors.json document inside a checkpoint
// directory.
type TensorBundle struct {
	Version string         `json:"version"`
	SavedAt time.Time      `json:"saved_at"`
	Tensors []WeightTensor `json:"tensors"`
}

func marshalTensor(name string, t *tensor.Tensor) (WeightTensor, error) {
	w := WeightTensor{
		Name:  name,
		Shape: t.Size(),
		DType: t.DType.String(),
	}
	switch t.DType {
	case tensor.Float32:
		data, err := t.GetFloat32Data()
		if err != nil {
			return w, err
		}
		w.Float32Data = data
	case tensor.Int64:
		data, err := t.GetInt64Data()
		if err != nil {
			return w, err
		}
		w.Int64Data = data
	case tensor.Bool:
		data, err := t.GetBoolData()
		if err != nil {
			return w, err
		}
		w.BoolData = data
	default:
		return w, errors.Errorf("unsupported dtype %s for tensor %q", t.DType, name)
	}
	return w, nil
}

func unmarshalTensor(w WeightTensor) (*tensor.Tensor, error) {
	switch w.DType {
	case tensor.Float32.String():
		return tensor.NewTensor(w.Shape, tensor.Float32, w.Float32Data)
	case tensor.Int64.String():
		return tensor.NewTensor(w.Shape, tensor.Int64, w.Int64Data)
	case tensor.Bool.String():
		return tensor.NewTensor(w.Shape, tensor.Bool, w.BoolData)
	default:
		return nil, errors.Errorf("tensor %q has unsupported dtype %q", w.Name, w.DType)
	}
}

// Save writes a checkpoint directory atomically. Everything is staged
// into a uniquely named sibling directory and renamed onto path once
// both files are complete, so a crash mid-save leaves an orphaned
// staging directory rather than a half-written checkpoint. An existing
// checkpoint at path is replaced.
func Save(path string, state map[string]*tensor.Tensor, properties map[string]string) error {
	staging := path + ".tmp-" + uuid.NewString()
	if err := os.MkdirAll(staging, 0755); err != nil {
		return errors.Wrapf(err, "failed to create staging directory %s", staging)
	}

	if err := saveTensors(filepath.Join(staging, tensorsFileName), state); err != nil {
		os.RemoveAll(staging)
		return err
	}
	if err := saveProperties(filepath.Join(staging, propertiesFileName), properties); err != nil {
		os.RemoveAll(staging)
		return err
	}

	if err := os.RemoveAll(path); err != nil {
		os.RemoveAll(staging)
		return errors.Wrapf(err, "failed to remove previous checkpoint %s", path)
	}
	if err := os.Rename(staging, path); err != nil {
		os.RemoveAll(staging)
		return errors.Wrapf(err, "failed to commit checkpoint %s", path)
	}
	return nil
}

// Load reads a checkpoint directory written by Save and returns the
// state tensors and the property map.
func Load(path string) (map[string]*tensor.Tensor, map[string]string, error) {
	state, err := loadTensors(filepath.Join(path, tensorsFileName))
	if err != nil {
		return nil, nil, err
	}
	properties, err := loadProperties(filepath.Join(path, propertiesFileName))
	if err != nil {
		return nil, nil, err
	}
	return state, properties, nil
}

func saveTensors(path string, state map[string]*tensor.Tensor) error {
	names := make([]string, 0, len(state))
	for name := range state {
		names = append(names, name)
	}
	sort.Strings(names)

	bundle := TensorBundle{
		Version: bundleVersion,
		SavedAt: time.Now().UTC(),
		Tensors: make([]WeightTensor, 0, len(names)),
	}
	for _, name := range names {
		w, err := marshalTensor(name, state[name])
		if err != nil {
			return err
		}
		bundle.Tensors = append(bundle.Tensors, w)
	}

	file, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "failed to create tensor bundle")
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(&bundle); err != nil {
		return errors.Wrap(err, "failed to encode tensor bundle")
	}
	return nil
}

func loadTensors(path string) (map[string]*tensor.Tensor, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open tensor bundle")
	}
	defer file.Close()

	var bundle TensorBundle
	if err := json.NewDecoder(file).Decode(&bundle); err != nil {
		return nil, errors.Wrap(err, "failed to decode tensor bundle")
	}

	state := make(map[string]*tensor.Tensor, len(bundle.Tensors))
	for _, w := range bundle.Tensors {
		t, err := unmarshalTensor(w)
		if err != nil {
			return nil, err
		}
		state[w.Name] = t
	}
	return state, nil
}
