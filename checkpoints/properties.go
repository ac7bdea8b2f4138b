package checkpoints

import (
	"os"
	"strconv"

	"github.com/pkg/errors"
	"golang.org/x/exp/constraints"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Well-known property names stored beside the state tensors. Every
// checkpoint carries the counter properties; the loss-scaler state is
// present only when mixed precision is active.
const (
	PropertyStep             = "step"
	PropertyRound            = "round"
	PropertyWeightUpdateStep = "weight_update_step"
	PropertyDataSetIndex     = "training_data_set_index"
	PropertyLossScalerState  = "loss_scaler_state"
)

func saveProperties(path string, properties map[string]string) error {
	fields := make(map[string]interface{}, len(properties))
	for name, value := range properties {
		fields[name] = value
	}

	s, err := structpb.NewStruct(fields)
	if err != nil {
		return errors.Wrap(err, "failed to build property struct")
	}
	data, err := proto.Marshal(s)
	if err != nil {
		return errors.Wrap(err, "failed to marshal properties")
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrap(err, "failed to write properties")
	}
	return nil
}

func loadProperties(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read properties")
	}

	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal properties")
	}

	properties := make(map[string]string, len(s.Fields))
	for name, value := range s.Fields {
		sv, ok := value.Kind.(*structpb.Value_StringValue)
		if !ok {
			return nil, errors.Errorf("property %q is not a string", name)
		}
		properties[name] = sv.StringValue
	}
	return properties, nil
}

// PropertyString returns a required string property.
func PropertyString(properties map[string]string, name string) (string, error) {
	value, ok := properties[name]
	if !ok {
		return "", errors.Errorf("checkpoint is missing required property %q", name)
	}
	return value, nil
}

// PropertyUint parses a required unsigned-counter property into the
// caller's width.
func PropertyUint[T constraints.Unsigned](properties map[string]string, name string) (T, error) {
	raw, ok := properties[name]
	if !ok {
		return 0, errors.Errorf("checkpoint is missing required property %q", name)
	}
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "checkpoint property %q has invalid value %q", name, raw)
	}
	return T(value), nil
}

// FormatUint renders a counter for storage in the property map.
func FormatUint[T constraints.Unsigned](value T) string {
	return strconv.FormatUint(uint64(value), 10)
}
