package training

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// LossScaler tracks the multiplier applied to the loss under mixed
// precision so that small gradients survive the float16 backward pass.
// A static scaler holds its value forever; a dynamic scaler halves on
// overflow and doubles after a window of clean steps.
type LossScaler struct {
	// LossScaleInputName is the graph input the scale is fed on.
	LossScaleInputName string
	IsDynamic          bool

	// UpScaleWindow is how many consecutive all-finite updates trigger a
	// doubling. MinScale and MaxScale clamp the dynamic range.
	UpScaleWindow uint64
	MinScale      float32
	MaxScale      float32

	initialScale    float32
	scale           float32
	stableStepCount uint64
}

// NewLossScaler creates a scaler feeding lossScaleInputName. An
// initialScale of zero or less selects the dynamic default of 1<<16.
func NewLossScaler(lossScaleInputName string, isDynamic bool, initialScale float32) *LossScaler {
	if initialScale <= 0 {
		initialScale = float32(1 << 16)
	}
	return &LossScaler{
		LossScaleInputName: lossScaleInputName,
		IsDynamic:          isDynamic,
		UpScaleWindow:      2000,
		MinScale:           1,
		MaxScale:           float32(1 << 24),
		initialScale:       initialScale,
		scale:              initialScale,
	}
}

// GetLossScale returns the scale to feed on the next step.
func (ls *LossScaler) GetLossScale() float32 {
	return ls.scale
}

// UpdateLossScale folds one weight update's all-finite flag into the
// scale. Overflow halves the scale immediately and resets the clean
// streak; UpScaleWindow consecutive clean updates double it.
func (ls *LossScaler) UpdateLossScale(allFinite bool) {
	if !ls.IsDynamic {
		return
	}

	if allFinite {
		ls.stableStepCount++
		if ls.stableStepCount >= ls.UpScaleWindow {
			doubled := ls.scale * 2
			if doubled > ls.MaxScale {
				doubled = ls.MaxScale
			}
			ls.scale = doubled
			ls.stableStepCount = 0
		}
	} else {
		halved := ls.scale / 2
		if halved < ls.MinScale {
			halved = ls.MinScale
		}
		ls.scale = halved
		ls.stableStepCount = 0
	}
}

// Reset restores the initial scale and clears the clean streak.
func (ls *LossScaler) Reset() {
	ls.scale = ls.initialScale
	ls.stableStepCount = 0
}

// SaveToString serializes the mutable state as "<scale> <streak>" for
// the checkpoint property map.
func (ls *LossScaler) SaveToString() string {
	return strconv.FormatFloat(float64(ls.scale), 'g', -1, 32) +
		" " + strconv.FormatUint(ls.stableStepCount, 10)
}

// LoadFromString restores state produced by SaveToString.
func (ls *LossScaler) LoadFromString(s string) error {
	fields := strings.Fields(s)
	if len(fields) != 2 {
		return errors.Errorf("malformed loss scaler state %q", s)
	}

	scale, err := strconv.ParseFloat(fields[0], 32)
	if err != nil {
		return errors.Wrapf(err, "malformed loss scale in %q", s)
	}
	count, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return errors.Wrapf(err, "malformed stable step count in %q", s)
	}

	ls.scale = float32(scale)
	ls.stableStepCount = count
	return nil
}
