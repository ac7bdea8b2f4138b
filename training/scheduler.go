package training

import (
	"math"

	"github.com/pkg/errors"
)

// WarmupMode selects the learning rate curve: a linear ramp over the
// warmup fraction of training, followed by the mode's decay shape.
type WarmupMode string

const (
	WarmupNone     WarmupMode = "None"
	WarmupConstant WarmupMode = "Constant"
	WarmupLinear   WarmupMode = "Linear"
	WarmupCosine   WarmupMode = "Cosine"
	WarmupPoly     WarmupMode = "Poly"
)

// LearningRateParameters describe the learning rate fed to the
// optimizer each step.
type LearningRateParameters struct {
	BaseLearningRate float32
	// WarmupRatio is the fraction of total steps spent ramping up,
	// in [0, 1).
	WarmupRatio float32
	WarmupMode  WarmupMode
	// FeedName is the graph input the learning rate arrives on.
	FeedName string
}

// LearningRateScheduler computes the learning rate for a training step.
// Steps are 1-based: the first executed step asks for step 1.
type LearningRateScheduler interface {
	GetLearningRate(step uint64) float32

	// GetName returns the scheduler name for logging
	GetName() string
}

// NewLearningRateScheduler builds the scheduler for the given warmup
// mode over a run of totalSteps steps. An empty mode means no warmup.
func NewLearningRateScheduler(params LearningRateParameters, totalSteps uint64) (LearningRateScheduler, error) {
	switch params.WarmupMode {
	case WarmupNone, "":
		return &NoWarmupScheduler{BaseLearningRate: params.BaseLearningRate}, nil
	case WarmupConstant:
		return &ConstantWarmupScheduler{
			BaseLearningRate: params.BaseLearningRate,
			WarmupRatio:      params.WarmupRatio,
			TotalSteps:       totalSteps,
		}, nil
	case WarmupLinear:
		return &LinearWarmupScheduler{
			BaseLearningRate: params.BaseLearningRate,
			WarmupRatio:      params.WarmupRatio,
			TotalSteps:       totalSteps,
		}, nil
	case WarmupCosine:
		return &CosineWarmupScheduler{
			BaseLearningRate: params.BaseLearningRate,
			WarmupRatio:      params.WarmupRatio,
			TotalSteps:       totalSteps,
		}, nil
	case WarmupPoly:
		return &PolyWarmupScheduler{
			BaseLearningRate: params.BaseLearningRate,
			WarmupRatio:      params.WarmupRatio,
			TotalSteps:       totalSteps,
			Degree:           0.5,
		}, nil
	default:
		return nil, errors.Errorf("unknown warmup mode %q", params.WarmupMode)
	}
}

// progress maps a step onto [0, 1] of the training run.
func progress(step, totalSteps uint64) float32 {
	if totalSteps == 0 {
		return 1
	}
	p := float64(step) / float64(totalSteps)
	if p > 1 {
		p = 1
	}
	return float32(p)
}

// NoWarmupScheduler holds the learning rate constant.
type NoWarmupScheduler struct {
	BaseLearningRate float32
}

func (s *NoWarmupScheduler) GetLearningRate(step uint64) float32 {
	return s.BaseLearningRate
}

func (s *NoWarmupScheduler) GetName() string {
	return "None"
}

// ConstantWarmupScheduler ramps linearly to the base rate, then holds
// it for the rest of the run.
type ConstantWarmupScheduler struct {
	BaseLearningRate float32
	WarmupRatio      float32
	TotalSteps       uint64
}

func (s *ConstantWarmupScheduler) GetLearningRate(step uint64) float32 {
	x := progress(step, s.TotalSteps)
	if x < s.WarmupRatio {
		return s.BaseLearningRate * x / s.WarmupRatio
	}
	return s.BaseLearningRate
}

func (s *ConstantWarmupScheduler) GetName() string {
	return "Constant"
}

// LinearWarmupScheduler ramps up, then decays linearly to zero at the
// final step.
type LinearWarmupScheduler struct {
	BaseLearningRate float32
	WarmupRatio      float32
	TotalSteps       uint64
}

func (s *LinearWarmupScheduler) GetLearningRate(step uint64) float32 {
	x := progress(step, s.TotalSteps)
	if x < s.WarmupRatio {
		return s.BaseLearningRate * x / s.WarmupRatio
	}
	decay := (x - 1) / (s.WarmupRatio - 1)
	if decay < 0 {
		decay = 0
	}
	return s.BaseLearningRate * decay
}

func (s *LinearWarmupScheduler) GetName() string {
	return "Linear"
}

// CosineWarmupScheduler ramps up, then follows a half cosine down to
// zero.
type CosineWarmupScheduler struct {
	BaseLearningRate float32
	WarmupRatio      float32
	TotalSteps       uint64
}

func (s *CosineWarmupScheduler) GetLearningRate(step uint64) float32 {
	x := progress(step, s.TotalSteps)
	if x < s.WarmupRatio {
		return s.BaseLearningRate * x / s.WarmupRatio
	}
	return s.BaseLearningRate * float32(0.5*(1+math.Cos(math.Pi*float64(x))))
}

func (s *CosineWarmupScheduler) GetName() string {
	return "Cosine"
}

// PolyWarmupScheduler ramps up, then decays as (1-x)^Degree.
type PolyWarmupScheduler struct {
	BaseLearningRate float32
	WarmupRatio      float32
	TotalSteps       uint64
	Degree           float64
}

func (s *PolyWarmupScheduler) GetLearningRate(step uint64) float32 {
	x := progress(step, s.TotalSteps)
	if x < s.WarmupRatio {
		return s.BaseLearningRate * x / s.WarmupRatio
	}
	return s.BaseLearningRate * float32(math.Pow(float64(1-x), s.Degree))
}

func (s *PolyWarmupScheduler) GetName() string {
	return "Poly"
}
