package training

import (
	"math"
	"testing"
)

func almostEqual(a, b float32) bool {
	return math.Abs(float64(a)-float64(b)) < 1e-6
}

func TestNewLearningRateScheduler(t *testing.T) {
	tests := []struct {
		mode     WarmupMode
		wantName string
	}{
		{"", "None"},
		{WarmupNone, "None"},
		{WarmupConstant, "Constant"},
		{WarmupLinear, "Linear"},
		{WarmupCosine, "Cosine"},
		{WarmupPoly, "Poly"},
	}

	for _, tt := range tests {
		s, err := NewLearningRateScheduler(LearningRateParameters{
			BaseLearningRate: 0.01,
			WarmupRatio:      0.1,
			WarmupMode:       tt.mode,
		}, 100)
		if err != nil {
			t.Fatalf("Mode %q: unexpected error: %v", tt.mode, err)
		}
		if s.GetName() != tt.wantName {
			t.Errorf("Mode %q: expected name %s, got %s", tt.mode, tt.wantName, s.GetName())
		}
	}

	if _, err := NewLearningRateScheduler(LearningRateParameters{WarmupMode: "Sawtooth"}, 100); err == nil {
		t.Error("Expected an error for an unknown warmup mode")
	}
}

func TestWarmupRampIsSharedAcrossModes(t *testing.T) {
	modes := []WarmupMode{WarmupConstant, WarmupLinear, WarmupCosine, WarmupPoly}

	for _, mode := range modes {
		s, err := NewLearningRateScheduler(LearningRateParameters{
			BaseLearningRate: 0.2,
			WarmupRatio:      0.5,
			WarmupMode:       mode,
		}, 10)
		if err != nil {
			t.Fatalf("Mode %q: unexpected error: %v", mode, err)
		}

		if lr := s.GetLearningRate(1); !almostEqual(lr, 0.04) {
			t.Errorf("Mode %q step 1: expected 0.04, got %g", mode, lr)
		}
		if lr := s.GetLearningRate(4); !almostEqual(lr, 0.16) {
			t.Errorf("Mode %q step 4: expected 0.16, got %g", mode, lr)
		}
	}
}

func TestNoWarmupScheduler(t *testing.T) {
	s, err := NewLearningRateScheduler(LearningRateParameters{
		BaseLearningRate: 0.003,
		WarmupMode:       WarmupNone,
	}, 50)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	for _, step := range []uint64{1, 10, 50, 500} {
		if lr := s.GetLearningRate(step); !almostEqual(lr, 0.003) {
			t.Errorf("Step %d: expected constant 0.003, got %g", step, lr)
		}
	}
}

func TestConstantWarmupScheduler(t *testing.T) {
	s, err := NewLearningRateScheduler(LearningRateParameters{
		BaseLearningRate: 0.1,
		WarmupRatio:      0.2,
		WarmupMode:       WarmupConstant,
	}, 100)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	tests := []struct {
		step uint64
		want float32
	}{
		{10, 0.05}, // halfway through warmup
		{20, 0.1},  // warmup boundary reaches the base rate
		{50, 0.1},
		{100, 0.1},
		{200, 0.1}, // progress clamps at the end of the run
	}
	for _, tt := range tests {
		if lr := s.GetLearningRate(tt.step); !almostEqual(lr, tt.want) {
			t.Errorf("Step %d: expected %g, got %g", tt.step, tt.want, lr)
		}
	}
}

func TestLinearWarmupScheduler(t *testing.T) {
	s, err := NewLearningRateScheduler(LearningRateParameters{
		BaseLearningRate: 1,
		WarmupRatio:      0.5,
		WarmupMode:       WarmupLinear,
	}, 10)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	tests := []struct {
		step uint64
		want float32
	}{
		{1, 0.2},
		{5, 1},   // peak at the warmup boundary
		{7, 0.6}, // linear decay toward zero
		{10, 0},
		{20, 0},
	}
	for _, tt := range tests {
		if lr := s.GetLearningRate(tt.step); !almostEqual(lr, tt.want) {
			t.Errorf("Step %d: expected %g, got %g", tt.step, tt.want, lr)
		}
	}
}

func TestCosineWarmupScheduler(t *testing.T) {
	s, err := NewLearningRateScheduler(LearningRateParameters{
		BaseLearningRate: 2,
		WarmupRatio:      0,
		WarmupMode:       WarmupCosine,
	}, 4)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	tests := []struct {
		step uint64
		want float32
	}{
		{0, 2}, // cos(0) holds the full base rate
		{2, 1}, // halfway down the half cosine
		{4, 0},
	}
	for _, tt := range tests {
		if lr := s.GetLearningRate(tt.step); !almostEqual(lr, tt.want) {
			t.Errorf("Step %d: expected %g, got %g", tt.step, tt.want, lr)
		}
	}
}

func TestPolyWarmupScheduler(t *testing.T) {
	s, err := NewLearningRateScheduler(LearningRateParameters{
		BaseLearningRate: 1,
		WarmupRatio:      0,
		WarmupMode:       WarmupPoly,
	}, 4)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if poly, ok := s.(*PolyWarmupScheduler); !ok || poly.Degree != 0.5 {
		t.Fatalf("Expected a PolyWarmupScheduler with degree 0.5, got %#v", s)
	}

	tests := []struct {
		step uint64
		want float32
	}{
		{2, float32(math.Sqrt(0.5))},
		{3, 0.5},
		{4, 0},
	}
	for _, tt := range tests {
		if lr := s.GetLearningRate(tt.step); !almostEqual(lr, tt.want) {
			t.Errorf("Step %d: expected %g, got %g", tt.step, tt.want, lr)
		}
	}
}

func TestLearningRateDecaysMonotonicallyAfterWarmup(t *testing.T) {
	modes := []WarmupMode{WarmupLinear, WarmupCosine, WarmupPoly}

	for _, mode := range modes {
		s, err := NewLearningRateScheduler(LearningRateParameters{
			BaseLearningRate: 0.5,
			WarmupRatio:      0.1,
			WarmupMode:       mode,
		}, 1000)
		if err != nil {
			t.Fatalf("Mode %q: unexpected error: %v", mode, err)
		}

		prev := s.GetLearningRate(100)
		for step := uint64(101); step <= 1000; step += 50 {
			lr := s.GetLearningRate(step)
			if lr > prev {
				t.Errorf("Mode %q: learning rate rose from %g to %g at step %d", mode, prev, lr, step)
			}
			prev = lr
		}
	}
}
