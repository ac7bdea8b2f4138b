package training

import (
	"time"
)

// stabilizedWindow is how many trailing steps feed the stabilized
// throughput figure, once warmup noise has settled.
const stabilizedWindow = 128

// runStats accumulates wall-clock timing over one training loop.
type runStats struct {
	batchSize       int
	stabilizedStart uint64

	steps           uint64
	totalTime       time.Duration
	stabilizedSteps uint64
	stabilizedTime  time.Duration
}

func newRunStats(batchSize int, numTrainSteps uint64) *runStats {
	window := uint64(stabilizedWindow)
	if numTrainSteps < window {
		window = numTrainSteps
	}
	return &runStats{
		batchSize:       batchSize,
		stabilizedStart: numTrainSteps - window,
	}
}

// record adds one step's wall time. step is the counter value after the
// step completed.
func (s *runStats) record(step uint64, elapsed time.Duration) {
	s.steps++
	s.totalTime += elapsed
	if step >= s.stabilizedStart {
		s.stabilizedSteps++
		s.stabilizedTime += elapsed
	}
}

// throughput is examples per second over everything recorded so far.
func (s *runStats) throughput() float64 {
	if s.totalTime <= 0 {
		return 0
	}
	return float64(s.batchSize) * float64(s.steps) / s.totalTime.Seconds()
}

// stabilizedThroughput is examples per second over the trailing window.
func (s *runStats) stabilizedThroughput() float64 {
	if s.stabilizedTime <= 0 || s.stabilizedSteps == 0 {
		return 0
	}
	return float64(s.batchSize) / (s.stabilizedTime.Seconds() / float64(s.stabilizedSteps))
}

func (s *runStats) averageStepTime() time.Duration {
	if s.steps == 0 {
		return 0
	}
	return s.totalTime / time.Duration(s.steps)
}
