package pipeline

import (
	"fmt"
)

// Each (stage, slot) cell owns four event ids: forward waited, forward
// recorded, backward waited, backward recorded.
const eventsPerCell = 4

const (
	forwardWaitedOffset = iota
	forwardRecordedOffset
	backwardWaitedOffset
	backwardRecordedOffset
)

// Schedule assigns the event ids that sequence micro-batches through
// the pipeline. Ids are a pure function of (stage, slot): querying the
// same cell always yields the same ids, and no two cells share an id,
// so a stage can never wait on or record an event belonging to another
// stage's in-flight micro-batch.
type Schedule struct {
	numStages int
	numSlots  int
}

// NewSchedule builds the id assignment for numStages pipeline stages
// with numSlots micro-batch slots per stage (the gradient accumulation
// window).
func NewSchedule(numStages, numSlots int) (*Schedule, error) {
	if numStages < 1 {
		return nil, fmt.Errorf("numStages must be at least 1, got %d", numStages)
	}
	if numSlots < 1 {
		return nil, fmt.Errorf("numSlots must be at least 1, got %d", numSlots)
	}
	return &Schedule{
		numStages: numStages,
		numSlots:  numSlots,
	}, nil
}

func (s *Schedule) NumStages() int {
	return s.numStages
}

func (s *Schedule) NumSlots() int {
	return s.numSlots
}

func (s *Schedule) cellBase(stage, slot int) int64 {
	if stage < 0 || stage >= s.numStages {
		panic(fmt.Sprintf("pipeline: stage %d out of range [0, %d)", stage, s.numStages))
	}
	if slot < 0 || slot >= s.numSlots {
		panic(fmt.Sprintf("pipeline: slot %d out of range [0, %d)", slot, s.numSlots))
	}
	return int64(slot*s.numStages+stage) * eventsPerCell
}

// ForwardWaitedEventID is the event the stage must see recorded before
// running the slot's forward pass.
func (s *Schedule) ForwardWaitedEventID(stage, slot int) int64 {
	return s.cellBase(stage, slot) + forwardWaitedOffset
}

// ForwardRecordedEventID is the event the stage records when the slot's
// forward pass completes.
func (s *Schedule) ForwardRecordedEventID(stage, slot int) int64 {
	return s.cellBase(stage, slot) + forwardRecordedOffset
}

// BackwardWaitedEventID is the event the stage must see recorded before
// running the slot's backward pass.
func (s *Schedule) BackwardWaitedEventID(stage, slot int) int64 {
	return s.cellBase(stage, slot) + backwardWaitedOffset
}

// BackwardRecordedEventID is the event the stage records when the
// slot's backward pass completes.
func (s *Schedule) BackwardRecordedEventID(stage, slot int) int64 {
	return s.cellBase(stage, slot) + backwardRecordedOffset
}
