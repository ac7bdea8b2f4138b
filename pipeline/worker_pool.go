package pipeline

import (
	"fmt"
	"sync"

	"github.com/tsawler/go-training/tensor"
)

// SlotState records the in-flight step a worker slot is running: what
// was fed, what was asked for, and what came back. Feeds and fetch
// names are written by the dispatching goroutine before Dispatch;
// fetches are written by the worker before it signals completion.
type SlotState struct {
	Step       uint64
	FeedNames  []string
	Feeds      []*tensor.Tensor
	FetchNames []string
	Fetches    []*tensor.Tensor
}

type workerSlot struct {
	busy  bool
	done  chan struct{}
	err   error
	state SlotState
}

// WorkerPool runs one graph execution per pipeline stage concurrently.
// Slot k is reused for every step with step mod numSlots == k, so
// dispatching to a slot first waits out its previous occupant. An error
// from a dispatched run is captured in the slot and returned by the
// next Join (or Dispatch, which joins first) on that slot.
//
// The pool is driven from a single goroutine; only the dispatched run
// functions execute concurrently.
type WorkerPool struct {
	slots  []workerSlot
	mutex  sync.Mutex
	closed bool
}

func NewWorkerPool(numSlots int) (*WorkerPool, error) {
	if numSlots < 1 {
		return nil, fmt.Errorf("numSlots must be at least 1, got %d", numSlots)
	}
	return &WorkerPool{
		slots: make([]workerSlot, numSlots),
	}, nil
}

func (p *WorkerPool) NumSlots() int {
	return len(p.slots)
}

// State exposes a slot's bookkeeping. Call only while the slot is idle
// (before Dispatch or after Join); the worker goroutine owns it in
// between.
func (p *WorkerPool) State(slot int) *SlotState {
	return &p.slots[slot].state
}

func (p *WorkerPool) checkSlot(slot int) error {
	if slot < 0 || slot >= len(p.slots) {
		return fmt.Errorf("worker slot %d out of range [0, %d)", slot, len(p.slots))
	}
	return nil
}

// Dispatch joins the slot's previous occupant, then launches run on a
// fresh goroutine. A deferred error from the previous occupant is
// returned here and the new run is not started.
func (p *WorkerPool) Dispatch(slot int, run func() error) error {
	if err := p.checkSlot(slot); err != nil {
		return err
	}
	if err := p.Join(slot); err != nil {
		return err
	}

	p.mutex.Lock()
	if p.closed {
		p.mutex.Unlock()
		return fmt.Errorf("worker pool has been cleaned up")
	}
	s := &p.slots[slot]
	s.busy = true
	s.done = make(chan struct{})
	done := s.done
	p.mutex.Unlock()

	go func() {
		err := run()
		p.mutex.Lock()
		s.err = err
		s.busy = false
		p.mutex.Unlock()
		close(done)
	}()

	return nil
}

// Join waits for the slot's in-flight run, if any, and returns the
// captured error from the most recent run exactly once. Joining an idle
// slot with no pending error returns nil immediately.
func (p *WorkerPool) Join(slot int) error {
	if err := p.checkSlot(slot); err != nil {
		return err
	}

	p.mutex.Lock()
	s := &p.slots[slot]
	done := s.done
	p.mutex.Unlock()

	if done != nil {
		<-done
	}

	p.mutex.Lock()
	err := s.err
	s.err = nil
	s.done = nil
	p.mutex.Unlock()
	return err
}

// JoinAll joins every slot in order and returns the first captured
// error. All slots are joined even when an early one failed, so no
// goroutine is left running.
func (p *WorkerPool) JoinAll() error {
	var firstErr error
	for slot := range p.slots {
		if err := p.Join(slot); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// WorkerPoolStats provides a point-in-time view of the pool.
type WorkerPoolStats struct {
	NumSlots      int
	InFlight      int
	PendingErrors int
}

func (p *WorkerPool) Stats() WorkerPoolStats {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	stats := WorkerPoolStats{NumSlots: len(p.slots)}
	for i := range p.slots {
		if p.slots[i].busy {
			stats.InFlight++
		}
		if p.slots[i].err != nil {
			stats.PendingErrors++
		}
	}
	return stats
}

// Cleanup joins all slots and closes the pool. Pending errors are
// discarded, so call JoinAll first when they matter. Safe to call more
// than once.
func (p *WorkerPool) Cleanup() {
	p.mutex.Lock()
	if p.closed {
		p.mutex.Unlock()
		return
	}
	p.closed = true
	p.mutex.Unlock()

	for slot := range p.slots {
		p.Join(slot)
	}
}
