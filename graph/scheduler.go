package graph

import (
	"sync"
	"sync/atomic"

	"github.com/shaban/synthpod/module"
	"github.com/shaban/synthpod/port"
)

// MaxSlaves bounds the parallel scheduler's worker-pool size (spec §9:
// "max DSP slaves (7)").
const MaxSlaves = 7

// Mode selects how the scheduler walks the module vector each period
// (spec §4.5).
type Mode int

const (
	// Sequential runs every module on the audio thread in vector order.
	Sequential Mode = iota
	// Parallel dispatches ready modules across a fixed worker pool sized
	// by NewScheduler's slaves argument, capped at MaxSlaves.
	Parallel
)

// Scheduler drives one period's worth of module Run calls (spec §4.5).
//
// Grounded on engine/queue.Queue's single-goroutine dispatch shape for
// Sequential, generalized to a ready-set worker pool gated by an
// atomic per-module dependency counter for Parallel.
type Scheduler struct {
	Mode Mode

	mu      sync.Mutex
	workers chan struct{}
}

// NewScheduler creates a scheduler. slaves bounds the parallel
// worker-pool size (clamped to [1, MaxSlaves]); it is ignored in
// Sequential mode.
func NewScheduler(mode Mode, slaves int) *Scheduler {
	if slaves <= 0 {
		slaves = 1
	}
	if slaves > MaxSlaves {
		slaves = MaxSlaves
	}
	return &Scheduler{Mode: mode, workers: make(chan struct{}, slaves)}
}

// Run executes one period across the schedule in topological order,
// respecting the connector's last DagReorder result. mx multiplexes
// each node's sink ports immediately before that node runs (spec §4.5:
// "schedule.step -> for each node: multiplex inputs -> plugin.run ->
// post-notifications"), so a node always reads its predecessors'
// output from this same period, not the previous one.
func (s *Scheduler) Run(sch *Schedule, v *module.Vector, mx *Multiplexer, nsamples int) {
	switch s.Mode {
	case Parallel:
		s.runParallel(sch, v, mx, nsamples)
	default:
		s.runSequential(sch, v, mx, nsamples)
	}
}

func (s *Scheduler) runSequential(sch *Schedule, v *module.Vector, mx *Multiplexer, nsamples int) {
	for _, id := range sch.Order() {
		if m, _, ok := v.ByID(id); ok {
			mx.MixModule(v, m, nsamples)
			m.Run(nsamples)
		}
	}
}

// runParallel dispatches modules to the worker pool as soon as all of
// their predecessors have finished, using an atomic countdown per
// module seeded from Schedule.NumSources. Each completed module
// decrements its sinks' counters; a counter reaching zero enqueues that
// module. Width is bounded by the worker channel's capacity, so it
// never exceeds the configured slave count even if concurrency_width is
// larger.
func (s *Scheduler) runParallel(sch *Schedule, v *module.Vector, mx *Multiplexer, nsamples int) {
	order := sch.Order()
	remaining := make(map[port.ModuleID]*int32, len(order))
	for _, id := range order {
		n := int32(sch.NumSources(id))
		remaining[id] = &n
	}

	var wg sync.WaitGroup
	var dispatch func(id port.ModuleID)

	dispatch = func(id port.ModuleID) {
		s.workers <- struct{}{}
		wg.Add(1)
		go func() {
			defer wg.Done()
			// remaining[id] reached zero, so every direct predecessor has
			// already run this period: safe to mix this node's inputs now.
			if m, _, ok := v.ByID(id); ok {
				mx.MixModule(v, m, nsamples)
				m.Run(nsamples)
			}
			// Free this slot before dispatching successors, so a full
			// pool (e.g. a single slave) cannot block on itself.
			<-s.workers
			for _, dst := range sch.Sinks(id) {
				if atomic.AddInt32(remaining[dst], -1) == 0 {
					dispatch(dst)
				}
			}
		}()
	}

	for _, id := range order {
		if atomic.LoadInt32(remaining[id]) == 0 {
			dispatch(id)
		}
	}
	wg.Wait()
}
