package graph

import "github.com/shaban/synthpod/port"

// Schedule is the derived per-module DAG (spec §4.4 dag_reorder /
// concurrency_width): for each module, which modules receive one of
// its outputs, and how many distinct predecessor modules feed it.
//
// Grounded on engine/queue's level-based dependency graph, generalized
// from a fixed task queue to the module vector's live topology.
type Schedule struct {
	sinks      map[port.ModuleID][]port.ModuleID
	numSources map[port.ModuleID]int
	order      []port.ModuleID
	concurrent int
}

// DagReorder rebuilds the connector's schedule from the current state
// of every sink port's connectable (spec §4.4). It neither checks nor
// reorders the vector: the order is whatever Vector.Insert (append) and
// Vector.Move have left in Vector.All(), and this just derives the edge
// counts used for concurrency_width and parallel dispatch.
func (c *Connector) DagReorder() *Schedule {
	mods := c.Vector.All()
	sch := &Schedule{
		sinks:      make(map[port.ModuleID][]port.ModuleID, len(mods)),
		numSources: make(map[port.ModuleID]int, len(mods)),
		order:      make([]port.ModuleID, len(mods)),
	}

	for i, m := range mods {
		sch.order[i] = m.ID
		sch.numSources[m.ID] = 0
		sch.sinks[m.ID] = nil
	}

	// distinct module-pair edges: two modules are "connected" once no
	// matter how many port-level edges link them, so a predecessor's
	// completion is counted exactly once against a successor.
	edge := make(map[[2]port.ModuleID]bool)
	for _, dst := range mods {
		for _, p := range dst.Ports {
			if !p.IsSink() {
				continue
			}
			for i := 0; i < p.Connectable.Count; i++ {
				src := p.Connectable.Sources[i].Endpoint.Module
				if src == dst.ID {
					continue // self-loop via feedback atom port, not a schedule edge
				}
				key := [2]port.ModuleID{src, dst.ID}
				if edge[key] {
					continue
				}
				edge[key] = true
				sch.sinks[src] = append(sch.sinks[src], dst.ID)
				sch.numSources[dst.ID]++
			}
		}
	}

	sch.concurrent = computeConcurrencyWidth(sch.order, sch.sinks, sch.numSources)
	return sch
}

// computeConcurrencyWidth runs Kahn's algorithm in levels: the modules
// with zero remaining sources at each level can run in parallel; the
// concurrency width is the largest such level (spec §4.4
// concurrency_width, spec §9 "max DSP slaves (7)" sizes the worker pool
// against this number).
func computeConcurrencyWidth(order []port.ModuleID, sinks map[port.ModuleID][]port.ModuleID, numSources map[port.ModuleID]int) int {
	remaining := make(map[port.ModuleID]int, len(numSources))
	for id, n := range numSources {
		remaining[id] = n
	}

	var ready []port.ModuleID
	for _, id := range order {
		if remaining[id] == 0 {
			ready = append(ready, id)
		}
	}

	width := len(ready)
	processed := make(map[port.ModuleID]bool, len(order))

	for len(ready) > 0 {
		if len(ready) > width {
			width = len(ready)
		}
		var next []port.ModuleID
		for _, id := range ready {
			processed[id] = true
		}
		for _, id := range ready {
			for _, dst := range sinks[id] {
				remaining[dst]--
			}
		}
		for _, id := range order {
			if !processed[id] && remaining[id] == 0 {
				next = append(next, id)
			}
		}
		ready = next
	}

	return width
}

// ConcurrencyWidth reports the last computed concurrency width.
func (s *Schedule) ConcurrencyWidth() int { return s.concurrent }

// Order returns the modules in topological (vector) order.
func (s *Schedule) Order() []port.ModuleID { return s.order }

// Sinks returns the modules directly downstream of id.
func (s *Schedule) Sinks(id port.ModuleID) []port.ModuleID { return s.sinks[id] }

// NumSources returns the number of distinct predecessor modules of id.
func (s *Schedule) NumSources(id port.ModuleID) int { return s.numSources[id] }
