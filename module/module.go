// Package module implements the module manager (spec §4.2): it builds
// plugin instances off the catalog collaborator, owns the arena of
// live modules, and drives the two-phase delete / profiling / bypass
// lifecycle from spec §3-§4.2.
//
// Grounded on plugin_chain.go's PluginChain/PluginInstance lifecycle
// (Load/Unload, position bookkeeping, GetState/SetState) generalized
// from "one UI's effects chain" to the host-wide module arena the
// spec describes.
package module

import (
	"time"

	"github.com/shaban/synthpod/catalog"
	"github.com/shaban/synthpod/port"
)

// MaxModules is the module-vector capacity (spec §4.2, §9: "512 ...
// same TODO [as slave count]; same treatment" — kept a compile-time
// constant).
const MaxModules = 512

// MaxAutomation bounds a module's automation table (spec §3).
const MaxAutomation = 64

// Profiling tracks running min/avg/max run duration for one module
// (spec §3 "profiling counters (min/avg/max per-run CPU time)").
type Profiling struct {
	Min, Max time.Duration
	avgNanos float64
	Count    uint64
}

// Observe folds one run's duration into the running statistics.
func (p *Profiling) Observe(d time.Duration) {
	if p.Count == 0 || d < p.Min {
		p.Min = d
	}
	if d > p.Max {
		p.Max = d
	}
	p.Count++
	// cumulative arithmetic running mean, matches the teacher's dispatcher
	// last/max duration tracking (dispatcher.go GetPerformanceStats)
	// generalized to also keep an average.
	n := float64(p.Count)
	p.avgNanos += (float64(d) - p.avgNanos) / n
}

// Avg returns the running average run duration.
func (p *Profiling) Avg() time.Duration { return time.Duration(p.avgNanos) }

// Position is a UI placement hint; the core stores it but never
// interprets it (spec §3 "position hint (x,y for UI)").
type Position struct{ X, Y float64 }

// AutomationEntry maps an external control source onto one of the
// module's control input ports (spec §3: "optional automation table up
// to 64 entries").
type AutomationEntry struct {
	Port port.Index
	// Scale/offset applied to the incoming normalized [0,1] control
	// value before it is written to the port's Stash.
	Scale, Offset float32
}

// Module is one plugin instance inside the graph (spec §3).
type Module struct {
	ID  port.ModuleID
	URN string // stable across sessions, carried into saved state
	URI string // plugin class URI

	Handle catalog.Handle
	Ports  []*port.Port

	Profiling Profiling
	Position  Position

	Disabled      bool // bypass: run() skipped, ports stay connected
	DeleteRequest bool // two-phase delete in progress (spec §4.2)
	PendingDrop   bool // all audio ramps drained; worker may free it

	Automation      [MaxAutomation]AutomationEntry
	AutomationCount int
}

// PortBySymbol finds a port by its declared symbol, or nil.
func (m *Module) PortBySymbol(symbol string) *port.Port {
	for _, p := range m.Ports {
		if p.Symbol == symbol {
			return p
		}
	}
	return nil
}

// AddAutomation appends an automation entry. Returns false if the
// table is full.
func (m *Module) AddAutomation(e AutomationEntry) bool {
	if m.AutomationCount >= MaxAutomation {
		return false
	}
	m.Automation[m.AutomationCount] = e
	m.AutomationCount++
	return true
}

// Run invokes the plugin's processing for nsamples and records
// profiling, skipping disabled (bypassed) modules per spec §4.2.
func (m *Module) Run(nsamples int) {
	if m.Disabled || m.Handle == nil {
		return
	}
	start := time.Now()
	m.Handle.Run(nsamples)
	m.Profiling.Observe(time.Since(start))
}
