package graph

import (
	"github.com/shaban/synthpod/module"
	"github.com/shaban/synthpod/port"
)

// SequenceMerger merges N source atom-sequence buffers in event-time
// order into one destination buffer (spec §4.6, invariant 6). Defined
// here, implemented by the atom package, and wired in by whatever
// assembles the app so this package never needs to import atom.
type SequenceMerger interface {
	Merge(dst []byte, srcs [][]byte) (n int, overflow bool)
}

// Multiplexer fans every sink port's connected sources into that port's
// buffer once per period (spec §4.6): summed for audio/CV with
// sample-accurate ramp curves, last-writer-wins for control, merged in
// event-time order for atom sequences.
//
// Grounded on engine/analyze.go's RMS/peak accumulation loop shape,
// generalized from "measure a buffer" to "combine N buffers into one".
type Multiplexer struct {
	Merger SequenceMerger
}

// NewMultiplexer creates a multiplexer; merger may be nil until an atom
// sequence port actually needs merging.
func NewMultiplexer(merger SequenceMerger) *Multiplexer {
	return &Multiplexer{Merger: merger}
}

// Mix combines every sink port's sources into that port's buffer, for
// every module in the vector, advancing ramps by nsamples along the
// way (spec §4.6). Exposed for tests and for anything that wants a
// whole-vector snapshot outside the per-node schedule; Scheduler.Run
// calls MixModule per node instead, since a node's inputs must be
// mixed from its upstream's *this-period* output, not mixed globally
// before any node in the chain has run.
func (mx *Multiplexer) Mix(v *module.Vector, nsamples int) {
	for _, m := range v.All() {
		mx.MixModule(v, m, nsamples)
	}
}

// MixModule combines m's sink ports' sources into their buffers (spec
// §4.6/§5's per-node "multiplex inputs -> plugin.run" step). Call
// immediately before m.Run(nsamples) so m reads its predecessors'
// same-period output, not last period's.
func (mx *Multiplexer) MixModule(v *module.Vector, m *module.Module, nsamples int) {
	for _, p := range m.Ports {
		if !p.IsSink() {
			continue
		}
		switch p.Type {
		case port.TypeAudio, port.TypeCV:
			mx.mixAudio(v, p, nsamples)
		case port.TypeControl:
			mx.mixControl(v, p)
		case port.TypeAtom:
			mx.mixAtom(v, p)
		}
	}
}

func (mx *Multiplexer) mixAudio(v *module.Vector, dst *port.Port, nsamples int) {
	out := dst.Buffer.Samples
	for i := range out {
		out[i] = 0
	}
	for i := 0; i < dst.Connectable.Count; i++ {
		src := &dst.Connectable.Sources[i]
		srcPort := lookupPort(v, src.Endpoint)
		if srcPort == nil {
			continue
		}
		in := srcPort.Buffer.Samples
		n := len(out)
		if len(in) < n {
			n = len(in)
		}
		if src.Ramp == port.RampNone {
			for j := 0; j < n; j++ {
				out[j] += in[j] * src.Gain
			}
		} else {
			for j := 0; j < n; j++ {
				g := src.ValueAt(uint32(j), uint32(nsamples)) * src.Gain
				out[j] += in[j] * g
			}
		}
		src.Advance(uint32(nsamples))
	}
}

func (mx *Multiplexer) mixControl(v *module.Vector, dst *port.Port) {
	if dst.Connectable.Count == 0 {
		return
	}
	// last source wins, matching a single automation/UI writer per sink
	// (spec §3: control ports carry one effective value per period).
	src := &dst.Connectable.Sources[dst.Connectable.Count-1]
	srcPort := lookupPort(v, src.Endpoint)
	if srcPort == nil {
		return
	}
	v2 := srcPort.Control.Value * src.Gain
	dst.Control.Value = v2
	if len(dst.Buffer.Control) > 0 {
		dst.Buffer.Control[0] = v2 // keep the catalog-bound scalar in sync
	}
}

func (mx *Multiplexer) mixAtom(v *module.Vector, dst *port.Port) {
	if dst.Connectable.Count == 0 || mx.Merger == nil {
		return
	}
	srcs := make([][]byte, 0, dst.Connectable.Count)
	for i := 0; i < dst.Connectable.Count; i++ {
		srcPort := lookupPort(v, dst.Connectable.Sources[i].Endpoint)
		if srcPort == nil {
			continue
		}
		srcs = append(srcs, srcPort.Buffer.Sequence)
	}
	n, overflow := mx.Merger.Merge(dst.Buffer.Sequence, srcs)
	_ = n
	if overflow {
		dst.Atom.OverflowCount++
	}
}

func lookupPort(v *module.Vector, ep port.Endpoint) *port.Port {
	m, _, ok := v.ByID(ep.Module)
	if !ok || int(ep.Index) >= len(m.Ports) {
		return nil
	}
	return m.Ports[ep.Index]
}
