// Package graph implements the connector, scheduler and multiplexer
// (spec §4.4-§4.6): it mutates the sink connectables living inside
// module ports, rebuilds the per-module DAG after every mutation,
// computes concurrency width, and drives plugin Run calls each period.
//
// Grounded on dispatcher.go's connectChannels/disconnectChannels (look
// up both endpoints, delegate the actual mutation) and engine/queue's
// single-goroutine-serializes-mutations shape, generalized from
// channel-to-channel busses to arbitrary typed port-to-port edges.
package graph

import (
	"fmt"

	"github.com/shaban/synthpod/module"
	"github.com/shaban/synthpod/port"
)

// DefaultRampSamples is the click-free ramp length used when spec §4.4
// doesn't say otherwise ("default: one period").
const DefaultRampSamples = 0 // resolved to the period size at Connect time

// Connector mutates the module vector's port connections and keeps the
// derived schedule in sync (spec §4.4).
type Connector struct {
	Vector     *module.Vector
	PeriodSize int
	Schedule   *Schedule
}

// NewConnector creates a connector bound to a module vector and the
// session's period size (used as the default ramp length).
func NewConnector(v *module.Vector, periodSize int) *Connector {
	c := &Connector{Vector: v, PeriodSize: periodSize}
	c.Schedule = c.DagReorder()
	return c
}

func (c *Connector) resolve(ep port.Endpoint) (*module.Module, *port.Port, error) {
	mod, _, ok := c.Vector.ByID(ep.Module)
	if !ok {
		return nil, nil, fmt.Errorf("module %d not found", ep.Module)
	}
	if int(ep.Index) >= len(mod.Ports) {
		return nil, nil, fmt.Errorf("module %d has no port %d", ep.Module, ep.Index)
	}
	return mod, mod.Ports[ep.Index], nil
}

// Connect adds a source->sink edge (spec §4.4).
func (c *Connector) Connect(src, snk port.Endpoint) error {
	_, srcPort, err := c.resolve(src)
	if err != nil {
		return err
	}
	_, snkPort, err := c.resolve(snk)
	if err != nil {
		return err
	}

	if srcPort.Direction != port.DirectionOutput || snkPort.Direction != port.DirectionInput {
		return fmt.Errorf("connect: source must be an output port and sink an input port")
	}
	if srcPort.Type != snkPort.Type {
		return fmt.Errorf("connect: type mismatch (%s -> %s)", srcPort.Type, snkPort.Type)
	}

	if snkPort.Connectable.IndexOf(src) >= 0 {
		return nil // idempotent no-op, spec §4.4
	}

	s, err := snkPort.Connectable.Append(src, 1)
	if err != nil {
		return fmt.Errorf("connect %+v -> %+v: %w", src, snk, port.ErrCapacity{Limit: port.MaxSourcesPerSink})
	}

	if snkPort.Type == port.TypeAudio {
		s.StartRamp(port.RampUp, uint32(c.PeriodSize))
	}

	c.Schedule = c.DagReorder()
	return nil
}

// Disconnect removes a source->sink edge (spec §4.4). For audio sinks
// this only arms a ramp-down; the caller must invoke
// Multiplexer.Mix each period until the ramp completes and the entry
// is actually removed (ReleaseCompletedRamps does that removal).
func (c *Connector) Disconnect(src, snk port.Endpoint) (deferred bool, err error) {
	_, snkPort, err := c.resolve(snk)
	if err != nil {
		return false, err
	}

	idx := snkPort.Connectable.IndexOf(src)
	if idx < 0 {
		return false, nil // idempotent no-op, spec §4.4
	}

	if snkPort.Type == port.TypeAudio {
		snkPort.Connectable.Sources[idx].StartRamp(port.RampDown, uint32(c.PeriodSize))
		return true, nil
	}

	snkPort.Connectable.RemoveAt(idx)
	c.Schedule = c.DagReorder()
	return false, nil
}

// ReleaseCompletedRamps drops connectable entries whose DOWN/DOWN_DEL/
// DOWN_DRAIN ramp has fully completed, marks the source module of a
// completed DOWN_DISABLE ramp Disabled (the entry stays latched at zero
// gain until ArmDisableRamps releases it), and reports which modules'
// delete requests can proceed. Called once per period after the
// multiplexer has advanced every ramp (spec §4.6).
func (c *Connector) ReleaseCompletedRamps() (readyToDrop []port.ModuleID) {
	changed := false
	disabling := make(map[port.ModuleID]bool)

	for _, mod := range c.Vector.All() {
		for _, p := range mod.Ports {
			if !p.IsSink() {
				continue
			}
			for i := 0; i < p.Connectable.Count; {
				s := &p.Connectable.Sources[i]
				if s.RampRemain != 0 {
					i++
					continue
				}
				switch s.Ramp {
				case port.RampDown, port.RampDownDelete, port.RampDownDrain:
					p.Connectable.RemoveAt(i)
					changed = true
					continue // re-check same index, it now holds the next entry
				case port.RampDownDisable:
					disabling[s.Endpoint.Module] = true
				}
				i++
			}
		}
	}

	for id := range disabling {
		if m, _, ok := c.Vector.ByID(id); ok {
			m.Disabled = true
		}
	}

	// A module with a pending delete is ready to drop once nothing
	// downstream still reads from it — either it never had a listener,
	// or every listener's ramp just finished draining above.
	for _, m := range c.Vector.All() {
		if m.DeleteRequest && !m.PendingDrop && !c.hasDownstreamSource(m.ID) {
			m.PendingDrop = true
			readyToDrop = append(readyToDrop, m.ID)
		}
	}

	if changed {
		c.Schedule = c.DagReorder()
	}
	return readyToDrop
}

func (c *Connector) hasDownstreamSource(id port.ModuleID) bool {
	for _, other := range c.Vector.All() {
		for _, p := range other.Ports {
			if !p.IsSink() {
				continue
			}
			for i := 0; i < p.Connectable.Count; i++ {
				if p.Connectable.Sources[i].Endpoint.Module == id {
					return true
				}
			}
		}
	}
	return false
}

// forEachDownstreamSource visits every Source entry anywhere in the
// vector whose Endpoint names one of mod's output ports — i.e. every
// connection that would read from mod once it stops running.
func (c *Connector) forEachDownstreamSource(mod *module.Module, fn func(s *port.Source)) {
	for _, other := range c.Vector.All() {
		for _, p := range other.Ports {
			if !p.IsSink() || p.Type != port.TypeAudio {
				continue
			}
			for i := 0; i < p.Connectable.Count; i++ {
				if p.Connectable.Sources[i].Endpoint.Module == mod.ID {
					fn(&p.Connectable.Sources[i])
				}
			}
		}
	}
}

// ArmDeleteRamps starts a RAMP_DOWN_DEL on every downstream connection
// reading from mod, beginning the two-phase delete from spec §4.2 step
// ①: the module itself keeps running (so its output stays valid) until
// every listener has ramped it out and ReleaseCompletedRamps reports it
// ready to drop.
func (c *Connector) ArmDeleteRamps(mod *module.Module) {
	c.forEachDownstreamSource(mod, func(s *port.Source) {
		s.StartRamp(port.RampDownDelete, uint32(c.PeriodSize))
	})
	mod.DeleteRequest = true
}

// ArmDisableRamps starts (or releases) a RAMP_DOWN_DISABLE on every
// downstream connection reading from mod (spec §4.2 disable/enable).
func (c *Connector) ArmDisableRamps(mod *module.Module, disabled bool) {
	if !disabled {
		mod.Disabled = false
		c.forEachDownstreamSource(mod, func(s *port.Source) {
			if s.Ramp == port.RampDownDisable {
				s.Ramp = port.RampNone
			}
		})
		return
	}
	c.forEachDownstreamSource(mod, func(s *port.Source) {
		s.StartRamp(port.RampDownDisable, uint32(c.PeriodSize))
	})
}
