package module

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shaban/synthpod/catalog"
	"github.com/shaban/synthpod/port"
)

// Manager is the worker-context half of spec §4.2: it asks the
// catalog whether a URI is supported and, off the audio thread, builds
// a complete Module (ports allocated, plugin instantiated) ready to be
// handed to the audio thread for Vector.Insert.
//
// Grounded on plugin_chain.go's PluginInstance.Load (Introspect, then
// build state) generalized from "load one plugin's metadata" to
// "allocate typed ports and instantiate".
type Manager struct {
	Catalog    catalog.Catalog
	SampleRate float64
	Period     int
	SeqSize    int
	Features   catalog.Features
}

// NewManager creates a module manager bound to a catalog and the
// session-wide audio parameters from spec §6's configuration options.
func NewManager(cat catalog.Catalog, sampleRate float64, period, seqSize int, features catalog.Features) *Manager {
	return &Manager{Catalog: cat, SampleRate: sampleRate, Period: period, SeqSize: seqSize, Features: features}
}

// IsSupported delegates to the catalog (spec §4.2).
func (m *Manager) IsSupported(ctx context.Context, uri string) bool {
	return m.Catalog.IsSupported(ctx, uri)
}

// Build instantiates uri off the audio thread: describes its ports,
// allocates typed port storage with default/zero/empty initial values
// (spec §4.2), and instantiates the plugin against that storage. The
// returned Module has ID == 0; Vector.Insert assigns the real id on
// handoff to the audio thread.
func (m *Manager) Build(ctx context.Context, uri string) (*Module, error) {
	desc, err := m.Catalog.Describe(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("describe %s: %w", uri, err)
	}

	mod := &Module{
		URN: uuid.NewString(),
		URI: uri,
	}

	mod.Ports = make([]*port.Port, len(desc.Ports))
	bindings := make([]catalog.PortBinding, len(desc.Ports))

	for i, pc := range desc.Ports {
		idx := port.Index(i)
		var p *port.Port
		switch pc.Type {
		case catalog.TypeControl:
			dir := port.DirectionInput
			if pc.Direction == catalog.DirectionOutput {
				dir = port.DirectionOutput
			}
			p = port.NewControl(0, idx, pc.Symbol, dir, pc.Default, pc.Min, pc.Max)
			p.Control.Integer = pc.Integer
			p.Control.Toggled = pc.Toggled
			for _, sp := range pc.Scale {
				p.Scale = append(p.Scale, port.ScalePoint{Label: sp.Label, Value: sp.Value})
			}
		case catalog.TypeAudio, catalog.TypeCV:
			dir := port.DirectionInput
			typ := port.TypeAudio
			if pc.Direction == catalog.DirectionOutput {
				dir = port.DirectionOutput
			}
			if pc.Type == catalog.TypeCV {
				typ = port.TypeCV
			}
			p = port.NewAudio(0, idx, pc.Symbol, dir, typ, m.Period)
		case catalog.TypeAtom:
			dir := port.DirectionInput
			if pc.Direction == catalog.DirectionOutput {
				dir = port.DirectionOutput
			}
			seqSize := pc.SequenceSize
			if seqSize <= 0 {
				seqSize = m.SeqSize
			}
			p = port.NewAtom(0, idx, pc.Symbol, dir, seqSize, pc.Patchable)
		default:
			return nil, fmt.Errorf("describe %s: port %s has unknown type", uri, pc.Symbol)
		}
		mod.Ports[i] = p

		binding := catalog.PortBinding{Index: i, Symbol: pc.Symbol}
		switch {
		case p.Buffer.Control != nil:
			binding.Control = &p.Buffer.Control[0]
		case p.Buffer.Samples != nil:
			binding.Samples = p.Buffer.Samples
		case p.Buffer.Sequence != nil:
			binding.Sequence = p.Buffer.Sequence
		}
		bindings[i] = binding
	}

	handle, err := m.Catalog.Instantiate(ctx, uri, catalog.InstantiateOptions{
		SampleRate: m.SampleRate,
		Period:     m.Period,
		Features:   m.Features,
	}, bindings)
	if err != nil {
		return nil, fmt.Errorf("instantiate %s: %w", uri, err)
	}
	mod.Handle = handle

	return mod, nil
}

// BindModuleID stamps the arena-assigned id onto a module's ports,
// called once by the audio thread right after Vector.Insert so every
// port.Endpoint a connector builds for this module carries the real id
// instead of the placeholder 0 used during off-thread Build.
func BindModuleID(m *Module) {
	for _, p := range m.Ports {
		p.Module = m.ID
	}
}
