package catalog

import (
	"context"
	"sync"
)

// Static is an in-memory catalog, the portable stand-in for the
// teacher's macOS AudioUnit introspection (plugins.List/Introspect):
// a fixed table of descriptors plus a factory function per URI that
// builds a runnable Handle. Used by tests and cmd/synthpod-dummy.
type Static struct {
	mu      sync.RWMutex
	entries map[string]staticEntry
}

type staticEntry struct {
	descriptor Descriptor
	factory    func(opts InstantiateOptions, bindings []PortBinding) (Handle, error)
}

// NewStatic creates an empty static catalog.
func NewStatic() *Static {
	return &Static{entries: make(map[string]staticEntry)}
}

// Register adds a plugin class to the catalog. factory is called by
// Instantiate once the core has allocated port buffers.
func (s *Static) Register(d Descriptor, factory func(InstantiateOptions, []PortBinding) (Handle, error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[d.URI] = staticEntry{descriptor: d, factory: factory}
}

func (s *Static) IsSupported(_ context.Context, uri string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[uri]
	return ok
}

func (s *Static) Describe(_ context.Context, uri string) (Descriptor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[uri]
	if !ok {
		return Descriptor{}, ErrUnsupported{URI: uri}
	}
	return e.descriptor, nil
}

func (s *Static) Instantiate(_ context.Context, uri string, opts InstantiateOptions, bindings []PortBinding) (Handle, error) {
	s.mu.RLock()
	e, ok := s.entries[uri]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrUnsupported{URI: uri}
	}
	return e.factory(opts, bindings)
}

// funcHandle adapts two closures into a Handle, mirroring the
// function-pointer-driven plugin shape the original C host uses
// (LV2_Descriptor.run/deactivate) without requiring a struct per plugin.
type funcHandle struct {
	run        func(nsamples int)
	deactivate func()
}

func (h *funcHandle) Run(nsamples int) {
	if h.run != nil {
		h.run(nsamples)
	}
}

func (h *funcHandle) Deactivate() {
	if h.deactivate != nil {
		h.deactivate()
	}
}

// RegisterBuiltins registers a handful of trivial plugin classes used
// throughout this module's tests and the demo CLI, each mono: a
// passthrough audio source ("sys:audio_in"), a gain node
// ("synthpod:gain"), and an audio sink ("sys:audio_out") — the same
// role synthpod's "sys:audio_in"/"sys:audio_out" placeholders play in
// spec §8's S1/S2 scenarios.
func RegisterBuiltins(s *Static) {
	s.Register(Descriptor{
		URI:  "sys:audio_in",
		Name: "System Audio In",
		Ports: []PortClass{
			{Symbol: "out", Name: "Out", Direction: DirectionOutput, Type: TypeAudio},
		},
	}, func(opts InstantiateOptions, b []PortBinding) (Handle, error) {
		out := findSamples(b, "out")
		return &funcHandle{run: func(nsamples int) {
			// Left untouched: callers in tests fill `out` directly before
			// Run to simulate hardware capture, matching spec §8 S1's
			// "feed a ramp into source buffer" setup.
			_ = out
		}}, nil
	})

	s.Register(Descriptor{
		URI:  "sys:audio_out",
		Name: "System Audio Out",
		Ports: []PortClass{
			{Symbol: "in", Name: "In", Direction: DirectionInput, Type: TypeAudio},
		},
	}, func(opts InstantiateOptions, b []PortBinding) (Handle, error) {
		return &funcHandle{}, nil
	})

	s.Register(Descriptor{
		URI:  "synthpod:gain",
		Name: "Gain",
		Ports: []PortClass{
			{Symbol: "in", Name: "In", Direction: DirectionInput, Type: TypeAudio},
			{Symbol: "out", Name: "Out", Direction: DirectionOutput, Type: TypeAudio},
			{Symbol: "gain", Name: "Gain", Direction: DirectionInput, Type: TypeControl, Default: 1, Min: 0, Max: 4},
		},
	}, func(opts InstantiateOptions, b []PortBinding) (Handle, error) {
		in := findSamples(b, "in")
		out := findSamples(b, "out")
		gain := findControl(b, "gain")
		return &funcHandle{run: func(nsamples int) {
			g := float32(1)
			if gain != nil {
				g = *gain
			}
			n := nsamples
			if len(in) < n {
				n = len(in)
			}
			if len(out) < n {
				n = len(out)
			}
			for i := 0; i < n; i++ {
				out[i] = in[i] * g
			}
		}}, nil
	})
}

func findSamples(b []PortBinding, symbol string) []float32 {
	for _, e := range b {
		if e.Symbol == symbol {
			return e.Samples
		}
	}
	return nil
}

func findControl(b []PortBinding, symbol string) *float32 {
	for _, e := range b {
		if e.Symbol == symbol {
			return e.Control
		}
	}
	return nil
}

// Describe is implemented trivially above; this helper exists so the
// demo CLI can print a human-friendly listing.
func (s *Static) List() []Descriptor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Descriptor, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.descriptor)
	}
	return out
}
