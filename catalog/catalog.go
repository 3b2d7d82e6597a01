// Package catalog defines the plugin catalog collaborator (spec §1,
// §4.2): the core asks "is URI X instantiable?", "describe its ports",
// "instantiate at rate R, period P, with features F" — how the catalog
// answers (RDF lookup, a registry, a test double) is opaque to the core.
//
// Grounded on plugins.PluginInfo / plugins.Plugin (plugins/plugins.go)
// but with the macOS AudioUnit cgo binding stripped: that concrete
// catalog cannot serve a portable core, so this package ships the
// interface plus an in-memory Static implementation built the way
// plugins.List/Introspect shape their return values.
package catalog

import "context"

// PortClass describes one port a plugin declares, before instantiation.
type PortClass struct {
	Symbol    string
	Name      string
	Direction Direction
	Type      Type

	Default, Min, Max float32
	Integer, Toggled   bool
	Unit               string
	Scale              []ScalePoint

	// SequenceSize is only meaningful for atom ports; 0 means "use the
	// catalog's/host's default sequence size".
	SequenceSize int
	Patchable    bool
}

// Direction mirrors port.Direction without importing it, keeping this
// package free of a dependency on the graph engine's internals.
type Direction uint8

const (
	DirectionInput Direction = iota
	DirectionOutput
)

// Type mirrors port.Type.
type Type uint8

const (
	TypeControl Type = iota
	TypeAudio
	TypeCV
	TypeAtom
)

// ScalePoint is a named discrete value on a control port's range.
type ScalePoint struct {
	Label string
	Value float32
}

// Descriptor is everything the core needs to build a Module and its
// Ports for a given plugin URI, without touching the plugin itself.
type Descriptor struct {
	URI   string
	Name  string
	Ports []PortClass
}

// Features are the LV2-style feature flags the host propagates to
// plugins at instantiation time (spec §6 "features flags").
type Features struct {
	FixedBlockLength    bool
	PowerOf2BlockLength bool
}

// InstantiateOptions are the parameters spec §1/§6 lists for
// "instantiate plugin X at sample rate R, period P, with features F".
type InstantiateOptions struct {
	SampleRate float64
	Period     int
	Features   Features
}

// Handle is an opaque running plugin instance. The core never
// inspects it — it only holds it and passes it back to Run/Deactivate.
type Handle interface {
	// Run executes nsamples of processing. Called on the audio thread;
	// must not allocate, lock or block.
	Run(nsamples int)

	// Deactivate releases any resources. Called from worker context.
	Deactivate()
}

// Catalog is the plugin discovery/instantiation collaborator.
type Catalog interface {
	// IsSupported reports whether uri names an instantiable plugin.
	IsSupported(ctx context.Context, uri string) bool

	// Describe returns the port layout for uri, without instantiating it.
	Describe(ctx context.Context, uri string) (Descriptor, error)

	// Instantiate creates a running Handle bound to ports; portBuffers
	// gives the catalog the buffers the core already allocated so
	// plugins read/write them in place.
	Instantiate(ctx context.Context, uri string, opts InstantiateOptions, portBuffers []PortBinding) (Handle, error)
}

// PortBinding hands the catalog's instantiate call one port's storage,
// keyed by the same index the Descriptor listed it at.
type PortBinding struct {
	Index  int
	Symbol string
	// Exactly one of these is non-nil, matching the port's Type.
	Control  *float32
	Samples  []float32
	Sequence []byte
}

// ErrUnsupported is returned by Describe/Instantiate for an unknown URI.
type ErrUnsupported struct{ URI string }

func (e ErrUnsupported) Error() string { return "catalog: unsupported plugin uri " + e.URI }
