// Package port implements the typed port model (spec §3, §4.3):
// control/audio/CV/atom ports with per-type storage, range metadata,
// a connectable source list, and click-free ramp state for audio
// connections. Ports never hold pointers to other ports — edges are
// (ModuleID, Index) pairs per the arena+index design in spec §9.
package port

import "github.com/shaban/synthpod/registry"

// Direction of a port.
type Direction uint8

const (
	DirectionInput Direction = iota
	DirectionOutput
)

// Type is the typed signal class of a port.
type Type uint8

const (
	TypeControl Type = iota
	TypeAudio
	TypeCV
	TypeAtom
)

func (t Type) String() string {
	switch t {
	case TypeControl:
		return "control"
	case TypeAudio:
		return "audio"
	case TypeCV:
		return "cv"
	case TypeAtom:
		return "atom"
	default:
		return "unknown"
	}
}

// BufferType tags atom ports whose buffer is a sequence.
type BufferType uint8

const (
	BufferNone BufferType = iota
	BufferSequence
)

// MaxSourcesPerSink bounds a sink's connectable list (spec §3, §9: "hard-
// coded to 32", kept as a compile-time constant rather than configurable).
const MaxSourcesPerSink = 32

// ModuleID identifies a module within the arena owned by module.Vector.
type ModuleID uint32

// Index identifies a port within its owning module's port slice.
type Index uint16

// Endpoint names a port by (module, index) instead of a pointer, so
// the graph never carries aliased references across goroutines.
type Endpoint struct {
	Module ModuleID
	Index  Index
}

// RampState is the finite state machine driving click-free audio
// connect/disconnect (spec §3, §4.6, §9: "model as explicit enums with
// transition tables, not callback chains").
type RampState uint8

const (
	RampNone RampState = iota
	RampUp
	RampDown
	RampDownDelete
	RampDownDrain
	RampDownDisable
)

// Source is one entry in a sink's connectable (spec §3: "a connectable
// is a counted array of up to 32 source entries").
type Source struct {
	Endpoint Endpoint
	Gain     float32
	Geometry int32 // UI geometry hint, opaque to the core

	Ramp        RampState
	RampRemain  uint32 // remaining samples in the current ramp
	RampTotal   uint32 // ramp length in samples, for computing the curve position
	RampCurrent float32
}

// Connectable is the per-sink list of source endpoints feeding it.
type Connectable struct {
	Sources [MaxSourcesPerSink]Source
	Count   int
}

// ErrCapacity is returned when a connectable is already full.
type ErrCapacity struct{ Limit int }

func (e ErrCapacity) Error() string {
	return "connectable at capacity"
}

// IndexOf returns the index of ep in the connectable, or -1.
func (c *Connectable) IndexOf(ep Endpoint) int {
	for i := 0; i < c.Count; i++ {
		if c.Sources[i].Endpoint == ep {
			return i
		}
	}
	return -1
}

// Append adds ep to the connectable. Returns ErrCapacity if full.
func (c *Connectable) Append(ep Endpoint, gain float32) (*Source, error) {
	if c.Count >= MaxSourcesPerSink {
		return nil, ErrCapacity{Limit: MaxSourcesPerSink}
	}
	c.Sources[c.Count] = Source{Endpoint: ep, Gain: gain, Ramp: RampNone}
	s := &c.Sources[c.Count]
	c.Count++
	return s, nil
}

// RemoveAt deletes the entry at i, preserving the order of the rest.
func (c *Connectable) RemoveAt(i int) {
	if i < 0 || i >= c.Count {
		return
	}
	copy(c.Sources[i:c.Count-1], c.Sources[i+1:c.Count])
	c.Sources[c.Count-1] = Source{}
	c.Count--
}

// ControlState holds the per-type union fields for a control port.
type ControlState struct {
	Default     float32
	Min         float32
	Max         float32
	Range       float32 // Max - Min, cached
	Reciprocal  float32 // 1/Range, cached (0 if Range == 0)
	LastSent    float32
	Integer     bool
	Toggled     bool
	Logarithmic bool

	// UI <-> RT exchange (spec §3 "Control-port values"): the audio
	// thread writes the canonical Value directly; the UI writes via
	// Stash guarded by TryLock so the audio thread never blocks.
	Value    float32
	Stash    float32
	stashing int32 // atomic flag, 0 or 1; see TryLockStash/Unlock
}

// AudioState holds per-type fields for audio/CV ports.
type AudioState struct {
	LastPeak float64
}

// AtomState holds per-type fields for atom ports.
type AtomState struct {
	Buffer        BufferType
	Patchable     bool
	OverflowCount uint64 // spec §9: sequence merge overflow counter
}

// Port is one typed I/O endpoint of a module (spec §3).
type Port struct {
	Module    ModuleID
	Index     Index
	Symbol    string
	Direction Direction
	Type      Type

	Protocol      registry.URID
	Subscriptions int

	Scale []ScalePoint
	Unit  registry.URID

	Connectable Connectable // meaningful only for sink (input) ports

	Control ControlState
	Audio   AudioState
	Atom    AtomState

	Buffer Buffer // the aligned storage for this port, sized by period/sequence config
}

// ScalePoint is a named discrete value on a control port's range.
type ScalePoint struct {
	Label string
	Value float32
}

// IsSink reports whether this port can receive connections (input
// ports for every type — sinks are always inputs per spec §3 invariant
// "source direction = OUTPUT, sink direction = INPUT").
func (p *Port) IsSink() bool { return p.Direction == DirectionInput }

// NewControl builds a control input/output port initialized to its
// default value (spec §4.2: "controls to their default value").
func NewControl(mod ModuleID, idx Index, symbol string, dir Direction, dflt, min, max float32) *Port {
	rng := max - min
	recip := float32(0)
	if rng != 0 {
		recip = 1 / rng
	}
	p := &Port{
		Module:    mod,
		Index:     idx,
		Symbol:    symbol,
		Direction: dir,
		Type:      TypeControl,
		Control: ControlState{
			Default:    dflt,
			Min:        min,
			Max:        max,
			Range:      rng,
			Reciprocal: recip,
			Value:      dflt,
			LastSent:   dflt,
		},
	}
	p.Buffer = NewControlBuffer(dflt)
	return p
}

// NewAudio builds an audio or CV port with a period-sized buffer
// zeroed per spec §4.2 ("audio/CV to zero").
func NewAudio(mod ModuleID, idx Index, symbol string, dir Direction, typ Type, periodSize int) *Port {
	return &Port{
		Module:      mod,
		Index:       idx,
		Symbol:      symbol,
		Direction:   dir,
		Type:        typ,
		Buffer:      NewAudioBuffer(periodSize),
	}
}

// NewAtom builds an atom-sequence port over a zeroed buffer from
// NewSequenceBuffer (no atom:Sequence header is written into it).
func NewAtom(mod ModuleID, idx Index, symbol string, dir Direction, seqSize int, patchable bool) *Port {
	return &Port{
		Module:    mod,
		Index:     idx,
		Symbol:    symbol,
		Direction: dir,
		Type:      TypeAtom,
		Atom:      AtomState{Buffer: BufferSequence, Patchable: patchable},
		Buffer:    NewSequenceBuffer(seqSize),
	}
}

// TryLockStash attempts the single-retry spin try-lock the audio
// thread uses to read/clear Stash without ever blocking (spec §3, §5,
// §9). Returns true if the lock was acquired.
func (c *ControlState) TryLockStash() bool {
	// single compare-and-swap, no retry loop: spec §9 calls for "single
	// retry, never block" and the audio thread is the only writer of 0.
	return casInt32(&c.stashing, 0, 1)
}

// UnlockStash releases the stash lock.
func (c *ControlState) UnlockStash() {
	storeInt32(&c.stashing, 0)
}

// LockStash is the UI-side unconditional lock: the UI spins until it
// acquires the flag. Safe because the critical section the UI holds it
// for is a single float store, never allocation or I/O (spec §5).
func (c *ControlState) LockStash() {
	for !casInt32(&c.stashing, 0, 1) {
	}
}
