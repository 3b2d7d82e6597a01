package module

import (
	"fmt"

	"github.com/shaban/synthpod/port"
)

// Vector is the module arena: exclusively mutated by the audio thread
// (spec §3 "Ownership summary"). Modules are stored in the order the
// scheduler walks them: Insert appends, Move permutes; nothing here or
// in the connector checks that this order is topological.
//
// Grounded on engine.go's fixed Channels array + findAvailableChannelslot,
// generalized from a fixed 8-slot array to the spec's 512-module cap
// with a monotonic id independent of slot position, since modules here
// (unlike the teacher's channels) are deleted and re-added continuously.
type Vector struct {
	slots  []*Module
	nextID port.ModuleID
}

// NewVector creates an empty module arena.
func NewVector() *Vector {
	return &Vector{slots: make([]*Module, 0, MaxModules), nextID: 1}
}

// ErrCapacity is returned by Insert when the arena is full.
type ErrCapacity struct{}

func (ErrCapacity) Error() string {
	return fmt.Sprintf("module vector at capacity (%d)", MaxModules)
}

// Insert appends m to the end of the vector, assigning it a fresh
// monotonic id if it doesn't already have one (spec §4.2 add: "...
// emits reply to audio thread" — this is that handoff's audio-thread
// side). New modules have no edges yet so appending at the end never
// violates topological order.
func (v *Vector) Insert(m *Module) error {
	if len(v.slots) >= MaxModules {
		return ErrCapacity{}
	}
	if m.ID == 0 {
		m.ID = v.nextID
		v.nextID++
	}
	v.slots = append(v.slots, m)
	return nil
}

// ByID returns the module with the given id and its current slot
// index, or (nil, -1, false).
func (v *Vector) ByID(id port.ModuleID) (*Module, int, bool) {
	for i, m := range v.slots {
		if m.ID == id {
			return m, i, true
		}
	}
	return nil, -1, false
}

// Drop removes the module at slot index i (spec §4.2 del phase ②:
// "worker deactivates and frees" — the vector-side removal that
// follows deactivation).
func (v *Vector) Drop(i int) {
	if i < 0 || i >= len(v.slots) {
		return
	}
	copy(v.slots[i:], v.slots[i+1:])
	v.slots[len(v.slots)-1] = nil
	v.slots = v.slots[:len(v.slots)-1]
}

// Move relocates the module at index from to index to, preserving the
// rest of the order — the "module_move" permutation spec §4.4
// delegates ordering-rule enforcement to.
func (v *Vector) Move(from, to int) error {
	n := len(v.slots)
	if from < 0 || from >= n || to < 0 || to >= n {
		return fmt.Errorf("module move index out of range [0,%d): from=%d to=%d", n, from, to)
	}
	if from == to {
		return nil
	}
	m := v.slots[from]
	if from < to {
		copy(v.slots[from:to], v.slots[from+1:to+1])
	} else {
		copy(v.slots[to+1:from+1], v.slots[to:from])
	}
	v.slots[to] = m
	return nil
}

// Len reports the number of live modules.
func (v *Vector) Len() int { return len(v.slots) }

// All returns the live modules in scheduling order. The returned
// slice aliases internal storage and must not be retained across a
// mutating call.
func (v *Vector) All() []*Module { return v.slots }

// IndexOf returns the slot index of id, or -1.
func (v *Vector) IndexOf(id port.ModuleID) int {
	for i, m := range v.slots {
		if m.ID == id {
			return i
		}
	}
	return -1
}
