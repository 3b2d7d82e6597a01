package port

import "unsafe"

// alignment is the byte alignment spec §9 mandates for audio/CV buffers
// and atom headers ("8-byte aligned for SIMD-friendly loops... atom
// headers require 8-byte alignment by spec").
const alignment = 8

// alignedFloat32s returns a []float32 of length n whose backing array
// starts at an 8-byte aligned address, by over-allocating and slicing
// from the first aligned element.
func alignedFloat32s(n int) []float32 {
	if n <= 0 {
		n = 1
	}
	raw := make([]float32, n+1)
	addr := uintptr(unsafe.Pointer(&raw[0]))
	if addr%alignment == 0 {
		return raw[:n]
	}
	return raw[1 : n+1]
}

// alignedBytes returns a []byte of length n starting at an 8-byte
// aligned address.
func alignedBytes(n int) []byte {
	if n <= 0 {
		n = 1
	}
	raw := make([]byte, n+alignment)
	addr := uintptr(unsafe.Pointer(&raw[0]))
	off := 0
	if rem := addr % alignment; rem != 0 {
		off = int(alignment - rem)
	}
	return raw[off : off+n]
}

// Buffer is the per-port aligned storage. Exactly one of the three
// views is meaningful, selected by the owning Port's Type/BufferType.
type Buffer struct {
	// Control: single scalar, kept for plugins that read it as a buffer.
	Control []float32

	// Audio/CV: one float per frame in the period.
	Samples []float32

	// Atom sequence: raw bytes holding a Sequence atom (see package atom).
	Sequence []byte
}

// NewControlBuffer allocates a one-element control buffer.
func NewControlBuffer(initial float32) Buffer {
	b := Buffer{Control: alignedFloat32s(1)}
	b.Control[0] = initial
	return b
}

// NewAudioBuffer allocates a period-sized, zeroed audio/CV buffer.
func NewAudioBuffer(periodSize int) Buffer {
	return Buffer{Samples: alignedFloat32s(periodSize)}
}

// NewSequenceBuffer allocates a zeroed seqSize-byte atom-sequence
// buffer. No atom:Sequence header is written: the header's size and
// type fields both read as 0.
func NewSequenceBuffer(seqSize int) Buffer {
	b := Buffer{Sequence: alignedBytes(seqSize)}
	for i := range b.Sequence {
		b.Sequence[i] = 0
	}
	return b
}

// Zero clears an audio/CV buffer to silence.
func (b Buffer) Zero() {
	for i := range b.Samples {
		b.Samples[i] = 0
	}
}
