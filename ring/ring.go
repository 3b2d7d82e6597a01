// Package ring implements the lock-free single-producer/single-consumer
// byte ring buffers that carry framed atoms between the audio thread,
// the worker, and UI peers (spec §4.7, §5, §9): "SPSC ring buffers,
// atomic read/write indices, no mutexes on the audio-thread side".
//
// The corpus has no true lock-free ring buffer to ground this on — the
// teacher's dispatcher.go/engine/queue.Queue both serialize work over a
// buffered channel, which is the right shape for the worker's own
// dispatch loop (see the worker package) but channels can block a
// sender when full, which the audio thread must never risk. This
// package instead follows spec §4.7/§9's wording directly: a byte
// array with atomic head/tail cursors, one writer, one reader.
package ring

import (
	"errors"
	"sync/atomic"
)

// ErrFull is returned by Write when there isn't enough free space for
// the frame (the audio thread must treat this as "drop or
// apply back-pressure", never block — spec §5).
var ErrFull = errors.New("ring: full")

// ErrEmpty is returned by Read when there is nothing to read.
var ErrEmpty = errors.New("ring: empty")

// Buffer is a fixed-capacity SPSC byte ring. Capacity is rounded up to
// a power of two so index wraparound is a mask instead of a modulo.
type Buffer struct {
	data []byte
	mask uint64

	// head is the next byte index the reader will read from.
	// tail is the next byte index the writer will write to.
	// Both only ever increase; wrap is applied via &mask on index.
	head uint64
	tail uint64
}

// New creates a ring buffer whose usable capacity is at least size
// bytes (rounded up to the next power of two).
func New(size int) *Buffer {
	cap := nextPow2(size)
	return &Buffer{data: make([]byte, cap), mask: uint64(cap - 1)}
}

func nextPow2(n int) int {
	if n < 64 {
		n = 64
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// Len reports the number of unread bytes currently stored (the
// consumer's view).
func (b *Buffer) Len() int {
	head := atomic.LoadUint64(&b.head)
	tail := atomic.LoadUint64(&b.tail)
	return int(tail - head)
}

// Free reports the number of bytes available to write (the producer's
// view).
func (b *Buffer) Free() int {
	return len(b.data) - b.Len()
}

// Write copies frame into the ring. It never blocks: if there isn't
// enough free space it returns ErrFull and writes nothing; a frame that
// runs past the end of the storage wraps around to the start
// (spec §5: "audio thread never blocks").
func (b *Buffer) Write(frame []byte) error {
	if len(frame) == 0 {
		return nil
	}
	tail := atomic.LoadUint64(&b.tail)
	head := atomic.LoadUint64(&b.head)
	if len(frame) > len(b.data)-int(tail-head) {
		return ErrFull
	}

	start := int(tail & b.mask)
	n := copy(b.data[start:], frame)
	if n < len(frame) {
		copy(b.data, frame[n:])
	}

	atomic.StoreUint64(&b.tail, tail+uint64(len(frame)))
	return nil
}

// Read copies up to len(dst) unread bytes into dst and advances the
// read cursor by that amount, returning the number of bytes copied.
// Returns ErrEmpty if nothing is available.
func (b *Buffer) Read(dst []byte) (int, error) {
	head := atomic.LoadUint64(&b.head)
	tail := atomic.LoadUint64(&b.tail)
	avail := int(tail - head)
	if avail == 0 {
		return 0, ErrEmpty
	}
	n := len(dst)
	if n > avail {
		n = avail
	}

	start := int(head & b.mask)
	copied := copy(dst[:n], b.data[start:])
	if copied < n {
		copy(dst[copied:n], b.data[:n-copied])
	}

	atomic.StoreUint64(&b.head, head+uint64(n))
	return n, nil
}

// Peek returns up to len(dst) unread bytes without advancing the read
// cursor, used by Advance-style protocols that first inspect a frame's
// length header before consuming it.
func (b *Buffer) Peek(dst []byte) (int, error) {
	head := atomic.LoadUint64(&b.head)
	tail := atomic.LoadUint64(&b.tail)
	avail := int(tail - head)
	if avail == 0 {
		return 0, ErrEmpty
	}
	n := len(dst)
	if n > avail {
		n = avail
	}
	start := int(head & b.mask)
	copied := copy(dst[:n], b.data[start:])
	if copied < n {
		copy(dst[copied:n], b.data[:n-copied])
	}
	return n, nil
}

// Advance discards n unread bytes without copying them out, completing
// a Peek-then-Advance read (spec §4.7's "to_ui_request/advance" pair).
func (b *Buffer) Advance(n int) {
	head := atomic.LoadUint64(&b.head)
	tail := atomic.LoadUint64(&b.tail)
	avail := int(tail - head)
	if n > avail {
		n = avail
	}
	atomic.StoreUint64(&b.head, head+uint64(n))
}
