package atom

import (
	"encoding/binary"
	"sort"

	"github.com/shaban/synthpod/registry"
)

// sequenceBodyHeader is the (unit, pad) pair LV2 puts right after a
// Sequence atom's (size,type) header, before the first event.
const sequenceBodyHeader = 8

// Event is one decoded entry of an atom sequence: a frame-accurate
// timestamp plus the nested atom it carries (spec §6: "events are
// frame-stamped atoms").
type Event struct {
	Frames uint32
	Type   registry.URID
	Body   []byte // the nested atom's raw payload bytes (no header)
}

// eventHeaderSize is (frames uint32, pad uint32) plus the nested atom's
// own (size,type) header.
const eventHeaderSize = 8 + headerSize

// NewSequence writes an empty sequence header into buf (spec §4.2:
// "atom sequences to an empty sequence header").
func NewSequence(buf []byte, reg *registry.Registry) int {
	n := align(headerSize + sequenceBodyHeader)
	if len(buf) < n {
		return 0
	}
	putHeader(buf, Header{Size: sequenceBodyHeader, Type: reg.Map(registry.URIAtomSequence)})
	binary.LittleEndian.PutUint32(buf[headerSize:headerSize+4], uint32(registry.None)) // unit
	binary.LittleEndian.PutUint32(buf[headerSize+4:headerSize+8], 0)                   // pad
	for i := n; i < len(buf); i++ {
		buf[i] = 0
	}
	return n
}

// PutEvent appends one frame-stamped atom to a sequence buffer in
// place, growing the sequence's declared size. Returns the new total
// sequence length, or an error if it would overflow buf.
func PutEvent(buf []byte, frames uint32, typ registry.URID, body []byte) (int, error) {
	h, err := getHeader(buf)
	if err != nil {
		return 0, err
	}
	used := align(headerSize + int(h.Size))
	add := align(eventHeaderSize + len(body))
	if used+add > len(buf) {
		return 0, ErrOverflow
	}

	off := used
	binary.LittleEndian.PutUint32(buf[off:off+4], frames)
	binary.LittleEndian.PutUint32(buf[off+4:off+8], 0)
	putHeader(buf[off+8:], Header{Size: uint32(len(body)), Type: typ})
	copy(buf[off+8+headerSize:off+8+headerSize+len(body)], body)
	for i := off + 8 + headerSize + len(body); i < off+add; i++ {
		buf[i] = 0
	}

	h.Size += uint32(add)
	putHeader(buf, h)
	return used + add, nil
}

// Events decodes every event in a sequence buffer, in wire order.
func Events(buf []byte) ([]Event, error) {
	h, err := getHeader(buf)
	if err != nil {
		return nil, err
	}
	body := int(h.Size)
	pos := headerSize + sequenceBodyHeader
	end := headerSize + body
	if end > len(buf) {
		return nil, ErrTruncated
	}

	var events []Event
	for pos < end {
		if pos+eventHeaderSize > end {
			return nil, ErrTruncated
		}
		frames := binary.LittleEndian.Uint32(buf[pos : pos+4])
		eh, err := getHeader(buf[pos+8:])
		if err != nil {
			return nil, err
		}
		bodyStart := pos + 8 + headerSize
		bodyEnd := bodyStart + int(eh.Size)
		if bodyEnd > end {
			return nil, ErrTruncated
		}
		events = append(events, Event{Frames: frames, Type: eh.Type, Body: buf[bodyStart:bodyEnd]})
		pos += align(eventHeaderSize + int(eh.Size))
	}
	return events, nil
}

// Merger merges N source sequence buffers into one destination buffer
// in non-decreasing frame order, implementing graph.SequenceMerger
// (spec §8 invariant 6: "sequence merge preserves every event... in
// non-decreasing frame order").
//
// Grounded on spec §4.6's merge description; there is no teacher
// analogue since the teacher repo has no atom-sequence concept, so this
// follows the LV2 host merge idiom directly (decode every source,
// stable-sort by frame, re-encode).
type Merger struct {
	Registry *registry.Registry
}

// Merge implements graph.SequenceMerger.
func (m *Merger) Merge(dst []byte, srcs [][]byte) (n int, overflow bool) {
	type tagged struct {
		Event
		order int
	}
	var all []tagged
	for srcIdx, s := range srcs {
		if len(s) == 0 {
			continue
		}
		evs, err := Events(s)
		if err != nil {
			continue
		}
		for _, e := range evs {
			all = append(all, tagged{Event: e, order: srcIdx})
		}
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].Frames != all[j].Frames {
			return all[i].Frames < all[j].Frames
		}
		return all[i].order < all[j].order
	})

	n = NewSequence(dst, m.Registry)
	for _, e := range all {
		written, err := PutEvent(dst, e.Frames, e.Type, e.Body)
		if err != nil {
			return n, true
		}
		n = written
	}
	return n, false
}
