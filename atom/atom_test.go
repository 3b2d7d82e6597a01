package atom

import (
	"testing"

	"github.com/shaban/synthpod/registry"
)

func TestScalarRoundTrip(t *testing.T) {
	reg := registry.New()
	buf := make([]byte, 64)

	n, err := PutInt(buf, reg, -42)
	if err != nil {
		t.Fatalf("PutInt: %v", err)
	}
	if n%8 != 0 {
		t.Fatalf("atom not 8-byte aligned: %d", n)
	}
	v, n2, err := GetInt(buf)
	if err != nil {
		t.Fatalf("GetInt: %v", err)
	}
	if v != -42 || n2 != n {
		t.Fatalf("got (%d,%d), want (-42,%d)", v, n2, n)
	}

	if _, err := PutFloat(buf, reg, 3.5); err != nil {
		t.Fatalf("PutFloat: %v", err)
	}
	fv, _, err := GetFloat(buf)
	if err != nil || fv != 3.5 {
		t.Fatalf("GetFloat = (%v,%v), want 3.5", fv, err)
	}
}

func TestStringRoundTrip(t *testing.T) {
	reg := registry.New()
	buf := make([]byte, 64)
	n, err := PutString(buf, reg, "hello")
	if err != nil {
		t.Fatalf("PutString: %v", err)
	}
	if n%8 != 0 {
		t.Fatalf("not aligned: %d", n)
	}
	s, _, err := GetString(buf)
	if err != nil || s != "hello" {
		t.Fatalf("GetString = (%q,%v), want hello", s, err)
	}
}

func TestTruncatedBufferErrors(t *testing.T) {
	if _, _, err := GetInt([]byte{1, 2, 3}); err != ErrTruncated {
		t.Fatalf("want ErrTruncated, got %v", err)
	}
}

func TestOverflowDetected(t *testing.T) {
	reg := registry.New()
	tiny := make([]byte, 4)
	if _, err := PutInt(tiny, reg, 1); err != ErrOverflow {
		t.Fatalf("want ErrOverflow, got %v", err)
	}
}

func TestSequenceEventRoundTrip(t *testing.T) {
	reg := registry.New()
	buf := make([]byte, 256)
	NewSequence(buf, reg)

	midi := reg.Map(registry.URIMidiEvent)
	if _, err := PutEvent(buf, 10, midi, []byte{0x90, 0x40, 0x7f}); err != nil {
		t.Fatalf("PutEvent: %v", err)
	}
	if _, err := PutEvent(buf, 20, midi, []byte{0x80, 0x40, 0x00}); err != nil {
		t.Fatalf("PutEvent: %v", err)
	}

	evs, err := Events(buf)
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if len(evs) != 2 {
		t.Fatalf("got %d events, want 2", len(evs))
	}
	if evs[0].Frames != 10 || evs[1].Frames != 20 {
		t.Fatalf("frames out of order: %v, %v", evs[0].Frames, evs[1].Frames)
	}
}

func TestMergerOrdersEventsByFrame(t *testing.T) {
	reg := registry.New()
	midi := reg.Map(registry.URIMidiEvent)

	a := make([]byte, 128)
	NewSequence(a, reg)
	PutEvent(a, 30, midi, []byte{1})
	PutEvent(a, 5, midi, []byte{2}) // out of order within one source, legal at encode time for this test

	b := make([]byte, 128)
	NewSequence(b, reg)
	PutEvent(b, 15, midi, []byte{3})

	dst := make([]byte, 256)
	m := &Merger{Registry: reg}
	_, overflow := m.Merge(dst, [][]byte{a, b})
	if overflow {
		t.Fatalf("unexpected overflow")
	}

	evs, err := Events(dst)
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if len(evs) != 3 {
		t.Fatalf("got %d events, want 3", len(evs))
	}
	for i := 1; i < len(evs); i++ {
		if evs[i].Frames < evs[i-1].Frames {
			t.Fatalf("events not in non-decreasing frame order: %v", evs)
		}
	}
}

func TestMergeOverflowReported(t *testing.T) {
	reg := registry.New()
	midi := reg.Map(registry.URIMidiEvent)
	a := make([]byte, 128)
	NewSequence(a, reg)
	for i := 0; i < 10; i++ {
		PutEvent(a, uint32(i), midi, []byte{byte(i)})
	}
	dst := make([]byte, 16) // too small to hold even the header comfortably
	m := &Merger{Registry: reg}
	if _, overflow := m.Merge(dst, [][]byte{a}); !overflow {
		t.Fatalf("expected overflow")
	}
}

func TestTupleRoundTrip(t *testing.T) {
	reg := registry.New()
	e1 := make([]byte, 16)
	n1, _ := PutInt(e1, reg, 7)
	e2 := make([]byte, 16)
	n2, _ := PutFloat(e2, reg, 2.5)

	buf := make([]byte, 64)
	if _, err := PutTuple(buf, reg, e1[:n1], e2[:n2]); err != nil {
		t.Fatalf("PutTuple: %v", err)
	}
	elems, err := TupleElements(buf)
	if err != nil {
		t.Fatalf("TupleElements: %v", err)
	}
	if len(elems) != 2 {
		t.Fatalf("got %d elements, want 2", len(elems))
	}
	v, _, _ := GetInt(elems[0])
	if v != 7 {
		t.Fatalf("first element = %d, want 7", v)
	}
}

func TestObjectRoundTrip(t *testing.T) {
	reg := registry.New()
	valBuf := make([]byte, 16)
	n, _ := PutInt(valBuf, reg, 99)

	key := reg.Map("patch:value")
	buf := make([]byte, 64)
	if _, err := PutObject(buf, reg, registry.None, reg.Map(registry.VerbSet), Property{Key: key, Value: valBuf[:n]}); err != nil {
		t.Fatalf("PutObject: %v", err)
	}
	_, otype, props, err := ObjectFields(buf)
	if err != nil {
		t.Fatalf("ObjectFields: %v", err)
	}
	if otype != reg.Map(registry.VerbSet) {
		t.Fatalf("otype mismatch")
	}
	val := FindProperty(props, key)
	if val == nil {
		t.Fatalf("property not found")
	}
	got, _, _ := GetInt(val)
	if got != 99 {
		t.Fatalf("got %d, want 99", got)
	}
}
