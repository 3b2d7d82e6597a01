package ring

import (
	"bytes"
	"testing"

	"pgregory.net/rapid"
)

func TestWriteReadRoundTrip(t *testing.T) {
	b := New(128)
	if err := b.Write([]byte("hello")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	dst := make([]byte, 5)
	n, err := b.Read(dst)
	if err != nil || n != 5 || string(dst) != "hello" {
		t.Fatalf("Read = (%d,%v,%q)", n, err, dst)
	}
}

func TestWriteFailsWhenFull(t *testing.T) {
	b := New(64) // rounds up to 64
	if err := b.Write(make([]byte, 64)); err != nil {
		t.Fatalf("fill: %v", err)
	}
	if err := b.Write([]byte{1}); err != ErrFull {
		t.Fatalf("want ErrFull, got %v", err)
	}
}

func TestReadEmptyErrors(t *testing.T) {
	b := New(64)
	if _, err := b.Read(make([]byte, 1)); err != ErrEmpty {
		t.Fatalf("want ErrEmpty, got %v", err)
	}
}

func TestWraparoundPreservesData(t *testing.T) {
	b := New(64)
	scratch := make([]byte, 60)
	b.Write(scratch)
	b.Read(scratch)
	// head/tail now both at 60; next write wraps around the 64-byte backing array
	payload := []byte("wraparound-test-payload")
	if err := b.Write(payload); err != nil {
		t.Fatalf("Write: %v", err)
	}
	dst := make([]byte, len(payload))
	n, err := b.Read(dst)
	if err != nil || n != len(payload) || !bytes.Equal(dst, payload) {
		t.Fatalf("wraparound read corrupted: n=%d err=%v got=%q want=%q", n, err, dst, payload)
	}
}

func TestFrameRoundTrip(t *testing.T) {
	b := New(256)
	if err := b.WriteFrame([]byte("atom-payload")); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	got, err := b.ReadFrame()
	if err != nil || string(got) != "atom-payload" {
		t.Fatalf("ReadFrame = (%q,%v)", got, err)
	}
}

func TestPeekThenAdvance(t *testing.T) {
	b := New(128)
	b.Write([]byte("12345"))
	peeked := make([]byte, 3)
	n, err := b.Peek(peeked)
	if err != nil || n != 3 || string(peeked) != "123" {
		t.Fatalf("Peek = (%d,%v,%q)", n, err, peeked)
	}
	if b.Len() != 5 {
		t.Fatalf("Peek must not consume: Len() = %d, want 5", b.Len())
	}
	b.Advance(3)
	rest := make([]byte, 2)
	b.Read(rest)
	if string(rest) != "45" {
		t.Fatalf("got %q, want 45", rest)
	}
}

// TestNoLossNoDuplicationNoCorruption is the property test for spec
// invariant 7: under arbitrary interleaving of writes (each succeeding
// or failing on capacity) and reads, every byte sequence that was
// successfully written is read back intact, in order, with nothing
// extra interleaved in.
func TestNoLossNoDuplicationNoCorruption(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		b := New(256)
		var want bytes.Buffer
		var got bytes.Buffer

		steps := rapid.IntRange(1, 200).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			if rapid.Bool().Draw(rt, "doWrite") {
				n := rapid.IntRange(1, 40).Draw(rt, "len")
				payload := rapid.SliceOfN(rapid.Byte(), n, n).Draw(rt, "payload")
				if err := b.Write(payload); err == nil {
					want.Write(payload)
				}
			} else {
				n := rapid.IntRange(1, 40).Draw(rt, "readLen")
				dst := make([]byte, n)
				if k, err := b.Read(dst); err == nil {
					got.Write(dst[:k])
				}
			}
		}
		// drain whatever remains so want/got compare the full history
		for {
			dst := make([]byte, 64)
			k, err := b.Read(dst)
			if err != nil {
				break
			}
			got.Write(dst[:k])
		}

		if !bytes.Equal(want.Bytes(), got.Bytes()) {
			rt.Fatalf("byte stream diverged: wrote %d bytes, read back %d bytes (mismatch)", want.Len(), got.Len())
		}
	})
}
