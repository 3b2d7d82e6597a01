package patch

import (
	"testing"

	"github.com/shaban/synthpod/atom"
	"github.com/shaban/synthpod/registry"
)

func TestSetVerbRoundTrip(t *testing.T) {
	reg := registry.New()
	valBuf := make([]byte, 16)
	n, _ := atom.PutFloat(valBuf, reg, 0.75)

	msg := Message{
		Verb:     Set,
		Subject:  reg.Map("urn:test-module"),
		Property: reg.Map("synthpod:gain"),
		Value:    valBuf[:n],
	}
	buf := make([]byte, 256)
	wn, err := Encode(buf, reg, msg)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if wn == 0 {
		t.Fatalf("Encode wrote 0 bytes")
	}

	got, err := Decode(buf, reg)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Verb != Set {
		t.Fatalf("Verb = %v, want Set", got.Verb)
	}
	if got.Subject != msg.Subject || got.Property != msg.Property {
		t.Fatalf("subject/property mismatch: %+v", got)
	}
	fv, _, err := atom.GetFloat(got.Value)
	if err != nil || fv != 0.75 {
		t.Fatalf("value = (%v,%v), want 0.75", fv, err)
	}
}

func TestGetVerbWithSequenceNumber(t *testing.T) {
	reg := registry.New()
	msg := Message{Verb: Get, Subject: reg.Map("urn:x"), SequenceNumber: 7, HasSeq: true}
	buf := make([]byte, 128)
	if _, err := Encode(buf, reg, msg); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(buf, reg)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !got.HasSeq || got.SequenceNumber != 7 {
		t.Fatalf("sequence number lost: %+v", got)
	}
}

func TestMoveVerbCarriesDestination(t *testing.T) {
	reg := registry.New()
	msg := Message{Verb: Move, Subject: reg.Map("urn:a"), Destination: reg.Map("urn:b")}
	buf := make([]byte, 128)
	Encode(buf, reg, msg)
	got, err := Decode(buf, reg)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Verb != Move || got.Destination != msg.Destination {
		t.Fatalf("got %+v", got)
	}
}

func TestStallTransitionsFollowSpecTable(t *testing.T) {
	s := NewStall(64)
	if s.State() != RUN || !s.AdvanceUI() {
		t.Fatalf("initial state must be RUN with UI advancing")
	}

	s.EnterDrain()
	if s.State() != DRAIN || s.AdvanceUI() {
		t.Fatalf("DRAIN must stop advancing UI: state=%v advanceUI=%v", s.State(), s.AdvanceUI())
	}

	s.AckDrainComplete()
	if s.State() != BLOCK || !s.AdvanceUI() {
		t.Fatalf("BLOCK must advance UI reads: state=%v", s.State())
	}

	s.PostCompletedState()
	if s.State() != WAIT || s.AdvanceUI() {
		t.Fatalf("WAIT must stop advancing UI: state=%v", s.State())
	}

	s.Desilenced()
	if s.State() != RUN {
		t.Fatalf("expected RUN after desilencing, got %v", s.State())
	}
}

func TestStallAlwaysAdvancesWork(t *testing.T) {
	s := NewStall(64)
	for _, st := range []State{RUN, DRAIN, BLOCK, WAIT} {
		s.state = st
		if !s.AdvanceWork() {
			t.Fatalf("AdvanceWork must always be true, failed at %v", st)
		}
	}
}

func TestDrainAutoReleasesAfterTimeout(t *testing.T) {
	s := NewStall(64)
	s.TimeoutFrames = 1000
	s.EnterDrain()

	s.Tick(400)
	if s.State() != DRAIN {
		t.Fatalf("should still be draining before timeout")
	}
	s.Tick(700) // crosses the 1000-frame timeout
	if s.State() != RUN {
		t.Fatalf("expected auto-release to RUN after timeout, got %v", s.State())
	}
}

func TestRunNeverTicksTowardTimeout(t *testing.T) {
	s := NewStall(64)
	s.TimeoutFrames = 10
	s.Tick(100) // in RUN; must be a no-op
	if s.State() != RUN {
		t.Fatalf("Tick in RUN must not transition state")
	}
}
