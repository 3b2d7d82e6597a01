package graph

import (
	"context"
	"testing"

	"github.com/shaban/synthpod/catalog"
	"github.com/shaban/synthpod/module"
	"github.com/shaban/synthpod/port"
)

func newTestCatalog() *catalog.Static {
	c := catalog.NewStatic()
	catalog.RegisterBuiltins(c)
	return c
}

func buildModule(t *testing.T, mgr *module.Manager, v *module.Vector, uri string) *module.Module {
	t.Helper()
	m, err := mgr.Build(context.Background(), uri)
	if err != nil {
		t.Fatalf("Build(%s): %v", uri, err)
	}
	if err := v.Insert(m); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	module.BindModuleID(m)
	return m
}

func audioOut(m *module.Module) port.Endpoint {
	for _, p := range m.Ports {
		if p.Type == port.TypeAudio && p.Direction == port.DirectionOutput {
			return port.Endpoint{Module: m.ID, Index: p.Index}
		}
	}
	panic("no audio output port")
}

func audioIn(m *module.Module) port.Endpoint {
	for _, p := range m.Ports {
		if p.Type == port.TypeAudio && p.Direction == port.DirectionInput {
			return port.Endpoint{Module: m.ID, Index: p.Index}
		}
	}
	panic("no audio input port")
}

func TestConnectIdempotent(t *testing.T) {
	v := module.NewVector()
	mgr := module.NewManager(newTestCatalog(), 48000, 64, 256, catalog.Features{})
	a := buildModule(t, mgr, v, "sys:audio_in")
	b := buildModule(t, mgr, v, "synthpod:gain")

	c := NewConnector(v, 64)
	if err := c.Connect(audioOut(a), audioIn(b)); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := c.Connect(audioOut(a), audioIn(b)); err != nil {
		t.Fatalf("second Connect (idempotent) returned error: %v", err)
	}
	snk := b.Ports[audioIn(b).Index]
	if snk.Connectable.Count != 1 {
		t.Fatalf("Count = %d, want 1 (idempotent connect must not duplicate)", snk.Connectable.Count)
	}
}

func TestDisconnectIdempotent(t *testing.T) {
	v := module.NewVector()
	mgr := module.NewManager(newTestCatalog(), 48000, 64, 256, catalog.Features{})
	a := buildModule(t, mgr, v, "sys:audio_in")
	b := buildModule(t, mgr, v, "synthpod:gain")
	c := NewConnector(v, 64)

	if _, err := c.Disconnect(audioOut(a), audioIn(b)); err != nil {
		t.Fatalf("Disconnect on absent edge: %v", err)
	}

	if err := c.Connect(audioOut(a), audioIn(b)); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if _, err := c.Disconnect(audioOut(a), audioIn(b)); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if _, err := c.Disconnect(audioOut(a), audioIn(b)); err != nil {
		t.Fatalf("second Disconnect (idempotent) returned error: %v", err)
	}
}

func TestConnectableCapacityEnforced(t *testing.T) {
	v := module.NewVector()
	mgr := module.NewManager(newTestCatalog(), 48000, 64, 256, catalog.Features{})
	b := buildModule(t, mgr, v, "synthpod:gain")
	c := NewConnector(v, 64)

	for i := 0; i < port.MaxSourcesPerSink; i++ {
		src := buildModule(t, mgr, v, "sys:audio_in")
		if err := c.Connect(audioOut(src), audioIn(b)); err != nil {
			t.Fatalf("connect %d: %v", i, err)
		}
	}
	overflow := buildModule(t, mgr, v, "sys:audio_in")
	if err := c.Connect(audioOut(overflow), audioIn(b)); err == nil {
		t.Fatalf("expected capacity error on the 33rd source")
	}
}

func TestRampDownIsMonotoneNonIncreasingAcrossPeriods(t *testing.T) {
	v := module.NewVector()
	mgr := module.NewManager(newTestCatalog(), 48000, 64, 256, catalog.Features{})
	a := buildModule(t, mgr, v, "sys:audio_in")
	b := buildModule(t, mgr, v, "synthpod:gain")
	c := NewConnector(v, 64)

	if err := c.Connect(audioOut(a), audioIn(b)); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	deferred, err := c.Disconnect(audioOut(a), audioIn(b))
	if err != nil || !deferred {
		t.Fatalf("Disconnect: deferred=%v err=%v", deferred, err)
	}

	snk := b.Ports[audioIn(b).Index]
	prev := float32(2) // above any legal gain
	for snk.Connectable.Count > 0 {
		s := &snk.Connectable.Sources[0]
		s.Advance(8)
		if s.RampCurrent > prev {
			t.Fatalf("ramp-down gain increased: prev=%v now=%v", prev, s.RampCurrent)
		}
		prev = s.RampCurrent
		c.ReleaseCompletedRamps()
	}
}

func TestConcurrencyWidthDiamond(t *testing.T) {
	v := module.NewVector()
	mgr := module.NewManager(newTestCatalog(), 48000, 64, 256, catalog.Features{})
	a := buildModule(t, mgr, v, "sys:audio_in")
	bMod := buildModule(t, mgr, v, "synthpod:gain")
	cMod := buildModule(t, mgr, v, "synthpod:gain")
	d := buildModule(t, mgr, v, "synthpod:gain")

	conn := NewConnector(v, 64)
	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("connect: %v", err)
		}
	}
	must(conn.Connect(audioOut(a), audioIn(bMod)))
	must(conn.Connect(audioOut(a), audioIn(cMod)))
	must(conn.Connect(audioOut(bMod), audioIn(d)))
	must(conn.Connect(audioOut(cMod), audioIn(d)))

	// a -> {b, c} -> d: b and c become ready in the same wave once a has
	// run, so the diamond's concurrency width is 2 (spec §8 scenario S4).
	if got := conn.Schedule.ConcurrencyWidth(); got != 2 {
		t.Fatalf("ConcurrencyWidth() = %d, want 2", got)
	}
}

func TestArmDeleteRampsRequiresDrainBeforeDrop(t *testing.T) {
	v := module.NewVector()
	mgr := module.NewManager(newTestCatalog(), 48000, 64, 256, catalog.Features{})
	a := buildModule(t, mgr, v, "sys:audio_in")
	b := buildModule(t, mgr, v, "synthpod:gain")
	c := NewConnector(v, 64)
	if err := c.Connect(audioOut(a), audioIn(b)); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	c.ArmDeleteRamps(a)
	if !a.DeleteRequest {
		t.Fatalf("DeleteRequest not set")
	}
	if ready := c.ReleaseCompletedRamps(); len(ready) != 0 {
		t.Fatalf("module dropped before its ramp drained: %v", ready)
	}

	snk := b.Ports[audioIn(b).Index]
	for snk.Connectable.Count > 0 {
		snk.Connectable.Sources[0].Advance(64)
		ready := c.ReleaseCompletedRamps()
		for _, id := range ready {
			if id != a.ID {
				t.Fatalf("unexpected module %d reported ready to drop", id)
			}
		}
	}
}
