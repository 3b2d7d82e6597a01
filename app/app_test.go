package app

import (
	"context"
	"testing"
	"time"

	"github.com/shaban/synthpod/catalog"
	"github.com/shaban/synthpod/config"
	"github.com/shaban/synthpod/module"
	"github.com/shaban/synthpod/patch"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	cat := catalog.NewStatic()
	catalog.RegisterBuiltins(cat)
	cfg, err := config.New(
		config.WithBlockSize(scenarioPeriod, scenarioPeriod),
		config.WithSequenceSize(2048),
		config.WithNumPeriods(1),
	)
	if err != nil {
		t.Fatalf("config.New: %v", err)
	}
	a, err := New(cfg, cat)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

// waitForIncoming polls RunPre until a module submitted through
// AddModule has been applied to the vector, or fails the test after a
// generous timeout — AddModule hands off through the worker bridge and
// a goroutine, so the module's arrival in Vector.All() is not
// synchronous with the call.
func waitForIncoming(t *testing.T, a *App, want int) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		a.RunPre(scenarioPeriod)
		a.RunPost(scenarioPeriod)
		if len(a.Vector.All()) >= want {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %d module(s), got %d", want, len(a.Vector.All()))
		case <-time.After(time.Millisecond):
		}
	}
}

func TestAppAddModuleAppliesOnAudioThread(t *testing.T) {
	a := newTestApp(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go a.Drive(ctx)

	a.AddModule("sys:audio_in")
	waitForIncoming(t, a, 1)

	mods := a.Vector.All()
	if len(mods) != 1 || mods[0].URI != "sys:audio_in" {
		t.Fatalf("unexpected vector contents: %+v", mods)
	}
	if a.Connector.Schedule == nil || len(a.Connector.Schedule.Order()) != 1 {
		t.Fatalf("expected the new module to appear in the rebuilt schedule")
	}
}

func TestAppDeleteModuleReconciles(t *testing.T) {
	a := newTestApp(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go a.Drive(ctx)

	a.AddModule("sys:audio_in")
	waitForIncoming(t, a, 1)
	mod := a.Vector.All()[0]

	if err := a.DeleteModule(mod.ID); err != nil {
		t.Fatalf("DeleteModule: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		a.RunPre(scenarioPeriod)
		a.RunPost(scenarioPeriod)
		if len(a.Vector.All()) == 0 {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for delete reconciliation, vector = %+v", a.Vector.All())
		case <-time.After(time.Millisecond):
		}
	}
}

func TestAppDeleteModuleUnknownIDErrors(t *testing.T) {
	a := newTestApp(t)
	if err := a.DeleteModule(999); err == nil {
		t.Fatalf("expected an error for an unknown module id")
	}
}

// TestRunPrePropagatesSamePeriod exercises RunPre's actual per-node
// schedule/mix interleaving (spec §5's "for each node: multiplex inputs
// -> plugin.run") end to end through a source -> gain -> sink chain: a
// value written into the source's buffer right before RunPre must reach
// the sink's input buffer within that same call, not the next one.
func TestRunPrePropagatesSamePeriod(t *testing.T) {
	a := newTestApp(t)
	mgr := module.NewManager(a.Catalog, scenarioSampleRate, scenarioPeriod, 8192, catalog.Features{})

	src := buildScenarioModule(t, mgr, a.Vector, "sys:audio_in")
	gainMod := buildScenarioModule(t, mgr, a.Vector, "synthpod:gain")
	sink := buildScenarioModule(t, mgr, a.Vector, "sys:audio_out")
	connectSettled(t, src, "out", gainMod, "in")
	connectSettled(t, gainMod, "out", sink, "in")
	a.Connector.Schedule = a.Connector.DagReorder()

	fillConst(src.PortBySymbol("out").Buffer.Samples, 5)

	a.RunPre(scenarioPeriod)

	in := sink.PortBySymbol("in").Buffer.Samples
	for i, v := range in {
		if v != 5 {
			t.Fatalf("sample %d = %v, want 5 (same-period propagation through source -> gain -> sink)", i, v)
		}
	}
}

// TestAddModuleFailureReportsError covers spec §7's "capacity/unknown
// uri errors become a patch:Error message, never a panic": requesting
// an unsupported uri must reach ErrorHandler and post a decodable
// patch:Error frame on ToUI, not just get logged and dropped.
func TestAddModuleFailureReportsError(t *testing.T) {
	a := newTestApp(t)
	collector := &CollectingErrorHandler{}
	a.ErrorHandler = collector
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go a.Drive(ctx)

	a.AddModule("not:a-real-plugin")

	deadline := time.After(2 * time.Second)
	for len(collector.Errors) == 0 {
		a.RunPre(scenarioPeriod)
		a.RunPost(scenarioPeriod)
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for the add failure to be reported")
		case <-time.After(time.Millisecond):
		}
	}

	frame, err := a.ToUI.ReadFrame()
	if err != nil {
		t.Fatalf("expected a patch:Error frame on ToUI, got ReadFrame error: %v", err)
	}
	msg, err := patch.Decode(frame, a.Registry)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if msg.Verb != patch.Error {
		t.Fatalf("verb = %v, want patch.Error", msg.Verb)
	}
	if !msg.HasSeq || msg.SequenceNumber == 0 {
		t.Fatalf("expected a nonzero sequence number, got %+v", msg)
	}
	if a.Registry.Unmap(msg.Subject) != "not:a-real-plugin" {
		t.Fatalf("subject = %q, want the failed uri", a.Registry.Unmap(msg.Subject))
	}
}
