// Package app wires every other package into the single audio-thread
// context spec §9 calls for ("a single-threaded 'app' owns the module
// vector; worker and UI see it only across the ring boundary"). App is
// that context value: a backend drives App.RunPre/RunPost once per
// period, while AddModule/DeleteModule/SavePreset/etc. are called from
// off-thread code (a UI goroutine, a CLI command) and hand off through
// the worker bridge and the module-event channel instead of touching
// the vector directly.
//
// Grounded on dispatcher.go's Dispatcher (owns the mutable state,
// exposes thread-safe operation methods, runs a background loop)
// generalized from one serialized-mutation queue to the full
// pre/drain/schedule/post period pipeline spec §5 describes.
package app

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/shaban/synthpod/atom"
	"github.com/shaban/synthpod/backend"
	"github.com/shaban/synthpod/catalog"
	"github.com/shaban/synthpod/config"
	"github.com/shaban/synthpod/graph"
	"github.com/shaban/synthpod/module"
	"github.com/shaban/synthpod/patch"
	"github.com/shaban/synthpod/persist"
	"github.com/shaban/synthpod/port"
	"github.com/shaban/synthpod/registry"
	"github.com/shaban/synthpod/ring"
	"github.com/shaban/synthpod/worker"
)

// moduleEvent is a worker job completion waiting to be applied to the
// vector on the audio thread (spec §5: only the audio thread mutates
// the vector). errSubject names whatever the failure should be
// reported against (a requested uri or a module's urn) — ToUI is an
// SPSC ring, so reportError must only ever run from applyIncoming on
// the audio thread, never from the worker-reply goroutine directly.
type moduleEvent struct {
	errSubject string
	add        *module.Module
	err        error
}

// App is the audio-thread context: every period, a Backend calls
// RunPre then RunPost against it.
type App struct {
	Config   config.Options
	Registry *registry.Registry
	Catalog  catalog.Catalog

	Manager     *module.Manager
	Vector      *module.Vector
	Connector   *graph.Connector
	Scheduler   *graph.Scheduler
	Multiplexer *graph.Multiplexer

	Stall  *patch.Stall
	Worker *worker.Bridge
	Store  *persist.Store

	// ErrorHandler receives every error this app surfaces off the audio
	// thread, in addition to the patch:Error message posted to ToUI
	// (spec §7). Defaults to logging through Worker.Log; callers may
	// replace it, e.g. with a CollectingErrorHandler in tests.
	ErrorHandler ErrorHandler
	errSeq       uint32

	// ToUI carries the outbound patch:Error messages reportError posts
	// for a UI peer to drain; FromUI carries inbound patch-verb
	// messages. Both are SPSC rings per
	// spec §4.7/§9.
	ToUI   *ring.Buffer
	FromUI *ring.Buffer

	mu       sync.Mutex
	incoming chan moduleEvent
}

// New wires a complete App: registry, catalog-backed module manager,
// an empty vector, connector/scheduler/multiplexer sized from cfg, the
// worker bridge bound to a fresh persist.Store, and UI rings sized by
// cfg.SeqSize.
func New(cfg config.Options, cat catalog.Catalog) (*App, error) {
	reg := registry.New()
	vec := module.NewVector()
	mgr := module.NewManager(cat, cfg.SampleRate, cfg.MinBlock, cfg.SeqSize, cfg.Features)
	conn := graph.NewConnector(vec, cfg.MinBlock)
	sched := graph.NewScheduler(cfg.SchedulerMode, cfg.NumSlaves)
	mux := graph.NewMultiplexer(&atom.Merger{Registry: reg})
	stall := patch.NewStall(cfg.MinBlock)
	store := persist.NewStore(vec, reg)

	bridge := worker.New(mgr, store, stall, 32)
	bridge.Registry = reg
	bridge.TraceRing = ring.New(cfg.SeqSize)

	a := &App{
		Config:      cfg,
		Registry:    reg,
		Catalog:     cat,
		Manager:     mgr,
		Vector:      vec,
		Connector:   conn,
		Scheduler:   sched,
		Multiplexer: mux,
		Stall:       stall,
		Worker:      bridge,
		Store:       store,
		ToUI:        ring.New(cfg.SeqSize),
		FromUI:      ring.New(cfg.SeqSize),
		incoming:    make(chan moduleEvent, 64),
	}
	a.ErrorHandler = NewLoggingErrorHandler(DefaultErrorHandler{}, bridge.Log)
	return a, nil
}

// Drive runs the worker bridge's dispatch loop in the caller's
// goroutine-spawning context and blocks until ctx is canceled. Callers
// typically do `go app.Drive(ctx)` right after New, mirroring
// session.go's `go session.processPluginRequests()`.
func (a *App) Drive(ctx context.Context) {
	a.Worker.Run(ctx)
}

// RunWith blocks running the app inside back's period callbacks until
// ctx is canceled (spec §5: "a backend calls run_pre/run_post inside
// its own period callback").
func (a *App) RunWith(ctx context.Context, back backend.Backend) error {
	return back.Run(ctx, a.RunPre, a.RunPost)
}

// AddModule asks the worker to instantiate uri off the audio thread
// (spec §4.2/§4.8 MODULE_ADD). The new module is inserted into the
// vector by a later RunPre call, not synchronously — callers that need
// to know the assigned ID should poll Vector.All() or look up by URN.
func (a *App) AddModule(uri string) {
	j := worker.NewModuleAddJob(uri)
	a.Worker.Submit(j)
	go func() {
		res := <-j.Reply
		if !res.Status {
			a.incoming <- moduleEvent{errSubject: uri, err: res.Error}
			return
		}
		a.incoming <- moduleEvent{add: res.Module}
	}()
}

// DeleteModule begins the two-phase delete for id (spec §4.2 step ①):
// arms ramp-downs on every downstream connection immediately (this
// must run on the audio thread, so it is only safe to call from inside
// RunPre/RunPost or before the backend starts driving periods).
func (a *App) DeleteModule(id port.ModuleID) error {
	mod, _, ok := a.Vector.ByID(id)
	if !ok {
		return fmt.Errorf("app: no module with id %d", id)
	}
	a.Connector.ArmDeleteRamps(mod)
	return nil
}

// SavePreset/LoadPreset/SaveBundle/LoadBundle submit the corresponding
// worker job and block for its reply (spec §4.8): these are
// control-plane operations, not audio-thread work, so unlike
// AddModule/DeleteModule there is no vector mutation to defer.
func (a *App) SavePreset(path string, mod *module.Module) error {
	subject := a.Registry.Map(mod.URN)
	j := worker.NewPresetSaveJob(path, subject)
	a.Worker.Submit(j)
	res := <-j.Reply
	return res.Error
}

func (a *App) LoadPreset(path string, mod *module.Module) error {
	a.Stall.EnterDrain()
	subject := a.Registry.Map(mod.URN)
	j := worker.NewPresetLoadJob(path, subject)
	a.Worker.Submit(j)
	res := <-j.Reply
	return res.Error
}

func (a *App) SaveBundle(path string) error {
	j := worker.NewBundleSaveJob(path)
	a.Worker.Submit(j)
	res := <-j.Reply
	return res.Error
}

// LoadBundle drains the stall machine into DRAIN before loading, the
// way a preset/bundle restore takes the router out of RUN for spec
// §4.7's table to let the worker post state back in without losing a
// UI message mid-restore.
func (a *App) LoadBundle(path string) error {
	a.Stall.EnterDrain()
	j := worker.NewBundleLoadJob(path)
	a.Worker.Submit(j)
	res := <-j.Reply
	if res.Error != nil {
		return res.Error
	}
	a.mu.Lock()
	a.Connector.Schedule = a.Connector.DagReorder()
	a.mu.Unlock()
	return nil
}

// applyIncoming drains pending worker-completion events onto the
// vector (spec §5's "drain(worker->app)" step). Called from RunPre.
func (a *App) applyIncoming() {
	for {
		select {
		case ev := <-a.incoming:
			a.applyModuleEvent(ev)
		default:
			return
		}
	}
}

func (a *App) applyModuleEvent(ev moduleEvent) {
	if ev.err != nil {
		a.reportError(a.Registry.Map(ev.errSubject), ev.err)
		return
	}
	if ev.add != nil {
		if err := a.Vector.Insert(ev.add); err != nil {
			a.reportError(a.Registry.Map(ev.add.URN), err)
			return
		}
		module.BindModuleID(ev.add)
		a.Connector.Schedule = a.Connector.DagReorder()
	}
}

// reportError surfaces err both to ErrorHandler and, per spec §7, as a
// patch:Error message on ToUI carrying subject and a monotonic
// sequence number — the wire side never carries the error text itself,
// just enough for a UI to correlate the failure with what it asked for.
func (a *App) reportError(subject registry.URID, err error) {
	if a.ErrorHandler != nil {
		a.ErrorHandler.HandleError(err)
	}
	seq := atomic.AddUint32(&a.errSeq, 1)
	msg := patch.Message{Verb: patch.Error, Subject: subject, SequenceNumber: seq, HasSeq: true}
	buf := make([]byte, 256)
	n, encErr := patch.Encode(buf, a.Registry, msg)
	if encErr != nil {
		a.Worker.Log.Warn("failed to encode patch:Error", "err", encErr)
		return
	}
	if writeErr := a.ToUI.WriteFrame(buf[:n]); writeErr != nil {
		a.Worker.Log.Warn("ToUI full, dropped patch:Error", "err", writeErr)
	}
}

// reconcileDropped removes every module the connector reports as ready
// to drop (ramps fully drained, nothing downstream still reads from
// it, spec §4.2 step ①→② handoff) from the vector immediately, then
// hands each one to the worker to deactivate its plugin handle — by
// the time MODULE_DEL runs the module is already gone from the graph,
// matching worker.NewModuleDelJob's doc comment.
func (a *App) reconcileDropped(ready []port.ModuleID) {
	for _, id := range ready {
		mod, idx, ok := a.Vector.ByID(id)
		if !ok {
			continue
		}
		a.Vector.Drop(idx)
		j := worker.NewModuleDelJob(mod)
		a.Worker.Submit(j)
		go func(urn string) {
			res := <-j.Reply
			if !res.Status {
				a.incoming <- moduleEvent{errSubject: urn, err: res.Error}
			}
		}(mod.URN)
	}
	if len(ready) > 0 {
		a.Connector.Schedule = a.Connector.DagReorder()
	}
}

// RunPre implements backend.Callback (spec §5): drains worker and UI
// message queues, then runs the scheduled plugin graph for this
// period, multiplexing each node's inputs immediately before that node
// runs (spec §4.5/§5's interleaved "multiplex inputs -> plugin.run" per
// node, not a global mix pass ahead of the whole schedule).
func (a *App) RunPre(nsamples int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.applyIncoming()
	a.drainFromUI()
	a.Stall.Tick(uint32(nsamples))

	a.Scheduler.Run(a.Connector.Schedule, a.Vector, a.Multiplexer, nsamples)
}

// RunPost implements backend.Callback (spec §5): releases completed
// audio ramps and begins worker-side teardown for modules that just
// became droppable.
func (a *App) RunPost(nsamples int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	ready := a.Connector.ReleaseCompletedRamps()
	if len(ready) > 0 {
		a.reconcileDropped(ready)
	}
}

// drainFromUI consumes pending patch-verb messages from FromUI,
// honoring the stall machine's AdvanceUI gate (spec §4.7): nothing is
// read out of the ring while advance_ui is false, so messages simply
// wait for the next period once the router leaves DRAIN/WAIT.
func (a *App) drainFromUI() {
	if !a.Stall.AdvanceUI() {
		return
	}
	for {
		frame, err := a.FromUI.ReadFrame()
		if err != nil {
			return
		}
		msg, err := patch.Decode(frame, a.Registry)
		if err != nil {
			a.Worker.Log.Warn("malformed patch message from UI", "err", err)
			continue
		}
		a.handlePatchMessage(msg)
	}
}

func (a *App) handlePatchMessage(msg patch.Message) {
	switch msg.Verb {
	case patch.Set:
		a.handleSet(msg)
	default:
		// Get/Put/Patch/Insert/Delete/Move/Copy are UI-editor operations
		// outside this expansion's scope; unknown verbs are simply
		// ignored rather than erroring, matching spec §7's "no error is
		// ever raised synchronously on the audio thread".
	}
}

// handleSet applies a patch:Set targeting a module's control port: the
// subject names the module (via its interned urn) and the property
// names the control symbol (also interned), spec §6's property table.
func (a *App) handleSet(msg patch.Message) {
	urn := a.Registry.Unmap(msg.Subject)
	symbol := a.Registry.Unmap(msg.Property)
	if urn == "" || symbol == "" || msg.Value == nil {
		return
	}
	for _, mod := range a.Vector.All() {
		if mod.URN != urn {
			continue
		}
		p := mod.PortBySymbol(symbol)
		if p == nil || p.Type != port.TypeControl {
			return
		}
		v, _, err := atom.GetFloat(msg.Value)
		if err != nil {
			return
		}
		p.Control.Stash = v
		if p.Control.TryLockStash() {
			p.Control.Value = p.Control.Stash
			if len(p.Buffer.Control) > 0 {
				p.Buffer.Control[0] = p.Control.Value
			}
			p.Control.UnlockStash()
		}
		return
	}
}
