package worker

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/shaban/synthpod/atom"
	"github.com/shaban/synthpod/module"
	"github.com/shaban/synthpod/patch"
	"github.com/shaban/synthpod/registry"
	"github.com/shaban/synthpod/ring"
)

// Persister is the subset of the persist package the worker needs
// (spec §6's save/load hooks). Declared here, not in persist, so this
// package depends on behavior, not on persist's concrete types.
type Persister interface {
	SavePreset(path string, subject uint32) error
	LoadPreset(path string, subject uint32) error
	SaveBundle(path string) error
	LoadBundle(path string) error
}

// Bridge is the worker thread (spec §4.8): one goroutine parked on a
// buffered job channel, dispatching each job to its handler and
// posting the result back on the job's own reply channel.
//
// Grounded on session.go's processPluginRequests (buffered channel +
// single reader goroutine) generalized from one request shape to a
// JobType-keyed dispatch table in the manner of dispatcher.go's
// executeOperation switch.
type Bridge struct {
	Manager   *module.Manager
	Persister Persister
	Stall     *patch.Stall
	Log       *log.Logger

	// TraceRing carries 1KiB-per-message log scratch frames written by
	// the audio thread (spec §4.8: "the worker also owns a trace
	// drain"). Nil disables trace draining.
	TraceRing *ring.Buffer
	Registry  *registry.Registry

	jobs chan Job
	done chan struct{}
}

// New creates a worker bridge with a queue depth of capacity pending
// jobs, mirroring session.go's buffered pluginRequests channel.
func New(mgr *module.Manager, persister Persister, stall *patch.Stall, capacity int) *Bridge {
	if capacity <= 0 {
		capacity = 16
	}
	return &Bridge{
		Manager:   mgr,
		Persister: persister,
		Stall:     stall,
		Log:       log.New(os.Stderr),
		jobs:      make(chan Job, capacity),
		done:      make(chan struct{}),
	}
}

// Submit enqueues a job for the worker goroutine. It never blocks the
// caller beyond the channel's buffer depth; a full queue is itself a
// host misconfiguration the spec leaves unaddressed (no cancellation
// or backpressure path — spec §5 "Cancellation and timeout: None").
func (b *Bridge) Submit(j Job) { b.jobs <- j }

// tracePollInterval is how often Run drains TraceRing between jobs,
// matching session.go's fast count-based device polling cadence.
const tracePollInterval = 50 * time.Millisecond

// Run starts the dispatch loop and blocks until ctx is cancelled or
// Stop is called. Call it in its own goroutine, exactly like
// session.go's `go session.processPluginRequests()`.
func (b *Bridge) Run(ctx context.Context) {
	ticker := time.NewTicker(tracePollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-b.done:
			return
		case j := <-b.jobs:
			b.dispatch(ctx, j)
		case <-ticker.C:
			b.DrainTrace()
		}
	}
}

// DrainTrace pulls every pending trace-log frame from TraceRing and
// prints it through Log, at the severity its URID type tag carries
// (spec §4.8). A no-op if TraceRing is nil.
func (b *Bridge) DrainTrace() {
	if b.TraceRing == nil {
		return
	}
	for {
		frame, err := b.TraceRing.ReadFrame()
		if err != nil {
			return
		}
		typ, err := atom.PeekType(frame)
		if err != nil {
			b.Log.Warn("malformed trace frame", "err", err)
			continue
		}
		msg, _, err := atom.GetString(frame)
		if err != nil {
			msg = "<unreadable trace message>"
		}
		switch b.Registry.Unmap(typ) {
		case registry.LogError:
			b.Log.Error(msg)
		case registry.LogWarning:
			b.Log.Warn(msg)
		case registry.LogNote:
			b.Log.Info(msg)
		default:
			b.Log.Debug(msg)
		}
	}
}

// Stop halts Run after its current job finishes.
func (b *Bridge) Stop() { close(b.done) }

func (b *Bridge) dispatch(ctx context.Context, j Job) {
	switch j.Type {
	case ModuleSupported:
		b.handleModuleSupported(ctx, j)
	case ModuleAdd:
		b.handleModuleAdd(ctx, j)
	case ModuleDel:
		b.handleModuleDel(j)
	case PresetLoad:
		b.handlePresetLoad(j)
	case PresetSave:
		b.handlePresetSave(j)
	case BundleLoad:
		b.handleBundleLoad(j)
	case BundleSave:
		b.handleBundleSave(j)
	case Drain:
		b.handleDrain(j)
	default:
		j.Reply <- Result{Status: false, Error: fmt.Errorf("worker: unknown job type %d", j.Type)}
	}
}

// handleModuleSupported asks the catalog and replies with bool (spec
// §4.8 MODULE_SUPPORTED).
func (b *Bridge) handleModuleSupported(ctx context.Context, j Job) {
	ok := b.Manager.IsSupported(ctx, j.URI)
	j.Reply <- Result{Status: ok}
}

// handleModuleAdd instantiates uri off the audio thread and replies
// with the built module pointer (spec §4.2, §4.8 MODULE_ADD). On
// failure it reports status=false with no module, matching the
// "Unsupported plugin"/"Instantiation failed" error scenarios of §7:
// no module is created, no panic, a status-carrying reply instead.
func (b *Bridge) handleModuleAdd(ctx context.Context, j Job) {
	mod, err := b.Manager.Build(ctx, j.URI)
	if err != nil {
		b.Log.Warn("module add failed", "uri", j.URI, "err", err)
		j.Reply <- Result{Status: false, Error: err}
		return
	}
	j.Reply <- Result{Status: true, Module: mod}
}

// handleModuleDel deactivates the plugin handle and replies with the
// module's urn so the caller can confirm which module was freed (spec
// §4.2 del phase ②, §4.8 MODULE_DEL). The module has already been
// disconnected and dropped from the vector by the audio thread; this
// only needs to release the handle's resources.
func (b *Bridge) handleModuleDel(j Job) {
	if j.Target == nil {
		j.Reply <- Result{Status: false, Error: fmt.Errorf("worker: module_del with no target")}
		return
	}
	if j.Target.Handle != nil {
		j.Target.Handle.Deactivate()
	}
	j.Reply <- Result{Status: true, URN: j.Target.URN}
}

func (b *Bridge) handlePresetLoad(j Job) {
	err := b.Persister.LoadPreset(j.Path, uint32(j.Subject))
	if err != nil {
		j.Reply <- Result{Status: false, Error: err}
		return
	}
	// A successful restore advances the router's stall from BLOCK to
	// WAIT (a no-op in any other stall state).
	b.Stall.PostCompletedState()
	j.Reply <- Result{Status: true}
}

func (b *Bridge) handlePresetSave(j Job) {
	err := b.Persister.SavePreset(j.Path, uint32(j.Subject))
	j.Reply <- Result{Status: err == nil, Error: err}
}

func (b *Bridge) handleBundleLoad(j Job) {
	err := b.Persister.LoadBundle(j.Path)
	if err != nil {
		j.Reply <- Result{Status: false, Error: err}
		return
	}
	b.Stall.PostCompletedState()
	j.Reply <- Result{Status: true}
}

func (b *Bridge) handleBundleSave(j Job) {
	err := b.Persister.SaveBundle(j.Path)
	j.Reply <- Result{Status: err == nil, Error: err}
}

// handleDrain acknowledges the router's DRAIN request (spec §4.7/§4.8:
// "DRAIN: acknowledgement used by the router's stall machine").
func (b *Bridge) handleDrain(j Job) {
	b.Stall.AckDrainComplete()
	j.Reply <- Result{Status: true}
}
