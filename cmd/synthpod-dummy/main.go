// Command synthpod-dummy runs a headless synthpod host against the
// timer-paced Dummy backend: no sound card, no UI, just the graph
// engine ticking periods and a diagnostic dump of what's flowing
// through it. The plugin graph itself is the tiny built-in catalog
// (sys:audio_in/sys:audio_out/synthpod:gain) registered by
// catalog.RegisterBuiltins, wired source -> gain -> sink.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"

	"github.com/shaban/synthpod/app"
	"github.com/shaban/synthpod/atom"
	"github.com/shaban/synthpod/backend"
	"github.com/shaban/synthpod/catalog"
	"github.com/shaban/synthpod/config"
	"github.com/shaban/synthpod/module"
	"github.com/shaban/synthpod/port"
)

// moduleRef is a thin wrapper so wireDemoChain can call connectTo
// without repeating the endpoint-building boilerplate at each call
// site.
type moduleRef struct{ mod *module.Module }

func (r *moduleRef) connectTo(a *app.App, outSymbol string, dst *module.Module, inSymbol string) error {
	outPort := r.mod.PortBySymbol(outSymbol)
	inPort := dst.PortBySymbol(inSymbol)
	if outPort == nil || inPort == nil {
		return nil
	}
	src := port.Endpoint{Module: r.mod.ID, Index: outPort.Index}
	snk := port.Endpoint{Module: dst.ID, Index: inPort.Index}
	return a.Connector.Connect(src, snk)
}

// newBackend builds the headless Dummy backend with cfg.MinBlock as its
// fixed period size (cfg.MaxBlock is not used here), batching
// cfg.NumPeriods periods per wakeup.
func newBackend(cfg config.Options) (backend.Backend, error) {
	return backend.NewDummy(cfg.SampleRate, cfg.MinBlock, cfg.NumPeriods)
}

func main() {
	logger := log.New(os.Stderr)
	logger.Info("synthpod-dummy starting")

	cat := catalog.NewStatic()
	catalog.RegisterBuiltins(cat)
	logger.Info("catalog loaded", "classes", len(cat.List()))
	for _, d := range cat.List() {
		logger.Info("plugin class", "uri", d.URI, "name", d.Name, "ports", len(d.Ports))
	}

	cfg, err := config.FromEnv()
	if err != nil {
		logger.Fatal("config", "err", err)
	}

	a, err := app.New(cfg, cat)
	if err != nil {
		logger.Fatal("app.New", "err", err)
	}
	a.Worker.Log = logger

	back, err := newBackend(cfg)
	if err != nil {
		logger.Fatal("backend", "err", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutdown signal received")
		back.Stop()
		cancel()
	}()

	go a.Drive(ctx)

	a.AddModule("sys:audio_in")
	a.AddModule("synthpod:gain")
	a.AddModule("sys:audio_out")

	// Drive periods by hand, off the real backend, until the three demo
	// modules have landed and the chain is wired — Connector/Vector
	// mutation is only safe from the audio thread, and once RunWith
	// starts below that thread is back.Run's goroutine, not this one.
	if err := wireDemoChain(ctx, a, logger); err != nil {
		logger.Warn("demo chain did not finish wiring", "err", err)
	}

	go reportPeriodically(ctx, a, logger)

	logger.Info("running backend", "sample_rate", cfg.SampleRate, "block_min", cfg.MinBlock, "block_max", cfg.MaxBlock)
	if err := a.RunWith(ctx, back); err != nil && ctx.Err() == nil {
		logger.Error("backend run ended", "err", err)
	}
	logger.Info("synthpod-dummy stopped")
}

// reportPeriodically dumps the module vector's current shape and
// decodes whatever landed in the UI notification ring as MIDI, a
// stand-in for the diagnostic view a real UI would render from the
// same ring. Reading Vector.All() from outside the audio thread is a
// best-effort snapshot, not a synchronized one; a real UI peer would
// get this view from ToUI instead.
func reportPeriodically(ctx context.Context, a *app.App, logger *log.Logger) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			mods := a.Vector.All()
			logger.Info("graph snapshot", "modules", len(mods))
			for _, m := range mods {
				logger.Info("module", "urn", m.URN, "uri", m.URI, "disabled", m.Disabled, "avg_run", m.Profiling.Avg())
			}
			drainMIDIDiagnostics(a, logger)
		}
	}
}

// wireDemoChain hand-drives RunPre/RunPost (the same way a backend
// would, just synchronously) until the three demo modules AddModule
// queued have landed in the vector, then connects source -> gain ->
// sink. Gives up after a few seconds if the modules never appear — a
// misconfigured catalog shouldn't hang the process.
func wireDemoChain(ctx context.Context, a *app.App, logger *log.Logger) error {
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		a.RunPre(a.Config.MinBlock)
		a.RunPost(a.Config.MinBlock)

		var src, gain, sink *moduleRef
		for _, m := range a.Vector.All() {
			switch m.URI {
			case "sys:audio_in":
				src = &moduleRef{m}
			case "synthpod:gain":
				gain = &moduleRef{m}
			case "sys:audio_out":
				sink = &moduleRef{m}
			}
		}
		if src == nil || gain == nil || sink == nil {
			time.Sleep(5 * time.Millisecond)
			continue
		}

		if err := src.connectTo(a, "out", gain.mod, "in"); err != nil {
			return err
		}
		if err := gain.connectTo(a, "out", sink.mod, "in"); err != nil {
			return err
		}
		logger.Info("demo chain wired", "source", src.mod.URN, "gain", gain.mod.URN, "sink", sink.mod.URN)
		return nil
	}
	return context.DeadlineExceeded
}

func drainMIDIDiagnostics(a *app.App, logger *log.Logger) {
	for {
		frame, err := a.ToUI.ReadFrame()
		if err != nil {
			return
		}
		events, err := atom.DecodeMIDIEvents(frame, a.Registry)
		if err != nil {
			continue
		}
		for _, e := range events {
			logger.Info("midi event", "frames", e.Frames, "msg", e.String())
		}
	}
}
