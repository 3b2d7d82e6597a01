// Package backend drives the periodic audio callback that the rest of
// the engine runs inside. Grounded on original_source/bin/synthpod_dummy.c's
// _process/_rt_thread: a realtime-priority thread that sleeps to the next
// period boundary, then calls the driver's pre/post hooks once per period
// of nsamples frames — and on the teacher's avaudio/engine.Engine
// Prepare/Start/Stop lifecycle shape, generalized from a CGo-backed
// AVAudioEngine to a pure-Go ticker loop since no native audio API is
// available here.
package backend

import "context"

// Callback is invoked once per audio period with the frame count for
// that period (spec §5: "backend -> run_pre -> ... -> run_post ->
// backend").
type Callback func(nsamples int)

// Backend paces a Callback pair at the configured sample rate and
// period size. Implementations own the realtime thread (or its
// simulation); the app package owns what happens inside pre/post.
type Backend interface {
	// Run blocks, invoking pre then post once per period, until ctx is
	// canceled or Stop is called.
	Run(ctx context.Context, pre, post Callback) error

	// Stop requests Run to return; safe to call from any goroutine.
	Stop()

	SampleRate() float64
	BlockSize() int
}
