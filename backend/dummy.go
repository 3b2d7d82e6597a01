package backend

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Dummy is a headless backend that paces callbacks with a timer instead
// of a real soundcard, exactly what original_source/bin/synthpod_dummy.c
// does with cross_clock_nanosleep: sleep to the next period boundary,
// then run a batch of nfrags periods back to back before sleeping again.
// Useful for tests, CI, and any host with no audio hardware.
type Dummy struct {
	sampleRate float64
	blockSize  int
	numPeriods int

	mu      sync.Mutex
	stopped chan struct{}
	once    sync.Once
}

// NewDummy creates a Dummy backend. numPeriods batches that many period
// callbacks between timer wakeups (synthpod_dummy.c's nfrags, default 3
// there; batching amortizes timer jitter across several periods).
func NewDummy(sampleRate float64, blockSize, numPeriods int) (*Dummy, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("backend: sample rate must be positive, got %v", sampleRate)
	}
	if blockSize <= 0 {
		return nil, fmt.Errorf("backend: block size must be positive, got %d", blockSize)
	}
	if numPeriods <= 0 {
		numPeriods = 1
	}
	return &Dummy{
		sampleRate: sampleRate,
		blockSize:  blockSize,
		numPeriods: numPeriods,
		stopped:    make(chan struct{}),
	}, nil
}

func (d *Dummy) SampleRate() float64 { return d.sampleRate }
func (d *Dummy) BlockSize() int      { return d.blockSize }

// Stop is idempotent and safe to call before, during, or after Run.
func (d *Dummy) Stop() {
	d.once.Do(func() { close(d.stopped) })
}

// Run paces pre/post at sampleRate/blockSize, batching numPeriods calls
// per timer tick the way _process's inner "na -= nsamples" loop batches
// nfrags periods per cross_clock_nanosleep wakeup.
func (d *Dummy) Run(ctx context.Context, pre, post Callback) error {
	periodDuration := time.Duration(float64(d.blockSize) / d.sampleRate * float64(time.Second))
	if periodDuration <= 0 {
		periodDuration = time.Millisecond
	}
	ticker := time.NewTicker(periodDuration * time.Duration(d.numPeriods))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-d.stopped:
			return nil
		case <-ticker.C:
			for i := 0; i < d.numPeriods; i++ {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-d.stopped:
					return nil
				default:
				}
				pre(d.blockSize)
				post(d.blockSize)
			}
		}
	}
}
