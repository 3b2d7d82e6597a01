package backend

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewDummyRejectsBadParams(t *testing.T) {
	if _, err := NewDummy(0, 64, 1); err == nil {
		t.Fatalf("expected error for zero sample rate")
	}
	if _, err := NewDummy(48000, 0, 1); err == nil {
		t.Fatalf("expected error for zero block size")
	}
}

func TestDummyRunInvokesCallbacksWithBlockSize(t *testing.T) {
	d, err := NewDummy(48000, 64, 1)
	if err != nil {
		t.Fatalf("NewDummy: %v", err)
	}
	if d.SampleRate() != 48000 || d.BlockSize() != 64 {
		t.Fatalf("unexpected accessors: %v %v", d.SampleRate(), d.BlockSize())
	}

	var preCount, postCount int64
	var lastN int64
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	err = d.Run(ctx, func(n int) {
		atomic.AddInt64(&preCount, 1)
		atomic.StoreInt64(&lastN, int64(n))
	}, func(n int) {
		atomic.AddInt64(&postCount, 1)
	})
	if err != context.DeadlineExceeded {
		t.Fatalf("Run error = %v, want DeadlineExceeded", err)
	}
	if atomic.LoadInt64(&preCount) == 0 || atomic.LoadInt64(&postCount) == 0 {
		t.Fatalf("expected callbacks to fire, got pre=%d post=%d", preCount, postCount)
	}
	if atomic.LoadInt64(&preCount) != atomic.LoadInt64(&postCount) {
		t.Fatalf("pre/post call counts diverged: %d vs %d", preCount, postCount)
	}
	if lastN != 64 {
		t.Fatalf("callback nsamples = %d, want 64", lastN)
	}
}

func TestDummyStopEndsRunEarly(t *testing.T) {
	d, err := NewDummy(48000, 64, 1)
	if err != nil {
		t.Fatalf("NewDummy: %v", err)
	}
	done := make(chan error, 1)
	go func() {
		done <- d.Run(context.Background(), func(int) {}, func(int) {})
	}()

	time.Sleep(20 * time.Millisecond)
	d.Stop()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error after Stop: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("Run did not return after Stop")
	}
}

func TestDummyStopIsIdempotent(t *testing.T) {
	d, _ := NewDummy(48000, 64, 1)
	d.Stop()
	d.Stop()
}
