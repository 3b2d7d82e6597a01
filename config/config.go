// Package config implements the host-supplied configuration options
// from spec §6: sample rate, block sizing, sequence capacity, the
// LV2-style feature flags, and scheduler tuning (audio priority, CPU
// affinity, slave count).
//
// Grounded on clapgo's pkg/plugin/options.go functional-options
// pattern (an Option is a func(*T) error, applied left-to-right over a
// struct seeded with defaults) generalized from plugin metadata to the
// host-level options spec §6 lists, and on session.go's Options struct
// (advanced construction-time tuning applied over a sane default) for
// what belongs at this layer versus per-module/per-connection.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/shaban/synthpod/catalog"
	"github.com/shaban/synthpod/graph"
)

// Options is the full set of spec §6 configuration values the app
// layer threads through module.Manager, graph.Scheduler and the ring
// buffers at startup.
type Options struct {
	SampleRate float64
	MinBlock   int
	MaxBlock   int
	SeqSize    int
	NumPeriods int

	Features catalog.Features

	AudioPriority int // OS scheduling priority hint; opaque to the core
	CPUAffinity   []int
	NumSlaves     int

	SchedulerMode graph.Mode
}

// defaults mirrors DefaultAudioSpec in session.go: conservative values
// that work without any host-provided configuration.
func defaults() Options {
	return Options{
		SampleRate:    48000,
		MinBlock:      64,
		MaxBlock:      2048,
		SeqSize:       8192,
		NumPeriods:    2,
		NumSlaves:     graph.MaxSlaves,
		SchedulerMode: graph.Parallel,
	}
}

// Option configures an Options value (clapgo's Option = func(*T) error
// shape, generalized with no error return since every setter here is
// a pure value assignment that cannot fail at apply time — validation
// happens once, in New, after every option has been applied).
type Option func(*Options)

// WithSampleRate sets the nominal session sample rate (spec §6:
// "immutable for session" — fixed once New returns).
func WithSampleRate(hz float64) Option {
	return func(o *Options) { o.SampleRate = hz }
}

// WithBlockSize sets the min/max port buffer sizing bounds.
func WithBlockSize(min, max int) Option {
	return func(o *Options) { o.MinBlock, o.MaxBlock = min, max }
}

// WithSequenceSize sets the atom-sequence port capacity in bytes.
func WithSequenceSize(n int) Option {
	return func(o *Options) { o.SeqSize = n }
}

// WithNumPeriods sets the latency-budgeting period-count hint.
func WithNumPeriods(n int) Option {
	return func(o *Options) { o.NumPeriods = n }
}

// WithFeatures sets the LV2-style feature flags propagated to plugins.
func WithFeatures(f catalog.Features) Option {
	return func(o *Options) { o.Features = f }
}

// WithAudioPriority sets the OS scheduling priority hint for the audio
// thread; the core never interprets this value, only carries it to
// whatever backend starts that thread.
func WithAudioPriority(p int) Option {
	return func(o *Options) { o.AudioPriority = p }
}

// WithCPUAffinity pins the audio thread (and, by convention, its
// slaves) to the given CPU indices.
func WithCPUAffinity(cpus ...int) Option {
	return func(o *Options) { o.CPUAffinity = cpus }
}

// WithNumSlaves sets the DSP slave pool size, clamped to
// [1, graph.MaxSlaves] by graph.NewScheduler.
func WithNumSlaves(n int) Option {
	return func(o *Options) { o.NumSlaves = n }
}

// WithSchedulerMode selects sequential or parallel execution.
func WithSchedulerMode(m graph.Mode) Option {
	return func(o *Options) { o.SchedulerMode = m }
}

// New builds an Options value starting from defaults() and applying
// opts in order, then validates the result.
func New(opts ...Option) (Options, error) {
	o := defaults()
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.validate(); err != nil {
		return Options{}, err
	}
	return o, nil
}

func (o Options) validate() error {
	if o.SampleRate <= 0 {
		return fmt.Errorf("config: sample rate must be positive, got %v", o.SampleRate)
	}
	if o.MinBlock <= 0 || o.MaxBlock < o.MinBlock {
		return fmt.Errorf("config: invalid block size bounds [%d,%d]", o.MinBlock, o.MaxBlock)
	}
	if o.SeqSize <= 0 {
		return fmt.Errorf("config: sequence size must be positive, got %d", o.SeqSize)
	}
	if o.NumPeriods <= 0 {
		return fmt.Errorf("config: num_periods must be positive, got %d", o.NumPeriods)
	}
	return nil
}

// envOptions maps SYNTHPOD_* environment variables onto Options,
// matching session.go's pattern of optional overrides layered on
// sane defaults (there: per-call Options fields; here: env vars, since
// this is the outermost process-boundary configuration point).
var envOptions = []struct {
	key   string
	apply func(string, *[]Option) error
}{
	{"SYNTHPOD_SAMPLE_RATE", func(v string, opts *[]Option) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("config: SYNTHPOD_SAMPLE_RATE: %w", err)
		}
		*opts = append(*opts, WithSampleRate(f))
		return nil
	}},
	{"SYNTHPOD_SEQ_SIZE", func(v string, opts *[]Option) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: SYNTHPOD_SEQ_SIZE: %w", err)
		}
		*opts = append(*opts, WithSequenceSize(n))
		return nil
	}},
	{"SYNTHPOD_NUM_SLAVES", func(v string, opts *[]Option) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: SYNTHPOD_NUM_SLAVES: %w", err)
		}
		*opts = append(*opts, WithNumSlaves(n))
		return nil
	}},
	{"SYNTHPOD_SCHEDULER_MODE", func(v string, opts *[]Option) error {
		switch v {
		case "sequential":
			*opts = append(*opts, WithSchedulerMode(graph.Sequential))
		case "parallel":
			*opts = append(*opts, WithSchedulerMode(graph.Parallel))
		default:
			return fmt.Errorf("config: SYNTHPOD_SCHEDULER_MODE must be sequential or parallel, got %q", v)
		}
		return nil
	}},
}

// FromEnv builds Options from defaults, environment overrides, and
// finally extra, in that precedence order (extra wins, for tests and
// CLI flags that should override the environment).
func FromEnv(extra ...Option) (Options, error) {
	var opts []Option
	for _, e := range envOptions {
		if v, ok := os.LookupEnv(e.key); ok {
			if err := e.apply(v, &opts); err != nil {
				return Options{}, err
			}
		}
	}
	opts = append(opts, extra...)
	return New(opts...)
}
