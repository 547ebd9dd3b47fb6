package skale

import (
	"os"
	"path/filepath"

	"github.com/shankscript/skale-engine/clock"
)

// Config holds engine-wide knobs. It follows the teacher's fluent
// WithX(...) *T builder idiom (see partition.go/dedupe.go in the retrieved
// streamz sources) rather than a config-file library: every knob here is a
// process-local tuning constant, not externally-sourced configuration.
type Config struct {
	// ScratchDir is the root under which shuffle files are written
	// ({ScratchDir}/shuffle/{uuid}), per spec §4.6.
	ScratchDir string

	// StorageCeiling bounds a worker's storageMemory counter (spec §4.2).
	StorageCeiling int64

	// ShuffleFlushBytes is the write-buffer threshold before a shuffle
	// file's pending bytes are flushed to disk (spec §4.6: 64 KiB).
	ShuffleFlushBytes int

	// SampleEvery is the element count between storage-memory size samples
	// for a persisted partition (spec §4.2: every 10,000 elements).
	SampleEvery int

	// DefaultMaxBusy is the dispatch window width used when an action's
	// options don't override it. Zero or a negative value means every
	// partition of the job is dispatched at once; the window is not
	// derived from a worker count.
	DefaultMaxBusy int

	// Clock is stored with the configuration; no engine code reads it.
	// Storage sampling and dispatch are driven by element and task counts,
	// not by time.
	Clock clock.Clock
}

// DefaultConfig returns the engine defaults described in spec.md.
func DefaultConfig() Config {
	return Config{
		ScratchDir:        filepath.Join(os.TempDir(), "skale-scratch"),
		StorageCeiling:    512 * 1024 * 1024,
		ShuffleFlushBytes: 64 * 1024,
		SampleEvery:       10000,
		DefaultMaxBusy:    0, // 0 means "all partitions at once" at dispatch time
		Clock:             clock.Real,
	}
}

// Option configures a Config in the fluent style the teacher's processors
// use for their constructors.
type Option func(*Config)

// WithScratchDir overrides the shuffle scratch directory root.
func WithScratchDir(dir string) Option {
	return func(c *Config) { c.ScratchDir = dir }
}

// WithStorageCeiling overrides the per-worker storageMemory ceiling.
func WithStorageCeiling(bytes int64) Option {
	return func(c *Config) { c.StorageCeiling = bytes }
}

// WithShuffleFlushBytes overrides the shuffle write-buffer flush threshold.
func WithShuffleFlushBytes(bytes int) Option {
	return func(c *Config) { c.ShuffleFlushBytes = bytes }
}

// WithSampleEvery overrides the persisted-partition sampling interval.
func WithSampleEvery(n int) Option {
	return func(c *Config) { c.SampleEvery = n }
}

// WithDefaultMaxBusy overrides the default dispatch window width.
func WithDefaultMaxBusy(n int) Option {
	return func(c *Config) { c.DefaultMaxBusy = n }
}

// WithClock overrides the clock used for all timing.
func WithClock(c clock.Clock) Option {
	return func(cfg *Config) { cfg.Clock = c }
}

// NewConfig builds a Config from DefaultConfig with the given overrides
// applied in order.
func NewConfig(opts ...Option) Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}
