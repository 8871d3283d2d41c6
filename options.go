package blockpool

type options struct {
	blockSize int
	allocator Allocator
	logger    *Logger
	metrics   MetricsCollector
}

func defaultOptions() options {
	return options{
		blockSize: DefaultBlockSize,
		logger:    NoopLogger(),
		metrics:   NoopMetricsCollector{},
	}
}

// Option configures pool construction.
type Option func(*options)

// WithBlockSize sets the number of cells per block. The size must be a
// positive power of two and is fixed for the pool's lifetime; violating
// this is a construction contract breach, not a runtime-checked error.
//
// Small block sizes are mainly useful in tests to force segment chains
// across block boundaries.
func WithBlockSize(size int) Option {
	return func(o *options) {
		o.blockSize = size
	}
}

// WithAllocator sets the block supplier. The allocator's block size must
// match the pool's. If nil (the default), a DirectAllocator is used.
func WithAllocator(a Allocator) Option {
	return func(o *options) {
		o.allocator = a
	}
}

// WithLogger sets the logger. If nil is passed, logging is disabled.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l == nil {
			l = NoopLogger()
		}
		o.logger = l
	}
}

// WithMetricsCollector sets a collector for pool operation counters.
// Pass nil to disable metrics collection.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metrics = mc
	}
}
