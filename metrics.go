package blockpool

import "sync/atomic"

// MetricsCollector defines an interface for collecting pool operation
// counters. Implement it to integrate with monitoring systems; the pool
// calls it synchronously from the allocation paths, so implementations
// must be cheap.
type MetricsCollector interface {
	// RecordBlockAlloc is called when a block is acquired from the allocator.
	RecordBlockAlloc()

	// RecordBlockRecycle is called when count blocks are released back to
	// the allocator during a reset.
	RecordBlockRecycle(count int)

	// RecordSliceStart is called when a new slice's first segment is allocated.
	RecordSliceStart()

	// RecordSegmentGrow is called when a slice overflows into a new segment
	// of the given level.
	RecordSegmentGrow(level int)

	// RecordReset is called after every pool reset.
	RecordReset()
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordBlockAlloc()        {}
func (NoopMetricsCollector) RecordBlockRecycle(int)   {}
func (NoopMetricsCollector) RecordSliceStart()        {}
func (NoopMetricsCollector) RecordSegmentGrow(int)    {}
func (NoopMetricsCollector) RecordReset()             {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and tests without external dependencies.
type BasicMetricsCollector struct {
	BlockAllocs   atomic.Int64
	BlockRecycles atomic.Int64
	SliceStarts   atomic.Int64
	SegmentGrows  atomic.Int64
	Resets        atomic.Int64
}

// RecordBlockAlloc implements MetricsCollector.
func (b *BasicMetricsCollector) RecordBlockAlloc() {
	b.BlockAllocs.Add(1)
}

// RecordBlockRecycle implements MetricsCollector.
func (b *BasicMetricsCollector) RecordBlockRecycle(count int) {
	b.BlockRecycles.Add(int64(count))
}

// RecordSliceStart implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSliceStart() {
	b.SliceStarts.Add(1)
}

// RecordSegmentGrow implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSegmentGrow(int) {
	b.SegmentGrows.Add(1)
}

// RecordReset implements MetricsCollector.
func (b *BasicMetricsCollector) RecordReset() {
	b.Resets.Add(1)
}
