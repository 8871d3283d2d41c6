// Package blockpool implements a growable, slice-chained int32 arena for
// full-text indexing workloads.
//
// The pool hands out fixed-size blocks and lets callers append many
// independent, variable-length integer sequences ("slices") into them
// without per-sequence heap allocation. A slice is realized as a chain of
// segments linked by forwarding addresses embedded in the blocks
// themselves, so the whole arena stays serializable as flat buffers and
// blocks can be recycled across generations.
//
// # Basic Usage
//
//	pool := blockpool.New()
//	w := blockpool.NewSliceWriter(pool)
//
//	start := w.StartNewSlice()
//	w.WriteInt(10)
//	w.WriteInt(20)
//	end := w.CurrentOffset()
//
//	r := blockpool.NewSliceReader(pool)
//	r.Reset(start, end)
//	for !r.EndOfSlice() {
//	    fmt.Println(r.ReadInt())
//	}
//
// Many slices can be interleaved through one writer: save CurrentOffset,
// start or resume another slice with StartNewSlice or Reset, and come
// back later.
//
// # Growth
//
// A slice starts as a 2-cell segment and doubles on every overflow up to
// 1024-cell segments. The last cell of each segment is reserved: it holds
// the segment's level code while the segment is filling and the global
// address of the next segment once it has overflowed. All other cells
// start zero and are written exactly once, which is how the writer
// detects the reserved cell with a single non-zero test.
//
// # Ownership and Concurrency
//
// The pool exclusively owns its blocks; writers and readers are
// offset-based views that become invalid across a Reset. Nothing here is
// safe for concurrent use: one pool per indexing worker.
//
// # Peer Packages
//
//   - postings: per-term postings accumulation over a pool
//   - checkpoint: arena serialization to a blob store
//   - bloom, sortkey: self-contained indexing utilities
package blockpool
