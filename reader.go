package blockpool

// SliceReader replays a finished slice's segment chain, reproducing the
// written values in order. It is a transient, stateless-between-uses
// cursor: Reset positions it on any (start, end) pair recorded by a
// writer on the same pool generation.
type SliceReader struct {
	pool        *Pool
	buffer      []int32
	upto        int32 // cursor within the current block
	blockOffset int32 // global address of the current block's first cell
	limit       int32 // intra-block offset of the segment's reserved cell, or of end
	level       int32
	end         int32 // global end offset of the slice
}

// NewSliceReader creates a reader bound to the given pool.
func NewSliceReader(pool *Pool) *SliceReader {
	return &SliceReader{pool: pool}
}

// Reset positions the reader on the slice recorded by the given
// (start, end) global offsets. start is the value returned by
// StartNewSlice, end the writer's CurrentOffset after the final write.
func (r *SliceReader) Reset(start, end int32) {
	if debugAsserts {
		assertValidOffset(r.pool, start)
	}

	r.end = end
	r.level = firstLevel

	blockUpto := start >> r.pool.shift
	r.blockOffset = blockUpto << r.pool.shift
	r.buffer = r.pool.blocks[blockUpto]
	r.upto = start & r.pool.mask

	if start+firstLevelSize >= end {
		// The whole slice fits in the first segment.
		r.limit = end & r.pool.mask
	} else {
		r.limit = r.upto + firstLevelSize - 1
	}
}

// EndOfSlice reports whether the cursor has consumed all end-start values.
func (r *SliceReader) EndOfSlice() bool {
	return r.upto+r.blockOffset == r.end
}

// ReadInt returns the next value of the slice, following the forwarding
// address into the next segment when the cursor reaches the current
// segment's reserved cell.
//
// Calling ReadInt when EndOfSlice is true is a caller programming error
// and panics.
func (r *SliceReader) ReadInt() int32 {
	if r.EndOfSlice() {
		panic("blockpool: read past end of slice")
	}
	if r.upto == r.limit {
		r.nextSegment()
	}
	v := r.buffer[r.upto]
	r.upto++
	return v
}

// nextSegment follows the forwarding address stored at the current
// segment's reserved cell and recomputes the segment bounds, clamping the
// limit to end when the chain's final segment is reached.
func (r *SliceReader) nextSegment() {
	forward := r.buffer[r.limit]
	r.level = nextLevel[r.level]
	size := r.pool.segmentSize(r.level)

	blockUpto := forward >> r.pool.shift
	r.blockOffset = blockUpto << r.pool.shift
	r.buffer = r.pool.blocks[blockUpto]
	r.upto = forward & r.pool.mask

	if forward+size >= r.end {
		// Final segment: the slice ends before the reserved cell.
		r.limit = r.end - r.blockOffset
	} else {
		r.limit = r.upto + size - 1
	}
}
