package blockpool

// SliceWriter is a sequential append cursor for one logical slice at a
// time. A single writer can serve many slices over its lifetime: Reset
// repositions it to the saved end offset of any previously started slice,
// so independent slices can be interleaved through one pool.
//
// The writer relies on the zero-sentinel protocol: every cell it is about
// to fill is still zero except the pre-marked reserved cell that ends the
// current segment, so a single non-zero test detects segment overflow
// without tracking any per-slice length. The test never depends on the
// payload value itself because each data cell is written exactly once.
type SliceWriter struct {
	pool   *Pool
	offset int32 // global write cursor
}

// NewSliceWriter creates a writer bound to the given pool.
func NewSliceWriter(pool *Pool) *SliceWriter {
	return &SliceWriter{pool: pool}
}

// StartNewSlice allocates the first segment of a new slice, positions the
// cursor at its data start and returns that global offset. The returned
// offset identifies the slice until it is finished.
func (w *SliceWriter) StartNewSlice() int32 {
	w.offset = w.pool.newSlice(firstLevelSize) + w.pool.intOffset
	return w.offset
}

// Reset repositions the cursor to resume a previously started slice. The
// offset must have been obtained from CurrentOffset or StartNewSlice on
// the same pool generation; anything else is undefined behavior.
func (w *SliceWriter) Reset(offset int32) {
	if debugAsserts {
		assertValidOffset(w.pool, offset)
	}
	w.offset = offset
}

// WriteInt appends one value to the current slice, growing it into a new
// segment when the cursor has reached the current segment's reserved cell.
func (w *SliceWriter) WriteInt(value int32) {
	block := w.pool.block(w.offset)
	rel := w.offset & w.pool.mask
	if block[rel] != 0 {
		// Hit the reserved cell: chain a new segment and redirect there.
		rel = w.pool.growSlice(block, rel)
		block = w.pool.buffer
		w.offset = rel + w.pool.intOffset
	}
	block[rel] = value
	w.offset++
}

// CurrentOffset returns the cursor's global offset. Once a slice is
// complete this is its end offset, to be paired with the start offset for
// replay through a SliceReader.
func (w *SliceWriter) CurrentOffset() int32 {
	return w.offset
}
