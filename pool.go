package blockpool

import "math/bits"

// Default block geometry. The block size must be a power of two so that a
// global cell address maps to its block and intra-block offset with a
// shift and a mask.
const (
	// DefaultBlockShift is the log2 of DefaultBlockSize.
	DefaultBlockShift = 13
	// DefaultBlockSize is the number of int32 cells per block.
	DefaultBlockSize = 1 << DefaultBlockShift
	// DefaultBlockMask extracts the intra-block offset from a global address.
	DefaultBlockMask = DefaultBlockSize - 1
)

// initialDirectoryCap is the starting capacity of the block directory.
// The directory grows by 1.5x whenever it fills.
const initialDirectoryCap = 10

// Pool is a growable arena of fixed-size int32 blocks through which many
// independent, variable-length slices are multiplexed. The pool owns all
// of its blocks; SliceWriter and SliceReader are transient cursors that
// address cells by global offset and hold no memory themselves.
//
// A Pool and the writers/readers bound to it must be confined to a single
// logical owner. Parallel indexing uses one pool per worker, never a
// shared one.
type Pool struct {
	blocks    [][]int32
	blockUpto int     // index of the active block, -1 before the first allocation
	intUpto   int32   // write cursor within the active block
	intOffset int32   // global address of the active block's first cell
	buffer    []int32 // the active block

	blockSize int32
	shift     uint
	mask      int32

	alloc   Allocator
	logger  *Logger
	metrics MetricsCollector
}

// New creates an empty pool. Without options it uses 8192-cell blocks and
// a DirectAllocator.
//
// The block size is a construction contract, not a runtime-validated
// argument: it must be a positive power of two and is fixed for the
// pool's whole lifetime, which is what keeps global addresses stable
// across block allocations and resets.
func New(optFns ...Option) *Pool {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	size := int32(opts.blockSize)
	if debugAsserts {
		assertPowerOfTwo(opts.blockSize)
	}

	alloc := opts.allocator
	if alloc == nil {
		alloc = NewDirectAllocator(opts.blockSize)
	}

	return &Pool{
		blocks:    make([][]int32, initialDirectoryCap),
		blockUpto: -1,
		intUpto:   size,
		intOffset: -size,
		blockSize: size,
		shift:     uint(bits.TrailingZeros32(uint32(size))),
		mask:      size - 1,
		alloc:     alloc,
		logger:    opts.logger,
		metrics:   opts.metrics,
	}
}

// BlockSize returns the fixed number of cells per block.
func (p *Pool) BlockSize() int { return int(p.blockSize) }

// NumBlocks returns the number of blocks currently held by the pool.
func (p *Pool) NumBlocks() int { return p.blockUpto + 1 }

// UsedCells returns the total number of cells written or reserved so far,
// i.e. the global address one past the highest allocated cell.
func (p *Pool) UsedCells() int64 {
	if p.blockUpto == -1 {
		return 0
	}
	return int64(p.intOffset) + int64(p.intUpto)
}

// block returns the block containing the given global address.
func (p *Pool) block(addr int32) []int32 {
	return p.blocks[addr>>p.shift]
}

// segmentSize returns the cell count of a segment at the given level,
// clamped to the block size: a segment can never span two blocks, so
// pools with test-sized blocks plateau early instead of overflowing.
// Writer and reader apply the same clamp, keeping chain walks aligned.
func (p *Pool) segmentSize(level int32) int32 {
	size := levelSize[level]
	if size > p.blockSize {
		return p.blockSize
	}
	return size
}

// NextBlock acquires a block from the allocator, appends it to the
// directory and makes it the active block. The previous active block is
// retained; blocks are only released by Reset.
func (p *Pool) NextBlock() {
	if p.blockUpto+1 == len(p.blocks) {
		grown := make([][]int32, len(p.blocks)+len(p.blocks)/2)
		copy(grown, p.blocks)
		p.blocks = grown
	}

	b := p.alloc.AllocBlock()
	if debugAsserts {
		assertFreshBlock(b, int(p.blockSize))
	}

	p.blockUpto++
	p.blocks[p.blockUpto] = b
	p.buffer = b
	p.intUpto = 0
	p.intOffset += p.blockSize

	p.metrics.RecordBlockAlloc()
	if p.logger != nil {
		p.logger.Debug("block allocated", "block", p.blockUpto, "base_offset", p.intOffset)
	}
}

// Reset returns the pool to the start of a new generation.
//
// If zeroFill is true, every fully used block and the written prefix of
// the active block are zero-filled first; this restores the zero-sentinel
// invariant for blocks that stay behind. Unless the pool is still empty,
// all blocks except (optionally) the first are then handed back to the
// allocator. With reuseFirst the first block stays active with the write
// cursor at zero, so offsets into it from the previous generation remain
// addressable; otherwise the pool holds no blocks until the next
// allocation.
//
// Writers and readers created before a Reset are invalid afterwards
// unless the caller independently guarantees offset stability.
func (p *Pool) Reset(zeroFill, reuseFirst bool) {
	if p.blockUpto == -1 {
		return
	}

	if zeroFill {
		for i := 0; i < p.blockUpto; i++ {
			clear(p.blocks[i])
		}
		clear(p.blocks[p.blockUpto][:p.intUpto])
	}

	if p.blockUpto > 0 || !reuseFirst {
		start := 0
		if reuseFirst {
			start = 1
		}
		p.alloc.RecycleBlocks(p.blocks, start, p.blockUpto+1)
		p.metrics.RecordBlockRecycle(p.blockUpto + 1 - start)
		for i := start; i <= p.blockUpto; i++ {
			p.blocks[i] = nil
		}
	}

	if reuseFirst {
		p.blockUpto = 0
		p.intUpto = 0
		p.intOffset = 0
		p.buffer = p.blocks[0]
	} else {
		p.blockUpto = -1
		p.intUpto = p.blockSize
		p.intOffset = -p.blockSize
		p.buffer = nil
	}

	p.metrics.RecordReset()
	if p.logger != nil {
		p.logger.Debug("pool reset", "zero_fill", zeroFill, "reuse_first", reuseFirst)
	}
}

// ForEachBlock calls fn for every block the pool holds, in order. The
// slice passed to fn is the pool's backing memory and must be treated as
// read-only; it is only valid during the call.
func (p *Pool) ForEachBlock(fn func(index int, block []int32) error) error {
	for i := 0; i <= p.blockUpto; i++ {
		if err := fn(i, p.blocks[i]); err != nil {
			return err
		}
	}
	return nil
}

// newSlice allocates the first segment of a fresh slice and returns the
// intra-block offset of its data start. The segment's reserved (last)
// cell is marked with the first level code.
func (p *Pool) newSlice(size int32) int32 {
	if p.intUpto > p.blockSize-size {
		p.NextBlock()
	}
	upto := p.intUpto
	p.intUpto += size
	p.buffer[p.intUpto-1] = firstLevel

	p.metrics.RecordSliceStart()
	return upto
}

// growSlice allocates the next, larger segment for a slice whose current
// segment has overflowed. block/reservedOffset locate the old segment's
// reserved cell, which currently holds its level code; on return that
// cell holds the global address of the new segment's data start instead
// (the forwarding address), and the new segment's reserved cell holds the
// advanced level code.
//
// A forwarding address can never equal the zero sentinel: the new segment
// is allocated strictly after the generation's first segment, so its data
// start is always a positive global address.
//
// Returns the intra-block offset of the new segment's data start within
// the (possibly advanced) active block.
func (p *Pool) growSlice(block []int32, reservedOffset int32) int32 {
	level := block[reservedOffset]
	newLevel := nextLevel[level]
	newSize := p.segmentSize(newLevel)

	if p.intUpto > p.blockSize-newSize {
		p.NextBlock()
	}
	newUpto := p.intUpto
	forward := newUpto + p.intOffset
	p.intUpto += newSize

	p.buffer[p.intUpto-1] = newLevel
	block[reservedOffset] = forward

	p.metrics.RecordSegmentGrow(int(newLevel))
	return newUpto
}
