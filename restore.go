package blockpool

import "errors"

var (
	// ErrBlockSizeMismatch is returned when restored blocks do not all
	// share one power-of-two size.
	ErrBlockSizeMismatch = errors.New("blocks must all share one power-of-two size")

	// ErrInvalidCursor is returned when a restored write cursor lies
	// outside the active block.
	ErrInvalidCursor = errors.New("write cursor outside active block")
)

// Restore builds a pool from previously serialized blocks, starting a new
// generation whose global addresses are identical to the one the blocks
// were captured from. The pool takes ownership of the given slices; the
// last block becomes active with the write cursor at intUpto.
//
// Restore is the inverse of walking ForEachBlock together with UsedCells,
// which is how the checkpoint layer captures a pool.
func Restore(blocks [][]int32, intUpto int32, optFns ...Option) (*Pool, error) {
	if len(blocks) == 0 {
		return New(optFns...), nil
	}

	size := len(blocks[0])
	if size <= 0 || size&(size-1) != 0 {
		return nil, ErrBlockSizeMismatch
	}
	for _, b := range blocks {
		if len(b) != size {
			return nil, ErrBlockSizeMismatch
		}
	}
	if intUpto < 0 || intUpto > int32(size) {
		return nil, ErrInvalidCursor
	}

	p := New(append([]Option{WithBlockSize(size)}, optFns...)...)

	if len(blocks) > len(p.blocks) {
		grown := make([][]int32, len(blocks)+len(blocks)/2)
		copy(grown, blocks)
		p.blocks = grown
	} else {
		copy(p.blocks, blocks)
	}
	p.blockUpto = len(blocks) - 1
	p.buffer = p.blocks[p.blockUpto]
	p.intUpto = intUpto
	p.intOffset = int32(p.blockUpto) * p.blockSize

	return p, nil
}
