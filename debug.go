package blockpool

import "fmt"

// debugAsserts gates invariant checks that are excluded from the
// production contract for throughput. They exist to catch allocator
// misbehavior and cursor misuse during testing; the test suite enables
// them in TestMain.
var debugAsserts = false

func assertPowerOfTwo(size int) {
	if size <= 0 || size&(size-1) != 0 {
		panic(fmt.Sprintf("blockpool: block size %d is not a positive power of two", size))
	}
}

// assertFreshBlock verifies the allocator contract: correct size and
// all cells zero.
func assertFreshBlock(b []int32, size int) {
	if len(b) != size {
		panic(fmt.Sprintf("blockpool: allocator returned %d-cell block, want %d", len(b), size))
	}
	for i, v := range b {
		if v != 0 {
			panic(fmt.Sprintf("blockpool: allocator returned non-zero block (cell %d = %d)", i, v))
		}
	}
}

func assertValidOffset(p *Pool, offset int32) {
	if offset < 0 || int64(offset) > p.UsedCells() {
		panic(fmt.Sprintf("blockpool: offset %d outside pool (used cells %d)", offset, p.UsedCells()))
	}
}
