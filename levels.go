package blockpool

// Segment growth schedule. A slice starts as a tiny level-1 segment and
// doubles on every overflow until it reaches the 1024-cell plateau, which
// amortizes allocation cost for long slices while bounding waste for the
// (very common) short ones.
//
// The last cell of every segment is reserved: while the segment is being
// written it holds the segment's level code, and once the segment has
// overflowed it holds the global address of the next segment in the chain.
// Level codes are 1..maxLevel and therefore never collide with the zero
// sentinel that marks unwritten cells.

const (
	firstLevel = 1
	maxLevel   = 10
)

// levelSize maps a level code to the total segment size in cells,
// including the reserved cell. Index 0 is unused.
var levelSize = [maxLevel + 1]int32{0, 2, 4, 8, 16, 32, 64, 128, 256, 512, 1024}

// nextLevel maps a level code to the level of the segment allocated when
// it overflows. Growth plateaus at maxLevel. Index 0 is unused.
var nextLevel = [maxLevel + 1]int32{0, 2, 3, 4, 5, 6, 7, 8, 9, 10, 10}

// firstLevelSize is the size of the segment backing a freshly started slice.
var firstLevelSize = levelSize[firstLevel]
