package blockpool

import (
	"math/rand"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	debugAsserts = true
	os.Exit(m.Run())
}

func writeSlice(t *testing.T, w *SliceWriter, values []int32) (start, end int32) {
	t.Helper()
	start = w.StartNewSlice()
	for _, v := range values {
		w.WriteInt(v)
	}
	return start, w.CurrentOffset()
}

func readSlice(t *testing.T, r *SliceReader, start, end int32) []int32 {
	t.Helper()
	r.Reset(start, end)
	var out []int32
	for !r.EndOfSlice() {
		out = append(out, r.ReadInt())
	}
	return out
}

func TestRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for _, n := range []int{0, 1, 2, 3, 4, 7, 100, 4095, 4096, 100000} {
		pool := New()
		w := NewSliceWriter(pool)
		r := NewSliceReader(pool)

		values := make([]int32, n)
		for i := range values {
			// Zero and negative payloads must survive; the sentinel
			// protocol only ever fires on reserved cells.
			switch i % 5 {
			case 0:
				values[i] = 0
			case 1:
				values[i] = -int32(rng.Uint32() >> 1)
			default:
				values[i] = int32(rng.Uint32())
			}
		}

		start, end := writeSlice(t, w, values)
		got := readSlice(t, r, start, end)

		require.Len(t, got, n, "n=%d", n)
		for i := range values {
			require.Equal(t, values[i], got[i], "n=%d index=%d", n, i)
		}
	}
}

func TestConcreteTwoValueScenario(t *testing.T) {
	pool := New()
	w := NewSliceWriter(pool)

	start := w.StartNewSlice()
	assert.Equal(t, int32(0), start)

	w.WriteInt(10)
	w.WriteInt(20)
	end := w.CurrentOffset()

	// Layout: value 10 at 0; the level-1 reserved cell at 1 was
	// overwritten with the forwarding address of the level-2 segment at
	// 2..5; 20 landed at 2 and the new reserved cell at 5 holds level 2.
	block := pool.blocks[0]
	assert.Equal(t, int32(10), block[0])
	assert.Equal(t, int32(2), block[1])
	assert.Equal(t, int32(20), block[2])
	assert.Equal(t, int32(0), block[3])
	assert.Equal(t, int32(0), block[4])
	assert.Equal(t, int32(2), block[5])

	r := NewSliceReader(pool)
	assert.Equal(t, []int32{10, 20}, readSlice(t, r, start, end))
}

// expectedHops derives the hop count for k values from the cumulative
// usable-cell thresholds of the growth schedule.
func expectedHops(k int) int {
	hops := 0
	level := firstLevel
	capacity := int(levelSize[firstLevel]) - 1
	for capacity < k {
		level = int(nextLevel[level])
		capacity += int(levelSize[level]) - 1
		hops++
	}
	return hops
}

func TestGrowthSchedule(t *testing.T) {
	for _, k := range []int{1, 2, 3, 4, 5, 11, 100, 1000, 5000, 50000} {
		metrics := &BasicMetricsCollector{}
		pool := New(WithMetricsCollector(metrics))
		w := NewSliceWriter(pool)

		w.StartNewSlice()
		for i := 0; i < k; i++ {
			w.WriteInt(int32(i + 1))
		}

		assert.EqualValues(t, expectedHops(k), metrics.SegmentGrows.Load(), "k=%d", k)
		assert.EqualValues(t, 1, metrics.SliceStarts.Load())
	}
}

func TestSingleValueNoHop(t *testing.T) {
	metrics := &BasicMetricsCollector{}
	pool := New(WithMetricsCollector(metrics))
	w := NewSliceWriter(pool)

	start := w.StartNewSlice()
	w.WriteInt(99)
	end := w.CurrentOffset()

	assert.Equal(t, start+1, end)
	assert.EqualValues(t, 0, metrics.SegmentGrows.Load())
}

func TestInterleavedSlices(t *testing.T) {
	pool := New()
	w := NewSliceWriter(pool)

	// Write part of A, all of B, then finish A.
	aStart := w.StartNewSlice()
	for i := int32(0); i < 10; i++ {
		w.WriteInt(100 + i)
	}
	aSaved := w.CurrentOffset()

	bStart := w.StartNewSlice()
	for i := int32(0); i < 500; i++ {
		w.WriteInt(-1 - i)
	}
	bEnd := w.CurrentOffset()

	w.Reset(aSaved)
	for i := int32(10); i < 20; i++ {
		w.WriteInt(100 + i)
	}
	aEnd := w.CurrentOffset()

	r := NewSliceReader(pool)

	gotA := readSlice(t, r, aStart, aEnd)
	require.Len(t, gotA, 20)
	for i := int32(0); i < 20; i++ {
		assert.Equal(t, 100+i, gotA[i])
	}

	gotB := readSlice(t, r, bStart, bEnd)
	require.Len(t, gotB, 500)
	for i := int32(0); i < 500; i++ {
		assert.Equal(t, -1-i, gotB[i])
	}
}

func TestManyInterleavedSlices(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	pool := New(WithBlockSize(256))
	w := NewSliceWriter(pool)

	const numSlices = 64
	const rounds = 30

	starts := make([]int32, numSlices)
	cursors := make([]int32, numSlices)
	want := make([][]int32, numSlices)

	for i := range starts {
		starts[i] = w.StartNewSlice()
		cursors[i] = starts[i]
	}

	for round := 0; round < rounds; round++ {
		for i := 0; i < numSlices; i++ {
			w.Reset(cursors[i])
			n := rng.Intn(8)
			for j := 0; j < n; j++ {
				v := int32(rng.Uint32())
				w.WriteInt(v)
				want[i] = append(want[i], v)
			}
			cursors[i] = w.CurrentOffset()
		}
	}

	r := NewSliceReader(pool)
	for i := 0; i < numSlices; i++ {
		got := readSlice(t, r, starts[i], cursors[i])
		require.Equal(t, len(want[i]), len(got), "slice %d", i)
		for j := range want[i] {
			require.Equal(t, want[i][j], got[j], "slice %d index %d", i, j)
		}
	}
}

func TestBlockBoundaryCrossing(t *testing.T) {
	// A tiny block forces segment chains across block edges quickly.
	metrics := &BasicMetricsCollector{}
	pool := New(WithBlockSize(32), WithMetricsCollector(metrics))
	w := NewSliceWriter(pool)

	values := make([]int32, 300)
	for i := range values {
		values[i] = int32(i) * 3
	}
	start, end := writeSlice(t, w, values)

	assert.Greater(t, pool.NumBlocks(), 1)
	assert.Greater(t, metrics.BlockAllocs.Load(), int64(1))

	r := NewSliceReader(pool)
	assert.Equal(t, values, readSlice(t, r, start, end))
}

func TestDirectoryGrowth(t *testing.T) {
	pool := New(WithBlockSize(16))
	w := NewSliceWriter(pool)

	// Enough data to exceed the initial 10-slot directory.
	values := make([]int32, 2000)
	for i := range values {
		values[i] = int32(i + 1)
	}
	start, end := writeSlice(t, w, values)

	require.Greater(t, pool.NumBlocks(), initialDirectoryCap)

	r := NewSliceReader(pool)
	assert.Equal(t, values, readSlice(t, r, start, end))
}

func TestResetHygiene(t *testing.T) {
	pool := New(WithBlockSize(64))
	w := NewSliceWriter(pool)

	// Fill a couple of blocks with non-zero junk in generation one.
	values := make([]int32, 200)
	for i := range values {
		values[i] = int32(0x7eadbeef)
	}
	writeSlice(t, w, values)
	require.Greater(t, pool.NumBlocks(), 1)

	pool.Reset(true, true)
	require.Equal(t, 1, pool.NumBlocks())
	require.EqualValues(t, 0, pool.UsedCells())

	// The reused first block must be observably zero again.
	for i, v := range pool.blocks[0] {
		require.Zero(t, v, "stale cell %d after reset", i)
	}

	// A fresh generation reads back only its own values.
	start, end := writeSlice(t, w, []int32{7, 8, 9})
	r := NewSliceReader(pool)
	assert.Equal(t, []int32{7, 8, 9}, readSlice(t, r, start, end))
}

func TestResetWithoutReuse(t *testing.T) {
	pool := New(WithBlockSize(64))
	w := NewSliceWriter(pool)
	writeSlice(t, w, []int32{1, 2, 3})

	pool.Reset(false, false)
	assert.Equal(t, 0, pool.NumBlocks())
	assert.EqualValues(t, 0, pool.UsedCells())

	// The pool must be usable again after the next block allocation,
	// which StartNewSlice performs implicitly.
	start, end := writeSlice(t, w, []int32{4, 5})
	r := NewSliceReader(pool)
	assert.Equal(t, []int32{4, 5}, readSlice(t, r, start, end))
}

func TestResetOnEmptyPoolIsNoop(t *testing.T) {
	pool := New()
	pool.Reset(true, true)
	assert.Equal(t, 0, pool.NumBlocks())
}

func TestReadPastEndPanics(t *testing.T) {
	pool := New()
	w := NewSliceWriter(pool)
	start, end := writeSlice(t, w, []int32{1, 2, 3})

	r := NewSliceReader(pool)
	r.Reset(start, end)
	for !r.EndOfSlice() {
		r.ReadInt()
	}
	assert.Panics(t, func() { r.ReadInt() })
}

func TestEmptySlice(t *testing.T) {
	pool := New()
	w := NewSliceWriter(pool)
	start := w.StartNewSlice()
	end := w.CurrentOffset()
	require.Equal(t, start, end)

	r := NewSliceReader(pool)
	r.Reset(start, end)
	assert.True(t, r.EndOfSlice())
	assert.Panics(t, func() { r.ReadInt() })
}

func TestAccessors(t *testing.T) {
	pool := New(WithBlockSize(128))
	assert.Equal(t, 128, pool.BlockSize())
	assert.Equal(t, 0, pool.NumBlocks())
	assert.EqualValues(t, 0, pool.UsedCells())

	w := NewSliceWriter(pool)
	w.StartNewSlice()
	w.WriteInt(1)

	assert.Equal(t, 1, pool.NumBlocks())
	assert.EqualValues(t, 2, pool.UsedCells())
}

func TestForEachBlock(t *testing.T) {
	pool := New(WithBlockSize(16))
	w := NewSliceWriter(pool)
	values := make([]int32, 100)
	for i := range values {
		values[i] = int32(i)
	}
	writeSlice(t, w, values)

	var indices []int
	err := pool.ForEachBlock(func(i int, block []int32) error {
		indices = append(indices, i)
		assert.Len(t, block, 16)
		return nil
	})
	require.NoError(t, err)
	assert.Len(t, indices, pool.NumBlocks())
}

func TestRestoreRoundTrip(t *testing.T) {
	pool := New(WithBlockSize(32))
	w := NewSliceWriter(pool)
	values := make([]int32, 150)
	for i := range values {
		values[i] = int32(i) - 75
	}
	start, end := writeSlice(t, w, values)

	var blocks [][]int32
	require.NoError(t, pool.ForEachBlock(func(_ int, block []int32) error {
		cp := make([]int32, len(block))
		copy(cp, block)
		blocks = append(blocks, cp)
		return nil
	}))
	intUpto := pool.intUpto

	restored, err := Restore(blocks, intUpto)
	require.NoError(t, err)
	require.Equal(t, pool.UsedCells(), restored.UsedCells())

	r := NewSliceReader(restored)
	assert.Equal(t, values, readSlice(t, r, start, end))

	// The restored generation keeps appending where the old one stopped.
	w2 := NewSliceWriter(restored)
	s2, e2 := writeSlice(t, w2, []int32{42})
	assert.Equal(t, []int32{42}, readSlice(t, r, s2, e2))
}

func TestRestoreValidation(t *testing.T) {
	_, err := Restore([][]int32{make([]int32, 10)}, 0)
	assert.ErrorIs(t, err, ErrBlockSizeMismatch)

	_, err = Restore([][]int32{make([]int32, 16), make([]int32, 32)}, 0)
	assert.ErrorIs(t, err, ErrBlockSizeMismatch)

	_, err = Restore([][]int32{make([]int32, 16)}, 17)
	assert.ErrorIs(t, err, ErrInvalidCursor)

	p, err := Restore(nil, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, p.NumBlocks())
}
