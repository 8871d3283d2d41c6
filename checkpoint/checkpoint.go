// Package checkpoint serializes a pool's blocks to a blobstore.Store
// and restores them later with identical global addresses. Blocks are
// framed individually with a checksum, compressed in parallel, and
// streamed to the store so a multi-gigabyte pool never needs a second
// full copy in memory on the write path.
package checkpoint

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"runtime"

	"github.com/cespare/xxhash/v2"
	"github.com/dystudio/blockpool"
	"github.com/dystudio/blockpool/blobstore"
	"github.com/dystudio/blockpool/resource"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrBadMagic is returned when a blob is not a checkpoint.
	ErrBadMagic = errors.New("checkpoint: bad magic")
	// ErrBadVersion is returned for checkpoints written by an
	// incompatible format version.
	ErrBadVersion = errors.New("checkpoint: unsupported format version")
	// ErrTruncated is returned when a checkpoint ends mid-frame.
	ErrTruncated = errors.New("checkpoint: truncated")
	// ErrChecksum is returned when a block frame fails verification.
	ErrChecksum = errors.New("checkpoint: block checksum mismatch")
	// ErrUnknownCompression is returned for an unrecognized compression
	// code.
	ErrUnknownCompression = errors.New("checkpoint: unknown compression")
)

// Format layout, all little-endian:
//
//	header:  magic u32 | version u8 | compression u8 | blockSize u32 |
//	         numBlocks u32 | intUpto u32
//	frame:   rawLen u32 | storedLen u32 | xxhash64 of stored payload |
//	         payload (storedLen bytes, or rawLen when storedLen is 0,
//	         meaning the payload is stored raw)
const (
	magic         = 0x4B435042 // "BPCK"
	formatVersion = 1

	headerSize      = 18
	frameHeaderSize = 16
)

type options struct {
	compression Compression
	parallelism int
	resources   *resource.Controller
	poolOptions []blockpool.Option
}

// Option configures a checkpoint write or read.
type Option func(*options)

// WithCompression selects the per-block compression algorithm for
// writes. Reads always use the algorithm recorded in the header.
func WithCompression(c Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithParallelism caps the number of blocks compressed or decompressed
// concurrently. Defaults to GOMAXPROCS.
func WithParallelism(n int) Option {
	return func(o *options) {
		o.parallelism = n
	}
}

// WithResourceController throttles checkpoint I/O against the
// controller's byte-per-second budget.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) {
		o.resources = rc
	}
}

// WithPoolOptions passes construction options to the pool restored by
// Read, e.g. a recycling allocator or a metrics collector.
func WithPoolOptions(optFns ...blockpool.Option) Option {
	return func(o *options) {
		o.poolOptions = append(o.poolOptions, optFns...)
	}
}

func applyOptions(optFns []Option) options {
	opts := options{
		compression: CompressionLZ4,
		parallelism: runtime.GOMAXPROCS(0),
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.parallelism < 1 {
		opts.parallelism = 1
	}
	return opts
}

// Write captures the pool's blocks into a checkpoint blob. The pool
// must not be mutated until Write returns.
func Write(ctx context.Context, pool *blockpool.Pool, store blobstore.Store, name string, optFns ...Option) error {
	opts := applyOptions(optFns)

	numBlocks := pool.NumBlocks()
	blockSize := pool.BlockSize()

	intUpto := int64(0)
	if numBlocks > 0 {
		intUpto = pool.UsedCells() - int64(numBlocks-1)*int64(blockSize)
	}

	raws := make([][]byte, 0, numBlocks)
	_ = pool.ForEachBlock(func(_ int, block []int32) error {
		raws = append(raws, encodeBlock(block))
		return nil
	})

	frames := make([][]byte, len(raws))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.parallelism)
	for i := range raws {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			frame, err := buildFrame(raws[i], opts.compression)
			if err != nil {
				return err
			}
			frames[i] = frame
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	wb, err := store.Create(ctx, name)
	if err != nil {
		return err
	}

	var w io.Writer = wb
	if opts.resources != nil {
		w = resource.NewRateLimitedWriter(ctx, wb, opts.resources)
	}

	header := make([]byte, headerSize)
	binary.LittleEndian.PutUint32(header[0:], magic)
	header[4] = formatVersion
	header[5] = byte(opts.compression)
	binary.LittleEndian.PutUint32(header[6:], uint32(blockSize))
	binary.LittleEndian.PutUint32(header[10:], uint32(numBlocks))
	binary.LittleEndian.PutUint32(header[14:], uint32(intUpto))

	// Any mid-stream failure aborts the blob so a previous checkpoint of
	// the same name survives intact.
	if _, err := w.Write(header); err != nil {
		_ = wb.Abort()
		return err
	}
	for _, frame := range frames {
		if _, err := w.Write(frame); err != nil {
			_ = wb.Abort()
			return err
		}
	}
	return wb.Close()
}

// Read restores a pool from a checkpoint blob. The restored pool's
// global addresses are identical to those of the pool Write captured.
func Read(ctx context.Context, store blobstore.Store, name string, optFns ...Option) (*blockpool.Pool, error) {
	opts := applyOptions(optFns)

	blob, err := store.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer blob.Close()

	data, err := readAll(ctx, blob)
	if err != nil {
		return nil, err
	}

	if len(data) < headerSize {
		return nil, ErrTruncated
	}
	if binary.LittleEndian.Uint32(data[0:]) != magic {
		return nil, ErrBadMagic
	}
	if data[4] != formatVersion {
		return nil, fmt.Errorf("%w: %d", ErrBadVersion, data[4])
	}
	compression := Compression(data[5])
	blockSize := int(binary.LittleEndian.Uint32(data[6:]))
	numBlocks := int(binary.LittleEndian.Uint32(data[10:]))
	intUpto := int32(binary.LittleEndian.Uint32(data[14:]))

	poolOpts := append([]blockpool.Option{blockpool.WithBlockSize(blockSize)}, opts.poolOptions...)

	if numBlocks == 0 {
		return blockpool.New(poolOpts...), nil
	}

	type frame struct {
		rawLen  int
		payload []byte
		raw     bool
	}

	frames := make([]frame, 0, numBlocks)
	rest := data[headerSize:]
	for i := 0; i < numBlocks; i++ {
		if len(rest) < frameHeaderSize {
			return nil, ErrTruncated
		}
		rawLen := int(binary.LittleEndian.Uint32(rest[0:]))
		storedLen := int(binary.LittleEndian.Uint32(rest[4:]))
		sum := binary.LittleEndian.Uint64(rest[8:])

		payloadLen := storedLen
		if storedLen == 0 {
			payloadLen = rawLen
		}
		if len(rest) < frameHeaderSize+payloadLen {
			return nil, ErrTruncated
		}
		payload := rest[frameHeaderSize : frameHeaderSize+payloadLen]
		if xxhash.Sum64(payload) != sum {
			return nil, fmt.Errorf("%w: block %d", ErrChecksum, i)
		}

		frames = append(frames, frame{rawLen: rawLen, payload: payload, raw: storedLen == 0})
		rest = rest[frameHeaderSize+payloadLen:]
	}

	blocks := make([][]int32, numBlocks)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.parallelism)
	for i := range frames {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			f := frames[i]
			raw := f.payload
			if !f.raw {
				var err error
				raw, err = decompress(f.payload, f.rawLen, compression)
				if err != nil {
					return err
				}
			}
			if len(raw) != f.rawLen {
				return fmt.Errorf("%w: block %d", ErrTruncated, i)
			}
			blocks[i] = decodeBlock(raw)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return blockpool.Restore(blocks, intUpto, poolOpts...)
}

// buildFrame assembles one block frame: header, checksum and payload.
func buildFrame(raw []byte, c Compression) ([]byte, error) {
	compressed, err := compress(raw, c)
	if err != nil {
		return nil, err
	}

	payload := compressed
	storedLen := len(compressed)
	if compressed == nil {
		payload = raw
		storedLen = 0
	}

	frame := make([]byte, frameHeaderSize+len(payload))
	binary.LittleEndian.PutUint32(frame[0:], uint32(len(raw)))
	binary.LittleEndian.PutUint32(frame[4:], uint32(storedLen))
	binary.LittleEndian.PutUint64(frame[8:], xxhash.Sum64(payload))
	copy(frame[frameHeaderSize:], payload)
	return frame, nil
}

// readAll fetches the blob's full contents, zero-copy when the blob is
// memory-mapped.
func readAll(ctx context.Context, blob blobstore.Blob) ([]byte, error) {
	if mb, ok := blob.(blobstore.Mappable); ok {
		return mb.Bytes()
	}

	buf := make([]byte, blob.Size())
	if len(buf) == 0 {
		return buf, nil
	}
	n, err := blob.ReadAt(ctx, buf, 0)
	if err != nil && !(errors.Is(err, io.EOF) && n == len(buf)) {
		return nil, err
	}
	if n != len(buf) {
		return nil, ErrTruncated
	}
	return buf, nil
}

func encodeBlock(block []int32) []byte {
	out := make([]byte, len(block)*4)
	for i, v := range block {
		binary.LittleEndian.PutUint32(out[i*4:], uint32(v))
	}
	return out
}

func decodeBlock(raw []byte) []int32 {
	out := make([]int32, len(raw)/4)
	for i := range out {
		out[i] = int32(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return out
}
