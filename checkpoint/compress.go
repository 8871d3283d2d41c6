package checkpoint

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects the per-block compression algorithm.
type Compression uint8

const (
	// CompressionNone stores blocks raw.
	CompressionNone Compression = 0
	// CompressionLZ4 uses LZ4 block compression (fast, modest ratio).
	CompressionLZ4 Compression = 1
	// CompressionZstd uses zstd block compression (better ratio).
	CompressionZstd Compression = 2
)

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func putZstdEncoder(enc *zstd.Encoder) {
	zstdEncoderPool.Put(enc)
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

func putZstdDecoder(dec *zstd.Decoder) {
	zstdDecoderPool.Put(dec)
}

// compress returns the compressed form of data, or nil when the data
// should be stored raw (incompressible, or compression gains under 10%).
func compress(data []byte, c Compression) ([]byte, error) {
	var compressed []byte

	switch c {
	case CompressionNone:
		return nil, nil
	case CompressionLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, buf, nil)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, nil
		}
		compressed = buf[:n]
	case CompressionZstd:
		enc := getZstdEncoder()
		defer putZstdEncoder(enc)
		compressed = enc.EncodeAll(data, nil)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownCompression, c)
	}

	if float64(len(compressed)) > float64(len(data))*0.9 {
		return nil, nil
	}
	return compressed, nil
}

// decompress expands a compressed payload into exactly size bytes.
func decompress(data []byte, size int, c Compression) ([]byte, error) {
	out := make([]byte, size)

	switch c {
	case CompressionLZ4:
		n, err := lz4.UncompressBlock(data, out)
		if err != nil {
			return nil, err
		}
		if n != size {
			return nil, fmt.Errorf("lz4: decompressed %d bytes, want %d", n, size)
		}
		return out, nil
	case CompressionZstd:
		dec := getZstdDecoder()
		defer putZstdDecoder(dec)
		decoded, err := dec.DecodeAll(data, out[:0])
		if err != nil {
			return nil, err
		}
		if len(decoded) != size {
			return nil, fmt.Errorf("zstd: decompressed %d bytes, want %d", len(decoded), size)
		}
		return decoded, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownCompression, c)
	}
}
