// Package sortkey encodes numbers and byte strings into keys whose
// byte-wise (memcmp) order equals the natural order of the source
// values. Encoded fields concatenate into composite keys that still sort
// correctly, which is what makes them usable as index terms.
//
// Integers are encoded big-endian with the sign bit flipped. Floats get
// the full IEEE 754 total-order transform: positive values flip only the
// sign bit, negative values flip every bit so that larger magnitudes
// sort lower. Byte strings are escaped and 0x00-terminated so a shorter
// string sorts before any of its extensions and fields cannot bleed into
// each other.
package sortkey

import (
	"encoding/binary"
	"errors"
	"math"
)

// ErrCorrupt is returned when a key does not decode as the requested type.
var ErrCorrupt = errors.New("sortkey: corrupt key")

// Byte-string framing. 0x00 and 0x01 in the payload are escaped behind
// the 0x01 prefix, leaving a bare 0x00 free to terminate the field. The
// escape substitutes (0x01, 0x02) keep the original byte order because
// they compare exactly as the escaped bytes (0x00, 0x01) do.
const (
	terminator = 0x00
	escape     = 0x01
	subZero    = 0x01
	subOne     = 0x02
)

// AppendInt64 appends the order-preserving encoding of v to dst.
func AppendInt64(dst []byte, v int64) []byte {
	return binary.BigEndian.AppendUint64(dst, uint64(v)^(1<<63))
}

// Int64 decodes a value written by AppendInt64 from the front of src and
// returns the remaining bytes.
func Int64(src []byte) (int64, []byte, error) {
	if len(src) < 8 {
		return 0, nil, ErrCorrupt
	}
	u := binary.BigEndian.Uint64(src) ^ (1 << 63)
	return int64(u), src[8:], nil
}

// AppendUint64 appends the order-preserving encoding of v to dst.
func AppendUint64(dst []byte, v uint64) []byte {
	return binary.BigEndian.AppendUint64(dst, v)
}

// Uint64 decodes a value written by AppendUint64.
func Uint64(src []byte) (uint64, []byte, error) {
	if len(src) < 8 {
		return 0, nil, ErrCorrupt
	}
	return binary.BigEndian.Uint64(src), src[8:], nil
}

// AppendFloat64 appends the order-preserving encoding of v to dst.
// NaN sorts above +Inf; -0 and +0 encode distinctly but adjacently.
func AppendFloat64(dst []byte, v float64) []byte {
	return binary.BigEndian.AppendUint64(dst, sortableFloatBits(math.Float64bits(v)))
}

// Float64 decodes a value written by AppendFloat64.
func Float64(src []byte) (float64, []byte, error) {
	if len(src) < 8 {
		return 0, nil, ErrCorrupt
	}
	u := binary.BigEndian.Uint64(src)
	return math.Float64frombits(unsortableFloatBits(u)), src[8:], nil
}

// AppendFloat32 appends the order-preserving encoding of v to dst.
func AppendFloat32(dst []byte, v float32) []byte {
	return binary.BigEndian.AppendUint32(dst, sortableFloat32Bits(math.Float32bits(v)))
}

// Float32 decodes a value written by AppendFloat32.
func Float32(src []byte) (float32, []byte, error) {
	if len(src) < 4 {
		return 0, nil, ErrCorrupt
	}
	u := binary.BigEndian.Uint32(src)
	return math.Float32frombits(unsortableFloat32Bits(u)), src[4:], nil
}

// AppendBytes appends the order-preserving encoding of b to dst. The
// encoding is self-delimiting, so encoded fields concatenate into
// composite keys without length prefixes.
func AppendBytes(dst, b []byte) []byte {
	for _, c := range b {
		switch c {
		case 0x00:
			dst = append(dst, escape, subZero)
		case 0x01:
			dst = append(dst, escape, subOne)
		default:
			dst = append(dst, c)
		}
	}
	return append(dst, terminator)
}

// Bytes decodes a field written by AppendBytes from the front of src and
// returns the remaining bytes.
func Bytes(src []byte) ([]byte, []byte, error) {
	out := []byte{}
	for i := 0; i < len(src); i++ {
		switch src[i] {
		case terminator:
			return out, src[i+1:], nil
		case escape:
			if i+1 >= len(src) {
				return nil, nil, ErrCorrupt
			}
			switch src[i+1] {
			case subZero:
				out = append(out, 0x00)
			case subOne:
				out = append(out, 0x01)
			default:
				return nil, nil, ErrCorrupt
			}
			i++
		default:
			out = append(out, src[i])
		}
	}
	return nil, nil, ErrCorrupt
}

// AppendString appends the order-preserving encoding of s to dst.
func AppendString(dst []byte, s string) []byte {
	return AppendBytes(dst, []byte(s))
}

// String decodes a field written by AppendString.
func String(src []byte) (string, []byte, error) {
	b, rest, err := Bytes(src)
	return string(b), rest, err
}

// sortableFloatBits maps IEEE 754 bits to a uint64 whose unsigned order
// equals the float total order.
func sortableFloatBits(u uint64) uint64 {
	if u&(1<<63) != 0 {
		return ^u
	}
	return u | (1 << 63)
}

func unsortableFloatBits(u uint64) uint64 {
	if u&(1<<63) != 0 {
		return u &^ (1 << 63)
	}
	return ^u
}

func sortableFloat32Bits(u uint32) uint32 {
	if u&(1<<31) != 0 {
		return ^u
	}
	return u | (1 << 31)
}

func unsortableFloat32Bits(u uint32) uint32 {
	if u&(1<<31) != 0 {
		return u &^ (1 << 31)
	}
	return ^u
}
