// Package bloom provides a probabilistic set for fast negative lookups,
// e.g. skipping term-dictionary probes for terms that were never indexed.
// A lookup answers "definitely absent" or "maybe present"; there are no
// false negatives.
package bloom

import (
	"math"
	"math/bits"

	"github.com/bits-and-blooms/bitset"
	"github.com/cespare/xxhash/v2"
)

const minBits = 64

// Set is a bloom filter over byte keys. The bit array size is always a
// power of two so hash values can be masked instead of reduced modulo a
// prime, and so the filter can later be folded in half by Downsize.
//
// Not safe for concurrent use.
type Set struct {
	bits *bitset.BitSet
	mask uint64
	k    uint64
}

// New creates a set with at least numBits bits (rounded up to a power of
// two, minimum 64) and k hash functions.
func New(numBits uint64, k uint64) *Set {
	if numBits < minBits {
		numBits = minBits
	}
	size := uint64(1) << bits.Len64(numBits-1)
	if k < 1 {
		k = 1
	}
	return &Set{
		bits: bitset.New(uint(size)),
		mask: size - 1,
		k:    k,
	}
}

// NewWithEstimates creates a set sized for n keys at roughly the given
// false-positive probability.
func NewWithEstimates(n uint64, fpp float64) *Set {
	if n == 0 {
		n = 1
	}
	if fpp <= 0 || fpp >= 1 {
		fpp = 0.01
	}
	m := math.Ceil(-float64(n) * math.Log(fpp) / (math.Ln2 * math.Ln2))
	k := math.Round(m / float64(n) * math.Ln2)
	if k < 1 {
		k = 1
	}
	return New(uint64(m), uint64(k))
}

// Add inserts a key.
func (s *Set) Add(key []byte) {
	h1, h2 := s.hashPair(key)
	for i := uint64(0); i < s.k; i++ {
		s.bits.Set(uint((h1 + i*h2) & s.mask))
	}
}

// AddString inserts a string key without copying it to a byte slice.
func (s *Set) AddString(key string) {
	h1, h2 := s.hashPairString(key)
	for i := uint64(0); i < s.k; i++ {
		s.bits.Set(uint((h1 + i*h2) & s.mask))
	}
}

// MaybeContains reports whether the key may have been added. A false
// result is definitive; a true result may be a false positive.
func (s *Set) MaybeContains(key []byte) bool {
	h1, h2 := s.hashPair(key)
	for i := uint64(0); i < s.k; i++ {
		if !s.bits.Test(uint((h1 + i*h2) & s.mask)) {
			return false
		}
	}
	return true
}

// MaybeContainsString is MaybeContains for string keys.
func (s *Set) MaybeContainsString(key string) bool {
	h1, h2 := s.hashPairString(key)
	for i := uint64(0); i < s.k; i++ {
		if !s.bits.Test(uint((h1 + i*h2) & s.mask)) {
			return false
		}
	}
	return true
}

// NumBits returns the size of the bit array.
func (s *Set) NumBits() uint64 { return s.mask + 1 }

// Saturation returns the fraction of bits set, a measure of how full the
// filter is. Filters past ~0.5 saturation produce rapidly degrading
// false-positive rates.
func (s *Set) Saturation() float64 {
	return float64(s.bits.Count()) / float64(s.NumBits())
}

// Downsize folds the bit array in half, repeatedly, while the folded
// filter stays at or below maxSaturation. Filters are sized for a
// worst-case key count up front; folding right-sizes a lightly loaded
// filter before it is retained long-term. Returns the receiver if no
// fold is possible.
func (s *Set) Downsize(maxSaturation float64) *Set {
	result := s
	for result.NumBits() > minBits {
		folded := result.fold()
		if folded.Saturation() > maxSaturation {
			break
		}
		result = folded
	}
	return result
}

// fold halves the bit array, ORing the upper half onto the lower. Every
// key present before folding is still present after, because masking by
// the smaller size maps both halves onto the same positions.
func (s *Set) fold() *Set {
	half := s.NumBits() / 2
	out := &Set{
		bits: bitset.New(uint(half)),
		mask: half - 1,
		k:    s.k,
	}
	for i, ok := s.bits.NextSet(0); ok; i, ok = s.bits.NextSet(i + 1) {
		out.bits.Set(i & uint(half-1))
	}
	return out
}

func (s *Set) hashPair(key []byte) (uint64, uint64) {
	h1 := xxhash.Sum64(key)
	return splitHash(h1)
}

func (s *Set) hashPairString(key string) (uint64, uint64) {
	h1 := xxhash.Sum64String(key)
	return splitHash(h1)
}

// splitHash derives the second hash for double hashing from the first.
// The OR keeps it odd so successive probes visit distinct positions in
// the power-of-two table.
func splitHash(h uint64) (uint64, uint64) {
	return h, (h>>33 | h<<31) | 1
}
