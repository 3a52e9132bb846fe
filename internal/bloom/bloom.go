// Package bloom implements the negative-lookup accelerator that sits in
// front of the ordered map: a classic bit-array Bloom filter using double
// hashing derived from two independent FNV passes, in the style of the
// checksum helpers used across internal/metapage and internal/overflow.
package bloom

import (
	"hash/fnv"
	"math"

	"github.com/tuannm99/thunder/internal/bx"
)

// BitsPerKey is the default filter density, tuned for roughly a 1% false
// positive rate at the default number of hash functions.
const BitsPerKey = 10

// DefaultFalsePositiveRate is the target used when sizing a fresh filter
// from an expected item count rather than an explicit bit budget.
const DefaultFalsePositiveRate = 0.01

// Filter is a fixed-size Bloom filter over byte-slice keys.
type Filter struct {
	bits      []byte
	numBits   uint64
	numHashes uint32
}

// New sizes a filter for expectedItems keys at the given false-positive
// rate, following the standard m = -n*ln(p)/(ln2)^2, k = (m/n)*ln2 formulas.
func New(expectedItems int, falsePositiveRate float64) *Filter {
	if expectedItems < 1 {
		expectedItems = 1
	}
	if falsePositiveRate <= 0 || falsePositiveRate >= 1 {
		falsePositiveRate = DefaultFalsePositiveRate
	}

	n := float64(expectedItems)
	ln2 := math.Ln2
	m := -n * math.Log(falsePositiveRate) / (ln2 * ln2)
	k := (m / n) * ln2

	numBits := uint64(math.Ceil(m))
	if numBits < 64 {
		numBits = 64
	}
	numHashes := uint32(math.Round(k))
	if numHashes < 1 {
		numHashes = 1
	}
	if numHashes > 30 {
		numHashes = 30
	}

	return &Filter{
		bits:      make([]byte, (numBits+7)/8),
		numBits:   numBits,
		numHashes: numHashes,
	}
}

// NewWithBitsPerKey sizes a filter using a fixed bits-per-key density
// instead of a target false-positive rate.
func NewWithBitsPerKey(expectedItems int, bitsPerKey int) *Filter {
	if expectedItems < 1 {
		expectedItems = 1
	}
	if bitsPerKey < 1 {
		bitsPerKey = BitsPerKey
	}
	numBits := uint64(expectedItems * bitsPerKey)
	if numBits < 64 {
		numBits = 64
	}
	numHashes := uint32(math.Round(float64(bitsPerKey) * math.Ln2))
	if numHashes < 1 {
		numHashes = 1
	}
	return &Filter{
		bits:      make([]byte, (numBits+7)/8),
		numBits:   numBits,
		numHashes: numHashes,
	}
}

func hashPair(key []byte) (h1, h2 uint64) {
	f1 := fnv.New64a()
	f1.Write(key)
	h1 = f1.Sum64()

	f2 := fnv.New64()
	f2.Write(key)
	h2 = f2.Sum64()
	if h2 == 0 {
		h2 = 1
	}
	return h1, h2
}

// Insert records key as present.
func (f *Filter) Insert(key []byte) {
	h1, h2 := hashPair(key)
	for i := uint32(0); i < f.numHashes; i++ {
		bit := (h1 + uint64(i)*h2) % f.numBits
		f.bits[bit/8] |= 1 << (bit % 8)
	}
}

// MayContain reports whether key might be present. A false result is a
// definite negative; a true result may be a false positive.
func (f *Filter) MayContain(key []byte) bool {
	h1, h2 := hashPair(key)
	for i := uint32(0); i < f.numHashes; i++ {
		bit := (h1 + uint64(i)*h2) % f.numBits
		if f.bits[bit/8]&(1<<(bit%8)) == 0 {
			return false
		}
	}
	return true
}

// NumBits and NumHashes expose the filter's shape, mostly for tests and
// diagnostics.
func (f *Filter) NumBits() uint64   { return f.numBits }
func (f *Filter) NumHashes() uint32 { return uint32(f.numHashes) }

// Encode serializes the filter as num_bits(u64) || num_hashes(u32) ||
// bits...
func (f *Filter) Encode() []byte {
	out := make([]byte, 8+4+len(f.bits))
	bx.PutU64(out[0:8], f.numBits)
	bx.PutU32(out[8:12], f.numHashes)
	copy(out[12:], f.bits)
	return out
}

// Decode parses the format written by Encode.
func Decode(buf []byte) (*Filter, error) {
	if len(buf) < 12 {
		return nil, ErrTruncated
	}
	numBits := bx.U64(buf[0:8])
	numHashes := bx.U32(buf[8:12])
	want := int((numBits + 7) / 8)
	rest := buf[12:]
	if len(rest) < want {
		return nil, ErrTruncated
	}
	bits := make([]byte, want)
	copy(bits, rest[:want])
	return &Filter{bits: bits, numBits: numBits, numHashes: numHashes}, nil
}
