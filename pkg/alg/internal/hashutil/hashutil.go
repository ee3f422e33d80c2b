// Package hashutil provides the seeded 32-bit hash mixer shared by the
// MinHash signature builder and the LSH band reducer.
//
// The mixer is the 32-bit Murmur2 construction by Austin Appleby. Its output
// must be bit-exact across processes and machines: signatures computed by
// different workers are only comparable when every worker hashes a shingle to
// the same value.
package hashutil

import "encoding/binary"

// Murmur2 constants.
const (
	// MurmurMul is the Murmur2 multiplier.
	MurmurMul = 0x5bd1e995

	// MurmurShift is the block mixing right-shift.
	MurmurShift = 24

	// FinalShift1 is the first right-shift of the finalizer.
	FinalShift1 = 13

	// FinalShift2 is the second right-shift of the finalizer.
	FinalShift2 = 15

	// blockSize is the number of input bytes consumed per mixing round.
	blockSize = 4
)

// Murmur32 hashes data with the given seed.
// Blocks are read little-endian; the 0-3 trailing bytes are folded in before
// the finalizer.
func Murmur32(data []byte, seed uint32) uint32 {
	h := seed ^ uint32(len(data))

	nblocks := len(data) / blockSize

	for i := range nblocks {
		k := binary.LittleEndian.Uint32(data[i*blockSize:])
		k *= MurmurMul
		k ^= k >> MurmurShift
		k *= MurmurMul

		h *= MurmurMul
		h ^= k
	}

	tail := data[nblocks*blockSize:]

	switch len(tail) {
	case 3:
		h ^= uint32(tail[2]) << 16

		fallthrough
	case 2:
		h ^= uint32(tail[1]) << 8

		fallthrough
	case 1:
		h ^= uint32(tail[0])
		h *= MurmurMul
	}

	h ^= h >> FinalShift1
	h *= MurmurMul
	h ^= h >> FinalShift2

	return h
}

// SlotSeeds derives the per-slot seeds of a signature: slot k uses seed*k
// with uint32 wraparound. Slot 0 therefore always hashes with seed 0.
func SlotSeeds(n int, seed uint32) []uint32 {
	seeds := make([]uint32, n)

	for k := range n {
		seeds[k] = seed * uint32(k)
	}

	return seeds
}
