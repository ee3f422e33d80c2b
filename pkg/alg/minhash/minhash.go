// Package minhash provides MinHash signature generation for set similarity estimation.
//
// A signature is a fixed-length vector of per-slot minimum hash values over all
// shingles of a document. The fraction of positions on which two signatures
// agree estimates the Jaccard similarity of the two shingle sets.
//
// The k-th slot hashes with seed*k instead of with an independent hash family.
// This trades true hash independence for speed; the estimator only requires low
// correlation between slots.
package minhash

import (
	"errors"
	"fmt"
	"math"

	"github.com/Sumatoshi-tech/neardup/pkg/alg/internal/hashutil"
)

// Sentinel is the initial value of every slot ("no shingle seen yet").
const Sentinel = math.MaxUint32

var (
	// ErrZeroNumHashes is returned when the signature size is not positive.
	ErrZeroNumHashes = errors.New("minhash: numHashes must be positive")

	// ErrSizeMismatch is returned when comparing signatures of different sizes.
	ErrSizeMismatch = errors.New("minhash: signature sizes do not match")
)

// Source is a lazy, non-restartable stream of shingles.
// It follows the [bufio.Scanner] protocol.
type Source interface {
	Scan() bool
	Bytes() []byte
	Err() error
}

// Signature is a MinHash signature: one minimum hash value per slot.
type Signature []uint32

// Similarity returns the fraction of positions on which s and other agree.
func (s Signature) Similarity(other Signature) (float64, error) {
	if len(s) != len(other) {
		return 0, ErrSizeMismatch
	}

	if len(s) == 0 {
		return 0, ErrZeroNumHashes
	}

	return float64(Matches(s, other)) / float64(len(s)), nil
}

// IsEmpty reports whether no shingle was ever added, i.e. every slot still
// holds the sentinel.
func (s Signature) IsEmpty() bool {
	for _, v := range s {
		if v != Sentinel {
			return false
		}
	}

	return true
}

// Matches counts equal positions of two equally sized rows.
func Matches(a, b []uint32) int {
	matches := 0

	for i := range a {
		if a[i] == b[i] {
			matches++
		}
	}

	return matches
}

// Builder accumulates shingles into a signature.
// A Builder is owned by one document's processing and is not safe for
// concurrent use.
type Builder struct {
	mins  []uint32
	seeds []uint32
}

// NewBuilder creates a builder for signatures of the given size.
// Every slot starts at [Sentinel].
func NewBuilder(numHashes int, seed uint32) (*Builder, error) {
	if numHashes <= 0 {
		return nil, ErrZeroNumHashes
	}

	b := &Builder{
		mins:  make([]uint32, numHashes),
		seeds: hashutil.SlotSeeds(numHashes, seed),
	}
	b.Reset()

	return b, nil
}

// Add updates every slot minimum with the given shingle.
func (b *Builder) Add(shingle []byte) {
	addTo(b.mins, b.seeds, shingle)
}

// Reset restores every slot to [Sentinel].
func (b *Builder) Reset() {
	for i := range b.mins {
		b.mins[i] = Sentinel
	}
}

// Signature returns a copy of the current minimums.
func (b *Builder) Signature() Signature {
	out := make(Signature, len(b.mins))
	copy(out, b.mins)

	return out
}

// Len returns the number of slots.
func (b *Builder) Len() int {
	return len(b.mins)
}

// Build drains src into a new signature of the given size.
// A source that yields no shingle produces an all-sentinel signature.
func Build(src Source, numHashes int, seed uint32) (Signature, error) {
	if numHashes <= 0 {
		return nil, ErrZeroNumHashes
	}

	sig := make(Signature, numHashes)

	err := BuildInto(sig, src, seed)
	if err != nil {
		return nil, err
	}

	return sig, nil
}

// BuildInto drains src and writes the signature into dst, typically a row of
// a signature matrix. len(dst) is the signature size.
func BuildInto(dst []uint32, src Source, seed uint32) error {
	if len(dst) == 0 {
		return ErrZeroNumHashes
	}

	for i := range dst {
		dst[i] = Sentinel
	}

	seeds := hashutil.SlotSeeds(len(dst), seed)

	for src.Scan() {
		addTo(dst, seeds, src.Bytes())
	}

	err := src.Err()
	if err != nil {
		return fmt.Errorf("minhash: read shingles: %w", err)
	}

	return nil
}

func addTo(mins, seeds []uint32, shingle []byte) {
	for k, seed := range seeds {
		h := hashutil.Murmur32(shingle, seed)
		if h < mins[k] {
			mins[k] = h
		}
	}
}
