// Package compare scores document pairs that pass the LSH band filter.
package compare

import (
	"errors"
	"fmt"
	"iter"

	"github.com/Sumatoshi-tech/neardup/pkg/alg/lsh"
	"github.com/Sumatoshi-tech/neardup/pkg/alg/minhash"
	"github.com/Sumatoshi-tech/neardup/pkg/matrix"
	"github.com/Sumatoshi-tech/neardup/pkg/partition"
)

var (
	// ErrShape is returned when the signature and band matrices disagree.
	ErrShape = errors.New("compare: signature and band matrices differ in rows")

	// ErrThreshold is returned for a threshold outside [0, 1].
	ErrThreshold = errors.New("compare: threshold must be within [0, 1]")
)

// Record is one reported pair. Doc1 < Doc2; both are absolute document ids.
type Record struct {
	Doc1       int
	Doc2       int
	Similarity float64
}

// Stats counts the work done by a Comparator.
type Stats struct {
	Comparisons int64 // pairs visited
	Candidates  int64 // pairs that shared a band
	Matches     int64 // candidates at or above the threshold
}

// Comparator compares rows of a signature matrix.
type Comparator struct {
	sigs      *matrix.Matrix
	bands     *matrix.Matrix
	threshold float64
	offset    int
	stats     Stats
}

// New returns a comparator over full signature and band matrices.
// docOffset is added to row indices to form document ids.
func New(sigs, bands *matrix.Matrix, threshold float64, docOffset int) (*Comparator, error) {
	if sigs.Rows() != bands.Rows() {
		return nil, fmt.Errorf("%w: %d vs %d", ErrShape, sigs.Rows(), bands.Rows())
	}

	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("%w: %v", ErrThreshold, threshold)
	}

	return &Comparator{sigs: sigs, bands: bands, threshold: threshold, offset: docOffset}, nil
}

// Pairs yields every qualifying pair (i, j) with i in r and i < j < N,
// in row-major order.
func (c *Comparator) Pairs(r partition.Range) iter.Seq[Record] {
	return func(yield func(Record) bool) {
		n := c.sigs.Rows()
		width := c.sigs.Cols()

		for i := max(r.Start, 0); i < min(r.End, n); i++ {
			bi := c.bands.Row(i)
			si := c.sigs.Row(i)

			for j := i + 1; j < n; j++ {
				c.stats.Comparisons++

				if !lsh.Candidate(bi, c.bands.Row(j)) {
					continue
				}

				c.stats.Candidates++

				sim := 0.0
				if width > 0 {
					sim = float64(minhash.Matches(si, c.sigs.Row(j))) / float64(width)
				}

				if sim < c.threshold {
					continue
				}

				c.stats.Matches++

				if !yield(Record{Doc1: c.offset + i, Doc2: c.offset + j, Similarity: sim}) {
					return
				}
			}
		}
	}
}

// Stats returns the counters accumulated so far.
func (c *Comparator) Stats() Stats {
	return c.stats
}
