// Package lsh reduces MinHash signatures to LSH bands for candidate filtering.
//
// A signature of numHashes slots is cut into numHashes/numRows contiguous,
// disjoint runs of numRows slots. Each run is XOR-folded into one band value.
// Two documents are a candidate pair when at least one band position holds the
// same value in both. XOR is many-to-one, so equal bands do not imply equal
// rows; the comparator re-scores every candidate on the full signature.
package lsh

import (
	"errors"
	"fmt"

	"github.com/Sumatoshi-tech/neardup/pkg/matrix"
)

var (
	// ErrInvalidParams is returned when the signature size or band rows is not positive.
	ErrInvalidParams = errors.New("lsh: signature size and band rows must be positive")

	// ErrRowsNotDivisor is returned when band rows does not divide the signature size.
	ErrRowsNotDivisor = errors.New("lsh: band rows must divide the signature size")

	// ErrSizeMismatch is returned when a destination does not hold numHashes/numRows bands.
	ErrSizeMismatch = errors.New("lsh: band count does not match signature size / band rows")
)

// ValidateRows checks the banding configuration. It is meant to run once,
// before any signature is computed.
func ValidateRows(signatureSize, bandRows int) error {
	if signatureSize <= 0 || bandRows <= 0 {
		return fmt.Errorf("%w: signature size %d, band rows %d", ErrInvalidParams, signatureSize, bandRows)
	}

	if signatureSize%bandRows != 0 {
		return fmt.Errorf("%w: %d %% %d = %d", ErrRowsNotDivisor, signatureSize, bandRows, signatureSize%bandRows)
	}

	return nil
}

// NumBands returns the number of bands for a validated configuration.
func NumBands(signatureSize, bandRows int) int {
	return signatureSize / bandRows
}

// Reduce returns the bands of sig.
func Reduce(sig []uint32, bandRows int) ([]uint32, error) {
	err := ValidateRows(len(sig), bandRows)
	if err != nil {
		return nil, err
	}

	bands := make([]uint32, NumBands(len(sig), bandRows))
	reduce(bands, sig, bandRows)

	return bands, nil
}

// ReduceInto writes the bands of sig into dst.
func ReduceInto(dst, sig []uint32, bandRows int) error {
	err := ValidateRows(len(sig), bandRows)
	if err != nil {
		return err
	}

	if len(dst) != NumBands(len(sig), bandRows) {
		return fmt.Errorf("%w: have %d, want %d", ErrSizeMismatch, len(dst), NumBands(len(sig), bandRows))
	}

	reduce(dst, sig, bandRows)

	return nil
}

// ReduceMatrix fills every row of bands from the matching row of sigs.
func ReduceMatrix(sigs, bands *matrix.Matrix, bandRows int) error {
	if sigs.Rows() != bands.Rows() {
		return fmt.Errorf("%w: %d signature rows, %d band rows", matrix.ErrShape, sigs.Rows(), bands.Rows())
	}

	err := ValidateRows(sigs.Cols(), bandRows)
	if err != nil {
		return err
	}

	if bands.Cols() != NumBands(sigs.Cols(), bandRows) {
		return fmt.Errorf("%w: have %d, want %d", ErrSizeMismatch, bands.Cols(), NumBands(sigs.Cols(), bandRows))
	}

	for i := range sigs.Rows() {
		reduce(bands.Row(i), sigs.Row(i), bandRows)
	}

	return nil
}

// Candidate reports whether two band vectors share a value at any position.
func Candidate(a, b []uint32) bool {
	for i := range a {
		if a[i] == b[i] {
			return true
		}
	}

	return false
}

func reduce(dst, sig []uint32, bandRows int) {
	for j := range dst {
		var band uint32

		for _, v := range sig[j*bandRows : (j+1)*bandRows] {
			band ^= v
		}

		dst[j] = band
	}
}
