package lsh

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/neardup/pkg/alg/minhash"
	"github.com/Sumatoshi-tech/neardup/pkg/matrix"
)

// Test constants for LSH tests.
const (
	// testRows is the default number of rows per band for tests.
	testRows = 4

	// testNumHashes is the default signature size for tests.
	testNumHashes = 100

	// testSeed is the hash seed used by signature-based tests.
	testSeed = 13
)

func TestValidateRows(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		size    int
		rows    int
		wantErr error
	}{
		{name: "default", size: 100, rows: 4},
		{name: "one band", size: 8, rows: 8},
		{name: "one row per band", size: 7, rows: 1},
		{name: "not a divisor", size: 100, rows: 3, wantErr: ErrRowsNotDivisor},
		{name: "rows larger than size", size: 4, rows: 8, wantErr: ErrRowsNotDivisor},
		{name: "zero rows", size: 100, rows: 0, wantErr: ErrInvalidParams},
		{name: "zero size", size: 0, rows: 4, wantErr: ErrInvalidParams},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := ValidateRows(tt.size, tt.rows)
			if tt.wantErr == nil {
				require.NoError(t, err)

				return
			}

			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestReduce_XORsContiguousRuns(t *testing.T) {
	t.Parallel()

	sig := []uint32{0b0001, 0b0010, 0b0100, 0b1000, 0xff, 0xff}

	bands, err := Reduce(sig, 2)

	require.NoError(t, err)
	assert.Equal(t, []uint32{0b0011, 0b1100, 0}, bands)
}

func TestReduce_ReferenceBands(t *testing.T) {
	t.Parallel()

	sig := []uint32{1455604376, 1876442604, 3031812939, 1609712367}

	bands, err := Reduce(sig, 2)

	require.NoError(t, err)
	assert.Equal(t, []uint32{958070644, 3947334052}, bands)
}

func TestReduce_IsPure(t *testing.T) {
	t.Parallel()

	sig := make([]uint32, testNumHashes)
	for i := range sig {
		sig[i] = uint32(i * 2654435761)
	}

	first, err := Reduce(sig, testRows)
	require.NoError(t, err)

	second, err := Reduce(sig, testRows)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, first, testNumHashes/testRows)
}

func TestReduce_InvalidRows(t *testing.T) {
	t.Parallel()

	_, err := Reduce(make([]uint32, 10), 3)

	require.ErrorIs(t, err, ErrRowsNotDivisor)
}

func TestReduceInto_SizeMismatch(t *testing.T) {
	t.Parallel()

	err := ReduceInto(make([]uint32, 3), make([]uint32, 8), 4)

	require.ErrorIs(t, err, ErrSizeMismatch)
}

func TestReduceMatrix(t *testing.T) {
	t.Parallel()

	sigs := matrix.New(3, 4)
	for i := range sigs.Data() {
		sigs.Data()[i] = uint32(i + 1)
	}

	bands := matrix.New(3, 2)

	require.NoError(t, ReduceMatrix(sigs, bands, 2))

	for i := range sigs.Rows() {
		want, err := Reduce(sigs.Row(i), 2)
		require.NoError(t, err)
		assert.Equal(t, want, bands.Row(i))
	}
}

func TestReduceMatrix_ShapeErrors(t *testing.T) {
	t.Parallel()

	require.ErrorIs(t, ReduceMatrix(matrix.New(2, 4), matrix.New(3, 2), 2), matrix.ErrShape)
	require.ErrorIs(t, ReduceMatrix(matrix.New(2, 4), matrix.New(2, 3), 2), ErrSizeMismatch)
	require.ErrorIs(t, ReduceMatrix(matrix.New(2, 4), matrix.New(2, 2), 3), ErrRowsNotDivisor)
}

func TestCandidate(t *testing.T) {
	t.Parallel()

	assert.True(t, Candidate([]uint32{1, 2, 3}, []uint32{9, 2, 9}))
	assert.False(t, Candidate([]uint32{1, 2, 3}, []uint32{3, 1, 2}))
	assert.False(t, Candidate(nil, nil))
}

func TestCandidate_IdenticalSignatures(t *testing.T) {
	t.Parallel()

	b, err := minhash.NewBuilder(testNumHashes, testSeed)
	require.NoError(t, err)

	for i := range 50 {
		b.Add(fmt.Appendf(nil, "word%d word%d", i, i+1))
	}

	bandsA, err := Reduce(b.Signature(), testRows)
	require.NoError(t, err)

	bandsB, err := Reduce(b.Signature(), testRows)
	require.NoError(t, err)

	assert.True(t, Candidate(bandsA, bandsB))
}

func TestCandidate_DisjointSignatures(t *testing.T) {
	t.Parallel()

	a, err := minhash.NewBuilder(testNumHashes, testSeed)
	require.NoError(t, err)

	b, err := minhash.NewBuilder(testNumHashes, testSeed)
	require.NoError(t, err)

	for i := range 200 {
		a.Add(fmt.Appendf(nil, "alpha%d alpha%d alpha%d", i, i+1, i+2))
		b.Add(fmt.Appendf(nil, "beta%d beta%d beta%d", i, i+1, i+2))
	}

	bandsA, err := Reduce(a.Signature(), testRows)
	require.NoError(t, err)

	bandsB, err := Reduce(b.Signature(), testRows)
	require.NoError(t, err)

	assert.False(t, Candidate(bandsA, bandsB))
}
