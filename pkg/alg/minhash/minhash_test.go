package minhash_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/neardup/pkg/alg/minhash"
	"github.com/Sumatoshi-tech/neardup/pkg/shingle"
)

func words(t testing.TB, text string, size int) *shingle.Scanner {
	t.Helper()

	sc, err := shingle.NewScanner(strings.NewReader(text), size)
	require.NoError(t, err)

	return sc
}

func sign(t testing.TB, text string, numHashes int, seed uint32) minhash.Signature {
	t.Helper()

	sig, err := minhash.Build(words(t, text, 2), numHashes, seed)
	require.NoError(t, err)

	return sig
}

// vocabulary returns n distinct words starting at prefix_from.
func vocabulary(prefix string, from, n int) string {
	ws := make([]string, n)
	for i := range ws {
		ws[i] = fmt.Sprintf("%s%d", prefix, from+i)
	}

	return strings.Join(ws, " ")
}

func TestBuild_KnownSignatures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		text string
		want minhash.Signature
	}{
		{"a b c d", minhash.Signature{1455604376, 1876442604, 3031812939, 1609712367}},
		{"a b c e", minhash.Signature{1455604376, 220137650, 3038487776, 1609712367}},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, sign(t, tt.text, 4, 1))
		})
	}
}

func TestBuild_NoShingles(t *testing.T) {
	t.Parallel()

	for _, text := range []string{"", "single", "   \n\t "} {
		sig := sign(t, text, 16, 13)

		assert.Len(t, sig, 16)
		assert.True(t, sig.IsEmpty(), "%q", text)

		for _, v := range sig {
			assert.Equal(t, uint32(minhash.Sentinel), v)
		}
	}
}

func TestBuild_Errors(t *testing.T) {
	t.Parallel()

	_, err := minhash.Build(words(t, "a b", 2), 0, 1)
	require.ErrorIs(t, err, minhash.ErrZeroNumHashes)

	errDisk := errors.New("disk gone")

	sig, err := minhash.Build(words(t, "", 2), 8, 1)
	require.NoError(t, err)
	assert.True(t, sig.IsEmpty())

	sc, err := shingle.NewScanner(iotest.ErrReader(errDisk), 2)
	require.NoError(t, err)

	sig, err = minhash.Build(sc, 8, 1)
	require.ErrorIs(t, err, errDisk)
	assert.Nil(t, sig)
}

func TestBuildInto_AgreesWithBuild(t *testing.T) {
	t.Parallel()

	text := "the quick brown fox jumps over the lazy dog"
	row := []uint32{7, 7, 7, 7, 7, 7, 7, 7}

	require.NoError(t, minhash.BuildInto(row, words(t, text, 2), 5))
	assert.Equal(t, sign(t, text, 8, 5), minhash.Signature(row))

	require.NoError(t, minhash.BuildInto(row, words(t, "", 2), 5))
	assert.True(t, minhash.Signature(row).IsEmpty())
}

func TestBuilder(t *testing.T) {
	t.Parallel()

	_, err := minhash.NewBuilder(-1, 1)
	require.ErrorIs(t, err, minhash.ErrZeroNumHashes)

	b, err := minhash.NewBuilder(32, 9)
	require.NoError(t, err)
	assert.Equal(t, 32, b.Len())

	before := b.Signature()
	sc := words(t, vocabulary("w", 0, 50), 2)

	for sc.Scan() {
		prev := b.Signature()
		b.Add(sc.Bytes())

		for k, v := range b.Signature() {
			require.LessOrEqual(t, v, prev[k])
		}
	}

	assert.True(t, before.IsEmpty(), "snapshots must not alias builder state")
	assert.Equal(t, sign(t, vocabulary("w", 0, 50), 32, 9), b.Signature())

	b.Reset()
	assert.True(t, b.Signature().IsEmpty())

	b.Add(nil)
	assert.False(t, b.Signature().IsEmpty())
}

func TestBuild_SeedChangesSignature(t *testing.T) {
	t.Parallel()

	text := vocabulary("s", 0, 20)

	assert.Equal(t, sign(t, text, 16, 3), sign(t, text, 16, 3))
	assert.NotEqual(t, sign(t, text, 16, 3), sign(t, text, 16, 4))
}

func TestSimilarity(t *testing.T) {
	t.Parallel()

	const numHashes = 256

	tests := []struct {
		name  string
		a, b  string
		want  float64
		delta float64
	}{
		{"identical", vocabulary("x", 0, 300), vocabulary("x", 0, 300), 1, 0},
		{"disjoint", vocabulary("a", 0, 600), vocabulary("b", 0, 600), 0, 0.05},
		// 300 shared shingles of 900 distinct.
		{"third", vocabulary("m", 0, 601), vocabulary("m", 300, 601), 1.0 / 3.0, 0.1},
		{"both empty", "", "one", 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			sim, err := sign(t, tt.a, numHashes, 1).Similarity(sign(t, tt.b, numHashes, 1))
			require.NoError(t, err)
			assert.InDelta(t, tt.want, sim, tt.delta)
		})
	}
}

func TestSimilarity_Invalid(t *testing.T) {
	t.Parallel()

	_, err := minhash.Signature{1, 2}.Similarity(minhash.Signature{1})
	require.ErrorIs(t, err, minhash.ErrSizeMismatch)

	_, err = minhash.Signature{}.Similarity(nil)
	require.ErrorIs(t, err, minhash.ErrZeroNumHashes)
}

func TestMatches(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 2, minhash.Matches([]uint32{1, 2, 3}, []uint32{1, 5, 3}))
	assert.Equal(t, 2, minhash.Matches(sign(t, "a b c d", 4, 1), sign(t, "a b c e", 4, 1)))
	assert.Zero(t, minhash.Matches(nil, nil))
}

func BenchmarkBuild(b *testing.B) {
	text := vocabulary("bench", 0, 2000)

	b.ReportAllocs()

	for b.Loop() {
		sc, err := shingle.NewScanner(strings.NewReader(text), 3)
		if err != nil {
			b.Fatal(err)
		}

		if _, err := minhash.Build(sc, 100, 1); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkSimilarity(b *testing.B) {
	x := sign(b, vocabulary("p", 0, 1000), 100, 1)
	y := sign(b, vocabulary("p", 500, 1000), 100, 1)

	b.ReportAllocs()

	for b.Loop() {
		_, _ = x.Similarity(y)
	}
}
