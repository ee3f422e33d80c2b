package hashutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMurmur32_ReferenceValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		seed  uint32
		want  uint32
	}{
		{name: "full block", input: "abcd", seed: 0, want: 646393889},
		{name: "tail of three", input: "abc", seed: 0, want: 324500635},
		{name: "tail of two", input: "ab", seed: 0, want: 446775395},
		{name: "tail of one", input: "a", seed: 0, want: 2456313694},
		{name: "empty", input: "", seed: 0, want: 0},
		{name: "empty seeded", input: "", seed: 1, want: 1540447798},
		{name: "block seeded", input: "abcd", seed: 1, want: 3376380438},
		{name: "block and tail", input: "hello world", seed: 0, want: 1151865881},
		{name: "block and tail seeded", input: "hello world", seed: 13, want: 3156462880},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, Murmur32([]byte(tt.input), tt.seed))
		})
	}
}

func TestMurmur32_Deterministic(t *testing.T) {
	t.Parallel()

	data := []byte("the quick brown fox")

	for seed := range uint32(64) {
		assert.Equal(t, Murmur32(data, seed), Murmur32(data, seed))
	}
}

func TestMurmur32_SeedChangesOutput(t *testing.T) {
	t.Parallel()

	data := []byte("near duplicate")

	assert.NotEqual(t, Murmur32(data, 1), Murmur32(data, 2))
}

func TestMurmur32_NilEqualsEmpty(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Murmur32([]byte{}, 7), Murmur32(nil, 7))
}

func TestSlotSeeds(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []uint32{0, 13, 26, 39}, SlotSeeds(4, 13))
	assert.Empty(t, SlotSeeds(0, 13))
}

func TestSlotSeeds_Wraparound(t *testing.T) {
	t.Parallel()

	seeds := SlotSeeds(3, 0x80000000)

	assert.Equal(t, []uint32{0, 0x80000000, 0}, seeds)
}
