// Package partition splits documents and pairwise comparisons across workers.
package partition

import (
	"errors"
	"fmt"

	"github.com/Sumatoshi-tech/neardup/pkg/alg/stats"
)

var (
	// ErrNoWorkers is returned when the worker count is not positive.
	ErrNoWorkers = errors.New("partition: worker count must be positive")

	// ErrNegativeDocs is returned for a negative document count.
	ErrNegativeDocs = errors.New("partition: document count must not be negative")
)

// Range is a half-open interval [Start, End) of document indices.
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of indices in the range.
func (r Range) Len() int { return r.End - r.Start }

// Empty reports whether the range holds no indices.
func (r Range) Empty() bool { return r.End <= r.Start }

// String formats the range as [start,end).
func (r Range) String() string {
	return fmt.Sprintf("[%d,%d)", r.Start, r.End)
}

func validate(n, w int) error {
	if w <= 0 {
		return fmt.Errorf("%w: %d", ErrNoWorkers, w)
	}

	if n < 0 {
		return fmt.Errorf("%w: %d", ErrNegativeDocs, n)
	}

	return nil
}

// ChunkSize returns ceil(n/w), the shard length of every rank but the last.
func ChunkSize(n, w int) int {
	return (n + w - 1) / w
}

// Docs splits n documents into w contiguous shards of ChunkSize(n, w).
// The last shard takes the remainder. Shards past the end are empty.
func Docs(n, w int) ([]Range, error) {
	err := validate(n, w)
	if err != nil {
		return nil, err
	}

	chunk := ChunkSize(n, w)
	out := make([]Range, w)

	for rank := range out {
		start := min(rank*chunk, n)
		end := min(start+chunk, n)

		if rank == w-1 {
			end = n
		}

		out[rank] = Range{Start: start, End: end}
	}

	return out, nil
}

// PairCount returns n(n-1)/2.
func PairCount(n int) int64 {
	if n < 2 {
		return 0
	}

	return int64(n) * int64(n-1) / 2
}

// Comparisons splits the row indices of the upper-triangular pair space
// so each rank owns roughly PairCount(n)/w pairs. Row i carries n-i-1 pairs.
// A rank that gets no cut starts at n and owns nothing.
func Comparisons(n, w int) ([]Range, error) {
	err := validate(n, w)
	if err != nil {
		return nil, err
	}

	total := PairCount(n)
	target := (total + int64(w) - 1) / int64(w)

	starts := make([]int, w)
	for rank := 1; rank < w; rank++ {
		starts[rank] = n
	}

	rank := 1

	var sum int64

	for i := 0; i < n && rank < w; i++ {
		sum += int64(n - i - 1)

		if sum >= target {
			starts[rank] = i + 1
			rank++
			sum = 0
		}
	}

	out := make([]Range, w)
	for r := range out {
		end := n
		if r+1 < w {
			end = starts[r+1]
		}

		out[r] = Range{Start: starts[r], End: end}
	}

	return out, nil
}

// Pairs returns the number of (i, j) pairs with i in r and i < j < n.
func Pairs(r Range, n int) int64 {
	var total int64

	for i := r.Start; i < r.End; i++ {
		total += int64(n - i - 1)
	}

	return total
}

// Plan is the complete work assignment of a run.
type Plan struct {
	Docs        int     `json:"docs"`
	Workers     int     `json:"workers"`
	ChunkSize   int     `json:"chunk_size"`
	Shards      []Range `json:"shards"`
	Comparisons []Range `json:"comparisons"`
}

// NewPlan computes both partitions for n documents over w workers.
func NewPlan(n, w int) (*Plan, error) {
	shards, err := Docs(n, w)
	if err != nil {
		return nil, err
	}

	comps, err := Comparisons(n, w)
	if err != nil {
		return nil, err
	}

	return &Plan{
		Docs:        n,
		Workers:     w,
		ChunkSize:   ChunkSize(n, w),
		Shards:      shards,
		Comparisons: comps,
	}, nil
}

// ShardSizes returns the document count of each rank's shard.
func (p *Plan) ShardSizes() []int {
	sizes := make([]int, len(p.Shards))
	for i, s := range p.Shards {
		sizes[i] = s.Len()
	}

	return sizes
}

// PairLoads returns the number of pairs each rank compares.
func (p *Plan) PairLoads() []int64 {
	loads := make([]int64, len(p.Comparisons))
	for i, r := range p.Comparisons {
		loads[i] = Pairs(r, p.Docs)
	}

	return loads
}

// Imbalance returns the max/mean ratio of the pair loads; 1 is a perfect split.
func (p *Plan) Imbalance() float64 {
	return stats.Imbalance(p.PairLoads())
}
