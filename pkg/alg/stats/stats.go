// Package stats provides small numeric helpers for work accounting.
package stats

// Integer is the set of counter types the helpers accept.
type Integer interface {
	~int | ~int32 | ~int64 | ~uint32 | ~uint64
}

// Sum returns the total of values.
func Sum[T Integer](values []T) T {
	var total T

	for _, v := range values {
		total += v
	}

	return total
}

// Mean returns the arithmetic mean of values, or 0 for an empty slice.
func Mean[T Integer](values []T) float64 {
	if len(values) == 0 {
		return 0
	}

	return float64(Sum(values)) / float64(len(values))
}

// Max returns the largest of values, or the zero value for an empty slice.
func Max[T Integer](values []T) T {
	var hi T

	for i, v := range values {
		if i == 0 || v > hi {
			hi = v
		}
	}

	return hi
}

// Imbalance returns max/mean of loads: 1 for a perfect split, larger when
// one worker carries more than its share. An all-zero load is balanced.
func Imbalance[T Integer](loads []T) float64 {
	mean := Mean(loads)
	if mean == 0 {
		return 1
	}

	return float64(Max(loads)) / mean
}
