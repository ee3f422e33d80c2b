package stats

import "time"

// Rate tracks a throughput smoothed with an exponential moving average.
type Rate struct {
	alpha float64
	value float64
	seen  bool
}

// NewRate returns a Rate with smoothing factor alpha in (0, 1]. Larger
// values follow recent samples more closely.
func NewRate(alpha float64) *Rate {
	return &Rate{alpha: alpha}
}

// Observe records n items done in elapsed and returns the smoothed rate in
// items per second. Samples with a non-positive duration are ignored.
func (r *Rate) Observe(n int, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return r.value
	}

	sample := float64(n) / elapsed.Seconds()

	if !r.seen {
		r.value = sample
		r.seen = true

		return r.value
	}

	r.value = r.alpha*sample + (1-r.alpha)*r.value

	return r.value
}

// PerSecond returns the current smoothed rate, 0 before any sample.
func (r *Rate) PerSecond() float64 {
	return r.value
}
