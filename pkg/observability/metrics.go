package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	noopmetric "go.opentelemetry.io/otel/metric/noop"
)

const (
	metricDocuments     = "neardup.documents.total"
	metricShingles      = "neardup.shingles.total"
	metricComparisons   = "neardup.comparisons.total"
	metricCandidates    = "neardup.candidates.total"
	metricMatches       = "neardup.matches.total"
	metricExchangeBytes = "neardup.exchange.bytes"
	metricPhaseDuration = "neardup.phase.duration.seconds"

	attrPhase     = "phase"
	attrStatus    = "status"
	attrDirection = "direction"

	statusOK    = "ok"
	statusError = "error"
)

// durationBucketBoundaries covers 1ms to 30min; signature phases over large
// corpora run for many minutes.
var durationBucketBoundaries = []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300, 900, 1800}

// JobMetrics holds the OTel instruments of a similarity job.
type JobMetrics struct {
	documents     metric.Int64Counter
	shingles      metric.Int64Counter
	comparisons   metric.Int64Counter
	candidates    metric.Int64Counter
	matches       metric.Int64Counter
	exchangeBytes metric.Int64Counter
	phaseDuration metric.Float64Histogram
}

// NewJobMetrics creates the job instruments from the given meter.
func NewJobMetrics(mt metric.Meter) (*JobMetrics, error) {
	counters := []struct {
		name string
		desc string
		unit string
		dst  *metric.Int64Counter
	}{
		{metricDocuments, "Documents sketched", "{document}", nil},
		{metricShingles, "Shingles hashed", "{shingle}", nil},
		{metricComparisons, "Document pairs visited", "{pair}", nil},
		{metricCandidates, "Pairs sharing at least one band", "{pair}", nil},
		{metricMatches, "Pairs reported", "{pair}", nil},
		{metricExchangeBytes, "Matrix payload bytes exchanged between ranks", "By", nil},
	}

	jm := &JobMetrics{}
	counters[0].dst = &jm.documents
	counters[1].dst = &jm.shingles
	counters[2].dst = &jm.comparisons
	counters[3].dst = &jm.candidates
	counters[4].dst = &jm.matches
	counters[5].dst = &jm.exchangeBytes

	for _, c := range counters {
		counter, err := mt.Int64Counter(c.name, metric.WithDescription(c.desc), metric.WithUnit(c.unit))
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", c.name, err)
		}

		*c.dst = counter
	}

	hist, err := mt.Float64Histogram(metricPhaseDuration,
		metric.WithDescription("Duration of a job phase in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBucketBoundaries...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricPhaseDuration, err)
	}

	jm.phaseDuration = hist

	return jm, nil
}

// NoopJobMetrics returns instruments that record nothing.
func NoopJobMetrics() *JobMetrics {
	jm, err := NewJobMetrics(noopmetric.NewMeterProvider().Meter(instrumentationName))
	if err != nil {
		panic(err)
	}

	return jm
}

// RecordDocument counts one sketched document and its shingles.
func (jm *JobMetrics) RecordDocument(ctx context.Context, shingles int64) {
	jm.documents.Add(ctx, 1)
	jm.shingles.Add(ctx, shingles)
}

// RecordComparisons adds comparison counters.
func (jm *JobMetrics) RecordComparisons(ctx context.Context, visited, candidates, matches int64) {
	jm.comparisons.Add(ctx, visited)
	jm.candidates.Add(ctx, candidates)
	jm.matches.Add(ctx, matches)
}

// RecordExchange adds the bytes a rank sent and received.
func (jm *JobMetrics) RecordExchange(ctx context.Context, sent, received int64) {
	jm.exchangeBytes.Add(ctx, sent, metric.WithAttributes(attribute.String(attrDirection, "sent")))
	jm.exchangeBytes.Add(ctx, received, metric.WithAttributes(attribute.String(attrDirection, "received")))
}

// RecordPhase records the duration and outcome of a phase.
func (jm *JobMetrics) RecordPhase(ctx context.Context, phase string, duration time.Duration, err error) {
	status := statusOK
	if err != nil {
		status = statusError
	}

	jm.phaseDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String(attrPhase, phase),
		attribute.String(attrStatus, status),
	))
}
