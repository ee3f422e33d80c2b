package observability

import (
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// SpanDocument is the per-document span name. It is only sampled when
// verbose tracing is on.
const SpanDocument = "neardup.document"

// hotPathSampler drops per-document spans regardless of the parent decision
// and defers everything else to next.
type hotPathSampler struct {
	next sdktrace.Sampler
}

// NewHotPathSampler wraps next so that SpanDocument spans are never sampled.
func NewHotPathSampler(next sdktrace.Sampler) sdktrace.Sampler {
	return hotPathSampler{next: next}
}

func (s hotPathSampler) ShouldSample(p sdktrace.SamplingParameters) sdktrace.SamplingResult {
	if p.Name == SpanDocument {
		return sdktrace.SamplingResult{
			Decision:   sdktrace.Drop,
			Tracestate: trace.SpanContextFromContext(p.ParentContext).TraceState(),
		}
	}

	return s.next.ShouldSample(p)
}

func (s hotPathSampler) Description() string {
	return "HotPathSampler{" + s.next.Description() + "}"
}
