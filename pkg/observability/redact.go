package observability

import (
	"strings"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// exportedNamespaces are the first key segments that may leave the process.
var exportedNamespaces = map[string]bool{
	"neardup":   true,
	"phase":     true,
	"exchange":  true,
	"run":       true,
	"error":     true,
	"exception": true,
}

// exportable reports whether an attribute key may be exported. Document
// and shingle text never is, whatever its namespace.
func exportable(key attribute.Key) bool {
	k := string(key)
	if strings.HasSuffix(k, ".text") || strings.HasPrefix(k, "shingle") {
		return false
	}

	ns, _, _ := strings.Cut(k, ".")

	return exportedNamespaces[ns]
}

// redactor strips non-exportable attributes from ended spans before they
// reach the exporting processor.
type redactor struct {
	sdktrace.SpanProcessor
}

// NewRedactingProcessor wraps next so it only sees exportable attributes.
// Stripped attributes are added to the span's dropped count.
func NewRedactingProcessor(next sdktrace.SpanProcessor) sdktrace.SpanProcessor {
	return redactor{SpanProcessor: next}
}

func (r redactor) OnEnd(s sdktrace.ReadOnlySpan) {
	kept := make([]attribute.KeyValue, 0, len(s.Attributes()))

	for _, kv := range s.Attributes() {
		if exportable(kv.Key) {
			kept = append(kept, kv)
		}
	}

	r.SpanProcessor.OnEnd(redactedSpan{
		ReadOnlySpan: s,
		attrs:        kept,
		stripped:     len(s.Attributes()) - len(kept),
	})
}

type redactedSpan struct {
	sdktrace.ReadOnlySpan

	attrs    []attribute.KeyValue
	stripped int
}

func (s redactedSpan) Attributes() []attribute.KeyValue { return s.attrs }

func (s redactedSpan) DroppedAttributes() int {
	return s.ReadOnlySpan.DroppedAttributes() + s.stripped
}
