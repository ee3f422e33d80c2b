package observability

import (
	"context"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel/trace"
)

// Log keys added by ContextHandler.
const (
	LogKeyTraceID = "trace_id"
	LogKeySpanID  = "span_id"
	LogKeyPhase   = "phase"
)

type phaseKey struct{}

// WithPhase tags ctx so records logged under it carry the phase name.
func WithPhase(ctx context.Context, phase string) context.Context {
	return context.WithValue(ctx, phaseKey{}, phase)
}

// PhaseFrom returns the phase set by WithPhase, or "".
func PhaseFrom(ctx context.Context) string {
	phase, _ := ctx.Value(phaseKey{}).(string)

	return phase
}

// ContextHandler is an [slog.Handler] that copies the active span ids and
// the engine phase from the record's context onto the record.
type ContextHandler struct {
	slog.Handler
}

// Handle adds context attributes, then delegates.
func (h ContextHandler) Handle(ctx context.Context, record slog.Record) error {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		record.AddAttrs(
			slog.String(LogKeyTraceID, sc.TraceID().String()),
			slog.String(LogKeySpanID, sc.SpanID().String()),
		)
	}

	if phase := PhaseFrom(ctx); phase != "" {
		record.AddAttrs(slog.String(LogKeyPhase, phase))
	}

	return h.Handler.Handle(ctx, record)
}

// WithAttrs keeps the context enrichment on derived loggers.
func (h ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return ContextHandler{Handler: h.Handler.WithAttrs(attrs)}
}

// WithGroup keeps the context enrichment on derived loggers.
func (h ContextHandler) WithGroup(name string) slog.Handler {
	return ContextHandler{Handler: h.Handler.WithGroup(name)}
}

// NewLogger builds the process logger: text or JSON at cfg.LogLevel, with
// the process identity attached once so it stays top level under groups.
func NewLogger(cfg Config) *slog.Logger {
	out := cfg.LogOutput
	if out == nil {
		out = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: cfg.LogLevel}

	var base slog.Handler = slog.NewTextHandler(out, opts)
	if cfg.LogJSON {
		base = slog.NewJSONHandler(out, opts)
	}

	identity := []slog.Attr{
		slog.String("service", cfg.ServiceName),
		slog.String("mode", string(cfg.Mode)),
	}

	if cfg.Environment != "" {
		identity = append(identity, slog.String("env", cfg.Environment))
	}

	if cfg.Rank != NoRank {
		identity = append(identity, slog.Int("rank", cfg.Rank))
	}

	return slog.New(ContextHandler{Handler: base.WithAttrs(identity)})
}
