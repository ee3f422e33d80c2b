package observability_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/neardup/pkg/observability"
)

func jsonLogger(buf *bytes.Buffer, mode observability.AppMode, rank int) *slog.Logger {
	cfg := observability.DefaultConfig()
	cfg.LogOutput = buf
	cfg.LogJSON = true
	cfg.LogLevel = slog.LevelDebug
	cfg.Mode = mode
	cfg.Rank = rank

	return observability.NewLogger(cfg)
}

func lastRecord(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))

	var record map[string]any

	require.NoError(t, json.Unmarshal(lines[len(lines)-1], &record))

	return record
}

func TestContextHandler_SpanAndPhase(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	logger := jsonLogger(&buf, observability.ModeWorker, 3)

	traceID, err := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
	require.NoError(t, err)

	spanID, err := trace.SpanIDFromHex("0102030405060708")
	require.NoError(t, err)

	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))
	ctx = observability.WithPhase(ctx, "exchange")

	logger.InfoContext(ctx, "sent")

	record := lastRecord(t, &buf)
	assert.Equal(t, "0102030405060708090a0b0c0d0e0f10", record[observability.LogKeyTraceID])
	assert.Equal(t, "0102030405060708", record[observability.LogKeySpanID])
	assert.Equal(t, "exchange", record[observability.LogKeyPhase])
	assert.Equal(t, "worker", record["mode"])
	assert.InDelta(t, 3, record["rank"], 0)
}

func TestContextHandler_BareContext(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	jsonLogger(&buf, observability.ModeLocal, observability.NoRank).InfoContext(context.Background(), "plain")

	record := lastRecord(t, &buf)
	assert.NotContains(t, record, observability.LogKeyTraceID)
	assert.NotContains(t, record, observability.LogKeyPhase)
	assert.NotContains(t, record, "rank")
	assert.Equal(t, "neardup", record["service"])
	assert.Equal(t, "local", record["mode"])
}

func TestContextHandler_IdentityStaysTopLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	logger := jsonLogger(&buf, observability.ModeLocal, observability.NoRank)
	logger.WithGroup("shard").With("lo", 0).InfoContext(observability.WithPhase(context.Background(), "bands"), "done", "hi", 4)

	record := lastRecord(t, &buf)
	assert.Equal(t, "neardup", record["service"])

	shard, ok := record["shard"].(map[string]any)
	require.True(t, ok)
	assert.InDelta(t, 0, shard["lo"], 0)
	assert.InDelta(t, 4, shard["hi"], 0)
	assert.Equal(t, "bands", shard[observability.LogKeyPhase])
}

func TestNewLogger_LevelAndFormat(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	cfg := observability.DefaultConfig()
	cfg.LogOutput = &buf
	cfg.LogLevel = slog.LevelWarn
	cfg.Mode = observability.ModeTool

	logger := observability.NewLogger(cfg)
	logger.Info("hidden")
	assert.Zero(t, buf.Len())

	logger.Warn("shown")
	assert.Contains(t, buf.String(), "msg=shown")
	assert.Contains(t, buf.String(), "mode=tool")
}

func TestPhaseFrom_Unset(t *testing.T) {
	t.Parallel()

	assert.Empty(t, observability.PhaseFrom(context.Background()))
}
