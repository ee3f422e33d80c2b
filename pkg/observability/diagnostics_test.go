package observability_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/neardup/pkg/observability"
)

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, http.NoBody))

	return rec
}

func TestDiagnosticsHandler_ReadinessFollowsJob(t *testing.T) {
	t.Parallel()

	status := observability.NewJobStatus()
	h := observability.DiagnosticsHandler(prometheus.NewRegistry(), status)

	rec := get(t, h, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	rec = get(t, h, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), observability.ErrNotAnnounced.Error())

	status.Announce("run-1")
	assert.Equal(t, http.StatusOK, get(t, h, "/readyz").Code)

	status.Fail(errors.New("rank 2 lost"))
	status.Fail(errors.New("ignored"))

	rec = get(t, h, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "rank 2 lost")
	assert.NotContains(t, rec.Body.String(), "ignored")
}

func TestDiagnosticsHandler_Status(t *testing.T) {
	t.Parallel()

	status := observability.NewJobStatus()
	status.Announce("run-7")
	status.Enter(0, "compare")
	status.Enter(1, observability.PhaseDone)
	status.AddDocuments(3)
	status.AddDocuments(4)

	rec := get(t, observability.DiagnosticsHandler(prometheus.NewRegistry(), status), "/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var snap observability.StatusSnapshot

	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, "run-7", snap.RunID)
	assert.Equal(t, int64(7), snap.Documents)
	assert.Equal(t, map[int]string{0: "compare", 1: "done"}, snap.Phases)
	assert.Empty(t, snap.Error)
}

func TestJobStatus_NilIsInert(t *testing.T) {
	t.Parallel()

	var status *observability.JobStatus

	status.Announce("x")
	status.Enter(0, "bands")
	status.AddDocuments(1)
	status.Fail(errors.New("boom"))

	require.NoError(t, status.Ready())
	assert.Empty(t, status.Snapshot().Phases)
	assert.Equal(t, http.StatusOK, get(t, observability.DiagnosticsHandler(prometheus.NewRegistry(), nil), "/readyz").Code)
}

func TestDiagnosticsServer_ServesMetrics(t *testing.T) {
	t.Parallel()

	cfg := observability.DefaultConfig()
	cfg.LogOutput = io.Discard

	providers, err := observability.Init(cfg)
	require.NoError(t, err)

	t.Cleanup(func() { _ = providers.Shutdown(context.Background()) })

	jm, err := observability.NewJobMetrics(providers.Meter)
	require.NoError(t, err)

	jm.RecordDocument(context.Background(), 7)

	srv, err := observability.NewDiagnosticsServer("127.0.0.1:0", providers.Registry, observability.NewJobStatus())
	require.NoError(t, err)

	t.Cleanup(func() { _ = srv.Close() })

	resp, err := http.Get("http://" + srv.Addr() + "/metrics")
	require.NoError(t, err)

	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "neardup_documents")
	assert.Contains(t, string(body), "neardup_shingles")
}

func TestInit_LoggerIdentity(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	cfg := observability.DefaultConfig()
	cfg.LogOutput = &buf
	cfg.LogJSON = true
	cfg.Mode = observability.ModeWorker
	cfg.Rank = 1

	providers, err := observability.Init(cfg)
	require.NoError(t, err)

	t.Cleanup(func() { _ = providers.Shutdown(context.Background()) })

	providers.Logger.Info("hello")

	var record map[string]any

	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "worker", record["mode"])
	assert.Equal(t, "neardup", record["service"])
	assert.InDelta(t, 1, record["rank"], 0)
}

func TestParseOTLPHeaders(t *testing.T) {
	t.Parallel()

	assert.Nil(t, observability.ParseOTLPHeaders(""))
	assert.Nil(t, observability.ParseOTLPHeaders("junk"))
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, observability.ParseOTLPHeaders(" a=1, b = 2"))
}
