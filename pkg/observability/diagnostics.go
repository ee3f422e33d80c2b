package observability

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DiagnosticsServer serves liveness, readiness, job status and Prometheus
// metrics for one process.
type DiagnosticsServer struct {
	server   *http.Server
	listener net.Listener
}

// DiagnosticsHandler routes /healthz, /readyz, /status and /metrics.
// A nil status is always ready.
func DiagnosticsHandler(registry *prometheus.Registry, status *JobStatus) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, _ *http.Request) {
		if err := status.Ready(); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "reason": err.Error()})

			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})

	mux.HandleFunc("GET /status", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, status.Snapshot())
	})

	mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))

	return mux
}

// NewDiagnosticsServer listens on addr and serves DiagnosticsHandler in the
// background until Close.
func NewDiagnosticsServer(addr string, registry *prometheus.Registry, status *JobStatus) (*DiagnosticsServer, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("diagnostics listen %s: %w", addr, err)
	}

	d := &DiagnosticsServer{
		server:   &http.Server{Handler: DiagnosticsHandler(registry, status), ReadHeaderTimeout: readHeaderTimeout},
		listener: ln,
	}

	go func() {
		if serveErr := d.server.Serve(ln); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			_ = ln.Close()
		}
	}()

	return d, nil
}

// Addr is the bound address, useful when addr had port 0.
func (d *DiagnosticsServer) Addr() string {
	return d.listener.Addr().String()
}

// Close stops the server immediately.
func (d *DiagnosticsServer) Close() error {
	return d.server.Close()
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	_ = json.NewEncoder(w).Encode(body)
}
