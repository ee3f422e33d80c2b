// Package observability provides OpenTelemetry tracing, metrics and
// structured logging for neardup ranks and tools.
package observability

import (
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// AppMode identifies how the binary was launched.
type AppMode string

const (
	// ModeLocal runs every rank in one process.
	ModeLocal AppMode = "local"
	// ModeWorker runs one rank of a multi-process job.
	ModeWorker AppMode = "worker"
	// ModeTool runs an auxiliary command (merge, plan).
	ModeTool AppMode = "tool"
)

// NoRank marks a process that is not a single rank.
const NoRank = -1

const (
	// defaultServiceName is the default OTel service name.
	defaultServiceName = "neardup"

	// defaultShutdownTimeoutSec is the default shutdown timeout in seconds.
	defaultShutdownTimeoutSec = 5

	readHeaderTimeout = 5 * time.Second
)

// Standard OTel environment variables.
const (
	envOTLPEndpoint = "OTEL_EXPORTER_OTLP_ENDPOINT"
	envOTLPHeaders  = "OTEL_EXPORTER_OTLP_HEADERS"
	envOTLPInsecure = "OTEL_EXPORTER_OTLP_INSECURE"
	envEnvironment  = "NEARDUP_ENVIRONMENT"
)

// Config holds all observability configuration.
type Config struct {
	// ServiceName is the OTel resource service name.
	ServiceName string

	// ServiceVersion is the semantic version of the running binary.
	ServiceVersion string

	// Environment is the deployment environment.
	Environment string

	// Mode identifies how the binary was launched.
	Mode AppMode

	// Rank is the rank of a worker process, or NoRank.
	Rank int

	// OTLPEndpoint is the OTLP gRPC collector address.
	// Empty disables export.
	OTLPEndpoint string

	// OTLPHeaders are additional gRPC metadata headers for the OTLP exporter.
	OTLPHeaders map[string]string

	// OTLPInsecure disables TLS for the OTLP gRPC connection.
	OTLPInsecure bool

	// SampleRatio is the trace sampling ratio. Zero samples everything.
	SampleRatio float64

	// LogLevel controls the minimum slog severity.
	LogLevel slog.Level

	// LogJSON enables JSON-formatted log output.
	LogJSON bool

	// LogOutput receives log records. Nil means stderr.
	LogOutput io.Writer

	// TraceVerbose records a span per document.
	TraceVerbose bool

	// ShutdownTimeoutSec is the maximum seconds to wait for flush on shutdown.
	ShutdownTimeoutSec int
}

// DefaultConfig returns a Config for zero-config startup.
func DefaultConfig() Config {
	return Config{
		ServiceName:        defaultServiceName,
		Mode:               ModeLocal,
		Rank:               NoRank,
		LogLevel:           slog.LevelInfo,
		ShutdownTimeoutSec: defaultShutdownTimeoutSec,
	}
}

// WithEnv fills the exporter settings from the standard OTel variables.
func (c Config) WithEnv() Config {
	if v := os.Getenv(envOTLPEndpoint); v != "" {
		c.OTLPEndpoint = v
	}

	if v := os.Getenv(envOTLPHeaders); v != "" {
		c.OTLPHeaders = ParseOTLPHeaders(v)
	}

	if v, err := strconv.ParseBool(os.Getenv(envOTLPInsecure)); err == nil {
		c.OTLPInsecure = v
	}

	if v := os.Getenv(envEnvironment); v != "" {
		c.Environment = v
	}

	return c
}

// ParseOTLPHeaders parses "key=value,key=value". Malformed pairs are
// skipped; nil is returned when nothing parses.
func ParseOTLPHeaders(raw string) map[string]string {
	var headers map[string]string

	for pair := range strings.SplitSeq(raw, ",") {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}

		if headers == nil {
			headers = make(map[string]string)
		}

		headers[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}

	return headers
}

func (c Config) shutdownTimeout() time.Duration {
	if c.ShutdownTimeoutSec <= 0 {
		return defaultShutdownTimeoutSec * time.Second
	}

	return time.Duration(c.ShutdownTimeoutSec) * time.Second
}
