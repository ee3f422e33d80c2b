package config_test

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/neardup/pkg/config"
)

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(c *config.Config)
		want   error
	}{
		{"negative docs", func(c *config.Config) { c.Corpus.Docs = -1 }, config.ErrInvalidDocs},
		{"negative offset", func(c *config.Config) { c.Corpus.Offset = -2 }, config.ErrInvalidOffset},
		{"zero shingle", func(c *config.Config) { c.MinHash.ShingleSize = 0 }, config.ErrInvalidShingleSize},
		{"zero signature", func(c *config.Config) { c.MinHash.SignatureSize = 0 }, config.ErrInvalidSignatureSize},
		{"non-divisor bands", func(c *config.Config) { c.MinHash.BandRows = 7 }, config.ErrInvalidBandRows},
		{"zero bands", func(c *config.Config) { c.MinHash.BandRows = 0 }, config.ErrInvalidBandRows},
		{"threshold high", func(c *config.Config) { c.Compare.Threshold = 1.01 }, config.ErrInvalidThreshold},
		{"negative workers", func(c *config.Config) { c.Cluster.Workers = -1 }, config.ErrInvalidWorkers},
		{"strategy", func(c *config.Config) { c.Cluster.Strategy = "scatter" }, config.ErrInvalidStrategy},
		{"compression", func(c *config.Config) { c.Cluster.Compression = "gzip" }, config.ErrInvalidCompression},
		{"dial timeout", func(c *config.Config) { c.Cluster.DialTimeout = 0 }, config.ErrInvalidDialTimeout},
		{"report", func(c *config.Config) { c.Output.Report = " " }, config.ErrInvalidReport},
		{"log level", func(c *config.Config) { c.Logging.Level = "loud" }, config.ErrInvalidLogLevel},
		{"verbose", func(c *config.Config) { c.Logging.Verbose = -5 }, config.ErrInvalidVerbose},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := config.Default()
			tt.mutate(cfg)

			require.ErrorIs(t, cfg.Validate(), tt.want)
		})
	}
}

func TestValidate_Defaults(t *testing.T) {
	t.Parallel()

	require.NoError(t, config.Default().Validate())
}

func TestRequireDirectory(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	require.ErrorIs(t, cfg.RequireDirectory(), config.ErrMissingDirectory)

	cfg.Corpus.Directory = "/docs"
	require.NoError(t, cfg.RequireDirectory())
}

func TestEffectiveWorkers_ZeroUsesCPUs(t *testing.T) {
	t.Parallel()

	assert.Positive(t, config.Default().EffectiveWorkers())
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	lvl, err := config.ParseLevel("WARN")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, lvl)

	lvl, err = config.ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, lvl)

	_, err = config.ParseLevel("trace")
	require.ErrorIs(t, err, config.ErrInvalidLogLevel)
}
