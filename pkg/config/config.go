package config

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"time"

	"github.com/Sumatoshi-tech/neardup/internal/wire"
	"github.com/Sumatoshi-tech/neardup/pkg/alg/lsh"
	"github.com/Sumatoshi-tech/neardup/pkg/exchange"
)

// Config is the top-level configuration.
// Field tags use mapstructure for viper unmarshalling.
type Config struct {
	Corpus  CorpusConfig  `mapstructure:"corpus"`
	MinHash MinHashConfig `mapstructure:"minhash"`
	Compare CompareConfig `mapstructure:"compare"`
	Output  OutputConfig  `mapstructure:"output"`
	Cluster ClusterConfig `mapstructure:"cluster"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// CorpusConfig locates the documents.
type CorpusConfig struct {
	Directory string `mapstructure:"directory"`
	// Docs is the number of documents; zero discovers them.
	Docs   int `mapstructure:"docs"`
	Offset int `mapstructure:"offset"`
}

// MinHashConfig holds the sketch parameters.
type MinHashConfig struct {
	ShingleSize   int    `mapstructure:"shingle_size"`
	SignatureSize int    `mapstructure:"signature_size"`
	BandRows      int    `mapstructure:"band_rows"`
	Seed          uint32 `mapstructure:"seed"`
}

// CompareConfig holds the reporting threshold.
type CompareConfig struct {
	Threshold float64 `mapstructure:"threshold"`
}

// OutputConfig holds report locations.
type OutputConfig struct {
	Report    string `mapstructure:"report"`
	Summary   string `mapstructure:"summary"`
	KeepParts bool   `mapstructure:"keep_parts"`
}

// ClusterConfig holds the worker topology.
type ClusterConfig struct {
	// Workers is the number of ranks; zero uses one per CPU.
	Workers     int           `mapstructure:"workers"`
	Strategy    string        `mapstructure:"strategy"`
	Compression string        `mapstructure:"compression"`
	Coordinator string        `mapstructure:"coordinator"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
	// Verbose is the progress interval in documents; zero disables progress logs.
	Verbose int `mapstructure:"verbose"`
}

// MetricsConfig controls the diagnostics endpoint.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// Sentinel errors for configuration validation.
var (
	// ErrMissingDirectory indicates no corpus directory was given.
	ErrMissingDirectory = errors.New("corpus.directory is required")
	// ErrInvalidDocs indicates a negative document count.
	ErrInvalidDocs = errors.New("corpus.docs must be non-negative")
	// ErrInvalidOffset indicates a negative document offset.
	ErrInvalidOffset = errors.New("corpus.offset must be non-negative")
	// ErrInvalidShingleSize indicates the shingle size is not positive.
	ErrInvalidShingleSize = errors.New("minhash.shingle_size must be positive")
	// ErrInvalidSignatureSize indicates the signature size is not positive.
	ErrInvalidSignatureSize = errors.New("minhash.signature_size must be positive")
	// ErrInvalidBandRows indicates the band rows do not divide the signature size.
	ErrInvalidBandRows = errors.New("minhash.band_rows must be a positive divisor of minhash.signature_size")
	// ErrInvalidThreshold indicates the threshold is out of range.
	ErrInvalidThreshold = errors.New("compare.threshold must be between 0 and 1")
	// ErrInvalidWorkers indicates a negative worker count.
	ErrInvalidWorkers = errors.New("cluster.workers must be non-negative")
	// ErrInvalidStrategy indicates an unknown exchange strategy.
	ErrInvalidStrategy = errors.New("cluster.strategy must be broadcast or gather")
	// ErrInvalidCompression indicates an unknown wire codec.
	ErrInvalidCompression = errors.New("cluster.compression must be none, lz4 or zstd")
	// ErrInvalidDialTimeout indicates a non-positive dial timeout.
	ErrInvalidDialTimeout = errors.New("cluster.dial_timeout must be positive")
	// ErrInvalidReport indicates an empty report path.
	ErrInvalidReport = errors.New("output.report is required")
	// ErrInvalidLogLevel indicates an unknown log level.
	ErrInvalidLogLevel = errors.New("logging.level must be debug, info, warn or error")
	// ErrInvalidVerbose indicates a negative progress interval.
	ErrInvalidVerbose = errors.New("logging.verbose must be non-negative")
)

// Validate checks every setting except the corpus directory, which only the
// coordinating rank needs. See RequireDirectory.
func (c *Config) Validate() error {
	checks := []error{
		c.validateCorpus(),
		c.validateMinHash(),
		c.validateCluster(),
		c.validateOutput(),
		c.validateLogging(),
	}

	return errors.Join(checks...)
}

// RequireDirectory reports ErrMissingDirectory when no corpus directory is set.
func (c *Config) RequireDirectory() error {
	if strings.TrimSpace(c.Corpus.Directory) == "" {
		return ErrMissingDirectory
	}

	return nil
}

func (c *Config) validateCorpus() error {
	if c.Corpus.Docs < 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidDocs, c.Corpus.Docs)
	}

	if c.Corpus.Offset < 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidOffset, c.Corpus.Offset)
	}

	return nil
}

func (c *Config) validateMinHash() error {
	if c.MinHash.ShingleSize <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidShingleSize, c.MinHash.ShingleSize)
	}

	if c.MinHash.SignatureSize <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidSignatureSize, c.MinHash.SignatureSize)
	}

	err := lsh.ValidateRows(c.MinHash.SignatureSize, c.MinHash.BandRows)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidBandRows, err)
	}

	if c.Compare.Threshold < 0 || c.Compare.Threshold > 1 {
		return fmt.Errorf("%w: got %v", ErrInvalidThreshold, c.Compare.Threshold)
	}

	return nil
}

func (c *Config) validateCluster() error {
	if c.Cluster.Workers < 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidWorkers, c.Cluster.Workers)
	}

	_, err := exchange.ParseStrategy(c.Cluster.Strategy)
	if err != nil {
		return fmt.Errorf("%w: got %q", ErrInvalidStrategy, c.Cluster.Strategy)
	}

	_, err = wire.ParseCodec(c.Cluster.Compression)
	if err != nil {
		return fmt.Errorf("%w: got %q", ErrInvalidCompression, c.Cluster.Compression)
	}

	if c.Cluster.DialTimeout <= 0 {
		return fmt.Errorf("%w: got %s", ErrInvalidDialTimeout, c.Cluster.DialTimeout)
	}

	return nil
}

func (c *Config) validateOutput() error {
	if strings.TrimSpace(c.Output.Report) == "" {
		return ErrInvalidReport
	}

	return nil
}

func (c *Config) validateLogging() error {
	_, err := ParseLevel(c.Logging.Level)
	if err != nil {
		return err
	}

	if c.Logging.Verbose < 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidVerbose, c.Logging.Verbose)
	}

	return nil
}

// EffectiveWorkers resolves a zero worker count to the number of CPUs.
func (c *Config) EffectiveWorkers() int {
	if c.Cluster.Workers > 0 {
		return c.Cluster.Workers
	}

	return runtime.NumCPU()
}

// Strategy returns the parsed exchange strategy.
func (c *Config) Strategy() exchange.Strategy {
	s, _ := exchange.ParseStrategy(c.Cluster.Strategy)

	return s
}

// Codec returns the parsed wire codec.
func (c *Config) Codec() wire.Codec {
	codec, _ := wire.ParseCodec(c.Cluster.Compression)

	return codec
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("%w: got %q", ErrInvalidLogLevel, name)
	}
}
