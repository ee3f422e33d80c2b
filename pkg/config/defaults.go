// Package config loads and validates neardup configuration.
package config

import "time"

// Corpus defaults.
const (
	DefaultCorpusDocs   = 0
	DefaultCorpusOffset = 0
)

// MinHash defaults.
const (
	DefaultShingleSize   = 3
	DefaultSignatureSize = 100
	DefaultBandRows      = 4
	DefaultSeed          = 13
)

// Compare defaults.
const (
	DefaultThreshold = 0.1
)

// Output defaults.
const (
	DefaultReport    = "results.csv"
	DefaultSummary   = ""
	DefaultKeepParts = false
)

// Cluster defaults.
const (
	DefaultWorkers     = 0
	DefaultStrategy    = "broadcast"
	DefaultCompression = "lz4"
	DefaultCoordinator = "127.0.0.1:7946"
	DefaultDialTimeout = 30 * time.Second
)

// Logging defaults.
const (
	DefaultLogLevel = "info"
	DefaultLogJSON  = false
	DefaultVerbose  = 25
)

// Metrics defaults.
const (
	DefaultMetricsAddr = ""
)
