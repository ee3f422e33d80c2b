package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// configName is the config file name without extension.
const configName = ".neardup"

// configType is the config file format.
const configType = "yaml"

// envPrefix is the environment variable prefix for neardup settings.
const envPrefix = "NEARDUP"

// envKeySeparator is the nested key separator in environment variable names.
const envKeySeparator = "_"

// Flag names bound to configuration keys.
const (
	FlagDocs          = "docs"
	FlagOffset        = "offset"
	FlagShingleSize   = "shingle-size"
	FlagSignatureSize = "signature-size"
	FlagBandRows      = "band-rows"
	FlagSeed          = "seed"
	FlagThreshold     = "threshold"
	FlagReport        = "report"
	FlagSummary       = "summary"
	FlagKeepParts     = "keep-parts"
	FlagWorkers       = "workers"
	FlagStrategy      = "strategy"
	FlagCompression   = "compression"
	FlagCoordinator   = "coordinator"
	FlagDialTimeout   = "dial-timeout"
	FlagLogLevel      = "log-level"
	FlagLogJSON       = "log-json"
	FlagVerbose       = "verbose"
	FlagMetricsAddr   = "metrics-addr"
)

// flagKeys maps flag names to the configuration keys they override.
var flagKeys = map[string]string{
	FlagDocs:          "corpus.docs",
	FlagOffset:        "corpus.offset",
	FlagShingleSize:   "minhash.shingle_size",
	FlagSignatureSize: "minhash.signature_size",
	FlagBandRows:      "minhash.band_rows",
	FlagSeed:          "minhash.seed",
	FlagThreshold:     "compare.threshold",
	FlagReport:        "output.report",
	FlagSummary:       "output.summary",
	FlagKeepParts:     "output.keep_parts",
	FlagWorkers:       "cluster.workers",
	FlagStrategy:      "cluster.strategy",
	FlagCompression:   "cluster.compression",
	FlagCoordinator:   "cluster.coordinator",
	FlagDialTimeout:   "cluster.dial_timeout",
	FlagLogLevel:      "logging.level",
	FlagLogJSON:       "logging.json",
	FlagVerbose:       "logging.verbose",
	FlagMetricsAddr:   "metrics.addr",
}

// RegisterJobFlags adds the sketch, corpus and output flags to fs.
func RegisterJobFlags(fs *pflag.FlagSet) {
	fs.Int(FlagDocs, DefaultCorpusDocs, "number of documents (0 = count consecutive files)")
	fs.Int(FlagOffset, DefaultCorpusOffset, "id of the first document")
	fs.Int(FlagShingleSize, DefaultShingleSize, "words per shingle")
	fs.Int(FlagSignatureSize, DefaultSignatureSize, "hashes per signature")
	fs.Int(FlagBandRows, DefaultBandRows, "signature rows per band (must divide signature size)")
	fs.Uint32(FlagSeed, DefaultSeed, "hash seed")
	fs.Float64(FlagThreshold, DefaultThreshold, "minimum similarity to report")
	fs.String(FlagReport, DefaultReport, "report path")
	fs.String(FlagSummary, DefaultSummary, "optional YAML run summary path")
	fs.Bool(FlagKeepParts, DefaultKeepParts, "keep per-rank partial reports after merging")
	fs.String(FlagStrategy, DefaultStrategy, "matrix exchange strategy: broadcast or gather")
	fs.Int(FlagVerbose, DefaultVerbose, "log progress every N documents (0 disables)")
}

// RegisterClusterFlags adds the transport flags to fs.
func RegisterClusterFlags(fs *pflag.FlagSet) {
	fs.String(FlagCompression, DefaultCompression, "wire compression: none, lz4 or zstd")
	fs.String(FlagCoordinator, DefaultCoordinator, "address rank 0 listens on")
	fs.Duration(FlagDialTimeout, DefaultDialTimeout, "how long to wait for the coordinator or workers")
}

// RegisterGlobalFlags adds logging and metrics flags to fs.
func RegisterGlobalFlags(fs *pflag.FlagSet) {
	fs.String(FlagLogLevel, DefaultLogLevel, "log level: debug, info, warn or error")
	fs.Bool(FlagLogJSON, DefaultLogJSON, "log as JSON")
	fs.String(FlagMetricsAddr, DefaultMetricsAddr, "serve /metrics and /healthz on this address")
}

// LoadConfig loads configuration from file, env vars, flags and defaults.
// If configPath is non-empty, it is used as the explicit config file path.
// Otherwise, the config file is searched in CWD and $HOME.
// Missing config file is not an error; defaults are used.
// Flags present in flags override every other source when set.
func LoadConfig(configPath string, flags *pflag.FlagSet) (*Config, error) {
	viperCfg := viper.New()

	applyDefaults(viperCfg)

	viperCfg.SetConfigType(configType)
	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", envKeySeparator))
	viperCfg.AutomaticEnv()

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(configName)
		viperCfg.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viperCfg.AddConfigPath(home)
		}
	}

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFound) {
			return nil, fmt.Errorf("read config: %w", readErr)
		}
	}

	bindErr := bindFlags(viperCfg, flags)
	if bindErr != nil {
		return nil, bindErr
	}

	var cfg Config

	unmarshalErr := viperCfg.Unmarshal(&cfg)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("unmarshal config: %w", unmarshalErr)
	}

	validateErr := cfg.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("validate config: %w", validateErr)
	}

	return &cfg, nil
}

func bindFlags(viperCfg *viper.Viper, flags *pflag.FlagSet) error {
	if flags == nil {
		return nil
	}

	for name, key := range flagKeys {
		flag := flags.Lookup(name)
		if flag == nil {
			continue
		}

		err := viperCfg.BindPFlag(key, flag)
		if err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}

	return nil
}

func applyDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("corpus.directory", "")
	viperCfg.SetDefault("corpus.docs", DefaultCorpusDocs)
	viperCfg.SetDefault("corpus.offset", DefaultCorpusOffset)

	viperCfg.SetDefault("minhash.shingle_size", DefaultShingleSize)
	viperCfg.SetDefault("minhash.signature_size", DefaultSignatureSize)
	viperCfg.SetDefault("minhash.band_rows", DefaultBandRows)
	viperCfg.SetDefault("minhash.seed", DefaultSeed)

	viperCfg.SetDefault("compare.threshold", DefaultThreshold)

	viperCfg.SetDefault("output.report", DefaultReport)
	viperCfg.SetDefault("output.summary", DefaultSummary)
	viperCfg.SetDefault("output.keep_parts", DefaultKeepParts)

	viperCfg.SetDefault("cluster.workers", DefaultWorkers)
	viperCfg.SetDefault("cluster.strategy", DefaultStrategy)
	viperCfg.SetDefault("cluster.compression", DefaultCompression)
	viperCfg.SetDefault("cluster.coordinator", DefaultCoordinator)
	viperCfg.SetDefault("cluster.dial_timeout", DefaultDialTimeout)

	viperCfg.SetDefault("logging.level", DefaultLogLevel)
	viperCfg.SetDefault("logging.json", DefaultLogJSON)
	viperCfg.SetDefault("logging.verbose", DefaultVerbose)

	viperCfg.SetDefault("metrics.addr", DefaultMetricsAddr)
}

// Default returns the configuration produced by defaults alone.
func Default() *Config {
	return &Config{
		Corpus: CorpusConfig{Docs: DefaultCorpusDocs, Offset: DefaultCorpusOffset},
		MinHash: MinHashConfig{
			ShingleSize:   DefaultShingleSize,
			SignatureSize: DefaultSignatureSize,
			BandRows:      DefaultBandRows,
			Seed:          DefaultSeed,
		},
		Compare: CompareConfig{Threshold: DefaultThreshold},
		Output:  OutputConfig{Report: DefaultReport, Summary: DefaultSummary, KeepParts: DefaultKeepParts},
		Cluster: ClusterConfig{
			Workers:     DefaultWorkers,
			Strategy:    DefaultStrategy,
			Compression: DefaultCompression,
			Coordinator: DefaultCoordinator,
			DialTimeout: DefaultDialTimeout,
		},
		Logging: LoggingConfig{Level: DefaultLogLevel, JSON: DefaultLogJSON, Verbose: DefaultVerbose},
		Metrics: MetricsConfig{Addr: DefaultMetricsAddr},
	}
}
