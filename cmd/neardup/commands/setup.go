package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/neardup/pkg/comm"
	"github.com/Sumatoshi-tech/neardup/pkg/config"
	"github.com/Sumatoshi-tech/neardup/pkg/engine"
	"github.com/Sumatoshi-tech/neardup/pkg/observability"
	"github.com/Sumatoshi-tech/neardup/pkg/version"
)

// env is the runtime every job command starts with.
type env struct {
	cfg       *config.Config
	providers observability.Providers
	metrics   *observability.JobMetrics
	diag      *observability.DiagnosticsServer
	status    *observability.JobStatus
}

// loadConfig reads the configuration of cmd. A positional corpus directory
// overrides the configured one.
func loadConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	path, err := cmd.Flags().GetString(flagConfig)
	if err != nil {
		return nil, err
	}

	cfg, err := config.LoadConfig(path, cmd.Flags())
	if err != nil {
		return nil, err
	}

	if len(args) > 0 {
		cfg.Corpus.Directory = args[0]
	}

	return cfg, nil
}

func setup(cmd *cobra.Command, args []string, mode observability.AppMode, rank int) (*env, error) {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return nil, err
	}

	level, err := config.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}

	obsCfg := observability.DefaultConfig().WithEnv()
	obsCfg.ServiceVersion = version.Version
	obsCfg.Mode = mode
	obsCfg.Rank = rank
	obsCfg.LogLevel = level
	obsCfg.LogJSON = cfg.Logging.JSON
	obsCfg.LogOutput = cmd.ErrOrStderr()

	providers, err := observability.Init(obsCfg)
	if err != nil {
		return nil, err
	}

	e := &env{cfg: cfg, providers: providers}

	e.metrics, err = observability.NewJobMetrics(providers.Meter)
	if err != nil {
		e.close()

		return nil, err
	}

	if cfg.Metrics.Addr != "" {
		e.status = observability.NewJobStatus()

		e.diag, err = observability.NewDiagnosticsServer(cfg.Metrics.Addr, providers.Registry, e.status)
		if err != nil {
			e.close()

			return nil, err
		}

		providers.Logger.Info("diagnostics listening", "addr", e.diag.Addr())
	}

	return e, nil
}

func (e *env) options() engine.Options {
	return engine.Options{
		Config:  e.cfg,
		Logger:  e.providers.Logger,
		Tracer:  e.providers.Tracer,
		Metrics: e.metrics,
		Status:  e.status,
	}
}

func (e *env) tcpConfig(rank int) comm.TCPConfig {
	return comm.TCPConfig{
		Rank:        rank,
		Size:        e.cfg.EffectiveWorkers(),
		Addr:        e.cfg.Cluster.Coordinator,
		Codec:       e.cfg.Codec(),
		DialTimeout: e.cfg.Cluster.DialTimeout,
		Logger:      e.providers.Logger,
	}
}

func (e *env) close() {
	if e.diag != nil {
		err := e.diag.Close()
		if err != nil {
			e.providers.Logger.Warn("diagnostics shutdown failed", "error", err)
		}
	}

	err := e.providers.Shutdown(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "observability shutdown failed: %v\n", err)
	}
}
