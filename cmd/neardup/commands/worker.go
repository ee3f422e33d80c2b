package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/neardup/pkg/comm"
	"github.com/Sumatoshi-tech/neardup/pkg/config"
	"github.com/Sumatoshi-tech/neardup/pkg/engine"
	"github.com/Sumatoshi-tech/neardup/pkg/observability"
)

// ErrWorkerRank is returned for a worker rank outside [1, workers).
var ErrWorkerRank = errors.New("worker --rank must be in [1, workers)")

const flagRank = "rank"

// NewWorkerCommand creates the worker command.
func NewWorkerCommand() *cobra.Command {
	var rank int

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Join a distributed run as a non-zero rank",
		Long: `Connect to the rank 0 "neardup run --distributed" process at --coordinator and
execute the job it announces. The corpus directory and report paths announced
by rank 0 must be reachable from this host.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorker(cmd, args, rank)
		},
	}

	config.RegisterClusterFlags(cmd.Flags())
	cmd.Flags().Int(config.FlagWorkers, config.DefaultWorkers, "number of ranks in the cluster")
	cmd.Flags().IntVar(&rank, flagRank, 0, "rank of this worker")

	return cmd
}

func runWorker(cmd *cobra.Command, args []string, rank int) error {
	e, err := setup(cmd, args, observability.ModeWorker, rank)
	if err != nil {
		return err
	}
	defer e.close()

	if rank < 1 || rank >= e.cfg.Cluster.Workers {
		return fmt.Errorf("%w: rank %d, workers %d", ErrWorkerRank, rank, e.cfg.Cluster.Workers)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	c, err := comm.Dial(ctx, e.tcpConfig(rank))
	if err != nil {
		return err
	}
	defer c.Close()

	opts := e.options()
	opts.Config = nil

	res, err := engine.Run(ctx, c, opts)
	if err != nil {
		return err
	}

	e.providers.Logger.InfoContext(ctx, "worker done",
		"run_id", res.Params.RunID, "matches", res.Rank.Matches, "elapsed", res.Duration)

	return nil
}
