package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/neardup/pkg/comm"
	"github.com/Sumatoshi-tech/neardup/pkg/config"
	"github.com/Sumatoshi-tech/neardup/pkg/engine"
	"github.com/Sumatoshi-tech/neardup/pkg/observability"
	"github.com/Sumatoshi-tech/neardup/pkg/report"
)

// ErrDistributedWorkers is returned when a distributed run has no peers.
var ErrDistributedWorkers = errors.New("distributed runs need --workers of at least 2")

const flagDistributed = "distributed"

// RunCommand holds the options of the run command.
type RunCommand struct {
	distributed bool
	quiet       bool
}

// NewRunCommand creates the run command.
func NewRunCommand() *cobra.Command {
	rc := &RunCommand{}

	cmd := &cobra.Command{
		Use:   "run [corpus-dir]",
		Short: "Detect near-duplicate documents",
		Long: `Compute MinHash signatures for every <offset+i>.txt document of the corpus,
reduce them to LSH bands, compare candidate pairs and write a CSV report.

By default all ranks run in this process. With --distributed this process
becomes rank 0: it listens on --coordinator and waits for --workers - 1
"neardup worker" processes before starting.`,
		Args: cobra.MaximumNArgs(1),
		RunE: rc.run,
	}

	config.RegisterJobFlags(cmd.Flags())
	config.RegisterClusterFlags(cmd.Flags())
	cmd.Flags().Int(config.FlagWorkers, config.DefaultWorkers, "number of ranks (0 = one per CPU)")
	cmd.Flags().BoolVar(&rc.distributed, flagDistributed, false, "run as rank 0 of a TCP cluster")
	cmd.Flags().BoolVarP(&rc.quiet, "quiet", "q", false, "do not print the run summary")

	return cmd
}

func (rc *RunCommand) run(cmd *cobra.Command, args []string) error {
	mode, rank := observability.ModeLocal, observability.NoRank
	if rc.distributed {
		mode, rank = observability.ModeWorker, engine.Root
	}

	e, err := setup(cmd, args, mode, rank)
	if err != nil {
		return err
	}
	defer e.close()

	err = e.cfg.RequireDirectory()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var res *engine.Result

	if rc.distributed {
		res, err = rc.runCoordinator(ctx, e)
	} else {
		res, err = engine.RunLocal(ctx, e.options(), e.cfg.EffectiveWorkers())
	}

	if err != nil {
		return err
	}

	if !rc.quiet {
		out := cmd.OutOrStdout()
		report.RenderSummary(out, res.Summary)
		color.New(color.FgGreen).Fprintf(out, "%s near-duplicate pairs written to %s in %s\n",
			report.FormatCount(res.Records), res.Params.Report, res.Duration.Round(time.Millisecond))
	}

	return nil
}

func (rc *RunCommand) runCoordinator(ctx context.Context, e *env) (*engine.Result, error) {
	if e.cfg.Cluster.Workers < 2 {
		return nil, ErrDistributedWorkers
	}

	ln, err := comm.Listen(ctx, e.tcpConfig(engine.Root))
	if err != nil {
		return nil, err
	}
	defer ln.Close()

	e.providers.Logger.InfoContext(ctx, "waiting for workers",
		"addr", ln.Addr().String(), "workers", e.cfg.Cluster.Workers-1)

	c, err := ln.Accept(ctx)
	if err != nil {
		return nil, fmt.Errorf("accept workers: %w", err)
	}
	defer c.Close()

	return engine.Run(ctx, c, e.options())
}
