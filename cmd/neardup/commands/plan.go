package commands

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/neardup/pkg/config"
	"github.com/Sumatoshi-tech/neardup/pkg/corpus"
	"github.com/Sumatoshi-tech/neardup/pkg/partition"
	"github.com/Sumatoshi-tech/neardup/pkg/report"
)

const flagPlot = "plot"

// PlanCommand holds the options of the plan command.
type PlanCommand struct {
	docs    int
	offset  int
	workers int
	plot    string
	fs      afero.Fs
}

// NewPlanCommand creates the plan command.
func NewPlanCommand() *cobra.Command {
	pc := &PlanCommand{fs: afero.NewOsFs()}

	cmd := &cobra.Command{
		Use:   "plan [corpus-dir]",
		Short: "Show how documents and comparisons split across ranks",
		Long: `Print the signature shards and comparison ranges each rank would get.
Give --docs, or a corpus directory to count its documents.`,
		Args: cobra.MaximumNArgs(1),
		RunE: pc.run,
	}

	cmd.Flags().IntVar(&pc.docs, config.FlagDocs, 0, "number of documents")
	cmd.Flags().IntVar(&pc.offset, config.FlagOffset, 0, "id of the first document")
	cmd.Flags().IntVar(&pc.workers, config.FlagWorkers, 1, "number of ranks")
	cmd.Flags().StringVar(&pc.plot, flagPlot, "", "also write an HTML chart of the rank loads to this path")

	return cmd
}

func (pc *PlanCommand) run(cmd *cobra.Command, args []string) error {
	docs := pc.docs

	if docs == 0 && len(args) > 0 {
		cp, err := corpus.New(pc.fs, args[0], pc.offset)
		if err != nil {
			return err
		}

		docs, err = cp.Discover()
		if err != nil {
			return err
		}
	}

	plan, err := partition.NewPlan(docs, pc.workers)
	if err != nil {
		return err
	}

	report.RenderPlan(cmd.OutOrStdout(), plan)

	if pc.plot == "" {
		return nil
	}

	f, err := pc.fs.Create(pc.plot)
	if err != nil {
		return fmt.Errorf("create plot: %w", err)
	}
	defer f.Close()

	err = report.PlotPlan(f, plan)
	if err != nil {
		return err
	}

	return f.Close()
}
