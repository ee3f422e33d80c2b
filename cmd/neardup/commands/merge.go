package commands

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/neardup/pkg/config"
	"github.com/Sumatoshi-tech/neardup/pkg/report"
)

// NewMergeCommand creates the merge command.
func NewMergeCommand() *cobra.Command {
	var (
		workers int
		keep    bool
	)

	cmd := &cobra.Command{
		Use:   "merge <report> [part...]",
		Short: "Merge per-rank partial reports",
		Long: `Concatenate partial CSV reports into <report> with a single header.
Without explicit parts, <report>.part-0 .. <report>.part-<workers-1> are used.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMerge(cmd, afero.NewOsFs(), args, workers, keep)
		},
	}

	cmd.Flags().IntVar(&workers, config.FlagWorkers, 1, "number of partial reports")
	cmd.Flags().BoolVar(&keep, config.FlagKeepParts, false, "keep partial reports after merging")

	return cmd
}

func runMerge(cmd *cobra.Command, fs afero.Fs, args []string, workers int, keep bool) error {
	dst := args[0]

	parts := args[1:]
	if len(parts) == 0 {
		parts = report.PartPaths(dst, workers)
	}

	n, err := report.MergeFiles(fs, dst, parts, !keep)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "merged %d parts into %s (%s records)\n", len(parts), dst, report.FormatCount(n))

	return nil
}
