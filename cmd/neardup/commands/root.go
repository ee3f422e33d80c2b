// Package commands implements CLI command handlers for neardup.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/neardup/pkg/config"
	"github.com/Sumatoshi-tech/neardup/pkg/version"
)

const flagConfig = "config"

// NewRootCommand builds the neardup command tree.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "neardup",
		Short: "Distributed near-duplicate document detection",
		Long: `neardup finds near-duplicate text documents with MinHash signatures and
LSH banding, split across in-process or networked ranks.

Commands:
  run       Detect near-duplicates (rank 0 in distributed mode)
  worker    Join a distributed run as a non-zero rank
  merge     Merge per-rank partial reports
  plan      Show how documents and comparisons split across ranks`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().String(flagConfig, "", "config file (default .neardup.yaml in . or $HOME)")
	config.RegisterGlobalFlags(root.PersistentFlags())

	root.AddCommand(NewRunCommand())
	root.AddCommand(NewWorkerCommand())
	root.AddCommand(NewMergeCommand())
	root.AddCommand(NewPlanCommand())
	root.AddCommand(versionCmd())

	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}
