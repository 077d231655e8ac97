package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "csvinsight",
		Short:         "Profile CSV/XLSX datasets and ask a language model to interpret them",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		newMetricsCmd(),
		newAnalyzeCmd(),
		newHistoryCmd(),
		newMigrateCmd(),
	)
	return rootCmd
}
