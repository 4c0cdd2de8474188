package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/retailops/boardflow"
)

var rootCmd = &cobra.Command{
	Use:   "boardflow",
	Short: "Multi-stage boardroom analysis flows over retail metrics",
	Long: "Boardflow runs staged analysis flows (KPI review, trade-off,\n" +
		"scenario, root-cause) through a confidence gate, constraint checks\n" +
		"and a weighted final evaluation, streaming lifecycle events live.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

var (
	flagFlows    string
	flagFixtures string
	flagTimeout  string
	flagLogLevel string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&flagFlows, "flows", "", "YAML file with additional flow definitions")
	rootCmd.PersistentFlags().StringVar(&flagFixtures, "fixtures", "", "YAML metric snapshot backing the role stages")
	rootCmd.PersistentFlags().StringVar(&flagTimeout, "timeout", "30s", "per-stage execution timeout")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(flowsCmd)
	rootCmd.Version = boardflow.Version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
