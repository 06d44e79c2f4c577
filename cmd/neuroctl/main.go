// Package main implements neuroctl, the command line for the neurogo
// toolkit: model training, evaluation, single-row prediction, insight
// aggregation and the federation neuron daemon.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/neurogo/pkg/log"
)

var version = "1.0.0"

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "neuroctl",
	Short: "ML toolkit for federated neurons",
	Long: `neuroctl trains, evaluates and serves classifier models for a
federation of neuron services, aggregates cross-neuron insights, and runs
the neuron daemon that reports back to the federation core.

Data commands (train, evaluate, predict, insights) print exactly one JSON
document to stdout and exit 0 even on failure; callers detect failure by
the presence of an "error" field in the payload, not by the exit code.
Logs go to stderr.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return log.SetupLogger(logLevel)
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.AddCommand(trainCmd, evaluateCmd, predictCmd, insightsCmd, neuronCmd)
}
