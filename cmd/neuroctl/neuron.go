package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/neurogo/federation"
	"github.com/YuminosukeSato/neurogo/pkg/log"
)

var neuronConfigPath string

var neuronCmd = &cobra.Command{
	Use:   "neuron",
	Short: "Run the federation neuron daemon",
	Long: `Neuron registers this process with the federation core, then keeps
heartbeating system metrics, polling for commands and reporting analytics
until interrupted. Configuration comes from a YAML file with environment
overrides; without a file the defaults apply.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := federation.LoadConfig(neuronConfigPath)
		if err != nil {
			return err
		}

		level := cfg.LogLevel
		if level == "" {
			level = logLevel
		}
		if cfg.LogFile != "" {
			err = log.SetupFileLogger(level, log.FileConfig{
				Path:       cfg.LogFile,
				MaxSizeMB:  10,
				MaxBackups: 3,
				MaxAgeDays: 28,
			})
		} else {
			err = log.SetupLogger(level)
		}
		if err != nil {
			return err
		}

		n, err := federation.NewNeuron(*cfg,
			federation.WithLogger(log.GetLoggerWithName("federation.neuron")))
		if err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			<-sigCh
			cancel()
		}()

		return n.Run(ctx)
	},
}

func init() {
	neuronCmd.Flags().StringVar(&neuronConfigPath, "config", "", "YAML config file (defaults apply when omitted)")
}
