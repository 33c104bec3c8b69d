package main

import (
	"fmt"
	"os"

	"github.com/aretw0/weft/pkg/config"
	"github.com/spf13/cobra"
)

var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "weft",
		Short:         "weft runs and inspects a chain dispatch node",
		Long:          `weft routes protocol messages to per-conversation state machines (chains) and keeps memory bounded by evicting idle ones.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Persistent flags (available to all commands)
	root.PersistentFlags().StringP("config", "c", "", "Path to weft.yaml")
	root.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error); overrides the config")

	root.AddCommand(newServeCmd(), newBenchCmd(), newDescribeCmd(), newVersionCmd())
	return root
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadConfig reads --config (or the defaults) and applies --log-level.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.LogLevel = level
	}
	return cfg, cfg.Validate()
}
