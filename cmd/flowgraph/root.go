package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/flowgraph/internal/config"
	"github.com/aretw0/flowgraph/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "flowgraph",
	Short: "flowgraph runs tool graphs to completion",
	Long: `flowgraph executes directed graphs of registered tools over a shared state.
Graphs are declared in YAML or JSON and can be run from the command line,
served over HTTP or exposed to agents through the Model Context Protocol.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().StringP("config", "c", "flowgraph.yaml", "Configuration file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "Log format (text, json, pretty)")
	rootCmd.PersistentFlags().String("tools", "", "Command tools file (YAML or JSON)")
}

// loadConfig reads the configuration file, applies the persistent flags and
// builds the logger. The file is optional unless --config was given.
func loadConfig(cmd *cobra.Command) (config.Config, *slog.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path, cmd.Flags().Changed("config"))
	if err != nil {
		return cfg, nil, err
	}

	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level, _ = cmd.Flags().GetString("log-level")
	}
	if cmd.Flags().Changed("log-format") {
		cfg.Log.Format, _ = cmd.Flags().GetString("log-format")
	}
	if cmd.Flags().Changed("tools") {
		cfg.ToolsFile, _ = cmd.Flags().GetString("tools")
	}
	if err := cfg.Validate(); err != nil {
		return cfg, nil, err
	}

	level, _ := cfg.LogLevel()
	logger := logging.NewWithFormat(cfg.Log.Format, level)
	slog.SetDefault(logger)
	return cfg, logger, nil
}
