package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aretw0/flowgraph/internal/cli"
	"github.com/aretw0/flowgraph/internal/config"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run <graph.yaml>",
	Short: "Run a graph definition",
	Long: `Loads a graph definition and runs it to completion, once per --state file
(or once with an empty state). Runs use an in-memory store. The command
exits with an error when any run fails.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		cfg.Store.Driver = config.DriverMemory
		cfg.Server.CodeReview = false
		cfg.Server.Metrics = false
		cfg.Graphs = nil

		opts := cli.RunOptions{GraphPath: args[0]}
		opts.StateFiles, _ = cmd.Flags().GetStringArray("state")
		opts.MaxSteps, _ = cmd.Flags().GetInt("max-steps")
		opts.Parallel, _ = cmd.Flags().GetInt("parallel")
		opts.Verbose, _ = cmd.Flags().GetBool("verbose")
		opts.JSON, _ = cmd.Flags().GetBool("json")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		app, err := cli.NewApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer app.Close()

		return cli.RunFile(ctx, app, opts, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringArrayP("state", "s", nil, "Initial state file, JSON or YAML (repeatable)")
	runCmd.Flags().Int("max-steps", 0, "Override the graph max_steps")
	runCmd.Flags().IntP("parallel", "p", 4, "Maximum concurrent runs")
	runCmd.Flags().BoolP("verbose", "v", false, "Print the full run report")
	runCmd.Flags().Bool("json", false, "Print run records as JSON")
}
