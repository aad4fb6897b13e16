package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/flowgraph/internal/cli"
	"github.com/aretw0/flowgraph/pkg/registry"
)

var validateCmd = &cobra.Command{
	Use:   "validate <graph.yaml>",
	Short: "Check a graph definition for consistency",
	Long: `Checks the start node, the tool of every node and the edge targets, then
crawls the default edges from the start node and reports unreachable nodes.
Nodes reachable only through runtime overrides are reported as warnings.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		tools := registry.NewRegistry()
		if err := cli.RegisterTools(tools, cfg, logger); err != nil {
			return err
		}

		def, warnings, err := cli.ValidateFile(args[0], tools)
		if err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}

		out := cmd.OutOrStdout()
		for _, w := range warnings {
			fmt.Fprintf(out, "warning: %s\n", w)
		}
		fmt.Fprintf(out, "Graph %q is valid! ✅\n", def.Name)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
