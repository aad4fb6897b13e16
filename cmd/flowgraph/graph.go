package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/flowgraph/internal/presentation/graph"
	graphdef "github.com/aretw0/flowgraph/pkg/graph"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph <graph.yaml>",
	Short: "Export the graph visualization",
	Long:  `Outputs a Mermaid diagram (graph TD) of the graph definition, or the normalized definition as JSON.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		def, err := graphdef.LoadDefinition(args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		format, _ := cmd.Flags().GetString("format")
		switch format {
		case "mermaid":
			fmt.Fprint(out, graph.GenerateMermaid(def, nil))
		case "json":
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(def)
		default:
			return fmt.Errorf("unknown format %q (mermaid, json)", format)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().StringP("format", "f", "mermaid", "Output format: mermaid or json")
}
