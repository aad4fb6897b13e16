package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aretw0/flowgraph/internal/cli"
	"github.com/aretw0/flowgraph/pkg/adapters/mcp"
)

// mcpCmd represents the mcp command
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Exposes the workflow service as an MCP Server, so agents can list graphs,
run them and read run records as tools.

Supported Transports:
- stdio (default): Uses Standard Input/Output. Ideal for local process integration.
- sse: Uses Server-Sent Events over HTTP. Ideal for remote agents or debuggers.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("transport") {
			cfg.MCP.Transport, _ = cmd.Flags().GetString("transport")
		}
		if cmd.Flags().Changed("port") {
			cfg.MCP.Port, _ = cmd.Flags().GetInt("port")
		}
		graphs, _ := cmd.Flags().GetStringArray("graph")
		cfg.Graphs = append(cfg.Graphs, graphs...)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		app, err := cli.NewApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer app.Close()

		srv := mcp.NewServer(app.Service, logger)

		switch cfg.MCP.Transport {
		case "stdio":
			// Ensure logs don't corrupt JSON-RPC on Stdout
			log.SetOutput(os.Stderr)
			logger.Info("Starting flowgraph MCP Server (Stdio)")
			return srv.ServeStdio()
		case "sse":
			logger.Info("Starting flowgraph MCP Server (SSE)", "port", cfg.MCP.Port)
			if err := srv.ServeSSE(ctx, cfg.MCP.Port); err != nil {
				return err
			}
			logger.Info("MCP Server stopped gracefully")
			return nil
		default:
			return fmt.Errorf("unknown transport: %s. Supported: stdio, sse", cfg.MCP.Transport)
		}
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)

	mcpCmd.Flags().String("transport", "stdio", "Transport protocol to use: 'stdio' or 'sse'")
	mcpCmd.Flags().Int("port", 8081, "Port to listen on (only for SSE)")
	mcpCmd.Flags().StringArray("graph", nil, "Graph definition file to preload (repeatable)")
}
