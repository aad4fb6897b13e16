package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aretw0/flowgraph/internal/cli"
	"github.com/aretw0/flowgraph/internal/presentation/tui"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Starts the workflow service over HTTP. The built-in code review graph and
the graphs listed in the configuration are loaded at startup; more can be
created through POST /graph/create.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		if cmd.Flags().Changed("addr") {
			cfg.Server.Addr, _ = cmd.Flags().GetString("addr")
		}
		if cmd.Flags().Changed("store") {
			cfg.Store.Driver, _ = cmd.Flags().GetString("store")
		}
		if cmd.Flags().Changed("redis-addr") {
			cfg.Store.Redis.Addr, _ = cmd.Flags().GetString("redis-addr")
		}
		graphs, _ := cmd.Flags().GetStringArray("graph")
		cfg.Graphs = append(cfg.Graphs, graphs...)
		if err := cfg.Validate(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		app, err := cli.NewApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer app.Close()

		if quiet, _ := cmd.Flags().GetBool("quiet"); !quiet && tui.IsTerminal(os.Stderr) {
			tui.PrintBanner(os.Stderr)
		}
		return app.Serve(ctx, cfg.Server.Addr)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", ":8080", "Address to listen on")
	serveCmd.Flags().String("store", "memory", "Run store driver (memory, redis)")
	serveCmd.Flags().String("redis-addr", "localhost:6379", "Redis address for the redis store")
	serveCmd.Flags().StringArray("graph", nil, "Graph definition file to preload (repeatable)")
	serveCmd.Flags().BoolP("quiet", "q", false, "Do not print the banner")
}
