package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"uiforge/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the generate_ui tool over MCP stdio",
	Long: `Runs a Model Context Protocol server on stdin/stdout exposing:
  generate_ui    run the pipeline for a task description
  get_artifact   fetch a published artifact`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		srv := mcp.NewServer(a.pipeline, version,
			mcp.WithArtifacts(a.artifacts),
			mcp.WithOptimizeDefault(cfg.Pipeline.Optimize),
		)
		return srv.Run(ctx)
	},
}
