package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/vanachterjacob/BC-MCP/internal/server"
)

var stdioCmd = &cobra.Command{
	Use:   "stdio",
	Short: "Serve the MCP tools over stdin/stdout",
	Long: `Starts an MCP server over stdin/stdout so an editor can launch bc-mcp
as a local tool server. Logs go to stderr.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, configPath, os.Stderr)
		if err != nil {
			return err
		}
		defer a.Close()

		a.log.Info("bc-mcp MCP server starting (stdio)")
		return server.New(a.resolver).Run(ctx, &mcp.StdioTransport{})
	},
}
