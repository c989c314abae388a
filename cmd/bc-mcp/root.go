// bc-mcp serves Business Central editor rules to Cursor clients.
//
// Usage:
//
//	bc-mcp serve       [--config=<file>]
//	bc-mcp regenerate  [--config=<file>]
//	bc-mcp stdio       [--config=<file>]
//	bc-mcp version
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "bc-mcp",
	Short: "Business Central rules server for Cursor",
	Long: "bc-mcp resolves the Business Central editor rules from the rule database,\n" +
		"the snapshot file or the built-in defaults and delivers them over HTTP,\n" +
		"server-sent events, WebSocket and the Model Context Protocol.",
	SilenceUsage: true,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the build version",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (environment variables override it)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(regenerateCmd)
	rootCmd.AddCommand(stdioCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
