package main

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/vanachterjacob/BC-MCP/internal/resolver"
)

var errRegenerateFailed = errors.New("snapshot regeneration failed")

var regenerateCmd = &cobra.Command{
	Use:   "regenerate",
	Short: "Rewrite the rules snapshot file from the current rules",
	Long: `Resolves the current rule payload (rule database, existing snapshot or
built-in defaults) and atomically replaces the snapshot file with it.
Exits with status 1 when the file cannot be written.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd.Context(), configPath, os.Stderr)
		if err != nil {
			return err
		}
		defer a.Close()

		g := &resolver.Regenerator{
			Resolver: a.resolver,
			Snapshot: a.snapshot,
			Logger:   a.log,
			Metrics:  a.metrics,
		}
		if !g.Regenerate(cmd.Context()) {
			return errRegenerateFailed
		}
		a.log.Info("snapshot written", "path", a.snapshot.Path())
		return nil
	},
}
