package resolver

import (
	"context"
	"log/slog"

	"github.com/vanachterjacob/BC-MCP/internal/metrics"
	"github.com/vanachterjacob/BC-MCP/internal/models"
)

// SnapshotWriter replaces the stored snapshot.
type SnapshotWriter interface {
	Write(payload models.RulePayload) error
}

// Regenerator recomputes the payload and persists it as the new snapshot.
type Regenerator struct {
	Resolver *Resolver
	Snapshot SnapshotWriter
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
}

// Regenerate resolves the current payload and writes it to the snapshot.
// Failures are logged and reported as false.
func (g *Regenerator) Regenerate(ctx context.Context) bool {
	log := g.Logger
	if log == nil {
		log = slog.Default()
	}

	payload, tier := g.Resolver.ResolveTier(ctx)
	if err := g.Snapshot.Write(payload); err != nil {
		log.Error("snapshot regeneration failed", "tier", tier, "error", err)
		g.Metrics.Regenerated(false)
		return false
	}
	log.Info("snapshot regenerated", "tier", tier, "rules", len(payload.Rules))
	g.Metrics.Regenerated(true)
	return true
}
