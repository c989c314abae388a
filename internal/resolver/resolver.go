// Package resolver produces the rule payload delivered to editor clients
// by trying the live store, then the snapshot file, then a built-in default.
package resolver

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"

	"github.com/vanachterjacob/BC-MCP/internal/metrics"
	"github.com/vanachterjacob/BC-MCP/internal/models"
	"github.com/vanachterjacob/BC-MCP/internal/snapshot"
)

// PayloadVersion is stamped on every resolved payload built here.
const PayloadVersion = "1.0"

// Tier identifies the source that answered a resolution.
type Tier string

const (
	TierStore    Tier = "store"
	TierSnapshot Tier = "snapshot"
	TierDefault  Tier = "default"
)

// RuleSource is the live store query the resolver depends on.
type RuleSource interface {
	ListByCategory(ctx context.Context, category models.Category) ([]models.RuleRecord, error)
}

// SnapshotReader loads the fallback snapshot.
type SnapshotReader interface {
	Read() (models.RulePayload, error)
}

// Resolver runs the tiered lookup. A nil Store or Snapshot skips that tier.
type Resolver struct {
	Store    RuleSource
	Snapshot SnapshotReader
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
}

// Resolve returns the payload from the first tier that has one. It never fails.
func (r *Resolver) Resolve(ctx context.Context) models.RulePayload {
	p, _ := r.ResolveTier(ctx)
	return p
}

// ResolveTier is Resolve that also reports which tier answered.
func (r *Resolver) ResolveTier(ctx context.Context) (models.RulePayload, Tier) {
	log := r.logger()

	if r.Store != nil {
		records, err := r.Store.ListByCategory(ctx, models.CategoryCursor)
		switch {
		case err != nil:
			log.Warn("rule store query failed, falling back to snapshot", "error", err)
		case len(records) == 0:
			log.Info("rule store has no cursor rules, falling back to snapshot")
		default:
			r.Metrics.ObserveResolve(string(TierStore))
			return FromRecords(records), TierStore
		}
	}

	if r.Snapshot != nil {
		p, err := r.Snapshot.Read()
		switch {
		case err == nil:
			r.Metrics.ObserveResolve(string(TierSnapshot))
			return p, TierSnapshot
		case errors.Is(err, fs.ErrNotExist):
			log.Debug("no snapshot file, using default rules")
		case errors.Is(err, snapshot.ErrInvalid):
			log.Warn("snapshot file is corrupt, using default rules", "error", err)
		default:
			log.Warn("snapshot read failed, using default rules", "error", err)
		}
	}

	r.Metrics.ObserveResolve(string(TierDefault))
	return Default(), TierDefault
}

func (r *Resolver) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

// FromRecords builds a payload from editor behavior records. Each rule
// line is the record description, or its name when the description is empty.
func FromRecords(records []models.RuleRecord) models.RulePayload {
	lines := make([]string, 0, len(records))
	for _, rec := range records {
		line := rec.Description
		if line == "" {
			line = rec.Name
		}
		lines = append(lines, line)
	}
	return models.RulePayload{
		Version: PayloadVersion,
		Rules:   lines,
		Context: storeContext(),
	}
}

func storeContext() models.Context {
	return models.Context{
		BusinessDomain:    "Business Central",
		PreferredPatterns: []string{"Repository pattern", "SOLID principles"},
		CodingStandards: &models.CodingStandards{
			Naming:      "PascalCase for types, camelCase for variables",
			Indentation: "4 spaces",
			Bracing:     "Allman style (braces on new lines)",
		},
	}
}

// Default is the payload served when neither the store nor the snapshot
// can answer.
func Default() models.RulePayload {
	return models.RulePayload{
		Version: PayloadVersion,
		Rules: []string{
			"Follow business naming conventions for all code",
			"Include proper error handling in all functions",
			"Add JSDoc comments for all public APIs",
		},
		Context: models.Context{BusinessDomain: "Business Central"},
	}
}
