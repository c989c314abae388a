package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/vanachterjacob/BC-MCP/internal/auth"
	"github.com/vanachterjacob/BC-MCP/internal/config"
	"github.com/vanachterjacob/BC-MCP/internal/metrics"
	"github.com/vanachterjacob/BC-MCP/internal/models"
	"github.com/vanachterjacob/BC-MCP/internal/resolver"
	"github.com/vanachterjacob/BC-MCP/internal/rules"
	"github.com/vanachterjacob/BC-MCP/internal/snapshot"
	"github.com/vanachterjacob/BC-MCP/internal/storage"
)

// app holds the components shared by every subcommand.
type app struct {
	cfg      *config.Config
	log      *slog.Logger
	metrics  *metrics.Metrics
	db       *storage.DB
	snapshot *snapshot.File
	resolver *resolver.Resolver
}

func newLogger(cfg config.LogConfig, w io.Writer) (*slog.Logger, error) {
	level, err := config.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

// newApp opens storage and builds the resolver chain. Logs go to logOut so
// the stdio transport keeps stdout for protocol traffic. It creates no
// accounts; commands that serve the user API call bootstrapAdmin.
func newApp(ctx context.Context, cfgPath string, logOut io.Writer) (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log, err := newLogger(cfg.Log, logOut)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(log)

	db, err := storage.Open(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	a := &app{
		cfg:      cfg,
		log:      log,
		metrics:  metrics.New(),
		db:       db,
		snapshot: snapshot.New(cfg.Storage.SnapshotPath),
	}
	a.resolver = &resolver.Resolver{
		Snapshot: a.snapshot,
		Logger:   log,
		Metrics:  a.metrics,
	}

	if db.InMemory() {
		// the ephemeral database only backs the management API
		if err := db.Rules().Seed(ctx, sampleParams()); err != nil {
			db.Close()
			return nil, fmt.Errorf("seed rules: %w", err)
		}
		log.Info("using in-memory rule database, live store tier disabled")
	} else {
		a.resolver.Store = db.Rules()
		log.Info("using rule database", "path", cfg.Storage.DatabasePath)
	}
	return a, nil
}

func sampleParams() []storage.CreateRuleParams {
	samples := rules.Samples()
	params := make([]storage.CreateRuleParams, 0, len(samples))
	for _, rs := range samples {
		params = append(params, storage.CreateRuleParams{
			Name:        rs.Name,
			Description: rs.Description,
			Type:        rs.Type,
			Content:     rs.Content,
		})
	}
	return params
}

// bootstrapAdmin creates the configured admin account when it is missing.
func (a *app) bootstrapAdmin(ctx context.Context) error {
	username := a.cfg.Auth.AdminUsername
	if username == "" {
		return nil
	}
	users := a.db.Users()
	_, err := users.GetByUsername(ctx, username)
	if err == nil {
		return nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("look up admin: %w", err)
	}

	hash, err := auth.HashPassword(a.cfg.Auth.AdminPassword)
	if err != nil {
		return err
	}
	u, err := users.Create(ctx, storage.CreateUserParams{
		Username:     username,
		Email:        a.cfg.Auth.AdminEmail,
		PasswordHash: hash,
		Role:         models.RoleAdmin,
	})
	if err != nil {
		return fmt.Errorf("create admin: %w", err)
	}
	a.log.Info("admin account created", "user", u.Username)
	return nil
}

func (a *app) newAuthenticator() *auth.Authenticator {
	return &auth.Authenticator{
		Users:  a.db.Users(),
		Tokens: auth.NewTokenStore(a.cfg.Auth.TokenTTL, time.Minute),
	}
}

func (a *app) Close() error {
	return a.db.Close()
}
