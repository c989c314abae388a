package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/vanachterjacob/BC-MCP/internal/httpapi"
	"github.com/vanachterjacob/BC-MCP/internal/server"
	"github.com/vanachterjacob/BC-MCP/internal/stream"
	"github.com/vanachterjacob/BC-MCP/internal/tools"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Starts the HTTP server: /cursorrules, the SSE and WebSocket delivery
streams, the rule and user management API, /metrics and the MCP endpoint
at /mcp. Open streams are closed when the server shuts down.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, configPath, os.Stderr)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.bootstrapAdmin(ctx); err != nil {
		return err
	}
	authn := a.newAuthenticator()
	defer authn.Tokens.Close()

	cfg := a.cfg
	api := httpapi.New(httpapi.Options{
		Env:      cfg.Server.Env,
		Server:   stream.ServerInfo{Name: server.Name, Version: server.Version},
		Resolver: a.resolver,
		Tools:    tools.Builtin(),
		Stream: httpapi.StreamSettings{
			KeepAlive:     cfg.Stream.KeepAlive,
			WriteTimeout:  cfg.Stream.WriteTimeout,
			ToolCallRate:  cfg.Stream.ToolCallRate,
			ToolCallBurst: cfg.Stream.ToolCallBurst,
		},
		MCP:      server.New(a.resolver),
		Database: a.db,
		Rules:    a.db.Rules(),
		Users:    a.db.Users(),
		Auth:     authn,
		Logger:   a.log,
		Metrics:  a.metrics,
	})

	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}
	httpServer.RegisterOnShutdown(api.Hub().CloseAll)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.log.Info("bc-mcp server listening", "addr", httpServer.Addr, "env", cfg.Server.Env)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
