// Package httpapi serves the rule payload, the delivery streams, the
// rule and user management API and the MCP endpoint over HTTP.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/vanachterjacob/BC-MCP/internal/auth"
	"github.com/vanachterjacob/BC-MCP/internal/metrics"
	"github.com/vanachterjacob/BC-MCP/internal/storage"
	"github.com/vanachterjacob/BC-MCP/internal/stream"
)

// StreamSettings tunes the delivery sessions opened by the stream routes.
type StreamSettings struct {
	KeepAlive     time.Duration
	WriteTimeout  time.Duration
	ToolCallRate  float64
	ToolCallBurst int
}

// HealthChecker reports whether a backing service is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Options holds the dependencies of a Server. Rules, Users and Auth may be
// nil, in which case the management API answers 503. A nil Database is
// left out of the health check.
type Options struct {
	Env      string
	Server   stream.ServerInfo
	Resolver stream.PayloadResolver
	Tools    stream.ToolDispatcher
	Hub      *stream.Hub
	Stream   StreamSettings
	MCP      *mcp.Server
	Database HealthChecker
	Rules    *storage.RuleStore
	Users    *storage.UserStore
	Auth     *auth.Authenticator
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
}

// Server routes every HTTP endpoint of the service.
type Server struct {
	opts     Options
	log      *slog.Logger
	mux      *http.ServeMux
	upgrader websocket.Upgrader
}

// New builds a Server with every route registered.
func New(opts Options) *Server {
	if opts.Hub == nil {
		opts.Hub = stream.NewHub()
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		opts: opts,
		log:  log,
		mux:  http.NewServeMux(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	s.registerRoutes()
	return s
}

// Handler returns the routed handler wrapped in the access log middleware.
func (s *Server) Handler() http.Handler {
	return s.loggingMiddleware(s.mux)
}

// Hub returns the registry of open stream sessions.
func (s *Server) Hub() *stream.Hub {
	return s.opts.Hub
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /{$}", s.handleRoot)
	s.mux.HandleFunc("GET /cursorrules", s.handleCursorRules)
	s.mux.HandleFunc("GET /cursorrules-sse", s.handleSSE)
	s.mux.HandleFunc("POST /cursorrules-sse/{session}", s.handleSSEFrame)
	s.mux.HandleFunc("GET /cursorrules-ws", s.handleWebSocket)
	s.mux.HandleFunc("GET /context/{type}", s.handleContext)
	s.mux.HandleFunc("GET /api/docs", s.handleDocs)

	s.mux.HandleFunc("POST /api/users/login", s.handleLogin)
	s.mux.Handle("POST /api/users/logout", s.requireUser(s.handleLogout))

	s.mux.Handle("GET /api/rules", s.requireUser(s.handleListRules))
	s.mux.Handle("GET /api/rules/defaults", s.requireUser(s.handleDefaultRules))
	s.mux.Handle("GET /api/rules/{id}", s.requireUser(s.handleGetRule))
	s.mux.Handle("POST /api/rules", s.requireAdmin(s.handleCreateRule))
	s.mux.Handle("PUT /api/rules/{id}", s.requireAdmin(s.handleUpdateRule))
	s.mux.Handle("DELETE /api/rules/{id}", s.requireAdmin(s.handleDeleteRule))

	s.mux.Handle("GET /api/users", s.requireUser(s.handleListUsers))
	s.mux.Handle("GET /api/users/{id}", s.requireUser(s.handleGetUser))
	s.mux.Handle("POST /api/users", s.requireAdmin(s.handleCreateUser))
	s.mux.Handle("PUT /api/users/{id}", s.requireOwnerOrAdmin(s.handleUpdateUser))
	s.mux.Handle("DELETE /api/users/{id}", s.requireAdmin(s.handleDeleteUser))

	if s.opts.Metrics != nil {
		s.mux.Handle("GET /metrics", s.opts.Metrics.Handler())
	}
	if s.opts.MCP != nil {
		srv := s.opts.MCP
		s.mux.Handle("/mcp", mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
			return srv
		}, nil))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status, code := "ok", http.StatusOK
	if s.opts.Database != nil {
		if err := s.opts.Database.Ping(r.Context()); err != nil {
			s.log.Warn("health check: database unreachable", "error", err)
			status, code = "unavailable", http.StatusServiceUnavailable
		}
	}
	writeJSON(w, code, map[string]string{
		"status":      status,
		"environment": s.opts.Env,
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/cursorrules", http.StatusFound)
}

func (s *Server) handleCursorRules(w http.ResponseWriter, r *http.Request) {
	payload := s.opts.Resolver.Resolve(r.Context())
	writeJSONOr500(w, payload, "Failed to retrieve rules")
}

func (s *Server) handleContext(w http.ResponseWriter, r *http.Request) {
	bc := s.opts.Resolver.Resolve(r.Context()).Context
	switch r.PathValue("type") {
	case "architecture":
		patterns := bc.PreferredPatterns
		if patterns == nil {
			patterns = []string{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"preferredPatterns": patterns})
	case "codestandards":
		writeJSON(w, http.StatusOK, map[string]any{"coding_standards": bc.CodingStandards})
	default:
		writeMessage(w, http.StatusNotFound, "Context type not found")
	}
}

type docsGroup map[string]string

func (s *Server) handleDocs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"description": "API documentation for BC-MCP",
		"endpoints": map[string]docsGroup{
			"delivery": {
				"rules":     "GET /cursorrules - Resolved rule payload",
				"sse":       "GET /cursorrules-sse - Server-sent event session",
				"sseFrame":  "POST /cursorrules-sse/:session - Send a frame to an SSE session",
				"websocket": "GET /cursorrules-ws - WebSocket session",
				"context":   "GET /context/:type - architecture or codestandards",
				"mcp":       "/mcp - Model Context Protocol endpoint",
				"health":    "GET /health - Liveness probe",
				"metrics":   "GET /metrics - Prometheus metrics",
				"docs":      "GET /api/docs - This document",
			},
			"authentication": {
				"login":    "POST /api/users/login - Login with username and password",
				"logout":   "POST /api/users/logout - Revoke the presented token",
				"register": "POST /api/users - Register a new user",
			},
			"rules": {
				"get":      "GET /api/rules - Get all rules",
				"defaults": "GET /api/rules/defaults - Get the built-in rule sets",
				"getById":  "GET /api/rules/:id - Get rule by ID",
				"post":     "POST /api/rules - Create a new rule",
				"put":      "PUT /api/rules/:id - Update a rule",
				"delete":   "DELETE /api/rules/:id - Delete a rule",
			},
			"users": {
				"get":     "GET /api/users - Get all users",
				"getById": "GET /api/users/:id - Get user by ID",
				"post":    "POST /api/users - Create a new user",
				"put":     "PUT /api/users/:id - Update a user",
				"delete":  "DELETE /api/users/:id - Delete a user",
			},
		},
	})
}
