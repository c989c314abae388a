package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/vanachterjacob/BC-MCP/internal/stream"
)

const (
	transportSSE       = "sse"
	transportWebSocket = "websocket"
)

func (s *Server) newSession(t stream.Transport, transport string) *stream.Session {
	return stream.NewSession(uuid.NewString(), t, stream.Options{
		Server:        s.opts.Server,
		Resolver:      s.opts.Resolver,
		Tools:         s.opts.Tools,
		KeepAlive:     s.opts.Stream.KeepAlive,
		ToolCallRate:  s.opts.Stream.ToolCallRate,
		ToolCallBurst: s.opts.Stream.ToolCallBurst,
		TransportName: transport,
		Logger:        s.log,
		Metrics:       s.opts.Metrics,
	})
}

// handleSSE holds the response open as an event stream until the client
// disconnects, the transport fails or the server shuts the session down.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	t, err := stream.NewSSETransport(w)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Streaming unsupported"})
		return
	}

	sess := s.newSession(t, transportSSE)
	w.Header().Set("X-Session-Id", sess.ID())
	defer sess.Close()

	s.opts.Hub.Add(sess)
	defer s.opts.Hub.Remove(sess.ID())

	if err := sess.Open(r.Context()); err != nil {
		s.log.Warn("open sse session failed", "session", sess.ID(), "error", err)
		return
	}

	select {
	case <-r.Context().Done():
	case <-sess.Done():
	}
}

// handleSSEFrame delivers one inbound frame to an open SSE session.
func (s *Server) handleSSEFrame(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.opts.Hub.Get(r.PathValue("session"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Session not found"})
		return
	}

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Failed to read frame"})
		return
	}

	// Tool calls may outlive this request; the session bounds them instead.
	if err := sess.HandleFrame(context.WithoutCancel(r.Context()), raw); err != nil {
		if errors.Is(err, stream.ErrSessionClosed) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Session not found"})
			return
		}
		s.log.Debug("handle sse frame failed", "session", sess.ID(), "error", err)
	}
	w.WriteHeader(http.StatusAccepted)
}

// handleWebSocket upgrades the connection and feeds every text message to
// the session until either side closes.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "error", err)
		return
	}

	sess := s.newSession(stream.NewWSTransport(conn, s.opts.Stream.WriteTimeout), transportWebSocket)
	defer sess.Close()

	s.opts.Hub.Add(sess)
	defer s.opts.Hub.Remove(sess.ID())

	ctx := r.Context()
	if err := sess.Open(ctx); err != nil {
		s.log.Warn("open websocket session failed", "session", sess.ID(), "error", err)
		return
	}

	conn.SetReadLimit(maxBodyBytes)
	closeOnDone(sess.Done(), conn)

	for {
		kind, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug("websocket read failed", "session", sess.ID(), "error", err)
			}
			return
		}
		if kind != websocket.TextMessage {
			continue
		}
		if err := sess.HandleFrame(ctx, raw); err != nil {
			if errors.Is(err, stream.ErrSessionClosed) {
				return
			}
			s.log.Debug("handle websocket frame failed", "session", sess.ID(), "error", err)
		}
	}
}

// closeOnDone closes c once done is closed. A session that ends on a failed
// keep-alive leaves its read loop blocked until the connection goes away.
func closeOnDone(done <-chan struct{}, c io.Closer) {
	go func() {
		<-done
		c.Close()
	}()
}
