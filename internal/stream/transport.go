package stream

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Transport carries encoded frames to one client.
type Transport interface {
	// Send writes one data frame.
	Send(data []byte) error
	// SendComment writes a liveness signal that clients do not treat as data.
	SendComment(text string) error
	// Close releases the connection.
	Close() error
}

// SetSSEHeaders marks the response as an uncached persistent event stream.
func SetSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}

// SSETransport writes frames as server-sent events.
type SSETransport struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
	closed  bool
}

// NewSSETransport sets the event stream headers on w. Headers are sent
// with the first frame.
func NewSSETransport(w http.ResponseWriter) (*SSETransport, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, errors.New("response writer does not support flushing")
	}
	SetSSEHeaders(w)
	return &SSETransport{w: w, flusher: flusher}, nil
}

func (t *SSETransport) Send(data []byte) error {
	return t.write("data: %s\n\n", data)
}

func (t *SSETransport) SendComment(text string) error {
	return t.write(":%s\n\n", text)
}

func (t *SSETransport) write(format string, arg any) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return net.ErrClosed
	}
	if _, err := fmt.Fprintf(t.w, format, arg); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	t.flusher.Flush()
	return nil
}

// Close stops further writes. The response itself ends when the handler returns.
func (t *SSETransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

// WSTransport writes frames as WebSocket text messages. Keep-alives are
// ping control frames.
type WSTransport struct {
	mu           sync.Mutex
	conn         *websocket.Conn
	writeTimeout time.Duration
	closed       bool
}

// NewWSTransport wraps an upgraded connection.
func NewWSTransport(conn *websocket.Conn, writeTimeout time.Duration) *WSTransport {
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	return &WSTransport{conn: conn, writeTimeout: writeTimeout}
}

func (t *WSTransport) Send(data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return net.ErrClosed
	}
	if err := t.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout)); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	if err := t.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}

func (t *WSTransport) SendComment(text string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return net.ErrClosed
	}
	if err := t.conn.WriteControl(websocket.PingMessage, []byte(text), time.Now().Add(t.writeTimeout)); err != nil {
		return fmt.Errorf("write ping: %w", err)
	}
	return nil
}

// Close sends a normal closure frame and closes the connection.
func (t *WSTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = t.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(t.writeTimeout))
	return t.conn.Close()
}
