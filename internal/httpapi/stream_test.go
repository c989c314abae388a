package httpapi

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vanachterjacob/BC-MCP/internal/resolver"
	"github.com/vanachterjacob/BC-MCP/internal/stream"
)

// stalledTransport accepts frames but fails every keep-alive.
type stalledTransport struct{}

func (stalledTransport) Send([]byte) error { return nil }
func (stalledTransport) SendComment(string) error { return errors.New("write deadline exceeded") }
func (stalledTransport) Close() error { return nil }

type countingCloser struct{ closed atomic.Int32 }

func (c *countingCloser) Close() error {
	c.closed.Add(1)
	return nil
}

func TestCloseOnDoneAfterKeepAliveFailure(t *testing.T) {
	sess := stream.NewSession("stalled", stalledTransport{}, stream.Options{
		Resolver:  &resolver.Resolver{},
		KeepAlive: 5 * time.Millisecond,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	t.Cleanup(func() { sess.Close() })
	require.NoError(t, sess.Open(context.Background()))

	conn := &countingCloser{}
	closeOnDone(sess.Done(), conn)

	assert.Eventually(t, func() bool { return conn.closed.Load() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, stream.StateOpen, sess.State(), "the handler, not the keep-alive, closes the session")
}

func TestWebSocketOversizedFrameDropsSession(t *testing.T) {
	e := newTestEnv(t)

	url := "ws" + strings.TrimPrefix(e.ts.URL, "http") + "/cursorrules-ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var frame map[string]any
	for range 3 {
		require.NoError(t, conn.ReadJSON(&frame))
	}
	assert.Equal(t, 1, e.srv.Hub().Len())

	// the write may fail once the server gives up on the frame
	_ = conn.WriteMessage(websocket.TextMessage, bytes.Repeat([]byte("x"), maxBodyBytes+1))

	assert.Eventually(t, func() bool { return e.srv.Hub().Len() == 0 }, 5*time.Second, 10*time.Millisecond)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}
