// Package stream implements the long-lived delivery session that pushes
// the rule payload to an editor client and answers its tool calls.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/vanachterjacob/BC-MCP/internal/metrics"
	"github.com/vanachterjacob/BC-MCP/internal/models"
	"github.com/vanachterjacob/BC-MCP/internal/tools"
)

// DefaultKeepAlive is the interval between keep-alive frames.
const DefaultKeepAlive = 30 * time.Second

// KeepAliveText is the payload of every keep-alive frame.
const KeepAliveText = "keepalive"

// ErrSessionClosed is returned by writes on a closed session.
var ErrSessionClosed = errors.New("session closed")

// State is a session lifecycle stage.
type State int

const (
	StateConnecting State = iota
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// PayloadResolver yields the rule payload sent when a session opens.
type PayloadResolver interface {
	Resolve(ctx context.Context) models.RulePayload
}

// ToolDispatcher advertises and runs tools.
type ToolDispatcher interface {
	Definitions() []tools.Definition
	Dispatch(ctx context.Context, name string, params json.RawMessage) (any, error)
}

// Options configures a session.
type Options struct {
	Server    ServerInfo
	Resolver  PayloadResolver
	Tools     ToolDispatcher
	KeepAlive time.Duration
	// ToolCallRate limits tool calls per second. Zero means unlimited.
	ToolCallRate  float64
	ToolCallBurst int
	// TransportName labels metrics, e.g. "sse" or "websocket".
	TransportName string
	Logger        *slog.Logger
	Metrics       *metrics.Metrics
}

// Session is one client delivery channel. Writes are serialized by mu,
// and the keep-alive goroutine checks the state under the same lock, so
// nothing is written once Close has returned.
type Session struct {
	id        string
	transport Transport
	opts      Options
	log       *slog.Logger
	limiter   *rate.Limiter

	mu     sync.Mutex
	state  State
	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup

	done     chan struct{}
	doneOnce sync.Once
}

// NewSession creates a session in the connecting state.
func NewSession(id string, t Transport, opts Options) *Session {
	if opts.KeepAlive <= 0 {
		opts.KeepAlive = DefaultKeepAlive
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	limit := rate.Inf
	if opts.ToolCallRate > 0 {
		limit = rate.Limit(opts.ToolCallRate)
	}
	burst := opts.ToolCallBurst
	if burst <= 0 {
		burst = 1
	}
	return &Session{
		id:        id,
		transport: t,
		opts:      opts,
		log:       log.With("session", id, "transport", opts.TransportName),
		limiter:   rate.NewLimiter(limit, burst),
		state:     StateConnecting,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// State returns the current lifecycle stage.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Done is closed once the session is closed or its transport has failed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Open sends the handshake, the tool definitions and the resolved rule
// payload, in that order, then starts the keep-alive ticker.
func (s *Session) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateConnecting {
		return fmt.Errorf("open session in state %s", s.state)
	}

	info := s.opts.Server
	info.SessionID = s.id
	if err := s.sendLocked(serverInfoFrame{Type: TypeServerInfo, ServerInfo: info}); err != nil {
		return fmt.Errorf("send server info: %w", err)
	}

	defs := []tools.Definition{}
	if s.opts.Tools != nil {
		defs = s.opts.Tools.Definitions()
	}
	if err := s.sendLocked(toolDefinitionsFrame{Type: TypeToolDefinitions, ToolDefinitions: defs}); err != nil {
		return fmt.Errorf("send tool definitions: %w", err)
	}

	payload := s.opts.Resolver.Resolve(ctx)
	if err := s.sendLocked(cursorRulesFrame{Type: TypeCursorRules, CursorRules: payload}); err != nil {
		return fmt.Errorf("send rules: %w", err)
	}

	s.state = StateOpen
	s.ticker = time.NewTicker(s.opts.KeepAlive)
	s.wg.Add(1)
	go s.keepAlive(s.ticker.C)

	s.opts.Metrics.StreamOpened(s.opts.TransportName)
	s.log.Info("stream session opened", "rules", len(payload.Rules))
	return nil
}

func (s *Session) keepAlive(tick <-chan time.Time) {
	defer s.wg.Done()
	for {
		select {
		case <-s.stop:
			return
		case <-tick:
			if !s.sendKeepAlive() {
				return
			}
		}
	}
}

func (s *Session) sendKeepAlive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateOpen {
		return false
	}
	if err := s.transport.SendComment(KeepAliveText); err != nil {
		s.log.Info("keep-alive failed, client gone", "error", err)
		s.markDone()
		return false
	}
	s.opts.Metrics.KeepAlive()
	return true
}

// HandleFrame processes one inbound frame. Malformed frames are logged and
// dropped. Only a failed write to the transport is returned as an error.
func (s *Session) HandleFrame(ctx context.Context, raw []byte) error {
	var in inboundFrame
	if err := json.Unmarshal(raw, &in); err != nil {
		s.log.Debug("dropping malformed frame", "error", err, "bytes", len(raw))
		return nil
	}

	switch in.Type {
	case TypeToolCall:
		if in.ToolCall == nil || in.ToolCall.ID == "" {
			s.log.Debug("dropping tool call without id")
			return nil
		}
		return s.send(s.runTool(ctx, in.ToolCall))
	case "":
		s.log.Debug("dropping frame without type")
		return nil
	default:
		return s.send(errorFrame{Type: TypeError, Error: fmt.Sprintf("unsupported frame type %q", in.Type)})
	}
}

func (s *Session) runTool(ctx context.Context, call *ToolCall) toolCallResultFrame {
	frame := toolCallResultFrame{Type: TypeToolCallResult, ID: call.ID}

	if !s.limiter.Allow() {
		s.opts.Metrics.ToolCall(call.Name, "rate_limited")
		frame.Error = &ToolError{Message: "rate limit exceeded"}
		return frame
	}
	if s.opts.Tools == nil {
		s.opts.Metrics.ToolCall("unknown", "unknown")
		frame.Error = &ToolError{Message: fmt.Sprintf("%v: %q", tools.ErrUnknownTool, call.Name)}
		return frame
	}

	result, err := s.opts.Tools.Dispatch(ctx, call.Name, call.Parameters)
	switch {
	case errors.Is(err, tools.ErrUnknownTool):
		// unknown names are not used as labels
		s.opts.Metrics.ToolCall("unknown", "unknown")
		s.log.Info("unknown tool requested", "tool", call.Name, "id", call.ID)
		frame.Error = &ToolError{Message: err.Error()}
	case err != nil:
		s.opts.Metrics.ToolCall(call.Name, "error")
		frame.Error = &ToolError{Message: err.Error()}
	default:
		s.opts.Metrics.ToolCall(call.Name, "ok")
		frame.Result = result
	}
	return frame
}

func (s *Session) send(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sendLocked(v)
}

func (s *Session) sendLocked(v any) error {
	if s.state == StateClosed {
		return ErrSessionClosed
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}
	if err := s.transport.Send(data); err != nil {
		s.markDone()
		return err
	}
	return nil
}

func (s *Session) markDone() {
	s.doneOnce.Do(func() { close(s.done) })
}

// Close stops the keep-alive ticker and then releases the transport.
// It is safe to call more than once and from any goroutine except the
// keep-alive goroutine itself.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return nil
	}
	wasOpen := s.state == StateOpen
	s.state = StateClosed
	if s.ticker != nil {
		s.ticker.Stop()
	}
	close(s.stop)
	s.mu.Unlock()

	s.wg.Wait()
	s.markDone()

	err := s.transport.Close()
	if wasOpen {
		s.opts.Metrics.StreamClosed(s.opts.TransportName)
		s.log.Info("stream session closed")
	}
	return err
}
