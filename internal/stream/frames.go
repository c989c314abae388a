package stream

import (
	"encoding/json"

	"github.com/vanachterjacob/BC-MCP/internal/models"
	"github.com/vanachterjacob/BC-MCP/internal/tools"
)

// Frame discriminators.
const (
	TypeServerInfo      = "server_info"
	TypeToolDefinitions = "tool_definitions"
	TypeCursorRules     = "cursor_rules"
	TypeToolCall        = "tool_call"
	TypeToolCallResult  = "tool_call_result"
	TypeError           = "error"
)

// ServerInfo identifies the server in the handshake frame.
type ServerInfo struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	SessionID string `json:"session_id,omitempty"`
}

type serverInfoFrame struct {
	Type       string     `json:"type"`
	ServerInfo ServerInfo `json:"server_info"`
}

type toolDefinitionsFrame struct {
	Type            string             `json:"type"`
	ToolDefinitions []tools.Definition `json:"tool_definitions"`
}

type cursorRulesFrame struct {
	Type        string             `json:"type"`
	CursorRules models.RulePayload `json:"cursor_rules"`
}

// ToolCall is the body of an inbound tool_call frame.
type ToolCall struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Parameters json.RawMessage `json:"parameters"`
}

type inboundFrame struct {
	Type     string    `json:"type"`
	ToolCall *ToolCall `json:"tool_call"`
}

// ToolError is the error object of a failed tool call.
type ToolError struct {
	Message string `json:"message"`
}

type toolCallResultFrame struct {
	Type   string     `json:"type"`
	ID     string     `json:"id"`
	Result any        `json:"result,omitempty"`
	Error  *ToolError `json:"error,omitempty"`
}

type errorFrame struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}
