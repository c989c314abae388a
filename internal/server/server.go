// Package server exposes the rule tools over the Model Context Protocol.
package server

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/vanachterjacob/BC-MCP/internal/models"
	"github.com/vanachterjacob/BC-MCP/internal/tools"
)

// Name and Version identify the server to every client.
const (
	Name    = "Business Central MCP Server"
	Version = "1.0.0"
)

// PayloadResolver yields the current rule payload.
type PayloadResolver interface {
	Resolve(ctx context.Context) models.RulePayload
}

// RuleTools holds references needed by the MCP tool handlers.
type RuleTools struct {
	Resolver PayloadResolver
}

// New creates an MCP server with every tool registered.
func New(resolver PayloadResolver) *mcp.Server {
	rt := &RuleTools{Resolver: resolver}

	srv := mcp.NewServer(&mcp.Implementation{
		Name:    Name,
		Version: Version,
	}, nil)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "get_cursor_rules",
		Description: "Get the resolved editor rules payload (live store, snapshot or built-in default)",
	}, rt.GetCursorRules)

	builtin := tools.Builtin()
	mcp.AddTool(srv, toolFor(builtin, "bc_help"), rt.Help)
	mcp.AddTool(srv, toolFor(builtin, "get_rules_by_type"), rt.RulesByType)
	mcp.AddTool(srv, toolFor(builtin, "validate_rule"), rt.ValidateRule)
	mcp.AddTool(srv, toolFor(builtin, "merge_rules"), rt.MergeRules)

	return srv
}

func (t *RuleTools) GetCursorRules(ctx context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, any, error) {
	return toolJSON(t.Resolver.Resolve(ctx))
}

func (t *RuleTools) Help(_ context.Context, _ *mcp.CallToolRequest, input tools.HelpInput) (*mcp.CallToolResult, any, error) {
	res, err := tools.Help(input)
	if err != nil {
		return toolError("Failed to get help: %v", err), nil, nil
	}
	return toolText(res.Help), nil, nil
}

func (t *RuleTools) RulesByType(_ context.Context, _ *mcp.CallToolRequest, input tools.RulesByTypeInput) (*mcp.CallToolResult, any, error) {
	res, err := tools.RulesByType(input)
	if err != nil {
		return toolError("Failed to get rules: %v", err), nil, nil
	}
	return toolJSON(res)
}

func (t *RuleTools) ValidateRule(_ context.Context, _ *mcp.CallToolRequest, input tools.ValidateInput) (*mcp.CallToolResult, any, error) {
	res, err := tools.ValidateRule(input)
	if err != nil {
		return toolError("Failed to validate rule: %v", err), nil, nil
	}
	return toolJSON(res)
}

func (t *RuleTools) MergeRules(_ context.Context, _ *mcp.CallToolRequest, input tools.MergeInput) (*mcp.CallToolResult, any, error) {
	res, err := tools.Merge(input)
	if err != nil {
		return toolError("Failed to merge rules: %v", err), nil, nil
	}
	return toolJSON(res)
}

// --- Helpers ---

// toolFor advertises a built-in tool with the same description and
// parameter schema the delivery streams use.
func toolFor(reg *tools.Registry, name string) *mcp.Tool {
	def, ok := reg.Lookup(name)
	if !ok {
		panic(fmt.Sprintf("server: no built-in tool %q", name))
	}
	return &mcp.Tool{
		Name:        def.Name,
		Description: def.Description,
		InputSchema: def.Parameters,
	}
}

func toolText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func toolError(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf(format, args...)}},
		IsError: true,
	}
}

func toolJSON(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return toolError("Failed to marshal result: %v", err), nil, nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil, nil
}
