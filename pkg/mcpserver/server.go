// Package mcpserver exposes the tool-server over the Model Context Protocol:
// one tool listing the command surface, one executing multi-step plans.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/wwise-tools/wwise-mcp/pkg/plan"
	"github.com/wwise-tools/wwise-mcp/pkg/verbs"
	"github.com/wwise-tools/wwise-mcp/pkg/version"
)

const serverName = "wwise-mcp"

var listCommandsSchema = json.RawMessage(`{
	"type": "object",
	"properties": {}
}`)

var executePlanSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"plan": {
			"type": "array",
			"description": "Ordered plan steps. Each step is a call string like 'create_objects([\"A\"], [\"Folder\"], parent_paths=[\"\\\\Actor-Mixer Hierarchy\\\\Default Work Unit\"])'. Use $last (or $name.field) to feed a previous step's result into the next.",
			"items": {}
		}
	},
	"required": ["plan"]
}`)

// Server wires the verb registry and plan runner onto an MCP server.
type Server struct {
	registry *verbs.Registry
	runner   *plan.Runner
	mcp      *mcpsdk.Server
	log      *slog.Logger
}

func New(registry *verbs.Registry, runner *plan.Runner) *Server {
	s := &Server{
		registry: registry,
		runner:   runner,
		log:      slog.With("component", "mcp_server"),
	}

	s.mcp = mcpsdk.NewServer(&mcpsdk.Implementation{
		Name:    serverName,
		Version: version.GitCommit,
	}, nil)

	s.mcp.AddTool(&mcpsdk.Tool{
		Name: "list_wwise_commands",
		Description: "Lists every available Wwise command with its signature and usage notes. " +
			"Call this before building a plan for execute_plan.",
		InputSchema: listCommandsSchema,
	}, s.listCommands)

	s.mcp.AddTool(&mcpsdk.Tool{
		Name: "execute_plan",
		Description: "Executes an ordered plan of Wwise commands against the connected Authoring " +
			"session. Plans touching project or sound engine state run inside a single undo group.",
		InputSchema: executePlanSchema,
	}, s.executePlan)

	return s
}

// Run serves MCP over the given transport until ctx is cancelled or the
// transport closes.
func (s *Server) Run(ctx context.Context, transport mcpsdk.Transport) error {
	s.log.Info("mcp server starting", "name", serverName, "version", version.GitCommit)
	return s.mcp.Run(ctx, transport)
}

func (s *Server) listCommands(_ context.Context, _ *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	return textResult(strings.Join(s.registry.List(), "\n\n")), nil
}

func (s *Server) executePlan(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	var input struct {
		Plan []any `json:"plan"`
	}
	if len(req.Params.Arguments) > 0 {
		if err := json.Unmarshal(req.Params.Arguments, &input); err != nil {
			return errorResult(fmt.Sprintf("invalid execute_plan arguments: %v", err)), nil
		}
	}

	result, err := s.runner.Execute(ctx, input.Plan)
	if err != nil {
		s.log.Warn("plan execution failed", "error", err)
		if result == nil {
			return errorResult(err.Error()), nil
		}
		// Surface the partial per-step log so the client can see which
		// steps ran before the failure.
		payload, mErr := json.MarshalIndent(result, "", "  ")
		if mErr != nil {
			return errorResult(err.Error()), nil
		}
		return errorResult(string(payload)), nil
	}

	payload, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode plan result: %w", err)
	}
	return textResult(string(payload)), nil
}

func textResult(text string) *mcpsdk.CallToolResult {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: text}},
	}
}

// errorResult reports a tool-level failure so the client sees the message
// instead of a protocol error.
func errorResult(text string) *mcpsdk.CallToolResult {
	return &mcpsdk.CallToolResult{
		IsError: true,
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: text}},
	}
}
