// Package mcp exposes the assistant flows as Model Context Protocol tools.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"fleet-assist/backend/internal/auth"
	"fleet-assist/backend/internal/flow"
	"fleet-assist/backend/internal/logging"
	"fleet-assist/backend/internal/services"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// FlowRunner lists and runs flows for a tenant.
type FlowRunner interface {
	Flows() []services.FlowInfo
	RunFlow(ctx context.Context, env flow.Env, name string, input map[string]any) (map[string]any, error)
}

type Server struct {
	mcpServer *server.MCPServer
	flows     FlowRunner
	logger    *logging.Logger
}

// NewServer registers one tool per flow. Tool input schemas are the flows'
// JSON schemas.
func NewServer(flows FlowRunner, version string, logger *logging.Logger) (*Server, error) {
	s := &Server{
		mcpServer: server.NewMCPServer(
			"Fleet Assist",
			version,
			server.WithToolCapabilities(false),
			server.WithRecovery(),
		),
		flows:  flows,
		logger: logger,
	}
	if err := s.registerTools(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Server) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *Server) registerTools() error {
	for _, info := range s.flows.Flows() {
		raw, err := json.Marshal(info.InputSchema)
		if err != nil {
			return fmt.Errorf("failed to encode input schema for %s: %w", info.Name, err)
		}
		s.mcpServer.AddTool(
			mcp.NewToolWithRawSchema(info.Name, info.Description, raw),
			s.runFlow(info.Name),
		)
	}
	return nil
}

func (s *Server) runFlow(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		tenantID, ok := auth.TenantFromContext(ctx)
		if !ok {
			return mcp.NewToolResultError("Tenant ID not found in context"), nil
		}

		args := request.GetArguments()
		if args == nil {
			args = map[string]any{}
		}

		out, err := s.flows.RunFlow(ctx, flow.Env{TenantID: tenantID}, name, args)
		if err != nil {
			s.logger.Debug("mcp tool call failed", "tool", name, "tenant", tenantID, "error", err)
			return mcp.NewToolResultError(toolMessage(err)), nil
		}

		jsonBytes, err := json.Marshal(out)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s output: %w", name, err)
		}
		return mcp.NewToolResultText(string(jsonBytes)), nil
	}
}

// toolMessage renders a flow failure for the calling agent. Validation
// failures list every violated path so the agent can correct its call.
func toolMessage(err error) string {
	var ferr *flow.Error
	if !errors.As(err, &ferr) {
		return fmt.Sprintf("Failed to run flow: %v", err)
	}
	msg := fmt.Sprintf("%s: %s", ferr.Kind, ferr.Kind.Message())
	for _, v := range ferr.Violations {
		msg += "\n- " + v.String()
	}
	return msg
}

// MountHTTPHandlers serves the streamable HTTP transport at /mcp and the
// legacy SSE transport at /mcp/sse and /mcp/message. The tenant resolved
// by the auth middleware is carried into each tool call.
func MountHTTPHandlers(mux *http.ServeMux, mcpServer *server.MCPServer) {
	carryTenant := func(ctx context.Context, r *http.Request) context.Context {
		if id, ok := auth.TenantFromContext(r.Context()); ok {
			return auth.WithTenant(ctx, id)
		}
		return ctx
	}

	sseServer := server.NewSSEServer(mcpServer,
		server.WithStaticBasePath("/mcp"),
		server.WithSSEContextFunc(carryTenant),
	)
	httpServer := server.NewStreamableHTTPServer(mcpServer,
		server.WithEndpointPath("/mcp"),
		server.WithHTTPContextFunc(carryTenant),
	)

	mux.Handle("/mcp", httpServer)
	mux.Handle("/mcp/sse", sseServer.SSEHandler())
	mux.Handle("/mcp/message", sseServer.MessageHandler())
}
