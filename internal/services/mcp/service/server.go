// Package service wires the review read tools into an MCP server and
// serves them over stdio.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rodrigolearns/paperstacks/internal/services/mcp/domain"
)

const (
	// serverName identifies this MCP server to clients.
	serverName = "PaperStacks MCP"
	// serverVersion identifies the MCP server version.
	serverVersion = "0.1.0"
)

// Config configures the MCP server.
type Config struct {
	// ReviewURL is the base URL of the review HTTP API.
	ReviewURL string
}

// Server hosts the MCP server.
type Server struct {
	mcpServer *mcp.Server
}

// New creates a configured MCP server whose tools read from the review API
// at reviewURL.
func New(reviewURL string) *Server {
	return newServer(domain.NewAPIClient(reviewURL, nil))
}

// newServer binds the review read tools once so stdio and test transports
// share the same registrations.
func newServer(reader domain.ReviewReader) *Server {
	mcpServer := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: serverVersion}, nil)
	mcp.AddTool(mcpServer, domain.GetWalletTool(), domain.GetWalletHandler(reader))
	mcp.AddTool(mcpServer, domain.GetActivityTool(), domain.GetActivityHandler(reader))
	mcp.AddTool(mcpServer, domain.ListTeamTool(), domain.ListTeamHandler(reader))
	mcp.AddTool(mcpServer, domain.ListTimelineTool(), domain.ListTimelineHandler(reader))
	return &Server{mcpServer: mcpServer}
}

// Serve starts the MCP server on stdio and blocks until it stops or the
// context ends.
func (s *Server) Serve(ctx context.Context) error {
	return s.serveWithTransport(ctx, &mcp.StdioTransport{})
}

// serveWithTransport starts the MCP server using the provided transport.
// Context cancellation is the normal shutdown path, not an error.
func (s *Server) serveWithTransport(ctx context.Context, transport mcp.Transport) error {
	if s == nil || s.mcpServer == nil {
		return fmt.Errorf("MCP server is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	err := s.mcpServer.Run(ctx, transport)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		err = nil
	}
	if err != nil {
		return fmt.Errorf("serve MCP: %w", err)
	}
	return nil
}

// Run is the service entrypoint for MCP and blocks until context
// cancellation.
func Run(ctx context.Context, cfg Config) error {
	if cfg.ReviewURL == "" {
		return fmt.Errorf("review API base URL is required")
	}
	return New(cfg.ReviewURL).Serve(ctx)
}
