package mcp

import (
	"log/slog"

	"github.com/mark3labs/mcp-go/server"

	trove "github.com/unowned-ai/trove/pkg"
	"github.com/unowned-ai/trove/pkg/keeper"
)

type TroveMCPServer struct {
	mcpServer *server.MCPServer
	keeper    *keeper.Keeper
	logger    *slog.Logger
}

// NewTroveMCPServer builds an MCP server over k with every item tool
// registered. The caller keeps ownership of k.
func NewTroveMCPServer(k *keeper.Keeper, logger *slog.Logger) *TroveMCPServer {
	if logger == nil {
		logger = slog.Default()
	}

	s := server.NewMCPServer(
		"Trove MCP Server",
		trove.Version,
		server.WithToolCapabilities(false),
		server.WithLogging(),
		server.WithRecovery(),
	)

	RegisterPingTool(s)
	RegisterAddItemTool(s, k)
	RegisterGetItemTool(s, k)
	RegisterListItemsTool(s, k)
	RegisterUpdateItemTool(s, k)
	RegisterDeleteItemTool(s, k)
	RegisterListCategoriesTool(s, k)
	RegisterImportPhotoTool(s, k)
	RegisterSweepPhotosTool(s, k)

	return &TroveMCPServer{
		mcpServer: s,
		keeper:    k,
		logger:    logger,
	}
}

// Start runs the stdio event loop until stdin closes. Logs must not go to
// stdout while it runs.
func (s *TroveMCPServer) Start() error {
	s.logger.Info("mcp server listening on stdio", "db", s.keeper.Items().Path())
	return server.ServeStdio(s.mcpServer)
}

// MCPRawServer exposes the raw mcp-go server (useful for additional configuration).
func (s *TroveMCPServer) MCPRawServer() *server.MCPServer {
	return s.mcpServer
}
