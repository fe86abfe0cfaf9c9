package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerStatsTools() {
	s.mcp.AddTool(mcp.NewTool("library_stats",
		mcp.WithDescription("Totals, recent books, total value and average price"),
	), s.handleLibraryStats)

	s.mcp.AddTool(mcp.NewTool("refresh_library",
		mcp.WithDescription("Reload books, authors and categories from the backend"),
	), s.handleRefreshLibrary)

	s.mcp.AddTool(mcp.NewTool("backend_health",
		mcp.WithDescription("Check that the library backend is reachable"),
	), s.handleBackendHealth)
}

func (s *Server) handleLibraryStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.library.Stats())
}

func (s *Server) handleRefreshLibrary(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.library.Refresh(ctx); err != nil {
		return nil, fmt.Errorf("refresh: %w", err)
	}
	stats := s.library.Stats()
	return textResult(fmt.Sprintf("Loaded %d books, %d authors, %d categories",
		stats.TotalBooks, stats.TotalAuthors, stats.TotalCategories)), nil
}

func (s *Server) handleBackendHealth(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.library.Ping(ctx); err != nil {
		return textResult("Backend unreachable: " + err.Error()), nil
	}
	return textResult("Backend OK"), nil
}
