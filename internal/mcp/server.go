package mcpserver

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"librarydesk/internal/catalog"
	"librarydesk/internal/service"
)

// Server is the MCP server for librarydesk. It exposes the catalog
// operations, imports and exports as tools so agents can manage the
// library the same way the console does.
type Server struct {
	mcp      *server.MCPServer
	emitter  EventEmitter
	approval *ApprovalQueue
	logger   *zap.Logger

	library *catalog.Library
	imports *service.ImportService
	exports *service.ExportService
}

// Deps holds all dependencies passed from the app layer to the MCP server.
type Deps struct {
	Name      string
	Version   string
	Emitter   EventEmitter
	Logger    *zap.Logger
	Library   *catalog.Library
	Imports   *service.ImportService
	Exports   *service.ExportService
	Approvals ApprovalStore // when set, approvals go through sqlite (standalone mode)
}

// New creates and configures a new MCP server with all tools and resources.
func New(ctx context.Context, deps Deps) *Server {
	if deps.Emitter == nil {
		deps.Emitter = service.NopEmitter()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Name == "" {
		deps.Name = "librarydesk"
	}
	if deps.Version == "" {
		deps.Version = "1.0.0"
	}

	approval := NewApprovalQueue(ctx, deps.Emitter)
	if deps.Approvals != nil {
		approval.SetStore(deps.Approvals)
	}
	s := &Server{
		emitter:  deps.Emitter,
		approval: approval,
		logger:   deps.Logger.Named("mcp"),
		library:  deps.Library,
		imports:  deps.Imports,
		exports:  deps.Exports,
	}

	s.mcp = server.NewMCPServer(
		deps.Name,
		deps.Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, false),
		server.WithPromptCapabilities(true),
	)

	s.registerBookTools()
	s.registerAuthorTools()
	s.registerCategoryTools()
	s.registerStatsTools()
	if s.imports != nil {
		s.registerImportTools()
	}
	if s.exports != nil {
		s.registerExportTools()
	}
	s.registerResources()
	s.registerPrompts()

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	s.logger.Info("starting stdio server")
	return server.ServeStdio(s.mcp)
}

// Approve forwards a user approval to the approval queue.
func (s *Server) Approve(actionID string) {
	s.approval.Approve(actionID)
}

// Reject forwards a user rejection to the approval queue.
func (s *Server) Reject(actionID string) {
	s.approval.Reject(actionID)
}

// confirm asks the console user before a destructive tool runs. A nil
// result means go ahead.
func (s *Server) confirm(tool, description string) *mcp.CallToolResult {
	approved, err := s.approval.Request(tool, description)
	if err != nil || !approved {
		s.logger.Info("tool call rejected", zap.String("tool", tool), zap.Error(err))
		return textResult(description + ": rejected by user")
	}
	return nil
}
