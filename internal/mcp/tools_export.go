package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"librarydesk/internal/etl"
	"librarydesk/internal/service"
)

func (s *Server) registerExportTools() {
	s.mcp.AddTool(mcp.NewTool("export_file",
		mcp.WithDescription("Export books, authors or categories to a CSV or JSON file"),
		mcp.WithString("path", mcp.Description("Destination path ending in .csv or .json"), mcp.Required()),
		mcp.WithString("entity", mcp.Description("books (default), authors or categories")),
	), s.handleExportFile)

	s.mcp.AddTool(mcp.NewTool("import_template",
		mcp.WithDescription("Write a one-row import template file"),
		mcp.WithString("path", mcp.Description("Destination path ending in .csv or .json"), mcp.Required()),
	), s.handleImportTemplate)

	s.mcp.AddTool(mcp.NewTool("list_export_targets",
		mcp.WithDescription("List the configured export databases"),
	), s.handleListExportTargets)

	s.mcp.AddTool(mcp.NewTool("test_export_target",
		mcp.WithDescription("Check that an export database is reachable"),
		mcp.WithString("target", mcp.Description("Target name"), mcp.Required()),
	), s.handleTestExportTarget)

	s.mcp.AddTool(mcp.NewTool("export_to_target",
		mcp.WithDescription("Replace the books, authors and categories tables of an export database with the current catalog. 🛑 Requires user approval."),
		mcp.WithString("target", mcp.Description("Target name"), mcp.Required()),
	), s.handleExportToTarget)

	s.mcp.AddTool(mcp.NewTool("query_export_target",
		mcp.WithDescription("Run a read query against an export database. SQL targets take a SELECT; MongoDB targets take a JSON find document."),
		mcp.WithString("target", mcp.Description("Target name"), mcp.Required()),
		mcp.WithString("query", mcp.Description("SELECT statement or find document"), mcp.Required()),
		mcp.WithNumber("limit", mcp.Description("Maximum rows (default 100)")),
	), s.handleQueryExportTarget)

	s.mcp.AddTool(mcp.NewTool("introspect_export_target",
		mcp.WithDescription("List the tables and columns of an export database"),
		mcp.WithString("target", mcp.Description("Target name"), mcp.Required()),
	), s.handleIntrospectExportTarget)

	s.mcp.AddTool(mcp.NewTool("export_history",
		mcp.WithDescription("Recent export runs"),
		mcp.WithNumber("limit", mcp.Description("Runs to return (default 20)")),
	), s.handleExportHistory)
}

func (s *Server) handleExportFile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := requireString(req, "path")
	if err != nil {
		return nil, err
	}
	entity := etl.Entity(req.GetString("entity", string(etl.EntityBooks)))
	n, err := s.exports.ExportFile(ctx, path, entity)
	if err != nil {
		return nil, err
	}
	return textResult(fmt.Sprintf("Exported %d %s to %s", n, entity, path)), nil
}

func (s *Server) handleImportTemplate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := requireString(req, "path")
	if err != nil {
		return nil, err
	}
	if err := s.exports.TemplateFile(path); err != nil {
		return nil, err
	}
	return textResult("Template written to " + path), nil
}

func (s *Server) handleListExportTargets(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.exports.ListTargets())
}

func (s *Server) handleTestExportTarget(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := requireString(req, "target")
	if err != nil {
		return nil, err
	}
	if err := s.exports.TestTarget(ctx, name); err != nil {
		return textResult(fmt.Sprintf("Target %s unreachable: %v", name, err)), nil
	}
	return textResult(fmt.Sprintf("Target %s OK", name)), nil
}

func (s *Server) handleExportToTarget(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := requireString(req, "target")
	if err != nil {
		return nil, err
	}
	if rejected := s.confirm("export_to_target", fmt.Sprintf("Replace catalog tables in %s", name)); rejected != nil {
		return rejected, nil
	}
	run, err := s.exports.ExportToTarget(ctx, name, service.TriggerManual)
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	return jsonResult(run)
}

func (s *Server) handleQueryExportTarget(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := requireString(req, "target")
	if err != nil {
		return nil, err
	}
	query, err := requireString(req, "query")
	if err != nil {
		return nil, err
	}
	page, err := s.exports.QueryTarget(ctx, name, query, req.GetInt("limit", 100))
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	return jsonResult(page)
}

func (s *Server) handleIntrospectExportTarget(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := requireString(req, "target")
	if err != nil {
		return nil, err
	}
	schema, err := s.exports.IntrospectTarget(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("introspect: %w", err)
	}
	return jsonResult(schema)
}

func (s *Server) handleExportHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	runs, err := s.exports.History(req.GetInt("limit", 20))
	if err != nil {
		return nil, fmt.Errorf("export history: %w", err)
	}
	return jsonResult(runs)
}
