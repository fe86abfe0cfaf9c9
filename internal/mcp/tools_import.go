package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"librarydesk/internal/etl"
	"librarydesk/internal/service"
)

func (s *Server) registerImportTools() {
	s.mcp.AddTool(mcp.NewTool("list_import_sources",
		mcp.WithDescription("List the import source types and their configuration fields"),
	), s.handleListImportSources)

	s.mcp.AddTool(mcp.NewTool("import_file",
		mcp.WithDescription("Bulk import books from a CSV or JSON file. Rows failing validation are reported and skipped."),
		mcp.WithString("path", mcp.Description("Absolute path to a .csv or .json file"), mcp.Required()),
	), s.handleImportFile)

	s.mcp.AddTool(mcp.NewTool("run_import",
		mcp.WithDescription("Bulk import books from any source (csv, json, http, database) through optional transforms"),
		mcp.WithString("sourceType", mcp.Description("Source type from list_import_sources"), mcp.Required()),
		mcp.WithString("sourceConfig", mcp.Description(`Source config as JSON, e.g. {"url":"https://..."}`), mcp.Required()),
		mcp.WithString("transforms", mcp.Description(`Transforms as a JSON array, e.g. [{"type":"rename","config":{"mapping":{"name":"title"}}}]`)),
		mcp.WithString("dedupeKey", mcp.Description("Drop rows repeating this field")),
	), s.handleRunImport)

	s.mcp.AddTool(mcp.NewTool("preview_import",
		mcp.WithDescription("Show the first rows an import would send, without importing"),
		mcp.WithString("sourceType", mcp.Description("Source type"), mcp.Required()),
		mcp.WithString("sourceConfig", mcp.Description("Source config as JSON"), mcp.Required()),
		mcp.WithString("transforms", mcp.Description("Transforms as a JSON array")),
		mcp.WithNumber("rows", mcp.Description("Rows to preview (default 10)")),
	), s.handlePreviewImport)

	s.mcp.AddTool(mcp.NewTool("import_history",
		mcp.WithDescription("Recent import runs"),
		mcp.WithNumber("limit", mcp.Description("Runs to return (default 20)")),
	), s.handleImportHistory)
}

func (s *Server) handleListImportSources(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.imports.ListSources())
}

func (s *Server) handleImportFile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := requireString(req, "path")
	if err != nil {
		return nil, err
	}
	report, err := s.imports.ImportFile(ctx, path, service.TriggerManual)
	if err != nil {
		return nil, err
	}
	return jsonResult(report)
}

func (s *Server) jobFromRequest(req mcp.CallToolRequest) (*etl.ImportJob, error) {
	sourceType, err := requireString(req, "sourceType")
	if err != nil {
		return nil, err
	}
	job := &etl.ImportJob{
		Name:       "mcp:" + sourceType,
		SourceType: sourceType,
		SourceCfg:  etl.SourceConfig{},
		DedupeKey:  req.GetString("dedupeKey", ""),
	}
	if err := parseJSONArg(req, "sourceConfig", &job.SourceCfg); err != nil {
		return nil, err
	}
	if err := parseJSONArg(req, "transforms", &job.Transforms); err != nil {
		return nil, err
	}
	return job, nil
}

func (s *Server) handleRunImport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	job, err := s.jobFromRequest(req)
	if err != nil {
		return nil, err
	}
	report, err := s.imports.RunJob(ctx, job, service.TriggerManual)
	if err != nil {
		return nil, fmt.Errorf("import: %w", err)
	}
	return jsonResult(report)
}

func (s *Server) handlePreviewImport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	job, err := s.jobFromRequest(req)
	if err != nil {
		return nil, err
	}
	rows, err := s.imports.Preview(ctx, job, req.GetInt("rows", 10))
	if err != nil {
		return nil, fmt.Errorf("preview: %w", err)
	}
	return jsonResult(rows)
}

func (s *Server) handleImportHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	runs, err := s.imports.History(req.GetInt("limit", 20))
	if err != nil {
		return nil, fmt.Errorf("import history: %w", err)
	}
	return jsonResult(runs)
}
