package mcpserver

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

const (
	uriStats      = "librarydesk://stats"
	uriBooks      = "librarydesk://books"
	uriAuthors    = "librarydesk://authors"
	uriCategories = "librarydesk://categories"
	uriAuthorPfx  = "librarydesk://authors/"
)

func (s *Server) registerResources() {
	s.mcp.AddResource(mcp.NewResource(uriStats, "Library Statistics",
		mcp.WithMIMEType("application/json"),
	), s.jsonResource(func() any { return s.library.Stats() }))

	s.mcp.AddResource(mcp.NewResource(uriBooks, "All Books",
		mcp.WithMIMEType("application/json"),
	), s.jsonResource(func() any { return s.library.Books() }))

	s.mcp.AddResource(mcp.NewResource(uriAuthors, "All Authors",
		mcp.WithMIMEType("application/json"),
	), s.jsonResource(func() any { return s.library.Authors() }))

	s.mcp.AddResource(mcp.NewResource(uriCategories, "All Categories",
		mcp.WithMIMEType("application/json"),
	), s.jsonResource(func() any { return s.library.Categories() }))

	s.mcp.AddResourceTemplate(
		mcp.NewResourceTemplate(uriAuthorPfx+"{id}/books", "Books by an Author"),
		s.handleAuthorBooksResource,
	)
}

// jsonResource serves the current value of get as a JSON document.
func (s *Server) jsonResource(get func() any) func(context.Context, mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		data, err := json.MarshalIndent(get(), "", "  ")
		if err != nil {
			return nil, err
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(data),
			},
		}, nil
	}
}

func (s *Server) handleAuthorBooksResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	id := authorIDFromURI(req.Params.URI)
	if id == "" {
		return nil, fmt.Errorf("could not extract author id from URI: %s", req.Params.URI)
	}
	if _, ok := s.library.Author(id); !ok {
		return nil, fmt.Errorf("author %s not found", id)
	}
	return s.jsonResource(func() any { return s.library.BooksByAuthor(id) })(ctx, req)
}

// authorIDFromURI extracts the id from "librarydesk://authors/{id}/books".
func authorIDFromURI(uri string) string {
	rest, ok := strings.CutPrefix(uri, uriAuthorPfx)
	if !ok {
		return ""
	}
	id, ok := strings.CutSuffix(rest, "/books")
	if !ok || strings.Contains(id, "/") {
		return ""
	}
	return id
}
