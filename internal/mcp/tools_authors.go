package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"librarydesk/internal/domain"
)

func (s *Server) registerAuthorTools() {
	s.mcp.AddTool(mcp.NewTool("list_authors",
		mcp.WithDescription("List authors with their book counts"),
	), s.handleListAuthors)

	s.mcp.AddTool(mcp.NewTool("search_authors",
		mcp.WithDescription("Find authors whose full name contains the query (case-insensitive)"),
		mcp.WithString("query", mcp.Description("Part of the author name"), mcp.Required()),
	), s.handleSearchAuthors)

	s.mcp.AddTool(mcp.NewTool("top_authors",
		mcp.WithDescription("Authors with the most books"),
		mcp.WithNumber("limit", mcp.Description("How many authors to return (default 5)")),
	), s.handleTopAuthors)

	s.mcp.AddTool(mcp.NewTool("get_author",
		mcp.WithDescription("Get one author and their books"),
		mcp.WithString("id", mcp.Description("Author ID"), mcp.Required()),
	), s.handleGetAuthor)

	s.mcp.AddTool(mcp.NewTool("add_author",
		mcp.WithDescription("Create an author from a full name"),
		mcp.WithString("name", mcp.Description("Full name, e.g. Ada Lovelace"), mcp.Required()),
		mcp.WithString("bio", mcp.Description("Optional biography")),
	), s.handleAddAuthor)

	s.mcp.AddTool(mcp.NewTool("update_author",
		mcp.WithDescription("Rename an author or change the bio. Their books show the new name."),
		mcp.WithString("id", mcp.Description("Author ID"), mcp.Required()),
		mcp.WithString("name", mcp.Description("Full name"), mcp.Required()),
		mcp.WithString("bio", mcp.Description("Biography")),
	), s.handleUpdateAuthor)

	s.mcp.AddTool(mcp.NewTool("delete_author",
		mcp.WithDescription("Delete an author that has no books. 🛑 Requires user approval."),
		mcp.WithString("id", mcp.Description("Author ID"), mcp.Required()),
	), s.handleDeleteAuthor)
}

func (s *Server) handleListAuthors(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.library.Authors())
}

func (s *Server) handleSearchAuthors(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	q, err := requireString(req, "query")
	if err != nil {
		return nil, err
	}
	return jsonResult(s.library.SearchAuthors(q))
}

func (s *Server) handleTopAuthors(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.library.TopAuthors(req.GetInt("limit", 5)))
}

func (s *Server) handleGetAuthor(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireString(req, "id")
	if err != nil {
		return nil, err
	}
	author, ok := s.library.Author(id)
	if !ok {
		return nil, fmt.Errorf("author %s not found", id)
	}
	return jsonResult(map[string]any{
		"author": author,
		"books":  s.library.BooksByAuthor(id),
	})
}

func (s *Server) handleAddAuthor(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	author, err := s.library.AddAuthor(ctx, domain.AuthorInput{
		Name: req.GetString("name", ""),
		Bio:  req.GetString("bio", ""),
	})
	if err != nil {
		return nil, fmt.Errorf("add author: %w", err)
	}
	return jsonResult(author)
}

func (s *Server) handleUpdateAuthor(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireString(req, "id")
	if err != nil {
		return nil, err
	}
	author, err := s.library.UpdateAuthor(ctx, id, domain.AuthorInput{
		Name: req.GetString("name", ""),
		Bio:  req.GetString("bio", ""),
	})
	if err != nil {
		return nil, fmt.Errorf("update author: %w", err)
	}
	return jsonResult(author)
}

func (s *Server) handleDeleteAuthor(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireString(req, "id")
	if err != nil {
		return nil, err
	}
	desc := fmt.Sprintf("Delete author %s", id)
	if a, ok := s.library.Author(id); ok {
		desc = fmt.Sprintf("Delete author %q", a.FullName)
	}
	if rejected := s.confirm("delete_author", desc); rejected != nil {
		return rejected, nil
	}
	if err := s.library.DeleteAuthor(ctx, id); err != nil {
		return nil, fmt.Errorf("delete author: %w", err)
	}
	return textResult(fmt.Sprintf("Author %s deleted", id)), nil
}
