package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"librarydesk/internal/domain"
)

func (s *Server) registerCategoryTools() {
	s.mcp.AddTool(mcp.NewTool("list_categories",
		mcp.WithDescription("List categories with their book counts"),
	), s.handleListCategories)

	s.mcp.AddTool(mcp.NewTool("books_by_category",
		mcp.WithDescription("List the books in a category"),
		mcp.WithString("id", mcp.Description("Category ID"), mcp.Required()),
	), s.handleBooksByCategory)

	s.mcp.AddTool(mcp.NewTool("add_category",
		mcp.WithDescription("Create a category"),
		mcp.WithString("name", mcp.Description("Category name"), mcp.Required()),
	), s.handleAddCategory)

	s.mcp.AddTool(mcp.NewTool("update_category",
		mcp.WithDescription("Rename a category. Its books show the new name."),
		mcp.WithString("id", mcp.Description("Category ID"), mcp.Required()),
		mcp.WithString("name", mcp.Description("New name"), mcp.Required()),
	), s.handleUpdateCategory)

	s.mcp.AddTool(mcp.NewTool("delete_category",
		mcp.WithDescription("Delete a category that has no books. 🛑 Requires user approval."),
		mcp.WithString("id", mcp.Description("Category ID"), mcp.Required()),
	), s.handleDeleteCategory)
}

func (s *Server) handleListCategories(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.library.Categories())
}

func (s *Server) handleBooksByCategory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireString(req, "id")
	if err != nil {
		return nil, err
	}
	if _, ok := s.library.Category(id); !ok {
		return nil, fmt.Errorf("category %s not found", id)
	}
	return jsonResult(s.library.BooksByCategory(id))
}

func (s *Server) handleAddCategory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	category, err := s.library.AddCategory(ctx, domain.CategoryInput{Name: req.GetString("name", "")})
	if err != nil {
		return nil, fmt.Errorf("add category: %w", err)
	}
	return jsonResult(category)
}

func (s *Server) handleUpdateCategory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireString(req, "id")
	if err != nil {
		return nil, err
	}
	category, err := s.library.UpdateCategory(ctx, id, domain.CategoryInput{Name: req.GetString("name", "")})
	if err != nil {
		return nil, fmt.Errorf("update category: %w", err)
	}
	return jsonResult(category)
}

func (s *Server) handleDeleteCategory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireString(req, "id")
	if err != nil {
		return nil, err
	}
	desc := fmt.Sprintf("Delete category %s", id)
	if c, ok := s.library.Category(id); ok {
		desc = fmt.Sprintf("Delete category %q", c.Name)
	}
	if rejected := s.confirm("delete_category", desc); rejected != nil {
		return rejected, nil
	}
	if err := s.library.DeleteCategory(ctx, id); err != nil {
		return nil, fmt.Errorf("delete category: %w", err)
	}
	return textResult(fmt.Sprintf("Category %s deleted", id)), nil
}
