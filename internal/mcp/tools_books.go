package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"librarydesk/internal/catalog"
	"librarydesk/internal/domain"
)

func (s *Server) registerBookTools() {
	s.mcp.AddTool(mcp.NewTool("list_books",
		mcp.WithDescription("List books with resolved author and category names. Optionally filter by author or category."),
		mcp.WithString("authorId", mcp.Description("Only books by this author")),
		mcp.WithString("categoryId", mcp.Description("Only books in this category")),
	), s.handleListBooks)

	s.mcp.AddTool(mcp.NewTool("get_book",
		mcp.WithDescription("Get one book by id"),
		mcp.WithString("id", mcp.Description("Book ID"), mcp.Required()),
	), s.handleGetBook)

	s.mcp.AddTool(mcp.NewTool("add_book",
		mcp.WithDescription("Create a book. Author and category are referenced by id and must exist."),
		mcp.WithString("title", mcp.Description("Title, at most 200 characters"), mcp.Required()),
		mcp.WithString("description", mcp.Description("Optional description")),
		mcp.WithString("authorId", mcp.Description("Existing author ID"), mcp.Required()),
		mcp.WithString("categoryId", mcp.Description("Existing category ID"), mcp.Required()),
		mcp.WithString("publicationDate", mcp.Description("ISO date, e.g. 2024-01-31"), mcp.Required()),
		mcp.WithNumber("price", mcp.Description("Price, zero or more")),
	), s.handleAddBook)

	s.mcp.AddTool(mcp.NewTool("add_book_by_name",
		mcp.WithDescription("Create a book referencing the author by full name and the category by name (case-insensitive)"),
		mcp.WithString("title", mcp.Description("Title"), mcp.Required()),
		mcp.WithString("description", mcp.Description("Optional description")),
		mcp.WithString("authorName", mcp.Description("Author full name, e.g. Ada Lovelace"), mcp.Required()),
		mcp.WithString("categoryName", mcp.Description("Category name"), mcp.Required()),
		mcp.WithString("publicationDate", mcp.Description("ISO date"), mcp.Required()),
		mcp.WithNumber("price", mcp.Description("Price, zero or more")),
	), s.handleAddBookByName)

	s.mcp.AddTool(mcp.NewTool("update_book",
		mcp.WithDescription("Update some fields of a book. Omitted fields are left unchanged."),
		mcp.WithString("id", mcp.Description("Book ID"), mcp.Required()),
		mcp.WithString("title", mcp.Description("New title")),
		mcp.WithString("description", mcp.Description("New description")),
		mcp.WithString("authorId", mcp.Description("New author ID")),
		mcp.WithString("categoryId", mcp.Description("New category ID")),
		mcp.WithString("publicationDate", mcp.Description("New ISO date")),
		mcp.WithNumber("price", mcp.Description("New price")),
	), s.handleUpdateBook)

	s.mcp.AddTool(mcp.NewTool("delete_book",
		mcp.WithDescription("Delete a book. 🛑 Requires user approval."),
		mcp.WithString("id", mcp.Description("Book ID"), mcp.Required()),
	), s.handleDeleteBook)
}

func (s *Server) handleListBooks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	authorID := req.GetString("authorId", "")
	categoryID := req.GetString("categoryId", "")

	var books []domain.Book
	switch {
	case authorID != "":
		books = s.library.BooksByAuthor(authorID)
	case categoryID != "":
		books = s.library.BooksByCategory(categoryID)
	default:
		books = s.library.Books()
	}
	if authorID != "" && categoryID != "" {
		filtered := books[:0]
		want := catalog.NormalizeID(categoryID)
		for _, b := range books {
			if b.CategoryID == want {
				filtered = append(filtered, b)
			}
		}
		books = filtered
	}
	return jsonResult(books)
}

func (s *Server) handleGetBook(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireString(req, "id")
	if err != nil {
		return nil, err
	}
	book, ok := s.library.Book(id)
	if !ok {
		return nil, fmt.Errorf("book %s not found", id)
	}
	return jsonResult(book)
}

func (s *Server) handleAddBook(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	book, err := s.library.AddBook(ctx, domain.BookInput{
		Title:           req.GetString("title", ""),
		Description:     req.GetString("description", ""),
		AuthorID:        req.GetString("authorId", ""),
		CategoryID:      req.GetString("categoryId", ""),
		PublicationDate: req.GetString("publicationDate", ""),
		Price:           req.GetFloat("price", 0),
	})
	if err != nil {
		return nil, fmt.Errorf("add book: %w", err)
	}
	return jsonResult(book)
}

func (s *Server) handleAddBookByName(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	book, err := s.library.AddBookByName(ctx, domain.BookByNameInput{
		Title:           req.GetString("title", ""),
		Description:     req.GetString("description", ""),
		AuthorName:      req.GetString("authorName", ""),
		CategoryName:    req.GetString("categoryName", ""),
		PublicationDate: req.GetString("publicationDate", ""),
		Price:           req.GetFloat("price", 0),
	})
	if err != nil {
		return nil, fmt.Errorf("add book: %w", err)
	}
	return jsonResult(book)
}

func (s *Server) handleUpdateBook(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireString(req, "id")
	if err != nil {
		return nil, err
	}
	args := req.GetArguments()
	book, err := s.library.UpdateBook(ctx, id, domain.BookPatch{
		Title:           optionalString(args, "title"),
		Description:     optionalString(args, "description"),
		AuthorID:        optionalString(args, "authorId"),
		CategoryID:      optionalString(args, "categoryId"),
		PublicationDate: optionalString(args, "publicationDate"),
		Price:           optionalFloat(args, "price"),
	})
	if err != nil {
		return nil, fmt.Errorf("update book: %w", err)
	}
	return jsonResult(book)
}

func (s *Server) handleDeleteBook(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireString(req, "id")
	if err != nil {
		return nil, err
	}
	desc := fmt.Sprintf("Delete book %s", id)
	if b, ok := s.library.Book(id); ok {
		desc = fmt.Sprintf("Delete book %q", truncate(b.Title, 80))
	}
	if rejected := s.confirm("delete_book", desc); rejected != nil {
		return rejected, nil
	}
	if err := s.library.DeleteBook(ctx, id); err != nil {
		return nil, fmt.Errorf("delete book: %w", err)
	}
	return textResult(fmt.Sprintf("Book %s deleted", id)), nil
}
