package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerPrompts() {
	s.mcp.AddPrompt(mcp.NewPrompt("catalog_review",
		mcp.WithPromptDescription("Review the catalog for gaps and inconsistencies"),
	), s.handleCatalogReviewPrompt)

	s.mcp.AddPrompt(mcp.NewPrompt("import_books",
		mcp.WithPromptDescription("Walk through importing books from a file or URL"),
		mcp.WithArgument("location",
			mcp.ArgumentDescription("File path or URL with the books"),
			mcp.RequiredArgument(),
		),
	), s.handleImportBooksPrompt)

	s.mcp.AddPrompt(mcp.NewPrompt("author_profile",
		mcp.WithPromptDescription("Summarise an author and their books"),
		mcp.WithArgument("name",
			mcp.ArgumentDescription("Author name or part of it"),
			mcp.RequiredArgument(),
		),
	), s.handleAuthorProfilePrompt)
}

func userPrompt(description, text string) *mcp.GetPromptResult {
	return &mcp.GetPromptResult{
		Description: description,
		Messages: []mcp.PromptMessage{
			{
				Role:    mcp.RoleUser,
				Content: mcp.TextContent{Type: "text", Text: text},
			},
		},
	}
}

func (s *Server) handleCatalogReviewPrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	return userPrompt("Review the library catalog", `Review the library catalog. Follow these steps:

1. Call library_stats for the overall numbers
2. Call list_authors and list the authors with no books
3. Call list_categories and list the categories with no books
4. Call list_books and point out books with no description, a zero price or a publication date in the future
5. Summarise the findings as a short checklist; do not change anything without asking`), nil
}

func (s *Server) handleImportBooksPrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	location := req.Params.Arguments["location"]
	return userPrompt(fmt.Sprintf("Import books from %s", location), fmt.Sprintf(`Import books from "%s". Follow these steps:

1. Call list_import_sources and pick the source that fits (csv or json for files, http for URLs)
2. Call preview_import with a few rows and check that title, authorId, categoryId, publicationDate and price are present; add rename transforms if the columns are named differently
3. Check with list_authors and list_categories that the referenced ids exist; create missing ones with add_author or add_category
4. Run the import with import_file or run_import
5. Report the imported count and every row error`, location)), nil
}

func (s *Server) handleAuthorProfilePrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	name := req.Params.Arguments["name"]
	return userPrompt(fmt.Sprintf("Profile of %s", name), fmt.Sprintf(`Write a short profile of the author matching "%s":

1. Call search_authors to find the author; ask if several match
2. Call get_author for the bio and their books
3. Summarise the bio, the number of books, the categories they write in and the price range`, name)), nil
}
