package app

import (
	"librarydesk/internal/catalog"
	"librarydesk/internal/domain"
)

// ============================================================
// Catalog
// ============================================================

func (a *App) ListBooks() []domain.Book { return a.core.Library.Books() }

func (a *App) ListAuthors() []domain.Author { return a.core.Library.Authors() }

func (a *App) ListCategories() []domain.Category { return a.core.Library.Categories() }

// GetBook returns one book with its author and category names resolved.
func (a *App) GetBook(id string) (domain.Book, error) {
	b, ok := a.core.Library.Book(id)
	if !ok {
		return domain.Book{}, &catalog.NotFoundError{Kind: "Book", ID: id}
	}
	return b, nil
}

// GetAuthor returns the author with its books attached.
func (a *App) GetAuthor(id string) (domain.Author, error) {
	au, ok := a.core.Library.Author(id)
	if !ok {
		return domain.Author{}, &catalog.NotFoundError{Kind: "Author", ID: id}
	}
	au.Books = a.core.Library.BooksByAuthor(id)
	return au, nil
}

func (a *App) SearchAuthors(query string) []domain.Author {
	return a.core.Library.SearchAuthors(query)
}

func (a *App) TopAuthors(n int) []domain.Author { return a.core.Library.TopAuthors(n) }

func (a *App) BooksByCategory(categoryID string) []domain.Book {
	return a.core.Library.BooksByCategory(categoryID)
}

func (a *App) AddBook(in domain.BookInput) (domain.Book, error) {
	return a.core.Library.AddBook(a.ctx, in)
}

func (a *App) AddBookByName(in domain.BookByNameInput) (domain.Book, error) {
	return a.core.Library.AddBookByName(a.ctx, in)
}

func (a *App) UpdateBook(id string, patch domain.BookPatch) (domain.Book, error) {
	return a.core.Library.UpdateBook(a.ctx, id, patch)
}

func (a *App) DeleteBook(id string) error { return a.core.Library.DeleteBook(a.ctx, id) }

func (a *App) AddAuthor(in domain.AuthorInput) (domain.Author, error) {
	return a.core.Library.AddAuthor(a.ctx, in)
}

func (a *App) UpdateAuthor(id string, in domain.AuthorInput) (domain.Author, error) {
	return a.core.Library.UpdateAuthor(a.ctx, id, in)
}

func (a *App) DeleteAuthor(id string) error { return a.core.Library.DeleteAuthor(a.ctx, id) }

func (a *App) AddCategory(in domain.CategoryInput) (domain.Category, error) {
	return a.core.Library.AddCategory(a.ctx, in)
}

func (a *App) UpdateCategory(id string, in domain.CategoryInput) (domain.Category, error) {
	return a.core.Library.UpdateCategory(a.ctx, id, in)
}

func (a *App) DeleteCategory(id string) error {
	return a.core.Library.DeleteCategory(a.ctx, id)
}

// ============================================================
// Dashboard
// ============================================================

func (a *App) GetStats() domain.LibraryStats { return a.core.Library.Stats() }

// Refresh reloads the whole catalog from the backend.
func (a *App) Refresh() error {
	if err := a.core.Library.Refresh(a.ctx); err != nil {
		a.logError("refresh", err)
		return err
	}
	return nil
}

// BackendHealth reports whether the backend answers its health probe.
func (a *App) BackendHealth() error { return a.core.Library.Ping(a.ctx) }
