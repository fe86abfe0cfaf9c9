package dbclient

import "librarydesk/internal/domain"

// ── Snapshot tables ────────────────────────────────────────
// The same three tables are written to every target. SQL targets get one
// table per entity; Mongo targets get one collection per entity with the
// id stored as _id.

type column struct {
	name    string
	kind    string // "id" | "text" | "real" | "int"
	primary bool
}

type table struct {
	name    string
	columns []column
	rows    [][]any
}

func (t table) columnNames() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.name
	}
	return names
}

var (
	bookColumns = []column{
		{name: "id", kind: "id", primary: true},
		{name: "title", kind: "text"},
		{name: "description", kind: "text"},
		{name: "author_id", kind: "id"},
		{name: "author_name", kind: "text"},
		{name: "category_id", kind: "id"},
		{name: "category_name", kind: "text"},
		{name: "publication_date", kind: "text"},
		{name: "price", kind: "real"},
	}
	authorColumns = []column{
		{name: "id", kind: "id", primary: true},
		{name: "first_name", kind: "text"},
		{name: "last_name", kind: "text"},
		{name: "full_name", kind: "text"},
		{name: "bio", kind: "text"},
		{name: "date_of_birth", kind: "text"},
		{name: "date_of_death", kind: "text"},
		{name: "nationality", kind: "text"},
		{name: "average_rating", kind: "real"},
		{name: "book_count", kind: "int"},
	}
	categoryColumns = []column{
		{name: "id", kind: "id", primary: true},
		{name: "name", kind: "text"},
		{name: "book_count", kind: "int"},
	}
)

// snapshotTables lays a snapshot out as rows. Derived names and counts are
// written as they were at snapshot time.
func snapshotTables(snap domain.Snapshot) []table {
	books := table{name: "books", columns: bookColumns, rows: make([][]any, 0, len(snap.Books))}
	for _, b := range snap.Books {
		books.rows = append(books.rows, []any{
			b.ID, b.Title, b.Description, b.AuthorID, b.AuthorName,
			b.CategoryID, b.CategoryName, b.PublicationDate, b.Price,
		})
	}

	authors := table{name: "authors", columns: authorColumns, rows: make([][]any, 0, len(snap.Authors))}
	for _, a := range snap.Authors {
		authors.rows = append(authors.rows, []any{
			a.ID, a.FirstName, a.LastName, a.FullName, a.Bio,
			a.DateOfBirth, a.DateOfDeath, a.Nationality, a.AverageRating, a.BookCount,
		})
	}

	categories := table{name: "categories", columns: categoryColumns, rows: make([][]any, 0, len(snap.Categories))}
	for _, c := range snap.Categories {
		categories.rows = append(categories.rows, []any{c.ID, c.Name, c.BookCount})
	}

	return []table{categories, authors, books}
}
