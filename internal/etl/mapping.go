package etl

import (
	"fmt"
	"math"
	"strings"

	"librarydesk/internal/domain"
)

// ── Catalog mapping ────────────────────────────────────────
// Import files may use the console's camelCase headers or the backend's
// snake_case names; both map onto the same import row.

var importAliases = map[string][]string{
	"title":           {"title"},
	"description":     {"description"},
	"authorId":        {"authorId", "author_id"},
	"categoryId":      {"categoryId", "category_id"},
	"publicationDate": {"publicationDate", "publication_date", "publishedDate", "published_date"},
	"price":           {"price"},
}

// ImportColumns is the header of the import template, in order.
var ImportColumns = []string{"title", "description", "authorId", "categoryId", "publicationDate", "price"}

func lookup(data map[string]any, field string) (any, bool) {
	for _, key := range importAliases[field] {
		if v, ok := data[key]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func text(data map[string]any, field string) string {
	v, _ := lookup(data, field)
	return strings.TrimSpace(formatCell(v))
}

// ToImportRow maps a record onto an import row. A blank price is 0; a
// price that is not a number becomes NaN so validation rejects the row.
func ToImportRow(r Record) domain.ImportRow {
	row := domain.ImportRow{
		Title:           text(r.Data, "title"),
		Description:     text(r.Data, "description"),
		AuthorID:        text(r.Data, "authorId"),
		CategoryID:      text(r.Data, "categoryId"),
		PublicationDate: text(r.Data, "publicationDate"),
	}
	if v, ok := lookup(r.Data, "price"); ok {
		if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
			return row
		}
		if f, ok := toFloatSafe(v); ok {
			row.Price = f
		} else {
			row.Price = math.NaN()
		}
	}
	return row
}

// ── Export records ─────────────────────────────────────────

// Entity names an exportable collection.
type Entity string

const (
	EntityBooks      Entity = "books"
	EntityAuthors    Entity = "authors"
	EntityCategories Entity = "categories"
)

var (
	bookExportColumns     = []string{"id", "title", "description", "authorId", "authorName", "categoryId", "categoryName", "publicationDate", "price"}
	authorExportColumns   = []string{"id", "firstName", "lastName", "fullName", "bio", "dateOfBirth", "dateOfDeath", "nationality", "averageRating", "bookCount"}
	categoryExportColumns = []string{"id", "name", "bookCount"}
)

// BookRecords lays books out with their resolved names.
func BookRecords(books []domain.Book) (*Schema, []Record) {
	records := make([]Record, 0, len(books))
	for _, b := range books {
		records = append(records, Record{Data: map[string]any{
			"id":              b.ID,
			"title":           b.Title,
			"description":     b.Description,
			"authorId":        b.AuthorID,
			"authorName":      b.AuthorName,
			"categoryId":      b.CategoryID,
			"categoryName":    b.CategoryName,
			"publicationDate": b.PublicationDate,
			"price":           b.Price,
		}})
	}
	return numericSchema(bookExportColumns, "price"), records
}

func AuthorRecords(authors []domain.Author) (*Schema, []Record) {
	records := make([]Record, 0, len(authors))
	for _, a := range authors {
		records = append(records, Record{Data: map[string]any{
			"id":            a.ID,
			"firstName":     a.FirstName,
			"lastName":      a.LastName,
			"fullName":      a.FullName,
			"bio":           a.Bio,
			"dateOfBirth":   a.DateOfBirth,
			"dateOfDeath":   a.DateOfDeath,
			"nationality":   a.Nationality,
			"averageRating": a.AverageRating,
			"bookCount":     a.BookCount,
		}})
	}
	return numericSchema(authorExportColumns, "averageRating", "bookCount"), records
}

func CategoryRecords(categories []domain.Category) (*Schema, []Record) {
	records := make([]Record, 0, len(categories))
	for _, c := range categories {
		records = append(records, Record{Data: map[string]any{
			"id":        c.ID,
			"name":      c.Name,
			"bookCount": c.BookCount,
		}})
	}
	return numericSchema(categoryExportColumns, "bookCount"), records
}

// SnapshotRecords selects the records of one entity from a snapshot.
func SnapshotRecords(snap domain.Snapshot, entity Entity) (*Schema, []Record, error) {
	switch entity {
	case EntityBooks:
		s, r := BookRecords(snap.Books)
		return s, r, nil
	case EntityAuthors:
		s, r := AuthorRecords(snap.Authors)
		return s, r, nil
	case EntityCategories:
		s, r := CategoryRecords(snap.Categories)
		return s, r, nil
	default:
		return nil, nil, fmt.Errorf("unknown entity: %q", entity)
	}
}

// TemplateRecords is a one-row sample import file that references the
// first author and category of the snapshot, or id 1 when there are none.
func TemplateRecords(snap domain.Snapshot) (*Schema, []Record) {
	authorID, categoryID := "1", "1"
	if len(snap.Authors) > 0 {
		authorID = snap.Authors[0].ID
	}
	if len(snap.Categories) > 0 {
		categoryID = snap.Categories[0].ID
	}
	return numericSchema(ImportColumns, "price"), []Record{{Data: map[string]any{
		"title":           "Sample Book Title",
		"description":     "Sample book description",
		"authorId":        authorID,
		"categoryId":      categoryID,
		"publicationDate": "2024-01-01",
		"price":           29.99,
	}}}
}

func numericSchema(names []string, numeric ...string) *Schema {
	s := SchemaOf(names...)
	for i := range s.Fields {
		for _, n := range numeric {
			if s.Fields[i].Name == n {
				s.Fields[i].Type = "number"
			}
		}
	}
	return s
}
