package catalog

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"librarydesk/internal/domain"
	"librarydesk/internal/gateway"
)

// BulkImportBooks creates one book per row, in order. A row that fails is
// recorded as "Row N: ..." (1-based) and the import moves on. Successful
// rows are appended to the store together once every row has settled.
func (l *Library) BulkImportBooks(ctx context.Context, rows []domain.ImportRow) domain.ImportResult {
	res, _ := track(ctx, l, "bulkImportBooks", func() (domain.ImportResult, error) {
		return l.bulkImport(ctx, rows), nil
	})
	return res
}

func (l *Library) bulkImport(ctx context.Context, rows []domain.ImportRow) domain.ImportResult {
	result := domain.ImportResult{Errors: []string{}, Imported: []domain.Book{}}
	refs := l.store.Refs()

	for i, row := range rows {
		n := i + 1
		in := domain.BookInput{
			Title:           row.Title,
			Description:     row.Description,
			AuthorID:        NormalizeID(row.AuthorID),
			CategoryID:      NormalizeID(row.CategoryID),
			PublicationDate: row.PublicationDate,
			Price:           row.Price,
		}

		if _, ok := refs.Author(in.AuthorID); !ok {
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: Author ID %s not found", n, in.AuthorID))
			continue
		}
		if _, ok := refs.Category(in.CategoryID); !ok {
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: Category ID %s not found", n, in.CategoryID))
			continue
		}
		if err := validateStruct(in); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %v", n, err))
			continue
		}

		payload := bookPayload(in)
		raw, err := l.gw.Create(ctx, gateway.Books, payload)
		if err == nil {
			var book domain.Book
			book, err = TransformBook(overlay(payload, raw), refs)
			if err == nil {
				result.Imported = append(result.Imported, book)
				continue
			}
		}
		l.logger.Warn("import row failed", zap.Int("row", n), zap.Error(err))
		result.Errors = append(result.Errors, fmt.Sprintf("Row %d: Failed to import book: %s", n, causeMessage(err)))
	}

	l.store.AppendBooks(result.Imported...)
	result.ImportedCount = len(result.Imported)
	l.logger.Info("bulk import finished",
		zap.Int("rows", len(rows)),
		zap.Int("imported", result.ImportedCount),
		zap.Int("failed", len(result.Errors)))
	return result
}

// causeMessage prefers the backend's own message over the full request trace.
func causeMessage(err error) string {
	var httpErr *gateway.HTTPError
	if errors.As(err, &httpErr) && httpErr.Message != "" {
		return httpErr.Message
	}
	return err.Error()
}
