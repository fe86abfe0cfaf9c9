package catalog_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"librarydesk/internal/catalog"
	"librarydesk/internal/domain"
	"librarydesk/internal/gateway"
)

// flakyGateway fails the nth Create call (1-based) and delegates the rest.
type flakyGateway struct {
	gateway.Gateway
	failAt  int
	creates int
}

func (f *flakyGateway) Create(ctx context.Context, res gateway.Resource, payload any) (domain.RawRecord, error) {
	f.creates++
	if f.creates == f.failAt {
		return nil, &gateway.NetworkError{Method: http.MethodPost, URL: "/books", Err: errors.New("connection reset")}
	}
	return f.Gateway.Create(ctx, res, payload)
}

func importRows() []domain.ImportRow {
	return []domain.ImportRow{
		{Title: "First", AuthorID: "1", CategoryID: "1", PublicationDate: "2024-01-01", Price: 10},
		{Title: "Second", AuthorID: "99", CategoryID: "1", PublicationDate: "2024-01-02", Price: 20},
		{Title: "Third", AuthorID: "1", CategoryID: "1", PublicationDate: "2024-01-03", Price: 30},
	}
}

func TestBulkImportBooks_PartialSuccess(t *testing.T) {
	h := newHarness(t)
	h.sim.SeedAuthor("Ada", "Lovelace")
	h.sim.SeedCategory("Mathematics")
	require.NoError(t, h.lib.Load(context.Background()))

	res := h.lib.BulkImportBooks(context.Background(), importRows())

	assert.Equal(t, 2, res.ImportedCount)
	assert.Equal(t, []string{"Row 2: Author ID 99 not found"}, res.Errors)

	books := h.lib.Books()
	require.Len(t, books, 2)
	assert.Equal(t, "First", books[0].Title)
	assert.Equal(t, "Third", books[1].Title)
	assert.Equal(t, "Ada Lovelace", books[1].AuthorName)
	assert.Equal(t, 2, h.sim.Calls(http.MethodPost, "/books"))
}

func TestBulkImportBooks_RowErrors(t *testing.T) {
	h := newHarness(t)
	h.sim.SeedAuthor("Ada", "Lovelace")
	h.sim.SeedCategory("Mathematics")
	require.NoError(t, h.lib.Load(context.Background()))

	rows := []domain.ImportRow{
		{Title: "Bad category", AuthorID: "1", CategoryID: "5", PublicationDate: "2024-01-01"},
		{Title: "", AuthorID: "1", CategoryID: "1", PublicationDate: "2024-01-01"},
		{Title: "Negative", AuthorID: "1.0", CategoryID: "1", PublicationDate: "2024-01-01", Price: -3},
		{Title: "Fine", AuthorID: "1.0", CategoryID: "1", PublicationDate: "2024-01-01", Price: 3},
	}
	res := h.lib.BulkImportBooks(context.Background(), rows)

	assert.Equal(t, 1, res.ImportedCount)
	assert.Equal(t, []string{
		"Row 1: Category ID 5 not found",
		"Row 2: title: is required",
		"Row 3: price: must be greater than or equal to 0",
	}, res.Errors)
}

func TestBulkImportBooks_NetworkFailureContinues(t *testing.T) {
	h := newHarness(t)
	h.sim.SeedAuthor("Ada", "Lovelace")
	h.sim.SeedCategory("Mathematics")

	rows := importRows()
	rows[1].AuthorID = "1"

	lib := catalog.NewLibrary(&flakyGateway{Gateway: h.gw, failAt: 2})
	require.NoError(t, lib.Load(context.Background()))

	res := lib.BulkImportBooks(context.Background(), rows)
	assert.Equal(t, 2, res.ImportedCount)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "Row 2: Failed to import book: ")
	assert.Contains(t, res.Errors[0], "connection reset")
}

func TestBulkImportBooks_BackendRejection(t *testing.T) {
	h := newHarness(t)
	h.sim.SeedAuthor("Ada", "Lovelace")
	h.sim.SeedCategory("Mathematics")
	require.NoError(t, h.lib.Load(context.Background()))

	h.sim.Fail(http.MethodPost, "/books", http.StatusBadRequest, "Category not found")
	res := h.lib.BulkImportBooks(context.Background(), importRows()[:1])

	assert.Equal(t, 0, res.ImportedCount)
	assert.Equal(t, []string{"Row 1: Failed to import book: Category not found"}, res.Errors)
	assert.Empty(t, h.lib.Books())
}

func TestBulkImportBooks_Empty(t *testing.T) {
	h := newHarness(t)
	res := h.lib.BulkImportBooks(context.Background(), nil)
	assert.Equal(t, 0, res.ImportedCount)
	assert.NotNil(t, res.Errors)
	assert.Empty(t, res.Errors)
}
