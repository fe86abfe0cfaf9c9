package catalog_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"librarydesk/internal/backendsim"
	"librarydesk/internal/catalog"
	"librarydesk/internal/domain"
	"librarydesk/internal/gateway"
	"librarydesk/internal/service"
)

type harness struct {
	sim    *backendsim.Server
	gw     gateway.Gateway
	lib    *catalog.Library
	events *service.MockEmitter
}

func newHarness(t *testing.T, opts ...catalog.Option) *harness {
	t.Helper()
	sim := backendsim.New(nil)
	srv := httptest.NewServer(sim.Handler())
	t.Cleanup(srv.Close)

	gw, err := gateway.NewHTTPGateway(srv.URL, gateway.WithTimeout(5*time.Second))
	require.NoError(t, err)

	events := &service.MockEmitter{}
	opts = append([]catalog.Option{catalog.WithEmitter(events)}, opts...)
	return &harness{sim: sim, gw: gw, lib: catalog.NewLibrary(gw, opts...), events: events}
}

// seeded loads one author, one category and one book into both sides.
func (h *harness) seeded(t *testing.T) {
	t.Helper()
	a := h.sim.SeedAuthor("Ada", "Lovelace")
	h.sim.SeedAuthor("Charles", "Babbage")
	c := h.sim.SeedCategory("Mathematics")
	h.sim.SeedCategory("Engineering")
	h.sim.SeedBook("Notes", a, c, "1843-09-01", 10)
	require.NoError(t, h.lib.Load(context.Background()))
}

func TestLibrary_EndToEnd(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.lib.Load(ctx))

	ada, err := h.lib.AddAuthor(ctx, domain.AuthorInput{Name: "Ada Lovelace", Bio: "Analyst"})
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", ada.FullName)

	maths, err := h.lib.AddCategory(ctx, domain.CategoryInput{Name: "Mathematics"})
	require.NoError(t, err)

	book, err := h.lib.AddBook(ctx, domain.BookInput{
		Title:           "Notes",
		AuthorID:        ada.ID,
		CategoryID:      maths.ID,
		PublicationDate: "1843-09-01",
		Price:           12.5,
	})
	require.NoError(t, err)

	books := h.lib.Books()
	require.Len(t, books, 1)
	assert.Equal(t, "Ada Lovelace", books[0].AuthorName)
	assert.Equal(t, "Mathematics", books[0].CategoryName)
	assert.Equal(t, 12.5, books[0].Price)

	err = h.lib.DeleteAuthor(ctx, ada.ID)
	assert.ErrorIs(t, err, catalog.ErrReferentialIntegrity)

	require.NoError(t, h.lib.DeleteBook(ctx, book.ID))
	require.NoError(t, h.lib.DeleteAuthor(ctx, ada.ID))
	assert.Empty(t, h.lib.Authors())
}

func TestLibrary_AddBookRejectsUnknownReferences(t *testing.T) {
	h := newHarness(t)
	h.seeded(t)
	ctx := context.Background()
	before := h.lib.Snapshot()

	_, err := h.lib.AddBook(ctx, domain.BookInput{
		Title: "Ghost", AuthorID: "99", CategoryID: "1", PublicationDate: "2024-01-01",
	})
	var vErr *catalog.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "Author ID 99 not found", vErr.Message)

	_, err = h.lib.AddBook(ctx, domain.BookInput{
		Title: "Ghost", AuthorID: "1", CategoryID: "99", PublicationDate: "2024-01-01",
	})
	assert.ErrorIs(t, err, catalog.ErrValidation)

	_, err = h.lib.AddBook(ctx, domain.BookInput{AuthorID: "1", CategoryID: "1", PublicationDate: "2024-01-01"})
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "title", vErr.Field)

	_, err = h.lib.AddBook(ctx, domain.BookInput{Title: "x", AuthorID: "1", CategoryID: "1", PublicationDate: "soon"})
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "publicationDate", vErr.Field)

	assert.Equal(t, 0, h.sim.Calls(http.MethodPost, "/books"))
	assert.Equal(t, before, h.lib.Snapshot())
}

func TestLibrary_ReferentialIntegrity(t *testing.T) {
	h := newHarness(t)
	h.seeded(t)

	for _, b := range h.lib.Books() {
		_, ok := h.lib.Author(b.AuthorID)
		assert.True(t, ok)
		_, ok = h.lib.Category(b.CategoryID)
		assert.True(t, ok)
	}
}

func TestLibrary_UpdateAuthorCascades(t *testing.T) {
	h := newHarness(t)
	h.seeded(t)
	ctx := context.Background()

	updated, err := h.lib.UpdateAuthor(ctx, "1", domain.AuthorInput{Name: "Augusta King", Bio: "Countess"})
	require.NoError(t, err)
	assert.Equal(t, "Augusta King", updated.FullName)
	assert.Equal(t, 1, updated.BookCount)

	for _, b := range h.lib.BooksByAuthor("1") {
		assert.Equal(t, "Augusta King", b.AuthorName)
	}

	_, err = h.lib.UpdateCategory(ctx, "1", domain.CategoryInput{Name: "Maths"})
	require.NoError(t, err)
	b, ok := h.lib.Book("1")
	require.True(t, ok)
	assert.Equal(t, "Maths", b.CategoryName)
}

func TestLibrary_UpdateUnknownIsNotFound(t *testing.T) {
	h := newHarness(t)
	h.seeded(t)
	ctx := context.Background()

	_, err := h.lib.UpdateAuthor(ctx, "42", domain.AuthorInput{Name: "Nobody"})
	assert.ErrorIs(t, err, catalog.ErrNotFound)

	_, err = h.lib.UpdateCategory(ctx, "42", domain.CategoryInput{Name: "Nothing"})
	assert.ErrorIs(t, err, catalog.ErrNotFound)

	title := "x"
	_, err = h.lib.UpdateBook(ctx, "42", domain.BookPatch{Title: &title})
	assert.True(t, catalog.IsNotFound(err))

	assert.ErrorIs(t, h.lib.DeleteBook(ctx, "42"), catalog.ErrNotFound)
	assert.Equal(t, 0, h.sim.Calls(http.MethodPut, "/authors/42"))
}

func TestLibrary_DeleteGuard(t *testing.T) {
	h := newHarness(t)
	h.seeded(t)
	ctx := context.Background()
	before := h.lib.Snapshot()

	err := h.lib.DeleteAuthor(ctx, "1")
	var riErr *catalog.ReferentialIntegrityError
	require.True(t, errors.As(err, &riErr))
	assert.Equal(t, "Cannot delete author with existing books", err.Error())
	assert.Equal(t, 1, riErr.BookCount)

	err = h.lib.DeleteCategory(ctx, "1")
	require.ErrorIs(t, err, catalog.ErrReferentialIntegrity)
	assert.Equal(t, "Cannot delete category with existing books", err.Error())

	assert.Equal(t, 0, h.sim.Calls(http.MethodDelete, "/authors/1"))
	assert.Equal(t, 0, h.sim.Calls(http.MethodDelete, "/categories/1"))
	assert.Equal(t, before, h.lib.Snapshot())

	require.NoError(t, h.lib.DeleteAuthor(ctx, "2"))
	require.NoError(t, h.lib.DeleteCategory(ctx, "2"))
	_, ok := h.lib.Author("2")
	assert.False(t, ok)
	_, ok = h.lib.Category("2")
	assert.False(t, ok)
}

func TestLibrary_GatewayFailureLeavesStoreUntouched(t *testing.T) {
	h := newHarness(t)
	h.seeded(t)
	ctx := context.Background()
	before := h.lib.Snapshot()

	h.sim.Fail(http.MethodPut, "/authors/1", http.StatusInternalServerError, "database locked")
	_, err := h.lib.UpdateAuthor(ctx, "1", domain.AuthorInput{Name: "Augusta King"})
	var httpErr *gateway.HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, "database locked", httpErr.Message)

	h.sim.Fail(http.MethodPost, "/books", http.StatusBadRequest, "Author not found")
	_, err = h.lib.AddBook(ctx, domain.BookInput{Title: "x", AuthorID: "1", CategoryID: "1", PublicationDate: "2024-01-01"})
	require.Error(t, err)

	h.sim.Fail(http.MethodDelete, "/books/1", http.StatusServiceUnavailable, "down")
	require.Error(t, h.lib.DeleteBook(ctx, "1"))

	assert.Equal(t, before, h.lib.Snapshot())

	last := h.events.Events[len(h.events.Events)-1]
	assert.Equal(t, catalog.EventFailed, last.Event)
}

func TestLibrary_UpdateBook(t *testing.T) {
	h := newHarness(t)
	h.seeded(t)
	ctx := context.Background()

	t.Run("patches fields", func(t *testing.T) {
		title := "Notes on the Engine"
		price := 15.0
		b, err := h.lib.UpdateBook(ctx, "1", domain.BookPatch{Title: &title, Price: &price})
		require.NoError(t, err)
		assert.Equal(t, title, b.Title)
		assert.Equal(t, 15.0, b.Price)
		assert.Equal(t, "1843-09-01", b.PublicationDate)
		assert.Equal(t, "Ada Lovelace", b.AuthorName)
	})

	t.Run("moving to another author moves the count", func(t *testing.T) {
		author := "2"
		b, err := h.lib.UpdateBook(ctx, "1", domain.BookPatch{AuthorID: &author})
		require.NoError(t, err)
		assert.Equal(t, "Charles Babbage", b.AuthorName)

		ada, _ := h.lib.Author("1")
		babbage, _ := h.lib.Author("2")
		assert.Equal(t, 0, ada.BookCount)
		assert.Equal(t, 1, babbage.BookCount)
	})

	t.Run("unknown reference is rejected locally", func(t *testing.T) {
		category := "77"
		calls := h.sim.Calls(http.MethodPut, "/books/1")
		_, err := h.lib.UpdateBook(ctx, "1", domain.BookPatch{CategoryID: &category})
		assert.ErrorIs(t, err, catalog.ErrValidation)
		assert.Equal(t, calls, h.sim.Calls(http.MethodPut, "/books/1"))
	})

	t.Run("blank reference is rejected locally", func(t *testing.T) {
		blank, spaces := "", "   "
		calls := h.sim.Calls(http.MethodPut, "/books/1")
		patches := []domain.BookPatch{
			{AuthorID: &spaces},
			{CategoryID: &spaces},
			{AuthorID: &blank},
			{CategoryID: &blank},
		}
		for _, p := range patches {
			_, err := h.lib.UpdateBook(ctx, "1", p)
			assert.ErrorIs(t, err, catalog.ErrValidation)
		}
		assert.Equal(t, calls, h.sim.Calls(http.MethodPut, "/books/1"))

		b, ok := h.lib.Book("1")
		require.True(t, ok)
		assert.NotEmpty(t, b.AuthorName)
		assert.Equal(t, "Mathematics", b.CategoryName)
	})

	t.Run("invalid patch", func(t *testing.T) {
		price := -1.0
		_, err := h.lib.UpdateBook(ctx, "1", domain.BookPatch{Price: &price})
		assert.ErrorIs(t, err, catalog.ErrValidation)
	})
}

func TestLibrary_AddBookByName(t *testing.T) {
	h := newHarness(t)
	h.seeded(t)
	ctx := context.Background()

	b, err := h.lib.AddBookByName(ctx, domain.BookByNameInput{
		Title:           "Sketch",
		AuthorName:      "  charles BABBAGE ",
		CategoryName:    "engineering",
		PublicationDate: "1842-10-01",
		Price:           5,
	})
	require.NoError(t, err)
	assert.Equal(t, "Charles Babbage", b.AuthorName)
	assert.Equal(t, "Engineering", b.CategoryName)

	_, err = h.lib.AddBookByName(ctx, domain.BookByNameInput{Title: "x", AuthorName: "Nobody", CategoryName: "Mathematics"})
	var vErr *catalog.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, `Author "Nobody" not found`, vErr.Message)

	_, err = h.lib.AddBookByName(ctx, domain.BookByNameInput{Title: "x", AuthorName: "Ada Lovelace", CategoryName: "Poetry"})
	assert.ErrorIs(t, err, catalog.ErrValidation)
}

func TestLibrary_AddAuthorRequiresName(t *testing.T) {
	h := newHarness(t)
	_, err := h.lib.AddAuthor(context.Background(), domain.AuthorInput{Name: "   "})
	assert.ErrorIs(t, err, catalog.ErrValidation)
	_, err = h.lib.AddCategory(context.Background(), domain.CategoryInput{})
	assert.ErrorIs(t, err, catalog.ErrValidation)
	assert.Equal(t, 0, h.sim.Calls(http.MethodPost, "/authors/"))
	assert.Equal(t, 0, h.sim.Calls(http.MethodPost, "/categories"))
}

func TestLibrary_Events(t *testing.T) {
	h := newHarness(t)
	_, err := h.lib.AddCategory(context.Background(), domain.CategoryInput{Name: "Poetry"})
	require.NoError(t, err)

	require.Len(t, h.events.Events, 2)
	assert.Equal(t, catalog.EventPending, h.events.Events[0].Event)
	assert.Equal(t, catalog.EventChanged, h.events.Events[1].Event)
	assert.Equal(t, map[string]any{"op": "addCategory"}, h.events.Events[1].Data)
}

func TestLibrary_LoadFailureEmptiesStore(t *testing.T) {
	h := newHarness(t)
	h.seeded(t)
	require.NotEmpty(t, h.lib.Books())

	h.sim.Fail(http.MethodGet, "/categories", http.StatusInternalServerError, "boom")
	err := h.lib.Refresh(context.Background())
	require.Error(t, err)
	assert.Empty(t, h.lib.Books())
	assert.Empty(t, h.lib.Authors())
	assert.Empty(t, h.lib.Categories())
}

func TestLibrary_LoadKeepsDanglingBooks(t *testing.T) {
	h := newHarness(t)
	c := h.sim.SeedCategory("Mathematics")
	h.sim.SeedBook("Orphan", 99, c, "2024-01-01", 1)
	require.NoError(t, h.lib.Load(context.Background()))

	books := h.lib.Books()
	require.Len(t, books, 1)
	assert.Equal(t, "", books[0].AuthorName)
	assert.Equal(t, "Mathematics", books[0].CategoryName)
}

func TestLibrary_Queries(t *testing.T) {
	now := time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC)
	h := newHarness(t, catalog.WithClock(func() time.Time { return now }))
	a := h.sim.SeedAuthor("Ada", "Lovelace")
	b := h.sim.SeedAuthor("Charles", "Babbage")
	c := h.sim.SeedCategory("Mathematics")
	e := h.sim.SeedCategory("Engineering")
	h.sim.SeedBook("Notes", a, c, "2024-01-10", 10)
	h.sim.SeedBook("Engine", b, e, "2023-01-10", 20)
	h.sim.SeedBook("Difference", b, e, "2023-05-10", 30)
	require.NoError(t, h.lib.Load(context.Background()))

	stats := h.lib.Stats()
	assert.Equal(t, 3, stats.TotalBooks)
	assert.Equal(t, 1, stats.RecentBooks)
	assert.Equal(t, 60.0, stats.TotalValue)
	assert.Equal(t, 20.0, stats.AveragePrice)

	found := h.lib.SearchAuthors("love")
	require.Len(t, found, 1)
	assert.Equal(t, "Ada Lovelace", found[0].FullName)

	top := h.lib.TopAuthors(1)
	require.Len(t, top, 1)
	assert.Equal(t, "Charles Babbage", top[0].FullName)
	assert.Len(t, h.lib.TopAuthors(10), 2)

	assert.Len(t, h.lib.BooksByCategory("2"), 2)
	assert.Empty(t, h.lib.BooksByCategory("9"))
}

func TestLibrary_Ping(t *testing.T) {
	h := newHarness(t)
	assert.NoError(t, h.lib.Ping(context.Background()))

	h.sim.Fail(http.MethodGet, "/health", http.StatusServiceUnavailable, "down")
	assert.Error(t, h.lib.Ping(context.Background()))
}
