package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"librarydesk/internal/domain"
	"librarydesk/internal/gateway"
)

// Events emitted while an operation runs.
const (
	EventPending = "catalog:pending"
	EventChanged = "catalog:changed"
	EventFailed  = "catalog:failed"
)

// EventEmitter receives operation state transitions.
type EventEmitter interface {
	Emit(ctx context.Context, event string, data any)
}

type nopEmitter struct{}

func (nopEmitter) Emit(context.Context, string, any) {}

// Library owns the catalog store and is the only thing that mutates it.
// Each operation validates locally, calls the gateway and applies the
// transformed response; the store is untouched when any step fails.
type Library struct {
	gw           gateway.Gateway
	store        *Store
	emitter      EventEmitter
	logger       *zap.Logger
	now          func() time.Time
	recentWindow time.Duration
}

type Option func(*Library)

func WithEmitter(e EventEmitter) Option {
	return func(l *Library) { l.emitter = e }
}

func WithLogger(logger *zap.Logger) Option {
	return func(l *Library) { l.logger = logger.Named("catalog") }
}

func WithClock(now func() time.Time) Option {
	return func(l *Library) { l.now = now }
}

// WithRecentWindow sets the window used by Stats for recent books.
func WithRecentWindow(d time.Duration) Option {
	return func(l *Library) {
		if d > 0 {
			l.recentWindow = d
		}
	}
}

func NewLibrary(gw gateway.Gateway, opts ...Option) *Library {
	l := &Library{
		gw:           gw,
		store:        NewStore(),
		emitter:      nopEmitter{},
		logger:       zap.NewNop(),
		now:          time.Now,
		recentWindow: DefaultRecentWindow,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// track runs fn between a pending event and a changed or failed event.
func track[T any](ctx context.Context, l *Library, op string, fn func() (T, error)) (T, error) {
	l.emitter.Emit(ctx, EventPending, map[string]any{"op": op})
	v, err := fn()
	if err != nil {
		l.logger.Warn("operation failed", zap.String("op", op), zap.Error(err))
		l.emitter.Emit(ctx, EventFailed, map[string]any{"op": op, "error": err.Error()})
		return v, err
	}
	l.logger.Debug("operation succeeded", zap.String("op", op))
	l.emitter.Emit(ctx, EventChanged, map[string]any{"op": op})
	return v, nil
}

// ── Load ───────────────────────────────────────────────────

// Load fetches all three collections and replaces the store contents.
// On failure the store is emptied and the error is logged and returned.
func (l *Library) Load(ctx context.Context) error {
	_, err := track(ctx, l, "load", func() (struct{}, error) {
		snap, err := l.fetchAll(ctx)
		if err != nil {
			l.store.Reset(nil, nil, nil)
			l.logger.Error("failed to load library data", zap.Error(err))
			return struct{}{}, err
		}
		l.store.Reset(snap.Books, snap.Authors, snap.Categories)
		l.logger.Info("library loaded",
			zap.Int("books", len(snap.Books)),
			zap.Int("authors", len(snap.Authors)),
			zap.Int("categories", len(snap.Categories)))
		return struct{}{}, nil
	})
	return err
}

// Refresh re-fetches everything from the backend.
func (l *Library) Refresh(ctx context.Context) error {
	return l.Load(ctx)
}

// Ping probes backend health when the gateway supports it.
func (l *Library) Ping(ctx context.Context) error {
	if p, ok := l.gw.(gateway.Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

func (l *Library) fetchAll(ctx context.Context) (domain.Snapshot, error) {
	var rawBooks, rawAuthors, rawCategories []domain.RawRecord
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		rawBooks, err = l.gw.List(gctx, gateway.Books)
		return err
	})
	g.Go(func() (err error) {
		rawAuthors, err = l.gw.List(gctx, gateway.Authors)
		return err
	})
	g.Go(func() (err error) {
		rawCategories, err = l.gw.List(gctx, gateway.Categories)
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.Snapshot{}, fmt.Errorf("fetch library: %w", err)
	}

	var snap domain.Snapshot
	for _, raw := range rawAuthors {
		a, err := TransformAuthor(raw)
		if err != nil {
			l.logger.Warn("skipping author record", zap.Error(err))
			continue
		}
		snap.Authors = append(snap.Authors, a)
	}
	for _, raw := range rawCategories {
		c, err := TransformCategory(raw)
		if err != nil {
			l.logger.Warn("skipping category record", zap.Error(err))
			continue
		}
		snap.Categories = append(snap.Categories, c)
	}
	refs := NewRefIndex(snap.Authors, snap.Categories)
	for _, raw := range rawBooks {
		b, err := TransformBook(raw, refs)
		if err != nil {
			l.logger.Warn("skipping book record", zap.Error(err))
			continue
		}
		if _, ok := refs.Author(b.AuthorID); !ok {
			l.logger.Warn("book references unknown author",
				zap.String("book", b.ID), zap.String("author", b.AuthorID))
		}
		if _, ok := refs.Category(b.CategoryID); !ok {
			l.logger.Warn("book references unknown category",
				zap.String("book", b.ID), zap.String("category", b.CategoryID))
		}
		snap.Books = append(snap.Books, b)
	}
	return snap, nil
}

// ── Reads ──────────────────────────────────────────────────

func (l *Library) Books() []domain.Book { return l.store.Books() }

func (l *Library) Authors() []domain.Author { return l.store.Authors() }

func (l *Library) Categories() []domain.Category { return l.store.Categories() }

// Snapshot returns a consistent copy of the three collections.
func (l *Library) Snapshot() domain.Snapshot { return l.store.Snapshot() }

func (l *Library) Book(id string) (domain.Book, bool) { return l.store.Book(id) }

func (l *Library) Author(id string) (domain.Author, bool) { return l.store.Author(id) }

func (l *Library) Category(id string) (domain.Category, bool) { return l.store.Category(id) }

// Stats computes the dashboard metrics from the current store contents.
func (l *Library) Stats() domain.LibraryStats {
	return ComputeStats(l.store.Snapshot(), l.now(), l.recentWindow)
}

// SearchAuthors returns authors whose full name contains q, case-insensitively.
func (l *Library) SearchAuthors(q string) []domain.Author {
	q = strings.ToLower(strings.TrimSpace(q))
	out := []domain.Author{}
	for _, a := range l.store.Authors() {
		if strings.Contains(strings.ToLower(a.FullName), q) {
			out = append(out, a)
		}
	}
	return out
}

// TopAuthors returns up to n authors ordered by book count, then name.
func (l *Library) TopAuthors(n int) []domain.Author {
	authors := l.store.Authors()
	sort.SliceStable(authors, func(i, j int) bool {
		if authors[i].BookCount != authors[j].BookCount {
			return authors[i].BookCount > authors[j].BookCount
		}
		return authors[i].FullName < authors[j].FullName
	})
	if n >= 0 && n < len(authors) {
		authors = authors[:n]
	}
	return authors
}

func (l *Library) BooksByCategory(categoryID string) []domain.Book {
	id := NormalizeID(categoryID)
	out := []domain.Book{}
	for _, b := range l.store.Books() {
		if b.CategoryID == id {
			out = append(out, b)
		}
	}
	return out
}

func (l *Library) BooksByAuthor(authorID string) []domain.Book {
	id := NormalizeID(authorID)
	out := []domain.Book{}
	for _, b := range l.store.Books() {
		if b.AuthorID == id {
			out = append(out, b)
		}
	}
	return out
}

// ── Books ──────────────────────────────────────────────────

func (l *Library) AddBook(ctx context.Context, in domain.BookInput) (domain.Book, error) {
	return track(ctx, l, "addBook", func() (domain.Book, error) {
		return l.addBook(ctx, in)
	})
}

func (l *Library) addBook(ctx context.Context, in domain.BookInput) (domain.Book, error) {
	in.AuthorID = NormalizeID(in.AuthorID)
	in.CategoryID = NormalizeID(in.CategoryID)
	if err := validateStruct(in); err != nil {
		return domain.Book{}, err
	}
	refs := l.store.Refs()
	if err := checkRefs(refs, in.AuthorID, in.CategoryID); err != nil {
		return domain.Book{}, err
	}

	payload := bookPayload(in)
	raw, err := l.gw.Create(ctx, gateway.Books, payload)
	if err != nil {
		return domain.Book{}, fmt.Errorf("create book: %w", err)
	}
	book, err := TransformBook(overlay(payload, raw), refs)
	if err != nil {
		return domain.Book{}, err
	}
	l.store.AppendBook(book)
	return l.viewBook(book), nil
}

// AddBookByName resolves the author by full name and the category by name,
// both case-insensitively, then adds the book.
func (l *Library) AddBookByName(ctx context.Context, in domain.BookByNameInput) (domain.Book, error) {
	return track(ctx, l, "addBookByName", func() (domain.Book, error) {
		author, ok := l.findAuthorByName(in.AuthorName)
		if !ok {
			return domain.Book{}, &ValidationError{
				Field:   "authorName",
				Message: fmt.Sprintf("Author %q not found", strings.TrimSpace(in.AuthorName)),
			}
		}
		category, ok := l.findCategoryByName(in.CategoryName)
		if !ok {
			return domain.Book{}, &ValidationError{
				Field:   "categoryName",
				Message: fmt.Sprintf("Category %q not found", strings.TrimSpace(in.CategoryName)),
			}
		}
		return l.addBook(ctx, domain.BookInput{
			Title:           in.Title,
			Description:     in.Description,
			AuthorID:        author.ID,
			CategoryID:      category.ID,
			PublicationDate: in.PublicationDate,
			Price:           in.Price,
		})
	})
}

func (l *Library) UpdateBook(ctx context.Context, id string, patch domain.BookPatch) (domain.Book, error) {
	return track(ctx, l, "updateBook", func() (domain.Book, error) {
		id := NormalizeID(id)
		current, ok := l.store.Book(id)
		if !ok {
			return domain.Book{}, &NotFoundError{Kind: "book", ID: id}
		}
		if err := validateStruct(patch); err != nil {
			return domain.Book{}, err
		}

		in := applyPatch(current, patch)
		refs := l.store.Refs()
		// references named in the patch are always checked; a blank id
		// survives the tag check as whitespace and is trimmed by applyPatch
		var authorID, categoryID string
		if patch.AuthorID != nil {
			if in.AuthorID == "" {
				return domain.Book{}, &ValidationError{Field: "authorId", Message: "is required"}
			}
			authorID = in.AuthorID
		}
		if patch.CategoryID != nil {
			if in.CategoryID == "" {
				return domain.Book{}, &ValidationError{Field: "categoryId", Message: "is required"}
			}
			categoryID = in.CategoryID
		}
		if err := checkRefs(refs, authorID, categoryID); err != nil {
			return domain.Book{}, err
		}

		payload := bookPayload(in)
		payload["id"] = wireID(id)
		raw, err := l.gw.Update(ctx, gateway.Books, id, payload)
		if err != nil {
			return domain.Book{}, fmt.Errorf("update book %s: %w", id, err)
		}
		book, err := TransformBook(overlay(payload, raw), refs)
		if err != nil {
			return domain.Book{}, err
		}
		book.ID = id
		l.store.ReplaceBook(book)
		return l.viewBook(book), nil
	})
}

func (l *Library) DeleteBook(ctx context.Context, id string) error {
	_, err := track(ctx, l, "deleteBook", func() (struct{}, error) {
		id := NormalizeID(id)
		if _, ok := l.store.Book(id); !ok {
			return struct{}{}, &NotFoundError{Kind: "book", ID: id}
		}
		if err := l.gw.Delete(ctx, gateway.Books, id); err != nil {
			return struct{}{}, fmt.Errorf("delete book %s: %w", id, err)
		}
		l.store.RemoveBook(id)
		return struct{}{}, nil
	})
	return err
}

// ── Authors ────────────────────────────────────────────────

func (l *Library) AddAuthor(ctx context.Context, in domain.AuthorInput) (domain.Author, error) {
	return track(ctx, l, "addAuthor", func() (domain.Author, error) {
		in.Name = strings.TrimSpace(in.Name)
		if err := validateStruct(in); err != nil {
			return domain.Author{}, err
		}
		payload := map[string]any{"name": in.Name, "bio": in.Bio}
		raw, err := l.gw.Create(ctx, gateway.Authors, payload)
		if err != nil {
			return domain.Author{}, fmt.Errorf("create author: %w", err)
		}
		author, err := TransformAuthor(overlay(payload, raw))
		if err != nil {
			return domain.Author{}, err
		}
		l.store.AppendAuthor(author)
		a, _ := l.store.Author(author.ID)
		return a, nil
	})
}

// UpdateAuthor replaces the author; books referencing it show the new name
// on their next read.
func (l *Library) UpdateAuthor(ctx context.Context, id string, in domain.AuthorInput) (domain.Author, error) {
	return track(ctx, l, "updateAuthor", func() (domain.Author, error) {
		id := NormalizeID(id)
		if _, ok := l.store.Author(id); !ok {
			return domain.Author{}, &NotFoundError{Kind: "author", ID: id}
		}
		in.Name = strings.TrimSpace(in.Name)
		if err := validateStruct(in); err != nil {
			return domain.Author{}, err
		}
		payload := map[string]any{"name": in.Name, "bio": in.Bio}
		raw, err := l.gw.Update(ctx, gateway.Authors, id, payload)
		if err != nil {
			return domain.Author{}, fmt.Errorf("update author %s: %w", id, err)
		}
		author, err := TransformAuthor(overlay(map[string]any{"author_id": id, "name": in.Name, "bio": in.Bio}, raw))
		if err != nil {
			return domain.Author{}, err
		}
		author.ID = id
		l.store.ReplaceAuthor(author)
		a, _ := l.store.Author(id)
		return a, nil
	})
}

// DeleteAuthor refuses, without a network call, while any book references
// the author.
func (l *Library) DeleteAuthor(ctx context.Context, id string) error {
	_, err := track(ctx, l, "deleteAuthor", func() (struct{}, error) {
		id := NormalizeID(id)
		a, ok := l.store.Author(id)
		if !ok {
			return struct{}{}, &NotFoundError{Kind: "author", ID: id}
		}
		if a.BookCount > 0 {
			return struct{}{}, &ReferentialIntegrityError{Kind: "author", ID: id, BookCount: a.BookCount}
		}
		if err := l.gw.Delete(ctx, gateway.Authors, id); err != nil {
			return struct{}{}, fmt.Errorf("delete author %s: %w", id, err)
		}
		l.store.RemoveAuthor(id)
		return struct{}{}, nil
	})
	return err
}

// ── Categories ─────────────────────────────────────────────

func (l *Library) AddCategory(ctx context.Context, in domain.CategoryInput) (domain.Category, error) {
	return track(ctx, l, "addCategory", func() (domain.Category, error) {
		in.Name = strings.TrimSpace(in.Name)
		if err := validateStruct(in); err != nil {
			return domain.Category{}, err
		}
		payload := map[string]any{"name": in.Name}
		raw, err := l.gw.Create(ctx, gateway.Categories, payload)
		if err != nil {
			return domain.Category{}, fmt.Errorf("create category: %w", err)
		}
		category, err := TransformCategory(overlay(payload, raw))
		if err != nil {
			return domain.Category{}, err
		}
		l.store.AppendCategory(category)
		c, _ := l.store.Category(category.ID)
		return c, nil
	})
}

func (l *Library) UpdateCategory(ctx context.Context, id string, in domain.CategoryInput) (domain.Category, error) {
	return track(ctx, l, "updateCategory", func() (domain.Category, error) {
		id := NormalizeID(id)
		if _, ok := l.store.Category(id); !ok {
			return domain.Category{}, &NotFoundError{Kind: "category", ID: id}
		}
		in.Name = strings.TrimSpace(in.Name)
		if err := validateStruct(in); err != nil {
			return domain.Category{}, err
		}
		payload := map[string]any{"id": wireID(id), "name": in.Name}
		raw, err := l.gw.Update(ctx, gateway.Categories, id, payload)
		if err != nil {
			return domain.Category{}, fmt.Errorf("update category %s: %w", id, err)
		}
		category, err := TransformCategory(overlay(payload, raw))
		if err != nil {
			return domain.Category{}, err
		}
		category.ID = id
		l.store.ReplaceCategory(category)
		c, _ := l.store.Category(id)
		return c, nil
	})
}

func (l *Library) DeleteCategory(ctx context.Context, id string) error {
	_, err := track(ctx, l, "deleteCategory", func() (struct{}, error) {
		id := NormalizeID(id)
		c, ok := l.store.Category(id)
		if !ok {
			return struct{}{}, &NotFoundError{Kind: "category", ID: id}
		}
		if c.BookCount > 0 {
			return struct{}{}, &ReferentialIntegrityError{Kind: "category", ID: id, BookCount: c.BookCount}
		}
		if err := l.gw.Delete(ctx, gateway.Categories, id); err != nil {
			return struct{}{}, fmt.Errorf("delete category %s: %w", id, err)
		}
		l.store.RemoveCategory(id)
		return struct{}{}, nil
	})
	return err
}

// ── Helpers ────────────────────────────────────────────────

func (l *Library) viewBook(b domain.Book) domain.Book {
	if v, ok := l.store.Book(b.ID); ok {
		return v
	}
	return b
}

func (l *Library) findAuthorByName(name string) (domain.Author, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, a := range l.store.Authors() {
		if strings.ToLower(a.FullName) == name {
			return a, true
		}
	}
	return domain.Author{}, false
}

func (l *Library) findCategoryByName(name string) (domain.Category, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, c := range l.store.Categories() {
		if strings.ToLower(c.Name) == name {
			return c, true
		}
	}
	return domain.Category{}, false
}

// checkRefs verifies the given ids exist. An empty id is skipped.
func checkRefs(refs *RefIndex, authorID, categoryID string) error {
	if authorID != "" {
		if _, ok := refs.Author(authorID); !ok {
			return &ValidationError{Field: "authorId", Message: fmt.Sprintf("Author ID %s not found", authorID)}
		}
	}
	if categoryID != "" {
		if _, ok := refs.Category(categoryID); !ok {
			return &ValidationError{Field: "categoryId", Message: fmt.Sprintf("Category ID %s not found", categoryID)}
		}
	}
	return nil
}

func bookPayload(in domain.BookInput) map[string]any {
	return map[string]any{
		"title":            in.Title,
		"description":      in.Description,
		"author_id":        wireID(NormalizeID(in.AuthorID)),
		"category_id":      wireID(NormalizeID(in.CategoryID)),
		"publication_date": in.PublicationDate,
		"price":            in.Price,
	}
}

func applyPatch(b domain.Book, p domain.BookPatch) domain.BookInput {
	in := domain.BookInput{
		Title:           b.Title,
		Description:     b.Description,
		AuthorID:        b.AuthorID,
		CategoryID:      b.CategoryID,
		PublicationDate: b.PublicationDate,
		Price:           b.Price,
	}
	if p.Title != nil {
		in.Title = *p.Title
	}
	if p.Description != nil {
		in.Description = *p.Description
	}
	if p.AuthorID != nil {
		in.AuthorID = NormalizeID(*p.AuthorID)
	}
	if p.CategoryID != nil {
		in.CategoryID = NormalizeID(*p.CategoryID)
	}
	if p.PublicationDate != nil {
		in.PublicationDate = *p.PublicationDate
	}
	if p.Price != nil {
		in.Price = *p.Price
	}
	return in
}

// overlay layers the backend response over the request payload so fields
// the backend does not echo keep their submitted values.
func overlay(payload map[string]any, resp domain.RawRecord) domain.RawRecord {
	out := make(domain.RawRecord, len(payload)+len(resp))
	for k, v := range payload {
		out[k] = v
	}
	for k, v := range resp {
		if v != nil {
			out[k] = v
		}
	}
	return out
}

// IsNotFound reports whether err is a local or remote not-found.
func IsNotFound(err error) bool {
	if errors.Is(err, ErrNotFound) {
		return true
	}
	var httpErr *gateway.HTTPError
	return errors.As(err, &httpErr) && httpErr.NotFound()
}
