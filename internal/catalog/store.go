package catalog

import (
	"sync"

	"librarydesk/internal/domain"
)

// ── Aggregate Store ────────────────────────────────────────
// Three ordered collections behind one RWMutex. Books keep only their
// references; AuthorName, CategoryName and the BookCount fields are filled
// on every read so they cannot drift from the entities they mirror.

type entity interface {
	EntityID() string
}

type collection[T entity] struct {
	items []T
}

func (c *collection[T]) append(items ...T) {
	c.items = append(c.items, items...)
}

func (c *collection[T]) indexOf(id string) int {
	for i, item := range c.items {
		if item.EntityID() == id {
			return i
		}
	}
	return -1
}

func (c *collection[T]) get(id string) (T, bool) {
	if i := c.indexOf(id); i >= 0 {
		return c.items[i], true
	}
	var zero T
	return zero, false
}

func (c *collection[T]) replace(item T) bool {
	i := c.indexOf(item.EntityID())
	if i < 0 {
		return false
	}
	c.items[i] = item
	return true
}

func (c *collection[T]) remove(id string) bool {
	i := c.indexOf(id)
	if i < 0 {
		return false
	}
	c.items = append(c.items[:i:i], c.items[i+1:]...)
	return true
}

func (c *collection[T]) clone() []T {
	out := make([]T, len(c.items))
	copy(out, c.items)
	return out
}

// Store holds the session's catalog state. It never talks to the network.
type Store struct {
	mu         sync.RWMutex
	books      collection[domain.Book]
	authors    collection[domain.Author]
	categories collection[domain.Category]
}

func NewStore() *Store {
	return &Store{}
}

// ── Reads ──────────────────────────────────────────────────

// view holds the derived lookups for one read.
type view struct {
	refs           *RefIndex
	authorCounts   map[string]int
	categoryCounts map[string]int
}

// viewLocked must be called with at least the read lock held.
func (s *Store) viewLocked() view {
	v := view{
		refs:           NewRefIndex(s.authors.items, s.categories.items),
		authorCounts:   make(map[string]int),
		categoryCounts: make(map[string]int),
	}
	for _, b := range s.books.items {
		v.authorCounts[b.AuthorID]++
		v.categoryCounts[b.CategoryID]++
	}
	// Names on the index itself must be the derived ones.
	for id, a := range v.refs.authors {
		a.FullName = FullName(a.FirstName, a.LastName)
		v.refs.authors[id] = a
	}
	return v
}

func (v view) book(b domain.Book) domain.Book {
	b.AuthorName = v.refs.AuthorName(b.AuthorID)
	b.CategoryName = v.refs.CategoryName(b.CategoryID)
	return b
}

func (v view) author(a domain.Author) domain.Author {
	a.FullName = FullName(a.FirstName, a.LastName)
	a.BookCount = v.authorCounts[a.ID]
	return a
}

func (v view) category(c domain.Category) domain.Category {
	c.BookCount = v.categoryCounts[c.ID]
	return c
}

func (s *Store) Books() []domain.Book {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v := s.viewLocked()
	out := s.books.clone()
	for i := range out {
		out[i] = v.book(out[i])
	}
	return out
}

func (s *Store) Authors() []domain.Author {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v := s.viewLocked()
	out := s.authors.clone()
	for i := range out {
		out[i] = v.author(out[i])
	}
	return out
}

func (s *Store) Categories() []domain.Category {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v := s.viewLocked()
	out := s.categories.clone()
	for i := range out {
		out[i] = v.category(out[i])
	}
	return out
}

// Snapshot returns a consistent copy of all three collections.
func (s *Store) Snapshot() domain.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v := s.viewLocked()
	snap := domain.Snapshot{
		Books:      s.books.clone(),
		Authors:    s.authors.clone(),
		Categories: s.categories.clone(),
	}
	for i := range snap.Books {
		snap.Books[i] = v.book(snap.Books[i])
	}
	for i := range snap.Authors {
		snap.Authors[i] = v.author(snap.Authors[i])
	}
	for i := range snap.Categories {
		snap.Categories[i] = v.category(snap.Categories[i])
	}
	return snap
}

func (s *Store) Book(id string) (domain.Book, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.books.get(NormalizeID(id))
	if !ok {
		return b, false
	}
	return s.viewLocked().book(b), true
}

func (s *Store) Author(id string) (domain.Author, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.authors.get(NormalizeID(id))
	if !ok {
		return a, false
	}
	return s.viewLocked().author(a), true
}

func (s *Store) Category(id string) (domain.Category, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.categories.get(NormalizeID(id))
	if !ok {
		return c, false
	}
	return s.viewLocked().category(c), true
}

// Refs returns an index over the current authors and categories.
func (s *Store) Refs() *RefIndex {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.viewLocked().refs
}

// ── Mutations ──────────────────────────────────────────────

// Reset replaces all three collections at once.
func (s *Store) Reset(books []domain.Book, authors []domain.Author, categories []domain.Category) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.books.items = append([]domain.Book(nil), books...)
	s.authors.items = append([]domain.Author(nil), authors...)
	s.categories.items = append([]domain.Category(nil), categories...)
}

func (s *Store) AppendBook(b domain.Book) {
	s.AppendBooks(b)
}

// AppendBooks appends all books under a single lock acquisition.
func (s *Store) AppendBooks(books ...domain.Book) {
	if len(books) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.books.append(books...)
}

func (s *Store) ReplaceBook(b domain.Book) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.books.replace(b)
}

func (s *Store) RemoveBook(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.books.remove(NormalizeID(id))
}

func (s *Store) AppendAuthor(a domain.Author) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authors.append(a)
}

func (s *Store) ReplaceAuthor(a domain.Author) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authors.replace(a)
}

func (s *Store) RemoveAuthor(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authors.remove(NormalizeID(id))
}

func (s *Store) AppendCategory(c domain.Category) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories.append(c)
}

func (s *Store) ReplaceCategory(c domain.Category) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.categories.replace(c)
}

func (s *Store) RemoveCategory(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.categories.remove(NormalizeID(id))
}
