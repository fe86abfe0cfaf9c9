package catalog

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"librarydesk/internal/domain"
)

// ── Record Transformers ────────────────────────────────────
// Pure conversions from backend records to typed entities. Nothing here
// touches the store, the network or a logger.

var errMissingID = errors.New("record has no id")

// RefIndex resolves author and category ids to their display names.
type RefIndex struct {
	authors    map[string]domain.Author
	categories map[string]domain.Category
}

// NewRefIndex indexes the given collections by id.
func NewRefIndex(authors []domain.Author, categories []domain.Category) *RefIndex {
	idx := &RefIndex{
		authors:    make(map[string]domain.Author, len(authors)),
		categories: make(map[string]domain.Category, len(categories)),
	}
	for _, a := range authors {
		idx.authors[a.ID] = a
	}
	for _, c := range categories {
		idx.categories[c.ID] = c
	}
	return idx
}

func (r *RefIndex) Author(id string) (domain.Author, bool) {
	if r == nil {
		return domain.Author{}, false
	}
	a, ok := r.authors[NormalizeID(id)]
	return a, ok
}

func (r *RefIndex) Category(id string) (domain.Category, bool) {
	if r == nil {
		return domain.Category{}, false
	}
	c, ok := r.categories[NormalizeID(id)]
	return c, ok
}

// AuthorName returns the resolved full name or "" when unresolved.
func (r *RefIndex) AuthorName(id string) string {
	a, _ := r.Author(id)
	return a.FullName
}

// CategoryName returns the resolved name or "" when unresolved.
func (r *RefIndex) CategoryName(id string) string {
	c, _ := r.Category(id)
	return c.Name
}

// FullName joins first and last name the way the console displays authors.
func FullName(first, last string) string {
	return strings.TrimSpace(first + " " + last)
}

// SplitName splits a full name on its first space, as the backend does.
func SplitName(name string) (first, last string) {
	name = strings.TrimSpace(name)
	first, last, _ = strings.Cut(name, " ")
	return first, strings.TrimSpace(last)
}

// TransformAuthor converts a backend author record. The id is read from
// "author_id" and falls back to "id".
func TransformAuthor(raw domain.RawRecord) (domain.Author, error) {
	id := firstID(raw, "author_id", "id")
	if id == "" {
		return domain.Author{}, fmt.Errorf("transform author: %w", errMissingID)
	}
	first := str(raw["first_name"])
	last := str(raw["last_name"])
	if first == "" && last == "" {
		first, last = SplitName(str(raw["name"]))
	}
	a := domain.Author{
		ID:            id,
		FirstName:     first,
		LastName:      last,
		FullName:      FullName(first, last),
		Bio:           str(raw["bio"]),
		DateOfBirth:   str(raw["date_of_birth"]),
		DateOfDeath:   str(raw["date_of_death"]),
		Nationality:   str(raw["nationality"]),
		CreatedAt:     str(raw["created_at"]),
		UpdatedAt:     str(raw["updated_at"]),
		AverageRating: num(raw["average_rating"]),
		BookCount:     int(num(raw["book_count"])),
		Books:         records(raw["books"]),
	}
	return a, nil
}

// TransformCategory converts a backend category record.
func TransformCategory(raw domain.RawRecord) (domain.Category, error) {
	id := firstID(raw, "id")
	if id == "" {
		return domain.Category{}, fmt.Errorf("transform category: %w", errMissingID)
	}
	count := raw["bookCount"]
	if count == nil {
		count = raw["book_count"]
	}
	return domain.Category{
		ID:        id,
		Name:      str(raw["name"]),
		BookCount: int(num(count)),
	}, nil
}

// TransformBook converts a backend book record and resolves the author and
// category names through refs. A dangling reference yields an empty name.
func TransformBook(raw domain.RawRecord, refs *RefIndex) (domain.Book, error) {
	id := firstID(raw, "id")
	if id == "" {
		return domain.Book{}, fmt.Errorf("transform book: %w", errMissingID)
	}
	authorID := firstID(raw, "author_id", "authorId")
	categoryID := firstID(raw, "category_id", "categoryId")
	pub := str(raw["publication_date"])
	if pub == "" {
		pub = str(raw["published_date"])
	}
	return domain.Book{
		ID:              id,
		Title:           str(raw["title"]),
		Description:     str(raw["description"]),
		AuthorID:        authorID,
		AuthorName:      refs.AuthorName(authorID),
		CategoryID:      categoryID,
		CategoryName:    refs.CategoryName(categoryID),
		PublicationDate: pub,
		Price:           num(raw["price"]),
	}, nil
}

// NormalizeID renders ids so that 1, 1.0 and "1" compare equal. Only plain
// integers (optionally with a zero fraction) are rewritten; anything else,
// "007" included, is kept as given.
func NormalizeID(s string) string {
	s = strings.TrimSpace(s)
	digits := s
	if i := strings.IndexByte(s, '.'); i > 0 && i < len(s)-1 && strings.Trim(s[i+1:], "0") == "" {
		digits = s[:i]
	}
	if !plainInteger(digits) {
		return s
	}
	return digits
}

// plainInteger reports whether s is a base-10 integer without sign,
// exponent or leading zeros.
func plainInteger(s string) bool {
	if s == "" || (len(s) > 1 && s[0] == '0') {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func idString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return NormalizeID(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		return NormalizeID(fmt.Sprint(t))
	}
}

func firstID(raw domain.RawRecord, keys ...string) string {
	for _, k := range keys {
		if id := idString(raw[k]); id != "" {
			return id
		}
	}
	return ""
}

func str(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

func num(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case float32:
		return float64(t)
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case string:
		f, _ := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f
	default:
		return 0
	}
}

func records(v any) []domain.RawRecord {
	list, ok := v.([]any)
	if !ok {
		return []domain.RawRecord{}
	}
	out := make([]domain.RawRecord, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			out = append(out, domain.RawRecord(m))
		}
	}
	return out
}

// wireID turns a store id back into the numeric form the backend expects
// when it is numeric.
func wireID(id string) any {
	if n, err := strconv.ParseInt(id, 10, 64); err == nil {
		return n
	}
	return id
}
