package domain

// BookInput is what the console submits to create a book. References are ids.
type BookInput struct {
	Title           string  `json:"title" validate:"required,max=200"`
	Description     string  `json:"description"`
	AuthorID        string  `json:"authorId" validate:"required"`
	CategoryID      string  `json:"categoryId" validate:"required"`
	PublicationDate string  `json:"publicationDate" validate:"required,isodate"`
	Price           float64 `json:"price" validate:"finite,gte=0"`
}

// BookByNameInput creates a book by author full name and category name.
type BookByNameInput struct {
	Title           string  `json:"title"`
	Description     string  `json:"description"`
	AuthorName      string  `json:"authorName"`
	CategoryName    string  `json:"categoryName"`
	PublicationDate string  `json:"publicationDate"`
	Price           float64 `json:"price"`
}

// BookPatch is a partial update; nil fields are left unchanged.
type BookPatch struct {
	Title           *string  `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
	Description     *string  `json:"description,omitempty"`
	AuthorID        *string  `json:"authorId,omitempty" validate:"omitempty,min=1"`
	CategoryID      *string  `json:"categoryId,omitempty" validate:"omitempty,min=1"`
	PublicationDate *string  `json:"publicationDate,omitempty" validate:"omitempty,isodate"`
	Price           *float64 `json:"price,omitempty" validate:"omitempty,finite,gte=0"`
}

// AuthorInput carries a full name; the backend splits it into first and last.
type AuthorInput struct {
	Name string `json:"name" validate:"required"`
	Bio  string `json:"bio"`
}

type CategoryInput struct {
	Name string `json:"name" validate:"required"`
}

// ImportRow is one row of a bulk import file. An unreadable price is NaN
// and is rejected with the row.
type ImportRow struct {
	Title           string  `json:"title"`
	Description     string  `json:"description"`
	AuthorID        string  `json:"authorId"`
	CategoryID      string  `json:"categoryId"`
	PublicationDate string  `json:"publicationDate"`
	Price           float64 `json:"price"`
}

// ImportResult is the settled outcome of a bulk import. Errors are keyed by
// 1-based row number inside the message, in input order.
type ImportResult struct {
	ImportedCount int      `json:"importedCount"`
	Errors        []string `json:"errors"`
	Imported      []Book   `json:"imported,omitempty"`
}
