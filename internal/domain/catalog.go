package domain

// Book is the display-ready catalog entry. AuthorName and CategoryName are
// views over the referenced Author and Category and are filled on read.
type Book struct {
	ID              string  `json:"id"`
	Title           string  `json:"title"`
	Description     string  `json:"description"`
	AuthorID        string  `json:"authorId"`
	AuthorName      string  `json:"authorName"`
	CategoryID      string  `json:"categoryId"`
	CategoryName    string  `json:"categoryName"`
	PublicationDate string  `json:"publicationDate"`
	Price           float64 `json:"price"`
}

func (b Book) EntityID() string { return b.ID }

// Author mirrors the backend author record. FullName and BookCount are derived.
type Author struct {
	ID            string      `json:"id"`
	FirstName     string      `json:"firstName"`
	LastName      string      `json:"lastName"`
	FullName      string      `json:"fullName"`
	Bio           string      `json:"bio"`
	DateOfBirth   string      `json:"dateOfBirth,omitempty"`
	DateOfDeath   string      `json:"dateOfDeath,omitempty"`
	Nationality   string      `json:"nationality"`
	CreatedAt     string      `json:"createdAt,omitempty"`
	UpdatedAt     string      `json:"updatedAt,omitempty"`
	AverageRating float64     `json:"averageRating"`
	BookCount     int         `json:"bookCount"`
	Books         []RawRecord `json:"books"`
}

func (a Author) EntityID() string { return a.ID }

// Category is a named shelf. BookCount is derived from the books collection.
type Category struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	BookCount int    `json:"bookCount"`
}

func (c Category) EntityID() string { return c.ID }

// RawRecord is an untyped record as returned by the backend.
// Only the catalog transformers turn it into typed entities.
type RawRecord map[string]any

// LibraryStats is the dashboard summary.
type LibraryStats struct {
	TotalBooks      int     `json:"totalBooks"`
	TotalAuthors    int     `json:"totalAuthors"`
	TotalCategories int     `json:"totalCategories"`
	RecentBooks     int     `json:"recentBooks"`
	AveragePrice    float64 `json:"averagePrice"`
	TotalValue      float64 `json:"totalValue"`
}

// Snapshot is a consistent copy of the three collections.
type Snapshot struct {
	Books      []Book     `json:"books"`
	Authors    []Author   `json:"authors"`
	Categories []Category `json:"categories"`
}
