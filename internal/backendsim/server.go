// Package backendsim is an in-memory stand-in for the catalog REST backend.
// It follows the same routes, payloads and error bodies, so the console
// can be developed and tested without the real service.
package backendsim

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type record = map[string]any

type fault struct {
	status int
	detail string
}

// Server holds the backend state. All handlers share one mutex.
type Server struct {
	mu         sync.Mutex
	books      []record
	authors    []record
	categories []record
	nextID     map[string]int
	faults     map[string]fault
	calls      map[string]int

	engine *gin.Engine
	logger *zap.Logger
}

func New(logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		nextID: map[string]int{"books": 1, "authors": 1, "categories": 1},
		faults: make(map[string]fault),
		calls:  make(map[string]int),
		logger: logger.Named("backendsim"),
	}
	s.engine = s.routes()
	return s
}

// Handler exposes the gin engine, e.g. for httptest.NewServer.
func (s *Server) Handler() http.Handler { return s.engine }

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.engine,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("backend simulator listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// Fail makes every later request matching method and path answer with
// status and a FastAPI-style detail body, until Clear is called.
func (s *Server) Fail(method, path string, status int, detail string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[method+" "+path] = fault{status: status, detail: detail}
}

// Clear removes all injected faults.
func (s *Server) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = make(map[string]fault)
}

// Calls returns how many requests reached method and path.
func (s *Server) Calls(method, path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method+" "+path]
}

// SeedAuthor inserts an author directly and returns its id.
func (s *Server) SeedAuthor(first, last string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertAuthor(first, last, "")
}

// SeedCategory inserts a category directly and returns its id.
func (s *Server) SeedCategory(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.next("categories")
	s.categories = append(s.categories, record{"id": id, "name": name})
	return id
}

// SeedBook inserts a book directly, without reference checks, and returns its id.
func (s *Server) SeedBook(title string, authorID, categoryID int, published string, price float64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.next("books")
	s.books = append(s.books, record{
		"id":               id,
		"title":            title,
		"description":      "",
		"author_id":        authorID,
		"category_id":      categoryID,
		"publication_date": published,
		"price":            price,
	})
	return id
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.accessLog(), s.faultInjector())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})

	r.GET("/books", s.listBooks)
	r.POST("/books", s.createBook)
	r.GET("/books/:id", s.getBook)
	r.PUT("/books/:id", s.updateBook)
	r.DELETE("/books/:id", s.deleteBook)

	r.GET("/authors/", s.listAuthors)
	r.POST("/authors/", s.createAuthor)
	r.GET("/authors/:id", s.getAuthor)
	r.PUT("/authors/:id", s.updateAuthor)
	r.DELETE("/authors/:id", s.deleteAuthor)

	r.GET("/categories", s.listCategories)
	r.POST("/categories", s.createCategory)
	r.PUT("/categories/:id", s.updateCategory)
	r.DELETE("/categories/:id", s.deleteCategory)
	r.GET("/categories/:id/books", s.categoryBooks)
	return r
}

// ── Middleware ─────────────────────────────────────────────

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("access_log",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status_code", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("request_id", c.GetHeader("X-Request-ID")))
	}
}

func (s *Server) faultInjector() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.Request.Method + " " + c.Request.URL.Path
		s.mu.Lock()
		s.calls[key]++
		f, ok := s.faults[key]
		s.mu.Unlock()
		if ok {
			c.AbortWithStatusJSON(f.status, gin.H{"detail": f.detail})
			return
		}
		c.Next()
	}
}

// ── Books ──────────────────────────────────────────────────

type bookBody struct {
	Title           string  `json:"title"`
	Description     string  `json:"description"`
	AuthorID        int     `json:"author_id"`
	CategoryID      int     `json:"category_id"`
	PublicationDate string  `json:"publication_date"`
	Price           float64 `json:"price"`
}

func (b bookBody) validate() string {
	switch {
	case b.Title == "":
		return "title is required"
	case b.AuthorID <= 0:
		return "author_id is required"
	case b.CategoryID <= 0:
		return "category_id is required"
	case b.PublicationDate == "":
		return "publication_date is required"
	}
	if _, err := time.Parse("2006-01-02", b.PublicationDate); err != nil {
		return "publication_date must be a date"
	}
	return ""
}

func (s *Server) listBooks(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.JSON(http.StatusOK, s.books)
}

func (s *Server) getBook(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := indexOf(s.books, "id", c.Param("id"))
	if i < 0 {
		notFound(c, "Book not found")
		return
	}
	c.JSON(http.StatusOK, s.books[i])
}

func (s *Server) createBook(c *gin.Context) {
	var body bookBody
	if err := c.ShouldBindJSON(&body); err != nil {
		unprocessable(c, err.Error())
		return
	}
	if msg := body.validate(); msg != "" {
		unprocessable(c, msg)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if indexOf(s.authors, "author_id", strconv.Itoa(body.AuthorID)) < 0 {
		badRequest(c, "Author not found")
		return
	}
	if indexOf(s.categories, "id", strconv.Itoa(body.CategoryID)) < 0 {
		badRequest(c, "Category not found")
		return
	}
	book := bookRecord(s.next("books"), body)
	s.books = append(s.books, book)
	c.JSON(http.StatusCreated, book)
}

func (s *Server) updateBook(c *gin.Context) {
	var body bookBody
	if err := c.ShouldBindJSON(&body); err != nil {
		unprocessable(c, err.Error())
		return
	}
	if msg := body.validate(); msg != "" {
		unprocessable(c, msg)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	i := indexOf(s.books, "id", c.Param("id"))
	if i < 0 {
		notFound(c, "Book not found")
		return
	}
	s.books[i] = bookRecord(s.books[i]["id"].(int), body)
	c.JSON(http.StatusOK, s.books[i])
}

func (s *Server) deleteBook(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := indexOf(s.books, "id", c.Param("id"))
	if i < 0 {
		notFound(c, "Book not found")
		return
	}
	s.books = append(s.books[:i], s.books[i+1:]...)
	c.JSON(http.StatusOK, gin.H{"message": "Book deleted successfully"})
}

func bookRecord(id int, b bookBody) record {
	return record{
		"id":               id,
		"title":            b.Title,
		"description":      b.Description,
		"author_id":        b.AuthorID,
		"category_id":      b.CategoryID,
		"publication_date": b.PublicationDate,
		"price":            b.Price,
	}
}

// ── Authors ────────────────────────────────────────────────

type authorBody struct {
	Name string `json:"name"`
	Bio  string `json:"bio"`
}

func (s *Server) listAuthors(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.JSON(http.StatusOK, s.authors)
}

func (s *Server) getAuthor(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := indexOf(s.authors, "author_id", c.Param("id"))
	if i < 0 {
		notFound(c, "Author not found")
		return
	}
	c.JSON(http.StatusOK, s.authors[i])
}

func (s *Server) createAuthor(c *gin.Context) {
	var body authorBody
	if err := c.ShouldBindJSON(&body); err != nil || strings.TrimSpace(body.Name) == "" {
		unprocessable(c, "name is required")
		return
	}
	first, last := splitName(body.Name)

	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.insertAuthor(first, last, body.Bio)
	c.JSON(http.StatusOK, s.authors[indexOf(s.authors, "author_id", strconv.Itoa(id))])
}

func (s *Server) updateAuthor(c *gin.Context) {
	var body authorBody
	if err := c.ShouldBindJSON(&body); err != nil || strings.TrimSpace(body.Name) == "" {
		unprocessable(c, "name is required")
		return
	}
	first, last := splitName(body.Name)

	s.mu.Lock()
	defer s.mu.Unlock()
	i := indexOf(s.authors, "author_id", c.Param("id"))
	if i < 0 {
		notFound(c, "Author not found")
		return
	}
	a := s.authors[i]
	a["first_name"] = first
	a["last_name"] = last
	a["bio"] = body.Bio
	a["updated_at"] = today()
	c.JSON(http.StatusOK, a)
}

func (s *Server) deleteAuthor(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := c.Param("id")
	i := indexOf(s.authors, "author_id", id)
	if i < 0 {
		notFound(c, "Author not found")
		return
	}
	if indexOf(s.books, "author_id", id) >= 0 {
		badRequest(c, "Cannot delete author with existing books")
		return
	}
	s.authors = append(s.authors[:i], s.authors[i+1:]...)
	c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("Author with ID %s deleted successfully.", id)})
}

func (s *Server) insertAuthor(first, last, bio string) int {
	id := s.next("authors")
	now := today()
	s.authors = append(s.authors, record{
		"author_id":      id,
		"first_name":     first,
		"last_name":      last,
		"bio":            bio,
		"date_of_birth":  nil,
		"date_of_death":  nil,
		"nationality":    "",
		"created_at":     now,
		"updated_at":     now,
		"average_rating": 0.0,
		"book_count":     0,
		"books":          []any{},
	})
	return id
}

// ── Categories ─────────────────────────────────────────────

type categoryBody struct {
	Name string `json:"name"`
}

func (s *Server) listCategories(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]record, 0, len(s.categories))
	for _, cat := range s.categories {
		withCount := record{}
		for k, v := range cat {
			withCount[k] = v
		}
		withCount["bookCount"] = s.countBooks("category_id", cat["id"].(int))
		out = append(out, withCount)
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) createCategory(c *gin.Context) {
	var body categoryBody
	if err := c.ShouldBindJSON(&body); err != nil || strings.TrimSpace(body.Name) == "" {
		unprocessable(c, "name is required")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cat := record{"id": s.next("categories"), "name": body.Name}
	s.categories = append(s.categories, cat)
	c.JSON(http.StatusCreated, cat)
}

func (s *Server) updateCategory(c *gin.Context) {
	var body categoryBody
	if err := c.ShouldBindJSON(&body); err != nil || strings.TrimSpace(body.Name) == "" {
		unprocessable(c, "name is required")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := indexOf(s.categories, "id", c.Param("id"))
	if i < 0 {
		notFound(c, "Category not found")
		return
	}
	s.categories[i]["name"] = body.Name
	c.JSON(http.StatusOK, s.categories[i])
}

func (s *Server) deleteCategory(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := indexOf(s.categories, "id", c.Param("id"))
	if i < 0 {
		notFound(c, "Category not found")
		return
	}
	s.categories = append(s.categories[:i], s.categories[i+1:]...)
	c.JSON(http.StatusOK, gin.H{"message": "Category deleted"})
}

func (s *Server) categoryBooks(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []record{}
	for _, b := range s.books {
		if fmt.Sprint(b["category_id"]) == c.Param("id") {
			out = append(out, b)
		}
	}
	c.JSON(http.StatusOK, out)
}

// ── Helpers ────────────────────────────────────────────────

// next must be called with s.mu held.
func (s *Server) next(kind string) int {
	id := s.nextID[kind]
	s.nextID[kind]++
	return id
}

func (s *Server) countBooks(field string, id int) int {
	n := 0
	for _, b := range s.books {
		if b[field] == id {
			n++
		}
	}
	return n
}

func indexOf(list []record, key, id string) int {
	for i, r := range list {
		if fmt.Sprint(r[key]) == id {
			return i
		}
	}
	return -1
}

func splitName(name string) (string, string) {
	first, last, _ := strings.Cut(strings.TrimSpace(name), " ")
	return first, strings.TrimSpace(last)
}

func today() string {
	return time.Now().UTC().Format("2006-01-02")
}

func notFound(c *gin.Context, detail string) {
	c.JSON(http.StatusNotFound, gin.H{"detail": detail})
}

func badRequest(c *gin.Context, detail string) {
	c.JSON(http.StatusBadRequest, gin.H{"detail": detail})
}

func unprocessable(c *gin.Context, detail string) {
	c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": detail})
}
