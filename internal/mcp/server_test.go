package mcpserver

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"librarydesk/internal/backendsim"
	"librarydesk/internal/catalog"
	"librarydesk/internal/domain"
	_ "librarydesk/internal/etl/sources"
	"librarydesk/internal/gateway"
	"librarydesk/internal/service"
)

type testEnv struct {
	srv     *Server
	sim     *backendsim.Server
	lib     *catalog.Library
	emitter *service.MockEmitter
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	sim := backendsim.New(nil)
	hs := httptest.NewServer(sim.Handler())
	t.Cleanup(hs.Close)

	gw, err := gateway.NewHTTPGateway(hs.URL, gateway.WithTimeout(5*time.Second))
	require.NoError(t, err)

	a := sim.SeedAuthor("Ada", "Lovelace")
	sim.SeedAuthor("Charles", "Babbage")
	c := sim.SeedCategory("Mathematics")
	sim.SeedBook("Notes", a, c, "1843-09-01", 10)

	lib := catalog.NewLibrary(gw)
	require.NoError(t, lib.Load(context.Background()))

	emitter := &service.MockEmitter{}
	imports := service.NewImportService(lib, nil, emitter, nil)
	exports := service.NewExportService(lib, nil, nil, emitter, nil)
	srv := New(context.Background(), Deps{
		Emitter: emitter,
		Library: lib,
		Imports: imports,
		Exports: exports,
	})
	srv.approval.SetTimeout(2 * time.Second)
	return &testEnv{srv: srv, sim: sim, lib: lib, emitter: emitter}
}

func callReq(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

// approveNext approves the next approval request as soon as it is emitted.
func approveNext(t *testing.T, env *testEnv, approve bool) {
	t.Helper()
	seen := len(env.emitter.Recorded())
	go func() {
		deadline := time.Now().Add(2 * time.Second)
		for time.Now().Before(deadline) {
			events := env.emitter.Recorded()
			for _, e := range events[seen:] {
				if e.Event != EventApprovalRequired {
					continue
				}
				action := e.Data.(domain.PendingAction)
				if approve {
					env.srv.Approve(action.ID)
				} else {
					env.srv.Reject(action.ID)
				}
				return
			}
			time.Sleep(10 * time.Millisecond)
		}
	}()
}

func TestTools_BookLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res, err := env.srv.handleAddBookByName(ctx, callReq(map[string]any{
		"title":           "Sketch of the Analytical Engine",
		"authorName":      "ada lovelace",
		"categoryName":    "MATHEMATICS",
		"publicationDate": "1842-10-01",
		"price":           12.5,
	}))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, res), `"authorName": "Ada Lovelace"`)
	require.Len(t, env.lib.Books(), 2)
	id := env.lib.Books()[1].ID

	res, err = env.srv.handleUpdateBook(ctx, callReq(map[string]any{"id": id, "price": 15.0}))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, res), `"price": 15`)
	book, _ := env.lib.Book(id)
	assert.Equal(t, "Sketch of the Analytical Engine", book.Title)

	approveNext(t, env, true)
	res, err = env.srv.handleDeleteBook(ctx, callReq(map[string]any{"id": id}))
	require.NoError(t, err)
	assert.Equal(t, "Book "+id+" deleted", resultText(t, res))
	assert.Len(t, env.lib.Books(), 1)
}

func TestTools_DeleteRejected(t *testing.T) {
	env := newTestEnv(t)
	id := env.lib.Books()[0].ID

	approveNext(t, env, false)
	res, err := env.srv.handleDeleteBook(context.Background(), callReq(map[string]any{"id": id}))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, res), "rejected by user")
	assert.Len(t, env.lib.Books(), 1)
}

func TestTools_ValidationErrors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.srv.handleAddBook(ctx, callReq(map[string]any{
		"title":           "Orphan",
		"authorId":        "99",
		"categoryId":      "1",
		"publicationDate": "2024-01-01",
	}))
	require.Error(t, err)
	assert.ErrorIs(t, err, catalog.ErrValidation)

	_, err = env.srv.handleGetBook(ctx, callReq(map[string]any{}))
	assert.EqualError(t, err, "id is required")
}

func TestTools_AuthorsAndStats(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res, err := env.srv.handleSearchAuthors(ctx, callReq(map[string]any{"query": "LOVE"}))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, res), "Ada Lovelace")
	assert.NotContains(t, resultText(t, res), "Babbage")

	res, err = env.srv.handleTopAuthors(ctx, callReq(map[string]any{"limit": 1.0}))
	require.NoError(t, err)
	var top []domain.Author
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &top))
	require.Len(t, top, 1)
	assert.Equal(t, "Ada Lovelace", top[0].FullName)

	res, err = env.srv.handleLibraryStats(ctx, callReq(nil))
	require.NoError(t, err)
	var stats domain.LibraryStats
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &stats))
	assert.Equal(t, 1, stats.TotalBooks)
	assert.Equal(t, 2, stats.TotalAuthors)

	res, err = env.srv.handleBackendHealth(ctx, callReq(nil))
	require.NoError(t, err)
	assert.Equal(t, "Backend OK", resultText(t, res))
}

func TestTools_ImportAndExport(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	dir := t.TempDir()

	path := filepath.Join(dir, "books.json")
	require.NoError(t, os.WriteFile(path, []byte(
		`[{"title":"Imported","authorId":"1","categoryId":"1","publicationDate":"2024-02-01","price":5}]`), 0644))

	res, err := env.srv.handleImportFile(ctx, callReq(map[string]any{"path": path}))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, res), `"status": "success"`)
	assert.Len(t, env.lib.Books(), 2)

	out := filepath.Join(dir, "authors.csv")
	res, err = env.srv.handleExportFile(ctx, callReq(map[string]any{"path": out, "entity": "authors"}))
	require.NoError(t, err)
	assert.Equal(t, "Exported 2 authors to "+out, resultText(t, res))

	_, err = env.srv.handleRunImport(ctx, callReq(map[string]any{
		"sourceType":   "json",
		"sourceConfig": "{not json",
	}))
	assert.ErrorContains(t, err, "sourceConfig: invalid JSON")
}

func TestAuthorIDFromURI(t *testing.T) {
	assert.Equal(t, "12", authorIDFromURI("librarydesk://authors/12/books"))
	assert.Equal(t, "", authorIDFromURI("librarydesk://authors/12"))
	assert.Equal(t, "", authorIDFromURI("librarydesk://books/12/books"))
	assert.Equal(t, "", authorIDFromURI("librarydesk://authors/1/2/books"))
}
