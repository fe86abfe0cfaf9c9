package service_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"librarydesk/internal/dbclient"
	"librarydesk/internal/domain"
	"librarydesk/internal/etl"
	"librarydesk/internal/secret"
	"librarydesk/internal/service"
)

type staticSnapshot struct{ snap domain.Snapshot }

func (s staticSnapshot) Snapshot() domain.Snapshot { return s.snap }

func exportSnapshot() staticSnapshot {
	return staticSnapshot{snap: domain.Snapshot{
		Books: []domain.Book{
			{ID: "1", Title: "Notes", AuthorID: "1", AuthorName: "Ada Lovelace", CategoryID: "1", CategoryName: "Mathematics", PublicationDate: "1843-09-01", Price: 12.5},
		},
		Authors:    []domain.Author{{ID: "7", FirstName: "Ada", LastName: "Lovelace", FullName: "Ada Lovelace", BookCount: 1}},
		Categories: []domain.Category{{ID: "3", Name: "Mathematics", BookCount: 1}},
	}}
}

// fakeConnector records snapshot writes.
type fakeConnector struct {
	mu       sync.Mutex
	writes   int
	closed   bool
	writeErr error
}

func (f *fakeConnector) TestConnection(context.Context) error { return nil }

func (f *fakeConnector) WriteSnapshot(_ context.Context, snap domain.Snapshot) (*dbclient.WriteResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return nil, f.writeErr
	}
	f.writes++
	total := len(snap.Books) + len(snap.Authors) + len(snap.Categories)
	return &dbclient.WriteResult{Tables: map[string]int{"books": len(snap.Books)}, Total: total}, nil
}

func (f *fakeConnector) Query(context.Context, string, int) (*dbclient.QueryPage, error) {
	return &dbclient.QueryPage{Columns: []string{"title"}, Rows: [][]any{{"Notes"}}}, nil
}

func (f *fakeConnector) Introspect(context.Context) (*dbclient.SchemaInfo, error) {
	return &dbclient.SchemaInfo{}, nil
}

func (f *fakeConnector) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func fakeTargets() []domain.ExportTarget {
	return []domain.ExportTarget{
		{Name: "warehouse", Driver: domain.TargetDriverPostgres, Host: "db", Password: "secret"},
		{Name: "archive", Driver: domain.TargetDriverMongoDB, Host: "mongo"},
	}
}

func TestExportService_ExportTo(t *testing.T) {
	svc := service.NewExportService(exportSnapshot(), nil, nil, nil, nil)

	var buf bytes.Buffer
	n, err := svc.ExportTo(&buf, etl.FormatCSV, etl.EntityBooks)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "id,title,description,authorId,authorName,categoryId,categoryName,publicationDate,price", lines[0])
	assert.Contains(t, lines[1], "Ada Lovelace")

	_, err = svc.ExportTo(&buf, etl.FormatCSV, etl.Entity("loans"))
	assert.EqualError(t, err, `unknown entity: "loans"`)
}

func TestExportService_ExportFile(t *testing.T) {
	svc := service.NewExportService(exportSnapshot(), nil, nil, nil, nil)
	dir := t.TempDir()

	path := filepath.Join(dir, "categories.json")
	n, err := svc.ExportFile(context.Background(), path, etl.EntityCategories)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"name": "Mathematics"`)

	// no temp files are left behind
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	_, err = svc.ExportFile(context.Background(), filepath.Join(dir, "books.xml"), etl.EntityBooks)
	assert.ErrorIs(t, err, etl.ErrUnsupportedFormat)
}

func TestExportService_Template(t *testing.T) {
	svc := service.NewExportService(exportSnapshot(), nil, nil, nil, nil)

	var buf bytes.Buffer
	require.NoError(t, svc.Template(&buf, etl.FormatCSV))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "title,description,authorId,categoryId,publicationDate,price", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "Sample Book Title,Sample book description,7,3,2024-01-01,"))

	path := filepath.Join(t.TempDir(), "template.json")
	require.NoError(t, svc.TemplateFile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Sample Book Title")
}

func TestExportService_ListTargetsHidesPasswords(t *testing.T) {
	svc := service.NewExportService(exportSnapshot(), fakeTargets(), nil, nil, nil)
	targets := svc.ListTargets()
	require.Len(t, targets, 2)
	assert.Equal(t, "archive", targets[0].Name)
	assert.Equal(t, "warehouse", targets[1].Name)
	for _, tg := range targets {
		assert.Empty(t, tg.Password)
	}
}

func TestExportService_ExportToTarget(t *testing.T) {
	conn := &fakeConnector{}
	opened := 0
	runs := &memRuns{}
	emitter := &service.MockEmitter{}

	svc := service.NewExportService(exportSnapshot(), fakeTargets(), runs, emitter, nil)
	svc.SetConnectorFactory(func(target domain.ExportTarget, _ *zap.Logger) (dbclient.Connector, error) {
		opened++
		assert.Equal(t, "secret", target.Password)
		return conn, nil
	})

	ctx := context.Background()
	run, err := svc.ExportToTarget(ctx, "warehouse", service.TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, etl.StatusSuccess, run.Status)
	assert.Equal(t, 3, run.RowsRead)
	assert.Equal(t, 3, run.RowsWritten)
	assert.Equal(t, domain.RunExport, run.Kind)

	_, err = svc.ExportToTarget(ctx, "warehouse", service.TriggerSchedule)
	require.NoError(t, err)
	assert.Equal(t, 1, opened, "connector is reused")
	assert.Equal(t, 2, conn.writes)

	history, err := svc.History(10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, service.TriggerSchedule, history[0].Trigger)

	events := emitter.Recorded()
	require.Len(t, events, 2)
	assert.Equal(t, service.EventExportCompleted, events[0].Event)

	page, err := svc.QueryTarget(ctx, "warehouse", "SELECT title FROM books", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"title"}, page.Columns)

	svc.Close()
	assert.True(t, conn.closed)
}

func TestExportService_WriteFailureDropsConnector(t *testing.T) {
	conn := &fakeConnector{writeErr: errors.New("disk full")}
	opened := 0
	runs := &memRuns{}
	svc := service.NewExportService(exportSnapshot(), fakeTargets(), runs, nil, nil)
	svc.SetConnectorFactory(func(domain.ExportTarget, *zap.Logger) (dbclient.Connector, error) {
		opened++
		return conn, nil
	})

	run, err := svc.ExportToTarget(context.Background(), "warehouse", service.TriggerManual)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, etl.StatusError, run.Status)
	assert.True(t, conn.closed)

	_, _ = svc.ExportToTarget(context.Background(), "warehouse", service.TriggerManual)
	assert.Equal(t, 2, opened, "a failed connector is reopened")
	assert.Len(t, runs.all(), 2)
}

func TestExportService_PasswordFromSecretStore(t *testing.T) {
	var passwords []string
	svc := service.NewExportService(exportSnapshot(), fakeTargets(), nil, nil, nil)
	svc.SetConnectorFactory(func(target domain.ExportTarget, _ *zap.Logger) (dbclient.Connector, error) {
		passwords = append(passwords, target.Password)
		return &fakeConnector{}, nil
	})

	assert.Error(t, svc.SetTargetPassword("archive", "pw"), "no store yet")

	svc.SetSecretStore(secret.NewMemoryStore())
	require.NoError(t, svc.SetTargetPassword("archive", "s3cret"))
	assert.ErrorIs(t, svc.SetTargetPassword("nowhere", "x"), service.ErrTargetNotFound)

	ctx := context.Background()
	require.NoError(t, svc.TestTarget(ctx, "archive"))
	require.NoError(t, svc.TestTarget(ctx, "warehouse"))

	// a new password reconnects
	require.NoError(t, svc.SetTargetPassword("archive", "rotated"))
	require.NoError(t, svc.TestTarget(ctx, "archive"))

	assert.Equal(t, []string{"s3cret", "secret", "rotated"}, passwords)
}

func TestExportService_UnknownTarget(t *testing.T) {
	svc := service.NewExportService(exportSnapshot(), fakeTargets(), nil, nil, nil)
	_, err := svc.ExportToTarget(context.Background(), "nowhere", service.TriggerManual)
	assert.ErrorIs(t, err, service.ErrTargetNotFound)

	err = svc.TestTarget(context.Background(), "nowhere")
	assert.ErrorIs(t, err, service.ErrTargetNotFound)
}

func TestExportService_SQLiteTarget(t *testing.T) {
	target := domain.ExportTarget{
		Name:   "local",
		Driver: domain.TargetDriverSQLite,
		Host:   filepath.Join(t.TempDir(), "export.db"),
	}
	svc := service.NewExportService(exportSnapshot(), []domain.ExportTarget{target}, nil, nil, nil)
	t.Cleanup(svc.Close)

	ctx := context.Background()
	require.NoError(t, svc.TestTarget(ctx, "local"))

	run, err := svc.ExportToTarget(ctx, "local", service.TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, 3, run.RowsWritten)

	page, err := svc.QueryTarget(ctx, "local", "SELECT title, author_name FROM books", 0)
	require.NoError(t, err)
	require.Len(t, page.Rows, 1)
	assert.Equal(t, "Notes", page.Rows[0][0])
	assert.Equal(t, "Ada Lovelace", page.Rows[0][1])

	schema, err := svc.IntrospectTarget(ctx, "local")
	require.NoError(t, err)
	assert.Len(t, schema.Tables, 3)
}
